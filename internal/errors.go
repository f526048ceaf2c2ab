package internal

import (
	"errors"
	"fmt"
)

// ErrMenuAbort signals that the user cancelled a menu (escape or empty
// selection). It is a normal termination, not a failure.
var ErrMenuAbort = errors.New("menu aborted")

// ConfigError reports a malformed or ambiguous configuration. It is
// fatal and raised before any menu is shown.
type ConfigError struct {
	Key    string
	Reason string
}

func (e *ConfigError) Error() string {
	if e.Key == "" {
		return fmt.Sprintf("config: %s", e.Reason)
	}
	return fmt.Sprintf("config: %s: %s", e.Key, e.Reason)
}

// UnlockError reports a failed database unlock (bad credentials,
// unreadable file). The database stays retryable on the next attempt.
type UnlockError struct {
	Path string
	Err  error
}

func (e *UnlockError) Error() string {
	return fmt.Sprintf("unlock %s: %v", e.Path, e.Err)
}

func (e *UnlockError) Unwrap() error { return e.Err }

// AutotypeError reports a failed keystroke injection. It is terminal
// for the current cycle and never retried automatically.
type AutotypeError struct {
	Token string
	Err   error
}

func (e *AutotypeError) Error() string {
	if e.Token != "" {
		return fmt.Sprintf("autotype: token %q: %v", e.Token, e.Err)
	}
	return fmt.Sprintf("autotype: %v", e.Err)
}

func (e *AutotypeError) Unwrap() error { return e.Err }
