//go:build !darwin

package internal

import "fmt"

// keyringPassphrase stub for non-macOS. Use password_cmd with a
// secret-service client (secret-tool, pass) instead.
func keyringPassphrase(ref string) (string, error) {
	return "", fmt.Errorf("keyring source %q: keychain integration is only supported on macOS", ref)
}
