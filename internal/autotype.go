package internal

import (
	"bytes"
	"errors"
	"fmt"
	"os/exec"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Typer is the external keystroke-injection collaborator. Text types
// a literal string; Key taps the key named by a canonical {...}
// token. Failures are reported, never retried.
type Typer interface {
	Text(s string) error
	Key(token string) error
}

type token struct {
	Value   string
	Special bool
}

// tokenizeSequence splits an autotype sequence into literal runs and
// special tokens: brace groups like {USERNAME} or {DELAY 50} and the
// single-character modifiers + ^ % ~ @.
func tokenizeSequence(seq string) ([]token, error) {
	var tokens []token
	for seq != "" {
		opening := strings.IndexAny(seq, "{+^%~@")
		if opening == -1 {
			tokens = append(tokens, token{seq, false})
			break
		}
		if opening > 0 {
			tokens = append(tokens, token{seq[:opening], false})
		}
		if seq[opening] != '{' {
			tokens = append(tokens, token{string(seq[opening]), true})
			seq = seq[opening+1:]
			continue
		}
		rest := seq[opening:]
		closing := strings.IndexByte(rest, '}')
		if closing == -1 {
			return nil, &AutotypeError{Err: fmt.Errorf("no matching right brace in %q", rest)}
		}
		// "{}}" is the literal right brace token.
		if closing == 1 && len(rest) > 2 && rest[2] == '}' {
			tokens = append(tokens, token{"{}}", true})
			seq = rest[3:]
			continue
		}
		tokens = append(tokens, token{rest[:closing+1], true})
		seq = rest[closing+1:]
	}
	return tokens, nil
}

// placeholderValue resolves a field placeholder token against the
// entry. {S:Name} references a custom attribute.
func placeholderValue(tok string, e Entry) (string, bool) {
	switch tok {
	case "{TITLE}":
		return e.Title, true
	case "{USERNAME}":
		return e.Username, true
	case "{URL}":
		return e.URL, true
	case "{PASSWORD}":
		return e.Password, true
	case "{NOTES}":
		return e.Notes, true
	}
	if strings.HasPrefix(tok, "{S:") && strings.HasSuffix(tok, "}") {
		v, ok := e.Attributes[tok[3:len(tok)-1]]
		return v, ok
	}
	return "", false
}

// stringTokens are brace tokens that stand for a literal character.
var stringTokens = map[string]string{
	"{PLUS}":       "+",
	"{PERCENT}":    "%",
	"{CARET}":      "^",
	"{TILDE}":      "~",
	"{AT}":         "@",
	"{LEFTPAREN}":  "(",
	"{RIGHTPAREN}": ")",
	"{LEFTBRACE}":  "{",
	"{RIGHTBRACE}": "}",
	"{SPACE}":      " ",
	"{+}":          "+",
	"{%}":          "%",
	"{^}":          "^",
	"{~}":          "~",
	"{(}":          "(",
	"{)}":          ")",
	"{[}":          "[",
	"{]}":          "]",
	"{{}":          "{",
	"{}}":          "}",
}

var delayToken = regexp.MustCompile(`^\{DELAY (\d+)\}$`)

// ExpandPlaceholders substitutes the recognized field placeholders in
// seq with the entry's values. Literal text and every other token
// pass through unchanged, so an input without recognized placeholders
// comes back identical.
func ExpandPlaceholders(seq string, e Entry) (string, error) {
	tokens, err := tokenizeSequence(seq)
	if err != nil {
		return "", err
	}
	var b strings.Builder
	for _, t := range tokens {
		if t.Special {
			if v, ok := placeholderValue(t.Value, e); ok {
				b.WriteString(v)
				continue
			}
		}
		b.WriteString(t.Value)
	}
	return b.String(), nil
}

// TypeEntry autotypes the entry, preferring its own stored sequence
// over the configured default.
func TypeEntry(e Entry, defaultSeq string, t Typer) error {
	if e.AutotypeDisabled {
		return &AutotypeError{Err: errors.New("autotype disabled for this entry")}
	}
	seq := defaultSeq
	if e.AutotypeSequence != "" {
		seq = e.AutotypeSequence
	}
	return TypeSequence(seq, e, t)
}

// TypeSequence tokenizes seq, resolves field placeholders against e
// and drives the typer token by token. {DELAY n} pauses n
// milliseconds.
func TypeSequence(seq string, e Entry, t Typer) error {
	tokens, err := tokenizeSequence(seq)
	if err != nil {
		return err
	}
	for _, tok := range tokens {
		if !tok.Special {
			if err := t.Text(tok.Value); err != nil {
				return err
			}
			continue
		}
		if m := delayToken.FindStringSubmatch(tok.Value); m != nil {
			ms, _ := strconv.Atoi(m[1])
			time.Sleep(time.Duration(ms) * time.Millisecond)
			continue
		}
		if v, ok := placeholderValue(tok.Value, e); ok {
			if v != "" {
				if err := t.Text(v); err != nil {
					return err
				}
			}
			continue
		}
		if lit, ok := stringTokens[tok.Value]; ok {
			if err := t.Text(lit); err != nil {
				return err
			}
			continue
		}
		if err := t.Key(tok.Value); err != nil {
			return err
		}
	}
	return nil
}

// NewTyper picks the injection backend named by type_library. The
// default is xdotool.
func NewTyper(library string) (Typer, error) {
	switch library {
	case "", "xdotool":
		return &cmdTyper{
			bin:      "xdotool",
			textArgs: func(s string) []string { return []string{"type", s} },
			keyArgs:  func(k string) []string { return []string{"key", k} },
			keys:     xdotoolKeys,
		}, nil
	case "ydotool":
		return &cmdTyper{
			bin:      "ydotool",
			textArgs: func(s string) []string { return []string{"type", s} },
			keyArgs:  func(k string) []string { return []string{"key", k} },
			keys:     ydotoolKeys,
		}, nil
	case "wtype":
		return &cmdTyper{
			bin:      "wtype",
			textArgs: func(s string) []string { return []string{s} },
			keyArgs:  func(k string) []string { return []string{"-k", k} },
			keys:     xdotoolKeys, // wtype takes XKB keysym names
		}, nil
	}
	return nil, &ConfigError{Key: "type_library", Reason: fmt.Sprintf("unknown library %q (want xdotool, ydotool or wtype)", library)}
}

// cmdTyper shells out to an injection tool per token.
type cmdTyper struct {
	bin      string
	textArgs func(string) []string
	keyArgs  func(string) []string
	keys     map[string]string
}

func (t *cmdTyper) Text(s string) error {
	if s == "" {
		return nil
	}
	return t.call(t.textArgs(s))
}

func (t *cmdTyper) Key(tok string) error {
	name, ok := t.keys[tok]
	if !ok {
		return &AutotypeError{Token: tok, Err: fmt.Errorf("unsupported by %s", t.bin)}
	}
	return t.call(t.keyArgs(name))
}

func (t *cmdTyper) call(args []string) error {
	out, err := exec.Command(t.bin, args...).CombinedOutput()
	if err != nil {
		return &AutotypeError{Err: fmt.Errorf("%s: %v: %s", t.bin, err, bytes.TrimSpace(out))}
	}
	return nil
}

func withFunctionKeys(m map[string]string, format func(int) string) map[string]string {
	for i := 1; i <= 12; i++ {
		m[fmt.Sprintf("{F%d}", i)] = format(i)
	}
	return m
}

var xdotoolKeys = withFunctionKeys(map[string]string{
	"{TAB}":       "Tab",
	"{ENTER}":     "Return",
	"~":           "Return",
	"{UP}":        "Up",
	"{DOWN}":      "Down",
	"{LEFT}":      "Left",
	"{RIGHT}":     "Right",
	"{INSERT}":    "Insert",
	"{INS}":       "Insert",
	"{DELETE}":    "Delete",
	"{DEL}":       "Delete",
	"{HOME}":      "Home",
	"{END}":       "End",
	"{PGUP}":      "Page_Up",
	"{PGDN}":      "Page_Down",
	"{BACKSPACE}": "BackSpace",
	"{BS}":        "BackSpace",
	"{BKSP}":      "BackSpace",
	"{ESC}":       "Escape",
	"+":           "Shift",
	"^":           "Ctrl",
	"%":           "Alt",
	"@":           "Super",
}, func(i int) string { return fmt.Sprintf("F%d", i) })

var ydotoolKeys = withFunctionKeys(map[string]string{
	"{TAB}":       "TAB",
	"{ENTER}":     "ENTER",
	"~":           "ENTER",
	"{UP}":        "UP",
	"{DOWN}":      "DOWN",
	"{LEFT}":      "LEFT",
	"{RIGHT}":     "RIGHT",
	"{INSERT}":    "INSERT",
	"{INS}":       "INSERT",
	"{DELETE}":    "DELETE",
	"{DEL}":       "DELETE",
	"{HOME}":      "HOME",
	"{END}":       "END",
	"{PGUP}":      "PAGEUP",
	"{PGDN}":      "PAGEDOWN",
	"{BACKSPACE}": "BACKSPACE",
	"{BS}":        "BACKSPACE",
	"{BKSP}":      "BACKSPACE",
	"{ESC}":       "ESC",
	"+":           "LEFTSHIFT",
	"^":           "LEFTCTRL",
	"%":           "LEFTALT",
}, func(i int) string { return fmt.Sprintf("F%d", i) })
