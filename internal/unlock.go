package internal

import (
	"bytes"
	"errors"
	"fmt"
	"os/exec"
	"regexp"
	"strings"
	"sync"
)

// Unlocker is the external unlock collaborator: given a database file
// and its credentials it produces a decrypted handle or fails with an
// UnlockError.
type Unlocker interface {
	Unlock(entry DatabaseEntry, passphrase string) (Database, error)
}

// PassphrasePrompt asks the user for a passphrase when no configured
// source applies.
type PassphrasePrompt func(prompt string) (string, error)

// ResolvePassphrase sources the passphrase for a database: the
// literal password, the output of the password command, the OS
// keychain, or the interactive prompt, in that order. The resolver
// guarantees at most one of password/password_cmd is configured.
func ResolvePassphrase(entry DatabaseEntry, prompt PassphrasePrompt) (string, error) {
	if entry.Password != "" {
		return entry.Password, nil
	}
	if entry.PasswordCmd != "" {
		argv := splitCommand(entry.PasswordCmd)
		out, err := exec.Command(argv[0], argv[1:]...).Output()
		if err != nil {
			return "", &UnlockError{Path: entry.Path, Err: fmt.Errorf("password command %q: %w", entry.PasswordCmd, err)}
		}
		return strings.TrimRight(string(out), "\n"), nil
	}
	if entry.Keyring != "" {
		pw, err := keyringPassphrase(entry.Keyring)
		if err != nil {
			return "", &UnlockError{Path: entry.Path, Err: err}
		}
		return pw, nil
	}
	return prompt("Passphrase")
}

// UnlockWith combines passphrase sourcing and the unlock collaborator
// into the capability the session cache consumes.
func UnlockWith(u Unlocker, prompt PassphrasePrompt) UnlockFunc {
	return func(entry DatabaseEntry) (Database, error) {
		pw, err := ResolvePassphrase(entry, prompt)
		if err != nil {
			return nil, err
		}
		return u.Unlock(entry, pw)
	}
}

// NewPassphrasePrompt builds the interactive prompt chain: the
// configured pinentry program when set, the obscured menu theme
// otherwise, and fallback (may be nil) when the menu is unavailable.
func NewPassphrasePrompt(policy SessionPolicy, menu Menu, fallback PassphrasePrompt) PassphrasePrompt {
	return func(prompt string) (string, error) {
		if policy.Pinentry != "" {
			if pw, err := pinentryPassphrase(policy.Pinentry); err == nil {
				return pw, nil
			}
		}
		pw, err := menu.Passphrase(prompt)
		if err == nil || errors.Is(err, ErrMenuAbort) {
			return pw, err
		}
		if fallback != nil {
			return fallback(prompt)
		}
		return "", err
	}
}

// pinentryPassphrase reads one pin through the Assuan getpin
// exchange.
func pinentryPassphrase(cmdline string) (string, error) {
	argv := splitCommand(cmdline)
	cmd := exec.Command(argv[0], argv[1:]...)
	cmd.Stdin = strings.NewReader("SETDESC Enter database passphrase\nGETPIN\nBYE\n")
	out, err := cmd.Output()
	if err != nil {
		return "", fmt.Errorf("pinentry: %w", err)
	}
	for _, line := range strings.Split(string(out), "\n") {
		if strings.HasPrefix(line, "D ") {
			return strings.TrimPrefix(line, "D "), nil
		}
	}
	return "", errors.New("pinentry: no passphrase returned")
}

// KeepassCLI unlocks databases through the keepassxc-cli tool. The
// KDBX format is never parsed here; listing and field access shell
// out with the passphrase fed on stdin.
type KeepassCLI struct {
	Bin string // defaults to keepassxc-cli
}

func (k *KeepassCLI) binary() string {
	if k.Bin != "" {
		return k.Bin
	}
	return "keepassxc-cli"
}

// Unlock validates the credentials with an initial listing and
// returns the handle. A wrong passphrase or unreadable file surfaces
// as an UnlockError here, before any entry menu is shown.
func (k *KeepassCLI) Unlock(entry DatabaseEntry, passphrase string) (Database, error) {
	db := &cliDatabase{
		bin:        k.binary(),
		path:       entry.Path,
		keyfile:    entry.Keyfile,
		passphrase: passphrase,
	}
	if _, err := db.Entries(); err != nil {
		return nil, err
	}
	return db, nil
}

type cliDatabase struct {
	bin        string
	path       string
	keyfile    string
	passphrase string

	mu      sync.Mutex
	entries []Entry
}

func (d *cliDatabase) command(sub string, extra ...string) *exec.Cmd {
	args := []string{sub, "-q"}
	if d.passphrase == "" {
		args = append(args, "--no-password")
	}
	if d.keyfile != "" {
		args = append(args, "--key-file", d.keyfile)
	}
	args = append(args, d.path)
	args = append(args, extra...)
	cmd := exec.Command(d.bin, args...)
	if d.passphrase != "" {
		cmd.Stdin = strings.NewReader(d.passphrase + "\n")
	}
	return cmd
}

func (d *cliDatabase) output(sub string, extra ...string) (string, error) {
	cmd := d.command(sub, extra...)
	var out, stderr bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		msg := strings.TrimSpace(stderr.String())
		if msg == "" {
			msg = err.Error()
		}
		return "", &UnlockError{Path: d.path, Err: errors.New(msg)}
	}
	return out.String(), nil
}

// Entries lists every entry as its Group/Title path. The listing is
// fetched once per handle.
func (d *cliDatabase) Entries() ([]Entry, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.entries != nil {
		return d.entries, nil
	}
	out, err := d.output("ls", "-R", "-f")
	if err != nil {
		return nil, err
	}
	d.entries = parseListing(out)
	return d.entries, nil
}

// parseListing turns the recursive flat listing into entries. Group
// lines end in a slash; [empty] marks groups without entries.
func parseListing(out string) []Entry {
	entries := []Entry{}
	for _, line := range strings.Split(out, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasSuffix(line, "/") || line == "[empty]" {
			continue
		}
		group, title := "", line
		if i := strings.LastIndex(line, "/"); i >= 0 {
			group, title = line[:i], line[i+1:]
		}
		entries = append(entries, Entry{Title: title, Group: group})
	}
	return entries
}

var showField = regexp.MustCompile(`^([A-Za-z][A-Za-z0-9 _-]*): ?(.*)$`)

// Resolve fills the credential fields of a listed entry from the
// show subcommand's "Field: value" output. Unknown fields become
// custom attributes; continuation lines belong to the notes.
func (d *cliDatabase) Resolve(e *Entry) error {
	out, err := d.output("show", "-s", e.Path())
	if err != nil {
		return err
	}
	parseShow(e, out)
	return nil
}

func parseShow(e *Entry, out string) {
	inNotes := false
	for _, line := range strings.Split(out, "\n") {
		m := showField.FindStringSubmatch(line)
		if m == nil {
			if inNotes && line != "" {
				e.Notes += "\n" + line
			}
			continue
		}
		key, val := m[1], m[2]
		inNotes = false
		switch key {
		case "Title":
			e.Title = val
		case "UserName":
			e.Username = val
		case "Password":
			e.Password = val
		case "URL":
			e.URL = val
		case "Notes":
			e.Notes = val
			inNotes = true
		case "Uuid", "Tags", "Attachments":
			// not surfaced
		default:
			if e.Attributes == nil {
				e.Attributes = make(map[string]string)
			}
			e.Attributes[key] = val
		}
	}
}
