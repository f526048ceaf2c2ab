package internal

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
)

// Menu is the external selection-list collaborator (dmenu/rofi).
// Select returns ErrMenuAbort on escape or empty selection. Error
// shows a one-line notification and never fails.
type Menu interface {
	Select(prompt string, choices []string) (string, error)
	Passphrase(prompt string) (string, error)
	Error(msg string)
}

// ExecMenu runs the command configured in the [dmenu] section. For a
// passphrase prompt the [dmenu_passphrase] section is overlaid, so a
// dedicated visual theme (matching fg/bg, rofi obscuring) can hide
// the typed characters.
type ExecMenu struct {
	style      ConfigSection
	passphrase ConfigSection
	maxLines   int
}

// NewExecMenu builds the menu collaborator from the resolved config.
func NewExecMenu(cfg *Config) *ExecMenu {
	return &ExecMenu{
		style:      cfg.Menu,
		passphrase: cfg.MenuPassphrase,
		maxLines:   cfg.Policy.MenuLines,
	}
}

// Select shows choices and returns the chosen line.
func (m *ExecMenu) Select(prompt string, choices []string) (string, error) {
	lines := len(choices)
	if lines > m.maxLines {
		lines = m.maxLines
	}
	return m.run(m.command(prompt, lines, false), strings.Join(choices, "\n"), false)
}

// Passphrase prompts for a passphrase with the obscured theme and no
// visible choice lines. An empty input is a valid (keyfile-only)
// passphrase, not a cancel.
func (m *ExecMenu) Passphrase(prompt string) (string, error) {
	return m.run(m.command(prompt, 0, true), "", true)
}

// Error pops up a one-line menu showing msg.
func (m *ExecMenu) Error(msg string) {
	_, _ = m.run(m.command(msg, 1, false), "", true)
}

// command builds the dmenu/rofi argv. Rofi is detected by the command
// name and gets its dmenu-compatibility flags; every other key of the
// style section is forwarded as a single-dash flag.
func (m *ExecMenu) command(prompt string, lines int, obscure bool) []string {
	style := make(map[string]string, len(m.style))
	for k, v := range m.style {
		style[k] = v
	}
	if obscure {
		for k, v := range m.passphrase {
			style[k] = v
		}
	}

	cmdline := style["dmenu_command"]
	if cmdline == "" {
		cmdline = "dmenu"
	}
	parts := splitCommand(cmdline)
	bin, extra := parts[0], parts[1:]
	rofi := strings.Contains(filepath.Base(bin), "rofi")

	rofiObscure := true
	if v, ok := style["rofi_obscure"]; ok {
		if b, err := strconv.ParseBool(strings.ToLower(v)); err == nil {
			rofiObscure = b
		}
	}
	delete(style, "dmenu_command")
	delete(style, "l")
	delete(style, "pinentry")
	delete(style, "rofi_obscure")

	argv := []string{bin}
	if rofi {
		argv = append(argv, "-dmenu", "-i", "-lines", strconv.Itoa(lines))
	} else {
		argv = append(argv, "-i", "-l", strconv.Itoa(lines))
	}
	argv = append(argv, "-p", prompt)
	argv = append(argv, extra...)
	if obscure && rofi && rofiObscure {
		argv = append(argv, "-password")
	}

	keys := make([]string, 0, len(style))
	for k := range style {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		argv = append(argv, "-"+k)
		if style[k] != "" {
			argv = append(argv, style[k])
		}
	}
	return argv
}

func (m *ExecMenu) run(argv []string, input string, allowEmpty bool) (string, error) {
	cmd := exec.Command(argv[0], argv[1:]...)
	cmd.Env = append(os.Environ(), "LC_ALL=C")
	cmd.Stdin = strings.NewReader(input)
	var out bytes.Buffer
	cmd.Stdout = &out
	err := cmd.Run()
	sel := strings.TrimRight(out.String(), "\n")
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			// dmenu and rofi exit non-zero on escape.
			return "", ErrMenuAbort
		}
		return "", fmt.Errorf("menu command %q: %w", argv[0], err)
	}
	if sel == "" && !allowEmpty {
		return "", ErrMenuAbort
	}
	return sel, nil
}
