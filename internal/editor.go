package internal

import (
	"fmt"
	"os"
	"os/exec"
)

// openInEditor shows text in the configured editor and blocks until
// it exits. gui_editor runs directly; a plain editor is wrapped in
// the configured terminal with -e.
func openInEditor(policy SessionPolicy, text string) error {
	f, err := os.CreateTemp("", "keymenu-*.txt")
	if err != nil {
		return err
	}
	defer os.Remove(f.Name())
	if _, err := f.WriteString(text); err != nil {
		f.Close()
		return err
	}
	f.Close()

	var argv []string
	if policy.GUIEditor != "" {
		argv = splitCommand(policy.GUIEditor)
	} else {
		argv = append(splitCommand(policy.Terminal), "-e")
		argv = append(argv, splitCommand(policy.Editor)...)
	}
	argv = append(argv, f.Name())

	cmd := exec.Command(argv[0], argv[1:]...)
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("editor %q: %w", argv[0], err)
	}
	return nil
}
