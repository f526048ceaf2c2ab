package internal

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"go.uber.org/zap"
)

// Action selects what one cycle does with the chosen entry.
type Action int

const (
	// ActionTypeEntry autotypes the entry's full sequence.
	ActionTypeEntry Action = iota
	// ActionTypePassword types only the password.
	ActionTypePassword
	// ActionViewEntry browses the entry's fields and types the chosen
	// one.
	ActionViewEntry
)

// State is the terminal state of one selector cycle.
type State int

const (
	StateDone State = iota
	StateCancelled
	StateFailed
)

// Bridge wires the resolved config, the session cache and the
// external collaborators into the select-and-autotype cycle. The
// cache is owned by the caller and shared across cycles; everything
// else is stateless.
type Bridge struct {
	Config   *Config
	Cache    *SessionCache
	Menu     Menu
	Unlocker Unlocker
	Typer    Typer
	Prompt   PassphrasePrompt
	Log      *zap.Logger
}

func (b *Bridge) log() *zap.Logger {
	if b.Log == nil {
		return zap.NewNop()
	}
	return b.Log
}

// Run drives one cycle: Listing, Selected, Authenticated, then Done.
// A menu abort at any point ends in Cancelled, which is a normal
// termination. Unlock and autotype failures are shown through the
// menu's notification path and end in Failed with the error.
func (b *Bridge) Run(action Action) (State, error) {
	if len(b.Config.Databases) == 0 {
		return StateFailed, &ConfigError{Reason: "no database configured; edit " + DefaultConfigPath()}
	}

	dbEntry, err := b.pickDatabase()
	if errors.Is(err, ErrMenuAbort) {
		return StateCancelled, nil
	}
	if err != nil {
		return StateFailed, err
	}

	sess, err := b.Cache.GetOrUnlock(dbEntry, UnlockWith(b.Unlocker, b.Prompt))
	if errors.Is(err, ErrMenuAbort) {
		return StateCancelled, nil
	}
	if err != nil {
		b.Menu.Error(fmt.Sprintf("Unlock failed: %v", err))
		return StateFailed, err
	}
	b.log().Debug("session ready", zap.String("session", sess.ID))

	entries, err := sess.Handle.Entries()
	if err != nil {
		b.Menu.Error(fmt.Sprintf("Listing failed: %v", err))
		return StateFailed, err
	}
	visible := Visible(entries, b.Config.Policy.HideGroups)
	if len(visible) == 0 {
		b.Menu.Error("No entries found")
		return StateCancelled, nil
	}

	// Listing
	width := len(strconv.Itoa(len(visible) - 1))
	choices := make([]string, len(visible))
	for i, e := range visible {
		choices[i] = fmt.Sprintf("%*d - %s", width, i, e.Path())
	}
	sel, err := b.Menu.Select("Entries", choices)
	if errors.Is(err, ErrMenuAbort) {
		return StateCancelled, nil
	}
	if err != nil {
		return StateFailed, err
	}

	// Selected
	idx, ok := choiceIndex(sel, len(visible))
	if !ok {
		// Free-typed text that matches no listed entry.
		return StateCancelled, nil
	}
	entry := visible[idx]
	if err := sess.Handle.Resolve(&entry); err != nil {
		b.Cache.Invalidate(dbEntry.Index)
		b.Menu.Error(fmt.Sprintf("Read failed: %v", err))
		return StateFailed, err
	}

	// Authenticated
	if err := b.perform(action, entry); err != nil {
		if errors.Is(err, ErrMenuAbort) {
			return StateCancelled, nil
		}
		b.Menu.Error(err.Error())
		return StateFailed, err
	}
	return StateDone, nil
}

func (b *Bridge) perform(action Action, entry Entry) error {
	switch action {
	case ActionTypePassword:
		return b.Typer.Text(entry.Password)
	case ActionViewEntry:
		return b.viewEntry(entry)
	default:
		return TypeEntry(entry, b.Config.Policy.AutotypeDefault, b.Typer)
	}
}

// pickDatabase returns the configured database, showing a selection
// menu when more than one is configured.
func (b *Bridge) pickDatabase() (DatabaseEntry, error) {
	dbs := b.Config.Databases
	if len(dbs) == 1 {
		return dbs[0], nil
	}
	choices := make([]string, len(dbs))
	for i, d := range dbs {
		choices[i] = d.Path
	}
	sel, err := b.Menu.Select("Select Database", choices)
	if err != nil {
		return DatabaseEntry{}, err
	}
	for _, d := range dbs {
		if d.Path == sel {
			return d, nil
		}
	}
	return DatabaseEntry{}, ErrMenuAbort
}

// viewEntry lists the entry's fields, masking the password. The
// chosen field's text is typed; notes open in the configured editor.
func (b *Bridge) viewEntry(e Entry) error {
	const (
		passwordMask = "Password: **********"
		notesView    = "Notes: <Enter to view>"
	)
	fields := []string{
		"Username: " + e.Username,
		"URL: " + e.URL,
	}
	if e.Password != "" {
		fields = append(fields, passwordMask)
	}
	if e.Notes != "" {
		fields = append(fields, notesView)
	}
	for k, v := range e.Attributes {
		fields = append(fields, k+": "+v)
	}

	sel, err := b.Menu.Select(e.Title, fields)
	if err != nil {
		return err
	}
	switch sel {
	case passwordMask:
		return b.Typer.Text(e.Password)
	case notesView:
		return openInEditor(b.Config.Policy, e.Notes)
	}
	_, value, _ := strings.Cut(sel, ": ")
	return b.Typer.Text(value)
}

// Visible filters out entries whose group path matches any hidden
// group name.
func Visible(entries []Entry, hidden []string) []Entry {
	if len(hidden) == 0 {
		return entries
	}
	var out []Entry
	for _, e := range entries {
		if !hiddenGroup(e.Group, hidden) {
			out = append(out, e)
		}
	}
	return out
}

func hiddenGroup(group string, hidden []string) bool {
	for _, h := range hidden {
		if strings.Contains(group, h) {
			return true
		}
	}
	return false
}

// choiceIndex extracts the listing index from a selected "N - path"
// line.
func choiceIndex(sel string, n int) (int, bool) {
	prefix, _, ok := strings.Cut(sel, " - ")
	if !ok {
		return 0, false
	}
	idx, err := strconv.Atoi(strings.TrimSpace(prefix))
	if err != nil || idx < 0 || idx >= n {
		return 0, false
	}
	return idx, true
}
