package internal

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"gopkg.in/ini.v1"
)

const (
	// CachePeriodDefaultMin is the default password cache period.
	CachePeriodDefaultMin = 360
	// DefaultSequence is the default autotype sequence.
	DefaultSequence = "{USERNAME}{TAB}{PASSWORD}{ENTER}"
	// DefaultMenuLines caps the number of visible menu lines.
	DefaultMenuLines = 24
)

// ConfigSection is the raw key/value mapping of one INI section.
// Unknown keys are preserved; the menu collaborator forwards them as
// style flags.
type ConfigSection map[string]string

// SessionPolicy holds the resolved scalar settings that govern a run.
type SessionPolicy struct {
	CachePeriod     time.Duration
	Editor          string
	GUIEditor       string
	Terminal        string
	HideGroups      []string
	AutotypeDefault string
	TypeLibrary     string
	MenuLines       int
	Pinentry        string
}

// Config is the fully resolved configuration: the session policy, the
// configured databases, and the raw menu style sections.
type Config struct {
	Policy         SessionPolicy
	Databases      []DatabaseEntry
	Menu           ConfigSection
	MenuPassphrase ConfigSection
}

// DefaultConfigPath returns ~/.config/keymenu/config.ini, honoring
// XDG_CONFIG_HOME.
func DefaultConfigPath() string {
	if dir := os.Getenv("XDG_CONFIG_HOME"); dir != "" {
		return filepath.Join(dir, "keymenu", "config.ini")
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", "keymenu", "config.ini")
}

// WriteDefault creates a starter config file if none exists yet.
func WriteDefault(path string) error {
	if _, err := os.Stat(path); err == nil {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return err
	}
	content := `[dmenu]
dmenu_command = dmenu
# l = 24

[dmenu_passphrase]
nf = #222222
nb = #222222
rofi_obscure = True

[database]
# database_1 = ~/passwords.kdbx
# keyfile_1 = ~/passwords.key
pw_cache_period_min = ` + strconv.Itoa(CachePeriodDefaultMin) + `
autotype_default = ` + DefaultSequence + `
`
	return os.WriteFile(path, []byte(content), 0600)
}

// Resolve loads and validates the config file. It is a pure transform
// of the file contents into typed structures; no menus are shown and
// no commands are run.
func Resolve(path string) (*Config, error) {
	// Color values like "#222222" must survive parsing, so inline
	// comments are disabled.
	f, err := ini.LoadSources(ini.LoadOptions{IgnoreInlineComment: true}, path)
	if err != nil {
		return nil, &ConfigError{Reason: fmt.Sprintf("cannot read %s: %v", path, err)}
	}
	return resolve(f)
}

func resolve(f *ini.File) (*Config, error) {
	cfg := &Config{
		Policy: SessionPolicy{
			CachePeriod:     CachePeriodDefaultMin * time.Minute,
			AutotypeDefault: DefaultSequence,
			MenuLines:       DefaultMenuLines,
			Terminal:        "xterm",
		},
		Menu:           ConfigSection(f.Section("dmenu").KeysHash()),
		MenuPassphrase: ConfigSection(f.Section("dmenu_passphrase").KeysHash()),
	}

	db := f.Section("database").KeysHash()

	if v, ok := db["pw_cache_period_min"]; ok {
		mins, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil || mins < 0 {
			return nil, &ConfigError{Key: "pw_cache_period_min", Reason: fmt.Sprintf("must be a non-negative integer, got %q", v)}
		}
		cfg.Policy.CachePeriod = time.Duration(mins) * time.Minute
	}
	if v, ok := db["autotype_default"]; ok && v != "" {
		cfg.Policy.AutotypeDefault = v
	}
	if v, ok := db["hide_groups"]; ok {
		for _, g := range strings.Split(v, ",") {
			if g = strings.TrimSpace(g); g != "" {
				cfg.Policy.HideGroups = append(cfg.Policy.HideGroups, g)
			}
		}
	}
	cfg.Policy.TypeLibrary = db["type_library"]
	cfg.Policy.GUIEditor = db["gui_editor"]
	if v, ok := db["editor"]; ok {
		cfg.Policy.Editor = v
	} else if v := os.Getenv("EDITOR"); v != "" {
		cfg.Policy.Editor = v
	} else {
		cfg.Policy.Editor = "vim"
	}
	if v, ok := db["terminal"]; ok {
		cfg.Policy.Terminal = v
	}

	if v, ok := cfg.Menu["l"]; ok {
		lines, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil || lines < 1 {
			return nil, &ConfigError{Key: "l", Reason: fmt.Sprintf("must be a positive integer, got %q", v)}
		}
		cfg.Policy.MenuLines = lines
	}
	cfg.Policy.Pinentry = cfg.Menu["pinentry"]

	entries, err := scanDatabases(db)
	if err != nil {
		return nil, err
	}
	cfg.Databases = entries
	return cfg, nil
}

// scanDatabases discovers database_N keys by suffix index and groups
// the matching keyfile_N / password_N / password_cmd_N / keyring_N
// keys into DatabaseEntry records. Indices must be unique positive
// integers but need not be contiguous.
func scanDatabases(db map[string]string) ([]DatabaseEntry, error) {
	var entries []DatabaseEntry
	for key, val := range db {
		if !strings.HasPrefix(key, "database_") {
			continue
		}
		suffix := strings.TrimPrefix(key, "database_")
		idx, err := strconv.Atoi(suffix)
		if err != nil || idx < 1 {
			return nil, &ConfigError{Key: key, Reason: "suffix must be a positive integer"}
		}
		path := expandHome(strings.TrimSpace(val))
		if path == "" {
			return nil, &ConfigError{Key: key, Reason: "no resolvable database path"}
		}
		entry := DatabaseEntry{
			Index:       idx,
			Path:        path,
			Keyfile:     expandHome(db[fmt.Sprintf("keyfile_%d", idx)]),
			Password:    db[fmt.Sprintf("password_%d", idx)],
			PasswordCmd: db[fmt.Sprintf("password_cmd_%d", idx)],
			Keyring:     db[fmt.Sprintf("keyring_%d", idx)],
		}
		if entry.Password != "" && entry.PasswordCmd != "" {
			return nil, &ConfigError{
				Key:    fmt.Sprintf("password_%d", idx),
				Reason: fmt.Sprintf("both password_%d and password_cmd_%d are set; remove one", idx, idx),
			}
		}
		entries = append(entries, entry)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Index < entries[j].Index })
	return entries, nil
}
