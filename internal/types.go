package internal

import "time"

// DatabaseEntry is one configured database, discovered from the
// suffix-indexed database_N keys of the [database] section.
type DatabaseEntry struct {
	Index       int
	Path        string
	Keyfile     string
	Password    string // literal passphrase (password_N)
	PasswordCmd string // command whose stdout is the passphrase (password_cmd_N)
	Keyring     string // "service/account" keychain reference (keyring_N, macOS only)
}

// Entry is a single credential record inside an unlocked database.
// Group is the slash-separated group path, without the title.
type Entry struct {
	Title            string
	Group            string
	Username         string
	Password         string
	URL              string
	Notes            string
	Attributes       map[string]string
	AutotypeSequence string
	AutotypeDisabled bool
}

// Path returns the full "Group/Title" path used in menu listings.
func (e Entry) Path() string {
	if e.Group == "" {
		return e.Title
	}
	return e.Group + "/" + e.Title
}

// Database is the opaque decrypted handle produced by an Unlocker.
// Entries lists titles and group paths; Resolve fills in the
// credential fields for one listed entry.
type Database interface {
	Entries() ([]Entry, error)
	Resolve(e *Entry) error
}

// CachedSession is an unlocked database held by the session cache.
// It is usable only while the clock is before ExpiresAt.
type CachedSession struct {
	ID        string
	Entry     DatabaseEntry
	Handle    Database
	CreatedAt time.Time
	ExpiresAt time.Time
}
