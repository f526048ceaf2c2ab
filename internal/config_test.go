package internal

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.ini")
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))
	return path
}

func TestResolveDefaults(t *testing.T) {
	path := writeConfig(t, `[database]
database_1 = /tmp/db.kdbx
`)
	cfg, err := Resolve(path)
	require.NoError(t, err)

	assert.Equal(t, CachePeriodDefaultMin*time.Minute, cfg.Policy.CachePeriod)
	assert.Equal(t, DefaultSequence, cfg.Policy.AutotypeDefault)
	assert.Equal(t, DefaultMenuLines, cfg.Policy.MenuLines)
	assert.Equal(t, "xterm", cfg.Policy.Terminal)
	require.Len(t, cfg.Databases, 1)
	assert.Equal(t, 1, cfg.Databases[0].Index)
	assert.Equal(t, "/tmp/db.kdbx", cfg.Databases[0].Path)
}

func TestResolveSuffixDiscovery(t *testing.T) {
	// Indices need not be contiguous, only unique positive integers.
	path := writeConfig(t, `[database]
database_1 = /tmp/a.kdbx
keyfile_1 = /tmp/a.key
database_7 = /tmp/b.kdbx
password_7 = hunter2
`)
	cfg, err := Resolve(path)
	require.NoError(t, err)
	require.Len(t, cfg.Databases, 2)

	assert.Equal(t, 1, cfg.Databases[0].Index)
	assert.Equal(t, "/tmp/a.key", cfg.Databases[0].Keyfile)
	assert.Empty(t, cfg.Databases[0].Password)

	assert.Equal(t, 7, cfg.Databases[1].Index)
	assert.Equal(t, "hunter2", cfg.Databases[1].Password)
}

func TestResolveAmbiguousPasswordSource(t *testing.T) {
	path := writeConfig(t, `[database]
database_1 = /tmp/db.kdbx
password_1 = hunter2
password_cmd_1 = secret-tool lookup keepass db
`)
	_, err := Resolve(path)
	var cfgErr *ConfigError
	require.True(t, errors.As(err, &cfgErr))
	assert.Contains(t, cfgErr.Error(), "password_1")
}

func TestResolveEmptyDatabasePath(t *testing.T) {
	path := writeConfig(t, `[database]
database_1 =
`)
	_, err := Resolve(path)
	var cfgErr *ConfigError
	require.True(t, errors.As(err, &cfgErr))
}

func TestResolveBadSuffix(t *testing.T) {
	for _, content := range []string{
		"[database]\ndatabase_x = /tmp/db.kdbx\n",
		"[database]\ndatabase_0 = /tmp/db.kdbx\n",
		"[database]\ndatabase_-2 = /tmp/db.kdbx\n",
	} {
		path := writeConfig(t, content)
		_, err := Resolve(path)
		var cfgErr *ConfigError
		assert.True(t, errors.As(err, &cfgErr), "content %q", content)
	}
}

func TestResolveCachePeriod(t *testing.T) {
	path := writeConfig(t, `[database]
database_1 = /tmp/db.kdbx
pw_cache_period_min = 5
`)
	cfg, err := Resolve(path)
	require.NoError(t, err)
	assert.Equal(t, 5*time.Minute, cfg.Policy.CachePeriod)

	path = writeConfig(t, `[database]
database_1 = /tmp/db.kdbx
pw_cache_period_min = -1
`)
	_, err = Resolve(path)
	var cfgErr *ConfigError
	require.True(t, errors.As(err, &cfgErr))
}

func TestResolveHideGroups(t *testing.T) {
	path := writeConfig(t, `[database]
database_1 = /tmp/db.kdbx
hide_groups = Recycle Bin, Archive ,
`)
	cfg, err := Resolve(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"Recycle Bin", "Archive"}, cfg.Policy.HideGroups)
}

func TestResolveHomeExpansion(t *testing.T) {
	t.Setenv("HOME", "/home/tester")
	path := writeConfig(t, `[database]
database_1 = ~/vault.kdbx
keyfile_1 = ~/vault.key
`)
	cfg, err := Resolve(path)
	require.NoError(t, err)
	assert.Equal(t, "/home/tester/vault.kdbx", cfg.Databases[0].Path)
	assert.Equal(t, "/home/tester/vault.key", cfg.Databases[0].Keyfile)
}

func TestResolveMenuSections(t *testing.T) {
	path := writeConfig(t, `[dmenu]
dmenu_command = rofi
fn = Inconsolata-12
l = 10
pinentry = pinentry-gtk

[dmenu_passphrase]
nf = #222222
nb = #222222

[database]
database_1 = /tmp/db.kdbx
`)
	cfg, err := Resolve(path)
	require.NoError(t, err)
	assert.Equal(t, 10, cfg.Policy.MenuLines)
	assert.Equal(t, "pinentry-gtk", cfg.Policy.Pinentry)
	// Color values must survive inline-comment handling.
	assert.Equal(t, "#222222", cfg.MenuPassphrase["nf"])
	assert.Equal(t, "rofi", cfg.Menu["dmenu_command"])
}

func TestWriteDefault(t *testing.T) {
	path := filepath.Join(t.TempDir(), "keymenu", "config.ini")
	require.NoError(t, WriteDefault(path))

	// The starter config resolves cleanly with zero databases.
	cfg, err := Resolve(path)
	require.NoError(t, err)
	assert.Empty(t, cfg.Databases)
	assert.Equal(t, CachePeriodDefaultMin*time.Minute, cfg.Policy.CachePeriod)

	// A second call must not clobber an existing file.
	require.NoError(t, os.WriteFile(path, []byte("[database]\ndatabase_1 = /tmp/x.kdbx\n"), 0600))
	require.NoError(t, WriteDefault(path))
	cfg, err = Resolve(path)
	require.NoError(t, err)
	require.Len(t, cfg.Databases, 1)
}
