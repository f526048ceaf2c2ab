package internal

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recordingTyper logs every Text/Key call in order.
type recordingTyper struct {
	calls []string
	err   error
}

func (r *recordingTyper) Text(s string) error {
	r.calls = append(r.calls, "text:"+s)
	return r.err
}

func (r *recordingTyper) Key(tok string) error {
	r.calls = append(r.calls, "key:"+tok)
	return r.err
}

func TestTokenizeSequence(t *testing.T) {
	cases := []struct {
		seq  string
		want []token
	}{
		{"{USERNAME}{TAB}{PASSWORD}{ENTER}", []token{
			{"{USERNAME}", true}, {"{TAB}", true}, {"{PASSWORD}", true}, {"{ENTER}", true},
		}},
		{"user@host", []token{
			{"user", false}, {"@", true}, {"host", false},
		}},
		{"plain text", []token{
			{"plain text", false},
		}},
		{"{}}", []token{
			{"{}}", true},
		}},
		{"a{DELAY 50}b", []token{
			{"a", false}, {"{DELAY 50}", true}, {"b", false},
		}},
		{"+^%~", []token{
			{"+", true}, {"^", true}, {"%", true}, {"~", true},
		}},
	}
	for _, c := range cases {
		got, err := tokenizeSequence(c.seq)
		require.NoError(t, err, c.seq)
		assert.Equal(t, c.want, got, c.seq)
	}
}

func TestTokenizeSequenceUnmatchedBrace(t *testing.T) {
	_, err := tokenizeSequence("{USERNAME")
	var atErr *AutotypeError
	require.ErrorAs(t, err, &atErr)
}

func TestExpandPlaceholders(t *testing.T) {
	e := Entry{
		Title:      "Mail",
		Username:   "alice",
		Password:   "s3cret",
		URL:        "https://mail.example.com",
		Attributes: map[string]string{"TOTP Seed": "abc123"},
	}

	out, err := ExpandPlaceholders("{USERNAME}:{PASSWORD}@{URL}", e)
	require.NoError(t, err)
	assert.Equal(t, "alice:s3cret@https://mail.example.com", out)

	out, err = ExpandPlaceholders("{S:TOTP Seed}", e)
	require.NoError(t, err)
	assert.Equal(t, "abc123", out)
}

func TestExpandPlaceholdersIdempotent(t *testing.T) {
	// Inputs with no recognized placeholder come back unchanged.
	for _, seq := range []string{
		"no tokens here",
		"{TAB}{ENTER}",
		"{S:Missing}",
		"literal {}} brace",
	} {
		out, err := ExpandPlaceholders(seq, Entry{})
		require.NoError(t, err, seq)
		assert.Equal(t, seq, out, seq)
	}
}

func TestTypeSequenceDefault(t *testing.T) {
	e := Entry{Username: "alice", Password: "s3cret"}
	rec := &recordingTyper{}

	require.NoError(t, TypeSequence(DefaultSequence, e, rec))
	assert.Equal(t, []string{
		"text:alice", "key:{TAB}", "text:s3cret", "key:{ENTER}",
	}, rec.calls)
}

func TestTypeSequenceLiteralsAndModifiers(t *testing.T) {
	rec := &recordingTyper{}
	require.NoError(t, TypeSequence("a{PLUS}b^c", Entry{}, rec))
	assert.Equal(t, []string{
		"text:a", "text:+", "text:b", "key:^", "text:c",
	}, rec.calls)
}

func TestTypeSequenceSkipsEmptyFields(t *testing.T) {
	// An empty username produces no Text call, not Text("").
	rec := &recordingTyper{}
	require.NoError(t, TypeSequence("{USERNAME}{TAB}", Entry{}, rec))
	assert.Equal(t, []string{"key:{TAB}"}, rec.calls)
}

func TestTypeEntryPrefersEntrySequence(t *testing.T) {
	e := Entry{Username: "alice", AutotypeSequence: "{USERNAME}{ENTER}"}
	rec := &recordingTyper{}
	require.NoError(t, TypeEntry(e, DefaultSequence, rec))
	assert.Equal(t, []string{"text:alice", "key:{ENTER}"}, rec.calls)
}

func TestTypeEntryDisabled(t *testing.T) {
	rec := &recordingTyper{}
	err := TypeEntry(Entry{AutotypeDisabled: true}, DefaultSequence, rec)
	var atErr *AutotypeError
	require.ErrorAs(t, err, &atErr)
	assert.Empty(t, rec.calls)
}

func TestCmdTyperUnsupportedToken(t *testing.T) {
	typer, err := NewTyper("xdotool")
	require.NoError(t, err)
	err = typer.Key("{BOGUS}")
	var atErr *AutotypeError
	require.ErrorAs(t, err, &atErr)
	assert.Equal(t, "{BOGUS}", atErr.Token)
}

func TestNewTyperUnknownLibrary(t *testing.T) {
	_, err := NewTyper("pyautogui")
	var cfgErr *ConfigError
	require.ErrorAs(t, err, &cfgErr)
}
