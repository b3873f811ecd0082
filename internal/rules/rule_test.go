package rules

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRuleTrigger(t *testing.T) {
	r := Rule{Shortcut: "hi", Prepend: "/", Postpend: "!", Text: "Hello"}
	assert.Equal(t, "/hi!", r.Trigger())
	assert.Equal(t, "Hello", r.Replacement())
	assert.False(t, r.Legacy())

	assert.True(t, Rule{Shortcut: "sig", Text: "Regards"}.Legacy())
}

func TestRuleValidate(t *testing.T) {
	assert.NoError(t, Rule{Shortcut: ";addr"}.Validate())

	for _, bad := range []string{"", "my sig", "tab\there", "nl\n"} {
		err := Rule{Shortcut: bad, Text: "x"}.Validate()
		assert.ErrorIs(t, err, ErrInvalidShortcut, "shortcut %q", bad)
	}
}

func TestDecodeMapMixedFormsKeepsOrder(t *testing.T) {
	data := []byte(`{
		"zz": "last letter",
		"hi": {"prepend": "/", "postpend": "!", "text": "Hello"},
		"aa": {"text": "no wrapping"}
	}`)

	got, err := DecodeMap(data)
	require.NoError(t, err)
	require.Len(t, got, 3)

	assert.Equal(t, Rule{Shortcut: "zz", Text: "last letter"}, got[0])
	assert.Equal(t, Rule{Shortcut: "hi", Prepend: "/", Postpend: "!", Text: "Hello"}, got[1])
	assert.Equal(t, Rule{Shortcut: "aa", Text: "no wrapping"}, got[2])
}

func TestDecodeMapDuplicateKeyOverwritesInPlace(t *testing.T) {
	got, err := DecodeMap([]byte(`{"a": "1", "b": "2", "a": "3"}`))
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "a", got[0].Shortcut)
	assert.Equal(t, "3", got[0].Text)
}

func TestDecodeMapMalformed(t *testing.T) {
	for _, data := range []string{`[1,2]`, `{"a": 5}`, `{"a": "x"`, `not json`} {
		_, err := DecodeMap([]byte(data))
		assert.Error(t, err, "input %s", data)
	}
}

func TestEncodeMapWritesLegacyAndStructured(t *testing.T) {
	rules := []Rule{
		{Shortcut: "sig", Text: "Regards"},
		{Shortcut: "hi", Prepend: "/", Postpend: "!", Text: "Hello"},
	}
	data, err := EncodeMap(rules)
	require.NoError(t, err)

	assert.Contains(t, string(data), `"sig": "Regards"`)
	assert.Contains(t, string(data), `"hi": {"prepend":"/","postpend":"!","text":"Hello"}`)

	back, err := DecodeMap(data)
	require.NoError(t, err)
	assert.Equal(t, rules, back)
}

func TestEncodeMapEmpty(t *testing.T) {
	data, err := EncodeMap(nil)
	require.NoError(t, err)
	assert.Equal(t, "{}\n", string(data))
}
