package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	root := newRootCmd()
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0644))
	return path
}

func TestVersion(t *testing.T) {
	out, err := execute(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, version)
}

func TestRulesLifecycle(t *testing.T) {
	cfg := writeConfig(t, "[logging]\nlevel = \"error\"\n")

	out, err := execute(t, "--config", cfg, "rules", "add", "sig", "Best regards", "--prepend", "/")
	require.NoError(t, err)
	assert.Contains(t, out, "Added /sig")

	out, err = execute(t, "--config", cfg, "rules", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "/sig")
	assert.Contains(t, out, "Best regards")

	data, err := os.ReadFile(filepath.Join(filepath.Dir(cfg), "prompts.json"))
	require.NoError(t, err)
	assert.Contains(t, string(data), `"sig"`)

	_, err = execute(t, "--config", cfg, "rules", "delete", "sig")
	require.NoError(t, err)

	_, err = execute(t, "--config", cfg, "rules", "delete", "sig")
	assert.Error(t, err)
}

func TestRulesImportAndExport(t *testing.T) {
	cfg := writeConfig(t, "[general]\nrules_backend = \"sqlite\"\n[logging]\nlevel = \"error\"\n")
	src := filepath.Join(t.TempDir(), "prompts.json")
	require.NoError(t, os.WriteFile(src, []byte(`{"brb":"be right back","addr":{"prepend":":","postpend":":","text":"1 Main St"}}`), 0644))

	out, err := execute(t, "--config", cfg, "rules", "import", src)
	require.NoError(t, err)
	assert.Contains(t, out, "Imported 2 rules, 2 total")

	out, err = execute(t, "--config", cfg, "rules", "export")
	require.NoError(t, err)
	assert.Contains(t, out, `"brb": "be right back"`)
	assert.Contains(t, out, `"text":"1 Main St"`)
}

func TestRulesAddRejectsWhitespace(t *testing.T) {
	cfg := writeConfig(t, "[logging]\nlevel = \"error\"\n")
	_, err := execute(t, "--config", cfg, "rules", "add", "two words", "x")
	assert.Error(t, err)
}

func TestUIPrint(t *testing.T) {
	cfg := writeConfig(t, "[general]\napi_port = 5123\napi_token = \"s3cret\"\n[logging]\nlevel = \"error\"\n")
	out, err := execute(t, "--config", cfg, "ui", "--print")
	require.NoError(t, err)
	assert.Contains(t, out, "127.0.0.1:5123")
	assert.Contains(t, out, "token=s3cret")
}

func TestSummarize(t *testing.T) {
	assert.Equal(t, "short", summarize("short", 10))
	assert.Equal(t, "a b", summarize("a\nb", 10))
	assert.Equal(t, "abcd…", summarize("abcdefgh", 5))
}
