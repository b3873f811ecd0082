//go:build linux

package osutils

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestInputHintsMissingUinput(t *testing.T) {
	orig := uinputPath
	uinputPath = filepath.Join(t.TempDir(), "uinput")
	t.Cleanup(func() { uinputPath = orig })

	hints := InputHints()
	if assert.NotEmpty(t, hints) {
		assert.True(t, strings.HasPrefix(hints[0], uinputPath))
	}
}

func TestInputHintsWritableUinput(t *testing.T) {
	orig := uinputPath
	uinputPath = filepath.Join(t.TempDir(), "uinput")
	t.Cleanup(func() { uinputPath = orig })
	assert.NoError(t, os.WriteFile(uinputPath, nil, 0600))

	for _, h := range InputHints() {
		assert.NotContains(t, h, uinputPath)
	}
}

func TestIsAdminMatchesEUID(t *testing.T) {
	assert.Equal(t, os.Geteuid() == 0, IsAdmin())
}
