package gemini

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"promptman/internal/enhance"
)

type fakeBackend struct {
	models   []string
	listErr  error
	reply    string
	genErr   error
	gotModel string
	gotText  string
}

func (f *fakeBackend) Generate(_ context.Context, model, prompt string) (string, error) {
	f.gotModel, f.gotText = model, prompt
	return f.reply, f.genErr
}

func (f *fakeBackend) Models(context.Context) ([]string, error) {
	return f.models, f.listErr
}

func newTestClient(t *testing.T, pinned string, fb *fakeBackend) *Client {
	t.Helper()
	c := New(pinned, zaptest.NewLogger(t))
	c.connect = func(_ context.Context, key string) (backend, error) {
		if key == "bad" {
			return nil, errors.New("rejected")
		}
		return fb, nil
	}
	return c
}

func TestPickModel(t *testing.T) {
	cases := []struct {
		name      string
		available []string
		want      string
	}{
		{"exact preferred wins", []string{"gemini-2.5-pro", "gemini-2.0-flash"}, "gemini-2.0-flash"},
		{"first preference", []string{"gemini-2.0-flash", "gemini-2.5-flash"}, "gemini-2.5-flash"},
		{"family match", []string{"gemma-3", "gemini-3.0-flash-preview"}, "gemini-3.0-flash-preview"},
		{"pro family", []string{"gemini-9-pro-exp"}, "gemini-9-pro-exp"},
		{"any flash", []string{"other-model", "x-flash"}, "x-flash"},
		{"first available", []string{"text-bison", "chat-bison"}, "text-bison"},
		{"nothing", nil, ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, pickModel(tc.available, PreferredModels))
		})
	}
}

func TestUnconfigured(t *testing.T) {
	c := New("", nil)
	assert.False(t, c.Configured())

	_, err := c.Enhance(context.Background(), "fix it")
	assert.ErrorIs(t, err, enhance.ErrNotConfigured)
}

func TestConfigureSelectsModelAndEnhances(t *testing.T) {
	fb := &fakeBackend{
		models: []string{"gemini-2.0-flash", "gemini-2.5-pro"},
		reply:  "  Identify and fix the failing test.\n",
	}
	c := newTestClient(t, "", fb)

	require.NoError(t, c.Configure(context.Background(), "key"))
	assert.True(t, c.Configured())
	assert.Equal(t, "gemini-2.0-flash", c.Model())

	out, err := c.Enhance(context.Background(), "fix test")
	require.NoError(t, err)
	assert.Equal(t, "Identify and fix the failing test.", out)
	assert.Equal(t, "gemini-2.0-flash", fb.gotModel)
	assert.True(t, strings.Contains(fb.gotText, `User Input: "fix test"`))
}

func TestConfigurePinnedModelSkipsListing(t *testing.T) {
	fb := &fakeBackend{listErr: errors.New("must not list")}
	c := newTestClient(t, "gemini-2.5-pro", fb)

	require.NoError(t, c.Configure(context.Background(), "key"))
	assert.Equal(t, "gemini-2.5-pro", c.Model())
}

func TestConfigureFallsBackWhenListingFails(t *testing.T) {
	fb := &fakeBackend{listErr: errors.New("forbidden")}
	c := newTestClient(t, "", fb)

	require.NoError(t, c.Configure(context.Background(), "key"))
	assert.Equal(t, FallbackModel, c.Model())
}

func TestConfigureErrors(t *testing.T) {
	c := newTestClient(t, "", &fakeBackend{})
	assert.Error(t, c.Configure(context.Background(), "bad"))
	assert.False(t, c.Configured())

	// No models at all.
	assert.Error(t, c.Configure(context.Background(), "key"))
	assert.False(t, c.Configured())
}

func TestConfigureEmptyKeyClears(t *testing.T) {
	c := newTestClient(t, "", &fakeBackend{models: []string{"gemini-2.5-flash"}})
	require.NoError(t, c.Configure(context.Background(), "key"))
	require.True(t, c.Configured())

	require.NoError(t, c.Configure(context.Background(), "   "))
	assert.False(t, c.Configured())
	assert.Equal(t, "", c.Model())
}

func TestEnhanceWrapsBackendError(t *testing.T) {
	boom := errors.New("quota exceeded")
	c := newTestClient(t, "m", &fakeBackend{genErr: boom})
	require.NoError(t, c.Configure(context.Background(), "key"))

	_, err := c.Enhance(context.Background(), "x")
	assert.ErrorIs(t, err, boom)
}
