package actuator

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"promptman/internal/input/inputtest"
)

func TestReplaceErasesTriggerAndTypesReplacement(t *testing.T) {
	screen := inputtest.NewScreen("say /hi!")
	a := New(screen, 0)

	require.NoError(t, a.Replace("/hi!", "Hello"))
	assert.Equal(t, "say Hello", screen.String())
	assert.Equal(t, "<<<<[Hello]", screen.Transcript())
}

func TestReplaceStripsTrailingWhitespace(t *testing.T) {
	screen := inputtest.NewScreen("sig")
	a := New(screen, 0)

	require.NoError(t, a.Replace("sig", "Best regards,\nAnna\n\n  "))
	assert.Equal(t, []string{"Best regards,\nAnna"}, screen.Typed())
}

func TestTypeStripsUnicodeTrailingWhitespace(t *testing.T) {
	screen := inputtest.NewScreen("")
	a := New(screen, 0)

	require.NoError(t, a.Type("Hello\v\f\u00a0\u2003 \r\n"))
	assert.Equal(t, []string{"Hello"}, screen.Typed())

	require.NoError(t, a.Type("\u00a0\t"))
	assert.Equal(t, []string{"Hello"}, screen.Typed())
}

func TestReplaceCountsRunesNotBytes(t *testing.T) {
	screen := inputtest.NewScreen("é→")
	a := New(screen, 0)

	require.NoError(t, a.Replace("é→", "ok"))
	assert.Equal(t, 2, screen.Backspaces())
	assert.Equal(t, "ok", screen.String())
}

func TestReplacePacesBackspaces(t *testing.T) {
	screen := inputtest.NewScreen("abc")
	a := New(screen, DefaultPace)

	var slept []time.Duration
	a.sleep = func(d time.Duration) { slept = append(slept, d) }

	require.NoError(t, a.Replace("abc", "x"))
	assert.Equal(t, []time.Duration{DefaultPace, DefaultPace, DefaultPace}, slept)
}

func TestTypeFailureIsReported(t *testing.T) {
	screen := inputtest.NewScreen("")
	boom := errors.New("denied")
	screen.FailTyping(boom)

	err := New(screen, 0).Type("hello")
	assert.ErrorIs(t, err, boom)
}

func TestConcurrentOperationsDoNotInterleave(t *testing.T) {
	screen := inputtest.NewScreen("")
	a := New(screen, 0)

	var wg sync.WaitGroup
	for range 20 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, a.Replace("xyz", "ok"))
		}()
	}
	wg.Wait()

	// Every replace is a contiguous <<<[ok] group.
	ops := screen.Ops()
	require.Len(t, ops, 20*4)
	for i := 0; i < len(ops); i += 4 {
		assert.True(t, ops[i].Backspace && ops[i+1].Backspace && ops[i+2].Backspace)
		assert.Equal(t, "ok", ops[i+3].Text)
	}
}
