package matcher

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"promptman/internal/rules"
)

const sentinel = "//enhance"

func TestMatchNoRules(t *testing.T) {
	assert.Equal(t, NoMatch, Match("anything", nil, sentinel).Kind)
	assert.Equal(t, NoMatch, Match("", nil, sentinel).Kind)
}

func TestMatchLegacyRule(t *testing.T) {
	rs := []rules.Rule{{Shortcut: "brb", Text: "be right back"}}

	got := Match("ok brb", rs, sentinel)
	assert.Equal(t, Result{
		Kind:        Expand,
		Trigger:     "brb",
		Shortcut:    "brb",
		Replacement: "be right back",
	}, got)

	assert.Equal(t, NoMatch, Match("brb ", rs, sentinel).Kind)
}

func TestMatchWrappedRule(t *testing.T) {
	rs := []rules.Rule{{Shortcut: "hi", Prepend: "/", Postpend: "!", Text: "Hello"}}

	got := Match("say /hi!", rs, sentinel)
	assert.Equal(t, Expand, got.Kind)
	assert.Equal(t, "/hi!", got.Trigger)
	assert.Equal(t, "Hello", got.Replacement)

	assert.Equal(t, NoMatch, Match("say hi", rs, sentinel).Kind)
	assert.Equal(t, NoMatch, Match("say /hi", rs, sentinel).Kind)
}

func TestMatchFirstRuleWins(t *testing.T) {
	rs := []rules.Rule{
		{Shortcut: "b", Text: "short"},
		{Shortcut: "ab", Text: "long"},
	}
	got := Match("xab", rs, sentinel)
	assert.Equal(t, "b", got.Shortcut)
	assert.Equal(t, "short", got.Replacement)

	rs[0], rs[1] = rs[1], rs[0]
	got = Match("xab", rs, sentinel)
	assert.Equal(t, "ab", got.Shortcut)
}

func TestMatchSentinelTakesPrecedence(t *testing.T) {
	rs := []rules.Rule{{Shortcut: "enhance", Text: "should not fire"}}

	got := Match("  make this better //enhance", rs, sentinel)
	assert.Equal(t, Enhance, got.Kind)
	assert.Equal(t, "make this better", got.Text)
	assert.Equal(t, "  make this better ", got.Prefix)
	assert.Equal(t, sentinel, got.Trigger)
}

func TestMatchSentinelWithEmptyText(t *testing.T) {
	assert.Equal(t, NoMatch, Match(sentinel, nil, sentinel).Kind)
	assert.Equal(t, NoMatch, Match("   "+sentinel, nil, sentinel).Kind)
}

func TestMatchEmptySentinelDisablesEnhancement(t *testing.T) {
	rs := []rules.Rule{{Shortcut: "x", Text: "X"}}
	assert.Equal(t, Expand, Match("x", rs, "").Kind)
}

func TestMatchDoesNotMutateRules(t *testing.T) {
	rs := []rules.Rule{{Shortcut: "a", Text: "A"}}
	before := append([]rules.Rule(nil), rs...)
	Match("a", rs, sentinel)
	assert.Equal(t, before, rs)
}
