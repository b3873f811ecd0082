// Package matcher decides what, if anything, the current keystroke buffer triggers.
package matcher

import (
	"strings"

	"promptman/internal/rules"
)

// Kind is the outcome of a match.
type Kind int

const (
	// NoMatch means nothing fires.
	NoMatch Kind = iota
	// Expand means a rule's trigger was typed.
	Expand
	// Enhance means the enhancement sentinel was typed after some text.
	Enhance
)

func (k Kind) String() string {
	switch k {
	case Expand:
		return "expand"
	case Enhance:
		return "enhance"
	default:
		return "none"
	}
}

// Result describes the decision.
type Result struct {
	Kind Kind

	// Trigger is the on-screen suffix that fired: the rule trigger or the sentinel.
	Trigger string

	// Shortcut and Replacement are set for Expand.
	Shortcut    string
	Replacement string

	// Text is the trimmed text to enhance; Prefix is the same text as it
	// appears on screen, before trimming. Both are set for Enhance.
	Text   string
	Prefix string
}

// Match inspects buffer against the sentinel first, then against rules in
// order. The first rule whose trigger ends the buffer wins, even if a later
// rule has a longer matching trigger.
func Match(buffer string, rs []rules.Rule, sentinel string) Result {
	if sentinel != "" && strings.HasSuffix(buffer, sentinel) {
		prefix := strings.TrimSuffix(buffer, sentinel)
		text := strings.TrimSpace(prefix)
		if text == "" {
			return Result{Kind: NoMatch}
		}
		return Result{Kind: Enhance, Trigger: sentinel, Text: text, Prefix: prefix}
	}

	for _, r := range rs {
		trigger := r.Trigger()
		if trigger == "" || !strings.HasSuffix(buffer, trigger) {
			continue
		}
		return Result{
			Kind:        Expand,
			Trigger:     trigger,
			Shortcut:    r.Shortcut,
			Replacement: r.Replacement(),
		}
	}
	return Result{Kind: NoMatch}
}
