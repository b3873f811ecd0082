// Package rules stores text-expansion rules and persists them.
package rules

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"unicode"
)

var (
	// ErrInvalidShortcut is returned for empty shortcuts or shortcuts containing whitespace.
	ErrInvalidShortcut = errors.New("shortcut must be non-empty and contain no whitespace")
	// ErrNotFound is returned when deleting an unknown shortcut.
	ErrNotFound = errors.New("rule not found")
)

// Rule maps a shortcut to replacement text. The shortcut fires only when it
// is typed between Prepend and Postpend.
type Rule struct {
	Shortcut string `json:"shortcut"`
	Prepend  string `json:"prepend"`
	Postpend string `json:"postpend"`
	Text     string `json:"text"`
}

// Trigger returns the character sequence that fires the rule.
func (r Rule) Trigger() string {
	return r.Prepend + r.Shortcut + r.Postpend
}

// Replacement returns the text typed in place of the trigger.
func (r Rule) Replacement() string {
	return r.Text
}

// Legacy reports whether the rule has no wrapping and can be stored as a bare string.
func (r Rule) Legacy() bool {
	return r.Prepend == "" && r.Postpend == ""
}

// Validate checks the shortcut invariant.
func (r Rule) Validate() error {
	if r.Shortcut == "" || strings.IndexFunc(r.Shortcut, unicode.IsSpace) >= 0 {
		return fmt.Errorf("%q: %w", r.Shortcut, ErrInvalidShortcut)
	}
	return nil
}

// storedRule is the on-disk value of a rule: either a bare replacement
// string or an object with wrapping fields.
type storedRule struct {
	Prepend  string `json:"prepend"`
	Postpend string `json:"postpend"`
	Text     string `json:"text"`
}

// decodeValue resolves a stored value into a Rule.
func decodeValue(shortcut string, raw json.RawMessage) (Rule, error) {
	var text string
	if err := json.Unmarshal(raw, &text); err == nil {
		return Rule{Shortcut: shortcut, Text: text}, nil
	}
	var s storedRule
	if err := json.Unmarshal(raw, &s); err != nil {
		return Rule{}, fmt.Errorf("rule %q: %w", shortcut, err)
	}
	return Rule{Shortcut: shortcut, Prepend: s.Prepend, Postpend: s.Postpend, Text: s.Text}, nil
}

func encodeValue(r Rule) ([]byte, error) {
	if r.Legacy() {
		return json.Marshal(r.Text)
	}
	return json.Marshal(storedRule{Prepend: r.Prepend, Postpend: r.Postpend, Text: r.Text})
}

// DecodeMap parses a JSON object of shortcut -> value, keeping the
// object's key order. Values may be bare strings or wrapping objects.
func DecodeMap(data []byte) ([]Rule, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return nil, fmt.Errorf("decode rules: %w", err)
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return nil, fmt.Errorf("decode rules: expected object, got %v", tok)
	}

	var out []Rule
	seen := make(map[string]int)
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, fmt.Errorf("decode rules: %w", err)
		}
		key, ok := tok.(string)
		if !ok {
			return nil, fmt.Errorf("decode rules: unexpected key %v", tok)
		}
		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			return nil, fmt.Errorf("decode rules: %w", err)
		}
		rule, err := decodeValue(key, raw)
		if err != nil {
			return nil, err
		}
		// Later duplicates overwrite in place, like a JSON object would.
		if i, dup := seen[key]; dup {
			out[i] = rule
			continue
		}
		seen[key] = len(out)
		out = append(out, rule)
	}
	if _, err := dec.Token(); err != nil {
		return nil, fmt.Errorf("decode rules: %w", err)
	}
	return out, nil
}

// EncodeMap renders rules as an indented JSON object in slice order.
func EncodeMap(rules []Rule) ([]byte, error) {
	var b bytes.Buffer
	b.WriteString("{")
	for i, r := range rules {
		if i > 0 {
			b.WriteString(",")
		}
		key, err := json.Marshal(r.Shortcut)
		if err != nil {
			return nil, err
		}
		val, err := encodeValue(r)
		if err != nil {
			return nil, err
		}
		b.WriteString("\n  ")
		b.Write(key)
		b.WriteString(": ")
		b.Write(val)
	}
	if len(rules) > 0 {
		b.WriteString("\n")
	}
	b.WriteString("}\n")
	return b.Bytes(), nil
}
