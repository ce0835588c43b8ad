package subtitle

import (
	"errors"
	"fmt"
	"strings"
)

// Policy selects how a segment's text is broken into cues before time
// redistribution.
type Policy string

const (
	PolicyWord     Policy = "word"
	PolicyComma    Policy = "comma"
	PolicySentence Policy = "sentence"
	PolicyNone     Policy = "none"
)

// ErrUnsupportedPolicy marks an unknown split policy. It is a caller error,
// rejected before any processing happens.
var ErrUnsupportedPolicy = errors.New("unsupported split policy")

// ParsePolicy validates a user-supplied split mode string.
func ParsePolicy(s string) (Policy, error) {
	switch p := Policy(strings.ToLower(strings.TrimSpace(s))); p {
	case PolicyWord, PolicyComma, PolicySentence, PolicyNone:
		return p, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnsupportedPolicy, s)
}

// CollapseLines joins the trimmed, non-empty lines of text with single
// spaces, turning a multi-line cue into one line.
func CollapseLines(text string) string {
	var parts []string
	for _, line := range strings.Split(text, "\n") {
		if s := strings.TrimSpace(line); s != "" {
			parts = append(parts, s)
		}
	}
	return strings.Join(parts, " ")
}

// Split breaks text according to policy. Parts are trimmed and empty parts
// dropped; PolicyNone yields the collapsed text as a single part. Empty input
// yields no parts.
func Split(text string, policy Policy) []string {
	merged := CollapseLines(text)
	if merged == "" {
		return nil
	}
	switch policy {
	case PolicyWord:
		return strings.Fields(merged)
	case PolicyComma:
		return splitDropping(merged, isComma)
	case PolicySentence:
		return splitAfter(merged, isSentenceEnd)
	default:
		return []string{merged}
	}
}

func isComma(r rune) bool { return r == ',' || r == '，' }

func isSentenceEnd(r rune) bool {
	switch r {
	case '.', '!', '?', '。', '！', '？':
		return true
	}
	return false
}

// splitDropping splits at delimiter runes, discarding the delimiters. Runs of
// delimiters collapse because empty parts are dropped.
func splitDropping(s string, delim func(rune) bool) []string {
	var parts []string
	var b strings.Builder
	flush := func() {
		if t := strings.TrimSpace(b.String()); t != "" {
			parts = append(parts, t)
		}
		b.Reset()
	}
	for _, r := range s {
		if delim(r) {
			flush()
			continue
		}
		b.WriteRune(r)
	}
	flush()
	return parts
}

// splitAfter splits immediately after terminator runes, keeping them attached
// to the preceding part.
func splitAfter(s string, term func(rune) bool) []string {
	var parts []string
	var b strings.Builder
	flush := func() {
		if t := strings.TrimSpace(b.String()); t != "" {
			parts = append(parts, t)
		}
		b.Reset()
	}
	for _, r := range s {
		b.WriteRune(r)
		if term(r) {
			flush()
		}
	}
	flush()
	return parts
}
