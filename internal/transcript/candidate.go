// Package transcript normalizes recognized speech and decides which candidates are usable.
package transcript

import (
	"strings"
	"time"
	"unicode"
	"unicode/utf8"
)

// Source identifies which producer emitted a candidate.
type Source string

const (
	SourceBatch     Source = "batch"
	SourceStreaming Source = "streaming"
)

const (
	// SkipCheckMinLength is the acceptance floor when pronunciation scoring is skipped.
	SkipCheckMinLength = 2
	// StrictMinLength is the acceptance floor when a judge decides correctness.
	StrictMinLength = 3
)

// Candidate is one transcript produced by either the batch or streaming producer.
type Candidate struct {
	Source     Source
	Text       string
	Confidence float64
	Final      bool
	Timestamp  time.Time
}

// Normalize lowercases text, strips punctuation, and collapses whitespace.
func Normalize(raw string) string {
	lowered := strings.ToLower(raw)
	stripped := strings.Map(func(r rune) rune {
		if unicode.IsPunct(r) || unicode.IsSymbol(r) {
			return -1
		}
		return r
	}, lowered)
	return strings.Join(strings.Fields(stripped), " ")
}

// Rule is the acceptance rule applied identically to both producers.
type Rule struct {
	MinLength int
}

// NewRule builds the acceptance rule for one session.
//
// Strict mode never demands more characters than the normalized target has,
// so short targets such as "go" stay reachable.
func NewRule(skipCheck bool, target string, strictMin int, skipMin int) Rule {
	if skipMin <= 0 {
		skipMin = SkipCheckMinLength
	}
	if strictMin <= 0 {
		strictMin = StrictMinLength
	}
	if skipCheck {
		return Rule{MinLength: skipMin}
	}

	floor := strictMin
	if n := utf8.RuneCountInString(Normalize(target)); n > 0 && n < floor {
		floor = n
	}
	if floor < skipMin {
		floor = skipMin
	}
	return Rule{MinLength: floor}
}

// Accept normalizes a candidate and reports whether it is long enough to act on.
func (r Rule) Accept(c Candidate) (string, bool) {
	normalized := Normalize(c.Text)
	if normalized == "" {
		return "", false
	}
	if utf8.RuneCountInString(normalized) < r.MinLength {
		return normalized, false
	}
	return normalized, true
}
