// Package valuemap recodes scalar values through reusable, ordered pattern
// tables.
//
// A ValueMapping's table is scanned in order and the first entry whose
// pattern satisfies the mapping's match strategy wins, even when a later
// entry would also match. Values and patterns are compared in their string
// form after Unicode NFC normalization and, unless the comparison is case
// sensitive, Unicode case folding.
package valuemap

import (
	"errors"
	"fmt"
)

// MatchType selects how table patterns are compared with a value.
type MatchType string

const (
	MatchExact    MatchType = "exact"
	MatchRegex    MatchType = "regex"
	MatchRange    MatchType = "range"
	MatchContains MatchType = "contains"
	MatchPrefix   MatchType = "prefix"
	MatchSuffix   MatchType = "suffix"
	MatchCustom   MatchType = "custom"
)

// Valid reports whether t is a known match type.
func (t MatchType) Valid() bool {
	switch t {
	case MatchExact, MatchRegex, MatchRange, MatchContains, MatchPrefix, MatchSuffix, MatchCustom:
		return true
	}
	return false
}

// confidence reported for a successful match of each strategy.
var confidence = map[MatchType]float64{
	MatchExact:    1.0,
	MatchRegex:    0.9,
	MatchRange:    1.0,
	MatchContains: 0.8,
	MatchPrefix:   0.9,
	MatchSuffix:   0.9,
}

// ErrNotFound is returned by a Source when no value mapping has the
// requested id.
var ErrNotFound = errors.New("value mapping not found")

// Entry is one row of a pattern table.
type Entry struct {
	Pattern string `json:"pattern" yaml:"pattern"`
	Value   any    `json:"value" yaml:"value"`
}

// ValueMapping is a named pattern table. Default, when non-nil, replaces
// unmatched values; otherwise unmatched values pass through unchanged.
type ValueMapping struct {
	ID            string    `json:"id" yaml:"id"`
	Name          string    `json:"name,omitempty" yaml:"name,omitempty"`
	MatchType     MatchType `json:"matchType" yaml:"matchType"`
	Table         []Entry   `json:"table" yaml:"table"`
	CaseSensitive bool      `json:"caseSensitive,omitempty" yaml:"caseSensitive,omitempty"`
	Default       any       `json:"defaultValue,omitempty" yaml:"defaultValue,omitempty"`
}

// Validate checks the mapping's own consistency. Individual bad table
// entries are not errors; they are skipped at match time.
func (m *ValueMapping) Validate() error {
	if m.ID == "" {
		return fmt.Errorf("value mapping: id is required")
	}
	if !m.MatchType.Valid() {
		return fmt.Errorf("value mapping %s: unknown match type %q", m.ID, m.MatchType)
	}
	return nil
}

// Result is the outcome of recoding one value.
type Result struct {
	Matched    bool    `json:"matched"`
	Value      any     `json:"value"`
	Confidence float64 `json:"confidence"`
	// Index of the winning table entry, -1 when nothing matched.
	Index int `json:"index"`
}
