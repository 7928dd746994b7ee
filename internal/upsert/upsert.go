// Package upsert decides whether a transformed document inserts a new
// record or updates an existing one, and computes the document to persist.
package upsert

import (
	"errors"
	"fmt"
	"strings"

	"github.com/edtacey/jsonmapper/internal/document"
	"github.com/edtacey/jsonmapper/internal/fieldpath"
)

// Operation is the persistence action a reconciliation decided on.
type Operation string

const (
	OpInsert Operation = "insert"
	OpUpdate Operation = "update"
	OpSkip   Operation = "skip"
)

// Resolution selects what happens when a matching record exists.
type Resolution string

const (
	ResolveUpdate Resolution = "update"
	ResolveMerge  Resolution = "merge"
	ResolveSkip   Resolution = "skip"
	ResolveError  Resolution = "error"
)

// MergeStrategy selects how ResolveMerge combines documents.
type MergeStrategy string

const (
	MergeShallow MergeStrategy = "shallow"
	MergeDeep    MergeStrategy = "deep"
)

// Policy configures reconciliation. An empty ConflictResolution means
// update and an empty MergeStrategy means shallow.
type Policy struct {
	UniqueFields       []string      `json:"uniqueFields" yaml:"uniqueFields"`
	ConflictResolution Resolution    `json:"conflictResolution,omitempty" yaml:"conflictResolution,omitempty"`
	MergeStrategy      MergeStrategy `json:"mergeStrategy,omitempty" yaml:"mergeStrategy,omitempty"`
	// CompareFields, when set, turns an update that leaves all of these
	// fields unchanged into a skip.
	CompareFields []string `json:"compareFields,omitempty" yaml:"compareFields,omitempty"`
}

// Validate checks the policy's enumerations and paths.
func (p Policy) Validate() error {
	var errs []error
	switch p.ConflictResolution {
	case "", ResolveUpdate, ResolveMerge, ResolveSkip, ResolveError:
	default:
		errs = append(errs, fmt.Errorf("unknown conflict resolution %q", p.ConflictResolution))
	}
	switch p.MergeStrategy {
	case "", MergeShallow, MergeDeep:
	default:
		errs = append(errs, fmt.Errorf("unknown merge strategy %q", p.MergeStrategy))
	}
	for _, f := range append(append([]string(nil), p.UniqueFields...), p.CompareFields...) {
		if _, err := fieldpath.Parse(f); err != nil {
			errs = append(errs, fmt.Errorf("field %q: %w", f, err))
		}
	}
	return errors.Join(errs...)
}

// ConflictError is returned when a match exists and the policy's
// resolution is "error".
type ConflictError struct {
	UniqueFields []string
	Values       []any
}

// Error implements the error interface.
func (e *ConflictError) Error() string {
	parts := make([]string, len(e.UniqueFields))
	for i, f := range e.UniqueFields {
		parts[i] = fmt.Sprintf("%s=%s", f, document.Stringify(e.Values[i]))
	}
	return "conflict: record already exists with " + strings.Join(parts, ", ")
}

// IsConflictError returns true if the error is a ConflictError.
// Uses errors.As to handle wrapped errors.
func IsConflictError(err error) bool {
	var ce *ConflictError
	return errors.As(err, &ce)
}

// Outcome is the result of a reconciliation.
type Outcome struct {
	Operation Operation      `json:"operation"`
	Final     map[string]any `json:"finalDoc"`
	// Existing is the matched record, nil on insert.
	Existing map[string]any `json:"existing,omitempty"`
}

// Reconcile matches newDoc against candidates on the policy's unique
// fields and applies the conflict resolution to the first match. The
// inputs are not modified; Final never aliases them.
func Reconcile(newDoc map[string]any, candidates []map[string]any, p Policy) (*Outcome, error) {
	if err := p.Validate(); err != nil {
		return nil, fmt.Errorf("upsert policy: %w", err)
	}

	existing, ok := FindMatch(newDoc, candidates, p.UniqueFields)
	if !ok {
		return &Outcome{Operation: OpInsert, Final: document.CloneObject(newDoc)}, nil
	}

	var final map[string]any
	switch p.ConflictResolution {
	case ResolveSkip:
		return skip(existing), nil
	case ResolveError:
		return nil, &ConflictError{UniqueFields: p.UniqueFields, Values: uniqueValues(newDoc, p.UniqueFields)}
	case ResolveMerge:
		if p.MergeStrategy == MergeDeep {
			final = document.MergeDeep(existing, newDoc)
		} else {
			final = document.MergeShallow(existing, newDoc)
		}
	default:
		final = document.MergeShallow(existing, newDoc)
	}

	if len(p.CompareFields) > 0 && unchanged(existing, final, p.CompareFields) {
		return skip(existing), nil
	}
	return &Outcome{Operation: OpUpdate, Final: final, Existing: document.CloneObject(existing)}, nil
}

func skip(existing map[string]any) *Outcome {
	return &Outcome{
		Operation: OpSkip,
		Final:     document.CloneObject(existing),
		Existing:  document.CloneObject(existing),
	}
}

// FindMatch returns the first candidate that equals newDoc on every unique
// field. Array values compare as multisets, objects structurally and
// scalars by value. A newDoc lacking a unique field, or an empty field
// list, matches nothing.
func FindMatch(newDoc map[string]any, candidates []map[string]any, uniqueFields []string) (map[string]any, bool) {
	if len(uniqueFields) == 0 {
		return nil, false
	}
	want := make([]any, len(uniqueFields))
	for i, f := range uniqueFields {
		v, ok := fieldpath.ResolveString(newDoc, f)
		if !ok {
			return nil, false
		}
		want[i] = v
	}

	for _, cand := range candidates {
		if matches(cand, uniqueFields, want) {
			return cand, true
		}
	}
	return nil, false
}

func matches(cand map[string]any, fields []string, want []any) bool {
	for i, f := range fields {
		got, ok := fieldpath.ResolveString(cand, f)
		if !ok || !document.EqualUnordered(got, want[i]) {
			return false
		}
	}
	return true
}

func uniqueValues(doc map[string]any, fields []string) []any {
	out := make([]any, len(fields))
	for i, f := range fields {
		out[i], _ = fieldpath.ResolveString(doc, f)
	}
	return out
}

func unchanged(before, after map[string]any, fields []string) bool {
	for _, f := range fields {
		a, aok := fieldpath.ResolveString(before, f)
		b, bok := fieldpath.ResolveString(after, f)
		if aok != bok || !document.Equal(a, b) {
			return false
		}
	}
	return true
}
