// Package diff computes field-level changes between two document versions.
package diff

import (
	"github.com/edtacey/jsonmapper/internal/document"
)

// Operation classifies a change.
type Operation string

const (
	OpAdd    Operation = "add"
	OpUpdate Operation = "update"
	OpDelete Operation = "delete"
)

// Change is one field-level difference. Field is the dotted path of the
// changed value.
type Change struct {
	Field     string    `json:"field"`
	OldValue  any       `json:"oldValue"`
	NewValue  any       `json:"newValue"`
	Operation Operation `json:"operation"`
}

// Diff walks the union of keys of before and after. Keys present on one side
// only are adds or deletes; values that are objects on both sides are
// walked recursively; other values that differ structurally are updates.
// Keys are visited in sorted order, so the result is deterministic, and
// Diff(x, x) is empty. A nil before document reports every field as added.
func Diff(before, after map[string]any) []Change {
	changes := []Change{}
	walk("", before, after, &changes)
	return changes
}

func walk(prefix string, before, after map[string]any, out *[]Change) {
	keys := make(map[string]any, len(before)+len(after))
	for k := range before {
		keys[k] = nil
	}
	for k := range after {
		keys[k] = nil
	}

	for _, k := range document.SortedKeys(keys) {
		field := k
		if prefix != "" {
			field = prefix + "." + k
		}
		ov, inOld := before[k]
		nv, inNew := after[k]
		switch {
		case !inOld:
			*out = append(*out, Change{Field: field, NewValue: document.Clone(nv), Operation: OpAdd})
		case !inNew:
			*out = append(*out, Change{Field: field, OldValue: document.Clone(ov), Operation: OpDelete})
		default:
			oo, oobj := ov.(map[string]any)
			no, nobj := nv.(map[string]any)
			if oobj && nobj {
				walk(field, oo, no, out)
				continue
			}
			if !document.Equal(ov, nv) {
				*out = append(*out, Change{
					Field:     field,
					OldValue:  document.Clone(ov),
					NewValue:  document.Clone(nv),
					Operation: OpUpdate,
				})
			}
		}
	}
}

// Fields returns the changed field paths in order.
func Fields(changes []Change) []string {
	out := make([]string, len(changes))
	for i, c := range changes {
		out[i] = c.Field
	}
	return out
}
