package fieldpath

import "github.com/edtacey/jsonmapper/internal/document"

// Resolve evaluates p against doc. Object segments descend into properties;
// an "[]" segment descends into the first element of the array, which is the
// value preview and single-context rule execution operate on.
//
// Resolve reports false when any step is absent or has the wrong shape. A
// present null value resolves to (nil, true).
func Resolve(doc any, p Path) (any, bool) {
	cur := doc
	for _, seg := range p.segments {
		obj, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		next, ok := obj[seg.Name]
		if !ok {
			return nil, false
		}
		if seg.Each {
			arr, ok := next.([]any)
			if !ok || len(arr) == 0 {
				return nil, false
			}
			next = arr[0]
		}
		cur = next
	}
	return cur, true
}

// ResolveString parses raw and resolves it against doc. Unparseable paths
// resolve as absent.
func ResolveString(doc any, raw string) (any, bool) {
	p, err := Parse(raw)
	if err != nil {
		return nil, false
	}
	return Resolve(doc, p)
}

// Set writes value at p inside doc, creating intermediate objects and
// replacing intermediate values that are not objects. The value is stored
// as given; callers clone when they need isolation.
func Set(doc map[string]any, p Path, value any) error {
	if len(p.segments) == 0 {
		return ErrEmptyPath
	}
	if p.HasArrayMarker() {
		return ErrArrayWrite
	}
	cur := doc
	for _, seg := range p.segments[:len(p.segments)-1] {
		next, ok := document.AsObject(cur[seg.Name])
		if !ok {
			next = make(map[string]any)
			cur[seg.Name] = next
		}
		cur = next
	}
	cur[p.Last()] = value
	return nil
}

// Delete removes the value at p. Missing intermediates are ignored.
func Delete(doc map[string]any, p Path) {
	if len(p.segments) == 0 || p.HasArrayMarker() {
		return
	}
	cur := doc
	for _, seg := range p.segments[:len(p.segments)-1] {
		next, ok := document.AsObject(cur[seg.Name])
		if !ok {
			return
		}
		cur = next
	}
	delete(cur, p.Last())
}
