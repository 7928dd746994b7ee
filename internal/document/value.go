package document

import (
	"bytes"
	"fmt"
	"math"
	"strconv"
	"strings"

	json "github.com/goccy/go-json"
)

// Decode parses JSON bytes into a document tree.
func Decode(data []byte) (any, error) {
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return nil, fmt.Errorf("decode document: %w", err)
	}
	return Normalize(v), nil
}

// DecodeObject parses JSON bytes that must hold an object.
func DecodeObject(data []byte) (map[string]any, error) {
	v, err := Decode(data)
	if err != nil {
		return nil, err
	}
	obj, ok := v.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("decode document: expected object, got %s", TypeName(v))
	}
	return obj, nil
}

// Encode serializes a document as compact JSON.
func Encode(v any) ([]byte, error) {
	return json.Marshal(v)
}

// EncodeIndent serializes a document as indented JSON for human output.
func EncodeIndent(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

// Normalize converts Go values produced outside of Decode (YAML decoders,
// CUE, hand-built test fixtures) into the canonical document shapes: integer
// types become float64, map[any]any and typed slices become map[string]any and
// []any.
func Normalize(v any) any {
	switch val := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, e := range val {
			out[k] = Normalize(e)
		}
		return out
	case map[any]any:
		out := make(map[string]any, len(val))
		for k, e := range val {
			out[fmt.Sprint(k)] = Normalize(e)
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, e := range val {
			out[i] = Normalize(e)
		}
		return out
	case []map[string]any:
		out := make([]any, len(val))
		for i, e := range val {
			out[i] = Normalize(e)
		}
		return out
	case []string:
		out := make([]any, len(val))
		for i, e := range val {
			out[i] = e
		}
		return out
	case json.Number:
		if f, err := val.Float64(); err == nil {
			return f
		}
		return string(val)
	default:
		if f, ok := ToFloat(v); ok {
			return f
		}
		return v
	}
}

// ToFloat reports the numeric value of v. Strings are not coerced; use
// CoerceNumber for lenient conversion.
func ToFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int8:
		return float64(n), true
	case int16:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint8:
		return float64(n), true
	case uint16:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	default:
		return 0, false
	}
}

// CoerceNumber is ToFloat plus parsing of numeric strings and booleans
// (true=1, false=0).
func CoerceNumber(v any) (float64, bool) {
	if f, ok := ToFloat(v); ok {
		return f, true
	}
	switch val := v.(type) {
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(val), 64)
		if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
			return 0, false
		}
		return f, true
	case bool:
		if val {
			return 1, true
		}
		return 0, true
	}
	return 0, false
}

// AsObject returns v as an object if it is one.
func AsObject(v any) (map[string]any, bool) {
	m, ok := v.(map[string]any)
	return m, ok
}

// TypeName returns the JSON type name of a document value.
func TypeName(v any) string {
	switch v.(type) {
	case nil:
		return "null"
	case bool:
		return "boolean"
	case string:
		return "string"
	case map[string]any:
		return "object"
	case []any:
		return "array"
	}
	if _, ok := ToFloat(v); ok {
		return "number"
	}
	return fmt.Sprintf("%T", v)
}

// Stringify renders a scalar the way template substitution and value
// recoding see it: strings verbatim, integral numbers without a fraction,
// nil as the empty string, composites as compact JSON.
func Stringify(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case bool:
		return strconv.FormatBool(val)
	case map[string]any, []any:
		b, err := Encode(val)
		if err != nil {
			return fmt.Sprint(val)
		}
		return string(b)
	}
	if f, ok := ToFloat(v); ok {
		return formatNumber(f)
	}
	return fmt.Sprint(v)
}

// Clone returns a deep copy of a document value.
func Clone(v any) any {
	switch val := v.(type) {
	case map[string]any:
		return CloneObject(val)
	case []any:
		out := make([]any, len(val))
		for i, e := range val {
			out[i] = Clone(e)
		}
		return out
	default:
		return v
	}
}

// CloneObject returns a deep copy of an object. A nil input yields nil.
func CloneObject(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, e := range m {
		out[k] = Clone(e)
	}
	return out
}

// Equal reports structural equality. Numbers compare by value regardless of
// their Go type; arrays compare in order.
func Equal(a, b any) bool {
	switch av := a.(type) {
	case nil:
		return b == nil
	case map[string]any:
		bv, ok := b.(map[string]any)
		if !ok || len(av) != len(bv) {
			return false
		}
		for k, ae := range av {
			be, ok := bv[k]
			if !ok || !Equal(ae, be) {
				return false
			}
		}
		return true
	case []any:
		bv, ok := b.([]any)
		if !ok || len(av) != len(bv) {
			return false
		}
		for i := range av {
			if !Equal(av[i], bv[i]) {
				return false
			}
		}
		return true
	case string:
		bv, ok := b.(string)
		return ok && av == bv
	case bool:
		bv, ok := b.(bool)
		return ok && av == bv
	}
	af, aok := ToFloat(a)
	bf, bok := ToFloat(b)
	if aok && bok {
		return af == bf
	}
	return false
}

// EqualUnordered is Equal except that top-level arrays compare as multisets:
// both sides are sorted by canonical serialization and then compared element
// by element. Nested objects still use exact structural equality.
func EqualUnordered(a, b any) bool {
	av, aok := a.([]any)
	bv, bok := b.([]any)
	if !aok || !bok {
		return Equal(a, b)
	}
	if len(av) != len(bv) {
		return false
	}
	as, err := sortedCanonical(av)
	if err != nil {
		return false
	}
	bs, err := sortedCanonical(bv)
	if err != nil {
		return false
	}
	for i := range as {
		if as[i] != bs[i] {
			return false
		}
	}
	return true
}

// MergeShallow overlays the top-level keys of overlay onto a copy of base.
func MergeShallow(base, overlay map[string]any) map[string]any {
	out := CloneObject(base)
	if out == nil {
		out = make(map[string]any, len(overlay))
	}
	for k, v := range overlay {
		out[k] = Clone(v)
	}
	return out
}

// MergeDeep overlays overlay onto a copy of base, recursing into values that
// are objects on both sides. Arrays and scalars from overlay replace the base
// value outright.
func MergeDeep(base, overlay map[string]any) map[string]any {
	out := CloneObject(base)
	if out == nil {
		out = make(map[string]any, len(overlay))
	}
	for k, v := range overlay {
		bo, bok := out[k].(map[string]any)
		oo, ook := v.(map[string]any)
		if bok && ook {
			out[k] = MergeDeep(bo, oo)
			continue
		}
		out[k] = Clone(v)
	}
	return out
}
