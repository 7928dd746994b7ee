package fieldpath

import "github.com/edtacey/jsonmapper/internal/schema"

// TypeAt returns the schema addressed by p. Object segments descend into
// properties, "[]" segments then descend into array items. Unions are
// searched variant by variant and the first variant that resolves the rest
// of the path wins.
func TypeAt(s schema.Schema, p Path) (schema.Schema, bool) {
	return typeAt(s, p.segments)
}

func typeAt(s schema.Schema, segs []Segment) (schema.Schema, bool) {
	if s == nil {
		return nil, false
	}
	if len(segs) == 0 {
		return s, true
	}
	switch v := s.(type) {
	case *schema.Union:
		for _, alt := range v.Variants {
			if found, ok := typeAt(alt, segs); ok {
				return found, true
			}
		}
		return nil, false
	case *schema.Object:
		seg := segs[0]
		prop, ok := v.Property(seg.Name)
		if !ok {
			return nil, false
		}
		if seg.Each {
			items, ok := arrayItems(prop)
			if !ok {
				return nil, false
			}
			return typeAt(items, segs[1:])
		}
		return typeAt(prop, segs[1:])
	default:
		return nil, false
	}
}

// arrayItems returns the item schema of s, looking through unions.
func arrayItems(s schema.Schema) (schema.Schema, bool) {
	switch v := s.(type) {
	case *schema.Array:
		return v.Items, v.Items != nil
	case *schema.Union:
		for _, alt := range v.Variants {
			if items, ok := arrayItems(alt); ok {
				return items, true
			}
		}
	}
	return nil, false
}

// ExistsInSchema reports whether p addresses a node of s.
func ExistsInSchema(s schema.Schema, p Path) bool {
	_, ok := TypeAt(s, p)
	return ok
}

// SchemaPaths lists every addressable path in s in declaration order.
// Array-valued properties are listed twice: once plain ("items") and, when
// their items are known, with the marker as the prefix of nested paths
// ("items[].sku"). Paths reachable through several union variants are
// listed once.
func SchemaPaths(s schema.Schema) []Path {
	var all []Path
	walkSchema(s, Path{}, &all)
	seen := make(map[string]bool, len(all))
	out := all[:0]
	for _, p := range all {
		if seen[p.String()] {
			continue
		}
		seen[p.String()] = true
		out = append(out, p)
	}
	return out
}

func walkSchema(s schema.Schema, prefix Path, out *[]Path) {
	switch v := s.(type) {
	case *schema.Union:
		for _, alt := range v.Variants {
			walkSchema(alt, prefix, out)
		}
	case *schema.Object:
		for _, name := range v.Names() {
			prop, _ := v.Property(name)
			child := prefix.Child(name, false)
			*out = append(*out, child)
			if items, ok := arrayItems(prop); ok {
				walkSchema(items, prefix.Child(name, true), out)
			}
			walkSchema(prop, child, out)
		}
	}
}
