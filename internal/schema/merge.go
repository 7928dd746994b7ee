package schema

import "slices"

// Merge combines schemas observed for the same position. Schemas of one kind
// merge recursively; differing kinds produce a Union listing every
// alternative. Nil inputs are ignored and Merge() returns nil.
//
// Merge is commutative and associative up to object property order: union
// members are kept in kind order and nested unions are flattened.
func Merge(schemas ...Schema) Schema {
	groups := make(map[Kind][]Schema)
	for _, s := range schemas {
		collect(groups, s)
	}
	if len(groups) == 0 {
		return nil
	}

	kinds := make([]Kind, 0, len(groups))
	for k := range groups {
		kinds = append(kinds, k)
	}
	slices.SortFunc(kinds, func(a, b Kind) int { return kindOrder[a] - kindOrder[b] })

	variants := make([]Schema, 0, len(kinds))
	for _, k := range kinds {
		variants = append(variants, mergeSameKind(k, groups[k]))
	}
	if len(variants) == 1 {
		return variants[0]
	}
	return &Union{Variants: variants}
}

func collect(groups map[Kind][]Schema, s Schema) {
	if s == nil {
		return
	}
	if u, ok := s.(*Union); ok {
		for _, v := range u.Variants {
			collect(groups, v)
		}
		return
	}
	groups[s.Kind()] = append(groups[s.Kind()], s)
}

func mergeSameKind(k Kind, group []Schema) Schema {
	switch k {
	case KindString:
		return mergeStrings(group)
	case KindArray:
		items := make([]Schema, 0, len(group))
		for _, s := range group {
			if it := s.(*Array).Items; it != nil {
				items = append(items, it)
			}
		}
		return &Array{Items: Merge(items...)}
	case KindObject:
		return mergeObjects(group)
	default:
		// Null, Boolean, Number and Integer carry no payload.
		return group[0]
	}
}

// mergeStrings keeps a format or pattern only when every input agrees on it.
func mergeStrings(group []Schema) Schema {
	first := group[0].(*String)
	out := &String{Format: first.Format, Pattern: first.Pattern}
	for _, s := range group[1:] {
		str := s.(*String)
		if str.Format != out.Format {
			out.Format = ""
		}
		if str.Pattern != out.Pattern {
			out.Pattern = ""
		}
	}
	return out
}

// mergeObjects unions properties and required sets. A property's schema is
// the merge of its schema in every input that declared it.
func mergeObjects(group []Schema) Schema {
	out := NewObject()
	seen := make(map[string][]Schema)
	for _, s := range group {
		obj := s.(*Object)
		for _, name := range obj.names {
			if _, ok := seen[name]; !ok {
				out.names = append(out.names, name)
			}
			seen[name] = append(seen[name], obj.properties[name])
		}
		for name := range obj.required {
			out.required[name] = true
		}
	}
	for _, name := range out.names {
		out.properties[name] = Merge(seen[name]...)
	}
	return out
}

// Equal reports whether two schemas describe the same shape. Object property
// order is ignored.
func Equal(a, b Schema) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	if a.Kind() != b.Kind() {
		return false
	}
	switch av := a.(type) {
	case *String:
		bv := b.(*String)
		return av.Format == bv.Format && av.Pattern == bv.Pattern
	case *Array:
		return Equal(av.Items, b.(*Array).Items)
	case *Object:
		bv := b.(*Object)
		if len(av.properties) != len(bv.properties) || len(av.required) != len(bv.required) {
			return false
		}
		for name, p := range av.properties {
			q, ok := bv.properties[name]
			if !ok || !Equal(p, q) {
				return false
			}
		}
		for name := range av.required {
			if !bv.required[name] {
				return false
			}
		}
		return true
	case *Union:
		bv := b.(*Union)
		if len(av.Variants) != len(bv.Variants) {
			return false
		}
		for i := range av.Variants {
			if !Equal(av.Variants[i], bv.Variants[i]) {
				return false
			}
		}
		return true
	default:
		return true
	}
}
