package schema

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	json "github.com/goccy/go-json"
	"gopkg.in/yaml.v3"

	"github.com/edtacey/jsonmapper/internal/document"
)

// ErrNoType is returned when a JSON Schema node declares no usable type.
var ErrNoType = errors.New("schema node has no type")

// Marshal serializes a schema as JSON Schema. Object properties keep their
// declaration order.
func Marshal(s Schema) ([]byte, error) {
	var buf bytes.Buffer
	if err := writeSchema(&buf, s); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func writeSchema(buf *bytes.Buffer, s Schema) error {
	if s == nil {
		buf.WriteString("{}")
		return nil
	}
	switch v := s.(type) {
	case *Union:
		buf.WriteString(`{"anyOf":[`)
		for i, alt := range v.Variants {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := writeSchema(buf, alt); err != nil {
				return err
			}
		}
		buf.WriteString("]}")
		return nil
	case *String:
		buf.WriteString(`{"type":"string"`)
		if v.Format != "" {
			buf.WriteString(`,"format":`)
			writeJSONString(buf, v.Format)
		}
		if v.Pattern != "" {
			buf.WriteString(`,"pattern":`)
			writeJSONString(buf, v.Pattern)
		}
		buf.WriteByte('}')
		return nil
	case *Array:
		buf.WriteString(`{"type":"array"`)
		if v.Items != nil {
			buf.WriteString(`,"items":`)
			if err := writeSchema(buf, v.Items); err != nil {
				return err
			}
		}
		buf.WriteByte('}')
		return nil
	case *Object:
		buf.WriteString(`{"type":"object","properties":{`)
		for i, name := range v.names {
			if i > 0 {
				buf.WriteByte(',')
			}
			writeJSONString(buf, name)
			buf.WriteByte(':')
			if err := writeSchema(buf, v.properties[name]); err != nil {
				return fmt.Errorf("property %q: %w", name, err)
			}
		}
		buf.WriteByte('}')
		if req := v.Required(); len(req) > 0 {
			buf.WriteString(`,"required":[`)
			for i, name := range req {
				if i > 0 {
					buf.WriteByte(',')
				}
				writeJSONString(buf, name)
			}
			buf.WriteByte(']')
		}
		buf.WriteByte('}')
		return nil
	default:
		buf.WriteString(`{"type":`)
		writeJSONString(buf, string(s.Kind()))
		buf.WriteByte('}')
		return nil
	}
}

func writeJSONString(buf *bytes.Buffer, s string) {
	b, _ := json.Marshal(s)
	buf.Write(b)
}

// Unmarshal parses a JSON Schema document. Supported keywords are type
// (string or list), format, pattern, properties, required, items, anyOf and
// oneOf; everything else is ignored.
func Unmarshal(data []byte) (Schema, error) {
	n, err := readOrdered(data)
	if err != nil {
		return nil, fmt.Errorf("parse schema: %w", err)
	}
	return fromNode(n)
}

func fromNode(n node) (Schema, error) {
	if n.object == nil {
		return nil, fmt.Errorf("schema must be an object")
	}
	for _, key := range []string{"anyOf", "oneOf"} {
		if alts, ok := n.object.get(key); ok {
			variants := make([]Schema, 0, len(alts.array))
			for i, alt := range alts.array {
				s, err := fromNode(alt)
				if err != nil {
					return nil, fmt.Errorf("%s[%d]: %w", key, i, err)
				}
				variants = append(variants, s)
			}
			return Merge(variants...), nil
		}
	}

	types, err := declaredTypes(n)
	if err != nil {
		return nil, err
	}
	variants := make([]Schema, 0, len(types))
	for _, t := range types {
		s, err := fromTypedNode(Kind(t), n)
		if err != nil {
			return nil, err
		}
		variants = append(variants, s)
	}
	return Merge(variants...), nil
}

func declaredTypes(n node) ([]string, error) {
	t, ok := n.object.get("type")
	if !ok {
		if _, hasProps := n.object.get("properties"); hasProps {
			return []string{string(KindObject)}, nil
		}
		if _, hasItems := n.object.get("items"); hasItems {
			return []string{string(KindArray)}, nil
		}
		return nil, ErrNoType
	}
	if s, ok := t.scalar.(string); ok {
		return []string{s}, nil
	}
	if t.array != nil {
		out := make([]string, 0, len(t.array))
		for _, e := range t.array {
			s, ok := e.scalar.(string)
			if !ok {
				return nil, fmt.Errorf("type list must contain strings")
			}
			out = append(out, s)
		}
		return out, nil
	}
	return nil, fmt.Errorf("type must be a string or a list of strings")
}

func fromTypedNode(k Kind, n node) (Schema, error) {
	switch k {
	case KindNull:
		return Null{}, nil
	case KindBoolean:
		return Boolean{}, nil
	case KindNumber:
		return Number{}, nil
	case KindInteger:
		return Integer{}, nil
	case KindString:
		s := &String{}
		if f, ok := n.object.get("format"); ok {
			s.Format, _ = f.scalar.(string)
		}
		if p, ok := n.object.get("pattern"); ok {
			s.Pattern, _ = p.scalar.(string)
		}
		return s, nil
	case KindArray:
		arr := &Array{}
		if items, ok := n.object.get("items"); ok && items.object != nil {
			it, err := fromNode(items)
			if err != nil {
				return nil, fmt.Errorf("items: %w", err)
			}
			arr.Items = it
		}
		return arr, nil
	case KindObject:
		obj := NewObject()
		if props, ok := n.object.get("properties"); ok && props.object != nil {
			for i, name := range props.object.keys {
				ps, err := fromNode(props.object.values[i])
				if err != nil {
					return nil, fmt.Errorf("properties.%s: %w", name, err)
				}
				obj.Set(name, ps, false)
			}
		}
		if req, ok := n.object.get("required"); ok {
			for _, r := range req.array {
				if name, ok := r.scalar.(string); ok {
					obj.Require(name)
				}
			}
		}
		return obj, nil
	default:
		return nil, fmt.Errorf("unknown schema type %q", k)
	}
}

// Document wraps a Schema so it can be embedded in JSON and YAML structures.
type Document struct {
	Schema Schema
}

// MarshalJSON implements json.Marshaler.
func (d Document) MarshalJSON() ([]byte, error) {
	if d.Schema == nil {
		return []byte("null"), nil
	}
	return Marshal(d.Schema)
}

// UnmarshalJSON implements json.Unmarshaler.
func (d *Document) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		d.Schema = nil
		return nil
	}
	s, err := Unmarshal(data)
	if err != nil {
		return err
	}
	d.Schema = s
	return nil
}

// UnmarshalYAML implements yaml.Unmarshaler. The YAML node is re-encoded as
// JSON; key order survives because yaml.v3 decodes mappings into ordered
// nodes and the JSON encoding walks them in order.
func (d *Document) UnmarshalYAML(value *yaml.Node) error {
	data, err := yamlNodeToJSON(value)
	if err != nil {
		return err
	}
	return d.UnmarshalJSON(data)
}

// MarshalYAML implements yaml.Marshaler.
func (d Document) MarshalYAML() (any, error) {
	if d.Schema == nil {
		return nil, nil
	}
	data, err := Marshal(d.Schema)
	if err != nil {
		return nil, err
	}
	var n yaml.Node
	if err := yaml.Unmarshal(data, &n); err != nil {
		return nil, err
	}
	if len(n.Content) == 1 {
		return n.Content[0], nil
	}
	return &n, nil
}

func yamlNodeToJSON(n *yaml.Node) ([]byte, error) {
	var buf bytes.Buffer
	if err := writeYAMLNode(&buf, n); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func writeYAMLNode(buf *bytes.Buffer, n *yaml.Node) error {
	switch n.Kind {
	case yaml.DocumentNode:
		if len(n.Content) == 0 {
			buf.WriteString("null")
			return nil
		}
		return writeYAMLNode(buf, n.Content[0])
	case yaml.AliasNode:
		return writeYAMLNode(buf, n.Alias)
	case yaml.MappingNode:
		buf.WriteByte('{')
		for i := 0; i+1 < len(n.Content); i += 2 {
			if i > 0 {
				buf.WriteByte(',')
			}
			writeJSONString(buf, n.Content[i].Value)
			buf.WriteByte(':')
			if err := writeYAMLNode(buf, n.Content[i+1]); err != nil {
				return err
			}
		}
		buf.WriteByte('}')
		return nil
	case yaml.SequenceNode:
		buf.WriteByte('[')
		for i, c := range n.Content {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := writeYAMLNode(buf, c); err != nil {
				return err
			}
		}
		buf.WriteByte(']')
		return nil
	default:
		var v any
		if err := n.Decode(&v); err != nil {
			return err
		}
		b, err := json.Marshal(document.Normalize(v))
		if err != nil {
			return err
		}
		buf.Write(b)
		return nil
	}
}

// node is a JSON value that remembers object key order.
type node struct {
	object  *orderedObject
	array   []node
	isArray bool
	scalar  any
}

type orderedObject struct {
	keys   []string
	values []node
}

func (o *orderedObject) get(key string) (node, bool) {
	for i, k := range o.keys {
		if k == key {
			return o.values[i], true
		}
	}
	return node{}, false
}

func readOrdered(data []byte) (node, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	n, err := readNode(dec)
	if err != nil {
		return node{}, err
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return node{}, fmt.Errorf("unexpected data after JSON value")
	}
	return n, nil
}

func readNode(dec *json.Decoder) (node, error) {
	tok, err := dec.Token()
	if err != nil {
		return node{}, err
	}
	switch t := tok.(type) {
	case json.Delim:
		switch t {
		case '{':
			obj := &orderedObject{}
			for dec.More() {
				keyTok, err := dec.Token()
				if err != nil {
					return node{}, err
				}
				key, ok := keyTok.(string)
				if !ok {
					return node{}, fmt.Errorf("expected object key, got %v", keyTok)
				}
				val, err := readNode(dec)
				if err != nil {
					return node{}, err
				}
				obj.keys = append(obj.keys, key)
				obj.values = append(obj.values, val)
			}
			if _, err := dec.Token(); err != nil {
				return node{}, err
			}
			return node{object: obj}, nil
		case '[':
			arr := []node{}
			for dec.More() {
				val, err := readNode(dec)
				if err != nil {
					return node{}, err
				}
				arr = append(arr, val)
			}
			if _, err := dec.Token(); err != nil {
				return node{}, err
			}
			return node{array: arr, isArray: true}, nil
		}
		return node{}, fmt.Errorf("unexpected delimiter %v", t)
	default:
		return node{scalar: document.Normalize(tok)}, nil
	}
}
