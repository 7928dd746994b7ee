package schema

import "slices"

// Kind names a schema variant. The values double as JSON Schema type names
// (except KindUnion, which serializes as anyOf).
type Kind string

const (
	KindNull    Kind = "null"
	KindBoolean Kind = "boolean"
	KindNumber  Kind = "number"
	KindInteger Kind = "integer"
	KindString  Kind = "string"
	KindArray   Kind = "array"
	KindObject  Kind = "object"
	KindUnion   Kind = "union"
)

// kindOrder fixes the member order of unions so merging is commutative.
var kindOrder = map[Kind]int{
	KindNull:    0,
	KindBoolean: 1,
	KindInteger: 2,
	KindNumber:  3,
	KindString:  4,
	KindArray:   5,
	KindObject:  6,
	KindUnion:   7,
}

// Schema is a sealed interface; only the variants in this file implement it.
type Schema interface {
	Kind() Kind
	schema()
}

// String formats detected by inference.
const (
	FormatEmail    = "email"
	FormatURI      = "uri"
	FormatDateTime = "date-time"
	FormatUUID     = "uuid"
)

// Null is the schema of JSON null.
type Null struct{}

// Boolean is the schema of JSON booleans.
type Boolean struct{}

// Number is the schema of JSON numbers with a fractional part.
type Number struct{}

// Integer is the schema of JSON numbers without a fractional part.
type Integer struct{}

// String is the schema of JSON strings. Format and Pattern are hints; they
// are not enforced by anything in this module.
type String struct {
	Format  string
	Pattern string
}

// Array is the schema of JSON arrays. Items is nil when no element was ever
// observed.
type Array struct {
	Items Schema
}

// Object is the schema of JSON objects. Property order is the order keys were
// first observed and is preserved through serialization.
type Object struct {
	names      []string
	properties map[string]Schema
	required   map[string]bool
}

// Union lists alternative schemas. Variants never contain another Union and
// are kept in kind order.
type Union struct {
	Variants []Schema
}

func (Null) Kind() Kind { return KindNull }
func (Null) schema()    {}

func (Boolean) Kind() Kind { return KindBoolean }
func (Boolean) schema()    {}

func (Number) Kind() Kind { return KindNumber }
func (Number) schema()    {}

func (Integer) Kind() Kind { return KindInteger }
func (Integer) schema()    {}

func (*String) Kind() Kind { return KindString }
func (*String) schema()    {}

func (*Array) Kind() Kind { return KindArray }
func (*Array) schema()    {}

func (*Object) Kind() Kind { return KindObject }
func (*Object) schema()    {}

func (*Union) Kind() Kind { return KindUnion }
func (*Union) schema()    {}

// NewObject creates an empty object schema.
func NewObject() *Object {
	return &Object{
		properties: make(map[string]Schema),
		required:   make(map[string]bool),
	}
}

// Set adds or replaces a property. New properties are appended to the order.
func (o *Object) Set(name string, s Schema, required bool) *Object {
	if _, ok := o.properties[name]; !ok {
		o.names = append(o.names, name)
	}
	o.properties[name] = s
	if required {
		o.required[name] = true
	}
	return o
}

// Property returns the schema of a property.
func (o *Object) Property(name string) (Schema, bool) {
	s, ok := o.properties[name]
	return s, ok
}

// Names returns property names in declaration order.
func (o *Object) Names() []string {
	return slices.Clone(o.names)
}

// Len returns the number of properties.
func (o *Object) Len() int {
	return len(o.names)
}

// IsRequired reports whether name is in the required set.
func (o *Object) IsRequired(name string) bool {
	return o.required[name]
}

// Required returns the required property names in declaration order.
func (o *Object) Required() []string {
	out := make([]string, 0, len(o.required))
	for _, n := range o.names {
		if o.required[n] {
			out = append(out, n)
		}
	}
	// Required names without a declared property keep a stable position at
	// the end.
	var extra []string
	for n := range o.required {
		if _, ok := o.properties[n]; !ok {
			extra = append(extra, n)
		}
	}
	slices.Sort(extra)
	return append(out, extra...)
}

// Require marks name as required without declaring a property.
func (o *Object) Require(name string) *Object {
	o.required[name] = true
	return o
}

// NewUnion builds a union from alternatives, flattening nested unions and
// merging alternatives of the same kind. A single surviving alternative is
// returned as is.
func NewUnion(alternatives ...Schema) Schema {
	return Merge(alternatives...)
}
