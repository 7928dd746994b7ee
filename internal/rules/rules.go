// Package rules defines mapping rules: one declarative instruction each,
// moving a source field into a target field through a typed transformation.
package rules

// Kind tags a transformation on the wire.
type Kind string

const (
	KindDirect          Kind = "direct"
	KindTemplate        Kind = "template"
	KindFunction        Kind = "function"
	KindLookup          Kind = "lookup"
	KindAggregate       Kind = "aggregate"
	KindConditional     Kind = "conditional"
	KindValueMapping    Kind = "valueMapping"
	KindSubChildMerge   Kind = "subChildMerge"
	KindSubChildReplace Kind = "subChildReplace"
)

// Kinds lists every transformation kind.
var Kinds = []Kind{
	KindDirect, KindTemplate, KindFunction, KindLookup, KindAggregate,
	KindConditional, KindValueMapping, KindSubChildMerge, KindSubChildReplace,
}

// MappingRule moves the value at SourcePath to TargetPath through
// Transform. Inactive rules are ignored by every consumer.
type MappingRule struct {
	ID         string
	SourcePath string
	TargetPath string
	Active     bool
	Transform  Transformation
}

// New returns an active rule.
func New(id, source, target string, t Transformation) MappingRule {
	return MappingRule{ID: id, SourcePath: source, TargetPath: target, Active: true, Transform: t}
}

// Kind returns the rule's transformation kind, treating a nil transform as
// direct.
func (r MappingRule) Kind() Kind {
	if r.Transform == nil {
		return KindDirect
	}
	return r.Transform.Kind()
}

// Label identifies the rule in logs and errors: its id when set, else its
// target path.
func (r MappingRule) Label() string {
	if r.ID != "" {
		return r.ID
	}
	return r.TargetPath
}

// Transformation is a sealed interface implemented by the kind-specific
// parameter types below.
type Transformation interface {
	Kind() Kind
	transformation()
}

// Direct passes the source value through unchanged.
type Direct struct{}

// Template renders a string. "${path}" tokens resolve against the whole
// source document; "${value}" is the extracted source value.
type Template struct {
	Template string
}

// Function evaluates Body in the function sandbox.
type Function struct {
	Body string
}

// Lookup resolves the value against external reference data.
type Lookup struct {
	Table string
	Key   string
}

// AggregateOp is an aggregation operator.
type AggregateOp string

const (
	OpSum   AggregateOp = "sum"
	OpCount AggregateOp = "count"
	OpAvg   AggregateOp = "avg"
	OpMin   AggregateOp = "min"
	OpMax   AggregateOp = "max"
)

// Valid reports whether op is a known operator.
func (op AggregateOp) Valid() bool {
	switch op {
	case OpSum, OpCount, OpAvg, OpMin, OpMax:
		return true
	}
	return false
}

// Aggregate reduces an array. Field, when set, is a path evaluated against
// each element to obtain the operand.
type Aggregate struct {
	Operator AggregateOp
	Field    string
}

// Conditional chooses between Then and Else by evaluating Condition in the
// function sandbox. A nil Then keeps the source value; a nil Else omits the
// target field. An empty Condition passes the value through.
type Conditional struct {
	Condition string
	Then      any
	Else      any
}

// ValueMapping recodes the value through a stored value mapping.
// CaseSensitive, when set, overrides the mapping's own setting.
type ValueMapping struct {
	ValueMapID    string
	CaseSensitive *bool
}

// MergeStrategy controls how fetched sub-objects combine with source data.
type MergeStrategy string

const (
	MergeShallow MergeStrategy = "shallow"
	MergeDeep    MergeStrategy = "deep"
)

// Valid reports whether s is empty (shallow) or a known strategy.
func (s MergeStrategy) Valid() bool {
	switch s {
	case "", MergeShallow, MergeDeep:
		return true
	}
	return false
}

// Fallback selects what happens when a sub-child lookup fails.
type Fallback string

const (
	FallbackSkip        Fallback = "skip"
	FallbackUseOriginal Fallback = "use-original"
	FallbackUseDefault  Fallback = "use-default"
	FallbackError       Fallback = "error"
)

// Valid reports whether f is empty (skip) or a known fallback.
func (f Fallback) Valid() bool {
	switch f {
	case "", FallbackSkip, FallbackUseOriginal, FallbackUseDefault, FallbackError:
		return true
	}
	return false
}

// SubChild enriches (merge) or substitutes (replace) a nested object with a
// document fetched from Source. Source may contain a "{key}" placeholder
// that is replaced with the value at KeyPath, or with the extracted source
// value when KeyPath is empty.
type SubChild struct {
	Replace        bool
	Source         string
	KeyPath        string
	MergeStrategy  MergeStrategy
	PreserveFields []string
	Fallback       Fallback
	Default        any
	// SubMappings are applied to the fetched document when Replace is set.
	SubMappings []MappingRule
}

func (Direct) Kind() Kind       { return KindDirect }
func (Template) Kind() Kind     { return KindTemplate }
func (Function) Kind() Kind     { return KindFunction }
func (Lookup) Kind() Kind       { return KindLookup }
func (Aggregate) Kind() Kind    { return KindAggregate }
func (Conditional) Kind() Kind  { return KindConditional }
func (ValueMapping) Kind() Kind { return KindValueMapping }

func (s SubChild) Kind() Kind {
	if s.Replace {
		return KindSubChildReplace
	}
	return KindSubChildMerge
}

func (Direct) transformation()       {}
func (Template) transformation()     {}
func (Function) transformation()     {}
func (Lookup) transformation()       {}
func (Aggregate) transformation()    {}
func (Conditional) transformation()  {}
func (ValueMapping) transformation() {}
func (SubChild) transformation()     {}
