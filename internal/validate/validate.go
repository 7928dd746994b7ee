// Package validate statically checks mapping rules against source and
// target schemas.
//
// Validation never stops at the first problem: every rule is checked and
// every error is collected, so one call reports everything wrong with a
// rule set.
package validate

import (
	"fmt"
	"strings"

	"github.com/edtacey/jsonmapper/internal/fieldpath"
	"github.com/edtacey/jsonmapper/internal/rules"
	"github.com/edtacey/jsonmapper/internal/sandbox"
	"github.com/edtacey/jsonmapper/internal/schema"
)

// Validation error codes (E200-E299)
const (
	ErrPathNotFound          = "E200" // source or target path absent from schema
	ErrTypeIncompatibility   = "E201" // source and target kinds cannot be mapped
	ErrInvalidRuleConfig     = "E202" // kind-specific parameter missing or malformed
	ErrValueMapNotFound      = "E203" // referenced value mapping does not exist
	ErrMissingRequiredTarget = "E204" // required target property produced by no rule
)

// ValidationError is one problem found in a rule set.
type ValidationError struct {
	RuleID      string   `json:"ruleId,omitempty"`
	Field       string   `json:"field"`
	Message     string   `json:"message"`
	Code        string   `json:"code"`
	Suggestions []string `json:"suggestions,omitempty"`
}

// Error implements the error interface.
func (e ValidationError) Error() string {
	if e.RuleID != "" {
		return fmt.Sprintf("[%s] rule %s: %s: %s", e.Code, e.RuleID, e.Field, e.Message)
	}
	return fmt.Sprintf("[%s] %s: %s", e.Code, e.Field, e.Message)
}

// Result collects the errors of one validation call.
type Result struct {
	Valid       bool              `json:"valid"`
	Errors      []ValidationError `json:"errors"`
	Suggestions []string          `json:"suggestions,omitempty"`
}

func newResult(errs []ValidationError) Result {
	r := Result{Valid: len(errs) == 0, Errors: errs}
	if r.Errors == nil {
		r.Errors = []ValidationError{}
	}
	seen := make(map[string]bool)
	for _, e := range errs {
		for _, s := range e.Suggestions {
			if !seen[s] {
				seen[s] = true
				r.Suggestions = append(r.Suggestions, s)
			}
		}
	}
	return r
}

// WithCode returns the errors carrying code.
func (r Result) WithCode(code string) []ValidationError {
	var out []ValidationError
	for _, e := range r.Errors {
		if e.Code == code {
			out = append(out, e)
		}
	}
	return out
}

// ValueMapCatalog reports which value mappings exist.
type ValueMapCatalog interface {
	HasValueMapping(id string) bool
}

// ValueMapIDs is a ValueMapCatalog over a fixed set of ids.
type ValueMapIDs map[string]bool

// HasValueMapping implements ValueMapCatalog.
func (ids ValueMapIDs) HasValueMapping(id string) bool { return ids[id] }

// Validator checks rules. The zero value checks everything except value
// mapping existence.
type Validator struct {
	valueMaps ValueMapCatalog
}

// Option configures a Validator.
type Option func(*Validator)

// WithValueMaps enables E203 checks against catalog.
func WithValueMaps(catalog ValueMapCatalog) Option {
	return func(v *Validator) { v.valueMaps = catalog }
}

// New creates a Validator.
func New(opts ...Option) *Validator {
	v := &Validator{}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// ValidateRule checks one rule against the source and target schemas. A
// nil schema disables the path and type checks for that side.
func ValidateRule(rule rules.MappingRule, source, target schema.Schema) Result {
	return New().ValidateRule(rule, source, target)
}

// ValidateCompleteness reports required target properties no rule writes.
func ValidateCompleteness(rs []rules.MappingRule, target schema.Schema) Result {
	return New().ValidateCompleteness(rs, target)
}

// ValidateRule checks one rule against the source and target schemas.
func (v *Validator) ValidateRule(rule rules.MappingRule, source, target schema.Schema) Result {
	return newResult(v.checkRule(rule, source, target))
}

// ValidateRules checks every active rule and the completeness of the set in
// one pass.
func (v *Validator) ValidateRules(rs []rules.MappingRule, source, target schema.Schema) Result {
	var errs []ValidationError
	for _, r := range rs {
		if !r.Active {
			continue
		}
		errs = append(errs, v.checkRule(r, source, target)...)
	}
	errs = append(errs, v.completeness(rs, target)...)
	return newResult(errs)
}

// ValidateCompleteness reports one error per top-level required property of
// target that no active rule writes, directly or through a nested path.
func (v *Validator) ValidateCompleteness(rs []rules.MappingRule, target schema.Schema) Result {
	return newResult(v.completeness(rs, target))
}

func (v *Validator) completeness(rs []rules.MappingRule, target schema.Schema) []ValidationError {
	obj := topObject(target)
	if obj == nil {
		return nil
	}
	produced := make(map[string]bool)
	for _, r := range rs {
		if !r.Active {
			continue
		}
		head, _, _ := strings.Cut(r.TargetPath, ".")
		produced[strings.TrimSuffix(head, "[]")] = true
	}

	var errs []ValidationError
	for _, name := range obj.Required() {
		if produced[name] {
			continue
		}
		errs = append(errs, ValidationError{
			Field:   name,
			Message: fmt.Sprintf("required target property %q is not produced by any rule", name),
			Code:    ErrMissingRequiredTarget,
		})
	}
	return errs
}

// topObject returns s as an object, or its first object variant.
func topObject(s schema.Schema) *schema.Object {
	switch v := s.(type) {
	case *schema.Object:
		return v
	case *schema.Union:
		for _, alt := range v.Variants {
			if o, ok := alt.(*schema.Object); ok {
				return o
			}
		}
	}
	return nil
}

func (v *Validator) checkRule(rule rules.MappingRule, source, target schema.Schema) []ValidationError {
	c := &ruleCheck{rule: rule}

	var srcType, tgtType schema.Schema
	if !fieldpath.IsSystem(rule.SourcePath) {
		srcType = c.path("sourcePath", rule.SourcePath, source)
	}
	tgtType = c.path("targetPath", rule.TargetPath, target)

	v.checkKind(c, rule.Transform, srcType, tgtType)
	return c.errs
}

type ruleCheck struct {
	rule rules.MappingRule
	errs []ValidationError
}

func (c *ruleCheck) add(field, code, format string, args ...any) {
	c.errs = append(c.errs, ValidationError{
		RuleID:  c.rule.Label(),
		Field:   field,
		Message: fmt.Sprintf(format, args...),
		Code:    code,
	})
}

// path checks that raw parses and exists in s and returns the schema it
// addresses, or nil when it cannot be determined.
func (c *ruleCheck) path(field, raw string, s schema.Schema) schema.Schema {
	p, err := fieldpath.Parse(raw)
	if err != nil {
		c.add(field, ErrInvalidRuleConfig, "invalid path %q: %v", raw, err)
		return nil
	}
	if s == nil {
		return nil
	}
	t, ok := fieldpath.TypeAt(s, p)
	if !ok {
		c.errs = append(c.errs, ValidationError{
			RuleID:      c.rule.Label(),
			Field:       field,
			Message:     fmt.Sprintf("path %q not found in schema", raw),
			Code:        ErrPathNotFound,
			Suggestions: Suggest(s, p),
		})
		return nil
	}
	return t
}

// checkKind switches over every transformation variant.
func (v *Validator) checkKind(c *ruleCheck, t rules.Transformation, src, tgt schema.Schema) {
	switch t := t.(type) {
	case nil, rules.Direct:
		if src != nil && tgt != nil && src.Kind() != tgt.Kind() {
			c.add("kind", ErrTypeIncompatibility,
				"direct mapping from %s to %s", src.Kind(), tgt.Kind())
		}
	case rules.Template:
		if strings.TrimSpace(t.Template) == "" {
			c.add("template", ErrInvalidRuleConfig, "template is required")
		}
		if tgt != nil && tgt.Kind() != schema.KindString {
			c.add("kind", ErrTypeIncompatibility,
				"template produces a string but target is %s", tgt.Kind())
		}
	case rules.Function:
		if err := sandbox.Check(t.Body); err != nil {
			c.add("function", ErrInvalidRuleConfig, "invalid function: %v", err)
		}
	case rules.Lookup:
		// Optional parameters only.
	case rules.Aggregate:
		if !t.Operator.Valid() {
			c.add("aggregate.operator", ErrInvalidRuleConfig,
				"operator %q must be one of sum, count, avg, min, max", t.Operator)
		}
		if src != nil && !isArray(src) {
			c.add("kind", ErrTypeIncompatibility,
				"aggregate source must be an array, got %s", src.Kind())
		}
		if t.Field != "" {
			if _, err := fieldpath.Parse(t.Field); err != nil {
				c.add("aggregate.field", ErrInvalidRuleConfig, "invalid field %q: %v", t.Field, err)
			}
		}
	case rules.Conditional:
		if t.Condition != "" {
			if err := sandbox.Check(t.Condition); err != nil {
				c.add("conditional.condition", ErrInvalidRuleConfig, "invalid condition: %v", err)
			}
		}
	case rules.ValueMapping:
		switch {
		case t.ValueMapID == "":
			c.add("valueMapId", ErrInvalidRuleConfig, "value mapping id is required")
		case v.valueMaps != nil && !v.valueMaps.HasValueMapping(t.ValueMapID):
			c.add("valueMapId", ErrValueMapNotFound, "value mapping %q does not exist", t.ValueMapID)
		}
	case rules.SubChild:
		v.checkSubChild(c, t)
	default:
		c.add("kind", ErrInvalidRuleConfig, "unsupported transformation %T", t)
	}
}

func (v *Validator) checkSubChild(c *ruleCheck, t rules.SubChild) {
	if strings.TrimSpace(t.Source) == "" {
		c.add("subChild.source", ErrInvalidRuleConfig, "lookup source is required")
	}
	if !t.Fallback.Valid() {
		c.add("subChild.fallbackBehavior", ErrInvalidRuleConfig,
			"fallback %q must be one of skip, use-original, use-default, error", t.Fallback)
	}
	if t.Fallback == rules.FallbackUseDefault && t.Default == nil {
		c.add("subChild.defaultValue", ErrInvalidRuleConfig, "use-default fallback needs a default value")
	}
	if !t.MergeStrategy.Valid() {
		c.add("subChild.mergeStrategy", ErrInvalidRuleConfig,
			"merge strategy %q must be shallow or deep", t.MergeStrategy)
	}
	if t.KeyPath != "" {
		if _, err := fieldpath.Parse(t.KeyPath); err != nil {
			c.add("subChild.keyPath", ErrInvalidRuleConfig, "invalid key path %q: %v", t.KeyPath, err)
		}
	}
	// Sub-mappings run against the fetched document, whose schema is not
	// known here, so only their parameters are checked.
	for _, sub := range t.SubMappings {
		for _, e := range v.checkRule(sub, nil, nil) {
			e.RuleID = c.rule.Label() + "/" + e.RuleID
			e.Field = "subMappings." + e.Field
			c.errs = append(c.errs, e)
		}
	}
}

func isArray(s schema.Schema) bool {
	switch v := s.(type) {
	case *schema.Array:
		return true
	case *schema.Union:
		for _, alt := range v.Variants {
			if alt.Kind() == schema.KindArray {
				return true
			}
		}
	}
	return false
}
