package engine

import (
	"context"
	"errors"
	"math"
	"regexp"

	"github.com/edtacey/jsonmapper/internal/document"
	"github.com/edtacey/jsonmapper/internal/fieldpath"
	"github.com/edtacey/jsonmapper/internal/rules"
	"github.com/edtacey/jsonmapper/internal/valuemap"
)

// transform dispatches on the rule's kind. ok reports whether a value should
// be written; a non-nil error aborts the whole Apply.
func (r *run) transform(ctx context.Context, rule rules.MappingRule, value any, present bool) (out any, ok bool, err error) {
	switch t := rule.Transform.(type) {
	case nil, rules.Direct:
		return document.Clone(value), present, nil
	case rules.Template:
		return r.template(t.Template, value, present), true, nil
	case rules.Function:
		out, ok := r.function(ctx, rule, t, value, present)
		return out, ok, nil
	case rules.Lookup:
		if !present {
			return nil, false, nil
		}
		return r.lookup(ctx, rule, t, value), true, nil
	case rules.Aggregate:
		if !present {
			return nil, false, nil
		}
		out, ok := r.aggregate(rule, t, value)
		return out, ok, nil
	case rules.Conditional:
		if !present {
			return nil, false, nil
		}
		out, ok := r.conditional(ctx, rule, t, value)
		return out, ok, nil
	case rules.ValueMapping:
		if !present {
			return nil, false, nil
		}
		return r.valueMapping(ctx, rule, t, value), true, nil
	case rules.SubChild:
		return r.subChild(ctx, rule, t, value, present)
	default:
		r.fail(newRuleError(rule, ErrCodeInvalidOperand, nil, "unsupported transformation %T", t))
		return nil, false, nil
	}
}

var templateToken = regexp.MustCompile(`\$\{([^}]*)\}`)

// template substitutes ${value} with the extracted value and ${path} with
// the value at path in the source document. Unresolvable tokens render as
// the empty string.
func (r *run) template(tmpl string, value any, present bool) string {
	return templateToken.ReplaceAllStringFunc(tmpl, func(tok string) string {
		name := templateToken.FindStringSubmatch(tok)[1]
		if name == "value" {
			if !present {
				return ""
			}
			return document.Stringify(value)
		}
		if sys, ok := fieldpath.SystemName(name); ok {
			v, _ := r.systemValue(sys)
			return document.Stringify(v)
		}
		v, _ := fieldpath.ResolveString(r.source, name)
		return document.Stringify(v)
	})
}

// function evaluates the body; on failure the source value is kept.
func (r *run) function(ctx context.Context, rule rules.MappingRule, t rules.Function, value any, present bool) (any, bool) {
	if r.engine.functions == nil {
		r.fail(newRuleError(rule, ErrCodeCustomFunction, nil, "no function evaluator configured"))
		return document.Clone(value), present
	}
	out, err := r.engine.functions.Eval(ctx, t.Body, value, r.source)
	if err != nil {
		r.fail(newRuleError(rule, ErrCodeCustomFunction, err, "function failed, keeping source value"))
		return document.Clone(value), present
	}
	return out, true
}

func (r *run) lookup(ctx context.Context, rule rules.MappingRule, t rules.Lookup, value any) any {
	if r.engine.lookup == nil {
		return document.Clone(value)
	}
	out, found, err := r.engine.lookup.Lookup(ctx, t.Table, t.Key, value)
	if err != nil {
		r.fail(newRuleError(rule, ErrCodeLookup, err, "lookup in %q failed", t.Table))
		return document.Clone(value)
	}
	if !found {
		return document.Clone(value)
	}
	return out
}

// aggregate reduces an array. sum and avg coerce non-numeric operands to 0;
// min and max ignore them and produce null when no operand is numeric.
func (r *run) aggregate(rule rules.MappingRule, t rules.Aggregate, value any) (any, bool) {
	arr, ok := value.([]any)
	if !ok {
		r.fail(newRuleError(rule, ErrCodeInvalidOperand, nil,
			"aggregate operand is %s, want array", document.TypeName(value)))
		return nil, false
	}

	var field fieldpath.Path
	if t.Field != "" {
		p, err := fieldpath.Parse(t.Field)
		if err != nil {
			r.fail(newRuleError(rule, ErrCodeInvalidPath, err, "aggregate field %q", t.Field))
			return nil, false
		}
		field = p
	}
	operand := func(elem any) (float64, bool) {
		if field.Len() > 0 {
			v, ok := fieldpath.Resolve(elem, field)
			if !ok {
				return 0, false
			}
			elem = v
		}
		return document.CoerceNumber(elem)
	}

	switch t.Operator {
	case rules.OpCount:
		return float64(len(arr)), true
	case rules.OpSum, rules.OpAvg:
		var sum float64
		for _, elem := range arr {
			if n, ok := operand(elem); ok {
				sum += n
			}
		}
		if t.Operator == rules.OpSum {
			return sum, true
		}
		if len(arr) == 0 {
			return 0.0, true
		}
		return sum / float64(len(arr)), true
	case rules.OpMin, rules.OpMax:
		best, seen := math.Inf(1), false
		if t.Operator == rules.OpMax {
			best = math.Inf(-1)
		}
		for _, elem := range arr {
			n, ok := operand(elem)
			if !ok {
				continue
			}
			seen = true
			if (t.Operator == rules.OpMin && n < best) || (t.Operator == rules.OpMax && n > best) {
				best = n
			}
		}
		if !seen {
			return nil, true
		}
		return best, true
	default:
		r.fail(newRuleError(rule, ErrCodeInvalidOperand, nil, "unknown aggregate operator %q", t.Operator))
		return nil, false
	}
}

// conditional passes the value through without a condition. With one, a
// true result writes Then (or the value when Then is unset) and a false
// result writes Else (or nothing when Else is unset).
func (r *run) conditional(ctx context.Context, rule rules.MappingRule, t rules.Conditional, value any) (any, bool) {
	if t.Condition == "" {
		return document.Clone(value), true
	}
	if r.engine.functions == nil {
		r.fail(newRuleError(rule, ErrCodeCustomFunction, nil, "no function evaluator configured"))
		return document.Clone(value), true
	}
	ok, err := r.engine.functions.EvalBool(ctx, t.Condition, value, r.source)
	if err != nil {
		r.fail(newRuleError(rule, ErrCodeCustomFunction, err, "condition failed, keeping source value"))
		return document.Clone(value), true
	}

	if ok {
		if t.Then == nil {
			return document.Clone(value), true
		}
		return document.Clone(t.Then), true
	}
	if t.Else == nil {
		return nil, false
	}
	return document.Clone(t.Else), true
}

// valueMapping recodes through the referenced mapping. An unknown mapping
// passes the value through.
func (r *run) valueMapping(ctx context.Context, rule rules.MappingRule, t rules.ValueMapping, value any) any {
	m, err := r.engine.cache.Mapping(ctx, t.ValueMapID)
	if err != nil {
		code := ErrCodeValueMapNotFound
		if !errors.Is(err, valuemap.ErrNotFound) {
			code = ErrCodeLookup
		}
		r.fail(newRuleError(rule, code, err, "value mapping %q unavailable, passing value through", t.ValueMapID))
		return document.Clone(value)
	}
	return r.engine.recoder.Recode(value, m, t.CaseSensitive).Value
}
