package rules

import (
	"fmt"

	json "github.com/goccy/go-json"
	"gopkg.in/yaml.v3"

	"github.com/edtacey/jsonmapper/internal/document"
)

type wireRule struct {
	ID            string           `json:"id,omitempty" yaml:"id,omitempty"`
	SourcePath    string           `json:"sourcePath" yaml:"sourcePath"`
	TargetPath    string           `json:"targetPath" yaml:"targetPath"`
	Kind          Kind             `json:"kind,omitempty" yaml:"kind,omitempty"`
	Active        *bool            `json:"active,omitempty" yaml:"active,omitempty"`
	Template      string           `json:"template,omitempty" yaml:"template,omitempty"`
	Function      string           `json:"function,omitempty" yaml:"function,omitempty"`
	ValueMapID    string           `json:"valueMapId,omitempty" yaml:"valueMapId,omitempty"`
	CaseSensitive *bool            `json:"caseSensitive,omitempty" yaml:"caseSensitive,omitempty"`
	Aggregate     *wireAggregate   `json:"aggregate,omitempty" yaml:"aggregate,omitempty"`
	Lookup        *wireLookup      `json:"lookup,omitempty" yaml:"lookup,omitempty"`
	Conditional   *wireConditional `json:"conditional,omitempty" yaml:"conditional,omitempty"`
	SubChild      *wireSubChild    `json:"subChild,omitempty" yaml:"subChild,omitempty"`
}

type wireAggregate struct {
	Operator AggregateOp `json:"operator" yaml:"operator"`
	Field    string      `json:"field,omitempty" yaml:"field,omitempty"`
}

type wireLookup struct {
	Table string `json:"table,omitempty" yaml:"table,omitempty"`
	Key   string `json:"key,omitempty" yaml:"key,omitempty"`
}

type wireConditional struct {
	Condition string `json:"condition,omitempty" yaml:"condition,omitempty"`
	Then      any    `json:"then,omitempty" yaml:"then,omitempty"`
	Else      any    `json:"else,omitempty" yaml:"else,omitempty"`
}

type wireSubChild struct {
	Source         string        `json:"source" yaml:"source"`
	KeyPath        string        `json:"keyPath,omitempty" yaml:"keyPath,omitempty"`
	MergeStrategy  MergeStrategy `json:"mergeStrategy,omitempty" yaml:"mergeStrategy,omitempty"`
	PreserveFields []string      `json:"preserveFields,omitempty" yaml:"preserveFields,omitempty"`
	Fallback       Fallback      `json:"fallbackBehavior,omitempty" yaml:"fallbackBehavior,omitempty"`
	Default        any           `json:"defaultValue,omitempty" yaml:"defaultValue,omitempty"`
	SubMappings    []MappingRule `json:"subMappings,omitempty" yaml:"subMappings,omitempty"`
}

func toWire(r MappingRule) wireRule {
	w := wireRule{
		ID:         r.ID,
		SourcePath: r.SourcePath,
		TargetPath: r.TargetPath,
		Kind:       r.Kind(),
	}
	if !r.Active {
		inactive := false
		w.Active = &inactive
	}
	switch t := r.Transform.(type) {
	case Template:
		w.Template = t.Template
	case Function:
		w.Function = t.Body
	case Lookup:
		w.Lookup = &wireLookup{Table: t.Table, Key: t.Key}
	case Aggregate:
		w.Aggregate = &wireAggregate{Operator: t.Operator, Field: t.Field}
	case Conditional:
		if t.Condition != "" || t.Then != nil || t.Else != nil {
			w.Conditional = &wireConditional{Condition: t.Condition, Then: t.Then, Else: t.Else}
		}
	case ValueMapping:
		w.ValueMapID = t.ValueMapID
		w.CaseSensitive = t.CaseSensitive
	case SubChild:
		w.SubChild = &wireSubChild{
			Source:         t.Source,
			KeyPath:        t.KeyPath,
			MergeStrategy:  t.MergeStrategy,
			PreserveFields: t.PreserveFields,
			Fallback:       t.Fallback,
			Default:        t.Default,
			SubMappings:    t.SubMappings,
		}
	}
	return w
}

func fromWire(w wireRule) (MappingRule, error) {
	r := MappingRule{
		ID:         w.ID,
		SourcePath: w.SourcePath,
		TargetPath: w.TargetPath,
		Active:     w.Active == nil || *w.Active,
	}
	kind := w.Kind
	if kind == "" {
		kind = KindDirect
	}
	switch kind {
	case KindDirect:
		r.Transform = Direct{}
	case KindTemplate:
		r.Transform = Template{Template: w.Template}
	case KindFunction:
		r.Transform = Function{Body: w.Function}
	case KindLookup:
		t := Lookup{}
		if w.Lookup != nil {
			t = Lookup{Table: w.Lookup.Table, Key: w.Lookup.Key}
		}
		r.Transform = t
	case KindAggregate:
		t := Aggregate{}
		if w.Aggregate != nil {
			t = Aggregate{Operator: w.Aggregate.Operator, Field: w.Aggregate.Field}
		}
		r.Transform = t
	case KindConditional:
		t := Conditional{}
		if w.Conditional != nil {
			t = Conditional{
				Condition: w.Conditional.Condition,
				Then:      document.Normalize(w.Conditional.Then),
				Else:      document.Normalize(w.Conditional.Else),
			}
		}
		r.Transform = t
	case KindValueMapping:
		r.Transform = ValueMapping{ValueMapID: w.ValueMapID, CaseSensitive: w.CaseSensitive}
	case KindSubChildMerge, KindSubChildReplace:
		t := SubChild{Replace: kind == KindSubChildReplace}
		if w.SubChild != nil {
			t.Source = w.SubChild.Source
			t.KeyPath = w.SubChild.KeyPath
			t.MergeStrategy = w.SubChild.MergeStrategy
			t.PreserveFields = w.SubChild.PreserveFields
			t.Fallback = w.SubChild.Fallback
			t.Default = document.Normalize(w.SubChild.Default)
			t.SubMappings = w.SubChild.SubMappings
		}
		r.Transform = t
	default:
		return MappingRule{}, fmt.Errorf("rule %q: unknown kind %q", w.ID, kind)
	}
	return r, nil
}

// MarshalJSON implements json.Marshaler.
func (r MappingRule) MarshalJSON() ([]byte, error) {
	return json.Marshal(toWire(r))
}

// UnmarshalJSON implements json.Unmarshaler. A missing "active" means true
// and a missing "kind" means direct.
func (r *MappingRule) UnmarshalJSON(data []byte) error {
	var w wireRule
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	parsed, err := fromWire(w)
	if err != nil {
		return err
	}
	*r = parsed
	return nil
}

// MarshalYAML implements yaml.Marshaler.
func (r MappingRule) MarshalYAML() (any, error) {
	return toWire(r), nil
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (r *MappingRule) UnmarshalYAML(value *yaml.Node) error {
	var w wireRule
	if err := value.Decode(&w); err != nil {
		return err
	}
	parsed, err := fromWire(w)
	if err != nil {
		return err
	}
	*r = parsed
	return nil
}

// ParseJSON decodes a JSON array of rules.
func ParseJSON(data []byte) ([]MappingRule, error) {
	var out []MappingRule
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("parse rules: %w", err)
	}
	return out, nil
}

// ParseYAML decodes a YAML sequence of rules.
func ParseYAML(data []byte) ([]MappingRule, error) {
	var out []MappingRule
	if err := yaml.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("parse rules: %w", err)
	}
	return out, nil
}

// FilterActive returns the active rules in order.
func FilterActive(rs []MappingRule) []MappingRule {
	out := make([]MappingRule, 0, len(rs))
	for _, r := range rs {
		if r.Active {
			out = append(out, r)
		}
	}
	return out
}
