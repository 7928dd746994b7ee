// Package ruleset loads entity definitions: the source and target schemas,
// mapping rules, value mappings and upsert policy of one mapped entity.
//
// Definitions come from YAML or JSON files (LoadFile) or from a directory of
// CUE files (LoadCUEDir). Both produce the same Bundle.
package ruleset

import (
	"fmt"

	"github.com/edtacey/jsonmapper/internal/document"
	"github.com/edtacey/jsonmapper/internal/rules"
	"github.com/edtacey/jsonmapper/internal/schema"
	"github.com/edtacey/jsonmapper/internal/upsert"
	"github.com/edtacey/jsonmapper/internal/validate"
	"github.com/edtacey/jsonmapper/internal/valuemap"
)

// Entity is the unit the entity-management layer stores.
type Entity struct {
	ID            string                   `json:"id" yaml:"id"`
	Name          string                   `json:"name" yaml:"name"`
	SourceSchema  schema.Document          `json:"sourceSchema" yaml:"sourceSchema"`
	TargetSchema  schema.Document          `json:"targetSchema" yaml:"targetSchema"`
	Rules         []rules.MappingRule      `json:"rules" yaml:"rules"`
	ValueMappings []*valuemap.ValueMapping `json:"valueMappings,omitempty" yaml:"valueMappings,omitempty"`
	Upsert        upsert.Policy            `json:"upsert" yaml:"upsert"`
}

// Check validates the entity's rules against its schemas. Value mapping
// references resolve against the entity's own mappings plus shared.
func (e *Entity) Check(shared ...*valuemap.ValueMapping) validate.Result {
	ids := validate.ValueMapIDs{}
	for _, m := range append(append([]*valuemap.ValueMapping(nil), e.ValueMappings...), shared...) {
		ids[m.ID] = true
	}
	v := validate.New(validate.WithValueMaps(ids))
	return v.ValidateRules(e.Rules, e.SourceSchema.Schema, e.TargetSchema.Schema)
}

// Bundle is the content of one definition file or directory.
type Bundle struct {
	Entities      []*Entity                `json:"entities" yaml:"entities"`
	ValueMappings []*valuemap.ValueMapping `json:"valueMappings,omitempty" yaml:"valueMappings,omitempty"`
}

// Entity returns the entity with id.
func (b *Bundle) Entity(id string) (*Entity, bool) {
	for _, e := range b.Entities {
		if e.ID == id {
			return e, true
		}
	}
	return nil, false
}

// AllValueMappings returns the shared mappings followed by every entity's
// own mappings.
func (b *Bundle) AllValueMappings() []*valuemap.ValueMapping {
	out := append([]*valuemap.ValueMapping(nil), b.ValueMappings...)
	for _, e := range b.Entities {
		out = append(out, e.ValueMappings...)
	}
	return out
}

// finish normalizes decoded values and checks structural requirements.
func (b *Bundle) finish() error {
	seen := make(map[string]bool)
	for i, e := range b.Entities {
		if e == nil {
			return fmt.Errorf("entities[%d]: empty definition", i)
		}
		if e.ID == "" {
			return fmt.Errorf("entities[%d]: id is required", i)
		}
		if seen[e.ID] {
			return fmt.Errorf("entity %q defined twice", e.ID)
		}
		seen[e.ID] = true
		if err := e.Upsert.Validate(); err != nil {
			return fmt.Errorf("entity %q: %w", e.ID, err)
		}
	}
	for _, m := range b.AllValueMappings() {
		if err := m.Validate(); err != nil {
			return err
		}
		m.Default = document.Normalize(m.Default)
		for i := range m.Table {
			m.Table[i].Value = document.Normalize(m.Table[i].Value)
		}
	}
	return nil
}
