package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/edtacey/jsonmapper/internal/document"
	"github.com/edtacey/jsonmapper/internal/ruleset"
	"github.com/edtacey/jsonmapper/internal/valuemap"
)

// ErrEntityNotFound is returned by catalogs for unknown entity ids.
var ErrEntityNotFound = errors.New("entity not found")

// BundleCatalog serves entities and value mappings from a loaded bundle.
type BundleCatalog struct {
	bundle *ruleset.Bundle
	maps   valuemap.StaticSource
}

// NewBundleCatalog creates a catalog over b.
func NewBundleCatalog(b *ruleset.Bundle) *BundleCatalog {
	return &BundleCatalog{bundle: b, maps: valuemap.NewStaticSource(b.AllValueMappings()...)}
}

// Entity implements Catalog.
func (c *BundleCatalog) Entity(_ context.Context, id string) (*ruleset.Entity, error) {
	e, ok := c.bundle.Entity(id)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrEntityNotFound, id)
	}
	return e, nil
}

// ValueMapping implements valuemap.Source.
func (c *BundleCatalog) ValueMapping(ctx context.Context, id string) (*valuemap.ValueMapping, error) {
	return c.maps.ValueMapping(ctx, id)
}

// MemoryRecords keeps records in memory. Used by the CLI without a
// database and by tests.
type MemoryRecords struct {
	mu      sync.Mutex
	records map[string]Record
}

// NewMemoryRecords creates an empty record set.
func NewMemoryRecords() *MemoryRecords {
	return &MemoryRecords{records: make(map[string]Record)}
}

// FindCandidates implements Records.
func (m *MemoryRecords) FindCandidates(_ context.Context, entityID, key string) ([]map[string]any, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.records[entityID+"\x00"+key]
	if !ok {
		return nil, nil
	}
	return []map[string]any{document.CloneObject(rec.Document)}, nil
}

// SaveRecord implements Records.
func (m *MemoryRecords) SaveRecord(_ context.Context, rec Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec.Document = document.CloneObject(rec.Document)
	m.records[rec.EntityID+"\x00"+rec.Key] = rec
	return nil
}

// Len returns the number of stored records.
func (m *MemoryRecords) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.records)
}
