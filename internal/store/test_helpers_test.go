package store

import (
	"path/filepath"
	"testing"

	"github.com/edtacey/jsonmapper/internal/rules"
	"github.com/edtacey/jsonmapper/internal/ruleset"
	"github.com/edtacey/jsonmapper/internal/schema"
	"github.com/edtacey/jsonmapper/internal/upsert"
	"github.com/edtacey/jsonmapper/internal/valuemap"
)

// createTestStore creates a new temp-dir SQLite store for testing.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// createTestEntity creates an orders entity with a status value mapping.
func createTestEntity(id string) *ruleset.Entity {
	return &ruleset.Entity{
		ID:   id,
		Name: "Order",
		SourceSchema: schema.Document{Schema: schema.Infer(map[string]any{
			"orderId": "o-1",
			"status":  "N",
		})},
		Rules: []rules.MappingRule{
			rules.New("r1", "orderId", "id", rules.Direct{}),
			rules.New("r2", "status", "status", rules.ValueMapping{ValueMapID: "status-codes"}),
		},
		Upsert: upsert.Policy{UniqueFields: []string{"id"}, ConflictResolution: upsert.ResolveMerge},
	}
}

func createTestValueMapping(id string) *valuemap.ValueMapping {
	return &valuemap.ValueMapping{
		ID:        id,
		MatchType: valuemap.MatchExact,
		Table: []valuemap.Entry{
			{Pattern: "N", Value: "new"},
			{Pattern: "P", Value: "paid"},
		},
		Default: "unknown",
	}
}
