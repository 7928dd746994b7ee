package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edtacey/jsonmapper/internal/pipeline"
	"github.com/edtacey/jsonmapper/internal/rules"
	"github.com/edtacey/jsonmapper/internal/ruleset"
	"github.com/edtacey/jsonmapper/internal/schema"
	"github.com/edtacey/jsonmapper/internal/valuemap"
)

func TestEntity_RoundTrip(t *testing.T) {
	ctx := context.Background()
	s := createTestStore(t)
	want := createTestEntity("orders")

	require.NoError(t, s.PutEntity(ctx, want))
	got, err := s.Entity(ctx, "orders")
	require.NoError(t, err)

	assert.Equal(t, want.ID, got.ID)
	assert.Equal(t, want.Name, got.Name)
	assert.Equal(t, want.Upsert, got.Upsert)
	assert.Equal(t, want.Rules, got.Rules)
	assert.True(t, schema.Equal(want.SourceSchema.Schema, got.SourceSchema.Schema))
	assert.Nil(t, got.TargetSchema.Schema)
}

func TestEntity_Replace(t *testing.T) {
	ctx := context.Background()
	s := createTestStore(t)

	e := createTestEntity("orders")
	require.NoError(t, s.PutEntity(ctx, e))
	e.Rules = append(e.Rules, rules.New("r3", "total", "amount", rules.Direct{}))
	require.NoError(t, s.PutEntity(ctx, e))

	got, err := s.Entity(ctx, "orders")
	require.NoError(t, err)
	assert.Len(t, got.Rules, 3)

	ids, err := s.EntityIDs(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"orders"}, ids)
}

func TestEntity_NotFound(t *testing.T) {
	s := createTestStore(t)
	_, err := s.Entity(context.Background(), "missing")
	assert.ErrorIs(t, err, pipeline.ErrEntityNotFound)
}

func TestValueMapping_RoundTrip(t *testing.T) {
	ctx := context.Background()
	s := createTestStore(t)

	require.NoError(t, s.PutValueMapping(ctx, createTestValueMapping("status-codes")))
	got, err := s.ValueMapping(ctx, "status-codes")
	require.NoError(t, err)
	assert.Equal(t, createTestValueMapping("status-codes"), got)

	_, err = s.ValueMapping(ctx, "nope")
	assert.ErrorIs(t, err, valuemap.ErrNotFound)

	err = s.PutValueMapping(ctx, &valuemap.ValueMapping{ID: "bad", MatchType: "fuzzy"})
	assert.Error(t, err)
}

func TestImport(t *testing.T) {
	ctx := context.Background()
	s := createTestStore(t)

	b := &ruleset.Bundle{
		Entities:      []*ruleset.Entity{createTestEntity("orders"), createTestEntity("archive")},
		ValueMappings: []*valuemap.ValueMapping{createTestValueMapping("status-codes")},
	}
	require.NoError(t, s.Import(ctx, b))

	ids, err := s.EntityIDs(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"archive", "orders"}, ids)

	_, err = s.ValueMapping(ctx, "status-codes")
	assert.NoError(t, err)
}

func TestImport_RollsBackOnError(t *testing.T) {
	ctx := context.Background()
	s := createTestStore(t)

	b := &ruleset.Bundle{
		Entities:      []*ruleset.Entity{createTestEntity("orders")},
		ValueMappings: []*valuemap.ValueMapping{createTestValueMapping("ok"), {ID: "bad", MatchType: "fuzzy"}},
	}
	require.Error(t, s.Import(ctx, b))

	_, err := s.ValueMapping(ctx, "ok")
	assert.ErrorIs(t, err, valuemap.ErrNotFound)
	ids, err := s.EntityIDs(ctx)
	require.NoError(t, err)
	assert.Empty(t, ids)
}
