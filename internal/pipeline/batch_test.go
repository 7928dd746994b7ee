package pipeline

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edtacey/jsonmapper/internal/upsert"
)

func TestProcessBatch_OrdersSameRecord(t *testing.T) {
	ctx := context.Background()
	p, records, rec := newProcessor(ordersBundle(upsert.Policy{
		UniqueFields:       []string{"id"},
		ConflictResolution: upsert.ResolveMerge,
	}))

	docs := []map[string]any{
		{"orderId": "o-1", "status": "N", "total": 1.0},
		{"orderId": "o-2", "status": "N"},
		{"orderId": "o-1", "status": "P"},
		{"orderId": "o-3"},
		{"orderId": "o-1", "total": 3.0},
	}
	results, err := p.ProcessBatch(ctx, "orders", docs, 4)
	require.NoError(t, err)
	require.Len(t, results, len(docs))

	for i, r := range results {
		require.NoError(t, r.Err, "doc %d", i)
		assert.Equal(t, i, r.Index)
	}
	assert.Equal(t, upsert.OpInsert, results[0].Outcome.Operation)
	assert.Equal(t, upsert.OpUpdate, results[2].Outcome.Operation)
	assert.Equal(t, upsert.OpUpdate, results[4].Outcome.Operation)
	assert.Equal(t, map[string]any{"id": "o-1", "status": "paid", "amount": 3.0}, results[4].Outcome.Final)
	assert.Equal(t, results[0].Outcome.Key, results[4].Outcome.Key)

	assert.Equal(t, 3, records.Len())
	assert.Len(t, rec.Events(), len(docs))
}

func TestProcessBatch_IsolatesFailures(t *testing.T) {
	ctx := context.Background()
	p, records, _ := newProcessor(ordersBundle(upsert.Policy{
		UniqueFields:       []string{"id"},
		ConflictResolution: upsert.ResolveError,
	}))

	docs := []map[string]any{
		{"orderId": "o-1"},
		{"orderId": "o-1"},
		{"orderId": "o-2"},
	}
	results, err := p.ProcessBatch(ctx, "orders", docs, 0)
	require.NoError(t, err)

	assert.NoError(t, results[0].Err)
	assert.True(t, upsert.IsConflictError(results[1].Err))
	assert.NoError(t, results[2].Err)
	assert.Equal(t, 2, records.Len())
}

func TestProcessBatch_UnknownEntity(t *testing.T) {
	p, _, _ := newProcessor(ordersBundle(upsert.Policy{}))
	_, err := p.ProcessBatch(context.Background(), "nope", nil, 2)
	assert.ErrorIs(t, err, ErrEntityNotFound)
}
