package pipeline

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edtacey/jsonmapper/internal/diff"
	"github.com/edtacey/jsonmapper/internal/engine"
	"github.com/edtacey/jsonmapper/internal/event"
	"github.com/edtacey/jsonmapper/internal/rules"
	"github.com/edtacey/jsonmapper/internal/ruleset"
	"github.com/edtacey/jsonmapper/internal/upsert"
	"github.com/edtacey/jsonmapper/internal/valuemap"
)

var fixedTime = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func ordersBundle(policy upsert.Policy) *ruleset.Bundle {
	return &ruleset.Bundle{
		Entities: []*ruleset.Entity{{
			ID:   "orders",
			Name: "Order",
			Rules: []rules.MappingRule{
				rules.New("r1", "orderId", "id", rules.Direct{}),
				rules.New("r2", "status", "status", rules.ValueMapping{ValueMapID: "status-codes"}),
				rules.New("r3", "total", "amount", rules.Direct{}),
			},
			ValueMappings: []*valuemap.ValueMapping{{
				ID:        "status-codes",
				MatchType: valuemap.MatchExact,
				Table: []valuemap.Entry{
					{Pattern: "N", Value: "new"},
					{Pattern: "P", Value: "paid"},
				},
			}},
			Upsert: policy,
		}},
	}
}

func newProcessor(b *ruleset.Bundle, opts ...Option) (*Processor, *MemoryRecords, *event.Recorder) {
	records := NewMemoryRecords()
	rec := &event.Recorder{}
	opts = append([]Option{
		WithPublisher(rec),
		WithClock(engine.FixedClock(fixedTime)),
		WithEventSource("test"),
	}, opts...)
	return New(NewBundleCatalog(b), records, opts...), records, rec
}

func TestProcess_InsertUpdateUnchanged(t *testing.T) {
	ctx := context.Background()
	p, records, rec := newProcessor(ordersBundle(upsert.Policy{
		UniqueFields:       []string{"id"},
		ConflictResolution: upsert.ResolveMerge,
	}))

	out, err := p.Process(ctx, "orders", map[string]any{"orderId": "o-1", "status": "N", "total": 10.0})
	require.NoError(t, err)
	assert.Equal(t, upsert.OpInsert, out.Operation)
	assert.Equal(t, map[string]any{"id": "o-1", "status": "new", "amount": 10.0}, out.Final)
	assert.Len(t, out.Changes, 3)
	assert.Empty(t, out.RuleErrors)
	assert.Equal(t, 1, records.Len())

	out, err = p.Process(ctx, "orders", map[string]any{"orderId": "o-1", "status": "P", "total": 10.0})
	require.NoError(t, err)
	assert.Equal(t, upsert.OpUpdate, out.Operation)
	assert.Equal(t, []diff.Change{
		{Field: "status", OldValue: "new", NewValue: "paid", Operation: diff.OpUpdate},
	}, out.Changes)
	assert.Equal(t, 1, records.Len())

	out, err = p.Process(ctx, "orders", map[string]any{"orderId": "o-1", "status": "P", "total": 10.0})
	require.NoError(t, err)
	assert.Equal(t, upsert.OpUpdate, out.Operation)
	assert.Empty(t, out.Changes)

	events := rec.Events()
	require.Len(t, events, 3)
	assert.Equal(t, string(event.TypeCreated), events[0].Type)
	assert.Equal(t, string(event.TypeUpdated), events[1].Type)
	assert.Equal(t, string(event.TypeUnchanged), events[2].Type)
	assert.Equal(t, "test", events[0].Source)
	assert.Equal(t, fixedTime.Format(time.RFC3339Nano), events[0].Time)
	assert.Equal(t, "orders/"+out.Key, events[2].Subject)
	assert.Equal(t, map[string]any{"id": "o-1", "status": "new", "amount": 10.0}, events[1].Data.Data.Old)
}

func TestProcess_SkipDoesNotSave(t *testing.T) {
	ctx := context.Background()
	p, records, rec := newProcessor(ordersBundle(upsert.Policy{
		UniqueFields:       []string{"id"},
		ConflictResolution: upsert.ResolveSkip,
	}))

	_, err := p.Process(ctx, "orders", map[string]any{"orderId": "o-1", "status": "N"})
	require.NoError(t, err)
	out, err := p.Process(ctx, "orders", map[string]any{"orderId": "o-1", "status": "P"})
	require.NoError(t, err)

	assert.Equal(t, upsert.OpSkip, out.Operation)
	assert.Equal(t, "new", out.Final["status"])
	assert.Equal(t, 1, records.Len())
	require.Len(t, rec.Events(), 2)
	assert.Equal(t, string(event.TypeUnchanged), rec.Events()[1].Type)
}

func TestProcess_Conflict(t *testing.T) {
	ctx := context.Background()
	p, records, rec := newProcessor(ordersBundle(upsert.Policy{
		UniqueFields:       []string{"id"},
		ConflictResolution: upsert.ResolveError,
	}))

	_, err := p.Process(ctx, "orders", map[string]any{"orderId": "o-1"})
	require.NoError(t, err)
	_, err = p.Process(ctx, "orders", map[string]any{"orderId": "o-1"})
	require.Error(t, err)
	assert.True(t, upsert.IsConflictError(err))
	assert.Equal(t, 1, records.Len())
	assert.Len(t, rec.Events(), 1)
}

func TestProcess_MissingUniqueFieldAlwaysInserts(t *testing.T) {
	ctx := context.Background()
	p, records, _ := newProcessor(ordersBundle(upsert.Policy{UniqueFields: []string{"id"}}))

	for i := 0; i < 3; i++ {
		out, err := p.Process(ctx, "orders", map[string]any{"status": "N"})
		require.NoError(t, err)
		assert.Equal(t, upsert.OpInsert, out.Operation)
	}
	assert.Equal(t, 3, records.Len())
}

func TestProcess_RuleErrorsAreReported(t *testing.T) {
	ctx := context.Background()
	b := ordersBundle(upsert.Policy{UniqueFields: []string{"id"}})
	b.Entities[0].ValueMappings = nil

	p, records, _ := newProcessor(b)
	out, err := p.Process(ctx, "orders", map[string]any{"orderId": "o-1", "status": "N"})
	require.NoError(t, err)
	require.Len(t, out.RuleErrors, 1)
	assert.True(t, engine.IsValueMapNotFoundError(out.RuleErrors[0]))
	assert.Equal(t, "N", out.Final["status"], "value passes through")
	assert.Equal(t, 1, records.Len())
}

func TestProcess_UnknownEntity(t *testing.T) {
	p, _, _ := newProcessor(ordersBundle(upsert.Policy{}))
	_, err := p.Process(context.Background(), "invoices", map[string]any{})
	assert.True(t, errors.Is(err, ErrEntityNotFound))
}

type failingPublisher struct{}

func (failingPublisher) Publish(context.Context, event.CloudEvent) error {
	return errors.New("broker down")
}

func TestProcess_PublishFailure(t *testing.T) {
	p, records, _ := newProcessor(ordersBundle(upsert.Policy{UniqueFields: []string{"id"}}), WithPublisher(failingPublisher{}))
	out, err := p.Process(context.Background(), "orders", map[string]any{"orderId": "o-1"})
	require.Error(t, err)
	assert.ErrorContains(t, err, "broker down")
	require.NotNil(t, out)
	assert.NotNil(t, out.Event)
	assert.Equal(t, 1, records.Len(), "record is stored before publishing")
}

func TestTransform_DoesNotStore(t *testing.T) {
	p, records, rec := newProcessor(ordersBundle(upsert.Policy{UniqueFields: []string{"id"}}))

	res, err := p.Transform(context.Background(), "orders", map[string]any{"orderId": "o-9", "status": "P"})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"id": "o-9", "status": "paid"}, res.Target)
	assert.Equal(t, 2, res.Applied)
	assert.Equal(t, 0, records.Len())
	assert.Empty(t, rec.Events())

	_, err = p.Transform(context.Background(), "invoices", map[string]any{})
	assert.ErrorIs(t, err, ErrEntityNotFound)
}
