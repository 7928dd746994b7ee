package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edtacey/jsonmapper/internal/event"
	"github.com/edtacey/jsonmapper/internal/upsert"
)

func testEvent(id string) event.CloudEvent {
	p := event.Build(upsert.OpInsert, nil, map[string]any{"id": id, "qty": 3.0}, nil,
		time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC), map[string]any{"entityId": "orders"})
	return event.ToCloudEvent(p, "test", id, "orders/"+id)
}

func TestOutbox_PublishAndPending(t *testing.T) {
	ctx := context.Background()
	s := createTestStore(t)

	for _, id := range []string{"e1", "e2", "e3"} {
		require.NoError(t, s.Publish(ctx, testEvent(id)))
	}
	require.NoError(t, s.Publish(ctx, testEvent("e1")), "duplicate ids are ignored")

	pending, err := s.PendingEvents(ctx, 2)
	require.NoError(t, err)
	require.Len(t, pending, 2)
	assert.Equal(t, "e1", pending[0].Event.ID)
	assert.Equal(t, "e2", pending[1].Event.ID)
	assert.Less(t, pending[0].Seq, pending[1].Seq)

	got := pending[0].Event
	assert.Equal(t, event.SpecVersion, got.SpecVersion)
	assert.Equal(t, "entity.created", got.Type)
	assert.Equal(t, map[string]any{"id": "e1", "qty": 3.0}, got.Data.Data.New)
}

func TestOutbox_Relay(t *testing.T) {
	ctx := context.Background()
	s := createTestStore(t)
	for _, id := range []string{"e1", "e2"} {
		require.NoError(t, s.Publish(ctx, testEvent(id)))
	}

	rec := &event.Recorder{}
	n, err := s.Relay(ctx, rec, 10)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	require.Len(t, rec.Events(), 2)
	assert.Equal(t, "e1", rec.Events()[0].ID)

	pending, err := s.PendingEvents(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, pending)
}

type failAfter struct {
	n   int
	got []string
}

func (f *failAfter) Publish(_ context.Context, ev event.CloudEvent) error {
	if len(f.got) == f.n {
		return errors.New("unavailable")
	}
	f.got = append(f.got, ev.ID)
	return nil
}

func TestOutbox_RelayStopsAtFailure(t *testing.T) {
	ctx := context.Background()
	s := createTestStore(t)
	for _, id := range []string{"e1", "e2", "e3"} {
		require.NoError(t, s.Publish(ctx, testEvent(id)))
	}

	pub := &failAfter{n: 1}
	n, err := s.Relay(ctx, pub, 10)
	require.Error(t, err)
	assert.Equal(t, 1, n)

	pending, err := s.PendingEvents(ctx, 10)
	require.NoError(t, err)
	require.Len(t, pending, 2)
	assert.Equal(t, "e2", pending[0].Event.ID)
}
