package harness

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edtacey/jsonmapper/internal/pipeline"
	"github.com/edtacey/jsonmapper/internal/store"
)

func sampleTrace() []TraceEvent {
	return []TraceEvent{
		{Seq: 1, Type: "entity.created", ID: "id-0001"},
		{Seq: 2, Type: "entity.updated", ID: "id-0002"},
		{Seq: 3, Type: "entity.created", ID: "id-0003"},
	}
}

func TestAssertEventOrder(t *testing.T) {
	trace := sampleTrace()

	tests := []struct {
		name   string
		events []string
		pass   bool
	}{
		{"exact", []string{"entity.created", "entity.updated", "entity.created"}, true},
		{"gaps allowed", []string{"entity.created", "entity.created"}, true},
		{"single", []string{"entity.updated"}, true},
		{"wrong order", []string{"entity.updated", "entity.updated"}, false},
		{"missing", []string{"entity.unchanged"}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := assertEventOrder(trace, Assertion{Type: AssertEventOrder, Events: tt.events})
			if tt.pass {
				assert.NoError(t, err)
				return
			}
			var ae *AssertionError
			require.ErrorAs(t, err, &ae)
			assert.Equal(t, AssertEventOrder, ae.Type)
		})
	}
}

func TestAssertEventCount(t *testing.T) {
	trace := sampleTrace()
	assert.NoError(t, assertEventCount(trace, Assertion{Event: "entity.created", Count: 2}))
	assert.NoError(t, assertEventCount(trace, Assertion{Event: "entity.unchanged", Count: 0}))

	err := assertEventCount(trace, Assertion{Event: "entity.updated", Count: 2})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Expected: 2 occurrences of entity.updated")
	assert.Contains(t, err.Error(), "Actual: 1 occurrences")
	assert.Contains(t, err.Error(), "[2] entity.updated id-0002")
}

func TestAssertRecord(t *testing.T) {
	st, err := store.Open(":memory:")
	require.NoError(t, err)
	defer st.Close()

	ctx := context.Background()
	for _, rec := range []pipeline.Record{
		{EntityID: "orders", Key: "k1", Document: map[string]any{"id": "1", "kind": "a", "total": 5.0}, Hash: "h1"},
		{EntityID: "orders", Key: "k2", Document: map[string]any{"id": "2", "kind": "a", "total": 7.0}, Hash: "h2"},
	} {
		require.NoError(t, st.SaveRecord(ctx, rec))
	}
	actx := &AssertionContext{Store: st, Ctx: ctx, Entity: "orders"}

	errs := EvaluateAssertions(NewResult(), []Assertion{
		{Type: AssertRecordCount, Count: 2},
		{Type: AssertRecord, Where: map[string]any{"id": "2"}, Expect: map[string]any{"total": 7.0}},
	}, actx)
	assert.Empty(t, errs)

	errs = EvaluateAssertions(NewResult(), []Assertion{
		{Type: AssertRecord, Where: map[string]any{"id": "3"}, Expect: map[string]any{"total": 1.0}},
		{Type: AssertRecord, Where: map[string]any{"kind": "a"}, Expect: map[string]any{"total": 1.0}},
		{Type: AssertRecord, Where: map[string]any{"id": "1"}, Expect: map[string]any{"total": 6.0}},
	}, actx)
	require.Len(t, errs, 3)
	assert.Contains(t, errs[0], "record not found")
	assert.Contains(t, errs[1], "assertion is ambiguous")
	assert.Contains(t, errs[2], `field "total" = 6`)
}

func TestEvaluateAssertions_RequiresStore(t *testing.T) {
	errs := EvaluateAssertions(NewResult(), []Assertion{{Type: AssertRecordCount}}, nil)
	require.Len(t, errs, 1)
	assert.Contains(t, errs[0], "requires database context")

	errs = EvaluateAssertions(NewResult(), []Assertion{{Type: "final_state"}}, nil)
	require.Len(t, errs, 1)
	assert.Contains(t, errs[0], "unknown assertion type")
}
