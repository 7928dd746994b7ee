package upsert

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReconcile_DeepMerge(t *testing.T) {
	newDoc := map[string]any{"id": "1", "a": map[string]any{"x": 1.0}}
	existing := map[string]any{"id": "1", "a": map[string]any{"y": 2.0}}

	out, err := Reconcile(newDoc, []map[string]any{existing}, Policy{
		UniqueFields:       []string{"id"},
		ConflictResolution: ResolveMerge,
		MergeStrategy:      MergeDeep,
	})
	require.NoError(t, err)
	assert.Equal(t, OpUpdate, out.Operation)
	assert.Equal(t, map[string]any{"id": "1", "a": map[string]any{"x": 1.0, "y": 2.0}}, out.Final)
	assert.Equal(t, existing, out.Existing)
}

func TestReconcile_ShallowStrategies(t *testing.T) {
	newDoc := map[string]any{"id": "1", "a": map[string]any{"x": 1.0}}
	existing := map[string]any{"id": "1", "a": map[string]any{"y": 2.0}, "keep": true}
	want := map[string]any{"id": "1", "a": map[string]any{"x": 1.0}, "keep": true}

	for _, p := range []Policy{
		{UniqueFields: []string{"id"}, ConflictResolution: ResolveUpdate},
		{UniqueFields: []string{"id"}},
		{UniqueFields: []string{"id"}, ConflictResolution: ResolveMerge},
		{UniqueFields: []string{"id"}, ConflictResolution: ResolveMerge, MergeStrategy: MergeShallow},
	} {
		out, err := Reconcile(newDoc, []map[string]any{existing}, p)
		require.NoError(t, err)
		assert.Equal(t, OpUpdate, out.Operation)
		assert.Equal(t, want, out.Final)
	}
}

func TestReconcile_DeepMergeReplacesArrays(t *testing.T) {
	newDoc := map[string]any{"id": "1", "a": map[string]any{"tags": []any{"new"}}}
	existing := map[string]any{"id": "1", "a": map[string]any{"tags": []any{"old", "older"}, "n": 1.0}}

	out, err := Reconcile(newDoc, []map[string]any{existing}, Policy{
		UniqueFields: []string{"id"}, ConflictResolution: ResolveMerge, MergeStrategy: MergeDeep,
	})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"id": "1", "a": map[string]any{"tags": []any{"new"}, "n": 1.0}}, out.Final)
}

func TestReconcile_NoMatchInserts(t *testing.T) {
	newDoc := map[string]any{"id": "2"}
	out, err := Reconcile(newDoc, []map[string]any{{"id": "1"}}, Policy{UniqueFields: []string{"id"}})
	require.NoError(t, err)
	assert.Equal(t, OpInsert, out.Operation)
	assert.Equal(t, newDoc, out.Final)
	assert.Nil(t, out.Existing)

	out.Final["id"] = "changed"
	assert.Equal(t, "2", newDoc["id"], "final must not alias the input")
}

func TestReconcile_MissingUniqueFieldInserts(t *testing.T) {
	out, err := Reconcile(map[string]any{"name": "x"}, []map[string]any{{"name": "x"}}, Policy{UniqueFields: []string{"id"}})
	require.NoError(t, err)
	assert.Equal(t, OpInsert, out.Operation)

	out, err = Reconcile(map[string]any{"id": "1"}, []map[string]any{{"id": "1"}}, Policy{})
	require.NoError(t, err)
	assert.Equal(t, OpInsert, out.Operation, "no unique fields never matches")
}

func TestReconcile_SkipReturnsExisting(t *testing.T) {
	candidates := []map[string]any{
		{"id": "1", "v": 1.0},
		{"id": "2", "v": 2.0},
	}
	for _, newDoc := range []map[string]any{
		{"id": "1", "v": 99.0},
		{"id": "2"},
		{"id": "2", "v": 2.0, "extra": []any{1.0}},
	} {
		out, err := Reconcile(newDoc, candidates, Policy{UniqueFields: []string{"id"}, ConflictResolution: ResolveSkip})
		require.NoError(t, err)
		assert.Equal(t, OpSkip, out.Operation)

		want, _ := FindMatch(newDoc, candidates, []string{"id"})
		assert.Equal(t, want, out.Final)
	}
}

func TestReconcile_ErrorResolution(t *testing.T) {
	_, err := Reconcile(
		map[string]any{"id": "1", "org": "acme"},
		[]map[string]any{{"id": "1", "org": "acme"}},
		Policy{UniqueFields: []string{"id", "org"}, ConflictResolution: ResolveError},
	)
	require.Error(t, err)
	assert.True(t, IsConflictError(err))
	assert.Equal(t, "conflict: record already exists with id=1, org=acme", err.Error())
}

func TestFindMatch_Equality(t *testing.T) {
	candidates := []map[string]any{
		{"k": []any{map[string]any{"a": 1.0}, "b", 3.0}},
		{"k": map[string]any{"x": 1.0, "y": []any{1.0, 2.0}}},
		{"k": 5.0, "nested": map[string]any{"code": "Z"}},
	}
	tests := []struct {
		name  string
		field string
		value any
		want  int
	}{
		{"array order ignored", "k", []any{3.0, "b", map[string]any{"a": 1.0}}, 0},
		{"array length matters", "k", []any{"b", 3.0}, -1},
		{"object structural", "k", map[string]any{"y": []any{1.0, 2.0}, "x": 1.0}, 1},
		{"nested arrays keep order", "k", map[string]any{"y": []any{2.0, 1.0}, "x": 1.0}, -1},
		{"scalar by value", "k", 5.0, 2},
		{"scalar type matters", "k", "5", -1},
		{"nested path", "nested.code", "Z", 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc := map[string]any{}
			if tt.field == "k" {
				doc["k"] = tt.value
			} else {
				doc["nested"] = map[string]any{"code": tt.value}
			}
			got, ok := FindMatch(doc, candidates, []string{tt.field})
			if tt.want < 0 {
				assert.False(t, ok)
				return
			}
			require.True(t, ok)
			assert.Equal(t, candidates[tt.want], got)
		})
	}
}

func TestReconcile_CompareFieldsNoOp(t *testing.T) {
	existing := map[string]any{"id": "1", "price": 10.0, "seenAt": "monday"}
	policy := Policy{UniqueFields: []string{"id"}, CompareFields: []string{"price"}}

	out, err := Reconcile(map[string]any{"id": "1", "price": 10.0, "seenAt": "tuesday"}, []map[string]any{existing}, policy)
	require.NoError(t, err)
	assert.Equal(t, OpSkip, out.Operation)
	assert.Equal(t, existing, out.Final)

	out, err = Reconcile(map[string]any{"id": "1", "price": 12.0}, []map[string]any{existing}, policy)
	require.NoError(t, err)
	assert.Equal(t, OpUpdate, out.Operation)
	assert.Equal(t, 12.0, out.Final["price"])
}

func TestPolicy_Validate(t *testing.T) {
	assert.NoError(t, Policy{UniqueFields: []string{"a.b"}}.Validate())
	assert.Error(t, Policy{ConflictResolution: "overwrite"}.Validate())
	assert.Error(t, Policy{MergeStrategy: "recursive"}.Validate())
	assert.Error(t, Policy{UniqueFields: []string{"a..b"}}.Validate())

	_, err := Reconcile(map[string]any{}, nil, Policy{ConflictResolution: "overwrite"})
	assert.Error(t, err)
}
