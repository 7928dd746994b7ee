package fieldpath

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleDoc() map[string]any {
	return map[string]any{
		"id": "A1",
		"customer": map[string]any{
			"name":    "Ada",
			"address": map[string]any{"city": "Paris"},
		},
		"items": []any{
			map[string]any{"productId": "P1", "price": 10.0},
			map[string]any{"productId": "P2", "price": 5.0},
		},
		"note":  nil,
		"empty": []any{},
	}
}

func TestResolve(t *testing.T) {
	doc := sampleDoc()
	tests := []struct {
		path  string
		want  any
		found bool
	}{
		{"id", "A1", true},
		{"customer.address.city", "Paris", true},
		{"items[].productId", "P1", true},
		{"note", nil, true},
		{"customer.phone", nil, false},
		{"customer.name.first", nil, false},
		{"missing.deeper.still", nil, false},
		{"empty[].x", nil, false},
		{"id[].x", nil, false},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			got, ok := ResolveString(doc, tt.path)
			assert.Equal(t, tt.found, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestResolve_WholeArray(t *testing.T) {
	got, ok := ResolveString(sampleDoc(), "items")
	require.True(t, ok)
	assert.Len(t, got, 2)
}

func TestResolve_NonObjectRoot(t *testing.T) {
	_, ok := Resolve([]any{1.0}, MustParse("a"))
	assert.False(t, ok)
	_, ok = Resolve(nil, MustParse("a"))
	assert.False(t, ok)
}

func TestSet_CreatesIntermediates(t *testing.T) {
	doc := map[string]any{}
	require.NoError(t, Set(doc, MustParse("out.customer.name"), "Ada"))
	require.NoError(t, Set(doc, MustParse("out.total"), 15.0))

	assert.Equal(t, map[string]any{
		"out": map[string]any{
			"customer": map[string]any{"name": "Ada"},
			"total":    15.0,
		},
	}, doc)
}

func TestSet_ReplacesScalarIntermediate(t *testing.T) {
	doc := map[string]any{"a": "scalar"}
	require.NoError(t, Set(doc, MustParse("a.b"), true))
	assert.Equal(t, map[string]any{"a": map[string]any{"b": true}}, doc)
}

func TestSet_ArrayMarkerRejected(t *testing.T) {
	doc := map[string]any{}
	err := Set(doc, MustParse("items[].sku"), "x")
	assert.ErrorIs(t, err, ErrArrayWrite)
	assert.Empty(t, doc)
}

func TestDelete(t *testing.T) {
	doc := sampleDoc()
	Delete(doc, MustParse("customer.address.city"))
	Delete(doc, MustParse("nothing.here"))

	_, ok := ResolveString(doc, "customer.address.city")
	assert.False(t, ok)
	_, ok = ResolveString(doc, "customer.address")
	assert.True(t, ok)
}
