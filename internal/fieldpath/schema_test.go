package fieldpath

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edtacey/jsonmapper/internal/schema"
)

func orderSchema(t *testing.T) schema.Schema {
	t.Helper()
	s, err := schema.InferJSON([]byte(`{
		"id": "A1",
		"customer": {"name": "Ada", "tags": ["vip"]},
		"items": [{"productId": "P1", "dims": {"w": 1}}]
	}`))
	require.NoError(t, err)
	return s
}

func TestTypeAt(t *testing.T) {
	s := orderSchema(t)

	got, ok := TypeAt(s, MustParse("customer.name"))
	require.True(t, ok)
	assert.Equal(t, schema.KindString, got.Kind())

	got, ok = TypeAt(s, MustParse("items"))
	require.True(t, ok)
	assert.Equal(t, schema.KindArray, got.Kind())

	got, ok = TypeAt(s, MustParse("items[].dims.w"))
	require.True(t, ok)
	assert.Equal(t, schema.KindInteger, got.Kind())

	got, ok = TypeAt(s, MustParse("customer.tags[]"))
	require.True(t, ok)
	assert.Equal(t, schema.KindString, got.Kind())
}

func TestExistsInSchema_MissingAnywhereFails(t *testing.T) {
	s := orderSchema(t)
	for _, raw := range []string{"nam", "customer.nam", "items[].dims.h", "items.productId", "id[]", "id.x"} {
		assert.False(t, ExistsInSchema(s, MustParse(raw)), raw)
	}
}

func TestTypeAt_SearchesUnionVariants(t *testing.T) {
	s := schema.InferAll(
		map[string]any{"payload": "raw"},
		map[string]any{"payload": map[string]any{"code": 7.0}},
	)

	payload, ok := TypeAt(s, MustParse("payload"))
	require.True(t, ok)
	assert.Equal(t, schema.KindUnion, payload.Kind())

	code, ok := TypeAt(s, MustParse("payload.code"))
	require.True(t, ok)
	assert.Equal(t, schema.KindInteger, code.Kind())
}

func TestSchemaPaths(t *testing.T) {
	paths := SchemaPaths(orderSchema(t))

	var got []string
	for _, p := range paths {
		got = append(got, p.String())
	}
	assert.Equal(t, []string{
		"id",
		"customer",
		"customer.name",
		"customer.tags",
		"items",
		"items[].productId",
		"items[].dims",
		"items[].dims.w",
	}, got)
}
