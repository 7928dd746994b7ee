package schema

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInferJSON_OrderSample(t *testing.T) {
	s, err := InferJSON([]byte(`{"orderId":"ORD-1","total":9.5}`))
	require.NoError(t, err)

	obj, ok := s.(*Object)
	require.True(t, ok, "expected object schema, got %T", s)
	assert.Equal(t, []string{"orderId", "total"}, obj.Names())
	assert.Equal(t, []string{"orderId", "total"}, obj.Required())

	orderID, _ := obj.Property("orderId")
	assert.Equal(t, &String{}, orderID)
	total, _ := obj.Property("total")
	assert.Equal(t, KindNumber, total.Kind())

	data, err := Marshal(s)
	require.NoError(t, err)
	assert.JSONEq(t,
		`{"type":"object","properties":{"orderId":{"type":"string"},"total":{"type":"number"}},"required":["orderId","total"]}`,
		string(data))
}

func TestInfer_Primitives(t *testing.T) {
	assert.Equal(t, KindNull, Infer(nil).Kind())
	assert.Equal(t, KindBoolean, Infer(true).Kind())
	assert.Equal(t, KindInteger, Infer(3.0).Kind())
	assert.Equal(t, KindInteger, Infer(-12).Kind())
	assert.Equal(t, KindNumber, Infer(3.25).Kind())
	assert.Equal(t, KindString, Infer("x").Kind())
}

func TestInfer_StringFormats(t *testing.T) {
	tests := []struct {
		value  string
		format string
	}{
		{"ada@example.com", FormatEmail},
		{"https://example.com/a?b=1", FormatURI},
		{"2024-05-01T10:00:00Z", FormatDateTime},
		{"2024-05-01", FormatDateTime},
		{"3f2504e0-4f89-11d3-9a0c-0305e82c3301", FormatUUID},
		{"hello world", ""},
		{"20240501", ""},
	}
	for _, tt := range tests {
		t.Run(tt.value, func(t *testing.T) {
			s := Infer(tt.value).(*String)
			assert.Equal(t, tt.format, s.Format)
		})
	}
}

func TestInfer_FormatPriority(t *testing.T) {
	s := Infer("ops@status.example.org").(*String)
	assert.Equal(t, FormatEmail, s.Format)
}

func TestInfer_PatternHints(t *testing.T) {
	assert.Equal(t, PatternCountryCode, Infer("US").(*String).Pattern)
	assert.Equal(t, PatternCountryCode, Infer("EUR").(*String).Pattern)
	assert.Equal(t, PatternIDCode, Infer("AB12CD34").(*String).Pattern)
	assert.Equal(t, PatternPhone, Infer("+14155550100").(*String).Pattern)
	assert.Equal(t, "", Infer("Hello").(*String).Pattern)
}

func TestInfer_ArrayMergesElements(t *testing.T) {
	s := Infer([]any{
		map[string]any{"price": 10.0},
		map[string]any{"price": 5.5, "sku": "A"},
	})

	arr := s.(*Array)
	obj := arr.Items.(*Object)
	assert.ElementsMatch(t, []string{"price", "sku"}, obj.Names())
	assert.True(t, obj.IsRequired("sku"), "required is the union across samples")

	price, _ := obj.Property("price")
	u, ok := price.(*Union)
	require.True(t, ok)
	assert.Equal(t, KindInteger, u.Variants[0].Kind())
	assert.Equal(t, KindNumber, u.Variants[1].Kind())
}

func TestInfer_EmptyArray(t *testing.T) {
	arr := Infer([]any{}).(*Array)
	assert.Nil(t, arr.Items)
}

func TestInfer_NestedObjectsAreRequired(t *testing.T) {
	s := Infer(map[string]any{
		"customer": map[string]any{"name": "Ada", "address": map[string]any{"zip": "94107"}},
	})
	obj := s.(*Object)
	cust, _ := obj.Property("customer")
	assert.Equal(t, []string{"address", "name"}, cust.(*Object).Required())
}

func TestInferAll(t *testing.T) {
	s := InferAll(
		map[string]any{"id": "a", "n": 1.0},
		map[string]any{"id": "b", "flag": true},
	)
	obj := s.(*Object)
	assert.ElementsMatch(t, []string{"id", "n", "flag"}, obj.Names())
}
