package schema

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestUnmarshal_PreservesPropertyOrder(t *testing.T) {
	s, err := Unmarshal([]byte(`{
		"type": "object",
		"properties": {
			"zeta": {"type": "string", "format": "email"},
			"alpha": {"type": "array", "items": {"type": "integer"}},
			"mid": {"type": ["string", "null"]}
		},
		"required": ["zeta"]
	}`))
	require.NoError(t, err)

	obj := s.(*Object)
	assert.Equal(t, []string{"zeta", "alpha", "mid"}, obj.Names())
	assert.Equal(t, []string{"zeta"}, obj.Required())

	alpha, _ := obj.Property("alpha")
	assert.Equal(t, KindInteger, alpha.(*Array).Items.Kind())

	mid, _ := obj.Property("mid")
	assert.Equal(t, KindUnion, mid.Kind())
}

func TestMarshalUnmarshal_RoundTrip(t *testing.T) {
	orig := Infer(map[string]any{
		"id":    "3f2504e0-4f89-11d3-9a0c-0305e82c3301",
		"items": []any{map[string]any{"qty": 1.0}, "free-text"},
		"note":  nil,
	})

	data, err := Marshal(orig)
	require.NoError(t, err)
	back, err := Unmarshal(data)
	require.NoError(t, err)
	assert.True(t, Equal(orig, back), "round trip changed schema: %s", data)
}

func TestUnmarshal_Errors(t *testing.T) {
	_, err := Unmarshal([]byte(`{"description":"nothing"}`))
	assert.ErrorIs(t, err, ErrNoType)

	_, err = Unmarshal([]byte(`{"type":"tuple"}`))
	assert.ErrorContains(t, err, "unknown schema type")

	_, err = Unmarshal([]byte(`[1]`))
	assert.Error(t, err)
}

func TestDocument_YAML(t *testing.T) {
	var holder struct {
		Target Document `yaml:"target"`
	}
	src := `
target:
  type: object
  properties:
    name: {type: string}
    total: {type: number}
  required: [name]
`
	require.NoError(t, yaml.Unmarshal([]byte(src), &holder))

	obj := holder.Target.Schema.(*Object)
	assert.Equal(t, []string{"name", "total"}, obj.Names())
	assert.True(t, obj.IsRequired("name"))
	assert.False(t, obj.IsRequired("total"))
}

func TestDocument_JSONNull(t *testing.T) {
	var d Document
	require.NoError(t, d.UnmarshalJSON([]byte("null")))
	assert.Nil(t, d.Schema)

	out, err := d.MarshalJSON()
	require.NoError(t, err)
	assert.Equal(t, "null", string(out))
}
