package fieldpath

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	p, err := Parse("items[].productId")
	require.NoError(t, err)
	assert.Equal(t, []Segment{{Name: "items", Each: true}, {Name: "productId"}}, p.Segments())
	assert.Equal(t, "items[].productId", p.String())
	assert.Equal(t, "productId", p.Last())
	assert.True(t, p.HasArrayMarker())
}

func TestParse_Invalid(t *testing.T) {
	for _, raw := range []string{"", "a..b", ".a", "a.", "[]", "a[]b", "a[0].b"} {
		t.Run(raw, func(t *testing.T) {
			_, err := Parse(raw)
			assert.Error(t, err)
		})
	}
}

func TestFromSegments_RoundTrip(t *testing.T) {
	p := FromSegments(Segment{Name: "order"}, Segment{Name: "lines", Each: true}, Segment{Name: "sku"})
	assert.Equal(t, "order.lines[].sku", p.String())

	back := MustParse(p.String())
	assert.Equal(t, p.Segments(), back.Segments())
}

func TestIsSystem(t *testing.T) {
	assert.True(t, IsSystem("_system.timestamp"))
	assert.False(t, IsSystem("system.timestamp"))
	assert.False(t, IsSystem("_systemx"))

	name, ok := SystemName("_system.entityName")
	assert.True(t, ok)
	assert.Equal(t, "entityName", name)
}
