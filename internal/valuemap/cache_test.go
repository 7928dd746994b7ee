package valuemap

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingSource struct {
	StaticSource
	mu    sync.Mutex
	loads int
}

func (s *countingSource) ValueMapping(ctx context.Context, id string) (*ValueMapping, error) {
	s.mu.Lock()
	s.loads++
	s.mu.Unlock()
	return s.StaticSource.ValueMapping(ctx, id)
}

func TestCache_LoadsOnce(t *testing.T) {
	src := &countingSource{StaticSource: NewStaticSource(&ValueMapping{ID: "a", MatchType: MatchExact})}
	c := NewCache(src)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		m, err := c.Mapping(ctx, "a")
		require.NoError(t, err)
		assert.Equal(t, "a", m.ID)
	}
	assert.Equal(t, 1, src.loads)

	c.Invalidate("a")
	_, err := c.Mapping(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, 2, src.loads)
}

func TestCache_NotFound(t *testing.T) {
	_, err := NewCache(NewStaticSource()).Mapping(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = NewCache(nil).Mapping(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestCache_IsolatedInstances(t *testing.T) {
	c1 := NewCache(nil)
	c2 := NewCache(nil)
	c1.Put(&ValueMapping{ID: "only-in-c1"})

	_, err := c1.Mapping(context.Background(), "only-in-c1")
	assert.NoError(t, err)
	_, err = c2.Mapping(context.Background(), "only-in-c1")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestCache_Regexp(t *testing.T) {
	c := NewCache(nil)

	re1, err := c.Regexp("^ab", false)
	require.NoError(t, err)
	re2, _ := c.Regexp("^ab", false)
	assert.Same(t, re1, re2)
	assert.True(t, re1.MatchString("ABC"))

	cs, err := c.Regexp("^ab", true)
	require.NoError(t, err)
	assert.False(t, cs.MatchString("ABC"))

	_, err = c.Regexp("(", false)
	assert.Error(t, err)
}
