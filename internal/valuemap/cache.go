package valuemap

import (
	"context"
	"fmt"
	"regexp"
	"sync"
)

// Source loads value mappings by id. Implementations return an error
// wrapping ErrNotFound for unknown ids.
type Source interface {
	ValueMapping(ctx context.Context, id string) (*ValueMapping, error)
}

type regexKey struct {
	pattern       string
	caseSensitive bool
}

type regexEntry struct {
	re  *regexp.Regexp
	err error
}

// Cache holds compiled regexes and loaded value mappings. It is created
// explicitly and handed to the components that share it; there is no
// package-level instance.
type Cache struct {
	source Source

	mu       sync.Mutex
	regexes  map[regexKey]regexEntry
	mappings map[string]*ValueMapping
}

// NewCache creates an empty cache over src. src may be nil when only regex
// caching is needed.
func NewCache(src Source) *Cache {
	return &Cache{
		source:   src,
		regexes:  make(map[regexKey]regexEntry),
		mappings: make(map[string]*ValueMapping),
	}
}

// Regexp returns the compiled form of pattern. Case-insensitive patterns
// are compiled with the (?i) flag. Compile failures are cached too.
func (c *Cache) Regexp(pattern string, caseSensitive bool) (*regexp.Regexp, error) {
	key := regexKey{pattern: pattern, caseSensitive: caseSensitive}

	c.mu.Lock()
	defer c.mu.Unlock()
	if e, ok := c.regexes[key]; ok {
		return e.re, e.err
	}
	expr := pattern
	if !caseSensitive {
		expr = "(?i)" + pattern
	}
	re, err := regexp.Compile(expr)
	c.regexes[key] = regexEntry{re: re, err: err}
	return re, err
}

// Mapping returns the value mapping with id, loading it from the source on
// first use.
func (c *Cache) Mapping(ctx context.Context, id string) (*ValueMapping, error) {
	c.mu.Lock()
	m, ok := c.mappings[id]
	c.mu.Unlock()
	if ok {
		return m, nil
	}
	if c.source == nil {
		return nil, fmt.Errorf("value mapping %q: %w", id, ErrNotFound)
	}

	m, err := c.source.ValueMapping(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load value mapping %q: %w", id, err)
	}
	c.mu.Lock()
	c.mappings[id] = m
	c.mu.Unlock()
	return m, nil
}

// Put stores m under its id, replacing any cached copy.
func (c *Cache) Put(m *ValueMapping) {
	c.mu.Lock()
	c.mappings[m.ID] = m
	c.mu.Unlock()
}

// Invalidate drops the cached mapping with id.
func (c *Cache) Invalidate(id string) {
	c.mu.Lock()
	delete(c.mappings, id)
	c.mu.Unlock()
}

// StaticSource serves value mappings from memory.
type StaticSource map[string]*ValueMapping

// ValueMapping implements Source.
func (s StaticSource) ValueMapping(_ context.Context, id string) (*ValueMapping, error) {
	m, ok := s[id]
	if !ok {
		return nil, fmt.Errorf("%q: %w", id, ErrNotFound)
	}
	return m, nil
}

// NewStaticSource indexes mappings by id.
func NewStaticSource(mappings ...*ValueMapping) StaticSource {
	s := make(StaticSource, len(mappings))
	for _, m := range mappings {
		s[m.ID] = m
	}
	return s
}
