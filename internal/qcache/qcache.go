// Package qcache caches top-k results keyed by the store generation, so a
// cached result is never served once the store has changed.
package qcache

import (
	"encoding/binary"
	"sync/atomic"

	"github.com/dgraph-io/ristretto"

	"github.com/hupe1980/mhdmem/internal/queue"
)

// Cache is a bounded result cache. A nil *Cache is a valid, always-missing
// cache.
type Cache struct {
	c      *ristretto.Cache
	hits   atomic.Uint64
	misses atomic.Uint64
}

// New creates a cache holding at most maxEntries results.
func New(maxEntries int64) (*Cache, error) {
	// Cost counts entries, not bytes.
	c, err := ristretto.NewCache(&ristretto.Config{
		NumCounters:        max(maxEntries*10, 100),
		MaxCost:            maxEntries,
		BufferItems:        64,
		IgnoreInternalCost: true,
	})
	if err != nil {
		return nil, err
	}
	return &Cache{c: c}, nil
}

// Key identifies a query against one store generation.
type Key struct {
	Generation  uint64
	K           int
	MaxDistance int
	MinOverlap  int
	Query       []uint64
	Mask        []uint64
}

func (k Key) encode() string {
	buf := make([]byte, 0, 4*binary.MaxVarintLen64+16*len(k.Query))
	buf = binary.AppendUvarint(buf, k.Generation)
	buf = binary.AppendVarint(buf, int64(k.K))
	buf = binary.AppendVarint(buf, int64(k.MaxDistance))
	buf = binary.AppendVarint(buf, int64(k.MinOverlap))
	for _, w := range k.Query {
		buf = binary.LittleEndian.AppendUint64(buf, w)
	}
	for _, w := range k.Mask {
		buf = binary.LittleEndian.AppendUint64(buf, w)
	}
	return string(buf)
}

// Get returns a copy of the cached items for key.
func (c *Cache) Get(key Key) ([]queue.Item, bool) {
	if c == nil {
		return nil, false
	}
	v, ok := c.c.Get(key.encode())
	if !ok {
		c.misses.Add(1)
		return nil, false
	}
	items, ok := v.([]queue.Item)
	if !ok {
		c.misses.Add(1)
		return nil, false
	}
	c.hits.Add(1)
	return append([]queue.Item(nil), items...), true
}

// Set stores a copy of items under key. Admission is best effort.
func (c *Cache) Set(key Key, items []queue.Item) {
	if c == nil {
		return
	}
	c.c.Set(key.encode(), append([]queue.Item(nil), items...), 1)
}

// Wait blocks until buffered writes are applied.
func (c *Cache) Wait() {
	if c == nil {
		return
	}
	c.c.Wait()
}

// Clear drops all cached results.
func (c *Cache) Clear() {
	if c == nil {
		return
	}
	c.c.Clear()
}

// Close releases the cache's goroutines.
func (c *Cache) Close() {
	if c == nil {
		return
	}
	c.c.Close()
}

// Stats returns hit and miss counts.
func (c *Cache) Stats() (hits, misses uint64) {
	if c == nil {
		return 0, 0
	}
	return c.hits.Load(), c.misses.Load()
}
