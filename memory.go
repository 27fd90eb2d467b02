package mhdmem

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/hupe1980/mhdmem/bitvec"
	"github.com/hupe1980/mhdmem/codec"
	"github.com/hupe1980/mhdmem/distance"
	"github.com/hupe1980/mhdmem/internal/qcache"
	"github.com/hupe1980/mhdmem/internal/queue"
	"github.com/hupe1980/mhdmem/internal/resource"
	"github.com/hupe1980/mhdmem/internal/scorer"
	"github.com/hupe1980/mhdmem/internal/store"
	"github.com/hupe1980/mhdmem/snapshot"
)

// EntryID identifies a stored entry. IDs are assigned in insertion order
// starting at 1 and are never reused, so a lower ID means an older entry.
type EntryID uint64

// Entry is a stored record with its mask and payload.
//
// Record and Mask are shared with the memory and must be treated as
// read-only.
type Entry[P any] struct {
	ID      EntryID
	Record  bitvec.Record
	Mask    bitvec.Record
	Payload P
}

// Match is one query result.
type Match[P any] struct {
	ID EntryID
	// Distance is the number of positions, significant in both masks, where
	// the pattern and the stored record differ.
	Distance int
	// Overlap is the number of positions significant in both masks.
	Overlap int
	Record  bitvec.Record
	Payload P
}

// Query is one element of a QueryBatch call.
type Query struct {
	Pattern bitvec.Record
	Mask    bitvec.Record
	Options []QueryOption
}

// Memory is a fixed-capacity associative memory of bit records, queried by
// masked Hamming distance. Once full, every insert evicts the oldest entry.
//
// All methods are safe for concurrent use. Mutations are serialized; queries
// run concurrently with each other and never observe a partial mutation.
type Memory[P any] struct {
	store  *store.Store[P]
	scorer *scorer.Scorer
	cache  *qcache.Cache
	rc     *resource.Controller

	// cacheMu keeps Close from closing the cache under an in-flight
	// Get, Set or Clear.
	cacheMu sync.RWMutex

	logger      *Logger
	metrics     MetricsCollector
	codec       codec.Codec
	compression snapshot.Compression
	dedup       bool

	closed atomic.Bool
}

// New creates an empty memory for records of width bits holding at most
// capacity entries. Both are bounded by what a snapshot can describe
// (snapshot.MaxWidth and snapshot.MaxCapacity).
func New[P any](width, capacity int, opts ...Option) (*Memory[P], error) {
	if width <= 0 || width > snapshot.MaxWidth {
		return nil, &ErrInvalidWidth{Width: width}
	}
	if capacity <= 0 || capacity > snapshot.MaxCapacity {
		return nil, &ErrInvalidCapacity{Capacity: capacity}
	}
	return newMemory[P](width, capacity, applyOptions(opts))
}

func newMemory[P any](width, capacity int, o options) (*Memory[P], error) {
	var cache *qcache.Cache
	if o.cacheEntries > 0 {
		c, err := qcache.New(o.cacheEntries)
		if err != nil {
			return nil, fmt.Errorf("query cache: %w", err)
		}
		cache = c
	}

	var rc *resource.Controller
	if o.resource.Enabled() {
		rc = resource.NewController(o.resource)
	}

	return &Memory[P]{
		store:       store.New[P](width, capacity),
		scorer:      scorer.New(scorer.Config{Workers: o.workers, MinChunkSize: o.minChunkSize}),
		cache:       cache,
		rc:          rc,
		logger:      o.logger.WithWidth(width),
		metrics:     o.metricsCollector,
		codec:       o.codec,
		compression: o.compression,
		dedup:       o.dedup,
	}, nil
}

// Width returns the record width in bits.
func (m *Memory[P]) Width() int { return m.store.Width() }

// Capacity returns the maximum number of entries.
func (m *Memory[P]) Capacity() int { return m.store.Capacity() }

// Len returns the number of entries.
func (m *Memory[P]) Len() int { return m.store.Len() }

// Insert stores a record with its mask and payload and returns the new
// entry's ID. When the memory is full the oldest entry is evicted first.
// The record and mask are copied.
//
// With WithDeduplicate, inserting a (record, mask) pair that is already
// stored returns the existing ID and leaves the memory unchanged.
func (m *Memory[P]) Insert(record, mask bitvec.Record, payload P) (EntryID, error) {
	ctx := context.Background()
	start := time.Now()

	if err := m.checkPair("record", record, mask); err != nil {
		m.metrics.RecordInsert(time.Since(start), err)
		m.logger.LogInsert(ctx, 0, false, err)
		return 0, err
	}

	res := m.store.Insert(record.Clone(), mask.Clone(), payload, m.dedup)
	id := EntryID(res.ID)
	if res.Evicted {
		m.metrics.RecordEviction()
		m.logger.LogEviction(ctx, EntryID(res.EvictedID), id)
	}

	m.metrics.RecordInsert(time.Since(start), nil)
	m.logger.LogInsert(ctx, id, res.Existing, nil)
	return id, nil
}

// Remove deletes the entry with the given ID and returns it. Removing an ID
// that is not stored is a no-op and reports false.
func (m *Memory[P]) Remove(id EntryID) (Entry[P], bool) {
	start := time.Now()
	e, ok := m.store.Remove(uint64(id))
	m.metrics.RecordRemove(time.Since(start), ok)
	m.logger.LogRemove(context.Background(), id, ok)
	if !ok {
		return Entry[P]{}, false
	}
	return fromStore(e), true
}

// Get returns the entry with the given ID.
func (m *Memory[P]) Get(id EntryID) (Entry[P], bool) {
	e, ok := m.store.Get(uint64(id))
	if !ok {
		return Entry[P]{}, false
	}
	return fromStore(e), true
}

// Find returns the ID of the oldest entry whose record and mask equal the
// arguments exactly.
func (m *Memory[P]) Find(record, mask bitvec.Record) (EntryID, bool, error) {
	if err := m.checkPair("record", record, mask); err != nil {
		return 0, false, err
	}
	id, ok := m.store.Find(record, mask)
	return EntryID(id), ok, nil
}

// Oldest returns the ID the next eviction would remove.
func (m *Memory[P]) Oldest() (EntryID, bool) {
	id, ok := m.store.Oldest()
	return EntryID(id), ok
}

// Range calls fn for every entry from oldest to newest until fn returns
// false. fn runs under the memory's read lock and must not call any method
// of the memory; a nested read deadlocks once a writer is waiting.
func (m *Memory[P]) Range(fn func(Entry[P]) bool) {
	m.store.Range(func(e store.Entry[P]) bool {
		return fn(fromStore(e))
	})
}

// Clear removes every entry and returns how many were removed. IDs assigned
// afterwards continue from where they were.
func (m *Memory[P]) Clear() int {
	n := m.store.Clear()
	m.cacheClear()
	return n
}

// Query returns the k entries closest to pattern under masked Hamming
// distance, ordered by distance and then by ID (older first).
//
// Positions outside mask, or outside a stored entry's mask, are ignored.
// Fewer than k matches are returned when the memory holds fewer entries or
// query options exclude some. k == 0 returns an empty result; an empty
// memory with k > 0 fails with ErrEmptyMemory.
func (m *Memory[P]) Query(pattern, mask bitvec.Record, k int, opts ...QueryOption) ([]Match[P], error) {
	return m.query(context.Background(), pattern, mask, k, opts)
}

// QueryContext is like Query but first waits for admission under the limits
// set by WithQueryRateLimit and WithMaxConcurrentQueries. ctx only bounds that
// wait; scoring, once started, runs to completion.
func (m *Memory[P]) QueryContext(ctx context.Context, pattern, mask bitvec.Record, k int, opts ...QueryOption) ([]Match[P], error) {
	if err := m.rc.AcquireQuery(ctx); err != nil {
		return nil, err
	}
	defer m.rc.ReleaseQuery()
	return m.query(ctx, pattern, mask, k, opts)
}

// TryQuery is like QueryContext but does not wait for admission. It fails
// with ErrBusy when the rate limit or the concurrency limit would block.
func (m *Memory[P]) TryQuery(pattern, mask bitvec.Record, k int, opts ...QueryOption) ([]Match[P], error) {
	if !m.rc.TryAcquireQuery() {
		return nil, ErrBusy
	}
	defer m.rc.ReleaseQuery()
	return m.query(context.Background(), pattern, mask, k, opts)
}

func (m *Memory[P]) query(ctx context.Context, pattern, mask bitvec.Record, k int, opts []QueryOption) (matches []Match[P], err error) {
	start := time.Now()
	cached := false
	defer func() {
		m.metrics.RecordQuery(k, time.Since(start), err)
		m.logger.LogQuery(ctx, k, len(matches), cached, err)
	}()

	if k < 0 {
		return nil, ErrInvalidK
	}
	if err := m.checkPair("pattern", pattern, mask); err != nil {
		return nil, err
	}
	if k == 0 {
		return []Match[P]{}, nil
	}

	qo := applyQueryOptions(opts)
	q, mq := pattern.Words(), mask.Words()

	m.store.Read(func(v store.View[P]) {
		if v.Len() == 0 {
			err = ErrEmptyMemory
			return
		}

		useCache := m.cache != nil && qo.filter == nil && !qo.noCache
		var (
			key   qcache.Key
			items []queue.Item
		)
		if useCache {
			key = qcache.Key{
				Generation:  v.Generation(),
				K:           k,
				MaxDistance: qo.maxDistance,
				MinOverlap:  qo.minOverlap,
				Query:       q,
				Mask:        mq,
			}
			var live bool
			items, cached, live = m.cacheGet(key)
			useCache = live
			if live {
				m.metrics.RecordCacheLookup(cached)
			}
		}
		if !cached {
			items = m.scorer.TopK(v.Slots(), q, mq, scorer.Params{
				K:           k,
				MaxDistance: qo.maxDistance,
				MinOverlap:  qo.minOverlap,
				Allow:       qo.allow(),
			})
			if useCache {
				m.cacheSet(key, items)
			}
		}

		// Positions stay valid while the generation is unchanged.
		matches = make([]Match[P], len(items))
		for i, it := range items {
			e := v.Entry(it.Pos)
			matches[i] = Match[P]{
				ID:       EntryID(it.ID),
				Distance: it.Distance,
				Overlap:  it.Overlap,
				Record:   e.Record,
				Payload:  e.Payload,
			}
		}
	})
	if err != nil {
		return nil, err
	}
	return matches, nil
}

// QueryBatch runs queries concurrently, at most one per scoring worker, and
// returns their results in input order. The first failing query cancels the
// rest and its error is returned.
func (m *Memory[P]) QueryBatch(ctx context.Context, queries []Query, k int) ([][]Match[P], error) {
	results := make([][]Match[P], len(queries))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(m.scorer.Workers())
	for i, q := range queries {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			res, err := m.QueryContext(gctx, q.Pattern, q.Mask, k, q.Options...)
			if err != nil {
				return fmt.Errorf("query %d: %w", i, err)
			}
			results[i] = res
			return nil
		})
	}

	err := g.Wait()
	m.logger.LogBatchQuery(ctx, len(queries), k, err)
	if err != nil {
		return nil, err
	}
	return results, nil
}

// WeightedRead returns the average of score over all entries, each weighted
// by 1/(d+1)² where d is the entry's masked distance to pattern. Close
// entries dominate; identical ones weigh 1.
//
// score runs under the memory's read lock and must not call any method of
// the memory.
func (m *Memory[P]) WeightedRead(pattern, mask bitvec.Record, score func(P) float64) (float64, error) {
	if score == nil {
		return 0, errors.New("score function is nil")
	}
	if err := m.checkPair("pattern", pattern, mask); err != nil {
		return 0, err
	}

	var (
		result float64
		err    error
	)
	m.store.Read(func(v store.View[P]) {
		if v.Len() == 0 {
			err = ErrEmptyMemory
			return
		}
		slots := v.Slots()
		dist := make([]int, len(slots))
		m.scorer.Distances(slots, pattern.Words(), mask.Words(), dist)

		var sum, weights float64
		for i, d := range dist {
			if d < 0 {
				continue
			}
			w := 1 / float64((d+1)*(d+1))
			sum += w * score(v.Payload(i))
			weights += w
		}
		result = sum / weights
	})
	return result, err
}

// Stats is a point-in-time summary of a memory.
type Stats struct {
	Len        int
	Capacity   int
	Width      int
	NextID     EntryID
	Generation uint64
	Inserts    uint64
	Removals   uint64
	Evictions  uint64
	// MemoryBytes approximates the storage used by records and masks.
	MemoryBytes int64
	Workers     int
	// Kernel names the active popcount implementation.
	Kernel      string
	CacheHits   uint64
	CacheMisses uint64
	// InFlightQueries counts admitted QueryContext calls still running.
	InFlightQueries int64
}

// Stats returns counters and sizes.
func (m *Memory[P]) Stats() Stats {
	st := m.store.Stats()
	hits, misses := m.cache.Stats()
	return Stats{
		Len:             st.Len,
		Capacity:        st.Capacity,
		Width:           st.Width,
		NextID:          EntryID(st.NextID),
		Generation:      st.Generation,
		Inserts:         st.Inserts,
		Removals:        st.Removals,
		Evictions:       st.Evictions,
		MemoryBytes:     st.MemoryBytes,
		Workers:         m.scorer.Workers(),
		Kernel:          distance.Kernel(),
		CacheHits:       hits,
		CacheMisses:     misses,
		InFlightQueries: m.rc.InFlight(),
	}
}

// Close stops the worker pool and the result cache. The memory remains
// usable afterwards; queries are then scored on the calling goroutine.
func (m *Memory[P]) Close() error {
	if !m.closed.CompareAndSwap(false, true) {
		return nil
	}
	m.scorer.Close()

	m.cacheMu.Lock()
	m.cache.Close()
	m.cacheMu.Unlock()
	return nil
}

// cacheGet looks key up. live is false once the memory is closed.
func (m *Memory[P]) cacheGet(key qcache.Key) (items []queue.Item, hit, live bool) {
	m.cacheMu.RLock()
	defer m.cacheMu.RUnlock()
	if m.closed.Load() {
		return nil, false, false
	}
	items, hit = m.cache.Get(key)
	return items, hit, true
}

func (m *Memory[P]) cacheSet(key qcache.Key, items []queue.Item) {
	m.cacheMu.RLock()
	defer m.cacheMu.RUnlock()
	if !m.closed.Load() {
		m.cache.Set(key, items)
	}
}

func (m *Memory[P]) cacheClear() {
	m.cacheMu.RLock()
	defer m.cacheMu.RUnlock()
	if !m.closed.Load() {
		m.cache.Clear()
	}
}

func (m *Memory[P]) checkPair(field string, record, mask bitvec.Record) error {
	if err := checkWidth(field, m.Width(), record.Width()); err != nil {
		return err
	}
	return checkWidth("mask", m.Width(), mask.Width())
}

func fromStore[P any](e store.Entry[P]) Entry[P] {
	return Entry[P]{
		ID:      EntryID(e.ID),
		Record:  e.Record,
		Mask:    e.Mask,
		Payload: e.Payload,
	}
}
