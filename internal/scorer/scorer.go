// Package scorer computes masked distances between a query and a slot array,
// fanning contiguous chunks out to a fixed worker pool and merging per-chunk
// bounded heaps into a deterministic global top-k.
package scorer

import (
	"context"
	"sync"

	"github.com/hupe1980/mhdmem/internal/queue"
	"github.com/hupe1980/mhdmem/internal/simd"
)

// DefaultMinChunkSize is the smallest number of slots scored by one task.
const DefaultMinChunkSize = 512

// Slot is one stored record as seen by the scorer.
// A nil Record marks a removed slot that is skipped.
type Slot struct {
	ID     uint64
	Record []uint64
	Mask   []uint64
}

// Live reports whether the slot holds an entry.
func (s Slot) Live() bool { return s.Record != nil }

// Params controls a top-k scan.
type Params struct {
	// K is the number of results to keep. K <= 0 yields no results.
	K int
	// MaxDistance drops candidates farther than this. Negative disables it.
	MaxDistance int
	// MinOverlap drops candidates with fewer compared positions.
	MinOverlap int
	// Allow, if set, restricts candidates to IDs for which it returns true.
	Allow func(id uint64) bool
}

// Config configures a Scorer.
type Config struct {
	// Workers is the pool size. <= 0 means runtime.GOMAXPROCS(0).
	Workers int
	// MinChunkSize is the minimum slots per task. <= 0 means DefaultMinChunkSize.
	MinChunkSize int
}

// Scorer runs chunked scans on a worker pool. It holds no state besides the
// pool and reusable chunk heaps, and is safe for concurrent use.
type Scorer struct {
	pool     *WorkerPool
	minChunk int
	heaps    sync.Pool // *queue.BoundedMax
}

// New creates a Scorer and starts its worker pool.
func New(cfg Config) *Scorer {
	minChunk := cfg.MinChunkSize
	if minChunk <= 0 {
		minChunk = DefaultMinChunkSize
	}
	return &Scorer{
		pool:     NewWorkerPool(cfg.Workers),
		minChunk: minChunk,
	}
}

// Workers returns the worker pool size.
func (s *Scorer) Workers() int { return s.pool.Size() }

// MinChunkSize returns the minimum slots per task.
func (s *Scorer) MinChunkSize() int { return s.minChunk }

// Close stops the worker pool. Later scans run inline on the caller.
func (s *Scorer) Close() { s.pool.Close() }

// chunks returns the number of tasks a scan over n slots is split into.
// 1 means inline.
func (s *Scorer) chunks(n int) int {
	if s.pool.Size() <= 1 || n < 2*s.minChunk || s.pool.Closed() {
		return 1
	}
	return min(s.pool.Size(), n/s.minChunk)
}

// run calls fn for each of c contiguous ranges of [0, n) and waits for all.
// Ranges whose task cannot be submitted run on the caller.
func (s *Scorer) run(n, c int, fn func(chunk, lo, hi int)) {
	if c <= 1 {
		fn(0, 0, n)
		return
	}

	size := (n + c - 1) / c
	var wg sync.WaitGroup
	for i := 0; i < c; i++ {
		lo := i * size
		hi := min(lo+size, n)
		if lo >= hi {
			continue
		}
		chunk := i
		wg.Add(1)
		task := func() {
			defer wg.Done()
			fn(chunk, lo, hi)
		}
		if err := s.pool.Submit(context.Background(), task); err != nil {
			task()
		}
	}
	wg.Wait()
}

// TopK returns the p.K best slots for the query ordered by distance, then ID.
// Item.Pos is the slot index.
func (s *Scorer) TopK(slots []Slot, q, mq []uint64, p Params) []queue.Item {
	if p.K <= 0 || len(slots) == 0 {
		return nil
	}

	c := s.chunks(len(slots))
	if c == 1 {
		h := queue.NewBoundedMax(min(p.K, len(slots)))
		scanChunk(slots, 0, len(slots), q, mq, p, h)
		return h.Sorted()
	}

	parts := make([][]queue.Item, c)
	s.run(len(slots), c, func(chunk, lo, hi int) {
		h := s.chunkHeap(min(p.K, hi-lo))
		scanChunk(slots, lo, hi, q, mq, p, h)
		parts[chunk] = h.AppendTo(nil)
		s.heaps.Put(h)
	})
	return queue.Merge(p.K, parts...)
}

// chunkHeap returns an empty heap bounded at k, reusing a pooled one.
func (s *Scorer) chunkHeap(k int) *queue.BoundedMax {
	if h, ok := s.heaps.Get().(*queue.BoundedMax); ok {
		h.Reset(k)
		return h
	}
	return queue.NewBoundedMax(k)
}

func scanChunk(slots []Slot, lo, hi int, q, mq []uint64, p Params, h *queue.BoundedMax) {
	for i := lo; i < hi; i++ {
		sl := &slots[i]
		if sl.Record == nil {
			continue
		}
		if p.Allow != nil && !p.Allow(sl.ID) {
			continue
		}
		d, o := simd.MaskedHamming(q, mq, sl.Record, sl.Mask)
		if p.MaxDistance >= 0 && d > p.MaxDistance {
			continue
		}
		// Slots are in ID order, so once full only a strictly closer
		// candidate can displace the top.
		if h.Full() {
			if top, _ := h.TopItem(); d >= top.Distance {
				continue
			}
		}
		if o < p.MinOverlap {
			continue
		}
		h.Offer(queue.Item{ID: sl.ID, Distance: d, Overlap: o, Pos: i})
	}
}

// Distances writes the masked distance of every slot into out, which must
// have len(slots) elements. Removed slots get -1.
func (s *Scorer) Distances(slots []Slot, q, mq []uint64, out []int) {
	out = out[:len(slots)]
	s.run(len(slots), s.chunks(len(slots)), func(_, lo, hi int) {
		for i := lo; i < hi; i++ {
			if slots[i].Record == nil {
				out[i] = -1
				continue
			}
			out[i], _ = simd.MaskedHamming(q, mq, slots[i].Record, slots[i].Mask)
		}
	})
}
