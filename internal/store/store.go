// Package store holds the entries of an associative memory in insertion
// order with FIFO eviction.
//
// The store is guarded by a single RWMutex: mutations take the write lock,
// readers run under the read lock for as long as they need a consistent view
// (including a full parallel scan). Stored records and masks are never
// modified in place; removal marks the slot dead and compaction rebuilds the
// slot array under the write lock.
package store

import (
	"errors"
	"fmt"
	"sync"

	"github.com/hupe1980/mhdmem/bitvec"
	"github.com/hupe1980/mhdmem/internal/scorer"
)

// minCompactDead is the dead-slot count below which compaction never runs.
const minCompactDead = 64

// ErrInvalidRestore is returned by Restore for inconsistent input.
var ErrInvalidRestore = errors.New("store: invalid restore input")

// Entry is a stored record with its mask, payload and insertion tag.
type Entry[P any] struct {
	ID      uint64
	Record  bitvec.Record
	Mask    bitvec.Record
	Payload P
}

type entry[P any] struct {
	record  bitvec.Record
	mask    bitvec.Record
	payload P
}

// InsertResult describes what Insert did.
type InsertResult struct {
	// ID of the new entry, or of the existing one when Existing is set.
	ID uint64
	// Existing is true when dedup found an identical (record, mask) pair.
	Existing bool
	// Evicted is true when the oldest entry was dropped to make room.
	Evicted   bool
	EvictedID uint64
}

// Store is a fixed-capacity, insertion-ordered entry container.
type Store[P any] struct {
	mu sync.RWMutex

	width    int
	capacity int

	// slots and entries are parallel and ordered by ID.
	slots   []scorer.Slot
	entries []entry[P]
	head    int // slots[:head] are all dead
	pos     map[uint64]int
	live    int

	nextID     uint64
	generation uint64

	inserts   uint64
	removals  uint64
	evictions uint64
}

// maxPrealloc bounds the slots reserved up front; larger stores grow on append.
const maxPrealloc = 4096

// New creates an empty store. width and capacity must be positive; callers
// validate them.
func New[P any](width, capacity int) *Store[P] {
	s := &Store[P]{
		width:    width,
		capacity: capacity,
		nextID:   1,
	}
	s.resetLocked(0)
	return s
}

// resetLocked drops all slots, reserving room for at least n entries.
func (s *Store[P]) resetLocked(n int) {
	n = max(n, min(s.capacity, maxPrealloc))
	s.slots = make([]scorer.Slot, 0, n)
	s.entries = make([]entry[P], 0, n)
	s.pos = make(map[uint64]int, n)
	s.head = 0
	s.live = 0
}

// Width returns the record width.
func (s *Store[P]) Width() int { return s.width }

// Capacity returns the maximum number of live entries.
func (s *Store[P]) Capacity() int { return s.capacity }

// Len returns the number of live entries.
func (s *Store[P]) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.live
}

// Generation returns a counter that changes on every mutation.
func (s *Store[P]) Generation() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.generation
}

// Insert stores a new entry, evicting the oldest one first when full.
// With dedup set, an identical (record, mask) pair already stored is
// returned instead. record and mask must have the store's width and must
// not be modified by the caller afterwards.
func (s *Store[P]) Insert(record, mask bitvec.Record, payload P, dedup bool) InsertResult {
	s.mu.Lock()
	defer s.mu.Unlock()

	if dedup {
		if id, ok := s.findLocked(record, mask); ok {
			return InsertResult{ID: id, Existing: true}
		}
	}

	var res InsertResult
	if s.live >= s.capacity {
		res.EvictedID = s.evictOldestLocked()
		res.Evicted = true
	}

	id := s.nextID
	s.nextID++
	s.appendLocked(id, entry[P]{record: record, mask: mask, payload: payload})
	s.inserts++
	s.generation++
	s.maybeCompactLocked()

	res.ID = id
	return res
}

func (s *Store[P]) appendLocked(id uint64, e entry[P]) {
	s.pos[id] = len(s.slots)
	s.slots = append(s.slots, scorer.Slot{ID: id, Record: e.record.Words(), Mask: e.mask.Words()})
	s.entries = append(s.entries, e)
	s.live++
}

func (s *Store[P]) evictOldestLocked() uint64 {
	for s.head < len(s.slots) && !s.slots[s.head].Live() {
		s.head++
	}
	id := s.slots[s.head].ID
	s.killLocked(s.head)
	s.head++
	s.evictions++
	return id
}

func (s *Store[P]) killLocked(i int) {
	delete(s.pos, s.slots[i].ID)
	s.slots[i] = scorer.Slot{ID: s.slots[i].ID}
	s.entries[i] = entry[P]{}
	s.live--
}

// maybeCompactLocked drops dead slots once they outnumber live ones.
func (s *Store[P]) maybeCompactLocked() {
	dead := len(s.slots) - s.live
	if dead < minCompactDead || dead <= s.live {
		return
	}
	s.compactLocked()
}

func (s *Store[P]) compactLocked() {
	slots := make([]scorer.Slot, 0, max(min(s.capacity, maxPrealloc), s.live))
	entries := make([]entry[P], 0, cap(slots))
	for i := s.head; i < len(s.slots); i++ {
		if !s.slots[i].Live() {
			continue
		}
		s.pos[s.slots[i].ID] = len(slots)
		slots = append(slots, s.slots[i])
		entries = append(entries, s.entries[i])
	}
	s.slots = slots
	s.entries = entries
	s.head = 0
}

// Remove deletes the entry with the given ID. It reports false, and leaves
// the store untouched, when no such entry exists.
func (s *Store[P]) Remove(id uint64) (Entry[P], bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	i, ok := s.pos[id]
	if !ok {
		return Entry[P]{}, false
	}
	e := s.entryAt(i)
	s.killLocked(i)
	s.removals++
	s.generation++
	s.maybeCompactLocked()
	return e, true
}

// Clear drops every entry. IDs keep increasing across a Clear.
func (s *Store[P]) Clear() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := s.live
	s.resetLocked(0)
	s.removals += uint64(n)
	s.generation++
	return n
}

// Restore replaces the contents with entries (ascending IDs) and sets the
// next ID to assign. Used when loading a snapshot.
func (s *Store[P]) Restore(entries []Entry[P], nextID uint64) error {
	if len(entries) > s.capacity {
		return fmt.Errorf("%w: %d entries exceed capacity %d", ErrInvalidRestore, len(entries), s.capacity)
	}
	var prev uint64
	for _, e := range entries {
		if e.ID == 0 || e.ID <= prev {
			return fmt.Errorf("%w: IDs must be positive and strictly increasing (got %d after %d)", ErrInvalidRestore, e.ID, prev)
		}
		if e.Record.Width() != s.width || e.Mask.Width() != s.width {
			return fmt.Errorf("%w: entry %d has width %d/%d, want %d", ErrInvalidRestore, e.ID, e.Record.Width(), e.Mask.Width(), s.width)
		}
		prev = e.ID
	}
	if nextID <= prev {
		return fmt.Errorf("%w: next ID %d not above last ID %d", ErrInvalidRestore, nextID, prev)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.resetLocked(len(entries))
	for _, e := range entries {
		s.appendLocked(e.ID, entry[P]{record: e.Record.Clone(), mask: e.Mask.Clone(), payload: e.Payload})
	}
	s.nextID = nextID
	s.generation++
	return nil
}

// Get returns the entry with the given ID.
func (s *Store[P]) Get(id uint64) (Entry[P], bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	i, ok := s.pos[id]
	if !ok {
		return Entry[P]{}, false
	}
	return s.entryAt(i), true
}

// Find returns the ID of the oldest entry whose record and mask both equal
// the arguments.
func (s *Store[P]) Find(record, mask bitvec.Record) (uint64, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.findLocked(record, mask)
}

func (s *Store[P]) findLocked(record, mask bitvec.Record) (uint64, bool) {
	for i := s.head; i < len(s.slots); i++ {
		if !s.slots[i].Live() {
			continue
		}
		if s.entries[i].record.Equal(record) && s.entries[i].mask.Equal(mask) {
			return s.slots[i].ID, true
		}
	}
	return 0, false
}

// Oldest returns the ID the next eviction would remove.
func (s *Store[P]) Oldest() (uint64, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for i := s.head; i < len(s.slots); i++ {
		if s.slots[i].Live() {
			return s.slots[i].ID, true
		}
	}
	return 0, false
}

// Range calls fn for each entry in insertion order until fn returns false.
// fn runs under the read lock and must not call mutating methods.
func (s *Store[P]) Range(fn func(Entry[P]) bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for i := s.head; i < len(s.slots); i++ {
		if !s.slots[i].Live() {
			continue
		}
		if !fn(s.entryAt(i)) {
			return
		}
	}
}

// entryAt returns the entry in slot i. The records are shared, not copied.
func (s *Store[P]) entryAt(i int) Entry[P] {
	e := s.entries[i]
	return Entry[P]{ID: s.slots[i].ID, Record: e.record, Mask: e.mask, Payload: e.payload}
}

// View is a consistent read-only view of the store, valid only inside Read.
type View[P any] struct {
	s *Store[P]
}

// Read runs fn under the read lock. No mutation can happen until fn returns.
func (s *Store[P]) Read(fn func(v View[P])) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	fn(View[P]{s: s})
}

// Slots returns the slot array. It may contain dead slots.
func (v View[P]) Slots() []scorer.Slot { return v.s.slots[v.s.head:] }

// Entry returns the entry at index i of Slots().
func (v View[P]) Entry(i int) Entry[P] { return v.s.entryAt(v.s.head + i) }

// Payload returns the payload at index i of Slots().
func (v View[P]) Payload(i int) P { return v.s.entries[v.s.head+i].payload }

// Len returns the number of live entries.
func (v View[P]) Len() int { return v.s.live }

// Generation returns the mutation counter.
func (v View[P]) Generation() uint64 { return v.s.generation }

// NextID returns the ID the next insert will receive.
func (v View[P]) NextID() uint64 { return v.s.nextID }

// Stats is a point-in-time summary of the store.
type Stats struct {
	Len        int
	Capacity   int
	Width      int
	Slots      int
	NextID     uint64
	Generation uint64
	Inserts    uint64
	Removals   uint64
	Evictions  uint64
	// MemoryBytes approximates the record and mask storage.
	MemoryBytes int64
}

// Stats returns counters and sizes.
func (s *Store[P]) Stats() Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	words := bitvec.NumWords(s.width)
	return Stats{
		Len:         s.live,
		Capacity:    s.capacity,
		Width:       s.width,
		Slots:       len(s.slots) - s.head,
		NextID:      s.nextID,
		Generation:  s.generation,
		Inserts:     s.inserts,
		Removals:    s.removals,
		Evictions:   s.evictions,
		MemoryBytes: int64(s.live) * int64(words) * 8 * 2,
	}
}
