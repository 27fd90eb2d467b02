package queue

import (
	"container/heap"
	"slices"
)

// Item is a scored entry.
// Value-based (no pointers) for cache locality.
type Item struct {
	ID       uint64 // ID is the entry's insertion tag.
	Distance int    // Distance is the masked distance to the query.
	Overlap  int    // Overlap is the number of positions compared.
	Pos      int    // Pos is the slot index the item was scored from.
}

// Compare orders items by distance ascending, then by ID ascending
// (older entries first). It is the only ordering used for results.
func Compare(a, b Item) int {
	if a.Distance != b.Distance {
		if a.Distance < b.Distance {
			return -1
		}
		return 1
	}
	switch {
	case a.ID < b.ID:
		return -1
	case a.ID > b.ID:
		return 1
	}
	return 0
}

// Compile time check to ensure BoundedMax satisfies the heap interface.
var _ heap.Interface = (*BoundedMax)(nil)

// BoundedMax is a max-heap keyed on (Distance, ID) that keeps at most k items.
// The worst retained item is always on top, so a candidate can be rejected
// with one comparison.
type BoundedMax struct {
	k     int
	items []Item
}

// NewBoundedMax initializes a heap that retains the k best items.
func NewBoundedMax(k int) *BoundedMax {
	return &BoundedMax{
		k:     k,
		items: make([]Item, 0, k),
	}
}

// Len returns the number of elements in the heap.
func (pq *BoundedMax) Len() int { return len(pq.items) }

// Less reports whether i ranks worse than j, putting the worst item on top.
func (pq *BoundedMax) Less(i, j int) bool {
	return Compare(pq.items[i], pq.items[j]) > 0
}

// Swap swaps the elements with indexes i and j.
func (pq *BoundedMax) Swap(i, j int) {
	pq.items[i], pq.items[j] = pq.items[j], pq.items[i]
}

// Push appends x. Use Offer to keep the bound.
func (pq *BoundedMax) Push(x any) {
	pq.items = append(pq.items, x.(Item))
}

// Pop removes the last element. Use PopItem to take the top.
func (pq *BoundedMax) Pop() any {
	n := len(pq.items)
	item := pq.items[n-1]
	pq.items = pq.items[:n-1]
	return item
}

// Full reports whether the heap holds k items.
func (pq *BoundedMax) Full() bool { return len(pq.items) >= pq.k }

// TopItem returns the worst retained item.
func (pq *BoundedMax) TopItem() (Item, bool) {
	if len(pq.items) == 0 {
		return Item{}, false
	}
	return pq.items[0], true
}

// Offer adds item if it ranks among the k best seen so far.
// It reports whether the item was retained.
func (pq *BoundedMax) Offer(item Item) bool {
	if pq.k <= 0 {
		return false
	}
	if len(pq.items) < pq.k {
		heap.Push(pq, item)
		return true
	}
	if Compare(item, pq.items[0]) >= 0 {
		return false
	}
	pq.items[0] = item
	heap.Fix(pq, 0)
	return true
}

// PopItem removes and returns the worst retained item.
func (pq *BoundedMax) PopItem() (Item, bool) {
	if len(pq.items) == 0 {
		return Item{}, false
	}
	return heap.Pop(pq).(Item), true
}

// Sorted returns the retained items best first. The heap is left intact.
func (pq *BoundedMax) Sorted() []Item {
	out := slices.Clone(pq.items)
	slices.SortFunc(out, Compare)
	return out
}

// AppendTo appends the retained items (heap order) to dst.
func (pq *BoundedMax) AppendTo(dst []Item) []Item {
	return append(dst, pq.items...)
}

// Reset clears the heap for reuse with a new bound.
func (pq *BoundedMax) Reset(k int) {
	pq.k = k
	pq.items = pq.items[:0]
}

// Merge combines per-chunk results into the global top k under Compare.
func Merge(k int, parts ...[]Item) []Item {
	total := 0
	for _, p := range parts {
		total += len(p)
	}
	h := NewBoundedMax(min(k, total))
	for _, p := range parts {
		for _, it := range p {
			h.Offer(it)
		}
	}

	// Draining worst first fills the result back to front.
	out := make([]Item, h.Len())
	for i := len(out) - 1; i >= 0; i-- {
		out[i], _ = h.PopItem()
	}
	return out
}
