package mhdmem

import (
	"errors"
	"math"

	"github.com/hupe1980/mhdmem/bitvec"
	"github.com/hupe1980/mhdmem/internal/store"
)

// DefaultSplitDistance is a reasonable maxDistance for SplitRead when
// records are short search states.
const DefaultSplitDistance = 4

// SplitSide aggregates the entries near a pattern that agree on one value
// of the split bit.
type SplitSide struct {
	// Score is the sum of score(payload) weighted by 1/(d+1).
	Score float64
	// Weight is the sum of the weights.
	Weight float64
	// Matches counts entries within the distance limit.
	Matches int
	// Hits counts entries at distance zero.
	Hits int
}

// Mean returns Score/Weight, or false when no entry contributed.
func (s SplitSide) Mean() (float64, bool) {
	if s.Weight == 0 {
		return 0, false
	}
	return s.Score / s.Weight, true
}

// SplitResult holds the aggregates for entries whose split bit is 0 and 1.
type SplitResult struct {
	Zero SplitSide
	One  SplitSide
}

// Hits returns the distance-zero entries on both sides.
func (r SplitResult) Hits() int { return r.Zero.Hits + r.One.Hits }

// SplitRead scores the two ways of extending pattern at bit index. Every
// entry within maxDistance of pattern under mask contributes its score,
// weighted by 1/(d+1), to the side named by the entry's own bit at index.
// A negative maxDistance admits every entry.
//
// Turning these sums into a priority or a decision is left to the caller.
// score runs under the memory's read lock and must not call any method of
// the memory.
func (m *Memory[P]) SplitRead(pattern, mask bitvec.Record, index, maxDistance int, score func(P) float64) (SplitResult, error) {
	if score == nil {
		return SplitResult{}, errors.New("score function is nil")
	}
	if err := m.checkPair("pattern", pattern, mask); err != nil {
		return SplitResult{}, err
	}
	if index < 0 || index >= m.Width() {
		return SplitResult{}, &ErrIndexOutOfRange{Index: index, Width: m.Width()}
	}

	var (
		res SplitResult
		err error
	)
	word, bit := index/64, uint(index%64)
	m.store.Read(func(v store.View[P]) {
		if v.Len() == 0 {
			err = ErrEmptyMemory
			return
		}
		slots := v.Slots()
		dist := make([]int, len(slots))
		m.scorer.Distances(slots, pattern.Words(), mask.Words(), dist)

		for i, d := range dist {
			if d < 0 || (maxDistance >= 0 && d > maxDistance) {
				continue
			}
			side := &res.Zero
			if slots[i].Record[word]>>bit&1 == 1 {
				side = &res.One
			}
			w := 1 / float64(d+1)
			side.Score += w * score(v.Payload(i))
			side.Weight += w
			side.Matches++
			if d == 0 {
				side.Hits++
			}
		}
	})
	return res, err
}

// ScoreStats summarizes score over the stored entries.
type ScoreStats struct {
	Count int
	Min   float64
	Max   float64
	Total float64
}

// Mean returns Total/Count, or 0 for an empty summary.
func (s ScoreStats) Mean() float64 {
	if s.Count == 0 {
		return 0
	}
	return s.Total / float64(s.Count)
}

// ScoreStats computes the minimum, maximum and total of score over all
// entries. An empty memory yields a zero ScoreStats. score runs under the
// memory's read lock and must not call any method of the memory.
func (m *Memory[P]) ScoreStats(score func(P) float64) (ScoreStats, error) {
	if score == nil {
		return ScoreStats{}, errors.New("score function is nil")
	}
	st := ScoreStats{Min: math.Inf(1), Max: math.Inf(-1)}
	m.store.Range(func(e store.Entry[P]) bool {
		s := score(e.Payload)
		st.Count++
		st.Total += s
		st.Min = min(st.Min, s)
		st.Max = max(st.Max, s)
		return true
	})
	if st.Count == 0 {
		return ScoreStats{}, nil
	}
	return st, nil
}
