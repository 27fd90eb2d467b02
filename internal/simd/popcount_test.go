package simd

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func randWords(r *rand.Rand, n int) []uint64 {
	out := make([]uint64, n)
	for i := range out {
		out[i] = r.Uint64()
	}
	return out
}

func naiveMasked(q, mq, r, mr []uint64) (dist, overlap int) {
	for i := range q {
		for b := 0; b < 64; b++ {
			bit := uint64(1) << b
			if mq[i]&bit == 0 || mr[i]&bit == 0 {
				continue
			}
			overlap++
			if q[i]&bit != r[i]&bit {
				dist++
			}
		}
	}
	return dist, overlap
}

// withISA switches kernels for the duration of a test.
func withISA(t *testing.T, isa ISA) {
	t.Helper()
	if !isISAAvailable(isa) {
		t.Skipf("%s not available", isa)
	}
	prev := activeISA
	setISA(isa)
	t.Cleanup(func() { setISA(prev) })
}

func TestParseISA(t *testing.T) {
	isa, ok := ParseISA(" POPCNT ")
	assert.True(t, ok)
	assert.Equal(t, POPCNT, isa)

	isa, ok = ParseISA("generic")
	assert.True(t, ok)
	assert.Equal(t, Generic, isa)

	_, ok = ParseISA("avx512")
	assert.False(t, ok)

	assert.Equal(t, "unknown", ISA(42).String())
}

func TestPopCountSWAR(t *testing.T) {
	tests := []struct {
		x    uint64
		want int
	}{
		{0, 0},
		{1, 1},
		{0xFF, 8},
		{0x8000000000000000, 1},
		{^uint64(0), 64},
		{0x5555555555555555, 32},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, popCountSWAR(tt.x), "%#x", tt.x)
	}
}

func TestKernelsAgree(t *testing.T) {
	for _, isa := range []ISA{Generic, POPCNT} {
		t.Run(isa.String(), func(t *testing.T) {
			withISA(t, isa)

			rng := rand.New(rand.NewSource(7))
			for _, n := range []int{0, 1, 3, 4, 5, 8, 17} {
				q, mq := randWords(rng, n), randWords(rng, n)
				r, mr := randWords(rng, n), randWords(rng, n)

				wantDist, wantOverlap := naiveMasked(q, mq, r, mr)
				dist, overlap := MaskedHamming(q, mq, r, mr)
				assert.Equal(t, wantDist, dist, "n=%d", n)
				assert.Equal(t, wantOverlap, overlap, "n=%d", n)

				ones := make([]uint64, n)
				for i := range ones {
					ones[i] = ^uint64(0)
				}
				hd, _ := naiveMasked(q, ones, r, ones)
				assert.Equal(t, hd, Hamming(q, r), "n=%d", n)
				assert.Equal(t, 64*n, PopCount(ones))
			}
		})
	}
}

func TestMaskedHammingSelf(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	q, m := randWords(rng, 6), randWords(rng, 6)
	dist, overlap := MaskedHamming(q, m, q, m)
	assert.Zero(t, dist)
	assert.Equal(t, PopCount(m), overlap)
}

func TestMaskedHammingZeroMask(t *testing.T) {
	q := []uint64{0xFF}
	r := []uint64{0x00}
	dist, overlap := MaskedHamming(q, []uint64{0}, r, []uint64{^uint64(0)})
	assert.Zero(t, dist)
	assert.Zero(t, overlap)
}

func TestSetISAKeepsActive(t *testing.T) {
	withISA(t, Generic)
	require.Equal(t, Generic, ActiveISA())
}
