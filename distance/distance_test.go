package distance

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/mhdmem/bitvec"
)

func TestBetween(t *testing.T) {
	tests := []struct {
		name     string
		q, mq    string
		r, mr    string
		expected int
		overlap  int
	}{
		{"Identical", "10110010", "11111111", "10110010", "11111111", 0, 8},
		{"PlainHamming", "00000001", "11111111", "00001111", "11111111", 3, 8},
		{"MaskedOutDifferences", "11111111", "11110000", "11110000", "11110000", 0, 4},
		{"CombinedMaskIsAnd", "11111111", "11110000", "00000000", "00111100", 2, 2},
		{"ZeroOverlap", "11111111", "11110000", "00000000", "00001111", 0, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, o, err := BetweenOverlap(
				bitvec.MustParse(tt.q), bitvec.MustParse(tt.mq),
				bitvec.MustParse(tt.r), bitvec.MustParse(tt.mr),
			)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, d)
			assert.Equal(t, tt.overlap, o)
		})
	}
}

func TestBetweenWidthMismatch(t *testing.T) {
	_, err := Between(bitvec.New(8), bitvec.Ones(8), bitvec.New(9), bitvec.Ones(8))
	assert.ErrorIs(t, err, ErrWidthMismatch)
}

func TestSelfDistanceIsZero(t *testing.T) {
	rng := rand.New(rand.NewSource(3))
	for _, w := range []int{1, 63, 64, 65, 300} {
		bools := make([]bool, w)
		maskBools := make([]bool, w)
		for i := range bools {
			bools[i] = rng.Intn(2) == 1
			maskBools[i] = rng.Intn(2) == 1
		}
		r, m := bitvec.FromBools(bools), bitvec.FromBools(maskBools)
		d, err := Between(r, m, r, m)
		require.NoError(t, err)
		assert.Zero(t, d, "width %d", w)
	}
}

func TestRangeAndHammingEquivalence(t *testing.T) {
	rng := rand.New(rand.NewSource(11))
	const w = 200
	ones := bitvec.Ones(w)
	for i := 0; i < 50; i++ {
		a, b, ma, mb := make([]bool, w), make([]bool, w), make([]bool, w), make([]bool, w)
		for j := 0; j < w; j++ {
			a[j], b[j] = rng.Intn(2) == 1, rng.Intn(2) == 1
			ma[j], mb[j] = rng.Intn(2) == 1, rng.Intn(2) == 1
		}
		q, r := bitvec.FromBools(a), bitvec.FromBools(b)

		d, err := Between(q, bitvec.FromBools(ma), r, bitvec.FromBools(mb))
		require.NoError(t, err)
		assert.GreaterOrEqual(t, d, 0)
		assert.LessOrEqual(t, d, w)

		full, err := Between(q, ones, r, ones)
		require.NoError(t, err)
		assert.Equal(t, Hamming(q.Words(), r.Words()), full)
	}
}

func TestOverlap(t *testing.T) {
	a := bitvec.MustParse("1110")
	b := bitvec.MustParse("0111")
	assert.Equal(t, 2, Overlap(a.Words(), b.Words()))
	assert.Equal(t, 3, Masked(a.Words(), bitvec.Ones(4).Words(), bitvec.New(4).Words(), bitvec.Ones(4).Words()))
}

func TestKernel(t *testing.T) {
	assert.Contains(t, []string{"generic", "popcnt"}, Kernel())
}
