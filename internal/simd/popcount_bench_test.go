package simd

import (
	"math/rand"
	"strconv"
	"testing"
)

// Compare paths with:
//
//	go test ./internal/simd -run '^$' -bench .
//	MHDMEM_SIMD=generic go test ./internal/simd -run '^$' -bench .
func BenchmarkMaskedHamming(b *testing.B) {
	r := rand.New(rand.NewSource(1))
	for _, words := range []int{1, 4, 16, 64} {
		b.Run("words="+strconv.Itoa(words), func(b *testing.B) {
			q, mq := randWords(r, words), randWords(r, words)
			x, mx := randWords(r, words), randWords(r, words)
			b.SetBytes(int64(words * 8 * 4))
			b.ResetTimer()
			var sink int
			for i := 0; i < b.N; i++ {
				d, _ := MaskedHamming(q, mq, x, mx)
				sink += d
			}
			_ = sink
		})
	}
}
