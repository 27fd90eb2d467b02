package simd

import "math/bits"

// Kernel function pointers, set once at init by setISA.
var (
	kernelPopCount = popCountGeneric
	kernelHamming  = hammingGeneric
	kernelMasked   = maskedHammingGeneric
)

// PopCount counts all set bits across words.
func PopCount(words []uint64) int {
	return kernelPopCount(words)
}

// Hamming returns popcount(a XOR b).
//
// SAFETY: Assumes len(a) == len(b). Caller MUST ensure lengths match.
func Hamming(a, b []uint64) int {
	return kernelHamming(a, b)
}

// MaskedHamming returns popcount((mq AND mr) AND (q XOR r)) and
// popcount(mq AND mr) in a single pass.
//
// SAFETY: Assumes all four slices have the same length.
func MaskedHamming(q, mq, r, mr []uint64) (dist, overlap int) {
	return kernelMasked(q, mq, r, mr)
}

// ==============================================================================
// Hardware popcount (math/bits lowers OnesCount64 to POPCNT / CNT)
// ==============================================================================

func popCountHW(words []uint64) int {
	n := 0
	i := 0
	for ; i+4 <= len(words); i += 4 {
		n += bits.OnesCount64(words[i]) +
			bits.OnesCount64(words[i+1]) +
			bits.OnesCount64(words[i+2]) +
			bits.OnesCount64(words[i+3])
	}
	for ; i < len(words); i++ {
		n += bits.OnesCount64(words[i])
	}
	return n
}

func hammingHW(a, b []uint64) int {
	b = b[:len(a)]
	n := 0
	i := 0
	for ; i+4 <= len(a); i += 4 {
		n += bits.OnesCount64(a[i]^b[i]) +
			bits.OnesCount64(a[i+1]^b[i+1]) +
			bits.OnesCount64(a[i+2]^b[i+2]) +
			bits.OnesCount64(a[i+3]^b[i+3])
	}
	for ; i < len(a); i++ {
		n += bits.OnesCount64(a[i] ^ b[i])
	}
	return n
}

func maskedHammingHW(q, mq, r, mr []uint64) (dist, overlap int) {
	n := len(q)
	mq, r, mr = mq[:n], r[:n], mr[:n]
	i := 0
	for ; i+4 <= n; i += 4 {
		m0 := mq[i] & mr[i]
		m1 := mq[i+1] & mr[i+1]
		m2 := mq[i+2] & mr[i+2]
		m3 := mq[i+3] & mr[i+3]
		dist += bits.OnesCount64(m0&(q[i]^r[i])) +
			bits.OnesCount64(m1&(q[i+1]^r[i+1])) +
			bits.OnesCount64(m2&(q[i+2]^r[i+2])) +
			bits.OnesCount64(m3&(q[i+3]^r[i+3]))
		overlap += bits.OnesCount64(m0) +
			bits.OnesCount64(m1) +
			bits.OnesCount64(m2) +
			bits.OnesCount64(m3)
	}
	for ; i < n; i++ {
		m := mq[i] & mr[i]
		dist += bits.OnesCount64(m & (q[i] ^ r[i]))
		overlap += bits.OnesCount64(m)
	}
	return dist, overlap
}

// ==============================================================================
// Generic implementations (SWAR tree merge)
// ==============================================================================

const (
	swarM1  = 0x5555555555555555
	swarM2  = 0x3333333333333333
	swarM4  = 0x0f0f0f0f0f0f0f0f
	swarH01 = 0x0101010101010101
)

func popCountSWAR(x uint64) int {
	x -= (x >> 1) & swarM1
	x = (x & swarM2) + ((x >> 2) & swarM2)
	x = (x + (x >> 4)) & swarM4
	return int((x * swarH01) >> 56)
}

func popCountGeneric(words []uint64) int {
	n := 0
	for _, w := range words {
		n += popCountSWAR(w)
	}
	return n
}

func hammingGeneric(a, b []uint64) int {
	b = b[:len(a)]
	n := 0
	for i := range a {
		n += popCountSWAR(a[i] ^ b[i])
	}
	return n
}

func maskedHammingGeneric(q, mq, r, mr []uint64) (dist, overlap int) {
	n := len(q)
	mq, r, mr = mq[:n], r[:n], mr[:n]
	for i := 0; i < n; i++ {
		m := mq[i] & mr[i]
		dist += popCountSWAR(m & (q[i] ^ r[i]))
		overlap += popCountSWAR(m)
	}
	return dist, overlap
}
