// Package simd provides the word-parallel bit kernels behind the masked
// Hamming distance.
//
// # Supported Platforms
//
//   - x86-64: POPCNT
//   - ARM64: CNT (ASIMD)
//
// Runtime CPU feature detection (golang.org/x/sys/cpu) selects the hardware
// path when available; otherwise a SWAR tree-merge popcount is used. Set
// MHDMEM_SIMD=generic or MHDMEM_SIMD=popcnt to force a path. An override for
// an unavailable path is ignored.
//
// # Operations
//
//   - PopCount: set bits across words
//   - Hamming: popcount(a XOR b)
//   - MaskedHamming: popcount((mq AND mr) AND (q XOR r)) plus the overlap
package simd
