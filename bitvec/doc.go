// Package bitvec provides the fixed-width bit records used as patterns and
// masks by the associative memory.
//
// # Layout
//
// A Record of width W is stored as ceil(W/64) uint64 words. Bit i lives in
// word i/64 at bit position i%64 (least significant bit first). Bits above W
// are always zero, so word-parallel AND/XOR/popcount never sees garbage.
//
// The text form used by Parse and String lists bit 0 first:
//
//	r := bitvec.MustParse("00001111") // bits 4..7 set
//	m := bitvec.Prefix(8, 4)          // "11110000": first four positions significant
//
// # Constructors
//
//   - New, Ones, Prefix: fixed shapes
//   - Parse, MustParse: '0'/'1' strings
//   - FromWords, FromBytes, FromBools: raw data
//   - FromFloats: binary quantization of a fractional solution
//   - FromBitSet: interop with github.com/bits-and-blooms/bitset
package bitvec
