// Package snapshot implements the binary export format of an associative
// memory.
//
// # Layout
//
//	header   magic "MHDM" | version u16 | compression u8 | reserved u8 |
//	         snapshot id (UUID) | width u32 | capacity u32 | next id u64 |
//	         entry count u64 | codec name (u8 length + bytes)
//	body     blocks of [uncompressed u32][compressed u32][data],
//	         compressed == 0 means raw, a zero header ends the body
//	trailer  CRC32-C (Castagnoli) of header and body, u32
//
// All integers are little-endian. The decompressed body is the concatenation
// of entries:
//
//	id u64 | record words | mask words | payload length uvarint | payload
//
// Entries are written in insertion order and keep their IDs, so a restored
// memory breaks distance ties exactly like the original.
//
// Blocks are compressed with LZ4 (github.com/pierrec/lz4/v4) or ZSTD
// (github.com/klauspost/compress/zstd). A block that does not shrink by at
// least 10% is stored raw.
package snapshot
