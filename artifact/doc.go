// Package artifact implements the binary format for persisting quantized
// models.
//
// An artifact holds a model tree of sequential containers and quantized
// layers. The payload is optionally block-compressed (LZ4 for speed, ZSTD
// for ratio) and protected by a CRC32-Castagnoli checksum. All integers
// are little-endian.
//
// Layout:
//
//	[magic u32][version u8][compression u8][reserved u16]
//	[payload CRC32C u32][stored length u32][payload block]
//
// The payload block uses the standard block framing: uncompressed size,
// compressed size (0 when stored raw), then data.
package artifact
