package artifact

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompressBlockRoundTrip(t *testing.T) {
	// Repetitive payload so both algorithms actually compress.
	data := bytes.Repeat([]byte("codebook quantization "), 512)

	for _, c := range []Compression{CompressionNone, CompressionLZ4, CompressionZSTD} {
		block, err := compressBlock(data, c)
		require.NoError(t, err)

		if c != CompressionNone {
			assert.Less(t, len(block), len(data), "compression %d should shrink repetitive data", c)
		}

		out, err := decompressBlock(block, c)
		require.NoError(t, err)
		assert.Equal(t, data, out)
	}
}

func TestCompressBlockIncompressibleFallsBackToRaw(t *testing.T) {
	// High-entropy data: expect raw storage (compressed size field == 0).
	data := make([]byte, 4096)
	state := uint32(0x9e3779b9)
	for i := range data {
		state = state*1664525 + 1013904223
		data[i] = byte(state >> 24)
	}

	block, err := compressBlock(data, CompressionLZ4)
	require.NoError(t, err)

	out, err := decompressBlock(block, CompressionLZ4)
	require.NoError(t, err)
	assert.Equal(t, data, out)
}

func TestDecompressBlockTruncated(t *testing.T) {
	_, err := decompressBlock([]byte{1, 2, 3}, CompressionZSTD)
	assert.Error(t, err)
}

func TestCompressBlockUnknownType(t *testing.T) {
	_, err := compressBlock([]byte("x"), Compression(42))
	assert.Error(t, err)
}
