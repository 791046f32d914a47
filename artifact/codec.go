package artifact

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"hash/crc32"
	"io"
	"math"

	"github.com/robeld/codebook/nn"
	"github.com/robeld/codebook/quantize"
)

const (
	magic   uint32 = 0x51424b43 // "CBKQ"
	version uint8  = 1

	headerSize = 16

	nodeSequential uint8 = 0
	nodeQuantized  uint8 = 1
)

var (
	// ErrBadMagic indicates the data is not a codebook artifact.
	ErrBadMagic = errors.New("artifact: bad magic")
	// ErrBadChecksum indicates payload corruption.
	ErrBadChecksum = errors.New("artifact: checksum mismatch")
	// ErrUnsupportedVersion indicates an artifact written by a newer format.
	ErrUnsupportedVersion = errors.New("artifact: unsupported version")
)

// ErrUnsupportedLayer indicates a model tree containing layers the format
// cannot represent. Only sequential containers and quantized layers are
// persistable; quantize a model before saving it.
type ErrUnsupportedLayer struct {
	Kind nn.Kind
}

func (e *ErrUnsupportedLayer) Error() string {
	return fmt.Sprintf("artifact: cannot persist %s layer", e.Kind)
}

var crc32cTable = crc32.MakeTable(crc32.Castagnoli)

// Encode writes a quantized model tree to w.
func Encode(w io.Writer, model nn.Layer, compression Compression) error {
	var payload bytes.Buffer
	if err := encodeNode(&payload, model); err != nil {
		return err
	}

	block, err := compressBlock(payload.Bytes(), compression)
	if err != nil {
		return err
	}

	header := make([]byte, headerSize)
	binary.LittleEndian.PutUint32(header[0:], magic)
	header[4] = version
	header[5] = uint8(compression)
	binary.LittleEndian.PutUint32(header[8:], crc32.Checksum(block, crc32cTable))
	binary.LittleEndian.PutUint32(header[12:], uint32(len(block)))

	if _, err := w.Write(header); err != nil {
		return err
	}
	_, err = w.Write(block)
	return err
}

// Decode reads a quantized model tree from r.
func Decode(r io.Reader) (nn.Layer, error) {
	header := make([]byte, headerSize)
	if _, err := io.ReadFull(r, header); err != nil {
		return nil, err
	}

	if binary.LittleEndian.Uint32(header[0:]) != magic {
		return nil, ErrBadMagic
	}
	if header[4] != version {
		return nil, ErrUnsupportedVersion
	}
	compression := Compression(header[5])
	wantCRC := binary.LittleEndian.Uint32(header[8:])
	blockLen := binary.LittleEndian.Uint32(header[12:])

	block := make([]byte, blockLen)
	if _, err := io.ReadFull(r, block); err != nil {
		return nil, err
	}
	if crc32.Checksum(block, crc32cTable) != wantCRC {
		return nil, ErrBadChecksum
	}

	payload, err := decompressBlock(block, compression)
	if err != nil {
		return nil, err
	}

	buf := bytes.NewReader(payload)
	model, err := decodeNode(buf)
	if err != nil {
		return nil, err
	}
	if buf.Len() != 0 {
		return nil, errors.New("artifact: trailing payload bytes")
	}
	return model, nil
}

func encodeNode(buf *bytes.Buffer, layer nn.Layer) error {
	switch layer.Kind() {
	case nn.KindSequential:
		seq, ok := layer.(*nn.Sequential)
		if !ok {
			return &ErrUnsupportedLayer{Kind: layer.Kind()}
		}
		buf.WriteByte(nodeSequential)
		writeUint32(buf, uint32(len(seq.Layers())))
		for _, child := range seq.Layers() {
			if err := encodeNode(buf, child); err != nil {
				return err
			}
		}
		return nil

	case nn.KindQuantized:
		q, ok := layer.(*quantize.QuantizedLinear)
		if !ok {
			return &ErrUnsupportedLayer{Kind: layer.Kind()}
		}
		return encodeQuantized(buf, q)

	default:
		return &ErrUnsupportedLayer{Kind: layer.Kind()}
	}
}

func encodeQuantized(buf *bytes.Buffer, q *quantize.QuantizedLinear) error {
	rows, cols := q.Index().Dims()
	values := q.Codebook().Values()
	bias := q.Bias()

	buf.WriteByte(nodeQuantized)
	writeUint32(buf, uint32(rows))
	writeUint32(buf, uint32(cols))
	writeUint16(buf, uint16(len(values)))
	if bias != nil {
		buf.WriteByte(1)
	} else {
		buf.WriteByte(0)
	}

	for _, v := range values {
		writeUint64(buf, math.Float64bits(v))
	}
	buf.Write(q.Index().Codes())
	for _, b := range bias {
		writeUint64(buf, math.Float64bits(b))
	}
	return nil
}

func decodeNode(r *bytes.Reader) (nn.Layer, error) {
	tag, err := r.ReadByte()
	if err != nil {
		return nil, err
	}

	switch tag {
	case nodeSequential:
		count, err := readUint32(r)
		if err != nil {
			return nil, err
		}
		// Every child occupies at least one payload byte; a count beyond
		// the remaining bytes is corruption.
		if int64(count) > int64(r.Len()) {
			return nil, errors.New("artifact: child count exceeds payload")
		}
		children := make([]nn.Layer, 0, count)
		for i := uint32(0); i < count; i++ {
			child, err := decodeNode(r)
			if err != nil {
				return nil, err
			}
			children = append(children, child)
		}
		return nn.NewSequential(children...), nil

	case nodeQuantized:
		return decodeQuantized(r)

	default:
		return nil, fmt.Errorf("artifact: unknown node tag %d", tag)
	}
}

func decodeQuantized(r *bytes.Reader) (nn.Layer, error) {
	rows, err := readUint32(r)
	if err != nil {
		return nil, err
	}
	cols, err := readUint32(r)
	if err != nil {
		return nil, err
	}
	k, err := readUint16(r)
	if err != nil {
		return nil, err
	}
	biasFlag, err := r.ReadByte()
	if err != nil {
		return nil, err
	}

	values := make([]float64, k)
	for i := range values {
		bits, err := readUint64(r)
		if err != nil {
			return nil, err
		}
		values[i] = math.Float64frombits(bits)
	}

	// Bound the code matrix against the remaining payload before
	// allocating; crafted dims must not force a huge allocation.
	n := int64(rows) * int64(cols)
	if n > int64(r.Len()) {
		return nil, errors.New("artifact: code matrix exceeds payload")
	}
	codes := make([]uint8, int(n))
	if _, err := io.ReadFull(r, codes); err != nil {
		return nil, err
	}

	var bias []float64
	if biasFlag == 1 {
		if int64(rows)*8 > int64(r.Len()) {
			return nil, errors.New("artifact: bias vector exceeds payload")
		}
		bias = make([]float64, rows)
		for i := range bias {
			bits, err := readUint64(r)
			if err != nil {
				return nil, err
			}
			bias[i] = math.Float64frombits(bits)
		}
	}

	return quantize.Restore(int(rows), int(cols), codes, values, bias)
}

func writeUint16(buf *bytes.Buffer, v uint16) {
	var b [2]byte
	binary.LittleEndian.PutUint16(b[:], v)
	buf.Write(b[:])
}

func writeUint32(buf *bytes.Buffer, v uint32) {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], v)
	buf.Write(b[:])
}

func writeUint64(buf *bytes.Buffer, v uint64) {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], v)
	buf.Write(b[:])
}

func readUint16(r *bytes.Reader) (uint16, error) {
	var b [2]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint16(b[:]), nil
}

func readUint32(r *bytes.Reader) (uint32, error) {
	var b [4]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(b[:]), nil
}

func readUint64(r *bytes.Reader) (uint64, error) {
	var b [8]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(b[:]), nil
}
