// Package blockio implements the write-path block assembler: a bounded
// uncompressed staging buffer that accumulates records and finalizes whole
// blocks with zero padding, optionally streaming the padded body through
// zstd before it is written out (§4.3).
package blockio

import (
	"encoding/binary"
	"io"

	"github.com/ArcInstitute/vbinseq/internal/wire"
	"github.com/klauspost/compress/zstd"
)

// DefaultCompressionLevel is the zstd level new compressed Writers use
// unless configured otherwise.
const DefaultCompressionLevel = 3

// Writer accumulates records into a bounded uncompressed staging buffer
// (capacity equal to the logical block size), pads to the block size at
// flush, optionally compresses, and emits a block header + body.
type Writer struct {
	blockSize uint64
	compress  bool
	level     int

	pos     uint64   // current body byte offset, 0 <= pos <= blockSize
	starts  []uint64 // record start offsets within pos
	ubuf    []byte   // uncompressed staging, capacity blockSize
	zbuf    []byte   // compressed staging
	padding []byte   // blockSize zero bytes, precomputed
	records uint32   // completed records since the last flush

	enc *zstd.Encoder
}

// NewWriter returns a Writer for the given logical block size. level is the
// zstd compression level used when compress is true; it is ignored
// otherwise.
func NewWriter(blockSize uint64, compress bool, level int) *Writer {
	if level <= 0 {
		level = DefaultCompressionLevel
	}
	w := &Writer{
		blockSize: blockSize,
		compress:  compress,
		level:     level,
		ubuf:      make([]byte, 0, blockSize),
		padding:   make([]byte, blockSize),
	}
	if compress {
		enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(encoderLevel(level)))
		if err != nil {
			// zstd.NewWriter only fails on invalid options; level is
			// clamped above so this cannot happen in practice.
			panic(err)
		}
		w.enc = enc
	}
	return w
}

// Pos returns the current body byte offset.
func (w *Writer) Pos() uint64 { return w.pos }

// Records returns the number of completed records since the last flush.
func (w *Writer) Records() uint32 { return w.records }

// BlockSize returns the writer's logical block size.
func (w *Writer) BlockSize() uint64 { return w.blockSize }

// ExceedsBlockSize reports whether appending a record of recordSize bytes
// would overflow the current block, after first rejecting a record that can
// never fit in any block.
func (w *Writer) ExceedsBlockSize(recordSize uint64) (bool, error) {
	if recordSize > w.blockSize {
		return false, &OversizeError{RecordSize: recordSize, BlockSize: w.blockSize}
	}
	return w.pos+recordSize > w.blockSize, nil
}

// WriteRecord appends a record's preamble, packed primary sequence, optional
// primary quality, optional packed extended sequence, and optional extended
// quality to the staging buffer. Callers must have already checked
// ExceedsBlockSize and flushed if necessary: WriteRecord does not flush.
func (w *Writer) WriteRecord(flag, slen, xlen uint64, packedPrimary []uint64, qualPrimary []byte, packedExtended []uint64, qualExtended []byte) {
	w.starts = append(w.starts, w.pos)

	var preamble [wire.RecordPreambleSize]byte
	binary.LittleEndian.PutUint64(preamble[0:8], flag)
	binary.LittleEndian.PutUint64(preamble[8:16], slen)
	binary.LittleEndian.PutUint64(preamble[16:24], xlen)
	w.ubuf = append(w.ubuf, preamble[:]...)

	w.ubuf = appendWords(w.ubuf, packedPrimary)
	if qualPrimary != nil {
		w.ubuf = append(w.ubuf, qualPrimary...)
	}
	w.ubuf = appendWords(w.ubuf, packedExtended)
	if qualExtended != nil {
		w.ubuf = append(w.ubuf, qualExtended...)
	}

	w.pos = uint64(len(w.ubuf))
	w.records++
}

// encoderLevel maps a zstd numeric compression level onto the library's
// named speed tiers: 1 and below is fastest, 2-6 default, 7-12 better
// compression, and anything higher best compression.
func encoderLevel(level int) zstd.EncoderLevel {
	switch {
	case level <= 1:
		return zstd.SpeedFastest
	case level <= 6:
		return zstd.SpeedDefault
	case level <= 12:
		return zstd.SpeedBetterCompression
	default:
		return zstd.SpeedBestCompression
	}
}

func appendWords(dst []byte, words []uint64) []byte {
	for _, word := range words {
		dst = binary.LittleEndian.AppendUint64(dst, word)
	}
	return dst
}

// Flush pads the staging buffer to the block size, emits a block header and
// body to sink, and clears all write-path state. It is a no-op when the
// writer holds no bytes.
func (w *Writer) Flush(sink io.Writer) error {
	if w.pos == 0 {
		return nil
	}

	pad := w.blockSize - w.pos
	w.ubuf = append(w.ubuf, w.padding[:pad]...)

	var header wire.BlockHeader
	var body []byte
	if w.compress {
		w.zbuf = w.enc.EncodeAll(w.ubuf, w.zbuf[:0])
		header = wire.BlockHeader{Size: uint64(len(w.zbuf)), Records: w.records}
		body = w.zbuf
	} else {
		header = wire.BlockHeader{Size: w.blockSize, Records: w.records}
		body = w.ubuf
	}

	hdrBuf := header.Write(make([]byte, 0, wire.BlockHeaderSize))
	if _, err := sink.Write(hdrBuf); err != nil {
		return err
	}
	if _, err := sink.Write(body); err != nil {
		return err
	}

	w.pos = 0
	w.starts = w.starts[:0]
	w.ubuf = w.ubuf[:0]
	w.records = 0
	return nil
}

// Ingest consumes all bytes currently held in other, merging them into w
// (shifting other's record start offsets by w's current position), flushing
// w to sink whenever a merge would overflow it (§4.3). It never splits a
// record across the resulting block boundary.
func (w *Writer) Ingest(other *Writer, sink io.Writer) error {
	if w.blockSize != other.blockSize {
		return &IncompatibleBlockSizeError{Self: w.blockSize, Other: other.blockSize}
	}
	if other.pos == 0 {
		return nil
	}

	if other.pos <= w.blockSize-w.pos {
		w.ubuf = append(w.ubuf, other.ubuf...)
		for _, s := range other.starts {
			w.starts = append(w.starts, s+w.pos)
		}
		w.pos += other.pos
		w.records += other.records

		other.pos = 0
		other.starts = other.starts[:0]
		other.ubuf = other.ubuf[:0]
		other.records = 0
		return nil
	}

	limit := w.blockSize - w.pos
	splitIdx := 0
	var prefixLen uint64
	for splitIdx < len(other.starts) {
		end := other.pos
		if splitIdx+1 < len(other.starts) {
			end = other.starts[splitIdx+1]
		}
		if end > limit {
			break
		}
		prefixLen = end
		splitIdx++
	}

	w.ubuf = append(w.ubuf, other.ubuf[:prefixLen]...)
	for _, s := range other.starts[:splitIdx] {
		w.starts = append(w.starts, s+w.pos)
	}
	w.pos += prefixLen
	w.records += uint32(splitIdx)

	if err := w.Flush(sink); err != nil {
		return err
	}

	remaining := other.pos - prefixLen
	copy(other.ubuf[:remaining], other.ubuf[prefixLen:other.pos])
	other.ubuf = other.ubuf[:remaining]
	other.pos = remaining

	remainingStarts := other.starts[splitIdx:]
	for i := range remainingStarts {
		remainingStarts[i] -= prefixLen
	}
	other.starts = append(other.starts[:0], remainingStarts...)
	other.records -= uint32(splitIdx)

	return w.Ingest(other, sink)
}

// Close releases the writer's zstd encoder, if any.
func (w *Writer) Close() error {
	if w.enc != nil {
		return w.enc.Close()
	}
	return nil
}
