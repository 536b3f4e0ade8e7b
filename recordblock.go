package vbinseq

import (
	"bytes"
	"encoding/binary"
	"io"

	"github.com/ArcInstitute/vbinseq/internal/nucleotide"
	"github.com/ArcInstitute/vbinseq/internal/wire"
	"github.com/klauspost/compress/zstd"
)

// RecordBlockBuffer is a reused, in-memory columnar decoding of one block:
// flags, lengths, packed sequence words, and optional quality bytes, plus
// the cumulative record index the block starts at (§4.5).
type RecordBlockBuffer struct {
	startIndex uint64

	flags []uint64
	lens  []uint64 // two entries per record: slen, xlen
	words []uint64 // packed primary words, then packed extended words, per record
	qual  []byte   // primary quality bytes, then extended quality bytes, per record

	scratch []byte
	decoder *zstd.Decoder
}

// NewRecordBlockBuffer returns an empty, reusable RecordBlockBuffer.
func NewRecordBlockBuffer() *RecordBlockBuffer {
	return &RecordBlockBuffer{}
}

// SetStartIndex sets the cumulative record index of the first record held.
// At reads it when building each view, so it may be set before or after an
// ingest; ingesting does not reset it.
func (b *RecordBlockBuffer) SetStartIndex(n uint64) { b.startIndex = n }

// Reset clears all columns while keeping their backing storage for reuse.
func (b *RecordBlockBuffer) Reset() {
	b.flags = b.flags[:0]
	b.lens = b.lens[:0]
	b.words = b.words[:0]
	b.qual = b.qual[:0]
}

// Len returns the number of records currently held.
func (b *RecordBlockBuffer) Len() int { return len(b.flags) }

// RecordCount returns the number of non-sentinel records actually decoded
// into the buffer by the last Ingest* call. It is the authoritative count a
// caller must fall back to when a block header's Records field is 0 (§9:
// older/miscomputed headers are not trusted blindly).
func (b *RecordBlockBuffer) RecordCount() uint32 { return uint32(len(b.flags)) }

// IngestRaw decodes an uncompressed block body (§4.5): it stops at the first
// slen==0 sentinel (block padding) or when fewer than 24 bytes remain.
func (b *RecordBlockBuffer) IngestRaw(data []byte, hasQuality bool) error {
	b.Reset()
	pos := 0
	for len(data)-pos >= wire.RecordPreambleSize {
		flag := binary.LittleEndian.Uint64(data[pos : pos+8])
		slen := binary.LittleEndian.Uint64(data[pos+8 : pos+16])
		xlen := binary.LittleEndian.Uint64(data[pos+16 : pos+24])
		pos += wire.RecordPreambleSize
		if slen == 0 {
			break
		}

		b.flags = append(b.flags, flag)
		b.lens = append(b.lens, slen, xlen)

		sWords := nucleotide.PackedWords(int(slen))
		for i := 0; i < sWords; i++ {
			b.words = append(b.words, binary.LittleEndian.Uint64(data[pos:pos+8]))
			pos += 8
		}
		if hasQuality {
			b.qual = append(b.qual, data[pos:pos+int(slen)]...)
			pos += int(slen)
		}

		xWords := nucleotide.PackedWords(int(xlen))
		for i := 0; i < xWords; i++ {
			b.words = append(b.words, binary.LittleEndian.Uint64(data[pos:pos+8]))
			pos += 8
		}
		if hasQuality {
			b.qual = append(b.qual, data[pos:pos+int(xlen)]...)
			pos += int(xlen)
		}
	}
	return nil
}

// IngestCompressed decodes a zstd-framed block body. Unlike IngestRaw it
// tracks a synthetic position against the logical blockSize rather than the
// (shorter) length of the compressed input, because the loop must know when
// it has reached the true end of the logical block, not the end of the
// compressed frame (§4.5).
func (b *RecordBlockBuffer) IngestCompressed(data []byte, hasQuality bool, blockSize uint64) error {
	b.Reset()

	var err error
	if b.decoder == nil {
		b.decoder, err = zstd.NewReader(bytes.NewReader(data))
	} else {
		err = b.decoder.Reset(bytes.NewReader(data))
	}
	if err != nil {
		return err
	}

	var preamble [wire.RecordPreambleSize]byte
	var pos uint64
	for pos+wire.RecordPreambleSize <= blockSize {
		if _, err := io.ReadFull(b.decoder, preamble[:]); err != nil {
			return err
		}
		flag := binary.LittleEndian.Uint64(preamble[0:8])
		slen := binary.LittleEndian.Uint64(preamble[8:16])
		xlen := binary.LittleEndian.Uint64(preamble[16:24])
		pos += wire.RecordPreambleSize
		if slen == 0 {
			break
		}

		b.flags = append(b.flags, flag)
		b.lens = append(b.lens, slen, xlen)

		if err := b.readWords(int(slen)); err != nil {
			return err
		}
		pos += 8 * uint64(nucleotide.PackedWords(int(slen)))
		if hasQuality {
			if err := b.readQuality(int(slen)); err != nil {
				return err
			}
			pos += slen
		}

		if err := b.readWords(int(xlen)); err != nil {
			return err
		}
		pos += 8 * uint64(nucleotide.PackedWords(int(xlen)))
		if hasQuality {
			if err := b.readQuality(int(xlen)); err != nil {
				return err
			}
			pos += xlen
		}
	}
	return nil
}

func (b *RecordBlockBuffer) readWords(baseLen int) error {
	n := nucleotide.PackedWords(baseLen)
	var tmp [8]byte
	for i := 0; i < n; i++ {
		if _, err := io.ReadFull(b.decoder, tmp[:]); err != nil {
			return err
		}
		b.words = append(b.words, binary.LittleEndian.Uint64(tmp[:]))
	}
	return nil
}

func (b *RecordBlockBuffer) readQuality(n int) error {
	if cap(b.scratch) < n {
		b.scratch = make([]byte, n)
	}
	b.scratch = b.scratch[:n]
	if _, err := io.ReadFull(b.decoder, b.scratch); err != nil {
		return err
	}
	b.qual = append(b.qual, b.scratch...)
	return nil
}

// RecordView is a read-only window onto one decoded record (§6).
type RecordView struct {
	Index uint64
	Flag  uint64
	Slen  uint64
	Xlen  uint64

	PackedPrimary  []uint64
	PackedExtended []uint64

	QualPrimary  []byte
	QualExtended []byte
}

// IsPaired reports whether the record carries an extended sequence.
func (v RecordView) IsPaired() bool { return v.Xlen > 0 }

// HasQuality reports whether the record carries quality scores.
func (v RecordView) HasQuality() bool { return len(v.QualPrimary) > 0 || len(v.QualExtended) > 0 }

// DecodePrimary unpacks the primary sequence into dst, a reusable buffer.
func (v RecordView) DecodePrimary(dst []byte) []byte {
	return nucleotide.Decode(v.PackedPrimary, int(v.Slen), dst)
}

// DecodeExtended unpacks the extended sequence into dst, a reusable buffer.
func (v RecordView) DecodeExtended(dst []byte) []byte {
	return nucleotide.Decode(v.PackedExtended, int(v.Xlen), dst)
}

// At returns the i'th record in insertion order, 0 <= i < Len().
func (b *RecordBlockBuffer) At(i int) RecordView {
	slen, xlen := b.lens[2*i], b.lens[2*i+1]

	wordOffset := 0
	qualOffset := 0
	for j := 0; j < i; j++ {
		js, jx := b.lens[2*j], b.lens[2*j+1]
		wordOffset += nucleotide.PackedWords(int(js)) + nucleotide.PackedWords(int(jx))
		qualOffset += int(js) + int(jx)
	}

	sWords := nucleotide.PackedWords(int(slen))
	xWords := nucleotide.PackedWords(int(xlen))

	v := RecordView{
		Index:          b.startIndex + uint64(i),
		Flag:           b.flags[i],
		Slen:           slen,
		Xlen:           xlen,
		PackedPrimary:  b.words[wordOffset : wordOffset+sWords],
		PackedExtended: b.words[wordOffset+sWords : wordOffset+sWords+xWords],
	}
	if len(b.qual) > 0 {
		v.QualPrimary = b.qual[qualOffset : qualOffset+int(slen)]
		v.QualExtended = b.qual[qualOffset+int(slen) : qualOffset+int(slen)+int(xlen)]
	}
	return v
}

// Each calls fn for every record in insertion order, stopping at the first
// error fn returns.
func (b *RecordBlockBuffer) Each(fn func(RecordView) error) error {
	for i := 0; i < b.Len(); i++ {
		if err := fn(b.At(i)); err != nil {
			return err
		}
	}
	return nil
}

// NewDispatchBuffer returns a fresh RecordBlockBuffer paired with its
// record-view accessor, in the shape parallel.BufferFactory wants.
func NewDispatchBuffer() (*RecordBlockBuffer, func(i int) RecordView) {
	b := NewRecordBlockBuffer()
	return b, b.At
}
