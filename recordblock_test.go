package vbinseq

import (
	"encoding/binary"

	"testing"

	"github.com/klauspost/compress/zstd"
)

func appendRawRecord(buf []byte, flag, slen, xlen uint64, primaryWord uint64) []byte {
	buf = binary.LittleEndian.AppendUint64(buf, flag)
	buf = binary.LittleEndian.AppendUint64(buf, slen)
	buf = binary.LittleEndian.AppendUint64(buf, xlen)
	buf = binary.LittleEndian.AppendUint64(buf, primaryWord)
	return buf
}

func TestRecordBlockBufferIngestRawStopsAtSentinel(t *testing.T) {
	var body []byte
	body = appendRawRecord(body, 1, 4, 0, 0xE4) // "ACGT" packed
	body = appendRawRecord(body, 2, 8, 0, 0xFF)
	body = append(body, make([]byte, 40)...) // zero-padding sentinel

	buf := NewRecordBlockBuffer()
	if err := buf.IngestRaw(body, false); err != nil {
		t.Fatal(err)
	}
	if buf.Len() != 2 {
		t.Fatalf("got %d records, want 2", buf.Len())
	}

	v0 := buf.At(0)
	if v0.Flag != 1 || v0.Slen != 4 {
		t.Fatalf("record 0 = %+v", v0)
	}
	decoded := v0.DecodePrimary(nil)
	if string(decoded) != "ACGT" {
		t.Fatalf("decoded = %q, want ACGT", decoded)
	}

	v1 := buf.At(1)
	if v1.Flag != 2 || v1.Slen != 8 {
		t.Fatalf("record 1 = %+v", v1)
	}
}

func TestRecordBlockBufferIngestRawWithQuality(t *testing.T) {
	var body []byte
	body = binary.LittleEndian.AppendUint64(body, 5)
	body = binary.LittleEndian.AppendUint64(body, 4)
	body = binary.LittleEndian.AppendUint64(body, 0)
	body = binary.LittleEndian.AppendUint64(body, 0xE4)
	body = append(body, []byte("IIII")...)
	body = append(body, make([]byte, 24)...)

	buf := NewRecordBlockBuffer()
	if err := buf.IngestRaw(body, true); err != nil {
		t.Fatal(err)
	}
	v := buf.At(0)
	if string(v.QualPrimary) != "IIII" {
		t.Fatalf("QualPrimary = %q, want IIII", v.QualPrimary)
	}
}

func TestRecordBlockBufferResetReusesBuffer(t *testing.T) {
	buf := NewRecordBlockBuffer()
	body := appendRawRecord(nil, 1, 4, 0, 0xE4)
	body = append(body, make([]byte, 8)...)
	if err := buf.IngestRaw(body, false); err != nil {
		t.Fatal(err)
	}
	if buf.Len() != 1 {
		t.Fatal("expected one record before reset")
	}

	empty := make([]byte, 24)
	if err := buf.IngestRaw(empty, false); err != nil {
		t.Fatal(err)
	}
	if buf.Len() != 0 {
		t.Fatalf("expected Reset to clear prior records, got %d", buf.Len())
	}
}

func TestRecordBlockBufferIngestCompressedBoundedByBlockSize(t *testing.T) {
	const blockSize = 64

	var raw []byte
	raw = appendRawRecord(raw, 7, 4, 0, 0xE4)
	raw = append(raw, make([]byte, int(blockSize)-len(raw))...)

	enc, err := zstd.NewWriter(nil)
	if err != nil {
		t.Fatal(err)
	}
	compressed := enc.EncodeAll(raw, nil)
	enc.Close()

	buf := NewRecordBlockBuffer()
	if err := buf.IngestCompressed(compressed, false, blockSize); err != nil {
		t.Fatal(err)
	}
	if buf.Len() != 1 {
		t.Fatalf("got %d records, want 1", buf.Len())
	}
	v := buf.At(0)
	if v.Flag != 7 || v.Slen != 4 {
		t.Fatalf("got %+v", v)
	}
}

func TestRecordBlockBufferSetStartIndex(t *testing.T) {
	buf := NewRecordBlockBuffer()
	buf.SetStartIndex(100)
	body := appendRawRecord(nil, 1, 4, 0, 0xE4)
	body = append(body, make([]byte, 8)...)
	if err := buf.IngestRaw(body, false); err != nil {
		t.Fatal(err)
	}
	if buf.At(0).Index != 100 {
		t.Fatalf("Index = %d, want 100", buf.At(0).Index)
	}
}
