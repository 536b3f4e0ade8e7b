// Package vbqindex builds and persists the block index: a per-block
// descriptor table (file offset, on-disk body length, record count,
// cumulative record count) used for random block access and static work
// partitioning (§4.7).
package vbqindex

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/ArcInstitute/vbinseq/internal/mmapfile"
	"github.com/ArcInstitute/vbinseq/internal/nucleotide"
	"github.com/ArcInstitute/vbinseq/internal/wire"
	"github.com/klauspost/compress/zstd"
)

// BlockRange describes one block's position and record accounting.
type BlockRange struct {
	StartOffset       uint64
	Len               uint64
	BlockRecords      uint32
	CumulativeRecords uint32
}

// Write appends the 32-byte encoding of r to buf and returns it.
func (r BlockRange) Write(buf []byte) []byte {
	var tmp [wire.BlockRangeEntrySize]byte
	binary.LittleEndian.PutUint64(tmp[0:8], r.StartOffset)
	binary.LittleEndian.PutUint64(tmp[8:16], r.Len)
	binary.LittleEndian.PutUint32(tmp[16:20], r.BlockRecords)
	binary.LittleEndian.PutUint32(tmp[20:24], r.CumulativeRecords)
	for i := 24; i < wire.BlockRangeEntrySize; i++ {
		tmp[i] = wire.ReservedFill
	}
	return append(buf, tmp[:]...)
}

func parseBlockRange(buf []byte) BlockRange {
	return BlockRange{
		StartOffset:       binary.LittleEndian.Uint64(buf[0:8]),
		Len:               binary.LittleEndian.Uint64(buf[8:16]),
		BlockRecords:      binary.LittleEndian.Uint32(buf[16:20]),
		CumulativeRecords: binary.LittleEndian.Uint32(buf[20:24]),
	}
}

// Index is the in-memory form of a .vqi sidecar: an ordered list of block
// ranges plus the upstream file size they were built against.
type Index struct {
	FileSize uint64
	Ranges   []BlockRange
}

// ErrKind distinguishes the index error variants named in §6.
type ErrKind int

const (
	// ErrMagic marks a sidecar whose header magic does not match.
	ErrMagic ErrKind = iota
	// ErrMissingUpstream marks a sidecar path that does not end in .vqi.
	ErrMissingUpstream
	// ErrByteSizeMismatch marks a sidecar whose recorded file size does not
	// match the upstream file's actual size. This is the ONLY variant a
	// reader should treat as "stale, rebuild" (§9).
	ErrByteSizeMismatch
)

// Error reports an index-layer failure.
type Error struct {
	Kind     ErrKind
	Actual   int64
	Expected int64
}

func (e *Error) Error() string {
	switch e.Kind {
	case ErrMagic:
		return "vbqindex: invalid index magic"
	case ErrMissingUpstream:
		return "vbqindex: missing upstream file path"
	case ErrByteSizeMismatch:
		return fmt.Sprintf("vbqindex: byte-size mismatch(actual=%d, expected=%d)", e.Actual, e.Expected)
	default:
		return "vbqindex: unknown error"
	}
}

// UpstreamPath strips the ".vqi" suffix from a sidecar path to recover the
// VBQ file it indexes. The trailing-strip rule is authoritative (§9 Open
// Questions): a future format revision may carry the upstream path inside
// the header instead.
func UpstreamPath(sidecarPath string) (string, error) {
	const suffix = ".vqi"
	if !strings.HasSuffix(sidecarPath, suffix) {
		return "", &Error{Kind: ErrMissingUpstream}
	}
	return strings.TrimSuffix(sidecarPath, suffix), nil
}

// SidecarPath returns the conventional sidecar path for a VBQ file.
func SidecarPath(vbqPath string) string {
	return vbqPath + ".vqi"
}

// countRecordsInBody walks an already-decoded (decompressed, if the file is
// compressed) block body, counting non-sentinel records exactly as
// RecordBlockBuffer.IngestRaw does, without retaining any decoded bytes.
// This backs the records-field fallback for blocks whose header writes
// Records == 0 (§9: "readers ... must fall back to counting non-sentinel
// records during ingest").
func countRecordsInBody(body []byte, qual bool) uint32 {
	var n uint32
	pos := 0
	for len(body)-pos >= wire.RecordPreambleSize {
		slen := binary.LittleEndian.Uint64(body[pos+8 : pos+16])
		xlen := binary.LittleEndian.Uint64(body[pos+16 : pos+24])
		pos += wire.RecordPreambleSize
		if slen == 0 {
			break
		}
		n++
		pos += 8 * nucleotide.PackedWords(int(slen))
		if qual {
			pos += int(slen)
		}
		pos += 8 * nucleotide.PackedWords(int(xlen))
		if qual {
			pos += int(xlen)
		}
	}
	return n
}

// countRecordsFallback returns the authoritative record count for a block
// whose header field is 0, decompressing first when the file is compressed
// (§9 Open Questions: "the block header records count field").
func countRecordsFallback(body []byte, compressed, qual bool) (uint32, error) {
	if !compressed {
		return countRecordsInBody(body, qual), nil
	}
	dec, err := zstd.NewReader(nil)
	if err != nil {
		return 0, err
	}
	defer dec.Close()
	decoded, err := dec.DecodeAll(body, nil)
	if err != nil {
		return 0, err
	}
	return countRecordsInBody(decoded, qual), nil
}

// BuildFromScan walks every block in the VBQ file at path via a read-only
// mapping, recording each block's offset, on-disk body length, record
// count, and running cumulative record count (§4.7).
func BuildFromScan(path string) (*Index, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	stat, err := f.Stat()
	if err != nil {
		return nil, err
	}
	size := stat.Size()

	data, err := mmapfile.Map(f, size)
	if err != nil {
		return nil, err
	}
	defer mmapfile.Unmap(data)

	fh, err := wire.ParseFileHeader(data[:wire.FileHeaderSize])
	if err != nil {
		return nil, err
	}

	idx := &Index{FileSize: uint64(size)}
	var cursor uint64 = wire.FileHeaderSize
	var cumulative uint32
	for cursor+wire.BlockHeaderSize <= uint64(size) {
		bh, err := wire.ParseBlockHeader(data[cursor:cursor+wire.BlockHeaderSize], int64(cursor))
		if err != nil {
			return nil, err
		}
		bodyLen := bh.Size
		if !fh.Compressed {
			bodyLen = fh.Block
		}
		start := cursor
		cursor += wire.BlockHeaderSize
		if cursor+bodyLen > uint64(size) {
			break
		}

		records := bh.Records
		if records == 0 {
			records, err = countRecordsFallback(data[cursor:cursor+bodyLen], fh.Compressed, fh.Qual)
			if err != nil {
				return nil, err
			}
		}

		idx.Ranges = append(idx.Ranges, BlockRange{
			StartOffset:       start,
			Len:               bodyLen,
			BlockRecords:      records,
			CumulativeRecords: cumulative,
		})
		cumulative += records
		cursor += bodyLen
	}
	return idx, nil
}

// Save writes the index header (plaintext) followed by a zstd stream of the
// concatenated 32-byte block-range entries (§4.7).
func (idx *Index) Save(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	var hdr [wire.IndexHeaderSize]byte
	binary.LittleEndian.PutUint64(hdr[0:8], wire.IndexMagic)
	binary.LittleEndian.PutUint64(hdr[8:16], idx.FileSize)
	for i := 16; i < wire.IndexHeaderSize; i++ {
		hdr[i] = wire.ReservedFill
	}
	if _, err := f.Write(hdr[:]); err != nil {
		return err
	}

	enc, err := zstd.NewWriter(f)
	if err != nil {
		return err
	}
	defer enc.Close()

	buf := make([]byte, 0, wire.BlockRangeEntrySize)
	for _, r := range idx.Ranges {
		buf = r.Write(buf[:0])
		if _, err := enc.Write(buf); err != nil {
			return err
		}
	}
	return nil
}

// Load reads a sidecar at path, deriving the upstream VBQ path and cross
// checking the upstream file's current size against the size recorded at
// build time. A mismatch is reported as ErrByteSizeMismatch and is the only
// variant a caller should treat as "stale" (§9 Open Questions).
func Load(path string) (*Index, error) {
	upstream, err := UpstreamPath(path)
	if err != nil {
		return nil, err
	}

	stat, err := os.Stat(upstream)
	if err != nil {
		return nil, err
	}
	actualSize := stat.Size()

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if len(raw) < wire.IndexHeaderSize {
		return nil, &Error{Kind: ErrMagic}
	}

	magic := binary.LittleEndian.Uint64(raw[0:8])
	if magic != wire.IndexMagic {
		return nil, &Error{Kind: ErrMagic}
	}
	recordedSize := binary.LittleEndian.Uint64(raw[8:16])
	if int64(recordedSize) != actualSize {
		return nil, &Error{Kind: ErrByteSizeMismatch, Actual: actualSize, Expected: int64(recordedSize)}
	}

	dec, err := zstd.NewReader(bytes.NewReader(raw[wire.IndexHeaderSize:]))
	if err != nil {
		return nil, err
	}
	defer dec.Close()

	idx := &Index{FileSize: recordedSize}
	var entry [wire.BlockRangeEntrySize]byte
	for {
		if _, err := io.ReadFull(dec, entry[:]); err != nil {
			if err == io.EOF {
				break
			}
			return nil, err
		}
		idx.Ranges = append(idx.Ranges, parseBlockRange(entry[:]))
	}
	return idx, nil
}

// LoadOrBuild implements the reader's load_index recovery policy (§4.6):
// read the sidecar if present; on a byte-size mismatch, rebuild from scan
// and re-persist; if absent, build from scan and persist. Any other index
// error is returned to the caller unchanged.
func LoadOrBuild(vbqPath string) (*Index, error) {
	sidecar := SidecarPath(vbqPath)
	idx, err := Load(sidecar)
	switch {
	case err == nil:
		return idx, nil
	case os.IsNotExist(err):
		idx, err = BuildFromScan(vbqPath)
		if err != nil {
			return nil, err
		}
		return idx, idx.Save(sidecar)
	case IsMismatch(err):
		idx, err = BuildFromScan(vbqPath)
		if err != nil {
			return nil, err
		}
		return idx, idx.Save(sidecar)
	default:
		return nil, err
	}
}

// IsMismatch reports whether err is specifically a byte-size-mismatch index
// error — the only variant that should trigger a silent rebuild (§9 Open
// Questions: the reference predicate's true-for-everything behavior is
// rejected here).
func IsMismatch(err error) bool {
	ie, ok := err.(*Error)
	return ok && ie.Kind == ErrByteSizeMismatch
}
