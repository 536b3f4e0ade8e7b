package vbinseq

import (
	"os"

	"github.com/ArcInstitute/vbinseq/internal/mmapfile"
	"github.com/ArcInstitute/vbinseq/internal/vbqindex"
	"github.com/ArcInstitute/vbinseq/internal/wire"
)

// MmapReader holds a read-only memory map of a VBQ file and a cursor into
// it. Multiple record-block buffers and worker goroutines may share the
// same mapping; no mutation through it is ever possible (§3 Ownership and
// lifecycle, §5 Shared state).
type MmapReader struct {
	f      *os.File
	data   []byte
	Header FileHeader

	cursor     int64
	cumulative uint64
}

// OpenMmapReader opens path as a regular file, maps it read-only, and
// parses its file header.
func OpenMmapReader(path string) (*MmapReader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	stat, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, err
	}
	if !stat.Mode().IsRegular() {
		f.Close()
		return nil, &ReadError{Kind: "file-type"}
	}

	data, err := mmapfile.Map(f, stat.Size())
	if err != nil {
		f.Close()
		return nil, err
	}

	if len(data) < wire.FileHeaderSize {
		mmapfile.Unmap(data)
		f.Close()
		return nil, &ReadError{Kind: "eof", Offset: 0}
	}
	header, err := wire.ParseFileHeader(data[:wire.FileHeaderSize])
	if err != nil {
		mmapfile.Unmap(data)
		f.Close()
		return nil, convertHeaderError(err)
	}

	return &MmapReader{
		f:      f,
		data:   data,
		Header: header,
		cursor: wire.FileHeaderSize,
	}, nil
}

// Close unmaps the file and releases its descriptor.
func (r *MmapReader) Close() error {
	if err := mmapfile.Unmap(r.data); err != nil {
		r.f.Close()
		return err
	}
	return r.f.Close()
}

// Cursor returns the current byte offset into the file.
func (r *MmapReader) Cursor() int64 { return r.cursor }

// Data returns the reader's shared read-only mapping, for use by
// parallel package workers that slice it directly by block range.
func (r *MmapReader) Data() []byte { return r.data }

// IsCompressed reports whether block bodies are zstd-framed.
func (r *MmapReader) IsCompressed() bool { return r.Header.Compressed }

// HasQuality reports whether records carry quality scores.
func (r *MmapReader) HasQuality() bool { return r.Header.Qual }

// BlockSize returns the file's logical block size.
func (r *MmapReader) BlockSize() uint64 { return r.Header.Block }

// CumulativeRecords returns the total number of records consumed so far.
func (r *MmapReader) CumulativeRecords() uint64 { return r.cumulative }

// ReadBlockInto decodes the next block into buf, reports false once the
// file is exhausted (§4.6).
func (r *MmapReader) ReadBlockInto(buf *RecordBlockBuffer) (bool, error) {
	if r.cursor+wire.BlockHeaderSize > int64(len(r.data)) {
		return false, nil
	}
	bh, err := wire.ParseBlockHeader(r.data[r.cursor:r.cursor+wire.BlockHeaderSize], r.cursor)
	if err != nil {
		return false, convertHeaderError(err)
	}
	bodyStart := r.cursor + wire.BlockHeaderSize

	bodyLen := bh.Size
	if !r.Header.Compressed {
		bodyLen = r.Header.Block
	}
	if bodyStart+int64(bodyLen) > int64(len(r.data)) {
		return false, &ReadError{Kind: "eof", Offset: bodyStart}
	}
	body := r.data[bodyStart : bodyStart+int64(bodyLen)]

	if r.Header.Compressed {
		if err := buf.IngestCompressed(body, r.Header.Qual, r.Header.Block); err != nil {
			return false, err
		}
	} else {
		if err := buf.IngestRaw(body, r.Header.Qual); err != nil {
			return false, err
		}
	}
	buf.SetStartIndex(r.cumulative)

	// Prefer the header's Records field, but a zero value means "omitted or
	// miscomputed" (§9): fall back to the count actually decoded.
	records := bh.Records
	if records == 0 {
		records = buf.RecordCount()
	}

	r.cursor = bodyStart + int64(bodyLen)
	r.cumulative += uint64(records)
	return true, nil
}

// LoadIndex loads (or builds and persists) the sidecar block index for the
// file this reader has open (§4.6).
func (r *MmapReader) LoadIndex() (*vbqindex.Index, error) {
	idx, err := vbqindex.LoadOrBuild(r.f.Name())
	if err != nil {
		return nil, convertIndexError(err)
	}
	return idx, nil
}
