package vbinseq

import (
	"fmt"

	"github.com/ArcInstitute/vbinseq/internal/vbqindex"
)

// HeaderError reports a malformed file or block header.
type HeaderError struct {
	Kind string // "magic", "format", "reserved", "block-magic"
	Want uint64
	Got  uint64
	// Offset is the byte position of the failing header in the file.
	// Only meaningful for block-header errors.
	Offset int64
}

func (e *HeaderError) Error() string {
	switch e.Kind {
	case "magic":
		return fmt.Sprintf("vbinseq: invalid magic: want 0x%x, got 0x%x", e.Want, e.Got)
	case "format":
		return fmt.Sprintf("vbinseq: invalid format version: want %d, got %d", e.Want, e.Got)
	case "reserved":
		return "vbinseq: invalid reserved region length"
	case "block-magic":
		return fmt.Sprintf("vbinseq: invalid block magic 0x%x at offset %d", e.Got, e.Offset)
	default:
		return "vbinseq: invalid header"
	}
}

// ReadError reports a failure while decoding the body of a VBQ file.
type ReadError struct {
	Kind   string // "file-type", "eof"
	Offset int64
	Detail string
}

func (e *ReadError) Error() string {
	switch e.Kind {
	case "file-type":
		return "vbinseq: invalid file type, expected a regular file"
	case "eof":
		return fmt.Sprintf("vbinseq: unexpected end of file at offset %d", e.Offset)
	default:
		return fmt.Sprintf("vbinseq: read error: %s", e.Detail)
	}
}

// WriteError reports a failure in the write path: a header/flag mismatch, an
// oversize record, an invalid nucleotide sequence, or an ingest conflict.
type WriteError struct {
	Kind       string
	Detail     string
	RecordSize uint64
	BlockSize  uint64
}

func (e *WriteError) Error() string {
	switch e.Kind {
	case "quality-flag":
		return "vbinseq: operation requires quality scores but header.Qual is false"
	case "paired-flag":
		return "vbinseq: operation requires paired sequences but header.Paired is false"
	case "unpaired-flag":
		return "vbinseq: operation does not support paired sequences but header.Paired is true"
	case "no-quality-flag":
		return "vbinseq: operation does not carry quality scores but header.Qual is true"
	case "oversize-record":
		return fmt.Sprintf("vbinseq: record exceeds maximum block size: record=%d block=%d", e.RecordSize, e.BlockSize)
	case "invalid-sequence":
		return fmt.Sprintf("vbinseq: invalid nucleotide sequence: %s", e.Detail)
	case "missing-header":
		return "vbinseq: writer has no file header bound"
	case "incompatible-headers":
		return "vbinseq: ingest source has an incompatible file header"
	case "incompatible-block-size":
		return "vbinseq: ingest source block writer has an incompatible block size"
	case "zero-length-record":
		return "vbinseq: a record's primary sequence length must be non-zero (0 is the padding sentinel)"
	default:
		return fmt.Sprintf("vbinseq: write error: %s", e.Detail)
	}
}

// IndexErrorKind identifies the variant of an IndexError.
type IndexErrorKind int

const (
	// IndexErrorMagic means the sidecar's magic bytes did not match "VBQINDEX".
	IndexErrorMagic IndexErrorKind = iota
	// IndexErrorMissingUpstream means the upstream VBQ path could not be
	// derived from the sidecar path (it did not end in ".vqi").
	IndexErrorMissingUpstream
	// IndexErrorByteSizeMismatch means the sidecar's recorded file size does
	// not match the actual VBQ file size on disk.
	IndexErrorByteSizeMismatch
)

// IndexError reports a failure building, saving, or loading a block index.
type IndexError struct {
	Kind     IndexErrorKind
	Actual   int64
	Expected int64
}

func (e *IndexError) Error() string {
	switch e.Kind {
	case IndexErrorMagic:
		return "vbinseq: invalid index magic"
	case IndexErrorMissingUpstream:
		return "vbinseq: missing upstream file path (sidecar path does not end in .vqi)"
	case IndexErrorByteSizeMismatch:
		return fmt.Sprintf("vbinseq: byte-size mismatch(actual=%d, expected=%d)", e.Actual, e.Expected)
	default:
		return "vbinseq: index error"
	}
}

// IsMismatch reports whether err is an IndexError whose variant is the
// byte-size cross-check failure — the only index error variant that should
// trigger a transparent rebuild-and-repersist of the sidecar. Every other
// index error (bad magic, missing upstream path) must propagate to the
// caller instead of silently rebuilding.
func IsMismatch(err error) bool {
	ie, ok := err.(*IndexError)
	if !ok {
		return false
	}
	return ie.Kind == IndexErrorByteSizeMismatch
}

// convertIndexError translates a vbqindex.Error into the package's public
// IndexError shape.
func convertIndexError(err error) error {
	ie, ok := err.(*vbqindex.Error)
	if !ok {
		return err
	}
	out := &IndexError{Actual: ie.Actual, Expected: ie.Expected}
	switch ie.Kind {
	case vbqindex.ErrMagic:
		out.Kind = IndexErrorMagic
	case vbqindex.ErrMissingUpstream:
		out.Kind = IndexErrorMissingUpstream
	case vbqindex.ErrByteSizeMismatch:
		out.Kind = IndexErrorByteSizeMismatch
	}
	return out
}
