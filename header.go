package vbinseq

import "github.com/ArcInstitute/vbinseq/internal/wire"

// Size constants re-exported from the wire codec for callers that need to
// reason about on-disk layout (e.g. computing record sizes before a write).
const (
	FileHeaderSize     = wire.FileHeaderSize
	BlockHeaderSize    = wire.BlockHeaderSize
	RecordPreambleSize = wire.RecordPreambleSize
	DefaultBlockSize   = wire.DefaultBlockSize
)

// FileHeader is the 32-byte header at the start of every VBQ file (§3).
type FileHeader = wire.FileHeader

// NewFileHeader returns a FileHeader with the default block size and all
// flags cleared.
func NewFileHeader() FileHeader {
	return wire.NewFileHeader()
}

// BlockHeader is the 32-byte header preceding every block body (§3).
type BlockHeader = wire.BlockHeader

// convertHeaderError translates a wire.HeaderError into the package's public
// HeaderError shape.
func convertHeaderError(err error) error {
	he, ok := err.(*wire.HeaderError)
	if !ok {
		return err
	}
	out := &HeaderError{Want: he.Want, Got: he.Got, Offset: he.Offset}
	switch he.Kind {
	case wire.HeaderErrorMagic:
		out.Kind = "magic"
	case wire.HeaderErrorFormat:
		out.Kind = "format"
	case wire.HeaderErrorReserved:
		out.Kind = "reserved"
	case wire.HeaderErrorBlockMagic:
		out.Kind = "block-magic"
	}
	return out
}
