package vbinseq

import (
	"testing"

	"github.com/ArcInstitute/vbinseq/internal/wire"
)

func TestConvertHeaderErrorMapsBlockMagic(t *testing.T) {
	src := &wire.HeaderError{Kind: wire.HeaderErrorBlockMagic, Got: 0xdead, Offset: 64}
	out := convertHeaderError(src)
	he, ok := out.(*HeaderError)
	if !ok {
		t.Fatalf("got %T, want *HeaderError", out)
	}
	if he.Kind != "block-magic" || he.Got != 0xdead || he.Offset != 64 {
		t.Fatalf("got %+v", he)
	}
}

func TestConvertHeaderErrorPassesThroughOtherErrors(t *testing.T) {
	other := &ReadError{Kind: "file-type"}
	if convertHeaderError(other) != other {
		t.Fatal("expected non-HeaderError to pass through unchanged")
	}
}

func TestNewFileHeaderDefaults(t *testing.T) {
	h := NewFileHeader()
	if h.Block != DefaultBlockSize {
		t.Fatalf("Block = %d, want %d", h.Block, DefaultBlockSize)
	}
	if h.Qual || h.Compressed || h.Paired {
		t.Fatalf("expected all flags clear, got %+v", h)
	}
}
