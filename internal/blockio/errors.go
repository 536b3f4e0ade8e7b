package blockio

import "fmt"

// OversizeError reports a record whose encoded size exceeds the block size.
type OversizeError struct {
	RecordSize uint64
	BlockSize  uint64
}

func (e *OversizeError) Error() string {
	return fmt.Sprintf("blockio: record exceeds maximum block size: record=%d block=%d", e.RecordSize, e.BlockSize)
}

// IncompatibleBlockSizeError reports an Ingest call between writers whose
// block sizes differ.
type IncompatibleBlockSizeError struct {
	Self, Other uint64
}

func (e *IncompatibleBlockSizeError) Error() string {
	return fmt.Sprintf("blockio: incompatible block sizes: self=%d other=%d", e.Self, e.Other)
}
