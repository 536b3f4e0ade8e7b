// Package vbinseq implements VBQ, a block-structured binary container for
// nucleotide sequencing records.
//
// A VBQ file is a 32-byte file header followed by a sequence of blocks, each
// a 32-byte block header plus a body holding fixed-size (uncompressed) or
// variable-size (zstd-framed) record data. Records carry an opaque flag, one
// or two 2-bit-packed nucleotide sequences, and optional per-base quality
// scores. See the internal wire, blockio, nucleotide, and vbqindex packages
// for the header codec, block writer, encoder, and sidecar index details
// respectively.
package vbinseq
