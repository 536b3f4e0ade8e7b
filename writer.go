package vbinseq

import (
	"io"

	"github.com/ArcInstitute/vbinseq/internal/blockio"
	"github.com/ArcInstitute/vbinseq/internal/nucleotide"
)

// drainableSink is the narrow interface a writer's sink must satisfy to
// participate as the "other" side of Writer.Ingest: its already-flushed
// bytes must be readable and clearable in one step (§4.4).
type drainableSink interface {
	io.Writer
	Bytes() []byte
	Reset()
}

// Writer assembles VBQ records into blocks and writes them to a sink. It
// owns exactly one block writer and one nucleotide encoder; both are
// exclusively owned until Finish (§3 Ownership and lifecycle).
type Writer struct {
	sink     io.Writer
	header   FileHeader
	headless bool

	cblock  *blockio.Writer
	encoder *nucleotide.Encoder

	finished bool
}

// NewWriter constructs a Writer over sink using header, encoding invalid
// bases per policy (nil selects nucleotide.SkipPolicy). Unless headless is
// true, the file header is emitted to sink immediately.
func NewWriter(sink io.Writer, header FileHeader, policy nucleotide.Policy, headless bool) (*Writer, error) {
	w := &Writer{
		sink:     sink,
		header:   header,
		headless: headless,
		cblock:   blockio.NewWriter(header.Block, header.Compressed, blockio.DefaultCompressionLevel),
		encoder:  nucleotide.NewEncoder(policy),
	}
	if !headless {
		if _, err := sink.Write(header.Write(make([]byte, 0, FileHeaderSize))); err != nil {
			return nil, err
		}
	}
	return w, nil
}

func (w *Writer) requireQual(qual bool) error {
	if w.header.Qual != qual {
		if qual {
			return &WriteError{Kind: "quality-flag"}
		}
		return &WriteError{Kind: "no-quality-flag"}
	}
	return nil
}

func (w *Writer) requirePaired(paired bool) error {
	if w.header.Paired != paired {
		if paired {
			return &WriteError{Kind: "paired-flag"}
		}
		return &WriteError{Kind: "unpaired-flag"}
	}
	return nil
}

// WriteNucleotides writes an unpaired, qualityless record. It returns
// (false, nil) when the encoder skips the record per policy.
func (w *Writer) WriteNucleotides(flag uint64, primary []byte) (bool, error) {
	if err := w.requireQual(false); err != nil {
		return false, err
	}
	if err := w.requirePaired(false); err != nil {
		return false, err
	}
	packed, ok, err := w.encoder.Single(primary)
	if err != nil || !ok {
		return false, err
	}
	return w.emit(flag, uint64(len(primary)), 0, packed, nil, nil, nil)
}

// WriteNucleotidesPaired writes a paired, qualityless record.
func (w *Writer) WriteNucleotidesPaired(flag uint64, primary, extended []byte) (bool, error) {
	if err := w.requireQual(false); err != nil {
		return false, err
	}
	if err := w.requirePaired(true); err != nil {
		return false, err
	}
	packedP, packedX, ok, err := w.encoder.Paired(primary, extended)
	if err != nil || !ok {
		return false, err
	}
	return w.emit(flag, uint64(len(primary)), uint64(len(extended)), packedP, nil, packedX, nil)
}

// WriteNucleotidesQuality writes an unpaired record with quality scores.
func (w *Writer) WriteNucleotidesQuality(flag uint64, primary, qual []byte) (bool, error) {
	if err := w.requireQual(true); err != nil {
		return false, err
	}
	if err := w.requirePaired(false); err != nil {
		return false, err
	}
	packed, ok, err := w.encoder.Single(primary)
	if err != nil || !ok {
		return false, err
	}
	return w.emit(flag, uint64(len(primary)), 0, packed, qual, nil, nil)
}

// WriteNucleotidesQualityPaired writes a paired record with quality scores.
func (w *Writer) WriteNucleotidesQualityPaired(flag uint64, primary, extended, qualPrimary, qualExtended []byte) (bool, error) {
	if err := w.requireQual(true); err != nil {
		return false, err
	}
	if err := w.requirePaired(true); err != nil {
		return false, err
	}
	packedP, packedX, ok, err := w.encoder.Paired(primary, extended)
	if err != nil || !ok {
		return false, err
	}
	return w.emit(flag, uint64(len(primary)), uint64(len(extended)), packedP, qualPrimary, packedX, qualExtended)
}

func (w *Writer) emit(flag, slen, xlen uint64, packedPrimary []uint64, qualPrimary []byte, packedExtended []uint64, qualExtended []byte) (bool, error) {
	if slen == 0 {
		return false, &WriteError{Kind: "zero-length-record"}
	}
	schunk := uint64(len(packedPrimary))
	xchunk := uint64(len(packedExtended))
	recordSize := RecordPreambleSize + 8*schunk + 8*xchunk
	if w.header.Qual {
		recordSize += slen + xlen
	}

	overflow, err := w.cblock.ExceedsBlockSize(recordSize)
	if err != nil {
		if _, ok := err.(*blockio.OversizeError); ok {
			return false, &WriteError{Kind: "oversize-record", RecordSize: recordSize, BlockSize: w.cblock.BlockSize()}
		}
		return false, err
	}
	if overflow {
		if err := w.cblock.Flush(w.sink); err != nil {
			return false, err
		}
	}
	w.cblock.WriteRecord(flag, slen, xlen, packedPrimary, qualPrimary, packedExtended, qualExtended)
	return true, nil
}

// Finish flushes the block writer and the sink. It must be called on every
// exit path; a failure here is fatal to the writer's owner (§4.4).
func (w *Writer) Finish() error {
	if w.finished {
		return nil
	}
	w.finished = true
	if err := w.cblock.Flush(w.sink); err != nil {
		return err
	}
	if f, ok := w.sink.(interface{ Flush() error }); ok {
		return f.Flush()
	}
	return nil
}

// Ingest merges other, an in-progress writer over a drainable in-memory
// sink, into w: other's file header must match w's exactly. All of other's
// already-flushed bytes are copied into w's sink first (and other's sink
// cleared), then other's partial block is merged into w's block writer.
// This lets multiple goroutines assemble blocks independently and a single
// serial merger combine them (§4.4).
func (w *Writer) Ingest(other *Writer) error {
	if !w.header.Equal(other.header) {
		return &WriteError{Kind: "incompatible-headers"}
	}
	drain, ok := other.sink.(drainableSink)
	if !ok {
		return &WriteError{Kind: "non-drainable-sink", Detail: "ingest source sink is not drainable"}
	}

	if _, err := w.sink.Write(drain.Bytes()); err != nil {
		return err
	}
	drain.Reset()

	return w.cblock.Ingest(other.cblock, w.sink)
}
