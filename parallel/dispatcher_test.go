package parallel_test

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/ArcInstitute/vbinseq"
	"github.com/ArcInstitute/vbinseq/parallel"
)

type countingProcessor struct {
	mu      *sync.Mutex
	total   *int
	batches *int
	indices []uint64
}

func newCountingProcessor() *countingProcessor {
	var mu sync.Mutex
	var total, batches int
	return &countingProcessor{mu: &mu, total: &total, batches: &batches}
}

func (p *countingProcessor) ProcessRecord(v vbinseq.RecordView) error {
	p.mu.Lock()
	*p.total++
	p.mu.Unlock()
	p.indices = append(p.indices, v.Index)
	return nil
}

func (p *countingProcessor) OnBatchComplete() error {
	p.mu.Lock()
	*p.batches++
	p.mu.Unlock()
	return nil
}

func (p *countingProcessor) SetThreadID(id int) {}

func (p *countingProcessor) Clone() parallel.Processor[vbinseq.RecordView] {
	return &countingProcessor{mu: p.mu, total: p.total, batches: p.batches}
}

func writeTestFile(t *testing.T, nRecords int, blockSize uint64) string {
	t.Helper()
	var sink bytes.Buffer
	h := vbinseq.NewFileHeader()
	h.Block = blockSize
	w, err := vbinseq.NewWriter(&sink, h, nil, false)
	if err != nil {
		t.Fatal(err)
	}
	for i := 0; i < nRecords; i++ {
		if _, err := w.WriteNucleotides(uint64(i), []byte("ACGT")); err != nil {
			t.Fatal(err)
		}
	}
	if err := w.Finish(); err != nil {
		t.Fatal(err)
	}

	path := filepath.Join(t.TempDir(), "data.vbq")
	if err := os.WriteFile(path, sink.Bytes(), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestDispatcherVisitsEveryRecordExactlyOnce(t *testing.T) {
	path := writeTestFile(t, 40, 128)

	r, err := vbinseq.OpenMmapReader(path)
	if err != nil {
		t.Fatal(err)
	}
	defer r.Close()

	proc := newCountingProcessor()
	d := parallel.Dispatcher[vbinseq.RecordView]{NumThreads: 4}
	factory := func() (parallel.RecordBlockBuffer, func(int) vbinseq.RecordView) {
		return vbinseq.NewDispatchBuffer()
	}

	if err := d.Run(path, r, factory, proc); err != nil {
		t.Fatal(err)
	}
	if *proc.total != 40 {
		t.Fatalf("total = %d, want 40", *proc.total)
	}
}

func TestDispatcherEmptyIndexSucceeds(t *testing.T) {
	path := writeTestFile(t, 0, 128)
	r, err := vbinseq.OpenMmapReader(path)
	if err != nil {
		t.Fatal(err)
	}
	defer r.Close()

	proc := newCountingProcessor()
	d := parallel.Dispatcher[vbinseq.RecordView]{}
	factory := func() (parallel.RecordBlockBuffer, func(int) vbinseq.RecordView) {
		return vbinseq.NewDispatchBuffer()
	}
	if err := d.Run(path, r, factory, proc); err != nil {
		t.Fatal(err)
	}
	if *proc.total != 0 {
		t.Fatalf("total = %d, want 0", *proc.total)
	}
}

func TestDispatcherPropagatesFirstError(t *testing.T) {
	path := writeTestFile(t, 10, 64)
	r, err := vbinseq.OpenMmapReader(path)
	if err != nil {
		t.Fatal(err)
	}
	defer r.Close()

	proc := &failingProcessor{}
	d := parallel.Dispatcher[vbinseq.RecordView]{NumThreads: 2}
	factory := func() (parallel.RecordBlockBuffer, func(int) vbinseq.RecordView) {
		return vbinseq.NewDispatchBuffer()
	}
	if err := d.Run(path, r, factory, proc); err == nil {
		t.Fatal("expected the injected failure to propagate")
	}
}

type failingProcessor struct{}

func (failingProcessor) ProcessRecord(v vbinseq.RecordView) error {
	return fmt.Errorf("boom")
}
func (failingProcessor) OnBatchComplete() error { return nil }
func (failingProcessor) SetThreadID(id int)     {}
func (p failingProcessor) Clone() parallel.Processor[vbinseq.RecordView] {
	return p
}
