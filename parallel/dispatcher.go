// Package parallel statically partitions a VBQ file's block index across
// worker goroutines and fans each partition out to a user-supplied
// processor, fork-join style (§4.8, §5).
package parallel

import (
	"runtime"
	"sync"

	"github.com/ArcInstitute/vbinseq/internal/vbqindex"
)

// Source is the subset of *vbinseq.MmapReader the dispatcher needs: a
// shared, read-only mapping and the file header governing block decode.
type Source interface {
	Data() []byte
	IsCompressed() bool
	HasQuality() bool
	BlockSize() uint64
}

// RecordBlockBuffer is the subset of *vbinseq.RecordBlockBuffer a worker
// needs to decode one block and walk its records.
type RecordBlockBuffer interface {
	SetStartIndex(uint64)
	IngestRaw(data []byte, hasQuality bool) error
	IngestCompressed(data []byte, hasQuality bool, blockSize uint64) error
	Len() int
}

// Processor is the user-supplied capability the dispatcher drives. Local
// per-thread state lives in the value Clone returns; state shared across
// threads must be synchronized by the caller — the dispatcher itself
// introduces no locks (§5).
type Processor[V any] interface {
	// ProcessRecord handles one decoded record.
	ProcessRecord(v V) error
	// OnBatchComplete is called once after every block a worker finishes.
	OnBatchComplete() error
	// SetThreadID is called once, before any record, with the worker's id.
	SetThreadID(id int)
	// Clone returns an independent copy for a new worker: it must preserve
	// any shared-state handles (e.g. a pointer behind a mutex) while giving
	// the new worker its own local buffers.
	Clone() Processor[V]
}

// BufferFactory constructs a fresh RecordBlockBuffer and a function that
// turns one of its decoded records (by index within the buffer) into the
// caller's view type V. Kept generic so the dispatcher has no compile-time
// dependency on the root package.
type BufferFactory[V any] func() (buf RecordBlockBuffer, at func(i int) V)

// Dispatcher partitions a block index across goroutines and drives a
// cloned Processor per worker (§4.8).
type Dispatcher[V any] struct {
	// NumThreads is the worker count; zero selects runtime.NumCPU().
	NumThreads int
}

// Run obtains/builds the index for path, partitions its blocks across
// NumThreads workers, and drives proc over every record. It returns the
// first error observed by any worker, after all workers have joined (§4.8,
// §5: worker errors short-circuit only that worker).
func (d Dispatcher[V]) Run(path string, src Source, newBuffer BufferFactory[V], proc Processor[V]) error {
	idx, err := vbqindex.LoadOrBuild(path)
	if err != nil {
		return err
	}
	if len(idx.Ranges) == 0 {
		return nil
	}

	numThreads := d.NumThreads
	if numThreads <= 0 {
		numThreads = runtime.NumCPU()
	}

	n := len(idx.Ranges)
	blocksPerThread := (n + numThreads - 1) / numThreads

	var wg sync.WaitGroup
	var once sync.Once
	var firstErr error

	for id := 0; id < numThreads; id++ {
		start := id * blocksPerThread
		end := start + blocksPerThread
		if end > n {
			end = n
		}
		if start >= end {
			continue
		}

		ranges := idx.Ranges[start:end]
		workerProc := proc.Clone()
		workerProc.SetThreadID(id)

		wg.Add(1)
		go func(ranges []vbqindex.BlockRange, p Processor[V]) {
			defer wg.Done()
			if err := runWorker(src, newBuffer, ranges, p); err != nil {
				once.Do(func() { firstErr = err })
			}
		}(ranges, workerProc)
	}

	wg.Wait()
	return firstErr
}

func runWorker[V any](src Source, newBuffer BufferFactory[V], ranges []vbqindex.BlockRange, proc Processor[V]) error {
	data := src.Data()
	buf, at := newBuffer()

	for _, r := range ranges {
		bodyStart := r.StartOffset + 32
		bodyEnd := bodyStart + r.Len
		body := data[bodyStart:bodyEnd]

		var err error
		if src.IsCompressed() {
			err = buf.IngestCompressed(body, src.HasQuality(), src.BlockSize())
		} else {
			err = buf.IngestRaw(body, src.HasQuality())
		}
		if err != nil {
			return err
		}
		buf.SetStartIndex(uint64(r.CumulativeRecords))

		for i := 0; i < buf.Len(); i++ {
			if err := proc.ProcessRecord(at(i)); err != nil {
				return err
			}
		}
		if err := proc.OnBatchComplete(); err != nil {
			return err
		}
	}
	return nil
}
