// Command benchmark generates a synthetic VBQ file and times the write
// path, then compares a sequential scan against a parallel one. It is a
// developer tool, not part of the storage engine itself.
package main

import (
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"time"

	"github.com/ArcInstitute/vbinseq"
	"github.com/ArcInstitute/vbinseq/parallel"
)

func main() {
	sizeMB := 500
	if len(os.Args) > 1 {
		fmt.Sscanf(os.Args[1], "%d", &sizeMB)
	}

	tmpDir, err := os.MkdirTemp("", "vbq_bench")
	if err != nil {
		panic(err)
	}
	defer os.RemoveAll(tmpDir)

	path := filepath.Join(tmpDir, "bench.vbq")
	fmt.Printf("Generating ~%d MB of synthetic reads at %s...\n", sizeMB, path)

	header := vbinseq.NewFileHeader()
	header.Qual = true

	f, err := os.Create(path)
	if err != nil {
		panic(err)
	}
	w, err := vbinseq.NewWriter(f, header, nil, false)
	if err != nil {
		panic(err)
	}

	rng := rand.New(rand.NewSource(123))
	limit := int64(sizeMB) * 1024 * 1024
	var written int64
	var rows int

	seq := make([]byte, 0, 256)
	qual := make([]byte, 0, 256)
	for written < limit {
		rows++
		seq = randomBases(seq[:0], rng, 100+rng.Intn(200))
		qual = randomQuality(qual[:0], rng, len(seq))

		ok, err := w.WriteNucleotidesQuality(uint64(rows), seq, qual)
		if err != nil {
			panic(err)
		}
		if ok {
			written += int64(len(seq) + len(qual))
		}
	}
	if err := w.Finish(); err != nil {
		panic(err)
	}
	f.Close()

	stat, _ := os.Stat(path)
	fmt.Printf("Generated %d records (%.2f MB on disk)\n", rows, float64(stat.Size())/1024/1024)

	fmt.Println("Sequential scan...")
	start := time.Now()
	seqCount := scanSequential(path)
	seqElapsed := time.Since(start)

	fmt.Println("Parallel scan...")
	start = time.Now()
	parCount := scanParallel(path, runtime.NumCPU())
	parElapsed := time.Since(start)

	mbPerSec := float64(stat.Size()) / 1024 / 1024 / parElapsed.Seconds()
	fmt.Printf("\n--------------------------------------------------\n")
	fmt.Printf("Sequential: %d records in %v\n", seqCount, seqElapsed)
	fmt.Printf("Parallel:   %d records in %v (%.2f MB/s)\n", parCount, parElapsed, mbPerSec)
	fmt.Printf("--------------------------------------------------\n")
}

func randomBases(dst []byte, rng *rand.Rand, n int) []byte {
	const bases = "ACGT"
	for i := 0; i < n; i++ {
		dst = append(dst, bases[rng.Intn(4)])
	}
	return dst
}

func randomQuality(dst []byte, rng *rand.Rand, n int) []byte {
	for i := 0; i < n; i++ {
		dst = append(dst, byte('!'+rng.Intn(40)))
	}
	return dst
}

func scanSequential(path string) int {
	r, err := vbinseq.OpenMmapReader(path)
	if err != nil {
		panic(err)
	}
	defer r.Close()

	buf := vbinseq.NewRecordBlockBuffer()
	count := 0
	for {
		more, err := r.ReadBlockInto(buf)
		if err != nil {
			panic(err)
		}
		if !more {
			break
		}
		count += buf.Len()
	}
	return count
}

type benchProcessor struct {
	mu    *sync.Mutex
	total *int
}

func (p *benchProcessor) ProcessRecord(v vbinseq.RecordView) error {
	p.mu.Lock()
	*p.total++
	p.mu.Unlock()
	return nil
}
func (p *benchProcessor) OnBatchComplete() error { return nil }
func (p *benchProcessor) SetThreadID(id int)     {}
func (p *benchProcessor) Clone() parallel.Processor[vbinseq.RecordView] {
	return &benchProcessor{mu: p.mu, total: p.total}
}

func scanParallel(path string, workers int) int {
	r, err := vbinseq.OpenMmapReader(path)
	if err != nil {
		panic(err)
	}
	defer r.Close()

	var mu sync.Mutex
	var total int
	proc := &benchProcessor{mu: &mu, total: &total}

	d := parallel.Dispatcher[vbinseq.RecordView]{NumThreads: workers}
	factory := func() (parallel.RecordBlockBuffer, func(int) vbinseq.RecordView) {
		return vbinseq.NewDispatchBuffer()
	}
	if err := d.Run(path, r, factory, proc); err != nil {
		panic(err)
	}
	return total
}
