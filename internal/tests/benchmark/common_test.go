package benchmark

import (
	"fmt"
	"math/rand/v2"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/yndnr/rewind-go/internal/core/domain"
	"github.com/yndnr/rewind-go/internal/storage/journalfile"
)

// EntryCounts defines the journal lengths for benchmarking.
var EntryCounts = []int{1000, 10000, 100000}

// SmallEntryCounts for quick benchmarks.
var SmallEntryCounts = []int{1000, 5000}

// memorySize is the linear memory of every generated process.
const memorySize = 16 << 20

// buildJournal returns count entries: an init-module followed by segments of
// memory updates and file writes, each closed by a snapshot and a
// clear-ethereal.
func buildJournal(count, segment int) []domain.Entry {
	rng := rand.New(rand.NewPCG(1, 2))
	file := domain.Descriptor{Type: domain.DescriptorFile, Path: "/var/data"}
	page := make([]byte, 256)

	entries := make([]domain.Entry, 0, count)
	entries = append(entries,
		domain.InitModule{ModuleHash: []byte("bench"), MemorySize: memorySize},
		domain.OpenFileDescriptor{FD: 3, Descriptor: file},
	)
	var fileOffset uint64
	for len(entries) < count {
		switch n := len(entries) % segment; {
		case n == 0:
			entries = append(entries, domain.ClearEthereal{}, domain.OpenFileDescriptor{FD: 3, Descriptor: file})
		case n == segment-1:
			entries = append(entries, domain.Snapshot{Timestamp: int64(len(entries)), Trigger: domain.TriggerPeriodic})
		case n%4 == 0:
			entries = append(entries, domain.FileDescriptorWrite{FD: 3, Offset: fileOffset, Data: page[:64]})
			fileOffset += 64
		default:
			offset := rng.Uint64N(memorySize - uint64(len(page)))
			entries = append(entries, domain.UpdateMemoryRegion{Offset: offset, Data: page})
		}
	}
	return entries
}

// writeJournal writes entries to a journal file under b.TempDir.
func writeJournal(b *testing.B, entries []domain.Entry) string {
	b.Helper()
	path := filepath.Join(b.TempDir(), "bench.journal")
	w, err := journalfile.OpenWriter(journalfile.Config{Path: path})
	if err != nil {
		b.Fatalf("Failed to open journal: %v", err)
	}
	for _, e := range entries {
		if err := w.Append(e); err != nil {
			b.Fatalf("Append failed: %v", err)
		}
	}
	if err := w.Close(); err != nil {
		b.Fatalf("Close failed: %v", err)
	}
	return path
}

// reportMemory reports memory usage.
func reportMemory(b *testing.B, prefix string) {
	var m runtime.MemStats
	runtime.GC()
	runtime.ReadMemStats(&m)
	b.ReportMetric(float64(m.Alloc)/(1024*1024), prefix+"_MB")
	b.ReportMetric(float64(m.NumGC), prefix+"_GC")
}

// runWithEntryCounts runs a benchmark function with various journal lengths.
func runWithEntryCounts(b *testing.B, counts []int, benchFn func(b *testing.B, count int)) {
	for _, count := range counts {
		b.Run(fmt.Sprintf("entries_%d", count), func(b *testing.B) {
			benchFn(b, count)
		})
	}
}
