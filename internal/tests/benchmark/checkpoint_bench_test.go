package benchmark

import (
	"context"
	"fmt"
	"testing"

	"github.com/yndnr/rewind-go/internal/core/domain"
	"github.com/yndnr/rewind-go/internal/core/replay"
	"github.com/yndnr/rewind-go/internal/process/memproc"
	"github.com/yndnr/rewind-go/internal/storage/checkpoint"
	"github.com/yndnr/rewind-go/internal/telemetry/logger"
)

// restoredImage replays count entries and returns the process image.
func restoredImage(b *testing.B, count int) domain.ProcessImage {
	b.Helper()
	proc := memproc.New()
	p := replay.NewPlayer(proc, replay.WithLogger(logger.Nop()))
	if _, err := replay.Run(context.Background(), p, replay.NewSliceSource(buildJournal(count, 64)), replay.RunOptions{}); err != nil {
		b.Fatalf("Run failed: %v", err)
	}
	return proc.Image()
}

// BenchmarkCheckpointCreate benchmarks writing a checkpoint of a 16 MiB
// process.
func BenchmarkCheckpointCreate(b *testing.B) {
	img := restoredImage(b, 5000)
	mgr, err := checkpoint.NewManager(checkpoint.Config{Dir: b.TempDir(), Keep: 2})
	if err != nil {
		b.Fatalf("Failed to create manager: %v", err)
	}

	b.ResetTimer()
	b.ReportAllocs()

	for i := 0; i < b.N; i++ {
		if _, err := mgr.Create(checkpoint.Boundary{Journal: "bench", Position: uint64(i)}, img); err != nil {
			b.Fatalf("Create failed: %v", err)
		}
		if _, err := mgr.Prune(); err != nil {
			b.Fatalf("Prune failed: %v", err)
		}
	}
}

// BenchmarkCheckpointLoad benchmarks loading, verifying and restoring a
// checkpoint.
func BenchmarkCheckpointLoad(b *testing.B) {
	for _, count := range SmallEntryCounts {
		b.Run(fmt.Sprintf("entries_%d", count), func(b *testing.B) {
			mgr, err := checkpoint.NewManager(checkpoint.Config{Dir: b.TempDir()})
			if err != nil {
				b.Fatalf("Failed to create manager: %v", err)
			}
			if _, err := mgr.Create(checkpoint.Boundary{Journal: "bench"}, restoredImage(b, count)); err != nil {
				b.Fatalf("Create failed: %v", err)
			}

			b.ResetTimer()
			b.ReportAllocs()

			for i := 0; i < b.N; i++ {
				img, _, err := mgr.Load("bench")
				if err != nil {
					b.Fatalf("Load failed: %v", err)
				}
				_ = memproc.FromImage(img)
			}
		})
	}
}
