package benchmark

import (
	"context"
	"fmt"
	"testing"

	"github.com/yndnr/rewind-go/internal/core/replay"
	"github.com/yndnr/rewind-go/internal/process/memproc"
	"github.com/yndnr/rewind-go/internal/storage/journalfile"
	"github.com/yndnr/rewind-go/internal/telemetry/logger"
	"github.com/yndnr/rewind-go/internal/telemetry/metric"
)

// BenchmarkReplay benchmarks applying an in-memory journal to a fresh
// process.
func BenchmarkReplay(b *testing.B) {
	runWithEntryCounts(b, EntryCounts, func(b *testing.B, count int) {
		entries := buildJournal(count, 64)
		ctx := context.Background()

		b.ResetTimer()
		b.ReportAllocs()

		for i := 0; i < b.N; i++ {
			p := replay.NewPlayer(memproc.New(), replay.WithLogger(logger.Nop()))
			if _, err := replay.Run(ctx, p, replay.NewSliceSource(entries), replay.RunOptions{}); err != nil {
				b.Fatalf("Run failed: %v", err)
			}
		}
		b.ReportMetric(float64(count*b.N)/b.Elapsed().Seconds(), "entries/s")
	})
}

// BenchmarkReplaySegmentSize benchmarks the effect of segment length, which
// bounds how much memory a differential replay stages before a snapshot
// commits it.
func BenchmarkReplaySegmentSize(b *testing.B) {
	for _, segment := range []int{16, 256, 4096} {
		b.Run(fmt.Sprintf("segment_%d", segment), func(b *testing.B) {
			entries := buildJournal(20000, segment)
			ctx := context.Background()

			b.ResetTimer()
			b.ReportAllocs()

			for i := 0; i < b.N; i++ {
				p := replay.NewPlayer(memproc.New(), replay.WithLogger(logger.Nop()), replay.WithDifferential(&replay.Collector{}))
				if _, err := replay.Run(ctx, p, replay.NewSliceSource(entries), replay.RunOptions{}); err != nil {
					b.Fatalf("Run failed: %v", err)
				}
			}
			reportMemory(b, "heap")
		})
	}
}

// BenchmarkReplayFromFile benchmarks a replay that decodes as it goes.
func BenchmarkReplayFromFile(b *testing.B) {
	runWithEntryCounts(b, SmallEntryCounts, func(b *testing.B, count int) {
		path := writeJournal(b, buildJournal(count, 64))
		ctx := context.Background()

		b.ResetTimer()
		b.ReportAllocs()

		for i := 0; i < b.N; i++ {
			r, err := journalfile.Open(path)
			if err != nil {
				b.Fatalf("Open failed: %v", err)
			}
			p := replay.NewPlayer(memproc.New(), replay.WithLogger(logger.Nop()))
			if _, err := replay.Run(ctx, p, r, replay.RunOptions{}); err != nil {
				b.Fatalf("Run failed: %v", err)
			}
			r.Close()
		}
	})
}

// BenchmarkConcurrentSessions benchmarks several sessions sharing one
// manager and metrics registry.
func BenchmarkConcurrentSessions(b *testing.B) {
	entries := buildJournal(5000, 64)
	mgr := replay.NewManager(logger.Nop(), metric.NewRegistry())
	ctx := context.Background()

	b.ResetTimer()
	b.ReportAllocs()

	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			sess := mgr.Start(ctx, "bench", memproc.New(), replay.NewSliceSource(entries), replay.RunOptions{})
			if _, err := sess.Wait(ctx); err != nil {
				b.Errorf("session %s failed: %v", sess.ID, err)
				return
			}
		}
	})
}
