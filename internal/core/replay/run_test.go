package replay

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"

	"github.com/yndnr/rewind-go/internal/core/domain"
)

// failingSource yields its entries and then a fixed error.
type failingSource struct {
	*SliceSource
	err error
}

func (s *failingSource) Next(ctx context.Context) (domain.Entry, error) {
	e, err := s.SliceSource.Next(ctx)
	if err != nil {
		return nil, s.err
	}
	return e, nil
}

// blockingSource yields one entry and then blocks until ctx ends.
type blockingSource struct {
	sent bool
}

func (s *blockingSource) Next(ctx context.Context) (domain.Entry, error) {
	if !s.sent {
		s.sent = true
		return domain.SetThread{ID: 1}, nil
	}
	<-ctx.Done()
	return nil, ctx.Err()
}

func TestRun_ToEnd(t *testing.T) {
	live := newFakeLive(64)
	p := newTestPlayer(live, WithFlushOnFinish(true))
	src := NewSliceSource([]domain.Entry{
		domain.InitModule{MemorySize: 64},
		domain.UpdateMemoryRegion{Offset: 0, Data: []byte{1}},
		domain.FileDescriptorWrite{FD: 1, Data: []byte("done")},
	})

	var progress []Progress
	res, err := Run(context.Background(), p, src, RunOptions{
		Progress: func(pr Progress) { progress = append(progress, pr) },
	})
	require.NoError(t, err)

	assert.Equal(t, uint64(3), res.Applied)
	assert.Equal(t, uint64(3), res.Position)
	assert.False(t, res.Stopped)
	assert.Len(t, progress, 3)
	assert.Equal(t, domain.KindFileDescriptorWrite, progress[2].Kind)
	assert.True(t, p.Done())
	assert.Equal(t, byte(1), live.mem[0])
	assert.Equal(t, "done", string(live.stdout))
}

func TestRun_UntilSnapshot(t *testing.T) {
	live := newFakeLive(64)
	p := newTestPlayer(live)
	src := NewSliceSource([]domain.Entry{
		domain.UpdateMemoryRegion{Offset: 0, Data: []byte{1}},
		domain.Snapshot{Trigger: domain.TriggerPeriodic},
		domain.UpdateMemoryRegion{Offset: 1, Data: []byte{2}},
		domain.Snapshot{Trigger: domain.TriggerPeriodic},
		domain.UpdateMemoryRegion{Offset: 2, Data: []byte{3}},
	})

	res, err := Run(context.Background(), p, src, RunOptions{UntilSnapshot: 2})
	require.NoError(t, err)

	assert.True(t, res.Stopped)
	assert.Equal(t, uint64(4), res.Applied)
	assert.Equal(t, []byte{1, 2, 0}, live.mem[:3])
}

func TestRun_SegmentBoundaries(t *testing.T) {
	p := newTestPlayer(newFakeLive(64))
	src := NewSliceSource([]domain.Entry{
		domain.SetThread{ID: 1},
		domain.ClearEthereal{},
		domain.SetThread{ID: 2},
		domain.ClearEthereal{},
	})

	var boundaries []Boundary
	_, err := Run(context.Background(), p, src, RunOptions{
		OnSegment: func(_ context.Context, b Boundary) error {
			assert.True(t, p.AtBaseline())
			boundaries = append(boundaries, b)
			return nil
		},
	})
	require.NoError(t, err)
	assert.Equal(t, []Boundary{{Position: 2, Offset: 2}, {Position: 4, Offset: 4}}, boundaries)
}

func TestRun_SegmentHookErrorAbandons(t *testing.T) {
	p := newTestPlayer(newFakeLive(64))
	src := NewSliceSource([]domain.Entry{domain.ClearEthereal{}, domain.SetThread{ID: 1}})
	hookErr := errors.New("disk full")

	_, err := Run(context.Background(), p, src, RunOptions{
		OnSegment: func(context.Context, Boundary) error { return hookErr },
	})
	require.ErrorIs(t, err, hookErr)
	assert.True(t, p.Done())
	assert.NotEqual(t, StateFailed, p.State())
}

func TestRun_DecodeErrorIsPositioned(t *testing.T) {
	p := newTestPlayer(newFakeLive(64))
	src := &failingSource{
		SliceSource: NewSliceSource([]domain.Entry{domain.ClearEthereal{}, domain.ClearEthereal{}}),
		err:         domain.ErrUnknownEntryKind.WithDetails("tag 99"),
	}

	_, err := Run(context.Background(), p, src, RunOptions{})
	require.ErrorIs(t, err, domain.ErrUnknownEntryKind)

	var ee *EntryError
	require.ErrorAs(t, err, &ee)
	assert.Equal(t, uint64(2), ee.Position)
	assert.Equal(t, StateFailed, p.State())
}

func TestRun_EntryFailure(t *testing.T) {
	p := newTestPlayer(newFakeLive(64))
	src := NewSliceSource([]domain.Entry{domain.CloseFileDescriptor{FD: 3}})

	res, err := Run(context.Background(), p, src, RunOptions{})
	require.ErrorIs(t, err, domain.ErrInvalidStateTransition)
	assert.Zero(t, res.Applied)
	assert.False(t, p.Done())
}

func TestRun_CancellationAbandons(t *testing.T) {
	p := newTestPlayer(newFakeLive(64))
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() {
		_, err := Run(ctx, p, &blockingSource{}, RunOptions{})
		done <- err
	}()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		require.ErrorIs(t, err, context.Canceled)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancellation")
	}
	assert.True(t, p.Done())
	assert.Empty(t, p.Threads())
}

func TestRun_Limiter(t *testing.T) {
	p := newTestPlayer(newFakeLive(64))
	entries := make([]domain.Entry, 5)
	for i := range entries {
		entries[i] = domain.Snapshot{}
	}

	start := time.Now()
	_, err := Run(context.Background(), p, NewSliceSource(entries), RunOptions{
		Limiter: rate.NewLimiter(rate.Every(10*time.Millisecond), 1),
	})
	require.NoError(t, err)
	assert.GreaterOrEqual(t, time.Since(start), 30*time.Millisecond)
}
