package replay

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yndnr/rewind-go/internal/core/domain"
	"github.com/yndnr/rewind-go/internal/telemetry/logger"
)

func TestManager_ConcurrentSessionsFromOneJournal(t *testing.T) {
	m := NewManager(logger.Nop(), nil)
	journal := workload(3, 500)

	lives := make([]*fakeLive, 4)
	sessions := make([]*Session, 4)
	for i := range sessions {
		lives[i] = newFakeLive(testMemory)
		sessions[i] = m.Start(context.Background(), "shared", lives[i], NewSliceSource(journal), RunOptions{})
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	require.NoError(t, m.Wait(ctx))

	for i, s := range sessions {
		res, err := s.Wait(ctx)
		require.NoError(t, err)
		assert.Equal(t, uint64(len(journal)), res.Applied)
		assert.Equal(t, lives[0].mem, lives[i].mem)
		assert.Equal(t, "shared", s.Journal)
	}

	list := m.List()
	require.Len(t, list, 4)
	for i := 1; i < len(list); i++ {
		assert.Less(t, list[i-1].ID, list[i].ID)
	}

	assert.True(t, m.Remove(list[0].ID))
	assert.False(t, m.Remove(list[0].ID))
	_, ok := m.Get(list[0].ID)
	assert.False(t, ok)
}

func TestManager_CancelAll(t *testing.T) {
	m := NewManager(logger.Nop(), nil)
	s := m.Start(context.Background(), "blocking", newFakeLive(64), &blockingSource{}, RunOptions{})

	assert.False(t, m.Remove(s.ID), "running sessions cannot be removed")

	m.CancelAll()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_, err := s.Wait(ctx)
	require.ErrorIs(t, err, errSessionCancelled)
	assert.True(t, s.Player().Done())
	assert.Equal(t, StateIdle, s.Player().State())
}

func TestSliceSource(t *testing.T) {
	src := NewSliceSource([]domain.Entry{domain.ClearEthereal{}})
	e, err := src.Next(context.Background())
	require.NoError(t, err)
	assert.Equal(t, domain.KindClearEthereal, e.Kind())
	assert.Equal(t, int64(1), src.Offset())

	_, err = src.Next(context.Background())
	assert.ErrorIs(t, err, io.EOF)
}
