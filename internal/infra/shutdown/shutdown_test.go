package shutdown

import (
	"context"
	"errors"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/yndnr/rewind-go/internal/telemetry/logger"
)

func TestHooksRunInReverseOrder(t *testing.T) {
	h := NewHandler(time.Second, logger.Nop())

	var (
		mu    sync.Mutex
		order []string
	)
	for _, name := range []string{"metrics", "store", "follower"} {
		h.OnShutdown(name, func(context.Context) error {
			mu.Lock()
			order = append(order, name)
			mu.Unlock()
			return nil
		})
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	h.Start(ctx)
	h.Trigger()

	select {
	case <-h.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("hooks did not run")
	}

	if want := []string{"follower", "store", "metrics"}; !slices.Equal(order, want) {
		t.Fatalf("order = %v, want %v", order, want)
	}
	if err := h.Err(); err != nil {
		t.Fatalf("Err() = %v", err)
	}
}

func TestHookErrorsAreJoined(t *testing.T) {
	h := NewHandler(time.Second, logger.Nop())
	boom := errors.New("boom")
	h.OnShutdown("a", func(context.Context) error { return boom })
	h.OnShutdown("b", func(context.Context) error { return nil })

	h.Start(context.Background())
	h.Trigger()
	<-h.Done()

	if !errors.Is(h.Err(), boom) {
		t.Fatalf("Err() = %v, want boom", h.Err())
	}
}

func TestHooksShareTimeout(t *testing.T) {
	h := NewHandler(20*time.Millisecond, logger.Nop())
	var got error
	h.OnShutdown("slow", func(ctx context.Context) error {
		<-ctx.Done()
		got = ctx.Err()
		return nil
	})

	h.Start(context.Background())
	h.Trigger()
	<-h.Done()

	if !errors.Is(got, context.DeadlineExceeded) {
		t.Fatalf("hook ctx error = %v", got)
	}
}

func TestParentCancelPropagates(t *testing.T) {
	h := NewHandler(time.Second, logger.Nop())
	parent, cancel := context.WithCancel(context.Background())
	force := h.Start(parent)
	cancel()

	select {
	case <-force.Done():
	case <-time.After(time.Second):
		t.Fatal("force context not cancelled with parent")
	}
	if h.Err() != nil {
		t.Fatal("hooks must not run when the parent is cancelled")
	}
}
