package shutdown

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/yndnr/rewind-go/internal/telemetry/logger"
)

type hook struct {
	name string
	fn   func(context.Context) error
}

// Handler runs shutdown hooks on signal.
type Handler struct {
	timeout time.Duration
	log     logger.Logger

	mu    sync.Mutex
	hooks []hook

	trigger chan struct{}
	once    sync.Once
	done    chan struct{}
	err     error
}

// NewHandler creates a handler whose hooks share one timeout.
func NewHandler(timeout time.Duration, l logger.Logger) *Handler {
	if l == nil {
		l = logger.Default()
	}
	return &Handler{
		timeout: timeout,
		log:     l,
		trigger: make(chan struct{}, 1),
		done:    make(chan struct{}),
	}
}

// OnShutdown registers a hook. Hooks run in reverse order of registration.
func (h *Handler) OnShutdown(name string, fn func(context.Context) error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.hooks = append(h.hooks, hook{name: name, fn: fn})
}

// Trigger starts shutdown as if a signal had arrived.
func (h *Handler) Trigger() {
	select {
	case h.trigger <- struct{}{}:
	default:
	}
}

// Start listens for signals until parent is done. The returned context is
// cancelled by a second signal, or when parent is cancelled.
func (h *Handler) Start(parent context.Context) context.Context {
	force, cancel := context.WithCancelCause(parent)
	sigCh := make(chan os.Signal, 2)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		defer signal.Stop(sigCh)

		select {
		case sig := <-sigCh:
			h.log.Info("shutdown signal received", "signal", sig.String())
		case <-h.trigger:
			h.log.Info("shutdown requested")
		case <-parent.Done():
			cancel(context.Cause(parent))
			return
		}

		go func() {
			select {
			case sig := <-sigCh:
				h.log.Warn("second signal received, abandoning work", "signal", sig.String())
				cancel(fmt.Errorf("shutdown: %s", sig))
			case <-h.done:
			}
		}()
		h.run()
	}()
	return force
}

func (h *Handler) run() {
	h.once.Do(func() {
		ctx, cancel := context.WithTimeout(context.Background(), h.timeout)
		defer cancel()

		h.mu.Lock()
		hooks := append([]hook(nil), h.hooks...)
		h.mu.Unlock()

		var errs []error
		for i := len(hooks) - 1; i >= 0; i-- {
			if err := hooks[i].fn(ctx); err != nil {
				h.log.Error("shutdown hook failed", "hook", hooks[i].name, "error", err)
				errs = append(errs, fmt.Errorf("%s: %w", hooks[i].name, err))
			}
		}
		h.err = errors.Join(errs...)
		close(h.done)
	})
}

// Done is closed once the hooks have run.
func (h *Handler) Done() <-chan struct{} {
	return h.done
}

// Err returns the joined hook errors after Done is closed.
func (h *Handler) Err() error {
	select {
	case <-h.done:
		return h.err
	default:
		return nil
	}
}
