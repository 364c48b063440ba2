package replay

import (
	"context"
	"crypto/rand"
	"errors"
	"io"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/yndnr/rewind-go/internal/telemetry/logger"
	"github.com/yndnr/rewind-go/internal/telemetry/metric"
	"github.com/yndnr/rewind-go/pkg/cmap"
)

// errSessionCancelled is the cancellation cause set by Session.Cancel.
var errSessionCancelled = errors.New("replay session cancelled")

// Session is one replay running under a Manager.
type Session struct {
	ID      string
	Journal string
	Started time.Time

	player *Player
	cancel context.CancelCauseFunc
	done   chan struct{}
	result Result
	err    error
}

// Done is closed when the session's run returns.
func (s *Session) Done() <-chan struct{} { return s.done }

// Cancel abandons the session at the next entry boundary.
func (s *Session) Cancel() { s.cancel(errSessionCancelled) }

// Wait blocks until the run returns or ctx ends.
func (s *Session) Wait(ctx context.Context) (Result, error) {
	select {
	case <-s.done:
		return s.result, s.err
	case <-ctx.Done():
		return Result{}, ctx.Err()
	}
}

// Player returns the session's Player. It must only be inspected after
// Done is closed.
func (s *Session) Player() *Player { return s.player }

// Manager runs replay sessions concurrently, each on its own goroutine and
// with its own Player and LiveProcess. Sources may share an underlying
// journal as long as each session gets its own reader.
type Manager struct {
	sessions *cmap.Map[string, *Session]
	log      logger.Logger
	metrics  *metric.Registry

	mu      sync.Mutex
	entropy io.Reader
}

// NewManager returns an empty Manager. Players it creates log through l and
// record into metrics; either may be nil.
func NewManager(l logger.Logger, metrics *metric.Registry) *Manager {
	if l == nil {
		l = logger.Default()
	}
	return &Manager{
		sessions: cmap.New[string, *Session](),
		log:      l,
		metrics:  metrics,
		entropy:  ulid.Monotonic(rand.Reader, 0),
	}
}

func (m *Manager) newID() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return ulid.MustNew(ulid.Timestamp(time.Now()), m.entropy).String()
}

// Start launches a session replaying src into live.
func (m *Manager) Start(ctx context.Context, journal string, live LiveProcess, src Source, runOpts RunOptions, opts ...Option) *Session {
	id := m.newID()
	runCtx, cancel := context.WithCancelCause(logger.WithJournal(ctx, journal))

	base := []Option{WithLogger(m.log), WithMetrics(m.metrics), WithSessionID(id)}
	s := &Session{
		ID:      id,
		Journal: journal,
		Started: time.Now(),
		player:  NewPlayer(live, append(base, opts...)...),
		cancel:  cancel,
		done:    make(chan struct{}),
	}
	if runOpts.Journal == "" {
		runOpts.Journal = journal
	}
	m.sessions.Set(id, s)

	go func() {
		defer close(s.done)
		defer cancel(nil)
		s.result, s.err = Run(runCtx, s.player, src, runOpts)
	}()
	return s
}

// Get returns the session with the given id.
func (m *Manager) Get(id string) (*Session, bool) {
	return m.sessions.Get(id)
}

// List returns every tracked session, oldest first.
func (m *Manager) List() []*Session {
	out := m.sessions.Values()
	slices.SortFunc(out, func(a, b *Session) int { return strings.Compare(a.ID, b.ID) })
	return out
}

// Remove forgets a finished session. It reports false when the session is
// unknown or still running.
func (m *Manager) Remove(id string) bool {
	s, ok := m.sessions.Get(id)
	if !ok {
		return false
	}
	select {
	case <-s.done:
		m.sessions.Delete(id)
		return true
	default:
		return false
	}
}

// CancelAll cancels every running session.
func (m *Manager) CancelAll() {
	for _, s := range m.sessions.All() {
		s.Cancel()
	}
}

// Wait blocks until every tracked session has returned or ctx ends.
func (m *Manager) Wait(ctx context.Context) error {
	for _, s := range m.List() {
		select {
		case <-s.done:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}
