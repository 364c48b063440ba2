package replay

import (
	"context"
	"errors"

	"github.com/yndnr/rewind-go/internal/core/differ"
	"github.com/yndnr/rewind-go/internal/core/domain"
	"github.com/yndnr/rewind-go/internal/core/ethereal"
	"github.com/yndnr/rewind-go/internal/telemetry/logger"
	"github.com/yndnr/rewind-go/internal/telemetry/metric"
)

// State is the lifecycle state of a Player.
type State int32

const (
	// StateIdle is the state before the first entry and after Finish.
	StateIdle State = iota
	// StateReplaying is entered by the first Apply.
	StateReplaying
	// StateFailed is terminal: an entry could not be applied.
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateReplaying:
		return "replaying"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Diagnostic is a non-fatal observation made while applying an entry.
type Diagnostic struct {
	Position uint64      `json:"position"`
	Kind     domain.Kind `json:"kind"`
	Message  string      `json:"message"`
}

// Option configures a Player.
type Option func(*Player)

// WithLogger sets the logger. The default is logger.Default().
func WithLogger(l logger.Logger) Option {
	return func(p *Player) { p.log = l }
}

// WithMetrics records replay metrics into r.
func WithMetrics(r *metric.Registry) Option {
	return func(p *Player) { p.metrics = r }
}

// WithDifferential mirrors ethereal-affecting entries into d. With a
// differential attached, memory updates are staged until the next snapshot,
// init-module, process-exit or Finish, and a clear-ethereal entry discards
// them. Without one, memory updates are written straight to the live process.
func WithDifferential(d Differential) Option {
	return func(p *Player) { p.diff = d }
}

// WithSessionID tags log lines with a session identifier.
func WithSessionID(id string) Option {
	return func(p *Player) { p.sessionID = id }
}

// WithStartPosition sets the log position of the first entry fed to the
// Player. Used when resuming from a checkpoint.
func WithStartPosition(pos uint64) Option {
	return func(p *Player) { p.position = pos }
}

// WithRespawnThreads makes Finish re-create every thread left in the roster.
func WithRespawnThreads(enabled bool) Option {
	return func(p *Player) { p.respawn = enabled }
}

// WithFlushOnFinish makes Finish drain the stdio buffers into the live
// process.
func WithFlushOnFinish(enabled bool) Option {
	return func(p *Player) { p.flushOnFinish = enabled }
}

// WithMaxStagedBytes commits the differ whenever more than n bytes are
// staged. Zero disables the limit. Only meaningful with WithDifferential.
func WithMaxStagedBytes(n int) Option {
	return func(p *Player) { p.maxStaged = n }
}

// Player applies journal entries to a LiveProcess. A Player is driven by a
// single goroutine; it is not safe for concurrent use.
type Player struct {
	live LiveProcess

	registry *ethereal.Registry
	stdio    *ethereal.Stdio
	roster   *ethereal.Roster
	open     *ethereal.OpenTable
	differ   *differ.Differ
	diff     Differential

	// spawnedAt maps roster threads to the set-thread entry that declared them.
	spawnedAt map[domain.ThreadID]uint64

	log           logger.Logger
	metrics       *metric.Registry
	sessionID     string
	respawn       bool
	flushOnFinish bool
	maxStaged     int

	state       State
	position    uint64
	segments    uint64
	snapshots   uint64
	exited      bool
	exitCode    uint32
	done        bool
	abandoned   bool
	err         error
	diagnostics []Diagnostic
}

// NewPlayer returns an idle Player whose ethereal state is at the canonical
// baseline.
func NewPlayer(live LiveProcess, opts ...Option) *Player {
	p := &Player{
		live:      live,
		registry:  ethereal.NewRegistry(),
		stdio:     ethereal.NewStdio(),
		roster:    ethereal.NewRoster(),
		open:      ethereal.NewOpenTable(),
		differ:    differ.New(),
		spawnedAt: make(map[domain.ThreadID]uint64),
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.log == nil {
		p.log = logger.Default()
	}
	if p.sessionID != "" {
		p.log = p.log.With("session_id", p.sessionID)
	}
	return p
}

// Apply applies one entry. The context is checked before the entry starts;
// once started, an entry runs to completion.
//
// Any error other than a context error or ErrSessionClosed moves the Player
// to StateFailed and is an *EntryError.
func (p *Player) Apply(ctx context.Context, e domain.Entry) error {
	if err := p.checkOpen(); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if p.state == StateIdle {
		p.state = StateReplaying
		p.log.Debug("replay started", "position", p.position)
	}

	pos := p.position
	if e == nil {
		return p.fail(entryError(pos, domain.KindUnspecified, domain.ErrDecode.WithDetails("nil entry")))
	}
	kind := e.Kind()
	if err := e.Validate(); err != nil {
		return p.fail(entryError(pos, kind, err))
	}

	routed, err := p.dispatch(ctx, pos, e)
	if err != nil {
		return p.fail(err)
	}

	p.position++
	p.metrics.EntryApplied(kind.String())
	p.metrics.SetStaged(p.differ.Size())
	if p.diff != nil && domain.IsEthereal(e, routed) {
		p.diff.Record(e)
	}
	p.log.Debug("entry applied", "position", pos, "kind", kind.String())
	return nil
}

// Finish ends a successful replay: staged memory is committed, roster
// threads are re-created when respawn is enabled, and stdio is flushed when
// flush-on-finish is enabled. The Player returns to StateIdle and accepts no
// further entries.
func (p *Player) Finish(ctx context.Context) error {
	if err := p.checkOpen(); err != nil {
		return err
	}
	if err := p.commit(ctx); err != nil {
		return p.fail(err)
	}

	if p.respawn {
		for _, th := range p.roster.Threads() {
			if err := p.live.SpawnThread(ctx, th.ID, th.State); err != nil {
				return p.fail(entryError(p.spawnedAt[th.ID], domain.KindSetThread, liveError("spawn-thread", err)))
			}
		}
	}
	if p.flushOnFinish {
		if err := p.Flush(ctx); err != nil {
			return p.fail(entryError(p.position, domain.KindUnspecified, err))
		}
	}

	p.state = StateIdle
	p.done = true
	p.log.Info("replay finished",
		"position", p.position,
		"segments", p.segments,
		"threads", p.roster.Len(),
		"diagnostics", len(p.diagnostics))
	return nil
}

// Flush drains the stdio buffers into the live process. A failed flush
// keeps the buffers and does not fail the session.
func (p *Player) Flush(ctx context.Context) error {
	stdout, stderr := p.stdio.Drain()
	if len(stdout) == 0 && len(stderr) == 0 {
		return nil
	}
	if err := p.live.FlushStdio(ctx, stdout, stderr); err != nil {
		p.stdio.AppendOutput(stdout)
		p.stdio.AppendError(stderr)
		return liveError("flush-stdio", err)
	}
	return nil
}

// Abandon stops the session at the current entry boundary. Ethereal state
// is discarded; durable effects already applied stay applied.
func (p *Player) Abandon() {
	if p.done || p.state == StateFailed {
		return
	}
	p.resetEthereal()
	p.done = true
	p.abandoned = true
	p.state = StateIdle
	p.log.Info("replay abandoned", "position", p.position)
}

func (p *Player) checkOpen() error {
	switch {
	case p.state == StateFailed:
		return domain.ErrSessionClosed.WithDetails("session failed").WithCause(p.err)
	case p.abandoned:
		return domain.ErrSessionClosed.WithDetails("session abandoned")
	case p.done:
		return domain.ErrSessionClosed.WithDetails("session finished")
	}
	return nil
}

func (p *Player) fail(err error) error {
	p.state = StateFailed
	p.err = err
	p.metrics.Failure(domain.GetErrorCode(err))

	var ee *EntryError
	if errors.As(err, &ee) {
		p.log.Error("replay failed", "position", ee.Position, "kind", ee.Kind.String(), "error", ee.Err)
	} else {
		p.log.Error("replay failed", "error", err)
	}
	return err
}

// commit flushes the differ. It runs to completion even when ctx is
// cancelled, since it is always part of an entry already under way.
func (p *Player) commit(ctx context.Context) error {
	if p.differ.Len() == 0 {
		return nil
	}
	n, err := p.differ.Commit(context.WithoutCancel(ctx), p.live)
	p.metrics.Committed(n)
	p.metrics.SetStaged(p.differ.Size())
	if err == nil {
		return nil
	}
	var ce *differ.CommitError
	if errors.As(err, &ce) {
		return entryError(ce.Change.Origin.Position, ce.Change.Origin.Kind, liveError("write-memory", ce.Err))
	}
	return entryError(p.position, domain.KindUnspecified, err)
}

func (p *Player) resetEthereal() {
	p.registry.Reset()
	p.stdio.Reset()
	p.roster.Reset()
	p.open.Reset()
	p.differ.Reset()
	clear(p.spawnedAt)
	if p.diff != nil {
		p.diff.Clear()
	}
	p.metrics.SetStaged(0)
}

func (p *Player) diagnose(pos uint64, kind domain.Kind, msg string, args ...any) {
	p.diagnostics = append(p.diagnostics, Diagnostic{Position: pos, Kind: kind, Message: msg})
	p.log.Warn(msg, append([]any{"position", pos, "kind", kind.String()}, args...)...)
}

// State returns the lifecycle state.
func (p *Player) State() State { return p.state }

// Position returns the log position of the next entry.
func (p *Player) Position() uint64 { return p.position }

// Done reports whether the session was finished or abandoned.
func (p *Player) Done() bool { return p.done }

// Err returns the error that failed the session, if any.
func (p *Player) Err() error { return p.err }

// Segments returns how many clear-ethereal entries have been applied.
func (p *Player) Segments() uint64 { return p.segments }

// Snapshots returns how many snapshot entries have been applied.
func (p *Player) Snapshots() uint64 { return p.snapshots }

// Exited reports whether a process-exit entry was applied, and its code.
func (p *Player) Exited() (bool, uint32) { return p.exited, p.exitCode }

// Diagnostics returns a copy of the non-fatal observations so far.
func (p *Player) Diagnostics() []Diagnostic {
	out := make([]Diagnostic, len(p.diagnostics))
	copy(out, p.diagnostics)
	return out
}

// Registry returns a copy of the standard-stream registry.
func (p *Player) Registry() ethereal.RegistrySnapshot { return p.registry.Snapshot() }

// Stdio returns copies of the buffered standard output and error.
func (p *Player) Stdio() (stdout, stderr []byte) { return p.stdio.Snapshot() }

// Threads returns the roster, sorted by thread id.
func (p *Player) Threads() []domain.Thread { return p.roster.Threads() }

// OpenDescriptors returns the descriptors declared open in this segment.
func (p *Player) OpenDescriptors() []domain.FD { return p.open.FDs() }

// Staged returns the number of staged changes and bytes.
func (p *Player) Staged() (changes, bytes int) { return p.differ.Len(), p.differ.Size() }

// AtBaseline reports whether every ethereal component is at the canonical
// baseline, which is the case right after a clear-ethereal entry.
func (p *Player) AtBaseline() bool {
	out, errb := p.stdio.Len()
	return p.registry.IsBaseline() &&
		out == 0 && errb == 0 &&
		p.roster.Len() == 0 &&
		p.open.Len() == 3 && p.open.Has(domain.FDStdin) && p.open.Has(domain.FDStdout) && p.open.Has(domain.FDStderr) &&
		p.differ.Len() == 0
}
