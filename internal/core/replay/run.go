package replay

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/time/rate"

	"github.com/yndnr/rewind-go/internal/core/domain"
	"github.com/yndnr/rewind-go/internal/telemetry/tracer"
)

// Boundary describes the position right after a clear-ethereal entry, where
// every ethereal component is at the canonical baseline.
type Boundary struct {
	// Position is the log position of the entry following the boundary.
	Position uint64
	// Offset is the source byte offset of that entry, or -1 when the
	// source is not an OffsetSource.
	Offset int64
}

// Progress is reported after every applied entry.
type Progress struct {
	Applied  uint64
	Position uint64
	Segments uint64
	Kind     domain.Kind
}

// RunOptions tunes Run.
type RunOptions struct {
	// Journal names the log in spans and log lines.
	Journal string
	// Limiter paces entries when set.
	Limiter *rate.Limiter
	// UntilSnapshot stops after that many snapshot entries have been
	// applied (counted from the start of this run) and finishes the
	// session there. Zero runs to the end of the source.
	UntilSnapshot uint64
	// OnSegment is called after each clear-ethereal entry. An error
	// abandons the session.
	OnSegment func(ctx context.Context, b Boundary) error
	// Progress is called after each applied entry.
	Progress func(Progress)
}

// Result summarises a run.
type Result struct {
	Applied  uint64        `json:"applied"`
	Position uint64        `json:"position"`
	Segments uint64        `json:"segments"`
	Stopped  bool          `json:"stopped_at_snapshot"`
	Duration time.Duration `json:"duration"`
}

// Run feeds p from src until the source is exhausted, then calls Finish.
//
// Cancelling ctx abandons the session at the next entry boundary and
// returns the context error. A decode error from the source fails the
// session with an *EntryError at the current position.
func Run(ctx context.Context, p *Player, src Source, opts RunOptions) (res Result, err error) {
	ctx, span := tracer.StartSpan(ctx, "replay.run",
		attribute.String("rewind.journal", opts.Journal),
		attribute.Int64("rewind.start_position", int64(p.Position())),
	)
	p.log = p.log.WithContext(ctx)
	start := time.Now()
	defer func() {
		res.Position = p.Position()
		res.Segments = p.Segments()
		res.Duration = time.Since(start)
		span.SetAttributes(attribute.Int64("rewind.applied", int64(res.Applied)))
		tracer.EndSpan(span, err)
	}()

	var snapshots uint64
	for {
		if opts.Limiter != nil {
			if err := opts.Limiter.Wait(ctx); err != nil {
				return res, p.cancelled(ctx, err)
			}
		}

		e, err := src.Next(ctx)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			if ctx.Err() != nil {
				return res, p.cancelled(ctx, err)
			}
			return res, p.Reject(err)
		}

		if err := p.Apply(ctx, e); err != nil {
			if ctx.Err() != nil && p.State() != StateFailed {
				return res, p.cancelled(ctx, err)
			}
			return res, err
		}
		res.Applied++

		switch e.Kind() {
		case domain.KindClearEthereal:
			if opts.OnSegment != nil {
				b := Boundary{Position: p.Position(), Offset: -1}
				if os, ok := src.(OffsetSource); ok {
					b.Offset = os.Offset()
				}
				if err := opts.OnSegment(ctx, b); err != nil {
					p.Abandon()
					return res, fmt.Errorf("segment hook at position %d: %w", b.Position, err)
				}
			}
		case domain.KindSnapshot:
			snapshots++
		}

		if opts.Progress != nil {
			opts.Progress(Progress{Applied: res.Applied, Position: p.Position(), Segments: p.Segments(), Kind: e.Kind()})
		}

		if opts.UntilSnapshot > 0 && snapshots >= opts.UntilSnapshot {
			res.Stopped = true
			break
		}
	}

	if err := p.Finish(ctx); err != nil {
		return res, err
	}
	p.metrics.ObserveDuration(time.Since(start).Seconds())
	return res, nil
}

// Reject fails the session because the entry at the current position could
// not be decoded.
func (p *Player) Reject(err error) error {
	if cerr := p.checkOpen(); cerr != nil {
		return cerr
	}
	var ee *EntryError
	if errors.As(err, &ee) {
		return p.fail(err)
	}
	return p.fail(entryError(p.position, domain.KindUnspecified, err))
}

func (p *Player) cancelled(ctx context.Context, err error) error {
	p.Abandon()
	if cause := context.Cause(ctx); cause != nil {
		return cause
	}
	return err
}
