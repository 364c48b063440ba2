package journalfile

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/yndnr/rewind-go/internal/core/domain"
	"github.com/yndnr/rewind-go/internal/telemetry/logger"
)

// DefaultPollInterval bounds how long a Follower sleeps when the file
// system does not deliver a write event.
const DefaultPollInterval = time.Second

// Follower tails a journal that a recorder is still appending to. Next
// blocks at the end of the file until more frames arrive, the context is
// cancelled, or Stop is called. A partial frame at the end is treated as
// not yet written.
type Follower struct {
	r       *Reader
	watcher *fsnotify.Watcher
	poll    time.Duration
	log     logger.Logger

	stopOnce sync.Once
	stop     chan struct{}
}

// Follow opens path for tailing. Reader options apply to the underlying
// Reader; WithAllowTornTail is always enabled.
func Follow(path string, poll time.Duration, l logger.Logger, opts ...ReaderOption) (*Follower, error) {
	r, err := Open(path, append(opts, WithAllowTornTail(true))...)
	if err != nil {
		return nil, err
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		r.Close()
		return nil, fmt.Errorf("journalfile: create watcher: %w", err)
	}
	if err := w.Add(path); err != nil {
		w.Close()
		r.Close()
		return nil, fmt.Errorf("journalfile: watch %s: %w", path, err)
	}
	if poll <= 0 {
		poll = DefaultPollInterval
	}
	if l == nil {
		l = logger.Default()
	}
	return &Follower{
		r:       r,
		watcher: w,
		poll:    poll,
		log:     l.With("journal", path),
		stop:    make(chan struct{}),
	}, nil
}

// Next implements replay.Source. It returns io.EOF only after Stop.
func (f *Follower) Next(ctx context.Context) (domain.Entry, error) {
	for {
		offset := f.r.Offset()
		e, err := f.r.Next(ctx)
		if err != io.EOF {
			return e, err
		}
		// Rewind over any partial frame so it is reread once complete.
		if err := f.r.Seek(offset); err != nil {
			return nil, err
		}
		if err := f.wait(ctx); err != nil {
			return nil, err
		}
	}
}

// Offset implements replay.OffsetSource.
func (f *Follower) Offset() int64 { return f.r.Offset() }

// Seek positions the follower at a frame boundary.
func (f *Follower) Seek(offset int64) error { return f.r.Seek(offset) }

// Header returns the journal header.
func (f *Follower) Header() Header { return f.r.Header() }

func (f *Follower) wait(ctx context.Context) error {
	timer := time.NewTimer(f.poll)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-f.stop:
			return io.EOF
		case <-timer.C:
			return nil
		case ev, ok := <-f.watcher.Events:
			if !ok {
				return io.EOF
			}
			if ev.Has(fsnotify.Write) {
				return nil
			}
			if ev.Has(fsnotify.Remove) || ev.Has(fsnotify.Rename) {
				f.log.Warn("journal file went away while following", "event", ev.Op.String())
				return io.EOF
			}
		case err, ok := <-f.watcher.Errors:
			if !ok {
				return io.EOF
			}
			f.log.Warn("journal watcher error", "error", err)
		}
	}
}

// Stop makes Next return io.EOF once the frames already written are
// consumed. It is safe to call more than once.
func (f *Follower) Stop() {
	f.stopOnce.Do(func() { close(f.stop) })
}

// Close stops watching and closes the file.
func (f *Follower) Close() error {
	f.Stop()
	werr := f.watcher.Close()
	if err := f.r.Close(); err != nil {
		return err
	}
	return werr
}
