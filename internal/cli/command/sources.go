package command

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/urfave/cli/v2"

	"github.com/yndnr/rewind-go/internal/config"
	"github.com/yndnr/rewind-go/internal/core/domain"
	"github.com/yndnr/rewind-go/internal/core/replay"
	"github.com/yndnr/rewind-go/internal/storage/journalfile"
	"github.com/yndnr/rewind-go/internal/storage/journalstore"
)

// sourceFlags select a journal: a file, or a log in the store.
func sourceFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "journal",
			Aliases: []string{"j"},
			Usage:   "Journal file (default: journal.path from the configuration)",
		},
		&cli.StringFlag{
			Name:    "log",
			Aliases: []string{"l"},
			Usage:   "Read the named log from the journal store instead of a file",
		},
		&cli.BoolFlag{
			Name:  "allow-torn-tail",
			Usage: "Treat a partial final frame as the end of the journal",
		},
	}
}

// sourceSpec is a resolved journal location.
type sourceSpec struct {
	path string
	log  string
}

// name identifies the journal in checkpoints.
func (s sourceSpec) name() string {
	if s.log != "" {
		return "store:" + s.log
	}
	return "file:" + s.path
}

func resolveSource(c *cli.Context, cfg *config.Config) (sourceSpec, error) {
	spec := sourceSpec{path: c.String("journal"), log: c.String("log")}
	if spec.path == "" && spec.log == "" {
		spec.path = cfg.Journal.Path
	}
	switch {
	case spec.path != "" && spec.log != "":
		return spec, domain.ErrInvalidArgument.WithDetails("--journal and --log are mutually exclusive")
	case spec.path == "" && spec.log == "":
		return spec, domain.ErrMissingArgument.WithDetails("a journal file (--journal) or a stored log (--log)")
	}
	if spec.path != "" {
		abs, err := filepath.Abs(spec.path)
		if err != nil {
			return spec, err
		}
		spec.path = abs
	}
	return spec, nil
}

// openedSource is a journal opened for reading.
type openedSource struct {
	replay.OffsetSource
	// total is the file size, or zero when unknown.
	total int64
	seek    func(offset int64) error
	stop    func()
	store   *journalstore.Store
	closers []func() error
}

func (o *openedSource) Close() error {
	var errs []error
	for i := len(o.closers) - 1; i >= 0; i-- {
		errs = append(errs, o.closers[i]())
	}
	return errors.Join(errs...)
}

type openOptions struct {
	follow        bool
	allowTornTail bool
}

func openSource(ctx context.Context, e *env, spec sourceSpec, opts openOptions) (*openedSource, error) {
	if spec.log != "" {
		return openStoreSource(ctx, e, spec.log)
	}
	return openFileSource(e, spec.path, opts)
}

func openFileSource(e *env, path string, opts openOptions) (*openedSource, error) {
	c, err := e.cfg.Journal.Cipher(config.PurposeJournal)
	if err != nil {
		return nil, fmt.Errorf("journal key: %w", err)
	}
	var ropts []journalfile.ReaderOption
	if c != nil {
		ropts = append(ropts, journalfile.WithCipher(c))
	}

	var total int64
	if fi, err := os.Stat(path); err == nil {
		total = fi.Size()
	}

	if opts.follow {
		f, err := journalfile.Follow(path, e.cfg.Journal.PollInterval, e.log, ropts...)
		if err != nil {
			return nil, err
		}
		return &openedSource{
			OffsetSource: f,
			seek:         f.Seek,
			stop:         f.Stop,
			closers:      []func() error{f.Close},
		}, nil
	}

	allow := opts.allowTornTail || e.cfg.Journal.AllowTornTail
	r, err := journalfile.Open(path, append(ropts, journalfile.WithAllowTornTail(allow))...)
	if err != nil {
		return nil, err
	}
	return &openedSource{
		OffsetSource: r,
		total:        total,
		seek:         r.Seek,
		closers:      []func() error{r.Close},
	}, nil
}

func openStore(e *env) (*journalstore.Store, error) {
	cfg := journalstore.DefaultConfig(e.cfg.Store.Dir)
	cfg.GCInterval = e.cfg.Store.GCInterval
	cfg.SyncWrites = e.cfg.Store.SyncWrites
	return journalstore.Open(cfg, e.log)
}

func openStoreSource(ctx context.Context, e *env, log string) (*openedSource, error) {
	store, err := openStore(e)
	if err != nil {
		return nil, err
	}
	o, err := storeSource(ctx, store, log)
	if err != nil {
		store.Close()
		return nil, err
	}
	o.closers = append(o.closers, store.Close)
	return o, nil
}

// storeSource reads log from an already open store. Closing the returned
// source leaves the store open.
func storeSource(ctx context.Context, store *journalstore.Store, log string) (*openedSource, error) {
	count, err := store.Count(ctx, log)
	if err != nil {
		return nil, err
	}
	if count == 0 {
		return nil, domain.ErrInvalidArgument.WithDetailsf("stored log %q is empty or missing", log)
	}

	o := &openedSource{store: store}
	open := func(seq uint64) error {
		cur, err := store.Source(log, seq)
		if err != nil {
			return err
		}
		o.OffsetSource = cur
		return nil
	}
	if err := open(0); err != nil {
		return nil, err
	}
	o.seek = func(offset int64) error {
		if offset < 0 {
			return domain.ErrInvalidArgument.WithDetailsf("sequence %d", offset)
		}
		return open(uint64(offset))
	}
	return o, nil
}
