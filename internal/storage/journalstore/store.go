package journalstore

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dgraph-io/badger/v3"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/yndnr/rewind-go/internal/core/codec"
	"github.com/yndnr/rewind-go/internal/core/domain"
	"github.com/yndnr/rewind-go/internal/telemetry/logger"
)

// PageSize is the number of entries read or written per transaction.
const PageSize = 256

var (
	ErrClosed     = errors.New("journalstore: closed")
)

var keyPrefix = []byte("j/")

// Config configures a Store.
type Config struct {
	// Dir is the database directory. Ignored when InMemory is set.
	Dir      string
	InMemory bool

	// GCInterval is the period of value-log GC. Zero disables the loop.
	GCInterval  time.Duration
	GCThreshold float64

	CacheSize  int64
	SyncWrites bool
}

// DefaultConfig returns the default configuration for dir.
func DefaultConfig(dir string) Config {
	return Config{
		Dir:         dir,
		GCInterval:  10 * time.Minute,
		GCThreshold: 0.5,
		CacheSize:   64 << 20,
	}
}

// EntrySource yields entries until io.EOF. replay.Source satisfies it.
type EntrySource interface {
	Next(ctx context.Context) (domain.Entry, error)
}

// Store is a Badger-backed journal store. It is safe for concurrent use.
type Store struct {
	db  *badger.DB
	cfg Config
	log logger.Logger

	// appendMu serialises sequence assignment.
	appendMu sync.Mutex
	next     map[string]uint64

	lastGC atomic.Int64
	gcRuns atomic.Uint64
	closed atomic.Bool

	stopCh chan struct{}
	doneCh chan struct{}
}

// Open opens or creates the store.
func Open(cfg Config, l logger.Logger) (*Store, error) {
	if cfg.Dir == "" && !cfg.InMemory {
		return nil, domain.ErrMissingArgument.WithDetails("store dir")
	}
	if l == nil {
		l = logger.Default()
	}
	l = l.With("component", "journalstore")

	opts := badger.DefaultOptions(cfg.Dir).
		WithInMemory(cfg.InMemory).
		WithSyncWrites(cfg.SyncWrites).
		WithLogger(&badgerLogger{log: l})
	if cfg.InMemory {
		opts.Dir, opts.ValueDir = "", ""
	}
	if cfg.CacheSize > 0 {
		opts = opts.WithBlockCacheSize(cfg.CacheSize)
	}
	if cfg.GCThreshold <= 0 || cfg.GCThreshold >= 1 {
		cfg.GCThreshold = 0.5
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("journalstore: open db: %w", err)
	}

	s := &Store{
		db:     db,
		cfg:    cfg,
		log:    l,
		next:   make(map[string]uint64),
		stopCh: make(chan struct{}),
		doneCh: make(chan struct{}),
	}
	go s.gcLoop()

	l.Info("journal store opened", "dir", cfg.Dir, "in_memory", cfg.InMemory, "gc_interval", cfg.GCInterval)
	return s, nil
}

func validLogName(name string) error {
	if name == "" {
		return domain.ErrMissingArgument.WithDetails("log name")
	}
	if strings.Contains(name, "/") {
		return domain.ErrInvalidArgument.WithDetailsf("log name %q contains '/'", name)
	}
	return nil
}

func logPrefix(name string) []byte {
	return append(append(bytes.Clone(keyPrefix), name...), '/')
}

func entryKey(name string, seq uint64) []byte {
	return binary.BigEndian.AppendUint64(logPrefix(name), seq)
}

func parseKey(key []byte) (name string, seq uint64, ok bool) {
	if !bytes.HasPrefix(key, keyPrefix) || len(key) < len(keyPrefix)+1+8 {
		return "", 0, false
	}
	rest := key[len(keyPrefix):]
	if rest[len(rest)-9] != '/' {
		return "", 0, false
	}
	return string(rest[:len(rest)-9]), binary.BigEndian.Uint64(rest[len(rest)-8:]), true
}

// nextSeqLocked returns the next sequence number of the log, reading the
// last key on first use.
func (s *Store) nextSeqLocked(name string) (uint64, error) {
	if seq, ok := s.next[name]; ok {
		return seq, nil
	}
	var next uint64
	err := s.db.View(func(txn *badger.Txn) error {
		prefix := logPrefix(name)
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Reverse = true
		opts.Prefix = prefix
		it := txn.NewIterator(opts)
		defer it.Close()

		it.Seek(append(bytes.Clone(prefix), bytes.Repeat([]byte{0xff}, 9)...))
		if it.ValidForPrefix(prefix) {
			if _, seq, ok := parseKey(it.Item().Key()); ok {
				next = seq + 1
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	s.next[name] = next
	return next, nil
}

// Append stores entries at the end of the log in one transaction and
// returns the sequence number of the first one.
func (s *Store) Append(ctx context.Context, name string, entries ...domain.Entry) (uint64, error) {
	if s.closed.Load() {
		return 0, ErrClosed
	}
	if err := validLogName(name); err != nil {
		return 0, err
	}
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	records := make([][]byte, len(entries))
	for i, e := range entries {
		if err := e.Validate(); err != nil {
			return 0, err
		}
		rec, err := codec.EncodeRecord(e)
		if err != nil {
			return 0, err
		}
		records[i] = rec
	}

	s.appendMu.Lock()
	defer s.appendMu.Unlock()

	first, err := s.nextSeqLocked(name)
	if err != nil {
		return 0, err
	}
	err = s.db.Update(func(txn *badger.Txn) error {
		for i, rec := range records {
			if err := txn.Set(entryKey(name, first+uint64(i)), rec); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("journalstore: append to %s: %w", name, err)
	}
	s.next[name] = first + uint64(len(records))
	return first, nil
}

// Import drains src into the log, PageSize entries per transaction, and
// returns the number of entries stored.
func (s *Store) Import(ctx context.Context, name string, src EntrySource) (uint64, error) {
	var (
		total uint64
		page  = make([]domain.Entry, 0, PageSize)
	)
	flush := func() error {
		if len(page) == 0 {
			return nil
		}
		if _, err := s.Append(ctx, name, page...); err != nil {
			return err
		}
		total += uint64(len(page))
		page = page[:0]
		return nil
	}

	for {
		e, err := src.Next(ctx)
		if err == io.EOF {
			break
		}
		if err != nil {
			return total, fmt.Errorf("journalstore: import entry %d: %w", total+uint64(len(page)), err)
		}
		page = append(page, e)
		if len(page) == PageSize {
			if err := flush(); err != nil {
				return total, err
			}
		}
	}
	if err := flush(); err != nil {
		return total, err
	}

	s.log.Info("journal imported", "log", name, "entries", total)
	return total, nil
}

// Count returns the number of entries in the log.
func (s *Store) Count(ctx context.Context, name string) (uint64, error) {
	if err := validLogName(name); err != nil {
		return 0, err
	}
	var n uint64
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = logPrefix(name)
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			if n%PageSize == 0 {
				if err := ctx.Err(); err != nil {
					return err
				}
			}
			n++
		}
		return nil
	})
	return n, err
}

// LogInfo describes one stored log.
type LogInfo struct {
	Name    string `json:"name" yaml:"name"`
	Entries uint64 `json:"entries" yaml:"entries"`
	Last    uint64 `json:"last_seq" yaml:"last_seq"`
}

// Logs lists the stored logs in name order.
func (s *Store) Logs(ctx context.Context) ([]LogInfo, error) {
	var out []LogInfo
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = keyPrefix
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			name, seq, ok := parseKey(it.Item().Key())
			if !ok {
				continue
			}
			if len(out) == 0 || out[len(out)-1].Name != name {
				out = append(out, LogInfo{Name: name})
			}
			cur := &out[len(out)-1]
			cur.Entries++
			cur.Last = seq
		}
		return nil
	})
	return out, err
}

// DeleteLog removes every entry of the log.
func (s *Store) DeleteLog(ctx context.Context, name string) error {
	if err := validLogName(name); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	s.appendMu.Lock()
	defer s.appendMu.Unlock()

	if err := s.db.DropPrefix(logPrefix(name)); err != nil {
		return fmt.Errorf("journalstore: delete %s: %w", name, err)
	}
	delete(s.next, name)
	s.log.Info("journal deleted", "log", name)
	return nil
}

// GC runs value-log garbage collection until Badger finds nothing to
// rewrite and returns the number of rewritten files.
func (s *Store) GC(ctx context.Context) (int, error) {
	if s.cfg.InMemory {
		return 0, nil
	}
	start := time.Now()
	runs := 0
	for {
		if err := ctx.Err(); err != nil {
			return runs, err
		}
		err := s.db.RunValueLogGC(s.cfg.GCThreshold)
		if errors.Is(err, badger.ErrNoRewrite) || errors.Is(err, badger.ErrRejected) {
			break
		}
		if err != nil {
			return runs, fmt.Errorf("journalstore: gc: %w", err)
		}
		runs++
	}
	s.lastGC.Store(time.Now().UnixMilli())
	s.gcRuns.Add(uint64(runs))
	s.log.Debug("value log gc completed", "rewritten", runs, "elapsed", time.Since(start))
	return runs, nil
}

// Stats reports database size and GC activity.
type Stats struct {
	LSMSize      int64  `json:"lsm_size_bytes" yaml:"lsm_size_bytes"`
	ValueLogSize int64  `json:"value_log_size_bytes" yaml:"value_log_size_bytes"`
	LastGC       int64  `json:"last_gc_unix_ms" yaml:"last_gc_unix_ms"`
	GCRuns       uint64 `json:"gc_rewrites" yaml:"gc_rewrites"`
}

// Stats returns current statistics.
func (s *Store) Stats() Stats {
	lsm, vlog := s.db.Size()
	return Stats{LSMSize: lsm, ValueLogSize: vlog, LastGC: s.lastGC.Load(), GCRuns: s.gcRuns.Load()}
}

// RegisterMetrics exposes store size and GC counters on reg.
func (s *Store) RegisterMetrics(reg prometheus.Registerer) error {
	gauge := func(name, help string, fn func() float64) prometheus.Collector {
		return prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: "rewind",
			Subsystem: "store",
			Name:      name,
			Help:      help,
		}, fn)
	}
	for _, c := range []prometheus.Collector{
		gauge("lsm_size_bytes", "Badger LSM tree size in bytes", func() float64 { return float64(s.Stats().LSMSize) }),
		gauge("value_log_size_bytes", "Badger value log size in bytes", func() float64 { return float64(s.Stats().ValueLogSize) }),
		gauge("last_gc_timestamp_seconds", "Unix time of the last value log GC", func() float64 { return float64(s.lastGC.Load()) / 1000 }),
		prometheus.NewCounterFunc(prometheus.CounterOpts{
			Namespace: "rewind",
			Subsystem: "store",
			Name:      "gc_rewrites_total",
			Help:      "Value log files rewritten by GC",
		}, func() float64 { return float64(s.gcRuns.Load()) }),
	} {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) gcLoop() {
	defer close(s.doneCh)
	if s.cfg.GCInterval <= 0 {
		<-s.stopCh
		return
	}

	ticker := time.NewTicker(s.cfg.GCInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
			if _, err := s.GC(ctx); err != nil {
				s.log.Error("auto gc failed", "error", err)
			}
			cancel()
		case <-s.stopCh:
			return
		}
	}
}

// Close stops the GC loop and closes the database.
func (s *Store) Close() error {
	if !s.closed.CompareAndSwap(false, true) {
		return nil
	}
	close(s.stopCh)
	<-s.doneCh
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("journalstore: close db: %w", err)
	}
	s.log.Info("journal store closed")
	return nil
}

// badgerLogger adapts logger.Logger to badger.Logger. Badger's info output
// is routine compaction chatter and is logged at debug.
type badgerLogger struct {
	log logger.Logger
}

func (l *badgerLogger) Errorf(format string, args ...any) {
	l.log.Error(strings.TrimSpace(fmt.Sprintf(format, args...)))
}

func (l *badgerLogger) Warningf(format string, args ...any) {
	l.log.Warn(strings.TrimSpace(fmt.Sprintf(format, args...)))
}

func (l *badgerLogger) Infof(format string, args ...any) {
	l.log.Debug(strings.TrimSpace(fmt.Sprintf(format, args...)))
}

func (l *badgerLogger) Debugf(format string, args ...any) {
	l.log.Debug(strings.TrimSpace(fmt.Sprintf(format, args...)))
}
