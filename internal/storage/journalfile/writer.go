package journalfile

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/yndnr/rewind-go/internal/core/domain"
	"github.com/yndnr/rewind-go/pkg/crypto/adaptive"
)

// SyncMode defines when the writer fsyncs.
type SyncMode string

const (
	// SyncModeSync fsyncs after every append.
	SyncModeSync SyncMode = "sync"
	// SyncModeBatch fsyncs on Flush and Close.
	SyncModeBatch SyncMode = "batch"
)

// DefaultBufferSize is the write buffer size.
const DefaultBufferSize = 256 << 10

// Config configures a Writer.
type Config struct {
	Path       string
	SyncMode   SyncMode
	BufferSize int
	// Cipher seals payloads. It must be set when reopening a sealed journal
	// and unset when reopening a plain one.
	Cipher adaptive.Cipher
}

// Writer appends entries to a journal file.
type Writer struct {
	mu sync.Mutex

	cfg    Config
	file   *os.File
	bw     *bufio.Writer
	offset int64
	count  uint64
	closed bool
}

// OpenWriter creates the journal at cfg.Path, or reopens it for appending.
// A torn tail left by an earlier crash is truncated away.
func OpenWriter(cfg Config) (*Writer, error) {
	if cfg.Path == "" {
		return nil, domain.ErrMissingArgument.WithDetails("journal path")
	}
	if cfg.SyncMode == "" {
		cfg.SyncMode = SyncModeBatch
	}
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = DefaultBufferSize
	}

	f, err := os.OpenFile(cfg.Path, os.O_RDWR|os.O_CREATE, DefaultFilePerm)
	if err != nil {
		return nil, fmt.Errorf("journalfile: open writer: %w", err)
	}
	stat, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("journalfile: stat: %w", err)
	}

	w := &Writer{cfg: cfg, file: f}
	if stat.Size() == 0 {
		err = w.writeHeader()
	} else {
		err = w.recover()
	}
	if err != nil {
		f.Close()
		return nil, err
	}
	w.bw = bufio.NewWriterSize(f, cfg.BufferSize)
	return w, nil
}

func (w *Writer) writeHeader() error {
	h := Header{Version: Version}
	if w.cfg.Cipher != nil {
		h.Flags |= FlagSealed
	}
	if _, err := w.file.Write(h.marshal()); err != nil {
		return fmt.Errorf("journalfile: write header: %w", err)
	}
	w.offset = int64(HeaderSize)
	return nil
}

// recover scans the existing frames, truncates a torn tail and positions
// the file for appends.
func (w *Writer) recover() error {
	r, err := NewReader(w.file, WithCipher(w.cfg.Cipher), WithAllowTornTail(true))
	if err != nil {
		if errors.Is(err, ErrCipherRequired) {
			return fmt.Errorf("%w: journal is sealed", ErrSealMismatch)
		}
		return err
	}
	if !r.Header().Sealed() && w.cfg.Cipher != nil {
		return fmt.Errorf("%w: journal is not sealed", ErrSealMismatch)
	}

	ctx := context.Background()
	for {
		_, err := r.Next(ctx)
		if err == io.EOF {
			break
		}
		if err != nil {
			return fmt.Errorf("journalfile: recover %s: %w", w.cfg.Path, err)
		}
		w.count++
	}

	w.offset = r.Offset()
	if err := w.file.Truncate(w.offset); err != nil {
		return fmt.Errorf("journalfile: truncate torn tail: %w", err)
	}
	if _, err := w.file.Seek(w.offset, io.SeekStart); err != nil {
		return fmt.Errorf("journalfile: seek: %w", err)
	}
	return nil
}

// Append encodes and buffers one entry.
func (w *Writer) Append(e domain.Entry) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return ErrClosed
	}
	frame, err := encodeFrame(e, w.cfg.Cipher)
	if err != nil {
		return err
	}
	if _, err := w.bw.Write(frame); err != nil {
		return fmt.Errorf("journalfile: write frame: %w", err)
	}
	w.offset += int64(len(frame))
	w.count++

	if w.cfg.SyncMode == SyncModeSync {
		return w.syncLocked()
	}
	return nil
}

// Flush writes buffered frames to the file and, in batch mode, fsyncs.
func (w *Writer) Flush() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return ErrClosed
	}
	return w.syncLocked()
}

func (w *Writer) syncLocked() error {
	if err := w.bw.Flush(); err != nil {
		return fmt.Errorf("journalfile: flush: %w", err)
	}
	if err := w.file.Sync(); err != nil {
		return fmt.Errorf("journalfile: sync: %w", err)
	}
	return nil
}

// Offset returns the offset the next frame will be written at.
func (w *Writer) Offset() int64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.offset
}

// Count returns the number of entries in the journal.
func (w *Writer) Count() uint64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.count
}

// Close flushes and closes the file.
func (w *Writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return nil
	}
	w.closed = true
	err := w.syncLocked()
	if cerr := w.file.Close(); err == nil {
		err = cerr
	}
	return err
}
