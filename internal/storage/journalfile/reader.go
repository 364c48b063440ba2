package journalfile

import (
	"bufio"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/yndnr/rewind-go/internal/core/domain"
	"github.com/yndnr/rewind-go/pkg/crypto/adaptive"
)

// ReaderOption configures a Reader.
type ReaderOption func(*Reader)

// WithCipher sets the cipher for sealed journals.
func WithCipher(c adaptive.Cipher) ReaderOption {
	return func(r *Reader) { r.cipher = c }
}

// WithAllowTornTail makes a partial frame at the end of the file read as
// io.EOF instead of a decode error.
func WithAllowTornTail(allow bool) ReaderOption {
	return func(r *Reader) { r.allowTorn = allow }
}

// Reader decodes entries from a journal file. It implements
// replay.OffsetSource.
type Reader struct {
	src    io.ReadSeeker
	closer io.Closer
	br     *bufio.Reader

	header    Header
	cipher    adaptive.Cipher
	allowTorn bool

	offset int64
	torn   bool
}

// Open opens the journal at path.
func Open(path string, opts ...ReaderOption) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("journalfile: open: %w", err)
	}
	r, err := NewReader(f, opts...)
	if err != nil {
		f.Close()
		return nil, err
	}
	r.closer = f
	return r, nil
}

// NewReader reads the header from src and positions the reader at the first
// frame.
func NewReader(src io.ReadSeeker, opts ...ReaderOption) (*Reader, error) {
	r := &Reader{src: src}
	for _, opt := range opts {
		opt(r)
	}
	if _, err := src.Seek(0, io.SeekStart); err != nil {
		return nil, err
	}
	h, err := readHeader(src)
	if err != nil {
		return nil, err
	}
	if h.Sealed() && r.cipher == nil {
		return nil, ErrCipherRequired
	}
	r.header = h
	r.offset = int64(HeaderSize)
	r.br = bufio.NewReaderSize(src, 64<<10)
	return r, nil
}

// Header returns the file header.
func (r *Reader) Header() Header { return r.header }

// Offset returns the byte offset of the next frame.
func (r *Reader) Offset() int64 { return r.offset }

// Torn reports whether the last Next stopped at a partial frame.
func (r *Reader) Torn() bool { return r.torn }

// Seek positions the reader at a frame boundary previously returned by
// Offset.
func (r *Reader) Seek(offset int64) error {
	if offset < int64(HeaderSize) {
		return domain.ErrInvalidArgument.WithDetailsf("offset %d is inside the header", offset)
	}
	if _, err := r.src.Seek(offset, io.SeekStart); err != nil {
		return fmt.Errorf("journalfile: seek: %w", err)
	}
	r.br.Reset(r.src)
	r.offset = offset
	r.torn = false
	return nil
}

// Next returns the next entry, or io.EOF at the end of the journal.
func (r *Reader) Next(ctx context.Context) (domain.Entry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if r.br == nil {
		return nil, ErrClosed
	}

	var hdr [frameHeaderSize]byte
	n, err := io.ReadFull(r.br, hdr[:])
	switch {
	case err == io.EOF:
		return nil, io.EOF
	case errors.Is(err, io.ErrUnexpectedEOF):
		return nil, r.tornTail(n)
	case err != nil:
		return nil, fmt.Errorf("journalfile: read frame header: %w", err)
	}

	length := binary.BigEndian.Uint32(hdr[0:4])
	if length < kindSize || length > MaxFrameSize {
		return nil, domain.ErrDecode.WithDetailsf("frame at offset %d has length %d", r.offset, length)
	}

	body := make([]byte, length)
	if n, err := io.ReadFull(r.br, body); err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return nil, r.tornTail(frameHeaderSize + n)
		}
		return nil, fmt.Errorf("journalfile: read frame: %w", err)
	}

	e, err := decodeBody(body, binary.BigEndian.Uint32(hdr[4:8]), r.cipher, r.header.Sealed())
	if err != nil {
		var de *domain.DomainError
		if errors.As(err, &de) {
			return nil, de.WithDetails(fmt.Sprintf("offset %d: %s", r.offset, de.Details))
		}
		return nil, err
	}
	r.offset += int64(frameHeaderSize) + int64(length)
	return e, nil
}

func (r *Reader) tornTail(read int) error {
	r.torn = true
	if r.allowTorn {
		return io.EOF
	}
	return domain.ErrDecode.WithDetailsf("partial frame of %d bytes at offset %d", read, r.offset)
}

// Close closes the underlying file when the reader owns it.
func (r *Reader) Close() error {
	r.br = nil
	if r.closer != nil {
		err := r.closer.Close()
		r.closer = nil
		return err
	}
	return nil
}
