package journalfile

import (
	"encoding/binary"
	"errors"
	"fmt"
	"hash/crc32"
	"io"

	"github.com/yndnr/rewind-go/internal/core/codec"
	"github.com/yndnr/rewind-go/internal/core/domain"
	"github.com/yndnr/rewind-go/pkg/crypto/adaptive"
)

// File format constants.
const (
	Magic           = "RWNDJRNL"
	Version         = 1
	HeaderSize      = len(Magic) + 2
	FlagSealed      = 1 << 0
	frameHeaderSize = 8
	kindSize        = codec.RecordHeaderSize
	MaxFrameSize    = 64 << 20
	DefaultFilePerm = 0o600
)

var (
	ErrBadMagic           = errors.New("journalfile: bad magic")
	ErrUnsupportedVersion = errors.New("journalfile: unsupported version")
	ErrCipherRequired     = errors.New("journalfile: journal is sealed and no cipher is configured")
	ErrSealMismatch       = errors.New("journalfile: cipher configuration does not match the journal")
	ErrClosed             = errors.New("journalfile: closed")
)

// Header is the fixed file prefix.
type Header struct {
	Version uint8
	Flags   uint8
}

// Sealed reports whether payloads are encrypted.
func (h Header) Sealed() bool { return h.Flags&FlagSealed != 0 }

func (h Header) marshal() []byte {
	b := make([]byte, 0, HeaderSize)
	b = append(b, Magic...)
	return append(b, h.Version, h.Flags)
}

func readHeader(r io.Reader) (Header, error) {
	var buf [HeaderSize]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return Header{}, fmt.Errorf("%w: file shorter than header", ErrBadMagic)
		}
		return Header{}, err
	}
	if string(buf[:len(Magic)]) != Magic {
		return Header{}, ErrBadMagic
	}
	h := Header{Version: buf[len(Magic)], Flags: buf[len(Magic)+1]}
	if h.Version != Version {
		return Header{}, fmt.Errorf("%w: %d", ErrUnsupportedVersion, h.Version)
	}
	return h, nil
}

// encodeFrame returns the framed entry, sealing the payload when c is set.
func encodeFrame(e domain.Entry, c adaptive.Cipher) ([]byte, error) {
	if err := e.Validate(); err != nil {
		return nil, err
	}
	var kind [kindSize]byte
	binary.BigEndian.PutUint16(kind[:], uint16(e.Kind()))

	payload, err := codec.Marshal(e)
	if err != nil {
		return nil, err
	}
	if c != nil {
		if payload, err = c.Encrypt(payload, kind[:]); err != nil {
			return nil, fmt.Errorf("journalfile: seal %s: %w", e.Kind(), err)
		}
	}

	length := kindSize + len(payload)
	if length > MaxFrameSize {
		return nil, domain.ErrInvalidArgument.WithDetailsf("%s frame of %d bytes exceeds %d", e.Kind(), length, MaxFrameSize)
	}

	out := make([]byte, frameHeaderSize, frameHeaderSize+length)
	out = append(out, kind[:]...)
	out = append(out, payload...)
	binary.BigEndian.PutUint32(out[0:4], uint32(length))
	binary.BigEndian.PutUint32(out[4:8], crc32.ChecksumIEEE(out[frameHeaderSize:]))
	return out, nil
}

// decodeBody checks and decodes [Kind][Payload] given the stored CRC.
func decodeBody(body []byte, wantCRC uint32, c adaptive.Cipher, sealed bool) (domain.Entry, error) {
	if got := crc32.ChecksumIEEE(body); got != wantCRC {
		return nil, domain.ErrDecode.WithDetailsf("crc32 mismatch: stored %08x, computed %08x", wantCRC, got)
	}
	kind, err := domain.ParseKind(binary.BigEndian.Uint16(body))
	if err != nil {
		return nil, err
	}
	payload := body[kindSize:]
	if sealed {
		if c == nil {
			return nil, ErrCipherRequired
		}
		if payload, err = c.Decrypt(payload, body[:kindSize]); err != nil {
			return nil, domain.ErrDecode.WithDetailsf("open %s payload", kind).WithCause(err)
		}
	}
	return codec.Unmarshal(kind, payload)
}
