package checkpoint

import (
	"bufio"
	"bytes"
	"crypto/rand"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/yndnr/rewind-go/internal/core/domain"
	"github.com/yndnr/rewind-go/pkg/crypto/adaptive"
)

var magicBytes = []byte("RWNDCKPT")

const (
	filePrefix    = "ckpt-"
	fileExtension = ".ckpt"
	checksumSize  = sha256.Size
	headerVersion = 1
	maxHeaderSize = 1 << 20

	DefaultKeep = 3
)

var (
	ErrBadMagic         = errors.New("checkpoint: invalid magic bytes")
	ErrChecksumMismatch = errors.New("checkpoint: checksum mismatch")
	ErrNoCheckpoints    = errors.New("checkpoint: no checkpoints available")
	ErrCipherRequired   = errors.New("checkpoint: checkpoint is sealed and no cipher is configured")
)

type header struct {
	Version    int    `json:"version"`
	CreatedAt  int64  `json:"created_at"`
	Journal    string `json:"journal"`
	Position   uint64 `json:"position"`
	Offset     int64  `json:"offset"`
	ModuleHash string `json:"module_hash,omitempty"`
	Sealed     bool   `json:"sealed"`
}

// Config configures a Manager.
type Config struct {
	Dir string
	// Keep is the number of checkpoints Prune retains per directory.
	Keep   int
	Cipher adaptive.Cipher
}

// DefaultConfig returns the default configuration for dir.
func DefaultConfig(dir string) Config {
	return Config{Dir: dir, Keep: DefaultKeep}
}

// Boundary locates a checkpoint in its journal: the log position of the
// next entry to apply and the source offset to resume reading from.
type Boundary struct {
	Journal  string
	Position uint64
	Offset   int64
}

// Info describes a checkpoint file.
type Info struct {
	ID         string `json:"id" yaml:"id"`
	Journal    string `json:"journal" yaml:"journal"`
	Position   uint64 `json:"position" yaml:"position"`
	Offset     int64  `json:"offset" yaml:"offset"`
	ModuleHash string `json:"module_hash,omitempty" yaml:"module_hash,omitempty"`
	Sealed     bool   `json:"sealed" yaml:"sealed"`
	CreatedAt  int64  `json:"created_at" yaml:"created_at"`
	Size       int64  `json:"size" yaml:"size"`
	Path       string `json:"path" yaml:"path"`
	Checksum   string `json:"checksum,omitempty" yaml:"checksum,omitempty"`
}

// Manager creates, loads and prunes checkpoints in one directory.
type Manager struct {
	cfg Config

	mu      sync.Mutex
	entropy io.Reader
}

// NewManager creates the directory if needed.
func NewManager(cfg Config) (*Manager, error) {
	if cfg.Dir == "" {
		return nil, domain.ErrMissingArgument.WithDetails("checkpoint dir")
	}
	if err := os.MkdirAll(cfg.Dir, 0o750); err != nil {
		return nil, fmt.Errorf("checkpoint: create dir: %w", err)
	}
	if cfg.Keep <= 0 {
		cfg.Keep = DefaultKeep
	}
	return &Manager{
		cfg:     cfg,
		entropy: ulid.Monotonic(rand.Reader, 0),
	}, nil
}

func (m *Manager) newID(t time.Time) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id, err := ulid.New(ulid.Timestamp(t), m.entropy)
	if err != nil {
		return "", err
	}
	return filePrefix + id.String(), nil
}

// Create writes img as a new checkpoint at b.
func (m *Manager) Create(b Boundary, img domain.ProcessImage) (*Info, error) {
	now := time.Now()
	id, err := m.newID(now)
	if err != nil {
		return nil, fmt.Errorf("checkpoint: new id: %w", err)
	}

	hdr := header{
		Version:    headerVersion,
		CreatedAt:  now.UnixMilli(),
		Journal:    b.Journal,
		Position:   b.Position,
		Offset:     b.Offset,
		ModuleHash: hex.EncodeToString(img.ModuleHash),
		Sealed:     m.cfg.Cipher != nil,
	}
	hdrJSON, err := json.Marshal(hdr)
	if err != nil {
		return nil, fmt.Errorf("checkpoint: marshal header: %w", err)
	}
	data, err := json.Marshal(img)
	if err != nil {
		return nil, fmt.Errorf("checkpoint: marshal image: %w", err)
	}
	if m.cfg.Cipher != nil {
		if data, err = m.cfg.Cipher.Encrypt(data, hdrJSON); err != nil {
			return nil, fmt.Errorf("checkpoint: seal image: %w", err)
		}
	}

	tempPath := filepath.Join(m.cfg.Dir, id+".tmp")
	file, err := os.OpenFile(tempPath, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o600)
	if err != nil {
		return nil, fmt.Errorf("checkpoint: create temp file: %w", err)
	}
	defer os.Remove(tempPath)

	hash := sha256.New()
	bw := bufio.NewWriter(io.MultiWriter(file, hash))

	bw.Write(magicBytes)
	bw.Write(binary.BigEndian.AppendUint32(nil, uint32(len(hdrJSON))))
	bw.Write(hdrJSON)
	bw.Write(binary.BigEndian.AppendUint64(nil, uint64(len(data))))
	bw.Write(data)
	if err := bw.Flush(); err != nil {
		file.Close()
		return nil, fmt.Errorf("checkpoint: write: %w", err)
	}

	sum := hash.Sum(nil)
	if _, err := file.Write(sum); err != nil {
		file.Close()
		return nil, fmt.Errorf("checkpoint: write checksum: %w", err)
	}
	if err := file.Sync(); err != nil {
		file.Close()
		return nil, fmt.Errorf("checkpoint: sync: %w", err)
	}
	stat, err := file.Stat()
	if err != nil {
		file.Close()
		return nil, err
	}
	if err := file.Close(); err != nil {
		return nil, fmt.Errorf("checkpoint: close: %w", err)
	}

	finalPath := filepath.Join(m.cfg.Dir, id+fileExtension)
	if err := os.Rename(tempPath, finalPath); err != nil {
		return nil, fmt.Errorf("checkpoint: rename: %w", err)
	}

	info := hdr.info(id, finalPath, stat.Size())
	info.Checksum = hex.EncodeToString(sum)
	return info, nil
}

func (h header) info(id, path string, size int64) *Info {
	return &Info{
		ID:         id,
		Journal:    h.Journal,
		Position:   h.Position,
		Offset:     h.Offset,
		ModuleHash: h.ModuleHash,
		Sealed:     h.Sealed,
		CreatedAt:  h.CreatedAt,
		Size:       size,
		Path:       path,
	}
}

// Load returns the newest valid checkpoint of journal, or of any journal
// when journal is empty. Corrupt files are skipped.
func (m *Manager) Load(journal string) (domain.ProcessImage, *Info, error) {
	infos, err := m.List()
	if err != nil {
		return domain.ProcessImage{}, nil, err
	}
	for _, info := range slices.Backward(infos) {
		if journal != "" && info.Journal != journal {
			continue
		}
		img, full, err := m.LoadFile(info.Path)
		if err == nil {
			return img, full, nil
		}
		if errors.Is(err, ErrChecksumMismatch) || errors.Is(err, ErrBadMagic) {
			continue
		}
		return domain.ProcessImage{}, nil, err
	}
	return domain.ProcessImage{}, nil, ErrNoCheckpoints
}

// LoadFile verifies and decodes one checkpoint file.
func (m *Manager) LoadFile(path string) (domain.ProcessImage, *Info, error) {
	var img domain.ProcessImage

	hdr, hdrJSON, data, sum, size, err := readFile(path, true)
	if err != nil {
		return img, nil, err
	}
	if hdr.Sealed {
		if m.cfg.Cipher == nil {
			return img, nil, ErrCipherRequired
		}
		if data, err = m.cfg.Cipher.Decrypt(data, hdrJSON); err != nil {
			return img, nil, fmt.Errorf("checkpoint: open image: %w", err)
		}
	}
	if err := json.Unmarshal(data, &img); err != nil {
		return img, nil, fmt.Errorf("checkpoint: unmarshal image: %w", err)
	}

	info := hdr.info(strings.TrimSuffix(filepath.Base(path), fileExtension), path, size)
	info.Checksum = hex.EncodeToString(sum)
	return img, info, nil
}

// readFile parses a checkpoint. With withData unset only the header is
// read and the checksum is not verified.
func readFile(path string, withData bool) (hdr header, hdrJSON, data, sum []byte, size int64, err error) {
	f, err := os.Open(path)
	if err != nil {
		return hdr, nil, nil, nil, 0, err
	}
	defer f.Close()

	stat, err := f.Stat()
	if err != nil {
		return hdr, nil, nil, nil, 0, err
	}
	size = stat.Size()
	if size < int64(len(magicBytes))+4+8+checksumSize {
		return hdr, nil, nil, nil, size, ErrChecksumMismatch
	}
	dataLen := size - checksumSize

	if withData {
		sum = make([]byte, checksumSize)
		if _, err := io.ReadFull(io.NewSectionReader(f, dataLen, checksumSize), sum); err != nil {
			return hdr, nil, nil, nil, size, err
		}
		h := sha256.New()
		if _, err := io.Copy(h, io.NewSectionReader(f, 0, dataLen)); err != nil {
			return hdr, nil, nil, nil, size, err
		}
		if !bytes.Equal(h.Sum(nil), sum) {
			return hdr, nil, nil, nil, size, ErrChecksumMismatch
		}
	}

	br := bufio.NewReader(io.NewSectionReader(f, 0, dataLen))
	magic := make([]byte, len(magicBytes))
	if _, err := io.ReadFull(br, magic); err != nil {
		return hdr, nil, nil, nil, size, err
	}
	if !bytes.Equal(magic, magicBytes) {
		return hdr, nil, nil, nil, size, ErrBadMagic
	}

	var lenBuf [8]byte
	if _, err := io.ReadFull(br, lenBuf[:4]); err != nil {
		return hdr, nil, nil, nil, size, err
	}
	hdrLen := binary.BigEndian.Uint32(lenBuf[:4])
	if hdrLen == 0 || hdrLen > maxHeaderSize {
		return hdr, nil, nil, nil, size, fmt.Errorf("checkpoint: header length %d out of range", hdrLen)
	}
	hdrJSON = make([]byte, hdrLen)
	if _, err := io.ReadFull(br, hdrJSON); err != nil {
		return hdr, nil, nil, nil, size, err
	}
	if err := json.Unmarshal(hdrJSON, &hdr); err != nil {
		return hdr, nil, nil, nil, size, fmt.Errorf("checkpoint: unmarshal header: %w", err)
	}
	if hdr.Version != headerVersion {
		return hdr, nil, nil, nil, size, fmt.Errorf("checkpoint: unsupported version %d", hdr.Version)
	}
	if !withData {
		return hdr, hdrJSON, nil, nil, size, nil
	}

	if _, err := io.ReadFull(br, lenBuf[:]); err != nil {
		return hdr, nil, nil, nil, size, err
	}
	n := binary.BigEndian.Uint64(lenBuf[:])
	remaining := uint64(dataLen) - uint64(len(magicBytes)) - 4 - uint64(hdrLen) - 8
	if n != remaining {
		return hdr, nil, nil, nil, size, fmt.Errorf("checkpoint: image length %d, %d bytes remain", n, remaining)
	}
	data = make([]byte, n)
	if _, err := io.ReadFull(br, data); err != nil {
		return hdr, nil, nil, nil, size, err
	}
	return hdr, hdrJSON, data, sum, size, nil
}

// List returns checkpoint metadata, oldest first. Files whose header cannot
// be read are omitted.
func (m *Manager) List() ([]*Info, error) {
	entries, err := os.ReadDir(m.cfg.Dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var infos []*Info
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasPrefix(name, filePrefix) || !strings.HasSuffix(name, fileExtension) {
			continue
		}
		path := filepath.Join(m.cfg.Dir, name)
		hdr, _, _, _, size, err := readFile(path, false)
		if err != nil {
			continue
		}
		infos = append(infos, hdr.info(strings.TrimSuffix(name, fileExtension), path, size))
	}
	// ULIDs sort by creation time.
	slices.SortFunc(infos, func(a, b *Info) int { return strings.Compare(a.ID, b.ID) })
	return infos, nil
}

// Prune removes all but the newest Keep checkpoints and returns the removed
// files.
func (m *Manager) Prune() ([]*Info, error) {
	infos, err := m.List()
	if err != nil {
		return nil, err
	}
	if len(infos) <= m.cfg.Keep {
		return nil, nil
	}
	stale := infos[:len(infos)-m.cfg.Keep]
	for _, info := range stale {
		if err := os.Remove(info.Path); err != nil && !os.IsNotExist(err) {
			return nil, fmt.Errorf("checkpoint: remove %s: %w", info.ID, err)
		}
	}
	return stale, nil
}
