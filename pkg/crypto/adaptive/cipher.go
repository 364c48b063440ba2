package adaptive

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"errors"
	"fmt"
	"runtime"

	"golang.org/x/crypto/chacha20poly1305"
)

// KeySize is the size of every key this package accepts.
const KeySize = 32

// CipherType identifies the AEAD algorithm.
type CipherType string

const (
	CipherAESGCM   CipherType = "aes-256-gcm"
	CipherChaCha20 CipherType = "chacha20-poly1305"
)

// ErrOpen is returned when a sealed blob fails authentication.
var ErrOpen = errors.New("adaptive: message authentication failed")

// Cipher seals and opens blobs. The output of Encrypt is nonce || ciphertext;
// additionalData is authenticated but not stored.
type Cipher interface {
	Type() CipherType
	Encrypt(plaintext, additionalData []byte) ([]byte, error)
	Decrypt(sealed, additionalData []byte) ([]byte, error)
	// Overhead is the number of bytes Encrypt adds to the plaintext.
	Overhead() int
}

// New returns the preferred cipher for this platform: AES-GCM where the Go
// runtime has hardware AES, ChaCha20-Poly1305 elsewhere.
func New(key []byte) (Cipher, error) {
	switch runtime.GOARCH {
	case "amd64", "arm64", "s390x":
		return NewWithType(key, CipherAESGCM)
	default:
		return NewWithType(key, CipherChaCha20)
	}
}

// NewWithType returns a cipher of the given type.
func NewWithType(key []byte, t CipherType) (Cipher, error) {
	if len(key) != KeySize {
		return nil, fmt.Errorf("adaptive: key must be %d bytes, got %d", KeySize, len(key))
	}

	var (
		a   cipher.AEAD
		err error
	)
	switch t {
	case CipherAESGCM:
		var block cipher.Block
		if block, err = aes.NewCipher(key); err == nil {
			a, err = cipher.NewGCM(block)
		}
	case CipherChaCha20:
		a, err = chacha20poly1305.NewX(key)
	default:
		return nil, fmt.Errorf("adaptive: unknown cipher type %q", t)
	}
	if err != nil {
		return nil, err
	}
	return &aead{typ: t, aead: a}, nil
}

type aead struct {
	typ  CipherType
	aead cipher.AEAD
}

func (c *aead) Type() CipherType { return c.typ }

func (c *aead) Overhead() int { return c.aead.NonceSize() + c.aead.Overhead() }

func (c *aead) Encrypt(plaintext, additionalData []byte) ([]byte, error) {
	ns := c.aead.NonceSize()
	out := make([]byte, ns, ns+len(plaintext)+c.aead.Overhead())
	if _, err := rand.Read(out); err != nil {
		return nil, err
	}
	return c.aead.Seal(out, out[:ns], plaintext, additionalData), nil
}

func (c *aead) Decrypt(sealed, additionalData []byte) ([]byte, error) {
	ns := c.aead.NonceSize()
	if len(sealed) < ns+c.aead.Overhead() {
		return nil, fmt.Errorf("%w: %d bytes is shorter than the overhead", ErrOpen, len(sealed))
	}
	plain, err := c.aead.Open(nil, sealed[:ns], sealed[ns:], additionalData)
	if err != nil {
		return nil, ErrOpen
	}
	return plain, nil
}
