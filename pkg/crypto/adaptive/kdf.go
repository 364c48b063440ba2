package adaptive

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/hkdf"
)

// Argon2id parameters for passphrase-derived keys.
const (
	argonTime    = 1
	argonMemory  = 64 * 1024
	argonThreads = 4
)

// SaltSize is the salt length DeriveKey expects.
const SaltSize = 16

// DeriveKey stretches a passphrase into a master key with Argon2id.
func DeriveKey(passphrase, salt []byte) ([]byte, error) {
	if len(passphrase) == 0 {
		return nil, errors.New("adaptive: empty passphrase")
	}
	if len(salt) < SaltSize {
		return nil, fmt.Errorf("adaptive: salt must be at least %d bytes", SaltSize)
	}
	return argon2.IDKey(passphrase, salt, argonTime, argonMemory, argonThreads, KeySize), nil
}

// ExpandKey derives an independent subkey for one purpose from a master key.
// Journals and checkpoints use different info labels so a key never seals
// two kinds of data.
func ExpandKey(master []byte, info string) ([]byte, error) {
	if len(master) < KeySize {
		return nil, fmt.Errorf("adaptive: master key must be at least %d bytes", KeySize)
	}
	out := make([]byte, KeySize)
	if _, err := io.ReadFull(hkdf.New(sha256.New, master, nil, []byte(info)), out); err != nil {
		return nil, err
	}
	return out, nil
}

// LoadKeyFile reads a master key. The file holds either 64 hex characters
// or a passphrase, which is stretched with DeriveKey using salt.
func LoadKeyFile(path string, salt []byte) ([]byte, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("adaptive: read key file: %w", err)
	}
	text := strings.TrimSpace(string(raw))
	if len(text) == 2*KeySize {
		if key, err := hex.DecodeString(text); err == nil {
			return key, nil
		}
	}
	return DeriveKey([]byte(text), salt)
}

// NewForPurpose loads the master key at path and returns a cipher keyed for
// info.
func NewForPurpose(path string, salt []byte, info string) (Cipher, error) {
	master, err := LoadKeyFile(path, salt)
	if err != nil {
		return nil, err
	}
	key, err := ExpandKey(master, info)
	if err != nil {
		return nil, err
	}
	return New(key)
}
