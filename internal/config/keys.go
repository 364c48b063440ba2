// Package config provides the rewind configuration.
package config

import (
	"crypto/sha256"

	"github.com/yndnr/rewind-go/pkg/crypto/adaptive"
)

// Key purposes. Each purpose gets its own subkey of the master key.
const (
	PurposeJournal    = "rewind/journal"
	PurposeCheckpoint = "rewind/checkpoint"
)

// Cipher returns the cipher for purpose, or nil when no key file is
// configured.
//
// A passphrase key file is stretched with a salt fixed per purpose, so the
// same passphrase always yields the same key and sealed files stay
// readable across runs.
func (j JournalSection) Cipher(purpose string) (adaptive.Cipher, error) {
	if j.KeyFile == "" {
		return nil, nil
	}
	return adaptive.NewForPurpose(j.KeyFile, Salt(purpose), purpose)
}

// Salt returns the passphrase salt for purpose.
func Salt(purpose string) []byte {
	sum := sha256.Sum256([]byte("rewind-salt:" + purpose))
	return sum[:adaptive.SaltSize]
}
