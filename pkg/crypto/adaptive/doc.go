// Package adaptive seals journal payloads and checkpoint images.
//
// A Cipher is AES-256-GCM on platforms with hardware AES and
// XChaCha20-Poly1305 elsewhere. Keys are 32 bytes, either read from a key
// file as hex or derived from a passphrase with Argon2id, then expanded per
// purpose with HKDF-SHA256.
//
//	c, err := adaptive.NewForPurpose("/etc/rewind/key", salt, "rewind journal")
//	sealed, err := c.Encrypt(payload, aad)
//	payload, err := c.Decrypt(sealed, aad)
package adaptive
