// Package cryptox encrypts message content at rest.
//
// Content is sealed with AES-256-GCM under a key derived once from a
// configured secret and stored as a text envelope:
//
//	<ivHex>:<ciphertextHex>
//
// Every call to Encrypt draws a fresh random IV, so encrypting the same
// plaintext twice never yields the same envelope.
package cryptox

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
)

// envelopeSeparator is outside the hex alphabet, so it can only appear as
// the single IV/ciphertext boundary.
const envelopeSeparator = ":"

var (
	// ErrMalformedCiphertext means the envelope does not have exactly two
	// hex segments or cannot be decoded.
	ErrMalformedCiphertext = errors.New("malformed ciphertext")

	// ErrDecryptionFailed means the envelope was well-formed but could not be
	// opened: wrong key or tampered data.
	ErrDecryptionFailed = errors.New("decryption failed")
)

// Cipher seals and opens message envelopes. It is safe for concurrent use.
type Cipher struct {
	aead cipher.AEAD
}

// NewCipher derives a 32-byte key as SHA-256(secret) and prepares AES-256-GCM.
func NewCipher(secret string) (*Cipher, error) {
	if secret == "" {
		return nil, errors.New("encryption secret must not be empty")
	}

	key := DeriveKey(secret)

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}

	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}

	return &Cipher{aead: aead}, nil
}

// DeriveKey is the one-way key derivation used by NewCipher.
func DeriveKey(secret string) []byte {
	sum := sha256.Sum256([]byte(secret))
	return sum[:]
}

// Encrypt returns the envelope for plaintext.
func (c *Cipher) Encrypt(plaintext string) (string, error) {
	iv := make([]byte, c.aead.NonceSize())
	if _, err := rand.Read(iv); err != nil {
		return "", fmt.Errorf("generate iv: %w", err)
	}

	sealed := c.aead.Seal(nil, iv, []byte(plaintext), nil)

	return hex.EncodeToString(iv) + envelopeSeparator + hex.EncodeToString(sealed), nil
}

// Decrypt opens an envelope produced by Encrypt.
//
// It returns ErrMalformedCiphertext for envelopes with the wrong number of
// segments or bad hex, and ErrDecryptionFailed when authentication fails.
func (c *Cipher) Decrypt(envelope string) (string, error) {
	parts := strings.Split(envelope, envelopeSeparator)
	if len(parts) != 2 {
		return "", fmt.Errorf("%w: expected 2 segments, got %d", ErrMalformedCiphertext, len(parts))
	}

	iv, err := hex.DecodeString(parts[0])
	if err != nil {
		return "", fmt.Errorf("%w: iv: %v", ErrMalformedCiphertext, err)
	}
	if len(iv) != c.aead.NonceSize() {
		return "", fmt.Errorf("%w: iv length %d", ErrMalformedCiphertext, len(iv))
	}

	sealed, err := hex.DecodeString(parts[1])
	if err != nil {
		return "", fmt.Errorf("%w: ciphertext: %v", ErrMalformedCiphertext, err)
	}

	plaintext, err := c.aead.Open(nil, iv, sealed, nil)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrDecryptionFailed, err)
	}

	return string(plaintext), nil
}
