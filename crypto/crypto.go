// Package crypto provides optional at-rest encryption for the token cache
// file using AES-256-GCM authenticated encryption. When no key is configured
// the cache is stored as plain JSON guarded only by file permissions.
package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"io"
)

// Sealer seals and opens small blobs (the serialized token cache).
type Sealer interface {
	// Seal encrypts plaintext, returning nonce || ciphertext || tag.
	Seal(plaintext []byte) ([]byte, error)
	// Open verifies and decrypts a blob produced by Seal.
	Open(blob []byte) ([]byte, error)
}

// AESSealer implements Sealer with AES-256-GCM.
type AESSealer struct {
	key []byte
}

// NewAESSealer builds a Sealer from a base64-encoded 32-byte key
// (generate one with: openssl rand -base64 32).
func NewAESSealer(base64Key string) (*AESSealer, error) {
	if base64Key == "" {
		return nil, fmt.Errorf("encryption key is empty")
	}
	key, err := base64.StdEncoding.DecodeString(base64Key)
	if err != nil {
		return nil, fmt.Errorf("invalid encryption key: base64 decode failed: %w", err)
	}
	if len(key) != 32 {
		return nil, fmt.Errorf("invalid encryption key: must be 32 bytes (256 bits), got %d", len(key))
	}
	return &AESSealer{key: key}, nil
}

func (s *AESSealer) gcm() (cipher.AEAD, error) {
	block, err := aes.NewCipher(s.key)
	if err != nil {
		return nil, fmt.Errorf("create cipher: %w", err)
	}
	return cipher.NewGCM(block)
}

// Seal encrypts plaintext with a random per-call nonce prepended to the output.
func (s *AESSealer) Seal(plaintext []byte) ([]byte, error) {
	if len(plaintext) == 0 {
		return nil, fmt.Errorf("plaintext is empty")
	}
	gcm, err := s.gcm()
	if err != nil {
		return nil, err
	}
	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, fmt.Errorf("generate nonce: %w", err)
	}
	return gcm.Seal(nonce, nonce, plaintext, nil), nil
}

// Open decrypts a Seal blob. Fails if the blob is truncated or the
// authentication tag does not verify.
func (s *AESSealer) Open(blob []byte) ([]byte, error) {
	if len(blob) == 0 {
		return nil, fmt.Errorf("ciphertext is empty")
	}
	gcm, err := s.gcm()
	if err != nil {
		return nil, err
	}
	if len(blob) < gcm.NonceSize() {
		return nil, fmt.Errorf("ciphertext too short: %d bytes", len(blob))
	}
	nonce, ciphertext := blob[:gcm.NonceSize()], blob[gcm.NonceSize():]
	plaintext, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		// Deliberately vague: don't leak which check failed.
		return nil, fmt.Errorf("decryption failed: authentication or integrity check failed")
	}
	return plaintext, nil
}
