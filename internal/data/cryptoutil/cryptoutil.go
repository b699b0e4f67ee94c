// Package cryptoutil seals session records that are stored outside the portal
// process, so a Redis dump does not expose access tokens or refresh cookies.
package cryptoutil

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"strings"
)

// KeySize is the AES-256 key length in bytes.
const KeySize = 32

// sealedPrefix versions the envelope so the algorithm can change without
// invalidating live sessions.
const sealedPrefix = "v1:"

// ErrNotSealed is returned by Open for a value Seal did not produce.
var ErrNotSealed = errors.New("value is not a sealed record")

// Sealer encrypts and authenticates opaque records.
type Sealer interface {
	Seal(plaintext []byte) (string, error)
	Open(sealed string) ([]byte, error)
}

// AESGCM seals records with AES-256-GCM and a random nonce per record.
type AESGCM struct {
	aead cipher.AEAD
}

var _ Sealer = (*AESGCM)(nil)

// NewAESGCM builds a sealer from a 32-byte key.
func NewAESGCM(key []byte) (*AESGCM, error) {
	if len(key) != KeySize {
		return nil, fmt.Errorf("aes-gcm key must be %d bytes, got %d", KeySize, len(key))
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}
	return &AESGCM{aead: aead}, nil
}

// ParseKey decodes a key given as 64 hex characters or standard base64.
func ParseKey(s string) ([]byte, error) {
	s = strings.TrimSpace(s)
	if len(s) == hex.EncodedLen(KeySize) {
		if key, err := hex.DecodeString(s); err == nil {
			return key, nil
		}
	}
	key, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return nil, errors.New("key must be 64 hex characters or base64")
	}
	if len(key) != KeySize {
		return nil, fmt.Errorf("key must decode to %d bytes, got %d", KeySize, len(key))
	}
	return key, nil
}

// Seal returns "v1:" followed by base64(nonce || ciphertext).
func (a *AESGCM) Seal(plaintext []byte) (string, error) {
	nonce := make([]byte, a.aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", err
	}
	out := a.aead.Seal(nonce, nonce, plaintext, nil)
	return sealedPrefix + base64.StdEncoding.EncodeToString(out), nil
}

// Open reverses Seal. A tampered value or one sealed under another key fails.
func (a *AESGCM) Open(sealed string) ([]byte, error) {
	if !IsSealed(sealed) {
		return nil, ErrNotSealed
	}
	data, err := base64.StdEncoding.DecodeString(sealed[len(sealedPrefix):])
	if err != nil {
		return nil, fmt.Errorf("decode sealed record: %w", err)
	}
	n := a.aead.NonceSize()
	if len(data) < n {
		return nil, errors.New("sealed record too short")
	}
	pt, err := a.aead.Open(nil, data[:n], data[n:], nil)
	if err != nil {
		return nil, fmt.Errorf("open sealed record: %w", err)
	}
	return pt, nil
}

// IsSealed reports whether v carries the sealed envelope prefix.
func IsSealed(v string) bool {
	return strings.HasPrefix(v, sealedPrefix)
}
