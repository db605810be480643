// Package crypto implements symmetric encryption for sensitive free-text
// fields (quote notes, third-party API tokens) using per-user AES-256-GCM keys.
//
// Ciphertexts are self-contained: a random 12-byte nonce is prepended to the
// sealed bytes and the whole value is base64-encoded for storage in a TEXT
// column. The empty string is treated as "no value" and bypasses the cipher
// entirely in both directions.
package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
)

// KeySize is the AES-256 key length in bytes.
const KeySize = 32

var (
	// ErrInvalidKey is returned when the key is not a valid AES-256 key.
	ErrInvalidKey = errors.New("encryption key must be 32 bytes")
	// ErrMalformedCiphertext is returned when a stored value cannot be decoded.
	ErrMalformedCiphertext = errors.New("malformed ciphertext")
)

// NewKey generates a random AES-256 key.
func NewKey() ([]byte, error) {
	key := make([]byte, KeySize)
	if _, err := rand.Read(key); err != nil {
		return nil, fmt.Errorf("generate key: %w", err)
	}
	return key, nil
}

// Encrypt seals plaintext with the given key.
// An empty plaintext is returned as-is without touching the cipher.
func Encrypt(plaintext string, key []byte) (string, error) {
	if plaintext == "" {
		return "", nil
	}

	aead, err := newAEAD(key)
	if err != nil {
		return "", err
	}

	nonce := make([]byte, aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("generate nonce: %w", err)
	}

	sealed := aead.Seal(nonce, nonce, []byte(plaintext), nil)
	return base64.StdEncoding.EncodeToString(sealed), nil
}

// Decrypt opens a value produced by Encrypt.
// An empty ciphertext decrypts to the empty string.
func Decrypt(ciphertext string, key []byte) (string, error) {
	if ciphertext == "" {
		return "", nil
	}

	aead, err := newAEAD(key)
	if err != nil {
		return "", err
	}

	raw, err := base64.StdEncoding.DecodeString(ciphertext)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrMalformedCiphertext, err)
	}
	if len(raw) < aead.NonceSize() {
		return "", ErrMalformedCiphertext
	}

	nonce, sealed := raw[:aead.NonceSize()], raw[aead.NonceSize():]
	plaintext, err := aead.Open(nil, nonce, sealed, nil)
	if err != nil {
		return "", fmt.Errorf("decrypt: %w", err)
	}
	return string(plaintext), nil
}

func newAEAD(key []byte) (cipher.AEAD, error) {
	if len(key) != KeySize {
		return nil, ErrInvalidKey
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}
