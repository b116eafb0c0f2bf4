// Package crypto seals secrets (OAuth tokens, app credentials) before they are
// written to the settings and token tables.
package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
)

const (
	nonceSize = 16
	tagSize   = 16
)

var ErrInvalidCiphertext = errors.New("invalid ciphertext")

// Cipher encrypts and decrypts short strings.
type Cipher interface {
	Encrypt(plaintext string) (string, error)
	Decrypt(ciphertext string) (string, error)
}

// NewCipher returns an AES-256-GCM cipher keyed by SHA-256(key), or a
// pass-through cipher when key is empty (local development).
//
// Sealed values are base64(nonce || tag || ciphertext) with a 16 byte nonce,
// the layout written by the earlier PHP backend, so existing rows stay readable.
func NewCipher(key string) (Cipher, error) {
	if key == "" {
		return plainCipher{}, nil
	}

	sum := sha256.Sum256([]byte(key))
	block, err := aes.NewCipher(sum[:])
	if err != nil {
		return nil, fmt.Errorf("creating aes block: %w", err)
	}
	aead, err := cipher.NewGCMWithNonceSize(block, nonceSize)
	if err != nil {
		return nil, fmt.Errorf("creating gcm: %w", err)
	}
	return &gcmCipher{aead: aead}, nil
}

type gcmCipher struct {
	aead cipher.AEAD
}

func (c *gcmCipher) Encrypt(plaintext string) (string, error) {
	nonce := make([]byte, nonceSize)
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("reading nonce: %w", err)
	}

	// Seal appends the tag after the ciphertext; move it in front of it.
	sealed := c.aead.Seal(nil, nonce, []byte(plaintext), nil)
	body, tag := sealed[:len(sealed)-tagSize], sealed[len(sealed)-tagSize:]

	out := make([]byte, 0, nonceSize+tagSize+len(body))
	out = append(out, nonce...)
	out = append(out, tag...)
	out = append(out, body...)
	return base64.StdEncoding.EncodeToString(out), nil
}

func (c *gcmCipher) Decrypt(ciphertext string) (string, error) {
	raw, err := base64.StdEncoding.DecodeString(ciphertext)
	if err != nil || len(raw) < nonceSize+tagSize {
		return "", ErrInvalidCiphertext
	}

	nonce := raw[:nonceSize]
	tag := raw[nonceSize : nonceSize+tagSize]
	body := raw[nonceSize+tagSize:]

	sealed := make([]byte, 0, len(body)+tagSize)
	sealed = append(sealed, body...)
	sealed = append(sealed, tag...)

	plain, err := c.aead.Open(nil, nonce, sealed, nil)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidCiphertext, err)
	}
	return string(plain), nil
}

type plainCipher struct{}

func (plainCipher) Encrypt(plaintext string) (string, error)  { return plaintext, nil }
func (plainCipher) Decrypt(ciphertext string) (string, error) { return ciphertext, nil }
