// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package auth

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"io"

	"github.com/samber/oops"
)

// SecretCipher provides reversible AES-256-GCM encryption for values that
// must be recovered later. Passwords are never stored this way.
type SecretCipher struct {
	gcm cipher.AEAD
}

// NewSecretCipher derives a 256-bit key from secret with SHA-256.
func NewSecretCipher(secret string) (*SecretCipher, error) {
	if secret == "" {
		return nil, oops.Code("CIPHER_KEY_REQUIRED").Errorf("encryption key is required")
	}
	key := sha256.Sum256([]byte(secret))

	block, err := aes.NewCipher(key[:])
	if err != nil {
		return nil, oops.Code("CIPHER_INIT_FAILED").Wrap(err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, oops.Code("CIPHER_INIT_FAILED").Wrap(err)
	}
	return &SecretCipher{gcm: gcm}, nil
}

// Encrypt returns base64url(nonce || ciphertext).
func (c *SecretCipher) Encrypt(plaintext string) (string, error) {
	nonce := make([]byte, c.gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", oops.Code("CIPHER_NONCE_FAILED").Wrap(err)
	}
	sealed := c.gcm.Seal(nonce, nonce, []byte(plaintext), nil)
	return base64.RawURLEncoding.EncodeToString(sealed), nil
}

// Decrypt reverses Encrypt. Tampered or foreign input is an error.
func (c *SecretCipher) Decrypt(ciphertext string) (string, error) {
	data, err := base64.RawURLEncoding.DecodeString(ciphertext)
	if err != nil {
		return "", oops.Code("CIPHER_DECRYPT_FAILED").Wrapf(err, "decode ciphertext")
	}
	nonceSize := c.gcm.NonceSize()
	if len(data) < nonceSize+c.gcm.Overhead() {
		return "", oops.Code("CIPHER_DECRYPT_FAILED").Errorf("ciphertext too short")
	}
	plaintext, err := c.gcm.Open(nil, data[:nonceSize], data[nonceSize:], nil)
	if err != nil {
		return "", oops.Code("CIPHER_DECRYPT_FAILED").Wrap(err)
	}
	return string(plaintext), nil
}
