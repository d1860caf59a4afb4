// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

// Package cipher encrypts secrets at rest with AES-256-GCM.
//
// Ciphertexts are encoded as "<iv-hex>:<sealed-hex>" with a fresh random
// 16-byte IV per call, so encrypting the same value twice yields different
// strings.
package cipher

import (
	"crypto/aes"
	stdcipher "crypto/cipher"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
)

// IVSize is the nonce length in bytes.
const IVSize = 16

// KeySize is the required key length in bytes.
const KeySize = 32

var (
	// ErrDecrypt is returned for malformed or tampered ciphertexts.
	ErrDecrypt = errors.New("decryption failed")
	// ErrKeySize is returned when the key is not 32 bytes long.
	ErrKeySize = errors.New("encryption key must be 32 bytes")
)

// Cipher encrypts and decrypts short secrets with a fixed key.
type Cipher struct {
	aead stdcipher.AEAD
}

// New creates a cipher for the given 32-byte key.
func New(key []byte) (*Cipher, error) {
	if len(key) != KeySize {
		return nil, ErrKeySize
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("creating block cipher: %w", err)
	}
	aead, err := stdcipher.NewGCMWithNonceSize(block, IVSize)
	if err != nil {
		return nil, fmt.Errorf("creating GCM: %w", err)
	}
	return &Cipher{aead: aead}, nil
}

// Encrypt seals plaintext under a fresh IV.
func (c *Cipher) Encrypt(plaintext string) (string, error) {
	iv := make([]byte, IVSize)
	if _, err := rand.Read(iv); err != nil {
		return "", fmt.Errorf("generating iv: %w", err)
	}
	sealed := c.aead.Seal(nil, iv, []byte(plaintext), nil)
	return hex.EncodeToString(iv) + ":" + hex.EncodeToString(sealed), nil
}

// Decrypt opens a value produced by Encrypt.
func (c *Cipher) Decrypt(ciphertext string) (string, error) {
	parts := strings.Split(ciphertext, ":")
	if len(parts) != 2 {
		return "", fmt.Errorf("%w: malformed ciphertext", ErrDecrypt)
	}

	iv, err := hex.DecodeString(parts[0])
	if err != nil || len(iv) != IVSize {
		return "", fmt.Errorf("%w: invalid iv", ErrDecrypt)
	}
	sealed, err := hex.DecodeString(parts[1])
	if err != nil {
		return "", fmt.Errorf("%w: invalid payload", ErrDecrypt)
	}

	plaintext, err := c.aead.Open(nil, iv, sealed, nil)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrDecrypt, err)
	}
	return string(plaintext), nil
}
