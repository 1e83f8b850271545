package services

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"io"
	"strings"
)

// encryptedPrefix marks a stored secret as AES-GCM ciphertext
const encryptedPrefix = "enc:"

// Encryptor provides AES-256-GCM encryption of key secrets at rest.
// If nil, all operations are no-ops (pass-through).
type Encryptor struct {
	gcm cipher.AEAD
}

// NewEncryptor creates an Encryptor from a hex-encoded 32-byte key.
// Returns nil if hexKey is empty (encryption disabled).
func NewEncryptor(hexKey string) (*Encryptor, error) {
	if hexKey == "" {
		return nil, nil
	}

	key, err := hex.DecodeString(hexKey)
	if err != nil {
		return nil, fmt.Errorf("invalid encryption key: not valid hex: %w", err)
	}
	if len(key) != 32 {
		return nil, fmt.Errorf("invalid encryption key: must be 32 bytes (64 hex chars), got %d bytes", len(key))
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create AES cipher: %w", err)
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM: %w", err)
	}

	return &Encryptor{gcm: gcm}, nil
}

// SealSecret returns the stored form of a secret: "enc:" + base64(nonce || ciphertext).
// If encryptor is nil, returns the secret unchanged.
func (e *Encryptor) SealSecret(secret string) (string, error) {
	if e == nil {
		return secret, nil
	}

	nonce := make([]byte, e.gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("failed to generate nonce: %w", err)
	}

	sealed := e.gcm.Seal(nonce, nonce, []byte(secret), nil)
	return encryptedPrefix + base64.StdEncoding.EncodeToString(sealed), nil
}

// OpenSecret reverses SealSecret. Values without the "enc:" prefix were
// stored before encryption was enabled and are returned as-is.
func (e *Encryptor) OpenSecret(stored string) (string, error) {
	if !strings.HasPrefix(stored, encryptedPrefix) {
		return stored, nil
	}
	if e == nil {
		return "", fmt.Errorf("secret is encrypted but no encryption key is configured")
	}

	sealed, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(stored, encryptedPrefix))
	if err != nil {
		return "", fmt.Errorf("failed to decode secret: %w", err)
	}

	nonceSize := e.gcm.NonceSize()
	if len(sealed) < nonceSize+e.gcm.Overhead() {
		return "", fmt.Errorf("encrypted secret too short")
	}

	nonce, ciphertext := sealed[:nonceSize], sealed[nonceSize:]
	plaintext, err := e.gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return "", fmt.Errorf("failed to decrypt secret: %w", err)
	}
	return string(plaintext), nil
}
