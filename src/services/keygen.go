package services

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/nirman-dev/llm-keys/src/models"
	"golang.org/x/crypto/blake2b"
)

const (
	keyRandomBytes = 24
	keyHexLength   = 32 // 128 bits of the digest
	previewMask    = "****"
	previewMinLen  = 8
)

// GenerateKey returns a fresh secret in the nk_<32 hex> format
func GenerateKey() (string, error) {
	raw := make([]byte, keyRandomBytes)
	if _, err := rand.Read(raw); err != nil {
		return "", fmt.Errorf("failed to generate key: %w", err)
	}
	sum := sha256.Sum256(raw)
	return models.KeyPrefix + hex.EncodeToString(sum[:])[:keyHexLength], nil
}

// KeyPreview renders a display-safe form: the prefix, a fixed mask, and the last 4 characters
func KeyPreview(secret string) string {
	if len(secret) < previewMinLen {
		return models.KeyPrefix + previewMask
	}
	return secret[:len(models.KeyPrefix)] + previewMask + secret[len(secret)-4:]
}

// KeyFingerprint is the lookup digest stored next to a secret
func KeyFingerprint(secret string) string {
	sum := blake2b.Sum256([]byte(secret))
	return hex.EncodeToString(sum[:])
}
