package config

import (
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strings"

	"golang.org/x/crypto/hkdf"
)

// ErrInvalidEncryptionKey is returned when CRYPTO_KEY cannot be decoded or is too short.
var ErrInvalidEncryptionKey = errors.New("invalid CRYPTO_KEY")

const (
	minKeyMaterial = 32
	keySize        = 32
	keyInfo        = "johnnycage credential store v1"
)

// DeriveKey turns the base64 CRYPTO_KEY value into a 32-byte AES-256 key using
// HKDF-SHA256. Both the standard and the URL-safe alphabet are accepted, padded
// or not, so existing Fernet keys keep working as key material.
func DeriveKey(raw string) ([]byte, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, ErrEncryptionKeyMissing
	}

	material, err := decodeKeyMaterial(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidEncryptionKey, err)
	}
	if len(material) < minKeyMaterial {
		return nil, fmt.Errorf("%w: need at least %d decoded bytes, got %d", ErrInvalidEncryptionKey, minKeyMaterial, len(material))
	}

	key := make([]byte, keySize)
	if _, err := io.ReadFull(hkdf.New(sha256.New, material, nil, []byte(keyInfo)), key); err != nil {
		return nil, fmt.Errorf("derive key: %w", err)
	}
	return key, nil
}

func decodeKeyMaterial(s string) ([]byte, error) {
	encodings := []*base64.Encoding{
		base64.URLEncoding,
		base64.StdEncoding,
		base64.RawURLEncoding,
		base64.RawStdEncoding,
	}

	var firstErr error
	for _, enc := range encodings {
		b, err := enc.DecodeString(s)
		if err == nil {
			return b, nil
		}
		if firstErr == nil {
			firstErr = err
		}
	}
	return nil, fmt.Errorf("base64 decode: %w", firstErr)
}
