package service

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
)

// KeyPrefix marks plaintext API keys so they are recognisable in headers
// and secret scanners.
const KeyPrefix = "tp_"

// keyDisplayLen is the number of leading characters kept for display:
// the prefix plus eight hex characters.
const keyDisplayLen = len(KeyPrefix) + 8

// GenerateAPIKey returns a new plaintext key: KeyPrefix followed by 32 bytes
// from crypto/rand, hex encoded.
func GenerateAPIKey() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate api key: %w", err)
	}
	return KeyPrefix + hex.EncodeToString(b), nil
}

// HashAPIKey returns the hex-encoded SHA-256 digest of a plaintext key.
// Only this value is stored.
func HashAPIKey(key string) string {
	h := sha256.Sum256([]byte(key))
	return hex.EncodeToString(h[:])
}

// DisplayPrefix returns the non-secret leading part of a key used to tell
// keys apart in listings.
func DisplayPrefix(key string) string {
	if len(key) <= keyDisplayLen {
		return key
	}
	return key[:keyDisplayLen]
}

// LooksLikeAPIKey reports whether token carries the API key prefix. It is
// used to tell API keys apart from session tokens in a Bearer header.
func LooksLikeAPIKey(token string) bool {
	return strings.HasPrefix(token, KeyPrefix)
}
