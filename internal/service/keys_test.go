package service

import (
	"encoding/hex"
	"strings"
	"testing"
)

func TestGenerateAPIKey(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 50; i++ {
		key, err := GenerateAPIKey()
		if err != nil {
			t.Fatalf("GenerateAPIKey: %v", err)
		}
		if !strings.HasPrefix(key, KeyPrefix) {
			t.Fatalf("key %q missing prefix %q", key, KeyPrefix)
		}
		body := strings.TrimPrefix(key, KeyPrefix)
		if len(body) != 64 {
			t.Fatalf("got %d hex chars, want 64", len(body))
		}
		if _, err := hex.DecodeString(body); err != nil {
			t.Fatalf("key body is not hex: %v", err)
		}
		if seen[key] {
			t.Fatalf("duplicate key generated: %q", key)
		}
		seen[key] = true
	}
}

func TestHashAPIKey(t *testing.T) {
	a := HashAPIKey("tp_abc")
	if a != HashAPIKey("tp_abc") {
		t.Error("digest must be deterministic")
	}
	if a == HashAPIKey("tp_abd") {
		t.Error("different keys must produce different digests")
	}
	if len(a) != 64 {
		t.Errorf("got digest length %d, want 64", len(a))
	}
	if strings.Contains(a, "abc") {
		t.Error("digest should not contain the plaintext")
	}
	// Known SHA-256 vector.
	if got := HashAPIKey(""); got != "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855" {
		t.Errorf("got %q for empty input", got)
	}
}

func TestDisplayPrefix(t *testing.T) {
	if got := DisplayPrefix("tp_0123456789abcdef"); got != "tp_01234567" {
		t.Errorf("got %q, want %q", got, "tp_01234567")
	}
	if got := DisplayPrefix("tp_1"); got != "tp_1" {
		t.Errorf("short keys are returned whole, got %q", got)
	}
}

func TestLooksLikeAPIKey(t *testing.T) {
	if !LooksLikeAPIKey("tp_abc") {
		t.Error("prefixed token should look like an API key")
	}
	if LooksLikeAPIKey("eyJhbGciOiJIUzI1NiJ9.e30.sig") {
		t.Error("JWT should not look like an API key")
	}
}
