package session

import (
	"strings"
	"testing"
)

func TestNewOpaqueToken(t *testing.T) {
	plain, hash, err := newOpaqueToken(32)
	if err != nil {
		t.Fatalf("newOpaqueToken: %v", err)
	}
	if plain == "" {
		t.Fatalf("empty token")
	}
	if strings.ContainsAny(plain, "+/=") {
		t.Fatalf("token must be URL-safe without padding: %q", plain)
	}
	if len(hash) != 64 {
		t.Fatalf("expected 64 hex chars, got %d", len(hash))
	}
	if hashSessionTokenHex(plain) != hash {
		t.Fatalf("hash mismatch for issued token")
	}
}

func TestNewOpaqueToken_Unique(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		plain, _, err := newOpaqueToken(32)
		if err != nil {
			t.Fatalf("newOpaqueToken: %v", err)
		}
		if seen[plain] {
			t.Fatalf("duplicate token at iteration %d", i)
		}
		seen[plain] = true
	}
}
