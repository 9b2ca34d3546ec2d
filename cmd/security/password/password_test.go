package password

import (
	"errors"
	"strings"
	"testing"
)

// Small parameters keep the test fast; production uses DefaultConfig.
func fastConfig() Config {
	cfg := DefaultConfig()
	cfg.Params.MemoryKiB = 8 * 1024
	cfg.Params.Iterations = 1
	return cfg
}

func TestHashAndVerify(t *testing.T) {
	cfg := fastConfig()

	hash, err := cfg.Hash("correct-horse-battery")
	if err != nil {
		t.Fatalf("Hash: %v", err)
	}
	if !strings.HasPrefix(hash, "$argon2id$v=19$") {
		t.Fatalf("unexpected hash format: %q", hash)
	}

	ok, err := cfg.Verify(hash, "correct-horse-battery")
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if !ok {
		t.Fatalf("expected match")
	}

	ok, err = cfg.Verify(hash, "wrong-password-here")
	if err != nil {
		t.Fatalf("Verify mismatch: %v", err)
	}
	if ok {
		t.Fatalf("expected mismatch")
	}
}

func TestHash_SaltsDiffer(t *testing.T) {
	cfg := fastConfig()

	h1, err := cfg.Hash("same-password-1")
	if err != nil {
		t.Fatalf("Hash: %v", err)
	}
	h2, err := cfg.Hash("same-password-1")
	if err != nil {
		t.Fatalf("Hash: %v", err)
	}
	if h1 == h2 {
		t.Fatalf("two hashes of the same password must differ by salt")
	}
}

func TestHash_PolicyBounds(t *testing.T) {
	cfg := fastConfig()

	if _, err := cfg.Hash("short"); !errors.Is(err, ErrPasswordTooShort) {
		t.Fatalf("expected ErrPasswordTooShort, got %v", err)
	}

	long := strings.Repeat("x", cfg.Policy.MaxLength+1)
	if _, err := cfg.Hash(long); !errors.Is(err, ErrPasswordTooLong) {
		t.Fatalf("expected ErrPasswordTooLong, got %v", err)
	}
}

func TestVerify_MalformedHash(t *testing.T) {
	cfg := fastConfig()

	for _, bad := range []string{
		"",
		"plaintext",
		"$argon2i$v=19$m=8192,t=1,p=1$c2FsdHNhbHQ$aGFzaGhhc2hoYXNoaGFzaA",
		"$argon2id$v=18$m=8192,t=1,p=1$c2FsdHNhbHQ$aGFzaGhhc2hoYXNoaGFzaA",
		"$argon2id$v=19$m=0,t=1,p=1$c2FsdHNhbHQ$aGFzaGhhc2hoYXNoaGFzaA",
		"$argon2id$v=19$m=8192,t=1,p=1$!!!$aGFzaGhhc2hoYXNoaGFzaA",
	} {
		if _, err := cfg.Verify(bad, "whatever-pass"); !errors.Is(err, ErrInvalidHash) {
			t.Fatalf("hash %q: expected ErrInvalidHash, got %v", bad, err)
		}
	}
}

func TestVerify_RejectsOversizedParams(t *testing.T) {
	cfg := fastConfig()

	// A hash demanding far more memory than our ceiling is refused, not run.
	big := Config{Params: Argon2idParams{
		MemoryKiB:   cfg.Params.MemoryKiB * 8,
		Iterations:  1,
		Parallelism: 1,
		SaltLength:  16,
		KeyLength:   32,
	}, Policy: cfg.Policy}

	hash, err := big.Hash("some-password-1")
	if err != nil {
		t.Fatalf("Hash: %v", err)
	}

	if _, err := cfg.Verify(hash, "some-password-1"); !errors.Is(err, ErrInvalidHash) {
		t.Fatalf("expected ErrInvalidHash for oversized params, got %v", err)
	}
}
