package credential

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"
)

func TestHashVerifyRoundTrip(t *testing.T) {
	h := NewHasher()
	ctx := context.Background()

	stored, err := h.Hash(ctx, "hunter2")
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	if strings.Contains(stored, "hunter2") {
		t.Fatalf("credential contains plaintext: %q", stored)
	}

	ok, err := h.Verify(ctx, "hunter2", stored)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if !ok {
		t.Fatal("expected matching password to verify")
	}

	ok, err = h.Verify(ctx, "hunter3", stored)
	if err != nil {
		t.Fatalf("verify mismatch: %v", err)
	}
	if ok {
		t.Fatal("expected wrong password to fail verification")
	}
}

func TestHashUsesFreshSalt(t *testing.T) {
	h := NewHasher()
	ctx := context.Background()

	first, err := h.Hash(ctx, "same-password")
	if err != nil {
		t.Fatalf("first hash: %v", err)
	}
	second, err := h.Hash(ctx, "same-password")
	if err != nil {
		t.Fatalf("second hash: %v", err)
	}
	if first == second {
		t.Fatal("expected distinct credentials for identical plaintexts")
	}
}

func TestHashDeterministicWithFixedSalt(t *testing.T) {
	salt := []byte{1, 2, 3, 4, 5, 6, 7, 8}
	h := NewHasherWithSalt(salt)
	ctx := context.Background()

	first, err := h.Hash(ctx, "pw")
	if err != nil {
		t.Fatalf("first hash: %v", err)
	}
	second, err := h.Hash(ctx, "pw")
	if err != nil {
		t.Fatalf("second hash: %v", err)
	}
	if first != second {
		t.Fatalf("expected identical credentials with a fixed salt, got %q and %q", first, second)
	}
	if !strings.HasPrefix(first, "0102030405060708"+separator) {
		t.Fatalf("expected credential to begin with the hex salt, got %q", first)
	}
}

func TestVerifyCorruptCredential(t *testing.T) {
	h := NewHasher()
	ctx := context.Background()

	cases := []string{
		"",
		"nodigest",
		"deadbeef.",
		".deadbeef",
		"a.b.c",
		"not-hex.deadbeef",
	}
	for _, stored := range cases {
		if _, err := h.Verify(ctx, "pw", stored); !errors.Is(err, ErrCorruptCredential) {
			t.Fatalf("stored %q: expected ErrCorruptCredential, got %v", stored, err)
		}
	}
}

func TestVerifyHonorsContextDeadline(t *testing.T) {
	h := NewHasher()
	stored, err := h.Hash(context.Background(), "pw")
	if err != nil {
		t.Fatalf("hash: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Nanosecond)
	defer cancel()

	if _, err := h.Verify(ctx, "pw", stored); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline error, got %v", err)
	}
}
