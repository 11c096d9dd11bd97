// Package credential implements salted scrypt password hashing and
// constant-time verification of stored credentials.
package credential

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/scrypt"
)

// Stored credentials have the form "<hex salt><sep><hex digest>". The
// separator sits outside the hex alphabet so splitting is unambiguous.
const (
	separator = "."
	saltLen   = 8  // random bytes per credential
	keyLen    = 32 // derived key length in bytes

	scryptN = 32768
	scryptR = 8
	scryptP = 1
)

// ErrCorruptCredential reports a stored credential that does not parse
// into a salt and digest. It is a data-corruption condition, distinct
// from an ordinary password mismatch.
var ErrCorruptCredential = errors.New("corrupt stored credential")

// Hasher derives and verifies password credentials.
type Hasher struct {
	// saltSource overrides random salt generation. Tests use it to make
	// Hash deterministic; production construction leaves it nil.
	saltSource func() ([]byte, error)
}

// NewHasher returns a Hasher that salts each credential from crypto/rand.
func NewHasher() *Hasher {
	return &Hasher{}
}

// NewHasherWithSalt returns a Hasher that derives every credential from
// the fixed salt. Only useful in tests.
func NewHasherWithSalt(salt []byte) *Hasher {
	fixed := make([]byte, len(salt))
	copy(fixed, salt)
	return &Hasher{saltSource: func() ([]byte, error) { return fixed, nil }}
}

// Hash derives a fresh credential string for the plaintext. Each call
// uses a new random salt, so hashing the same plaintext twice yields
// different credentials.
func (h *Hasher) Hash(ctx context.Context, plaintext string) (string, error) {
	salt, err := h.newSalt()
	if err != nil {
		return "", fmt.Errorf("generate salt: %w", err)
	}
	digest, err := deriveKey(ctx, plaintext, salt)
	if err != nil {
		return "", err
	}
	return hex.EncodeToString(salt) + separator + hex.EncodeToString(digest), nil
}

// Verify re-derives the digest from the plaintext and the stored salt and
// compares it to the stored digest in constant time. A malformed stored
// credential returns ErrCorruptCredential; a clean mismatch is (false, nil).
func (h *Hasher) Verify(ctx context.Context, plaintext, stored string) (bool, error) {
	salt, want, err := splitCredential(stored)
	if err != nil {
		return false, err
	}
	got, err := deriveKey(ctx, plaintext, salt)
	if err != nil {
		return false, err
	}
	return subtle.ConstantTimeCompare(got, want) == 1, nil
}

func (h *Hasher) newSalt() ([]byte, error) {
	if h.saltSource != nil {
		return h.saltSource()
	}
	salt := make([]byte, saltLen)
	if _, err := rand.Read(salt); err != nil {
		return nil, err
	}
	return salt, nil
}

func splitCredential(stored string) (salt, digest []byte, err error) {
	parts := strings.Split(stored, separator)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return nil, nil, ErrCorruptCredential
	}
	salt, err = hex.DecodeString(parts[0])
	if err != nil {
		return nil, nil, ErrCorruptCredential
	}
	digest, err = hex.DecodeString(parts[1])
	if err != nil {
		return nil, nil, ErrCorruptCredential
	}
	return salt, digest, nil
}

// deriveKey runs scrypt off the calling goroutine so a context deadline
// bounds the wait. The KDF itself is not interruptible; on timeout the
// result is discarded when the worker finishes.
func deriveKey(ctx context.Context, plaintext string, salt []byte) ([]byte, error) {
	type result struct {
		key []byte
		err error
	}
	ch := make(chan result, 1)
	go func() {
		key, err := scrypt.Key([]byte(plaintext), salt, scryptN, scryptR, scryptP, keyLen)
		ch <- result{key: key, err: err}
	}()
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("derive key: %w", ctx.Err())
	case res := <-ch:
		if res.err != nil {
			return nil, fmt.Errorf("derive key: %w", res.err)
		}
		return res.key, nil
	}
}
