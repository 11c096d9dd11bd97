// Package session implements the server-side cookie session backing the
// authentication core. The cookie carries an opaque random token plus an
// HMAC tag; the only session field, the authenticated user's id, lives
// in Redis under the token and expires on idle.
package session

import (
	"context"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
)

const (
	// CookieName is the session cookie issued to clients.
	CookieName = "sid"

	keyPrefix = "session:v1:"
	tokenLen  = 32
)

// Store reads and writes the per-client session. Sessions are only
// created on successful signin, so anonymous traffic never persists
// anything.
type Store struct {
	cache  *redis.Client
	secret []byte
	ttl    time.Duration
}

// NewStore builds a Redis-backed session store. secret keys the cookie
// HMAC; ttl is the idle expiry applied to every session key.
func NewStore(cache *redis.Client, secret string, ttl time.Duration) *Store {
	return &Store{cache: cache, secret: []byte(secret), ttl: ttl}
}

// Get returns the user id bound to the request's session. A missing,
// tampered, or expired cookie is the anonymous case, reported as
// ("", false, nil) rather than an error. Reading a live session renews
// its idle expiry.
func (s *Store) Get(ctx context.Context, c *fiber.Ctx) (string, bool, error) {
	token, ok := s.validToken(c.Cookies(CookieName))
	if !ok {
		return "", false, nil
	}

	userID, err := s.cache.Get(ctx, keyPrefix+token).Result()
	if err == redis.Nil {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("read session: %w", err)
	}

	// Best effort: a failed renewal only shortens the session.
	s.cache.Expire(ctx, keyPrefix+token, s.ttl)

	return userID, true, nil
}

// Set binds userID to a fresh session and issues the cookie. Any session
// presented on the request is destroyed first, so signin always rotates
// the token and a pre-signin cookie can never be promoted to an
// authenticated one.
func (s *Store) Set(ctx context.Context, c *fiber.Ctx, userID string) error {
	if old, ok := s.validToken(c.Cookies(CookieName)); ok {
		if err := s.cache.Del(ctx, keyPrefix+old).Err(); err != nil {
			return fmt.Errorf("drop previous session: %w", err)
		}
	}

	raw := make([]byte, tokenLen)
	if _, err := rand.Read(raw); err != nil {
		return fmt.Errorf("generate session token: %w", err)
	}
	token := base64.RawURLEncoding.EncodeToString(raw)

	if err := s.cache.Set(ctx, keyPrefix+token, userID, s.ttl).Err(); err != nil {
		return fmt.Errorf("write session: %w", err)
	}

	c.Cookie(&fiber.Cookie{
		Name:     CookieName,
		Value:    token + "." + s.sign(token),
		HTTPOnly: true,
		SameSite: fiber.CookieSameSiteLaxMode,
		MaxAge:   int(s.ttl.Seconds()),
	})
	return nil
}

// Clear destroys the request's session and expires the cookie.
func (s *Store) Clear(ctx context.Context, c *fiber.Ctx) error {
	if token, ok := s.validToken(c.Cookies(CookieName)); ok {
		if err := s.cache.Del(ctx, keyPrefix+token).Err(); err != nil {
			return fmt.Errorf("delete session: %w", err)
		}
	}
	c.Cookie(&fiber.Cookie{
		Name:     CookieName,
		Value:    "",
		HTTPOnly: true,
		SameSite: fiber.CookieSameSiteLaxMode,
		MaxAge:   -1,
	})
	return nil
}

// validToken checks the cookie's HMAC tag and returns the bare token. A
// forged or mangled cookie fails here, before any Redis round trip.
func (s *Store) validToken(cookie string) (string, bool) {
	if cookie == "" {
		return "", false
	}
	token, tag, found := strings.Cut(cookie, ".")
	if !found || token == "" {
		return "", false
	}
	want, err := hex.DecodeString(tag)
	if err != nil {
		return "", false
	}
	mac := hmac.New(sha256.New, s.secret)
	mac.Write([]byte(token))
	if !hmac.Equal(want, mac.Sum(nil)) {
		return "", false
	}
	return token, true
}

func (s *Store) sign(token string) string {
	mac := hmac.New(sha256.New, s.secret)
	mac.Write([]byte(token))
	return hex.EncodeToString(mac.Sum(nil))
}
