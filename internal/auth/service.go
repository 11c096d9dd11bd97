package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/carworth/carworth/internal/credential"
	"github.com/carworth/carworth/internal/notification"
	"github.com/carworth/carworth/internal/user"
)

var (
	// ErrEmailInUse is returned when signing up with a registered email.
	ErrEmailInUse = errors.New("email in use")
	// ErrUserNotFound is returned when signing in with an unknown email.
	ErrUserNotFound = errors.New("user not found")
	// ErrInvalidCredentials is returned when the password does not match.
	ErrInvalidCredentials = errors.New("invalid credentials")
)

// Service implements signup and signin on top of the user repository and
// the credential hasher. It holds no state of its own.
type Service struct {
	users       user.Repository
	hasher      *credential.Hasher
	notifier    notification.Notifier
	hashTimeout time.Duration
}

// NewService creates an auth service. notifier may be nil. hashTimeout
// bounds each KDF call so a stuck derivation cannot pin a request
// forever; zero disables the bound.
func NewService(users user.Repository, hasher *credential.Hasher, notifier notification.Notifier, hashTimeout time.Duration) *Service {
	return &Service{users: users, hasher: hasher, notifier: notifier, hashTimeout: hashTimeout}
}

func (s *Service) hashCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.hashTimeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, s.hashTimeout)
}

// Signup registers a new user. The email pre-check avoids spending KDF
// work on an address that is already taken; the repository's uniqueness
// constraint closes the remaining check-then-create race, so a
// concurrent duplicate signup still comes back as ErrEmailInUse.
func (s *Service) Signup(ctx context.Context, email, password string) (user.User, error) {
	email = NormalizeEmail(email)

	_, err := s.users.FindByEmail(ctx, email)
	switch {
	case err == nil:
		return user.User{}, ErrEmailInUse
	case errors.Is(err, user.ErrNotFound):
		// expected: the address is free
	default:
		return user.User{}, fmt.Errorf("check email: %w", err)
	}

	hctx, cancel := s.hashCtx(ctx)
	cred, err := s.hasher.Hash(hctx, password)
	cancel()
	if err != nil {
		return user.User{}, fmt.Errorf("hash password: %w", err)
	}

	u := user.User{
		ID:         uuid.New().String(),
		Email:      email,
		Credential: cred,
		CreatedAt:  time.Now().UTC(),
	}
	if err := s.users.Create(ctx, u); err != nil {
		if errors.Is(err, user.ErrEmailTaken) {
			return user.User{}, ErrEmailInUse
		}
		return user.User{}, fmt.Errorf("create user: %w", err)
	}

	if s.notifier != nil {
		_ = s.notifier.Send(ctx, notification.Message{
			Kind:        notification.KindSignup,
			Destination: u.Email,
			Body:        "welcome to carworth",
		})
	}

	return u, nil
}

// Signin verifies the password for a registered email and returns the
// matching user. It never writes.
func (s *Service) Signin(ctx context.Context, email, password string) (user.User, error) {
	email = NormalizeEmail(email)

	u, err := s.users.FindByEmail(ctx, email)
	if errors.Is(err, user.ErrNotFound) {
		return user.User{}, ErrUserNotFound
	}
	if err != nil {
		return user.User{}, fmt.Errorf("find user: %w", err)
	}

	hctx, cancel := s.hashCtx(ctx)
	ok, err := s.hasher.Verify(hctx, password, u.Credential)
	cancel()
	if err != nil {
		// Includes credential.ErrCorruptCredential: denied and passed up
		// for the handler to log, never shown to the client.
		return user.User{}, fmt.Errorf("verify credential: %w", err)
	}
	if !ok {
		return user.User{}, ErrInvalidCredentials
	}
	return u, nil
}

// NormalizeEmail applies the email case policy: addresses compare
// case-insensitively, so they are stored and looked up lowercased.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
