package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"

	"github.com/carworth/carworth/internal/session"
	"github.com/carworth/carworth/internal/user"
)

// countingRepository wraps a Repository and counts FindByID calls.
type countingRepository struct {
	user.Repository
	findByID atomic.Int64
}

func (r *countingRepository) FindByID(ctx context.Context, id string) (user.User, error) {
	r.findByID.Add(1)
	return r.Repository.FindByID(ctx, id)
}

type identityFixture struct {
	app     *fiber.App
	store   *session.Store
	repo    *countingRepository
	handled atomic.Int64
}

func setupIdentity(t *testing.T) *identityFixture {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("start miniredis: %v", err)
	}
	t.Cleanup(mr.Close)

	cache := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { cache.Close() })

	f := &identityFixture{
		store: session.NewStore(cache, "test-secret", time.Hour),
		repo:  &countingRepository{Repository: user.NewMemoryRepository()},
	}

	app := fiber.New()
	app.Use(CurrentUser(f.store, f.repo))

	app.Post("/login/:id", func(c *fiber.Ctx) error {
		return f.store.Set(c.UserContext(), c, c.Params("id"))
	})
	app.Get("/protected", RequireUser(), func(c *fiber.Ctx) error {
		f.handled.Add(1)
		u, _ := UserFromCtx(c)
		return c.SendString(u.ID)
	})
	app.Get("/double", func(c *fiber.Ctx) error {
		first, ok1 := UserFromCtx(c)
		second, ok2 := UserFromCtx(c)
		if ok1 != ok2 || first.ID != second.ID {
			return fiber.NewError(http.StatusInternalServerError, "accessor not stable")
		}
		return c.SendString(first.ID)
	})

	f.app = app
	return f
}

func (f *identityFixture) seedUser(t *testing.T, id string) {
	t.Helper()
	err := f.repo.Create(context.Background(), user.User{ID: id, Email: id + "@x.com", Credential: "aa.bb"})
	if err != nil {
		t.Fatalf("seed user: %v", err)
	}
}

func (f *identityFixture) login(t *testing.T, id string) *http.Cookie {
	t.Helper()
	resp, err := f.app.Test(httptest.NewRequest(fiber.MethodPost, "/login/"+id, nil))
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	for _, ck := range resp.Cookies() {
		if ck.Name == session.CookieName {
			return ck
		}
	}
	t.Fatal("no session cookie issued")
	return nil
}

func TestGuardRejectsAnonymous(t *testing.T) {
	f := setupIdentity(t)

	resp, err := f.app.Test(httptest.NewRequest(fiber.MethodGet, "/protected", nil))
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected %d, got %d", http.StatusUnauthorized, resp.StatusCode)
	}
	if f.handled.Load() != 0 {
		t.Fatal("handler ran for an anonymous request")
	}
	if f.repo.findByID.Load() != 0 {
		t.Fatal("resolver hit the directory without a session")
	}
}

func TestGuardAllowsResolvedUser(t *testing.T) {
	f := setupIdentity(t)
	f.seedUser(t, "u-1")
	ck := f.login(t, "u-1")

	req := httptest.NewRequest(fiber.MethodGet, "/protected", nil)
	req.AddCookie(ck)
	resp, err := f.app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected %d, got %d", http.StatusOK, resp.StatusCode)
	}
	if f.handled.Load() != 1 {
		t.Fatal("expected the handler to run exactly once")
	}
}

func TestStaleSessionIsAnonymous(t *testing.T) {
	f := setupIdentity(t)
	// Session points at a user the directory no longer has.
	ck := f.login(t, "gone")

	req := httptest.NewRequest(fiber.MethodGet, "/protected", nil)
	req.AddCookie(ck)
	resp, err := f.app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected %d for stale session, got %d", http.StatusUnauthorized, resp.StatusCode)
	}
}

func TestResolverReadsDirectoryOncePerRequest(t *testing.T) {
	f := setupIdentity(t)
	f.seedUser(t, "u-1")
	ck := f.login(t, "u-1")

	req := httptest.NewRequest(fiber.MethodGet, "/double", nil)
	req.AddCookie(ck)
	resp, err := f.app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected %d, got %d", http.StatusOK, resp.StatusCode)
	}
	if got := f.repo.findByID.Load(); got != 1 {
		t.Fatalf("expected one directory read, got %d", got)
	}
}

func TestGuardWithoutResolverFailsClosed(t *testing.T) {
	app := fiber.New()
	app.Get("/miswired", RequireUser(), func(c *fiber.Ctx) error {
		return c.SendString("should not run")
	})

	resp, err := app.Test(httptest.NewRequest(fiber.MethodGet, "/miswired", nil))
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	if resp.StatusCode != http.StatusInternalServerError {
		t.Fatalf("expected %d for a guard without resolver, got %d", http.StatusInternalServerError, resp.StatusCode)
	}
}
