package session

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
)

func setupStore(t *testing.T) (*fiber.App, *Store, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("start miniredis: %v", err)
	}
	t.Cleanup(mr.Close)

	cache := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { cache.Close() })

	store := NewStore(cache, "test-secret", time.Hour)

	app := fiber.New()
	app.Post("/login", func(c *fiber.Ctx) error {
		if err := store.Set(c.UserContext(), c, "user-1"); err != nil {
			return err
		}
		return c.SendStatus(http.StatusOK)
	})
	app.Post("/logout", func(c *fiber.Ctx) error {
		if err := store.Clear(c.UserContext(), c); err != nil {
			return err
		}
		return c.SendStatus(http.StatusOK)
	})
	app.Get("/who", func(c *fiber.Ctx) error {
		userID, ok, err := store.Get(c.UserContext(), c)
		if err != nil {
			return err
		}
		if !ok {
			return c.Status(http.StatusOK).SendString("anonymous")
		}
		return c.Status(http.StatusOK).SendString(userID)
	})

	return app, store, mr
}

func sessionCookie(t *testing.T, resp *http.Response) *http.Cookie {
	t.Helper()
	for _, ck := range resp.Cookies() {
		if ck.Name == CookieName {
			return ck
		}
	}
	return nil
}

func bodyString(t *testing.T, app *fiber.App, req *http.Request) string {
	t.Helper()
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	defer resp.Body.Close()
	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return string(payload)
}

func TestSetThenGet(t *testing.T) {
	app, _, _ := setupStore(t)

	resp, err := app.Test(httptest.NewRequest(fiber.MethodPost, "/login", nil))
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	ck := sessionCookie(t, resp)
	if ck == nil {
		t.Fatal("expected a session cookie on login")
	}

	req := httptest.NewRequest(fiber.MethodGet, "/who", nil)
	req.AddCookie(ck)
	if got := bodyString(t, app, req); got != "user-1" {
		t.Fatalf("expected user-1, got %q", got)
	}
}

func TestMissingCookieIsAnonymous(t *testing.T) {
	app, _, _ := setupStore(t)

	req := httptest.NewRequest(fiber.MethodGet, "/who", nil)
	if got := bodyString(t, app, req); got != "anonymous" {
		t.Fatalf("expected anonymous, got %q", got)
	}
}

func TestTamperedCookieIsAnonymous(t *testing.T) {
	app, _, _ := setupStore(t)

	resp, err := app.Test(httptest.NewRequest(fiber.MethodPost, "/login", nil))
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	ck := sessionCookie(t, resp)
	if ck == nil {
		t.Fatal("expected a session cookie on login")
	}

	// Flip the token while keeping the signature.
	ck.Value = "x" + ck.Value
	req := httptest.NewRequest(fiber.MethodGet, "/who", nil)
	req.AddCookie(ck)
	if got := bodyString(t, app, req); got != "anonymous" {
		t.Fatalf("expected tampered cookie to be anonymous, got %q", got)
	}
}

func TestExpiredSessionIsAnonymous(t *testing.T) {
	app, _, mr := setupStore(t)

	resp, err := app.Test(httptest.NewRequest(fiber.MethodPost, "/login", nil))
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	ck := sessionCookie(t, resp)

	mr.FastForward(2 * time.Hour)

	req := httptest.NewRequest(fiber.MethodGet, "/who", nil)
	req.AddCookie(ck)
	if got := bodyString(t, app, req); got != "anonymous" {
		t.Fatalf("expected expired session to be anonymous, got %q", got)
	}
}

func TestSigninRotatesToken(t *testing.T) {
	app, _, mr := setupStore(t)

	resp, err := app.Test(httptest.NewRequest(fiber.MethodPost, "/login", nil))
	if err != nil {
		t.Fatalf("first login: %v", err)
	}
	first := sessionCookie(t, resp)

	req := httptest.NewRequest(fiber.MethodPost, "/login", nil)
	req.AddCookie(first)
	resp, err = app.Test(req)
	if err != nil {
		t.Fatalf("second login: %v", err)
	}
	second := sessionCookie(t, resp)

	if first.Value == second.Value {
		t.Fatal("expected signin to rotate the session token")
	}
	if got := mr.Keys(); len(got) != 1 {
		t.Fatalf("expected the previous session to be destroyed, found keys %v", got)
	}
}

func TestClearDestroysSession(t *testing.T) {
	app, _, mr := setupStore(t)

	resp, err := app.Test(httptest.NewRequest(fiber.MethodPost, "/login", nil))
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	ck := sessionCookie(t, resp)

	req := httptest.NewRequest(fiber.MethodPost, "/logout", nil)
	req.AddCookie(ck)
	if _, err := app.Test(req); err != nil {
		t.Fatalf("logout: %v", err)
	}
	if got := mr.Keys(); len(got) != 0 {
		t.Fatalf("expected no session keys after clear, found %v", got)
	}

	req = httptest.NewRequest(fiber.MethodGet, "/who", nil)
	req.AddCookie(ck)
	if got := bodyString(t, app, req); got != "anonymous" {
		t.Fatalf("expected anonymous after clear, got %q", got)
	}
}
