package middleware

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/carworth/carworth/internal/session"
	"github.com/carworth/carworth/internal/user"
)

// Locals keys for the per-request resolved identity. resolvedKey marks
// that CurrentUser ran at all, so RequireUser can detect a misordered
// pipeline instead of silently rejecting everything.
const (
	currentUserKey = "current_user"
	resolvedKey    = "identity_resolved"
)

// CurrentUser resolves the session-carried user id into a full user
// record and attaches it to the request. Anonymous traffic (no session,
// stale session, deleted user) passes through unresolved; rejecting is
// the guard's job, not the resolver's.
func CurrentUser(store *session.Store, users user.Repository) fiber.Handler {
	return func(c *fiber.Ctx) error {
		c.Locals(resolvedKey, true)

		userID, ok, err := store.Get(c.UserContext(), c)
		if err != nil {
			return fiber.NewError(http.StatusInternalServerError, "session unavailable")
		}
		if !ok {
			return c.Next()
		}

		u, err := users.FindByID(c.UserContext(), userID)
		if err != nil {
			// Stale session: the user may have been deleted since the
			// session was issued. Treat as anonymous.
			return c.Next()
		}

		c.Locals(currentUserKey, u)
		return c.Next()
	}
}

// RequireUser rejects requests that reached a guarded route without a
// resolved identity. It must run after CurrentUser; if the resolver
// never ran the guard fails closed with a server error, since that is a
// wiring bug rather than a client fault.
func RequireUser() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if resolved, _ := c.Locals(resolvedKey).(bool); !resolved {
			return fiber.NewError(http.StatusInternalServerError, "identity resolver not configured")
		}
		if _, ok := UserFromCtx(c); !ok {
			return fiber.NewError(http.StatusUnauthorized, "unauthorized")
		}
		return c.Next()
	}
}

// UserFromCtx returns the identity resolved by CurrentUser. It never
// touches the user repository. On guarded routes the second return is
// always true; elsewhere callers must check it.
func UserFromCtx(c *fiber.Ctx) (user.User, bool) {
	u, ok := c.Locals(currentUserKey).(user.User)
	return u, ok
}
