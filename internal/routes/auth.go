package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/carworth/carworth/internal/auth"
	"github.com/carworth/carworth/internal/middleware"
)

// RegisterAuthRoutes wires authentication endpoints. Signup and signin
// are public; whoami requires a resolved identity.
func RegisterAuthRoutes(r fiber.Router, h *auth.Handler, rateLimiter fiber.Handler) {
	group := r.Group("/auth")
	group.Post("/signup", h.Signup)
	if rateLimiter != nil {
		group.Post("/signin", rateLimiter, h.Signin)
	} else {
		group.Post("/signin", h.Signin)
	}
	group.Post("/signout", h.Signout)
	group.Get("/whoami", middleware.RequireUser(), h.WhoAmI)
}
