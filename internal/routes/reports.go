package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/carworth/carworth/internal/middleware"
	"github.com/carworth/carworth/internal/report"
)

// RegisterReportRoutes wires the report endpoints. Every route requires
// a signed-in user.
func RegisterReportRoutes(r fiber.Router, h *report.Handler) {
	group := r.Group("/reports", middleware.RequireUser())
	group.Post("/", h.Create)
	group.Patch("/:id", h.Approve)
	group.Get("/", h.GetEstimate)
}
