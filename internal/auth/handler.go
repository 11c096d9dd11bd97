package auth

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/carworth/carworth/internal/middleware"
	"github.com/carworth/carworth/internal/session"
	"github.com/carworth/carworth/internal/user"
)

// Handler exposes signup/signin/signout/whoami endpoints.
type Handler struct {
	svc      *Service
	sessions *session.Store
	logger   *slog.Logger
}

func NewHandler(svc *Service, sessions *session.Store, logger *slog.Logger) *Handler {
	return &Handler{svc: svc, sessions: sessions, logger: logger}
}

type credentialsRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// userResponse is the public projection of a user. The stored credential
// is never serialized.
type userResponse struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

func toResponse(u user.User) userResponse {
	return userResponse{ID: u.ID, Email: u.Email}
}

// Signup registers a new account. It does not start a session; clients
// sign in afterwards.
func (h *Handler) Signup(c *fiber.Ctx) error {
	var req credentialsRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	if req.Email == "" || req.Password == "" {
		return fiber.NewError(http.StatusBadRequest, "email and password are required")
	}

	u, err := h.svc.Signup(c.UserContext(), req.Email, req.Password)
	if errors.Is(err, ErrEmailInUse) {
		return fiber.NewError(http.StatusBadRequest, "email in use")
	}
	if err != nil {
		h.logger.Error("signup failed", "error", err)
		return fiber.NewError(http.StatusInternalServerError, "signup failed")
	}
	return c.Status(http.StatusCreated).JSON(toResponse(u))
}

// Signin verifies credentials and binds the session to the user.
func (h *Handler) Signin(c *fiber.Ctx) error {
	var req credentialsRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}

	u, err := h.svc.Signin(c.UserContext(), req.Email, req.Password)
	switch {
	case errors.Is(err, ErrUserNotFound):
		return fiber.NewError(http.StatusNotFound, "user not found")
	case errors.Is(err, ErrInvalidCredentials):
		return fiber.NewError(http.StatusBadRequest, "invalid credentials")
	case err != nil:
		// Covers corrupt stored credentials; operators get the detail,
		// the client only learns that access was denied.
		h.logger.Error("signin failed", "email", NormalizeEmail(req.Email), "error", err)
		return fiber.NewError(http.StatusInternalServerError, "signin failed")
	}

	if err := h.sessions.Set(c.UserContext(), c, u.ID); err != nil {
		h.logger.Error("bind session", "error", err)
		return fiber.NewError(http.StatusInternalServerError, "signin failed")
	}
	return c.Status(http.StatusOK).JSON(toResponse(u))
}

// Signout clears the current session.
func (h *Handler) Signout(c *fiber.Ctx) error {
	if err := h.sessions.Clear(c.UserContext(), c); err != nil {
		h.logger.Error("clear session", "error", err)
		return fiber.NewError(http.StatusInternalServerError, "signout failed")
	}
	return c.SendStatus(http.StatusOK)
}

// WhoAmI returns the identity resolved for this request. The route is
// guarded, so a missing identity here is a pipeline bug.
func (h *Handler) WhoAmI(c *fiber.Ctx) error {
	u, ok := middleware.UserFromCtx(c)
	if !ok {
		return fiber.NewError(http.StatusUnauthorized, "unauthorized")
	}
	return c.Status(http.StatusOK).JSON(toResponse(u))
}
