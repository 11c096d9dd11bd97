package report

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gofiber/fiber/v2"

	"github.com/carworth/carworth/internal/middleware"
)

// Handler exposes report submission, approval, and estimate endpoints.
// All routes are guarded; handlers assume a resolved identity.
type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

type createRequest struct {
	Price   int64   `json:"price"`
	Make    string  `json:"make"`
	Model   string  `json:"model"`
	Year    int     `json:"year"`
	Lng     float64 `json:"lng"`
	Lat     float64 `json:"lat"`
	Mileage int     `json:"mileage"`
}

type approveRequest struct {
	Approved bool `json:"approved"`
}

type reportResponse struct {
	ID       string  `json:"id"`
	Price    int64   `json:"price"`
	Make     string  `json:"make"`
	Model    string  `json:"model"`
	Year     int     `json:"year"`
	Lng      float64 `json:"lng"`
	Lat      float64 `json:"lat"`
	Mileage  int     `json:"mileage"`
	Approved bool    `json:"approved"`
	UserID   string  `json:"user_id"`
}

func toResponse(rep Report) reportResponse {
	return reportResponse{
		ID:       rep.ID,
		Price:    rep.Price,
		Make:     rep.Make,
		Model:    rep.Model,
		Year:     rep.Year,
		Lng:      rep.Lng,
		Lat:      rep.Lat,
		Mileage:  rep.Mileage,
		Approved: rep.Approved,
		UserID:   rep.UserID,
	}
}

// Create submits a sale report owned by the current user.
func (h *Handler) Create(c *fiber.Ctx) error {
	var req createRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	owner, ok := middleware.UserFromCtx(c)
	if !ok {
		return fiber.NewError(http.StatusUnauthorized, "unauthorized")
	}

	rep, err := h.svc.Create(c.UserContext(), CreateInput{
		Price:   req.Price,
		Make:    req.Make,
		Model:   req.Model,
		Year:    req.Year,
		Lng:     req.Lng,
		Lat:     req.Lat,
		Mileage: req.Mileage,
	}, owner)
	if errors.Is(err, ErrInvalidReport) {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	if err != nil {
		return fiber.NewError(http.StatusInternalServerError, "create report failed")
	}
	return c.Status(http.StatusCreated).JSON(toResponse(rep))
}

// Approve sets a report's approval flag.
func (h *Handler) Approve(c *fiber.Ctx) error {
	var req approveRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	rep, err := h.svc.SetApproval(c.UserContext(), c.Params("id"), req.Approved)
	if errors.Is(err, ErrNotFound) {
		return fiber.NewError(http.StatusNotFound, "report not found")
	}
	if err != nil {
		return fiber.NewError(http.StatusInternalServerError, "approve report failed")
	}
	return c.Status(http.StatusOK).JSON(toResponse(rep))
}

// GetEstimate prices a car described by query parameters.
func (h *Handler) GetEstimate(c *fiber.Ctx) error {
	q := EstimateQuery{
		Make:  c.Query("make"),
		Model: c.Query("model"),
	}
	var err error
	if q.Year, err = strconv.Atoi(c.Query("year", "0")); err != nil {
		return fiber.NewError(http.StatusBadRequest, "invalid year")
	}
	if q.Mileage, err = strconv.Atoi(c.Query("mileage", "0")); err != nil {
		return fiber.NewError(http.StatusBadRequest, "invalid mileage")
	}
	if q.Lng, err = strconv.ParseFloat(c.Query("lng", "0"), 64); err != nil {
		return fiber.NewError(http.StatusBadRequest, "invalid lng")
	}
	if q.Lat, err = strconv.ParseFloat(c.Query("lat", "0"), 64); err != nil {
		return fiber.NewError(http.StatusBadRequest, "invalid lat")
	}

	est, err := h.svc.Estimate(c.UserContext(), q)
	if errors.Is(err, ErrInvalidReport) {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	if err != nil {
		return fiber.NewError(http.StatusInternalServerError, "estimate failed")
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{"price": est.Price, "samples": est.Samples})
}
