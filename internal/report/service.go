package report

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/carworth/carworth/internal/user"
)

// ErrInvalidReport rejects a submission that fails validation.
var ErrInvalidReport = errors.New("invalid report")

// CreateInput is a report submission before ownership is attached.
type CreateInput struct {
	Price   int64
	Make    string
	Model   string
	Year    int
	Lng     float64
	Lat     float64
	Mileage int
}

// Service manages sale reports and price estimates.
type Service struct {
	repo Repository
}

// NewService creates a report service.
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// Create validates the submission and stores it bound to its owner.
// New reports start unapproved and do not influence estimates.
func (s *Service) Create(ctx context.Context, in CreateInput, owner user.User) (Report, error) {
	if err := validate(in); err != nil {
		return Report{}, err
	}
	rep := Report{
		ID:        uuid.New().String(),
		UserID:    owner.ID,
		Price:     in.Price,
		Make:      in.Make,
		Model:     in.Model,
		Year:      in.Year,
		Lng:       in.Lng,
		Lat:       in.Lat,
		Mileage:   in.Mileage,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.repo.Create(ctx, rep); err != nil {
		return Report{}, fmt.Errorf("create report: %w", err)
	}
	return rep, nil
}

// SetApproval marks a report as usable (or not) for estimates.
func (s *Service) SetApproval(ctx context.Context, id string, approved bool) (Report, error) {
	if err := s.repo.SetApproval(ctx, id, approved); err != nil {
		return Report{}, err
	}
	return s.repo.FindByID(ctx, id)
}

// Estimate prices a car from approved comparable sales.
func (s *Service) Estimate(ctx context.Context, q EstimateQuery) (Estimate, error) {
	if q.Make == "" || q.Model == "" {
		return Estimate{}, fmt.Errorf("%w: make and model are required", ErrInvalidReport)
	}
	if err := validateCar(q.Year, q.Lng, q.Lat, q.Mileage); err != nil {
		return Estimate{}, err
	}
	return s.repo.Estimate(ctx, q)
}

func validate(in CreateInput) error {
	if in.Make == "" || in.Model == "" {
		return fmt.Errorf("%w: make and model are required", ErrInvalidReport)
	}
	if in.Price <= 0 || in.Price > 1_000_000 {
		return fmt.Errorf("%w: price out of range", ErrInvalidReport)
	}
	return validateCar(in.Year, in.Lng, in.Lat, in.Mileage)
}

func validateCar(year int, lng, lat float64, mileage int) error {
	if year < 1930 || year > 2050 {
		return fmt.Errorf("%w: year out of range", ErrInvalidReport)
	}
	if lng < -180 || lng > 180 || lat < -90 || lat > 90 {
		return fmt.Errorf("%w: coordinates out of range", ErrInvalidReport)
	}
	if mileage < 0 || mileage > 1_000_000 {
		return fmt.Errorf("%w: mileage out of range", ErrInvalidReport)
	}
	return nil
}
