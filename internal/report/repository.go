package report

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrNotFound indicates no report matches the lookup.
var ErrNotFound = errors.New("report not found")

// Estimates average the prices of the closest comparable sales.
const (
	estimateSamples   = 3
	estimateGeoRange  = 5.0 // degrees of longitude/latitude
	estimateYearRange = 3
)

// Repository persists sale reports.
type Repository interface {
	Create(ctx context.Context, r Report) error
	FindByID(ctx context.Context, id string) (Report, error)
	SetApproval(ctx context.Context, id string, approved bool) error
	Estimate(ctx context.Context, q EstimateQuery) (Estimate, error)
}

// PostgresRepository implements Repository using PostgreSQL.
type PostgresRepository struct {
	db *pgxpool.Pool
}

// NewPostgresRepository builds a Postgres-backed report repository.
func NewPostgresRepository(db *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Create inserts a new report.
func (r *PostgresRepository) Create(ctx context.Context, rep Report) error {
	reportID, err := uuid.Parse(rep.ID)
	if err != nil {
		return fmt.Errorf("parse report id: %w", err)
	}
	userID, err := uuid.Parse(rep.UserID)
	if err != nil {
		return fmt.Errorf("parse user id: %w", err)
	}
	_, err = r.db.Exec(ctx, `INSERT INTO reports (id, user_id, price, make, model, year, lng, lat, mileage, approved, created_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		reportID, userID, rep.Price, rep.Make, rep.Model, rep.Year, rep.Lng, rep.Lat, rep.Mileage, rep.Approved, rep.CreatedAt.UTC())
	return err
}

// FindByID fetches a report by primary key.
func (r *PostgresRepository) FindByID(ctx context.Context, id string) (Report, error) {
	reportID, err := uuid.Parse(id)
	if err != nil {
		return Report{}, ErrNotFound
	}
	row := r.db.QueryRow(ctx, `SELECT id, user_id, price, make, model, year, lng, lat, mileage, approved, created_at
        FROM reports WHERE id = $1`, reportID)

	var (
		rid, uid  uuid.UUID
		createdAt time.Time
		rep       Report
	)
	err = row.Scan(&rid, &uid, &rep.Price, &rep.Make, &rep.Model, &rep.Year, &rep.Lng, &rep.Lat, &rep.Mileage, &rep.Approved, &createdAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Report{}, ErrNotFound
	}
	if err != nil {
		return Report{}, err
	}
	rep.ID = rid.String()
	rep.UserID = uid.String()
	rep.CreatedAt = createdAt.UTC()
	return rep, nil
}

// SetApproval flips a report's approval flag.
func (r *PostgresRepository) SetApproval(ctx context.Context, id string, approved bool) error {
	reportID, err := uuid.Parse(id)
	if err != nil {
		return ErrNotFound
	}
	cmd, err := r.db.Exec(ctx, `UPDATE reports SET approved = $1 WHERE id = $2`, approved, reportID)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// Estimate averages the prices of the approved reports for the same
// make and model within ±5 degrees and ±3 years, taking the three with
// the closest mileage.
func (r *PostgresRepository) Estimate(ctx context.Context, q EstimateQuery) (Estimate, error) {
	row := r.db.QueryRow(ctx, `SELECT COALESCE(AVG(price), 0), COUNT(*) FROM (
            SELECT price FROM reports
            WHERE approved
              AND make = $1 AND model = $2
              AND lng BETWEEN $3 - $8 AND $3 + $8
              AND lat BETWEEN $4 - $8 AND $4 + $8
              AND year BETWEEN $5 - $9 AND $5 + $9
            ORDER BY ABS(mileage - $6)
            LIMIT $7
        ) closest`,
		q.Make, q.Model, q.Lng, q.Lat, q.Year, q.Mileage, estimateSamples, estimateGeoRange, estimateYearRange)

	var (
		avg     float64
		samples int
	)
	if err := row.Scan(&avg, &samples); err != nil {
		return Estimate{}, err
	}
	return Estimate{Price: int64(avg), Samples: samples}, nil
}
