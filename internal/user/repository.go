package user

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	// ErrNotFound indicates no user matches the lookup.
	ErrNotFound = errors.New("user not found")
	// ErrEmailTaken indicates an insert collided with an existing email.
	ErrEmailTaken = errors.New("email already registered")
	// ErrDuplicateEmail indicates the store holds more than one user for
	// an email. The unique index makes this unreachable; it exists so a
	// violated invariant surfaces instead of silently picking a row.
	ErrDuplicateEmail = errors.New("multiple users share one email")
)

// Repository persists users.
type Repository interface {
	Create(ctx context.Context, u User) error
	FindByEmail(ctx context.Context, email string) (User, error)
	FindByID(ctx context.Context, id string) (User, error)
}

// PostgresRepository implements Repository using PostgreSQL. Email
// uniqueness is enforced by the users_email_key index, so concurrent
// signups racing past the service-level pre-check still collapse to a
// single winner.
type PostgresRepository struct {
	db *pgxpool.Pool
}

// NewPostgresRepository builds a Postgres-backed user repository.
func NewPostgresRepository(db *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Create inserts a new user. A unique violation on the email index maps
// to ErrEmailTaken.
func (r *PostgresRepository) Create(ctx context.Context, u User) error {
	userID, err := uuid.Parse(u.ID)
	if err != nil {
		return fmt.Errorf("parse user id: %w", err)
	}
	_, err = r.db.Exec(ctx, `INSERT INTO users (id, email, credential, created_at)
        VALUES ($1, $2, $3, $4)`, userID, u.Email, u.Credential, u.CreatedAt.UTC())
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
			return ErrEmailTaken
		}
		return err
	}
	return nil
}

// FindByEmail fetches the user registered under email. More than one
// matching row is reported as ErrDuplicateEmail rather than resolved by
// row order.
func (r *PostgresRepository) FindByEmail(ctx context.Context, email string) (User, error) {
	rows, err := r.db.Query(ctx, `SELECT id, email, credential, created_at FROM users WHERE email = $1`, email)
	if err != nil {
		return User{}, err
	}
	defer rows.Close()

	var found []User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return User{}, err
		}
		found = append(found, u)
	}
	if err := rows.Err(); err != nil {
		return User{}, err
	}
	switch len(found) {
	case 0:
		return User{}, ErrNotFound
	case 1:
		return found[0], nil
	default:
		return User{}, ErrDuplicateEmail
	}
}

// FindByID fetches a user by primary key.
func (r *PostgresRepository) FindByID(ctx context.Context, id string) (User, error) {
	userID, err := uuid.Parse(id)
	if err != nil {
		return User{}, ErrNotFound
	}
	row := r.db.QueryRow(ctx, `SELECT id, email, credential, created_at FROM users WHERE id = $1`, userID)
	u, err := scanUser(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return User{}, ErrNotFound
	}
	if err != nil {
		return User{}, err
	}
	return u, nil
}

func scanUser(row pgx.Row) (User, error) {
	var (
		id        uuid.UUID
		createdAt time.Time
		u         User
	)
	if err := row.Scan(&id, &u.Email, &u.Credential, &createdAt); err != nil {
		return User{}, err
	}
	u.ID = id.String()
	u.CreatedAt = createdAt.UTC()
	return u, nil
}
