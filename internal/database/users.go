package database

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/benvon/restaurant-finder/internal/models"
	"github.com/google/uuid"
)

const userColumns = `id, name, email, password_hash, google_subject, created_at, updated_at`

// UserRepository handles user database operations
type UserRepository struct {
	db *DB
}

// NewUserRepository creates a new user repository
func NewUserRepository(db *DB) *UserRepository {
	return &UserRepository{db: db}
}

// NormalizeEmail lower-cases and trims an email so lookups match the stored key.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Create inserts a new user. A duplicate email yields models.ErrConflict.
func (r *UserRepository) Create(ctx context.Context, user *models.User) error {
	if user.ID == uuid.Nil {
		user.ID = uuid.New()
	}
	user.Email = NormalizeEmail(user.Email)

	query := `
		INSERT INTO users (id, name, email, password_hash, google_subject, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at, updated_at
	`

	now := time.Now().UTC()
	err := r.db.QueryRowContext(ctx, query,
		user.ID,
		user.Name,
		user.Email,
		user.PasswordHash,
		user.GoogleSubject,
		now,
		now,
	).Scan(&user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		if pqErrorCode(err) == pqUniqueViolation {
			return fmt.Errorf("email already registered: %w", models.ErrConflict)
		}
		return storageError("create user", err)
	}

	return nil
}

// GetByID retrieves a user by ID
func (r *UserRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	return r.getOne(ctx, "get user", query, id)
}

// GetByEmail retrieves a user by (normalized) email
func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE email = $1`
	return r.getOne(ctx, "get user by email", query, NormalizeEmail(email))
}

// LinkGoogleSubject records the Google subject on an existing account if none is set yet.
func (r *UserRepository) LinkGoogleSubject(ctx context.Context, id uuid.UUID, subject string) error {
	query := `
		UPDATE users
		SET google_subject = $2, updated_at = $3
		WHERE id = $1 AND google_subject IS NULL
	`

	if _, err := r.db.ExecContext(ctx, query, id, subject, time.Now().UTC()); err != nil {
		if pqErrorCode(err) == pqUniqueViolation {
			return fmt.Errorf("google account linked to another user: %w", models.ErrConflict)
		}
		return storageError("link google subject", err)
	}

	return nil
}

func (r *UserRepository) getOne(ctx context.Context, action, query string, arg any) (*models.User, error) {
	user := &models.User{}
	err := r.db.QueryRowContext(ctx, query, arg).Scan(
		&user.ID,
		&user.Name,
		&user.Email,
		&user.PasswordHash,
		&user.GoogleSubject,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if isNoRows(err) {
		return nil, fmt.Errorf("user not found: %w", models.ErrNotFound)
	}
	if err != nil {
		return nil, storageError(action, err)
	}

	return user, nil
}
