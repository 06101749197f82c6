package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/samber/oops"

	"github.com/MrEthical07/sessionauth"
)

const userColumns = `id, email, password_hash, verified, created_at, updated_at`

// UserStore implements sessionauth.UserStore using PostgreSQL.
type UserStore struct {
	pool Pool
}

// NewUserStore creates a new UserStore.
func NewUserStore(pool Pool) *UserStore {
	return &UserStore{pool: pool}
}

// Create inserts u. A unique violation on email yields sessionauth.ErrDuplicateEmail.
func (s *UserStore) Create(ctx context.Context, u *sessionauth.User) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO users (id, email, password_hash, verified, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, u.ID, u.Email, u.PasswordHash, u.Verified, u.CreatedAt, u.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
			return oops.Code("USER_DUPLICATE_EMAIL").
				With("user_id", u.ID).
				Wrap(sessionauth.ErrDuplicateEmail)
		}
		return oops.Code("USER_CREATE_FAILED").
			With("operation", "insert user").
			With("user_id", u.ID).
			Wrap(err)
	}
	return nil
}

// ExistsByEmail reports whether a user with email exists.
func (s *UserStore) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	var exists bool
	err := s.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM users WHERE email = $1)`, email).Scan(&exists)
	if err != nil {
		return false, oops.Code("USER_EXISTS_FAILED").
			With("operation", "select user exists").
			Wrap(err)
	}
	return exists, nil
}

// FindByEmail retrieves a user by email.
func (s *UserStore) FindByEmail(ctx context.Context, email string) (*sessionauth.User, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE email = $1`, email)
	user, err := scanUser(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, oops.Code("USER_NOT_FOUND").Wrap(sessionauth.ErrRecordNotFound)
	}
	if err != nil {
		return nil, err
	}
	return user, nil
}

// FindByID retrieves a user by id.
func (s *UserStore) FindByID(ctx context.Context, id string) (*sessionauth.User, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
	user, err := scanUser(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, oops.Code("USER_NOT_FOUND").
			With("user_id", id).
			Wrap(sessionauth.ErrRecordNotFound)
	}
	if err != nil {
		return nil, err
	}
	return user, nil
}

// MarkVerified sets verified and returns the updated user.
func (s *UserStore) MarkVerified(ctx context.Context, id string, at time.Time) (*sessionauth.User, error) {
	row := s.pool.QueryRow(ctx, `
		UPDATE users SET verified = TRUE, updated_at = $2
		WHERE id = $1
		RETURNING `+userColumns, id, at)
	user, err := scanUser(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, oops.Code("USER_NOT_FOUND").
			With("user_id", id).
			Wrap(sessionauth.ErrRecordNotFound)
	}
	if err != nil {
		return nil, err
	}
	return user, nil
}

// UpdatePassword replaces the password hash and returns the updated user.
func (s *UserStore) UpdatePassword(ctx context.Context, id, passwordHash string, at time.Time) (*sessionauth.User, error) {
	row := s.pool.QueryRow(ctx, `
		UPDATE users SET password_hash = $2, updated_at = $3
		WHERE id = $1
		RETURNING `+userColumns, id, passwordHash, at)
	user, err := scanUser(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, oops.Code("USER_NOT_FOUND").
			With("user_id", id).
			Wrap(sessionauth.ErrRecordNotFound)
	}
	if err != nil {
		return nil, err
	}
	return user, nil
}

// scanUser scans a single row. pgx.ErrNoRows is returned unwrapped.
func scanUser(row pgx.Row) (*sessionauth.User, error) {
	var u sessionauth.User
	err := row.Scan(&u.ID, &u.Email, &u.PasswordHash, &u.Verified, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, err
		}
		return nil, oops.Code("USER_SCAN_FAILED").
			With("operation", "scan user").
			Wrap(err)
	}
	return &u, nil
}

// Compile-time interface check.
var _ sessionauth.UserStore = (*UserStore)(nil)
