package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/samber/oops"

	"github.com/MrEthical07/sessionauth"
)

// CodeStore implements sessionauth.CodeStore using PostgreSQL.
type CodeStore struct {
	pool Pool
}

// NewCodeStore creates a new CodeStore.
func NewCodeStore(pool Pool) *CodeStore {
	return &CodeStore{pool: pool}
}

// Create stores a new verification code.
func (s *CodeStore) Create(ctx context.Context, c *sessionauth.VerificationCode) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO verification_codes (id, user_id, type, created_at, expires_at)
		VALUES ($1, $2, $3, $4, $5)
	`, c.ID, c.UserID, string(c.Type), c.CreatedAt, c.ExpiresAt)
	if err != nil {
		return oops.Code("CODE_CREATE_FAILED").
			With("operation", "insert verification_code").
			With("user_id", c.UserID).
			With("type", string(c.Type)).
			Wrap(err)
	}
	return nil
}

// FindValid retrieves an unexpired code of the given type.
func (s *CodeStore) FindValid(ctx context.Context, lookup sessionauth.CodeLookup) (*sessionauth.VerificationCode, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT id, user_id, type, created_at, expires_at
		FROM verification_codes
		WHERE id = $1 AND type = $2 AND expires_at > $3
	`, lookup.ID, string(lookup.Type), lookup.Now)

	var (
		c        sessionauth.VerificationCode
		codeType string
	)
	err := row.Scan(&c.ID, &c.UserID, &codeType, &c.CreatedAt, &c.ExpiresAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, oops.Code("CODE_NOT_FOUND").Wrap(sessionauth.ErrRecordNotFound)
	}
	if err != nil {
		return nil, oops.Code("CODE_SCAN_FAILED").
			With("operation", "scan verification_code").
			Wrap(err)
	}
	c.Type = sessionauth.CodeType(codeType)
	return &c, nil
}

// CountSince counts codes of the filter's user and type created after since.
func (s *CodeStore) CountSince(ctx context.Context, f sessionauth.CodeFilter, since time.Time) (int, error) {
	var count int
	err := s.pool.QueryRow(ctx, `
		SELECT COUNT(*) FROM verification_codes
		WHERE user_id = $1 AND type = $2 AND created_at > $3
	`, f.UserID, string(f.Type), since).Scan(&count)
	if err != nil {
		return 0, oops.Code("CODE_COUNT_FAILED").
			With("operation", "count verification_codes").
			With("user_id", f.UserID).
			Wrap(err)
	}
	return count, nil
}

// Delete removes one code. Deleting a missing code is not an error.
func (s *CodeStore) Delete(ctx context.Context, id string) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM verification_codes WHERE id = $1`, id)
	if err != nil {
		return oops.Code("CODE_DELETE_FAILED").
			With("operation", "delete verification_code").
			With("id", id).
			Wrap(err)
	}
	return nil
}

// DeleteMany removes every code of the filter's user and type and returns the count.
func (s *CodeStore) DeleteMany(ctx context.Context, f sessionauth.CodeFilter) (int, error) {
	result, err := s.pool.Exec(ctx, `
		DELETE FROM verification_codes WHERE user_id = $1 AND type = $2
	`, f.UserID, string(f.Type))
	if err != nil {
		return 0, oops.Code("CODE_DELETE_MANY_FAILED").
			With("operation", "delete verification_codes by user").
			With("user_id", f.UserID).
			Wrap(err)
	}
	return int(result.RowsAffected()), nil
}

// Compile-time interface check.
var _ sessionauth.CodeStore = (*CodeStore)(nil)
