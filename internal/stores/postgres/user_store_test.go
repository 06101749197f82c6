package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MrEthical07/sessionauth"
)

var testNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func testUser() *sessionauth.User {
	return &sessionauth.User{
		ID:           "65f1c0ffee0123456789abcd",
		Email:        "ada@example.com",
		PasswordHash: "$argon2id$v=19$m=8192,t=1,p=1$c2FsdA$aGFzaA",
		CreatedAt:    testNow,
		UpdatedAt:    testNow,
	}
}

func userRows(u *sessionauth.User) *pgxmock.Rows {
	return pgxmock.NewRows([]string{"id", "email", "password_hash", "verified", "created_at", "updated_at"}).
		AddRow(u.ID, u.Email, u.PasswordHash, u.Verified, u.CreatedAt, u.UpdatedAt)
}

func TestUserStore_Create(t *testing.T) {
	tests := []struct {
		name      string
		setupMock func(mock pgxmock.PgxPoolIface, u *sessionauth.User)
		wantErr   error
		wantAny   bool
	}{
		{
			name: "successful insert",
			setupMock: func(mock pgxmock.PgxPoolIface, u *sessionauth.User) {
				mock.ExpectExec(`INSERT INTO users`).
					WithArgs(u.ID, u.Email, u.PasswordHash, false, u.CreatedAt, u.UpdatedAt).
					WillReturnResult(pgxmock.NewResult("INSERT", 1))
			},
		},
		{
			name: "unique violation maps to duplicate email",
			setupMock: func(mock pgxmock.PgxPoolIface, u *sessionauth.User) {
				mock.ExpectExec(`INSERT INTO users`).
					WithArgs(u.ID, u.Email, u.PasswordHash, false, u.CreatedAt, u.UpdatedAt).
					WillReturnError(&pgconn.PgError{Code: pgerrcode.UniqueViolation})
			},
			wantErr: sessionauth.ErrDuplicateEmail,
		},
		{
			name: "database error",
			setupMock: func(mock pgxmock.PgxPoolIface, u *sessionauth.User) {
				mock.ExpectExec(`INSERT INTO users`).
					WithArgs(u.ID, u.Email, u.PasswordHash, false, u.CreatedAt, u.UpdatedAt).
					WillReturnError(errors.New("connection refused"))
			},
			wantAny: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock, err := pgxmock.NewPool()
			require.NoError(t, err, "failed to create mock")
			defer mock.Close()

			u := testUser()
			tt.setupMock(mock, u)

			err = NewUserStore(mock).Create(context.Background(), u)
			switch {
			case tt.wantErr != nil:
				require.ErrorIs(t, err, tt.wantErr)
			case tt.wantAny:
				require.Error(t, err)
				assert.NotErrorIs(t, err, sessionauth.ErrDuplicateEmail)
				assert.Contains(t, err.Error(), "connection refused")
			default:
				require.NoError(t, err)
			}

			assert.NoError(t, mock.ExpectationsWereMet(), "unfulfilled expectations")
		})
	}
}

func TestUserStore_ExistsByEmail(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectQuery(`SELECT EXISTS`).
		WithArgs("ada@example.com").
		WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(true))
	mock.ExpectQuery(`SELECT EXISTS`).
		WithArgs("nobody@example.com").
		WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(false))

	store := NewUserStore(mock)
	exists, err := store.ExistsByEmail(context.Background(), "ada@example.com")
	require.NoError(t, err)
	assert.True(t, exists)

	exists, err = store.ExistsByEmail(context.Background(), "nobody@example.com")
	require.NoError(t, err)
	assert.False(t, exists)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUserStore_FindByEmail(t *testing.T) {
	t.Run("found", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		u := testUser()
		mock.ExpectQuery(`SELECT .+ FROM users WHERE email = \$1`).
			WithArgs(u.Email).
			WillReturnRows(userRows(u))

		got, err := NewUserStore(mock).FindByEmail(context.Background(), u.Email)
		require.NoError(t, err)
		assert.Equal(t, u, got)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("not found", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		mock.ExpectQuery(`SELECT .+ FROM users WHERE email = \$1`).
			WithArgs("nobody@example.com").
			WillReturnRows(pgxmock.NewRows([]string{"id", "email", "password_hash", "verified", "created_at", "updated_at"}))

		_, err = NewUserStore(mock).FindByEmail(context.Background(), "nobody@example.com")
		require.ErrorIs(t, err, sessionauth.ErrRecordNotFound)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestUserStore_FindByID_NotFound(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectQuery(`SELECT .+ FROM users WHERE id = \$1`).
		WithArgs("000000000000000000000000").
		WillReturnRows(pgxmock.NewRows([]string{"id", "email", "password_hash", "verified", "created_at", "updated_at"}))

	_, err = NewUserStore(mock).FindByID(context.Background(), "000000000000000000000000")
	require.ErrorIs(t, err, sessionauth.ErrRecordNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUserStore_MarkVerified(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	u := testUser()
	later := testNow.Add(time.Hour)
	verified := *u
	verified.Verified = true
	verified.UpdatedAt = later

	mock.ExpectQuery(`UPDATE users SET verified = TRUE`).
		WithArgs(u.ID, later).
		WillReturnRows(userRows(&verified))

	got, err := NewUserStore(mock).MarkVerified(context.Background(), u.ID, later)
	require.NoError(t, err)
	assert.True(t, got.Verified)
	assert.Equal(t, later, got.UpdatedAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUserStore_UpdatePassword(t *testing.T) {
	t.Run("updated", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		u := testUser()
		updated := *u
		updated.PasswordHash = "new-hash"

		mock.ExpectQuery(`UPDATE users SET password_hash = \$2`).
			WithArgs(u.ID, "new-hash", testNow).
			WillReturnRows(userRows(&updated))

		got, err := NewUserStore(mock).UpdatePassword(context.Background(), u.ID, "new-hash", testNow)
		require.NoError(t, err)
		assert.Equal(t, "new-hash", got.PasswordHash)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("missing user", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		mock.ExpectQuery(`UPDATE users SET password_hash = \$2`).
			WithArgs("000000000000000000000000", "new-hash", testNow).
			WillReturnRows(pgxmock.NewRows([]string{"id", "email", "password_hash", "verified", "created_at", "updated_at"}))

		_, err = NewUserStore(mock).UpdatePassword(context.Background(), "000000000000000000000000", "new-hash", testNow)
		require.ErrorIs(t, err, sessionauth.ErrRecordNotFound)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}
