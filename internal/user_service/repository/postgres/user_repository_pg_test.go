package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/raspisms/golang_services/internal/user_service/domain"
	"github.com/raspisms/golang_services/internal/user_service/repository"
)

var userRowColumns = []string{"id", "email", "hashed_password", "is_admin", "api_key_hash", "created_at", "updated_at"}

func TestPgUserRepository_Create(t *testing.T) {
	mockPool, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mockPool.Close()
	repo := NewPgUserRepository(mockPool)

	mockPool.ExpectExec(`INSERT INTO users`).
		WithArgs(pgxmock.AnyArg(), "a@b.com", "hash", true, (*string)(nil), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	user, err := repo.Create(context.Background(), &domain.User{Email: "a@b.com", HashedPassword: "hash", IsAdmin: true})
	require.NoError(t, err)
	assert.NotEmpty(t, user.ID)
	assert.NoError(t, mockPool.ExpectationsWereMet())
}

func TestPgUserRepository_Create_Duplicate(t *testing.T) {
	mockPool, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mockPool.Close()
	repo := NewPgUserRepository(mockPool)

	mockPool.ExpectExec(`INSERT INTO users`).
		WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnError(&pgconn.PgError{Code: "23505"})

	_, err = repo.Create(context.Background(), &domain.User{Email: "a@b.com", HashedPassword: "hash"})
	assert.ErrorIs(t, err, repository.ErrDuplicateUser)
}

func TestPgUserRepository_GetByEmail(t *testing.T) {
	mockPool, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mockPool.Close()
	repo := NewPgUserRepository(mockPool)

	now := time.Now().UTC()
	key := "key-hash"
	mockPool.ExpectQuery(`SELECT .* FROM users WHERE email = \$1`).WithArgs("a@b.com").
		WillReturnRows(mockPool.NewRows(userRowColumns).AddRow("u1", "a@b.com", "hash", false, &key, now, now))
	mockPool.ExpectQuery(`SELECT .* FROM users WHERE email = \$1`).WithArgs("nobody@b.com").
		WillReturnError(pgx.ErrNoRows)

	user, err := repo.GetByEmail(context.Background(), "a@b.com")
	require.NoError(t, err)
	assert.Equal(t, "u1", user.ID)
	assert.Equal(t, "key-hash", user.APIKey)

	_, err = repo.GetByEmail(context.Background(), "nobody@b.com")
	assert.ErrorIs(t, err, repository.ErrUserNotFound)
	assert.NoError(t, mockPool.ExpectationsWereMet())
}

func TestPgUserRepository_List(t *testing.T) {
	mockPool, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mockPool.Close()
	repo := NewPgUserRepository(mockPool)

	now := time.Now().UTC()
	mockPool.ExpectQuery(`SELECT COUNT\(\*\) FROM users`).WillReturnRows(mockPool.NewRows([]string{"count"}).AddRow(2))
	mockPool.ExpectQuery(`SELECT .* FROM users ORDER BY email LIMIT \$1 OFFSET \$2`).WithArgs(25, 0).
		WillReturnRows(mockPool.NewRows(userRowColumns).
			AddRow("u1", "a@b.com", "h", true, (*string)(nil), now, now).
			AddRow("u2", "c@d.com", "h", false, (*string)(nil), now, now))

	users, total, err := repo.List(context.Background(), 25, 0)
	require.NoError(t, err)
	assert.Equal(t, 2, total)
	require.Len(t, users, 2)
	assert.True(t, users[0].IsAdmin)
	assert.Empty(t, users[1].APIKey)
	assert.NoError(t, mockPool.ExpectationsWereMet())
}

func TestPgUserRepository_Delete(t *testing.T) {
	mockPool, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mockPool.Close()
	repo := NewPgUserRepository(mockPool)

	mockPool.ExpectExec(`DELETE FROM users WHERE id = \$1`).WithArgs("u1").WillReturnResult(pgxmock.NewResult("DELETE", 1))
	mockPool.ExpectExec(`DELETE FROM users WHERE id = \$1`).WithArgs("u9").WillReturnResult(pgxmock.NewResult("DELETE", 0))

	assert.NoError(t, repo.Delete(context.Background(), "u1"))
	assert.ErrorIs(t, repo.Delete(context.Background(), "u9"), repository.ErrUserNotFound)
	assert.NoError(t, mockPool.ExpectationsWereMet())
}

func TestPgUserRepository_UpdateAPIKeyHash(t *testing.T) {
	mockPool, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mockPool.Close()
	repo := NewPgUserRepository(mockPool)

	mockPool.ExpectExec(`UPDATE users SET api_key_hash = \$2`).WithArgs("u1", pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	assert.NoError(t, repo.UpdateAPIKeyHash(context.Background(), "u1", "new-hash"))
	assert.NoError(t, mockPool.ExpectationsWereMet())
}

func TestPgUserRepository_UpdateCredentials(t *testing.T) {
	mockPool, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mockPool.Close()
	repo := NewPgUserRepository(mockPool)

	mockPool.ExpectExec(`UPDATE users SET hashed_password = \$2, is_admin = \$3, updated_at = \$4 WHERE id = \$1`).
		WithArgs("u1", "hash", true, pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mockPool.ExpectExec(`UPDATE users SET hashed_password`).
		WithArgs("u9", "hash", true, pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	assert.NoError(t, repo.UpdateCredentials(context.Background(), "u1", "hash", true))
	assert.ErrorIs(t, repo.UpdateCredentials(context.Background(), "u9", "hash", true), repository.ErrUserNotFound)
	assert.NoError(t, mockPool.ExpectationsWereMet())
}
