package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/raspisms/golang_services/internal/platform/database"
	"github.com/raspisms/golang_services/internal/user_service/domain"
	"github.com/raspisms/golang_services/internal/user_service/repository"
)

type pgUserRepository struct {
	db database.Querier
}

func NewPgUserRepository(db database.Querier) repository.UserRepository {
	return &pgUserRepository{db: db}
}

const userColumns = `id, email, hashed_password, is_admin, api_key_hash, created_at, updated_at`

func (r *pgUserRepository) Create(ctx context.Context, user *domain.User) (*domain.User, error) {
	user.ID = uuid.NewString()
	now := time.Now().UTC()
	user.CreatedAt = now
	user.UpdatedAt = now

	// api_key_hash is unique, so an empty key is stored as NULL.
	query := `INSERT INTO users (` + userColumns + `) VALUES ($1, $2, $3, $4, $5, $6, $7)`
	_, err := r.db.Exec(ctx, query,
		user.ID, user.Email, user.HashedPassword, user.IsAdmin, nullable(user.APIKey), user.CreatedAt, user.UpdatedAt,
	)
	if err != nil {
		if database.IsUniqueViolation(err) {
			return nil, repository.ErrDuplicateUser
		}
		return nil, fmt.Errorf("creating user: %w", err)
	}
	return user, nil
}

func (r *pgUserRepository) GetByID(ctx context.Context, id string) (*domain.User, error) {
	return r.getBy(ctx, "id", id)
}

func (r *pgUserRepository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	return r.getBy(ctx, "email", email)
}

func (r *pgUserRepository) GetByAPIKeyHash(ctx context.Context, apiKeyHash string) (*domain.User, error) {
	return r.getBy(ctx, "api_key_hash", apiKeyHash)
}

func (r *pgUserRepository) getBy(ctx context.Context, column, value string) (*domain.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE ` + column + ` = $1`
	user, err := scanUser(r.db.QueryRow(ctx, query, value))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrUserNotFound
		}
		return nil, err
	}
	return user, nil
}

func (r *pgUserRepository) List(ctx context.Context, limit, offset int) ([]*domain.User, int, error) {
	var total int
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM users`).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("counting users: %w", err)
	}

	rows, err := r.db.Query(ctx, `SELECT `+userColumns+` FROM users ORDER BY email LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("listing users: %w", err)
	}
	defer rows.Close()

	users := []*domain.User{}
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, 0, err
		}
		users = append(users, user)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return users, total, nil
}

func (r *pgUserRepository) UpdateAPIKeyHash(ctx context.Context, id, apiKeyHash string) error {
	query := `UPDATE users SET api_key_hash = $2, updated_at = $3 WHERE id = $1`
	tag, err := r.db.Exec(ctx, query, id, nullable(apiKeyHash), time.Now().UTC())
	if err != nil {
		return fmt.Errorf("updating api key: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrUserNotFound
	}
	return nil
}

func (r *pgUserRepository) UpdateCredentials(ctx context.Context, id, hashedPassword string, isAdmin bool) error {
	query := `UPDATE users SET hashed_password = $2, is_admin = $3, updated_at = $4 WHERE id = $1`
	tag, err := r.db.Exec(ctx, query, id, hashedPassword, isAdmin, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("updating credentials: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrUserNotFound
	}
	return nil
}

func (r *pgUserRepository) Delete(ctx context.Context, id string) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("deleting user: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrUserNotFound
	}
	return nil
}

func scanUser(row pgx.Row) (*domain.User, error) {
	var (
		user   domain.User
		apiKey *string
	)
	err := row.Scan(&user.ID, &user.Email, &user.HashedPassword, &user.IsAdmin, &apiKey, &user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scanning user: %w", err)
	}
	if apiKey != nil {
		user.APIKey = *apiKey
	}
	return &user, nil
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
