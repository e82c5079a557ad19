package repository

import (
	"context"
	"errors"

	"github.com/raspisms/golang_services/internal/user_service/domain"
)

var (
	ErrUserNotFound  = errors.New("user not found")
	ErrDuplicateUser = errors.New("email already exists")
)

// UserRepository defines the interface for user data persistence.
type UserRepository interface {
	Create(ctx context.Context, user *domain.User) (*domain.User, error)
	GetByID(ctx context.Context, id string) (*domain.User, error)
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	GetByAPIKeyHash(ctx context.Context, apiKeyHash string) (*domain.User, error)
	// List returns one page ordered by email and the total number of users.
	List(ctx context.Context, limit, offset int) ([]*domain.User, int, error)
	UpdateAPIKeyHash(ctx context.Context, id, apiKeyHash string) error
	UpdateCredentials(ctx context.Context, id, hashedPassword string, isAdmin bool) error
	Delete(ctx context.Context, id string) error
}
