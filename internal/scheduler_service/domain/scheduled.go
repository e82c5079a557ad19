package domain

import (
	"context"
	"errors"

	"github.com/raspisms/golang_services/internal/core_domain"
)

var (
	// ErrNotFound indicates that a scheduled message does not exist or is not owned by the caller.
	ErrNotFound = errors.New("scheduled message not found")
	// ErrInvalidScheduled is returned when a scheduled message fails validation.
	ErrInvalidScheduled = errors.New("invalid scheduled message")
)

// ScheduledRepository defines the interface for managing scheduled messages.
type ScheduledRepository interface {
	Create(ctx context.Context, s *core_domain.Scheduled) error
	GetForUser(ctx context.Context, userID, id string) (*core_domain.Scheduled, error)
	// ListForUser returns one page ordered by date and the total count for the user.
	ListForUser(ctx context.Context, userID string, limit, offset int) ([]*core_domain.Scheduled, int, error)
	DeleteForUser(ctx context.Context, userID, id string) error
}
