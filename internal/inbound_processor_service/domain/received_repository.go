package domain

import (
	"context"
	"errors"

	"github.com/raspisms/golang_services/internal/core_domain"
)

var ErrReceivedNotFound = errors.New("received message not found")

// ReceivedRepository defines the storage of inbound messages (received table).
type ReceivedRepository interface {
	Create(ctx context.Context, msg *core_domain.Received) error
	GetForUser(ctx context.Context, userID, id string) (*core_domain.Received, error)
	ListForUser(ctx context.Context, userID string, limit, offset int) ([]*core_domain.Received, error)
	MarkRead(ctx context.Context, userID, id string) error
}
