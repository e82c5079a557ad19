package domain

import (
	"context"
	"errors"

	"github.com/raspisms/golang_services/internal/core_domain"
)

var ErrSendedNotFound = errors.New("sended message not found")

// SendedRepository stores outbound messages.
type SendedRepository interface {
	Create(ctx context.Context, sended *core_domain.Sended) error
	GetForUser(ctx context.Context, userID, id string) (*core_domain.Sended, error)
	ListForUser(ctx context.Context, userID string, limit, offset int) ([]*core_domain.Sended, error)
	// UpdateStatusByUID applies a carrier status report to the message the phone sent with uid.
	UpdateStatusByUID(ctx context.Context, phoneID, uid string, status core_domain.SendedStatus) (*core_domain.Sended, error)
}
