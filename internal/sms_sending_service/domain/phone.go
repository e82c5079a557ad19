package domain // sms_sending_service/domain

import (
	"context"
	"encoding/json"
	"errors"
	"time"
)

var (
	ErrPhoneNotFound  = errors.New("phone not found")
	ErrDuplicatePhone = errors.New("a phone with this name already exists")
)

// Phone is a carrier account of a user: which adapter to use and its configuration.
type Phone struct {
	ID     string
	UserID string
	Name   string
	// Adapter is the registry id of the adapter, e.g. "octopush_shortcode".
	Adapter     string
	AdapterData json.RawMessage
	CreatedAt   time.Time
}

// PhoneRepository defines the interface for accessing phone data.
type PhoneRepository interface {
	Create(ctx context.Context, phone *Phone) error
	// GetByID is used by carrier callbacks, which carry no user context.
	GetByID(ctx context.Context, id string) (*Phone, error)
	GetForUser(ctx context.Context, userID, id string) (*Phone, error)
	ListForUser(ctx context.Context, userID string) ([]*Phone, error)
	ListAll(ctx context.Context) ([]*Phone, error)
	DeleteForUser(ctx context.Context, userID, id string) error
}
