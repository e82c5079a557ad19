package domain

import (
	"context"
	"errors"
	"fmt"
	"time"
)

var (
	ErrMediaNotFound = errors.New("media not found")
	// ErrUnknownResourceKind is returned for a resource kind outside scheduled, received and sended.
	ErrUnknownResourceKind = errors.New("unknown resource kind")
	// ErrResourceNotFound is returned when linking to a message that does not exist for the media owner.
	ErrResourceNotFound = errors.New("linked resource not found")
	ErrLinkNotFound     = errors.New("media link not found")
)

// Media is a file attachment owned by one user. Path is relative to the data directory.
type Media struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Path      string    `json:"path"`
	CreatedAt time.Time `json:"created_at"`
}

// ResourceKind is the closed set of message kinds a media can be linked to.
type ResourceKind int

const (
	ResourceScheduled ResourceKind = iota + 1
	ResourceReceived
	ResourceSended
)

// ResourceKinds lists every valid kind.
var ResourceKinds = []ResourceKind{ResourceScheduled, ResourceReceived, ResourceSended}

// ParseResourceKind maps "scheduled", "received" or "sended" to its kind.
func ParseResourceKind(s string) (ResourceKind, error) {
	switch s {
	case "scheduled":
		return ResourceScheduled, nil
	case "received":
		return ResourceReceived, nil
	case "sended":
		return ResourceSended, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownResourceKind, s)
}

func (k ResourceKind) Valid() bool {
	return k >= ResourceScheduled && k <= ResourceSended
}

func (k ResourceKind) String() string {
	switch k {
	case ResourceScheduled:
		return "scheduled"
	case ResourceReceived:
		return "received"
	case ResourceSended:
		return "sended"
	}
	return fmt.Sprintf("ResourceKind(%d)", int(k))
}

// Table is the message table of the kind.
func (k ResourceKind) Table() string {
	return k.String()
}

// LinkTable is the join table between media and the kind's messages.
func (k ResourceKind) LinkTable() string {
	return "media_" + k.String()
}

// LinkColumn is the foreign key column of the kind in its link table.
func (k ResourceKind) LinkColumn() string {
	return k.String() + "_id"
}

// MediaRepository defines the storage of media rows and their links.
// Implementations must reject invalid kinds with ErrUnknownResourceKind before touching storage.
type MediaRepository interface {
	Create(ctx context.Context, m *Media) error
	GetForUser(ctx context.Context, userID, id string) (*Media, error)
	ListForUser(ctx context.Context, userID string, limit, offset int) ([]*Media, error)
	UpdatePathForUser(ctx context.Context, userID, id, path string) error
	DeleteForUser(ctx context.Context, userID, id string) error

	Link(ctx context.Context, mediaID string, kind ResourceKind, resourceID string) error
	Unlink(ctx context.Context, mediaID string, kind ResourceKind, resourceID string) error
	UnlinkAll(ctx context.Context, userID string, kind ResourceKind, resourceID string) (int64, error)
	ListFor(ctx context.Context, userID string, kind ResourceKind, resourceID string) ([]*Media, error)
	ListUnused(ctx context.Context, userID string) ([]*Media, error)
}
