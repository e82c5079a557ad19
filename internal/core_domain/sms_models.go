package core_domain

import (
	"time"
)

// SendedStatus is the normalized delivery status of an outbound message.
type SendedStatus string

const (
	SendedStatusUnknown   SendedStatus = "unknown"
	SendedStatusDelivered SendedStatus = "delivered"
	SendedStatusFailed    SendedStatus = "failed"
)

// Valid reports whether s is one of the known statuses.
func (s SendedStatus) Valid() bool {
	switch s {
	case SendedStatusUnknown, SendedStatusDelivered, SendedStatusFailed:
		return true
	}
	return false
}

// ReceivedStatus tracks whether an inbound message was read in the UI.
type ReceivedStatus string

const (
	ReceivedStatusUnread ReceivedStatus = "unread"
	ReceivedStatusRead   ReceivedStatus = "read"
)

// Sended is an outbound message handed to a carrier through a phone's adapter.
type Sended struct {
	ID          string       `json:"id"`
	UserID      string       `json:"user_id"`
	PhoneID     string       `json:"phone_id"`
	Destination string       `json:"destination"`
	Text        string       `json:"text"`
	Flash       bool         `json:"flash"`
	UID         string       `json:"uid,omitempty"` // carrier message id
	Status      SendedStatus `json:"status"`
	Error       string       `json:"error,omitempty"`
	At          time.Time    `json:"at"`
	UpdatedAt   time.Time    `json:"updated_at"`
}

// Received is an inbound message stored for a phone's owner.
type Received struct {
	ID        string         `json:"id"`
	UserID    string         `json:"user_id"`
	PhoneID   string         `json:"phone_id"`
	Origin    string         `json:"origin"`
	Text      string         `json:"text"`
	Status    ReceivedStatus `json:"status"`
	At        time.Time      `json:"at"`
	CreatedAt time.Time      `json:"created_at"`
}

// Scheduled is an outbound message planned for a later date.
type Scheduled struct {
	ID           string    `json:"id"`
	UserID       string    `json:"user_id"`
	PhoneID      string    `json:"phone_id,omitempty"`
	At           time.Time `json:"at"`
	Text         string    `json:"text"`
	Flash        bool      `json:"flash"`
	Destinations []string  `json:"destinations"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// IncomingSMS is the carrier-agnostic shape of an inbound message,
// produced by adapters from polling or reception callbacks.
type IncomingSMS struct {
	At     time.Time `json:"at"`
	Text   string    `json:"text"`
	Origin string    `json:"origin"`
}
