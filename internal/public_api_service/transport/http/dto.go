package http

import (
	"encoding/json"
	"time"

	"github.com/raspisms/golang_services/internal/core_domain"
	"github.com/raspisms/golang_services/internal/platform/session"
)

// LoginRequest defines the structure for user login.
type LoginRequest struct {
	Email    string `json:"email" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// SessionResponse describes the authenticated user and the CSRF token to echo on mutations.
type SessionResponse struct {
	UserID  string `json:"user_id"`
	Email   string `json:"email,omitempty"`
	IsAdmin bool   `json:"is_admin"`
	CSRF    string `json:"csrf,omitempty"`
}

// UserResponse is the public view of a user.
type UserResponse struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	IsAdmin   bool      `json:"is_admin"`
	CreatedAt time.Time `json:"created_at"`
}

// UserListResponse is the paginated user list with pending flashes.
type UserListResponse struct {
	Users   []UserResponse  `json:"users"`
	Page    int             `json:"page"`
	PerPage int             `json:"per_page"`
	Total   int             `json:"total"`
	Flashes []session.Flash `json:"flashes"`
}

// UserFormResponse carries what the user creation form needs.
type UserFormResponse struct {
	CSRF    string          `json:"csrf"`
	Flashes []session.Flash `json:"flashes"`
}

// APIKeyResponse returns a freshly generated key. It is never shown again.
type APIKeyResponse struct {
	UserID string `json:"user_id"`
	APIKey string `json:"api_key"`
}

// CreatePhoneRequest registers a phone backed by an adapter.
type CreatePhoneRequest struct {
	Name        string          `json:"name" validate:"required,max=100"`
	Adapter     string          `json:"adapter" validate:"required"`
	AdapterData json.RawMessage `json:"adapter_data"`
}

// PhoneTestResponse reports the adapter connectivity check.
type PhoneTestResponse struct {
	PhoneID string `json:"phone_id"`
	OK      bool   `json:"ok"`
}

// PageResponse wraps a page of items.
type PageResponse struct {
	Items   any `json:"items"`
	Page    int `json:"page"`
	PerPage int `json:"per_page"`
	Total   int `json:"total,omitempty"`
}

// BulkResponse summarises a bulk action.
type BulkResponse struct {
	Done   int `json:"done"`
	Failed int `json:"failed"`
}

// GenericErrorResponse for API errors
type GenericErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// PhoneResponse is the public view of a phone. Adapter credentials are never returned.
type PhoneResponse struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Adapter   string    `json:"adapter"`
	CreatedAt time.Time `json:"created_at"`
}

// SendRequest is accepted as a form or a JSON body.
type SendRequest struct {
	Destination string `json:"destination" validate:"required,max=20"`
	Text        string `json:"text" validate:"required,max=1000"`
	Flash       bool   `json:"flash"`
}

// SendFailureResponse returns the failed Sended row along with the adapter error.
type SendFailureResponse struct {
	Error  string              `json:"error"`
	Sended *core_domain.Sended `json:"sended"`
}
