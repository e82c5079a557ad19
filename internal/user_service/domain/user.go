package domain

import (
	"time"
)

// User is an account of the gateway. Admins manage the other accounts.
type User struct {
	ID             string    `json:"id"`
	Email          string    `json:"email"`
	HashedPassword string    `json:"-"` // Never expose
	IsAdmin        bool      `json:"is_admin"`
	APIKey         string    `json:"-"` // sha3 hash of the key, the key itself is shown once
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}
