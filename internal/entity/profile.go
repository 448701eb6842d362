package entity

import (
	"time"
)

// Identity is an authenticated caller.
type Identity struct {
	UserID    string    `json:"user_id"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Profile represents a profile for data transfer between layers.
type Profile struct {
	ID       string `json:"id"`
	FullName string `json:"full_name"`
	IsAdmin  bool   `json:"is_admin"`
}
