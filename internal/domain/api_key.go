package domain

import "time"

// APIKey is a hashed bearer credential for programmatic access (the desktop
// app and public API callers). Only the argon2id hash is stored; the plaintext
// key is shown to the user exactly once at creation.
type APIKey struct {
	ID         string     `json:"id"`
	UserID     string     `json:"user_id"`
	Name       string     `json:"name"`
	KeyHash    string     `json:"-"`
	CreatedAt  time.Time  `json:"created_at"`
	LastUsedAt *time.Time `json:"last_used_at,omitempty"`
}
