package domain

import "time"

// User is an account holder. Authentication state (password hash) lives here;
// integration credentials and settings live on the Profile.
type User struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	Name         string    `json:"name"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Caller is a resolved request identity. System callers (the cron scheduler
// authenticating with the shared secret) have no UserID.
type Caller struct {
	UserID  string
	Premium bool
	System  bool
}

// IsUser reports whether the caller is an authenticated end user.
func (c Caller) IsUser() bool {
	return !c.System && c.UserID != ""
}
