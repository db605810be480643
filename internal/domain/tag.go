package domain

import "time"

// Tag is a per-user label over sources.
// Slug is the canonical form: lowercase, hyphenated.
type Tag struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Slug      string    `json:"slug"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// SourceTag is the many-to-many relationship between sources and tags.
type SourceTag struct {
	SourceID  string    `json:"source_id"`
	TagID     string    `json:"tag_id"`
	CreatedAt time.Time `json:"created_at"`
}
