package domain

import "time"

// Quote is a single highlight belonging to a source.
//
// Content is stored in plaintext; Note is encrypted at rest with the user's
// key. NoteEnc carries the ciphertext through the store layer, Note carries
// the decrypted value on read paths that need to display it. Natural identity
// for deduplication is (user, source, content, location).
type Quote struct {
	ID       string `json:"id"`
	UserID   string `json:"user_id"`
	SourceID string `json:"source_id"`
	Content  string `json:"content"`

	Note    string `json:"note,omitempty"`
	NoteEnc string `json:"-"`

	// Location is a page/position string as reported by the reading device.
	Location string `json:"location,omitempty"`
	// Color is the highlight color tag.
	Color string `json:"color,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// DailyQuote is the per-user, per-day reflection pointer. At most one row
// exists per (user, day); the store's uniqueness constraint is the only
// guard, there is no application-level locking.
type DailyQuote struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Day       string    `json:"day"` // YYYY/MM/DD in the user's own UTC offset
	QuoteID   string    `json:"quote_id"`
	CreatedAt time.Time `json:"created_at"`
}

// Reflection is the daily-reflection payload returned to callers and pushed
// to delivery channels. A nil Reflection means the user has nothing to
// reflect on, an explicit empty result rather than an error.
type Reflection struct {
	Source *Source `json:"source"`
	Quote  *Quote  `json:"quote"`
}
