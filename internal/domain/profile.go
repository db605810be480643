package domain

import "time"

// Profile holds per-user settings and integration state. Third-party
// credentials (Notion auth blob, Capacities API key) are stored encrypted
// with the user's key; the *Enc fields carry ciphertext and are never
// serialized to clients.
type Profile struct {
	UserID string `json:"user_id"`

	// UTCOffset shifts the clock when computing the user's logical day.
	// Range -12..+14 hours.
	UTCOffset int `json:"utc_offset"`

	Premium           bool `json:"premium"`
	DailyEmailEnabled bool `json:"daily_email_enabled"`

	NotionAuthEnc    string `json:"-"`
	NotionDatabaseID string `json:"notion_database_id,omitempty"`

	CapacitiesAPIKeyEnc string `json:"-"`
	CapacitiesSpaceID   string `json:"capacities_space_id,omitempty"`

	// AI usage counters, accumulated across all AI operations.
	AIInputTokensUsed  int64 `json:"ai_input_tokens_used"`
	AIOutputTokensUsed int64 `json:"ai_output_tokens_used"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewProfile creates a default profile for a user.
func NewProfile(userID string) *Profile {
	now := time.Now()
	return &Profile{
		UserID:            userID,
		DailyEmailEnabled: true,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
}

// Day returns the user's logical calendar day at the given instant, formatted
// YYYY/MM/DD. The offset is applied by shifting the UTC clock, so for
// UTCOffset=-5 the day rolls over at 05:00 UTC.
func (p *Profile) Day(at time.Time) string {
	return at.UTC().Add(time.Duration(p.UTCOffset) * time.Hour).Format("2006/01/02")
}

// HasNotion reports whether the profile has a usable Notion connection.
func (p *Profile) HasNotion() bool {
	return p.NotionAuthEnc != "" && p.NotionDatabaseID != ""
}

// HasCapacities reports whether the profile has a usable Capacities connection.
func (p *Profile) HasCapacities() bool {
	return p.CapacitiesAPIKeyEnc != "" && p.CapacitiesSpaceID != ""
}

// Touch updates the UpdatedAt timestamp.
func (p *Profile) Touch() {
	p.UpdatedAt = time.Now()
}
