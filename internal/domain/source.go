package domain

import "time"

// SourceType categorizes a source.
type SourceType string

// Source types.
const (
	SourceTypeBook    SourceType = "BOOK"
	SourceTypeArticle SourceType = "ARTICLE"
	SourceTypePodcast SourceType = "PODCAST"
)

// SourceOrigin records which ingestion path created a source.
type SourceOrigin string

// Source origins.
const (
	OriginKindle    SourceOrigin = "KINDLE"
	OriginKOReader  SourceOrigin = "KOREADER"
	OriginNotion    SourceOrigin = "NOTION"
	OriginUnearthed SourceOrigin = "UNEARTHED"
)

// Source is a book or other content item a user highlights from.
//
// Identity for deduplication is (user, title): two editions with identical
// titles collapse into one source. That is a deliberate product decision,
// not a content-hash approximation.
type Source struct {
	ID       string       `json:"id"`
	UserID   string       `json:"user_id"`
	Title    string       `json:"title"`
	Subtitle string       `json:"subtitle,omitempty"`
	Author   string       `json:"author,omitempty"`
	Type     SourceType   `json:"type"`
	Origin   SourceOrigin `json:"origin"`

	// Ignored excludes the source and all its quotes from reflection
	// selection and outbound sync. Sources are never hard-deleted.
	Ignored bool `json:"ignored"`

	// MediaID optionally references a cover image.
	MediaID string `json:"media_id,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Touch updates the UpdatedAt timestamp.
func (s *Source) Touch() {
	s.UpdatedAt = time.Now()
}

// Media is a cover image reference, deduplicated per user by URL.
type Media struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	URL       string    `json:"url"`
	CreatedAt time.Time `json:"created_at"`
}
