// Package search provides full-text search over quotes and sources using Bleve.
// Results are always scoped to a single user. Encrypted quote notes are never
// indexed; only plaintext highlight content and source metadata go in.
package search

import (
	"github.com/unearthedapp/unearthed-server/internal/domain"
)

// DocType represents the type of document in the unified index.
type DocType string

// Document types for the search index.
const (
	DocTypeQuote  DocType = "quote"
	DocTypeSource DocType = "source"
)

// Document is the unified structure for the Bleve index. Quotes carry their
// source title denormalized so a single query covers both entity kinds.
type Document struct {
	ID     string  `json:"id"`
	Type   DocType `json:"type"`
	UserID string  `json:"user_id"`

	// Quote: highlight content. Source: empty.
	Content string `json:"content,omitempty"`

	// Source title (denormalized onto quote documents).
	Title    string `json:"title,omitempty"`
	Subtitle string `json:"subtitle,omitempty"`
	Author   string `json:"author,omitempty"`

	// SourceID lets quote hits link back to their source.
	SourceID string `json:"source_id,omitempty"`

	Tags []string `json:"tags,omitempty"`

	CreatedAt int64 `json:"created_at"` // Unix millis
}

// ToMap converts the document to a map with lowercase field names so they
// match the index mapping. Bleve would otherwise use Go field names.
func (d *Document) ToMap() map[string]interface{} {
	m := map[string]interface{}{
		"id":         d.ID,
		"type":       string(d.Type),
		"user_id":    d.UserID,
		"created_at": d.CreatedAt,
	}

	if d.Content != "" {
		m["content"] = d.Content
	}
	if d.Title != "" {
		m["title"] = d.Title
	}
	if d.Subtitle != "" {
		m["subtitle"] = d.Subtitle
	}
	if d.Author != "" {
		m["author"] = d.Author
	}
	if d.SourceID != "" {
		m["source_id"] = d.SourceID
	}
	if len(d.Tags) > 0 {
		m["tags"] = d.Tags
	}

	return m
}

// SourceToDocument converts a domain Source to an index document.
func SourceToDocument(src *domain.Source, tags []string) *Document {
	return &Document{
		ID:        src.ID,
		Type:      DocTypeSource,
		UserID:    src.UserID,
		Title:     src.Title,
		Subtitle:  src.Subtitle,
		Author:    src.Author,
		Tags:      tags,
		CreatedAt: src.CreatedAt.UnixMilli(),
	}
}

// QuoteToDocument converts a domain Quote to an index document. The source
// title and author are denormalized in by the caller; the note is deliberately
// absent since it is encrypted at rest.
func QuoteToDocument(q *domain.Quote, sourceTitle, sourceAuthor string) *Document {
	return &Document{
		ID:        q.ID,
		Type:      DocTypeQuote,
		UserID:    q.UserID,
		Content:   q.Content,
		Title:     sourceTitle,
		Author:    sourceAuthor,
		SourceID:  q.SourceID,
		CreatedAt: q.CreatedAt.UnixMilli(),
	}
}
