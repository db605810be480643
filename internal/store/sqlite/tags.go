package sqlite

import (
	"context"
	"database/sql"
	"time"

	"github.com/unearthedapp/unearthed-server/internal/domain"
	"github.com/unearthedapp/unearthed-server/internal/id"
	"github.com/unearthedapp/unearthed-server/internal/store"
)

const tagColumns = `id, user_id, slug, created_at, updated_at`

func scanTag(scanner interface{ Scan(dest ...any) error }) (*domain.Tag, error) {
	var t domain.Tag
	var createdAt, updatedAt string

	err := scanner.Scan(&t.ID, &t.UserID, &t.Slug, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}

	t.CreatedAt, err = parseTime(createdAt)
	if err != nil {
		return nil, err
	}
	t.UpdatedAt, err = parseTime(updatedAt)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// FindOrCreateTag finds a user's tag by slug or creates it.
// Returns (tag, created, error) where created is true if a new tag was made.
func (s *Store) FindOrCreateTag(ctx context.Context, userID, slug string) (*domain.Tag, bool, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+tagColumns+` FROM tags WHERE user_id = ? AND slug = ?`, userID, slug)
	existing, err := scanTag(row)
	if err == nil {
		return existing, false, nil
	}
	if err != sql.ErrNoRows {
		return nil, false, err
	}

	now := time.Now()
	tag := &domain.Tag{
		ID:        id.MustGenerate(id.PrefixTag),
		UserID:    userID,
		Slug:      slug,
		CreatedAt: now,
		UpdatedAt: now,
	}
	// Skip-on-conflict so a concurrent creator wins cleanly; re-read either way.
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO tags (`+tagColumns+`) VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(user_id, slug) DO NOTHING`,
		tag.ID, tag.UserID, tag.Slug, formatTime(now), formatTime(now),
	)
	if err != nil {
		return nil, false, err
	}

	row = s.db.QueryRowContext(ctx,
		`SELECT `+tagColumns+` FROM tags WHERE user_id = ? AND slug = ?`, userID, slug)
	stored, err := scanTag(row)
	if err != nil {
		return nil, false, err
	}
	return stored, stored.ID == tag.ID, nil
}

// ListTags returns all of a user's tags ordered by slug.
func (s *Store) ListTags(ctx context.Context, userID string) ([]*domain.Tag, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+tagColumns+` FROM tags WHERE user_id = ? ORDER BY slug ASC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectTags(rows)
}

// AddTagToSource attaches a tag to a source. Idempotent.
func (s *Store) AddTagToSource(ctx context.Context, sourceID, tagID string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO source_tags (source_id, tag_id, created_at) VALUES (?, ?, ?)
		ON CONFLICT(source_id, tag_id) DO NOTHING`,
		sourceID, tagID, formatTime(time.Now()),
	)
	return err
}

// RemoveTagFromSource detaches a tag from a source.
// Returns store.ErrNotFound if the association does not exist.
func (s *Store) RemoveTagFromSource(ctx context.Context, sourceID, tagID string) error {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM source_tags WHERE source_id = ? AND tag_id = ?`, sourceID, tagID)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return store.ErrNotFound
	}
	return nil
}

// ListTagsForSource returns all tags attached to a source.
func (s *Store) ListTagsForSource(ctx context.Context, sourceID string) ([]*domain.Tag, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT t.id, t.user_id, t.slug, t.created_at, t.updated_at
		FROM tags t
		JOIN source_tags st ON st.tag_id = t.id
		WHERE st.source_id = ?
		ORDER BY t.slug ASC`, sourceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectTags(rows)
}

func collectTags(rows *sql.Rows) ([]*domain.Tag, error) {
	var tags []*domain.Tag
	for rows.Next() {
		t, err := scanTag(rows)
		if err != nil {
			return nil, err
		}
		tags = append(tags, t)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if tags == nil {
		tags = []*domain.Tag{}
	}
	return tags, nil
}
