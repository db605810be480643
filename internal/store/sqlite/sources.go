package sqlite

import (
	"context"
	"database/sql"
	"strings"

	"github.com/unearthedapp/unearthed-server/internal/domain"
	"github.com/unearthedapp/unearthed-server/internal/store"
)

const sourceColumns = `id, user_id, title, subtitle, author, type, origin, ignored, media_id, created_at, updated_at`

func scanSource(scanner interface{ Scan(dest ...any) error }) (*domain.Source, error) {
	var src domain.Source
	var mediaID sql.NullString
	var createdAt, updatedAt string

	err := scanner.Scan(
		&src.ID,
		&src.UserID,
		&src.Title,
		&src.Subtitle,
		&src.Author,
		&src.Type,
		&src.Origin,
		&src.Ignored,
		&mediaID,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		return nil, err
	}

	src.MediaID = mediaID.String
	src.CreatedAt, err = parseTime(createdAt)
	if err != nil {
		return nil, err
	}
	src.UpdatedAt, err = parseTime(updatedAt)
	if err != nil {
		return nil, err
	}
	return &src, nil
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// CreateSources bulk-inserts sources with skip-on-conflict semantics on
// (user_id, title). The whole batch runs in one transaction; the returned
// partition is re-queried after the insert so both slices reflect final
// store state, including server-assigned fields on pre-existing rows.
func (s *Store) CreateSources(ctx context.Context, sources []*domain.Source) (*store.BatchResult[*domain.Source], error) {
	result := &store.BatchResult[*domain.Source]{
		Inserted: []*domain.Source{},
		Existing: []*domain.Source{},
	}
	if len(sources) == 0 {
		return result, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	ourIDs := make(map[string]bool, len(sources))
	for _, src := range sources {
		ourIDs[src.ID] = true
	}

	for _, batch := range chunk(sources, insertChunkSize) {
		var sb strings.Builder
		sb.WriteString(`INSERT INTO sources (` + sourceColumns + `) VALUES `)
		args := make([]any, 0, len(batch)*11)
		for i, src := range batch {
			if i > 0 {
				sb.WriteString(", ")
			}
			sb.WriteString("(?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)")
			args = append(args,
				src.ID, src.UserID, src.Title, src.Subtitle, src.Author,
				src.Type, src.Origin, src.Ignored, nullable(src.MediaID),
				formatTime(src.CreatedAt), formatTime(src.UpdatedAt),
			)
		}
		sb.WriteString(` ON CONFLICT(user_id, title) DO NOTHING`)
		if _, err := tx.ExecContext(ctx, sb.String(), args...); err != nil {
			return nil, err
		}
	}

	// Resolve every input row to its canonical stored form. Duplicate titles
	// within one batch resolve to the same stored row; report them once.
	seen := make(map[string]bool, len(sources))
	for _, src := range sources {
		row := tx.QueryRowContext(ctx,
			`SELECT `+sourceColumns+` FROM sources WHERE user_id = ? AND title = ?`,
			src.UserID, src.Title)
		stored, err := scanSource(row)
		if err != nil {
			return nil, err
		}
		if seen[stored.ID] {
			continue
		}
		seen[stored.ID] = true
		if ourIDs[stored.ID] {
			result.Inserted = append(result.Inserted, stored)
		} else {
			result.Existing = append(result.Existing, stored)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return result, nil
}

// GetSource retrieves one of the user's sources by ID.
// Returns store.ErrNotFound if absent or owned by another user.
func (s *Store) GetSource(ctx context.Context, userID, id string) (*domain.Source, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+sourceColumns+` FROM sources WHERE user_id = ? AND id = ?`, userID, id)

	src, err := scanSource(row)
	if err == sql.ErrNoRows {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return src, nil
}

// ListSources returns all of a user's sources ordered by title.
func (s *Store) ListSources(ctx context.Context, userID string) ([]*domain.Source, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+sourceColumns+` FROM sources WHERE user_id = ? ORDER BY title ASC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectSources(rows)
}

// UpdateSource persists mutable source fields (manual edit, ignore toggle).
func (s *Store) UpdateSource(ctx context.Context, src *domain.Source) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE sources SET
			title = ?, subtitle = ?, author = ?, type = ?, ignored = ?, media_id = ?, updated_at = ?
		WHERE user_id = ? AND id = ?`,
		src.Title, src.Subtitle, src.Author, src.Type, src.Ignored,
		nullable(src.MediaID), formatTime(src.UpdatedAt),
		src.UserID, src.ID,
	)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return store.ErrAlreadyExists
		}
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

// ListNotionEligibleSources returns all non-ignored sources whose owner has a
// Notion connection configured, across all users.
func (s *Store) ListNotionEligibleSources(ctx context.Context) ([]*domain.Source, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT s.id, s.user_id, s.title, s.subtitle, s.author, s.type, s.origin,
		       s.ignored, s.media_id, s.created_at, s.updated_at
		FROM sources s
		JOIN profiles p ON p.user_id = s.user_id
		WHERE s.ignored = 0
		  AND p.notion_auth_enc != ''
		  AND p.notion_database_id != ''
		ORDER BY s.id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectSources(rows)
}

func collectSources(rows *sql.Rows) ([]*domain.Source, error) {
	var sources []*domain.Source
	for rows.Next() {
		src, err := scanSource(rows)
		if err != nil {
			return nil, err
		}
		sources = append(sources, src)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if sources == nil {
		sources = []*domain.Source{}
	}
	return sources, nil
}
