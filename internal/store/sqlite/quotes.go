package sqlite

import (
	"context"
	"database/sql"
	"strings"

	"github.com/unearthedapp/unearthed-server/internal/domain"
	"github.com/unearthedapp/unearthed-server/internal/store"
)

const quoteColumns = `id, user_id, source_id, content, note_enc, location, color, created_at, updated_at`

func scanQuote(scanner interface{ Scan(dest ...any) error }) (*domain.Quote, error) {
	var q domain.Quote
	var createdAt, updatedAt string

	err := scanner.Scan(
		&q.ID,
		&q.UserID,
		&q.SourceID,
		&q.Content,
		&q.NoteEnc,
		&q.Location,
		&q.Color,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		return nil, err
	}

	q.CreatedAt, err = parseTime(createdAt)
	if err != nil {
		return nil, err
	}
	q.UpdatedAt, err = parseTime(updatedAt)
	if err != nil {
		return nil, err
	}
	return &q, nil
}

// CreateQuotes bulk-inserts quotes with skip-on-conflict semantics on the
// natural key (user_id, source_id, content, location). Inserts are chunked
// (imports can run to hundreds of rows) inside a single transaction, so a
// failure anywhere rolls back the entire submission.
func (s *Store) CreateQuotes(ctx context.Context, quotes []*domain.Quote) (*store.BatchResult[*domain.Quote], error) {
	result := &store.BatchResult[*domain.Quote]{
		Inserted: []*domain.Quote{},
		Existing: []*domain.Quote{},
	}
	if len(quotes) == 0 {
		return result, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	ourIDs := make(map[string]bool, len(quotes))
	for _, q := range quotes {
		ourIDs[q.ID] = true
	}

	for _, batch := range chunk(quotes, insertChunkSize) {
		var sb strings.Builder
		sb.WriteString(`INSERT INTO quotes (` + quoteColumns + `) VALUES `)
		args := make([]any, 0, len(batch)*9)
		for i, q := range batch {
			if i > 0 {
				sb.WriteString(", ")
			}
			sb.WriteString("(?, ?, ?, ?, ?, ?, ?, ?, ?)")
			args = append(args,
				q.ID, q.UserID, q.SourceID, q.Content, q.NoteEnc,
				q.Location, q.Color, formatTime(q.CreatedAt), formatTime(q.UpdatedAt),
			)
		}
		sb.WriteString(` ON CONFLICT(user_id, source_id, content, location) DO NOTHING`)
		if _, err := tx.ExecContext(ctx, sb.String(), args...); err != nil {
			return nil, err
		}
	}

	seen := make(map[string]bool, len(quotes))
	for _, q := range quotes {
		row := tx.QueryRowContext(ctx,
			`SELECT `+quoteColumns+` FROM quotes
			 WHERE user_id = ? AND source_id = ? AND content = ? AND location = ?`,
			q.UserID, q.SourceID, q.Content, q.Location)
		stored, err := scanQuote(row)
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

// GetQuote retrieves one of the user's quotes by ID.
// Returns store.ErrNotFound if absent or owned by another user.
func (s *Store) GetQuote(ctx context.Context, userID, id string) (*domain.Quote, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+quoteColumns+` FROM quotes WHERE user_id = ? AND id = ?`, userID, id)

	q, err := scanQuote(row)
	if err == sql.ErrNoRows {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return q, nil
}

// ListQuotesBySource returns a user's quotes for one source, oldest first.
func (s *Store) ListQuotesBySource(ctx context.Context, userID, sourceID string) ([]*domain.Quote, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+quoteColumns+` FROM quotes
		 WHERE user_id = ? AND source_id = ?
		 ORDER BY created_at ASC, id ASC`, userID, sourceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectQuotes(rows)
}

// ListActiveQuotes returns all of a user's quotes whose source is not
// ignored, the daily reflection candidate set.
func (s *Store) ListActiveQuotes(ctx context.Context, userID string) ([]*domain.Quote, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT q.id, q.user_id, q.source_id, q.content, q.note_enc, q.location, q.color, q.created_at, q.updated_at
		FROM quotes q
		JOIN sources s ON s.id = q.source_id
		WHERE q.user_id = ? AND s.ignored = 0
		ORDER BY q.id`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectQuotes(rows)
}

func collectQuotes(rows *sql.Rows) ([]*domain.Quote, error) {
	var quotes []*domain.Quote
	for rows.Next() {
		q, err := scanQuote(rows)
		if err != nil {
			return nil, err
		}
		quotes = append(quotes, q)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if quotes == nil {
		quotes = []*domain.Quote{}
	}
	return quotes, nil
}
