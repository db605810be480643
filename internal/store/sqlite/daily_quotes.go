package sqlite

import (
	"context"
	"database/sql"

	"github.com/unearthedapp/unearthed-server/internal/domain"
	"github.com/unearthedapp/unearthed-server/internal/store"
)

const dailyQuoteColumns = `id, user_id, day, quote_id, created_at`

func scanDailyQuote(scanner interface{ Scan(dest ...any) error }) (*domain.DailyQuote, error) {
	var dq domain.DailyQuote
	var createdAt string

	err := scanner.Scan(&dq.ID, &dq.UserID, &dq.Day, &dq.QuoteID, &createdAt)
	if err != nil {
		return nil, err
	}
	dq.CreatedAt, err = parseTime(createdAt)
	if err != nil {
		return nil, err
	}
	return &dq, nil
}

// GetDailyQuote retrieves the reflection pointer for (userID, day).
// Returns store.ErrNotFound if no reflection has been selected yet.
func (s *Store) GetDailyQuote(ctx context.Context, userID, day string) (*domain.DailyQuote, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+dailyQuoteColumns+` FROM daily_quotes WHERE user_id = ? AND day = ?`,
		userID, day)

	dq, err := scanDailyQuote(row)
	if err == sql.ErrNoRows {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return dq, nil
}

// CreateDailyQuote inserts a reflection pointer with skip-on-conflict on
// (user_id, day). This is the concurrency guard for the once-per-day
// invariant: when two callers race, only the first insert lands and the
// second is silently ignored. Callers must re-read after inserting to learn
// the persisted winner; no error is returned on conflict.
func (s *Store) CreateDailyQuote(ctx context.Context, dq *domain.DailyQuote) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO daily_quotes (`+dailyQuoteColumns+`)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(user_id, day) DO NOTHING`,
		dq.ID, dq.UserID, dq.Day, dq.QuoteID, formatTime(dq.CreatedAt),
	)
	return err
}

// HasDailyQuote reports whether a reflection already exists for (userID, day).
func (s *Store) HasDailyQuote(ctx context.Context, userID, day string) (bool, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(1) FROM daily_quotes WHERE user_id = ? AND day = ?`,
		userID, day).Scan(&n)
	if err != nil {
		return false, err
	}
	return n > 0, nil
}
