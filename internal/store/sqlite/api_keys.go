package sqlite

import (
	"context"
	"database/sql"
	"time"

	"github.com/unearthedapp/unearthed-server/internal/domain"
	"github.com/unearthedapp/unearthed-server/internal/store"
)

const apiKeyColumns = `id, user_id, name, key_hash, created_at, last_used_at`

func scanAPIKey(scanner interface{ Scan(dest ...any) error }) (*domain.APIKey, error) {
	var k domain.APIKey
	var createdAt string
	var lastUsedAt sql.NullString

	err := scanner.Scan(&k.ID, &k.UserID, &k.Name, &k.KeyHash, &createdAt, &lastUsedAt)
	if err != nil {
		return nil, err
	}

	k.CreatedAt, err = parseTime(createdAt)
	if err != nil {
		return nil, err
	}
	if lastUsedAt.Valid {
		t, err := parseTime(lastUsedAt.String)
		if err != nil {
			return nil, err
		}
		k.LastUsedAt = &t
	}
	return &k, nil
}

// CreateAPIKey inserts a new API key row.
func (s *Store) CreateAPIKey(ctx context.Context, k *domain.APIKey) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO api_keys (id, user_id, name, key_hash, created_at)
		VALUES (?, ?, ?, ?, ?)`,
		k.ID, k.UserID, k.Name, k.KeyHash, formatTime(k.CreatedAt),
	)
	return err
}

// ListAPIKeys returns a user's API keys, newest first.
func (s *Store) ListAPIKeys(ctx context.Context, userID string) ([]*domain.APIKey, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+apiKeyColumns+` FROM api_keys WHERE user_id = ? ORDER BY created_at DESC`,
		userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectAPIKeys(rows)
}

// ListAllAPIKeys returns every API key across all users. The identity gate
// scans this set linearly, verifying the presented key against each hash.
func (s *Store) ListAllAPIKeys(ctx context.Context) ([]*domain.APIKey, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT ` + apiKeyColumns + ` FROM api_keys ORDER BY created_at ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectAPIKeys(rows)
}

// DeleteAPIKey removes one of the user's API keys.
// Returns store.ErrNotFound if absent or owned by another user.
func (s *Store) DeleteAPIKey(ctx context.Context, userID, id string) error {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM api_keys WHERE user_id = ? AND id = ?`, userID, id)
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

// TouchAPIKey records that a key was just used.
func (s *Store) TouchAPIKey(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE api_keys SET last_used_at = ? WHERE id = ?`,
		formatTime(time.Now()), id)
	return err
}

func collectAPIKeys(rows *sql.Rows) ([]*domain.APIKey, error) {
	var keys []*domain.APIKey
	for rows.Next() {
		k, err := scanAPIKey(rows)
		if err != nil {
			return nil, err
		}
		keys = append(keys, k)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if keys == nil {
		keys = []*domain.APIKey{}
	}
	return keys, nil
}
