package sqlite

import (
	"context"
	"database/sql"

	"github.com/unearthedapp/unearthed-server/internal/domain"
	"github.com/unearthedapp/unearthed-server/internal/store"
)

const profileColumns = `user_id, utc_offset, premium, daily_email_enabled,
	notion_auth_enc, notion_database_id, capacities_api_key_enc, capacities_space_id,
	ai_input_tokens_used, ai_output_tokens_used, created_at, updated_at`

func scanProfile(scanner interface{ Scan(dest ...any) error }) (*domain.Profile, error) {
	var p domain.Profile
	var createdAt, updatedAt string

	err := scanner.Scan(
		&p.UserID,
		&p.UTCOffset,
		&p.Premium,
		&p.DailyEmailEnabled,
		&p.NotionAuthEnc,
		&p.NotionDatabaseID,
		&p.CapacitiesAPIKeyEnc,
		&p.CapacitiesSpaceID,
		&p.AIInputTokensUsed,
		&p.AIOutputTokensUsed,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		return nil, err
	}

	p.CreatedAt, err = parseTime(createdAt)
	if err != nil {
		return nil, err
	}
	p.UpdatedAt, err = parseTime(updatedAt)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// CreateProfile inserts a profile row for a user.
func (s *Store) CreateProfile(ctx context.Context, p *domain.Profile) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO profiles (`+profileColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.UserID,
		p.UTCOffset,
		p.Premium,
		p.DailyEmailEnabled,
		p.NotionAuthEnc,
		p.NotionDatabaseID,
		p.CapacitiesAPIKeyEnc,
		p.CapacitiesSpaceID,
		p.AIInputTokensUsed,
		p.AIOutputTokensUsed,
		formatTime(p.CreatedAt),
		formatTime(p.UpdatedAt),
	)
	return err
}

// GetProfile retrieves a user's profile.
// Returns store.ErrNotFound if the profile does not exist.
func (s *Store) GetProfile(ctx context.Context, userID string) (*domain.Profile, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+profileColumns+` FROM profiles WHERE user_id = ?`, userID)

	p, err := scanProfile(row)
	if err == sql.ErrNoRows {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return p, nil
}

// UpdateProfile persists all mutable profile fields.
func (s *Store) UpdateProfile(ctx context.Context, p *domain.Profile) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE profiles SET
			utc_offset = ?,
			premium = ?,
			daily_email_enabled = ?,
			notion_auth_enc = ?,
			notion_database_id = ?,
			capacities_api_key_enc = ?,
			capacities_space_id = ?,
			ai_input_tokens_used = ?,
			ai_output_tokens_used = ?,
			updated_at = ?
		WHERE user_id = ?`,
		p.UTCOffset,
		p.Premium,
		p.DailyEmailEnabled,
		p.NotionAuthEnc,
		p.NotionDatabaseID,
		p.CapacitiesAPIKeyEnc,
		p.CapacitiesSpaceID,
		p.AIInputTokensUsed,
		p.AIOutputTokensUsed,
		formatTime(p.UpdatedAt),
		p.UserID,
	)
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

// ListDailyEmailProfiles returns profiles with the daily reflection email enabled.
func (s *Store) ListDailyEmailProfiles(ctx context.Context) ([]*domain.Profile, error) {
	return s.listProfiles(ctx, `daily_email_enabled = 1`)
}

// ListCapacitiesProfiles returns profiles with a Capacities credential and
// space configured. Entitlement is checked by the caller, not here.
func (s *Store) ListCapacitiesProfiles(ctx context.Context) ([]*domain.Profile, error) {
	return s.listProfiles(ctx, `capacities_api_key_enc != '' AND capacities_space_id != ''`)
}

// ListNotionProfiles returns profiles with a Notion connection configured.
func (s *Store) ListNotionProfiles(ctx context.Context) ([]*domain.Profile, error) {
	return s.listProfiles(ctx, `notion_auth_enc != '' AND notion_database_id != ''`)
}

func (s *Store) listProfiles(ctx context.Context, where string) ([]*domain.Profile, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+profileColumns+` FROM profiles WHERE `+where+` ORDER BY user_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var profiles []*domain.Profile
	for rows.Next() {
		p, err := scanProfile(rows)
		if err != nil {
			return nil, err
		}
		profiles = append(profiles, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if profiles == nil {
		profiles = []*domain.Profile{}
	}
	return profiles, nil
}
