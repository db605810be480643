package sqlite

import (
	"context"
	"strings"

	"github.com/unearthedapp/unearthed-server/internal/domain"
)

// CreateMedia bulk-inserts media rows with skip-on-conflict on (user_id, url)
// and returns a URL → media ID map covering every input row, whether it was
// just inserted or already present. Ingestion uses the map to rewrite source
// rows to their media references before the main insert.
func (s *Store) CreateMedia(ctx context.Context, media []*domain.Media) (map[string]string, error) {
	byURL := make(map[string]string, len(media))
	if len(media) == 0 {
		return byURL, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	for _, batch := range chunk(media, insertChunkSize) {
		var sb strings.Builder
		sb.WriteString(`INSERT INTO media (id, user_id, url, created_at) VALUES `)
		args := make([]any, 0, len(batch)*4)
		for i, m := range batch {
			if i > 0 {
				sb.WriteString(", ")
			}
			sb.WriteString("(?, ?, ?, ?)")
			args = append(args, m.ID, m.UserID, m.URL, formatTime(m.CreatedAt))
		}
		sb.WriteString(` ON CONFLICT(user_id, url) DO NOTHING`)
		if _, err := tx.ExecContext(ctx, sb.String(), args...); err != nil {
			return nil, err
		}
	}

	for _, m := range media {
		if _, done := byURL[m.URL]; done {
			continue
		}
		var id string
		err := tx.QueryRowContext(ctx,
			`SELECT id FROM media WHERE user_id = ? AND url = ?`,
			m.UserID, m.URL).Scan(&id)
		if err != nil {
			return nil, err
		}
		byURL[m.URL] = id
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return byURL, nil
}
