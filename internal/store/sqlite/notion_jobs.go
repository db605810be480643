package sqlite

import (
	"context"
	"strings"
	"time"

	"github.com/unearthedapp/unearthed-server/internal/domain"
	"github.com/unearthedapp/unearthed-server/internal/store"
)

const notionJobColumns = `id, user_id, source_id, shard, status, new_connection, created_at, updated_at`

func scanNotionJob(scanner interface{ Scan(dest ...any) error }) (*domain.NotionJob, error) {
	var j domain.NotionJob
	var createdAt, updatedAt string

	err := scanner.Scan(
		&j.ID, &j.UserID, &j.SourceID, &j.Shard, &j.Status, &j.NewConnection,
		&createdAt, &updatedAt,
	)
	if err != nil {
		return nil, err
	}

	j.CreatedAt, err = parseTime(createdAt)
	if err != nil {
		return nil, err
	}
	j.UpdatedAt, err = parseTime(updatedAt)
	if err != nil {
		return nil, err
	}
	return &j, nil
}

// EnqueueNotionJobs inserts queue rows with skip-on-conflict against the
// partial unique index on open jobs: a source that already has a READY or
// PENDING job is not enqueued twice. Returns the number of rows actually
// inserted.
func (s *Store) EnqueueNotionJobs(ctx context.Context, jobs []*domain.NotionJob) (int, error) {
	if len(jobs) == 0 {
		return 0, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	inserted := 0
	for _, batch := range chunk(jobs, insertChunkSize) {
		var sb strings.Builder
		sb.WriteString(`INSERT INTO notion_jobs (` + notionJobColumns + `) VALUES `)
		args := make([]any, 0, len(batch)*8)
		for i, j := range batch {
			if i > 0 {
				sb.WriteString(", ")
			}
			sb.WriteString("(?, ?, ?, ?, ?, ?, ?, ?)")
			args = append(args,
				j.ID, j.UserID, j.SourceID, j.Shard, j.Status, j.NewConnection,
				formatTime(j.CreatedAt), formatTime(j.UpdatedAt),
			)
		}
		sb.WriteString(` ON CONFLICT DO NOTHING`)
		res, err := tx.ExecContext(ctx, sb.String(), args...)
		if err != nil {
			return 0, err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return 0, err
		}
		inserted += int(n)
	}

	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return inserted, nil
}

// ClaimNotionJobs atomically claims up to limit READY or PENDING jobs from
// one shard, flipping READY rows to PENDING. PENDING rows from a previous
// crashed run are re-claimed rather than stranded.
func (s *Store) ClaimNotionJobs(ctx context.Context, shard, limit int) ([]*domain.NotionJob, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	rows, err := tx.QueryContext(ctx, `
		SELECT `+notionJobColumns+` FROM notion_jobs
		WHERE shard = ? AND status IN ('READY', 'PENDING')
		ORDER BY created_at ASC
		LIMIT ?`, shard, limit)
	if err != nil {
		return nil, err
	}
	var jobs []*domain.NotionJob
	for rows.Next() {
		j, err := scanNotionJob(rows)
		if err != nil {
			rows.Close()
			return nil, err
		}
		jobs = append(jobs, j)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	now := formatTime(time.Now())
	for _, j := range jobs {
		if j.Status == domain.NotionJobReady {
			if _, err := tx.ExecContext(ctx,
				`UPDATE notion_jobs SET status = 'PENDING', updated_at = ? WHERE id = ?`,
				now, j.ID); err != nil {
				return nil, err
			}
			j.Status = domain.NotionJobPending
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	if jobs == nil {
		jobs = []*domain.NotionJob{}
	}
	return jobs, nil
}

// CompleteNotionJob marks a job COMPLETE. The row stays behind as a ledger.
func (s *Store) CompleteNotionJob(ctx context.Context, jobID string) error {
	return s.setNotionJobStatus(ctx, jobID, domain.NotionJobComplete)
}

// ReleaseNotionJob returns a claimed job to PENDING after a failed dispatch
// so a later run retries it.
func (s *Store) ReleaseNotionJob(ctx context.Context, jobID string) error {
	return s.setNotionJobStatus(ctx, jobID, domain.NotionJobPending)
}

func (s *Store) setNotionJobStatus(ctx context.Context, jobID string, status domain.NotionJobStatus) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE notion_jobs SET status = ?, updated_at = ? WHERE id = ?`,
		status, formatTime(time.Now()), jobID)
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

// countNotionJobsByShard is a test helper used to verify shard coverage.
func (s *Store) countNotionJobsByShard(ctx context.Context) (map[int]int, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT shard, COUNT(1) FROM notion_jobs GROUP BY shard`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[int]int)
	for rows.Next() {
		var shard, n int
		if err := rows.Scan(&shard, &n); err != nil {
			return nil, err
		}
		counts[shard] = n
	}
	return counts, rows.Err()
}
