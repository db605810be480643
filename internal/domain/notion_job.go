package domain

import "time"

// NotionJobStatus is the lifecycle of a queued Notion sync job.
type NotionJobStatus string

// Job statuses. Rows are never deleted; COMPLETE rows act as a ledger.
const (
	NotionJobReady    NotionJobStatus = "READY"
	NotionJobPending  NotionJobStatus = "PENDING"
	NotionJobComplete NotionJobStatus = "COMPLETE"
)

// NotionJob is a queue row recording a source that needs syncing to Notion.
// Jobs are partitioned across a fixed number of shards so each scheduled
// consumer run stays under the execution-time ceiling; shard assignment is
// round-robin and has no meaning beyond load distribution.
type NotionJob struct {
	ID       string          `json:"id"`
	UserID   string          `json:"user_id"`
	SourceID string          `json:"source_id"`
	Shard    int             `json:"shard"`
	Status   NotionJobStatus `json:"status"`

	// NewConnection marks jobs enqueued right after a (re)connect: the
	// source has no Notion page yet and needs an add rather than an update.
	NewConnection bool `json:"new_connection"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
