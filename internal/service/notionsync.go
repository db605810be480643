package service

import (
	"context"
	"encoding/json/v2"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/unearthedapp/unearthed-server/internal/crypto"
	"github.com/unearthedapp/unearthed-server/internal/delivery"
	"github.com/unearthedapp/unearthed-server/internal/domain"
	"github.com/unearthedapp/unearthed-server/internal/id"
	"github.com/unearthedapp/unearthed-server/internal/kv"
	"github.com/unearthedapp/unearthed-server/internal/store"
	"github.com/unearthedapp/unearthed-server/internal/util"
)

// Notion sync defaults. Each consumer invocation handles one shard and at
// most claimLimit jobs, keeping a single run well under the scheduler's
// execution ceiling.
const (
	DefaultNotionShards = 6
	notionClaimLimit    = 2
)

// NotionAPI is the subset of the Notion client the sync consumer needs.
type NotionAPI interface {
	FindPageBySourceTitle(ctx context.Context, token, databaseID, title string) (string, error)
	CreateSourcePage(ctx context.Context, token, databaseID string, page delivery.SourcePage) (string, error)
	UpdateSourcePage(ctx context.Context, token, pageID string, page delivery.SourcePage) error
}

// NotionSyncService runs the sharded Notion sync queue: a producer that
// enqueues eligible sources round-robin across shards, and a consumer that
// drains one shard per invocation.
type NotionSyncService struct {
	store   store.Store
	kvStore *kv.Store
	notion  NotionAPI
	shards  int
	logger  *slog.Logger
}

// NewNotionSyncService creates a Notion sync service.
func NewNotionSyncService(st store.Store, kvStore *kv.Store, notion NotionAPI, shards int, logger *slog.Logger) *NotionSyncService {
	if shards < 1 {
		shards = DefaultNotionShards
	}
	return &NotionSyncService{store: st, kvStore: kvStore, notion: notion, shards: shards, logger: logger}
}

// Shards returns the configured shard count.
func (s *NotionSyncService) Shards() int {
	return s.shards
}

// EnqueueReport summarizes one producer run.
type EnqueueReport struct {
	Eligible int `json:"eligible"`
	Enqueued int `json:"enqueued"`
}

// Enqueue is the producer: every non-ignored source of every Notion-connected
// profile gets a job row, assigned to shards round-robin. Sources with an
// open job already queued are skipped by the store, so repeated producer runs
// never double-book a source.
func (s *NotionSyncService) Enqueue(ctx context.Context) (*EnqueueReport, error) {
	sources, err := s.store.ListNotionEligibleSources(ctx)
	if err != nil {
		return nil, fmt.Errorf("list eligible sources: %w", err)
	}

	jobs, err := s.buildJobs(sources, false)
	if err != nil {
		return nil, err
	}
	enqueued, err := s.store.EnqueueNotionJobs(ctx, jobs)
	if err != nil {
		return nil, fmt.Errorf("enqueue jobs: %w", err)
	}

	s.logger.Info("notion producer run complete", "eligible", len(sources), "enqueued", enqueued)
	return &EnqueueReport{Eligible: len(sources), Enqueued: enqueued}, nil
}

// EnqueueForUser queues all of one user's non-ignored sources, marking the
// jobs as new-connection work. Used right after a (re)connect, when pages
// must be created rather than updated.
func (s *NotionSyncService) EnqueueForUser(ctx context.Context, userID string) (int, error) {
	sources, err := s.store.ListSources(ctx, userID)
	if err != nil {
		return 0, fmt.Errorf("list sources: %w", err)
	}
	active := make([]*domain.Source, 0, len(sources))
	for _, src := range sources {
		if !src.Ignored {
			active = append(active, src)
		}
	}

	jobs, err := s.buildJobs(active, true)
	if err != nil {
		return 0, err
	}
	return s.store.EnqueueNotionJobs(ctx, jobs)
}

func (s *NotionSyncService) buildJobs(sources []*domain.Source, newConnection bool) ([]*domain.NotionJob, error) {
	shards := util.AssignShards(len(sources), s.shards)
	now := time.Now()
	jobs := make([]*domain.NotionJob, 0, len(sources))
	for i, src := range sources {
		jobID, err := id.Generate(id.PrefixJob)
		if err != nil {
			return nil, fmt.Errorf("generate job ID: %w", err)
		}
		jobs = append(jobs, &domain.NotionJob{
			ID:            jobID,
			UserID:        src.UserID,
			SourceID:      src.ID,
			Shard:         shards[i],
			Status:        domain.NotionJobReady,
			NewConnection: newConnection,
			CreatedAt:     now,
			UpdatedAt:     now,
		})
	}
	return jobs, nil
}

// RunShard is the consumer for one shard: claim up to the per-run limit,
// sync each source, mark it complete. A failed job is logged and left
// PENDING; the next run for this shard re-claims it.
func (s *NotionSyncService) RunShard(ctx context.Context, shard int) (*RunReport, error) {
	if shard < 0 || shard >= s.shards {
		return nil, fmt.Errorf("shard %d out of range [0,%d)", shard, s.shards)
	}

	jobs, err := s.store.ClaimNotionJobs(ctx, shard, notionClaimLimit)
	if err != nil {
		return nil, fmt.Errorf("claim jobs: %w", err)
	}

	report := &RunReport{}
	for _, job := range jobs {
		report.Processed++
		if err := s.syncJob(ctx, job); err != nil {
			report.Failed++
			s.logger.Error("notion sync failed", "job_id", job.ID, "source_id", job.SourceID, "error", err)
			continue
		}
		if err := s.store.CompleteNotionJob(ctx, job.ID); err != nil {
			report.Failed++
			s.logger.Error("complete notion job failed", "job_id", job.ID, "error", err)
			continue
		}
		report.Delivered++
	}

	s.logger.Info("notion consumer run complete",
		"shard", shard,
		"processed", report.Processed,
		"delivered", report.Delivered,
		"failed", report.Failed,
	)
	return report, nil
}

func (s *NotionSyncService) syncJob(ctx context.Context, job *domain.NotionJob) error {
	profile, err := s.store.GetProfile(ctx, job.UserID)
	if err != nil {
		return fmt.Errorf("load profile: %w", err)
	}
	if !profile.HasNotion() {
		return fmt.Errorf("profile has no notion connection")
	}

	token, err := s.decryptNotionToken(profile)
	if err != nil {
		return err
	}

	source, err := s.store.GetSource(ctx, job.UserID, job.SourceID)
	if err != nil {
		return fmt.Errorf("load source: %w", err)
	}
	page, err := s.buildPage(ctx, job.UserID, source)
	if err != nil {
		return err
	}

	if job.NewConnection {
		_, err := s.notion.CreateSourcePage(ctx, token, profile.NotionDatabaseID, *page)
		return err
	}

	pageID, err := s.notion.FindPageBySourceTitle(ctx, token, profile.NotionDatabaseID, source.Title)
	if err != nil {
		return err
	}
	if pageID == "" {
		_, err := s.notion.CreateSourcePage(ctx, token, profile.NotionDatabaseID, *page)
		return err
	}
	return s.notion.UpdateSourcePage(ctx, token, pageID, *page)
}

func (s *NotionSyncService) buildPage(ctx context.Context, userID string, source *domain.Source) (*delivery.SourcePage, error) {
	quotes, err := s.store.ListQuotesBySource(ctx, userID, source.ID)
	if err != nil {
		return nil, fmt.Errorf("list quotes: %w", err)
	}

	var encKey []byte
	page := &delivery.SourcePage{Title: source.Title, Author: source.Author}
	for _, q := range quotes {
		note := ""
		if q.NoteEnc != "" {
			if encKey == nil {
				encKey, err = s.kvStore.EncryptionKey(userID)
				if err != nil {
					return nil, fmt.Errorf("load encryption key: %w", err)
				}
			}
			note, err = crypto.Decrypt(q.NoteEnc, encKey)
			if err != nil {
				return nil, fmt.Errorf("decrypt note: %w", err)
			}
		}
		page.Quotes = append(page.Quotes, delivery.PageQuote{Content: q.Content, Note: note})
	}
	return page, nil
}

func (s *NotionSyncService) decryptNotionToken(profile *domain.Profile) (string, error) {
	encKey, err := s.kvStore.EncryptionKey(profile.UserID)
	if err != nil {
		if errors.Is(err, kv.ErrNotFound) {
			return "", fmt.Errorf("no encryption key provisioned")
		}
		return "", fmt.Errorf("load encryption key: %w", err)
	}
	blob, err := crypto.Decrypt(profile.NotionAuthEnc, encKey)
	if err != nil {
		return "", fmt.Errorf("decrypt notion auth: %w", err)
	}

	var token delivery.OAuthToken
	if err := json.Unmarshal([]byte(blob), &token); err != nil {
		return "", fmt.Errorf("decode notion auth: %w", err)
	}
	if token.AccessToken == "" {
		return "", fmt.Errorf("notion auth has no access token")
	}
	return token.AccessToken, nil
}
