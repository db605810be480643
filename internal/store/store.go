// Package store defines the persistence interface and sentinel errors for the
// Unearthed server. The concrete implementation lives in store/sqlite.
package store

import (
	"context"
	"errors"

	"github.com/unearthedapp/unearthed-server/internal/domain"
)

// Sentinel errors returned by store implementations.
var (
	// ErrNotFound is returned when a requested entity does not exist.
	ErrNotFound = errors.New("store: not found")
	// ErrAlreadyExists is returned when a unique constraint is violated by
	// an operation that does not use skip-on-conflict semantics.
	ErrAlreadyExists = errors.New("store: already exists")
)

// BatchResult partitions a bulk insert into newly created rows and the
// canonical stored form of rows that already existed. Both slices reflect
// server state re-queried after the insert, never the caller's input.
type BatchResult[T any] struct {
	Inserted []T
	Existing []T
}

// Store is the persistence contract consumed by the service layer.
//
// All cross-cutting invariants (one DailyQuote per user+day, one Source per
// user+title, one Quote per natural key) are enforced here by database
// uniqueness constraints, not by callers.
type Store interface {
	// Users
	CreateUser(ctx context.Context, user *domain.User) error
	GetUser(ctx context.Context, id string) (*domain.User, error)
	GetUserByEmail(ctx context.Context, email string) (*domain.User, error)

	// Profiles
	CreateProfile(ctx context.Context, profile *domain.Profile) error
	GetProfile(ctx context.Context, userID string) (*domain.Profile, error)
	UpdateProfile(ctx context.Context, profile *domain.Profile) error
	ListDailyEmailProfiles(ctx context.Context) ([]*domain.Profile, error)
	ListCapacitiesProfiles(ctx context.Context) ([]*domain.Profile, error)
	ListNotionProfiles(ctx context.Context) ([]*domain.Profile, error)

	// Sources
	CreateSources(ctx context.Context, sources []*domain.Source) (*BatchResult[*domain.Source], error)
	GetSource(ctx context.Context, userID, id string) (*domain.Source, error)
	ListSources(ctx context.Context, userID string) ([]*domain.Source, error)
	UpdateSource(ctx context.Context, source *domain.Source) error
	ListNotionEligibleSources(ctx context.Context) ([]*domain.Source, error)

	// Media
	CreateMedia(ctx context.Context, media []*domain.Media) (map[string]string, error)

	// Quotes
	CreateQuotes(ctx context.Context, quotes []*domain.Quote) (*BatchResult[*domain.Quote], error)
	GetQuote(ctx context.Context, userID, id string) (*domain.Quote, error)
	ListQuotesBySource(ctx context.Context, userID, sourceID string) ([]*domain.Quote, error)
	ListActiveQuotes(ctx context.Context, userID string) ([]*domain.Quote, error)

	// Daily reflections
	GetDailyQuote(ctx context.Context, userID, day string) (*domain.DailyQuote, error)
	CreateDailyQuote(ctx context.Context, dq *domain.DailyQuote) error
	HasDailyQuote(ctx context.Context, userID, day string) (bool, error)

	// Tags
	FindOrCreateTag(ctx context.Context, userID, slug string) (*domain.Tag, bool, error)
	ListTags(ctx context.Context, userID string) ([]*domain.Tag, error)
	AddTagToSource(ctx context.Context, sourceID, tagID string) error
	RemoveTagFromSource(ctx context.Context, sourceID, tagID string) error
	ListTagsForSource(ctx context.Context, sourceID string) ([]*domain.Tag, error)

	// API keys
	CreateAPIKey(ctx context.Context, key *domain.APIKey) error
	ListAPIKeys(ctx context.Context, userID string) ([]*domain.APIKey, error)
	ListAllAPIKeys(ctx context.Context) ([]*domain.APIKey, error)
	DeleteAPIKey(ctx context.Context, userID, id string) error
	TouchAPIKey(ctx context.Context, id string) error

	// Notion job queue
	EnqueueNotionJobs(ctx context.Context, jobs []*domain.NotionJob) (int, error)
	ClaimNotionJobs(ctx context.Context, shard, limit int) ([]*domain.NotionJob, error)
	CompleteNotionJob(ctx context.Context, jobID string) error
	ReleaseNotionJob(ctx context.Context, jobID string) error

	Close() error
}
