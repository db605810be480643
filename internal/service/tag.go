package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/unearthedapp/unearthed-server/internal/domain"
	domainerrors "github.com/unearthedapp/unearthed-server/internal/errors"
	"github.com/unearthedapp/unearthed-server/internal/search"
	"github.com/unearthedapp/unearthed-server/internal/store"
	"github.com/unearthedapp/unearthed-server/internal/util"
)

// TagService manages per-user tags over sources. Tag names are normalized to
// slugs, so "Deep Work" and "deep-work" are the same tag.
type TagService struct {
	store  store.Store
	index  *search.Index
	logger *slog.Logger
}

// NewTagService creates a tag service.
func NewTagService(st store.Store, index *search.Index, logger *slog.Logger) *TagService {
	return &TagService{store: st, index: index, logger: logger}
}

// List returns the user's tags.
func (s *TagService) List(ctx context.Context, userID string) ([]*domain.Tag, error) {
	return s.store.ListTags(ctx, userID)
}

// Attach tags a source with the given name, creating the tag on first use.
// Re-attaching an existing tag is a no-op.
func (s *TagService) Attach(ctx context.Context, userID, sourceID, name string) (*domain.Tag, error) {
	slug := util.NormalizeTagSlug(name)
	if slug == "" {
		return nil, domainerrors.Validation("tag name normalizes to nothing")
	}

	source, err := s.store.GetSource(ctx, userID, sourceID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, domainerrors.NotFound("source not found")
		}
		return nil, err
	}

	tag, created, err := s.store.FindOrCreateTag(ctx, userID, slug)
	if err != nil {
		return nil, fmt.Errorf("find or create tag: %w", err)
	}
	if err := s.store.AddTagToSource(ctx, sourceID, tag.ID); err != nil {
		return nil, fmt.Errorf("attach tag: %w", err)
	}

	s.reindex(ctx, source)
	if created {
		s.logger.Info("tag created", "user_id", userID, "slug", slug)
	}
	return tag, nil
}

// Detach removes a tag from a source. The tag itself survives for reuse.
func (s *TagService) Detach(ctx context.Context, userID, sourceID, tagID string) error {
	source, err := s.store.GetSource(ctx, userID, sourceID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domainerrors.NotFound("source not found")
		}
		return err
	}

	if err := s.store.RemoveTagFromSource(ctx, sourceID, tagID); err != nil {
		return fmt.Errorf("detach tag: %w", err)
	}
	s.reindex(ctx, source)
	return nil
}

func (s *TagService) reindex(ctx context.Context, source *domain.Source) {
	if s.index == nil {
		return
	}
	tags, err := s.store.ListTagsForSource(ctx, source.ID)
	if err != nil {
		s.logger.Warn("reindex source: list tags failed", "source_id", source.ID, "error", err)
		return
	}
	slugs := make([]string, 0, len(tags))
	for _, t := range tags {
		slugs = append(slugs, t.Slug)
	}
	if err := s.index.IndexDocument(search.SourceToDocument(source, slugs)); err != nil {
		s.logger.Warn("reindex source failed", "source_id", source.ID, "error", err)
	}
}
