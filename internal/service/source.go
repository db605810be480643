package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/unearthedapp/unearthed-server/internal/crypto"
	"github.com/unearthedapp/unearthed-server/internal/domain"
	domainerrors "github.com/unearthedapp/unearthed-server/internal/errors"
	"github.com/unearthedapp/unearthed-server/internal/kv"
	"github.com/unearthedapp/unearthed-server/internal/search"
	"github.com/unearthedapp/unearthed-server/internal/store"
	"github.com/unearthedapp/unearthed-server/internal/validation"
)

// SourceService serves and edits a user's library.
type SourceService struct {
	store     store.Store
	kvStore   *kv.Store
	index     *search.Index
	validator *validation.Validator
	logger    *slog.Logger
}

// NewSourceService creates a source service.
func NewSourceService(st store.Store, kvStore *kv.Store, index *search.Index, validator *validation.Validator, logger *slog.Logger) *SourceService {
	return &SourceService{store: st, kvStore: kvStore, index: index, validator: validator, logger: logger}
}

// List returns every source the user has, ignored ones included.
func (s *SourceService) List(ctx context.Context, userID string) ([]*domain.Source, error) {
	return s.store.ListSources(ctx, userID)
}

// SourceDetail is a source with its quotes and tags.
type SourceDetail struct {
	Source *domain.Source  `json:"source"`
	Quotes []*domain.Quote `json:"quotes"`
	Tags   []*domain.Tag   `json:"tags"`
}

// Get returns one source with its quotes, notes decrypted for display.
func (s *SourceService) Get(ctx context.Context, userID, sourceID string) (*SourceDetail, error) {
	source, err := s.store.GetSource(ctx, userID, sourceID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, domainerrors.NotFound("source not found")
		}
		return nil, err
	}

	quotes, err := s.store.ListQuotesBySource(ctx, userID, sourceID)
	if err != nil {
		return nil, fmt.Errorf("list quotes: %w", err)
	}
	if err := s.decryptNotes(userID, quotes); err != nil {
		return nil, err
	}

	tags, err := s.store.ListTagsForSource(ctx, sourceID)
	if err != nil {
		return nil, fmt.Errorf("list tags: %w", err)
	}

	return &SourceDetail{Source: source, Quotes: quotes, Tags: tags}, nil
}

// UpdateSourceRequest carries editable source fields. Nil pointers leave the
// current value untouched.
type UpdateSourceRequest struct {
	Title    *string `json:"title,omitempty" validate:"omitempty,min=1,max=500"`
	Subtitle *string `json:"subtitle,omitempty" validate:"omitempty,max=500"`
	Author   *string `json:"author,omitempty" validate:"omitempty,max=500"`
	Ignored  *bool   `json:"ignored,omitempty"`
}

// Update edits a source. Flipping Ignored on removes the source and its
// quotes from reflection selection and outbound sync; the rows stay.
func (s *SourceService) Update(ctx context.Context, userID, sourceID string, req UpdateSourceRequest) (*domain.Source, error) {
	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}

	source, err := s.store.GetSource(ctx, userID, sourceID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, domainerrors.NotFound("source not found")
		}
		return nil, err
	}

	if req.Title != nil {
		source.Title = *req.Title
	}
	if req.Subtitle != nil {
		source.Subtitle = *req.Subtitle
	}
	if req.Author != nil {
		source.Author = *req.Author
	}
	if req.Ignored != nil {
		source.Ignored = *req.Ignored
	}
	source.Touch()

	if err := s.store.UpdateSource(ctx, source); err != nil {
		if errors.Is(err, store.ErrAlreadyExists) {
			return nil, domainerrors.Conflict("another source already has this title")
		}
		return nil, fmt.Errorf("update source: %w", err)
	}

	s.reindex(ctx, source)
	return source, nil
}

func (s *SourceService) decryptNotes(userID string, quotes []*domain.Quote) error {
	var encKey []byte
	for _, q := range quotes {
		if q.NoteEnc == "" {
			continue
		}
		if encKey == nil {
			var err error
			encKey, err = s.kvStore.EncryptionKey(userID)
			if err != nil {
				if errors.Is(err, kv.ErrNotFound) {
					return domainerrors.Configuration("no encryption key provisioned for user")
				}
				return fmt.Errorf("load encryption key: %w", err)
			}
		}
		note, err := crypto.Decrypt(q.NoteEnc, encKey)
		if err != nil {
			return domainerrors.Wrap(err, domainerrors.CodeInternal, "decrypt note")
		}
		q.Note = note
	}
	return nil
}

func (s *SourceService) reindex(ctx context.Context, source *domain.Source) {
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
