package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/unearthedapp/unearthed-server/internal/crypto"
	"github.com/unearthedapp/unearthed-server/internal/domain"
	domainerrors "github.com/unearthedapp/unearthed-server/internal/errors"
	"github.com/unearthedapp/unearthed-server/internal/id"
	"github.com/unearthedapp/unearthed-server/internal/kv"
	"github.com/unearthedapp/unearthed-server/internal/search"
	"github.com/unearthedapp/unearthed-server/internal/store"
	"github.com/unearthedapp/unearthed-server/internal/validation"
)

// IngestService handles deduplicating bulk ingestion of sources and quotes.
// Batches are all-or-nothing on validation: one bad record rejects the whole
// request before anything touches the store.
type IngestService struct {
	store     store.Store
	kvStore   *kv.Store
	index     *search.Index
	validator *validation.Validator
	logger    *slog.Logger
}

// NewIngestService creates an ingestion service.
func NewIngestService(st store.Store, kvStore *kv.Store, index *search.Index, validator *validation.Validator, logger *slog.Logger) *IngestService {
	return &IngestService{store: st, kvStore: kvStore, index: index, validator: validator, logger: logger}
}

// SourceRequest is one source record in an ingestion batch. Callers never
// send IDs or a user; both are stamped server-side.
type SourceRequest struct {
	Title    string `json:"title" validate:"required,max=500"`
	Subtitle string `json:"subtitle,omitempty" validate:"max=500"`
	Author   string `json:"author,omitempty" validate:"max=500"`
	Type     string `json:"type" validate:"required,oneof=BOOK ARTICLE PODCAST"`
	Origin   string `json:"origin" validate:"required,oneof=KINDLE KOREADER NOTION UNEARTHED"`
	MediaURL string `json:"media_url,omitempty" validate:"omitempty,url,max=2000"`
}

// QuoteRequest is one quote record in an ingestion batch.
type QuoteRequest struct {
	SourceID string `json:"source_id" validate:"required"`
	Content  string `json:"content" validate:"required"`
	Note     string `json:"note,omitempty"`
	Location string `json:"location,omitempty" validate:"max=200"`
	Color    string `json:"color,omitempty" validate:"max=50"`
}

// BatchResponse reports an ingestion outcome. Both slices hold canonical
// server rows re-read after the insert, so ExistingRecords reflects what the
// server already had, not what the client sent.
type BatchResponse[T any] struct {
	InsertedRecords []T `json:"insertedRecords"`
	ExistingRecords []T `json:"existingRecords"`
}

// CreateSources ingests a batch of sources. Duplicate titles within the
// user's library (or within the batch itself) collapse into the stored row.
func (s *IngestService) CreateSources(ctx context.Context, userID string, reqs []SourceRequest) (*BatchResponse[*domain.Source], error) {
	if len(reqs) == 0 {
		return nil, domainerrors.Validation("batch is empty")
	}
	items := make([]any, len(reqs))
	for i := range reqs {
		items[i] = reqs[i]
	}
	if err := s.validator.ValidateBatch(items); err != nil {
		return nil, err
	}

	mediaByURL, err := s.createMedia(ctx, userID, reqs)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	sources := make([]*domain.Source, 0, len(reqs))
	for _, req := range reqs {
		sourceID, err := id.Generate(id.PrefixSource)
		if err != nil {
			return nil, fmt.Errorf("generate source ID: %w", err)
		}
		sources = append(sources, &domain.Source{
			ID:        sourceID,
			UserID:    userID,
			Title:     req.Title,
			Subtitle:  req.Subtitle,
			Author:    req.Author,
			Type:      domain.SourceType(req.Type),
			Origin:    domain.SourceOrigin(req.Origin),
			MediaID:   mediaByURL[req.MediaURL],
			CreatedAt: now,
			UpdatedAt: now,
		})
	}

	result, err := s.store.CreateSources(ctx, sources)
	if err != nil {
		return nil, fmt.Errorf("create sources: %w", err)
	}

	s.indexSources(result.Inserted)
	s.logger.Info("sources ingested",
		"user_id", userID,
		"inserted", len(result.Inserted),
		"existing", len(result.Existing),
	)
	return &BatchResponse[*domain.Source]{
		InsertedRecords: result.Inserted,
		ExistingRecords: result.Existing,
	}, nil
}

// CreateQuotes ingests a batch of quotes. Notes are encrypted with the user's
// key before they reach the store; a user without a key cannot ingest notes.
func (s *IngestService) CreateQuotes(ctx context.Context, userID string, reqs []QuoteRequest) (*BatchResponse[*domain.Quote], error) {
	if len(reqs) == 0 {
		return nil, domainerrors.Validation("batch is empty")
	}
	items := make([]any, len(reqs))
	for i := range reqs {
		items[i] = reqs[i]
	}
	if err := s.validator.ValidateBatch(items); err != nil {
		return nil, err
	}
	if err := s.verifySourceOwnership(ctx, userID, reqs); err != nil {
		return nil, err
	}

	encKey, err := s.encryptionKeyIfNeeded(userID, reqs)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	quotes := make([]*domain.Quote, 0, len(reqs))
	for _, req := range reqs {
		quoteID, err := id.Generate(id.PrefixQuote)
		if err != nil {
			return nil, fmt.Errorf("generate quote ID: %w", err)
		}
		noteEnc, err := crypto.Encrypt(req.Note, encKey)
		if err != nil {
			return nil, fmt.Errorf("encrypt note: %w", err)
		}
		quotes = append(quotes, &domain.Quote{
			ID:        quoteID,
			UserID:    userID,
			SourceID:  req.SourceID,
			Content:   req.Content,
			NoteEnc:   noteEnc,
			Location:  req.Location,
			Color:     req.Color,
			CreatedAt: now,
			UpdatedAt: now,
		})
	}

	result, err := s.store.CreateQuotes(ctx, quotes)
	if err != nil {
		return nil, fmt.Errorf("create quotes: %w", err)
	}

	s.indexQuotes(ctx, userID, result.Inserted)
	s.logger.Info("quotes ingested",
		"user_id", userID,
		"inserted", len(result.Inserted),
		"existing", len(result.Existing),
	)
	return &BatchResponse[*domain.Quote]{
		InsertedRecords: result.Inserted,
		ExistingRecords: result.Existing,
	}, nil
}

// verifySourceOwnership rejects a batch referencing any source the user does
// not own. GetSource is user-scoped, so a foreign source and an absent one
// are indistinguishable: both are not found.
func (s *IngestService) verifySourceOwnership(ctx context.Context, userID string, reqs []QuoteRequest) error {
	checked := make(map[string]bool, len(reqs))
	for _, req := range reqs {
		if checked[req.SourceID] {
			continue
		}
		if _, err := s.store.GetSource(ctx, userID, req.SourceID); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return domainerrors.NotFoundf("source %s not found", req.SourceID)
			}
			return fmt.Errorf("load source %s: %w", req.SourceID, err)
		}
		checked[req.SourceID] = true
	}
	return nil
}

// KindleBook is one book with its highlights from a Kindle clippings import.
type KindleBook struct {
	Title  string        `json:"title" validate:"required,max=500"`
	Author string        `json:"author,omitempty" validate:"max=500"`
	Quotes []KindleQuote `json:"quotes" validate:"required,min=1,dive"`
}

// KindleQuote is one highlight inside a KindleBook.
type KindleQuote struct {
	Content  string `json:"content" validate:"required"`
	Note     string `json:"note,omitempty"`
	Location string `json:"location,omitempty" validate:"max=200"`
	Color    string `json:"color,omitempty" validate:"max=50"`
}

// KindleImportResponse summarizes a clippings import.
type KindleImportResponse struct {
	Sources *BatchResponse[*domain.Source] `json:"sources"`
	Quotes  *BatchResponse[*domain.Quote]  `json:"quotes"`
}

// KindleImport ingests parsed Kindle clippings. Type and origin are stamped
// server-side; quotes are attached by title through the source batch result,
// so re-imports land on the existing sources.
func (s *IngestService) KindleImport(ctx context.Context, userID string, books []KindleBook) (*KindleImportResponse, error) {
	if len(books) == 0 {
		return nil, domainerrors.Validation("import is empty")
	}
	items := make([]any, len(books))
	for i := range books {
		items[i] = books[i]
	}
	if err := s.validator.ValidateBatch(items); err != nil {
		return nil, err
	}

	sourceReqs := make([]SourceRequest, 0, len(books))
	for _, book := range books {
		sourceReqs = append(sourceReqs, SourceRequest{
			Title:  book.Title,
			Author: book.Author,
			Type:   string(domain.SourceTypeBook),
			Origin: string(domain.OriginKindle),
		})
	}
	sourceResp, err := s.CreateSources(ctx, userID, sourceReqs)
	if err != nil {
		return nil, err
	}

	idByTitle := make(map[string]string)
	for _, src := range sourceResp.InsertedRecords {
		idByTitle[src.Title] = src.ID
	}
	for _, src := range sourceResp.ExistingRecords {
		idByTitle[src.Title] = src.ID
	}

	quoteReqs := make([]QuoteRequest, 0)
	for _, book := range books {
		sourceID, ok := idByTitle[book.Title]
		if !ok {
			return nil, domainerrors.Internalf("no source resolved for title %q", book.Title)
		}
		for _, q := range book.Quotes {
			quoteReqs = append(quoteReqs, QuoteRequest{
				SourceID: sourceID,
				Content:  q.Content,
				Note:     q.Note,
				Location: q.Location,
				Color:    q.Color,
			})
		}
	}

	quoteResp, err := s.CreateQuotes(ctx, userID, quoteReqs)
	if err != nil {
		return nil, err
	}
	return &KindleImportResponse{Sources: sourceResp, Quotes: quoteResp}, nil
}

// createMedia inserts cover rows for every distinct URL in the batch and
// returns the URL to media ID mapping, reusing rows the user already has.
func (s *IngestService) createMedia(ctx context.Context, userID string, reqs []SourceRequest) (map[string]string, error) {
	seen := make(map[string]bool)
	media := make([]*domain.Media, 0)
	now := time.Now()
	for _, req := range reqs {
		if req.MediaURL == "" || seen[req.MediaURL] {
			continue
		}
		seen[req.MediaURL] = true
		mediaID, err := id.Generate(id.PrefixMedia)
		if err != nil {
			return nil, fmt.Errorf("generate media ID: %w", err)
		}
		media = append(media, &domain.Media{
			ID:        mediaID,
			UserID:    userID,
			URL:       req.MediaURL,
			CreatedAt: now,
		})
	}
	if len(media) == 0 {
		return map[string]string{}, nil
	}

	byURL, err := s.store.CreateMedia(ctx, media)
	if err != nil {
		return nil, fmt.Errorf("create media: %w", err)
	}
	return byURL, nil
}

// encryptionKeyIfNeeded loads the user's key only when the batch carries
// notes. A missing key is a configuration fault, never silent plaintext.
func (s *IngestService) encryptionKeyIfNeeded(userID string, reqs []QuoteRequest) ([]byte, error) {
	hasNote := false
	for _, req := range reqs {
		if req.Note != "" {
			hasNote = true
			break
		}
	}
	if !hasNote {
		return nil, nil
	}

	encKey, err := s.kvStore.EncryptionKey(userID)
	if err != nil {
		if errors.Is(err, kv.ErrNotFound) {
			return nil, domainerrors.Configuration("no encryption key provisioned for user")
		}
		return nil, fmt.Errorf("load encryption key: %w", err)
	}
	return encKey, nil
}

// Indexing is best-effort: a search outage must never fail ingestion.

func (s *IngestService) indexSources(sources []*domain.Source) {
	if s.index == nil || len(sources) == 0 {
		return
	}
	docs := make([]*search.Document, 0, len(sources))
	for _, src := range sources {
		docs = append(docs, search.SourceToDocument(src, nil))
	}
	if err := s.index.IndexDocuments(docs); err != nil {
		s.logger.Warn("index sources failed", "count", len(docs), "error", err)
	}
}

func (s *IngestService) indexQuotes(ctx context.Context, userID string, quotes []*domain.Quote) {
	if s.index == nil || len(quotes) == 0 {
		return
	}
	titles := make(map[string]*domain.Source)
	docs := make([]*search.Document, 0, len(quotes))
	for _, q := range quotes {
		src, ok := titles[q.SourceID]
		if !ok {
			var err error
			src, err = s.store.GetSource(ctx, userID, q.SourceID)
			if err != nil {
				s.logger.Warn("index quote: source lookup failed", "source_id", q.SourceID, "error", err)
				continue
			}
			titles[q.SourceID] = src
		}
		docs = append(docs, search.QuoteToDocument(q, src.Title, src.Author))
	}
	if err := s.index.IndexDocuments(docs); err != nil {
		s.logger.Warn("index quotes failed", "count", len(docs), "error", err)
	}
}
