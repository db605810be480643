package search

import (
	"fmt"
	"log/slog"
	"os"
	"sync"

	"github.com/blevesearch/bleve/v2"
)

// Index wraps a Bleve index with domain-specific operations.
//
// Thread safety: all public methods are safe for concurrent use. The mutex
// protects against index corruption during rebuild operations.
type Index struct {
	index  bleve.Index
	path   string
	logger *slog.Logger
	mu     sync.RWMutex
}

// Options configures the search index.
type Options struct {
	IndexPath string       // Directory for index storage
	Logger    *slog.Logger // Logger for operations (stderr text handler if nil)
}

// NewIndex creates or opens a search index at the configured path. A corrupt
// index is removed and recreated empty; ingestion re-populates it over time.
func NewIndex(opts Options) (*Index, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(os.Stderr, nil))
	}

	var index bleve.Index
	var err error

	if _, statErr := os.Stat(opts.IndexPath); statErr == nil {
		index, err = bleve.Open(opts.IndexPath)
		if err != nil {
			logger.Warn("failed to open existing search index, recreating",
				"path", opts.IndexPath,
				"error", err,
			)
			if removeErr := os.RemoveAll(opts.IndexPath); removeErr != nil {
				return nil, fmt.Errorf("remove corrupt index: %w", removeErr)
			}
			index = nil
		}
	}

	if index == nil {
		index, err = bleve.New(opts.IndexPath, buildIndexMapping())
		if err != nil {
			return nil, fmt.Errorf("create index: %w", err)
		}
		logger.Info("created new search index", "path", opts.IndexPath)
	} else {
		logger.Info("opened existing search index", "path", opts.IndexPath)
	}

	return &Index{
		index:  index,
		path:   opts.IndexPath,
		logger: logger,
	}, nil
}

// Close closes the index and releases resources.
func (s *Index) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.index.Close()
}

// IndexDocument indexes a single document.
func (s *Index) IndexDocument(doc *Document) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	// Convert to map so field names match the mapping (lowercase).
	return s.index.Index(doc.ID, doc.ToMap())
}

// IndexDocuments indexes documents in batches. Ingestion can hand over a few
// hundred quotes at once, so batching matters.
func (s *Index) IndexDocuments(docs []*Document) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	const batchSize = 500

	for i := 0; i < len(docs); i += batchSize {
		end := min(i+batchSize, len(docs))

		batch := s.index.NewBatch()
		for _, doc := range docs[i:end] {
			if err := batch.Index(doc.ID, doc.ToMap()); err != nil {
				return fmt.Errorf("batch index %s: %w", doc.ID, err)
			}
		}

		if err := s.index.Batch(batch); err != nil {
			return fmt.Errorf("commit batch %d-%d: %w", i, end, err)
		}
	}

	return nil
}

// DeleteDocument removes a document from the index.
func (s *Index) DeleteDocument(id string) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.index.Delete(id)
}

// DocumentCount returns the total number of indexed documents.
func (s *Index) DocumentCount() (uint64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.index.DocCount()
}

// Rebuild drops the existing index and creates a new one. This acquires an
// exclusive lock and blocks all other operations while it runs.
func (s *Index) Rebuild() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.index.Close(); err != nil {
		return fmt.Errorf("close index: %w", err)
	}

	if err := os.RemoveAll(s.path); err != nil {
		return fmt.Errorf("remove index: %w", err)
	}

	index, err := bleve.New(s.path, buildIndexMapping())
	if err != nil {
		return fmt.Errorf("create index: %w", err)
	}

	s.index = index
	s.logger.Info("rebuilt search index", "path", s.path)

	return nil
}
