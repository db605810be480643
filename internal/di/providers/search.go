package providers

import (
	"fmt"

	"github.com/samber/do/v2"

	"github.com/unearthedapp/unearthed-server/internal/config"
	"github.com/unearthedapp/unearthed-server/internal/logger"
	"github.com/unearthedapp/unearthed-server/internal/search"
)

// SearchIndexHandle wraps the bleve index with do.Shutdownable.
type SearchIndexHandle struct {
	*search.Index
}

// Shutdown implements do.Shutdownable.
func (h *SearchIndexHandle) Shutdown() error {
	return h.Index.Close()
}

// ProvideSearchIndex opens or creates the bleve search index.
func ProvideSearchIndex(i do.Injector) (*SearchIndexHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)

	index, err := search.NewIndex(search.Options{
		IndexPath: cfg.Data.SearchIndexPath,
		Logger:    log.Logger,
	})
	if err != nil {
		return nil, fmt.Errorf("opening search index: %w", err)
	}
	return &SearchIndexHandle{Index: index}, nil
}
