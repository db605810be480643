package providers

import (
	"fmt"

	"github.com/samber/do/v2"

	"github.com/unearthedapp/unearthed-server/internal/config"
	"github.com/unearthedapp/unearthed-server/internal/kv"
	"github.com/unearthedapp/unearthed-server/internal/logger"
	"github.com/unearthedapp/unearthed-server/internal/store"
	"github.com/unearthedapp/unearthed-server/internal/store/sqlite"
)

// StoreHandle wraps the relational store with do.Shutdownable.
type StoreHandle struct {
	store.Store
}

// Shutdown implements do.Shutdownable.
func (h *StoreHandle) Shutdown() error {
	return h.Store.Close()
}

// ProvideStore opens the sqlite store.
func ProvideStore(i do.Injector) (*StoreHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)

	st, err := sqlite.Open(cfg.Data.DatabasePath, log.Logger)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	return &StoreHandle{Store: st}, nil
}

// KVHandle wraps the badger store with do.Shutdownable.
type KVHandle struct {
	*kv.Store
}

// Shutdown implements do.Shutdownable.
func (h *KVHandle) Shutdown() error {
	return h.Store.Close()
}

// ProvideKV opens the badger key-value store.
func ProvideKV(i do.Injector) (*KVHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)

	kvStore, err := kv.Open(cfg.Data.KVPath, log.Logger)
	if err != nil {
		return nil, fmt.Errorf("opening kv store: %w", err)
	}
	return &KVHandle{Store: kvStore}, nil
}
