package providers

import (
	"context"
	"net/http"

	"github.com/samber/do/v2"

	"github.com/unearthedapp/unearthed-server/internal/api"
	"github.com/unearthedapp/unearthed-server/internal/config"
	"github.com/unearthedapp/unearthed-server/internal/logger"
	"github.com/unearthedapp/unearthed-server/internal/service"
)

// HTTPServerHandle wraps http.Server with Shutdownable.
type HTTPServerHandle struct {
	*http.Server
	api *api.Server
}

// Shutdown implements do.Shutdownable.
func (h *HTTPServerHandle) Shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	defer h.api.Close()
	return h.Server.Shutdown(ctx)
}

// ProvideHTTPServer wires the services into the API server and starts
// listening.
func ProvideHTTPServer(i do.Injector) (*HTTPServerHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)

	services := api.Services{
		Auth:       do.MustInvoke[*service.AuthService](i),
		APIKeys:    do.MustInvoke[*service.APIKeyService](i),
		Ingest:     do.MustInvoke[*service.IngestService](i),
		Sources:    do.MustInvoke[*service.SourceService](i),
		Tags:       do.MustInvoke[*service.TagService](i),
		Reflection: do.MustInvoke[*service.ReflectionService](i),
		Delivery:   do.MustInvoke[*service.DeliveryService](i),
		NotionSync: do.MustInvoke[*service.NotionSyncService](i),
		Profiles:   do.MustInvoke[*service.ProfileService](i),
		AI:         do.MustInvoke[*service.AIService](i),
	}

	apiServer := api.NewServer(services, do.MustInvoke[*SearchIndexHandle](i).Index, log.Logger)

	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      apiServer,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		log.Info("HTTP server listening", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("HTTP server error", "error", err)
		}
	}()

	return &HTTPServerHandle{Server: server, api: apiServer}, nil
}
