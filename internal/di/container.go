// Package di provides dependency injection configuration for the Unearthed server.
package di

import (
	"github.com/samber/do/v2"

	"github.com/unearthedapp/unearthed-server/internal/auth"
	"github.com/unearthedapp/unearthed-server/internal/config"
	"github.com/unearthedapp/unearthed-server/internal/di/providers"
	"github.com/unearthedapp/unearthed-server/internal/logger"
	"github.com/unearthedapp/unearthed-server/internal/service"
)

// NewContainer creates and configures the DI container with all providers.
func NewContainer() *do.RootScope {
	injector := do.New()

	// Core infrastructure
	do.Provide(injector, providers.ProvideConfig)
	do.Provide(injector, providers.ProvideLogger)
	do.Provide(injector, providers.ProvideAuthKey)
	do.Provide(injector, providers.ProvideValidator)

	// Storage layer
	do.Provide(injector, providers.ProvideStore)
	do.Provide(injector, providers.ProvideKV)
	do.Provide(injector, providers.ProvideSearchIndex)

	// Outbound clients
	do.Provide(injector, providers.ProvideMailer)
	do.Provide(injector, providers.ProvideNotionClient)
	do.Provide(injector, providers.ProvideCapacitiesClient)
	do.Provide(injector, providers.ProvideAIClient)

	// Auth layer
	do.Provide(injector, providers.ProvideTokenService)

	// Business services
	do.Provide(injector, providers.ProvideAuthService)
	do.Provide(injector, providers.ProvideAPIKeyService)
	do.Provide(injector, providers.ProvideIngestService)
	do.Provide(injector, providers.ProvideSourceService)
	do.Provide(injector, providers.ProvideTagService)
	do.Provide(injector, providers.ProvideReflectionService)
	do.Provide(injector, providers.ProvideDeliveryService)
	do.Provide(injector, providers.ProvideNotionSyncService)
	do.Provide(injector, providers.ProvideProfileService)
	do.Provide(injector, providers.ProvideAIService)

	// Server
	do.Provide(injector, providers.ProvideHTTPServer)

	return injector
}

// Bootstrap initializes all services. This triggers lazy initialization of
// the full dependency graph, surfacing configuration errors at startup.
func Bootstrap(injector *do.RootScope) error {
	// Infrastructure providers can fail on bad configuration or unusable
	// data directories; surface those as errors rather than panics.
	if _, err := do.Invoke[*config.Config](injector); err != nil {
		return err
	}
	if _, err := do.Invoke[providers.AuthKey](injector); err != nil {
		return err
	}
	if _, err := do.Invoke[*providers.StoreHandle](injector); err != nil {
		return err
	}
	if _, err := do.Invoke[*providers.KVHandle](injector); err != nil {
		return err
	}
	if _, err := do.Invoke[*providers.SearchIndexHandle](injector); err != nil {
		return err
	}
	if _, err := do.Invoke[*auth.TokenService](injector); err != nil {
		return err
	}
	_ = do.MustInvoke[*logger.Logger](injector)

	// Business services
	_ = do.MustInvoke[*service.AuthService](injector)
	_ = do.MustInvoke[*service.APIKeyService](injector)
	_ = do.MustInvoke[*service.IngestService](injector)
	_ = do.MustInvoke[*service.SourceService](injector)
	_ = do.MustInvoke[*service.TagService](injector)
	_ = do.MustInvoke[*service.ReflectionService](injector)
	_ = do.MustInvoke[*service.DeliveryService](injector)
	_ = do.MustInvoke[*service.NotionSyncService](injector)
	_ = do.MustInvoke[*service.ProfileService](injector)
	_ = do.MustInvoke[*service.AIService](injector)

	// Server
	if _, err := do.Invoke[*providers.HTTPServerHandle](injector); err != nil {
		return err
	}

	return nil
}
