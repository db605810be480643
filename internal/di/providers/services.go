package providers

import (
	"fmt"

	"github.com/samber/do/v2"

	"github.com/unearthedapp/unearthed-server/internal/ai"
	"github.com/unearthedapp/unearthed-server/internal/auth"
	"github.com/unearthedapp/unearthed-server/internal/config"
	"github.com/unearthedapp/unearthed-server/internal/delivery"
	"github.com/unearthedapp/unearthed-server/internal/logger"
	"github.com/unearthedapp/unearthed-server/internal/service"
	"github.com/unearthedapp/unearthed-server/internal/validation"
)

// ProvideValidator provides the request validator.
func ProvideValidator(_ do.Injector) (*validation.Validator, error) {
	return validation.New(), nil
}

// ProvideTokenService provides the PASETO token service.
func ProvideTokenService(i do.Injector) (*auth.TokenService, error) {
	cfg := do.MustInvoke[*config.Config](i)
	key := do.MustInvoke[AuthKey](i)

	tokens, err := auth.NewTokenService(key, cfg.Auth.AccessTokenDuration)
	if err != nil {
		return nil, fmt.Errorf("creating token service: %w", err)
	}
	return tokens, nil
}

// ProvideAuthService provides authentication and credential resolution.
func ProvideAuthService(i do.Injector) (*service.AuthService, error) {
	cfg := do.MustInvoke[*config.Config](i)

	return service.NewAuthService(
		do.MustInvoke[*StoreHandle](i).Store,
		do.MustInvoke[*KVHandle](i).Store,
		do.MustInvoke[*auth.TokenService](i),
		do.MustInvoke[*validation.Validator](i),
		cfg.Cron.Secret,
		do.MustInvoke[*logger.Logger](i).Logger,
	), nil
}

// ProvideAPIKeyService provides API key management.
func ProvideAPIKeyService(i do.Injector) (*service.APIKeyService, error) {
	return service.NewAPIKeyService(
		do.MustInvoke[*StoreHandle](i).Store,
		do.MustInvoke[*KVHandle](i).Store,
		do.MustInvoke[*validation.Validator](i),
		do.MustInvoke[*logger.Logger](i).Logger,
	), nil
}

// ProvideIngestService provides source and quote ingestion.
func ProvideIngestService(i do.Injector) (*service.IngestService, error) {
	return service.NewIngestService(
		do.MustInvoke[*StoreHandle](i).Store,
		do.MustInvoke[*KVHandle](i).Store,
		do.MustInvoke[*SearchIndexHandle](i).Index,
		do.MustInvoke[*validation.Validator](i),
		do.MustInvoke[*logger.Logger](i).Logger,
	), nil
}

// ProvideSourceService provides source reads and updates.
func ProvideSourceService(i do.Injector) (*service.SourceService, error) {
	return service.NewSourceService(
		do.MustInvoke[*StoreHandle](i).Store,
		do.MustInvoke[*KVHandle](i).Store,
		do.MustInvoke[*SearchIndexHandle](i).Index,
		do.MustInvoke[*validation.Validator](i),
		do.MustInvoke[*logger.Logger](i).Logger,
	), nil
}

// ProvideTagService provides tag management.
func ProvideTagService(i do.Injector) (*service.TagService, error) {
	return service.NewTagService(
		do.MustInvoke[*StoreHandle](i).Store,
		do.MustInvoke[*SearchIndexHandle](i).Index,
		do.MustInvoke[*logger.Logger](i).Logger,
	), nil
}

// ProvideReflectionService provides daily reflection selection.
func ProvideReflectionService(i do.Injector) (*service.ReflectionService, error) {
	return service.NewReflectionService(
		do.MustInvoke[*StoreHandle](i).Store,
		do.MustInvoke[*KVHandle](i).Store,
		do.MustInvoke[*logger.Logger](i).Logger,
	), nil
}

// ProvideDeliveryService provides the scheduled email and Capacities fan-out.
func ProvideDeliveryService(i do.Injector) (*service.DeliveryService, error) {
	return service.NewDeliveryService(
		do.MustInvoke[*StoreHandle](i).Store,
		do.MustInvoke[*KVHandle](i).Store,
		do.MustInvoke[*service.ReflectionService](i),
		do.MustInvoke[*delivery.Mailer](i),
		do.MustInvoke[*delivery.CapacitiesClient](i),
		do.MustInvoke[*logger.Logger](i).Logger,
	), nil
}

// ProvideNotionSyncService provides the sharded Notion sync queue.
func ProvideNotionSyncService(i do.Injector) (*service.NotionSyncService, error) {
	return service.NewNotionSyncService(
		do.MustInvoke[*StoreHandle](i).Store,
		do.MustInvoke[*KVHandle](i).Store,
		do.MustInvoke[*delivery.NotionClient](i),
		service.DefaultNotionShards,
		do.MustInvoke[*logger.Logger](i).Logger,
	), nil
}

// ProvideProfileService provides profile settings and integration connections.
func ProvideProfileService(i do.Injector) (*service.ProfileService, error) {
	return service.NewProfileService(
		do.MustInvoke[*StoreHandle](i).Store,
		do.MustInvoke[*KVHandle](i).Store,
		do.MustInvoke[*delivery.NotionClient](i),
		do.MustInvoke[*service.NotionSyncService](i),
		do.MustInvoke[*validation.Validator](i),
		do.MustInvoke[*logger.Logger](i).Logger,
	), nil
}

// ProvideAIService provides the premium AI features.
func ProvideAIService(i do.Injector) (*service.AIService, error) {
	cfg := do.MustInvoke[*config.Config](i)

	return service.NewAIService(
		do.MustInvoke[*StoreHandle](i).Store,
		do.MustInvoke[*ai.Client](i),
		cfg.AI,
		do.MustInvoke[*validation.Validator](i),
		do.MustInvoke[*logger.Logger](i).Logger,
	), nil
}
