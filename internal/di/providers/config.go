package providers

import (
	"fmt"

	"github.com/samber/do/v2"

	"github.com/unearthedapp/unearthed-server/internal/auth"
	"github.com/unearthedapp/unearthed-server/internal/config"
	"github.com/unearthedapp/unearthed-server/internal/logger"
)

// ProvideConfig loads and validates the application configuration.
func ProvideConfig(_ do.Injector) (*config.Config, error) {
	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}
	return cfg, nil
}

// ProvideLogger provides the application logger.
func ProvideLogger(i do.Injector) (*logger.Logger, error) {
	cfg := do.MustInvoke[*config.Config](i)

	return logger.New(logger.Config{
		Environment: cfg.App.Environment,
		Level:       logger.ParseLevel(cfg.Logger.Level),
	}), nil
}

// AuthKey is the PASETO symmetric key for access tokens.
type AuthKey []byte

// ProvideAuthKey loads the token key from config, generating and persisting
// one under the data directory when none is configured.
func ProvideAuthKey(i do.Injector) (AuthKey, error) {
	cfg := do.MustInvoke[*config.Config](i)

	if len(cfg.Auth.AccessTokenKey) > 0 {
		return AuthKey(cfg.Auth.AccessTokenKey), nil
	}

	key, err := auth.LoadOrGenerateKey(cfg.Data.BasePath)
	if err != nil {
		return nil, fmt.Errorf("loading token key: %w", err)
	}
	return AuthKey(key), nil
}
