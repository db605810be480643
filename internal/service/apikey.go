package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/unearthedapp/unearthed-server/internal/auth"
	"github.com/unearthedapp/unearthed-server/internal/domain"
	domainerrors "github.com/unearthedapp/unearthed-server/internal/errors"
	"github.com/unearthedapp/unearthed-server/internal/id"
	"github.com/unearthedapp/unearthed-server/internal/kv"
	"github.com/unearthedapp/unearthed-server/internal/store"
	"github.com/unearthedapp/unearthed-server/internal/validation"
)

// APIKeyService manages programmatic access credentials. Plaintext keys are
// shown exactly once at creation; only argon2id hashes are stored.
type APIKeyService struct {
	store     store.Store
	kvStore   *kv.Store
	validator *validation.Validator
	logger    *slog.Logger
}

// NewAPIKeyService creates an API key service.
func NewAPIKeyService(st store.Store, kvStore *kv.Store, validator *validation.Validator, logger *slog.Logger) *APIKeyService {
	return &APIKeyService{store: st, kvStore: kvStore, validator: validator, logger: logger}
}

// CreateAPIKeyRequest names a new key.
type CreateAPIKeyRequest struct {
	Name string `json:"name" validate:"required,max=100"`
}

// CreateAPIKeyResponse carries the one-time plaintext credential. Compound is
// the exact bearer value clients must present.
type CreateAPIKeyResponse struct {
	Key      *domain.APIKey `json:"key"`
	Plain    string         `json:"plain_key"`
	Secret   string         `json:"secret"`
	Compound string         `json:"compound"`
}

// Create generates a new API key for the user. The per-user secret half of
// the compound credential is created on first use and reused by every
// subsequent key, so older compounds keep working.
func (s *APIKeyService) Create(ctx context.Context, userID string, req CreateAPIKeyRequest) (*CreateAPIKeyResponse, error) {
	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}

	plain, err := auth.NewAPIKey()
	if err != nil {
		return nil, fmt.Errorf("generate api key: %w", err)
	}
	keyHash, err := auth.HashSecret(plain)
	if err != nil {
		return nil, fmt.Errorf("hash api key: %w", err)
	}

	keyID, err := id.Generate(id.PrefixAPIKey)
	if err != nil {
		return nil, fmt.Errorf("generate key ID: %w", err)
	}

	apiKey := &domain.APIKey{
		ID:        keyID,
		UserID:    userID,
		Name:      req.Name,
		KeyHash:   keyHash,
		CreatedAt: time.Now(),
	}
	if err := s.store.CreateAPIKey(ctx, apiKey); err != nil {
		return nil, fmt.Errorf("store api key: %w", err)
	}

	secret, err := s.ensureSecret(userID)
	if err != nil {
		return nil, err
	}

	s.logger.Info("api key created", "user_id", userID, "key_id", keyID)
	return &CreateAPIKeyResponse{
		Key:      apiKey,
		Plain:    plain,
		Secret:   secret,
		Compound: plain + auth.CompoundSeparator + secret,
	}, nil
}

// List returns the user's keys. Hashes never leave the store layer in
// serialized form.
func (s *APIKeyService) List(ctx context.Context, userID string) ([]*domain.APIKey, error) {
	return s.store.ListAPIKeys(ctx, userID)
}

// Delete revokes a key the user owns.
func (s *APIKeyService) Delete(ctx context.Context, userID, keyID string) error {
	if err := s.store.DeleteAPIKey(ctx, userID, keyID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domainerrors.NotFound("api key not found")
		}
		return err
	}
	s.logger.Info("api key deleted", "user_id", userID, "key_id", keyID)
	return nil
}

func (s *APIKeyService) ensureSecret(userID string) (string, error) {
	secret, err := s.kvStore.APISecret(userID)
	if err == nil {
		return secret, nil
	}
	if !errors.Is(err, kv.ErrNotFound) {
		return "", fmt.Errorf("load api secret: %w", err)
	}

	secret, err = auth.NewAPISecret()
	if err != nil {
		return "", fmt.Errorf("generate api secret: %w", err)
	}
	if err := s.kvStore.SetAPISecret(userID, secret); err != nil {
		return "", fmt.Errorf("store api secret: %w", err)
	}
	return secret, nil
}
