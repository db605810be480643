package service

import (
	"context"
	"encoding/json/v2"
	"errors"
	"fmt"
	"log/slog"

	"github.com/unearthedapp/unearthed-server/internal/crypto"
	"github.com/unearthedapp/unearthed-server/internal/delivery"
	"github.com/unearthedapp/unearthed-server/internal/domain"
	domainerrors "github.com/unearthedapp/unearthed-server/internal/errors"
	"github.com/unearthedapp/unearthed-server/internal/kv"
	"github.com/unearthedapp/unearthed-server/internal/store"
	"github.com/unearthedapp/unearthed-server/internal/validation"
)

// NotionOAuth exchanges an OAuth authorization code for an access token.
type NotionOAuth interface {
	ExchangeOAuthCode(ctx context.Context, code, redirectURI string) (*delivery.OAuthToken, error)
}

// ProfileService manages per-user settings and integration connections.
// Third-party credentials are encrypted with the user's key before they
// touch the relational store.
type ProfileService struct {
	store      store.Store
	kvStore    *kv.Store
	oauth      NotionOAuth
	notionSync *NotionSyncService
	validator  *validation.Validator
	logger     *slog.Logger
}

// NewProfileService creates a profile service.
func NewProfileService(
	st store.Store,
	kvStore *kv.Store,
	oauth NotionOAuth,
	notionSync *NotionSyncService,
	validator *validation.Validator,
	logger *slog.Logger,
) *ProfileService {
	return &ProfileService{
		store:      st,
		kvStore:    kvStore,
		oauth:      oauth,
		notionSync: notionSync,
		validator:  validator,
		logger:     logger,
	}
}

// Get returns the caller's profile.
func (s *ProfileService) Get(ctx context.Context, userID string) (*domain.Profile, error) {
	profile, err := s.store.GetProfile(ctx, userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, domainerrors.NotFound("profile not found")
		}
		return nil, err
	}
	return profile, nil
}

// UpdateProfileRequest carries the settable profile fields. Nil pointers
// leave the current value untouched.
type UpdateProfileRequest struct {
	UTCOffset         *int    `json:"utc_offset,omitempty" validate:"omitempty,gte=-12,lte=14"`
	DailyEmailEnabled *bool   `json:"daily_email_enabled,omitempty"`
	CapacitiesSpaceID *string `json:"capacities_space_id,omitempty" validate:"omitempty,max=200"`
	NotionDatabaseID  *string `json:"notion_database_id,omitempty" validate:"omitempty,max=200"`
}

// Update applies settings changes to the caller's profile.
func (s *ProfileService) Update(ctx context.Context, userID string, req UpdateProfileRequest) (*domain.Profile, error) {
	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}

	profile, err := s.Get(ctx, userID)
	if err != nil {
		return nil, err
	}

	if req.UTCOffset != nil {
		profile.UTCOffset = *req.UTCOffset
	}
	if req.DailyEmailEnabled != nil {
		profile.DailyEmailEnabled = *req.DailyEmailEnabled
	}
	if req.CapacitiesSpaceID != nil {
		profile.CapacitiesSpaceID = *req.CapacitiesSpaceID
	}
	if req.NotionDatabaseID != nil {
		profile.NotionDatabaseID = *req.NotionDatabaseID
	}
	profile.Touch()

	if err := s.store.UpdateProfile(ctx, profile); err != nil {
		return nil, fmt.Errorf("update profile: %w", err)
	}
	return profile, nil
}

// ConnectNotionRequest carries the OAuth callback data.
type ConnectNotionRequest struct {
	Code        string `json:"code" validate:"required"`
	RedirectURI string `json:"redirect_uri" validate:"required,url"`
	DatabaseID  string `json:"database_id" validate:"required,max=200"`
}

// ConnectNotion completes the Notion connection: exchanges the OAuth code,
// stores the returned auth blob encrypted on the profile, and queues every
// active source as new-connection sync work.
func (s *ProfileService) ConnectNotion(ctx context.Context, userID string, req ConnectNotionRequest) (*domain.Profile, error) {
	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}

	token, err := s.oauth.ExchangeOAuthCode(ctx, req.Code, req.RedirectURI)
	if err != nil {
		return nil, domainerrors.Wrap(err, domainerrors.CodeUpstream, "notion token exchange failed")
	}

	blob, err := json.Marshal(token)
	if err != nil {
		return nil, fmt.Errorf("encode notion auth: %w", err)
	}
	authEnc, err := s.encryptForUser(userID, string(blob))
	if err != nil {
		return nil, err
	}

	profile, err := s.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	profile.NotionAuthEnc = authEnc
	profile.NotionDatabaseID = req.DatabaseID
	profile.Touch()
	if err := s.store.UpdateProfile(ctx, profile); err != nil {
		return nil, fmt.Errorf("update profile: %w", err)
	}

	enqueued, err := s.notionSync.EnqueueForUser(ctx, userID)
	if err != nil {
		// The connection itself succeeded; the producer will pick the
		// sources up on its next run.
		s.logger.Error("enqueue after notion connect failed", "user_id", userID, "error", err)
	} else {
		s.logger.Info("notion connected", "user_id", userID, "workspace", token.WorkspaceName, "enqueued", enqueued)
	}
	return profile, nil
}

// ConnectCapacitiesRequest carries the Capacities credentials.
type ConnectCapacitiesRequest struct {
	APIKey  string `json:"api_key" validate:"required,max=500"`
	SpaceID string `json:"space_id" validate:"required,max=200"`
}

// ConnectCapacities stores the Capacities API key encrypted on the profile.
func (s *ProfileService) ConnectCapacities(ctx context.Context, userID string, req ConnectCapacitiesRequest) (*domain.Profile, error) {
	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}

	keyEnc, err := s.encryptForUser(userID, req.APIKey)
	if err != nil {
		return nil, err
	}

	profile, err := s.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	profile.CapacitiesAPIKeyEnc = keyEnc
	profile.CapacitiesSpaceID = req.SpaceID
	profile.Touch()
	if err := s.store.UpdateProfile(ctx, profile); err != nil {
		return nil, fmt.Errorf("update profile: %w", err)
	}

	s.logger.Info("capacities connected", "user_id", userID)
	return profile, nil
}

// BillingEvent is a subscription state change from the billing provider.
type BillingEvent struct {
	Email  string `json:"email" validate:"required,email"`
	Status string `json:"status" validate:"required,oneof=active canceled expired"`
}

// HandleBillingEvent flips the premium entitlement from a billing webhook.
// Anything other than an active subscription clears the flag.
func (s *ProfileService) HandleBillingEvent(ctx context.Context, event BillingEvent) error {
	if err := s.validator.Validate(event); err != nil {
		return err
	}

	user, err := s.store.GetUserByEmail(ctx, event.Email)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domainerrors.NotFound("no account for billing email")
		}
		return fmt.Errorf("look up user: %w", err)
	}

	profile, err := s.Get(ctx, user.ID)
	if err != nil {
		return err
	}
	premium := event.Status == "active"
	if profile.Premium == premium {
		return nil
	}
	profile.Premium = premium
	profile.Touch()
	if err := s.store.UpdateProfile(ctx, profile); err != nil {
		return fmt.Errorf("update profile: %w", err)
	}

	s.logger.Info("premium entitlement changed", "user_id", user.ID, "premium", premium)
	return nil
}

func (s *ProfileService) encryptForUser(userID, plaintext string) (string, error) {
	encKey, err := s.kvStore.EncryptionKey(userID)
	if err != nil {
		if errors.Is(err, kv.ErrNotFound) {
			return "", domainerrors.Configuration("no encryption key provisioned for user")
		}
		return "", fmt.Errorf("load encryption key: %w", err)
	}
	ciphertext, err := crypto.Encrypt(plaintext, encKey)
	if err != nil {
		return "", fmt.Errorf("encrypt credential: %w", err)
	}
	return ciphertext, nil
}
