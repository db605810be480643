// Package service implements the application logic between the HTTP layer and
// the stores. Services validate input, enforce entitlements, and own the
// encryption of sensitive fields; handlers stay thin.
package service

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/unearthedapp/unearthed-server/internal/auth"
	"github.com/unearthedapp/unearthed-server/internal/crypto"
	"github.com/unearthedapp/unearthed-server/internal/domain"
	domainerrors "github.com/unearthedapp/unearthed-server/internal/errors"
	"github.com/unearthedapp/unearthed-server/internal/id"
	"github.com/unearthedapp/unearthed-server/internal/kv"
	"github.com/unearthedapp/unearthed-server/internal/store"
	"github.com/unearthedapp/unearthed-server/internal/validation"
)

// AuthService handles registration, login, and request identity resolution.
// All three credential kinds (session token, compound API key, cron secret)
// resolve through here into a domain.Caller.
type AuthService struct {
	store        store.Store
	kvStore      *kv.Store
	tokenService *auth.TokenService
	validator    *validation.Validator
	cronSecret   string
	logger       *slog.Logger
}

// NewAuthService creates an authentication service.
func NewAuthService(
	st store.Store,
	kvStore *kv.Store,
	tokenService *auth.TokenService,
	validator *validation.Validator,
	cronSecret string,
	logger *slog.Logger,
) *AuthService {
	return &AuthService{
		store:        st,
		kvStore:      kvStore,
		tokenService: tokenService,
		validator:    validator,
		cronSecret:   cronSecret,
		logger:       logger,
	}
}

// RegisterRequest contains new account data.
type RegisterRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8,max=1024"`
	Name     string `json:"name" validate:"required,max=200"`
}

// LoginRequest contains user credentials.
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// AuthResponse contains the session token and user data.
type AuthResponse struct {
	User        *domain.User `json:"user"`
	AccessToken string       `json:"access_token"`
	ExpiresIn   int64        `json:"expires_in"`
}

// Register creates a user, their default profile, and their symmetric
// encryption key. The key lives only in the metadata store; losing it makes
// every encrypted field for the user unreadable.
func (s *AuthService) Register(ctx context.Context, req RegisterRequest) (*AuthResponse, error) {
	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}

	passwordHash, err := auth.HashSecret(req.Password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	userID, err := id.Generate(id.PrefixUser)
	if err != nil {
		return nil, fmt.Errorf("generate user ID: %w", err)
	}

	now := time.Now()
	user := &domain.User{
		ID:           userID,
		Email:        req.Email,
		Name:         req.Name,
		PasswordHash: passwordHash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := s.store.CreateUser(ctx, user); err != nil {
		if errors.Is(err, store.ErrAlreadyExists) {
			return nil, domainerrors.AlreadyExists("email already in use")
		}
		return nil, fmt.Errorf("create user: %w", err)
	}

	if err := s.store.CreateProfile(ctx, domain.NewProfile(userID)); err != nil {
		return nil, fmt.Errorf("create profile: %w", err)
	}

	encKey, err := crypto.NewKey()
	if err != nil {
		return nil, fmt.Errorf("generate encryption key: %w", err)
	}
	if err := s.kvStore.SetEncryptionKey(userID, encKey); err != nil {
		return nil, fmt.Errorf("store encryption key: %w", err)
	}

	s.logger.Info("user registered", "user_id", userID, "email", user.Email)
	return s.issueSession(user)
}

// Login authenticates with email and password. Unknown emails and bad
// passwords return the same error.
func (s *AuthService) Login(ctx context.Context, req LoginRequest) (*AuthResponse, error) {
	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}

	user, err := s.store.GetUserByEmail(ctx, req.Email)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, domainerrors.InvalidCredentials("invalid email or password")
		}
		return nil, fmt.Errorf("look up user: %w", err)
	}

	ok, err := auth.VerifySecret(user.PasswordHash, req.Password)
	if err != nil {
		return nil, fmt.Errorf("verify password: %w", err)
	}
	if !ok {
		return nil, domainerrors.InvalidCredentials("invalid email or password")
	}

	return s.issueSession(user)
}

// GetUser returns the account record for a caller.
func (s *AuthService) GetUser(ctx context.Context, userID string) (*domain.User, error) {
	user, err := s.store.GetUser(ctx, userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, domainerrors.NotFound("user not found")
		}
		return nil, err
	}
	return user, nil
}

func (s *AuthService) issueSession(user *domain.User) (*AuthResponse, error) {
	token, err := s.tokenService.GenerateAccessToken(user)
	if err != nil {
		return nil, fmt.Errorf("generate access token: %w", err)
	}
	return &AuthResponse{
		User:        user,
		AccessToken: token,
		ExpiresIn:   int64(s.tokenService.AccessTokenDuration().Seconds()),
	}, nil
}

// ResolveAccessToken verifies a session token and resolves its caller,
// including the premium entitlement read from the profile.
func (s *AuthService) ResolveAccessToken(ctx context.Context, token string) (domain.Caller, error) {
	claims, err := s.tokenService.VerifyAccessToken(token)
	if err != nil {
		return domain.Caller{}, domainerrors.Unauthorized("invalid or expired token")
	}
	return s.callerForUser(ctx, claims.UserID)
}

// ResolveAPIKey resolves a compound "apiKey~~~secret" bearer credential.
// The key half is matched by a linear argon2id scan over every stored key
// hash; the secret half must equal the per-user secret from the metadata
// store. Both halves must pass.
func (s *AuthService) ResolveAPIKey(ctx context.Context, credential string) (domain.Caller, error) {
	key, secret, ok := auth.SplitCompoundCredential(credential)
	if !ok {
		return domain.Caller{}, domainerrors.Unauthorized("malformed api credential")
	}

	keys, err := s.store.ListAllAPIKeys(ctx)
	if err != nil {
		return domain.Caller{}, fmt.Errorf("list api keys: %w", err)
	}

	for _, apiKey := range keys {
		match, err := auth.VerifySecret(apiKey.KeyHash, key)
		if err != nil || !match {
			continue
		}

		storedSecret, err := s.kvStore.APISecret(apiKey.UserID)
		if err != nil {
			if errors.Is(err, kv.ErrNotFound) {
				return domain.Caller{}, domainerrors.Unauthorized("invalid api credential")
			}
			return domain.Caller{}, fmt.Errorf("load api secret: %w", err)
		}
		if subtle.ConstantTimeCompare([]byte(storedSecret), []byte(secret)) != 1 {
			return domain.Caller{}, domainerrors.Unauthorized("invalid api credential")
		}

		if err := s.store.TouchAPIKey(ctx, apiKey.ID); err != nil {
			s.logger.Warn("touch api key failed", "key_id", apiKey.ID, "error", err)
		}
		return s.callerForUser(ctx, apiKey.UserID)
	}

	return domain.Caller{}, domainerrors.Unauthorized("invalid api credential")
}

// ResolveCronSecret resolves the shared scheduler secret to a system caller.
func (s *AuthService) ResolveCronSecret(secret string) (domain.Caller, error) {
	if s.cronSecret == "" {
		return domain.Caller{}, domainerrors.Configuration("cron secret is not configured")
	}
	if subtle.ConstantTimeCompare([]byte(s.cronSecret), []byte(secret)) != 1 {
		return domain.Caller{}, domainerrors.Unauthorized("invalid cron secret")
	}
	return domain.Caller{System: true}, nil
}

func (s *AuthService) callerForUser(ctx context.Context, userID string) (domain.Caller, error) {
	profile, err := s.store.GetProfile(ctx, userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.Caller{}, domainerrors.Unauthorized("unknown user")
		}
		return domain.Caller{}, fmt.Errorf("load profile: %w", err)
	}
	return domain.Caller{UserID: userID, Premium: profile.Premium}, nil
}
