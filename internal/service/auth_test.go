package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domainerrors "github.com/unearthedapp/unearthed-server/internal/errors"
)

func newAuthService(t *testing.T, env *testEnv, cronSecret string) *AuthService {
	t.Helper()
	return NewAuthService(env.store, env.kvStore, newTestTokenService(t), env.validator, cronSecret, env.logger)
}

func TestAuthService_RegisterAndLogin(t *testing.T) {
	env := newTestEnv(t)
	svc := newAuthService(t, env, "cron-secret")
	ctx := context.Background()

	resp, err := svc.Register(ctx, RegisterRequest{
		Email:    "reader@example.com",
		Password: "correct horse battery",
		Name:     "Reader",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, resp.AccessToken)
	assert.NotEmpty(t, resp.User.ID)

	// Registration provisions the encryption key.
	_, err = env.kvStore.EncryptionKey(resp.User.ID)
	require.NoError(t, err)

	// And the profile.
	profile, err := env.store.GetProfile(ctx, resp.User.ID)
	require.NoError(t, err)
	assert.True(t, profile.DailyEmailEnabled)

	login, err := svc.Login(ctx, LoginRequest{Email: "reader@example.com", Password: "correct horse battery"})
	require.NoError(t, err)
	assert.Equal(t, resp.User.ID, login.User.ID)
}

func TestAuthService_RegisterDuplicateEmail(t *testing.T) {
	env := newTestEnv(t)
	svc := newAuthService(t, env, "")
	ctx := context.Background()

	req := RegisterRequest{Email: "reader@example.com", Password: "longenough", Name: "Reader"}
	_, err := svc.Register(ctx, req)
	require.NoError(t, err)

	_, err = svc.Register(ctx, req)
	assert.True(t, domainerrors.Is(err, domainerrors.ErrAlreadyExists))
}

func TestAuthService_LoginRejectsBadCredentials(t *testing.T) {
	env := newTestEnv(t)
	svc := newAuthService(t, env, "")
	ctx := context.Background()

	_, err := svc.Register(ctx, RegisterRequest{Email: "reader@example.com", Password: "longenough", Name: "Reader"})
	require.NoError(t, err)

	// Wrong password and unknown email produce the same error.
	_, err = svc.Login(ctx, LoginRequest{Email: "reader@example.com", Password: "wrong password"})
	assert.True(t, domainerrors.Is(err, domainerrors.ErrInvalidCredentials))

	_, err = svc.Login(ctx, LoginRequest{Email: "nobody@example.com", Password: "longenough"})
	assert.True(t, domainerrors.Is(err, domainerrors.ErrInvalidCredentials))
}

func TestAuthService_ResolveAccessToken(t *testing.T) {
	env := newTestEnv(t)
	svc := newAuthService(t, env, "")
	ctx := context.Background()

	resp, err := svc.Register(ctx, RegisterRequest{Email: "reader@example.com", Password: "longenough", Name: "Reader"})
	require.NoError(t, err)

	caller, err := svc.ResolveAccessToken(ctx, resp.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, resp.User.ID, caller.UserID)
	assert.True(t, caller.IsUser())
	assert.False(t, caller.Premium)

	// Premium flag flows from the profile.
	profile := env.mustProfile(t, resp.User.ID)
	profile.Premium = true
	env.updateProfile(t, profile)

	caller, err = svc.ResolveAccessToken(ctx, resp.AccessToken)
	require.NoError(t, err)
	assert.True(t, caller.Premium)

	_, err = svc.ResolveAccessToken(ctx, "v4.local.garbage")
	assert.True(t, domainerrors.Is(err, domainerrors.ErrUnauthorized))
}

func TestAuthService_ResolveAPIKey(t *testing.T) {
	env := newTestEnv(t)
	svc := newAuthService(t, env, "")
	keys := NewAPIKeyService(env.store, env.kvStore, env.validator, env.logger)
	ctx := context.Background()

	env.seedUser(t, "user-1")
	created, err := keys.Create(ctx, "user-1", CreateAPIKeyRequest{Name: "desktop"})
	require.NoError(t, err)

	caller, err := svc.ResolveAPIKey(ctx, created.Compound)
	require.NoError(t, err)
	assert.Equal(t, "user-1", caller.UserID)

	// Either half alone fails.
	_, err = svc.ResolveAPIKey(ctx, created.Plain+"~~~wrong-secret")
	assert.True(t, domainerrors.Is(err, domainerrors.ErrUnauthorized))

	_, err = svc.ResolveAPIKey(ctx, "uk_wrongkey~~~"+created.Secret)
	assert.True(t, domainerrors.Is(err, domainerrors.ErrUnauthorized))

	_, err = svc.ResolveAPIKey(ctx, "no-separator-here")
	assert.True(t, domainerrors.Is(err, domainerrors.ErrUnauthorized))
}

func TestAuthService_ResolveCronSecret(t *testing.T) {
	env := newTestEnv(t)
	svc := newAuthService(t, env, "cron-secret")

	caller, err := svc.ResolveCronSecret("cron-secret")
	require.NoError(t, err)
	assert.True(t, caller.System)
	assert.False(t, caller.IsUser())

	_, err = svc.ResolveCronSecret("wrong")
	assert.True(t, domainerrors.Is(err, domainerrors.ErrUnauthorized))

	unconfigured := newAuthService(t, env, "")
	_, err = unconfigured.ResolveCronSecret("anything")
	assert.True(t, domainerrors.Is(err, domainerrors.ErrConfiguration))
}
