package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/unearthedapp/unearthed-server/internal/crypto"
	"github.com/unearthedapp/unearthed-server/internal/delivery"
	domainerrors "github.com/unearthedapp/unearthed-server/internal/errors"
)

func newProfileService(env *testEnv, oauth NotionOAuth) *ProfileService {
	notionSync := NewNotionSyncService(env.store, env.kvStore, &fakeNotion{}, DefaultNotionShards, env.logger)
	return NewProfileService(env.store, env.kvStore, oauth, notionSync, env.validator, env.logger)
}

func TestProfileService_Update(t *testing.T) {
	env := newTestEnv(t)
	svc := newProfileService(env, nil)
	ctx := context.Background()
	env.seedUser(t, "user-1")

	offset := -5
	enabled := false
	profile, err := svc.Update(ctx, "user-1", UpdateProfileRequest{
		UTCOffset:         &offset,
		DailyEmailEnabled: &enabled,
	})
	require.NoError(t, err)
	assert.Equal(t, -5, profile.UTCOffset)
	assert.False(t, profile.DailyEmailEnabled)

	// Unset fields keep their values on the next update.
	spaceID := "space-1"
	profile, err = svc.Update(ctx, "user-1", UpdateProfileRequest{CapacitiesSpaceID: &spaceID})
	require.NoError(t, err)
	assert.Equal(t, -5, profile.UTCOffset)
	assert.Equal(t, "space-1", profile.CapacitiesSpaceID)
}

func TestProfileService_UpdateRejectsBadOffset(t *testing.T) {
	env := newTestEnv(t)
	svc := newProfileService(env, nil)
	env.seedUser(t, "user-1")

	for _, offset := range []int{-13, 15} {
		bad := offset
		_, err := svc.Update(context.Background(), "user-1", UpdateProfileRequest{UTCOffset: &bad})
		assert.True(t, domainerrors.Is(err, domainerrors.ErrValidation), "offset %d", offset)
	}
}

func TestProfileService_ConnectCapacitiesEncryptsKey(t *testing.T) {
	env := newTestEnv(t)
	svc := newProfileService(env, nil)
	ctx := context.Background()
	env.seedUser(t, "user-1")

	profile, err := svc.ConnectCapacities(ctx, "user-1", ConnectCapacitiesRequest{
		APIKey:  "cap-plaintext-key",
		SpaceID: "space-1",
	})
	require.NoError(t, err)
	assert.True(t, profile.HasCapacities())
	assert.NotEqual(t, "cap-plaintext-key", profile.CapacitiesAPIKeyEnc)
	assert.NotContains(t, profile.CapacitiesAPIKeyEnc, "cap-plaintext")

	key, err := env.kvStore.EncryptionKey("user-1")
	require.NoError(t, err)
	plain, err := crypto.Decrypt(profile.CapacitiesAPIKeyEnc, key)
	require.NoError(t, err)
	assert.Equal(t, "cap-plaintext-key", plain)
}

func TestProfileService_ConnectNotionStoresEncryptedBlob(t *testing.T) {
	env := newTestEnv(t)
	oauth := &fakeOAuth{token: &delivery.OAuthToken{AccessToken: "secret-token"}}
	svc := newProfileService(env, oauth)
	ctx := context.Background()
	env.seedUser(t, "user-1")
	env.seedSource(t, "user-1", "Walden")

	profile, err := svc.ConnectNotion(ctx, "user-1", ConnectNotionRequest{
		Code:        "oauth-code",
		RedirectURI: "https://app.example.com/callback",
		DatabaseID:  "db-1",
	})
	require.NoError(t, err)
	assert.True(t, profile.HasNotion())
	assert.NotContains(t, profile.NotionAuthEnc, "secret-token")

	key, err := env.kvStore.EncryptionKey("user-1")
	require.NoError(t, err)
	blob, err := crypto.Decrypt(profile.NotionAuthEnc, key)
	require.NoError(t, err)
	assert.Contains(t, blob, "secret-token")
}

func TestProfileService_ConnectNotionExchangeFailure(t *testing.T) {
	env := newTestEnv(t)
	oauth := &fakeOAuth{err: testError("exchange refused")}
	svc := newProfileService(env, oauth)
	env.seedUser(t, "user-1")

	_, err := svc.ConnectNotion(context.Background(), "user-1", ConnectNotionRequest{
		Code:        "oauth-code",
		RedirectURI: "https://app.example.com/callback",
		DatabaseID:  "db-1",
	})
	assert.True(t, domainerrors.Is(err, domainerrors.ErrUpstream))
}

func TestProfileService_BillingEventFlipsPremium(t *testing.T) {
	env := newTestEnv(t)
	svc := newProfileService(env, nil)
	ctx := context.Background()
	env.seedUser(t, "user-1")

	require.NoError(t, svc.HandleBillingEvent(ctx, BillingEvent{
		Email:  "user-1@example.com",
		Status: "active",
	}))
	assert.True(t, env.mustProfile(t, "user-1").Premium)

	require.NoError(t, svc.HandleBillingEvent(ctx, BillingEvent{
		Email:  "user-1@example.com",
		Status: "canceled",
	}))
	assert.False(t, env.mustProfile(t, "user-1").Premium)
}

func TestProfileService_BillingEventUnknownEmail(t *testing.T) {
	env := newTestEnv(t)
	svc := newProfileService(env, nil)

	err := svc.HandleBillingEvent(context.Background(), BillingEvent{
		Email:  "nobody@example.com",
		Status: "active",
	})
	assert.True(t, domainerrors.Is(err, domainerrors.ErrNotFound))
}
