package service

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domainerrors "github.com/unearthedapp/unearthed-server/internal/errors"
)

func TestAPIKeyService_CreateListDelete(t *testing.T) {
	env := newTestEnv(t)
	svc := NewAPIKeyService(env.store, env.kvStore, env.validator, env.logger)
	ctx := context.Background()
	env.seedUser(t, "user-1")

	created, err := svc.Create(ctx, "user-1", CreateAPIKeyRequest{Name: "desktop"})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(created.Plain, "uk_"))
	assert.Contains(t, created.Compound, "~~~")
	assert.NotEqual(t, created.Plain, created.Key.KeyHash)

	listed, err := svc.List(ctx, "user-1")
	require.NoError(t, err)
	require.Len(t, listed, 1)
	assert.Equal(t, "desktop", listed[0].Name)

	require.NoError(t, svc.Delete(ctx, "user-1", created.Key.ID))
	listed, err = svc.List(ctx, "user-1")
	require.NoError(t, err)
	assert.Empty(t, listed)
}

func TestAPIKeyService_SecretReusedAcrossKeys(t *testing.T) {
	env := newTestEnv(t)
	svc := NewAPIKeyService(env.store, env.kvStore, env.validator, env.logger)
	ctx := context.Background()
	env.seedUser(t, "user-1")

	first, err := svc.Create(ctx, "user-1", CreateAPIKeyRequest{Name: "desktop"})
	require.NoError(t, err)
	second, err := svc.Create(ctx, "user-1", CreateAPIKeyRequest{Name: "cli"})
	require.NoError(t, err)

	// The secret half stays stable so the first compound keeps working.
	assert.Equal(t, first.Secret, second.Secret)
	assert.NotEqual(t, first.Plain, second.Plain)
}

func TestAPIKeyService_DeleteScopedToOwner(t *testing.T) {
	env := newTestEnv(t)
	svc := NewAPIKeyService(env.store, env.kvStore, env.validator, env.logger)
	ctx := context.Background()
	env.seedUser(t, "user-1")
	env.seedUser(t, "user-2")

	created, err := svc.Create(ctx, "user-1", CreateAPIKeyRequest{Name: "desktop"})
	require.NoError(t, err)

	err = svc.Delete(ctx, "user-2", created.Key.ID)
	assert.True(t, domainerrors.Is(err, domainerrors.ErrNotFound))

	listed, err := svc.List(ctx, "user-1")
	require.NoError(t, err)
	assert.Len(t, listed, 1)
}
