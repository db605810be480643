package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domainerrors "github.com/unearthedapp/unearthed-server/internal/errors"
)

func newTagService(env *testEnv) *TagService {
	return NewTagService(env.store, nil, env.logger)
}

func TestTagService_AttachNormalizesNames(t *testing.T) {
	env := newTestEnv(t)
	svc := newTagService(env)
	ctx := context.Background()
	env.seedUser(t, "user-1")
	src := env.seedSource(t, "user-1", "Walden")

	tag, err := svc.Attach(ctx, "user-1", src.ID, "Deep Work!")
	require.NoError(t, err)
	assert.Equal(t, "deep-work", tag.Slug)

	// A differently cased name is the same tag.
	again, err := svc.Attach(ctx, "user-1", src.ID, "DEEP work")
	require.NoError(t, err)
	assert.Equal(t, tag.ID, again.ID)

	tags, err := svc.List(ctx, "user-1")
	require.NoError(t, err)
	assert.Len(t, tags, 1)
}

func TestTagService_AttachRejectsEmptySlug(t *testing.T) {
	env := newTestEnv(t)
	svc := newTagService(env)
	env.seedUser(t, "user-1")
	src := env.seedSource(t, "user-1", "Walden")

	_, err := svc.Attach(context.Background(), "user-1", src.ID, "!!!")
	assert.True(t, domainerrors.Is(err, domainerrors.ErrValidation))
}

func TestTagService_AttachChecksOwnership(t *testing.T) {
	env := newTestEnv(t)
	svc := newTagService(env)
	env.seedUser(t, "user-1")
	env.seedUser(t, "user-2")
	src := env.seedSource(t, "user-1", "Walden")

	_, err := svc.Attach(context.Background(), "user-2", src.ID, "stolen")
	assert.True(t, domainerrors.Is(err, domainerrors.ErrNotFound))
}

func TestTagService_DetachKeepsTag(t *testing.T) {
	env := newTestEnv(t)
	svc := newTagService(env)
	ctx := context.Background()
	env.seedUser(t, "user-1")
	src := env.seedSource(t, "user-1", "Walden")

	tag, err := svc.Attach(ctx, "user-1", src.ID, "philosophy")
	require.NoError(t, err)
	require.NoError(t, svc.Detach(ctx, "user-1", src.ID, tag.ID))

	attached, err := env.store.ListTagsForSource(ctx, src.ID)
	require.NoError(t, err)
	assert.Empty(t, attached)

	// The tag survives for reuse.
	tags, err := svc.List(ctx, "user-1")
	require.NoError(t, err)
	assert.Len(t, tags, 1)
}
