package sqlite

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/unearthedapp/unearthed-server/internal/domain"
	"github.com/unearthedapp/unearthed-server/internal/id"
	"github.com/unearthedapp/unearthed-server/internal/store"
)

func seedAPIKey(t *testing.T, s *Store, userID, name string) *domain.APIKey {
	t.Helper()
	k := &domain.APIKey{
		ID:        id.MustGenerate(id.PrefixAPIKey),
		UserID:    userID,
		Name:      name,
		KeyHash:   "$argon2id$fakehash-" + name,
		CreatedAt: time.Now(),
	}
	if err := s.CreateAPIKey(context.Background(), k); err != nil {
		t.Fatalf("seed api key: %v", err)
	}
	return k
}

func TestAPIKeyLifecycle(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	seedUser(t, s, "user-1")
	seedUser(t, s, "user-2")

	k1 := seedAPIKey(t, s, "user-1", "desktop")
	seedAPIKey(t, s, "user-1", "scripts")
	seedAPIKey(t, s, "user-2", "desktop")

	mine, err := s.ListAPIKeys(ctx, "user-1")
	if err != nil {
		t.Fatalf("ListAPIKeys: %v", err)
	}
	if len(mine) != 2 {
		t.Errorf("user-1 keys: got %d, want 2", len(mine))
	}

	all, err := s.ListAllAPIKeys(ctx)
	if err != nil {
		t.Fatalf("ListAllAPIKeys: %v", err)
	}
	if len(all) != 3 {
		t.Errorf("all keys: got %d, want 3", len(all))
	}

	if err := s.DeleteAPIKey(ctx, "user-1", k1.ID); err != nil {
		t.Fatalf("DeleteAPIKey: %v", err)
	}
	mine, err = s.ListAPIKeys(ctx, "user-1")
	if err != nil {
		t.Fatalf("ListAPIKeys: %v", err)
	}
	if len(mine) != 1 || mine[0].Name != "scripts" {
		t.Errorf("after delete: got %+v", mine)
	}
}

func TestDeleteAPIKeyOwnership(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	seedUser(t, s, "user-1")
	seedUser(t, s, "user-2")
	k := seedAPIKey(t, s, "user-1", "desktop")

	// Another user cannot delete it.
	if err := s.DeleteAPIKey(ctx, "user-2", k.ID); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
	mine, err := s.ListAPIKeys(ctx, "user-1")
	if err != nil {
		t.Fatalf("ListAPIKeys: %v", err)
	}
	if len(mine) != 1 {
		t.Error("key should survive a foreign delete attempt")
	}
}

func TestTouchAPIKey(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	seedUser(t, s, "user-1")
	k := seedAPIKey(t, s, "user-1", "desktop")

	keys, err := s.ListAPIKeys(ctx, "user-1")
	if err != nil {
		t.Fatalf("ListAPIKeys: %v", err)
	}
	if keys[0].LastUsedAt != nil {
		t.Fatal("fresh key should have no last-used timestamp")
	}

	if err := s.TouchAPIKey(ctx, k.ID); err != nil {
		t.Fatalf("TouchAPIKey: %v", err)
	}
	keys, err = s.ListAPIKeys(ctx, "user-1")
	if err != nil {
		t.Fatalf("ListAPIKeys: %v", err)
	}
	if keys[0].LastUsedAt == nil {
		t.Error("expected last-used timestamp after touch")
	}
}
