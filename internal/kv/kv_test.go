package kv

import (
	"bytes"
	"errors"
	"log/slog"
	"os"
	"testing"

	"github.com/unearthedapp/unearthed-server/internal/crypto"
)

func newTestKV(t *testing.T) *Store {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
	s, err := Open(t.TempDir(), logger)
	if err != nil {
		t.Fatalf("open kv: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestGetSetRoundTrip(t *testing.T) {
	s := newTestKV(t)

	if err := s.Set("user-1", "stripe_customer", "cus_123"); err != nil {
		t.Fatalf("Set: %v", err)
	}
	got, err := s.Get("user-1", "stripe_customer")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got != "cus_123" {
		t.Errorf("got %q", got)
	}
}

func TestGetMissingReturnsErrNotFound(t *testing.T) {
	s := newTestKV(t)

	if _, err := s.Get("user-1", "nope"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
	if _, err := s.EncryptionKey("user-1"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound for missing key, got %v", err)
	}
}

func TestUsersAreIsolated(t *testing.T) {
	s := newTestKV(t)

	if err := s.Set("user-1", "k", "v1"); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if _, err := s.Get("user-2", "k"); !errors.Is(err, ErrNotFound) {
		t.Errorf("user-2 should not see user-1's value, got err=%v", err)
	}
}

func TestEncryptionKeyRoundTrip(t *testing.T) {
	s := newTestKV(t)

	key, err := crypto.NewKey()
	if err != nil {
		t.Fatalf("NewKey: %v", err)
	}
	if err := s.SetEncryptionKey("user-1", key); err != nil {
		t.Fatalf("SetEncryptionKey: %v", err)
	}

	got, err := s.EncryptionKey("user-1")
	if err != nil {
		t.Fatalf("EncryptionKey: %v", err)
	}
	if !bytes.Equal(got, key) {
		t.Error("key mismatch after round trip")
	}
}

func TestSetEncryptionKeyRejectsWrongSize(t *testing.T) {
	s := newTestKV(t)

	if err := s.SetEncryptionKey("user-1", []byte("too short")); err == nil {
		t.Error("expected error for wrong-size key")
	}
}

func TestAPISecret(t *testing.T) {
	s := newTestKV(t)

	if err := s.SetAPISecret("user-1", "s3cret"); err != nil {
		t.Fatalf("SetAPISecret: %v", err)
	}
	got, err := s.APISecret("user-1")
	if err != nil {
		t.Fatalf("APISecret: %v", err)
	}
	if got != "s3cret" {
		t.Errorf("got %q", got)
	}
}
