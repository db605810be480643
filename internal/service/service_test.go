package service

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/unearthedapp/unearthed-server/internal/ai"
	"github.com/unearthedapp/unearthed-server/internal/auth"
	"github.com/unearthedapp/unearthed-server/internal/crypto"
	"github.com/unearthedapp/unearthed-server/internal/delivery"
	"github.com/unearthedapp/unearthed-server/internal/domain"
	"github.com/unearthedapp/unearthed-server/internal/id"
	"github.com/unearthedapp/unearthed-server/internal/kv"
	"github.com/unearthedapp/unearthed-server/internal/store"
	"github.com/unearthedapp/unearthed-server/internal/store/sqlite"
	"github.com/unearthedapp/unearthed-server/internal/validation"
)

// testEnv wires the real stores in a temp dir with fakes for everything that
// leaves the process.
type testEnv struct {
	store     store.Store
	kvStore   *kv.Store
	validator *validation.Validator
	logger    *slog.Logger
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	dir := t.TempDir()
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))

	st, err := sqlite.Open(filepath.Join(dir, "test.db"), logger)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	kvStore, err := kv.Open(filepath.Join(dir, "kv"), logger)
	if err != nil {
		t.Fatalf("open kv: %v", err)
	}
	t.Cleanup(func() { kvStore.Close() })

	return &testEnv{
		store:     st,
		kvStore:   kvStore,
		validator: validation.New(),
		logger:    logger,
	}
}

func newTestTokenService(t *testing.T) *auth.TokenService {
	t.Helper()
	key := make([]byte, 32)
	for i := range key {
		key[i] = byte(i)
	}
	ts, err := auth.NewTokenService(key, time.Hour)
	if err != nil {
		t.Fatalf("token service: %v", err)
	}
	return ts
}

// seedUser creates a user, profile, and encryption key.
func (e *testEnv) seedUser(t *testing.T, userID string) {
	t.Helper()
	ctx := context.Background()
	now := time.Now()
	err := e.store.CreateUser(ctx, &domain.User{
		ID:           userID,
		Email:        userID + "@example.com",
		Name:         "Test " + userID,
		PasswordHash: "x",
		CreatedAt:    now,
		UpdatedAt:    now,
	})
	if err != nil {
		t.Fatalf("seed user: %v", err)
	}
	if err := e.store.CreateProfile(ctx, domain.NewProfile(userID)); err != nil {
		t.Fatalf("seed profile: %v", err)
	}
	key, err := crypto.NewKey()
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	if err := e.kvStore.SetEncryptionKey(userID, key); err != nil {
		t.Fatalf("store key: %v", err)
	}
}

func (e *testEnv) seedSource(t *testing.T, userID, title string) *domain.Source {
	t.Helper()
	now := time.Now()
	res, err := e.store.CreateSources(context.Background(), []*domain.Source{{
		ID:        id.MustGenerate(id.PrefixSource),
		UserID:    userID,
		Title:     title,
		Author:    "Author of " + title,
		Type:      domain.SourceTypeBook,
		Origin:    domain.OriginUnearthed,
		CreatedAt: now,
		UpdatedAt: now,
	}})
	if err != nil {
		t.Fatalf("seed source: %v", err)
	}
	if len(res.Inserted) != 1 {
		t.Fatalf("seed source: expected 1 inserted, got %d", len(res.Inserted))
	}
	return res.Inserted[0]
}

func (e *testEnv) seedQuote(t *testing.T, userID, sourceID, content string) *domain.Quote {
	t.Helper()
	now := time.Now()
	res, err := e.store.CreateQuotes(context.Background(), []*domain.Quote{{
		ID:        id.MustGenerate(id.PrefixQuote),
		UserID:    userID,
		SourceID:  sourceID,
		Content:   content,
		CreatedAt: now,
		UpdatedAt: now,
	}})
	if err != nil {
		t.Fatalf("seed quote: %v", err)
	}
	if len(res.Inserted) != 1 {
		t.Fatalf("seed quote: expected 1 inserted, got %d", len(res.Inserted))
	}
	return res.Inserted[0]
}

func (e *testEnv) mustProfile(t *testing.T, userID string) *domain.Profile {
	t.Helper()
	profile, err := e.store.GetProfile(context.Background(), userID)
	if err != nil {
		t.Fatalf("load profile: %v", err)
	}
	return profile
}

func (e *testEnv) updateProfile(t *testing.T, profile *domain.Profile) {
	t.Helper()
	if err := e.store.UpdateProfile(context.Background(), profile); err != nil {
		t.Fatalf("update profile: %v", err)
	}
}

// fakeMailer records sent reflection emails.
type fakeMailer struct {
	sent    []delivery.ReflectionEmail
	failFor map[string]bool // recipient address -> force failure
}

func (f *fakeMailer) Configured() bool { return true }

func (f *fakeMailer) Send(_ context.Context, email delivery.ReflectionEmail) error {
	if f.failFor[email.To] {
		return testError("smtp rejected")
	}
	f.sent = append(f.sent, email)
	return nil
}

// fakeCapacities records daily note saves.
type fakeCapacities struct {
	saved []capacitiesSave
}

type capacitiesSave struct {
	APIKey   string
	SpaceID  string
	Markdown string
}

func (f *fakeCapacities) SaveToDailyNote(_ context.Context, apiKey, spaceID, markdown string) error {
	f.saved = append(f.saved, capacitiesSave{APIKey: apiKey, SpaceID: spaceID, Markdown: markdown})
	return nil
}

// fakeNotion records page operations; existingPages maps title to page ID.
type fakeNotion struct {
	existingPages map[string]string
	created       []delivery.SourcePage
	updated       []delivery.SourcePage
	failAll       bool
}

func (f *fakeNotion) FindPageBySourceTitle(_ context.Context, _, _, title string) (string, error) {
	if f.failAll {
		return "", testError("notion unavailable")
	}
	return f.existingPages[title], nil
}

func (f *fakeNotion) CreateSourcePage(_ context.Context, _, _ string, page delivery.SourcePage) (string, error) {
	if f.failAll {
		return "", testError("notion unavailable")
	}
	f.created = append(f.created, page)
	return "page-" + page.Title, nil
}

func (f *fakeNotion) UpdateSourcePage(_ context.Context, _, _ string, page delivery.SourcePage) error {
	if f.failAll {
		return testError("notion unavailable")
	}
	f.updated = append(f.updated, page)
	return nil
}

// fakeOAuth returns a canned token exchange result.
type fakeOAuth struct {
	token *delivery.OAuthToken
	err   error
}

func (f *fakeOAuth) ExchangeOAuthCode(_ context.Context, _, _ string) (*delivery.OAuthToken, error) {
	return f.token, f.err
}

// fakeChat returns a canned completion with fixed usage.
type fakeChat struct {
	reply string
	usage ai.Usage
	err   error

	calls []([]ai.Message)
}

func (f *fakeChat) Chat(_ context.Context, messages []ai.Message) (string, ai.Usage, error) {
	f.calls = append(f.calls, messages)
	if f.err != nil {
		return "", ai.Usage{}, f.err
	}
	return f.reply, f.usage, nil
}

type testError string

func (e testError) Error() string { return string(e) }
