package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/unearthedapp/unearthed-server/internal/crypto"
	"github.com/unearthedapp/unearthed-server/internal/domain"
	domainerrors "github.com/unearthedapp/unearthed-server/internal/errors"
)

func newIngestService(env *testEnv) *IngestService {
	return NewIngestService(env.store, env.kvStore, nil, env.validator, env.logger)
}

func TestIngestService_CreateSourcesPartitionsBatch(t *testing.T) {
	env := newTestEnv(t)
	svc := newIngestService(env)
	ctx := context.Background()
	env.seedUser(t, "user-1")
	env.seedSource(t, "user-1", "Walden")

	resp, err := svc.CreateSources(ctx, "user-1", []SourceRequest{
		{Title: "Walden", Type: "BOOK", Origin: "UNEARTHED"},
		{Title: "The Dispossessed", Type: "BOOK", Origin: "UNEARTHED"},
	})
	require.NoError(t, err)
	require.Len(t, resp.InsertedRecords, 1)
	require.Len(t, resp.ExistingRecords, 1)
	assert.Equal(t, "The Dispossessed", resp.InsertedRecords[0].Title)
	assert.Equal(t, "Walden", resp.ExistingRecords[0].Title)
	// Existing row is canonical server state, not the request payload.
	assert.Equal(t, "Author of Walden", resp.ExistingRecords[0].Author)
}

func TestIngestService_InvalidRecordRejectsWholeBatch(t *testing.T) {
	env := newTestEnv(t)
	svc := newIngestService(env)
	ctx := context.Background()
	env.seedUser(t, "user-1")

	_, err := svc.CreateSources(ctx, "user-1", []SourceRequest{
		{Title: "Good", Type: "BOOK", Origin: "UNEARTHED"},
		{Title: "Bad", Type: "VINYL", Origin: "UNEARTHED"},
	})
	assert.True(t, domainerrors.Is(err, domainerrors.ErrValidation))

	sources, err := env.store.ListSources(ctx, "user-1")
	require.NoError(t, err)
	assert.Empty(t, sources)
}

func TestIngestService_QuoteForForeignSourceRejected(t *testing.T) {
	env := newTestEnv(t)
	svc := newIngestService(env)
	ctx := context.Background()
	env.seedUser(t, "user-1")
	env.seedUser(t, "user-2")
	theirs := env.seedSource(t, "user-2", "Walden")

	_, err := svc.CreateQuotes(ctx, "user-1", []QuoteRequest{
		{SourceID: theirs.ID, Content: "Simplify, simplify."},
	})
	assert.True(t, domainerrors.Is(err, domainerrors.ErrNotFound))

	// The quote landed nowhere: not on the owner's source and not in the
	// caller's reflection candidate set.
	quotes, err := env.store.ListQuotesBySource(ctx, "user-2", theirs.ID)
	require.NoError(t, err)
	assert.Empty(t, quotes)
	candidates, err := env.store.ListActiveQuotes(ctx, "user-1")
	require.NoError(t, err)
	assert.Empty(t, candidates)
}

func TestIngestService_QuoteForUnknownSourceRejected(t *testing.T) {
	env := newTestEnv(t)
	svc := newIngestService(env)
	ctx := context.Background()
	env.seedUser(t, "user-1")

	_, err := svc.CreateQuotes(ctx, "user-1", []QuoteRequest{
		{SourceID: "src_missing", Content: "Simplify, simplify."},
	})
	assert.True(t, domainerrors.Is(err, domainerrors.ErrNotFound))
}

func TestIngestService_EmptyBatchRejected(t *testing.T) {
	env := newTestEnv(t)
	svc := newIngestService(env)

	_, err := svc.CreateSources(context.Background(), "user-1", nil)
	assert.True(t, domainerrors.Is(err, domainerrors.ErrValidation))
	_, err = svc.CreateQuotes(context.Background(), "user-1", nil)
	assert.True(t, domainerrors.Is(err, domainerrors.ErrValidation))
}

func TestIngestService_CreateSourcesWithMedia(t *testing.T) {
	env := newTestEnv(t)
	svc := newIngestService(env)
	ctx := context.Background()
	env.seedUser(t, "user-1")

	resp, err := svc.CreateSources(ctx, "user-1", []SourceRequest{
		{Title: "Walden", Type: "BOOK", Origin: "UNEARTHED", MediaURL: "https://covers.example.com/walden.jpg"},
		{Title: "Walden II", Type: "BOOK", Origin: "UNEARTHED", MediaURL: "https://covers.example.com/walden.jpg"},
	})
	require.NoError(t, err)
	require.Len(t, resp.InsertedRecords, 2)
	assert.NotEmpty(t, resp.InsertedRecords[0].MediaID)
	// Same URL resolves to the same media row.
	assert.Equal(t, resp.InsertedRecords[0].MediaID, resp.InsertedRecords[1].MediaID)
}

func TestIngestService_CreateQuotesEncryptsNotes(t *testing.T) {
	env := newTestEnv(t)
	svc := newIngestService(env)
	ctx := context.Background()
	env.seedUser(t, "user-1")
	src := env.seedSource(t, "user-1", "Walden")

	resp, err := svc.CreateQuotes(ctx, "user-1", []QuoteRequest{
		{SourceID: src.ID, Content: "Simplify, simplify.", Note: "my private note"},
	})
	require.NoError(t, err)
	require.Len(t, resp.InsertedRecords, 1)

	stored, err := env.store.GetQuote(ctx, "user-1", resp.InsertedRecords[0].ID)
	require.NoError(t, err)
	assert.Empty(t, stored.Note)
	require.NotEmpty(t, stored.NoteEnc)
	assert.NotContains(t, stored.NoteEnc, "my private note")

	key, err := env.kvStore.EncryptionKey("user-1")
	require.NoError(t, err)
	plain, err := crypto.Decrypt(stored.NoteEnc, key)
	require.NoError(t, err)
	assert.Equal(t, "my private note", plain)
}

func TestIngestService_IdempotentResubmission(t *testing.T) {
	env := newTestEnv(t)
	svc := newIngestService(env)
	ctx := context.Background()
	env.seedUser(t, "user-1")
	src := env.seedSource(t, "user-1", "Walden")

	reqs := []QuoteRequest{
		{SourceID: src.ID, Content: "Simplify, simplify.", Location: "p. 91"},
		{SourceID: src.ID, Content: "Our life is frittered away by detail."},
	}
	first, err := svc.CreateQuotes(ctx, "user-1", reqs)
	require.NoError(t, err)
	assert.Len(t, first.InsertedRecords, 2)

	second, err := svc.CreateQuotes(ctx, "user-1", reqs)
	require.NoError(t, err)
	assert.Empty(t, second.InsertedRecords)
	assert.Len(t, second.ExistingRecords, 2)
}

func TestIngestService_KindleImport(t *testing.T) {
	env := newTestEnv(t)
	svc := newIngestService(env)
	ctx := context.Background()
	env.seedUser(t, "user-1")

	books := []KindleBook{
		{
			Title:  "Walden",
			Author: "Henry David Thoreau",
			Quotes: []KindleQuote{
				{Content: "Simplify, simplify.", Location: "Location 1201"},
				{Content: "Our life is frittered away by detail.", Location: "Location 1210"},
			},
		},
	}

	resp, err := svc.KindleImport(ctx, "user-1", books)
	require.NoError(t, err)
	require.Len(t, resp.Sources.InsertedRecords, 1)
	assert.Equal(t, domain.SourceTypeBook, resp.Sources.InsertedRecords[0].Type)
	assert.Equal(t, domain.OriginKindle, resp.Sources.InsertedRecords[0].Origin)
	assert.Len(t, resp.Quotes.InsertedRecords, 2)

	// Re-import lands on the existing source and quotes.
	again, err := svc.KindleImport(ctx, "user-1", books)
	require.NoError(t, err)
	assert.Empty(t, again.Sources.InsertedRecords)
	assert.Empty(t, again.Quotes.InsertedRecords)
	assert.Len(t, again.Quotes.ExistingRecords, 2)
}
