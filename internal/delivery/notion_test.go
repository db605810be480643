package delivery

import (
	"context"
	"encoding/json/v2"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testNotionClient(t *testing.T, handler http.Handler) *NotionClient {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return NewNotionClient(NotionOptions{
		BaseURL:      server.URL,
		ClientID:     "client-id",
		ClientSecret: "client-secret",
		MaxRetries:   2,
		BaseDelay:    time.Millisecond,
		MaxDelay:     5 * time.Millisecond,
	})
}

func TestNotionClient_ExchangeOAuthCode(t *testing.T) {
	client := testNotionClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v1/oauth/token", r.URL.Path)

		user, pass, ok := r.BasicAuth()
		require.True(t, ok)
		assert.Equal(t, "client-id", user)
		assert.Equal(t, "client-secret", pass)

		var body map[string]string
		require.NoError(t, json.UnmarshalRead(r.Body, &body))
		assert.Equal(t, "authorization_code", body["grant_type"])
		assert.Equal(t, "code-123", body["code"])

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"access_token":"secret-token","workspace_id":"ws-1","workspace_name":"Library"}`))
	}))

	token, err := client.ExchangeOAuthCode(context.Background(), "code-123", "https://app.example.com/callback")
	require.NoError(t, err)
	assert.Equal(t, "secret-token", token.AccessToken)
	assert.Equal(t, "ws-1", token.WorkspaceID)
}

func TestNotionClient_ExchangeOAuthCode_NoToken(t *testing.T) {
	client := testNotionClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{}`))
	}))

	_, err := client.ExchangeOAuthCode(context.Background(), "code-123", "https://app.example.com/callback")
	assert.Error(t, err)
}

func TestNotionClient_CreateSourcePage(t *testing.T) {
	client := testNotionClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v1/pages", r.URL.Path)
		assert.Equal(t, "Bearer user-token", r.Header.Get("Authorization"))
		assert.Equal(t, "2022-06-28", r.Header.Get("Notion-Version"))
		assert.NotEmpty(t, r.Header.Get("X-Correlation-Id"))

		raw, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		var payload map[string]any
		require.NoError(t, json.Unmarshal(raw, &payload))
		children, ok := payload["children"].([]any)
		require.True(t, ok)
		// one quote block per quote plus one paragraph for the note
		assert.Len(t, children, 3)

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"page-1"}`))
	}))

	page := SourcePage{
		Title:  "The Dispossessed",
		Author: "Ursula K. Le Guin",
		Quotes: []PageQuote{
			{Content: "You cannot buy the revolution.", Note: "ch. 10"},
			{Content: "True voyage is return."},
		},
	}
	pageID, err := client.CreateSourcePage(context.Background(), "user-token", "db-1", page)
	require.NoError(t, err)
	assert.Equal(t, "page-1", pageID)
}

func TestNotionClient_FindPageBySourceTitle(t *testing.T) {
	client := testNotionClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/databases/db-1/query", r.URL.Path)
		_, _ = w.Write([]byte(`{"results":[{"id":"page-9"}]}`))
	}))

	pageID, err := client.FindPageBySourceTitle(context.Background(), "user-token", "db-1", "Walden")
	require.NoError(t, err)
	assert.Equal(t, "page-9", pageID)
}

func TestNotionClient_FindPageBySourceTitle_NotFound(t *testing.T) {
	client := testNotionClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"results":[]}`))
	}))

	pageID, err := client.FindPageBySourceTitle(context.Background(), "user-token", "db-1", "Walden")
	require.NoError(t, err)
	assert.Empty(t, pageID)
}

func TestNotionClient_UpdateSourcePage(t *testing.T) {
	var paths []string
	client := testNotionClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPatch, r.Method)
		paths = append(paths, r.URL.Path)
		_, _ = w.Write([]byte(`{}`))
	}))

	page := SourcePage{
		Title:  "Walden",
		Quotes: []PageQuote{{Content: "Simplify, simplify."}},
	}
	require.NoError(t, client.UpdateSourcePage(context.Background(), "user-token", "page-9", page))
	assert.Equal(t, []string{"/v1/pages/page-9", "/v1/blocks/page-9/children"}, paths)
}

func TestNotionClient_RetriesOnRateLimit(t *testing.T) {
	var calls atomic.Int32
	client := testNotionClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.Header().Set("Retry-After", "0")
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		_, _ = w.Write([]byte(`{"id":"page-1"}`))
	}))

	_, err := client.CreateSourcePage(context.Background(), "user-token", "db-1", SourcePage{Title: "Walden"})
	require.NoError(t, err)
	assert.Equal(t, int32(2), calls.Load())
}

func TestNotionClient_SurfacesAPIError(t *testing.T) {
	client := testNotionClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"code":"validation_error","message":"Title is not a property"}`))
	}))

	_, err := client.CreateSourcePage(context.Background(), "user-token", "db-1", SourcePage{Title: "Walden"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "validation_error")
	assert.Contains(t, err.Error(), "Title is not a property")
}

func TestNotionClient_EmptyTokenRejected(t *testing.T) {
	client := NewNotionClient(NotionOptions{})
	_, err := client.CreateSourcePage(context.Background(), "  ", "db-1", SourcePage{Title: "Walden"})
	assert.Error(t, err)
}

func TestRetryDelay_CapsAtMax(t *testing.T) {
	client := NewNotionClient(NotionOptions{BaseDelay: 100 * time.Millisecond, MaxDelay: 300 * time.Millisecond})
	assert.Equal(t, 100*time.Millisecond, client.retryDelay(1, ""))
	assert.Equal(t, 200*time.Millisecond, client.retryDelay(2, ""))
	assert.Equal(t, 300*time.Millisecond, client.retryDelay(3, ""))
	assert.Equal(t, 300*time.Millisecond, client.retryDelay(8, ""))
	assert.Equal(t, 2*time.Second, client.retryDelay(1, "2"))
	assert.Equal(t, 300*time.Millisecond, client.retryDelay(1, "999"))
}
