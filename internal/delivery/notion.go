// Package delivery holds the outbound channel clients: Notion, Capacities,
// and SMTP email. Each client is transport only; fan-out policy lives in the
// service layer.
package delivery

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json/v2"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	notionDefaultBaseURL = "https://api.notion.com"
	notionAPIVersion     = "2022-06-28"
)

// NotionClient talks to the Notion REST API. Writes are retried on 429 and
// 5xx responses with exponential backoff, honoring Retry-After.
type NotionClient struct {
	baseURL      string
	clientID     string
	clientSecret string
	httpClient   *http.Client
	maxRetries   int
	baseDelay    time.Duration
	maxDelay     time.Duration
}

// NotionOptions configures the Notion client. Zero values get sensible defaults.
type NotionOptions struct {
	BaseURL      string
	ClientID     string
	ClientSecret string
	HTTPClient   *http.Client
	MaxRetries   int
	BaseDelay    time.Duration
	MaxDelay     time.Duration
}

// NewNotionClient creates a Notion API client.
func NewNotionClient(opts NotionOptions) *NotionClient {
	baseURL := strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/")
	if baseURL == "" {
		baseURL = notionDefaultBaseURL
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 20 * time.Second}
	}
	maxRetries := opts.MaxRetries
	if maxRetries <= 0 {
		maxRetries = 3
	}
	baseDelay := opts.BaseDelay
	if baseDelay <= 0 {
		baseDelay = 100 * time.Millisecond
	}
	maxDelay := opts.MaxDelay
	if maxDelay <= 0 {
		maxDelay = 2 * time.Second
	}
	return &NotionClient{
		baseURL:      baseURL,
		clientID:     opts.ClientID,
		clientSecret: opts.ClientSecret,
		httpClient:   httpClient,
		maxRetries:   maxRetries,
		baseDelay:    baseDelay,
		maxDelay:     maxDelay,
	}
}

// OAuthToken is the blob Notion returns from the code exchange. The whole
// thing is stored encrypted on the profile; only AccessToken is read back.
type OAuthToken struct {
	AccessToken   string `json:"access_token"`
	BotID         string `json:"bot_id"`
	WorkspaceID   string `json:"workspace_id"`
	WorkspaceName string `json:"workspace_name"`
}

// ExchangeOAuthCode trades an OAuth authorization code for an access token.
// Notion wants HTTP Basic auth of the integration's client id and secret here,
// not a bearer token.
func (c *NotionClient) ExchangeOAuthCode(ctx context.Context, code, redirectURI string) (*OAuthToken, error) {
	payload := map[string]string{
		"grant_type":   "authorization_code",
		"code":         code,
		"redirect_uri": redirectURI,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/oauth/token", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	basic := base64.StdEncoding.EncodeToString([]byte(c.clientID + ":" + c.clientSecret))
	req.Header.Set("Authorization", "Basic "+basic)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("notion oauth exchange failed: status=%d message=%s", resp.StatusCode, strings.TrimSpace(string(raw)))
	}

	var token OAuthToken
	if err := json.UnmarshalRead(resp.Body, &token); err != nil {
		return nil, fmt.Errorf("decode oauth token: %w", err)
	}
	if token.AccessToken == "" {
		return nil, fmt.Errorf("notion oauth exchange returned no access token")
	}
	return &token, nil
}

// SourcePage is the content synced for one source: a database page with the
// title and author as properties and each quote as a child block.
type SourcePage struct {
	Title  string
	Author string
	Quotes []PageQuote
}

// PageQuote is one highlight rendered into the page.
type PageQuote struct {
	Content string
	Note    string
}

// FindPageBySourceTitle queries the user's database for an existing page
// matching the source title. Returns empty string when no page exists.
func (c *NotionClient) FindPageBySourceTitle(ctx context.Context, token, databaseID, title string) (string, error) {
	payload := map[string]any{
		"filter": map[string]any{
			"property": "Title",
			"title":    map[string]any{"equals": title},
		},
		"page_size": 1,
	}

	respBody, err := c.doWrite(ctx, token, http.MethodPost, "/v1/databases/"+databaseID+"/query", payload)
	if err != nil {
		return "", err
	}

	var result struct {
		Results []struct {
			ID string `json:"id"`
		} `json:"results"`
	}
	if err := json.Unmarshal(respBody, &result); err != nil {
		return "", fmt.Errorf("decode database query: %w", err)
	}
	if len(result.Results) == 0 {
		return "", nil
	}
	return result.Results[0].ID, nil
}

// CreateSourcePage creates a new database page for the source with its quotes
// as children. Returns the new page ID.
func (c *NotionClient) CreateSourcePage(ctx context.Context, token, databaseID string, page SourcePage) (string, error) {
	payload := map[string]any{
		"parent":     map[string]any{"database_id": databaseID},
		"properties": pageProperties(page),
		"children":   quoteBlocks(page.Quotes),
	}

	respBody, err := c.doWrite(ctx, token, http.MethodPost, "/v1/pages", payload)
	if err != nil {
		return "", err
	}

	var created struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(respBody, &created); err != nil {
		return "", fmt.Errorf("decode created page: %w", err)
	}
	return created.ID, nil
}

// UpdateSourcePage refreshes the page properties and appends the quotes as
// new child blocks.
func (c *NotionClient) UpdateSourcePage(ctx context.Context, token, pageID string, page SourcePage) error {
	props := map[string]any{"properties": pageProperties(page)}
	if _, err := c.doWrite(ctx, token, http.MethodPatch, "/v1/pages/"+pageID, props); err != nil {
		return err
	}

	if len(page.Quotes) == 0 {
		return nil
	}
	children := map[string]any{"children": quoteBlocks(page.Quotes)}
	_, err := c.doWrite(ctx, token, http.MethodPatch, "/v1/blocks/"+pageID+"/children", children)
	return err
}

func pageProperties(page SourcePage) map[string]any {
	props := map[string]any{
		"Title": map[string]any{
			"title": []any{richText(page.Title)},
		},
	}
	if page.Author != "" {
		props["Author"] = map[string]any{
			"rich_text": []any{richText(page.Author)},
		}
	}
	return props
}

func quoteBlocks(quotes []PageQuote) []any {
	blocks := make([]any, 0, len(quotes)*2)
	for _, q := range quotes {
		blocks = append(blocks, map[string]any{
			"object": "block",
			"type":   "quote",
			"quote": map[string]any{
				"rich_text": []any{richText(q.Content)},
			},
		})
		if q.Note != "" {
			blocks = append(blocks, map[string]any{
				"object": "block",
				"type":   "paragraph",
				"paragraph": map[string]any{
					"rich_text": []any{richText(q.Note)},
				},
			})
		}
	}
	return blocks
}

func richText(content string) map[string]any {
	return map[string]any{
		"type": "text",
		"text": map[string]any{"content": content},
	}
}

// doWrite issues an authenticated request with retries. 429 and 5xx responses
// are retried up to maxRetries times; other failures surface immediately with
// Notion's error code and message when the body carries them.
func (c *NotionClient) doWrite(ctx context.Context, token, method, path string, payload any) ([]byte, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, fmt.Errorf("notion token is empty")
	}
	bodyBytes, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	url := c.baseURL + path
	correlationID := uuid.NewString()

	for attempt := 0; ; attempt++ {
		req, err := http.NewRequestWithContext(ctx, method, url, bytes.NewReader(bodyBytes))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Authorization", "Bearer "+token)
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Notion-Version", notionAPIVersion)
		req.Header.Set("X-Correlation-Id", correlationID)

		resp, err := c.httpClient.Do(req)
		if err != nil {
			if attempt < c.maxRetries {
				if waitErr := sleepContext(ctx, c.retryDelay(attempt+1, "")); waitErr != nil {
					return nil, waitErr
				}
				continue
			}
			return nil, err
		}

		respBody, readErr := io.ReadAll(resp.Body)
		_ = resp.Body.Close()
		if readErr != nil {
			return nil, readErr
		}
		if resp.StatusCode >= 200 && resp.StatusCode <= 299 {
			return respBody, nil
		}

		if (resp.StatusCode == http.StatusTooManyRequests || (resp.StatusCode >= 500 && resp.StatusCode <= 599)) && attempt < c.maxRetries {
			if waitErr := sleepContext(ctx, c.retryDelay(attempt+1, resp.Header.Get("Retry-After"))); waitErr != nil {
				return nil, waitErr
			}
			continue
		}

		errCode := ""
		errMessage := strings.TrimSpace(string(respBody))
		var parsed map[string]any
		if json.Unmarshal(respBody, &parsed) == nil {
			if code, ok := parsed["code"].(string); ok {
				errCode = code
			}
			if message, ok := parsed["message"].(string); ok && strings.TrimSpace(message) != "" {
				errMessage = message
			}
		}
		if errCode != "" {
			return nil, fmt.Errorf("notion write failed: status=%d code=%s message=%s", resp.StatusCode, errCode, errMessage)
		}
		return nil, fmt.Errorf("notion write failed: status=%d message=%s", resp.StatusCode, errMessage)
	}
}

func (c *NotionClient) retryDelay(attempt int, retryAfterHeader string) time.Duration {
	if retryAfter := parseRetryAfterSeconds(retryAfterHeader); retryAfter > 0 {
		if retryAfter > c.maxDelay {
			return c.maxDelay
		}
		return retryAfter
	}
	delay := c.baseDelay
	for i := 1; i < attempt; i++ {
		delay *= 2
		if delay >= c.maxDelay {
			return c.maxDelay
		}
	}
	if delay > c.maxDelay {
		return c.maxDelay
	}
	return delay
}

func parseRetryAfterSeconds(header string) time.Duration {
	header = strings.TrimSpace(header)
	if header == "" {
		return 0
	}
	seconds, err := strconv.Atoi(header)
	if err != nil || seconds < 0 {
		return 0
	}
	return time.Duration(seconds) * time.Second
}

func sleepContext(ctx context.Context, delay time.Duration) error {
	if delay <= 0 {
		return nil
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
