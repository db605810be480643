package delivery

import (
	"bytes"
	"context"
	"encoding/json/v2"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const capacitiesDefaultBaseURL = "https://api.capacities.io"

// CapacitiesClient appends markdown to a space's daily note through the
// Capacities API. Authentication is a per-user bearer API key.
type CapacitiesClient struct {
	baseURL    string
	httpClient *http.Client
}

// NewCapacitiesClient creates a Capacities API client. An empty baseURL uses
// the public endpoint.
func NewCapacitiesClient(baseURL string, httpClient *http.Client) *CapacitiesClient {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		baseURL = capacitiesDefaultBaseURL
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 15 * time.Second}
	}
	return &CapacitiesClient{baseURL: baseURL, httpClient: httpClient}
}

type saveToDailyNoteRequest struct {
	SpaceID     string `json:"spaceId"`
	MDText      string `json:"mdText"`
	Origin      string `json:"origin"`
	NoTimestamp bool   `json:"noTimeStamp"`
}

// SaveToDailyNote appends the markdown text to today's daily note in the
// given space.
func (c *CapacitiesClient) SaveToDailyNote(ctx context.Context, apiKey, spaceID, markdown string) error {
	if strings.TrimSpace(apiKey) == "" {
		return fmt.Errorf("capacities api key is empty")
	}
	if strings.TrimSpace(spaceID) == "" {
		return fmt.Errorf("capacities space id is empty")
	}

	payload := saveToDailyNoteRequest{
		SpaceID:     spaceID,
		MDText:      markdown,
		Origin:      "commandPalette",
		NoTimestamp: true,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/save-to-daily-note", bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("capacities save failed: status=%d message=%s", resp.StatusCode, strings.TrimSpace(string(raw)))
	}
	return nil
}
