// Package semantic talks to an optional semantic-search sidecar over
// HTTP. The rest of the application treats the backend as best-effort:
// it must keep working when no sidecar is configured and degrade to
// local matching when one is configured but unreachable.
package semantic

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Scored is one semantic search hit: a catalog record id with its
// relevance score, higher is more relevant.
type Scored struct {
	ID    string  `json:"id"`
	Score float32 `json:"score"`
}

// Client communicates with a semantic sidecar. Every call is bounded
// by the configured timeout regardless of the caller's context.
type Client struct {
	baseURL    string
	timeout    time.Duration
	httpClient *http.Client
}

// NewClient creates a Client for the given base URL. timeout bounds
// each request; if <= 0 it defaults to 3s.
func NewClient(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		timeout:    timeout,
		httpClient: &http.Client{Timeout: 0},
	}
}

type searchRequest struct {
	Query string `json:"query"`
	TopK  int    `json:"top_k"`
}

// Search asks the sidecar for the topK most relevant record ids.
func (c *Client) Search(ctx context.Context, query string, topK int) ([]Scored, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	body, err := json.Marshal(searchRequest{Query: query, TopK: topK})
	if err != nil {
		return nil, fmt.Errorf("marshalling search request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/search", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("semantic backend unreachable: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("semantic backend returned %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	var hits []Scored
	if err := json.NewDecoder(resp.Body).Decode(&hits); err != nil {
		return nil, fmt.Errorf("decoding semantic response: %w", err)
	}
	return hits, nil
}
