package semantic

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"golang.org/x/sync/errgroup"

	"thinkstudio/internal/catalog"
)

const indexConcurrency = 4

type indexRequest struct {
	ID   string `json:"id"`
	Text string `json:"text"`
}

// IndexCatalog pushes every catalog record to the sidecar so it can
// embed them. Concurrency is bounded; a failed record fails the batch
// but the caller treats indexing as best-effort.
func (c *Client) IndexCatalog(ctx context.Context, records []catalog.Record) error {
	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(indexConcurrency)

	for _, rec := range records {
		rec := rec
		g.Go(func() error {
			if err := c.indexOne(gCtx, rec); err != nil {
				return fmt.Errorf("indexing %s: %w", rec.ID, err)
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return err
	}
	slog.Info("catalog indexed in semantic backend", "records", len(records))
	return nil
}

func (c *Client) indexOne(ctx context.Context, rec catalog.Record) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	text := strings.TrimSpace(rec.Title + "\n" + rec.Summary)
	body, err := json.Marshal(indexRequest{ID: rec.ID, Text: text})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/index", bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("backend returned %d", resp.StatusCode)
	}
	return nil
}
