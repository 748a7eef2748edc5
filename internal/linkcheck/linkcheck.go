// Package linkcheck verifies that catalog source links still resolve.
// Curated strategy documents move or disappear; a periodic check keeps
// the catalog's links column honest.
package linkcheck

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"

	"golang.org/x/net/html"
	"golang.org/x/sync/errgroup"

	"thinkstudio/internal/catalog"
)

const (
	defaultConcurrency = 4
	defaultTimeout     = 10 * time.Second

	// maxBodyBytes bounds how much of a page we read looking for a
	// title. Strategy documents can be large PDFs.
	maxBodyBytes = 256 << 10
)

// Result is the outcome of checking one catalog record's link.
type Result struct {
	ID     string `json:"id"`
	URL    string `json:"url"`
	Status int    `json:"status,omitempty"`
	Title  string `json:"title,omitempty"`
	Error  string `json:"error,omitempty"`
}

// OK reports whether the link resolved with a 2xx status.
func (r Result) OK() bool {
	return r.Error == "" && r.Status >= 200 && r.Status < 300
}

// Checker fetches catalog links with bounded concurrency.
type Checker struct {
	client      *http.Client
	concurrency int
}

// NewChecker creates a Checker with sane defaults.
func NewChecker() *Checker {
	return &Checker{
		client:      &http.Client{Timeout: defaultTimeout},
		concurrency: defaultConcurrency,
	}
}

// Check fetches every record's URL and reports status plus the page
// title where one can be parsed. Results come back in record id order.
func (c *Checker) Check(ctx context.Context, records []catalog.Record) []Result {
	results := make([]Result, len(records))
	var mu sync.Mutex

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(c.concurrency)
	for i, rec := range records {
		g.Go(func() error {
			res := c.checkOne(ctx, rec)
			mu.Lock()
			results[i] = res
			mu.Unlock()
			return nil
		})
	}
	g.Wait()

	sort.Slice(results, func(i, j int) bool { return results[i].ID < results[j].ID })
	return results
}

func (c *Checker) checkOne(ctx context.Context, rec catalog.Record) Result {
	res := Result{ID: rec.ID, URL: rec.URL}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rec.URL, nil)
	if err != nil {
		res.Error = fmt.Sprintf("bad url: %v", err)
		return res
	}
	resp, err := c.client.Do(req)
	if err != nil {
		res.Error = err.Error()
		return res
	}
	defer resp.Body.Close()

	res.Status = resp.StatusCode
	if ct := resp.Header.Get("Content-Type"); strings.Contains(ct, "text/html") {
		res.Title = pageTitle(io.LimitReader(resp.Body, maxBodyBytes))
	}
	return res
}

// pageTitle extracts the first <title> text from an HTML stream.
// Returns "" on any parse trouble; the title is best-effort garnish.
func pageTitle(r io.Reader) string {
	doc, err := html.Parse(r)
	if err != nil {
		return ""
	}
	var title string
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if title != "" {
			return
		}
		if n.Type == html.ElementNode && n.Data == "title" {
			var sb strings.Builder
			for c := n.FirstChild; c != nil; c = c.NextSibling {
				if c.Type == html.TextNode {
					sb.WriteString(c.Data)
				}
			}
			title = strings.TrimSpace(sb.String())
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)
	return title
}
