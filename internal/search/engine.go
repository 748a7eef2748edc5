// Package search applies structured filters and free-text queries to
// the strategy catalog. Structured filters are conjunctive across
// dimensions and OR within a dimension's allowed values; archetype
// tags are required (all must be present). Free-text matching uses the
// semantic backend when one is configured and falls back to
// case-insensitive substring matching over title, organisation and
// summary.
package search

import (
	"context"
	"log/slog"
	"strings"
	"sync"

	"thinkstudio/internal/catalog"
	"thinkstudio/internal/semantic"
)

const defaultTopK = 20

// Backend abstracts the optional semantic search sidecar.
// The Engine works with a nil Backend.
type Backend interface {
	Search(ctx context.Context, query string, topK int) ([]semantic.Scored, error)
}

// Filters holds the recognised structured filter dimensions. Empty
// slices and zero bounds mean "any".
type Filters struct {
	Organisations []string `json:"organisations,omitempty"`
	OrgTypes      []string `json:"org_types,omitempty"`
	Countries     []string `json:"countries,omitempty"`
	Scopes        []string `json:"scopes,omitempty"`
	YearMin       int      `json:"year_min,omitempty"`
	YearMax       int      `json:"year_max,omitempty"`
	Archetypes    []string `json:"archetypes,omitempty"`
}

// Match reports whether a record passes every filter dimension.
func (f Filters) Match(r catalog.Record) bool {
	if !matchAny(f.Organisations, r.Organisation) {
		return false
	}
	if !matchAny(f.OrgTypes, r.OrgType) {
		return false
	}
	if !matchAny(f.Countries, r.Country) {
		return false
	}
	if !matchAny(f.Scopes, r.Scope) {
		return false
	}
	if f.YearMin > 0 && r.Year < f.YearMin {
		return false
	}
	if f.YearMax > 0 && r.Year > f.YearMax {
		return false
	}
	for _, tag := range f.Archetypes {
		if !r.HasArchetype(tag) {
			return false
		}
	}
	return true
}

// matchAny is the OR-within-a-dimension rule: an empty allowed set
// matches everything.
func matchAny(allowed []string, value string) bool {
	if len(allowed) == 0 {
		return true
	}
	for _, a := range allowed {
		if strings.EqualFold(a, value) {
			return true
		}
	}
	return false
}

// Engine searches an immutable catalog. It is safe for concurrent use;
// an in-flight semantic call is abandoned when a newer query arrives
// (last-query-wins).
type Engine struct {
	store   *catalog.Store
	backend Backend // nil disables semantic search
	topK    int

	mu         sync.Mutex
	queryGen   uint64
	cancelPrev context.CancelFunc
}

// NewEngine creates an Engine over store. backend may be nil. topK
// bounds semantic results; <= 0 uses the default.
func NewEngine(store *catalog.Store, backend Backend, topK int) *Engine {
	if topK <= 0 {
		topK = defaultTopK
	}
	return &Engine{store: store, backend: backend, topK: topK}
}

// Search returns the records passing filters, matched and ordered by
// query relevance. With no query the result is the filtered catalog in
// default order (year desc, title asc). Search never mutates the
// catalog and never fails because the semantic backend is down.
func (e *Engine) Search(ctx context.Context, filters Filters, query string) []catalog.Record {
	base := make([]catalog.Record, 0, e.store.Len())
	for _, r := range e.store.All() {
		if filters.Match(r) {
			base = append(base, r)
		}
	}

	query = strings.TrimSpace(query)
	if query == "" {
		return base
	}

	if e.backend != nil {
		if ranked, ok := e.searchSemantic(ctx, query, base); ok {
			return ranked
		}
	}

	return substringMatch(base, query)
}

// searchSemantic ranks base records using the backend. Returns ok=false
// when the backend errored or timed out so the caller can fall back.
func (e *Engine) searchSemantic(ctx context.Context, query string, base []catalog.Record) ([]catalog.Record, bool) {
	qCtx, cancel := context.WithCancel(ctx)
	e.mu.Lock()
	if e.cancelPrev != nil {
		e.cancelPrev() // last-query-wins: abandon the in-flight call
	}
	e.cancelPrev = cancel
	e.queryGen++
	gen := e.queryGen
	e.mu.Unlock()

	hits, err := e.backend.Search(qCtx, query, e.topK)

	// The call is over; release this query's context. A newer query may
	// already have taken the slot, so only clear it when it is still ours.
	e.mu.Lock()
	if e.queryGen == gen {
		e.cancelPrev = nil
	}
	e.mu.Unlock()
	cancel()

	if err != nil {
		slog.Debug("semantic search unavailable, using substring fallback", "error", err)
		return nil, false
	}

	inBase := make(map[string]catalog.Record, len(base))
	for _, r := range base {
		inBase[r.ID] = r
	}

	// Preserve backend rank order, restricted to the filtered subset.
	ranked := make([]catalog.Record, 0, len(hits))
	for _, h := range hits {
		if r, ok := inBase[h.ID]; ok {
			ranked = append(ranked, r)
		}
	}
	return ranked, true
}

// substringMatch filters base to records whose title, organisation or
// summary contains query, case-insensitively. Input order (default
// order) is preserved, keeping results deterministic.
func substringMatch(base []catalog.Record, query string) []catalog.Record {
	q := strings.ToLower(query)
	matched := make([]catalog.Record, 0, len(base))
	for _, r := range base {
		hay := strings.ToLower(r.Title + " " + r.Organisation + " " + r.Summary)
		if strings.Contains(hay, q) {
			matched = append(matched, r)
		}
	}
	return matched
}
