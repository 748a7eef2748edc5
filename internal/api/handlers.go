// Package api exposes the studio over HTTP for the local UI and over
// MCP for agent integrations.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"thinkstudio/internal/catalog"
	"thinkstudio/internal/diagnostic"
	"thinkstudio/internal/ledger"
	"thinkstudio/internal/search"
	"thinkstudio/internal/session"
	"thinkstudio/internal/storage"
)

const maxRequestBodySize = 1 << 20 // 1MB

// Searcher abstracts the search engine for the API layer.
type Searcher interface {
	Search(ctx context.Context, filters search.Filters, query string) []catalog.Record
}

type AppDeps struct {
	Catalog   *catalog.Store
	Search    Searcher
	Sessions  *session.Manager
	TopShifts int
}

func NewAppHandler(deps AppDeps) http.Handler {
	r := chi.NewRouter()

	r.Get("/health", handleHealth)

	r.Get("/catalog", handleCatalogSearch(deps))
	r.Get("/catalog/search", handleCatalogSearch(deps))
	r.Get("/catalog/stats", handleCatalogStats(deps))
	r.Get("/catalog/export.csv", handleCatalogExport(deps))
	r.Get("/catalog/{id}", handleCatalogGet(deps))

	r.Get("/themes", handleThemes(deps))
	r.Get("/lenses", handleLenses(deps))

	r.Get("/sessions", handleListSessions(deps))
	r.Route("/sessions/{sid}", func(r chi.Router) {
		r.Get("/diagnostic", handleDiagnosticSummary(deps))
		r.Put("/diagnostic/{theme}/{prompt}", handleRecordScore(deps))

		r.Get("/tensions", handleTensionGaps(deps))
		r.Put("/tensions/{axis}", handleSetPosition(deps))
		r.Get("/shifts", handlePriorityShifts(deps))

		r.Post("/actions", handleCreateAction(deps))
		r.Get("/actions", handleListActions(deps))
		r.Patch("/actions/{id}", handleUpdateAction(deps))
		r.Delete("/actions/{id}", handleDeleteAction(deps))
		r.Get("/actions/export.csv", handleExportActions(deps))
		r.Get("/impact", handleImpact(deps))
	})

	return r
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]string{"status": "ok"})
}

// parseFilters reads the structured filter query parameters shared by
// the catalog search and export endpoints.
func parseFilters(r *http.Request) search.Filters {
	q := r.URL.Query()
	return search.Filters{
		Organisations: q["org"],
		OrgTypes:      q["org_type"],
		Countries:     q["country"],
		Scopes:        q["scope"],
		Archetypes:    q["archetype"],
		YearMin:       parseIntParam(r, "year_min", 0, 0),
		YearMax:       parseIntParam(r, "year_max", 0, 0),
	}
}

func handleCatalogSearch(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		records := deps.Search.Search(r.Context(), parseFilters(r), r.URL.Query().Get("q"))
		if records == nil {
			records = []catalog.Record{}
		}
		writeJSON(w, records)
	}
}

func handleCatalogExport(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		records := deps.Search.Search(r.Context(), parseFilters(r), r.URL.Query().Get("q"))
		w.Header().Set("Content-Type", "text/csv")
		w.Header().Set("Content-Disposition", `attachment; filename="strategies_filtered.csv"`)
		if err := catalog.ExportCSV(w, records); err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to export catalog: %v", err)
		}
	}
}

func handleCatalogGet(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		rec, ok := deps.Catalog.Get(id)
		if !ok {
			httpError(w, http.StatusNotFound, "not_found", "record %q not found", id)
			return
		}
		writeJSON(w, rec)
	}
}

func handleCatalogStats(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, deps.Catalog.Stats())
	}
}

func handleThemes(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, deps.Sessions.Themes())
	}
}

func handleLenses(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, deps.Sessions.Axes())
	}
}

func handleListSessions(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sessions, err := deps.Sessions.List()
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to list sessions: %v", err)
			return
		}
		if sessions == nil {
			sessions = []storage.Session{}
		}
		writeJSON(w, sessions)
	}
}

func openSession(deps AppDeps, w http.ResponseWriter, r *http.Request) (*session.Session, bool) {
	sess, err := deps.Sessions.Open(chi.URLParam(r, "sid"))
	if err != nil {
		httpError(w, http.StatusInternalServerError, "api_error", "failed to open session: %v", err)
		return nil, false
	}
	return sess, true
}

func handleDiagnosticSummary(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess, ok := openSession(deps, w, r)
		if !ok {
			return
		}
		summaries, err := sess.Scorer.Summaries()
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to summarise: %v", err)
			return
		}
		writeJSON(w, summaries)
	}
}

func handleRecordScore(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess, ok := openSession(deps, w, r)
		if !ok {
			return
		}

		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
		var req struct {
			Score int `json:"score"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: %v", err)
			return
		}

		theme := chi.URLParam(r, "theme")
		prompt := chi.URLParam(r, "prompt")
		err := sess.Scorer.RecordResponse(theme, prompt, req.Score)
		if errors.Is(err, storage.ErrNotFound) {
			httpError(w, http.StatusNotFound, "not_found", "%v", err)
			return
		}
		if errors.Is(err, diagnostic.ErrInvalidScore) {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "%v", err)
			return
		}
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to record score: %v", err)
			return
		}

		summary, err := sess.Scorer.ThemeSummary(theme)
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to summarise theme: %v", err)
			return
		}
		writeJSON(w, summary)
	}
}

func handleTensionGaps(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess, ok := openSession(deps, w, r)
		if !ok {
			return
		}
		gaps, err := sess.Tensions.Gaps()
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to compute gaps: %v", err)
			return
		}
		writeJSON(w, gaps)
	}
}

func handleSetPosition(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess, ok := openSession(deps, w, r)
		if !ok {
			return
		}

		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
		var req struct {
			Current *float64 `json:"current"`
			Desired *float64 `json:"desired"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: %v", err)
			return
		}
		if req.Current == nil && req.Desired == nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "at least one of current or desired is required")
			return
		}

		axis := chi.URLParam(r, "axis")
		if req.Current != nil {
			if err := setPosition(w, sess, axis, "current", *req.Current); err != nil {
				return
			}
		}
		if req.Desired != nil {
			if err := setPosition(w, sess, axis, "desired", *req.Desired); err != nil {
				return
			}
		}
		writeJSON(w, map[string]string{"status": "updated"})
	}
}

func setPosition(w http.ResponseWriter, sess *session.Session, axis, which string, value float64) error {
	err := sess.Tensions.SetPosition(axis, which, value)
	if errors.Is(err, storage.ErrNotFound) {
		httpError(w, http.StatusNotFound, "not_found", "%v", err)
		return err
	}
	if err != nil {
		httpError(w, http.StatusInternalServerError, "api_error", "failed to set position: %v", err)
		return err
	}
	return nil
}

func handlePriorityShifts(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess, ok := openSession(deps, w, r)
		if !ok {
			return
		}
		top := parseIntParam(r, "top", deps.TopShifts, len(sess.Tensions.Axes()))
		shifts, err := sess.Tensions.PriorityShifts(top)
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to compute shifts: %v", err)
			return
		}
		writeJSON(w, shifts)
	}
}

func handleCreateAction(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess, ok := openSession(deps, w, r)
		if !ok {
			return
		}

		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
		var item ledger.Item
		if err := json.NewDecoder(r.Body).Decode(&item); err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: %v", err)
			return
		}

		id, err := sess.Actions.Create(item)
		if errors.Is(err, ledger.ErrInvalidItem) {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "%v", err)
			return
		}
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to create action: %v", err)
			return
		}

		created, err := sess.Actions.Get(id)
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to load created action: %v", err)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(created)
	}
}

func handleListActions(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess, ok := openSession(deps, w, r)
		if !ok {
			return
		}
		items, err := sess.Actions.List(ledger.Filter{
			Status: r.URL.Query().Get("status"),
			Theme:  r.URL.Query().Get("theme"),
		})
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to list actions: %v", err)
			return
		}
		writeJSON(w, items)
	}
}

func handleUpdateAction(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess, ok := openSession(deps, w, r)
		if !ok {
			return
		}

		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
		var patch ledger.Patch
		if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: %v", err)
			return
		}

		item, err := sess.Actions.Update(chi.URLParam(r, "id"), patch)
		if errors.Is(err, storage.ErrNotFound) {
			httpError(w, http.StatusNotFound, "not_found", "action not found")
			return
		}
		if errors.Is(err, ledger.ErrInvalidItem) {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "%v", err)
			return
		}
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to update action: %v", err)
			return
		}
		writeJSON(w, item)
	}
}

func handleDeleteAction(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess, ok := openSession(deps, w, r)
		if !ok {
			return
		}
		err := sess.Actions.Delete(chi.URLParam(r, "id"))
		if errors.Is(err, storage.ErrNotFound) {
			httpError(w, http.StatusNotFound, "not_found", "action not found")
			return
		}
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to delete action: %v", err)
			return
		}
		writeJSON(w, map[string]string{"status": "deleted"})
	}
}

func handleExportActions(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess, ok := openSession(deps, w, r)
		if !ok {
			return
		}
		filter := ledger.Filter{
			Status: r.URL.Query().Get("status"),
			Theme:  r.URL.Query().Get("theme"),
		}
		w.Header().Set("Content-Type", "text/csv")
		w.Header().Set("Content-Disposition", `attachment; filename="actions.csv"`)
		if err := sess.Actions.ExportCSV(w, filter); err != nil {
			// Headers are already gone; log-and-abort is all we can do.
			httpError(w, http.StatusInternalServerError, "api_error", "failed to export actions: %v", err)
		}
	}
}

func handleImpact(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess, ok := openSession(deps, w, r)
		if !ok {
			return
		}
		impact, err := sess.Actions.ImpactByTheme()
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to compute impact: %v", err)
			return
		}
		if impact == nil {
			impact = []ledger.ThemeImpact{}
		}
		writeJSON(w, impact)
	}
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}

func httpError(w http.ResponseWriter, code int, errType string, format string, args ...any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	msg := fmt.Sprintf(format, args...)
	json.NewEncoder(w).Encode(map[string]any{
		"error": map[string]any{
			"message": msg,
			"type":    errType,
		},
	})
}

// parseIntParam reads an integer query parameter with a default and an
// optional cap (max <= 0 means uncapped).
func parseIntParam(r *http.Request, name string, def, max int) int {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	if max > 0 && v > max {
		return max
	}
	return v
}
