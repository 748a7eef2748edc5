package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"thinkstudio/internal/catalog"
	"thinkstudio/internal/diagnostic"
	"thinkstudio/internal/ledger"
	"thinkstudio/internal/search"
	"thinkstudio/internal/session"
	"thinkstudio/internal/storage"
	"thinkstudio/internal/tension"
)

const testCSV = `id,title,organisation,org_type,country,year,scope,link,archetypes,summary
ndst,National Data Strategy,DCMS,Central government,United Kingdom,2020,National,https://example.org/ndst,foundational,Unlocking value of data.
ons22,ONS Data Strategy,ONS,Statistics agency,United Kingdom,2022,Organisational,https://example.org/ons22,insight-led,Statistics for the public good.
`

func setupAppHandler(t *testing.T) http.Handler {
	t.Helper()

	catalogStore, err := catalog.Parse(strings.NewReader(testCSV))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	store, err := storage.Open(":memory:")
	if err != nil {
		t.Fatalf("Open(:memory:) failed: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	sessions := session.NewManager(store, diagnostic.DefaultThemes(), tension.DefaultAxes())
	engine := search.NewEngine(catalogStore, nil, 0)

	return NewAppHandler(AppDeps{
		Catalog:   catalogStore,
		Search:    engine,
		Sessions:  sessions,
		TopShifts: 3,
	})
}

func doJSON(t *testing.T, h http.Handler, method, path, body string, v any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *strings.Reader
	if body != "" {
		reader = strings.NewReader(body)
	} else {
		reader = strings.NewReader("")
	}
	req := httptest.NewRequest(method, path, reader)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	if v != nil && rr.Code < 400 {
		if err := json.NewDecoder(rr.Body).Decode(v); err != nil {
			t.Fatalf("%s %s: decoding response: %v", method, path, err)
		}
	}
	return rr
}

func TestHealth(t *testing.T) {
	h := setupAppHandler(t)

	var resp map[string]string
	rr := doJSON(t, h, http.MethodGet, "/health", "", &resp)
	if rr.Code != http.StatusOK || resp["status"] != "ok" {
		t.Errorf("health = %d %v", rr.Code, resp)
	}
}

func TestCatalogEndpoints(t *testing.T) {
	h := setupAppHandler(t)

	var records []catalog.Record
	rr := doJSON(t, h, http.MethodGet, "/catalog", "", &records)
	if rr.Code != http.StatusOK || len(records) != 2 {
		t.Fatalf("catalog list = %d, %d records", rr.Code, len(records))
	}
	if records[0].ID != "ons22" {
		t.Errorf("default order: first = %s, want ons22 (newest)", records[0].ID)
	}

	records = nil
	doJSON(t, h, http.MethodGet, "/catalog/search?q=statistics&country=United+Kingdom", "", &records)
	if len(records) != 1 || records[0].ID != "ons22" {
		t.Errorf("search = %v", records)
	}

	var rec catalog.Record
	rr = doJSON(t, h, http.MethodGet, "/catalog/ndst", "", &rec)
	if rr.Code != http.StatusOK || rec.Title != "National Data Strategy" {
		t.Errorf("get = %d %+v", rr.Code, rec)
	}

	rr = doJSON(t, h, http.MethodGet, "/catalog/nope", "", nil)
	if rr.Code != http.StatusNotFound {
		t.Errorf("missing record = %d, want 404", rr.Code)
	}

	var stats catalog.Stats
	doJSON(t, h, http.MethodGet, "/catalog/stats", "", &stats)
	if stats.Records != 2 {
		t.Errorf("stats = %+v", stats)
	}
}

func TestCatalogExport(t *testing.T) {
	h := setupAppHandler(t)

	req := httptest.NewRequest(http.MethodGet, "/catalog/export.csv?country=United+Kingdom&q=statistics", nil)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("export = %d", rr.Code)
	}
	if ct := rr.Header().Get("Content-Type"); ct != "text/csv" {
		t.Errorf("export content type = %q", ct)
	}
	lines := strings.Split(strings.TrimSpace(rr.Body.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected header + 1 filtered row, got %d lines: %q", len(lines), rr.Body.String())
	}
	if !strings.HasPrefix(lines[0], "id,title,organisation,org_type,country,year,scope,link,archetypes,summary") {
		t.Errorf("header = %q", lines[0])
	}
	if !strings.HasPrefix(lines[1], "ons22,") {
		t.Errorf("row = %q, want the matching ons22 record", lines[1])
	}

	// No matches still yields the header.
	req = httptest.NewRequest(http.MethodGet, "/catalog/export.csv?country=Atlantis", nil)
	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	lines = strings.Split(strings.TrimSpace(rr.Body.String()), "\n")
	if len(lines) != 1 {
		t.Errorf("empty export = %d lines, want header only", len(lines))
	}
}

func TestContentEndpoints(t *testing.T) {
	h := setupAppHandler(t)

	var themes []diagnostic.Theme
	doJSON(t, h, http.MethodGet, "/themes", "", &themes)
	if len(themes) != 6 {
		t.Errorf("themes = %d, want 6", len(themes))
	}

	var axes []tension.Axis
	doJSON(t, h, http.MethodGet, "/lenses", "", &axes)
	if len(axes) != 10 {
		t.Errorf("lenses = %d, want 10", len(axes))
	}
}

func TestDiagnosticFlow(t *testing.T) {
	h := setupAppHandler(t)

	var summary diagnostic.Summary
	rr := doJSON(t, h, http.MethodPut, "/sessions/default/diagnostic/Uses/uses-1", `{"score":4}`, &summary)
	if rr.Code != http.StatusOK {
		t.Fatalf("record score = %d: %s", rr.Code, rr.Body.String())
	}
	if summary.Mean == nil || *summary.Mean != 4 || summary.CountAnswered != 1 {
		t.Errorf("summary = %+v", summary)
	}

	rr = doJSON(t, h, http.MethodPut, "/sessions/default/diagnostic/Uses/uses-1", `{"score":9}`, nil)
	if rr.Code != http.StatusBadRequest {
		t.Errorf("invalid score = %d, want 400", rr.Code)
	}

	rr = doJSON(t, h, http.MethodPut, "/sessions/default/diagnostic/Vibes/v-1", `{"score":3}`, nil)
	if rr.Code != http.StatusNotFound {
		t.Errorf("unknown theme = %d, want 404", rr.Code)
	}

	var summaries []diagnostic.Summary
	doJSON(t, h, http.MethodGet, "/sessions/default/diagnostic", "", &summaries)
	if len(summaries) != 6 {
		t.Errorf("summaries = %d, want 6", len(summaries))
	}
}

func TestTensionFlow(t *testing.T) {
	h := setupAppHandler(t)

	rr := doJSON(t, h, http.MethodPut, "/sessions/default/tensions/Ambition", `{"current":3,"desired":15}`, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("set position = %d: %s", rr.Code, rr.Body.String())
	}

	rr = doJSON(t, h, http.MethodPut, "/sessions/default/tensions/Ambition", `{}`, nil)
	if rr.Code != http.StatusBadRequest {
		t.Errorf("empty body = %d, want 400", rr.Code)
	}

	rr = doJSON(t, h, http.MethodPut, "/sessions/default/tensions/Mystery", `{"current":1}`, nil)
	if rr.Code != http.StatusNotFound {
		t.Errorf("unknown axis = %d, want 404", rr.Code)
	}

	var gaps []tension.Gap
	doJSON(t, h, http.MethodGet, "/sessions/default/tensions", "", &gaps)
	if len(gaps) != 10 {
		t.Fatalf("gaps = %d, want 10", len(gaps))
	}
	top := gaps[0]
	if top.Axis != "Ambition" || top.Current != 3 || top.Desired != 10 {
		t.Errorf("top gap = %+v, want Ambition 3 -> 10 (clamped)", top)
	}

	var shifts []tension.Gap
	doJSON(t, h, http.MethodGet, "/sessions/default/shifts?top=2", "", &shifts)
	if len(shifts) != 2 {
		t.Errorf("shifts = %d, want 2", len(shifts))
	}
}

func TestActionFlow(t *testing.T) {
	h := setupAppHandler(t)

	var created ledger.Item
	rr := doJSON(t, h, http.MethodPost, "/sessions/default/actions",
		`{"title":"Publish catalog","theme":"Data","impact_score":4}`, &created)
	if rr.Code != http.StatusCreated {
		t.Fatalf("create = %d: %s", rr.Code, rr.Body.String())
	}
	if created.ID == "" || created.Status != ledger.StatusNotStarted {
		t.Errorf("created = %+v", created)
	}

	rr = doJSON(t, h, http.MethodPost, "/sessions/default/actions", `{"title":""}`, nil)
	if rr.Code != http.StatusBadRequest {
		t.Errorf("empty title = %d, want 400", rr.Code)
	}

	var updated ledger.Item
	rr = doJSON(t, h, http.MethodPatch, "/sessions/default/actions/"+created.ID, `{"status":"done"}`, &updated)
	if rr.Code != http.StatusOK || updated.Status != ledger.StatusDone {
		t.Errorf("update = %d %+v", rr.Code, updated)
	}

	rr = doJSON(t, h, http.MethodPatch, "/sessions/default/actions/nope", `{"status":"done"}`, nil)
	if rr.Code != http.StatusNotFound {
		t.Errorf("update missing = %d, want 404", rr.Code)
	}

	var impact []ledger.ThemeImpact
	doJSON(t, h, http.MethodGet, "/sessions/default/impact", "", &impact)
	if len(impact) != 1 || impact[0].Theme != "Data" || impact[0].Impact != 4 {
		t.Errorf("impact = %+v", impact)
	}

	req := httptest.NewRequest(http.MethodGet, "/sessions/default/actions/export.csv", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("export = %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "text/csv" {
		t.Errorf("export content type = %q", ct)
	}
	lines := strings.Split(strings.TrimSpace(rec.Body.String()), "\n")
	if len(lines) != 2 || !strings.HasPrefix(lines[0], "id,title,owner,theme,target_date,status,impact_score,created_at") {
		t.Errorf("export body = %q", rec.Body.String())
	}

	rr = doJSON(t, h, http.MethodDelete, "/sessions/default/actions/"+created.ID, "", nil)
	if rr.Code != http.StatusOK {
		t.Errorf("delete = %d", rr.Code)
	}

	var items []ledger.Item
	doJSON(t, h, http.MethodGet, "/sessions/default/actions", "", &items)
	if len(items) != 0 {
		t.Errorf("actions after delete = %+v", items)
	}
}

func TestSessionsAreIsolatedOverHTTP(t *testing.T) {
	h := setupAppHandler(t)

	doJSON(t, h, http.MethodPut, "/sessions/alpha/diagnostic/Uses/uses-1", `{"score":5}`, nil)

	var summaries []diagnostic.Summary
	doJSON(t, h, http.MethodGet, "/sessions/beta/diagnostic", "", &summaries)
	for _, s := range summaries {
		if s.CountAnswered != 0 {
			t.Errorf("session beta sees alpha's answers: %+v", s)
		}
	}

	var sessions []storage.Session
	doJSON(t, h, http.MethodGet, "/sessions", "", &sessions)
	if len(sessions) != 2 {
		t.Errorf("sessions = %d, want 2", len(sessions))
	}
}

func TestErrorShape(t *testing.T) {
	h := setupAppHandler(t)

	req := httptest.NewRequest(http.MethodGet, "/catalog/nope", nil)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	var resp struct {
		Error struct {
			Message string `json:"message"`
			Type    string `json:"type"`
		} `json:"error"`
	}
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decoding error body: %v", err)
	}
	if resp.Error.Type != "not_found" || resp.Error.Message == "" {
		t.Errorf("error = %+v", resp.Error)
	}
	if got := rr.Header().Get("Content-Type"); got != "application/json" {
		t.Errorf("error content type = %q", got)
	}
}
