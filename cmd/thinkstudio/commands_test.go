package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
)

type recordedRequest struct {
	Method string
	Path   string
	Body   string
}

type testServer struct {
	server   *httptest.Server
	requests []recordedRequest
}

func newTestServer(t *testing.T, responses map[string]string) *testServer {
	t.Helper()
	ts := &testServer{}

	ts.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body bytes.Buffer
		body.ReadFrom(r.Body)

		ts.requests = append(ts.requests, recordedRequest{
			Method: r.Method,
			Path:   r.URL.RequestURI(),
			Body:   body.String(),
		})

		key := r.Method + " " + r.URL.Path
		if resp, ok := responses[key]; ok {
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(resp))
			return
		}

		w.WriteHeader(404)
		w.Write([]byte(`{"error":{"message":"not found","type":"not_found"}}`))
	}))

	t.Cleanup(ts.server.Close)
	return ts
}

func (ts *testServer) client() *apiClient {
	return &apiClient{
		baseURL:    ts.server.URL,
		httpClient: ts.server.Client(),
	}
}

var ctx = context.Background()

func TestCatalogList(t *testing.T) {
	ts := newTestServer(t, map[string]string{
		"GET /catalog": `[{"id":"ndst","title":"National Data Strategy","year":2020},{"id":"ons22","title":"ONS Data Strategy","year":2022}]`,
	})

	client := ts.client()
	resp, err := client.get(ctx, "/catalog")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var records []struct {
		ID   string `json:"id"`
		Year int    `json:"year"`
	}
	if err := decodeJSON(resp, &records); err != nil {
		t.Fatalf("decode error: %v", err)
	}

	if len(records) != 2 {
		t.Fatalf("expected 2 records, got %d", len(records))
	}
	if records[0].ID != "ndst" {
		t.Errorf("id = %q, want ndst", records[0].ID)
	}
}

func TestCatalogSearch_URLEncoding(t *testing.T) {
	ts := newTestServer(t, map[string]string{
		"GET /catalog": `[]`,
	})

	client := ts.client()
	query := "health & social care"
	path := "/catalog?q=" + url.QueryEscape(query) + "&country=" + url.QueryEscape("United Kingdom")
	resp, err := client.get(ctx, path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer resp.Body.Close()

	if len(ts.requests) != 1 {
		t.Fatalf("expected 1 request, got %d", len(ts.requests))
	}

	reqPath := ts.requests[0].Path
	if strings.Contains(reqPath, "& social") {
		t.Errorf("query not URL-encoded: %q", reqPath)
	}
	if !strings.Contains(reqPath, "q=health+%26+social+care") {
		t.Errorf("unexpected encoded path: %q", reqPath)
	}
	if !strings.Contains(reqPath, "country=United+Kingdom") {
		t.Errorf("country filter missing from path: %q", reqPath)
	}
}

func TestSessionPath(t *testing.T) {
	old := sessionID
	defer func() { sessionID = old }()

	sessionID = ""
	if got := sessionPath("/actions"); got != "/sessions/default/actions" {
		t.Errorf("sessionPath = %q, want default session", got)
	}

	sessionID = "workshop"
	if got := sessionPath("/diagnostic"); got != "/sessions/workshop/diagnostic" {
		t.Errorf("sessionPath = %q, want workshop session", got)
	}
}

func TestDiagnoseScore(t *testing.T) {
	ts := newTestServer(t, map[string]string{
		"PUT /sessions/default/diagnostic/Uses/uses-1": `{"theme":"Uses","mean":4,"level":"Managed","count_answered":1,"count_total":4}`,
	})

	client := ts.client()
	resp, err := client.put(ctx, "/sessions/default/diagnostic/Uses/uses-1", map[string]int{"score": 4})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var summary struct {
		Theme string `json:"theme"`
		Level string `json:"level"`
	}
	if err := decodeJSON(resp, &summary); err != nil {
		t.Fatalf("decode error: %v", err)
	}
	if summary.Theme != "Uses" || summary.Level != "Managed" {
		t.Errorf("summary = %+v", summary)
	}

	var body map[string]any
	if err := json.Unmarshal([]byte(ts.requests[0].Body), &body); err != nil {
		t.Fatalf("body parse error: %v", err)
	}
	if body["score"] != float64(4) {
		t.Errorf("body.score = %v, want 4", body["score"])
	}
}

func TestDiagnoseScore_MissingArgs(t *testing.T) {
	defer rootCmd.SetArgs(nil)

	rootCmd.SetArgs([]string{"diagnose", "score", "Uses"})
	err := rootCmd.Execute()
	if err == nil {
		t.Fatal("expected error for missing args")
	}
	if !strings.Contains(err.Error(), "arg") {
		t.Errorf("error = %q, want it to mention arguments", err.Error())
	}
}

func TestLensesSet(t *testing.T) {
	ts := newTestServer(t, map[string]string{
		"PUT /sessions/default/tensions/Ambition": `{"status":"updated"}`,
	})

	client := ts.client()
	body := map[string]any{"current": 3.0, "desired": 8.0}
	resp, err := client.put(ctx, "/sessions/default/tensions/Ambition", body)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var result map[string]string
	if err := decodeJSON(resp, &result); err != nil {
		t.Fatalf("decode error: %v", err)
	}

	var sentBody map[string]any
	if err := json.Unmarshal([]byte(ts.requests[0].Body), &sentBody); err != nil {
		t.Fatalf("body parse error: %v", err)
	}
	if sentBody["current"] != float64(3) || sentBody["desired"] != float64(8) {
		t.Errorf("body = %v", sentBody)
	}
}

func TestActionsAdd(t *testing.T) {
	ts := newTestServer(t, map[string]string{
		"POST /sessions/default/actions": `{"id":"a1","title":"Publish catalog","status":"not_started"}`,
	})

	client := ts.client()
	item := map[string]any{
		"title":        "Publish catalog",
		"theme":        "Data",
		"impact_score": 4.5,
	}
	resp, err := client.post(ctx, "/sessions/default/actions", item)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var created struct {
		ID string `json:"id"`
	}
	if err := decodeJSON(resp, &created); err != nil {
		t.Fatalf("decode error: %v", err)
	}
	if created.ID != "a1" {
		t.Errorf("id = %q, want a1", created.ID)
	}

	r := ts.requests[0]
	if r.Method != "POST" {
		t.Errorf("method = %q, want POST", r.Method)
	}

	var body map[string]any
	if err := json.Unmarshal([]byte(r.Body), &body); err != nil {
		t.Fatalf("body parse error: %v", err)
	}
	if body["title"] != "Publish catalog" {
		t.Errorf("body.title = %v", body["title"])
	}
	if body["impact_score"] != 4.5 {
		t.Errorf("body.impact_score = %v, want 4.5", body["impact_score"])
	}
}

func TestCatalogExport_RawCSV(t *testing.T) {
	csv := "id,title,organisation,org_type,country,year,scope,link,archetypes,summary,source,date_added\nons22,ONS Data Strategy,ONS,Statistics agency,United Kingdom,2022,Organisational,https://example.org/ons22,insight-led,Statistics for the public good.,,\n"
	ts := newTestServer(t, map[string]string{
		"GET /catalog/export.csv": csv,
	})

	client := ts.client()
	resp, err := client.get(ctx, "/catalog/export.csv?country="+url.QueryEscape("United Kingdom"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer resp.Body.Close()

	var buf bytes.Buffer
	buf.ReadFrom(resp.Body)
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected header + 1 row, got %d lines", len(lines))
	}
	if !strings.HasPrefix(lines[0], "id,title,organisation") {
		t.Errorf("header = %q", lines[0])
	}
	if !strings.Contains(ts.requests[0].Path, "country=United+Kingdom") {
		t.Errorf("filter missing from path: %q", ts.requests[0].Path)
	}
}

func TestActionsExport_RawCSV(t *testing.T) {
	csv := "id,title,owner,theme,target_date,status,impact_score,created_at\na1,Publish catalog,,Data,,done,4.5,2025-01-01T00:00:00Z\n"
	ts := newTestServer(t, map[string]string{
		"GET /sessions/default/actions/export.csv": csv,
	})

	client := ts.client()
	resp, err := client.get(ctx, "/sessions/default/actions/export.csv")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer resp.Body.Close()

	var buf bytes.Buffer
	buf.ReadFrom(resp.Body)
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected header + 1 row, got %d lines", len(lines))
	}
	if !strings.HasPrefix(lines[0], "id,title,owner") {
		t.Errorf("header = %q", lines[0])
	}
}

func TestStatusCommand_Stopped(t *testing.T) {
	ts := newTestServer(t, map[string]string{})
	ts.server.Close()

	client := ts.client()
	_, err := client.get(ctx, "/health")
	if err == nil {
		t.Fatal("expected error for stopped server")
	}
	if !strings.Contains(err.Error(), "not reachable") {
		t.Errorf("error = %q, want it to mention 'not reachable'", err.Error())
	}
}

func TestDecodeJSON_ErrorResponse(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(404)
		w.Write([]byte(`{"error":{"message":"no such record","type":"not_found"}}`))
	}))
	defer ts.Close()

	client := &apiClient{
		baseURL:    ts.URL,
		httpClient: ts.Client(),
	}

	resp, err := client.get(ctx, "/catalog/nope")
	if err != nil {
		t.Fatalf("unexpected transport error: %v", err)
	}

	var result any
	err = decodeJSON(resp, &result)
	if err == nil {
		t.Fatal("expected error for 404 response")
	}
	if !strings.Contains(err.Error(), "404") {
		t.Errorf("error = %q, want it to contain '404'", err.Error())
	}
}

func TestNoColorFlag(t *testing.T) {
	old := noColor
	defer func() { noColor = old }()

	noColor = true
	result := colorize(colorGreen, "test message")
	if strings.Contains(result, "\033[") {
		t.Errorf("colorize with noColor=true should not contain ANSI codes, got %q", result)
	}
	if result != "test message" {
		t.Errorf("result = %q, want %q", result, "test message")
	}

	noColor = false
	result = colorize(colorGreen, "test message")
	if !strings.Contains(result, "\033[") {
		t.Errorf("colorize with noColor=false should contain ANSI codes, got %q", result)
	}
}

func TestStatusLineAlignment(t *testing.T) {
	old := noColor
	defer func() { noColor = old }()
	noColor = true

	short := statusLine("Server", "running")
	long := statusLine("Semantic search", "disabled")

	if !strings.HasPrefix(short, "  Server:") {
		t.Errorf("line = %q", short)
	}
	// Values start in the same column regardless of label length.
	if strings.Index(short, "running") != strings.Index(long, "disabled") {
		t.Errorf("columns misaligned: %q vs %q", short, long)
	}
}
