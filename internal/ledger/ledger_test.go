package ledger

import (
	"bytes"
	"encoding/csv"
	"errors"
	"strings"
	"testing"

	"thinkstudio/internal/storage"
)

func newTestLedger(t *testing.T) *Ledger {
	t.Helper()
	store, err := storage.Open(":memory:")
	if err != nil {
		t.Fatalf("Open(:memory:) failed: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	if err := store.EnsureSession("default"); err != nil {
		t.Fatalf("EnsureSession: %v", err)
	}
	return NewLedger(store, "default")
}

func TestCreateDefaultsAndValidation(t *testing.T) {
	l := newTestLedger(t)

	id, err := l.Create(Item{Title: "Stand up data catalog"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	item, err := l.Get(id)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if item.Status != StatusNotStarted {
		t.Errorf("status = %q, want %q", item.Status, StatusNotStarted)
	}
	if item.CreatedAt.IsZero() {
		t.Error("CreatedAt not set")
	}

	if _, err := l.Create(Item{}); !errors.Is(err, ErrInvalidItem) {
		t.Errorf("empty title: got %v, want ErrInvalidItem", err)
	}
	if _, err := l.Create(Item{Title: "x", Status: "paused"}); !errors.Is(err, ErrInvalidItem) {
		t.Errorf("bad status: got %v, want ErrInvalidItem", err)
	}
	if _, err := l.Create(Item{Title: "x", TargetDate: "next week"}); !errors.Is(err, ErrInvalidItem) {
		t.Errorf("bad date: got %v, want ErrInvalidItem", err)
	}
}

func TestUpdatePatchIsAllOrNothing(t *testing.T) {
	l := newTestLedger(t)

	id, err := l.Create(Item{Title: "Original", Owner: "dana"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	newTitle := "Renamed"
	badStatus := "paused"
	_, err = l.Update(id, Patch{Title: &newTitle, Status: &badStatus})
	if !errors.Is(err, ErrInvalidItem) {
		t.Fatalf("got %v, want ErrInvalidItem", err)
	}

	item, err := l.Get(id)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if item.Title != "Original" {
		t.Errorf("rejected patch partially applied: title = %q", item.Title)
	}

	goodStatus := StatusInProgress
	updated, err := l.Update(id, Patch{Title: &newTitle, Status: &goodStatus})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if updated.Title != "Renamed" || updated.Status != StatusInProgress {
		t.Errorf("update not applied: %+v", updated)
	}
	if updated.Owner != "dana" {
		t.Errorf("unpatched field changed: owner = %q", updated.Owner)
	}
}

func TestUpdateAndDeleteUnknownID(t *testing.T) {
	l := newTestLedger(t)

	title := "x"
	if _, err := l.Update("nope", Patch{Title: &title}); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("Update: got %v, want ErrNotFound", err)
	}
	if err := l.Delete("nope"); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("Delete: got %v, want ErrNotFound", err)
	}
}

func TestListInsertionOrderAndFilter(t *testing.T) {
	l := newTestLedger(t)

	titles := []string{"first", "second", "third"}
	var ids []string
	for _, title := range titles {
		id, err := l.Create(Item{Title: title, Theme: "Data"})
		if err != nil {
			t.Fatalf("Create %s: %v", title, err)
		}
		ids = append(ids, id)
	}

	done := StatusDone
	if _, err := l.Update(ids[1], Patch{Status: &done}); err != nil {
		t.Fatalf("Update: %v", err)
	}

	items, err := l.List(Filter{})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	for i, item := range items {
		if item.Title != titles[i] {
			t.Errorf("position %d: %q, want %q", i, item.Title, titles[i])
		}
	}

	doneItems, err := l.List(Filter{Status: StatusDone})
	if err != nil {
		t.Fatalf("List done: %v", err)
	}
	if len(doneItems) != 1 || doneItems[0].Title != "second" {
		t.Errorf("done filter = %+v", doneItems)
	}
}

func TestExportCSVHeaderAndRows(t *testing.T) {
	l := newTestLedger(t)

	var buf bytes.Buffer
	if err := l.ExportCSV(&buf, Filter{}); err != nil {
		t.Fatalf("ExportCSV empty: %v", err)
	}
	if got := strings.TrimSpace(buf.String()); got != strings.Join(exportHeader, ",") {
		t.Errorf("empty export = %q, want header only", got)
	}

	impact := 4.5
	id, err := l.Create(Item{Title: "Publish, with commas", Owner: "sam", Theme: "Tools", TargetDate: "2026-09-30"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	done := StatusDone
	if _, err := l.Update(id, Patch{Status: &done, ImpactScore: &impact}); err != nil {
		t.Fatalf("Update: %v", err)
	}

	buf.Reset()
	if err := l.ExportCSV(&buf, Filter{}); err != nil {
		t.Fatalf("ExportCSV: %v", err)
	}

	rows, err := csv.NewReader(&buf).ReadAll()
	if err != nil {
		t.Fatalf("reading export back: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("expected header + 1 row, got %d rows", len(rows))
	}
	row := rows[1]
	if row[0] != id || row[1] != "Publish, with commas" || row[5] != StatusDone || row[6] != "4.5" {
		t.Errorf("row = %v", row)
	}
	if row[7] == "" {
		t.Error("created_at column empty")
	}
}

func TestImpactByTheme(t *testing.T) {
	l := newTestLedger(t)

	add := func(theme string, impact float64, status string) {
		t.Helper()
		id, err := l.Create(Item{Title: theme + " work", Theme: theme, ImpactScore: impact})
		if err != nil {
			t.Fatalf("Create: %v", err)
		}
		if status != StatusNotStarted {
			if _, err := l.Update(id, Patch{Status: &status}); err != nil {
				t.Fatalf("Update: %v", err)
			}
		}
	}

	add("Data", 3, StatusDone)
	add("Data", 2, StatusDone)
	add("Tools", 4, StatusDone)
	add("Skills", 9, StatusInProgress) // not done, excluded

	impact, err := l.ImpactByTheme()
	if err != nil {
		t.Fatalf("ImpactByTheme: %v", err)
	}
	if len(impact) != 2 {
		t.Fatalf("themes = %+v, want 2", impact)
	}
	if impact[0].Theme != "Data" || impact[0].Impact != 5 || impact[0].Count != 2 {
		t.Errorf("top theme = %+v, want Data 5 over 2", impact[0])
	}
	if impact[1].Theme != "Tools" || impact[1].Impact != 4 {
		t.Errorf("second theme = %+v", impact[1])
	}
}
