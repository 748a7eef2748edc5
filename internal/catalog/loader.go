package catalog

import (
	"encoding/csv"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"
)

// columns is the authoritative header set for strategies.csv. Extra
// columns are ignored; title and url are the only ones a row cannot
// live without.
var columns = []string{
	"id", "title", "organisation", "org_type", "country", "year",
	"scope", "link", "archetypes", "summary", "source", "date_added",
}

// Load reads the catalog CSV at path and returns a Store.
func Load(path string) (*Store, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening catalog: %w", err)
	}
	defer f.Close()
	return Parse(f)
}

// Parse reads catalog rows from r. Malformed rows (missing title or
// url, duplicate id) are skipped with a logged warning, never fatal.
func Parse(r io.Reader) (*Store, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("reading catalog header: %w", err)
	}
	idx := make(map[string]int, len(header))
	for i, h := range header {
		idx[strings.ToLower(strings.TrimSpace(h))] = i
	}
	if _, ok := idx["title"]; !ok {
		return nil, fmt.Errorf("catalog header missing %q column (expected columns: %s)", "title", strings.Join(columns, ","))
	}

	field := func(row []string, name string) string {
		i, ok := idx[name]
		if !ok || i >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[i])
	}

	var records []Record
	seen := make(map[string]bool)
	line := 1
	for {
		row, err := cr.Read()
		if err == io.EOF {
			break
		}
		line++
		if err != nil {
			slog.Warn("skipping malformed catalog row", "line", line, "error", err)
			continue
		}

		rec := Record{
			Title:        field(row, "title"),
			Organisation: field(row, "organisation"),
			OrgType:      field(row, "org_type"),
			Country:      field(row, "country"),
			Scope:        field(row, "scope"),
			URL:          field(row, "link"),
			Summary:      field(row, "summary"),
			Source:       field(row, "source"),
			DateAdded:    field(row, "date_added"),
		}
		if rec.Title == "" || rec.URL == "" {
			slog.Warn("skipping catalog row with missing title or url", "line", line, "title", rec.Title)
			continue
		}

		if y := field(row, "year"); y != "" {
			n, err := strconv.Atoi(y)
			if err != nil {
				slog.Warn("ignoring unparseable year", "line", line, "year", y)
			} else {
				rec.Year = n
			}
		}

		rec.Archetypes = splitTags(field(row, "archetypes"))

		rec.ID = field(row, "id")
		if rec.ID == "" {
			rec.ID = slug(rec.Title + "-" + rec.Organisation)
		}
		if seen[rec.ID] {
			slog.Warn("skipping catalog row with duplicate id", "line", line, "id", rec.ID)
			continue
		}
		seen[rec.ID] = true

		records = append(records, rec)
	}

	return newStore(records), nil
}

// splitTags parses the semicolon-separated archetype cell.
func splitTags(cell string) []string {
	if cell == "" {
		return nil
	}
	var tags []string
	for _, t := range strings.Split(cell, ";") {
		t = strings.TrimSpace(t)
		if t != "" {
			tags = append(tags, t)
		}
	}
	return tags
}

// slug derives a stable lowercase id from free text.
func slug(s string) string {
	var b strings.Builder
	lastDash := true
	for _, r := range strings.ToLower(s) {
		switch {
		case r >= 'a' && r <= 'z' || r >= '0' && r <= '9':
			b.WriteRune(r)
			lastDash = false
		default:
			if !lastDash {
				b.WriteByte('-')
				lastDash = true
			}
		}
	}
	return strings.Trim(b.String(), "-")
}
