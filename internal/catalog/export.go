package catalog

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// ExportCSV writes records to w as CSV in the given order, using the
// same column set the loader reads, so an exported file round-trips
// through Parse. The header row is always written, even when no
// records matched.
func ExportCSV(w io.Writer, records []Record) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(columns); err != nil {
		return fmt.Errorf("writing export header: %w", err)
	}
	for _, r := range records {
		year := ""
		if r.Year != 0 {
			year = strconv.Itoa(r.Year)
		}
		row := []string{
			r.ID,
			r.Title,
			r.Organisation,
			r.OrgType,
			r.Country,
			year,
			r.Scope,
			r.URL,
			strings.Join(r.Archetypes, ";"),
			r.Summary,
			r.Source,
			r.DateAdded,
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("writing export row %s: %w", r.ID, err)
		}
	}
	cw.Flush()
	return cw.Error()
}
