package ledger

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"time"
)

// exportHeader is the fixed CSV column order. Import tooling downstream
// depends on it, so it never changes shape with the filter.
var exportHeader = []string{"id", "title", "owner", "theme", "target_date", "status", "impact_score", "created_at"}

// ExportCSV writes the session's items to w as CSV in insertion order.
// The header row is always written, even for an empty ledger.
func (l *Ledger) ExportCSV(w io.Writer, filter Filter) error {
	items, err := l.List(filter)
	if err != nil {
		return err
	}

	cw := csv.NewWriter(w)
	if err := cw.Write(exportHeader); err != nil {
		return fmt.Errorf("writing export header: %w", err)
	}
	for _, item := range items {
		row := []string{
			item.ID,
			item.Title,
			item.Owner,
			item.Theme,
			item.TargetDate,
			item.Status,
			strconv.FormatFloat(item.ImpactScore, 'f', -1, 64),
			item.CreatedAt.UTC().Format(time.RFC3339),
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("writing export row %s: %w", item.ID, err)
		}
	}
	cw.Flush()
	return cw.Error()
}
