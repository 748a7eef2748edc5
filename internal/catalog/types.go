package catalog

import "strings"

// Record is a single curated strategy document. Records are immutable
// after load; the catalog is replaced wholesale on reload.
type Record struct {
	ID           string   `json:"id"`
	Title        string   `json:"title"`
	Organisation string   `json:"organisation"`
	OrgType      string   `json:"org_type,omitempty"`
	Country      string   `json:"country,omitempty"`
	Year         int      `json:"year,omitempty"`
	Scope        string   `json:"scope,omitempty"`
	URL          string   `json:"url"`
	Summary      string   `json:"summary,omitempty"`
	Source       string   `json:"source,omitempty"`
	Archetypes   []string `json:"archetypes,omitempty"`
	DateAdded    string   `json:"date_added,omitempty"`
}

// HasArchetype reports whether the record carries the given archetype tag.
func (r Record) HasArchetype(tag string) bool {
	for _, a := range r.Archetypes {
		if strings.EqualFold(a, tag) {
			return true
		}
	}
	return false
}

// Stats summarises the catalog for the KPI snapshot view.
type Stats struct {
	Records    int            `json:"records"`
	OrgTypes   int            `json:"org_types"`
	Countries  int            `json:"countries"`
	YearMin    int            `json:"year_min,omitempty"`
	YearMax    int            `json:"year_max,omitempty"`
	Archetypes map[string]int `json:"archetypes"`
}
