package catalog

import "sort"

// Store holds the loaded catalog. It is immutable: every accessor
// returns copies, and reloading means building a new Store.
type Store struct {
	records []Record
	byID    map[string]Record
}

func newStore(records []Record) *Store {
	sorted := make([]Record, len(records))
	copy(sorted, records)
	sortDefault(sorted)

	byID := make(map[string]Record, len(sorted))
	for _, r := range sorted {
		byID[r.ID] = r
	}
	return &Store{records: sorted, byID: byID}
}

// sortDefault orders records year descending, then title ascending.
// This is the deterministic default order for every catalog view.
func sortDefault(records []Record) {
	sort.SliceStable(records, func(i, j int) bool {
		if records[i].Year != records[j].Year {
			return records[i].Year > records[j].Year
		}
		return records[i].Title < records[j].Title
	})
}

// All returns the full catalog in default order.
func (s *Store) All() []Record {
	out := make([]Record, len(s.records))
	copy(out, s.records)
	return out
}

// Get returns the record with the given id.
func (s *Store) Get(id string) (Record, bool) {
	r, ok := s.byID[id]
	return r, ok
}

// Len returns the number of records in the catalog.
func (s *Store) Len() int {
	return len(s.records)
}

// Stats computes the KPI snapshot over the whole catalog.
func (s *Store) Stats() Stats {
	st := Stats{
		Records:    len(s.records),
		Archetypes: make(map[string]int),
	}
	orgTypes := make(map[string]bool)
	countries := make(map[string]bool)
	for _, r := range s.records {
		if r.OrgType != "" {
			orgTypes[r.OrgType] = true
		}
		if r.Country != "" {
			countries[r.Country] = true
		}
		for _, a := range r.Archetypes {
			st.Archetypes[a]++
		}
		if r.Year > 0 {
			if st.YearMin == 0 || r.Year < st.YearMin {
				st.YearMin = r.Year
			}
			if r.Year > st.YearMax {
				st.YearMax = r.Year
			}
		}
	}
	st.OrgTypes = len(orgTypes)
	st.Countries = len(countries)
	return st
}
