// Package diagnostic scores an organisation's data maturity against a
// small set of themed prompts. Scores run 1..5; a theme's summary is
// the mean over its answered prompts only, so "unanswered" is always
// distinguishable from any real score.
package diagnostic

import (
	"errors"
	"fmt"
	"sort"

	"thinkstudio/internal/storage"
)

// ErrInvalidScore is returned for scores outside 1..5. The prior
// recorded value, if any, is left unchanged.
var ErrInvalidScore = errors.New("invalid score")

// ResponseStore persists diagnostic answers per session.
type ResponseStore interface {
	UpsertResponse(sessionID, theme, promptID string, score int) error
	GetResponses(sessionID, theme string) (map[string]int, error)
}

// Summary reports one theme's progress. Mean is nil when no prompt has
// been answered yet ("no data", never zero).
type Summary struct {
	Theme         string   `json:"theme"`
	Mean          *float64 `json:"mean,omitempty"`
	Level         string   `json:"level,omitempty"`
	CountAnswered int      `json:"count_answered"`
	CountTotal    int      `json:"count_total"`
}

// Scorer records and summarises diagnostic responses for one session.
type Scorer struct {
	store   ResponseStore
	session string
	themes  []Theme
	byName  map[string]Theme
}

// NewScorer creates a Scorer bound to a session key.
func NewScorer(store ResponseStore, sessionID string, themes []Theme) *Scorer {
	byName := make(map[string]Theme, len(themes))
	for _, t := range themes {
		byName[t.Name] = t
	}
	return &Scorer{store: store, session: sessionID, themes: themes, byName: byName}
}

// Themes returns the theme definitions in declaration order.
func (s *Scorer) Themes() []Theme {
	return s.themes
}

// RecordResponse stores score for a prompt. Re-answering overwrites
// the prior value. Scores outside 1..5 are rejected with
// ErrInvalidScore and leave prior state untouched.
func (s *Scorer) RecordResponse(theme, promptID string, score int) error {
	t, ok := s.byName[theme]
	if !ok {
		return fmt.Errorf("theme %q: %w", theme, storage.ErrNotFound)
	}
	if !hasPrompt(t, promptID) {
		return fmt.Errorf("prompt %q in theme %q: %w", promptID, theme, storage.ErrNotFound)
	}
	if score < 1 || score > 5 {
		return fmt.Errorf("score %d for %s/%s is outside 1..5: %w", score, theme, promptID, ErrInvalidScore)
	}
	return s.store.UpsertResponse(s.session, theme, promptID, score)
}

// ThemeSummary computes the summary for one theme.
func (s *Scorer) ThemeSummary(theme string) (Summary, error) {
	t, ok := s.byName[theme]
	if !ok {
		return Summary{}, fmt.Errorf("theme %q: %w", theme, storage.ErrNotFound)
	}

	responses, err := s.store.GetResponses(s.session, theme)
	if err != nil {
		return Summary{}, fmt.Errorf("loading responses for %s: %w", theme, err)
	}

	sum := Summary{Theme: t.Name, CountTotal: len(t.Prompts)}
	var total int
	for _, p := range t.Prompts {
		if score, ok := responses[p.ID]; ok {
			sum.CountAnswered++
			total += score
		}
	}
	if sum.CountAnswered > 0 {
		mean := float64(total) / float64(sum.CountAnswered)
		sum.Mean = &mean
		sum.Level = LevelName(mean)
	}
	return sum, nil
}

// Summaries returns every theme's summary sorted by theme name for
// deterministic display.
func (s *Scorer) Summaries() ([]Summary, error) {
	out := make([]Summary, 0, len(s.themes))
	for _, t := range s.themes {
		sum, err := s.ThemeSummary(t.Name)
		if err != nil {
			return nil, err
		}
		out = append(out, sum)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Theme < out[j].Theme })
	return out, nil
}

func hasPrompt(t Theme, promptID string) bool {
	for _, p := range t.Prompts {
		if p.ID == promptID {
			return true
		}
	}
	return false
}
