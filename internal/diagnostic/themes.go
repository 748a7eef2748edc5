package diagnostic

import (
	"fmt"
	"io"

	"gopkg.in/yaml.v3"
)

// Prompt is one diagnostic question within a theme.
type Prompt struct {
	ID   string `yaml:"id" json:"id"`
	Text string `yaml:"text" json:"text"`
}

// Theme is a named cluster of prompts measuring one maturity
// dimension. Prompt order is the declared order.
type Theme struct {
	Name    string   `yaml:"name" json:"name"`
	Prompts []Prompt `yaml:"prompts" json:"prompts"`
}

// Level names follow the Data Maturity Assessment for Government
// framework (1..5).
var levelNames = []string{"Beginning", "Emerging", "Learning", "Developing", "Mastering"}

// LevelName maps a mean score to the framework level label.
func LevelName(mean float64) string {
	switch {
	case mean < 1.5:
		return levelNames[0]
	case mean < 2.5:
		return levelNames[1]
	case mean < 3.5:
		return levelNames[2]
	case mean < 4.5:
		return levelNames[3]
	default:
		return levelNames[4]
	}
}

// DefaultThemes returns the six built-in maturity themes. Curators can
// replace them with a YAML content pack (see LoadThemes).
func DefaultThemes() []Theme {
	return []Theme{
		{Name: "Uses", Prompts: []Prompt{
			{ID: "uses-1", Text: "Decisions at every level are routinely informed by data."},
			{ID: "uses-2", Text: "We can evidence the impact of our services with data."},
			{ID: "uses-3", Text: "Data is used to improve and redesign services."},
		}},
		{Name: "Data", Prompts: []Prompt{
			{ID: "data-1", Text: "Our critical data assets are catalogued and discoverable."},
			{ID: "data-2", Text: "Data quality is measured and managed for key datasets."},
			{ID: "data-3", Text: "Data is interoperable across systems and teams."},
		}},
		{Name: "Leadership", Prompts: []Prompt{
			{ID: "lead-1", Text: "Senior leaders own and champion the data strategy."},
			{ID: "lead-2", Text: "Accountability for data is clearly assigned."},
			{ID: "lead-3", Text: "Investment in data capability is sustained, not one-off."},
		}},
		{Name: "Culture", Prompts: []Prompt{
			{ID: "cult-1", Text: "Staff across the organisation are aware of the value of data."},
			{ID: "cult-2", Text: "Data sharing is the default where it is safe and lawful."},
			{ID: "cult-3", Text: "Responsibility for data security is understood by everyone."},
		}},
		{Name: "Tools", Prompts: []Prompt{
			{ID: "tool-1", Text: "Our tools for storing and sharing data meet user needs."},
			{ID: "tool-2", Text: "Analytical tooling is available to those who need it."},
			{ID: "tool-3", Text: "Legacy systems do not block access to important data."},
		}},
		{Name: "Skills", Prompts: []Prompt{
			{ID: "skil-1", Text: "Data literacy is part of general staff development."},
			{ID: "skil-2", Text: "We can recruit and retain specialist data professionals."},
			{ID: "skil-3", Text: "Analysts have clear routes to develop their skills."},
		}},
	}
}

type themePack struct {
	Themes []Theme `yaml:"themes"`
}

// LoadThemes reads theme definitions from a YAML content pack. Other
// top-level keys (e.g. lenses) are ignored so one pack file can carry
// all curated content.
func LoadThemes(r io.Reader) ([]Theme, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("reading content pack: %w", err)
	}
	var pack themePack
	if err := yaml.Unmarshal(data, &pack); err != nil {
		return nil, fmt.Errorf("parsing content pack: %w", err)
	}
	if len(pack.Themes) == 0 {
		return nil, fmt.Errorf("content pack defines no themes")
	}
	seen := make(map[string]bool)
	for _, t := range pack.Themes {
		if t.Name == "" {
			return nil, fmt.Errorf("content pack theme with empty name")
		}
		if seen[t.Name] {
			return nil, fmt.Errorf("content pack theme %q defined twice", t.Name)
		}
		seen[t.Name] = true
		if len(t.Prompts) == 0 {
			return nil, fmt.Errorf("theme %q has no prompts", t.Name)
		}
	}
	return pack.Themes, nil
}
