package tension

import (
	"fmt"
	"io"

	"gopkg.in/yaml.v3"
)

// Scale bounds shared by every axis.
const (
	ScaleMin = 0.0
	ScaleMax = 10.0
)

// Midpoint is the default position for an axis that has never been
// set, matching a slider resting in the middle.
const Midpoint = (ScaleMin + ScaleMax) / 2

// Axis is one strategic tension spectrum between two opposing poles.
type Axis struct {
	Name  string `yaml:"name" json:"name"`
	Left  string `yaml:"left" json:"left"`
	Right string `yaml:"right" json:"right"`
}

// DefaultAxes returns the built-in Ten Lenses of data strategy.
// Curators can replace them with a YAML content pack (see LoadAxes).
func DefaultAxes() []Axis {
	return []Axis{
		{Name: "Abstraction Level", Left: "Conceptual", Right: "Logical / Physical"},
		{Name: "Adaptability", Left: "Living", Right: "Fixed"},
		{Name: "Ambition", Left: "Essential", Right: "Transformational"},
		{Name: "Coverage", Left: "Horizontal", Right: "Use-case-based"},
		{Name: "Governance Structure", Left: "Ecosystem / Federated", Right: "Centralised"},
		{Name: "Orientation", Left: "Technology-focused", Right: "Value-focused"},
		{Name: "Motivation", Left: "Compliance-driven", Right: "Innovation-driven"},
		{Name: "Access Philosophy", Left: "Data-democratised", Right: "Controlled access"},
		{Name: "Delivery Mode", Left: "Incremental", Right: "Big Bang"},
		{Name: "Decision Model", Left: "Data-informed", Right: "Data-driven"},
	}
}

type axisPack struct {
	Lenses []Axis `yaml:"lenses"`
}

// LoadAxes reads axis definitions from a YAML content pack. Other
// top-level keys (e.g. themes) are ignored so one pack file can carry
// all curated content.
func LoadAxes(r io.Reader) ([]Axis, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("reading content pack: %w", err)
	}
	var pack axisPack
	if err := yaml.Unmarshal(data, &pack); err != nil {
		return nil, fmt.Errorf("parsing content pack: %w", err)
	}
	if len(pack.Lenses) == 0 {
		return nil, fmt.Errorf("content pack defines no lenses")
	}
	seen := make(map[string]bool)
	for _, a := range pack.Lenses {
		if a.Name == "" {
			return nil, fmt.Errorf("content pack lens with empty name")
		}
		if seen[a.Name] {
			return nil, fmt.Errorf("content pack lens %q defined twice", a.Name)
		}
		seen[a.Name] = true
	}
	return pack.Lenses, nil
}
