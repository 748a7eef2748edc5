// Package tension compares where an organisation sits today against
// where it wants to be across a fixed list of strategic tension axes,
// and ranks the axes by the size of the move required.
package tension

import (
	"fmt"
	"math"
	"sort"

	"thinkstudio/internal/storage"
)

// DefaultTopShifts is the number of priority shifts flagged when the
// caller does not say otherwise.
const DefaultTopShifts = 3

// Direction of the movement an axis requires.
const (
	DirectionIncrease = "increase"
	DirectionDecrease = "decrease"
	DirectionAligned  = "aligned"
)

// PositionStore persists axis positions per session.
type PositionStore interface {
	SetPosition(sessionID, axis, which string, value float64) error
	GetPositions(sessionID string) (map[string]storage.Position, error)
}

// Gap is one axis's current/desired comparison. Gap = desired − current.
type Gap struct {
	Axis      string  `json:"axis"`
	Left      string  `json:"left"`
	Right     string  `json:"right"`
	Current   float64 `json:"current"`
	Desired   float64 `json:"desired"`
	Gap       float64 `json:"gap"`
	Direction string  `json:"direction"`
}

// Analyzer tracks tension positions for one session.
type Analyzer struct {
	store   PositionStore
	session string
	axes    []Axis
	byName  map[string]Axis
}

// NewAnalyzer creates an Analyzer bound to a session key.
func NewAnalyzer(store PositionStore, sessionID string, axes []Axis) *Analyzer {
	byName := make(map[string]Axis, len(axes))
	for _, a := range axes {
		byName[a.Name] = a
	}
	return &Analyzer{store: store, session: sessionID, axes: axes, byName: byName}
}

// Axes returns the axis definitions in declaration order.
func (a *Analyzer) Axes() []Axis {
	return a.axes
}

// SetPosition records one side of an axis. Out-of-range values are
// silently clamped to the scale, not rejected.
func (a *Analyzer) SetPosition(axis, which string, value float64) error {
	if _, ok := a.byName[axis]; !ok {
		return fmt.Errorf("axis %q: %w", axis, storage.ErrNotFound)
	}
	if which != "current" && which != "desired" {
		return fmt.Errorf("position side must be %q or %q, got %q", "current", "desired", which)
	}
	return a.store.SetPosition(a.session, axis, which, clamp(value))
}

func clamp(v float64) float64 {
	if v < ScaleMin {
		return ScaleMin
	}
	if v > ScaleMax {
		return ScaleMax
	}
	return v
}

// Gaps computes the gap vector across all axes, sorted by absolute gap
// descending with ties broken by axis declaration order. Unset
// positions default to the scale midpoint.
func (a *Analyzer) Gaps() ([]Gap, error) {
	positions, err := a.store.GetPositions(a.session)
	if err != nil {
		return nil, fmt.Errorf("loading positions: %w", err)
	}

	gaps := make([]Gap, 0, len(a.axes))
	for _, ax := range a.axes {
		current, desired := Midpoint, Midpoint
		if p, ok := positions[ax.Name]; ok {
			if p.Current != nil {
				current = *p.Current
			}
			if p.Desired != nil {
				desired = *p.Desired
			}
		}
		g := Gap{
			Axis:    ax.Name,
			Left:    ax.Left,
			Right:   ax.Right,
			Current: current,
			Desired: desired,
			Gap:     desired - current,
		}
		switch {
		case g.Gap > 0:
			g.Direction = DirectionIncrease
		case g.Gap < 0:
			g.Direction = DirectionDecrease
		default:
			g.Direction = DirectionAligned
		}
		gaps = append(gaps, g)
	}

	// SliceStable keeps declaration order for equal absolute gaps.
	sort.SliceStable(gaps, func(i, j int) bool {
		return math.Abs(gaps[i].Gap) > math.Abs(gaps[j].Gap)
	})
	return gaps, nil
}

// PriorityShifts returns the top-N largest-gap axes. The output is a
// numeric ranking only; the system never synthesizes free-text
// recommendations.
func (a *Analyzer) PriorityShifts(n int) ([]Gap, error) {
	if n <= 0 {
		n = DefaultTopShifts
	}
	gaps, err := a.Gaps()
	if err != nil {
		return nil, err
	}
	if n > len(gaps) {
		n = len(gaps)
	}
	return gaps[:n], nil
}
