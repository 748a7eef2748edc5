// Package session ties the per-user working state together: one
// session key scopes diagnostic responses, tension positions and the
// action ledger, so parallel workshops never see each other's edits.
package session

import (
	"fmt"

	"thinkstudio/internal/diagnostic"
	"thinkstudio/internal/ledger"
	"thinkstudio/internal/storage"
	"thinkstudio/internal/tension"
)

// DefaultID is the session used when the caller does not name one.
// Single-user local runs never need to think about sessions.
const DefaultID = "default"

// Session bundles the stateful facades for one session key.
type Session struct {
	ID       string
	Scorer   *diagnostic.Scorer
	Tensions *tension.Analyzer
	Actions  *ledger.Ledger
}

// Manager opens sessions against the shared store.
type Manager struct {
	store  *storage.Store
	themes []diagnostic.Theme
	axes   []tension.Axis
}

// NewManager creates a Manager with the given curated content.
func NewManager(store *storage.Store, themes []diagnostic.Theme, axes []tension.Axis) *Manager {
	return &Manager{store: store, themes: themes, axes: axes}
}

// Themes returns the diagnostic theme definitions.
func (m *Manager) Themes() []diagnostic.Theme {
	return m.themes
}

// Axes returns the tension axis definitions.
func (m *Manager) Axes() []tension.Axis {
	return m.axes
}

// Open returns the session for id, creating its row on first use.
// An empty id opens the default session.
func (m *Manager) Open(id string) (*Session, error) {
	if id == "" {
		id = DefaultID
	}
	if err := m.store.EnsureSession(id); err != nil {
		return nil, fmt.Errorf("opening session %s: %w", id, err)
	}
	return &Session{
		ID:       id,
		Scorer:   diagnostic.NewScorer(m.store, id, m.themes),
		Tensions: tension.NewAnalyzer(m.store, id, m.axes),
		Actions:  ledger.NewLedger(m.store, id),
	}, nil
}

// List returns all known sessions, oldest first.
func (m *Manager) List() ([]storage.Session, error) {
	return m.store.ListSessions()
}
