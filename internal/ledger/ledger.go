// Package ledger is the editable action log: user-tracked units of
// delivery work, optionally linked to a diagnostic theme by name. The
// theme link is a weak reference resolved at render time, so removing
// a theme can never orphan-crash the ledger.
package ledger

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"thinkstudio/internal/storage"
)

// Status values an action item can hold.
const (
	StatusNotStarted = "not_started"
	StatusInProgress = "in_progress"
	StatusDone       = "done"
	StatusBlocked    = "blocked"
)

// ErrInvalidItem is returned when a create or patch would produce an
// invalid action item. The stored row is left unchanged.
var ErrInvalidItem = errors.New("invalid action item")

// Item is one action ledger entry.
type Item struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Owner       string    `json:"owner,omitempty"`
	Theme       string    `json:"theme,omitempty"`
	TargetDate  string    `json:"target_date,omitempty"`
	Status      string    `json:"status"`
	ImpactScore float64   `json:"impact_score"`
	CreatedAt   time.Time `json:"created_at"`
}

// Patch carries the fields an update wants to touch. Nil means "leave
// as is". The patch is validated against a copy before anything is
// written, so a rejected patch changes nothing.
type Patch struct {
	Title       *string  `json:"title,omitempty"`
	Owner       *string  `json:"owner,omitempty"`
	Theme       *string  `json:"theme,omitempty"`
	TargetDate  *string  `json:"target_date,omitempty"`
	Status      *string  `json:"status,omitempty"`
	ImpactScore *float64 `json:"impact_score,omitempty"`
}

// Filter narrows List results. Zero values match everything.
type Filter struct {
	Status string
	Theme  string
}

// ThemeImpact is one row of the impact dashboard: the summed impact of
// completed actions for a theme.
type ThemeImpact struct {
	Theme  string  `json:"theme"`
	Impact float64 `json:"impact"`
	Count  int     `json:"count"`
}

// ActionStore persists ledger rows per session.
type ActionStore interface {
	InsertAction(a storage.Action) error
	GetAction(sessionID, id string) (storage.Action, error)
	UpdateAction(a storage.Action) error
	DeleteAction(sessionID, id string) error
	ListActions(sessionID string) ([]storage.Action, error)
}

// Ledger manages one session's action items.
type Ledger struct {
	store   ActionStore
	session string
}

// NewLedger creates a Ledger bound to a session key.
func NewLedger(store ActionStore, sessionID string) *Ledger {
	return &Ledger{store: store, session: sessionID}
}

// Create adds a new item, assigning a unique id and defaulting status
// to not_started. Returns the assigned id.
func (l *Ledger) Create(item Item) (string, error) {
	if item.Status == "" {
		item.Status = StatusNotStarted
	}
	if err := validate(item); err != nil {
		return "", err
	}

	item.ID = uuid.New().String()
	if err := l.store.InsertAction(toStorage(item, l.session)); err != nil {
		return "", fmt.Errorf("creating action: %w", err)
	}
	return item.ID, nil
}

// Get returns one item by id.
func (l *Ledger) Get(id string) (Item, error) {
	a, err := l.store.GetAction(l.session, id)
	if err != nil {
		return Item{}, err
	}
	return fromStorage(a), nil
}

// Update applies a partial patch to an existing item. The patch is
// applied all-or-nothing: validation failures leave the stored item
// untouched. Unknown ids return storage.ErrNotFound.
func (l *Ledger) Update(id string, patch Patch) (Item, error) {
	a, err := l.store.GetAction(l.session, id)
	if err != nil {
		return Item{}, err
	}

	item := fromStorage(a)
	if patch.Title != nil {
		item.Title = *patch.Title
	}
	if patch.Owner != nil {
		item.Owner = *patch.Owner
	}
	if patch.Theme != nil {
		item.Theme = *patch.Theme
	}
	if patch.TargetDate != nil {
		item.TargetDate = *patch.TargetDate
	}
	if patch.Status != nil {
		item.Status = *patch.Status
	}
	if patch.ImpactScore != nil {
		item.ImpactScore = *patch.ImpactScore
	}

	if err := validate(item); err != nil {
		return Item{}, err
	}

	updated := toStorage(item, l.session)
	updated.Seq = a.Seq
	if err := l.store.UpdateAction(updated); err != nil {
		return Item{}, err
	}
	return item, nil
}

// Delete removes an item by id. Unknown ids return storage.ErrNotFound.
func (l *Ledger) Delete(id string) error {
	return l.store.DeleteAction(l.session, id)
}

// List returns items in insertion order, optionally narrowed by filter.
func (l *Ledger) List(filter Filter) ([]Item, error) {
	actions, err := l.store.ListActions(l.session)
	if err != nil {
		return nil, fmt.Errorf("listing actions: %w", err)
	}

	items := make([]Item, 0, len(actions))
	for _, a := range actions {
		if filter.Status != "" && a.Status != filter.Status {
			continue
		}
		if filter.Theme != "" && a.Theme != filter.Theme {
			continue
		}
		items = append(items, fromStorage(a))
	}
	return items, nil
}

// ImpactByTheme sums impact_score over completed (done) actions,
// grouped by theme, sorted by sum descending with theme name as the
// deterministic tie-break. Dangling theme references group under their
// stored name unchanged.
func (l *Ledger) ImpactByTheme() ([]ThemeImpact, error) {
	items, err := l.List(Filter{Status: StatusDone})
	if err != nil {
		return nil, err
	}

	byTheme := make(map[string]*ThemeImpact)
	for _, item := range items {
		ti, ok := byTheme[item.Theme]
		if !ok {
			ti = &ThemeImpact{Theme: item.Theme}
			byTheme[item.Theme] = ti
		}
		ti.Impact += item.ImpactScore
		ti.Count++
	}

	out := make([]ThemeImpact, 0, len(byTheme))
	for _, ti := range byTheme {
		out = append(out, *ti)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Impact != out[j].Impact {
			return out[i].Impact > out[j].Impact
		}
		return out[i].Theme < out[j].Theme
	})
	return out, nil
}

func validate(item Item) error {
	if item.Title == "" {
		return fmt.Errorf("title must not be empty: %w", ErrInvalidItem)
	}
	switch item.Status {
	case StatusNotStarted, StatusInProgress, StatusDone, StatusBlocked:
	default:
		return fmt.Errorf("status %q is not one of not_started|in_progress|done|blocked: %w", item.Status, ErrInvalidItem)
	}
	if item.TargetDate != "" {
		if _, err := time.Parse("2006-01-02", item.TargetDate); err != nil {
			return fmt.Errorf("target_date %q is not YYYY-MM-DD: %w", item.TargetDate, ErrInvalidItem)
		}
	}
	return nil
}

func toStorage(item Item, sessionID string) storage.Action {
	return storage.Action{
		ID:          item.ID,
		SessionID:   sessionID,
		Title:       item.Title,
		Owner:       item.Owner,
		Theme:       item.Theme,
		TargetDate:  item.TargetDate,
		Status:      item.Status,
		ImpactScore: item.ImpactScore,
		CreatedAt:   item.CreatedAt,
	}
}

func fromStorage(a storage.Action) Item {
	return Item{
		ID:          a.ID,
		Title:       a.Title,
		Owner:       a.Owner,
		Theme:       a.Theme,
		TargetDate:  a.TargetDate,
		Status:      a.Status,
		ImpactScore: a.ImpactScore,
		CreatedAt:   a.CreatedAt,
	}
}
