package storage

import (
	"errors"
	"time"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("not found")

// Session is a named working session. All diagnostic responses,
// tension positions, and action items are keyed by session id so
// sessions never share state.
type Session struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"created_at"`
}

// Response is one recorded diagnostic answer. (session, theme, prompt)
// is unique; re-answering overwrites.
type Response struct {
	SessionID string
	Theme     string
	PromptID  string
	Score     int
	UpdatedAt time.Time
}

// Position holds the current/desired positions on one tension axis.
// Nil means the position has never been set.
type Position struct {
	Axis    string
	Current *float64
	Desired *float64
}

// Action is a persisted action ledger row. Seq preserves insertion
// order within a session.
type Action struct {
	ID          string
	SessionID   string
	Seq         int64
	Title       string
	Owner       string
	Theme       string
	TargetDate  string
	Status      string
	ImpactScore float64
	CreatedAt   time.Time
	UpdatedAt   time.Time
}
