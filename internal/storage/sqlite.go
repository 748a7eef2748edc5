package storage

import (
	"database/sql"
	"embed"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Store wraps a SQLite database holding all session-scoped state:
// diagnostic responses, tension positions, and the action ledger.
type Store struct {
	db *sql.DB
}

// Open opens (or creates) a SQLite database in dataDir and runs pending migrations.
// Pass ":memory:" as dataDir for an in-memory database (used by tests).
func Open(dataDir string) (*Store, error) {
	var dsn string
	if dataDir == ":memory:" {
		dsn = ":memory:"
	} else {
		if err := os.MkdirAll(dataDir, 0o755); err != nil {
			return nil, fmt.Errorf("creating data directory: %w", err)
		}
		dsn = filepath.Join(dataDir, "thinkstudio.db")
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	// Limit to single connection to avoid "database is locked" errors.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting busy timeout: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting journal mode: %w", err)
	}

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return s, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate reads embedded SQL migration files and applies any that haven't been run yet.
func (s *Store) migrate() error {
	if _, err := s.db.Exec(`CREATE TABLE IF NOT EXISTS schema_version (
		version INTEGER PRIMARY KEY,
		applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
	)`); err != nil {
		return fmt.Errorf("creating schema_version table: %w", err)
	}

	entries, err := migrationsFS.ReadDir("migrations")
	if err != nil {
		return fmt.Errorf("reading migrations directory: %w", err)
	}

	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Name() < entries[j].Name()
	})

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".sql") {
			continue
		}

		version, err := parseMigrationVersion(entry.Name())
		if err != nil {
			return err
		}

		var exists int
		if err := s.db.QueryRow("SELECT COUNT(*) FROM schema_version WHERE version = ?", version).Scan(&exists); err != nil {
			return fmt.Errorf("checking migration %d: %w", version, err)
		}
		if exists > 0 {
			continue
		}

		content, err := migrationsFS.ReadFile("migrations/" + entry.Name())
		if err != nil {
			return fmt.Errorf("reading migration %s: %w", entry.Name(), err)
		}

		tx, err := s.db.Begin()
		if err != nil {
			return fmt.Errorf("beginning transaction for migration %d: %w", version, err)
		}

		if _, err := tx.Exec(string(content)); err != nil {
			tx.Rollback()
			return fmt.Errorf("applying migration %d: %w", version, err)
		}

		if _, err := tx.Exec("INSERT INTO schema_version (version) VALUES (?)", version); err != nil {
			tx.Rollback()
			return fmt.Errorf("recording migration %d: %w", version, err)
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("committing migration %d: %w", version, err)
		}
	}

	return nil
}

func parseMigrationVersion(filename string) (int, error) {
	var version int
	if _, err := fmt.Sscanf(filename, "%d_", &version); err != nil {
		return 0, fmt.Errorf("parsing migration version from %q: %w", filename, err)
	}
	return version, nil
}

// AppliedMigrations returns the list of applied migration versions in ascending order.
func (s *Store) AppliedMigrations() ([]int, error) {
	rows, err := s.db.Query("SELECT version FROM schema_version ORDER BY version ASC")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var versions []int
	for rows.Next() {
		var v int
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		versions = append(versions, v)
	}
	return versions, rows.Err()
}

// --- Sessions ---

// EnsureSession creates the session row if it does not exist yet.
func (s *Store) EnsureSession(id string) error {
	_, err := s.db.Exec(`
		INSERT INTO sessions (id, created_at) VALUES (?, ?)
		ON CONFLICT(id) DO NOTHING`,
		id, time.Now().UTC().Format(time.RFC3339),
	)
	return err
}

// ListSessions returns all sessions ordered by creation time.
func (s *Store) ListSessions() ([]Session, error) {
	rows, err := s.db.Query(`SELECT id, created_at FROM sessions ORDER BY created_at ASC, id ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sessions []Session
	for rows.Next() {
		var sess Session
		var createdAt string
		if err := rows.Scan(&sess.ID, &createdAt); err != nil {
			return nil, err
		}
		t, err := time.Parse(time.RFC3339, createdAt)
		if err != nil {
			return nil, fmt.Errorf("parsing created_at for session %s: %w", sess.ID, err)
		}
		sess.CreatedAt = t
		sessions = append(sessions, sess)
	}
	return sessions, rows.Err()
}

// --- Diagnostic responses ---

// UpsertResponse records a diagnostic answer, overwriting any prior
// answer for the same prompt (last write wins).
func (s *Store) UpsertResponse(sessionID, theme, promptID string, score int) error {
	_, err := s.db.Exec(`
		INSERT INTO responses (session_id, theme, prompt_id, score, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(session_id, theme, prompt_id)
		DO UPDATE SET score = excluded.score, updated_at = excluded.updated_at`,
		sessionID, theme, promptID, score, time.Now().UTC().Format(time.RFC3339),
	)
	return err
}

// GetResponses returns prompt_id -> score for one theme in a session.
func (s *Store) GetResponses(sessionID, theme string) (map[string]int, error) {
	rows, err := s.db.Query(`
		SELECT prompt_id, score FROM responses
		WHERE session_id = ? AND theme = ?`, sessionID, theme,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := make(map[string]int)
	for rows.Next() {
		var promptID string
		var score int
		if err := rows.Scan(&promptID, &score); err != nil {
			return nil, err
		}
		result[promptID] = score
	}
	return result, rows.Err()
}

// --- Tension positions ---

// positionColumns maps the "which" selector to a real column name.
// Only these two values ever reach the SQL below.
var positionColumns = map[string]string{
	"current": "current",
	"desired": "desired",
}

// SetPosition writes one side (current or desired) of an axis position.
func (s *Store) SetPosition(sessionID, axis, which string, value float64) error {
	col, ok := positionColumns[which]
	if !ok {
		return fmt.Errorf("unknown position side %q", which)
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("beginning position transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`
		INSERT INTO positions (session_id, axis) VALUES (?, ?)
		ON CONFLICT(session_id, axis) DO NOTHING`, sessionID, axis); err != nil {
		return err
	}
	if _, err := tx.Exec(
		`UPDATE positions SET "`+col+`" = ? WHERE session_id = ? AND axis = ?`,
		value, sessionID, axis); err != nil {
		return err
	}

	return tx.Commit()
}

// GetPositions returns axis -> Position for a session.
func (s *Store) GetPositions(sessionID string) (map[string]Position, error) {
	rows, err := s.db.Query(`
		SELECT axis, current, desired FROM positions WHERE session_id = ?`, sessionID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := make(map[string]Position)
	for rows.Next() {
		var p Position
		var current, desired sql.NullFloat64
		if err := rows.Scan(&p.Axis, &current, &desired); err != nil {
			return nil, err
		}
		if current.Valid {
			v := current.Float64
			p.Current = &v
		}
		if desired.Valid {
			v := desired.Float64
			p.Desired = &v
		}
		result[p.Axis] = p
	}
	return result, rows.Err()
}

// --- Action ledger ---

// InsertAction appends an action to the session's ledger, assigning
// the next sequence number.
func (s *Store) InsertAction(a Action) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("beginning action transaction: %w", err)
	}
	defer tx.Rollback()

	var maxSeq sql.NullInt64
	if err := tx.QueryRow(
		`SELECT MAX(seq) FROM actions WHERE session_id = ?`, a.SessionID,
	).Scan(&maxSeq); err != nil {
		return err
	}
	seq := maxSeq.Int64 + 1

	now := time.Now().UTC()
	createdAt := a.CreatedAt
	if createdAt.IsZero() {
		createdAt = now
	}

	if _, err := tx.Exec(`
		INSERT INTO actions (id, session_id, seq, title, owner, theme, target_date, status, impact_score, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		a.ID, a.SessionID, seq, a.Title, a.Owner, a.Theme, a.TargetDate, a.Status, a.ImpactScore,
		createdAt.Format(time.RFC3339), now.Format(time.RFC3339),
	); err != nil {
		return fmt.Errorf("inserting action %s: %w", a.ID, err)
	}

	return tx.Commit()
}

// GetAction returns one action by id within a session.
func (s *Store) GetAction(sessionID, id string) (Action, error) {
	var a Action
	var createdAt, updatedAt string
	err := s.db.QueryRow(`
		SELECT id, session_id, seq, title, owner, theme, target_date, status, impact_score, created_at, updated_at
		FROM actions WHERE session_id = ? AND id = ?`, sessionID, id,
	).Scan(&a.ID, &a.SessionID, &a.Seq, &a.Title, &a.Owner, &a.Theme, &a.TargetDate, &a.Status, &a.ImpactScore, &createdAt, &updatedAt)
	if err == sql.ErrNoRows {
		return Action{}, ErrNotFound
	}
	if err != nil {
		return Action{}, err
	}
	if a.CreatedAt, err = time.Parse(time.RFC3339, createdAt); err != nil {
		return Action{}, fmt.Errorf("parsing created_at for action %s: %w", a.ID, err)
	}
	if a.UpdatedAt, err = time.Parse(time.RFC3339, updatedAt); err != nil {
		return Action{}, fmt.Errorf("parsing updated_at for action %s: %w", a.ID, err)
	}
	return a, nil
}

// UpdateAction writes the whole row back. The caller validates the
// patched copy first, so the write is all-or-nothing.
func (s *Store) UpdateAction(a Action) error {
	res, err := s.db.Exec(`
		UPDATE actions
		SET title = ?, owner = ?, theme = ?, target_date = ?, status = ?, impact_score = ?, updated_at = ?
		WHERE session_id = ? AND id = ?`,
		a.Title, a.Owner, a.Theme, a.TargetDate, a.Status, a.ImpactScore,
		time.Now().UTC().Format(time.RFC3339), a.SessionID, a.ID,
	)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteAction removes an action by id.
func (s *Store) DeleteAction(sessionID, id string) error {
	res, err := s.db.Exec(`DELETE FROM actions WHERE session_id = ? AND id = ?`, sessionID, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// ListActions returns a session's actions in insertion order.
func (s *Store) ListActions(sessionID string) ([]Action, error) {
	rows, err := s.db.Query(`
		SELECT id, session_id, seq, title, owner, theme, target_date, status, impact_score, created_at, updated_at
		FROM actions WHERE session_id = ? ORDER BY seq ASC`, sessionID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var actions []Action
	for rows.Next() {
		var a Action
		var createdAt, updatedAt string
		if err := rows.Scan(&a.ID, &a.SessionID, &a.Seq, &a.Title, &a.Owner, &a.Theme, &a.TargetDate, &a.Status, &a.ImpactScore, &createdAt, &updatedAt); err != nil {
			return nil, err
		}
		var perr error
		if a.CreatedAt, perr = time.Parse(time.RFC3339, createdAt); perr != nil {
			return nil, fmt.Errorf("parsing created_at for action %s: %w", a.ID, perr)
		}
		if a.UpdatedAt, perr = time.Parse(time.RFC3339, updatedAt); perr != nil {
			return nil, fmt.Errorf("parsing updated_at for action %s: %w", a.ID, perr)
		}
		actions = append(actions, a)
	}
	return actions, rows.Err()
}
