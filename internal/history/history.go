// Package history keeps an activity log of lifecycle transitions in a
// local SQLite database. Recording is best effort: a history failure
// must never fail the user operation it describes, so callers log and
// move on.
package history

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"sift/internal/logging"
)

// Event is one recorded lifecycle transition.
type Event struct {
	ID        int64
	Session   string
	Phase     string
	Action    string
	Detail    string
	CreatedAt time.Time
}

// Well-known action names. Free-form strings are accepted too.
const (
	ActionSessionCreated = "session_created"
	ActionSessionDeleted = "session_deleted"
	ActionCaptured       = "captured"
	ActionTranscribed    = "transcribed"
	ActionExtracted      = "extracted"
	ActionCompleted      = "completed"
	ActionDocumentImport = "document_imported"
	ActionMigrated       = "migrated"
)

// Log is the activity database handle. Safe for concurrent use.
type Log struct {
	db *sql.DB
	mu sync.Mutex
}

// Open initializes the history database at path, creating file and
// schema as needed.
func Open(path string) (*Log, error) {
	timer := logging.StartTimer(logging.CategoryHistory, "Open")
	defer timer.Stop()

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create history directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open history database: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		logging.History("failed to set busy_timeout: %v", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode = WAL"); err != nil {
		logging.History("failed to set journal_mode=WAL: %v", err)
	}
	if _, err := db.Exec("PRAGMA synchronous = NORMAL"); err != nil {
		logging.History("failed to set synchronous=NORMAL: %v", err)
	}

	l := &Log{db: db}
	if err := l.initialize(); err != nil {
		db.Close()
		return nil, err
	}
	return l, nil
}

func (l *Log) initialize() error {
	_, err := l.db.Exec(`
		CREATE TABLE IF NOT EXISTS events (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			session TEXT NOT NULL,
			phase TEXT NOT NULL DEFAULT '',
			action TEXT NOT NULL,
			detail TEXT NOT NULL DEFAULT '',
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP
		);
		CREATE INDEX IF NOT EXISTS idx_events_session ON events(session);
		CREATE INDEX IF NOT EXISTS idx_events_created ON events(created_at);
	`)
	if err != nil {
		return fmt.Errorf("failed to initialize history schema: %w", err)
	}
	return ensureColumns(l.db)
}

// pendingColumns lists columns added after the first release. Existing
// databases pick them up on open.
var pendingColumns = []struct {
	Table  string
	Column string
	Def    string
}{
	{"events", "detail", "TEXT NOT NULL DEFAULT ''"},
}

func ensureColumns(db *sql.DB) error {
	for _, m := range pendingColumns {
		if columnExists(db, m.Table, m.Column) {
			continue
		}
		query := fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s %s", m.Table, m.Column, m.Def)
		if _, err := db.Exec(query); err != nil {
			// Column may already exist in a different form
			logging.History("column migration failed for %s.%s: %v", m.Table, m.Column, err)
		} else {
			logging.History("added column %s.%s", m.Table, m.Column)
		}
	}
	return nil
}

func columnExists(db *sql.DB, table, column string) bool {
	rows, err := db.Query(fmt.Sprintf("PRAGMA table_info(%s)", table))
	if err != nil {
		return false
	}
	defer rows.Close()

	for rows.Next() {
		var cid int
		var name, ctype string
		var notnull, pk int
		var dflt sql.NullString
		if err := rows.Scan(&cid, &name, &ctype, &notnull, &dflt, &pk); err != nil {
			continue
		}
		if name == column {
			return true
		}
	}
	return false
}

// Record appends one event. Errors are returned for the caller to log;
// they are not worth failing an operation over.
func (l *Log) Record(session, phase, action, detail string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	_, err := l.db.Exec(
		"INSERT INTO events (session, phase, action, detail) VALUES (?, ?, ?, ?)",
		session, phase, action, detail,
	)
	if err != nil {
		return fmt.Errorf("failed to record history event: %w", err)
	}
	logging.History("%s %s/%s %s", action, session, phase, detail)
	return nil
}

// Recent returns the latest events, newest first.
func (l *Log) Recent(limit int) ([]Event, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if limit <= 0 {
		limit = 20
	}
	rows, err := l.db.Query(
		"SELECT id, session, phase, action, detail, created_at FROM events ORDER BY id DESC LIMIT ?",
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query history: %w", err)
	}
	defer rows.Close()
	return scanEvents(rows)
}

// ForSession returns a session's events, newest first.
func (l *Log) ForSession(session string, limit int) ([]Event, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if limit <= 0 {
		limit = 50
	}
	rows, err := l.db.Query(
		"SELECT id, session, phase, action, detail, created_at FROM events WHERE session = ? ORDER BY id DESC LIMIT ?",
		session, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query history: %w", err)
	}
	defer rows.Close()
	return scanEvents(rows)
}

func scanEvents(rows *sql.Rows) ([]Event, error) {
	var events []Event
	for rows.Next() {
		var e Event
		var created string
		if err := rows.Scan(&e.ID, &e.Session, &e.Phase, &e.Action, &e.Detail, &created); err != nil {
			return nil, fmt.Errorf("failed to scan history event: %w", err)
		}
		if t, err := time.Parse("2006-01-02 15:04:05", created); err == nil {
			e.CreatedAt = t
		} else if t, err := time.Parse(time.RFC3339, created); err == nil {
			e.CreatedAt = t
		}
		events = append(events, e)
	}
	return events, rows.Err()
}

// Close releases the database handle.
func (l *Log) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.db.Close()
}
