package store

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/joescharf/codeguardian/internal/progress"

	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// SQLiteStore implements Store using modernc.org/sqlite (pure Go, no CGO).
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (or creates) a SQLite database at the given path.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// SQLite only supports one concurrent writer. A single connection
	// serializes access from concurrent HTTP requests.
	db.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA foreign_keys=ON",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("%s: %w", p, err)
		}
	}

	return &SQLiteStore{db: db}, nil
}

// Migrate runs all embedded SQL migration files in order.
func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS schema_migrations (
		filename TEXT PRIMARY KEY,
		applied_at DATETIME NOT NULL DEFAULT (datetime('now'))
	)`)
	if err != nil {
		return fmt.Errorf("create migrations table: %w", err)
	}

	entries, err := migrationsFS.ReadDir("migrations")
	if err != nil {
		return fmt.Errorf("read migrations dir: %w", err)
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Name() < entries[j].Name()
	})

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()

		var count int
		err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM schema_migrations WHERE filename = ?", name).Scan(&count)
		if err != nil {
			return fmt.Errorf("check migration %s: %w", name, err)
		}
		if count > 0 {
			continue
		}

		data, err := migrationsFS.ReadFile("migrations/" + name)
		if err != nil {
			return fmt.Errorf("read migration %s: %w", name, err)
		}
		if _, err := s.db.ExecContext(ctx, string(data)); err != nil {
			return fmt.Errorf("apply migration %s: %w", name, err)
		}
		if _, err := s.db.ExecContext(ctx, "INSERT INTO schema_migrations (filename) VALUES (?)", name); err != nil {
			return fmt.Errorf("record migration %s: %w", name, err)
		}
	}

	return nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// --- Progress entries ---

func (s *SQLiteStore) RecordEntry(ctx context.Context, sessionID string, e *progress.Entry) error {
	if e.ID == "" {
		e.ID = progress.NewID()
	}
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO progress_entries (id, session_id, score, label, degraded, recorded_at) VALUES (?, ?, ?, ?, ?, ?)`,
		e.ID, sessionID, e.Score, e.Label, e.Degraded, e.Timestamp.UTC(),
	)
	if err != nil {
		return fmt.Errorf("record progress entry: %w", err)
	}
	return nil
}

func (s *SQLiteStore) ListEntries(ctx context.Context, sessionID string) ([]*progress.Entry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, score, label, degraded, recorded_at FROM progress_entries
		WHERE session_id = ? ORDER BY recorded_at, id`, sessionID,
	)
	if err != nil {
		return nil, fmt.Errorf("list progress entries: %w", err)
	}
	defer rows.Close()

	var entries []*progress.Entry
	for rows.Next() {
		e := &progress.Entry{}
		if err := rows.Scan(&e.ID, &e.Score, &e.Label, &e.Degraded, &e.Timestamp); err != nil {
			return nil, fmt.Errorf("scan progress entry: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func (s *SQLiteStore) ClearEntries(ctx context.Context, sessionID string) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM progress_entries WHERE session_id = ?`, sessionID)
	if err != nil {
		return 0, fmt.Errorf("clear progress entries: %w", err)
	}
	return res.RowsAffected()
}

func (s *SQLiteStore) ListSessions(ctx context.Context) ([]*SessionStats, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT session_id, COUNT(*), AVG(score), MAX(recorded_at) FROM progress_entries
		GROUP BY session_id ORDER BY MAX(recorded_at) DESC`,
	)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer rows.Close()

	var out []*SessionStats
	for rows.Next() {
		st := &SessionStats{}
		var last string
		if err := rows.Scan(&st.SessionID, &st.Count, &st.Mean, &last); err != nil {
			return nil, fmt.Errorf("scan session stats: %w", err)
		}
		st.LastReview = parseSQLiteTime(last)
		out = append(out, st)
	}
	return out, rows.Err()
}

// parseSQLiteTime parses the text form SQLite returns for aggregated
// DATETIME columns. Unparseable values yield the zero time.
func parseSQLiteTime(s string) time.Time {
	layouts := []string{
		"2006-01-02 15:04:05.999999999 -0700 MST",
		"2006-01-02 15:04:05.999999999-07:00",
		time.RFC3339Nano,
		"2006-01-02 15:04:05",
	}
	for _, layout := range layouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC()
		}
	}
	return time.Time{}
}

// Ledger returns a progress.Ledger bound to one session.
func (s *SQLiteStore) Ledger(sessionID string) progress.Ledger {
	return &sessionLedger{store: s, sessionID: sessionID}
}

type sessionLedger struct {
	store     *SQLiteStore
	sessionID string
}

func (l *sessionLedger) Record(ctx context.Context, e *progress.Entry) error {
	return l.store.RecordEntry(ctx, l.sessionID, e)
}

func (l *sessionLedger) Entries(ctx context.Context) ([]*progress.Entry, error) {
	return l.store.ListEntries(ctx, l.sessionID)
}

func (l *sessionLedger) Clear(ctx context.Context) error {
	_, err := l.store.ClearEntries(ctx, l.sessionID)
	return err
}

func (l *sessionLedger) Summarize(ctx context.Context) (*progress.Summary, error) {
	entries, err := l.Entries(ctx)
	if err != nil {
		return nil, err
	}
	return progress.Summarize(entries)
}
