// Package history records evaluations in a SQLite database.
package history

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/tliron/commonlog"

	_ "modernc.org/sqlite"
)

var log = commonlog.GetLogger("tally.history")

// Entry is one recorded evaluation. Exactly one of Result and Error is set.
type Entry struct {
	ID        int64
	Source    string
	Result    string
	Error     string
	CreatedAt time.Time
}

// Failed reports whether the evaluation ended in an error.
func (e Entry) Failed() bool {
	return e.Error != ""
}

// Store handles SQLite storage for evaluation history.
type Store struct {
	db     *sql.DB
	dbPath string
	mu     sync.Mutex
}

// Open opens (creating if needed) the history database at dbPath.
func Open(dbPath string) (*Store, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("creating history dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite", dsn(dbPath))
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	_, err = db.Exec(`CREATE TABLE IF NOT EXISTS evaluations (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		source TEXT NOT NULL,
		result TEXT NOT NULL DEFAULT '',
		error TEXT NOT NULL DEFAULT '',
		created_at INTEGER NOT NULL
	)`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating table: %w", err)
	}

	log.Debugf("opened history at %s", dbPath)
	return &Store{db: db, dbPath: dbPath}, nil
}

// busyTimeoutMillis is applied to every pooled connection through the DSN.
const busyTimeoutMillis = 5000

// dsn builds a file: URI for dbPath. Characters that would end the path
// part of the URI are percent-encoded.
func dsn(dbPath string) string {
	escaped := strings.NewReplacer("%", "%25", "?", "%3f", "#", "%23").Replace(dbPath)
	return fmt.Sprintf("file:%s?_pragma=busy_timeout(%d)", escaped, busyTimeoutMillis)
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.dbPath
}

// Record appends an entry. A zero CreatedAt is replaced with the current time.
// The stored entry's ID is returned.
func (s *Store) Record(ctx context.Context, e Entry) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now()
	}

	res, err := s.db.ExecContext(ctx,
		"INSERT INTO evaluations (source, result, error, created_at) VALUES (?, ?, ?, ?)",
		e.Source, e.Result, e.Error, e.CreatedAt.UnixNano(),
	)
	if err != nil {
		return 0, fmt.Errorf("recording evaluation: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("recording evaluation: %w", err)
	}
	return id, nil
}

// Recent returns up to limit entries, newest first.
func (s *Store) Recent(ctx context.Context, limit int) ([]Entry, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT id, source, result, error, created_at FROM evaluations ORDER BY id DESC LIMIT ?",
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("querying history: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		var created int64
		if err := rows.Scan(&e.ID, &e.Source, &e.Result, &e.Error, &created); err != nil {
			return nil, fmt.Errorf("scanning history row: %w", err)
		}
		e.CreatedAt = time.Unix(0, created)
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading history: %w", err)
	}
	return entries, nil
}

// Count returns the number of recorded evaluations.
func (s *Store) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM evaluations").Scan(&n); err != nil {
		return 0, fmt.Errorf("counting history: %w", err)
	}
	return n, nil
}
