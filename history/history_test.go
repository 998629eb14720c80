package history

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "nested", "history.db"))
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestRecordAndRecent(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	if _, err := s.Record(ctx, Entry{Source: "1 + 2", Result: "3"}); err != nil {
		t.Fatalf("Record failed: %v", err)
	}
	id, err := s.Record(ctx, Entry{Source: "1 +", Error: "line 1: parse error at end: expected expression"})
	if err != nil {
		t.Fatalf("Record failed: %v", err)
	}
	if id != 2 {
		t.Errorf("second id = %d, want 2", id)
	}

	entries, err := s.Recent(ctx, 10)
	if err != nil {
		t.Fatalf("Recent failed: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("Recent returned %d entries, want 2", len(entries))
	}
	if entries[0].Source != "1 +" || !entries[0].Failed() {
		t.Errorf("newest entry = %+v, want the failed one", entries[0])
	}
	if entries[1].Result != "3" || entries[1].Failed() {
		t.Errorf("oldest entry = %+v", entries[1])
	}
	if entries[1].CreatedAt.IsZero() {
		t.Error("CreatedAt should be filled in")
	}
}

func TestRecentLimit(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	for i := 0; i < 5; i++ {
		if _, err := s.Record(ctx, Entry{Source: "1", Result: "1"}); err != nil {
			t.Fatal(err)
		}
	}

	entries, err := s.Recent(ctx, 3)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 3 {
		t.Errorf("Recent(3) returned %d entries", len(entries))
	}
	n, err := s.Count(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if n != 5 {
		t.Errorf("Count() = %d, want 5", n)
	}
}

func TestCreatedAtRoundTrip(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	at := time.Date(2024, 3, 1, 12, 30, 0, 0, time.UTC)

	if _, err := s.Record(ctx, Entry{Source: "2", Result: "2", CreatedAt: at}); err != nil {
		t.Fatal(err)
	}
	entries, err := s.Recent(ctx, 1)
	if err != nil {
		t.Fatal(err)
	}
	if !entries[0].CreatedAt.Equal(at) {
		t.Errorf("CreatedAt = %v, want %v", entries[0].CreatedAt, at)
	}
}

func TestReopenKeepsEntries(t *testing.T) {
	path := filepath.Join(t.TempDir(), "h.db")
	ctx := context.Background()

	s, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := s.Record(ctx, Entry{Source: "7", Result: "7"}); err != nil {
		t.Fatal(err)
	}
	s.Close()

	s, err = Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()
	n, err := s.Count(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Errorf("Count() after reopen = %d, want 1", n)
	}
	if s.Path() != path {
		t.Errorf("Path() = %q", s.Path())
	}
}

func TestBusyTimeoutOnEveryConnection(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	// Holding both connections forces the pool to open two.
	first, err := s.db.Conn(ctx)
	if err != nil {
		t.Fatalf("Conn failed: %v", err)
	}
	defer first.Close()
	second, err := s.db.Conn(ctx)
	if err != nil {
		t.Fatalf("Conn failed: %v", err)
	}
	defer second.Close()

	for i, conn := range []*sql.Conn{first, second} {
		var timeout int
		if err := conn.QueryRowContext(ctx, "PRAGMA busy_timeout").Scan(&timeout); err != nil {
			t.Fatalf("conn %d: PRAGMA busy_timeout: %v", i, err)
		}
		if timeout != busyTimeoutMillis {
			t.Errorf("conn %d: busy_timeout = %d, want %d", i, timeout, busyTimeoutMillis)
		}
	}
}

func TestDSN(t *testing.T) {
	tests := []struct {
		path string
		want string
	}{
		{"/tmp/h.db", "file:/tmp/h.db?_pragma=busy_timeout(5000)"},
		{"a?b#c%d.db", "file:a%3fb%23c%25d.db?_pragma=busy_timeout(5000)"},
	}

	for _, tt := range tests {
		if got := dsn(tt.path); got != tt.want {
			t.Errorf("dsn(%q) = %q, want %q", tt.path, got, tt.want)
		}
	}
}
