package history

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// MemoryDSN opens a private in-memory database.
const MemoryDSN = ":memory:"

const schema = `
	CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		variant TEXT NOT NULL,
		notebook INTEGER NOT NULL,
		startedAt REAL NOT NULL,
		finishedAt REAL NOT NULL,
		status TEXT NOT NULL,
		summary TEXT NOT NULL DEFAULT ''
	);
	CREATE INDEX IF NOT EXISTS runs_finished ON runs (finishedAt DESC);
`

// maxSummary bounds the stored summary length in runes.
const maxSummary = 200

// Store is the run journal.
type Store struct {
	db *sql.DB
}

// Open opens the journal at dsn and creates its schema. An in-memory database
// lives on a single connection, so the pool is pinned to one.
func Open(dsn string) (*Store, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}

	return &Store{db: db}, nil
}

// OpenMemory opens a fresh in-memory journal.
func OpenMemory() (*Store, error) {
	return Open(MemoryDSN)
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Record appends a run. An empty ID is filled with a new uuid, which is
// returned.
func (s *Store) Record(ctx context.Context, r Run) (string, error) {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	if r.FinishedAt.IsZero() {
		r.FinishedAt = time.Now()
	}
	if r.StartedAt.IsZero() {
		r.StartedAt = r.FinishedAt
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO runs (id, variant, notebook, startedAt, finishedAt, status, summary)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, r.ID, string(r.Variant), r.Notebook, unixFromTime(r.StartedAt), unixFromTime(r.FinishedAt),
		string(r.Status), clip(r.Summary, maxSummary))
	if err != nil {
		return "", fmt.Errorf("insert run: %w", err)
	}
	return r.ID, nil
}

// Recent returns up to limit runs, newest first.
func (s *Store) Recent(ctx context.Context, limit int) ([]Run, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, variant, notebook, startedAt, finishedAt, status, summary
		FROM runs
		ORDER BY finishedAt DESC, rowid DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var r Run
		var variant, status string
		var startedAt, finishedAt float64
		if err := rows.Scan(&r.ID, &variant, &r.Notebook, &startedAt, &finishedAt,
			&status, &r.Summary); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		r.Variant = Variant(variant)
		r.Status = Status(status)
		r.StartedAt = timeFromUnix(startedAt)
		r.FinishedAt = timeFromUnix(finishedAt)
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// Counts returns the number of runs per status.
func (s *Store) Counts(ctx context.Context) (map[Status]int, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT status, COUNT(*) FROM runs GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("query counts: %w", err)
	}
	defer rows.Close()

	counts := make(map[Status]int)
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, fmt.Errorf("scan count: %w", err)
		}
		counts[Status(status)] = n
	}
	return counts, rows.Err()
}

func unixFromTime(t time.Time) float64 {
	return float64(t.UnixNano()) / 1e9
}

func timeFromUnix(ts float64) time.Time {
	sec := int64(ts)
	nsec := int64((ts - float64(sec)) * 1e9)
	return time.Unix(sec, nsec)
}

func clip(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n-1]) + "…"
}
