// ABOUTME: SQLite journal of feed operations for the history command.
// ABOUTME: Records push, download and list outcomes and queries them back.
package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

// Store wraps the SQLite handle and exposes helpers for persistence operations.
type Store struct {
	sql *sql.DB
}

// Filter narrows a history query. Zero values mean no filter.
type Filter struct {
	Limit   int
	Since   *time.Time
	Command string
}

// Summary aggregates the journal for status reporting.
type Summary struct {
	Total  int        `json:"total"`
	Failed int        `json:"failed"`
	Last   *time.Time `json:"last,omitempty"`
}

// Open creates (if necessary) and opens the SQLite database.
func Open(path string) (*Store, error) {
	if path == "" {
		return nil, errors.New("database path is empty")
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating database directory: %w", err)
	}

	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	if _, err := conn.Exec(`PRAGMA busy_timeout = 5000;`); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("configuring sqlite: %w", err)
	}

	store := &Store{sql: conn}
	if err := store.migrate(); err != nil {
		_ = conn.Close()
		return nil, err
	}

	return store, nil
}

// Close releases the underlying SQL handle.
func (s *Store) Close() error {
	if s == nil || s.sql == nil {
		return nil
	}
	return s.sql.Close()
}

func (s *Store) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS operations (
            id INTEGER PRIMARY KEY,
            command TEXT NOT NULL,
            organisation TEXT NOT NULL,
            repository TEXT NOT NULL,
            subject TEXT,
            version TEXT,
            succeeded INTEGER NOT NULL DEFAULT 0,
            message TEXT,
            at DATETIME DEFAULT CURRENT_TIMESTAMP
        );`,
		`CREATE INDEX IF NOT EXISTS idx_operations_at ON operations(at);`,
		`CREATE INDEX IF NOT EXISTS idx_operations_command ON operations(command);`,
	}

	for _, stmt := range stmts {
		if _, err := s.sql.Exec(stmt); err != nil {
			return fmt.Errorf("running migration: %w", err)
		}
	}

	return nil
}

// Record appends one entry to the journal.
func (s *Store) Record(ctx context.Context, e Entry) error {
	if s == nil || s.sql == nil {
		return errors.New("database not initialized")
	}

	at := e.At
	if at.IsZero() {
		at = time.Now()
	}

	_, err := s.sql.ExecContext(ctx,
		`INSERT INTO operations (command, organisation, repository, subject, version, succeeded, message, at)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?);`,
		e.Command,
		e.Organisation,
		e.Repository,
		e.Subject,
		e.Version,
		boolToInt(e.Succeeded),
		e.Message,
		at.UTC(),
	)
	if err != nil {
		return fmt.Errorf("insert operation: %w", err)
	}
	return nil
}

// Query returns journal entries newest first, applying the filter.
func (s *Store) Query(ctx context.Context, f Filter) ([]Entry, error) {
	if s == nil || s.sql == nil {
		return nil, errors.New("database not initialized")
	}
	limit := f.Limit
	if limit <= 0 {
		limit = 20
	}

	clauses := []string{"1=1"}
	args := []interface{}{}

	if f.Since != nil && !f.Since.IsZero() {
		clauses = append(clauses, "at >= ?")
		args = append(args, f.Since.UTC())
	}
	if f.Command != "" {
		clauses = append(clauses, "command = ?")
		args = append(args, strings.ToLower(f.Command))
	}

	query := fmt.Sprintf(`SELECT id, command, organisation, repository, subject, version, succeeded, message, at
        FROM operations
        WHERE %s
        ORDER BY at DESC, id DESC
        LIMIT ?;`, strings.Join(clauses, " AND "))
	args = append(args, limit)

	rows, err := s.sql.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query history: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var results []Entry
	for rows.Next() {
		var e Entry
		var subject, version, message sql.NullString
		var succeeded int
		if err := rows.Scan(
			&e.ID,
			&e.Command,
			&e.Organisation,
			&e.Repository,
			&subject,
			&version,
			&succeeded,
			&message,
			&e.At,
		); err != nil {
			return nil, fmt.Errorf("scan history: %w", err)
		}
		e.Subject = subject.String
		e.Version = version.String
		e.Message = message.String
		e.Succeeded = succeeded == 1
		results = append(results, e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate history: %w", err)
	}

	return results, nil
}

// Summarize counts recorded and failed operations.
func (s *Store) Summarize(ctx context.Context) (Summary, error) {
	var sum Summary
	if s == nil || s.sql == nil {
		return sum, errors.New("database not initialized")
	}

	row := s.sql.QueryRowContext(ctx,
		`SELECT COUNT(*), COALESCE(SUM(CASE WHEN succeeded = 0 THEN 1 ELSE 0 END), 0) FROM operations;`)
	if err := row.Scan(&sum.Total, &sum.Failed); err != nil {
		return sum, fmt.Errorf("summarize history: %w", err)
	}
	if sum.Total == 0 {
		return sum, nil
	}

	latest, err := s.Query(ctx, Filter{Limit: 1})
	if err != nil {
		return sum, err
	}
	if len(latest) == 1 {
		at := latest[0].At
		sum.Last = &at
	}
	return sum, nil
}

func boolToInt(v bool) int {
	if v {
		return 1
	}
	return 0
}
