// Package catalog provides SQLite-backed persistence for books, authors,
// reading lists, saved books, download history, and search history.
package catalog

import (
	"database/sql"
	_ "embed"
	"fmt"
	"log/slog"
	"os"
	"time"

	_ "modernc.org/sqlite"
)

//go:embed schema.sql
var schemaSQL string

// Store is the SQLite catalog. It is safe for concurrent use; SQLite
// serializes writers behind the busy timeout.
type Store struct {
	db     *sql.DB
	path   string
	logger *slog.Logger
}

// Open creates or opens the catalog database at the given path.
// It configures WAL mode, sets pragmas, applies the schema, and
// restricts the database file to the owner.
func Open(path string, logger *slog.Logger) (*Store, error) {
	// Pragmas ride in the DSN so the driver applies them to every pooled
	// connection; foreign_keys in particular is per-connection state and
	// cascades depend on it.
	dsn := "file:" + path +
		"?_pragma=journal_mode(WAL)" +
		"&_pragma=synchronous(NORMAL)" +
		"&_pragma=foreign_keys(1)" +
		"&_pragma=busy_timeout(5000)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(time.Hour)

	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("exec schema: %w", err)
	}

	// The catalog can hold notes and history the owner may consider
	// private. Chmod is best-effort on non-POSIX filesystems.
	if err := os.Chmod(path, 0o600); err != nil {
		logger.Warn("could not restrict database file mode", "path", path, "error", err)
	}

	return &Store{db: db, path: path, logger: logger}, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// formatTime formats a time.Time to RFC3339Nano for storage.
func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

// parseTime parses a RFC3339Nano string back to time.Time.
func parseTime(s string) (time.Time, error) {
	return time.Parse(time.RFC3339Nano, s)
}

// nullString returns a sql.NullString from a string, empty meaning NULL.
func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

// nullInt64 returns a sql.NullInt64 from an int64, zero meaning NULL.
func nullInt64(v int64) sql.NullInt64 {
	if v == 0 {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: v, Valid: true}
}
