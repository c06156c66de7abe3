package catalog

import (
	"context"
	"fmt"
	"os"
)

// Stats summarizes the catalog contents and on-disk footprint.
type Stats struct {
	Books           int
	Authors         int
	UnlinkedAuthors int
	Languages       int
	Extensions      int
	Lists           int
	SavedBooks      int
	Downloads       int
	Searches        int
	DBSizeBytes     int64
}

// Stats computes catalog statistics in a handful of count queries.
func (s *Store) Stats(ctx context.Context) (*Stats, error) {
	stats := &Stats{}

	counts := []struct {
		query string
		dest  *int
	}{
		{`SELECT COUNT(*) FROM books`, &stats.Books},
		{`SELECT COUNT(*) FROM authors`, &stats.Authors},
		{`SELECT COUNT(DISTINCT language) FROM books WHERE language IS NOT NULL`, &stats.Languages},
		{`SELECT COUNT(DISTINCT extension) FROM books WHERE extension IS NOT NULL`, &stats.Extensions},
		{`SELECT COUNT(*) FROM reading_lists`, &stats.Lists},
		{`SELECT COUNT(*) FROM saved_books`, &stats.SavedBooks},
		{`SELECT COUNT(*) FROM downloads`, &stats.Downloads},
		{`SELECT COUNT(*) FROM search_history`, &stats.Searches},
	}
	for _, c := range counts {
		if err := s.db.QueryRowContext(ctx, c.query).Scan(c.dest); err != nil {
			return nil, fmt.Errorf("catalog stats: %w", err)
		}
	}

	unlinked, err := s.UnlinkedAuthorCount(ctx)
	if err != nil {
		return nil, err
	}
	stats.UnlinkedAuthors = unlinked

	if info, err := os.Stat(s.path); err == nil {
		stats.DBSizeBytes = info.Size()
	}
	return stats, nil
}

// Vacuum compacts the database file.
func (s *Store) Vacuum(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `VACUUM`); err != nil {
		return fmt.Errorf("vacuum: %w", err)
	}
	return nil
}

// BackupTo writes a consistent compacted copy of the database to the
// destination path. The destination must not already exist.
func (s *Store) BackupTo(ctx context.Context, dest string) error {
	if _, err := os.Stat(dest); err == nil {
		return fmt.Errorf("backup destination %s already exists", dest)
	}
	if _, err := s.db.ExecContext(ctx, `VACUUM INTO ?`, dest); err != nil {
		return fmt.Errorf("backup: %w", err)
	}
	return nil
}
