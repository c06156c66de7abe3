package catalog

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/zlibtools/zdl/internal/domain"
)

// RecordSearch appends one search-history entry.
func (s *Store) RecordSearch(ctx context.Context, query, filters string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO search_history (search_query, search_filters, found_at)
		VALUES (?, ?, ?)`,
		query, nullString(filters), formatTime(time.Now()))
	if err != nil {
		return fmt.Errorf("record search: %w", err)
	}
	return nil
}

// SearchHistory lists recorded searches, most recent first.
func (s *Store) SearchHistory(ctx context.Context, limit int) ([]domain.SearchQuery, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, search_query, search_filters, found_at
		FROM search_history
		ORDER BY found_at DESC, id DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("search history: %w", err)
	}
	defer rows.Close()

	var history []domain.SearchQuery
	for rows.Next() {
		var (
			entry   domain.SearchQuery
			filters sql.NullString
			foundAt string
		)
		if err := rows.Scan(&entry.ID, &entry.Query, &filters, &foundAt); err != nil {
			return nil, fmt.Errorf("scan search history: %w", err)
		}
		entry.Filters = filters.String
		if entry.FoundAt, err = parseTime(foundAt); err != nil {
			return nil, fmt.Errorf("parse found_at: %w", err)
		}
		history = append(history, entry)
	}
	return history, rows.Err()
}

// ClearSearchHistory deletes all search-history entries and reports how
// many were removed.
func (s *Store) ClearSearchHistory(ctx context.Context) (int, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM search_history`)
	if err != nil {
		return 0, fmt.Errorf("clear search history: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("clear search history: %w", err)
	}
	return int(n), nil
}
