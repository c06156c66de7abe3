package catalog

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/zlibtools/zdl/internal/domain"
	"github.com/zlibtools/zdl/internal/errors"
)

// SaveBook bookmarks a book with optional notes, tags, and priority.
// A book can be saved at most once.
func (s *Store) SaveBook(ctx context.Context, saved *domain.SavedBook) error {
	saved.SavedAt = time.Now()
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO saved_books (book_id, notes, tags, priority, saved_at)
		VALUES (?, ?, ?, ?, ?)`,
		saved.BookID, nullString(saved.Notes), nullString(saved.Tags),
		saved.Priority, formatTime(saved.SavedAt))
	if err != nil {
		if isUniqueViolation(err) {
			return errors.Duplicate("book %s is already saved", saved.BookID)
		}
		return fmt.Errorf("save book: %w", err)
	}

	saved.ID, err = res.LastInsertId()
	if err != nil {
		return fmt.Errorf("save book: %w", err)
	}
	return nil
}

// UnsaveBook removes a bookmark.
func (s *Store) UnsaveBook(ctx context.Context, bookID string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM saved_books WHERE book_id = ?`, bookID)
	if err != nil {
		return fmt.Errorf("unsave book: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("unsave book: %w", err)
	}
	if n == 0 {
		return errors.NotFound("book %s is not saved", bookID)
	}
	return nil
}

// SavedBooks lists bookmarks by descending priority, then recency.
func (s *Store) SavedBooks(ctx context.Context) ([]domain.SavedBook, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, book_id, notes, tags, priority, saved_at
		FROM saved_books
		ORDER BY priority DESC, saved_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("list saved books: %w", err)
	}
	defer rows.Close()

	var saved []domain.SavedBook
	for rows.Next() {
		entry, err := scanSavedBook(rows)
		if err != nil {
			return nil, fmt.Errorf("scan saved book: %w", err)
		}
		saved = append(saved, *entry)
	}
	return saved, rows.Err()
}

// GetSavedBook fetches the bookmark for a book, if any.
func (s *Store) GetSavedBook(ctx context.Context, bookID string) (*domain.SavedBook, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, book_id, notes, tags, priority, saved_at
		FROM saved_books WHERE book_id = ?`, bookID)

	entry, err := scanSavedBook(row)
	if err == sql.ErrNoRows {
		return nil, errors.NotFound("book %s is not saved", bookID)
	}
	if err != nil {
		return nil, fmt.Errorf("get saved book: %w", err)
	}
	return entry, nil
}

func scanSavedBook(row scanner) (*domain.SavedBook, error) {
	var (
		entry       domain.SavedBook
		notes, tags sql.NullString
		savedAt     string
	)
	if err := row.Scan(&entry.ID, &entry.BookID, &notes, &tags, &entry.Priority, &savedAt); err != nil {
		return nil, err
	}
	entry.Notes = notes.String
	entry.Tags = tags.String

	var err error
	if entry.SavedAt, err = parseTime(savedAt); err != nil {
		return nil, fmt.Errorf("parse saved_at: %w", err)
	}
	return &entry, nil
}
