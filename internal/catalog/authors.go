package catalog

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/zlibtools/zdl/internal/domain"
)

// GetOrCreateAuthor returns the author id for a name, inserting the
// name on first sight. Names are unique; concurrent callers converge
// on the same row.
func (s *Store) GetOrCreateAuthor(ctx context.Context, name string) (int64, error) {
	if _, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO authors (name) VALUES (?)`, name); err != nil {
		return 0, fmt.Errorf("insert author: %w", err)
	}

	var id int64
	if err := s.db.QueryRowContext(ctx,
		`SELECT id FROM authors WHERE name = ?`, name).Scan(&id); err != nil {
		return 0, fmt.Errorf("get author id: %w", err)
	}
	return id, nil
}

// LinkBookAuthor records an ordered book-author relationship. Linking
// the same pair again updates the position instead of failing.
func (s *Store) LinkBookAuthor(ctx context.Context, bookID string, authorID int64, position int) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO book_authors (book_id, author_id, author_order)
		VALUES (?, ?, ?)
		ON CONFLICT(book_id, author_id) DO UPDATE SET author_order = excluded.author_order`,
		bookID, authorID, position)
	if err != nil {
		return fmt.Errorf("link book author: %w", err)
	}
	return nil
}

// AuthorsForBook lists a book's authors in link order.
func (s *Store) AuthorsForBook(ctx context.Context, bookID string) ([]domain.Author, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT a.id, a.name
		FROM authors a
		JOIN book_authors ba ON ba.author_id = a.id
		WHERE ba.book_id = ?
		ORDER BY ba.author_order, a.id`, bookID)
	if err != nil {
		return nil, fmt.Errorf("authors for book: %w", err)
	}
	defer rows.Close()

	var authors []domain.Author
	for rows.Next() {
		var a domain.Author
		if err := rows.Scan(&a.ID, &a.Name); err != nil {
			return nil, fmt.Errorf("scan author: %w", err)
		}
		authors = append(authors, a)
	}
	return authors, rows.Err()
}

// AuthorsForBooks fetches authors for many books in one query, keyed by
// book id. Browsing a page of books costs two queries, not N+1.
func (s *Store) AuthorsForBooks(ctx context.Context, bookIDs []string) (map[string][]domain.Author, error) {
	result := make(map[string][]domain.Author, len(bookIDs))
	if len(bookIDs) == 0 {
		return result, nil
	}

	placeholders := strings.Repeat("?,", len(bookIDs))
	placeholders = placeholders[:len(placeholders)-1]
	args := make([]any, len(bookIDs))
	for i, id := range bookIDs {
		args[i] = id
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT ba.book_id, a.id, a.name
		FROM authors a
		JOIN book_authors ba ON ba.author_id = a.id
		WHERE ba.book_id IN (`+placeholders+`)
		ORDER BY ba.book_id, ba.author_order, a.id`, args...)
	if err != nil {
		return nil, fmt.Errorf("authors for books: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var bookID string
		var a domain.Author
		if err := rows.Scan(&bookID, &a.ID, &a.Name); err != nil {
			return nil, fmt.Errorf("scan author: %w", err)
		}
		result[bookID] = append(result[bookID], a)
	}
	return result, rows.Err()
}

// UnlinkedAuthorCount counts authors no longer linked to any book.
func (s *Store) UnlinkedAuthorCount(ctx context.Context) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM authors a
		WHERE NOT EXISTS (SELECT 1 FROM book_authors ba WHERE ba.author_id = a.id)`).Scan(&count)
	if err != nil && err != sql.ErrNoRows {
		return 0, fmt.Errorf("count unlinked authors: %w", err)
	}
	return count, nil
}

// PruneAuthors deletes authors no longer linked to any book and reports
// how many were removed.
func (s *Store) PruneAuthors(ctx context.Context) (int, error) {
	res, err := s.db.ExecContext(ctx, `
		DELETE FROM authors
		WHERE NOT EXISTS (SELECT 1 FROM book_authors ba WHERE ba.author_id = authors.id)`)
	if err != nil {
		return 0, fmt.Errorf("prune authors: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("prune authors: %w", err)
	}
	return int(n), nil
}
