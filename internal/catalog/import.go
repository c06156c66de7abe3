package catalog

import (
	"context"
	"fmt"
	"time"

	"github.com/zlibtools/zdl/internal/domain"
	"github.com/zlibtools/zdl/internal/errors"
)

// ImportBooks upserts a batch of books with their authors in one
// transaction. Any invalid record aborts the whole batch; the catalog
// is left untouched on failure.
func (s *Store) ImportBooks(ctx context.Context, items []domain.BookWithAuthors) (int, error) {
	for i, item := range items {
		if item.Book.ID == "" || item.Book.Title == "" {
			return 0, errors.Catalog("import record %d: missing id or title", i+1)
		}
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin import: %w", err)
	}
	defer tx.Rollback()

	now := formatTime(time.Now())
	for _, item := range items {
		book := item.Book
		_, err := tx.ExecContext(ctx, `
			INSERT INTO books (id, hash, title, year, publisher, language, extension, size,
				filesize, cover_url, description, isbn, edition, pages, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(id) DO UPDATE SET
				hash = excluded.hash,
				title = excluded.title,
				year = excluded.year,
				publisher = excluded.publisher,
				language = excluded.language,
				extension = excluded.extension,
				size = excluded.size,
				filesize = excluded.filesize,
				cover_url = excluded.cover_url,
				description = excluded.description,
				isbn = excluded.isbn,
				edition = excluded.edition,
				pages = excluded.pages,
				updated_at = excluded.updated_at`,
			book.ID, book.Hash, book.Title, nullString(book.Year), nullString(book.Publisher),
			nullString(book.Language), nullString(book.Extension), nullString(book.Size),
			nullInt64(book.Filesize), nullString(book.CoverURL), nullString(book.Description),
			nullString(book.ISBN), nullString(book.Edition), nullInt64(int64(book.Pages)),
			now, now,
		)
		if err != nil {
			return 0, fmt.Errorf("import book %s: %w", book.ID, err)
		}

		for pos, author := range item.Authors {
			if _, err := tx.ExecContext(ctx,
				`INSERT OR IGNORE INTO authors (name) VALUES (?)`, author.Name); err != nil {
				return 0, fmt.Errorf("import author %q: %w", author.Name, err)
			}
			var authorID int64
			if err := tx.QueryRowContext(ctx,
				`SELECT id FROM authors WHERE name = ?`, author.Name).Scan(&authorID); err != nil {
				return 0, fmt.Errorf("import author %q: %w", author.Name, err)
			}
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO book_authors (book_id, author_id, author_order)
				VALUES (?, ?, ?)
				ON CONFLICT(book_id, author_id) DO UPDATE SET author_order = excluded.author_order`,
				book.ID, authorID, pos); err != nil {
				return 0, fmt.Errorf("link author %q: %w", author.Name, err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit import: %w", err)
	}
	return len(items), nil
}
