package catalog

import (
	"context"
	"fmt"

	"github.com/zlibtools/zdl/internal/domain"
)

// ForEachBookWithAuthors streams every book with its ordered authors,
// in id order, calling fn once per book. Returning an error from fn
// stops the walk. The author lookup is batched per page so a large
// catalog exports in bounded memory.
func (s *Store) ForEachBookWithAuthors(ctx context.Context, fn func(domain.BookWithAuthors) error) error {
	const pageSize = 500

	lastID := ""
	for {
		rows, err := s.db.QueryContext(ctx, `
			SELECT `+bookColumns+` FROM books
			WHERE id > ?
			ORDER BY id
			LIMIT ?`, lastID, pageSize)
		if err != nil {
			return fmt.Errorf("export books: %w", err)
		}

		var page []domain.Book
		for rows.Next() {
			book, err := scanBook(rows)
			if err != nil {
				rows.Close()
				return fmt.Errorf("scan book: %w", err)
			}
			page = append(page, *book)
		}
		if err := rows.Err(); err != nil {
			rows.Close()
			return err
		}
		rows.Close()

		if len(page) == 0 {
			return nil
		}

		ids := make([]string, len(page))
		for i, b := range page {
			ids[i] = b.ID
		}
		authors, err := s.AuthorsForBooks(ctx, ids)
		if err != nil {
			return err
		}

		for _, book := range page {
			if err := fn(domain.BookWithAuthors{Book: book, Authors: authors[book.ID]}); err != nil {
				return err
			}
		}
		lastID = page[len(page)-1].ID
	}
}
