package catalog

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/zlibtools/zdl/internal/domain"
	"github.com/zlibtools/zdl/internal/errors"
)

const bookColumns = `id, hash, title, year, publisher, language, extension, size,
	filesize, cover_url, description, isbn, edition, pages, created_at, updated_at`

// CreateBook inserts a new book. Fails with a duplicate error when the
// id already exists.
func (s *Store) CreateBook(ctx context.Context, book *domain.Book) error {
	if book.ID == "" || book.Title == "" {
		return errors.Catalog("book requires id and title")
	}

	now := time.Now()
	book.CreatedAt = now
	book.UpdatedAt = now

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO books (id, hash, title, year, publisher, language, extension, size,
			filesize, cover_url, description, isbn, edition, pages, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		book.ID, book.Hash, book.Title, nullString(book.Year), nullString(book.Publisher),
		nullString(book.Language), nullString(book.Extension), nullString(book.Size),
		nullInt64(book.Filesize), nullString(book.CoverURL), nullString(book.Description),
		nullString(book.ISBN), nullString(book.Edition), nullInt64(int64(book.Pages)),
		formatTime(book.CreatedAt), formatTime(book.UpdatedAt),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return errors.Duplicate("book %s already exists", book.ID)
		}
		return fmt.Errorf("insert book: %w", err)
	}
	return nil
}

// UpsertBook inserts the book or refreshes its metadata in place.
// created_at is preserved on update; upserting identical metadata twice
// leaves a single row.
func (s *Store) UpsertBook(ctx context.Context, book *domain.Book) error {
	if book.ID == "" || book.Title == "" {
		return errors.Catalog("book requires id and title")
	}

	now := time.Now()
	_, err := s.db.ExecContext(ctx, `
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
		formatTime(now), formatTime(now),
	)
	if err != nil {
		return fmt.Errorf("upsert book: %w", err)
	}
	return nil
}

// UpdateBook rewrites an existing book's mutable fields and refreshes
// updated_at. Unlike UpsertBook it fails when the book does not exist.
func (s *Store) UpdateBook(ctx context.Context, book *domain.Book) error {
	if book.ID == "" || book.Title == "" {
		return errors.Catalog("book requires id and title")
	}

	book.UpdatedAt = time.Now()
	res, err := s.db.ExecContext(ctx, `
		UPDATE books SET hash = ?, title = ?, year = ?, publisher = ?, language = ?,
			extension = ?, size = ?, filesize = ?, cover_url = ?, description = ?,
			isbn = ?, edition = ?, pages = ?, updated_at = ?
		WHERE id = ?`,
		book.Hash, book.Title, nullString(book.Year), nullString(book.Publisher),
		nullString(book.Language), nullString(book.Extension), nullString(book.Size),
		nullInt64(book.Filesize), nullString(book.CoverURL), nullString(book.Description),
		nullString(book.ISBN), nullString(book.Edition), nullInt64(int64(book.Pages)),
		formatTime(book.UpdatedAt), book.ID,
	)
	if err != nil {
		return fmt.Errorf("update book: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update book: %w", err)
	}
	if n == 0 {
		return errors.NotFound("book %s not found", book.ID)
	}
	return nil
}

// GetBook fetches one book by its upstream id.
func (s *Store) GetBook(ctx context.Context, id string) (*domain.Book, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+bookColumns+` FROM books WHERE id = ?`, id)
	book, err := scanBook(row)
	if err == sql.ErrNoRows {
		return nil, errors.NotFound("book %s not found", id)
	}
	if err != nil {
		return nil, fmt.Errorf("get book: %w", err)
	}
	return book, nil
}

// DeleteBook removes a book. Junction rows, saved entries, and download
// records cascade away with it.
func (s *Store) DeleteBook(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM books WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete book: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete book: %w", err)
	}
	if n == 0 {
		return errors.NotFound("book %s not found", id)
	}
	return nil
}

// SearchBooks lists catalog books matching the filters, ordered by
// title then id, with limit/offset paging.
func (s *Store) SearchBooks(ctx context.Context, filters domain.BrowseFilters, limit, offset int) ([]domain.Book, error) {
	query := `SELECT DISTINCT b.id, b.hash, b.title, b.year, b.publisher, b.language,
		b.extension, b.size, b.filesize, b.cover_url, b.description, b.isbn, b.edition,
		b.pages, b.created_at, b.updated_at FROM books b`
	where, args := browseClauses(filters)
	if filters.Author != "" {
		query += ` JOIN book_authors ba ON ba.book_id = b.id JOIN authors a ON a.id = ba.author_id`
	}
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += ` ORDER BY b.title, b.id LIMIT ? OFFSET ?`
	args = append(args, limit, offset)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("search books: %w", err)
	}
	defer rows.Close()

	var books []domain.Book
	for rows.Next() {
		book, err := scanBook(rows)
		if err != nil {
			return nil, fmt.Errorf("scan book: %w", err)
		}
		books = append(books, *book)
	}
	return books, rows.Err()
}

// CountBooks counts catalog books matching the filters.
func (s *Store) CountBooks(ctx context.Context, filters domain.BrowseFilters) (int, error) {
	query := `SELECT COUNT(DISTINCT b.id) FROM books b`
	where, args := browseClauses(filters)
	if filters.Author != "" {
		query += ` JOIN book_authors ba ON ba.book_id = b.id JOIN authors a ON a.id = ba.author_id`
	}
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}

	var count int
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("count books: %w", err)
	}
	return count, nil
}

// browseClauses builds parameterized WHERE fragments for browse filters.
// User input only ever reaches the query as bound parameters.
func browseClauses(filters domain.BrowseFilters) ([]string, []any) {
	var where []string
	var args []any

	if filters.Title != "" {
		where = append(where, "b.title LIKE ? ESCAPE '\\'")
		args = append(args, "%"+escapeLike(filters.Title)+"%")
	}
	if filters.Language != "" {
		where = append(where, "b.language = ?")
		args = append(args, filters.Language)
	}
	if filters.Extension != "" {
		where = append(where, "b.extension = ?")
		args = append(args, filters.Extension)
	}
	if filters.YearFrom != "" {
		where = append(where, "b.year >= ?")
		args = append(args, filters.YearFrom)
	}
	if filters.YearTo != "" {
		where = append(where, "b.year <= ?")
		args = append(args, filters.YearTo)
	}
	if filters.Author != "" {
		where = append(where, "a.name LIKE ? ESCAPE '\\'")
		args = append(args, "%"+escapeLike(filters.Author)+"%")
	}
	return where, args
}

// escapeLike escapes LIKE metacharacters in user input.
func escapeLike(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `%`, `\%`)
	s = strings.ReplaceAll(s, `_`, `\_`)
	return s
}

// isUniqueViolation recognizes SQLite unique constraint failures.
func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// scanner abstracts sql.Row and sql.Rows for the scan helpers.
type scanner interface {
	Scan(dest ...any) error
}

// scanBook reads one book row in bookColumns order.
func scanBook(row scanner) (*domain.Book, error) {
	var (
		book                                       domain.Book
		year, publisher, language, extension, size sql.NullString
		coverURL, description, isbn, edition       sql.NullString
		filesize, pages                            sql.NullInt64
		createdAt, updatedAt                       string
	)
	err := row.Scan(
		&book.ID, &book.Hash, &book.Title, &year, &publisher, &language, &extension, &size,
		&filesize, &coverURL, &description, &isbn, &edition, &pages, &createdAt, &updatedAt,
	)
	if err != nil {
		return nil, err
	}

	book.Year = year.String
	book.Publisher = publisher.String
	book.Language = language.String
	book.Extension = extension.String
	book.Size = size.String
	book.Filesize = filesize.Int64
	book.CoverURL = coverURL.String
	book.Description = description.String
	book.ISBN = isbn.String
	book.Edition = edition.String
	book.Pages = int(pages.Int64)

	if book.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, fmt.Errorf("parse created_at: %w", err)
	}
	if book.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, fmt.Errorf("parse updated_at: %w", err)
	}
	return &book, nil
}
