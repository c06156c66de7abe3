package catalog

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/zlibtools/zdl/internal/domain"
	"github.com/zlibtools/zdl/internal/errors"
)

// CreateList creates a reading list. Names are unique.
func (s *Store) CreateList(ctx context.Context, name, description string) (*domain.ReadingList, error) {
	if name == "" {
		return nil, errors.Catalog("list name must not be empty")
	}

	now := time.Now()
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO reading_lists (name, description, created_at) VALUES (?, ?, ?)`,
		name, nullString(description), formatTime(now))
	if err != nil {
		if isUniqueViolation(err) {
			return nil, errors.Duplicate("list %q already exists", name)
		}
		return nil, fmt.Errorf("create list: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("create list: %w", err)
	}
	return &domain.ReadingList{ID: id, Name: name, Description: description, CreatedAt: now}, nil
}

// GetListByName fetches a reading list by its unique name.
func (s *Store) GetListByName(ctx context.Context, name string) (*domain.ReadingList, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, name, description, created_at FROM reading_lists WHERE name = ?`, name)

	list, err := scanList(row)
	if err == sql.ErrNoRows {
		return nil, errors.NotFound("list %q not found", name)
	}
	if err != nil {
		return nil, fmt.Errorf("get list: %w", err)
	}
	return list, nil
}

// Lists returns all reading lists ordered by name.
func (s *Store) Lists(ctx context.Context) ([]domain.ReadingList, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, description, created_at FROM reading_lists ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("list reading lists: %w", err)
	}
	defer rows.Close()

	var lists []domain.ReadingList
	for rows.Next() {
		list, err := scanList(rows)
		if err != nil {
			return nil, fmt.Errorf("scan list: %w", err)
		}
		lists = append(lists, *list)
	}
	return lists, rows.Err()
}

// DeleteList removes a reading list; membership rows cascade away.
func (s *Store) DeleteList(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM reading_lists WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete list: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete list: %w", err)
	}
	if n == 0 {
		return errors.NotFound("list %d not found", id)
	}
	return nil
}

// AddBookToList appends a book to a list at the next free position.
// Adding a book already in the list is a duplicate error.
func (s *Store) AddBookToList(ctx context.Context, listID int64, bookID string) error {
	var next int
	err := s.db.QueryRowContext(ctx, `
		SELECT COALESCE(MAX(position), -1) + 1 FROM list_books WHERE list_id = ?`, listID).Scan(&next)
	if err != nil {
		return fmt.Errorf("next list position: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO list_books (list_id, book_id, position, added_at) VALUES (?, ?, ?, ?)`,
		listID, bookID, next, formatTime(time.Now()))
	if err != nil {
		if isUniqueViolation(err) {
			return errors.Duplicate("book %s is already in list %d", bookID, listID)
		}
		return fmt.Errorf("add book to list: %w", err)
	}
	return nil
}

// RemoveBookFromList removes a book from a list.
func (s *Store) RemoveBookFromList(ctx context.Context, listID int64, bookID string) error {
	res, err := s.db.ExecContext(ctx, `
		DELETE FROM list_books WHERE list_id = ? AND book_id = ?`, listID, bookID)
	if err != nil {
		return fmt.Errorf("remove book from list: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("remove book from list: %w", err)
	}
	if n == 0 {
		return errors.NotFound("book %s is not in list %d", bookID, listID)
	}
	return nil
}

// BooksInList returns a list's books in position order.
func (s *Store) BooksInList(ctx context.Context, listID int64) ([]domain.Book, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+prefixedBookColumns("b")+`
		FROM books b
		JOIN list_books lb ON lb.book_id = b.id
		WHERE lb.list_id = ?
		ORDER BY lb.position, b.id`, listID)
	if err != nil {
		return nil, fmt.Errorf("books in list: %w", err)
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

func scanList(row scanner) (*domain.ReadingList, error) {
	var (
		list        domain.ReadingList
		description sql.NullString
		createdAt   string
	)
	if err := row.Scan(&list.ID, &list.Name, &description, &createdAt); err != nil {
		return nil, err
	}
	list.Description = description.String

	var err error
	if list.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, fmt.Errorf("parse created_at: %w", err)
	}
	return &list, nil
}

// prefixedBookColumns returns bookColumns with a table alias prefix.
func prefixedBookColumns(alias string) string {
	return alias + `.id, ` + alias + `.hash, ` + alias + `.title, ` + alias + `.year, ` +
		alias + `.publisher, ` + alias + `.language, ` + alias + `.extension, ` + alias + `.size, ` +
		alias + `.filesize, ` + alias + `.cover_url, ` + alias + `.description, ` + alias + `.isbn, ` +
		alias + `.edition, ` + alias + `.pages, ` + alias + `.created_at, ` + alias + `.updated_at`
}
