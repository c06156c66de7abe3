package service

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"

	"github.com/zlibtools/zdl/internal/catalog"
	"github.com/zlibtools/zdl/internal/domain"
	"github.com/zlibtools/zdl/internal/errors"
)

// csvHeader is the fixed export column order.
var csvHeader = []string{"id", "title", "authors", "year", "publisher", "language", "extension", "filesize", "isbn"}

// TransferService moves catalog data in and out as JSON and CSV.
type TransferService struct {
	store  *catalog.Store
	logger *slog.Logger
}

// NewTransferService creates a transfer service.
func NewTransferService(store *catalog.Store, logger *slog.Logger) *TransferService {
	return &TransferService{store: store, logger: logger}
}

// bookRecord is the JSON exchange shape for one book.
type bookRecord struct {
	ID          string   `json:"id"`
	Hash        string   `json:"hash,omitempty"`
	Title       string   `json:"title"`
	Authors     []string `json:"authors,omitempty"`
	Year        string   `json:"year,omitempty"`
	Publisher   string   `json:"publisher,omitempty"`
	Language    string   `json:"language,omitempty"`
	Extension   string   `json:"extension,omitempty"`
	Filesize    int64    `json:"filesize,omitempty"`
	ISBN        string   `json:"isbn,omitempty"`
	Edition     string   `json:"edition,omitempty"`
	Pages       int      `json:"pages,omitempty"`
	Description string   `json:"description,omitempty"`
	CoverURL    string   `json:"cover_url,omitempty"`
}

// ExportJSON writes the whole catalog as a JSON array of book records,
// streamed in id order.
func (t *TransferService) ExportJSON(ctx context.Context, w io.Writer) (int, error) {
	count := 0
	if _, err := io.WriteString(w, "[\n"); err != nil {
		return count, fmt.Errorf("write export: %w", err)
	}

	enc := json.NewEncoder(w)
	err := t.store.ForEachBookWithAuthors(ctx, func(b domain.BookWithAuthors) error {
		if count > 0 {
			if _, err := io.WriteString(w, ",\n"); err != nil {
				return err
			}
		}
		count++
		return enc.Encode(recordFromBook(b))
	})
	if err != nil {
		return count, err
	}

	if _, err := io.WriteString(w, "]\n"); err != nil {
		return count, fmt.Errorf("write export: %w", err)
	}
	return count, nil
}

// ExportCSV writes the catalog as CSV in the fixed column order, with
// authors joined by semicolons.
func (t *TransferService) ExportCSV(ctx context.Context, w io.Writer) (int, error) {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return 0, fmt.Errorf("write csv header: %w", err)
	}

	count := 0
	err := t.store.ForEachBookWithAuthors(ctx, func(b domain.BookWithAuthors) error {
		row := []string{
			b.Book.ID,
			b.Book.Title,
			strings.Join(b.AuthorNames(), ";"),
			b.Book.Year,
			b.Book.Publisher,
			b.Book.Language,
			b.Book.Extension,
			strconv.FormatInt(b.Book.Filesize, 10),
			b.Book.ISBN,
		}
		count++
		return cw.Write(row)
	})
	if err != nil {
		return count, err
	}

	cw.Flush()
	return count, cw.Error()
}

// ImportJSON reads a JSON array of book records and applies it in one
// transaction. A record without an id or title aborts the whole import.
func (t *TransferService) ImportJSON(ctx context.Context, r io.Reader) (int, error) {
	var records []bookRecord
	if err := json.NewDecoder(r).Decode(&records); err != nil {
		return 0, errors.Catalog("parse import: %v", err)
	}

	items := make([]domain.BookWithAuthors, len(records))
	for i, rec := range records {
		item := domain.BookWithAuthors{
			Book: domain.Book{
				ID:          rec.ID,
				Hash:        rec.Hash,
				Title:       rec.Title,
				Year:        rec.Year,
				Publisher:   rec.Publisher,
				Language:    rec.Language,
				Extension:   rec.Extension,
				Filesize:    rec.Filesize,
				ISBN:        rec.ISBN,
				Edition:     rec.Edition,
				Pages:       rec.Pages,
				Description: rec.Description,
				CoverURL:    rec.CoverURL,
			},
		}
		for _, name := range rec.Authors {
			item.Authors = append(item.Authors, domain.Author{Name: name})
		}
		items[i] = item
	}

	n, err := t.store.ImportBooks(ctx, items)
	if err != nil {
		return 0, err
	}
	t.logger.Info("import complete", "books", n)
	return n, nil
}

func recordFromBook(b domain.BookWithAuthors) bookRecord {
	return bookRecord{
		ID:          b.Book.ID,
		Hash:        b.Book.Hash,
		Title:       b.Book.Title,
		Authors:     b.AuthorNames(),
		Year:        b.Book.Year,
		Publisher:   b.Book.Publisher,
		Language:    b.Book.Language,
		Extension:   b.Book.Extension,
		Filesize:    b.Book.Filesize,
		ISBN:        b.Book.ISBN,
		Edition:     b.Book.Edition,
		Pages:       b.Book.Pages,
		Description: b.Book.Description,
		CoverURL:    b.Book.CoverURL,
	}
}
