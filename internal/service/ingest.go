// Package service holds the orchestration layer: ingesting upstream
// results into the catalog, browsing it, moving data in and out, and
// driving searches and downloads across rotating credentials.
package service

import (
	"context"
	"log/slog"
	"regexp"
	"strconv"
	"strings"

	"github.com/zlibtools/zdl/internal/catalog"
	"github.com/zlibtools/zdl/internal/domain"
	"github.com/zlibtools/zdl/internal/zlibrary"
)

// authorSeparator splits a combined author string on commas,
// semicolons, and the word "and".
var authorSeparator = regexp.MustCompile(`(?i)\s+and\s+|[,;]`)

// SplitAuthors breaks an upstream author field into individual names.
// Empty fragments and exact duplicates are dropped; order is preserved.
func SplitAuthors(s string) []string {
	parts := authorSeparator.Split(s, -1)
	var names []string
	seen := make(map[string]bool, len(parts))
	for _, part := range parts {
		name := strings.TrimSpace(part)
		if name == "" || seen[name] {
			continue
		}
		seen[name] = true
		names = append(names, name)
	}
	return names
}

// Ingestor writes upstream search results into the catalog.
type Ingestor struct {
	store  *catalog.Store
	logger *slog.Logger
}

// NewIngestor creates an ingestor over the catalog store.
func NewIngestor(store *catalog.Store, logger *slog.Logger) *Ingestor {
	return &Ingestor{store: store, logger: logger}
}

// IngestStats reports one ingestion pass.
type IngestStats struct {
	Ingested int
	Skipped  int
}

// Ingest upserts each result and links its authors in order. Results
// without an id or title are skipped with a warning rather than
// aborting the batch.
func (i *Ingestor) Ingest(ctx context.Context, results []zlibrary.BookResult) (*IngestStats, error) {
	stats := &IngestStats{}
	for _, r := range results {
		if r.ID == "" || r.Title == "" {
			i.logger.Warn("skipping result without id or title", "id", string(r.ID), "title", r.Title)
			stats.Skipped++
			continue
		}

		book := bookFromResult(r)
		if err := i.store.UpsertBook(ctx, book); err != nil {
			return stats, err
		}

		for pos, name := range SplitAuthors(r.Author) {
			authorID, err := i.store.GetOrCreateAuthor(ctx, name)
			if err != nil {
				return stats, err
			}
			if err := i.store.LinkBookAuthor(ctx, book.ID, authorID, pos); err != nil {
				return stats, err
			}
		}
		stats.Ingested++
	}
	return stats, nil
}

// bookFromResult maps an upstream result onto a catalog book.
func bookFromResult(r zlibrary.BookResult) *domain.Book {
	year := ""
	if r.Year > 0 {
		year = strconv.Itoa(int(r.Year))
	}
	return &domain.Book{
		ID:          string(r.ID),
		Hash:        r.Hash,
		Title:       r.Title,
		Year:        year,
		Publisher:   r.Publisher,
		Language:    r.Language,
		Extension:   r.Extension,
		Filesize:    int64(r.Filesize),
		CoverURL:    r.Cover,
		Description: r.Description,
		ISBN:        r.ISBN,
		Edition:     r.Edition,
		Pages:       int(r.Pages),
	}
}
