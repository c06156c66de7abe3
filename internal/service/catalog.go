package service

import (
	"context"
	"log/slog"

	"github.com/zlibtools/zdl/internal/catalog"
	"github.com/zlibtools/zdl/internal/domain"
	"github.com/zlibtools/zdl/internal/errors"
)

// Browse paging bounds. Limits outside the range are clamped.
const (
	DefaultBrowseLimit = 20
	MaxBrowseLimit     = 100
)

// CatalogService answers queries against the local catalog and manages
// lists, bookmarks, and history. It never talks to the upstream.
type CatalogService struct {
	store  *catalog.Store
	logger *slog.Logger
}

// NewCatalogService creates a catalog service.
func NewCatalogService(store *catalog.Store, logger *slog.Logger) *CatalogService {
	return &CatalogService{store: store, logger: logger}
}

// BrowsePage is one page of catalog browse results.
type BrowsePage struct {
	Books  []domain.BookWithAuthors
	Total  int
	Limit  int
	Offset int
}

// Browse pages through the local catalog. Author lists are fetched in
// one batch query per page.
func (c *CatalogService) Browse(ctx context.Context, filters domain.BrowseFilters, limit, offset int) (*BrowsePage, error) {
	if limit < 1 {
		limit = DefaultBrowseLimit
	}
	if limit > MaxBrowseLimit {
		limit = MaxBrowseLimit
	}
	if offset < 0 {
		offset = 0
	}

	books, err := c.store.SearchBooks(ctx, filters, limit, offset)
	if err != nil {
		return nil, err
	}
	total, err := c.store.CountBooks(ctx, filters)
	if err != nil {
		return nil, err
	}

	ids := make([]string, len(books))
	for i, b := range books {
		ids[i] = b.ID
	}
	authors, err := c.store.AuthorsForBooks(ctx, ids)
	if err != nil {
		return nil, err
	}

	page := &BrowsePage{Total: total, Limit: limit, Offset: offset}
	for _, b := range books {
		page.Books = append(page.Books, domain.BookWithAuthors{Book: b, Authors: authors[b.ID]})
	}
	return page, nil
}

// BookDetail is a single book with everything the catalog knows about it.
type BookDetail struct {
	domain.BookWithAuthors
	Saved     *domain.SavedBook
	Downloads []domain.Download
}

// Show fetches one book with authors, bookmark, and download history.
func (c *CatalogService) Show(ctx context.Context, bookID string) (*BookDetail, error) {
	book, err := c.store.GetBook(ctx, bookID)
	if err != nil {
		return nil, err
	}
	authors, err := c.store.AuthorsForBook(ctx, bookID)
	if err != nil {
		return nil, err
	}
	downloads, err := c.store.DownloadsForBook(ctx, bookID)
	if err != nil {
		return nil, err
	}

	detail := &BookDetail{
		BookWithAuthors: domain.BookWithAuthors{Book: *book, Authors: authors},
		Downloads:       downloads,
	}
	if saved, err := c.store.GetSavedBook(ctx, bookID); err == nil {
		detail.Saved = saved
	} else if !errors.Is(err, errors.ErrNotFound) {
		return nil, err
	}
	return detail, nil
}

// Save bookmarks a known book.
func (c *CatalogService) Save(ctx context.Context, saved *domain.SavedBook) error {
	if _, err := c.store.GetBook(ctx, saved.BookID); err != nil {
		return err
	}
	return c.store.SaveBook(ctx, saved)
}

// Unsave removes a bookmark.
func (c *CatalogService) Unsave(ctx context.Context, bookID string) error {
	return c.store.UnsaveBook(ctx, bookID)
}

// Saved lists bookmarks with their books, highest priority first.
func (c *CatalogService) Saved(ctx context.Context) ([]BookDetail, error) {
	saved, err := c.store.SavedBooks(ctx)
	if err != nil {
		return nil, err
	}

	var details []BookDetail
	for _, entry := range saved {
		book, err := c.store.GetBook(ctx, entry.BookID)
		if err != nil {
			return nil, err
		}
		authors, err := c.store.AuthorsForBook(ctx, entry.BookID)
		if err != nil {
			return nil, err
		}
		e := entry
		details = append(details, BookDetail{
			BookWithAuthors: domain.BookWithAuthors{Book: *book, Authors: authors},
			Saved:           &e,
		})
	}
	return details, nil
}

// CreateList creates a reading list.
func (c *CatalogService) CreateList(ctx context.Context, name, description string) (*domain.ReadingList, error) {
	return c.store.CreateList(ctx, name, description)
}

// DeleteList deletes a reading list by name.
func (c *CatalogService) DeleteList(ctx context.Context, name string) error {
	list, err := c.store.GetListByName(ctx, name)
	if err != nil {
		return err
	}
	return c.store.DeleteList(ctx, list.ID)
}

// Lists returns all reading lists.
func (c *CatalogService) Lists(ctx context.Context) ([]domain.ReadingList, error) {
	return c.store.Lists(ctx)
}

// AddToList adds a known book to a named list.
func (c *CatalogService) AddToList(ctx context.Context, listName, bookID string) error {
	list, err := c.store.GetListByName(ctx, listName)
	if err != nil {
		return err
	}
	if _, err := c.store.GetBook(ctx, bookID); err != nil {
		return err
	}
	return c.store.AddBookToList(ctx, list.ID, bookID)
}

// RemoveFromList removes a book from a named list.
func (c *CatalogService) RemoveFromList(ctx context.Context, listName, bookID string) error {
	list, err := c.store.GetListByName(ctx, listName)
	if err != nil {
		return err
	}
	return c.store.RemoveBookFromList(ctx, list.ID, bookID)
}

// ShowList returns a named list with its books in position order.
func (c *CatalogService) ShowList(ctx context.Context, name string) (*domain.ReadingList, []domain.Book, error) {
	list, err := c.store.GetListByName(ctx, name)
	if err != nil {
		return nil, nil, err
	}
	books, err := c.store.BooksInList(ctx, list.ID)
	if err != nil {
		return nil, nil, err
	}
	return list, books, nil
}

// Downloads lists recent download records.
func (c *CatalogService) Downloads(ctx context.Context, limit int) ([]domain.Download, error) {
	if limit < 1 {
		limit = DefaultBrowseLimit
	}
	return c.store.Downloads(ctx, limit)
}

// DownloadsByIdentity lists the download records attributed to one
// credential identity.
func (c *CatalogService) DownloadsByIdentity(ctx context.Context, identity string) ([]domain.Download, error) {
	return c.store.DownloadsForCredential(ctx, identity)
}

// History lists recent searches.
func (c *CatalogService) History(ctx context.Context, limit int) ([]domain.SearchQuery, error) {
	if limit < 1 {
		limit = DefaultBrowseLimit
	}
	return c.store.SearchHistory(ctx, limit)
}

// ClearHistory wipes the search history.
func (c *CatalogService) ClearHistory(ctx context.Context) (int, error) {
	return c.store.ClearSearchHistory(ctx)
}

// Stats summarizes the catalog.
func (c *CatalogService) Stats(ctx context.Context) (*catalog.Stats, error) {
	return c.store.Stats(ctx)
}

// Vacuum prunes authors no longer linked to any book, then compacts
// the catalog database.
func (c *CatalogService) Vacuum(ctx context.Context) error {
	pruned, err := c.store.PruneAuthors(ctx)
	if err != nil {
		return err
	}
	if pruned > 0 {
		c.logger.Info("pruned unlinked authors", "count", pruned)
	}
	return c.store.Vacuum(ctx)
}

// Backup writes a consistent copy of the catalog to dest.
func (c *CatalogService) Backup(ctx context.Context, dest string) error {
	return c.store.BackupTo(ctx, dest)
}
