package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zlibtools/zdl/internal/domain"
	"github.com/zlibtools/zdl/internal/errors"
)

func newCatalogService(t *testing.T) *CatalogService {
	t.Helper()
	return NewCatalogService(newIngestStore(t), discardLogger())
}

func TestBrowseClampsAndPages(t *testing.T) {
	svc := newCatalogService(t)
	ctx := context.Background()

	for _, id := range []string{"1", "2", "3"} {
		book := &domain.Book{ID: id, Hash: "h", Title: "Book " + id}
		require.NoError(t, svc.store.UpsertBook(ctx, book))
	}

	page, err := svc.Browse(ctx, domain.BrowseFilters{}, 0, -5)
	require.NoError(t, err)
	assert.Equal(t, DefaultBrowseLimit, page.Limit)
	assert.Equal(t, 0, page.Offset)
	assert.Equal(t, 3, page.Total)
	assert.Len(t, page.Books, 3)

	page, err = svc.Browse(ctx, domain.BrowseFilters{}, 1000, 0)
	require.NoError(t, err)
	assert.Equal(t, MaxBrowseLimit, page.Limit)
}

func TestBrowseAttachesAuthors(t *testing.T) {
	svc := newCatalogService(t)
	ctx := context.Background()

	book := &domain.Book{ID: "1", Hash: "h", Title: "Authored"}
	require.NoError(t, svc.store.UpsertBook(ctx, book))
	id, err := svc.store.GetOrCreateAuthor(ctx, "Writer")
	require.NoError(t, err)
	require.NoError(t, svc.store.LinkBookAuthor(ctx, "1", id, 0))

	page, err := svc.Browse(ctx, domain.BrowseFilters{}, 10, 0)
	require.NoError(t, err)
	require.Len(t, page.Books, 1)
	require.Len(t, page.Books[0].Authors, 1)
	assert.Equal(t, "Writer", page.Books[0].Authors[0].Name)
}

func TestShowIncludesBookmarkAndDownloads(t *testing.T) {
	svc := newCatalogService(t)
	ctx := context.Background()

	book := &domain.Book{ID: "1", Hash: "h", Title: "Detailed"}
	require.NoError(t, svc.store.UpsertBook(ctx, book))
	require.NoError(t, svc.Save(ctx, &domain.SavedBook{BookID: "1", Notes: "note"}))
	d := &domain.Download{BookID: "1", Filename: "f.epub", FilePath: "/tmp/f.epub"}
	require.NoError(t, svc.store.RecordDownload(ctx, d))

	detail, err := svc.Show(ctx, "1")
	require.NoError(t, err)
	require.NotNil(t, detail.Saved)
	assert.Equal(t, "note", detail.Saved.Notes)
	assert.Len(t, detail.Downloads, 1)
}

func TestSaveUnknownBook(t *testing.T) {
	svc := newCatalogService(t)

	err := svc.Save(context.Background(), &domain.SavedBook{BookID: "ghost"})
	require.ErrorIs(t, err, errors.ErrNotFound)
}

func TestDownloadsByIdentity(t *testing.T) {
	svc := newCatalogService(t)
	ctx := context.Background()

	book := &domain.Book{ID: "1", Hash: "h", Title: "Shared"}
	require.NoError(t, svc.store.UpsertBook(ctx, book))
	for _, identity := range []string{"a@example.com", "b@example.com", "a@example.com"} {
		d := &domain.Download{BookID: "1", Filename: "f.epub", FilePath: "/tmp/f.epub", CredentialIdentity: identity}
		require.NoError(t, svc.store.RecordDownload(ctx, d))
	}

	records, err := svc.DownloadsByIdentity(ctx, "a@example.com")
	require.NoError(t, err)
	require.Len(t, records, 2)
	for _, d := range records {
		assert.Equal(t, "a@example.com", d.CredentialIdentity)
	}
}

func TestListLifecycle(t *testing.T) {
	svc := newCatalogService(t)
	ctx := context.Background()

	book := &domain.Book{ID: "1", Hash: "h", Title: "Listed"}
	require.NoError(t, svc.store.UpsertBook(ctx, book))

	_, err := svc.CreateList(ctx, "queue", "up next")
	require.NoError(t, err)
	_, err = svc.CreateList(ctx, "queue", "")
	require.ErrorIs(t, err, errors.ErrDuplicate)

	require.NoError(t, svc.AddToList(ctx, "queue", "1"))
	assert.ErrorIs(t, svc.AddToList(ctx, "queue", "ghost"), errors.ErrNotFound)
	assert.ErrorIs(t, svc.AddToList(ctx, "nope", "1"), errors.ErrNotFound)

	list, books, err := svc.ShowList(ctx, "queue")
	require.NoError(t, err)
	assert.Equal(t, "up next", list.Description)
	require.Len(t, books, 1)
	assert.Equal(t, "1", books[0].ID)

	require.NoError(t, svc.RemoveFromList(ctx, "queue", "1"))
	require.NoError(t, svc.DeleteList(ctx, "queue"))
	_, _, err = svc.ShowList(ctx, "queue")
	require.ErrorIs(t, err, errors.ErrNotFound)
}

func TestVacuumPrunesUnlinkedAuthors(t *testing.T) {
	svc := newCatalogService(t)
	ctx := context.Background()

	book := &domain.Book{ID: "1", Hash: "h", Title: "Ephemeral"}
	require.NoError(t, svc.store.UpsertBook(ctx, book))
	id, err := svc.store.GetOrCreateAuthor(ctx, "Forgotten")
	require.NoError(t, err)
	require.NoError(t, svc.store.LinkBookAuthor(ctx, "1", id, 0))

	// Deleting the book cascades the link, stranding the author.
	require.NoError(t, svc.store.DeleteBook(ctx, "1"))
	stats, err := svc.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.UnlinkedAuthors)

	require.NoError(t, svc.Vacuum(ctx))

	stats, err = svc.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, stats.UnlinkedAuthors)
	assert.Equal(t, 0, stats.Authors)
}
