package service

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/zlibtools/zdl/internal/catalog"
	"github.com/zlibtools/zdl/internal/domain"
	"github.com/zlibtools/zdl/internal/errors"
	"github.com/zlibtools/zdl/internal/zlibrary"
)

// DownloadService fetches book files through the session pool, writes
// them to the download directory, and records the outcome.
type DownloadService struct {
	pool   *zlibrary.Pool
	store  *catalog.Store
	dir    string
	logger *slog.Logger
}

// NewDownloadService creates a download service writing into dir.
func NewDownloadService(pool *zlibrary.Pool, store *catalog.Store, dir string, logger *slog.Logger) *DownloadService {
	return &DownloadService{pool: pool, store: store, dir: dir, logger: logger}
}

// DownloadResult reports one completed download.
type DownloadResult struct {
	Book     *domain.Book
	Path     string
	Size     int64
	Identity string
}

// Download fetches one catalog book. Quota and auth refusals rotate to
// the next credential; a transient failure records a failed attempt
// without touching the rotation cursor or the quota count.
func (d *DownloadService) Download(ctx context.Context, bookID string) (*DownloadResult, error) {
	book, err := d.store.GetBook(ctx, bookID)
	if err != nil {
		return nil, err
	}
	if book.Hash == "" {
		return nil, errors.Catalog("book %s has no download hash", bookID)
	}

	sess, cred, err := d.pool.Current(ctx)
	if err != nil {
		return nil, err
	}
	// Skip a credential already known to be out of quota.
	if !cred.IsAvailable() {
		sess, cred, err = d.pool.Rotate(ctx)
		if err != nil {
			return nil, err
		}
	}

	attempts := d.pool.Manager().Len()
	if attempts < 1 {
		attempts = 1
	}
	for i := 0; i < attempts; i++ {
		result, err := d.fetchAndStore(ctx, sess, book)
		switch {
		case err == nil:
			// Successful download consumes quota and advances rotation.
			d.pool.Manager().RecordDownload(sess.Identity())
			return result, nil
		case errors.Is(err, errors.ErrUpstreamQuota):
			d.logger.Info("credential out of downloads, rotating", "identity", sess.Identity())
			d.pool.Manager().MarkExhausted(sess.Identity())
		case errors.Is(err, errors.ErrUpstreamAuth):
			d.pool.Invalidate(sess.Identity())
		case errors.Is(err, errors.ErrCancelled):
			return nil, err
		default:
			// Transient failure: record it, leave the cursor alone.
			d.recordFailure(ctx, book, sess.Identity(), err)
			return nil, err
		}

		sess, _, err = d.pool.Rotate(ctx)
		if err != nil {
			return nil, err
		}
	}
	return nil, errors.AllExhausted("no credential could download book %s", bookID)
}

// DownloadSummary aggregates a batch download run.
type DownloadSummary struct {
	Completed []DownloadResult
	Skipped   []string
	Failed    map[string]error
}

// DownloadAll fetches a set of books, continuing past per-book failures
// and skipping books that already have a completed download. It stops
// early only when every credential is exhausted or the context is
// cancelled.
func (d *DownloadService) DownloadAll(ctx context.Context, bookIDs []string) (*DownloadSummary, error) {
	summary := &DownloadSummary{Failed: make(map[string]error)}
	for _, id := range bookIDs {
		done, err := d.store.HasCompletedDownload(ctx, id)
		if err != nil {
			summary.Failed[id] = err
			continue
		}
		if done {
			d.logger.Info("already downloaded, skipping", "book", id)
			summary.Skipped = append(summary.Skipped, id)
			continue
		}

		result, err := d.Download(ctx, id)
		if err != nil {
			if errors.Is(err, errors.ErrAllExhausted) || errors.Is(err, errors.ErrCancelled) {
				summary.Failed[id] = err
				return summary, err
			}
			d.logger.Warn("download failed", "book", id, "error", err)
			summary.Failed[id] = err
			continue
		}
		summary.Completed = append(summary.Completed, *result)
	}
	return summary, nil
}

// fetchAndStore streams one file to disk and records the download row.
// On cancellation mid-stream the partial file is left for inspection
// and no row is written.
func (d *DownloadService) fetchAndStore(ctx context.Context, sess *zlibrary.Session, book *domain.Book) (*DownloadResult, error) {
	file, err := sess.Download(ctx, book.ID, book.Hash)
	if err != nil {
		return nil, err
	}
	defer file.Body.Close()

	if err := os.MkdirAll(d.dir, 0o755); err != nil {
		return nil, fmt.Errorf("create download directory: %w", err)
	}

	path, err := availablePath(d.dir, file.Filename)
	if err != nil {
		return nil, err
	}
	out, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("create file: %w", err)
	}

	size, err := io.Copy(out, file.Body)
	closeErr := out.Close()
	if err != nil {
		if ctx.Err() != nil {
			return nil, errors.FromContext(ctx)
		}
		return nil, errors.Transient("stream to %s failed", path).WithCause(err)
	}
	if closeErr != nil {
		return nil, fmt.Errorf("close file: %w", closeErr)
	}

	record := &domain.Download{
		BookID:             book.ID,
		CredentialIdentity: sess.Identity(),
		Filename:           filepath.Base(path),
		FilePath:           path,
		Filesize:           size,
		Status:             domain.DownloadCompleted,
	}
	if err := d.store.RecordDownload(ctx, record); err != nil {
		return nil, err
	}

	d.logger.Info("downloaded", "book", book.ID, "path", path, "bytes", size)
	return &DownloadResult{Book: book, Path: path, Size: size, Identity: sess.Identity()}, nil
}

func (d *DownloadService) recordFailure(ctx context.Context, book *domain.Book, identity string, cause error) {
	record := &domain.Download{
		BookID:             book.ID,
		CredentialIdentity: identity,
		Filename:           "",
		FilePath:           "",
		Status:             domain.DownloadFailed,
		ErrorMessage:       cause.Error(),
	}
	if err := d.store.RecordDownload(ctx, record); err != nil {
		d.logger.Warn("could not record failed download", "book", book.ID, "error", err)
	}
}

// availablePath returns dir/filename, appending " (n)" before the
// extension until the name is free.
func availablePath(dir, filename string) (string, error) {
	filename = sanitizeFilename(filename)
	path := filepath.Join(dir, filename)
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return path, nil
	}

	ext := filepath.Ext(filename)
	stem := strings.TrimSuffix(filename, ext)
	for n := 1; n < 1000; n++ {
		path = filepath.Join(dir, fmt.Sprintf("%s (%d)%s", stem, n, ext))
		if _, err := os.Stat(path); os.IsNotExist(err) {
			return path, nil
		}
	}
	return "", fmt.Errorf("no free filename for %s", filename)
}

// sanitizeFilename strips path separators and control characters from
// upstream-provided names.
func sanitizeFilename(name string) string {
	name = strings.Map(func(r rune) rune {
		switch {
		case r == '/' || r == '\\' || r == 0:
			return '_'
		case r < 0x20:
			return -1
		}
		return r
	}, name)
	name = strings.TrimSpace(name)
	if name == "" {
		name = "download"
	}
	return name
}
