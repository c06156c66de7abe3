package catalog

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/zlibtools/zdl/internal/domain"
)

// RecordDownload appends one download attempt, completed or failed.
// Records are append-only; nothing updates them after the fact.
func (s *Store) RecordDownload(ctx context.Context, d *domain.Download) error {
	if d.Status == "" {
		d.Status = domain.DownloadCompleted
	}
	if d.DownloadedAt.IsZero() {
		d.DownloadedAt = time.Now()
	}

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO downloads (book_id, credential_identity, filename, file_path,
			downloaded_at, file_size, status, error_msg)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		d.BookID, nullString(d.CredentialIdentity), d.Filename, d.FilePath,
		formatTime(d.DownloadedAt), nullInt64(d.Filesize), string(d.Status),
		nullString(d.ErrorMessage))
	if err != nil {
		return fmt.Errorf("record download: %w", err)
	}

	d.ID, err = res.LastInsertId()
	if err != nil {
		return fmt.Errorf("record download: %w", err)
	}
	return nil
}

// Downloads lists download records, most recent first.
func (s *Store) Downloads(ctx context.Context, limit int) ([]domain.Download, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, book_id, credential_identity, filename, file_path,
			downloaded_at, file_size, status, error_msg
		FROM downloads
		ORDER BY downloaded_at DESC, id DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list downloads: %w", err)
	}
	defer rows.Close()

	var downloads []domain.Download
	for rows.Next() {
		d, err := scanDownload(rows)
		if err != nil {
			return nil, fmt.Errorf("scan download: %w", err)
		}
		downloads = append(downloads, *d)
	}
	return downloads, rows.Err()
}

// DownloadsForBook lists a book's download records, most recent first.
func (s *Store) DownloadsForBook(ctx context.Context, bookID string) ([]domain.Download, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, book_id, credential_identity, filename, file_path,
			downloaded_at, file_size, status, error_msg
		FROM downloads
		WHERE book_id = ?
		ORDER BY downloaded_at DESC, id DESC`, bookID)
	if err != nil {
		return nil, fmt.Errorf("downloads for book: %w", err)
	}
	defer rows.Close()

	var downloads []domain.Download
	for rows.Next() {
		d, err := scanDownload(rows)
		if err != nil {
			return nil, fmt.Errorf("scan download: %w", err)
		}
		downloads = append(downloads, *d)
	}
	return downloads, rows.Err()
}

// DownloadsForCredential lists the download records attributed to one
// credential identity, most recent first.
func (s *Store) DownloadsForCredential(ctx context.Context, identity string) ([]domain.Download, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, book_id, credential_identity, filename, file_path,
			downloaded_at, file_size, status, error_msg
		FROM downloads
		WHERE credential_identity = ?
		ORDER BY downloaded_at DESC, id DESC`, identity)
	if err != nil {
		return nil, fmt.Errorf("downloads for credential: %w", err)
	}
	defer rows.Close()

	var downloads []domain.Download
	for rows.Next() {
		d, err := scanDownload(rows)
		if err != nil {
			return nil, fmt.Errorf("scan download: %w", err)
		}
		downloads = append(downloads, *d)
	}
	return downloads, rows.Err()
}

// HasCompletedDownload reports whether the book already has a completed
// download record.
func (s *Store) HasCompletedDownload(ctx context.Context, bookID string) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx, `
		SELECT 1 FROM downloads WHERE book_id = ? AND status = ? LIMIT 1`,
		bookID, string(domain.DownloadCompleted)).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("check download: %w", err)
	}
	return true, nil
}

func scanDownload(row scanner) (*domain.Download, error) {
	var (
		d                domain.Download
		identity, errMsg sql.NullString
		fileSize         sql.NullInt64
		status           string
		downloadedAt     string
	)
	err := row.Scan(&d.ID, &d.BookID, &identity, &d.Filename, &d.FilePath,
		&downloadedAt, &fileSize, &status, &errMsg)
	if err != nil {
		return nil, err
	}
	d.CredentialIdentity = identity.String
	d.Filesize = fileSize.Int64
	d.Status = domain.DownloadStatus(status)
	d.ErrorMessage = errMsg.String

	if d.DownloadedAt, err = parseTime(downloadedAt); err != nil {
		return nil, fmt.Errorf("parse downloaded_at: %w", err)
	}
	return &d, nil
}
