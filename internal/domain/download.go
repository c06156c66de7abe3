package domain

import "time"

// DownloadStatus is the terminal state of a download attempt.
type DownloadStatus string

// Download statuses.
const (
	DownloadCompleted DownloadStatus = "completed"
	DownloadFailed    DownloadStatus = "failed"
)

// Download is one append-only download record.
// CredentialIdentity is the identity key of the account used, or empty
// when unknown. Secrets never appear here.
type Download struct {
	ID                 int64
	BookID             string
	CredentialIdentity string
	Filename           string
	FilePath           string
	Filesize           int64
	Status             DownloadStatus
	ErrorMessage       string
	DownloadedAt       time.Time
}
