package zlibrary

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"

	"github.com/zlibtools/zdl/internal/domain"
)

// The eAPI is loose with scalar types: booleans arrive as true or 1,
// numbers sometimes arrive as strings and vice versa. The flex types
// below absorb that so response structs stay plain.

type apiBool bool

func (b *apiBool) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch string(data) {
	case "true", "1":
		*b = true
	default:
		*b = false
	}
	return nil
}

type flexString string

func (s *flexString) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || string(data) == "null" {
		*s = ""
		return nil
	}
	if data[0] == '"' {
		var v string
		if err := json.Unmarshal(data, &v); err != nil {
			return err
		}
		*s = flexString(v)
		return nil
	}
	*s = flexString(data)
	return nil
}

type flexInt int64

func (n *flexInt) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || string(data) == "null" {
		*n = 0
		return nil
	}
	raw := string(data)
	if data[0] == '"' {
		var v string
		if err := json.Unmarshal(data, &v); err != nil {
			return err
		}
		raw = strings.TrimSpace(v)
		if raw == "" {
			*n = 0
			return nil
		}
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		// Some fields ("year": "ca. 1920") are not reliably numeric.
		*n = 0
		return nil
	}
	*n = flexInt(v)
	return nil
}

// UserProfile is the upstream account profile. The quota counters are
// pointers because some account tiers omit them from the payload, and
// a missing counter is not a zero one.
type UserProfile struct {
	ID             flexString `json:"id"`
	Email          string     `json:"email"`
	Name           string     `json:"name"`
	KindleEmail    string     `json:"kindle_email"`
	RemixUserKey   string     `json:"remix_userkey"`
	DownloadsLimit *flexInt   `json:"downloads_limit"`
	DownloadsToday *flexInt   `json:"downloads_today"`
}

// DownloadsLeft derives the remaining daily quota from the profile, or
// domain.DownloadsUnknown when the payload does not report a limit.
func (p *UserProfile) DownloadsLeft() int {
	if p.DownloadsLimit == nil {
		return domain.DownloadsUnknown
	}
	var today int
	if p.DownloadsToday != nil {
		today = int(*p.DownloadsToday)
	}
	left := int(*p.DownloadsLimit) - today
	if left < 0 {
		return 0
	}
	return left
}

// BookResult is one book as the upstream search and feed endpoints
// report it.
type BookResult struct {
	ID          flexString `json:"id"`
	Hash        string     `json:"hash"`
	Title       string     `json:"title"`
	Author      string     `json:"author"`
	Year        flexInt    `json:"year"`
	Publisher   string     `json:"publisher"`
	Language    string     `json:"language"`
	Extension   string     `json:"extension"`
	Filesize    flexInt    `json:"filesize"`
	Cover       string     `json:"cover"`
	Description string     `json:"description"`
	ISBN        string     `json:"identifier"`
	Edition     string     `json:"edition"`
	Pages       flexInt    `json:"pages"`
}

type userEnvelope struct {
	Success apiBool      `json:"success"`
	Error   string       `json:"error"`
	User    *UserProfile `json:"user"`
}

type searchEnvelope struct {
	Success apiBool      `json:"success"`
	Error   string       `json:"error"`
	Books   []BookResult `json:"books"`
}

type fileEnvelope struct {
	Success apiBool  `json:"success"`
	Error   string   `json:"error"`
	File    fileInfo `json:"file"`
}

type fileInfo struct {
	Title        string `json:"title"`
	Description  string `json:"description"`
	Author       string `json:"author"`
	Extension    string `json:"extension"`
	DownloadLink string `json:"downloadLink"`
}
