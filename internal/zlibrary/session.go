package zlibrary

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/zlibtools/zdl/internal/errors"
)

// Session is an authenticated handle on one upstream account. Sessions
// are created by Client.LoginWithPassword or Client.LoginWithToken and
// remain valid until the upstream expires the remix cookie pair.
type Session struct {
	client   *Client
	identity string
	userID   string
	userKey  string
}

// Identity returns the credential identity key this session belongs to.
func (s *Session) Identity() string {
	return s.identity
}

func (s *Session) cookies() map[string]string {
	return map[string]string{
		"remix_userid":  s.userID,
		"remix_userkey": s.userKey,
	}
}

// Profile fetches the account profile, including the daily download
// counters.
func (s *Session) Profile(ctx context.Context) (*UserProfile, error) {
	body, err := s.client.doRequest(ctx, s.identity, http.MethodGet, "/eapi/user/profile", nil, nil, s.cookies())
	if err != nil {
		return nil, err
	}

	var env userEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, errors.Transient("malformed profile response").WithCause(err)
	}
	if !bool(env.Success) || env.User == nil {
		return nil, errors.Auth("profile rejected for %s: %s", s.identity, apiError(env.Error))
	}
	return env.User, nil
}

// SearchRequest describes one page of an upstream search.
type SearchRequest struct {
	Query      string
	YearFrom   int
	YearTo     int
	Languages  string
	Extensions string
	Order      string
	Page       int
	Limit      int
}

// Search runs one page of a book search.
func (s *Session) Search(ctx context.Context, req SearchRequest) ([]BookResult, error) {
	form := url.Values{}
	form.Set("message", req.Query)
	if req.YearFrom > 0 {
		form.Set("yearFrom", strconv.Itoa(req.YearFrom))
	}
	if req.YearTo > 0 {
		form.Set("yearTo", strconv.Itoa(req.YearTo))
	}
	if req.Languages != "" {
		form.Set("languages", req.Languages)
	}
	if req.Extensions != "" {
		form.Set("extensions[]", req.Extensions)
	}
	if req.Order != "" {
		form.Set("order", req.Order)
	}
	if req.Page > 0 {
		form.Set("page", strconv.Itoa(req.Page))
	}
	if req.Limit > 0 {
		form.Set("limit", strconv.Itoa(req.Limit))
	}

	body, err := s.client.doRequest(ctx, s.identity, http.MethodPost, "/eapi/book/search", nil, form, s.cookies())
	if err != nil {
		return nil, err
	}

	var env searchEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, errors.Transient("malformed search response").WithCause(err)
	}
	if !bool(env.Success) {
		return nil, errors.Transient("search rejected: %s", apiError(env.Error))
	}
	return env.Books, nil
}

// MostPopular fetches the upstream most-popular feed.
func (s *Session) MostPopular(ctx context.Context) ([]BookResult, error) {
	return s.feed(ctx, "/eapi/book/most-popular")
}

// Recently fetches the upstream recently-added feed.
func (s *Session) Recently(ctx context.Context) ([]BookResult, error) {
	return s.feed(ctx, "/eapi/book/recently")
}

func (s *Session) feed(ctx context.Context, path string) ([]BookResult, error) {
	body, err := s.client.doRequest(ctx, s.identity, http.MethodGet, path, nil, nil, s.cookies())
	if err != nil {
		return nil, err
	}

	var env searchEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, errors.Transient("malformed feed response").WithCause(err)
	}
	if !bool(env.Success) {
		return nil, errors.Transient("feed rejected: %s", apiError(env.Error))
	}
	return env.Books, nil
}

// BookFile is a streaming download handle. The caller owns Body and
// must close it.
type BookFile struct {
	Filename string
	Body     io.ReadCloser
}

// Download resolves the file endpoint for a book and opens a stream on
// the returned download link. Quota refusals come back as quota errors
// so the pool can rotate.
func (s *Session) Download(ctx context.Context, bookID, hash string) (*BookFile, error) {
	path := "/eapi/book/" + url.PathEscape(bookID) + "/" + url.PathEscape(hash) + "/file"
	body, err := s.client.doRequest(ctx, s.identity, http.MethodGet, path, nil, nil, s.cookies())
	if err != nil {
		return nil, err
	}

	var env fileEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, errors.Transient("malformed file response").WithCause(err)
	}
	if !bool(env.Success) || env.File.DownloadLink == "" {
		if isQuotaMessage(env.Error) {
			return nil, errors.Quota("daily download limit reached for %s", s.identity)
		}
		return nil, errors.Transient("file request rejected: %s", apiError(env.Error))
	}

	stream, err := s.client.fetchFile(ctx, s.identity, env.File.DownloadLink)
	if err != nil {
		return nil, err
	}
	return &BookFile{Filename: buildFilename(bookID, env.File), Body: stream}, nil
}

// buildFilename derives a disk name from the file metadata: the
// description when present, otherwise the title, plus the author in
// parentheses and the reported extension.
func buildFilename(bookID string, f fileInfo) string {
	name := f.Description
	if name == "" {
		name = f.Title
	}
	if name == "" {
		name = "book_" + bookID
	}
	if f.Author != "" {
		name += " (" + f.Author + ")"
	}
	ext := f.Extension
	if ext == "" {
		ext = "pdf"
	}
	return name + "." + ext
}

// isQuotaMessage recognizes the upstream's quota refusal phrasing.
func isQuotaMessage(msg string) bool {
	m := strings.ToLower(msg)
	return strings.Contains(m, "limit") || strings.Contains(m, "quota")
}
