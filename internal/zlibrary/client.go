// Package zlibrary is a rate-limited client for the Z-Library eAPI:
// login, profile, search, feeds, and file downloads. Authenticated
// calls go through a Session; the Pool rotates sessions across
// credentials as download quotas run out.
package zlibrary

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/zlibtools/zdl/internal/errors"
	"github.com/zlibtools/zdl/internal/ratelimit"
)

const (
	defaultDomain  = "1lib.sk"
	defaultTimeout = 30 * time.Second

	// Rate limit: per credential identity, not per client.
	defaultRPS   = 1.0
	defaultBurst = 3

	userAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) " +
		"AppleWebKit/537.36 (KHTML, like Gecko) " +
		"Chrome/110.0.0.0 Safari/537.36"
	acceptHeader = "text/html,application/xhtml+xml,application/xml;q=0.9," +
		"image/avif,image/webp,image/apng,*/*;q=0.8," +
		"application/signed-exchange;v=b3;q=0.7"
)

// Config controls client construction. Zero values take defaults.
type Config struct {
	Domain  string
	Timeout time.Duration
	RPS     float64
	Burst   int

	// BaseURL overrides scheme and host entirely. Used by tests.
	BaseURL string
}

// Client is a rate-limited eAPI client. It is safe for concurrent use.
type Client struct {
	http    *http.Client
	baseURL string
	limiter *ratelimit.KeyedLimiter
	logger  *slog.Logger
}

// New creates a new eAPI client.
func New(cfg Config, logger *slog.Logger) *Client {
	if cfg.Domain == "" {
		cfg.Domain = defaultDomain
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.RPS <= 0 {
		cfg.RPS = defaultRPS
	}
	if cfg.Burst <= 0 {
		cfg.Burst = defaultBurst
	}
	base := cfg.BaseURL
	if base == "" {
		base = "https://" + cfg.Domain
	}
	return &Client{
		http:    &http.Client{Timeout: cfg.Timeout},
		baseURL: strings.TrimRight(base, "/"),
		limiter: ratelimit.New(cfg.RPS, cfg.Burst),
		logger:  logger,
	}
}

// LoginWithPassword authenticates with email and password and returns an
// authenticated session.
func (c *Client) LoginWithPassword(ctx context.Context, email, password string) (*Session, *UserProfile, error) {
	form := url.Values{}
	form.Set("email", email)
	form.Set("password", password)

	body, err := c.doRequest(ctx, email, http.MethodPost, "/eapi/user/login", nil, form, nil)
	if err != nil {
		return nil, nil, err
	}

	var env userEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, nil, errors.Transient("malformed login response").WithCause(err)
	}
	if !bool(env.Success) || env.User == nil {
		return nil, nil, errors.Auth("login rejected for %s: %s", email, apiError(env.Error))
	}

	sess := &Session{
		client:   c,
		identity: email,
		userID:   string(env.User.ID),
		userKey:  env.User.RemixUserKey,
	}
	return sess, env.User, nil
}

// LoginWithToken validates a remix user id and key pair and returns an
// authenticated session.
func (c *Client) LoginWithToken(ctx context.Context, userID, userKey string) (*Session, *UserProfile, error) {
	sess := &Session{client: c, identity: userID, userID: userID, userKey: userKey}

	profile, err := sess.Profile(ctx)
	if err != nil {
		return nil, nil, err
	}
	return sess, profile, nil
}

// wait takes one rate-limit token for the identity. The non-blocking
// check first means a throttled call gets logged before it stalls.
func (c *Client) wait(ctx context.Context, identity string) error {
	if c.limiter.Allow(identity) {
		return nil
	}
	c.logger.Debug("rate limited, waiting", "identity", identity)
	return c.limiter.Wait(ctx, identity)
}

// doRequest executes one rate-limited eAPI call and returns the raw body.
// The identity keys the rate limiter so rotation never starves a fresh
// account.
func (c *Client) doRequest(ctx context.Context, identity, method, path string, query url.Values, form url.Values, cookies map[string]string) ([]byte, error) {
	if err := c.wait(ctx, identity); err != nil {
		if ctx.Err() != nil {
			return nil, errors.FromContext(ctx)
		}
		return nil, errors.Transient("rate limit wait").WithCause(err)
	}

	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	var reqBody io.Reader
	if form != nil {
		reqBody = strings.NewReader(form.Encode())
	}

	req, err := http.NewRequestWithContext(ctx, method, u, reqBody)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Accept", acceptHeader)
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")
	req.Header.Set("User-Agent", userAgent)
	if form != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	req.AddCookie(&http.Cookie{Name: "siteLanguageV2", Value: "en"})
	for name, value := range cookies {
		req.AddCookie(&http.Cookie{Name: name, Value: value})
	}

	c.logger.Debug("eapi request", "method", method, "path", path, "identity", identity)

	resp, err := c.http.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, errors.FromContext(ctx)
		}
		return nil, errors.Transient("request %s failed", path).WithCause(err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.Transient("read response from %s", path).WithCause(err)
	}

	switch {
	case resp.StatusCode == http.StatusOK:
		return body, nil
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, errors.Auth("upstream rejected request to %s with status %d", path, resp.StatusCode)
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		return nil, errors.Transient("upstream status %d from %s", resp.StatusCode, path)
	default:
		return nil, errors.Transient("unexpected status %d from %s", resp.StatusCode, path)
	}
}

// fetchFile streams a download link. The link host may differ from the
// API domain, so this bypasses the base URL.
func (c *Client) fetchFile(ctx context.Context, identity, link string) (io.ReadCloser, error) {
	if err := c.wait(ctx, identity); err != nil {
		if ctx.Err() != nil {
			return nil, errors.FromContext(ctx)
		}
		return nil, errors.Transient("rate limit wait").WithCause(err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, link, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := c.http.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, errors.FromContext(ctx)
		}
		return nil, errors.Transient("file download failed").WithCause(err)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, errors.Transient("file download returned status %d", resp.StatusCode)
	}
	return resp.Body, nil
}

func apiError(msg string) string {
	if msg == "" {
		return "no error detail"
	}
	return msg
}
