package zlibrary

import (
	"context"
	"log/slog"
	"sync"

	"github.com/zlibtools/zdl/internal/credential"
	"github.com/zlibtools/zdl/internal/domain"
	"github.com/zlibtools/zdl/internal/errors"
)

// Pool hands out authenticated sessions backed by the credential
// manager's rotation order. Sessions are created lazily and cached per
// identity; a credential that fails to authenticate is marked invalid
// and skipped on the next pass.
type Pool struct {
	mu       sync.Mutex
	client   *Client
	manager  *credential.Manager
	sessions map[string]*Session
	logger   *slog.Logger
}

// NewPool creates a session pool over the manager's credentials.
func NewPool(client *Client, manager *credential.Manager, logger *slog.Logger) *Pool {
	return &Pool{
		client:   client,
		manager:  manager,
		sessions: make(map[string]*Session),
		logger:   logger,
	}
}

// Manager exposes the underlying credential manager.
func (p *Pool) Manager() *credential.Manager {
	return p.manager
}

// Current returns a session for the credential the rotation cursor
// points at, logging in if needed. Credentials that fail authentication
// are marked invalid and skipped; when every credential is unusable an
// exhaustion error is returned.
func (p *Pool) Current(ctx context.Context) (*Session, domain.Credential, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	cred, err := p.manager.Current()
	if err != nil {
		return nil, domain.Credential{}, err
	}
	return p.acquireLocked(ctx, cred)
}

// Rotate advances the rotation cursor and returns a session for the
// next available credential.
func (p *Pool) Rotate(ctx context.Context) (*Session, domain.Credential, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	cred, err := p.manager.Rotate()
	if err != nil {
		return nil, domain.Credential{}, err
	}
	return p.acquireLocked(ctx, cred)
}

// Refresh discards any cached session for the identity and logs in
// again. Used when an established session starts failing mid-run.
func (p *Pool) Refresh(ctx context.Context, identity string) (*Session, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	delete(p.sessions, identity)
	for _, cred := range p.manager.Credentials() {
		if cred.IdentityKey() == identity {
			return p.loginLocked(ctx, cred)
		}
	}
	return nil, errors.NoValidCredentials("credential %s is not configured", identity)
}

// Invalidate drops the cached session and marks the credential invalid.
func (p *Pool) Invalidate(identity string) {
	p.mu.Lock()
	delete(p.sessions, identity)
	p.mu.Unlock()
	p.manager.MarkInvalid(identity)
}

// ValidateAll probes every enabled credential through the manager.
func (p *Pool) ValidateAll(ctx context.Context) error {
	return p.manager.ValidateAll(ctx, p)
}

// Probe implements credential.Prober: it authenticates the credential
// and reports the remaining daily quota from the profile the login
// already returned.
func (p *Pool) Probe(ctx context.Context, cred *domain.Credential) (int, error) {
	sess, profile, err := p.login(ctx, *cred)
	if err != nil {
		return 0, err
	}

	p.mu.Lock()
	p.sessions[cred.IdentityKey()] = sess
	p.mu.Unlock()
	return profile.DownloadsLeft(), nil
}

// acquireLocked walks the rotation order until a credential yields a
// session. Auth failures mark the credential invalid and advance;
// transient failures surface to the caller unchanged.
func (p *Pool) acquireLocked(ctx context.Context, cred domain.Credential) (*Session, domain.Credential, error) {
	attempts := p.manager.Len()
	for i := 0; i < attempts; i++ {
		sess, err := p.loginLocked(ctx, cred)
		if err == nil {
			return sess, cred, nil
		}
		if !errors.Is(err, errors.ErrUpstreamAuth) {
			return nil, cred, err
		}

		p.logger.Warn("credential failed to authenticate, rotating", "identity", cred.IdentityKey())
		p.manager.MarkInvalid(cred.IdentityKey())
		cred, err = p.manager.Rotate()
		if err != nil {
			return nil, domain.Credential{}, err
		}
	}
	return nil, domain.Credential{}, errors.AllExhausted("no credential could authenticate")
}

// loginLocked returns the cached session for the credential or creates
// one. Callers hold the pool mutex.
func (p *Pool) loginLocked(ctx context.Context, cred domain.Credential) (*Session, error) {
	if sess, ok := p.sessions[cred.IdentityKey()]; ok {
		return sess, nil
	}

	sess, _, err := p.login(ctx, cred)
	if err != nil {
		return nil, err
	}
	p.sessions[cred.IdentityKey()] = sess
	return sess, nil
}

// login authenticates a credential without touching the cache. Both
// auth shapes hand back the profile the upstream reported while
// authenticating, so callers never need a second fetch.
func (p *Pool) login(ctx context.Context, cred domain.Credential) (*Session, *UserProfile, error) {
	if cred.HasTokenAuth() {
		return p.client.LoginWithToken(ctx, cred.UserID, cred.UserKey)
	}
	return p.client.LoginWithPassword(ctx, cred.Email, cred.Password)
}
