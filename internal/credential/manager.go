package credential

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/zlibtools/zdl/internal/domain"
	"github.com/zlibtools/zdl/internal/errors"
)

// Prober checks whether a credential can authenticate upstream and, if so,
// how many downloads it has left. Implementations return the remaining
// quota, or DownloadsUnknown when the upstream does not report one.
type Prober interface {
	Probe(ctx context.Context, cred *domain.Credential) (downloadsLeft int, err error)
}

// probeAttempts bounds retries of a validation probe on transient errors.
const probeAttempts = 2

// Manager owns the credential set and the rotation cursor. All methods
// are safe for concurrent use; a single mutex serializes every state
// transition so the persisted state always reflects a consistent view.
type Manager struct {
	mu    sync.Mutex
	creds []domain.Credential
	index int
	state *State
	file  *StateFile
	log   *slog.Logger
	now   func() time.Time
}

// NewManager builds a manager over the loaded credentials, layering any
// previously persisted state on top. State entries for identities no
// longer configured are discarded; a stored cursor beyond the current
// set is clamped to zero.
func NewManager(creds []domain.Credential, file *StateFile, log *slog.Logger) *Manager {
	m := &Manager{
		creds: make([]domain.Credential, len(creds)),
		file:  file,
		log:   log,
		now:   time.Now,
	}
	copy(m.creds, creds)

	state, err := file.Load()
	if err != nil {
		log.Warn("rotation state unreadable, starting fresh", "path", file.Path(), "error", err)
		state = NewState()
	}

	for i := range m.creds {
		entry, ok := state.Credentials[m.creds[i].IdentityKey()]
		if !ok {
			continue
		}
		m.creds[i].Status = entry.Status
		m.creds[i].DownloadsLeft = entry.DownloadsLeft
		m.creds[i].LastUsed = entry.LastUsed
	}

	// Drop state for identities no longer configured.
	known := make(map[string]bool, len(m.creds))
	for i := range m.creds {
		known[m.creds[i].IdentityKey()] = true
	}
	for key := range state.Credentials {
		if !known[key] {
			delete(state.Credentials, key)
		}
	}

	if state.CurrentIndex >= 0 && state.CurrentIndex < len(m.creds) {
		m.index = state.CurrentIndex
	}
	m.state = state
	return m
}

// Len returns the number of managed credentials.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.creds)
}

// Current returns a copy of the credential the cursor points at.
func (m *Manager) Current() (domain.Credential, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.creds) == 0 {
		return domain.Credential{}, errors.NoValidCredentials("no credentials configured")
	}
	return m.creds[m.index], nil
}

// Credentials returns a snapshot of all managed credentials in order.
func (m *Manager) Credentials() []domain.Credential {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]domain.Credential, len(m.creds))
	copy(out, m.creds)
	return out
}

// Rotate advances the cursor to the next available credential, wrapping
// around the set, and returns it. When no credential is available the
// cursor stays where it is and an exhaustion error is returned.
func (m *Manager) Rotate() (domain.Credential, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.rotateLocked()
}

func (m *Manager) rotateLocked() (domain.Credential, error) {
	n := len(m.creds)
	if n == 0 {
		return domain.Credential{}, errors.AllExhausted("no credentials configured")
	}

	for step := 1; step <= n; step++ {
		i := (m.index + step) % n
		if m.creds[i].IsAvailable() {
			m.index = i
			m.flushLocked()
			m.log.Debug("rotated credential", "identity", m.creds[i].IdentityKey())
			return m.creds[i], nil
		}
	}
	return domain.Credential{}, errors.AllExhausted("all credentials exhausted or invalid")
}

// MarkValid records a successful authentication for the identified
// credential, along with its reported remaining quota.
func (m *Manager) MarkValid(identity string, downloadsLeft int) {
	m.mu.Lock()
	defer m.mu.Unlock()

	i, ok := m.find(identity)
	if !ok {
		return
	}
	m.creds[i].Status = domain.StatusValid
	// A probe that cannot report a quota must not erase a known one.
	if downloadsLeft != domain.DownloadsUnknown {
		m.creds[i].DownloadsLeft = downloadsLeft
	}
	m.creds[i].LastValidated = m.now()
	if m.creds[i].DownloadsLeft == 0 {
		m.creds[i].Status = domain.StatusExhausted
	}
	m.flushLocked()
}

// MarkInvalid records an authentication failure. The credential is
// skipped by rotation until its configuration changes.
func (m *Manager) MarkInvalid(identity string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	i, ok := m.find(identity)
	if !ok {
		return
	}
	m.creds[i].Status = domain.StatusInvalid
	m.creds[i].LastValidated = m.now()
	m.flushLocked()
	m.log.Warn("credential marked invalid", "identity", identity)
}

// MarkExhausted records that the upstream refused a download for quota
// reasons, regardless of the locally tracked count.
func (m *Manager) MarkExhausted(identity string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	i, ok := m.find(identity)
	if !ok {
		return
	}
	m.creds[i].Status = domain.StatusExhausted
	m.creds[i].DownloadsLeft = 0
	m.flushLocked()
	m.log.Info("credential exhausted", "identity", identity)
}

// RecordUse stamps the identified credential as just used.
func (m *Manager) RecordUse(identity string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	i, ok := m.find(identity)
	if !ok {
		return
	}
	m.creds[i].LastUsed = m.now()
	m.flushLocked()
}

// RecordDownload decrements the identified credential's remaining quota
// after a successful download, marks it exhausted at zero, and rotates
// the cursor to the next available credential. Rotation failure is not
// an error here; the next operation will surface exhaustion.
func (m *Manager) RecordDownload(identity string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	i, ok := m.find(identity)
	if !ok {
		return
	}
	m.creds[i].LastUsed = m.now()
	if m.creds[i].DownloadsLeft > 0 {
		m.creds[i].DownloadsLeft--
	}
	if m.creds[i].DownloadsLeft == 0 {
		m.creds[i].Status = domain.StatusExhausted
	}

	if _, err := m.rotateLocked(); err != nil {
		// rotateLocked flushes on success; persist the decrement anyway.
		m.flushLocked()
	}
}

// ValidateAll probes every enabled credential, retrying transient probe
// failures once. Credentials that fail authentication are marked invalid;
// if none validate, a no-valid-credentials error is returned.
func (m *Manager) ValidateAll(ctx context.Context, prober Prober) error {
	m.mu.Lock()
	snapshot := make([]domain.Credential, len(m.creds))
	copy(snapshot, m.creds)
	m.mu.Unlock()

	valid := 0
	for i := range snapshot {
		if !snapshot[i].Enabled {
			continue
		}
		if err := ctx.Err(); err != nil {
			return errors.FromContext(ctx)
		}

		left, err := m.probe(ctx, &snapshot[i], prober)
		switch {
		case err == nil:
			m.MarkValid(snapshot[i].IdentityKey(), left)
			valid++
		case errors.Is(err, errors.ErrUpstreamAuth):
			m.MarkInvalid(snapshot[i].IdentityKey())
		case errors.Is(err, errors.ErrCancelled):
			return err
		default:
			// Transient after retries: leave status unknown.
			m.log.Warn("credential probe failed", "identity", snapshot[i].IdentityKey(), "error", err)
		}
	}

	if valid == 0 {
		return errors.NoValidCredentials("no credential passed validation")
	}
	return nil
}

func (m *Manager) probe(ctx context.Context, cred *domain.Credential, prober Prober) (int, error) {
	var lastErr error
	for attempt := 0; attempt < probeAttempts; attempt++ {
		left, err := prober.Probe(ctx, cred)
		if err == nil {
			return left, nil
		}
		lastErr = err
		if !errors.Is(err, errors.ErrUpstreamTransient) {
			return 0, err
		}
	}
	return 0, lastErr
}

// find locates a credential by identity key. Callers hold the mutex.
func (m *Manager) find(identity string) (int, bool) {
	for i := range m.creds {
		if m.creds[i].IdentityKey() == identity {
			return i, true
		}
	}
	return 0, false
}

// flushLocked persists the current state. Persistence failures are
// logged, not propagated; in-memory state remains authoritative for
// the rest of the run.
func (m *Manager) flushLocked() {
	m.state.CurrentIndex = m.index
	m.state.LastRotation = m.now()
	for i := range m.creds {
		// Mutate the stored entry in place so unknown fields read from
		// disk survive the write-back.
		entry := m.state.Credentials[m.creds[i].IdentityKey()]
		entry.LastUsed = m.creds[i].LastUsed
		entry.DownloadsLeft = m.creds[i].DownloadsLeft
		entry.Status = m.creds[i].Status
		m.state.Credentials[m.creds[i].IdentityKey()] = entry
	}
	if err := m.file.Save(m.state); err != nil {
		m.log.Warn("failed to persist rotation state", "path", m.file.Path(), "error", err)
	}
}
