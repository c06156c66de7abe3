package credential

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zlibtools/zdl/internal/domain"
	"github.com/zlibtools/zdl/internal/errors"
)

func testManager(t *testing.T, creds []domain.Credential) (*Manager, *StateFile) {
	t.Helper()
	file := NewStateFile(filepath.Join(t.TempDir(), "rotation.json"))
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewManager(creds, file, log), file
}

func passwordCred(email string) domain.Credential {
	return domain.Credential{
		Email:         email,
		Password:      "secret",
		Enabled:       true,
		Status:        domain.StatusUnknown,
		DownloadsLeft: domain.DownloadsUnknown,
	}
}

func TestRotationSkipsUnavailable(t *testing.T) {
	c1 := passwordCred("c1@example.com")
	c2 := passwordCred("c2@example.com")
	c2.Status = domain.StatusExhausted
	c2.DownloadsLeft = 0
	c3 := passwordCred("c3@example.com")

	m, _ := testManager(t, []domain.Credential{c1, c2, c3})

	// Use c1, rotate: c2 is exhausted, so the cursor lands on c3.
	cur, err := m.Current()
	require.NoError(t, err)
	require.Equal(t, "c1@example.com", cur.IdentityKey())

	next, err := m.Rotate()
	require.NoError(t, err)
	assert.Equal(t, "c3@example.com", next.IdentityKey())

	// Rotating again wraps past the exhausted c2 back to c1.
	next, err = m.Rotate()
	require.NoError(t, err)
	assert.Equal(t, "c1@example.com", next.IdentityKey())

	cur, _ = m.Current()
	assert.Equal(t, "c1@example.com", cur.IdentityKey())
}

func TestRotationVisitsAllAvailable(t *testing.T) {
	creds := []domain.Credential{
		passwordCred("a@example.com"),
		passwordCred("b@example.com"),
		passwordCred("c@example.com"),
	}
	m, _ := testManager(t, creds)

	seen := make(map[string]int)
	cur, _ := m.Current()
	seen[cur.IdentityKey()]++
	for i := 0; i < 5; i++ {
		next, err := m.Rotate()
		require.NoError(t, err)
		seen[next.IdentityKey()]++
	}

	// Six uses across three credentials: each used exactly twice.
	for _, c := range creds {
		assert.Equal(t, 2, seen[c.IdentityKey()], "credential %s", c.IdentityKey())
	}
}

func TestRotateAllExhaustedLeavesCursor(t *testing.T) {
	c1 := passwordCred("c1@example.com")
	c2 := passwordCred("c2@example.com")
	m, _ := testManager(t, []domain.Credential{c1, c2})

	m.MarkExhausted("c1@example.com")
	m.MarkExhausted("c2@example.com")

	before, _ := m.Current()
	_, err := m.Rotate()
	require.ErrorIs(t, err, errors.ErrAllExhausted)
	after, _ := m.Current()
	assert.Equal(t, before.IdentityKey(), after.IdentityKey(), "cursor moved on failed rotation")
}

func TestRecordDownloadDecrementsAndRotates(t *testing.T) {
	c1 := passwordCred("c1@example.com")
	c1.Status = domain.StatusValid
	c1.DownloadsLeft = 1
	c2 := passwordCred("c2@example.com")
	c2.Status = domain.StatusValid
	c2.DownloadsLeft = 3
	m, _ := testManager(t, []domain.Credential{c1, c2})

	m.RecordDownload("c1@example.com")

	creds := m.Credentials()
	assert.Equal(t, 0, creds[0].DownloadsLeft)
	assert.Equal(t, domain.StatusExhausted, creds[0].Status)

	cur, err := m.Current()
	require.NoError(t, err)
	assert.Equal(t, "c2@example.com", cur.IdentityKey(), "cursor should move on after c1 exhausted")
}

func TestRecordDownloadUnknownQuotaStaysUnknown(t *testing.T) {
	c1 := passwordCred("c1@example.com")
	c1.Status = domain.StatusValid
	m, _ := testManager(t, []domain.Credential{c1})

	m.RecordDownload("c1@example.com")

	creds := m.Credentials()
	assert.Equal(t, domain.DownloadsUnknown, creds[0].DownloadsLeft, "unknown quota should stay unknown")
	assert.Equal(t, domain.StatusValid, creds[0].Status)
}

func TestMarkValidKeepsKnownQuotaOnUnknownProbe(t *testing.T) {
	c1 := passwordCred("c1@example.com")
	m, _ := testManager(t, []domain.Credential{c1})

	m.MarkValid("c1@example.com", 5)
	m.MarkValid("c1@example.com", domain.DownloadsUnknown)

	creds := m.Credentials()
	assert.Equal(t, 5, creds[0].DownloadsLeft, "the known quota should be kept")
	assert.Equal(t, domain.StatusValid, creds[0].Status)
}

func TestStateSurvivesRestart(t *testing.T) {
	file := NewStateFile(filepath.Join(t.TempDir(), "rotation.json"))
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	creds := []domain.Credential{
		passwordCred("a@example.com"),
		passwordCred("b@example.com"),
	}

	m1 := NewManager(creds, file, log)
	m1.MarkValid("a@example.com", 7)
	_, err := m1.Rotate()
	require.NoError(t, err)

	m2 := NewManager(creds, file, log)
	cur, err := m2.Current()
	require.NoError(t, err)
	assert.Equal(t, "b@example.com", cur.IdentityKey(), "restarted cursor")
	restored := m2.Credentials()
	assert.Equal(t, domain.StatusValid, restored[0].Status)
	assert.Equal(t, 7, restored[0].DownloadsLeft)
}

func TestRestartDiscardsRemovedIdentities(t *testing.T) {
	file := NewStateFile(filepath.Join(t.TempDir(), "rotation.json"))
	log := slog.New(slog.NewTextHandler(io.Discard, nil))

	m1 := NewManager([]domain.Credential{
		passwordCred("old@example.com"),
		passwordCred("keep@example.com"),
	}, file, log)
	m1.MarkValid("old@example.com", 3)
	m1.MarkValid("keep@example.com", 4)

	m2 := NewManager([]domain.Credential{passwordCred("keep@example.com")}, file, log)
	m2.MarkValid("keep@example.com", 4)

	state, err := file.Load()
	require.NoError(t, err)
	assert.NotContains(t, state.Credentials, "old@example.com",
		"state still carries an identity that is no longer configured")
}

func TestRestartClampsOutOfRangeCursor(t *testing.T) {
	file := NewStateFile(filepath.Join(t.TempDir(), "rotation.json"))
	log := slog.New(slog.NewTextHandler(io.Discard, nil))

	state := NewState()
	state.CurrentIndex = 9
	require.NoError(t, file.Save(state))

	m := NewManager([]domain.Credential{passwordCred("a@example.com")}, file, log)
	cur, err := m.Current()
	require.NoError(t, err)
	assert.Equal(t, "a@example.com", cur.IdentityKey(), "cursor should clamp to the first credential")
}

type stubProber struct {
	results map[string]int
	errs    map[string]error
	calls   map[string]int
}

func (p *stubProber) Probe(_ context.Context, cred *domain.Credential) (int, error) {
	key := cred.IdentityKey()
	if p.calls == nil {
		p.calls = make(map[string]int)
	}
	p.calls[key]++
	if err := p.errs[key]; err != nil {
		return 0, err
	}
	return p.results[key], nil
}

func TestValidateAll(t *testing.T) {
	m, _ := testManager(t, []domain.Credential{
		passwordCred("good@example.com"),
		passwordCred("bad@example.com"),
		passwordCred("empty@example.com"),
	})

	prober := &stubProber{
		results: map[string]int{"good@example.com": 6, "empty@example.com": 0},
		errs:    map[string]error{"bad@example.com": errors.Auth("login rejected")},
	}

	require.NoError(t, m.ValidateAll(context.Background(), prober))

	creds := m.Credentials()
	assert.Equal(t, domain.StatusValid, creds[0].Status)
	assert.Equal(t, 6, creds[0].DownloadsLeft)
	assert.Equal(t, domain.StatusInvalid, creds[1].Status)
	assert.Equal(t, domain.StatusExhausted, creds[2].Status)
}

func TestValidateAllNoneValid(t *testing.T) {
	m, _ := testManager(t, []domain.Credential{passwordCred("bad@example.com")})

	prober := &stubProber{errs: map[string]error{"bad@example.com": errors.Auth("login rejected")}}
	err := m.ValidateAll(context.Background(), prober)
	require.ErrorIs(t, err, errors.ErrNoValidCredentials)
}

func TestValidateAllRetriesTransientOnce(t *testing.T) {
	m, _ := testManager(t, []domain.Credential{
		passwordCred("flaky@example.com"),
		passwordCred("good@example.com"),
	})

	prober := &stubProber{
		results: map[string]int{"good@example.com": 2},
		errs:    map[string]error{"flaky@example.com": errors.Transient("upstream 503")},
	}

	require.NoError(t, m.ValidateAll(context.Background(), prober))
	assert.Equal(t, probeAttempts, prober.calls["flaky@example.com"], "transient probes per credential")

	// Transient failure leaves the credential unknown, still rotatable.
	creds := m.Credentials()
	assert.Equal(t, domain.StatusUnknown, creds[0].Status)
}

func TestValidateAllHonorsCancellation(t *testing.T) {
	m, _ := testManager(t, []domain.Credential{passwordCred("a@example.com")})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := m.ValidateAll(ctx, &stubProber{})
	require.ErrorIs(t, err, errors.ErrCancelled)
}

func TestCurrentWithNoCredentials(t *testing.T) {
	m, _ := testManager(t, nil)
	_, err := m.Current()
	require.ErrorIs(t, err, errors.ErrNoValidCredentials)
}
