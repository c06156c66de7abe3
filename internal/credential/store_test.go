package credential

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zlibtools/zdl/internal/domain"
	"github.com/zlibtools/zdl/internal/errors"
)

func writeCredsFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "credentials.toml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func clearEnvCreds(t *testing.T) {
	t.Helper()
	t.Setenv(EnvEmail, "")
	t.Setenv(EnvPassword, "")
	t.Setenv(EnvUserID, "")
	t.Setenv(EnvUserKey, "")
}

func TestLoadStructured(t *testing.T) {
	path := writeCredsFile(t, `
state_file = "/tmp/custom_state.json"

[[credentials]]
name = "primary"
email = "a@example.com"
password = "secret1"

[[credentials]]
name = "token"
user_id = "12345"
user_key = "deadbeef"

[[credentials]]
name = "benched"
email = "b@example.com"
password = "secret2"
enabled = false
`)

	result, err := LoadStructured(path)
	require.NoError(t, err)
	assert.Equal(t, SourceStructured, result.Source)
	assert.Equal(t, "/tmp/custom_state.json", result.StateFile)
	require.Len(t, result.Credentials, 2)
	assert.Equal(t, 1, result.Disabled)
	assert.Equal(t, "a@example.com", result.Credentials[0].IdentityKey())
	assert.Equal(t, "12345", result.Credentials[1].IdentityKey())
	for _, c := range result.Credentials {
		assert.Equal(t, domain.StatusUnknown, c.Status, "credential %s", c.IdentityKey())
		assert.Equal(t, domain.DownloadsUnknown, c.DownloadsLeft, "credential %s", c.IdentityKey())
	}
}

func TestLoadStructuredRejectsBadEntries(t *testing.T) {
	cases := map[string]string{
		"both shapes": `
[[credentials]]
email = "a@example.com"
password = "p"
user_id = "1"
user_key = "k"
`,
		"password without email": `
[[credentials]]
password = "p"
`,
		"user_id without key": `
[[credentials]]
user_id = "1"
`,
		"no auth fields": `
[[credentials]]
name = "empty"
`,
		"duplicate identity": `
[[credentials]]
email = "a@example.com"
password = "p1"

[[credentials]]
email = "a@example.com"
password = "p2"
`,
	}

	for name, content := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := LoadStructured(writeCredsFile(t, content))
			require.Error(t, err)
			assert.ErrorIs(t, err, errors.ErrConfig)
		})
	}
}

func TestLoadStructuredMalformedTOML(t *testing.T) {
	_, err := LoadStructured(writeCredsFile(t, "[[credentials]\nemail = broken"))
	require.Error(t, err, "expected error for malformed TOML")
	assert.ErrorIs(t, err, errors.ErrConfig)
}

func TestLoadFallsBackToEnvironment(t *testing.T) {
	clearEnvCreds(t)
	t.Setenv(EnvEmail, "env@example.com")
	t.Setenv(EnvPassword, "envpass")

	missing := filepath.Join(t.TempDir(), "no-such-file.toml")
	result, err := Load(missing)
	require.NoError(t, err)
	assert.Equal(t, SourceEnvironment, result.Source)
	require.Len(t, result.Credentials, 1)
	assert.Equal(t, "env@example.com", result.Credentials[0].IdentityKey())
}

func TestLoadEnvironmentEmpty(t *testing.T) {
	clearEnvCreds(t)

	result, err := LoadEnvironment()
	require.NoError(t, err)
	assert.Empty(t, result.Credentials)
}

func TestLoadEnvironmentRejectsMixedShapes(t *testing.T) {
	clearEnvCreds(t)
	t.Setenv(EnvEmail, "a@example.com")
	t.Setenv(EnvPassword, "p")
	t.Setenv(EnvUserID, "1")
	t.Setenv(EnvUserKey, "k")

	_, err := LoadEnvironment()
	require.Error(t, err, "expected error when both auth shapes are set")
}

func TestLoadEnvironmentIncompletePair(t *testing.T) {
	clearEnvCreds(t)
	t.Setenv(EnvEmail, "a@example.com")

	_, err := LoadEnvironment()
	require.Error(t, err, "expected error for email without password")
}
