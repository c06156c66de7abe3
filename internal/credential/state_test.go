package credential

import (
	"encoding/json"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zlibtools/zdl/internal/domain"
)

func TestStateRoundTrip(t *testing.T) {
	file := NewStateFile(filepath.Join(t.TempDir(), "state", "rotation.json"))

	state := NewState()
	state.CurrentIndex = 2
	state.LastRotation = time.Date(2026, 8, 20, 12, 0, 0, 0, time.UTC)
	state.Credentials["a@example.com"] = EntryState{
		LastUsed:      time.Date(2026, 8, 20, 11, 30, 0, 0, time.UTC),
		DownloadsLeft: 5,
		Status:        domain.StatusValid,
	}
	state.Credentials["12345"] = EntryState{
		DownloadsLeft: 0,
		Status:        domain.StatusExhausted,
	}

	require.NoError(t, file.Save(state))

	loaded, err := file.Load()
	require.NoError(t, err)
	assert.Equal(t, 2, loaded.CurrentIndex)
	assert.True(t, loaded.LastRotation.Equal(state.LastRotation), "last rotation = %v", loaded.LastRotation)
	require.Len(t, loaded.Credentials, 2)

	a := loaded.Credentials["a@example.com"]
	assert.Equal(t, 5, a.DownloadsLeft)
	assert.Equal(t, domain.StatusValid, a.Status)
	assert.True(t, a.LastUsed.Equal(state.Credentials["a@example.com"].LastUsed), "last used = %v", a.LastUsed)

	b := loaded.Credentials["12345"]
	assert.Equal(t, 0, b.DownloadsLeft)
	assert.Equal(t, domain.StatusExhausted, b.Status)
}

func TestStatePreservesUnknownFields(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rotation.json")
	doc := `{
  "current_index": 1,
  "last_rotation": "2026-08-20T12:00:00Z",
  "schema_version": 3,
  "credentials_status": {
    "a@example.com": {
      "downloads_left": 4,
      "status": "valid",
      "notes": "added by another tool"
    }
  }
}`
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o600))

	file := NewStateFile(path)
	state, err := file.Load()
	require.NoError(t, err)
	require.NoError(t, file.Save(state))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var out map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(data, &out), "saved file is not valid JSON")
	assert.Equal(t, "3", string(out["schema_version"]))

	var entries map[string]map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(out["credentials_status"], &entries))
	assert.Equal(t, `"added by another tool"`, string(entries["a@example.com"]["notes"]))
}

func TestStateLoadMissingFile(t *testing.T) {
	file := NewStateFile(filepath.Join(t.TempDir(), "absent.json"))

	state, err := file.Load()
	require.NoError(t, err, "missing file should load as empty state")
	assert.Equal(t, 0, state.CurrentIndex)
	assert.Empty(t, state.Credentials)
}

func TestStateLoadCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rotation.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o600))

	state, err := NewStateFile(path).Load()
	require.Error(t, err, "expected a parse warning for corrupt state")
	require.NotNil(t, state, "corrupt file should still yield an empty state")
	assert.Equal(t, 0, state.CurrentIndex)
	assert.Empty(t, state.Credentials)
}

func TestStateRejectsNegativeIndex(t *testing.T) {
	var state State
	err := json.Unmarshal([]byte(`{"current_index": -1}`), &state)
	require.Error(t, err, "expected error for negative index")
}

func TestSaveFileMode(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("file modes are not meaningful on windows")
	}
	path := filepath.Join(t.TempDir(), "rotation.json")
	file := NewStateFile(path)
	require.NoError(t, file.Save(NewState()))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
}
