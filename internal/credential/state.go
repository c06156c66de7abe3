package credential

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/zlibtools/zdl/internal/domain"
)

// Wire field names of the rotation state document.
const (
	stateKeyCurrentIndex = "current_index"
	stateKeyLastRotation = "last_rotation"
	stateKeyCredentials  = "credentials_status"

	entryKeyLastUsed      = "last_used"
	entryKeyDownloadsLeft = "downloads_left"
	entryKeyStatus        = "status"
)

// State is the persisted rotation state: the cursor position plus
// per-credential status keyed by identity. Unknown JSON fields read from
// disk are preserved across a save.
type State struct {
	CurrentIndex int
	LastRotation time.Time
	Credentials  map[string]EntryState

	extra map[string]json.RawMessage
}

// EntryState is the persisted status of one credential.
type EntryState struct {
	LastUsed      time.Time
	DownloadsLeft int
	Status        domain.CredentialStatus

	extra map[string]json.RawMessage
}

// NewState returns an empty state.
func NewState() *State {
	return &State{Credentials: make(map[string]EntryState)}
}

// MarshalJSON writes the wire format, layering known fields over any
// preserved unknown ones.
func (s *State) MarshalJSON() ([]byte, error) {
	doc := make(map[string]json.RawMessage, len(s.extra)+3)
	for k, v := range s.extra {
		doc[k] = v
	}

	put := func(key string, v any) error {
		raw, err := json.Marshal(v)
		if err != nil {
			return err
		}
		doc[key] = raw
		return nil
	}

	if err := put(stateKeyCurrentIndex, s.CurrentIndex); err != nil {
		return nil, err
	}
	if err := put(stateKeyLastRotation, s.LastRotation.UTC().Format(time.RFC3339)); err != nil {
		return nil, err
	}
	if err := put(stateKeyCredentials, s.Credentials); err != nil {
		return nil, err
	}
	return json.Marshal(doc)
}

// UnmarshalJSON reads the wire format, retaining unknown fields.
// Missing fields assume defaults.
func (s *State) UnmarshalJSON(data []byte) error {
	var doc map[string]json.RawMessage
	if err := json.Unmarshal(data, &doc); err != nil {
		return err
	}

	*s = State{Credentials: make(map[string]EntryState), extra: make(map[string]json.RawMessage)}

	for key, raw := range doc {
		switch key {
		case stateKeyCurrentIndex:
			if err := json.Unmarshal(raw, &s.CurrentIndex); err != nil {
				return fmt.Errorf("field %s: %w", key, err)
			}
		case stateKeyLastRotation:
			var ts string
			if err := json.Unmarshal(raw, &ts); err != nil {
				return fmt.Errorf("field %s: %w", key, err)
			}
			t, err := time.Parse(time.RFC3339, ts)
			if err != nil {
				return fmt.Errorf("field %s: %w", key, err)
			}
			s.LastRotation = t
		case stateKeyCredentials:
			if err := json.Unmarshal(raw, &s.Credentials); err != nil {
				return fmt.Errorf("field %s: %w", key, err)
			}
		default:
			s.extra[key] = raw
		}
	}

	if s.CurrentIndex < 0 {
		return fmt.Errorf("field %s: must be non-negative", stateKeyCurrentIndex)
	}
	return nil
}

// MarshalJSON writes one credential entry.
func (e EntryState) MarshalJSON() ([]byte, error) {
	doc := make(map[string]json.RawMessage, len(e.extra)+3)
	for k, v := range e.extra {
		doc[k] = v
	}

	put := func(key string, v any) error {
		raw, err := json.Marshal(v)
		if err != nil {
			return err
		}
		doc[key] = raw
		return nil
	}

	if !e.LastUsed.IsZero() {
		if err := put(entryKeyLastUsed, e.LastUsed.UTC().Format(time.RFC3339)); err != nil {
			return nil, err
		}
	}
	if err := put(entryKeyDownloadsLeft, e.DownloadsLeft); err != nil {
		return nil, err
	}
	if err := put(entryKeyStatus, string(e.Status)); err != nil {
		return nil, err
	}
	return json.Marshal(doc)
}

// UnmarshalJSON reads one credential entry, retaining unknown fields.
func (e *EntryState) UnmarshalJSON(data []byte) error {
	var doc map[string]json.RawMessage
	if err := json.Unmarshal(data, &doc); err != nil {
		return err
	}

	*e = EntryState{DownloadsLeft: domain.DownloadsUnknown, extra: make(map[string]json.RawMessage)}

	for key, raw := range doc {
		switch key {
		case entryKeyLastUsed:
			var ts string
			if err := json.Unmarshal(raw, &ts); err != nil {
				return fmt.Errorf("field %s: %w", key, err)
			}
			t, err := time.Parse(time.RFC3339, ts)
			if err != nil {
				return fmt.Errorf("field %s: %w", key, err)
			}
			e.LastUsed = t
		case entryKeyDownloadsLeft:
			if err := json.Unmarshal(raw, &e.DownloadsLeft); err != nil {
				return fmt.Errorf("field %s: %w", key, err)
			}
		case entryKeyStatus:
			var s string
			if err := json.Unmarshal(raw, &s); err != nil {
				return fmt.Errorf("field %s: %w", key, err)
			}
			e.Status = domain.ParseCredentialStatus(s)
		default:
			e.extra[key] = raw
		}
	}
	return nil
}

// StateFile persists rotation state as a small JSON document.
// The file is owned exclusively by the credential manager.
type StateFile struct {
	path string
}

// NewStateFile creates a state file handle for the given path.
func NewStateFile(path string) *StateFile {
	return &StateFile{path: path}
}

// Path returns the underlying file path.
func (f *StateFile) Path() string {
	return f.path
}

// Load reads the stored state. A missing file yields an empty state and
// no error. A file that exists but fails parsing yields an empty state
// plus the parse error as a recoverable warning; callers log it and
// continue.
func (f *StateFile) Load() (*State, error) {
	data, err := os.ReadFile(f.path)
	if os.IsNotExist(err) {
		return NewState(), nil
	}
	if err != nil {
		return NewState(), fmt.Errorf("read state file %s: %w", f.path, err)
	}

	state := NewState()
	if err := json.Unmarshal(data, state); err != nil {
		return NewState(), fmt.Errorf("parse state file %s: %w", f.path, err)
	}
	return state, nil
}

// Save atomically writes the state: sibling temp file, fsync, rename.
// File mode is restricted to the owner; best-effort on non-POSIX systems.
func (f *StateFile) Save(state *State) error {
	if err := os.MkdirAll(filepath.Dir(f.path), 0o700); err != nil {
		return fmt.Errorf("create state directory: %w", err)
	}

	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal state: %w", err)
	}
	data = append(data, '\n')

	tmp, err := os.CreateTemp(filepath.Dir(f.path), filepath.Base(f.path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp state file: %w", err)
	}
	tmpName := tmp.Name()

	cleanup := func() {
		tmp.Close()
		os.Remove(tmpName)
	}

	if err := tmp.Chmod(0o600); err != nil {
		cleanup()
		return fmt.Errorf("chmod temp state file: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		cleanup()
		return fmt.Errorf("write temp state file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		cleanup()
		return fmt.Errorf("sync temp state file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close temp state file: %w", err)
	}
	if err := os.Rename(tmpName, f.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("replace state file: %w", err)
	}
	return nil
}
