// Package credential implements the credential rotation core: loading
// account credentials, persisting rotation state, and rotating between
// accounts as quotas run out.
package credential

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"

	"github.com/zlibtools/zdl/internal/domain"
	"github.com/zlibtools/zdl/internal/errors"
)

// Environment variable names for the single-credential fallback.
const (
	EnvEmail    = "ZLIBRARY_EMAIL"
	EnvPassword = "ZLIBRARY_PASSWORD"
	EnvUserID   = "ZLIBRARY_USERID"
	EnvUserKey  = "ZLIBRARY_USERKEY"
)

// Source identifies where credentials are loaded from.
type Source int

// Credential sources, in detection priority order.
const (
	SourceStructured Source = iota // TOML file
	SourceEnvironment
)

func (s Source) String() string {
	switch s {
	case SourceStructured:
		return "structured"
	case SourceEnvironment:
		return "environment"
	}
	return "unknown"
}

// LoadResult is the outcome of loading a credential configuration.
type LoadResult struct {
	Credentials []domain.Credential // enabled entries, insertion order
	Disabled    int                 // disabled entries skipped, for diagnostics
	Source      Source
	StateFile   string // optional state_file override from the structured file
}

// DetectSource chooses the credential source deterministically: the
// structured file if it exists, otherwise the environment.
func DetectSource(path string) Source {
	if _, err := os.Stat(path); err == nil {
		return SourceStructured
	}
	return SourceEnvironment
}

// Load reads credentials from the detected source. A malformed structured
// file fails with a config error carrying the offending entry; no partial
// set is produced. An empty set is returned without error.
func Load(path string) (*LoadResult, error) {
	switch DetectSource(path) {
	case SourceStructured:
		return LoadStructured(path)
	default:
		return LoadEnvironment()
	}
}

// credentialsFile mirrors the structured TOML document.
type credentialsFile struct {
	StateFile   string            `toml:"state_file"`
	Credentials []credentialEntry `toml:"credentials"`
}

type credentialEntry struct {
	Name     string `toml:"name"`
	Email    string `toml:"email"`
	Password string `toml:"password"`
	UserID   string `toml:"user_id"`
	UserKey  string `toml:"user_key"`
	Enabled  *bool  `toml:"enabled"` // default true
}

// LoadStructured reads the multi-credential TOML file.
func LoadStructured(path string) (*LoadResult, error) {
	var file credentialsFile
	if _, err := toml.DecodeFile(path, &file); err != nil {
		return nil, errors.Config("credentials file %s: %v", path, err)
	}

	result := &LoadResult{Source: SourceStructured, StateFile: file.StateFile}
	seen := make(map[string]bool, len(file.Credentials))

	for i, entry := range file.Credentials {
		cred, err := entry.toCredential()
		if err != nil {
			return nil, errors.Config("credentials file %s: entry %d: %v", path, i+1, err)
		}

		key := cred.IdentityKey()
		if seen[key] {
			return nil, errors.Config("credentials file %s: entry %d: duplicate identity %q", path, i+1, key)
		}
		seen[key] = true

		if !cred.Enabled {
			result.Disabled++
			continue
		}
		result.Credentials = append(result.Credentials, cred)
	}

	return result, nil
}

func (e credentialEntry) toCredential() (domain.Credential, error) {
	hasPassword := e.Email != "" || e.Password != ""
	hasToken := e.UserID != "" || e.UserKey != ""

	switch {
	case hasPassword && hasToken:
		return domain.Credential{}, fmt.Errorf("must not set both email/password and user_id/user_key")
	case hasPassword && (e.Email == "" || e.Password == ""):
		return domain.Credential{}, fmt.Errorf("email and password must both be set")
	case hasToken && (e.UserID == "" || e.UserKey == ""):
		return domain.Credential{}, fmt.Errorf("user_id and user_key must both be set")
	case !hasPassword && !hasToken:
		return domain.Credential{}, fmt.Errorf("missing authentication fields")
	}

	enabled := true
	if e.Enabled != nil {
		enabled = *e.Enabled
	}

	return domain.Credential{
		Name:          e.Name,
		Email:         e.Email,
		Password:      e.Password,
		UserID:        e.UserID,
		UserKey:       e.UserKey,
		Enabled:       enabled,
		Status:        domain.StatusUnknown,
		DownloadsLeft: domain.DownloadsUnknown,
	}, nil
}

// LoadEnvironment reads the single-credential environment format.
// An environment with none of the variables set yields an empty set,
// not an error; the manager decides what that means.
func LoadEnvironment() (*LoadResult, error) {
	email := os.Getenv(EnvEmail)
	password := os.Getenv(EnvPassword)
	userID := os.Getenv(EnvUserID)
	userKey := os.Getenv(EnvUserKey)

	result := &LoadResult{Source: SourceEnvironment}

	hasPassword := email != "" || password != ""
	hasToken := userID != "" || userKey != ""

	if !hasPassword && !hasToken {
		return result, nil
	}
	if hasPassword && hasToken {
		return nil, errors.Config("environment sets both %s/%s and %s/%s", EnvEmail, EnvPassword, EnvUserID, EnvUserKey)
	}
	if hasPassword && (email == "" || password == "") {
		return nil, errors.Config("%s and %s must both be set", EnvEmail, EnvPassword)
	}
	if hasToken && (userID == "" || userKey == "") {
		return nil, errors.Config("%s and %s must both be set", EnvUserID, EnvUserKey)
	}

	result.Credentials = append(result.Credentials, domain.Credential{
		Email:         email,
		Password:      password,
		UserID:        userID,
		UserKey:       userKey,
		Enabled:       true,
		Status:        domain.StatusUnknown,
		DownloadsLeft: domain.DownloadsUnknown,
	})
	return result, nil
}
