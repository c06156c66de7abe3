package domain

import "time"

// CredentialStatus is the validation state of a credential.
type CredentialStatus string

// Credential statuses. The lowercase string forms appear only in the
// rotation state file.
const (
	StatusValid     CredentialStatus = "valid"
	StatusInvalid   CredentialStatus = "invalid"
	StatusExhausted CredentialStatus = "exhausted"
	StatusUnknown   CredentialStatus = "unknown"
)

// ParseCredentialStatus maps a wire string to a status, defaulting to unknown.
func ParseCredentialStatus(s string) CredentialStatus {
	switch CredentialStatus(s) {
	case StatusValid, StatusInvalid, StatusExhausted, StatusUnknown:
		return CredentialStatus(s)
	}
	return StatusUnknown
}

// DownloadsUnknown marks an unprobed per-day download quota.
const DownloadsUnknown = -1

// Credential is one Z-Library account. Exactly one authentication shape is
// populated: Email+Password, or UserID+UserKey.
type Credential struct {
	Name     string // display only
	Email    string
	Password string
	UserID   string
	UserKey  string
	Enabled  bool

	Status        CredentialStatus
	DownloadsLeft int // DownloadsUnknown until probed
	LastUsed      time.Time
	LastValidated time.Time
}

// IdentityKey returns the stable identity of the credential across runs:
// the email address for password credentials, the numeric user id for
// token credentials.
func (c *Credential) IdentityKey() string {
	if c.Email != "" {
		return c.Email
	}
	return c.UserID
}

// HasPasswordAuth reports whether the credential authenticates with
// email and password.
func (c *Credential) HasPasswordAuth() bool {
	return c.Email != "" && c.Password != ""
}

// HasTokenAuth reports whether the credential authenticates with a
// remix user id and key.
func (c *Credential) HasTokenAuth() bool {
	return c.UserID != "" && c.UserKey != ""
}

// IsAvailable reports whether the credential can serve the next operation:
// enabled, status valid or unknown, and quota not known to be zero.
func (c *Credential) IsAvailable() bool {
	if !c.Enabled {
		return false
	}
	if c.Status != StatusValid && c.Status != StatusUnknown {
		return false
	}
	return c.DownloadsLeft != 0
}
