package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func enabledCredential() Credential {
	return Credential{
		Email:         "a@example.com",
		Password:      "secret",
		Enabled:       true,
		Status:        StatusUnknown,
		DownloadsLeft: DownloadsUnknown,
	}
}

func TestParseCredentialStatus(t *testing.T) {
	assert.Equal(t, StatusValid, ParseCredentialStatus("valid"))
	assert.Equal(t, StatusInvalid, ParseCredentialStatus("invalid"))
	assert.Equal(t, StatusExhausted, ParseCredentialStatus("exhausted"))
	assert.Equal(t, StatusUnknown, ParseCredentialStatus("unknown"))

	// Unrecognized strings degrade to unknown rather than erroring.
	assert.Equal(t, StatusUnknown, ParseCredentialStatus("banned"))
	assert.Equal(t, StatusUnknown, ParseCredentialStatus(""))
}

func TestIdentityKey(t *testing.T) {
	cred := enabledCredential()
	assert.Equal(t, "a@example.com", cred.IdentityKey())

	token := Credential{UserID: "12345", UserKey: "deadbeef"}
	assert.Equal(t, "12345", token.IdentityKey())
}

func TestAuthShapes(t *testing.T) {
	cred := enabledCredential()
	assert.True(t, cred.HasPasswordAuth())
	assert.False(t, cred.HasTokenAuth())

	token := Credential{UserID: "12345", UserKey: "deadbeef"}
	assert.False(t, token.HasPasswordAuth())
	assert.True(t, token.HasTokenAuth())
}

func TestIsAvailable(t *testing.T) {
	cases := []struct {
		name string
		mut  func(*Credential)
		want bool
	}{
		{"unknown status and quota", func(c *Credential) {}, true},
		{"valid with quota", func(c *Credential) { c.Status = StatusValid; c.DownloadsLeft = 3 }, true},
		{"disabled", func(c *Credential) { c.Enabled = false }, false},
		{"invalid", func(c *Credential) { c.Status = StatusInvalid }, false},
		{"exhausted", func(c *Credential) { c.Status = StatusExhausted }, false},
		{"valid but zero quota", func(c *Credential) { c.Status = StatusValid; c.DownloadsLeft = 0 }, false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cred := enabledCredential()
			tc.mut(&cred)
			assert.Equal(t, tc.want, cred.IsAvailable())
		})
	}
}
