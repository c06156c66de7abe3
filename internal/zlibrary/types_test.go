package zlibrary

import (
	"encoding/json"
	"testing"

	"github.com/zlibtools/zdl/internal/domain"
)

func TestProfileDownloadsLeft(t *testing.T) {
	tests := []struct {
		payload string
		want    int
	}{
		{`{"downloads_limit":10,"downloads_today":3}`, 7},
		{`{"downloads_limit":10,"downloads_today":10}`, 0},
		{`{"downloads_limit":2,"downloads_today":5}`, 0},
		{`{"downloads_limit":4}`, 4},
		{`{}`, domain.DownloadsUnknown},
		{`{"downloads_limit":null,"downloads_today":null}`, domain.DownloadsUnknown},
		{`{"downloads_today":2}`, domain.DownloadsUnknown},
	}
	for _, tc := range tests {
		var p UserProfile
		if err := json.Unmarshal([]byte(tc.payload), &p); err != nil {
			t.Fatalf("unmarshal %s: %v", tc.payload, err)
		}
		if got := p.DownloadsLeft(); got != tc.want {
			t.Errorf("DownloadsLeft(%s) = %d, want %d", tc.payload, got, tc.want)
		}
	}
}
