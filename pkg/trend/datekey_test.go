package trend

import (
	"testing"
	"time"
)

func TestResolveDateKey(t *testing.T) {
	r := NewDateKeyResolver("Asia/Jakarta")
	// 03:30 UTC on June 15: already June 15 in Jakarta and London,
	// still June 14 in New York.
	now := time.Date(2025, 6, 15, 3, 30, 0, 0, time.UTC)

	tests := []struct {
		name    string
		started string
		region  string
		want    string
	}{
		{"hours under 24 stay today", "3 hours ago", "ID", "2025-06-15"},
		{"empty text is today in region zone", "", "US", "2025-06-14"},
		{"days ago subtracts days", "2 days ago", "US", "2025-06-12"},
		{"single day form", "1 day ago", "GB", "2025-06-14"},
		{"hours at 24 or more subtract hours", "30 hours ago", "GB", "2025-06-13"},
		{"days take precedence over hours", "1 day ago, 30 hours ago", "GB", "2025-06-14"},
		{"minutes stay today", "25 minutes ago", "ID", "2025-06-15"},
		{"unparseable text is today", "earlier this week", "ID", "2025-06-15"},
		{"unmapped region uses default zone", "", "ZZ", "2025-06-15"},
		{"unmapped region with relative time", "3 days ago", "ZZ", "2025-06-12"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := r.resolveAt(tt.started, tt.region, now); got != tt.want {
				t.Errorf("resolveAt(%q, %q) = %q, want %q", tt.started, tt.region, got, tt.want)
			}
		})
	}
}

func TestResolveDateKeyBadDefaultZone(t *testing.T) {
	r := NewDateKeyResolver("Not/AZone")
	now := time.Date(2025, 6, 15, 3, 30, 0, 0, time.UTC)

	if got := r.resolveAt("", "ZZ", now); got != "2025-06-15" {
		t.Errorf("resolveAt with unloadable default = %q, want UTC date 2025-06-15", got)
	}
}

func TestResolveDateKeyFormat(t *testing.T) {
	r := NewDateKeyResolver("Asia/Jakarta")

	got := r.ResolveDateKey("4 hours ago", "US")
	if _, err := time.Parse("2006-01-02", got); err != nil {
		t.Errorf("ResolveDateKey returned %q, not a YYYY-MM-DD date: %v", got, err)
	}
}
