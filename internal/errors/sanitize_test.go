package errors

import (
	"errors"
	"strings"
	"testing"
)

func TestSanitize_DevelopmentPassesThrough(t *testing.T) {
	SetProductionMode(false)
	defer SetProductionMode(false)

	err := errors.New("failed to read /etc/phalanx/policies.json")
	if got := Sanitize(err); got.Error() != err.Error() {
		t.Errorf("development mode altered error: %q", got)
	}
}

func TestSanitizeString_Production(t *testing.T) {
	SetProductionMode(true)
	defer SetProductionMode(false)

	tests := []struct {
		name    string
		in      string
		exclude string
	}{
		{"file path stripped", "open /var/lib/phalanx/policies.json: permission denied", "/var/lib"},
		{"ip masked", "dial tcp 10.1.2.3:9000: connection refused", "10.1.2.3"},
		{"credentials removed", "pq: connection string password=hunter2 rejected", "hunter2"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := SanitizeString(tt.in)
			if strings.Contains(got, tt.exclude) {
				t.Errorf("sanitized %q still contains %q", got, tt.exclude)
			}
		})
	}
}

func TestSafeMessage(t *testing.T) {
	SetProductionMode(true)
	defer SetProductionMode(false)

	if got := SafeMessage(errors.New("policy not found")); got != "policy not found" {
		t.Errorf("user-facing message altered: %q", got)
	}

	got := SafeMessage(errors.New("dial tcp 10.1.2.3:9000: connect refused at /srv/phalanx"))
	if strings.Contains(got, "10.1.2.3") || strings.Contains(got, "/srv") {
		t.Errorf("internal detail leaked: %q", got)
	}
}
