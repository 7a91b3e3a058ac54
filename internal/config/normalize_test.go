package config

import (
	"strings"
	"testing"
)

func TestNormalizeClientID(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"", DefaultClientID},
		{"   ", DefaultClientID},
		{"whatsapp-qr-scanner", "whatsapp-qr-scanner"},
		{"Sales Team", "sales-team"},
		{"../../etc/passwd", "etc-passwd"},
		{"--weird--", "weird"},
		{"!!!", DefaultClientID},
		{strings.Repeat("a", 80), strings.Repeat("a", 64)},
	}
	for _, tt := range tests {
		if got := NormalizeClientID(tt.in); got != tt.want {
			t.Errorf("NormalizeClientID(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
