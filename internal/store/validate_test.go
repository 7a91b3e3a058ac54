package store

import (
	"strings"
	"testing"
)

func TestValidateAPIKeyInput(t *testing.T) {
	tests := []struct {
		name    string
		key     string
		wantErr bool
	}{
		{"empty", "", true},
		{"normal", "wk_abc123def_ghi456jkl", false},
		{"max_length", strings.Repeat("a", 128), false},
		{"too_long", strings.Repeat("a", 129), true},
		{"way_too_long", strings.Repeat("x", 1000), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateAPIKeyInput(tt.key)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateAPIKeyInput(%d chars) error = %v, wantErr %v", len(tt.key), err, tt.wantErr)
			}
		})
	}
}

func TestIsAPIKeyID(t *testing.T) {
	tests := map[string]bool{
		"a1b2c3d4e5f6":           true,
		"abc123":                 true,
		"abc12":                  false,
		"ABC123DEF456":           false,
		"wk_abc123def_ghi456jkl": false,
		"":                       false,
	}
	for in, want := range tests {
		if got := IsAPIKeyID(in); got != want {
			t.Errorf("IsAPIKeyID(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestAPIKeyDataID(t *testing.T) {
	d := APIKeyData{Hash: "0123456789abcdef0123"}
	if d.ID() != "0123456789ab" {
		t.Errorf("ID() = %q", d.ID())
	}
	short := APIKeyData{Hash: "abc"}
	if short.ID() != "abc" {
		t.Errorf("short ID() = %q", short.ID())
	}
}

func TestAPIKeyPrefix(t *testing.T) {
	tests := []struct {
		token string
		want  string
	}{
		{"wk_abc123def_ghi456jkl", "wk_abc1"},
		{"wk_ab", "wk_ab"},
		{"legacytoken", "lega"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := APIKeyPrefix(tt.token); got != tt.want {
			t.Errorf("APIKeyPrefix(%q) = %q, want %q", tt.token, got, tt.want)
		}
	}
}
