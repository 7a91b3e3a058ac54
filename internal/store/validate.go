package store

import (
	"fmt"
	"regexp"
)

// MaxAPIKeyLength bounds what is accepted from a header or query string before hashing.
const MaxAPIKeyLength = 128

var apiKeyIDRe = regexp.MustCompile(`^[0-9a-f]{6,64}$`)

// ValidateAPIKeyInput rejects empty or oversized key material.
func ValidateAPIKeyInput(key string) error {
	if key == "" {
		return fmt.Errorf("api key is empty")
	}
	if len(key) > MaxAPIKeyLength {
		return fmt.Errorf("api key too long: %d chars (max %d)", len(key), MaxAPIKeyLength)
	}
	return nil
}

// IsAPIKeyID reports whether s looks like a record ID (lowercase hex hash prefix).
func IsAPIKeyID(s string) bool {
	return apiKeyIDRe.MatchString(s)
}
