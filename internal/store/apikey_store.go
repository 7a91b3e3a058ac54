package store

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strings"
	"time"
)

// ErrAPIKeyNotFound is returned when no record matches.
var ErrAPIKeyNotFound = errors.New("api key not found")

// ErrAPIKeyExists is returned when inserting a record whose hash is already stored.
var ErrAPIKeyExists = errors.New("api key already exists")

// APIKeyData is a persisted key record. The plaintext key is never stored:
// Hash is the hex SHA-256 of the token and Prefix its leading characters for display.
type APIKeyData struct {
	Hash      string     `json:"-" db:"key_hash"`
	Prefix    string     `json:"prefix" db:"prefix"`
	Active    bool       `json:"active" db:"active"`
	Created   time.Time  `json:"created" db:"created_at"`
	LastUsed  *time.Time `json:"lastUsed" db:"last_used_at"`
	RevokedAt *time.Time `json:"revokedAt,omitempty" db:"revoked_at"`
}

// ID returns the short public identifier of the record.
func (d APIKeyData) ID() string {
	if len(d.Hash) < APIKeyIDLength {
		return d.Hash
	}
	return d.Hash[:APIKeyIDLength]
}

// APIKeyIDLength is the number of hash characters used as a record ID.
const APIKeyIDLength = 12

// APIKeyStore persists API-key records keyed by token hash.
type APIKeyStore interface {
	Insert(ctx context.Context, rec APIKeyData) error
	Get(ctx context.Context, hash string) (*APIKeyData, error)
	// FindByID resolves a short ID (hash prefix) to a single record.
	FindByID(ctx context.Context, id string) (*APIKeyData, error)
	SetLastUsed(ctx context.Context, hash string, at time.Time) error
	SetActive(ctx context.Context, hash string, active bool, at time.Time) error
	List(ctx context.Context) ([]APIKeyData, error)
}

// HashAPIKey returns the hex SHA-256 of a plaintext token.
func HashAPIKey(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

// apiKeyPrefixChars is how much of the random part a display prefix keeps.
const apiKeyPrefixChars = 4

// APIKeyPrefix returns a short display prefix ("wk_" plus four characters) so
// keys can be told apart in listings without exposing their entropy.
func APIKeyPrefix(token string) string {
	head, rest := "", token
	if i := strings.IndexByte(token, '_'); i >= 0 {
		head, rest = token[:i+1], token[i+1:]
	}
	if len(rest) > apiKeyPrefixChars {
		rest = rest[:apiKeyPrefixChars]
	}
	return head + rest
}
