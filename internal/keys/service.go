// Package keys authorizes gateway requests with issued API keys.
//
// Keys look like wk_<9 chars>_<9 chars> over [a-z0-9]. Only the SHA-256 of a key
// is persisted, so Generate's return value is the single point of disclosure.
// Usage timestamps are throttled: Touch writes at most once per minute per key.
package keys

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/nextlevelbuilder/wagate/internal/clock"
	"github.com/nextlevelbuilder/wagate/internal/store"
)

const (
	// KeyPrefix starts every issued key.
	KeyPrefix = "wk_"
	// SegmentAlphabet is the character set of the two random segments.
	SegmentAlphabet = "abcdefghijklmnopqrstuvwxyz0123456789"
	// SegmentLength is the number of characters per random segment.
	SegmentLength = 9
	// TouchInterval is the minimum gap between two persisted lastUsed updates.
	TouchInterval = 60 * time.Second

	generateAttempts = 5
)

var (
	// ErrMasterKeyRequired is returned when no master key was supplied.
	ErrMasterKeyRequired = errors.New("master key is required")
	// ErrInvalidMasterKey is returned when the supplied master key does not match.
	ErrInvalidMasterKey = errors.New("invalid master key")
	// ErrNotFound is returned when a revoke target matches no record.
	ErrNotFound = errors.New("api key not found")
)

// KeyInfo is the non-secret view of a record returned by List.
type KeyInfo struct {
	ID       string     `json:"id"`
	Prefix   string     `json:"prefix"`
	Active   bool       `json:"active"`
	Created  time.Time  `json:"created"`
	LastUsed *time.Time `json:"lastUsed"`
}

// Service issues, validates and tracks API keys.
type Service struct {
	store store.APIKeyStore
	clock clock.Clock

	mu     sync.RWMutex
	master string
}

// NewService creates a key service. clk may be nil for the wall clock.
func NewService(st store.APIKeyStore, masterKey string, clk clock.Clock) *Service {
	if clk == nil {
		clk = clock.Real{}
	}
	return &Service{store: st, master: masterKey, clock: clk}
}

// SetMasterKey replaces the master key, e.g. after a config reload.
func (s *Service) SetMasterKey(key string) {
	s.mu.Lock()
	s.master = key
	s.mu.Unlock()
}

// CheckMaster verifies a caller-supplied master key in constant time.
func (s *Service) CheckMaster(supplied string) error {
	if supplied == "" {
		return ErrMasterKeyRequired
	}
	s.mu.RLock()
	master := s.master
	s.mu.RUnlock()
	if master == "" || subtle.ConstantTimeCompare([]byte(supplied), []byte(master)) != 1 {
		slog.Warn("security.invalid_master_key")
		return ErrInvalidMasterKey
	}
	return nil
}

// Generate issues a new active key. The store is left untouched when the master
// key is missing or wrong.
func (s *Service) Generate(ctx context.Context, masterKey string) (string, error) {
	if err := s.CheckMaster(masterKey); err != nil {
		return "", err
	}

	for range generateAttempts {
		token := newToken()
		err := s.store.Insert(ctx, store.APIKeyData{
			Hash:    store.HashAPIKey(token),
			Prefix:  store.APIKeyPrefix(token),
			Active:  true,
			Created: s.clock.Now().UTC(),
		})
		if errors.Is(err, store.ErrAPIKeyExists) {
			continue
		}
		if err != nil {
			return "", fmt.Errorf("store api key: %w", err)
		}
		slog.Info("api key generated", "prefix", store.APIKeyPrefix(token))
		return token, nil
	}
	return "", fmt.Errorf("could not generate a unique api key after %d attempts", generateAttempts)
}

// Validate reports whether key belongs to an active record. Unknown, inactive and
// malformed keys are indistinguishable to the caller.
func (s *Service) Validate(ctx context.Context, key string) bool {
	if store.ValidateAPIKeyInput(key) != nil {
		return false
	}
	rec, err := s.store.Get(ctx, store.HashAPIKey(key))
	if err != nil {
		if !errors.Is(err, store.ErrAPIKeyNotFound) {
			slog.Warn("api key lookup failed", "error", err)
		}
		return false
	}
	return rec.Active
}

// Touch records usage of key, writing only when more than TouchInterval has
// passed since the stored lastUsed (an absent lastUsed counts as the epoch).
func (s *Service) Touch(ctx context.Context, key string) error {
	hash := store.HashAPIKey(key)
	rec, err := s.store.Get(ctx, hash)
	if err != nil {
		if errors.Is(err, store.ErrAPIKeyNotFound) {
			return nil
		}
		return err
	}

	now := s.clock.Now()
	var last time.Time
	if rec.LastUsed != nil {
		last = *rec.LastUsed
	} else {
		last = time.UnixMilli(0)
	}
	if now.Sub(last) <= TouchInterval {
		return nil
	}
	return s.store.SetLastUsed(ctx, hash, now)
}

// Revoke deactivates a key given either the full token or its record ID.
func (s *Service) Revoke(ctx context.Context, idOrKey string) (*KeyInfo, error) {
	idOrKey = strings.TrimSpace(idOrKey)
	if idOrKey == "" {
		return nil, ErrNotFound
	}

	var (
		rec *store.APIKeyData
		err error
	)
	if strings.HasPrefix(idOrKey, KeyPrefix) {
		rec, err = s.store.Get(ctx, store.HashAPIKey(idOrKey))
	} else {
		rec, err = s.store.FindByID(ctx, strings.ToLower(idOrKey))
	}
	if errors.Is(err, store.ErrAPIKeyNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	if rec.Active {
		if err := s.store.SetActive(ctx, rec.Hash, false, s.clock.Now()); err != nil {
			return nil, fmt.Errorf("revoke api key: %w", err)
		}
		rec.Active = false
		slog.Info("api key revoked", "id", rec.ID(), "prefix", rec.Prefix)
	}
	info := toInfo(*rec)
	return &info, nil
}

// List returns metadata for every stored key, oldest first.
func (s *Service) List(ctx context.Context) ([]KeyInfo, error) {
	recs, err := s.store.List(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]KeyInfo, 0, len(recs))
	for _, r := range recs {
		out = append(out, toInfo(r))
	}
	return out, nil
}

func toInfo(r store.APIKeyData) KeyInfo {
	return KeyInfo{
		ID:       r.ID(),
		Prefix:   r.Prefix,
		Active:   r.Active,
		Created:  r.Created,
		LastUsed: r.LastUsed,
	}
}

func newToken() string {
	return KeyPrefix + randomSegment() + "_" + randomSegment()
}

func randomSegment() string {
	b := make([]byte, SegmentLength)
	rand.Read(b)
	seg := make([]byte, SegmentLength)
	for i := range seg {
		seg[i] = SegmentAlphabet[int(b[i])%len(SegmentAlphabet)]
	}
	return string(seg)
}
