package file

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/nextlevelbuilder/wagate/internal/store"
)

// legacyKeyPrefix marks entries written with the plaintext token as the map key.
const legacyKeyPrefix = "wk_"

// keyRecord is the on-disk shape of one entry in the flat key file.
type keyRecord struct {
	Prefix    string     `json:"prefix,omitempty"`
	Active    bool       `json:"active"`
	Created   time.Time  `json:"created"`
	LastUsed  *time.Time `json:"lastUsed"`
	RevokedAt *time.Time `json:"revokedAt,omitempty"`
}

// FileAPIKeyStore keeps all key records in one flat JSON object keyed by token hash.
// Every mutating call re-reads the whole file, applies the change and rewrites it.
// The mutex serializes callers inside this process only; two processes sharing the
// file can still lose updates.
type FileAPIKeyStore struct {
	path string
	mu   sync.Mutex
}

func NewFileAPIKeyStore(path string) *FileAPIKeyStore {
	return &FileAPIKeyStore{path: path}
}

// Path returns the backing file.
func (f *FileAPIKeyStore) Path() string { return f.path }

func (f *FileAPIKeyStore) Insert(_ context.Context, rec store.APIKeyData) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	records, err := f.load()
	if err != nil {
		return err
	}
	if _, ok := records[rec.Hash]; ok {
		return store.ErrAPIKeyExists
	}
	records[rec.Hash] = keyRecord{
		Prefix:   rec.Prefix,
		Active:   rec.Active,
		Created:  rec.Created,
		LastUsed: rec.LastUsed,
	}
	return f.save(records)
}

func (f *FileAPIKeyStore) Get(_ context.Context, hash string) (*store.APIKeyData, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	records, err := f.load()
	if err != nil {
		return nil, err
	}
	r, ok := records[hash]
	if !ok {
		return nil, store.ErrAPIKeyNotFound
	}
	return toData(hash, r), nil
}

func (f *FileAPIKeyStore) FindByID(_ context.Context, id string) (*store.APIKeyData, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	records, err := f.load()
	if err != nil {
		return nil, err
	}
	var match *store.APIKeyData
	for hash, r := range records {
		if !strings.HasPrefix(hash, id) {
			continue
		}
		if match != nil {
			return nil, fmt.Errorf("api key id %q is ambiguous", id)
		}
		match = toData(hash, r)
	}
	if match == nil {
		return nil, store.ErrAPIKeyNotFound
	}
	return match, nil
}

func (f *FileAPIKeyStore) SetLastUsed(_ context.Context, hash string, at time.Time) error {
	return f.update(hash, func(r *keyRecord) {
		t := at.UTC()
		r.LastUsed = &t
	})
}

func (f *FileAPIKeyStore) SetActive(_ context.Context, hash string, active bool, at time.Time) error {
	return f.update(hash, func(r *keyRecord) {
		r.Active = active
		if active {
			r.RevokedAt = nil
		} else {
			t := at.UTC()
			r.RevokedAt = &t
		}
	})
}

func (f *FileAPIKeyStore) List(_ context.Context) ([]store.APIKeyData, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	records, err := f.load()
	if err != nil {
		return nil, err
	}
	result := make([]store.APIKeyData, 0, len(records))
	for hash, r := range records {
		result = append(result, *toData(hash, r))
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].Created.Before(result[j].Created)
	})
	return result, nil
}

// --- Internal ---

func (f *FileAPIKeyStore) update(hash string, fn func(r *keyRecord)) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	records, err := f.load()
	if err != nil {
		return err
	}
	r, ok := records[hash]
	if !ok {
		return store.ErrAPIKeyNotFound
	}
	fn(&r)
	records[hash] = r
	return f.save(records)
}

// load reads the file. A missing file is an empty store. Entries still keyed by
// their plaintext token are rehashed in memory and persisted on the next save.
func (f *FileAPIKeyStore) load() (map[string]keyRecord, error) {
	records := make(map[string]keyRecord)
	data, err := os.ReadFile(f.path)
	if err != nil {
		if os.IsNotExist(err) {
			return records, nil
		}
		return nil, fmt.Errorf("read api keys: %w", err)
	}
	if len(strings.TrimSpace(string(data))) == 0 {
		return records, nil
	}

	var raw map[string]keyRecord
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse api keys %s: %w", f.path, err)
	}
	for k, r := range raw {
		if strings.HasPrefix(k, legacyKeyPrefix) {
			if r.Prefix == "" {
				r.Prefix = store.APIKeyPrefix(k)
			}
			records[store.HashAPIKey(k)] = r
			continue
		}
		records[k] = r
	}
	return records, nil
}

func (f *FileAPIKeyStore) save(records map[string]keyRecord) error {
	if dir := filepath.Dir(f.path); dir != "" {
		if err := os.MkdirAll(dir, 0700); err != nil {
			slog.Error("apikeys: failed to create dir", "error", err)
			return fmt.Errorf("create api keys dir: %w", err)
		}
	}
	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal api keys: %w", err)
	}

	tmp := f.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0600); err != nil {
		slog.Error("apikeys: failed to write store", "error", err)
		return fmt.Errorf("write api keys: %w", err)
	}
	if err := os.Rename(tmp, f.path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("replace api keys: %w", err)
	}
	return nil
}

func toData(hash string, r keyRecord) *store.APIKeyData {
	return &store.APIKeyData{
		Hash:      hash,
		Prefix:    r.Prefix,
		Active:    r.Active,
		Created:   r.Created,
		LastUsed:  r.LastUsed,
		RevokedAt: r.RevokedAt,
	}
}
