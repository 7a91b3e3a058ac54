package file

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/nextlevelbuilder/wagate/internal/store"
)

func newTestStore(t *testing.T) *FileAPIKeyStore {
	t.Helper()
	return NewFileAPIKeyStore(filepath.Join(t.TempDir(), "data", "api-keys.json"))
}

func TestFileAPIKeyStoreInsertGet(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	created := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	hash := store.HashAPIKey("wk_aaaaaaaaa_bbbbbbbbb")

	if _, err := s.Get(ctx, hash); !errors.Is(err, store.ErrAPIKeyNotFound) {
		t.Fatalf("Get on empty store: err = %v, want ErrAPIKeyNotFound", err)
	}

	rec := store.APIKeyData{Hash: hash, Prefix: "wk_aaaaaaaaa", Active: true, Created: created}
	if err := s.Insert(ctx, rec); err != nil {
		t.Fatalf("Insert: %v", err)
	}
	if err := s.Insert(ctx, rec); !errors.Is(err, store.ErrAPIKeyExists) {
		t.Errorf("duplicate Insert: err = %v, want ErrAPIKeyExists", err)
	}

	got, err := s.Get(ctx, hash)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if !got.Active || !got.Created.Equal(created) || got.LastUsed != nil || got.Prefix != "wk_aaaaaaaaa" {
		t.Errorf("unexpected record %+v", got)
	}

	data, err := os.ReadFile(s.Path())
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(string(data), "bbbbbbbbb") {
		t.Error("plaintext secret segment must not be persisted")
	}
	info, _ := os.Stat(s.Path())
	if info.Mode().Perm() != 0600 {
		t.Errorf("perm = %v, want 0600", info.Mode().Perm())
	}
}

func TestFileAPIKeyStoreUpdates(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	hash := store.HashAPIKey("wk_111111111_222222222")
	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)

	if err := s.SetLastUsed(ctx, hash, now); !errors.Is(err, store.ErrAPIKeyNotFound) {
		t.Fatalf("SetLastUsed on missing: err = %v", err)
	}

	s.Insert(ctx, store.APIKeyData{Hash: hash, Active: true, Created: now})

	if err := s.SetLastUsed(ctx, hash, now.Add(time.Minute)); err != nil {
		t.Fatalf("SetLastUsed: %v", err)
	}
	if err := s.SetActive(ctx, hash, false, now.Add(2*time.Minute)); err != nil {
		t.Fatalf("SetActive: %v", err)
	}

	got, _ := s.Get(ctx, hash)
	if got.LastUsed == nil || !got.LastUsed.Equal(now.Add(time.Minute)) {
		t.Errorf("lastUsed = %v", got.LastUsed)
	}
	if got.Active {
		t.Error("record should be inactive")
	}
	if got.RevokedAt == nil {
		t.Error("revokedAt should be set")
	}
}

func TestFileAPIKeyStoreFindByID(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	h1 := store.HashAPIKey("wk_one000000_aaaaaaaaa")
	h2 := store.HashAPIKey("wk_two000000_bbbbbbbbb")
	s.Insert(ctx, store.APIKeyData{Hash: h1, Active: true, Created: time.Now()})
	s.Insert(ctx, store.APIKeyData{Hash: h2, Active: true, Created: time.Now()})

	got, err := s.FindByID(ctx, h1[:store.APIKeyIDLength])
	if err != nil {
		t.Fatalf("FindByID: %v", err)
	}
	if got.Hash != h1 {
		t.Errorf("found %s, want %s", got.Hash, h1)
	}

	if _, err := s.FindByID(ctx, "zzzzzz"); !errors.Is(err, store.ErrAPIKeyNotFound) {
		t.Errorf("unknown id: err = %v, want ErrAPIKeyNotFound", err)
	}

	if _, err := s.FindByID(ctx, ""); err == nil {
		t.Error("empty id matches every record and must be rejected as ambiguous")
	}
}

func TestFileAPIKeyStoreMigratesPlaintextEntries(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	legacy := `{
  "wk_abcdefghi_jklmnopqr": {
    "active": true,
    "created": "2025-03-01T10:00:00.000Z",
    "lastUsed": null
  }
}`
	os.MkdirAll(filepath.Dir(s.Path()), 0700)
	if err := os.WriteFile(s.Path(), []byte(legacy), 0600); err != nil {
		t.Fatal(err)
	}

	hash := store.HashAPIKey("wk_abcdefghi_jklmnopqr")
	got, err := s.Get(ctx, hash)
	if err != nil {
		t.Fatalf("Get legacy: %v", err)
	}
	if !got.Active || got.Prefix != "wk_abcd" {
		t.Errorf("unexpected legacy record %+v", got)
	}

	// A write persists the migrated form.
	if err := s.SetLastUsed(ctx, hash, time.Now()); err != nil {
		t.Fatalf("SetLastUsed: %v", err)
	}
	data, _ := os.ReadFile(s.Path())
	if strings.Contains(string(data), "jklmnopqr") {
		t.Error("plaintext key should be gone after rewrite")
	}
}

func TestFileAPIKeyStoreListOrdered(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	for i, tok := range []string{"wk_c0000000_x", "wk_a0000000_y", "wk_b0000000_z"} {
		s.Insert(ctx, store.APIKeyData{
			Hash:    store.HashAPIKey(tok),
			Prefix:  store.APIKeyPrefix(tok),
			Active:  true,
			Created: base.Add(time.Duration(i) * time.Hour),
		})
	}
	list, err := s.List(ctx)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(list) != 3 {
		t.Fatalf("len = %d", len(list))
	}
	want := []string{"wk_c000", "wk_a000", "wk_b000"}
	for i, rec := range list {
		if rec.Prefix != want[i] {
			t.Errorf("list[%d].Prefix = %q, want %q", i, rec.Prefix, want[i])
		}
	}
}

func TestFileAPIKeyStoreCorruptFile(t *testing.T) {
	s := newTestStore(t)
	os.MkdirAll(filepath.Dir(s.Path()), 0700)
	os.WriteFile(s.Path(), []byte("{not json"), 0600)
	if _, err := s.List(context.Background()); err == nil {
		t.Error("expected parse error")
	}
}
