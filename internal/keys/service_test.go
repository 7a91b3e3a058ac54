package keys

import (
	"context"
	"errors"
	"path/filepath"
	"regexp"
	"testing"
	"time"

	"github.com/nextlevelbuilder/wagate/internal/clock"
	"github.com/nextlevelbuilder/wagate/internal/store"
	"github.com/nextlevelbuilder/wagate/internal/store/file"
)

const testMaster = "s3cret-master"

var keyFormat = regexp.MustCompile(`^wk_[a-z0-9]{9}_[a-z0-9]{9}$`)

func newTestService(t *testing.T) (*Service, *file.FileAPIKeyStore, *clock.Fake) {
	t.Helper()
	st := file.NewFileAPIKeyStore(filepath.Join(t.TempDir(), "api-keys.json"))
	clk := clock.NewFake(time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC))
	return NewService(st, testMaster, clk), st, clk
}

func TestGenerateRejectsBadMaster(t *testing.T) {
	ctx := context.Background()
	svc, st, _ := newTestService(t)

	tests := []struct {
		name   string
		master string
		want   error
	}{
		{"missing", "", ErrMasterKeyRequired},
		{"wrong", "wrong", ErrInvalidMasterKey},
		{"prefix of real", testMaster[:4], ErrInvalidMasterKey},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			key, err := svc.Generate(ctx, tt.master)
			if !errors.Is(err, tt.want) {
				t.Fatalf("err = %v, want %v", err, tt.want)
			}
			if key != "" {
				t.Errorf("key = %q, want empty", key)
			}
		})
	}

	list, err := st.List(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 0 {
		t.Errorf("store changed: %d records", len(list))
	}
}

func TestGenerateIssuesFreshKeys(t *testing.T) {
	ctx := context.Background()
	svc, st, clk := newTestService(t)

	seen := make(map[string]bool)
	for i := 0; i < 20; i++ {
		key, err := svc.Generate(ctx, testMaster)
		if err != nil {
			t.Fatalf("Generate: %v", err)
		}
		if !keyFormat.MatchString(key) {
			t.Fatalf("key %q does not match format", key)
		}
		if seen[key] {
			t.Fatalf("duplicate key %q", key)
		}
		seen[key] = true
	}

	key, _ := svc.Generate(ctx, testMaster)
	rec, err := st.Get(ctx, store.HashAPIKey(key))
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if !rec.Active || rec.LastUsed != nil || !rec.Created.Equal(clk.Now()) {
		t.Errorf("unexpected record %+v", rec)
	}
}

func TestValidate(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newTestService(t)

	key, err := svc.Generate(ctx, testMaster)
	if err != nil {
		t.Fatal(err)
	}
	if !svc.Validate(ctx, key) {
		t.Error("generated key should validate")
	}
	for _, k := range []string{"", "wk_000000000_000000000", key + "x", testMaster} {
		if svc.Validate(ctx, k) {
			t.Errorf("Validate(%q) = true, want false", k)
		}
	}

	if _, err := svc.Revoke(ctx, key); err != nil {
		t.Fatalf("Revoke: %v", err)
	}
	if svc.Validate(ctx, key) {
		t.Error("revoked key should not validate")
	}
}

func TestTouchThrottle(t *testing.T) {
	ctx := context.Background()
	svc, st, clk := newTestService(t)
	key, _ := svc.Generate(ctx, testMaster)
	hash := store.HashAPIKey(key)

	lastUsed := func() *time.Time {
		rec, err := st.Get(ctx, hash)
		if err != nil {
			t.Fatal(err)
		}
		return rec.LastUsed
	}

	// Absent lastUsed counts as the epoch, so the first touch always writes.
	if err := svc.Touch(ctx, key); err != nil {
		t.Fatal(err)
	}
	first := lastUsed()
	if first == nil || !first.Equal(clk.Now()) {
		t.Fatalf("first touch: lastUsed = %v, want %v", first, clk.Now())
	}

	clk.Advance(30 * time.Second)
	svc.Touch(ctx, key)
	if got := lastUsed(); !got.Equal(*first) {
		t.Errorf("touch within 60s changed lastUsed to %v", got)
	}

	clk.Advance(30 * time.Second) // exactly 60s: not strictly more
	svc.Touch(ctx, key)
	if got := lastUsed(); !got.Equal(*first) {
		t.Errorf("touch at exactly 60s changed lastUsed to %v", got)
	}

	clk.Advance(time.Millisecond)
	svc.Touch(ctx, key)
	if got := lastUsed(); !got.Equal(clk.Now()) {
		t.Errorf("touch after 60s: lastUsed = %v, want %v", got, clk.Now())
	}

	if err := svc.Touch(ctx, "wk_unknown00_unknown00"); err != nil {
		t.Errorf("touch of unknown key should be a no-op, got %v", err)
	}
}

func TestRevokeByID(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newTestService(t)
	key, _ := svc.Generate(ctx, testMaster)

	list, err := svc.List(ctx)
	if err != nil || len(list) != 1 {
		t.Fatalf("List = %v, %v", list, err)
	}
	id := list[0].ID
	if list[0].Prefix != key[:7] {
		t.Errorf("prefix = %q, want %q", list[0].Prefix, key[:7])
	}

	info, err := svc.Revoke(ctx, id)
	if err != nil {
		t.Fatalf("Revoke: %v", err)
	}
	if info.Active {
		t.Error("info should report inactive")
	}

	// Revoking twice is harmless.
	if _, err := svc.Revoke(ctx, key); err != nil {
		t.Errorf("second Revoke: %v", err)
	}

	if _, err := svc.Revoke(ctx, "wk_nothere00_nothere00"); !errors.Is(err, ErrNotFound) {
		t.Errorf("unknown key: err = %v, want ErrNotFound", err)
	}
	if _, err := svc.Revoke(ctx, "  "); !errors.Is(err, ErrNotFound) {
		t.Errorf("blank: err = %v, want ErrNotFound", err)
	}
}

func TestSetMasterKey(t *testing.T) {
	svc, _, _ := newTestService(t)
	svc.SetMasterKey("rotated")
	if err := svc.CheckMaster(testMaster); !errors.Is(err, ErrInvalidMasterKey) {
		t.Errorf("old master: err = %v", err)
	}
	if err := svc.CheckMaster("rotated"); err != nil {
		t.Errorf("new master: err = %v", err)
	}
}
