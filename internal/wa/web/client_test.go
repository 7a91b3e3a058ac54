package web

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/go-rod/rod"

	"github.com/nextlevelbuilder/wagate/internal/wa"
	"github.com/nextlevelbuilder/wagate/pkg/browser"
)

func TestUnsupportedOperations(t *testing.T) {
	c := New(Options{})
	ctx := context.Background()

	if _, err := c.GetContacts(ctx); !errors.Is(err, wa.ErrUnsupported) {
		t.Errorf("GetContacts err = %v", err)
	}
	if _, err := c.GetChats(ctx); !errors.Is(err, wa.ErrUnsupported) {
		t.Errorf("GetChats err = %v", err)
	}
	if _, err := c.GetProfilePicURL(ctx, "1@c.us"); !errors.Is(err, wa.ErrUnsupported) {
		t.Errorf("GetProfilePicURL err = %v", err)
	}
	media := wa.Content{Text: "x", Media: &wa.Media{MimeType: "image/png", Data: []byte{1}}}
	if err := c.SendMessage(ctx, "1@c.us", media); !errors.Is(err, wa.ErrUnsupported) {
		t.Errorf("media send err = %v", err)
	}
	if err := c.SendMessage(ctx, "123@g.us", wa.Content{Text: "x"}); !errors.Is(err, wa.ErrUnsupported) {
		t.Errorf("group send err = %v", err)
	}
}

func TestNotInitialized(t *testing.T) {
	c := New(Options{})
	if err := c.SendMessage(context.Background(), "15550001111@c.us", wa.Content{Text: "hi"}); !errors.Is(err, wa.ErrNotInitialized) {
		t.Errorf("send before init err = %v", err)
	}
	if c.Info() != nil {
		t.Error("Info before init should be nil")
	}
	if err := c.Destroy(context.Background()); err != nil {
		t.Errorf("Destroy before init: %v", err)
	}
}

func TestClearSession(t *testing.T) {
	root := t.TempDir()
	session := filepath.Join(root, "session-x")
	cache := filepath.Join(root, "cache")
	for _, d := range []string{session, cache} {
		if err := os.MkdirAll(filepath.Join(d, "Default"), 0700); err != nil {
			t.Fatal(err)
		}
	}

	c := New(Options{SessionDir: session, CacheDir: cache})
	if err := c.ClearSession(context.Background()); err != nil {
		t.Fatal(err)
	}
	for _, d := range []string{session, cache} {
		if _, err := os.Stat(d); !os.IsNotExist(err) {
			t.Errorf("%s still exists", d)
		}
	}
}

func TestInitializeRelaunchesAfterWatcherExit(t *testing.T) {
	c := New(Options{})
	ctx := context.Background()
	errNoChrome := errors.New("no chrome")
	launches := 0
	c.launch = func(context.Context) (*browser.Manager, *rod.Page, error) {
		launches++
		return nil, nil, errNoChrome
	}

	done := make(chan struct{})
	c.started, c.done, c.wid = true, done, "15550001111@c.us"

	if err := c.Initialize(ctx); err != nil {
		t.Fatalf("Initialize with live watcher: %v", err)
	}
	if launches != 0 {
		t.Fatalf("launches = %d while watcher running, want 0", launches)
	}

	close(done)
	if err := c.Initialize(ctx); !errors.Is(err, errNoChrome) {
		t.Fatalf("Initialize after watcher exit err = %v, want launch error", err)
	}
	if launches != 1 {
		t.Errorf("launches = %d, want 1", launches)
	}
	if c.started || c.done != nil || c.Info() != nil {
		t.Errorf("stale state kept: started=%v done=%v info=%v", c.started, c.done, c.Info())
	}
}
