// Package web drives WhatsApp Web in a local Chrome through the DevTools
// protocol. It covers pairing and plain-text messages to contacts; listings,
// media and group sends need the whatsmeow driver.
package web

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/input"

	"github.com/nextlevelbuilder/wagate/internal/wa"
	"github.com/nextlevelbuilder/wagate/pkg/browser"
)

const (
	webURL = "https://web.whatsapp.com"

	qrSelector      = "div[data-ref]"
	readySelector   = "#pane-side"
	composeSelector = `footer div[contenteditable="true"]`

	pollInterval = time.Second
	sendTimeout  = 45 * time.Second
	eventBuffer  = 64
)

// Options configures the driver.
type Options struct {
	Headless   bool
	ExecPath   string
	ExtraArgs  string
	SessionDir string // Chrome profile; holds the linked session
	CacheDir   string
}

// Client is a wa.Client backed by a browser session.
type Client struct {
	opts Options

	mu      sync.Mutex
	mgr     *browser.Manager
	page    *rod.Page
	cancel  context.CancelFunc
	done    chan struct{} // closed when the current watcher exits
	sendMu  sync.Mutex
	wid     string
	started bool

	launch func(ctx context.Context) (*browser.Manager, *rod.Page, error)
	events chan wa.Event
}

var _ wa.Client = (*Client)(nil)

// New creates a driver. Chrome is not started until Initialize.
func New(opts Options) *Client {
	c := &Client{opts: opts, events: make(chan wa.Event, eventBuffer)}
	c.launch = c.launchBrowser
	return c
}

func (c *Client) Events() <-chan wa.Event { return c.events }

// Initialize launches Chrome, opens WhatsApp Web and starts watching the page
// for pairing codes and the chat list. A browser whose watcher has already
// exited is torn down and launched again.
func (c *Client) Initialize(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.started {
		if !c.watcherExitedLocked() {
			return nil
		}
		if err := c.teardownLocked(ctx); err != nil {
			slog.Debug("web: stopping stale browser", "error", err)
		}
	}

	mgr, page, err := c.launch(ctx)
	if err != nil {
		return err
	}

	watchCtx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	c.mgr, c.page, c.cancel, c.done, c.started = mgr, page, cancel, done, true
	go func() {
		reason := c.watch(watchCtx, page)
		close(done)
		if reason != "" {
			c.emit(watchCtx, wa.Event{Type: wa.EventDisconnected, Reason: reason})
		}
	}()
	return nil
}

func (c *Client) launchBrowser(ctx context.Context) (*browser.Manager, *rod.Page, error) {
	mgr := browser.New(
		browser.WithHeadless(c.opts.Headless),
		browser.WithExecPath(c.opts.ExecPath),
		browser.WithUserDataDir(c.opts.SessionDir),
		browser.WithExtraArgs(c.opts.ExtraArgs),
	)
	if err := mgr.Start(ctx); err != nil {
		return nil, nil, err
	}
	page, err := mgr.Open(webURL)
	if err != nil {
		mgr.Stop(ctx)
		return nil, nil, err
	}
	return mgr, page, nil
}

func (c *Client) watcherExitedLocked() bool {
	if c.done == nil {
		return true
	}
	select {
	case <-c.done:
		return true
	default:
		return false
	}
}

// teardownLocked stops the watcher and Chrome and forgets the session state.
func (c *Client) teardownLocked(ctx context.Context) error {
	if c.cancel != nil {
		c.cancel()
	}
	var err error
	if c.mgr != nil {
		err = c.mgr.Stop(ctx)
	}
	c.mgr, c.page, c.cancel, c.done, c.started, c.wid = nil, nil, nil, nil, false, ""
	return err
}

// watch polls the page and turns what it sees into lifecycle events. It
// returns the disconnect reason, or "" when stopped by Destroy.
func (c *Client) watch(ctx context.Context, page *rod.Page) string {
	var (
		lastQR string
		ready  bool
	)
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ""
		case <-ticker.C:
		}

		p := page.Context(ctx)
		hasPane, _, err := p.Has(readySelector)
		if err != nil {
			if ctx.Err() != nil {
				return ""
			}
			return "page_error: " + err.Error()
		}

		switch {
		case hasPane && !ready:
			ready = true
			lastQR = ""
			c.loadWID(p)
			c.emit(ctx, wa.Event{Type: wa.EventAuthenticated})
			c.emit(ctx, wa.Event{Type: wa.EventReady})
		case !hasPane && ready:
			return "chat_list_gone"
		case !hasPane:
			if code := readQR(p); code != "" && code != lastQR {
				lastQR = code
				c.emit(ctx, wa.Event{Type: wa.EventQR, QR: code})
			}
		}
	}
}

func readQR(p *rod.Page) string {
	has, el, err := p.Has(qrSelector)
	if err != nil || !has {
		return ""
	}
	ref, err := el.Attribute("data-ref")
	if err != nil || ref == nil {
		return ""
	}
	return *ref
}

// loadWID reads the linked account ID WhatsApp Web keeps in local storage.
func (c *Client) loadWID(p *rod.Page) {
	obj, err := p.Eval(`() => localStorage.getItem("last-wid-md") || localStorage.getItem("last-wid") || ""`)
	if err != nil {
		slog.Debug("web: could not read account id", "error", err)
		return
	}
	wid := strings.Trim(obj.Value.Str(), `"`)
	c.mu.Lock()
	c.wid = wid
	c.mu.Unlock()
}

func (c *Client) emit(ctx context.Context, ev wa.Event) {
	select {
	case c.events <- ev:
	case <-ctx.Done():
	}
}

// Destroy stops the watcher and closes Chrome.
func (c *Client) Destroy(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.started {
		return nil
	}
	return c.teardownLocked(ctx)
}

// ClearSession removes the Chrome profile and cache.
func (c *Client) ClearSession(ctx context.Context) error {
	var errs []error
	for _, dir := range []string{c.opts.SessionDir, c.opts.CacheDir} {
		if dir == "" {
			continue
		}
		if err := os.RemoveAll(dir); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// SendMessage opens the click-to-chat URL for a contact and submits the
// prefilled text.
func (c *Client) SendMessage(ctx context.Context, chatID string, content wa.Content) error {
	if content.Media != nil || wa.IsGroupChatID(chatID) {
		return wa.ErrUnsupported
	}
	user, _ := wa.SplitChatID(chatID)
	phone := wa.DigitsOnly(user)
	if phone == "" {
		return fmt.Errorf("invalid chat id %q", chatID)
	}

	c.mu.Lock()
	page := c.page
	c.mu.Unlock()
	if page == nil {
		return wa.ErrNotInitialized
	}

	c.sendMu.Lock()
	defer c.sendMu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, sendTimeout)
	defer cancel()
	p := page.Context(ctx)

	target := webURL + "/send?phone=" + phone + "&text=" + url.QueryEscape(content.Text)
	if err := p.Navigate(target); err != nil {
		return fmt.Errorf("open chat: %w", err)
	}
	if _, err := p.Element(composeSelector); err != nil {
		return fmt.Errorf("compose box not found: %w", err)
	}
	if err := p.Keyboard.Press(input.Enter); err != nil {
		return fmt.Errorf("submit message: %w", err)
	}
	return nil
}

func (c *Client) GetContacts(ctx context.Context) ([]wa.Contact, error) {
	return nil, wa.ErrUnsupported
}

func (c *Client) GetChats(ctx context.Context) ([]wa.Chat, error) {
	return nil, wa.ErrUnsupported
}

func (c *Client) GetProfilePicURL(ctx context.Context, id string) (string, error) {
	return "", wa.ErrUnsupported
}

func (c *Client) Info() *wa.Info {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.started || c.wid == "" {
		return nil
	}
	return &wa.Info{WID: c.wid, Platform: "web"}
}
