// Package browser launches and controls the Chrome instance used by the
// WhatsApp Web driver.
package browser

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sync"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/launcher/flags"
	"github.com/go-rod/rod/lib/proto"
)

// Manager handles the Chrome browser lifecycle.
type Manager struct {
	mu       sync.Mutex
	browser  *rod.Browser
	launcher *launcher.Launcher

	headless    bool
	execPath    string
	userDataDir string
	extraArgs   string
	logger      *slog.Logger
}

// Option configures a Manager.
type Option func(*Manager)

// WithHeadless sets headless mode (default false).
func WithHeadless(h bool) Option {
	return func(m *Manager) { m.headless = h }
}

// WithExecPath pins the browser binary. Empty resolves per OS.
func WithExecPath(p string) Option {
	return func(m *Manager) { m.execPath = p }
}

// WithUserDataDir sets the persistent Chrome profile directory.
func WithUserDataDir(dir string) Option {
	return func(m *Manager) { m.userDataDir = dir }
}

// WithExtraArgs appends shell-quoted Chrome flags to the defaults.
func WithExtraArgs(args string) Option {
	return func(m *Manager) { m.extraArgs = args }
}

// WithLogger sets a custom logger.
func WithLogger(l *slog.Logger) Option {
	return func(m *Manager) { m.logger = l }
}

// New creates a Manager with options.
func New(opts ...Option) *Manager {
	m := &Manager{logger: slog.Default()}
	for _, o := range opts {
		o(m)
	}
	return m
}

// Start launches Chrome. Stale profile locks from a crashed run are removed
// first.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.browser != nil {
		return fmt.Errorf("browser already running")
	}

	extra, err := ParseFlags(m.extraArgs)
	if err != nil {
		return err
	}
	if m.userDataDir != "" {
		if err := os.MkdirAll(m.userDataDir, 0700); err != nil {
			return fmt.Errorf("create profile dir: %w", err)
		}
		CleanProfileLocks(m.userDataDir, m.logger)
	}
	CleanTempRemnants(os.TempDir(), m.logger)

	l := launcher.New().Context(ctx).Headless(m.headless)
	if bin := ResolveExecutable(m.execPath); bin != "" {
		l = l.Bin(bin)
	}
	for _, f := range append(DefaultFlags(m.userDataDir), extra...) {
		l = l.Set(flags.Flag(f.Name), f.Values...)
	}

	controlURL, err := l.Launch()
	if err != nil {
		return fmt.Errorf("launch Chrome: %w", err)
	}
	m.logger.Info("Chrome launched", "cdp", controlURL, "headless", m.headless, "profile", m.userDataDir)

	b := rod.New().ControlURL(controlURL)
	if err := b.Connect(); err != nil {
		l.Kill()
		return fmt.Errorf("connect to Chrome: %w", err)
	}

	m.browser = b
	m.launcher = l
	return nil
}

// Open returns a new page at url.
func (m *Manager) Open(url string) (*rod.Page, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.browser == nil {
		return nil, fmt.Errorf("browser not running")
	}
	page, err := m.browser.Page(proto.TargetCreateTarget{URL: url})
	if err != nil {
		return nil, fmt.Errorf("open tab: %w", err)
	}
	return page, nil
}

// Running reports whether Chrome is up.
func (m *Manager) Running() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.browser != nil
}

// Stop closes Chrome and waits for the process to exit.
func (m *Manager) Stop(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.browser == nil {
		return nil
	}

	err := m.browser.Close()
	if m.launcher != nil {
		m.launcher.Kill()
		m.launcher = nil
	}
	m.browser = nil
	return err
}
