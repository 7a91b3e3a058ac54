package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"
	"time"

	"golang.org/x/net/netutil"
	"golang.org/x/sync/errgroup"

	"github.com/nextlevelbuilder/wagate/internal/bus"
	"github.com/nextlevelbuilder/wagate/internal/config"
	"github.com/nextlevelbuilder/wagate/internal/gateway"
	httpapi "github.com/nextlevelbuilder/wagate/internal/http"
	"github.com/nextlevelbuilder/wagate/internal/keys"
	"github.com/nextlevelbuilder/wagate/internal/logging"
	"github.com/nextlevelbuilder/wagate/internal/session"
	"github.com/nextlevelbuilder/wagate/internal/store"
	"github.com/nextlevelbuilder/wagate/internal/store/file"
	"github.com/nextlevelbuilder/wagate/internal/store/pg"
	"github.com/nextlevelbuilder/wagate/internal/wa"
	"github.com/nextlevelbuilder/wagate/internal/wa/meow"
	"github.com/nextlevelbuilder/wagate/internal/wa/web"
	"github.com/nextlevelbuilder/wagate/internal/webhook"
)

const (
	shutdownTimeout = 10 * time.Second

	dedupeTTL     = 20 * time.Minute
	dedupeMaxSize = 5000
)

func runServe() {
	cfgPath := resolveConfigPath()
	cfg, err := config.Load(cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %s\n", err)
		os.Exit(1)
	}
	if verbose {
		cfg.Log.Level = "debug"
	}
	logging.Setup(cfg.Log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := serve(ctx, cfg, cfgPath); err != nil {
		slog.Error("gateway stopped with error", "error", err)
		os.Exit(1)
	}
	slog.Info("gateway stopped")
}

func serve(ctx context.Context, cfg *config.Config, cfgPath string) error {
	masterKey, source := cfg.ResolveMasterKey()
	if source == "default" {
		slog.Warn("security.default_master_key",
			"hint", "set auth.master_key, MASTER_KEY or run `wagate keys set-master`")
	}

	keyStore, closeStore, err := openKeyStore(cfg)
	if err != nil {
		return err
	}
	defer closeStore()
	keySvc := keys.NewService(keyStore, masterKey, nil)

	client, closeClient := newDriver(cfg)
	defer closeClient()

	events := bus.New()
	ctrl := session.New(client, events, nil, sessionOptions(cfg))

	ws := gateway.NewServer(events, ctrl, keySvc, gateway.Options{
		RequireKey:    cfg.Gateway.WSRequireKey,
		AllowedOrigin: cfg.CORSOrigin,
	})
	limiter := gateway.NewRateLimiter(cfg.Gateway.RateLimitRPM, cfg.Gateway.RateLimitBurst)
	defer limiter.Close()

	hooks := webhook.NewRegistry(cfg.Webhook.URL)
	dispatcher := webhook.NewDispatcher(hooks,
		bus.NewDedupeCache(dedupeTTL, dedupeMaxSize, nil),
		retryConfig(cfg),
		millis(cfg.Webhook.TimeoutMs))
	detach := dispatcher.Attach(events)
	defer detach()

	api := httpapi.NewHandler(httpapi.Deps{
		Config:            cfg,
		Keys:              keySvc,
		Session:           ctrl,
		Webhooks:          hooks,
		Limiter:           limiter,
		WebSocket:         ws.HandleWebSocket,
		ProfilePicTimeout: millis(cfg.Session.ProfilePicTimeoutMs),
	})
	handler := api.Handler()

	addr := net.JoinHostPort(cfg.Gateway.Host, strconv.Itoa(cfg.Gateway.Port))
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", addr, err)
	}
	if n := cfg.Gateway.MaxConnections; n > 0 {
		ln = netutil.LimitListener(ln, n)
	}
	srv := &http.Server{
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	if stopOTel := initOTelExporter(ctx, cfg); stopOTel != nil {
		defer stopOTel()
	}
	if stopTS := initTailscale(ctx, cfg, handler); stopTS != nil {
		defer stopTS()
	}

	watcher, err := config.NewWatcher(cfgPath)
	if err != nil {
		slog.Warn("config hot reload disabled", "error", err)
	} else {
		watcher.OnChange(func(next *config.Config) {
			applyReload(cfg, next, keySvc, limiter, dispatcher)
		})
	}

	slog.Info("wagate gateway starting",
		"version", Version,
		"addr", addr,
		"driver", cfg.WhatsApp.Driver,
		"client_id", cfg.WhatsApp.ClientID,
		"managed", cfg.IsManaged(),
		"master_key_source", source,
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		ctrl.Run(gctx)
		return nil
	})
	g.Go(func() error {
		return dispatcher.Run(gctx)
	})
	if watcher != nil {
		g.Go(func() error {
			if err := watcher.Run(gctx); err != nil {
				slog.Warn("config watcher stopped", "error", err)
			}
			return nil
		})
	}
	g.Go(func() error {
		// A failed first attempt is retried by the controller.
		if err := ctrl.Initialize(gctx); err != nil {
			slog.Warn("initial WhatsApp connect failed", "error", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		slog.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := ctrl.Shutdown(shutdownCtx); err != nil {
			slog.Warn("session shutdown", "error", err)
		}
		ws.CloseAll()
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

// openKeyStore returns the API-key store for the configured mode. Managed mode
// migrates the schema before use.
func openKeyStore(cfg *config.Config) (store.APIKeyStore, func(), error) {
	sc := store.StoreConfig{
		PostgresDSN: cfg.Database.PostgresDSN,
		Mode:        cfg.Database.Mode,
		KeysFile:    config.ExpandHome(cfg.Auth.KeysFile),
	}
	if !sc.IsManaged() {
		slog.Info("api keys: file store", "path", sc.KeysFile)
		return file.NewFileAPIKeyStore(sc.KeysFile), func() {}, nil
	}

	if err := pg.Migrate(sc.PostgresDSN, "up"); err != nil {
		return nil, nil, fmt.Errorf("migrate api key schema: %w", err)
	}
	db, err := pg.OpenDB(sc.PostgresDSN)
	if err != nil {
		return nil, nil, fmt.Errorf("open postgres: %w", err)
	}
	slog.Info("api keys: postgres store")
	return pg.NewPGAPIKeyStore(db), func() { db.Close() }, nil
}

// newDriver builds the configured WhatsApp client.
func newDriver(cfg *config.Config) (wa.Client, func()) {
	wc := cfg.WhatsApp
	if wc.Driver == "browser" {
		return web.New(web.Options{
			Headless:   wc.Headless,
			ExecPath:   wc.BrowserPath,
			ExtraArgs:  wc.BrowserArgs,
			SessionDir: cfg.SessionDir(),
			CacheDir:   cfg.CacheDir(),
		}), func() {}
	}

	sc := meow.StoreConfig{Dialect: meow.DialectSQLite, Path: deviceStorePath(cfg)}
	if cfg.IsManaged() {
		sc = meow.StoreConfig{Dialect: meow.DialectPostgres, DSN: cfg.Database.PostgresDSN}
	}
	c := meow.New(meow.Options{
		Store:      sc,
		SessionDir: cfg.SessionDir(),
		CacheDir:   cfg.CacheDir(),
	})
	return c, c.Close
}

func deviceStorePath(cfg *config.Config) string {
	if cfg.Database.SQLitePath != "" {
		return config.ExpandHome(cfg.Database.SQLitePath)
	}
	return filepath.Join(cfg.SessionDir(), "device.db")
}

func sessionOptions(cfg *config.Config) session.Options {
	opts := session.Options{
		ReinitBase:  millis(cfg.Session.ReinitBaseMs),
		ReinitMax:   millis(cfg.Session.ReinitMaxMs),
		LogoutDelay: millis(cfg.Session.LogoutDelayMs),
	}
	if cfg.WhatsApp.PrintQR {
		opts.QROut = os.Stdout
	}
	return opts
}

func retryConfig(cfg *config.Config) webhook.RetryConfig {
	return webhook.RetryConfig{
		MaxRetries: cfg.Webhook.MaxRetries,
		BaseDelay:  millis(cfg.Webhook.BaseDelayMs),
		MaxDelay:   millis(cfg.Webhook.MaxDelayMs),
	}
}

// applyReload copies the settings that can change without a restart.
func applyReload(cur, next *config.Config, keySvc *keys.Service, limiter *gateway.RateLimiter, dispatcher *webhook.Dispatcher) {
	logging.SetLevel(next.Log.Level)
	cur.SetCORSOrigin(next.CORSOrigin())
	limiter.SetLimits(next.Gateway.RateLimitRPM, next.Gateway.RateLimitBurst)
	dispatcher.SetRetry(retryConfig(next))

	masterKey, source := next.ResolveMasterKey()
	keySvc.SetMasterKey(masterKey)
	if source == "default" {
		slog.Warn("security.default_master_key", "hint", "reloaded config has no master key")
	}
}

func millis(ms int) time.Duration {
	return time.Duration(ms) * time.Millisecond
}
