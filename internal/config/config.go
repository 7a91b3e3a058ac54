package config

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/titanous/json5"
	"gopkg.in/yaml.v3"
)

// DefaultMasterKey is used when no master key is configured anywhere.
// Startup logs a warning when it is in effect.
const DefaultMasterKey = "default_master_key_change_this"

// Config is the root configuration for the gateway.
type Config struct {
	Gateway   GatewayConfig   `json:"gateway" yaml:"gateway"`
	Auth      AuthConfig      `json:"auth" yaml:"auth"`
	WhatsApp  WhatsAppConfig  `json:"whatsapp" yaml:"whatsapp"`
	Session   SessionConfig   `json:"session" yaml:"session"`
	Database  DatabaseConfig  `json:"database" yaml:"database"`
	Webhook   WebhookConfig   `json:"webhook" yaml:"webhook"`
	Log       LogConfig       `json:"log" yaml:"log"`
	Tailscale TailscaleConfig `json:"tailscale" yaml:"tailscale"`
	Telemetry TelemetryConfig `json:"telemetry" yaml:"telemetry"`

	mu sync.RWMutex
}

// GatewayConfig controls the HTTP/WebSocket listener.
type GatewayConfig struct {
	Host           string `json:"host" yaml:"host"`
	Port           int    `json:"port" yaml:"port"`
	BaseURL        string `json:"base_url,omitempty" yaml:"base_url,omitempty"`
	CORSOrigin     string `json:"cors_origin" yaml:"cors_origin"`
	MaxUploadBytes int64  `json:"max_upload_bytes" yaml:"max_upload_bytes"`
	RateLimitRPM   int    `json:"rate_limit_rpm" yaml:"rate_limit_rpm"`     // 0 = disabled
	RateLimitBurst int    `json:"rate_limit_burst" yaml:"rate_limit_burst"` // default 5
	MaxConnections int    `json:"max_connections" yaml:"max_connections"`   // 0 = unlimited
	WSRequireKey   bool   `json:"ws_require_key" yaml:"ws_require_key"`
	StaticDir      string `json:"static_dir,omitempty" yaml:"static_dir,omitempty"`
}

// AuthConfig controls API-key issuance.
type AuthConfig struct {
	MasterKey  string `json:"master_key,omitempty" yaml:"master_key,omitempty"`
	KeysFile   string `json:"keys_file" yaml:"keys_file"`
	UseKeyring bool   `json:"use_keyring" yaml:"use_keyring"`
}

// WhatsAppConfig selects and configures the external client driver.
type WhatsAppConfig struct {
	Driver      string `json:"driver" yaml:"driver"` // "whatsmeow" (default) or "browser"
	ClientID    string `json:"client_id" yaml:"client_id"`
	DataDir     string `json:"data_dir" yaml:"data_dir"`
	BrowserPath string `json:"browser_path,omitempty" yaml:"browser_path,omitempty"`
	BrowserArgs string `json:"browser_args,omitempty" yaml:"browser_args,omitempty"` // shell-quoted extra flags
	Headless    bool   `json:"headless" yaml:"headless"`
	PrintQR     bool   `json:"print_qr" yaml:"print_qr"`
}

// SessionConfig tunes the lifecycle controller. Durations are milliseconds.
type SessionConfig struct {
	ReinitBaseMs        int `json:"reinit_base_ms" yaml:"reinit_base_ms"`
	ReinitMaxMs         int `json:"reinit_max_ms" yaml:"reinit_max_ms"`
	LogoutDelayMs       int `json:"logout_delay_ms" yaml:"logout_delay_ms"`
	ProfilePicTimeoutMs int `json:"profile_pic_timeout_ms" yaml:"profile_pic_timeout_ms"`
}

// DatabaseConfig selects storage for the session device store and, in managed
// mode, the API-key records.
type DatabaseConfig struct {
	Mode        string `json:"mode" yaml:"mode"` // "standalone" (default) or "managed"
	PostgresDSN string `json:"postgres_dsn,omitempty" yaml:"postgres_dsn,omitempty"`
	SQLitePath  string `json:"sqlite_path,omitempty" yaml:"sqlite_path,omitempty"`
}

// WebhookConfig controls inbound-message delivery.
type WebhookConfig struct {
	URL         string `json:"url,omitempty" yaml:"url,omitempty"` // initial registration
	MaxRetries  int    `json:"max_retries" yaml:"max_retries"`
	BaseDelayMs int    `json:"base_delay_ms" yaml:"base_delay_ms"`
	MaxDelayMs  int    `json:"max_delay_ms" yaml:"max_delay_ms"`
	TimeoutMs   int    `json:"timeout_ms" yaml:"timeout_ms"`
}

// LogConfig controls slog output.
type LogConfig struct {
	Level  string `json:"level" yaml:"level"`   // debug, info, warn, error
	Format string `json:"format" yaml:"format"` // text or json
}

// TailscaleConfig enables an extra tsnet listener (build tag tsnet).
type TailscaleConfig struct {
	Hostname  string `json:"hostname,omitempty" yaml:"hostname,omitempty"`
	AuthKey   string `json:"auth_key,omitempty" yaml:"auth_key,omitempty"`
	StateDir  string `json:"state_dir,omitempty" yaml:"state_dir,omitempty"`
	Ephemeral bool   `json:"ephemeral" yaml:"ephemeral"`
	EnableTLS bool   `json:"enable_tls" yaml:"enable_tls"`
}

// TelemetryConfig enables OTLP trace export (build tag otel).
type TelemetryConfig struct {
	Enabled     bool              `json:"enabled" yaml:"enabled"`
	Endpoint    string            `json:"endpoint,omitempty" yaml:"endpoint,omitempty"`
	Protocol    string            `json:"protocol,omitempty" yaml:"protocol,omitempty"` // grpc or http
	Insecure    bool              `json:"insecure" yaml:"insecure"`
	ServiceName string            `json:"service_name,omitempty" yaml:"service_name,omitempty"`
	Headers     map[string]string `json:"headers,omitempty" yaml:"headers,omitempty"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Gateway: GatewayConfig{
			Host:           "0.0.0.0",
			Port:           3000,
			CORSOrigin:     "*",
			MaxUploadBytes: 16 << 20,
			RateLimitBurst: 5,
		},
		Auth: AuthConfig{
			KeysFile: "api-keys.json",
		},
		WhatsApp: WhatsAppConfig{
			Driver:   "whatsmeow",
			ClientID: "whatsapp-qr-scanner",
			DataDir:  ".wagate",
			Headless: true,
			PrintQR:  true,
		},
		Session: SessionConfig{
			ReinitBaseMs:        2000,
			ReinitMaxMs:         30000,
			LogoutDelayMs:       2000,
			ProfilePicTimeoutMs: 5000,
		},
		Database: DatabaseConfig{
			Mode: "standalone",
		},
		Webhook: WebhookConfig{
			MaxRetries:  3,
			BaseDelayMs: 2000,
			MaxDelayMs:  30000,
			TimeoutMs:   10000,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load reads a config file (JSON5, or YAML for .yaml/.yml) over the defaults and
// applies environment overrides. A missing file is not an error.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := decode(path, data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	case os.IsNotExist(err):
	default:
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	cfg.applyEnv()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func decode(path string, data []byte, cfg *Config) error {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return yaml.Unmarshal(data, cfg)
	default:
		return json5.Unmarshal(data, cfg)
	}
}

// Save writes the config as indented JSON (valid JSON5).
func Save(path string, cfg *Config) error {
	cfg.mu.RLock()
	data, err := json.MarshalIndent(cfg, "", "  ")
	cfg.mu.RUnlock()
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0700); err != nil {
			return fmt.Errorf("create config dir: %w", err)
		}
	}
	return os.WriteFile(path, data, 0600)
}

// Validate checks values that would otherwise fail deep inside startup.
func (c *Config) Validate() error {
	if c.Gateway.Port <= 0 || c.Gateway.Port > 65535 {
		return fmt.Errorf("gateway.port out of range: %d", c.Gateway.Port)
	}
	switch c.WhatsApp.Driver {
	case "whatsmeow", "browser":
	default:
		return fmt.Errorf("whatsapp.driver must be \"whatsmeow\" or \"browser\", got %q", c.WhatsApp.Driver)
	}
	switch c.Database.Mode {
	case "", "standalone":
	case "managed":
		if c.Database.PostgresDSN == "" {
			return fmt.Errorf("database.mode \"managed\" requires database.postgres_dsn")
		}
	default:
		return fmt.Errorf("unknown database.mode %q", c.Database.Mode)
	}
	if c.Session.ReinitBaseMs <= 0 || c.Session.ReinitMaxMs < c.Session.ReinitBaseMs {
		return fmt.Errorf("session.reinit_base_ms must be > 0 and <= reinit_max_ms")
	}
	return nil
}

// IsManaged reports whether API keys live in Postgres.
func (c *Config) IsManaged() bool {
	return c.Database.Mode == "managed" && c.Database.PostgresDSN != ""
}

// ResolvedBaseURL returns the public base URL, defaulting to localhost:<port>.
func (c *Config) ResolvedBaseURL() string {
	if c.Gateway.BaseURL != "" {
		return c.Gateway.BaseURL
	}
	return fmt.Sprintf("http://localhost:%d", c.Gateway.Port)
}

// CORSOrigin returns the current CORS origin; safe for concurrent reload.
func (c *Config) CORSOrigin() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.Gateway.CORSOrigin == "" {
		return "*"
	}
	return c.Gateway.CORSOrigin
}

// SetCORSOrigin updates the CORS origin at runtime.
func (c *Config) SetCORSOrigin(origin string) {
	c.mu.Lock()
	c.Gateway.CORSOrigin = origin
	c.mu.Unlock()
}

// SessionDir is where the external client keeps credentials for this client ID.
func (c *Config) SessionDir() string {
	return filepath.Join(ExpandHome(c.WhatsApp.DataDir), "session-"+NormalizeClientID(c.WhatsApp.ClientID))
}

// CacheDir is the external client's disposable cache.
func (c *Config) CacheDir() string {
	return filepath.Join(ExpandHome(c.WhatsApp.DataDir), "cache")
}

// Hash returns a short fingerprint of the effective config.
func (c *Config) Hash() string {
	c.mu.RLock()
	data, _ := json.Marshal(c)
	c.mu.RUnlock()
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:8])
}

// ExpandHome replaces a leading ~ with the user's home directory.
func ExpandHome(path string) string {
	if path == "~" || strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, strings.TrimPrefix(path, "~"))
	}
	return path
}
