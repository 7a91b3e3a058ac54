package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.json5"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Gateway.Port != 3000 {
		t.Errorf("port = %d, want 3000", cfg.Gateway.Port)
	}
	if cfg.WhatsApp.ClientID != DefaultClientID {
		t.Errorf("client id = %q", cfg.WhatsApp.ClientID)
	}
	if cfg.Session.ReinitBaseMs != 2000 || cfg.Session.ReinitMaxMs != 30000 {
		t.Errorf("unexpected reinit defaults: %+v", cfg.Session)
	}
}

func TestLoadJSON5(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json5")
	content := `{
		// comments are allowed
		gateway: { port: 8080, cors_origin: "https://example.com" },
		whatsapp: { driver: "browser", client_id: "Sales Team" },
	}`
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Gateway.Port != 8080 {
		t.Errorf("port = %d", cfg.Gateway.Port)
	}
	if cfg.CORSOrigin() != "https://example.com" {
		t.Errorf("cors = %q", cfg.CORSOrigin())
	}
	if cfg.WhatsApp.Driver != "browser" {
		t.Errorf("driver = %q", cfg.WhatsApp.Driver)
	}
	if got := filepath.Base(cfg.SessionDir()); got != "session-sales-team" {
		t.Errorf("session dir = %q", got)
	}
	// untouched sections keep defaults
	if cfg.Gateway.MaxUploadBytes != 16<<20 {
		t.Errorf("max upload = %d", cfg.Gateway.MaxUploadBytes)
	}
}

func TestLoadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := "gateway:\n  port: 9090\nlog:\n  level: debug\n"
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Gateway.Port != 9090 || cfg.Log.Level != "debug" {
		t.Errorf("got port=%d level=%q", cfg.Gateway.Port, cfg.Log.Level)
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("PORT", "4100")
	t.Setenv("MASTER_KEY", "s3cret")
	t.Setenv("BASE_URL", "https://wa.example.com")
	t.Setenv("WHATSAPP_CLIENT_ID", "ops")
	t.Setenv("PUPPETEER_EXECUTABLE_PATH", "/opt/chrome")
	t.Setenv("WAGATE_HEADLESS", "false")

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.json5"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Gateway.Port != 4100 {
		t.Errorf("port = %d", cfg.Gateway.Port)
	}
	if key, src := cfg.ResolveMasterKey(); key != "s3cret" || src != "config" {
		t.Errorf("master key = %q from %s", key, src)
	}
	if cfg.ResolvedBaseURL() != "https://wa.example.com" {
		t.Errorf("base url = %q", cfg.ResolvedBaseURL())
	}
	if cfg.WhatsApp.ClientID != "ops" || cfg.WhatsApp.BrowserPath != "/opt/chrome" {
		t.Errorf("whatsapp = %+v", cfg.WhatsApp)
	}
	if cfg.WhatsApp.Headless {
		t.Error("headless should be overridden to false")
	}
}

func TestResolvedBaseURLDefault(t *testing.T) {
	cfg := Default()
	cfg.Gateway.Port = 3100
	if got := cfg.ResolvedBaseURL(); got != "http://localhost:3100" {
		t.Errorf("got %q", got)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"defaults", func(*Config) {}, false},
		{"bad_port", func(c *Config) { c.Gateway.Port = 0 }, true},
		{"bad_driver", func(c *Config) { c.WhatsApp.Driver = "puppeteer" }, true},
		{"managed_without_dsn", func(c *Config) { c.Database.Mode = "managed" }, true},
		{"managed_with_dsn", func(c *Config) {
			c.Database.Mode = "managed"
			c.Database.PostgresDSN = "postgres://localhost/wagate"
		}, false},
		{"max_below_base", func(c *Config) { c.Session.ReinitMaxMs = 1000 }, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			if err := cfg.Validate(); (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.json5")
	cfg := Default()
	cfg.Gateway.Port = 5050
	if err := Save(path, cfg); err != nil {
		t.Fatalf("Save: %v", err)
	}
	info, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	if info.Mode().Perm() != 0600 {
		t.Errorf("perm = %v, want 0600", info.Mode().Perm())
	}
	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if loaded.Gateway.Port != 5050 {
		t.Errorf("port = %d", loaded.Gateway.Port)
	}
}
