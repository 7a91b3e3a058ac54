package config

import (
	"os"
	"strconv"
	"strings"
)

// applyEnv overlays environment variables on top of file values.
// The unprefixed names are the ones existing deployments already export.
func (c *Config) applyEnv() {
	envStr("WAGATE_HOST", &c.Gateway.Host)
	envInt("PORT", &c.Gateway.Port)
	envInt("WAGATE_PORT", &c.Gateway.Port)
	envStr("BASE_URL", &c.Gateway.BaseURL)
	envStr("CORS_ORIGIN", &c.Gateway.CORSOrigin)
	envInt("WAGATE_RATE_LIMIT_RPM", &c.Gateway.RateLimitRPM)
	envInt("WAGATE_MAX_CONNECTIONS", &c.Gateway.MaxConnections)
	envBool("WAGATE_WS_REQUIRE_KEY", &c.Gateway.WSRequireKey)
	envStr("WAGATE_STATIC_DIR", &c.Gateway.StaticDir)

	envStr("MASTER_KEY", &c.Auth.MasterKey)
	envStr("WAGATE_KEYS_FILE", &c.Auth.KeysFile)
	envBool("WAGATE_USE_KEYRING", &c.Auth.UseKeyring)

	envStr("WAGATE_DRIVER", &c.WhatsApp.Driver)
	envStr("WHATSAPP_CLIENT_ID", &c.WhatsApp.ClientID)
	envStr("WAGATE_DATA_DIR", &c.WhatsApp.DataDir)
	envStr("PUPPETEER_EXECUTABLE_PATH", &c.WhatsApp.BrowserPath)
	envStr("WAGATE_BROWSER_ARGS", &c.WhatsApp.BrowserArgs)
	envBool("WAGATE_HEADLESS", &c.WhatsApp.Headless)
	envBool("WAGATE_PRINT_QR", &c.WhatsApp.PrintQR)

	envStr("WAGATE_DB_MODE", &c.Database.Mode)
	envStr("WAGATE_POSTGRES_DSN", &c.Database.PostgresDSN)
	envStr("WAGATE_SQLITE_PATH", &c.Database.SQLitePath)

	envStr("WAGATE_WEBHOOK_URL", &c.Webhook.URL)

	envStr("WAGATE_LOG_LEVEL", &c.Log.Level)
	envStr("WAGATE_LOG_FORMAT", &c.Log.Format)

	envStr("WAGATE_TSNET_HOSTNAME", &c.Tailscale.Hostname)
	envStr("WAGATE_TSNET_AUTH_KEY", &c.Tailscale.AuthKey)
	envStr("WAGATE_TSNET_DIR", &c.Tailscale.StateDir)

	envBool("WAGATE_TELEMETRY_ENABLED", &c.Telemetry.Enabled)
	envStr("WAGATE_TELEMETRY_ENDPOINT", &c.Telemetry.Endpoint)
	envStr("WAGATE_TELEMETRY_PROTOCOL", &c.Telemetry.Protocol)
}

func envStr(key string, dst *string) {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		*dst = v
	}
}

func envInt(key string, dst *int) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func envBool(key string, dst *bool) {
	switch strings.ToLower(os.Getenv(key)) {
	case "1", "true", "yes", "on":
		*dst = true
	case "0", "false", "no", "off":
		*dst = false
	}
}
