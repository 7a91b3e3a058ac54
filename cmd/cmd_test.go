package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/nextlevelbuilder/wagate/internal/bus"
	"github.com/nextlevelbuilder/wagate/internal/config"
	"github.com/nextlevelbuilder/wagate/internal/gateway"
	"github.com/nextlevelbuilder/wagate/internal/keys"
	"github.com/nextlevelbuilder/wagate/internal/webhook"
	"github.com/nextlevelbuilder/wagate/pkg/protocol"
)

func TestResolveConfigPath(t *testing.T) {
	old := cfgFile
	t.Cleanup(func() { cfgFile = old })

	cfgFile = ""
	t.Setenv("WAGATE_CONFIG", "")
	if got := resolveConfigPath(); got != defaultConfigPath {
		t.Errorf("default = %q", got)
	}
	t.Setenv("WAGATE_CONFIG", "/etc/wagate.yaml")
	if got := resolveConfigPath(); got != "/etc/wagate.yaml" {
		t.Errorf("env = %q", got)
	}
	cfgFile = "custom.json5"
	if got := resolveConfigPath(); got != "custom.json5" {
		t.Errorf("flag = %q", got)
	}
}

func TestRedactConfig(t *testing.T) {
	cfg := config.Default()
	cfg.Auth.MasterKey = "super-secret-master"
	cfg.Database.PostgresDSN = "postgres://u:p@db/wagate"
	cfg.Telemetry.Headers = map[string]string{"authorization": "Bearer abcdefghijkl"}

	raw := redactConfig(cfg)
	data, _ := json.Marshal(raw)
	s := string(data)
	for _, secret := range []string{"super-secret-master", "postgres://u:p@db/wagate", "Bearer abcdefghijkl"} {
		if strings.Contains(s, secret) {
			t.Errorf("secret %q leaked: %s", secret, s)
		}
	}
	auth := raw["auth"].(map[string]any)
	if auth["master_key"] != "supe****ster" {
		t.Errorf("master_key = %v", auth["master_key"])
	}
	gw := raw["gateway"].(map[string]any)
	if gw["cors_origin"] != "*" {
		t.Errorf("non-secret field changed: %v", gw["cors_origin"])
	}
}

func TestMaskSecret(t *testing.T) {
	tests := map[string]string{
		"":            "",
		"short":       "****",
		"0123456789":  "0123****6789",
		"exactly8chr": "exac****8chr",
	}
	for in, want := range tests {
		if got := maskSecret(in); got != want {
			t.Errorf("maskSecret(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestDeviceStorePath(t *testing.T) {
	cfg := config.Default()
	cfg.WhatsApp.DataDir = "/data"
	if got, want := deviceStorePath(cfg), filepath.Join(cfg.SessionDir(), "device.db"); got != want {
		t.Errorf("default = %q, want %q", got, want)
	}
	cfg.Database.SQLitePath = "/var/lib/wagate/device.db"
	if got := deviceStorePath(cfg); got != "/var/lib/wagate/device.db" {
		t.Errorf("explicit = %q", got)
	}
}

func TestSessionOptionsFromConfig(t *testing.T) {
	cfg := config.Default()
	cfg.Session.ReinitBaseMs = 500
	cfg.WhatsApp.PrintQR = false

	opts := sessionOptions(cfg)
	if opts.ReinitBase != 500*time.Millisecond || opts.ReinitMax != 30*time.Second {
		t.Errorf("unexpected durations: %+v", opts)
	}
	if opts.QROut != nil {
		t.Error("QROut set with print_qr disabled")
	}
}

func TestOpenKeyStoreStandalone(t *testing.T) {
	cfg := config.Default()
	cfg.Auth.KeysFile = filepath.Join(t.TempDir(), "keys.json")

	st, closeStore, err := openKeyStore(cfg)
	if err != nil {
		t.Fatalf("openKeyStore: %v", err)
	}
	defer closeStore()

	svc := keys.NewService(st, "master", nil)
	key, err := svc.Generate(context.Background(), "master")
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if !svc.Validate(context.Background(), key) {
		t.Error("generated key does not validate")
	}
	if _, err := os.Stat(cfg.Auth.KeysFile); err != nil {
		t.Errorf("keys file not written: %v", err)
	}
}

func TestApplyReload(t *testing.T) {
	cur := config.Default()
	next := config.Default()
	next.Gateway.CORSOrigin = "https://app.example.com"
	next.Auth.MasterKey = "rotated-master-key"

	svc := keys.NewService(nil, "old-master", nil)
	limiter := gateway.NewRateLimiter(0, 5)
	defer limiter.Close()
	dispatcher := webhook.NewDispatcher(webhook.NewRegistry(""), bus.NewDedupeCache(time.Minute, 10, nil), webhook.DefaultRetryConfig(), 0)

	applyReload(cur, next, svc, limiter, dispatcher)

	if got := cur.CORSOrigin(); got != "https://app.example.com" {
		t.Errorf("cors = %q", got)
	}
	if err := svc.CheckMaster("rotated-master-key"); err != nil {
		t.Errorf("master key not rotated: %v", err)
	}
	if err := svc.CheckMaster("old-master"); err == nil {
		t.Error("old master key still accepted")
	}
}

type fixedStatus struct{ p protocol.StatusPayload }

func (f fixedStatus) Status() protocol.StatusPayload { return f.p }

func TestGatewayRPCStatus(t *testing.T) {
	qr := "2@pairing"
	ws := gateway.NewServer(bus.New(), fixedStatus{protocol.StatusPayload{QR: &qr}}, nil, gateway.Options{})
	srv := httptest.NewServer(http.HandlerFunc(ws.HandleWebSocket))
	defer srv.Close()

	_, port, _ := net.SplitHostPort(srv.Listener.Addr().String())
	path := filepath.Join(t.TempDir(), "wagate.json5")
	content := fmt.Sprintf(`{ gateway: { host: "127.0.0.1", port: %s } }`, port)
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("PORT", "")
	t.Setenv("WAGATE_PORT", "")
	t.Setenv("WAGATE_HOST", "")

	old := cfgFile
	cfgFile = path
	t.Cleanup(func() { cfgFile = old })

	resp, err := gatewayRPC(protocol.MethodStatus, nil)
	if err != nil {
		t.Fatalf("gatewayRPC: %v", err)
	}
	data, _ := json.Marshal(resp.Payload)
	var st protocol.StatusPayload
	if err := json.Unmarshal(data, &st); err != nil {
		t.Fatal(err)
	}
	if st.Ready || st.QR == nil || *st.QR != qr {
		t.Errorf("status = %+v", st)
	}

	if _, err := gatewayRPC("nope", nil); err == nil {
		t.Error("unknown method succeeded")
	}
	if !isGatewayReachable() {
		t.Error("gateway not reachable")
	}
	ping, err := gatewayPing()
	if err != nil {
		t.Fatalf("gatewayPing: %v", err)
	}
	if ping.Protocol != protocol.ProtocolVersion || ping.Clients < 1 || ping.Subscribers < 1 {
		t.Errorf("ping = %+v, want the pinging connection counted", ping)
	}
}

func TestPromptValidators(t *testing.T) {
	for _, p := range []string{"1", "3000", "65535"} {
		if err := validatePort(p); err != nil {
			t.Errorf("validatePort(%q) = %v", p, err)
		}
	}
	for _, p := range []string{"", "0", "65536", "http"} {
		if err := validatePort(p); err == nil {
			t.Errorf("validatePort(%q) accepted", p)
		}
	}
	if err := validateMasterKey("short"); err == nil {
		t.Error("short master key accepted")
	}
	if err := validateMasterKey("a-long-enough-key"); err != nil {
		t.Errorf("validateMasterKey: %v", err)
	}
}

func TestRenderKeyTable(t *testing.T) {
	used := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	out := renderKeyTable([]keys.KeyInfo{
		{ID: "a1b2c3d4e5f6", Prefix: "wk_abc", Active: true, Created: used, LastUsed: &used},
		{ID: "0f0f0f0f0f0f", Prefix: "wk_def", Active: false, Created: used},
	})
	for _, want := range []string{"LAST USED", "a1b2c3d4e5f6", "0f0f0f0f0f0f", "never", "false"} {
		if !strings.Contains(out, want) {
			t.Errorf("table missing %q:\n%s", want, out)
		}
	}
}
