package browser

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
)

func TestParseFlags(t *testing.T) {
	got, err := ParseFlags(`--lang=en-US --proxy-server="http://proxy:8080" --kiosk`)
	if err != nil {
		t.Fatal(err)
	}
	want := []Flag{
		{Name: "lang", Values: []string{"en-US"}},
		{Name: "proxy-server", Values: []string{"http://proxy:8080"}},
		{Name: "kiosk"},
	}
	if len(got) != len(want) {
		t.Fatalf("got %+v", got)
	}
	for i := range want {
		if got[i].Name != want[i].Name || len(got[i].Values) != len(want[i].Values) {
			t.Errorf("flag %d = %+v, want %+v", i, got[i], want[i])
			continue
		}
		for j := range want[i].Values {
			if got[i].Values[j] != want[i].Values[j] {
				t.Errorf("flag %d value = %q", i, got[i].Values[j])
			}
		}
	}

	if fs, err := ParseFlags("   "); err != nil || fs != nil {
		t.Errorf("blank: %v %v", fs, err)
	}
	if _, err := ParseFlags(`--a="unterminated`); err == nil {
		t.Error("expected error for unbalanced quote")
	}
}

func TestDefaultFlags(t *testing.T) {
	names := map[string][]string{}
	for _, f := range DefaultFlags("/data/profile") {
		names[f.Name] = f.Values
	}
	for _, n := range []string{"no-sandbox", "disable-setuid-sandbox", "disable-dev-shm-usage", "no-zygote", "disable-gpu", "use-mock-keychain"} {
		if _, ok := names[n]; !ok {
			t.Errorf("missing %s", n)
		}
	}
	if v := names["user-data-dir"]; len(v) != 1 || v[0] != "/data/profile" {
		t.Errorf("user-data-dir = %v", v)
	}
	if v := names["profile-directory"]; len(v) != 1 || v[0] != "Default" {
		t.Errorf("profile-directory = %v", v)
	}

	for _, f := range DefaultFlags("") {
		if f.Name == "user-data-dir" {
			t.Error("user-data-dir set without a profile")
		}
	}
}

func TestResolveExecutable(t *testing.T) {
	none := func(string) bool { return false }
	all := func(string) bool { return true }
	only := func(p string) func(string) bool { return func(s string) bool { return s == p } }

	tests := []struct {
		name     string
		explicit string
		env      string
		goos     string
		exists   func(string) bool
		want     string
	}{
		{"explicit wins", "/opt/chrome", "/env/chrome", "linux", all, "/opt/chrome"},
		{"env next", "", "/env/chrome", "linux", all, "/env/chrome"},
		{"linux chromium", "", "", "linux", all, linuxChromium},
		{"linux missing", "", "", "linux", none, ""},
		{"darwin second candidate", "", "", "darwin", only(darwinCandidates[1]), darwinCandidates[1]},
		{"windows edge", "", "", "windows", only(windowsCandidates[2]), windowsCandidates[2]},
		{"other os", "", "", "plan9", all, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := resolveExecutable(tt.explicit, tt.env, tt.goos, tt.exists); got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestCleanProfileLocks(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	dir := t.TempDir()
	for _, name := range []string{"SingletonLock", "SingletonCookie", "LOCK", ".org.chromium.Chromium.abc", "Preferences"} {
		if err := os.WriteFile(filepath.Join(dir, name), nil, 0600); err != nil {
			t.Fatal(err)
		}
	}

	if n := CleanProfileLocks(dir, logger); n != 4 {
		t.Errorf("removed %d, want 4", n)
	}
	if _, err := os.Stat(filepath.Join(dir, "Preferences")); err != nil {
		t.Error("profile data was removed")
	}
	if _, err := os.Stat(filepath.Join(dir, "SingletonLock")); !os.IsNotExist(err) {
		t.Error("lock survived")
	}
}

func TestCleanTempRemnants(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	tmp := t.TempDir()
	os.Mkdir(filepath.Join(tmp, "puppeteer_dev_profile-xyz"), 0700)
	os.WriteFile(filepath.Join(tmp, "SingletonSocket"), nil, 0600)
	os.WriteFile(filepath.Join(tmp, "keep.txt"), nil, 0600)

	if n := CleanTempRemnants(tmp, logger); n != 2 {
		t.Errorf("removed %d, want 2", n)
	}
	if _, err := os.Stat(filepath.Join(tmp, "keep.txt")); err != nil {
		t.Error("unrelated file removed")
	}
}
