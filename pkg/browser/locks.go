package browser

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

// profileLockNames are files Chrome leaves behind when it dies holding a profile.
var profileLockNames = []string{"SingletonLock", "SingletonCookie", "SingletonSocket", "LOCK"}

// tempRemnantPrefixes match leftovers of earlier automated Chrome runs in the
// system temp directory.
var tempRemnantPrefixes = []string{"puppeteer_dev_profile-", "puppeteer-", ".org.chromium.", "Singleton"}

// CleanProfileLocks removes stale lock files from a Chrome profile directory.
// Failures are logged and otherwise ignored.
func CleanProfileLocks(dir string, logger *slog.Logger) int {
	removed := 0
	for _, name := range profileLockNames {
		removed += removeLogged(filepath.Join(dir, name), logger)
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return removed
	}
	for _, e := range entries {
		if strings.HasPrefix(e.Name(), ".org.chromium.") {
			removed += removeLogged(filepath.Join(dir, e.Name()), logger)
		}
	}
	return removed
}

// CleanTempRemnants removes leftover automation profiles and sockets from tmp.
func CleanTempRemnants(tmp string, logger *slog.Logger) int {
	entries, err := os.ReadDir(tmp)
	if err != nil {
		return 0
	}
	removed := 0
	for _, e := range entries {
		for _, p := range tempRemnantPrefixes {
			if strings.HasPrefix(e.Name(), p) {
				removed += removeLogged(filepath.Join(tmp, e.Name()), logger)
				break
			}
		}
	}
	return removed
}

func removeLogged(path string, logger *slog.Logger) int {
	if _, err := os.Lstat(path); err != nil {
		return 0
	}
	if err := os.RemoveAll(path); err != nil {
		logger.Warn("browser: could not remove stale file", "path", path, "error", err)
		return 0
	}
	logger.Debug("browser: removed stale file", "path", path)
	return 1
}
