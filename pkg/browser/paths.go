package browser

import (
	"os"
	"path/filepath"
	"runtime"
)

// ExecutableEnv overrides browser discovery.
const ExecutableEnv = "PUPPETEER_EXECUTABLE_PATH"

const linuxChromium = "/usr/bin/chromium-browser"

var windowsCandidates = []string{
	`C:\Program Files\Google\Chrome\Application\chrome.exe`,
	`C:\Program Files (x86)\Google\Chrome\Application\chrome.exe`,
	`C:\Program Files\Microsoft\Edge\Application\msedge.exe`,
	`C:\Program Files (x86)\Microsoft\Edge\Application\msedge.exe`,
}

var darwinCandidates = []string{
	"/Applications/Google Chrome.app/Contents/MacOS/Google Chrome",
	"/Applications/Chromium.app/Contents/MacOS/Chromium",
	"/Applications/Microsoft Edge.app/Contents/MacOS/Microsoft Edge",
}

// ResolveExecutable picks the browser binary. An explicit path or
// $PUPPETEER_EXECUTABLE_PATH wins. "" lets the launcher locate or download one.
func ResolveExecutable(explicit string) string {
	return resolveExecutable(explicit, os.Getenv(ExecutableEnv), runtime.GOOS, fileExists)
}

func resolveExecutable(explicit, env, goos string, exists func(string) bool) string {
	if explicit != "" {
		return explicit
	}
	if env != "" {
		return env
	}

	var candidates []string
	switch goos {
	case "linux":
		candidates = []string{linuxChromium}
	case "windows":
		candidates = windowsCandidates
		if local := os.Getenv("LOCALAPPDATA"); local != "" {
			candidates = append(candidates, filepath.Join(local, "Google", "Chrome", "Application", "chrome.exe"))
		}
	case "darwin":
		candidates = darwinCandidates
	}
	for _, c := range candidates {
		if exists(c) {
			return c
		}
	}
	return ""
}

func fileExists(path string) bool {
	st, err := os.Stat(path)
	return err == nil && !st.IsDir()
}
