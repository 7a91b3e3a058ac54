package http

import (
	"embed"
	"io/fs"
	"net/http"
	"os"
	"path/filepath"

	"github.com/nextlevelbuilder/wagate/internal/config"
)

//go:embed static
var embeddedStatic embed.FS

// staticHandler serves the dashboard from gateway.static_dir when it holds an
// index.html, otherwise the embedded page.
func (h *Handler) staticHandler() http.Handler {
	if h.cfg != nil && h.cfg.Gateway.StaticDir != "" {
		dir := config.ExpandHome(h.cfg.Gateway.StaticDir)
		if _, err := os.Stat(filepath.Join(dir, "index.html")); err == nil {
			return http.FileServer(http.Dir(dir))
		}
	}
	sub, _ := fs.Sub(embeddedStatic, "static")
	return http.FileServerFS(sub)
}
