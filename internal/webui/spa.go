package webui

import (
	"net/http"
	"os"
	"path/filepath"
	"strings"
)

// spaHandler serves the built front-end out of cfg.StaticDir: it
// resolves the requested path, refuses anything that would escape the
// directory, and falls back to index.html for any path that does not
// match a file on disk (client-side routing).
//
// Grounded on a prior internal/web package's fs.Sub + http.FileServer
// static route, adapted from an embedded asset filesystem to an
// on-disk SPA bundle with an explicit containment check, since an
// on-disk root needs the traversal guard that embed.FS gets for free.
func (h *Handler) spaHandler() http.Handler {
	root := filepath.Clean(h.cfg.StaticDir)
	fileServer := http.FileServer(http.Dir(root))
	indexPath := filepath.Join(root, "index.html")

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		clean := filepath.Clean(filepath.Join(root, filepath.FromSlash(r.URL.Path)))
		if clean != root && !strings.HasPrefix(clean, root+string(filepath.Separator)) {
			http.NotFound(w, r)
			return
		}

		if info, err := os.Stat(clean); err == nil && !info.IsDir() {
			fileServer.ServeHTTP(w, r)
			return
		}
		http.ServeFile(w, r, indexPath)
	})
}
