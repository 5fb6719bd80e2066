package web

import (
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
)

// APIPrefix is the path prefix of every Connect procedure.
const APIPrefix = "/lifeboard.v1."

// Static serves the single-page app from dir. Unknown paths get
// index.html so client-side routes load the app.
func Static(dir string, logger *slog.Logger) (http.Handler, error) {
	if logger == nil {
		logger = slog.Default()
	}
	staticDir, err := filepath.Abs(dir)
	if err != nil {
		return nil, err
	}
	logger.Info("Serving static files", "path", staticDir)

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Unregistered procedures must not fall through to the app.
		if strings.HasPrefix(r.URL.Path, APIPrefix) {
			http.NotFound(w, r)
			return
		}

		urlPath := r.URL.Path
		if urlPath == "/" {
			urlPath = "/index.html"
		}

		filePath := filepath.Join(staticDir, filepath.Clean("/"+urlPath))
		info, err := os.Stat(filePath)
		if err != nil || info.IsDir() {
			http.ServeFile(w, r, filepath.Join(staticDir, "index.html"))
			return
		}

		http.ServeFile(w, r, filePath)
	}), nil
}
