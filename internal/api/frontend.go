package api

import (
	_ "embed"
	"net/http"
	"os"
	"path/filepath"
)

//go:embed fallback.html
var fallbackPage []byte

// setupFrontend serves the web frontend, or the built-in console when no
// frontend directory is present. WebSocket upgrades on any path go to the
// client channel.
func (s *Server) setupFrontend() {
	var serve http.HandlerFunc

	index := filepath.Join(s.webDir, "index.html")
	if _, err := os.Stat(index); s.webDir == "" || err != nil {
		s.logger.Warn("frontend directory not found, serving built-in page", "path", s.webDir)
		serve = s.handleRoot
	} else {
		s.logger.Info("serving frontend from filesystem", "path", s.webDir)
		serve = func(w http.ResponseWriter, r *http.Request) {
			urlPath := r.URL.Path
			if urlPath == "/" {
				urlPath = "/index.html"
			}
			filePath := filepath.Join(s.webDir, filepath.Clean("/"+urlPath))

			info, err := os.Stat(filePath)
			if err != nil || info.IsDir() {
				// Unknown path: serve index.html for SPA routing
				http.ServeFile(w, r, index)
				return
			}
			http.ServeFile(w, r, filePath)
		}
	}

	s.router.Get("/*", func(w http.ResponseWriter, r *http.Request) {
		if isWebSocketUpgrade(r) {
			s.handleWebSocket(w, r)
			return
		}
		serve(w, r)
	})
}

// handleRoot serves the built-in console page
func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write(fallbackPage)
}
