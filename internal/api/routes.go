package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/Vulkestra/AUS-Arch-User-Store/internal/aur"
	"github.com/Vulkestra/AUS-Arch-User-Store/internal/operation"
	"github.com/Vulkestra/AUS-Arch-User-Store/internal/system"
)

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes() {
	s.router.Route("/api", func(r chi.Router) {
		// Long-lived stream, outside the timeout and compression group
		r.Get("/system/stream", s.handleSystemStream)

		r.Group(func(r chi.Router) {
			r.Use(middleware.Timeout(60 * time.Second))
			r.Use(gzip)

			r.Get("/health", s.handleHealth)
			r.Get("/system", s.handleSystem)

			r.Get("/installed", s.handleListInstalled)
			r.Get("/installed/{name}", s.handleInstalledStatus)
			r.Get("/updates", s.handleUpdates)

			r.Get("/search", s.handleSearch)
			r.Get("/info/{name}", s.handleInfo)
			r.Get("/popular", s.handlePopular)
			r.Get("/pkgbuild/{name}", s.handlePKGBUILD)
		})
	})

	// WebSocket channel; "/" also upgrades, see setupFrontend
	s.router.Get("/ws", s.handleWebSocket)

	// Serve frontend static files
	s.setupFrontend()
}

// handleHealth returns the health status of the service
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"clients": s.registry.Count(),
	})
}

type systemResponse struct {
	AURHelper     *string      `json:"aurHelper"`
	PacmanVersion string       `json:"pacmanVersion"`
	Host          system.Stats `json:"host"`
}

// handleSystem reports the detected helper, pacman version and host usage
func (s *Server) handleSystem(w http.ResponseWriter, r *http.Request) {
	resp := systemResponse{
		PacmanVersion: s.pacman.Version(r.Context()),
		Host:          s.stats.Stats(),
	}
	if helper, ok := s.detector.Detect(r.Context()); ok {
		resp.AURHelper = &helper
	}
	respondJSON(w, http.StatusOK, resp)
}

// handleListInstalled returns foreign (AUR) packages
func (s *Server) handleListInstalled(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{
		"installed": s.pacman.Installed(r.Context()),
	})
}

// handleInstalledStatus reports whether a single package is installed
func (s *Server) handleInstalledStatus(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	if err := operation.ValidatePackageName(name); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	var version *string
	v, installed := s.pacman.Query(r.Context(), name)
	if installed {
		version = &v
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"installed": installed,
		"version":   version,
	})
}

// handleUpdates lists installed AUR packages with a newer AUR version
func (s *Server) handleUpdates(w http.ResponseWriter, r *http.Request) {
	updates, err := s.pacman.Updates(r.Context(), s.aur)
	if err != nil {
		s.logger.Error("failed to check for updates", "error", err)
		respondError(w, http.StatusBadGateway, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"updates": updates,
	})
}

// handleSearch proxies an AUR search
func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("q")
	by := r.URL.Query().Get("by")

	results, err := s.aur.Search(r.Context(), query, by)
	if err != nil {
		s.respondAURError(w, "search", err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"results": results,
	})
}

// handleInfo returns the full AUR record of one package
func (s *Server) handleInfo(w http.ResponseWriter, r *http.Request) {
	pkg, err := s.aur.Info(r.Context(), chi.URLParam(r, "name"))
	if err != nil {
		s.respondAURError(w, "info", err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"package": pkg,
	})
}

// handlePopular returns the discover listing
func (s *Server) handlePopular(w http.ResponseWriter, r *http.Request) {
	results, err := s.aur.Popular(r.Context(), s.popularTerms())
	if err != nil {
		s.respondAURError(w, "popular", err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"results": results,
	})
}

// handlePKGBUILD returns a package's build script as plain text
func (s *Server) handlePKGBUILD(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	if err := operation.ValidatePackageName(name); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	body, err := s.aur.PKGBUILD(r.Context(), name)
	if err != nil {
		s.respondAURError(w, "pkgbuild", err)
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(body))
}

// respondAURError maps AUR client errors to HTTP statuses
func (s *Server) respondAURError(w http.ResponseWriter, op string, err error) {
	var rpcErr *aur.RPCError
	switch {
	case errors.Is(err, aur.ErrNotFound):
		respondError(w, http.StatusNotFound, "Package not found")
	case errors.As(err, &rpcErr):
		respondError(w, http.StatusBadRequest, rpcErr.Message)
	default:
		s.logger.Error("AUR request failed", "op", op, "error", err)
		respondError(w, http.StatusBadGateway, err.Error())
	}
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{
		"error": message,
	})
}
