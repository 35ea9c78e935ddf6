package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/klauspost/compress/gzhttp"

	"github.com/Vulkestra/AUS-Arch-User-Store/internal/aur"
	"github.com/Vulkestra/AUS-Arch-User-Store/internal/channel"
)

// Server represents the HTTP server
type Server struct {
	router       *chi.Mux
	addr         string
	webDir       string
	aur          AURClient
	pacman       PackageDB
	detector     HelperDetector
	stats        StatsSource
	popularTerms func() []string
	dispatcher   channel.Dispatcher
	registry     *channel.Registry
	streamEvery  time.Duration
	logger       *slog.Logger

	mu         sync.Mutex
	httpServer *http.Server
}

// ServerConfig holds the server's collaborators.
type ServerConfig struct {
	Addr   string // listen address, host:port
	WebDir string // static frontend; the built-in page is served when missing

	AUR      AURClient
	Pacman   PackageDB
	Detector HelperDetector
	Stats    StatsSource
	// PopularTerms supplies the search terms for /api/popular on each call.
	PopularTerms func() []string
	// Dispatcher starts operations requested over WebSocket channels.
	Dispatcher channel.Dispatcher
	// StreamInterval is the /api/system/stream period; zero means 2s.
	StreamInterval time.Duration
}

// NewServer creates a new HTTP server instance
func NewServer(cfg ServerConfig, logger *slog.Logger) *Server {
	popularTerms := cfg.PopularTerms
	if popularTerms == nil {
		popularTerms = func() []string { return aur.DefaultPopularTerms }
	}
	streamEvery := cfg.StreamInterval
	if streamEvery <= 0 {
		streamEvery = 2 * time.Second
	}

	s := &Server{
		router:       chi.NewRouter(),
		addr:         cfg.Addr,
		webDir:       cfg.WebDir,
		aur:          cfg.AUR,
		pacman:       cfg.Pacman,
		detector:     cfg.Detector,
		stats:        cfg.Stats,
		popularTerms: popularTerms,
		dispatcher:   cfg.Dispatcher,
		registry:     channel.NewRegistry(),
		streamEvery:  streamEvery,
		logger:       logger,
	}

	s.setupMiddleware()
	s.setupRoutes()

	return s
}

// Handler returns the root HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Clients returns the number of connected WebSocket clients.
func (s *Server) Clients() int {
	return s.registry.Count()
}

// setupMiddleware configures the middleware stack
func (s *Server) setupMiddleware() {
	// Request logging
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(middleware.Logger)
	s.router.Use(middleware.Recoverer)

	// CORS configuration
	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"http://localhost:3000", "http://127.0.0.1:3000", "http://localhost:5173"},
		AllowedMethods:   []string{"GET", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: false,
		MaxAge:           300,
	}))
}

// gzip compresses JSON API responses.
func gzip(next http.Handler) http.Handler {
	return gzhttp.GzipHandler(next)
}

// Start starts the HTTP server
func (s *Server) Start() error {
	s.logger.Info("starting HTTP server", "addr", s.addr)

	server := &http.Server{
		Addr:              s.addr,
		Handler:           s.router,
		ReadHeaderTimeout: 15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	s.mu.Lock()
	s.httpServer = server
	s.mu.Unlock()

	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops accepting requests and disconnects WebSocket clients.
// Running operations are not interrupted.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down HTTP server")

	s.mu.Lock()
	server := s.httpServer
	s.mu.Unlock()

	// Hijacked WebSocket connections are not tracked by http.Server. Upgrades
	// that complete after this are refused by the registry.
	s.registry.CloseAll()

	if server == nil {
		return nil
	}
	return server.Shutdown(ctx)
}
