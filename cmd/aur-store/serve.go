package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/gookit/color"
	"github.com/spf13/cobra"

	"github.com/Vulkestra/AUS-Arch-User-Store/internal/api"
	"github.com/Vulkestra/AUS-Arch-User-Store/internal/aur"
	"github.com/Vulkestra/AUS-Arch-User-Store/internal/config"
	"github.com/Vulkestra/AUS-Arch-User-Store/internal/helper"
	"github.com/Vulkestra/AUS-Arch-User-Store/internal/netutil"
	"github.com/Vulkestra/AUS-Arch-User-Store/internal/operation"
	"github.com/Vulkestra/AUS-Arch-User-Store/internal/pacman"
	"github.com/Vulkestra/AUS-Arch-User-Store/internal/settings"
	"github.com/Vulkestra/AUS-Arch-User-Store/internal/system"
)

const shutdownTimeout = 10 * time.Second

func newServeCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the web console (default)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := a.cfg.Validate(); err != nil {
				return err
			}
			return runServer(cmd.Context(), a)
		},
	}
}

func runServer(ctx context.Context, a *app) error {
	cfg := a.cfg
	logger := a.logger()
	slog.SetDefault(logger)

	logger.Info("starting AUR store")
	logger.Info("loaded configuration",
		"addr", cfg.Addr(),
		"aur_url", cfg.AURURL,
		"web_dir", cfg.WebDir,
		"settings", cfg.SettingsPath,
		"redis", cfg.RedisAddr != "",
		"elevate", cfg.Elevate,
	)

	prefs, err := settings.Load(cfg.SettingsPath)
	if err != nil {
		logger.Warn("failed to load settings, using defaults", "error", err, "path", cfg.SettingsPath)
		prefs = settings.Defaults()
	}
	store := settings.NewStore(prefs)
	if err := settings.Watch(ctx, cfg.SettingsPath, store, logger); err != nil {
		logger.Warn("settings will not reload on change", "error", err)
	}

	var cache aur.Cache = aur.NopCache{}
	if cfg.RedisAddr != "" {
		redisCache, err := aur.NewRedisCache(cfg.RedisAddr, cfg.CacheTTL)
		if err != nil {
			logger.Warn("AUR cache disabled", "error", err)
		} else {
			defer redisCache.Close()
			cache = redisCache
			logger.Info("AUR responses cached in Redis", "addr", cfg.RedisAddr, "ttl", cfg.CacheTTL)
		}
	}

	run := a.runner(logger)
	detector := helper.NewDetector(logger, a.detectorOptions(store.Helpers)...)
	manager := operation.NewManager(operation.Config{
		Detector: detector,
		Runner:   run,
		Elevate:  cfg.Elevate,
		Logger:   logger,
	})

	// Start background system stats collector
	collector := system.NewCollector(logger)
	collector.Start(ctx)

	server := api.NewServer(api.ServerConfig{
		Addr:         cfg.Addr(),
		WebDir:       cfg.WebDir,
		AUR:          aur.NewClient(cfg.AURURL, cache, logger),
		Pacman:       pacman.NewClient(run, logger),
		Detector:     detector,
		Stats:        collector,
		PopularTerms: store.PopularTerms,
		Dispatcher:   manager,
	}, logger)

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()

	printBanner(a.out, cfg)

	// Wait for shutdown signal
	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	}

	// Graceful shutdown
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}

	if n := manager.Active(); n > 0 {
		logger.Info("waiting for running operations", "count", n)
	}
	if err := manager.Wait(shutdownCtx); err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			logger.Warn("operations still running at exit", "count", manager.Active())
		}
	}

	logger.Info("server stopped gracefully")
	return nil
}

func printBanner(w io.Writer, cfg *config.Config) {
	fmt.Fprintln(w)
	fmt.Fprintf(w, "  %s %s\n", color.Bold.Sprint("AUR Store"), color.Gray.Sprint("is running"))
	for _, url := range netutil.ListenURLs(cfg.Host, cfg.Port) {
		fmt.Fprintf(w, "  %s %s\n", color.Gray.Sprint("open"), color.Cyan.Sprint(url))
	}
	fmt.Fprintln(w)
}
