package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/pendergraft/contraforge/internal/cache"
	"github.com/pendergraft/contraforge/internal/config"
	"github.com/pendergraft/contraforge/internal/observability/metrics"
	"github.com/pendergraft/contraforge/internal/sandbox"
	"github.com/pendergraft/contraforge/internal/server"
	"github.com/pendergraft/contraforge/internal/storage"
)

var version = "dev"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:     "contraforge-server",
		Short:   "Contraforge server - Solidity build and verification service",
		Version: version,
	}

	// Default behavior (no subcommand) is to serve
	rootCmd.RunE = func(cmd *cobra.Command, args []string) error {
		return runServe()
	}

	rootCmd.AddCommand(newServeCmd())
	rootCmd.AddCommand(newSandboxCmd())
	rootCmd.AddCommand(newMigrateCmd())

	return rootCmd
}

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe()
		},
	}
}

func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the build history schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}
			if !cfg.Storage.Enabled {
				return errors.New("storage is disabled (STORAGE_ENABLED=false)")
			}

			store, err := storage.New(cfg.Storage, quietLogger())
			if err != nil {
				return fmt.Errorf("initializing storage: %w", err)
			}
			defer store.Close()

			if err := store.Migrate(cmd.Context()); err != nil {
				return fmt.Errorf("running migrations: %w", err)
			}
			fmt.Printf("✅ %s schema is up to date\n", cfg.Storage.Type)
			return nil
		},
	}
}

func newSandboxCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sandbox",
		Short: "Manage build sandboxes",
	}
	cmd.AddCommand(newSandboxSweepCmd())
	return cmd
}

func newSandboxSweepCmd() *cobra.Command {
	var maxAge time.Duration

	cmd := &cobra.Command{
		Use:   "sweep",
		Short: "Remove sandboxes left behind by crashed builds",
		Long: `Remove sandbox directories older than --max-age from SANDBOX_ROOT.

Safe to run while a server is using the same root: sweeps are serialized
with a lock file, and live sandboxes are younger than any sensible max age.

EXAMPLES:
  contraforge-server sandbox sweep
  contraforge-server sandbox sweep --max-age 5m
`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}
			if !cmd.Flags().Changed("max-age") {
				maxAge = cfg.Sandbox.MaxAge()
			}

			manager, err := sandbox.NewManager(cfg.Sandbox.Root, quietLogger())
			if err != nil {
				return err
			}
			result, err := sandbox.NewSweeper(manager).Sweep(maxAge)
			if err != nil {
				return err
			}
			if result.Skipped {
				fmt.Println("Another sweep is in progress, nothing to do")
				return nil
			}

			fmt.Printf("Removed %d sandbox(es) from %s\n", len(result.Removed), manager.Root())
			for _, name := range result.Failed {
				fmt.Printf("  ⚠️  could not remove %s\n", name)
			}
			return nil
		},
	}

	cmd.Flags().DurationVar(&maxAge, "max-age", 30*time.Minute, "remove sandboxes older than this (default from SANDBOX_MAX_AGE_MINUTES)")
	return cmd
}

// Server command

func runServe() error {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	// Setup logger
	logger := setupLogger(cfg)
	logger.Info("starting contraforge-server", "version", version)

	metrics.Init(cfg.Metrics.Enabled, "contraforge-server")
	metrics.RegisterActiveSandboxes(sandbox.Active)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Build history is optional
	var store storage.Store
	if cfg.Storage.Enabled {
		store, err = storage.New(cfg.Storage, logger)
		if err != nil {
			return fmt.Errorf("initializing storage: %w", err)
		}
		defer store.Close()

		if err := store.Migrate(ctx); err != nil {
			return fmt.Errorf("running migrations: %w", err)
		}
	}

	var compileCache cache.Cache = cache.Noop{}
	if cfg.Cache.Enabled {
		redisCache, err := cache.NewRedis(ctx, cfg.Cache.RedisURL, time.Duration(cfg.Cache.TTLSeconds)*time.Second)
		if err != nil {
			// Compiling without a cache is slower, not broken
			logger.Warn("compile cache unavailable, continuing without it", "error", err)
		} else {
			compileCache = redisCache
		}
	}
	defer compileCache.Close()

	srv, err := server.New(cfg, store, compileCache, logger)
	if err != nil {
		return fmt.Errorf("creating server: %w", err)
	}
	go srv.RunSweeper(ctx)

	// Create HTTP server with configurable timeouts
	httpServer := &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      srv.Handler(),
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		IdleTimeout:  time.Duration(cfg.Server.IdleTimeout) * time.Second,
	}

	// Start server in goroutine
	errChan := make(chan error, 1)
	go func() {
		logger.Info("server listening", "addr", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errChan <- err
		}
	}()

	select {
	case err := <-errChan:
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
		logger.Info("shutting down")
	}

	// Graceful shutdown; in-flight builds get the toolchain timeout to finish
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Toolchain.Timeout()+5*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown error: %w", err)
	}

	logger.Info("server stopped")
	return nil
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func setupLogger(cfg *config.Config) *slog.Logger {
	var handler slog.Handler

	opts := &slog.HandlerOptions{
		Level: parseLogLevel(cfg.Logging.Level),
	}

	if cfg.Logging.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	return slog.New(handler)
}

func parseLogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
