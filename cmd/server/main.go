package main

import (
	"context"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/planilimpa/planilimpa/internal/audit"
	"github.com/planilimpa/planilimpa/internal/config"
	"github.com/planilimpa/planilimpa/internal/logging"
	"github.com/planilimpa/planilimpa/internal/pipeline"
	"github.com/planilimpa/planilimpa/internal/web"
)

func main() {
	// Load .env file if it exists (Overload overwrites existing env vars)
	if err := godotenv.Overload(); err != nil {
		slog.Info("no .env file found, using environment variables")
	} else {
		slog.Info("loaded .env file (overwriting existing env vars)")
	}

	// Load and validate configuration
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	// Setup structured logging based on config
	logging.Setup(cfg.Logging.Level, cfg.Logging.Format)

	slog.Info("configuration loaded",
		"port", cfg.Server.Port,
		"upload_max_files", cfg.Upload.MaxFiles,
		"upload_max_file_size", cfg.Upload.MaxFileSize,
		"detect_threshold", cfg.Detect.Threshold,
		"audit_enabled", cfg.Database.AuditEnabled(),
	)

	ctx := context.Background()

	// Connect the optional audit store. A nil store is valid; runs simply
	// are not persisted.
	var auditStore *audit.Store
	if cfg.Database.AuditEnabled() {
		auditStore, err = audit.NewStore(ctx, cfg.Database)
		if err != nil {
			slog.Error("failed to connect audit database", "error", err)
			os.Exit(1)
		}
		defer auditStore.Close()

		if u, err := url.Parse(cfg.Database.URL); err == nil {
			slog.Info("audit database connected", "name", strings.TrimPrefix(u.Path, "/"))
		} else {
			slog.Info("audit database connected")
		}
	}

	service := pipeline.NewService(cfg, auditStore)
	server := web.NewServer(service, cfg)

	// Graceful shutdown
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh

		slog.Info("shutting down...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		// Wait for active runs to complete (with timeout)
		if active := service.ActiveRuns(); active > 0 {
			slog.Info("waiting for runs to complete", "active", active)
			if err := service.WaitForRuns(shutdownCtx); err != nil {
				slog.Warn("runs did not complete in time", "error", err)
			} else {
				slog.Info("all runs completed")
			}
		}

		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("shutdown error", "error", err)
		}
	}()

	slog.Info("server starting", "addr", cfg.Server.Addr())
	if err := server.Start(); err != nil && err != http.ErrServerClosed {
		slog.Error("server stopped", "error", err)
		os.Exit(1)
	}
	slog.Info("server stopped")
}
