package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"genie-audit/internal/api"
	"genie-audit/internal/config"
	"genie-audit/internal/db"
	"genie-audit/internal/db/repository"
	"genie-audit/internal/engine"
	"genie-audit/internal/service"
	"genie-audit/internal/warehouse"
)

func main() {
	// Load .env file (if present)
	if err := config.LoadDotEnv(".env"); err != nil {
		slog.Warn("could not load .env", "error", err)
	}

	cfg, err := config.LoadFromEnv()
	if err != nil {
		slog.Error("load config", "error", err)
		os.Exit(1)
	}

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.SlogLevel()}))
	slog.SetDefault(logger)
	for _, warning := range cfg.Warnings {
		logger.Warn(warning)
	}

	if err := run(cfg, logger); err != nil {
		logger.Error("server exited", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger *slog.Logger) error {
	// Open the run store with hardened connection settings.
	// writeDB: single-connection pool for serialized writes.
	// readDB:  4-connection pool for concurrent reads.
	writeDB, readDB, err := db.OpenSQLitePair(cfg.DBPath, 4)
	if err != nil {
		return err
	}
	defer writeDB.Close()
	defer readDB.Close()

	if err := db.RunMigrations(writeDB); err != nil {
		return err
	}

	client := warehouse.NewClient(cfg.Warehouse, logger)
	runRepo := repository.NewRunRepo(writeDB, readDB)
	eng := engine.New(cfg.Tuning, logger)
	auditSvc := service.NewAuditService(client, client, client, runRepo, eng,
		cfg.WindowHours, cfg.MaxConversations, logger)

	// Periodic refresh of the default space, when configured.
	if cfg.RefreshCron != "" && cfg.Warehouse.SpaceID != "" {
		scheduler := service.NewScheduler(auditSvc, cfg.Warehouse.SpaceID, cfg.RefreshCron, logger)
		if err := scheduler.Start(); err != nil {
			return err
		}
		defer scheduler.Stop()
	}

	handler := api.NewHandler(auditSvc, logger)
	server := &http.Server{
		Addr: cfg.ListenAddr,
		Handler: handler.Router(api.RouterConfig{
			RateLimitRPS:       cfg.RateLimitRPS,
			RateLimitBurst:     cfg.RateLimitBurst,
			CORSAllowedOrigins: cfg.CORSAllowedOrigins,
		}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("HTTP API listening", "addr", cfg.ListenAddr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case sig := <-stop:
		logger.Info("shutting down", "signal", sig.String())
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}
