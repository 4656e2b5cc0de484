package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/sheetvault/sheetvault/internal/config"
	"github.com/sheetvault/sheetvault/internal/core"
	"github.com/sheetvault/sheetvault/internal/logging"
	"github.com/sheetvault/sheetvault/internal/store"
	"github.com/sheetvault/sheetvault/internal/web"
)

func main() {
	// Load .env file if it exists (Overload overwrites existing env vars)
	if err := godotenv.Overload(); err != nil {
		slog.Info("no .env file found, using environment variables")
	} else {
		slog.Info("loaded .env file (overwriting existing env vars)")
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	logging.Setup(cfg.Logging.Level, cfg.Logging.Format)

	slog.Info("configuration loaded",
		"addr", cfg.Server.Addr(),
		"store_path", cfg.Store.Path,
		"import_max_concurrent", cfg.Import.MaxConcurrent,
		"read_workers", cfg.Worker.Readers,
	)

	st, err := store.Open(cfg.Store.Path)
	if err != nil {
		slog.Error("failed to open store", "path", cfg.Store.Path, "error", core.WrapOpen(err))
		os.Exit(1)
	}
	defer st.Close()
	slog.Info("store opened", "path", st.Path())

	service := core.NewService(st, core.Options{
		ReadWorkers:    cfg.Worker.Readers,
		MaxImports:     cfg.Import.MaxConcurrent,
		ImportWaitTime: cfg.Import.MaxWaitTime,
		ImportTimeout:  cfg.Import.Timeout,
	})

	server := web.NewServer(service, cfg)

	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh

		slog.Info("shutting down...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		// Let in-flight imports commit before the dispatcher stops;
		// a write transaction is never abandoned halfway.
		if err := service.Close(shutdownCtx); err != nil {
			slog.Warn("imports did not drain in time", "error", err)
		}

		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("shutdown error", "error", err)
		}
	}()

	slog.Info("server starting", "addr", cfg.Server.Addr())
	if err := server.Start(); err != nil {
		slog.Info("server stopped", "error", err)
	}
}
