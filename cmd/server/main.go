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

	h "github.com/veranemoloko/onc-archive/internal/api/http"
	cfgpkg "github.com/veranemoloko/onc-archive/internal/config"
	"github.com/veranemoloko/onc-archive/internal/onc"
	"github.com/veranemoloko/onc-archive/internal/progress"
	repo "github.com/veranemoloko/onc-archive/internal/repository"
	svc "github.com/veranemoloko/onc-archive/internal/service"
	"github.com/veranemoloko/onc-archive/internal/storage"
	"github.com/veranemoloko/onc-archive/internal/worker"
)

func main() {
	cfg, err := cfgpkg.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	cfgpkg.SetupLogger(cfg)
	logger := slog.Default()
	logger.Info("configuration loaded successfully", "env", cfg.Environment, "production", cfg.Production)

	batchStorage, err := repo.NewBatchStorage(cfg.StateFile, logger)
	if err != nil {
		logger.Error("failed to initialize batch repository", "error", err)
		os.Exit(1)
	}

	client := onc.NewClient(onc.Options{
		Token:      cfg.Token,
		Production: cfg.Production,
		Timeout:    cfg.Timeout,
	}, logger)

	archiveService := svc.NewArchiveService(client, logger)
	fetcher := worker.NewFileFetcher(client, storage.NewFileStorage(""), cfg.OutPath, logger)
	// nobody watches a terminal here
	reporter := progress.NewReporter(progress.Options{Enabled: false})
	downloadService := svc.NewDownloadService(archiveService, fetcher, reporter, cfg, logger)
	batchService := svc.NewBatchService(batchStorage, downloadService, logger)

	if err := batchService.RecoverPendingBatches(context.Background()); err != nil {
		logger.Error("failed to recover pending batches", "error", err)
	}

	router := h.NewRouter(batchService, archiveService, client, logger)
	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:      router,
		ReadTimeout:  cfg.HTTPTimeout,
		WriteTimeout: cfg.HTTPTimeout,
		IdleTimeout:  cfg.HTTPTimeout,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		logger.Info("server starting", "address", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server failed to start", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	logger.Info("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown failed", "error", err)
	} else {
		logger.Info("server stopped gracefully")
	}

	if err := batchService.Shutdown(shutdownCtx); err != nil {
		logger.Error("batch service shutdown failed", "error", err)
	}
}
