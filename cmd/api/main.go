package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go-dataset-converter/internal/config"
	"go-dataset-converter/internal/container"
	"go-dataset-converter/internal/logger"
)

func main() {
	cfg, err := config.LoadFromEnv()
	if err != nil {
		logger.WithError(err).Error("Failed to load configuration")
		os.Exit(1)
	}

	app, err := container.NewContainer(cfg)
	if err != nil {
		logger.WithError(err).Error("Failed to initialize application")
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go app.Sweeper().Run(ctx)

	// Uploads and downloads may legitimately run long; only the header
	// read gets the short timeout.
	server := &http.Server{
		Addr:              cfg.ServerAddress(),
		Handler:           app.Handler(),
		ReadHeaderTimeout: cfg.RequestTimeout,
		IdleTimeout:       2 * cfg.RequestTimeout,
	}

	go func() {
		logger.WithField("address", server.Addr).Info("Starting dataset converter service")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.WithError(err).Error("Server failed")
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("Shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Warn("Graceful shutdown did not complete")
	}

	cancel()
	app.Pool().Close()
	logger.Info("Stopped")
}
