package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"carrental/internal/api"
	"carrental/internal/config"
	"carrental/internal/logger"
)

func main() {
	cfg := config.Load()
	logger.Init(cfg.LogLevel, cfg.LogFormat)

	server, err := api.NewServer(cfg)
	if err != nil {
		logger.Fatal("Failed to initialize server", "error", err)
	}

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           server.GetRouter(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Get().Info("Starting server", "port", cfg.Port, "storage", cfg.StorageDriver)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Failed to start server", "error", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Get().Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Get().Error("Server forced to shutdown", "error", err)
	}

	if err := server.Cleanup(); err != nil {
		logger.Get().Error("Error during cleanup", "error", err)
	}

	logger.Get().Info("Server stopped")
}
