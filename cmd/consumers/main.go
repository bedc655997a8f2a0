package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"carrental/cmd/consumers/jobs"
	"carrental/internal/config"
	"carrental/internal/consumers"
	"carrental/internal/logger"
)

func main() {
	cfg := config.Load()
	logger.Init(cfg.LogLevel, cfg.LogFormat)
	logger.Get().Info("Starting consumers service...")

	// consumers connect with their own client id
	cfg.NATS.ClientID = "carrental-consumers"

	consumerService, err := consumers.NewConsumerService(cfg)
	if err != nil {
		logger.Fatal("Failed to create consumer service", "error", err)
	}

	if err := consumerService.Start(); err != nil {
		logger.Fatal("Failed to start consumers", "error", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	reconcileJob := jobs.NewPaymentReconciliationJob(consumerService.Payments(), cfg.Jobs.ReconcileInterval)
	reconcileJob.Start(ctx)

	logger.Get().Info("Consumers service started successfully")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Get().Info("Shutting down consumers service...")
	reconcileJob.Stop()
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := consumerService.Shutdown(shutdownCtx); err != nil {
		logger.Get().Error("Error during shutdown", "error", err)
	}

	logger.Get().Info("Consumers service stopped")
}
