package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"ticketshow/internal/config"
	"ticketshow/internal/consumers"
	"ticketshow/internal/logger"
)

func main() {
	cfg := config.Load()
	logger.Init(cfg.LogLevel, cfg.LogFormat)
	logger.Get().Info("Starting consumers service...")

	// Override NATS client ID for consumers
	cfg.NATS.ClientID = "ticketshow-consumers"

	consumerService, err := consumers.NewConsumerService(cfg)
	if err != nil {
		logger.Fatal("Failed to create consumer service", "error", err)
	}

	if err := consumerService.Start(); err != nil {
		logger.Fatal("Failed to start consumers", "error", err)
	}

	logger.Get().Info("Consumers service started successfully")

	// Wait for interrupt signal to gracefully shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Get().Info("Shutting down consumers service...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := consumerService.Shutdown(ctx); err != nil {
		logger.Get().Error("Error during shutdown", "error", err)
	}

	logger.Get().Info("Consumers service stopped")
}
