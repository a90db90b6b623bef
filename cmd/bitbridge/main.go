package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/thetanav/bit-bridge/internal/app"
	"github.com/thetanav/bit-bridge/internal/util/logger"
	"go.uber.org/zap"
)

func main() {
	cfg, err := app.NewConfigFromFlags()
	if err != nil {
		log.Fatalf("Configuration failed: %v", err)
	}

	if err := logger.Init(cfg.LogLevel); err != nil {
		panic(fmt.Sprintf("Failed to init logger: %v", err))
	}
	defer logger.Sync()

	application, err := app.New(cfg, logger.Log)
	if err != nil {
		logger.Log.Fatal("Application initialization failed", zap.Error(err))
	}
	defer application.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := application.Run(ctx); err != nil {
		logger.Log.Error("Server stopped with error", zap.Error(err))
	}
}
