package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"tagrag/internal/app"
	"tagrag/internal/config"
	"tagrag/internal/logging"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	_ = godotenv.Load()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal(err)
	}

	logger, err := logging.New(cfg.LogLevel)
	if err != nil {
		log.Fatal(err)
	}
	defer logger.Sync()

	assistant, err := app.Build(ctx, cfg, nil, logger)
	if err != nil {
		logger.Fatal("startup failed", zap.Error(err))
	}
	defer assistant.Close()

	if err := assistant.Loop.Run(ctx, os.Stdin, os.Stdout); err != nil {
		logger.Error("conversation loop", zap.Error(err))
	}
}
