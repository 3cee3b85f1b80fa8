// Command api expone la conversacion por HTTP. Con JWT_SECRET configurado, /chat y
// /history exigen un bearer token firmado con ese secreto (ver cmd/issue_token).
package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"tagrag/internal/app"
	"tagrag/internal/config"
	apihttp "tagrag/internal/http"
	"tagrag/internal/logging"
	"tagrag/internal/service"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := godotenv.Load(); err != nil {
		log.Printf("warning: loading .env: %v", err)
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		panic(err)
	}

	logger, err := logging.New(cfg.LogLevel)
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	assistant, err := app.Build(ctx, cfg, nil, logger)
	if err != nil {
		logger.Fatal("startup failed", zap.Error(err))
	}
	defer assistant.Close()

	var jwtSvc *service.JWTService
	if cfg.JWTSecret != "" {
		jwtSvc = service.NewJWTService(cfg.JWTSecret, 0)
	} else {
		logger.Warn("jwt secret not configured, chat api is open")
	}

	chatHandler := apihttp.NewChatHandler(logger, assistant.Loop)
	healthHandler := apihttp.NewHealthHandler(assistant.Executor)
	router := apihttp.NewRouter(logger, chatHandler, healthHandler, jwtSvc)

	server := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Warn("server shutdown", zap.Error(err))
		}
	}()

	logger.Info("starting server", zap.String("port", cfg.HTTPPort))

	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("server error", zap.Error(err))
	}
}
