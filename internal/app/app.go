// Package app arma el asistente completo a partir de la configuracion: almacen,
// carga inicial, conector, pipeline y loop de conversacion.
package app

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"tagrag/internal/config"
	"tagrag/internal/connector"
	"tagrag/internal/db"
	"tagrag/internal/llm"
	"tagrag/internal/logging"
	"tagrag/internal/pipeline"
	"tagrag/internal/repository"
	"tagrag/internal/service"
)

// App agrupa los componentes vivos del proceso.
type App struct {
	Config   *config.Config
	Executor connector.QueryExecutor
	Loop     *service.ConversationLoop

	logger   *zap.Logger
	closers  []func()
	readOnly func(ctx context.Context) error
}

// Build abre el almacen configurado, lo puebla desde el CSV y arma el loop. Terminada la
// carga, el conector de consultas queda en solo lectura.
// El cliente del modelo puede inyectarse; con nil se usa el cliente HTTP.
func Build(ctx context.Context, cfg *config.Config, client llm.ChatClient, logger *zap.Logger) (*App, error) {
	logger = logging.OrNop(logger)
	a := &App{Config: cfg, logger: logger}

	repo, executor, err := a.openStore(ctx)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.Executor = executor

	if err := repo.EnsureSchema(ctx); err != nil {
		a.Close()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}

	if path := strings.TrimSpace(cfg.ConversationsCSV); path != "" {
		loader := service.NewConversationLoader(repo, cfg.LoadStrict, logger)
		if _, err := loader.LoadFile(ctx, path); err != nil {
			if !errors.Is(err, fs.ErrNotExist) {
				a.Close()
				return nil, fmt.Errorf("load conversations: %w", err)
			}
			logger.Warn("conversations file not found", zap.String("path", path))
		}
	}

	if a.readOnly != nil {
		if err := a.readOnly(ctx); err != nil {
			a.Close()
			return nil, err
		}
	}

	if client == nil {
		client = llm.NewHTTPClient(cfg.LLMBaseURL, cfg.LLMAPIKey, cfg.LLMModel, seconds(cfg.LLMTimeoutSeconds), logger)
	}

	description := strings.TrimSpace(cfg.StoreDescription)
	if description == "" {
		description = repository.StoreDescription(cfg.DatabaseDriver)
	}
	queryTool := pipeline.NewQueryTool(executor, pipeline.QueryToolConfig{
		StoreDescription: description,
		Examples:         repository.StoreExamples(cfg.DatabaseDriver),
		MaxRows:          cfg.QueryMaxRows,
	}, logger)

	runner := pipeline.NewChatPipeline(client, pipeline.NewRegistry(queryTool), pipeline.Options{
		MaxToolRounds: cfg.MaxToolRounds,
		Reducer:       pipeline.PairedSlidingWindowReducer{Window: cfg.HistoryWindow},
	}, logger)

	a.Loop = service.NewConversationLoop(runner, a.transcriptRecorder(ctx), "", nil, logger)
	logger.Info("assistant ready",
		zap.String("driver", cfg.DatabaseDriver),
		zap.String("conversation_id", a.Loop.ConversationID().String()),
	)
	return a, nil
}

func (a *App) openStore(ctx context.Context) (repository.MessageRepository, connector.QueryExecutor, error) {
	timeout := seconds(a.Config.QueryTimeoutSeconds)
	switch a.Config.DatabaseDriver {
	case config.DriverPostgres:
		pool, err := db.NewPool(ctx, a.Config)
		if err != nil {
			return nil, nil, fmt.Errorf("db connect: %w", err)
		}
		a.closers = append(a.closers, pool.Close)
		if err := db.Ping(ctx, pool); err != nil {
			return nil, nil, fmt.Errorf("db ping: %w", err)
		}
		queryPool, err := db.NewReadOnlyPool(ctx, a.Config)
		if err != nil {
			return nil, nil, fmt.Errorf("db connect read only: %w", err)
		}
		a.closers = append(a.closers, queryPool.Close)
		return repository.NewPgMessageRepository(pool), connector.NewPgConnector(queryPool, timeout, a.logger), nil
	default:
		handle, err := db.OpenSQLite(ctx, a.Config.DatabaseURL)
		if err != nil {
			return nil, nil, err
		}
		exec := connector.NewSQLConnector(handle, timeout, a.logger)
		a.closers = append(a.closers, func() {
			_ = exec.Close()
			_ = handle.Close()
		})
		a.readOnly = exec.EnableReadOnly
		return repository.NewSQLiteMessageRepository(handle), exec, nil
	}
}

// transcriptRecorder devuelve el recorder Redis si esta configurado y responde.
func (a *App) transcriptRecorder(ctx context.Context) service.TranscriptRecorder {
	if strings.TrimSpace(a.Config.RedisAddr) == "" {
		return nil
	}
	client := redis.NewClient(&redis.Options{
		Addr:     a.Config.RedisAddr,
		Password: a.Config.RedisPassword,
		DB:       a.Config.RedisDB,
	})
	ctxPing, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := client.Ping(ctxPing).Err(); err != nil {
		a.logger.Warn("redis ping failed, transcript disabled", zap.Error(err))
		_ = client.Close()
		return nil
	}
	a.closers = append(a.closers, func() { _ = client.Close() })
	return service.NewRedisTranscriptRecorder(client, time.Duration(a.Config.TranscriptTTLHours)*time.Hour)
}

// Close libera los recursos en orden inverso de apertura.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}

func seconds(n int) time.Duration {
	if n <= 0 {
		return 0
	}
	return time.Duration(n) * time.Second
}
