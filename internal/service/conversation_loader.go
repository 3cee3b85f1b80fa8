package service

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"

	"tagrag/internal/domain"
	"tagrag/internal/logging"
	"tagrag/internal/repository"
)

const conversationDateLayout = "2006-01-02 15:04:05"

var (
	ErrLoaderNotConfigured = errors.New("conversation loader not configured")
	ErrMalformedRecord     = errors.New("malformed conversation record")
)

// LoadResult resume una carga masiva.
type LoadResult struct {
	Loaded  int
	Skipped int
}

// ConversationLoader puebla el almacen desde un archivo delimitado Date,User,Content.
// El encabezado se descarta; Content es todo lo que queda de la linea.
type ConversationLoader struct {
	repo   repository.MessageRepository
	strict bool
	logger *zap.Logger
}

func NewConversationLoader(repo repository.MessageRepository, strict bool, logger *zap.Logger) *ConversationLoader {
	return &ConversationLoader{repo: repo, strict: strict, logger: logging.OrNop(logger)}
}

func (l *ConversationLoader) LoadFile(ctx context.Context, path string) (LoadResult, error) {
	f, err := os.Open(path)
	if err != nil {
		return LoadResult{}, fmt.Errorf("open conversations file: %w", err)
	}
	defer f.Close()
	return l.Load(ctx, f)
}

// Load lee todos los registros y los inserta en un solo lote. Los registros mal formados
// se descartan con un warning, salvo en modo estricto donde abortan la carga.
func (l *ConversationLoader) Load(ctx context.Context, r io.Reader) (LoadResult, error) {
	if l == nil || l.repo == nil {
		return LoadResult{}, ErrLoaderNotConfigured
	}

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	var (
		result   LoadResult
		messages []domain.Message
		lineNo   int
	)
	for scanner.Scan() {
		lineNo++
		if lineNo == 1 {
			continue
		}
		line := scanner.Text()
		if strings.TrimSpace(line) == "" {
			continue
		}

		msg, err := parseConversationLine(line)
		if err != nil {
			if l.strict {
				return result, fmt.Errorf("line %d: %w", lineNo, err)
			}
			l.logger.Warn("skipping malformed conversation record", zap.Int("line", lineNo), zap.Error(err))
			result.Skipped++
			continue
		}
		messages = append(messages, msg)
	}
	if err := scanner.Err(); err != nil {
		return result, fmt.Errorf("read conversations: %w", err)
	}

	n, err := l.repo.CreateBatch(ctx, messages)
	if err != nil {
		return result, fmt.Errorf("save conversations: %w", err)
	}
	result.Loaded = n

	l.logger.Info("conversations loaded", zap.Int("loaded", result.Loaded), zap.Int("skipped", result.Skipped))
	return result, nil
}

func parseConversationLine(line string) (domain.Message, error) {
	parts := strings.SplitN(line, ",", 3)
	if len(parts) != 3 {
		return domain.Message{}, fmt.Errorf("%w: expected 3 fields, got %d", ErrMalformedRecord, len(parts))
	}
	date, err := time.ParseInLocation(conversationDateLayout, strings.TrimSpace(parts[0]), time.UTC)
	if err != nil {
		return domain.Message{}, fmt.Errorf("%w: invalid date %q", ErrMalformedRecord, parts[0])
	}
	return domain.Message{
		Date:    date,
		User:    parts[1],
		Content: parts[2],
	}, nil
}
