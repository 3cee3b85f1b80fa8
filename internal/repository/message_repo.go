package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"tagrag/internal/domain"
)

// MessageRepository escribe el log de conversaciones. Solo existe camino de alta:
// los mensajes no se actualizan ni se borran.
type MessageRepository interface {
	EnsureSchema(ctx context.Context) error
	CreateBatch(ctx context.Context, messages []domain.Message) (int, error)
	Count(ctx context.Context) (int64, error)
}

type PgMessageRepository struct {
	pool *pgxpool.Pool
}

func NewPgMessageRepository(pool *pgxpool.Pool) *PgMessageRepository {
	return &PgMessageRepository{pool: pool}
}

func (r *PgMessageRepository) EnsureSchema(ctx context.Context) error {
	const query = `
		CREATE TABLE IF NOT EXISTS "Messages" (
			"Id"      BIGSERIAL PRIMARY KEY,
			"Date"    TIMESTAMPTZ NOT NULL,
			"User"    TEXT NOT NULL,
			"Content" TEXT NOT NULL
		)
	`
	_, err := r.pool.Exec(ctx, query)
	return err
}

// CreateBatch inserta todos los mensajes en una sola transaccion.
func (r *PgMessageRepository) CreateBatch(ctx context.Context, messages []domain.Message) (int, error) {
	if len(messages) == 0 {
		return 0, nil
	}

	const query = `
		INSERT INTO "Messages" ("Date", "User", "Content")
		VALUES ($1, $2, $3)
	`

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	batch := &pgx.Batch{}
	for _, m := range messages {
		batch.Queue(query, m.Date, m.User, m.Content)
	}
	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return 0, fmt.Errorf("insert messages: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("commit tx: %w", err)
	}
	return len(messages), nil
}

func (r *PgMessageRepository) Count(ctx context.Context) (int64, error) {
	const query = `SELECT COUNT(*) FROM "Messages"`
	var n int64
	if err := r.pool.QueryRow(ctx, query).Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}
