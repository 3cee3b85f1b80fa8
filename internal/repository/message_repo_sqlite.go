package repository

import (
	"context"
	"database/sql"
	"fmt"

	"tagrag/internal/domain"
)

type SQLiteMessageRepository struct {
	db *sql.DB
}

func NewSQLiteMessageRepository(db *sql.DB) *SQLiteMessageRepository {
	return &SQLiteMessageRepository{db: db}
}

func (r *SQLiteMessageRepository) EnsureSchema(ctx context.Context) error {
	const query = `
		CREATE TABLE IF NOT EXISTS Messages (
			Id      INTEGER PRIMARY KEY AUTOINCREMENT,
			Date    DATETIME NOT NULL,
			User    TEXT NOT NULL,
			Content TEXT NOT NULL
		)
	`
	_, err := r.db.ExecContext(ctx, query)
	return err
}

func (r *SQLiteMessageRepository) CreateBatch(ctx context.Context, messages []domain.Message) (int, error) {
	if len(messages) == 0 {
		return 0, nil
	}

	const query = `INSERT INTO Messages (Date, User, Content) VALUES (?, ?, ?)`

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, query)
	if err != nil {
		return 0, fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, m := range messages {
		// Formato fijo sin zona: es el que describe el esquema a la herramienta.
		if _, err := stmt.ExecContext(ctx, m.Date.UTC().Format(sqliteDateLayout), m.User, m.Content); err != nil {
			return 0, fmt.Errorf("insert message: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit tx: %w", err)
	}
	return len(messages), nil
}

func (r *SQLiteMessageRepository) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM Messages`).Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}

const sqliteDateLayout = "2006-01-02 15:04:05"
