package connector

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"tagrag/internal/domain"
	"tagrag/internal/logging"
)

// pgQuerier es el subconjunto de *pgxpool.Pool que usa el conector.
type pgQuerier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Ping(ctx context.Context) error
}

// PgConnector ejecuta consultas sobre Postgres via pgx, una a la vez. El pool recibido
// debe abrir sesiones de solo lectura (ver db.NewReadOnlyPool).
type PgConnector struct {
	pool    pgQuerier
	sem     *semaphore.Weighted
	timeout time.Duration
	probe   time.Duration
	logger  *zap.Logger
}

func NewPgConnector(pool pgQuerier, timeout time.Duration, logger *zap.Logger) *PgConnector {
	return &PgConnector{
		pool:    pool,
		sem:     semaphore.NewWeighted(1),
		timeout: timeout,
		probe:   probeTimeout,
		logger:  logging.OrNop(logger),
	}
}

func (c *PgConnector) Execute(ctx context.Context, query string) ([]domain.Row, error) {
	if err := c.sem.Acquire(ctx, 1); err != nil {
		return nil, queryErr(query, err)
	}
	defer c.sem.Release(1)

	if c.pool == nil {
		return nil, queryErr(query, ErrClosed)
	}

	qctx, cancel := withQueryTimeout(ctx, c.timeout)
	defer cancel()

	// QueryExecModeSimpleProtocol evita preparar sentencias ajenas en la cache del pool.
	rows, err := c.pool.Query(qctx, query, pgx.QueryExecModeSimpleProtocol)
	if err != nil {
		c.logger.Warn("query rejected", zap.Error(err), zap.String("query", query))
		return nil, queryErr(query, err)
	}
	defer rows.Close()

	fields := rows.FieldDescriptions()
	out := make([]domain.Row, 0)
	for rows.Next() {
		values, err := rows.Values()
		if err != nil {
			return nil, queryErr(query, err)
		}
		row := make(domain.Row, len(fields))
		for i, fd := range fields {
			if i < len(values) {
				row[fd.Name] = domain.FromNative(values[i])
			}
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		c.logger.Warn("query failed", zap.Error(err), zap.String("query", query))
		return nil, queryErr(query, err)
	}
	return out, nil
}

func (c *PgConnector) TestConnection(ctx context.Context) bool {
	wctx, cancel := context.WithTimeout(ctx, checkWait(c.timeout, c.probe))
	defer cancel()

	if err := c.sem.Acquire(wctx, 1); err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			c.logger.Warn("connection probe gave up, store busy with in-flight query", zap.Error(err))
		}
		return false
	}
	defer c.sem.Release(1)

	if c.pool == nil {
		return false
	}
	pctx, cancelPing := context.WithTimeout(ctx, c.probe)
	defer cancelPing()
	if err := c.pool.Ping(pctx); err != nil {
		c.logger.Warn("connection probe failed", zap.Error(err))
		return false
	}
	return true
}
