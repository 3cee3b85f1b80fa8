package connector

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"tagrag/internal/domain"
	"tagrag/internal/logging"
)

const sqliteQueryOnly = "PRAGMA query_only = ON"

// SQLConnector ejecuta consultas sobre un handle database/sql (SQLite en memoria por defecto).
type SQLConnector struct {
	db       *sql.DB
	sem      *semaphore.Weighted
	timeout  time.Duration
	probe    time.Duration
	logger   *zap.Logger
	closed   bool
	readOnly bool
}

func NewSQLConnector(db *sql.DB, timeout time.Duration, logger *zap.Logger) *SQLConnector {
	return &SQLConnector{
		db:      db,
		sem:     semaphore.NewWeighted(1),
		timeout: timeout,
		probe:   probeTimeout,
		logger:  logging.OrNop(logger),
	}
}

// EnableReadOnly pasa la conexion compartida a solo lectura. Se llama una vez terminada
// la carga inicial; desde entonces toda escritura via Execute falla con ErrQuery.
func (c *SQLConnector) EnableReadOnly(ctx context.Context) error {
	if err := c.sem.Acquire(ctx, 1); err != nil {
		return err
	}
	defer c.sem.Release(1)

	if c.closed || c.db == nil {
		return ErrClosed
	}
	if _, err := c.db.ExecContext(ctx, sqliteQueryOnly); err != nil {
		return fmt.Errorf("enable read only: %w", err)
	}
	c.readOnly = true
	return nil
}

// Execute corre la consulta y devuelve una fila por registro; nunca devuelve nil.
func (c *SQLConnector) Execute(ctx context.Context, query string) ([]domain.Row, error) {
	if err := c.sem.Acquire(ctx, 1); err != nil {
		return nil, queryErr(query, err)
	}
	defer c.sem.Release(1)

	if c.closed || c.db == nil {
		return nil, queryErr(query, ErrClosed)
	}

	qctx, cancel := withQueryTimeout(ctx, c.timeout)
	defer cancel()

	// Una consulta previa pudo haber apagado query_only con su propio PRAGMA.
	if c.readOnly {
		if _, err := c.db.ExecContext(qctx, sqliteQueryOnly); err != nil {
			return nil, queryErr(query, err)
		}
	}

	start := time.Now()
	rows, err := c.db.QueryContext(qctx, query)
	if err != nil {
		c.logger.Warn("query rejected", zap.Error(err), zap.String("query", query))
		return nil, queryErr(query, err)
	}
	defer func() {
		if err := rows.Close(); err != nil {
			c.logger.Warn("close rows failed", zap.Error(err))
		}
	}()

	out, err := scanSQLRows(rows)
	if err != nil {
		c.logger.Warn("query failed", zap.Error(err), zap.String("query", query))
		return nil, queryErr(query, err)
	}

	c.logger.Debug("query executed",
		zap.String("query", query),
		zap.Int("rows", len(out)),
		zap.Duration("latency", time.Since(start)),
	)
	return out, nil
}

func scanSQLRows(rows *sql.Rows) ([]domain.Row, error) {
	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	out := make([]domain.Row, 0)
	for rows.Next() {
		values := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}

		row := make(domain.Row, len(cols))
		for i, name := range cols {
			row[name] = domain.FromNative(values[i])
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// TestConnection hace ping sin modificar datos. Espera su turno en el semaforo para no
// competir con un cursor vivo; devuelve false si el almacen no responde.
func (c *SQLConnector) TestConnection(ctx context.Context) bool {
	wctx, cancel := context.WithTimeout(ctx, checkWait(c.timeout, c.probe))
	defer cancel()

	if err := c.sem.Acquire(wctx, 1); err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			c.logger.Warn("connection probe gave up, store busy with in-flight query", zap.Error(err))
		}
		return false
	}
	defer c.sem.Release(1)

	if c.closed || c.db == nil {
		return false
	}
	pctx, cancelPing := context.WithTimeout(ctx, c.probe)
	defer cancelPing()
	if err := c.db.PingContext(pctx); err != nil {
		c.logger.Warn("connection probe failed", zap.Error(err))
		return false
	}
	return true
}

// Close libera el handle compartido. Llamadas posteriores fallan con ErrClosed.
func (c *SQLConnector) Close() error {
	if err := c.sem.Acquire(context.Background(), 1); err != nil {
		return err
	}
	defer c.sem.Release(1)
	if c.closed || c.db == nil {
		return nil
	}
	c.closed = true
	return c.db.Close()
}
