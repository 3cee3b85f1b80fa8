// Package connector ejecuta consultas SQL arbitrarias y devuelve filas sin esquema.
//
// Los conectores no validan ni sanean la consulta: el llamador (el pipeline) es quien
// restringe su forma. Ninguno escribe en el almacen: la sesion del conector es de solo
// lectura y cualquier escritura falla con ErrQuery. Todas las consultas pasan por una
// unica conexion compartida con acceso serializado, una consulta en vuelo a la vez.
package connector

import (
	"context"
	"errors"
	"fmt"
	"time"

	"tagrag/internal/domain"
)

// QueryExecutor es el contrato que consume el pipeline como herramienta.
type QueryExecutor interface {
	Execute(ctx context.Context, query string) ([]domain.Row, error)
	TestConnection(ctx context.Context) bool
}

var (
	// ErrQuery se compara con errors.Is contra cualquier *QueryError.
	ErrQuery  = errors.New("query failed")
	ErrClosed = errors.New("connector closed")
)

// QueryError envuelve fallas de sintaxis, esquema o conectividad durante Execute.
type QueryError struct {
	Query string
	Err   error
}

func (e *QueryError) Error() string {
	return fmt.Sprintf("query failed: %v", e.Err)
}

func (e *QueryError) Unwrap() error { return e.Err }

func (e *QueryError) Is(target error) bool { return target == ErrQuery }

func queryErr(query string, err error) error {
	return &QueryError{Query: query, Err: err}
}

const (
	defaultQueryTimeout = 15 * time.Second
	probeTimeout        = 2 * time.Second
)

// checkWait es cuanto espera TestConnection a que termine la consulta en vuelo: una
// consulta nunca dura mas que su timeout, asi que un almacen ocupado no se reporta caido.
func checkWait(timeout, probe time.Duration) time.Duration {
	if timeout <= 0 {
		timeout = defaultQueryTimeout
	}
	return timeout + probe
}

func withQueryTimeout(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		timeout = defaultQueryTimeout
	}
	return context.WithTimeout(ctx, timeout)
}
