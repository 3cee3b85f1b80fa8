package connector

import (
	"context"
	"database/sql"
	"errors"
	"sync"
	"testing"
	"time"

	_ "modernc.org/sqlite"
)

func newTestDB(t *testing.T) *sql.DB {
	t.Helper()
	handle, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	handle.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = handle.Close() })

	stmts := []string{
		`CREATE TABLE Messages (Id INTEGER PRIMARY KEY AUTOINCREMENT, Date DATETIME NOT NULL, User TEXT NOT NULL, Content TEXT NOT NULL)`,
		`INSERT INTO Messages (Date, User, Content) VALUES ('2024-01-01 10:00:00', 'alice', 'hi')`,
		`INSERT INTO Messages (Date, User, Content) VALUES ('2024-01-01 10:01:00', 'bob', 'hello')`,
	}
	for _, s := range stmts {
		if _, err := handle.Exec(s); err != nil {
			t.Fatalf("seed: %v", err)
		}
	}
	return handle
}

func TestSQLConnector_ProjectedColumns(t *testing.T) {
	conn := NewSQLConnector(newTestDB(t), time.Second, nil)

	rows, err := conn.Execute(context.Background(), "select Id, User from Messages where Id = 1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("expected 1 row, got %d", len(rows))
	}
	row := rows[0]
	if len(row) != 2 {
		t.Fatalf("expected exactly 2 columns, got %v", row.Columns())
	}
	if id, ok := row["Id"].Int(); !ok || id != 1 {
		t.Fatalf("expected Id=1, got %v", row["Id"])
	}
	if user, ok := row["User"].Text(); !ok || user != "alice" {
		t.Fatalf("expected User=alice, got %v", row["User"])
	}
}

func TestSQLConnector_OneRowPerRecord(t *testing.T) {
	conn := NewSQLConnector(newTestDB(t), time.Second, nil)

	rows, err := conn.Execute(context.Background(), "select User as speaker, count(*) as n, null as empty, 1.5 as ratio from Messages group by User order by User")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(rows))
	}
	for _, r := range rows {
		cols := r.Columns()
		if len(cols) != 4 || cols[0] != "empty" || cols[1] != "n" || cols[2] != "ratio" || cols[3] != "speaker" {
			t.Fatalf("unexpected column set: %v", cols)
		}
		if !r["empty"].IsNull() {
			t.Fatalf("expected null, got %v", r["empty"])
		}
		if f, ok := r["ratio"].Float(); !ok || f != 1.5 {
			t.Fatalf("expected float 1.5, got %v", r["ratio"])
		}
	}
	if s, _ := rows[1]["speaker"].Text(); s != "bob" {
		t.Fatalf("expected bob second, got %v", rows[1]["speaker"])
	}
}

func TestSQLConnector_EmptyResultIsNotNil(t *testing.T) {
	conn := NewSQLConnector(newTestDB(t), time.Second, nil)

	rows, err := conn.Execute(context.Background(), "select * from Messages where User = 'nobody'")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rows == nil || len(rows) != 0 {
		t.Fatalf("expected empty non-nil slice, got %#v", rows)
	}
}

func TestSQLConnector_InvalidQueryKeepsConnectionUsable(t *testing.T) {
	conn := NewSQLConnector(newTestDB(t), time.Second, nil)
	ctx := context.Background()

	bad := []string{
		"selec Id from Messages",
		"select Missing from Messages",
		"select * from Nope",
	}
	for _, q := range bad {
		_, err := conn.Execute(ctx, q)
		if !errors.Is(err, ErrQuery) {
			t.Fatalf("query %q: expected ErrQuery, got %v", q, err)
		}
		var qe *QueryError
		if !errors.As(err, &qe) || qe.Query != q {
			t.Fatalf("expected QueryError carrying the query, got %v", err)
		}
	}

	rows, err := conn.Execute(ctx, "select count(*) as n from Messages")
	if err != nil {
		t.Fatalf("connection should stay usable after failures: %v", err)
	}
	if n, _ := rows[0]["n"].Int(); n != 2 {
		t.Fatalf("expected 2 messages, got %v", rows[0]["n"])
	}
	if !conn.TestConnection(ctx) {
		t.Fatalf("expected probe to succeed after failed queries")
	}
}

func TestSQLConnector_SerializesConcurrentCalls(t *testing.T) {
	conn := NewSQLConnector(newTestDB(t), 5*time.Second, nil)
	ctx := context.Background()

	var wg sync.WaitGroup
	errs := make(chan error, 20)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if i%5 == 0 {
				if !conn.TestConnection(ctx) {
					errs <- errors.New("probe failed")
				}
				return
			}
			rows, err := conn.Execute(ctx, "select Id, User, Content from Messages order by Id")
			if err != nil {
				errs <- err
				return
			}
			if len(rows) != 2 {
				errs <- errors.New("unexpected row count")
			}
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Fatalf("concurrent call failed: %v", err)
	}
}

func TestSQLConnector_ClosedConnector(t *testing.T) {
	conn := NewSQLConnector(newTestDB(t), time.Second, nil)
	if err := conn.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if conn.TestConnection(context.Background()) {
		t.Fatalf("expected probe false after close")
	}
	_, err := conn.Execute(context.Background(), "select 1")
	if !errors.Is(err, ErrClosed) || !errors.Is(err, ErrQuery) {
		t.Fatalf("expected ErrClosed wrapped in QueryError, got %v", err)
	}
	if err := conn.Close(); err != nil {
		t.Fatalf("second close should be a no-op, got %v", err)
	}
}

func TestSQLConnector_CancelledContext(t *testing.T) {
	conn := NewSQLConnector(newTestDB(t), time.Second, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := conn.Execute(ctx, "select 1"); !errors.Is(err, ErrQuery) {
		t.Fatalf("expected QueryError on cancelled context, got %v", err)
	}
	rows, err := conn.Execute(context.Background(), "select 1 as one")
	if err != nil || len(rows) != 1 {
		t.Fatalf("expected connector usable after cancellation, got %v %v", rows, err)
	}
}

func TestSQLConnector_DateColumnIsTimestamp(t *testing.T) {
	conn := NewSQLConnector(newTestDB(t), time.Second, nil)

	rows, err := conn.Execute(context.Background(), "select Date from Messages where Id = 1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("expected 1 row, got %d", len(rows))
	}
	got, ok := rows[0]["Date"].Time()
	if !ok {
		t.Fatalf("expected time kind, got %s", rows[0]["Date"].Kind())
	}
	if want := time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC); !got.Equal(want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
}

func TestSQLConnector_ReadOnlyRejectsWrites(t *testing.T) {
	conn := NewSQLConnector(newTestDB(t), time.Second, nil)
	ctx := context.Background()
	if err := conn.EnableReadOnly(ctx); err != nil {
		t.Fatalf("enable read only: %v", err)
	}

	writes := []string{
		"insert into Messages (Date, User, Content) values ('2024-01-02 00:00:00', 'mallory', 'x')",
		"delete from Messages",
		"update Messages set Content = 'x'",
	}
	for _, q := range writes {
		if _, err := conn.Execute(ctx, q); !errors.Is(err, ErrQuery) {
			t.Fatalf("query %q: expected ErrQuery, got %v", q, err)
		}
	}

	// Apagar query_only desde una consulta no habilita la siguiente escritura.
	_, _ = conn.Execute(ctx, "PRAGMA query_only = OFF")
	if _, err := conn.Execute(ctx, writes[0]); !errors.Is(err, ErrQuery) {
		t.Fatalf("expected write rejected after pragma toggle, got %v", err)
	}

	rows, err := conn.Execute(ctx, "select count(*) as n from Messages")
	if err != nil {
		t.Fatalf("reads must keep working: %v", err)
	}
	if n, _ := rows[0]["n"].Int(); n != 2 {
		t.Fatalf("expected 2 messages untouched, got %v", rows[0]["n"])
	}
}

func TestSQLConnector_ConnectionCheckWaitsForInFlightQuery(t *testing.T) {
	conn := NewSQLConnector(newTestDB(t), 200*time.Millisecond, nil)
	conn.probe = 20 * time.Millisecond
	ctx := context.Background()

	t.Run("busy store is not reported down", func(t *testing.T) {
		if err := conn.sem.Acquire(ctx, 1); err != nil {
			t.Fatalf("acquire: %v", err)
		}
		go func() {
			time.Sleep(100 * time.Millisecond)
			conn.sem.Release(1)
		}()
		if !conn.TestConnection(ctx) {
			t.Fatalf("expected probe to wait for the query and succeed")
		}
	})

	t.Run("gives up past the query timeout", func(t *testing.T) {
		if err := conn.sem.Acquire(ctx, 1); err != nil {
			t.Fatalf("acquire: %v", err)
		}
		defer conn.sem.Release(1)
		start := time.Now()
		if conn.TestConnection(ctx) {
			t.Fatalf("expected probe false while the connection stays held")
		}
		if elapsed := time.Since(start); elapsed < 200*time.Millisecond {
			t.Fatalf("probe gave up before the query timeout: %v", elapsed)
		}
	})
}

func TestCheckWait(t *testing.T) {
	if got := checkWait(0, time.Second); got != defaultQueryTimeout+time.Second {
		t.Fatalf("unexpected default wait %v", got)
	}
	if got := checkWait(3*time.Second, time.Second); got != 4*time.Second {
		t.Fatalf("unexpected wait %v", got)
	}
}

var _ QueryExecutor = (*SQLConnector)(nil)
var _ QueryExecutor = (*PgConnector)(nil)
