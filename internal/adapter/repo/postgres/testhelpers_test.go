package postgres_test

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// rowStub implements pgx.Row
type rowStub struct{ scan func(dest ...any) error }

func (r rowStub) Scan(dest ...any) error { return r.scan(dest...) }

// rowsStub implements pgx.Rows over a slice of scan funcs, one per row.
type rowsStub struct {
	rows []func(dest ...any) error
	idx  int
	err  error
}

func (r *rowsStub) Close()                                       {}
func (r *rowsStub) Err() error                                   { return r.err }
func (r *rowsStub) CommandTag() pgconn.CommandTag                { return pgconn.CommandTag{} }
func (r *rowsStub) FieldDescriptions() []pgconn.FieldDescription { return nil }
func (r *rowsStub) Next() bool {
	if r.idx >= len(r.rows) {
		return false
	}
	r.idx++
	return true
}
func (r *rowsStub) Scan(dest ...any) error  { return r.rows[r.idx-1](dest...) }
func (r *rowsStub) Values() ([]any, error)  { return nil, nil }
func (r *rowsStub) RawValues() [][]byte     { return nil }
func (r *rowsStub) Conn() *pgx.Conn         { return nil }

// poolStub implements postgres.PgxPool for tests. Shared across the package's
// test files so each can configure just the calls it cares about.
type poolStub struct {
	execErr  error
	execArgs []any
	execSQL  string
	row      rowStub
	queryFn  func(sql string, args ...any) (pgx.Rows, error)
}

func (p *poolStub) Exec(_ context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	p.execSQL = sql
	p.execArgs = args
	return pgconn.CommandTag{}, p.execErr
}

func (p *poolStub) QueryRow(_ context.Context, _ string, _ ...any) pgx.Row {
	if p.row.scan == nil {
		return rowStub{scan: func(_ ...any) error { return errors.New("no row configured") }}
	}
	return p.row
}

func (p *poolStub) Query(_ context.Context, sql string, args ...any) (pgx.Rows, error) {
	if p.queryFn == nil {
		return nil, errors.New("no query configured")
	}
	return p.queryFn(sql, args...)
}
