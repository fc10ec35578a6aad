package postgres_test

import (
	"context"
	"errors"
	"fmt"
	"reflect"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

type call struct {
	sql  string
	args []any
}

// poolStub implements postgres.PgxPool. Exec returns the queued tags in order;
// QueryRow and Query serve the queued rows.
type poolStub struct {
	calls   []call
	tags    []pgconn.CommandTag
	execErr error
	rows    [][]any
	rowErr  error
	listed  [][]any
}

func (p *poolStub) Exec(_ context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	p.calls = append(p.calls, call{sql, args})
	if p.execErr != nil {
		return pgconn.CommandTag{}, p.execErr
	}
	if len(p.tags) == 0 {
		return pgconn.NewCommandTag("UPDATE 1"), nil
	}
	t := p.tags[0]
	p.tags = p.tags[1:]
	return t, nil
}

func (p *poolStub) QueryRow(_ context.Context, sql string, args ...any) pgx.Row {
	p.calls = append(p.calls, call{sql, args})
	if p.rowErr != nil {
		return rowStub{err: p.rowErr}
	}
	if len(p.rows) == 0 {
		return rowStub{err: pgx.ErrNoRows}
	}
	r := p.rows[0]
	p.rows = p.rows[1:]
	return rowStub{vals: r}
}

func (p *poolStub) Query(_ context.Context, sql string, args ...any) (pgx.Rows, error) {
	p.calls = append(p.calls, call{sql, args})
	if p.rowErr != nil {
		return nil, p.rowErr
	}
	return &rowsStub{data: p.listed, idx: -1}, nil
}

type rowStub struct {
	vals []any
	err  error
}

func (r rowStub) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	return assign(dest, r.vals)
}

func assign(dest, vals []any) error {
	if len(dest) != len(vals) {
		return fmt.Errorf("scan: %d destinations for %d values", len(dest), len(vals))
	}
	for i, d := range dest {
		dv := reflect.ValueOf(d)
		if dv.Kind() != reflect.Pointer {
			return errors.New("scan: destination is not a pointer")
		}
		dv.Elem().Set(reflect.ValueOf(vals[i]))
	}
	return nil
}

type rowsStub struct {
	data [][]any
	idx  int
}

func (r *rowsStub) Close()                                       {}
func (r *rowsStub) Err() error                                   { return nil }
func (r *rowsStub) CommandTag() pgconn.CommandTag                { return pgconn.NewCommandTag("SELECT") }
func (r *rowsStub) FieldDescriptions() []pgconn.FieldDescription { return nil }
func (r *rowsStub) Next() bool                                   { r.idx++; return r.idx < len(r.data) }
func (r *rowsStub) Scan(dest ...any) error                       { return assign(dest, r.data[r.idx]) }
func (r *rowsStub) Values() ([]any, error)                       { return r.data[r.idx], nil }
func (r *rowsStub) RawValues() [][]byte                          { return nil }
func (r *rowsStub) Conn() *pgx.Conn                              { return nil }
