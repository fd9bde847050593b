package postgres_test

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

func assignTime(dest any, v any) error {
	d, ok := dest.(*time.Time)
	if !ok {
		return errors.New("unsupported dest type")
	}
	t, ok := v.(time.Time)
	if !ok {
		return errors.New("value is not a time")
	}
	*d = t
	return nil
}

// rowStub implements pgx.Row.
type rowStub struct{ scan func(dest ...any) error }

func (r rowStub) Scan(dest ...any) error { return r.scan(dest...) }

// rowsStub implements pgx.Rows over pre-baked scan rows.
type rowsStub struct {
	rows [][]any
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

func (r *rowsStub) Scan(dest ...any) error {
	row := r.rows[r.idx-1]
	if len(dest) != len(row) {
		return errors.New("column count mismatch")
	}
	for i, v := range row {
		switch d := dest[i].(type) {
		case *string:
			*d = v.(string)
		default:
			if err := assignTime(dest[i], v); err != nil {
				return err
			}
		}
	}
	return nil
}

func (r *rowsStub) Values() ([]any, error) { return nil, nil }
func (r *rowsStub) RawValues() [][]byte    { return nil }
func (r *rowsStub) Conn() *pgx.Conn        { return nil }

// poolStub implements postgres.PgxPool for tests.
type poolStub struct {
	execErr  error
	execTag  pgconn.CommandTag
	execSQL  []string
	execArgs [][]any
	row      rowStub
	rows     *rowsStub
	queryErr error
}

func (p *poolStub) Exec(_ context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	p.execSQL = append(p.execSQL, sql)
	p.execArgs = append(p.execArgs, args)
	return p.execTag, p.execErr
}

func (p *poolStub) QueryRow(_ context.Context, _ string, _ ...any) pgx.Row {
	if p.row.scan == nil {
		return rowStub{scan: func(_ ...any) error { return errors.New("no row configured") }}
	}
	return p.row
}

func (p *poolStub) Query(_ context.Context, _ string, _ ...any) (pgx.Rows, error) {
	if p.queryErr != nil {
		return nil, p.queryErr
	}
	if p.rows == nil {
		return &rowsStub{}, nil
	}
	return p.rows, nil
}
