// Package query runs SQL against a session and shapes the results.
package query

import (
	"context"
	"database/sql"
	"log/slog"

	"github.com/leapstack-labs/pgtool/internal/session"
)

// Result is the outcome of Run. A nil Columns slice means the statement
// produced no result set; a non-nil empty Rows slice is a valid zero-row
// result.
type Result struct {
	Columns []string
	Rows    [][]any
	// RowsAffected is reported for statements without a result set, -1 when
	// the driver does not know it.
	RowsAffected int64
}

// NoRows reports whether the statement returned no result set at all.
func (r *Result) NoRows() bool {
	return r.Columns == nil
}

// Executor runs statements on one session.
type Executor struct {
	s      *session.Session
	logger *slog.Logger
}

// NewExecutor returns an Executor bound to s.
func NewExecutor(s *session.Session) *Executor {
	return &Executor{s: s, logger: s.Logger()}
}

// Session returns the underlying session.
func (e *Executor) Session() *session.Session {
	return e.s
}

// Run executes query with positional parameters ($1, $2, ...).
//
// With fetch set and a statement that reports columns, every row is read
// and the transaction is left open. With fetch set and no columns, or with
// fetch unset, the session is committed and a no-rows Result is returned.
func (e *Executor) Run(ctx context.Context, query string, params []any, fetch bool) (*Result, error) {
	var result *Result
	err := e.s.WithCursor(ctx, func(c *session.Cursor) error {
		if !fetch {
			res, err := c.Exec(ctx, query, params...)
			if err != nil {
				return err
			}
			result = &Result{RowsAffected: rowsAffected(res)}
			return nil
		}

		rows, err := c.Query(ctx, query, params...)
		if err != nil {
			return err
		}
		defer rows.Close()

		cols, err := rows.Columns()
		if err != nil {
			return err
		}
		if len(cols) == 0 {
			result = &Result{RowsAffected: -1}
			return rows.Close()
		}

		data, err := scanAll(rows, len(cols))
		if err != nil {
			return err
		}
		result = &Result{Columns: cols, Rows: data, RowsAffected: int64(len(data))}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if result.NoRows() {
		if err := e.s.Commit(ctx); err != nil {
			return nil, err
		}
	}
	e.logger.Debug("statement finished",
		slog.Bool("fetch", fetch),
		slog.Int("columns", len(result.Columns)),
		slog.Int64("rows", result.RowsAffected))
	return result, nil
}

// RunScript executes a multi-statement script and commits it.
func (e *Executor) RunScript(ctx context.Context, script string) error {
	if err := e.s.WithCursor(ctx, func(c *session.Cursor) error {
		return c.ExecScript(ctx, script)
	}); err != nil {
		return err
	}
	return e.s.Commit(ctx)
}

func rowsAffected(res sql.Result) int64 {
	n, err := res.RowsAffected()
	if err != nil {
		return -1
	}
	return n
}

func scanAll(rows *sql.Rows, width int) ([][]any, error) {
	out := make([][]any, 0)
	for rows.Next() {
		row, err := scanRow(rows, width)
		if err != nil {
			return nil, err
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func scanRow(rows *sql.Rows, width int) ([]any, error) {
	values := make([]any, width)
	valuePtrs := make([]any, width)
	for i := range values {
		valuePtrs[i] = &values[i]
	}
	if err := rows.Scan(valuePtrs...); err != nil {
		return nil, err
	}
	for i, v := range values {
		// Convert []byte to string for readability
		if b, ok := v.([]byte); ok {
			values[i] = string(b)
		}
	}
	return values, nil
}
