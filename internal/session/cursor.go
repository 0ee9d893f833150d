package session

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"

	"github.com/jackc/pgx/v5/stdlib"
	"github.com/leapstack-labs/pgtool/internal/errs"
)

// errNotPgx signals that the pinned connection is not a pgx connection and
// the script must go through database/sql instead.
var errNotPgx = errors.New("not a pgx connection")

// Cursor runs statements on its session and tracks the rows and prepared
// statements it opened so Close can release them.
type Cursor struct {
	s      *Session
	rows   []*sql.Rows
	stmts  []*sql.Stmt
	closed bool
}

// Query runs a statement that returns rows. The rows stay owned by the
// cursor; callers may close them early.
func (c *Cursor) Query(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	q, err := c.querier(ctx)
	if err != nil {
		return nil, err
	}
	c.s.logger.Debug("query", slog.String("sql", query), slog.Int("params", len(args)))
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, mapError(err, "query failed")
	}
	c.rows = append(c.rows, rows)
	return rows, nil
}

// Exec runs a statement that returns no rows.
func (c *Cursor) Exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	q, err := c.querier(ctx)
	if err != nil {
		return nil, err
	}
	c.s.logger.Debug("exec", slog.String("sql", query), slog.Int("params", len(args)))
	res, err := q.ExecContext(ctx, query, args...)
	if err != nil {
		return nil, mapError(err, "statement failed")
	}
	return res, nil
}

// Prepare creates a prepared statement closed together with the cursor.
func (c *Cursor) Prepare(ctx context.Context, query string) (*sql.Stmt, error) {
	q, err := c.querier(ctx)
	if err != nil {
		return nil, err
	}
	c.s.logger.Debug("prepare", slog.String("sql", query))
	stmt, err := q.PrepareContext(ctx, query)
	if err != nil {
		return nil, mapError(err, "prepare failed")
	}
	c.stmts = append(c.stmts, stmt)
	return stmt, nil
}

// ExecScript runs a script that may hold several statements separated by
// semicolons. On pgx connections the script is sent with the simple query
// protocol; other drivers receive it through ExecContext.
func (c *Cursor) ExecScript(ctx context.Context, script string) error {
	q, err := c.querier(ctx)
	if err != nil {
		return err
	}
	c.s.logger.Debug("script", slog.Int("bytes", len(script)))

	err = c.s.conn.Raw(func(driverConn any) error {
		pc, ok := driverConn.(*stdlib.Conn)
		if !ok {
			return errNotPgx
		}
		_, err := pc.Conn().PgConn().Exec(ctx, script).ReadAll()
		return err
	})
	if errors.Is(err, errNotPgx) {
		_, err = q.ExecContext(ctx, script)
	}
	if err != nil {
		return mapError(err, "script failed")
	}
	return nil
}

// Close releases every rows and statement the cursor opened and frees the
// session for the next cursor. It is idempotent.
func (c *Cursor) Close() error {
	if c.closed {
		return nil
	}
	c.closed = true

	var firstErr error
	for _, rows := range c.rows {
		if err := rows.Close(); err != nil && firstErr == nil {
			firstErr = mapError(err, "failed to close rows")
		}
	}
	for _, stmt := range c.stmts {
		if err := stmt.Close(); err != nil && firstErr == nil {
			firstErr = mapError(err, "failed to close statement")
		}
	}
	c.rows = nil
	c.stmts = nil

	if c.s.cursor == c {
		c.s.cursor = nil
	}
	return firstErr
}

// Closed reports whether Close has been called.
func (c *Cursor) Closed() bool {
	return c.closed
}

// Session returns the session the cursor belongs to.
func (c *Cursor) Session() *Session {
	return c.s
}

func (c *Cursor) querier(ctx context.Context) (querier, error) {
	if c.s.closed {
		return nil, errs.ErrSessionClosed
	}
	if c.closed {
		return nil, errs.New(errs.KindQuery, "cursor is closed")
	}
	return c.s.querier(ctx)
}
