// Package session owns the single PostgreSQL connection used by a pgtool
// invocation or an interactive shell.
//
// A Session pins exactly one connection from a *sql.DB limited to one open
// connection. Unless autocommit is enabled the first statement begins a
// transaction lazily; Commit and Rollback end it. Work happens through a
// Cursor, and at most one cursor is active at a time. A Session is not safe
// for concurrent use.
package session

import (
	"context"
	"database/sql"
	"log/slog"

	"github.com/google/uuid"
	// Register the "pgx" database/sql driver.
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/leapstack-labs/pgtool/internal/config"
	"github.com/leapstack-labs/pgtool/internal/errs"
)

// DriverName is the database/sql driver used by Open.
const DriverName = "pgx"

// Options configure a Session.
type Options struct {
	// Autocommit runs every statement in its own implicit transaction.
	Autocommit bool
	Logger     *slog.Logger
}

// querier is satisfied by both *sql.Conn and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	PrepareContext(ctx context.Context, query string) (*sql.Stmt, error)
}

// Session wraps one live database connection.
type Session struct {
	id         uuid.UUID
	db         *sql.DB
	conn       *sql.Conn
	tx         *sql.Tx
	autocommit bool
	closed     bool
	cursor     *Cursor
	logger     *slog.Logger
}

// Open connects to PostgreSQL using cfg and returns a ready Session.
func Open(ctx context.Context, cfg config.ConnectionConfig, opts Options) (*Session, error) {
	if opts.Logger != nil {
		opts.Logger.Debug("opening connection", slog.String("conninfo", cfg.Redacted().ConnString()))
	}
	db, err := sql.Open(DriverName, cfg.ConnString())
	if err != nil {
		return nil, errs.Wrap(errs.KindConnection, "failed to open connection", err)
	}
	return New(ctx, db, opts)
}

// New wraps an already opened *sql.DB. The pool is restricted to one
// connection, which is pinned and pinged before New returns. On failure db
// is closed.
func New(ctx context.Context, db *sql.DB, opts Options) (*Session, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	conn, err := db.Conn(ctx)
	if err != nil {
		_ = db.Close()
		return nil, errs.Wrap(errs.KindConnection, "failed to connect", err)
	}
	if err := conn.PingContext(ctx); err != nil {
		_ = conn.Close()
		_ = db.Close()
		return nil, errs.Wrap(errs.KindConnection, "failed to connect", err)
	}

	id := uuid.New()
	s := &Session{
		id:         id,
		db:         db,
		conn:       conn,
		autocommit: opts.Autocommit,
		logger:     logger.With(slog.String("session", id.String())),
	}
	s.logger.Debug("session opened", slog.Bool("autocommit", s.autocommit))
	return s, nil
}

// ID returns the identifier used to correlate log lines of this session.
func (s *Session) ID() uuid.UUID {
	return s.id
}

// Logger returns the session-scoped logger.
func (s *Session) Logger() *slog.Logger {
	return s.logger
}

// Autocommit reports whether statements run outside an explicit transaction.
func (s *Session) Autocommit() bool {
	return s.autocommit
}

// Closed reports whether Close has been called.
func (s *Session) Closed() bool {
	return s.closed
}

// InTransaction reports whether a transaction is currently open.
func (s *Session) InTransaction() bool {
	return s.tx != nil
}

// Cursor acquires the session cursor. The caller must Close it. Acquiring
// a second cursor while one is active fails.
func (s *Session) Cursor() (*Cursor, error) {
	if s.closed {
		return nil, errs.ErrSessionClosed
	}
	if s.cursor != nil {
		return nil, errs.New(errs.KindQuery, "another cursor is already active on this session")
	}
	c := &Cursor{s: s}
	s.cursor = c
	return c, nil
}

// WithCursor runs fn with a cursor that is released when fn returns, fails
// or panics. When fn fails the open transaction is rolled back so the
// session stays usable.
func (s *Session) WithCursor(ctx context.Context, fn func(*Cursor) error) (err error) {
	c, err := s.Cursor()
	if err != nil {
		return err
	}

	panicked := true
	defer func() {
		closeErr := c.Close()
		if panicked || err != nil {
			if rbErr := s.Rollback(ctx); rbErr != nil {
				s.logger.Warn("rollback after failure failed", slog.String("error", rbErr.Error()))
			}
		}
		if err == nil && closeErr != nil {
			err = closeErr
		}
	}()

	err = fn(c)
	panicked = false
	return mapError(err, "query failed")
}

// WithTransaction runs fn inside one transaction, even in autocommit mode,
// and commits once on success. Any error rolls the transaction back.
func (s *Session) WithTransaction(ctx context.Context, fn func(*Cursor) error) error {
	if s.closed {
		return errs.ErrSessionClosed
	}
	if err := s.begin(ctx); err != nil {
		return err
	}
	if err := s.WithCursor(ctx, fn); err != nil {
		return err
	}
	return s.Commit(ctx)
}

// Commit commits the open transaction. Without one it does nothing.
func (s *Session) Commit(ctx context.Context) error {
	if s.closed {
		return errs.ErrSessionClosed
	}
	if s.tx == nil {
		return nil
	}
	tx := s.tx
	s.tx = nil
	if err := tx.Commit(); err != nil {
		return mapError(err, "commit failed")
	}
	s.logger.Debug("transaction committed")
	return nil
}

// Rollback aborts the open transaction. Without one it does nothing.
func (s *Session) Rollback(ctx context.Context) error {
	if s.closed {
		return errs.ErrSessionClosed
	}
	if s.tx == nil {
		return nil
	}
	tx := s.tx
	s.tx = nil
	if err := tx.Rollback(); err != nil {
		return mapError(err, "rollback failed")
	}
	s.logger.Debug("transaction rolled back")
	return nil
}

// Close releases the connection. A pending transaction is rolled back.
// Calling Close more than once is safe.
func (s *Session) Close() error {
	if s.closed {
		return nil
	}

	var firstErr error
	if s.cursor != nil {
		firstErr = s.cursor.Close()
	}
	if s.tx != nil {
		if err := s.tx.Rollback(); err != nil && firstErr == nil {
			firstErr = mapError(err, "rollback on close failed")
		}
		s.tx = nil
	}
	s.closed = true

	if err := s.conn.Close(); err != nil && firstErr == nil {
		firstErr = mapError(err, "failed to close connection")
	}
	if err := s.db.Close(); err != nil && firstErr == nil {
		firstErr = mapError(err, "failed to close connection")
	}
	s.logger.Debug("session closed")
	return firstErr
}

// begin starts a transaction if none is open.
func (s *Session) begin(ctx context.Context) error {
	if s.tx != nil {
		return nil
	}
	tx, err := s.conn.BeginTx(ctx, nil)
	if err != nil {
		return mapError(err, "failed to begin transaction")
	}
	s.tx = tx
	s.logger.Debug("transaction started")
	return nil
}

// querier returns the handle statements run on, beginning the lazy
// transaction when autocommit is off.
func (s *Session) querier(ctx context.Context) (querier, error) {
	if s.closed {
		return nil, errs.ErrSessionClosed
	}
	if s.tx != nil {
		return s.tx, nil
	}
	if s.autocommit {
		return s.conn, nil
	}
	if err := s.begin(ctx); err != nil {
		return nil, err
	}
	return s.tx, nil
}
