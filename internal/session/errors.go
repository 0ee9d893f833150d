package session

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"net"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/leapstack-labs/pgtool/internal/errs"
)

// pgClassConnection is the SQLSTATE class for connection exceptions.
const pgClassConnection = "08"

// mapError translates driver errors into *errs.Error. Errors that already
// carry a kind pass through unchanged.
func mapError(err error, msg string) error {
	if err == nil {
		return nil
	}

	var e *errs.Error
	if errors.As(err, &e) && e.Kind != errs.KindUnknown {
		return err
	}

	// Postgres server-side error (SQLSTATE codes)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		if len(pgErr.Code) >= 2 && pgErr.Code[:2] == pgClassConnection {
			return errs.Wrap(errs.KindConnection, msg, err)
		}
		return errs.Wrap(errs.KindQuery, msg, err)
	}

	if isConnectionLoss(err) {
		return errs.Wrap(errs.KindConnection, msg, err)
	}
	return errs.Wrap(errs.KindQuery, msg, err)
}

// isConnectionLoss reports errors that leave the session without a usable
// connection.
func isConnectionLoss(err error) bool {
	if errors.Is(err, driver.ErrBadConn) || errors.Is(err, sql.ErrConnDone) {
		return true
	}
	if pgconn.SafeToRetry(err) || pgconn.Timeout(err) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	var connectErr *pgconn.ConnectError
	return errors.As(err, &connectErr) && !errors.Is(err, context.Canceled)
}

// WrapDriverError classifies err the way session operations do. Callers
// reading rows outside a cursor callback use it for scan and iteration
// errors.
func WrapDriverError(err error, msg string) error {
	return mapError(err, msg)
}
