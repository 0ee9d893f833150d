package query

import (
	"context"
	"database/sql"
	"log/slog"

	"github.com/leapstack-labs/pgtool/internal/session"
)

// DefaultChunkSize is the batch size used when Stream is given none.
const DefaultChunkSize = 1000

// RowStream yields the rows of a query one at a time while reading them
// from the server in batches of at most ChunkSize. It holds the session
// cursor until the rows are exhausted or Close is called, and can be
// iterated only once.
//
//	for stream.Next() {
//	    row := stream.Row()
//	}
//	if err := stream.Err(); err != nil { ... }
type RowStream struct {
	ctx       context.Context
	s         *session.Session
	cursor    *session.Cursor
	rows      *sql.Rows
	columns   []string
	chunkSize int

	batch   [][]any
	pos     int
	current []any
	err     error
	done    bool
	logger  *slog.Logger
}

// Stream starts query and returns a stream over its rows. When the
// statement reports no columns, Columns returns nil and the stream is
// already exhausted. chunkSize <= 0 uses DefaultChunkSize.
func (e *Executor) Stream(ctx context.Context, query string, params []any, chunkSize int) (*RowStream, error) {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}

	c, err := e.s.Cursor()
	if err != nil {
		return nil, err
	}

	rows, err := c.Query(ctx, query, params...)
	if err != nil {
		e.abort(ctx, c)
		return nil, err
	}
	cols, err := rows.Columns()
	if err != nil {
		e.abort(ctx, c)
		return nil, session.WrapDriverError(err, "failed to read columns")
	}

	st := &RowStream{
		ctx:       ctx,
		s:         e.s,
		cursor:    c,
		rows:      rows,
		chunkSize: chunkSize,
		batch:     make([][]any, 0, chunkSize),
		logger:    e.logger,
	}
	if len(cols) == 0 {
		st.finish()
		return st, nil
	}
	st.columns = cols
	return st, nil
}

func (e *Executor) abort(ctx context.Context, c *session.Cursor) {
	_ = c.Close()
	if err := e.s.Rollback(ctx); err != nil {
		e.logger.Warn("rollback after failed query failed", slog.String("error", err.Error()))
	}
}

// Columns returns the column names, or nil when the statement produced no
// result set.
func (r *RowStream) Columns() []string {
	return r.columns
}

// ChunkSize returns the maximum number of rows buffered at once.
func (r *RowStream) ChunkSize() int {
	return r.chunkSize
}

// Next advances to the next row. It returns false when the rows are
// exhausted or an error occurred; check Err afterwards.
func (r *RowStream) Next() bool {
	if r.pos >= len(r.batch) {
		if r.done {
			r.current = nil
			return false
		}
		r.fill()
		if len(r.batch) == 0 {
			r.current = nil
			return false
		}
	}
	r.current = r.batch[r.pos]
	r.pos++
	return true
}

// Row returns the current row. Byte slices are surfaced as strings.
func (r *RowStream) Row() []any {
	return r.current
}

// Err returns the error that stopped iteration, if any.
func (r *RowStream) Err() error {
	return r.err
}

// Close releases the cursor. It is safe to call after the stream finished.
func (r *RowStream) Close() error {
	if r.done {
		return nil
	}
	r.finish()
	return r.err
}

// fill reads the next batch, reusing the batch slice.
func (r *RowStream) fill() {
	clear(r.batch)
	r.batch = r.batch[:0]
	r.pos = 0

	width := len(r.columns)
	for len(r.batch) < r.chunkSize && r.rows.Next() {
		row, err := scanRow(r.rows, width)
		if err != nil {
			r.err = session.WrapDriverError(err, "failed to read row")
			r.finish()
			return
		}
		r.batch = append(r.batch, row)
	}

	if len(r.batch) < r.chunkSize {
		if err := r.rows.Err(); err != nil {
			r.err = session.WrapDriverError(err, "failed to read rows")
		}
		r.finish()
	}
	r.logger.Debug("stream batch", slog.Int("rows", len(r.batch)))
}

// finish closes the cursor; a failed stream also rolls back.
func (r *RowStream) finish() {
	if r.done {
		return
	}
	r.done = true
	if err := r.cursor.Close(); err != nil && r.err == nil {
		r.err = err
	}
	if r.err != nil {
		if err := r.s.Rollback(r.ctx); err != nil {
			r.logger.Warn("rollback after stream failure failed", slog.String("error", err.Error()))
		}
	}
}
