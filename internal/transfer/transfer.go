// Package transfer moves table data between PostgreSQL and CSV files.
//
// Exports stream rows through query.Executor.Stream and write a header row
// followed by one record per row. Imports parse and validate the whole file
// before touching the database, then insert every record inside a single
// transaction. NULL is written and read as the sentinel \N so that it stays
// distinct from an empty string.
package transfer

import (
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/leapstack-labs/pgtool/internal/query"
	"github.com/spf13/afero"
)

// NullSentinel marks a NULL field in CSV files.
const NullSentinel = `\N`

// Options configure a Transfer.
type Options struct {
	// Fs is the filesystem CSV files are read from and written to.
	// Defaults to the OS filesystem.
	Fs afero.Fs
	// ChunkSize bounds the rows buffered while exporting.
	ChunkSize int
	Logger    *slog.Logger
}

// Transfer exports and imports CSV data through one executor.
type Transfer struct {
	exec      *query.Executor
	fs        afero.Fs
	chunkSize int
	logger    *slog.Logger
}

// New returns a Transfer bound to e.
func New(e *query.Executor, opts Options) *Transfer {
	fs := opts.Fs
	if fs == nil {
		fs = afero.NewOsFs()
	}
	chunkSize := opts.ChunkSize
	if chunkSize <= 0 {
		chunkSize = query.DefaultChunkSize
	}
	logger := opts.Logger
	if logger == nil {
		logger = e.Session().Logger()
	}
	return &Transfer{
		exec:      e,
		fs:        fs,
		chunkSize: chunkSize,
		logger:    logger,
	}
}

// formatField renders one value as CSV text.
func formatField(v any) string {
	switch x := v.(type) {
	case nil:
		return NullSentinel
	case string:
		return x
	case []byte:
		return string(x)
	case bool:
		return strconv.FormatBool(x)
	case int64:
		return strconv.FormatInt(x, 10)
	case int32:
		return strconv.FormatInt(int64(x), 10)
	case int:
		return strconv.Itoa(x)
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(x), 'f', -1, 32)
	case time.Time:
		return x.Format(time.RFC3339Nano)
	default:
		return fmt.Sprint(x)
	}
}

// parseField maps the NULL sentinel back to nil.
func parseField(s string) any {
	if s == NullSentinel {
		return nil
	}
	return s
}
