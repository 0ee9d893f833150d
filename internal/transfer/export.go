package transfer

import (
	"context"
	"encoding/csv"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/leapstack-labs/pgtool/internal/errs"
	"github.com/leapstack-labs/pgtool/internal/query"
)

// ExportQuery runs sql and writes its rows to dest as CSV. It returns the
// number of data rows written. A statement without a result set yields a
// NoData error and no file is created.
func (t *Transfer) ExportQuery(ctx context.Context, sql string, params []any, dest string) (int64, error) {
	st, err := t.exec.Stream(ctx, sql, params, t.chunkSize)
	if err != nil {
		return 0, err
	}
	defer func() { _ = st.Close() }()

	cols := st.Columns()
	if cols == nil {
		return 0, errs.New(errs.KindNoData, "query did not return any data to export")
	}

	n, err := t.writeCSV(st, cols, dest)
	if err != nil {
		if rmErr := t.fs.Remove(dest); rmErr != nil {
			t.logger.Debug("could not remove partial export", slog.String("path", dest), slog.String("error", rmErr.Error()))
		}
		return 0, err
	}

	t.logger.Info("export finished", slog.String("path", dest), slog.Int64("rows", n))
	return n, nil
}

// ExportTable writes every row of ref to dest as CSV.
func (t *Transfer) ExportTable(ctx context.Context, ref query.TableRef, dest string) (int64, error) {
	return t.ExportQuery(ctx, "SELECT * FROM "+ref.Sanitize(), nil, dest)
}

func (t *Transfer) writeCSV(st *query.RowStream, cols []string, dest string) (int64, error) {
	if dir := filepath.Dir(dest); dir != "" && dir != "." {
		if err := t.fs.MkdirAll(dir, 0o755); err != nil {
			return 0, fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}

	f, err := t.fs.Create(dest)
	if err != nil {
		return 0, fmt.Errorf("failed to create %s: %w", dest, err)
	}
	defer func() { _ = f.Close() }()

	w := csv.NewWriter(f)
	if err := w.Write(cols); err != nil {
		return 0, fmt.Errorf("failed to write header: %w", err)
	}

	var n int64
	record := make([]string, len(cols))
	for st.Next() {
		for i, v := range st.Row() {
			record[i] = formatField(v)
		}
		if err := w.Write(record); err != nil {
			return 0, fmt.Errorf("failed to write row %d: %w", n+1, err)
		}
		n++
	}
	if err := st.Err(); err != nil {
		return 0, err
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return 0, fmt.Errorf("failed to write %s: %w", dest, err)
	}
	if err := f.Close(); err != nil {
		return 0, fmt.Errorf("failed to close %s: %w", dest, err)
	}
	return n, nil
}
