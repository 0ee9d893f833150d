package transfer

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/leapstack-labs/pgtool/internal/errs"
	"github.com/leapstack-labs/pgtool/internal/query"
	"github.com/leapstack-labs/pgtool/internal/session"
)

// csvData is a fully parsed and validated CSV file.
type csvData struct {
	header  []string
	records [][]string
}

// Import inserts the rows of the CSV file src into ref and returns how
// many rows were inserted. The header row names the target columns.
//
// The file is validated before anything runs. With truncate set the table
// is emptied first in its own committed statement, so a later insert
// failure does not restore the truncated rows. The inserts share one
// transaction and are rolled back together on failure.
func (t *Transfer) Import(ctx context.Context, ref query.TableRef, src string, truncate bool) (int64, error) {
	data, err := t.readCSV(src)
	if err != nil {
		return 0, err
	}

	if truncate {
		if _, err := t.exec.Run(ctx, "TRUNCATE TABLE "+ref.Sanitize(), nil, false); err != nil {
			return 0, err
		}
		t.logger.Info("table truncated", slog.String("table", ref.String()))
	}

	insertSQL := buildInsert(ref, data.header)
	var inserted int64
	err = t.exec.Session().WithTransaction(ctx, func(c *session.Cursor) error {
		stmt, err := c.Prepare(ctx, insertSQL)
		if err != nil {
			return err
		}
		args := make([]any, len(data.header))
		for i, record := range data.records {
			for j, field := range record {
				args[j] = parseField(field)
			}
			if _, err := stmt.ExecContext(ctx, args...); err != nil {
				return session.WrapDriverError(err, fmt.Sprintf("failed to insert record %d", i+1))
			}
			inserted++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	t.logger.Info("import finished",
		slog.String("table", ref.String()),
		slog.String("path", src),
		slog.Int64("rows", inserted))
	return inserted, nil
}

func buildInsert(ref query.TableRef, header []string) string {
	cols := make([]string, len(header))
	placeholders := make([]string, len(header))
	for i, name := range header {
		cols[i] = query.QuoteIdentifier(name)
		placeholders[i] = fmt.Sprintf("$%d", i+1)
	}
	return fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		ref.Sanitize(), strings.Join(cols, ", "), strings.Join(placeholders, ", "))
}

// readCSV parses the whole file and checks its shape.
func (t *Transfer) readCSV(src string) (*csvData, error) {
	f, err := t.fs.Open(src)
	if err != nil {
		return nil, errs.Wrap(errs.KindImport, fmt.Sprintf("failed to open %s", src), err)
	}
	defer func() { _ = f.Close() }()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1

	header, err := r.Read()
	if errors.Is(err, io.EOF) {
		return nil, errs.Newf(errs.KindImport, "CSV file %s has no header row", src)
	}
	if err != nil {
		return nil, errs.Wrap(errs.KindImport, fmt.Sprintf("failed to parse %s", src), err)
	}
	if len(header) > 0 {
		header[0] = strings.TrimPrefix(header[0], "\ufeff")
	}
	for i, name := range header {
		if strings.TrimSpace(name) == "" {
			return nil, errs.Newf(errs.KindImport, "CSV file %s has an empty column name at position %d", src, i+1)
		}
	}

	data := &csvData{header: header}
	for {
		record, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, errs.Wrap(errs.KindImport, fmt.Sprintf("failed to parse %s", src), err)
		}
		if len(record) != len(header) {
			line, _ := r.FieldPos(0)
			return nil, errs.Newf(errs.KindImport,
				"line %d of %s has %d fields, expected %d", line, src, len(record), len(header))
		}
		data.records = append(data.records, record)
	}
	return data, nil
}
