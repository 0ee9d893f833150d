// Package render prints query results for the operator.
package render

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/leapstack-labs/pgtool/internal/errs"
	"github.com/leapstack-labs/pgtool/internal/query"
)

// Format selects how results are printed.
type Format string

const (
	FormatTable    Format = "table"
	FormatJSON     Format = "json"
	FormatCSV      Format = "csv"
	FormatMarkdown Format = "markdown"
)

// NullDisplay is printed for NULL values in table, CSV and Markdown output.
const NullDisplay = "NULL"

// Formats lists the accepted --format values.
func Formats() []string {
	return []string{string(FormatTable), string(FormatJSON), string(FormatCSV), string(FormatMarkdown)}
}

// ParseFormat validates a --format value. "md" is accepted for Markdown and
// an empty value selects the table format.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "table":
		return FormatTable, nil
	case "json":
		return FormatJSON, nil
	case "csv":
		return FormatCSV, nil
	case "md", "markdown":
		return FormatMarkdown, nil
	default:
		return "", errs.Newf(errs.KindConfig, "unknown output format %q (expected one of %s)", s, strings.Join(Formats(), ", "))
	}
}

// Renderer writes results to w in one format.
type Renderer struct {
	w      io.Writer
	format Format
}

// New returns a Renderer writing to w.
func New(w io.Writer, format Format) *Renderer {
	if format == "" {
		format = FormatTable
	}
	return &Renderer{w: w, format: format}
}

// Writer returns the destination writer.
func (r *Renderer) Writer() io.Writer {
	return r.w
}

// Format returns the selected output format.
func (r *Renderer) Format() Format {
	return r.format
}

// Result prints res. A statement without a result set prints a
// confirmation with the affected row count when it is known.
func (r *Renderer) Result(res *query.Result) error {
	if res.NoRows() {
		if res.RowsAffected >= 0 {
			r.Messagef("Query executed successfully, no rows returned (%d rows affected)", res.RowsAffected)
		} else {
			r.Messagef("Query executed successfully, no rows returned")
		}
		return nil
	}

	switch r.format {
	case FormatJSON:
		return renderJSON(r.w, res)
	case FormatCSV:
		return renderCSV(r.w, res)
	case FormatMarkdown:
		return renderMarkdown(r.w, res)
	default:
		return renderTable(r.w, res)
	}
}

// Messagef prints one informational line.
func (r *Renderer) Messagef(format string, args ...any) {
	_, _ = fmt.Fprintf(r.w, format+"\n", args...)
}

func renderTable(w io.Writer, res *query.Result) error {
	if len(res.Rows) == 0 {
		_, _ = fmt.Fprintln(w, "(0 rows)")
		return nil
	}

	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)

	// Header
	headerRow := make(table.Row, len(res.Columns))
	for i, col := range res.Columns {
		headerRow[i] = col
	}
	t.AppendHeader(headerRow)

	// Rows
	for _, values := range res.Rows {
		row := make(table.Row, len(values))
		for i, v := range values {
			row[i] = formatValue(v)
		}
		t.AppendRow(row)
	}

	t.Render()
	_, _ = fmt.Fprintf(w, "(%d rows)\n", len(res.Rows))
	return nil
}

func renderJSON(w io.Writer, res *query.Result) error {
	results := make([]map[string]any, 0, len(res.Rows))
	for _, values := range res.Rows {
		row := make(map[string]any, len(res.Columns))
		for i, col := range res.Columns {
			row[col] = values[i]
		}
		results = append(results, row)
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(results)
}

func renderCSV(w io.Writer, res *query.Result) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(res.Columns); err != nil {
		return err
	}
	record := make([]string, len(res.Columns))
	for _, values := range res.Rows {
		for i, v := range values {
			record[i] = formatValue(v)
		}
		if err := cw.Write(record); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func renderMarkdown(w io.Writer, res *query.Result) error {
	if len(res.Rows) == 0 {
		_, _ = fmt.Fprintln(w, "(0 rows)")
		return nil
	}

	// Header
	_, _ = fmt.Fprintf(w, "| %s |\n", strings.Join(res.Columns, " | "))
	// Separator
	seps := make([]string, len(res.Columns))
	for i := range seps {
		seps[i] = "---"
	}
	_, _ = fmt.Fprintf(w, "| %s |\n", strings.Join(seps, " | "))

	// Rows
	for _, values := range res.Rows {
		cells := make([]string, len(values))
		for i, v := range values {
			cells[i] = strings.ReplaceAll(formatValue(v), "|", `\|`)
		}
		_, _ = fmt.Fprintf(w, "| %s |\n", strings.Join(cells, " | "))
	}
	return nil
}

func formatValue(v any) string {
	switch x := v.(type) {
	case nil:
		return NullDisplay
	case time.Time:
		return x.Format(time.RFC3339Nano)
	default:
		return fmt.Sprintf("%v", v)
	}
}
