// Package schema reads table and column metadata from information_schema.
package schema

import (
	"context"
	"fmt"
	"strings"

	"github.com/leapstack-labs/pgtool/internal/query"
)

// Table identifies a base table.
type Table struct {
	Schema string
	Name   string
}

// Column describes one column of a table.
type Column struct {
	Name     string
	DataType string
	Nullable bool
	Default  *string
}

const listTablesSQL = `
SELECT table_schema, table_name
FROM information_schema.tables
WHERE table_type = 'BASE TABLE'
%s
ORDER BY table_schema, table_name
`

const userSchemasFilter = `AND table_schema NOT IN ('pg_catalog', 'information_schema')`

const schemaFilter = `AND table_schema = $1`

const describeSQL = `
SELECT column_name, data_type, is_nullable, column_default
FROM information_schema.columns
WHERE table_schema = $1
  AND table_name = $2
ORDER BY ordinal_position
`

// Inspector queries metadata through an Executor.
type Inspector struct {
	exec *query.Executor
}

// NewInspector returns an Inspector using e.
func NewInspector(e *query.Executor) *Inspector {
	return &Inspector{exec: e}
}

// ListTables returns base tables ordered by schema then name. System
// schemas are excluded unless includeSystem is set. A non-empty schemaName
// limits the listing to that schema, system or not.
func (i *Inspector) ListTables(ctx context.Context, includeSystem bool, schemaName string) ([]Table, error) {
	var (
		filter string
		params []any
	)
	switch {
	case schemaName != "":
		filter = schemaFilter
		params = []any{schemaName}
	case !includeSystem:
		filter = userSchemasFilter
	}

	res, err := i.exec.Run(ctx, fmt.Sprintf(listTablesSQL, filter), params, true)
	if err != nil {
		return nil, fmt.Errorf("failed to list tables: %w", err)
	}

	tables := make([]Table, 0, len(res.Rows))
	for _, row := range res.Rows {
		if len(row) < 2 {
			continue
		}
		tables = append(tables, Table{Schema: asString(row[0]), Name: asString(row[1])})
	}
	return tables, nil
}

// Describe returns the columns of ref in ordinal order. An unknown table
// yields an empty slice, not an error.
func (i *Inspector) Describe(ctx context.Context, ref query.TableRef) ([]Column, error) {
	res, err := i.exec.Run(ctx, describeSQL, []any{ref.Schema, ref.Name}, true)
	if err != nil {
		return nil, fmt.Errorf("failed to describe %s: %w", ref, err)
	}

	columns := make([]Column, 0, len(res.Rows))
	for _, row := range res.Rows {
		if len(row) < 4 {
			continue
		}
		col := Column{
			Name:     asString(row[0]),
			DataType: asString(row[1]),
			Nullable: strings.EqualFold(asString(row[2]), "YES"),
		}
		if row[3] != nil {
			def := asString(row[3])
			col.Default = &def
		}
		columns = append(columns, col)
	}
	return columns, nil
}

// TablesResult converts tables into a column/row shape for rendering.
func TablesResult(tables []Table) *query.Result {
	rows := make([][]any, len(tables))
	for i, t := range tables {
		rows[i] = []any{t.Schema, t.Name}
	}
	return &query.Result{Columns: []string{"schema", "table"}, Rows: rows, RowsAffected: int64(len(rows))}
}

// ColumnsResult converts column metadata into a column/row shape for
// rendering. A missing default renders as NULL.
func ColumnsResult(columns []Column) *query.Result {
	rows := make([][]any, len(columns))
	for i, c := range columns {
		var def any
		if c.Default != nil {
			def = *c.Default
		}
		nullable := "NO"
		if c.Nullable {
			nullable = "YES"
		}
		rows[i] = []any{c.Name, c.DataType, nullable, def}
	}
	return &query.Result{
		Columns:      []string{"column", "type", "nullable", "default"},
		Rows:         rows,
		RowsAffected: int64(len(rows)),
	}
}

func asString(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case []byte:
		return string(x)
	default:
		return fmt.Sprint(x)
	}
}
