package query

import (
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/leapstack-labs/pgtool/internal/errs"
)

// DefaultSchema is used for table names without a schema qualifier.
const DefaultSchema = "public"

// TableRef names a table by schema and name.
type TableRef struct {
	Schema string
	Name   string
}

// ParseTableRef splits "schema.table" on the first dot. A bare name gets
// DefaultSchema. An empty schema or name is rejected.
func ParseTableRef(s string) (TableRef, error) {
	s = strings.TrimSpace(s)
	schema, name, found := strings.Cut(s, ".")
	if !found {
		schema, name = DefaultSchema, s
	}
	if schema == "" || name == "" {
		return TableRef{}, errs.Newf(errs.KindInvalidInput, "invalid table name %q: expected [schema.]table", s)
	}
	return TableRef{Schema: schema, Name: name}, nil
}

// Sanitize returns the schema-qualified, quoted identifier for use in SQL.
func (t TableRef) Sanitize() string {
	return pgx.Identifier{t.Schema, t.Name}.Sanitize()
}

// String returns the unquoted schema.name form for messages.
func (t TableRef) String() string {
	return t.Schema + "." + t.Name
}

// QuoteIdentifier quotes a single identifier such as a column name.
func QuoteIdentifier(name string) string {
	return pgx.Identifier{name}.Sanitize()
}
