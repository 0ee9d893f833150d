package commands

import (
	"github.com/leapstack-labs/pgtool/internal/query"
	"github.com/leapstack-labs/pgtool/internal/schema"
	"github.com/spf13/cobra"
)

// NewTablesCommand creates the tables command.
func NewTablesCommand() *cobra.Command {
	var includeSystem bool

	cmd := &cobra.Command{
		Use:   "tables [schema]",
		Short: "List tables",
		Long: `List base tables as schema and table name, ordered by schema then name.

System schemas (pg_catalog, information_schema) are hidden unless
--include-system is given. Naming a schema lists only that schema.`,
		Example: `  pgtool tables
  pgtool tables sales`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var schemaName string
			if len(args) == 1 {
				schemaName = args[0]
			}

			cmdCtx, cleanup, err := NewCommandContext(cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			tables, err := schema.NewInspector(cmdCtx.Executor).ListTables(cmd.Context(), includeSystem, schemaName)
			if err != nil {
				return err
			}
			if len(tables) == 0 {
				cmdCtx.Renderer.Messagef("(no tables)")
				return nil
			}
			return cmdCtx.Renderer.Result(schema.TablesResult(tables))
		},
	}

	cmd.Flags().BoolVar(&includeSystem, "include-system", false, "Include system schemas")

	return cmd
}

// NewDescribeCommand creates the describe command.
func NewDescribeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "describe <table>",
		Short: "Show the columns of a table",
		Long: `Show name, type, nullability and default of every column of a table,
in column order. The table may be schema-qualified; the default schema is
public.`,
		Example: `  pgtool describe users
  pgtool describe sales.orders`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ref, err := query.ParseTableRef(args[0])
			if err != nil {
				return err
			}

			cmdCtx, cleanup, err := NewCommandContext(cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			cols, err := schema.NewInspector(cmdCtx.Executor).Describe(cmd.Context(), ref)
			if err != nil {
				return err
			}
			if len(cols) == 0 {
				cmdCtx.Renderer.Messagef("Table %s not found or has no columns", ref)
				return nil
			}
			return cmdCtx.Renderer.Result(schema.ColumnsResult(cols))
		},
	}
}
