package commands

import (
	"github.com/leapstack-labs/pgtool/internal/query"
	"github.com/spf13/cobra"
)

// QueryOptions holds options for the query command.
type QueryOptions struct {
	File    string
	NoFetch bool
	Params  []string
}

// NewQueryCommand creates the query command.
func NewQueryCommand() *cobra.Command {
	opts := &QueryOptions{}

	cmd := &cobra.Command{
		Use:   "query [SQL]",
		Short: "Run a SQL statement",
		Long: `Run one SQL statement and print its result.

The statement comes from the argument, from --file, or from standard input
when it is piped. Values passed with --param are bound to $1, $2, ... in
order; numbers, booleans, None and list or map literals are converted to
their typed form, anything else is sent as text.

Use --no-fetch for INSERT, UPDATE, DELETE and DDL: the statement is
committed and no rows are read.`,
		Example: `  # Run a query
  pgtool query "SELECT * FROM users WHERE id = $1" -p 42

  # Run a statement from a file as JSON
  pgtool --format json query -f report.sql

  # Pipe SQL in
  echo "SELECT now()" | pgtool query

  # Modify data
  pgtool query "DELETE FROM sessions WHERE expired" --no-fetch`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runQuery(cmd, args, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.File, "file", "f", "", "Read SQL from file")
	cmd.Flags().BoolVar(&opts.NoFetch, "no-fetch", false, "Execute and commit without reading rows")
	cmd.Flags().StringArrayVarP(&opts.Params, "param", "p", nil, "Positional query parameter (repeatable)")

	return cmd
}

func runQuery(cmd *cobra.Command, args []string, opts *QueryOptions) error {
	sql, err := readSQL(cmd, appFs, args, opts.File, true)
	if err != nil {
		return err
	}

	cmdCtx, cleanup, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	res, err := cmdCtx.Executor.Run(cmd.Context(), sql, query.ParseParams(opts.Params), !opts.NoFetch)
	if err != nil {
		return err
	}
	return cmdCtx.Renderer.Result(res)
}
