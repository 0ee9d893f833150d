package commands

import (
	"strings"

	"github.com/leapstack-labs/pgtool/internal/errs"
	"github.com/leapstack-labs/pgtool/internal/query"
	"github.com/leapstack-labs/pgtool/internal/transfer"
	"github.com/spf13/cobra"
)

// ExportOptions holds options for the export command.
type ExportOptions struct {
	Output    string
	File      string
	Table     string
	Params    []string
	ChunkSize int
}

// NewExportCommand creates the export command.
func NewExportCommand() *cobra.Command {
	opts := &ExportOptions{}

	cmd := &cobra.Command{
		Use:   "export --output PATH [SQL]",
		Short: "Export a query or table to CSV",
		Long: `Write the result of a query, or a whole table, to a CSV file.

The source is exactly one of an inline SQL argument, --file or --table.
The first line of the file holds the column names; NULL is written as \N.
Rows are streamed in batches of --chunk-size so large results are never
held in memory. A statement that returns no columns is an error and
creates no file.`,
		Example: `  pgtool export -o users.csv "SELECT * FROM users WHERE active = $1" -p true
  pgtool export -o orders.csv --table sales.orders`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExport(cmd, args, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.Output, "output", "o", "", "Destination CSV file")
	cmd.Flags().StringVarP(&opts.File, "file", "f", "", "Read SQL from file")
	cmd.Flags().StringVarP(&opts.Table, "table", "t", "", "Export a whole table ([schema.]table)")
	cmd.Flags().StringArrayVarP(&opts.Params, "param", "p", nil, "Positional query parameter (repeatable)")
	cmd.Flags().IntVar(&opts.ChunkSize, "chunk-size", query.DefaultChunkSize, "Rows fetched per batch")
	_ = cmd.MarkFlagRequired("output")

	return cmd
}

func runExport(cmd *cobra.Command, args []string, opts *ExportOptions) error {
	if opts.ChunkSize <= 0 {
		return errs.Newf(errs.KindConfig, "--chunk-size must be positive, got %d", opts.ChunkSize)
	}

	sources := 0
	if len(args) > 0 && strings.TrimSpace(args[0]) != "" {
		sources++
	}
	if opts.File != "" {
		sources++
	}
	if opts.Table != "" {
		sources++
	}
	if sources != 1 {
		return errs.New(errs.KindConfig, "export needs exactly one of SQL, --file or --table")
	}

	var (
		ref query.TableRef
		sql string
		err error
	)
	if opts.Table != "" {
		if ref, err = query.ParseTableRef(opts.Table); err != nil {
			return err
		}
	} else if sql, err = readSQL(cmd, appFs, args, opts.File, false); err != nil {
		return err
	}

	cmdCtx, cleanup, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	t := transfer.New(cmdCtx.Executor, transfer.Options{
		Fs:        cmdCtx.Fs,
		ChunkSize: opts.ChunkSize,
	})

	var n int64
	if opts.Table != "" {
		n, err = t.ExportTable(cmd.Context(), ref, opts.Output)
	} else {
		n, err = t.ExportQuery(cmd.Context(), sql, query.ParseParams(opts.Params), opts.Output)
	}
	if err != nil {
		return err
	}

	cmdCtx.Renderer.Messagef("Exported %d rows to %s", n, opts.Output)
	return nil
}

// NewImportCommand creates the import command.
func NewImportCommand() *cobra.Command {
	var truncate bool

	cmd := &cobra.Command{
		Use:   "import <table> <path>",
		Short: "Load a CSV file into a table",
		Long: `Insert every row of a CSV file into a table in one transaction.

The header row names the target columns. Fields equal to \N are inserted
as NULL. Nothing is inserted when any row is malformed or the database
rejects a row. With --truncate the table is emptied first; the truncate
is committed on its own and is not undone if the import then fails.`,
		Example: `  pgtool import users users.csv
  pgtool import sales.orders orders.csv --truncate`,
		Args: cobra.ExactArgs(2),
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

			t := transfer.New(cmdCtx.Executor, transfer.Options{Fs: cmdCtx.Fs})
			n, err := t.Import(cmd.Context(), ref, args[1], truncate)
			if err != nil {
				return err
			}
			cmdCtx.Renderer.Messagef("Imported %d rows into %s", n, ref)
			return nil
		},
	}

	cmd.Flags().BoolVar(&truncate, "truncate", false, "Empty the table before importing")

	return cmd
}
