package commands

import (
	"io"
	"log/slog"

	"github.com/leapstack-labs/pgtool/internal/query"
	"github.com/leapstack-labs/pgtool/internal/schema"
	"github.com/leapstack-labs/pgtool/internal/shell"
	"github.com/leapstack-labs/pgtool/internal/transfer"
	"github.com/spf13/cobra"
)

// newLineReader builds the shell input. Tests replace it with scripted
// input.
var newLineReader = func(cmd *cobra.Command, tables []string) (shell.LineReader, error) {
	in, ok := cmd.InOrStdin().(io.ReadCloser)
	if !ok {
		in = io.NopCloser(cmd.InOrStdin())
	}
	return shell.NewReadline(in, cmd.OutOrStdout(), cmd.ErrOrStderr(), tables)
}

// NewShellCommand creates the shell command.
func NewShellCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "shell",
		Short: "Start the interactive shell",
		Long: `Start an interactive prompt that keeps one database session open.

Commands: tables, describe, query, export, import, help and quit. A failing
command prints an error and the prompt comes back. Ctrl-D or Ctrl-C leaves
the shell. This is also what pgtool does when no command is given.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return RunShell(cmd)
		},
	}
}

// RunShell opens a session and runs the interactive shell on the command's
// input and output streams.
func RunShell(cmd *cobra.Command) error {
	cmdCtx, cleanup, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	ctx := cmd.Context()
	reader, err := newLineReader(cmd, completionTables(cmd, cmdCtx))
	if err != nil {
		return err
	}
	defer func() { _ = reader.Close() }()

	sh := shell.New(reader, cmdCtx.Executor, shell.Options{
		Out:      cmd.OutOrStdout(),
		Err:      cmd.ErrOrStderr(),
		Format:   cmdCtx.Settings.Format,
		NoColor:  !isTerminal(cmd.InOrStdin()),
		Transfer: transfer.Options{Fs: cmdCtx.Fs},
		Logger:   cmdCtx.Logger,
	})
	return sh.Run(ctx)
}

// completionTables lists table names for tab completion. A failure only
// costs completion, so it is logged and ignored.
func completionTables(cmd *cobra.Command, cmdCtx *CommandContext) []string {
	tables, err := schema.NewInspector(cmdCtx.Executor).ListTables(cmd.Context(), false, "")
	if err != nil {
		cmdCtx.Logger.Debug("table completion unavailable", slog.String("error", err.Error()))
		return nil
	}
	// The listing is read-only; end its transaction before handing the
	// session to the shell.
	if err := cmdCtx.Session.Rollback(cmd.Context()); err != nil {
		cmdCtx.Logger.Debug("failed to end completion transaction", slog.String("error", err.Error()))
	}
	names := make([]string, 0, len(tables))
	for _, t := range tables {
		if t.Schema == query.DefaultSchema {
			names = append(names, t.Name)
		} else {
			names = append(names, t.Schema+"."+t.Name)
		}
	}
	return names
}
