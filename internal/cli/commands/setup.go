package commands

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/leapstack-labs/pgtool/internal/cli/config"
	"github.com/leapstack-labs/pgtool/internal/errs"
	"github.com/leapstack-labs/pgtool/internal/query"
	"github.com/leapstack-labs/pgtool/internal/render"
	"github.com/leapstack-labs/pgtool/internal/session"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

// openSession connects to the database. Tests replace it to run commands
// against a mock or in-process database.
var openSession = session.Open

// appFs is the filesystem SQL and CSV files are read from and written to.
var appFs = afero.NewOsFs()

// CommandContext holds common dependencies for CLI commands.
type CommandContext struct {
	Settings *config.Settings
	Logger   *slog.Logger
	Session  *session.Session
	Executor *query.Executor
	Renderer *render.Renderer
	Fs       afero.Fs
}

// NewCommandContext opens a session with the resolved settings and builds
// the executor and renderer around it.
// Returns the context and a cleanup function that must be called (typically via defer).
func NewCommandContext(cmd *cobra.Command) (*CommandContext, func(), error) {
	ctx := cmd.Context()
	settings := config.GetSettings(ctx)
	logger := config.GetLogger(ctx)

	s, err := openSession(ctx, settings.Connection, session.Options{
		Autocommit: settings.Autocommit,
		Logger:     logger,
	})
	if err != nil {
		return nil, nil, err
	}

	cleanup := func() {
		if err := s.Close(); err != nil {
			logger.Warn("failed to close session", slog.String("error", err.Error()))
		}
	}

	return &CommandContext{
		Settings: settings,
		Logger:   s.Logger(),
		Session:  s,
		Executor: query.NewExecutor(s),
		Renderer: render.New(cmd.OutOrStdout(), settings.Format),
		Fs:       appFs,
	}, cleanup, nil
}

// readSQL picks the statement text from exactly one of the inline argument,
// a file, or piped stdin. allowStdin is false for commands that never read
// standard input.
func readSQL(cmd *cobra.Command, fs afero.Fs, args []string, file string, allowStdin bool) (string, error) {
	inline := strings.TrimSpace(strings.Join(args, " "))

	switch {
	case inline != "" && file != "":
		return "", errs.New(errs.KindConfig, "cannot pass both SQL and --file")
	case inline != "":
		return inline, nil
	case file != "":
		content, err := afero.ReadFile(fs, file)
		if err != nil {
			return "", errs.Wrap(errs.KindConfig, fmt.Sprintf("failed to read %s", file), err)
		}
		return string(content), nil
	case allowStdin && !isTerminal(cmd.InOrStdin()):
		// Read from stdin (piped input)
		content, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return "", errs.Wrap(errs.KindConfig, "failed to read stdin", err)
		}
		if strings.TrimSpace(string(content)) == "" {
			return "", errs.New(errs.KindConfig, "no SQL on stdin")
		}
		return string(content), nil
	default:
		return "", errs.New(errs.KindConfig, "provide SQL as an argument or with --file")
	}
}

// isTerminal reports whether r is an interactive terminal. Readers that
// are not files, such as test buffers, count as piped input.
func isTerminal(r io.Reader) bool {
	f, ok := r.(*os.File)
	if !ok {
		return false
	}
	return term.IsTerminal(int(f.Fd()))
}
