// Package shell implements the interactive pgtool prompt.
//
// The shell reads one line at a time, dispatches it to a command handler
// and keeps going until quit, end of input, an interrupt or a cancelled
// context. Every command reuses the same session. A failing command prints
// one "Error: ..." line and the prompt comes back.
package shell

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/chzyer/readline"
	"github.com/fatih/color"
	"github.com/leapstack-labs/pgtool/internal/query"
	"github.com/leapstack-labs/pgtool/internal/render"
	"github.com/leapstack-labs/pgtool/internal/schema"
	"github.com/leapstack-labs/pgtool/internal/transfer"
)

// Prompt is shown before every command.
const Prompt = "pgtool> "

// State is the lifecycle position of a Shell.
type State int

const (
	StateIdle State = iota
	StateAwaitingCommand
	StateExecuting
	StateTerminated
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateAwaitingCommand:
		return "awaiting_command"
	case StateExecuting:
		return "executing"
	case StateTerminated:
		return "terminated"
	default:
		return "unknown"
	}
}

// LineReader supplies input lines. *readline.Instance satisfies it.
type LineReader interface {
	Readline() (string, error)
	Close() error
}

// Options configure a Shell.
type Options struct {
	Out    io.Writer
	Err    io.Writer
	Format render.Format
	// NoColor disables colored error output.
	NoColor  bool
	Transfer transfer.Options
	Logger   *slog.Logger
}

// Shell is the interactive command loop.
type Shell struct {
	reader    LineReader
	out       io.Writer
	errOut    io.Writer
	exec      *query.Executor
	inspector *schema.Inspector
	transfer  *transfer.Transfer
	renderer  *render.Renderer
	errColor  *color.Color
	logger    *slog.Logger

	state    State
	handlers map[Command]handler
}

// New returns a Shell reading from reader and running commands through
// exec.
func New(reader LineReader, exec *query.Executor, opts Options) *Shell {
	out := opts.Out
	if out == nil {
		out = io.Discard
	}
	errOut := opts.Err
	if errOut == nil {
		errOut = out
	}
	logger := opts.Logger
	if logger == nil {
		logger = exec.Session().Logger()
	}
	if opts.Transfer.Logger == nil {
		opts.Transfer.Logger = logger
	}

	errColor := color.New(color.FgRed)
	if opts.NoColor {
		errColor.DisableColor()
	}

	s := &Shell{
		reader:    reader,
		out:       out,
		errOut:    errOut,
		exec:      exec,
		inspector: schema.NewInspector(exec),
		transfer:  transfer.New(exec, opts.Transfer),
		renderer:  render.New(out, opts.Format),
		errColor:  errColor,
		logger:    logger,
		state:     StateIdle,
	}
	s.handlers = s.commandHandlers()
	return s
}

// NewReadline returns a readline-backed LineReader. No history file is
// written. Table names complete after describe, export and import.
func NewReadline(stdin io.ReadCloser, stdout, stderr io.Writer, tables []string) (*readline.Instance, error) {
	return readline.NewEx(&readline.Config{
		Prompt:          Prompt,
		AutoComplete:    newCompleter(tables),
		InterruptPrompt: "^C",
		EOFPrompt:       "quit",
		Stdin:           stdin,
		Stdout:          stdout,
		Stderr:          stderr,
	})
}

// State returns the current lifecycle state.
func (s *Shell) State() State {
	return s.state
}

// Run reads and executes commands until the shell terminates. It returns
// nil on quit, end of input, interrupt or context cancellation; only a
// failing reader produces an error.
func (s *Shell) Run(ctx context.Context) error {
	defer func() { s.state = StateTerminated }()

	s.state = StateAwaitingCommand
	_, _ = fmt.Fprintln(s.out, "pgtool interactive shell. Type help for commands, quit to exit.")

	for {
		if ctx.Err() != nil {
			s.logger.Debug("shell stopped by context", slog.String("reason", ctx.Err().Error()))
			return nil
		}

		line, err := s.reader.Readline()
		if errors.Is(err, readline.ErrInterrupt) || errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to read input: %w", err)
		}

		if !s.Execute(ctx, line) {
			return nil
		}
	}
}

// Execute runs one input line and reports whether the shell should keep
// reading.
func (s *Shell) Execute(ctx context.Context, line string) bool {
	line = strings.TrimSpace(line)
	if line == "" {
		return true
	}

	name, rest := splitCommand(line)
	cmd, ok := LookupCommand(name)
	if !ok {
		_, _ = fmt.Fprintf(s.errOut, "Unknown command: %s (type help for commands)\n", name)
		return true
	}

	switch cmd {
	case CommandQuit:
		s.state = StateTerminated
		return false
	case CommandHelp:
		printHelp(s.out)
		return true
	}

	s.state = StateExecuting
	s.logger.Debug("shell command", slog.String("command", cmd.String()))
	if err := s.handlers[cmd](ctx, rest); err != nil {
		s.printError(err)
	}
	s.state = StateAwaitingCommand
	return true
}

func (s *Shell) printError(err error) {
	_, _ = s.errColor.Fprintf(s.errOut, "Error: %v", err)
	_, _ = fmt.Fprintln(s.errOut)
}

// splitCommand separates the command word from the raw remainder of the
// line.
func splitCommand(line string) (string, string) {
	idx := strings.IndexAny(line, " \t")
	if idx < 0 {
		return strings.ToLower(line), ""
	}
	return strings.ToLower(line[:idx]), strings.TrimSpace(line[idx+1:])
}

func newCompleter(tables []string) *readline.PrefixCompleter {
	tableItems := make([]readline.PrefixCompleterInterface, 0, len(tables))
	for _, name := range tables {
		tableItems = append(tableItems, readline.PcItem(name))
	}

	items := make([]readline.PrefixCompleterInterface, 0, len(commandTable))
	for _, spec := range commandTable {
		for _, name := range spec.names {
			switch spec.cmd {
			case CommandDescribe, CommandExport, CommandImport:
				items = append(items, readline.PcItem(name, tableItems...))
			default:
				items = append(items, readline.PcItem(name))
			}
		}
	}
	return readline.NewPrefixCompleter(items...)
}
