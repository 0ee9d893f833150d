package shell

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/shlex"
	"github.com/leapstack-labs/pgtool/internal/errs"
	"github.com/leapstack-labs/pgtool/internal/query"
	"github.com/leapstack-labs/pgtool/internal/schema"
	"github.com/spf13/pflag"
)

// Command is one of the fixed set of shell commands.
type Command int

const (
	CommandUnknown Command = iota
	CommandTables
	CommandDescribe
	CommandQuery
	CommandExport
	CommandImport
	CommandHelp
	CommandQuit
)

type commandSpec struct {
	cmd   Command
	names []string
	usage string
	help  string
}

// commandTable is the catalog printed by help, in display order.
var commandTable = []commandSpec{
	{CommandTables, []string{"tables"}, "tables [schema] [--include-system]", "List base tables"},
	{CommandDescribe, []string{"describe"}, "describe <table>", "Show the columns of a table"},
	{CommandQuery, []string{"query"}, "query <sql>", "Run a SQL statement and print its rows"},
	{CommandExport, []string{"export"}, "export <table> <path>", "Write a table to a CSV file"},
	{CommandImport, []string{"import"}, "import <table> <path> [--truncate]", "Load a CSV file into a table"},
	{CommandHelp, []string{"help"}, "help", "Show this help message"},
	{CommandQuit, []string{"quit", "exit"}, "quit / exit", "Leave the shell"},
}

var commandsByName = func() map[string]Command {
	m := make(map[string]Command)
	for _, spec := range commandTable {
		for _, name := range spec.names {
			m[name] = spec.cmd
		}
	}
	return m
}()

// LookupCommand resolves a command word, case-insensitively.
func LookupCommand(name string) (Command, bool) {
	cmd, ok := commandsByName[strings.ToLower(name)]
	return cmd, ok
}

func (c Command) String() string {
	for _, spec := range commandTable {
		if spec.cmd == c {
			return spec.names[0]
		}
	}
	return "unknown"
}

func (c Command) usage() string {
	for _, spec := range commandTable {
		if spec.cmd == c {
			return spec.usage
		}
	}
	return ""
}

func printHelp(w io.Writer) {
	_, _ = fmt.Fprintln(w, "Commands:")
	for _, spec := range commandTable {
		_, _ = fmt.Fprintf(w, "  %-36s %s\n", spec.usage, spec.help)
	}
	_, _ = fmt.Fprintln(w, "\nTable names may be schema-qualified (schema.table); the default schema is public.")
}

// handler runs one command with the raw remainder of the input line.
type handler func(ctx context.Context, args string) error

func (s *Shell) commandHandlers() map[Command]handler {
	return map[Command]handler{
		CommandTables:   s.runTables,
		CommandDescribe: s.runDescribe,
		CommandQuery:    s.runQuery,
		CommandExport:   s.runExport,
		CommandImport:   s.runImport,
	}
}

func (s *Shell) runTables(ctx context.Context, args string) error {
	fs := newFlagSet(CommandTables)
	includeSystem := fs.Bool("include-system", false, "include system schemas")
	pos, err := parseArgsRange(fs, CommandTables, args, 0, 1)
	if err != nil {
		return err
	}
	var schemaName string
	if len(pos) == 1 {
		schemaName = pos[0]
	}

	tables, err := s.inspector.ListTables(ctx, *includeSystem, schemaName)
	if err != nil {
		return err
	}
	if len(tables) == 0 {
		s.renderer.Messagef("(no tables)")
		return nil
	}
	return s.renderer.Result(schema.TablesResult(tables))
}

func (s *Shell) runDescribe(ctx context.Context, args string) error {
	pos, err := parseArgs(newFlagSet(CommandDescribe), CommandDescribe, args, 1)
	if err != nil {
		return err
	}
	ref, err := query.ParseTableRef(pos[0])
	if err != nil {
		return err
	}

	cols, err := s.inspector.Describe(ctx, ref)
	if err != nil {
		return err
	}
	if len(cols) == 0 {
		s.renderer.Messagef("Table %s not found or has no columns", ref)
		return nil
	}
	return s.renderer.Result(schema.ColumnsResult(cols))
}

// runQuery passes the remainder of the line to the database verbatim.
func (s *Shell) runQuery(ctx context.Context, args string) error {
	sql := strings.TrimSuffix(strings.TrimSpace(args), ";")
	if strings.TrimSpace(sql) == "" {
		return usageError(CommandQuery)
	}
	res, err := s.exec.Run(ctx, sql, nil, true)
	if err != nil {
		return err
	}
	return s.renderer.Result(res)
}

func (s *Shell) runExport(ctx context.Context, args string) error {
	pos, err := parseArgs(newFlagSet(CommandExport), CommandExport, args, 2)
	if err != nil {
		return err
	}
	ref, err := query.ParseTableRef(pos[0])
	if err != nil {
		return err
	}

	path, err := expandHome(pos[1])
	if err != nil {
		return err
	}

	n, err := s.transfer.ExportTable(ctx, ref, path)
	if err != nil {
		return err
	}
	s.renderer.Messagef("Exported %d rows from %s to %s", n, ref, path)
	return nil
}

func (s *Shell) runImport(ctx context.Context, args string) error {
	fs := newFlagSet(CommandImport)
	truncate := fs.Bool("truncate", false, "empty the table first")
	pos, err := parseArgs(fs, CommandImport, args, 2)
	if err != nil {
		return err
	}
	ref, err := query.ParseTableRef(pos[0])
	if err != nil {
		return err
	}

	path, err := expandHome(pos[1])
	if err != nil {
		return err
	}

	n, err := s.transfer.Import(ctx, ref, path, *truncate)
	if err != nil {
		return err
	}
	s.renderer.Messagef("Imported %d rows into %s", n, ref)
	return nil
}

func newFlagSet(cmd Command) *pflag.FlagSet {
	fs := pflag.NewFlagSet(cmd.String(), pflag.ContinueOnError)
	fs.SetOutput(io.Discard)
	return fs
}

// expandHome replaces a leading ~ with the user's home directory.
func expandHome(path string) (string, error) {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", errs.Wrap(errs.KindInvalidInput, "cannot expand "+path, err)
	}
	return filepath.Join(home, path[1:]), nil
}

// parseArgs tokenizes args with shell quoting rules, parses flags and
// checks the number of positional arguments.
func parseArgs(fs *pflag.FlagSet, cmd Command, args string, want int) ([]string, error) {
	return parseArgsRange(fs, cmd, args, want, want)
}

// parseArgsRange is parseArgs for commands with optional positionals.
func parseArgsRange(fs *pflag.FlagSet, cmd Command, args string, minArgs, maxArgs int) ([]string, error) {
	tokens, err := shlex.Split(args)
	if err != nil {
		return nil, errs.Newf(errs.KindInvalidInput, "cannot parse arguments: %v", err)
	}
	if err := fs.Parse(tokens); err != nil {
		return nil, errs.Newf(errs.KindInvalidInput, "%v (usage: %s)", err, cmd.usage())
	}
	if fs.NArg() < minArgs || fs.NArg() > maxArgs {
		return nil, usageError(cmd)
	}
	return fs.Args(), nil
}

func usageError(cmd Command) error {
	return errs.Newf(errs.KindInvalidInput, "usage: %s", cmd.usage())
}
