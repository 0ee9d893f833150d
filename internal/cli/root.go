// Package cli provides the command-line interface for pgtool.
package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"

	"github.com/leapstack-labs/pgtool/internal/cli/commands"
	"github.com/leapstack-labs/pgtool/internal/cli/config"
	intconfig "github.com/leapstack-labs/pgtool/internal/config"
	"github.com/leapstack-labs/pgtool/internal/errs"
	"github.com/leapstack-labs/pgtool/internal/render"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

// Version is set at build time.
var Version = "0.1.0"

// readPassword reads a password without echo. Tests replace it.
var readPassword = func(cmd *cobra.Command) (string, error) {
	f, ok := cmd.InOrStdin().(*os.File)
	if !ok || !term.IsTerminal(int(f.Fd())) {
		return "", errs.New(errs.KindConfig, "--ask-password needs an interactive terminal")
	}
	_, _ = fmt.Fprint(cmd.ErrOrStderr(), "Password: ")
	pw, err := term.ReadPassword(int(f.Fd()))
	_, _ = fmt.Fprintln(cmd.ErrOrStderr())
	if err != nil {
		return "", errs.Wrap(errs.KindConfig, "failed to read password", err)
	}
	return string(pw), nil
}

// NewRootCmd creates and returns the root command.
func NewRootCmd() *cobra.Command {
	var (
		cfgFile     string
		format      string
		askPassword bool
		autocommit  bool
		verbose     bool
	)

	rootCmd := &cobra.Command{
		Use:   "pgtool",
		Short: "pgtool - PostgreSQL command-line companion",
		Long: `pgtool runs ad-hoc queries against PostgreSQL, inspects tables and
moves data in and out as CSV.

Connection settings are read from a TOML or YAML config file ([database]
section), then PGTOOL_* environment variables, then command-line flags;
later sources win. A DSN, when given, replaces every discrete setting.

Without a command, pgtool starts the interactive shell.`,
		Version: Version,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			// Skip config loading for help, completion and version commands
			switch cmd.Name() {
			case "help", "completion", "__complete", "version":
				return nil
			}

			logger := config.NewLogger(cmd.ErrOrStderr(), verbose)

			outFormat, err := render.ParseFormat(format)
			if err != nil {
				return err
			}

			loader := intconfig.NewLoader(logger)
			conn, err := loader.Load(cfgFile, cmd.Root().PersistentFlags())
			if err != nil {
				return err
			}

			switch {
			case askPassword && conn.HasDSN():
				logger.Warn("--ask-password ignored: the DSN replaces every discrete setting")
			case askPassword && conn.Password == nil:
				pw, err := readPassword(cmd)
				if err != nil {
					return err
				}
				conn.Password = &pw
			}

			if loader.FileUsed() != "" {
				logger.Debug("using config file", slog.String("path", loader.FileUsed()))
			}

			settings := &config.Settings{
				Connection: conn,
				ConfigFile: loader.FileUsed(),
				Format:     outFormat,
				Autocommit: autocommit,
				Verbose:    verbose,
			}

			ctx := config.WithLogger(cmd.Context(), logger)
			ctx = config.WithSettings(ctx, settings)
			cmd.SetContext(ctx)
			return nil
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			return commands.RunShell(cmd)
		},
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// Set version template
	rootCmd.SetVersionTemplate(`{{.Name}} {{.Version}}
`)

	// Global persistent flags
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&cfgFile, "config", "", "config file (default: ./pgtool.toml, ~/.pgtool.toml, ~/.config/pgtool/config.toml)")
	pf.String("dsn", "", "Connection string; overrides the discrete connection flags")
	pf.String("host", "", "Database host")
	pf.Int("port", 0, "Database port")
	pf.String("user", "", "Database user")
	pf.String("password", "", "Database password")
	pf.String("database", "", "Database name")
	pf.String("dbname", "", "Alias for --database")
	pf.StringArray(intconfig.OptionFlag, nil, "Extra connection parameter KEY=VALUE (repeatable)")
	pf.BoolVar(&askPassword, "ask-password", false, "Prompt for the password when none is configured")
	pf.BoolVar(&autocommit, "autocommit", false, "Commit every statement immediately")
	pf.StringVar(&format, "format", string(render.FormatTable), "Output format (table|json|csv|markdown)")
	pf.BoolVarP(&verbose, "verbose", "v", false, "Verbose output")

	// Register completion for format flag
	_ = rootCmd.RegisterFlagCompletionFunc("format", func(_ *cobra.Command, _ []string, _ string) ([]string, cobra.ShellCompDirective) {
		return render.Formats(), cobra.ShellCompDirectiveNoFileComp
	})

	// Add subcommands
	rootCmd.AddCommand(commands.NewVersionCommand(Version))
	rootCmd.AddCommand(commands.NewQueryCommand())
	rootCmd.AddCommand(commands.NewTablesCommand())
	rootCmd.AddCommand(commands.NewDescribeCommand())
	rootCmd.AddCommand(commands.NewExportCommand())
	rootCmd.AddCommand(commands.NewImportCommand())
	rootCmd.AddCommand(commands.NewScriptCommand())
	rootCmd.AddCommand(commands.NewShellCommand())
	rootCmd.AddCommand(NewCompletionCommand())

	return rootCmd
}

// Execute runs the root command. An interrupt cancels the command context.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	rootCmd := NewRootCmd()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return err
	}
	return nil
}

// NewCompletionCommand creates the completion command.
func NewCompletionCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "completion [bash|zsh|fish|powershell]",
		Short: "Generate shell completion scripts",
		Long: `Generate shell completion scripts for pgtool.

To load completions:

Bash:
  $ source <(pgtool completion bash)

Zsh:
  $ pgtool completion zsh > "${fpath[1]}/_pgtool"

Fish:
  $ pgtool completion fish | source

PowerShell:
  PS> pgtool completion powershell | Out-String | Invoke-Expression
`,
		DisableFlagsInUseLine: true,
		ValidArgs:             []string{"bash", "zsh", "fish", "powershell"},
		Args:                  cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			switch args[0] {
			case "bash":
				return cmd.Root().GenBashCompletion(out)
			case "zsh":
				return cmd.Root().GenZshCompletion(out)
			case "fish":
				return cmd.Root().GenFishCompletion(out, true)
			case "powershell":
				return cmd.Root().GenPowerShellCompletionWithDesc(out)
			}
			return nil
		},
	}
	return cmd
}
