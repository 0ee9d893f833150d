package commands

import (
	"fmt"
	"strings"

	"github.com/leapstack-labs/pgtool/internal/errs"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
)

// NewScriptCommand creates the script command.
func NewScriptCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "script <path>",
		Short: "Run a multi-statement SQL file",
		Long: `Run every statement of a SQL file in order and commit once at the end.
The first failing statement aborts the script and nothing is committed.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			content, err := afero.ReadFile(appFs, args[0])
			if err != nil {
				return errs.Wrap(errs.KindConfig, fmt.Sprintf("failed to read %s", args[0]), err)
			}
			if strings.TrimSpace(string(content)) == "" {
				return errs.Newf(errs.KindConfig, "script %s is empty", args[0])
			}

			cmdCtx, cleanup, err := NewCommandContext(cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			if err := cmdCtx.Executor.RunScript(cmd.Context(), string(content)); err != nil {
				return err
			}
			cmdCtx.Renderer.Messagef("Script executed successfully")
			return nil
		},
	}
}
