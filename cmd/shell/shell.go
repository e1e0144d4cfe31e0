// Package shell provides the "drsplit interactive" guided split command.
package shell

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/klytics/drsplit/cmd/cmdutil"
	"github.com/klytics/drsplit/internal/output"
	shellpkg "github.com/klytics/drsplit/internal/shell"
)

// NewCommand creates the "interactive" command.
func NewCommand() *cobra.Command {
	var column string

	cmd := &cobra.Command{
		Use:     "interactive [file.xlsx]",
		Aliases: []string{"shell", "i"},
		Short:   "Pick sheet, column and mode with prompts, then split",
		Long: `Walks through a split step by step with tab completion: the workbook
(when not given), the sheet, the grouping column, the output mode and
normalization. Shows the resulting groups before anything is written.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := cmdutil.Config()
			if err != nil {
				return err
			}

			defaults := cmdutil.Defaults(cfg)
			defaults.Column = column

			session, err := shellpkg.NewSession(defaults, cmdutil.Env(cfg, "interactive"))
			if err != nil {
				return fmt.Errorf("could not start interactive prompt: %w", err)
			}

			var input string
			if len(args) == 1 {
				input = args[0]
			}
			res, err := session.Run(cmd.Context(), input)
			if errors.Is(err, shellpkg.ErrAborted) {
				fmt.Println("Nothing written.")
				return nil
			}
			if err != nil {
				return err
			}
			if cmdutil.JSON(cmd) {
				return output.PrintJSON("interactive", res)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&column, "column", "c", "", "Pre-select the grouping column")
	return cmd
}
