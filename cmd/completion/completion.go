// Package completion provides shell completion generation commands.
package completion

import (
	"fmt"

	"github.com/spf13/cobra"
)

var installHints = map[string]string{
	"bash":       "drsplit completion bash > /etc/bash_completion.d/drsplit",
	"zsh":        "drsplit completion zsh > ~/.zsh/completions/_drsplit",
	"fish":       "drsplit completion fish > ~/.config/fish/completions/drsplit.fish",
	"powershell": "drsplit completion powershell >> $PROFILE",
}

// NewCommand returns the completion command.
func NewCommand(rootCmd *cobra.Command) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "completion [bash|zsh|fish|powershell]",
		Short: "Generate shell completions",
		Long: `Generate shell completion scripts for drsplit.

Install instructions:
  Bash:       drsplit completion bash > /etc/bash_completion.d/drsplit
              echo 'source <(drsplit completion bash)' >> ~/.bashrc
  Zsh:        drsplit completion zsh > ~/.zsh/completions/_drsplit
  Fish:       drsplit completion fish > ~/.config/fish/completions/drsplit.fish
  PowerShell: drsplit completion powershell >> $PROFILE`,
		ValidArgs: []string{"bash", "zsh", "fish", "powershell"},
		Args:      cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			hint, ok := installHints[args[0]]
			if !ok {
				return fmt.Errorf("unsupported shell: %s (supported: bash, zsh, fish, powershell)", args[0])
			}
			fmt.Fprintf(out, "# drsplit %s completion\n", args[0])
			fmt.Fprintf(out, "# Install: %s\n\n", hint)

			switch args[0] {
			case "bash":
				return rootCmd.GenBashCompletion(out)
			case "zsh":
				return rootCmd.GenZshCompletion(out)
			case "fish":
				return rootCmd.GenFishCompletion(out, true)
			default:
				return rootCmd.GenPowerShellCompletionWithDesc(out)
			}
		},
	}
	return cmd
}
