package cli

import (
	"github.com/spf13/cobra"
)

// newCompletionCmd creates the completion command.
func (cli *CLI) newCompletionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "completion [bash|zsh|fish|powershell]",
		Short: "Generate shell completion scripts",
		Long: `Generate shell completion scripts for sstray.

Profile names are completed for run, show and args.

Bash:
  $ source <(sstray completion bash)
  # To load completions for each session, execute once:
  $ sstray completion bash > ~/.local/share/bash-completion/completions/sstray

Zsh:
  # If shell completion is not already enabled in your environment,
  # you will need to enable it. You can execute the following once:
  $ echo "autoload -U compinit; compinit" >> ~/.zshrc

  # To load completions for each session, execute once:
  $ sstray completion zsh > "${fpath[1]}/_sstray"

Fish:
  $ sstray completion fish > ~/.config/fish/completions/sstray.fish

PowerShell:
  PS> sstray completion powershell | Out-String | Invoke-Expression
`,
		DisableFlagsInUseLine: true,
		ValidArgs:             []string{"bash", "zsh", "fish", "powershell"},
		Args:                  cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		Annotations:           map[string]string{skipInitAnnotation: "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			switch args[0] {
			case "bash":
				return cmd.Root().GenBashCompletionV2(cli.stdout, true)
			case "zsh":
				return cmd.Root().GenZshCompletion(cli.stdout)
			case "fish":
				return cmd.Root().GenFishCompletion(cli.stdout, true)
			case "powershell":
				return cmd.Root().GenPowerShellCompletionWithDesc(cli.stdout)
			}
			return nil
		},
	}
}
