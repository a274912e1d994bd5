package cli

import (
	"fmt"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/xabinapal/sstray/internal/profile"
)

// newShowCmd creates the show command.
func (cli *CLI) newShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <profile>",
		Short: "Show the resolved settings of a profile",
		Long: `Show the resolved settings of a profile: working directory, sslocal
binary, mode, options and the launch arguments. Passwords are never shown.

Examples:
  sstray show tokyo
  sstray show tokyo -o json`,
		Args:              cobra.ExactArgs(1),
		ValidArgsFunction: cli.completeProfileNames,
		RunE: func(cmd *cobra.Command, args []string) error {
			output, err := cli.output()
			if err != nil {
				return err
			}

			p, err := cli.lookupProfile(args[0])
			if err != nil {
				return err
			}

			status := p.Status()
			return output.Write(status, func() {
				cli.printStatus(status)
			})
		},
	}
}

func (cli *CLI) printStatus(s profile.Status) {
	label := newColor(cli.stdout, color.Bold)

	fmt.Fprintf(cli.stdout, "%s %s\n", label.Sprint("Profile:"), s.DisplayName)
	fmt.Fprintf(cli.stdout, "  Mode:       %s\n", s.Mode)
	fmt.Fprintf(cli.stdout, "  Directory:  %s\n", s.Dir)
	fmt.Fprintf(cli.stdout, "  Working:    %s\n", s.Pwd)
	fmt.Fprintf(cli.stdout, "  Binary:     %s\n", s.BinPath)

	switch opts := s.Options.(type) {
	case *profile.ConfigFileOptions:
		fmt.Fprintf(cli.stdout, "  Config:     %s\n", opts.ConfigPath)
	case *profile.ProxyOptions:
		fmt.Fprintf(cli.stdout, "  Local:      %s\n", opts.LocalAddr)
		fmt.Fprintf(cli.stdout, "  Server:     %s\n", opts.ServerAddr)
		fmt.Fprintf(cli.stdout, "  Method:     %s\n", opts.EncryptMethod)
		fmt.Fprintf(cli.stdout, "  Password:   %s\n", opts.Password)
	}

	if s.ArgsError != "" {
		fmt.Fprintf(cli.stdout, "  Arguments:  unavailable (%s)\n", s.ArgsError)
		return
	}
	fmt.Fprintf(cli.stdout, "  Arguments:  %s\n", strings.Join(s.LaunchArgs, " "))
}
