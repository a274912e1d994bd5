package cli

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/xabinapal/sstray/internal/profile"
)

// ArgsOutput represents the args command output for JSON.
type ArgsOutput struct {
	Binary string   `json:"binary"`
	Dir    string   `json:"dir"`
	Args   []string `json:"args"`
}

// newArgsCmd creates the args command.
func (cli *CLI) newArgsCmd() *cobra.Command {
	var reveal bool

	cmd := &cobra.Command{
		Use:   "args <profile>",
		Short: "Print the sslocal command line of a profile",
		Long: `Print the working directory and the sslocal command line that
'sstray run' would use for a profile.

The password is replaced by a placeholder unless --reveal is given.

Examples:
  sstray args tokyo
  sstray args tokyo --reveal -o json`,
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

			launchArgs, err := p.LaunchArgs()
			if err != nil {
				return withLoadHint(err)
			}
			if !reveal {
				launchArgs = profile.RedactArgs(launchArgs)
			}

			md := p.Metadata()
			out := ArgsOutput{
				Binary: md.BinPath,
				Dir:    md.Pwd,
				Args:   launchArgs,
			}
			return output.Write(out, func() {
				fmt.Fprintf(cli.stdout, "# cd %s\n", shellQuote(out.Dir))
				fmt.Fprintln(cli.stdout, shellJoin(append([]string{out.Binary}, out.Args...)))
			})
		},
	}

	cmd.Flags().BoolVar(&reveal, "reveal", false, "Show the password instead of a placeholder")

	return cmd
}

func shellJoin(words []string) string {
	quoted := make([]string, len(words))
	for i, w := range words {
		quoted[i] = shellQuote(w)
	}
	return strings.Join(quoted, " ")
}

// shellQuote quotes s when it holds characters a POSIX shell would split on.
func shellQuote(s string) string {
	if s == "" {
		return "''"
	}
	if !strings.ContainsAny(s, " \t\n'\"\\$`*?[]{}()<>|&;#~!") {
		return s
	}
	if !strings.Contains(s, "'") {
		return "'" + s + "'"
	}
	return strconv.Quote(s)
}
