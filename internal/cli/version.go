package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/xabinapal/sstray/internal/version"
)

// newVersionCmd creates the version command.
func (cli *CLI) newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:         "version",
		Short:       "Print sstray version information",
		Args:        cobra.NoArgs,
		Annotations: map[string]string{skipInitAnnotation: "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			output, err := cli.output()
			if err != nil {
				return err
			}
			info := version.Get()
			return output.Write(info, func() {
				fmt.Fprintln(cli.stdout, info.String())
			})
		},
	}
}
