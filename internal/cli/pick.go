package cli

import (
	"fmt"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/ktr0731/go-fuzzyfinder"
	"github.com/spf13/cobra"

	"github.com/xabinapal/sstray/internal/profile"
)

// Finder lets the user choose one of infos and returns its index.
// It returns fuzzyfinder.ErrAbort when the user cancels.
type Finder func(infos []profile.Info) (int, error)

// fuzzyFind is the default Finder.
func fuzzyFind(infos []profile.Info) (int, error) {
	return fuzzyfinder.Find(
		infos,
		func(i int) string {
			return infoPath(infos[i])
		},
		fuzzyfinder.WithPromptString("profile> "),
		fuzzyfinder.WithPreviewWindow(func(i, w, h int) string {
			if i == -1 {
				return ""
			}
			info := infos[i]
			return fmt.Sprintf("Name: %s\nMode: %s\nGroup: %s\n\nDirectory:\n%s",
				info.Name,
				info.Mode,
				strings.Join(info.Group, "/"),
				info.Dir,
			)
		}),
	)
}

// infoPath joins a profile's groups and name with slashes.
func infoPath(info profile.Info) string {
	return strings.Join(append(info.Group[:len(info.Group):len(info.Group)], info.Name), "/")
}

// newPickCmd creates the pick command.
func (cli *CLI) newPickCmd() *cobra.Command {
	var printOnly, quiet bool

	cmd := &cobra.Command{
		Use:   "pick",
		Short: "Choose a profile interactively and run it",
		Long: `Choose a profile with a fuzzy finder and launch sslocal with it.

Examples:
  sstray pick

  # Only print the chosen profile name
  sstray pick --print`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			tree, err := cli.loadProfiles()
			if err != nil {
				return err
			}

			infos := tree.Infos()
			idx, err := cli.finder(infos)
			if err != nil {
				if errors.Is(err, fuzzyfinder.ErrAbort) {
					return nil
				}
				return errors.Wrap(err, "interactive selection failed")
			}
			if idx < 0 || idx >= len(infos) {
				return errors.Newf("selection %d out of range", idx)
			}

			name := infos[idx].Name
			if printOnly {
				fmt.Fprintln(cli.stdout, name)
				return nil
			}

			p, ok := tree.Lookup(name)
			if !ok {
				return errors.Mark(errors.Newf("profile %q not found", name), ErrProfileNotFound)
			}
			return cli.runProfile(cmd.Context(), p, quiet)
		},
	}

	cmd.Flags().BoolVar(&printOnly, "print", false, "Print the chosen profile name instead of running it")
	cmd.Flags().BoolVarP(&quiet, "quiet", "q", false, "Discard the output of sslocal")

	return cmd
}
