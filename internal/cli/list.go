package cli

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/xabinapal/sstray/internal/profile"
)

// ListOutput represents the list command output for JSON.
type ListOutput struct {
	Root     string         `json:"root"`
	Count    int            `json:"count"`
	Profiles []profile.Info `json:"profiles"`
	Error    string         `json:"error,omitempty"`
}

// newListCmd creates the list command.
func (cli *CLI) newListCmd() *cobra.Command {
	var flat bool

	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List available profiles",
		Long: `List every profile in the profile tree.

Profiles are shown as a tree of groups by default. If the tree cannot be
loaded the error is logged and no profiles are listed.

Examples:
  # Show the profile tree
  sstray list

  # One profile per line
  sstray list --flat

  # Output as JSON
  sstray list -o json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cli.runList(flat)
		},
	}

	cmd.Flags().BoolVar(&flat, "flat", false, "Print one profile per line instead of a tree")

	return cmd
}

func (cli *CLI) runList(flat bool) error {
	output, err := cli.output()
	if err != nil {
		return err
	}

	out := ListOutput{
		Root:     cli.Config.ProfilesDir,
		Profiles: []profile.Info{},
	}

	tree, err := cli.loadProfiles()
	if err != nil {
		// Listing degrades to an empty tree; the failure is already logged.
		out.Error = err.Error()
		return output.Write(out, func() {
			fmt.Fprintln(cli.stdout, "No profiles available.")
		})
	}

	out.Count = tree.ProfileCount()
	out.Profiles = tree.Infos()

	return output.Write(out, func() {
		if flat {
			cli.printFlat(out.Profiles)
			return
		}
		cli.printTree(tree)
	})
}

func (cli *CLI) printFlat(infos []profile.Info) {
	w := tabwriter.NewWriter(cli.stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tMODE\tGROUP")
	for _, info := range infos {
		fmt.Fprintf(w, "%s\t%s\t%s\n", info.Name, info.Mode, strings.Join(info.Group, "/"))
	}
	// #nosec G104 - Flush error on stdout; if write fails, user will see incomplete output
	_ = w.Flush()
}

// treePrinter draws a Folder with box-drawing branches.
type treePrinter struct {
	w     io.Writer
	group *color.Color
	mode  *color.Color
}

func (cli *CLI) printTree(tree *profile.Folder) {
	tp := &treePrinter{
		w:     cli.stdout,
		group: newColor(cli.stdout, color.Bold, color.FgBlue),
		mode:  newColor(cli.stdout, color.FgHiBlack),
	}
	tp.node(tree, "", "")
}

func (tp *treePrinter) node(f *profile.Folder, branch, indent string) {
	if f.IsGroup() {
		fmt.Fprintf(tp.w, "%s%s/\n", branch, tp.group.Sprint(f.DisplayName()))
	} else {
		fmt.Fprintf(tp.w, "%s%s %s\n", branch, f.DisplayName(), tp.mode.Sprintf("(%s)", f.Profile.Mode()))
		return
	}

	children := f.Group.Children
	for i, child := range children {
		if i == len(children)-1 {
			tp.node(child, indent+"└── ", indent+"    ")
		} else {
			tp.node(child, indent+"├── ", indent+"│   ")
		}
	}
}
