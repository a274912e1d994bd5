package cli

import (
	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"

	"github.com/xabinapal/sstray/internal/logging"
	"github.com/xabinapal/sstray/internal/profile"
)

// ErrProfileNotFound is returned when no loaded profile has the requested name.
var ErrProfileNotFound = errors.New("profile not found")

func (cli *CLI) loaderOptions() []profile.LoaderOption {
	return []profile.LoaderOption{
		profile.WithLogger(cli.Logger),
		profile.WithCommandRunner(cli.runner),
		profile.WithDefaultBinary(cli.defaultBinary),
		profile.WithSecretStore(cli.Keyring),
	}
}

// loadProfiles loads the configured profile tree. A failure is logged and
// sent as a notification before it is returned with a hint attached.
func (cli *CLI) loadProfiles() (*profile.Folder, error) {
	root := cli.Config.ProfilesDir

	tree, err := profile.Load(root, cli.loaderOptions()...)
	if err != nil {
		cli.Logger.Error("No profiles available", "root", root, "error", err)
		if nerr := cli.notifier.NotifyLoadFailed(root, err); nerr != nil {
			cli.Logger.Debug("Failed to send notification", "error", nerr)
		}
		return nil, withLoadHint(errors.Wrapf(err, "cannot load profiles from %s", root))
	}

	cli.Logger.Debug("Loaded profiles", "root", root, "count", tree.ProfileCount())
	return tree, nil
}

// lookupProfile loads the tree and returns the profile called name.
func (cli *CLI) lookupProfile(name string) (*profile.Profile, error) {
	tree, err := cli.loadProfiles()
	if err != nil {
		return nil, err
	}
	p, ok := tree.Lookup(name)
	if !ok {
		return nil, errors.WithHint(
			errors.Mark(errors.Newf("profile %q not found", name), ErrProfileNotFound),
			"run `sstray list` to see available profiles")
	}
	return p, nil
}

// withLoadHint attaches a remedy matching the kind of load failure.
func withLoadHint(err error) error {
	var hint string
	switch {
	case errors.Is(err, profile.ErrConfigParse):
		hint = "fix the profile.yaml named above or add a .ss_ignore file next to it"
	case errors.Is(err, profile.ErrBadBinary):
		hint = "install sslocal, set default_binary in config.yaml or set bin_path in the profile"
	case errors.Is(err, profile.ErrNameConflict):
		hint = "give one of the profiles a different display_name"
	case errors.Is(err, profile.ErrNoConfigFile):
		hint = "add a " + profile.ConfigFileName + ", move the files elsewhere or add a " +
			profile.IgnoreFileName + " file to the directory"
	case errors.Is(err, profile.ErrEmptyGroup):
		hint = "add a profile below the directory or add a " + profile.IgnoreFileName + " file to it"
	case errors.Is(err, profile.ErrSecretUnavailable):
		hint = "store the password with `sstray secret set <profile>`"
	case errors.Is(err, profile.ErrNotDirectory), errors.Is(err, profile.ErrIO):
		hint = "point profiles_dir in config.yaml, or --profiles-dir, at a readable directory"
	default:
		return err
	}
	return errors.WithHint(err, hint)
}

// completeProfileNames offers display names for shell completion.
// Completion never runs PersistentPreRunE, so configuration is loaded here.
func (cli *CLI) completeProfileNames(cmd *cobra.Command, args []string, _ string) ([]string, cobra.ShellCompDirective) {
	if len(args) > 0 {
		return nil, cobra.ShellCompDirectiveNoFileComp
	}
	if cli.Config == nil {
		if err := cli.initialize(cmd); err != nil {
			return nil, cobra.ShellCompDirectiveError
		}
	}

	opts := append(cli.loaderOptions(), profile.WithLogger(logging.NewDiscard()))
	tree, err := profile.Load(cli.Config.ProfilesDir, opts...)
	if err != nil {
		return nil, cobra.ShellCompDirectiveError
	}

	var names []string
	for _, p := range tree.Profiles() {
		names = append(names, p.DisplayName())
	}
	return names, cobra.ShellCompDirectiveNoFileComp
}
