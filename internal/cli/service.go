package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"

	"github.com/xabinapal/sstray/internal/config"
	"github.com/xabinapal/sstray/internal/service"
)

// ServiceFactory builds the login service manager for a profile.
type ServiceFactory func(service.Config) (service.Manager, error)

// WithServiceFactory sets how login service managers are built.
func WithServiceFactory(f ServiceFactory) Option {
	return func(c *CLI) {
		c.services = f
	}
}

func defaultServiceFactory(cfg service.Config) (service.Manager, error) {
	return service.New(cfg)
}

// newServiceCmd creates the service command group.
func (cli *CLI) newServiceCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "service",
		Short: "Start profiles automatically at login",
		Long: fmt.Sprintf(`Install a profile as a per-user login service managed by %s.

The service runs "sstray run <profile>" with the configuration file in use
when it was installed, and restarts it if sslocal fails.`, service.PlatformName()),
	}

	cmd.AddCommand(
		cli.newServiceInstallCmd(),
		cli.newServiceUninstallCmd(),
		cli.newServiceStatusCmd(),
		cli.newServiceStartCmd(),
		cli.newServiceStopCmd(),
	)

	return cmd
}

func (cli *CLI) newServiceInstallCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "install <profile>",
		Short: "Install and start the login service of a profile",
		Long: `Install and start the login service of a profile.

The profile must load and produce sslocal arguments before it is installed.

Examples:
  sstray service install tokyo`,
		Args:              cobra.ExactArgs(1),
		ValidArgsFunction: cli.completeProfileNames,
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := cli.lookupProfile(args[0])
			if err != nil {
				return err
			}
			if _, err := p.LaunchArgs(); err != nil {
				return withLoadHint(errors.Wrapf(err, "profile %q cannot be launched", p.DisplayName()))
			}

			mgr, err := cli.serviceManager(p.DisplayName())
			if err != nil {
				return err
			}
			if err := mgr.Install(); err != nil {
				return errors.Wrap(err, "failed to install service")
			}

			cli.Logger.Info("Installed login service", "profile", p.DisplayName(), "path", mgr.FilePath())
			fmt.Fprintf(cli.stdout, "Service for '%s' installed: %s\n", p.DisplayName(), mgr.FilePath())
			return nil
		},
	}
}

func (cli *CLI) newServiceUninstallCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "uninstall <profile>",
		Aliases: []string{"remove"},
		Short:   "Stop and remove the login service of a profile",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := args[0]
			mgr, err := cli.serviceManager(name)
			if err != nil {
				return err
			}

			installed, err := mgr.IsInstalled()
			if err != nil {
				return err
			}
			if !installed {
				fmt.Fprintf(cli.stdout, "No service installed for '%s'.\n", name)
				return nil
			}

			if err := mgr.Uninstall(); err != nil {
				return errors.Wrap(err, "failed to uninstall service")
			}

			cli.Logger.Info("Removed login service", "profile", name)
			fmt.Fprintf(cli.stdout, "Service for '%s' removed.\n", name)
			return nil
		},
	}
}

func (cli *CLI) newServiceStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status <profile>",
		Short: "Show the login service status of a profile",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out, err := cli.output()
			if err != nil {
				return err
			}

			mgr, err := cli.serviceManager(args[0])
			if err != nil {
				return err
			}
			status, err := mgr.Status()
			if err != nil {
				return errors.Wrap(err, "failed to get service status")
			}

			if out.IsJSON() {
				return out.WriteJSON(status)
			}

			fmt.Fprintf(cli.stdout, "Service: %s (%s)\n", status.Name, service.PlatformName())
			switch {
			case !status.Installed:
				fmt.Fprintln(cli.stdout, "  Status:     not installed")
			case status.Running && status.PID > 0:
				fmt.Fprintf(cli.stdout, "  Status:     running (pid %d)\n", status.PID)
			case status.Running:
				fmt.Fprintln(cli.stdout, "  Status:     running")
			default:
				fmt.Fprintln(cli.stdout, "  Status:     stopped")
			}
			if status.Installed {
				fmt.Fprintf(cli.stdout, "  Definition: %s\n", mgr.FilePath())
			}
			if status.Error != "" {
				fmt.Fprintf(cli.stdout, "  Error:      %s\n", status.Error)
			}
			return nil
		},
	}
}

func (cli *CLI) newServiceStartCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "start <profile>",
		Short: "Start the installed login service of a profile",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			mgr, err := cli.installedService(args[0])
			if err != nil {
				return err
			}
			if err := mgr.Start(); err != nil {
				return err
			}
			fmt.Fprintf(cli.stdout, "Service for '%s' started.\n", args[0])
			return nil
		},
	}
}

func (cli *CLI) newServiceStopCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stop <profile>",
		Short: "Stop the login service of a profile",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			mgr, err := cli.installedService(args[0])
			if err != nil {
				return err
			}
			if err := mgr.Stop(); err != nil {
				return err
			}
			fmt.Fprintf(cli.stdout, "Service for '%s' stopped.\n", args[0])
			return nil
		},
	}
}

// serviceManager builds the service manager for the profile named name.
func (cli *CLI) serviceManager(name string) (service.Manager, error) {
	exe, err := os.Executable()
	if err != nil {
		return nil, errors.Wrap(err, "cannot locate the sstray executable")
	}
	if resolved, err := filepath.EvalSymlinks(exe); err == nil {
		exe = resolved
	}

	cfg := service.Config{
		Profile:        name,
		ExecutablePath: exe,
		LogPath:        filepath.Join(config.GetPaths().StateDir, service.Name(name)+".log"),
	}
	if path := cli.Config.Path(); path != "" {
		if abs, err := filepath.Abs(path); err == nil {
			if _, err := os.Stat(abs); err == nil {
				cfg.ConfigPath = abs
			}
		}
	}
	if cli.profilesDirFlag != "" {
		cfg.ProfilesDir = cli.Config.ProfilesDir
	}

	mgr, err := cli.services(cfg)
	if err != nil {
		return nil, errors.WithHint(err, "use `sstray run <profile>` from your own startup scripts instead")
	}
	return mgr, nil
}

// installedService is serviceManager for commands that need an installed service.
func (cli *CLI) installedService(name string) (service.Manager, error) {
	mgr, err := cli.serviceManager(name)
	if err != nil {
		return nil, err
	}
	installed, err := mgr.IsInstalled()
	if err != nil {
		return nil, err
	}
	if !installed {
		return nil, errors.WithHintf(errors.Newf("no service installed for %q", name),
			"run `sstray service install %s` first", name)
	}
	return mgr, nil
}
