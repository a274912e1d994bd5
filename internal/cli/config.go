package cli

import (
	"fmt"
	"os"
	"os/exec"

	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/xabinapal/sstray/internal/config"
)

// configPathOutput represents config path output for JSON.
type configPathOutput struct {
	ConfigFile   string `json:"config_file"`
	ConfigDir    string `json:"config_dir"`
	StateDir     string `json:"state_dir"`
	ProfilesDir  string `json:"profiles_dir"`
	LogFile      string `json:"log_file"`
	ConfigExists bool   `json:"config_exists"`
}

// newConfigCmd creates the config command group.
func (cli *CLI) newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage sstray configuration",
		Long: `Manage the sstray configuration file.

Use 'sstray config init' to write a default configuration.
Use 'sstray config path' to see configuration file locations.
Use 'sstray config edit' to open the configuration in your editor.`,
	}

	cmd.AddCommand(
		cli.newConfigInitCmd(),
		cli.newConfigShowCmd(),
		cli.newConfigPathCmd(),
		cli.newConfigEditCmd(),
	)

	return cmd
}

// configFile returns the --config path or the default location.
func (cli *CLI) configFile() string {
	if cli.configFlag != "" {
		return cli.configFlag
	}
	return config.GetPaths().ConfigFile
}

// newConfigInitCmd creates the config init command.
func (cli *CLI) newConfigInitCmd() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a default configuration file",
		Long: `Write a default configuration file and create the profiles directory.

Examples:
  sstray config init

  # Use a different profile tree
  sstray config init --profiles-dir ~/vpn/profiles

  # Replace an existing file
  sstray config init --force`,
		Args:        cobra.NoArgs,
		Annotations: map[string]string{skipInitAnnotation: "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			path := cli.configFile()
			if _, err := os.Stat(path); err == nil && !force {
				return errors.WithHint(
					errors.Newf("configuration already exists at %s", path),
					"use --force to overwrite it")
			}

			paths := config.GetPaths()
			if err := paths.EnsureDirs(); err != nil {
				return errors.Wrap(err, "failed to create directories")
			}

			cfg := config.Default()
			cfg.SetPath(path)
			cfg.Log.File = paths.LogFile
			if cli.profilesDirFlag != "" {
				cfg.ProfilesDir = config.ExpandHome(cli.profilesDirFlag)
			}

			if err := os.MkdirAll(cfg.ProfilesDir, 0o700); err != nil {
				return errors.Wrap(err, "failed to create profiles directory")
			}
			if err := cfg.Save(); err != nil {
				return err
			}

			fmt.Fprintf(cli.stdout, "Configuration written to %s\n", path)
			fmt.Fprintf(cli.stdout, "Profiles directory: %s\n", cfg.ProfilesDir)
			return nil
		},
	}

	cmd.Flags().BoolVarP(&force, "force", "f", false, "Overwrite an existing configuration file")

	return cmd
}

// newConfigShowCmd creates the config show command.
func (cli *CLI) newConfigShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration",
		Long: `Print the configuration after applying the config file, SSTRAY_*
environment variables and command-line flags.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			output, err := cli.output()
			if err != nil {
				return err
			}
			if output.IsJSON() {
				return output.WriteJSON(cli.Config)
			}

			data, err := yaml.Marshal(cli.Config)
			if err != nil {
				return errors.Wrap(err, "failed to marshal config")
			}
			fmt.Fprintf(cli.stdout, "# %s\n", cli.Config.Path())
			_, err = cli.stdout.Write(data)
			return err
		},
	}
}

// newConfigPathCmd creates the config path command.
func (cli *CLI) newConfigPathCmd() *cobra.Command {
	return &cobra.Command{
		Use:         "path",
		Short:       "Show configuration file paths",
		Args:        cobra.NoArgs,
		Annotations: map[string]string{skipInitAnnotation: "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			output, err := cli.output()
			if err != nil {
				return err
			}

			paths := config.GetPaths()
			configFile := cli.configFile()

			_, configErr := os.Stat(configFile)
			out := configPathOutput{
				ConfigFile:   configFile,
				ConfigDir:    paths.ConfigDir,
				StateDir:     paths.StateDir,
				ProfilesDir:  paths.ProfilesDir,
				LogFile:      paths.LogFile,
				ConfigExists: configErr == nil,
			}

			return output.Write(out, func() {
				fmt.Fprintln(cli.stdout, "Configuration paths:")
				fmt.Fprintf(cli.stdout, "  Config file:   %s\n", out.ConfigFile)
				fmt.Fprintf(cli.stdout, "  Config dir:    %s\n", out.ConfigDir)
				fmt.Fprintf(cli.stdout, "  State dir:     %s\n", out.StateDir)
				fmt.Fprintf(cli.stdout, "  Profiles dir:  %s (default)\n", out.ProfilesDir)
				fmt.Fprintf(cli.stdout, "  Log file:      %s (default)\n", out.LogFile)

				fmt.Fprintln(cli.stdout, "\nStatus:")
				if out.ConfigExists {
					fmt.Fprintln(cli.stdout, "  Config file exists")
				} else {
					fmt.Fprintln(cli.stdout, "  Config file does not exist")
				}
			})
		},
	}
}

// newConfigEditCmd creates the config edit command.
func (cli *CLI) newConfigEditCmd() *cobra.Command {
	return &cobra.Command{
		Use:         "edit",
		Short:       "Open configuration file in editor",
		Args:        cobra.NoArgs,
		Annotations: map[string]string{skipInitAnnotation: "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			editor, err := findEditor(cli.runner.LookPath)
			if err != nil {
				return err
			}

			path := cli.configFile()
			if _, err := os.Stat(path); os.IsNotExist(err) {
				cfg := config.Default()
				cfg.SetPath(path)
				if err := cfg.Save(); err != nil {
					return errors.Wrap(err, "failed to create config file")
				}
			}

			// #nosec G204 - editor is from $EDITOR (user-controlled but expected), path is the config file
			editorCmd := exec.CommandContext(cmd.Context(), editor, path)
			editorCmd.Stdin = cli.stdin
			editorCmd.Stdout = cli.stdout
			editorCmd.Stderr = cli.stderr

			return editorCmd.Run()
		},
	}
}

// findEditor returns $VISUAL, $EDITOR or the first common editor found.
func findEditor(lookPath func(string) (string, error)) (string, error) {
	for _, env := range []string{"VISUAL", "EDITOR"} {
		if editor := os.Getenv(env); editor != "" {
			return editor, nil
		}
	}
	for _, e := range []string{"vim", "vi", "nano", "notepad"} {
		if path, err := lookPath(e); err == nil {
			return path, nil
		}
	}
	return "", errors.WithHint(errors.New("no editor found"), "set the EDITOR environment variable")
}
