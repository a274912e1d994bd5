// Package cli provides the command-line interface for sstray.
package cli

import (
	"context"
	"io"
	"log/slog"
	"os"

	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"

	"github.com/xabinapal/sstray/internal/config"
	"github.com/xabinapal/sstray/internal/keyring"
	"github.com/xabinapal/sstray/internal/logging"
	"github.com/xabinapal/sstray/internal/notify"
	"github.com/xabinapal/sstray/internal/profile"
	"github.com/xabinapal/sstray/internal/proxy"
)

// skipInitAnnotation marks commands that run without loading the configuration.
const skipInitAnnotation = "sstray/skip-init"

// CLI holds the application state for the CLI.
type CLI struct {
	Config  *config.Config
	Keyring keyring.Store
	Logger  *slog.Logger
	rootCmd *cobra.Command

	stdin  io.Reader
	stdout io.Writer
	stderr io.Writer

	runner        proxy.CommandRunner
	notifier      notify.Notifier
	finder        Finder
	services      ServiceFactory
	defaultBinary profile.BinaryResolver
	logCloser     io.Closer

	// Flags
	configFlag      string
	profilesDirFlag string
	verboseFlag     bool
	outputFlag      string
	logLevelFlag    string
	logFormatFlag   string
}

// Option configures a CLI.
type Option func(*CLI)

// WithOutput sets the writers used for command output and logs.
func WithOutput(stdout, stderr io.Writer) Option {
	return func(c *CLI) {
		c.stdout = stdout
		c.stderr = stderr
	}
}

// WithInput sets the reader used for prompts.
func WithInput(stdin io.Reader) Option {
	return func(c *CLI) {
		c.stdin = stdin
	}
}

// WithCommandRunner sets the runner used to find and start sslocal.
func WithCommandRunner(runner proxy.CommandRunner) Option {
	return func(c *CLI) {
		c.runner = runner
	}
}

// WithNotifier sets the desktop notifier instead of building one from config.
func WithNotifier(n notify.Notifier) Option {
	return func(c *CLI) {
		c.notifier = n
	}
}

// WithKeyring sets the secret store.
func WithKeyring(store keyring.Store) Option {
	return func(c *CLI) {
		c.Keyring = store
	}
}

// WithFinder sets the interactive selector used by pick.
func WithFinder(f Finder) Option {
	return func(c *CLI) {
		c.finder = f
	}
}

// New creates a new CLI instance.
func New(opts ...Option) *CLI {
	cli := &CLI{
		Keyring:  keyring.DefaultStore(),
		Logger:   logging.NewDiscard(),
		stdin:    os.Stdin,
		stdout:   os.Stdout,
		stderr:   os.Stderr,
		runner:   proxy.NewCommandRunner(),
		finder:   fuzzyFind,
		services: defaultServiceFactory,
	}

	for _, opt := range opts {
		opt(cli)
	}

	cli.rootCmd = &cobra.Command{
		Use:   "sstray [command]",
		Short: "sstray - shadowsocks profile launcher",
		Long: `sstray manages a directory tree of shadowsocks client profiles and
launches sslocal with the settings of the one you choose.

Each directory containing a profile.yaml is a profile; directories holding
only subdirectories are groups; a .ss_ignore file hides a directory and
everything below it.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return cli.initialize(cmd)
		},
	}

	cli.rootCmd.SetIn(cli.stdin)
	cli.rootCmd.SetOut(cli.stdout)
	cli.rootCmd.SetErr(cli.stderr)

	// Global flags
	flags := cli.rootCmd.PersistentFlags()
	flags.StringVar(&cli.configFlag, "config", "", "Path to config file")
	flags.StringVarP(&cli.profilesDirFlag, "profiles-dir", "d", "", "Root of the profile tree")
	flags.BoolVarP(&cli.verboseFlag, "verbose", "v", false, "Enable debug logging")
	flags.StringVarP(&cli.outputFlag, "output", "o", "text", "Output format (text, json)")
	flags.StringVar(&cli.logLevelFlag, "log-level", "", "Log level (debug, info, warn, error)")
	flags.StringVar(&cli.logFormatFlag, "log-format", "", "Log format (text, json)")

	cli.addCommands()

	return cli
}

// addCommands adds all subcommands to the root command.
func (cli *CLI) addCommands() {
	cli.rootCmd.AddCommand(
		cli.newVersionCmd(),
		cli.newListCmd(),
		cli.newShowCmd(),
		cli.newArgsCmd(),
		cli.newRunCmd(),
		cli.newPickCmd(),
		cli.newSecretCmd(),
		cli.newConfigCmd(),
		cli.newServiceCmd(),
		cli.newDoctorCmd(),
		cli.newCompletionCmd(),
	)
}

// skipsInit reports whether cmd or one of its parents opted out of initialize.
func skipsInit(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations[skipInitAnnotation] == "true" {
			return true
		}
	}
	return false
}

// initialize loads configuration and sets up logging and notifications.
func (cli *CLI) initialize(cmd *cobra.Command) error {
	if skipsInit(cmd) {
		return nil
	}

	cfg, err := cli.loadConfig()
	if err != nil {
		return err
	}
	return cli.setup(cfg)
}

// loadConfig reads the configuration and applies flag overrides.
func (cli *CLI) loadConfig() (*config.Config, error) {
	cfg, err := config.Load(cli.configFlag)
	if err != nil {
		return nil, errors.Wrap(err, "failed to load configuration")
	}

	if cli.profilesDirFlag != "" {
		cfg.ProfilesDir = config.ExpandHome(cli.profilesDirFlag)
	}
	if cli.logLevelFlag != "" {
		cfg.Log.Level = cli.logLevelFlag
	}
	if cli.verboseFlag {
		cfg.Log.Level = "debug"
	}
	if cli.logFormatFlag != "" {
		cfg.Log.Format = cli.logFormatFlag
	}
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid flags")
	}
	return cfg, nil
}

// setup builds the logger, notifier and binary resolver for cfg.
func (cli *CLI) setup(cfg *config.Config) error {
	cli.Config = cfg

	level, err := logging.ParseLevel(cfg.Log.Level)
	if err != nil {
		return err
	}
	format, err := logging.ParseFormat(cfg.Log.Format)
	if err != nil {
		return err
	}
	logger, closer, err := logging.New(logging.Config{
		Level:   level,
		Format:  format,
		Output:  cli.stderr,
		File:    cfg.Log.File,
		MaxSize: cfg.LogMaxBytes(),
	})
	if err != nil {
		return errors.Wrap(err, "failed to open log file")
	}
	cli.close()
	cli.Logger = logger
	cli.logCloser = closer

	if cli.notifier == nil {
		cli.notifier = notify.New(cfg.Notifications)
	}
	cli.defaultBinary = profile.NewBinaryResolver(cli.runner, cfg.DefaultBinary)

	cli.Logger.Debug("Configuration loaded",
		"config", cfg.Path(),
		"profiles_dir", cfg.ProfilesDir,
		"default_binary", cfg.DefaultBinary)
	return nil
}

// Execute runs the CLI.
func (cli *CLI) Execute(ctx context.Context) error {
	defer cli.close()
	return cli.rootCmd.ExecuteContext(ctx)
}

func (cli *CLI) close() {
	if cli.logCloser == nil {
		return
	}
	if err := cli.logCloser.Close(); err != nil {
		cli.Logger.Debug("Failed to close log file", "error", err)
	}
	cli.logCloser = nil
}

// outputFormat parses the --output flag.
func (cli *CLI) outputFormat() (OutputFormat, error) {
	return ParseOutputFormat(cli.outputFlag)
}

// output returns an OutputWriter for the --output flag.
func (cli *CLI) output() (*OutputWriter, error) {
	format, err := cli.outputFormat()
	if err != nil {
		return nil, err
	}
	return NewOutputWriter(format, cli.stdout), nil
}
