package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/cockroachdb/errors"
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/xabinapal/sstray/internal/config"
	"github.com/xabinapal/sstray/internal/keyring"
	"github.com/xabinapal/sstray/internal/logging"
	"github.com/xabinapal/sstray/internal/profile"
)

// CheckResult represents the result of a diagnostic check.
type CheckResult struct {
	Name    string      `json:"name"`
	Status  CheckStatus `json:"status"`
	Message string      `json:"message"`
	Fix     string      `json:"fix,omitempty"`
}

// CheckStatus represents the status of a diagnostic check.
type CheckStatus int

const (
	// CheckOK indicates the check passed.
	CheckOK CheckStatus = iota
	// CheckWarning indicates a non-critical issue.
	CheckWarning
	// CheckError indicates a critical failure.
	CheckError
	// CheckSkipped indicates the check was skipped.
	CheckSkipped
)

// String returns the status name.
func (s CheckStatus) String() string {
	switch s {
	case CheckOK:
		return "OK"
	case CheckWarning:
		return "WARN"
	case CheckError:
		return "ERROR"
	case CheckSkipped:
		return "SKIP"
	default:
		return "UNKNOWN"
	}
}

// Icon returns the status icon for display.
func (s CheckStatus) Icon() string {
	switch s {
	case CheckOK:
		return "[OK]"
	case CheckWarning:
		return "[!!]"
	case CheckError:
		return "[XX]"
	case CheckSkipped:
		return "[--]"
	default:
		return "[??]"
	}
}

// MarshalJSON implements json.Marshaler.
func (s CheckStatus) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

// UnmarshalJSON implements json.Unmarshaler.
func (s *CheckStatus) UnmarshalJSON(data []byte) error {
	var name string
	if err := json.Unmarshal(data, &name); err != nil {
		return errors.Wrap(err, "check status must be a string")
	}
	for _, status := range []CheckStatus{CheckOK, CheckWarning, CheckError, CheckSkipped} {
		if status.String() == name {
			*s = status
			return nil
		}
	}
	return errors.Newf("unknown check status %q", name)
}

// DoctorOutput represents the doctor command output for JSON.
type DoctorOutput struct {
	Checks      []CheckResult `json:"checks"`
	HasErrors   bool          `json:"has_errors"`
	HasWarnings bool          `json:"has_warnings"`
}

// ErrDiagnosticsFailed is returned by doctor when a check reports an error.
var ErrDiagnosticsFailed = errors.New("diagnostics failed")

// newDoctorCmd creates the doctor command.
func (cli *CLI) newDoctorCmd() *cobra.Command {
	var showFixes bool

	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Diagnose common issues",
		Long: `Run diagnostic checks to identify and troubleshoot common issues.

The doctor command checks:
  - Configuration file validity
  - Log file
  - Profiles directory
  - Profile tree
  - Default sslocal binary
  - Keyring availability
  - Desktop notifications

Examples:
  # Run diagnostics
  sstray doctor

  # Show suggested fixes
  sstray doctor --fix

  # Output as JSON
  sstray doctor -o json`,
		Args:        cobra.NoArgs,
		Annotations: map[string]string{skipInitAnnotation: "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			output, err := cli.output()
			if err != nil {
				return err
			}

			results := cli.runDiagnostics()
			out := summarize(results)

			writeErr := output.Write(out, func() {
				cli.printDiagnostics(out, showFixes)
			})
			if writeErr != nil {
				return writeErr
			}

			if out.HasErrors {
				return ErrDiagnosticsFailed
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&showFixes, "fix", false, "Show suggested fixes")

	return cmd
}

func summarize(results []CheckResult) DoctorOutput {
	out := DoctorOutput{Checks: results}
	for _, r := range results {
		switch r.Status {
		case CheckError:
			out.HasErrors = true
		case CheckWarning:
			out.HasWarnings = true
		}
	}
	return out
}

func (cli *CLI) printDiagnostics(out DoctorOutput, showFixes bool) {
	icons := map[CheckStatus]*color.Color{
		CheckOK:      newColor(cli.stdout, color.FgGreen),
		CheckWarning: newColor(cli.stdout, color.FgYellow),
		CheckError:   newColor(cli.stdout, color.FgRed, color.Bold),
		CheckSkipped: newColor(cli.stdout, color.FgHiBlack),
	}

	fmt.Fprintln(cli.stdout, "sstray Diagnostics")
	fmt.Fprintln(cli.stdout, "==================")
	fmt.Fprintln(cli.stdout)

	for _, r := range out.Checks {
		icon := r.Status.Icon()
		if c, ok := icons[r.Status]; ok {
			icon = c.Sprint(icon)
		}
		fmt.Fprintf(cli.stdout, "%s %s", icon, r.Name)
		if r.Message != "" {
			fmt.Fprintf(cli.stdout, ": %s", r.Message)
		}
		fmt.Fprintln(cli.stdout)

		if (r.Status == CheckError || r.Status == CheckWarning) && r.Fix != "" && showFixes {
			fmt.Fprintf(cli.stdout, "      -> %s\n", r.Fix)
		}
	}

	fmt.Fprintln(cli.stdout)
	switch {
	case out.HasErrors && showFixes:
		fmt.Fprintln(cli.stdout, "Some checks failed.")
	case out.HasErrors:
		fmt.Fprintln(cli.stdout, "Some checks failed. Run with --fix for suggested fixes.")
	case out.HasWarnings:
		fmt.Fprintln(cli.stdout, "All critical checks passed with some warnings.")
	default:
		fmt.Fprintln(cli.stdout, "All checks passed!")
	}
}

// runDiagnostics runs every check. Later checks use the default
// configuration when the config file cannot be loaded.
func (cli *CLI) runDiagnostics() []CheckResult {
	var results []CheckResult

	cfg, result := cli.checkConfigFile()
	results = append(results, result)

	results = append(results, cli.checkLogFile(cfg))
	results = append(results, cli.checkProfilesDir())
	results = append(results, cli.checkProfiles())
	results = append(results, cli.checkDefaultBinary())
	results = append(results, cli.checkKeyring())
	results = append(results, cli.checkNotifications())

	return results
}

func (cli *CLI) checkConfigFile() (*config.Config, CheckResult) {
	const name = "Configuration file"
	path := cli.configFile()

	cfg, err := cli.loadConfig()
	if err != nil {
		cfg = config.Default()
		cfg.SetPath(path)
		if cli.profilesDirFlag != "" {
			cfg.ProfilesDir = config.ExpandHome(cli.profilesDirFlag)
		}
		return cfg, CheckResult{
			Name:    name,
			Status:  CheckError,
			Message: fmt.Sprintf("invalid: %v", err),
			Fix:     fixFor(err, "Run 'sstray config edit' to correct it, or 'sstray config init --force' to start over"),
		}
	}

	if _, err := os.Stat(cfg.Path()); os.IsNotExist(err) {
		return cfg, CheckResult{
			Name:    name,
			Status:  CheckWarning,
			Message: "not found, using defaults",
			Fix:     "Run 'sstray config init' to create one",
		}
	}

	return cfg, CheckResult{
		Name:    name,
		Status:  CheckOK,
		Message: cfg.Path(),
	}
}

// checkLogFile also finishes setting up the CLI for the remaining checks.
func (cli *CLI) checkLogFile(cfg *config.Config) CheckResult {
	const name = "Log file"
	file := cfg.Log.File

	// Doctor output would interleave with log records.
	saved := cli.stderr
	cli.stderr = io.Discard
	defer func() { cli.stderr = saved }()

	if err := cli.setup(cfg); err != nil {
		cfg.Log.File = ""
		if serr := cli.setup(cfg); serr != nil {
			cli.Config = cfg
			cli.Logger = logging.NewDiscard()
		}
		return CheckResult{
			Name:    name,
			Status:  CheckError,
			Message: fmt.Sprintf("cannot open %s: %v", file, err),
			Fix:     "Check the permissions of the directory, or change log.file in config.yaml",
		}
	}

	if file == "" {
		return CheckResult{Name: name, Status: CheckSkipped, Message: "disabled"}
	}
	return CheckResult{Name: name, Status: CheckOK, Message: file}
}

func (cli *CLI) checkProfilesDir() CheckResult {
	const name = "Profiles directory"
	dir := cli.Config.ProfilesDir

	info, err := os.Stat(dir)
	switch {
	case os.IsNotExist(err):
		return CheckResult{
			Name:    name,
			Status:  CheckError,
			Message: fmt.Sprintf("%s does not exist", dir),
			Fix:     fmt.Sprintf("Create it with 'mkdir -p %s' or set profiles_dir in config.yaml", dir),
		}
	case err != nil:
		return CheckResult{
			Name:    name,
			Status:  CheckError,
			Message: err.Error(),
			Fix:     "Check the permissions of the directory",
		}
	case !info.IsDir():
		return CheckResult{
			Name:    name,
			Status:  CheckError,
			Message: fmt.Sprintf("%s is not a directory", dir),
			Fix:     "Point profiles_dir in config.yaml at a directory",
		}
	}

	return CheckResult{Name: name, Status: CheckOK, Message: dir}
}

func (cli *CLI) checkProfiles() CheckResult {
	const name = "Profiles"

	opts := append(cli.loaderOptions(), profile.WithLogger(logging.NewDiscard()))
	tree, err := profile.Load(cli.Config.ProfilesDir, opts...)
	if err != nil {
		return CheckResult{
			Name:    name,
			Status:  CheckError,
			Message: err.Error(),
			Fix:     fixFor(withLoadHint(err), ""),
		}
	}

	return CheckResult{
		Name:    name,
		Status:  CheckOK,
		Message: fmt.Sprintf("%d loaded", tree.ProfileCount()),
	}
}

func (cli *CLI) checkDefaultBinary() CheckResult {
	const name = "sslocal binary"

	path, err := cli.defaultBinary()
	if err != nil {
		return CheckResult{
			Name:    name,
			Status:  CheckWarning,
			Message: fmt.Sprintf("'%s' not found: %v", cli.Config.DefaultBinary, err),
			Fix:     "Install shadowsocks-rust, or set default_binary in config.yaml; profiles without bin_path will not load",
		}
	}

	return CheckResult{Name: name, Status: CheckOK, Message: path}
}

func (cli *CLI) checkKeyring() CheckResult {
	const name = "Keyring"

	if err := cli.Keyring.IsAvailable(); err != nil {
		return CheckResult{
			Name:    name,
			Status:  CheckWarning,
			Message: fmt.Sprintf("unavailable: %v", err),
			Fix:     "Install a keyring service (gnome-keyring, kwallet or macOS Keychain); only needed for password_keyring profiles",
		}
	}

	var keyringType string
	switch cli.Keyring.(type) {
	case *keyring.FileStore:
		keyringType = "file-based (test mode)"
	default:
		keyringType = "OS keyring"
	}

	return CheckResult{Name: name, Status: CheckOK, Message: keyringType}
}

func (cli *CLI) checkNotifications() CheckResult {
	const name = "Notifications"

	n := cli.Config.Notifications
	if !n.Enabled {
		return CheckResult{Name: name, Status: CheckSkipped, Message: "disabled"}
	}
	return CheckResult{
		Name:    name,
		Status:  CheckOK,
		Message: fmt.Sprintf("enabled (launch: %t, exit: %t, failure: %t)", n.OnLaunch, n.OnExit, n.OnFailure),
	}
}

// fixFor returns the hints attached to err, or fallback when it has none.
func fixFor(err error, fallback string) string {
	if hint := errors.FlattenHints(err); hint != "" {
		return hint
	}
	return fallback
}
