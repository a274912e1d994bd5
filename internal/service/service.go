// Package service installs sstray profiles as per-user login services, so
// that sslocal starts with a profile whenever the user logs in.
package service

import (
	"os/exec"
	"runtime"
	"strings"
	"unicode"

	"github.com/cockroachdb/errors"

	"github.com/xabinapal/sstray/internal/utils"
)

// NamePrefix prefixes every unit, agent and task created by this package.
const NamePrefix = "sstray"

// ErrServiceNotSupported is returned on platforms without a known service manager.
var ErrServiceNotSupported = errors.New("login services are not supported on this platform")

// Manager provides service installation and management for one profile.
type Manager interface {
	// Install writes the service definition, enables it and starts it.
	Install() error
	// Uninstall stops the service and removes its definition.
	Uninstall() error
	// IsInstalled checks if the service definition exists.
	IsInstalled() (bool, error)
	// Start starts the service.
	Start() error
	// Stop stops the service.
	Stop() error
	// Status returns the service status.
	Status() (Status, error)
	// FilePath returns the path to the service definition, if the platform uses one.
	FilePath() string
}

// Status represents the current status of a profile service.
type Status struct {
	Profile   string `json:"profile"`
	Name      string `json:"name"`
	Installed bool   `json:"installed"`
	Running   bool   `json:"running"`
	PID       int    `json:"pid,omitempty"`
	Error     string `json:"error,omitempty"`
}

// Config describes the service for one profile.
type Config struct {
	// Profile is the display name of the profile to run.
	Profile string
	// ExecutablePath is the path to the sstray binary.
	ExecutablePath string
	// ConfigPath is passed to sstray with --config when set.
	ConfigPath string
	// ProfilesDir is passed to sstray with --profiles-dir when set.
	ProfilesDir string
	// LogPath receives the service's output where the platform needs a file.
	LogPath string
}

// Args returns the sstray arguments the service runs.
func (c Config) Args() []string {
	args := []string{"run", c.Profile}
	if c.ConfigPath != "" {
		args = append(args, "--config", c.ConfigPath)
	}
	if c.ProfilesDir != "" {
		args = append(args, "--profiles-dir", c.ProfilesDir)
	}
	return args
}

// Name returns the service name for a profile.
func Name(profile string) string {
	return NamePrefix + "-" + utils.SanitizeKey(profile)
}

// Runner runs a service-manager command and returns its combined output.
type Runner func(name string, args ...string) ([]byte, error)

func execRunner(name string, args ...string) ([]byte, error) {
	// #nosec G204 - name is a fixed system utility, args are built by this package
	return exec.Command(name, args...).CombinedOutput()
}

type options struct {
	run Runner
	dir string
}

// Option configures a Manager.
type Option func(*options)

// WithRunner sets how service-manager commands are run (for testing).
func WithRunner(run Runner) Option {
	return func(o *options) {
		o.run = run
	}
}

// WithDir overrides the directory service definitions are written to.
func WithDir(dir string) Option {
	return func(o *options) {
		o.dir = dir
	}
}

// New creates a platform-appropriate service manager.
func New(cfg Config, opts ...Option) (Manager, error) {
	return newManager(runtime.GOOS, cfg, opts...)
}

func newManager(goos string, cfg Config, opts ...Option) (Manager, error) {
	if cfg.Profile == "" {
		return nil, errors.New("profile name is required")
	}
	if cfg.ExecutablePath == "" {
		return nil, errors.New("executable path is required")
	}
	for _, v := range []string{cfg.Profile, cfg.ExecutablePath, cfg.ConfigPath, cfg.ProfilesDir, cfg.LogPath} {
		if hasControl(v) {
			return nil, errors.Newf("%q contains control characters and cannot be written to a service definition", v)
		}
	}

	o := options{run: execRunner}
	for _, opt := range opts {
		opt(&o)
	}

	switch goos {
	case "darwin":
		return newLaunchdManager(cfg, o), nil
	case "linux":
		return newSystemdManager(cfg, o), nil
	case "windows":
		return newWindowsManager(cfg, o), nil
	default:
		return nil, errors.Wrapf(ErrServiceNotSupported, "platform %s", goos)
	}
}

// PlatformName returns a human-readable name for the service system.
func PlatformName() string {
	return platformName(runtime.GOOS)
}

func platformName(goos string) string {
	switch goos {
	case "darwin":
		return "launchd"
	case "linux":
		return "systemd"
	case "windows":
		return "Task Scheduler"
	default:
		return "unknown"
	}
}

// commandError wraps a failed service-manager command with its output.
func commandError(err error, output []byte, msg string) error {
	if len(output) == 0 {
		return errors.Wrap(err, msg)
	}
	return errors.Wrapf(err, "%s: %s", msg, string(output))
}

func hasControl(s string) bool {
	return strings.IndexFunc(s, unicode.IsControl) >= 0
}
