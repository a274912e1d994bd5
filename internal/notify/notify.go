// Package notify sends desktop notifications about sslocal launches.
package notify

import (
	"fmt"
	"time"

	"github.com/xabinapal/sstray/internal/config"
	"github.com/xabinapal/sstray/internal/utils"
)

// Notifier defines the interface for sending desktop notifications.
type Notifier interface {
	// NotifyLaunched reports that sslocal started for a profile.
	NotifyLaunched(profile string, pid int) error
	// NotifyExited reports that sslocal stopped after running for uptime.
	NotifyExited(profile string, exitCode int, uptime time.Duration) error
	// NotifyLaunchFailed reports that sslocal could not be started.
	NotifyLaunchFailed(profile string, err error) error
	// NotifyLoadFailed reports that the profile tree could not be loaded.
	NotifyLoadFailed(root string, err error) error
}

// Option configures a Notifier.
type Option func(*notifier)

// WithBackend sets a custom notification backend (for testing).
func WithBackend(backend Backend) Option {
	return func(n *notifier) {
		n.backend = backend
	}
}

// notifier sends desktop notifications using the system notification service.
type notifier struct {
	onLaunch  bool
	onExit    bool
	onFailure bool
	backend   Backend
}

// NotifyLaunched implements Notifier.
func (n *notifier) NotifyLaunched(profile string, pid int) error {
	if !n.onLaunch {
		return nil
	}

	title := "sstray: Proxy Started"
	message := fmt.Sprintf("sslocal for '%s' is running (pid %d).", profile, pid)

	return n.backend.Notify(title, message, "")
}

// NotifyExited implements Notifier. A non-zero exit is sent as an alert
// when failure notifications are on.
func (n *notifier) NotifyExited(profile string, exitCode int, uptime time.Duration) error {
	if exitCode != 0 && n.onFailure {
		title := "sstray: Proxy Crashed"
		message := fmt.Sprintf("sslocal for '%s' exited with code %d after %s.", profile, exitCode, utils.FormatUptime(uptime))
		return n.backend.Alert(title, message, "")
	}
	if !n.onExit {
		return nil
	}

	title := "sstray: Proxy Stopped"
	message := fmt.Sprintf("sslocal for '%s' stopped after %s.", profile, utils.FormatUptime(uptime))

	return n.backend.Notify(title, message, "")
}

// NotifyLaunchFailed implements Notifier.
func (n *notifier) NotifyLaunchFailed(profile string, err error) error {
	if !n.onFailure {
		return nil
	}

	title := "sstray: Launch Failed"
	message := fmt.Sprintf("Failed to start sslocal for '%s'.\nError: %v", profile, err)

	return n.backend.Alert(title, message, "")
}

// NotifyLoadFailed implements Notifier.
func (n *notifier) NotifyLoadFailed(root string, err error) error {
	if !n.onFailure {
		return nil
	}

	title := "sstray: No Profiles Available"
	message := fmt.Sprintf("Cannot load profiles from %s.\nError: %v", root, err)

	return n.backend.Alert(title, message, "")
}

// New creates a new Notifier based on the configuration.
func New(cfg config.NotificationConfig, opts ...Option) Notifier {
	n := &notifier{
		onLaunch:  cfg.Enabled && cfg.OnLaunch,
		onExit:    cfg.Enabled && cfg.OnExit,
		onFailure: cfg.Enabled && cfg.OnFailure,
		backend:   newDesktopBackend(),
	}

	for _, opt := range opts {
		opt(n)
	}

	return n
}
