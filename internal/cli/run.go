package cli

import (
	"context"
	"io"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"

	"github.com/xabinapal/sstray/internal/profile"
	"github.com/xabinapal/sstray/internal/proxy"
	"github.com/xabinapal/sstray/internal/utils"
)

// newRunCmd creates the run command.
func (cli *CLI) newRunCmd() *cobra.Command {
	var quiet bool

	cmd := &cobra.Command{
		Use:   "run <profile>",
		Short: "Launch sslocal with a profile",
		Long: `Launch sslocal with the settings of a profile and wait for it to exit.

Interrupt and terminate signals are passed on to sslocal. sstray exits with
the exit code of sslocal.

Examples:
  sstray run tokyo

  # Discard the output of sslocal
  sstray run tokyo --quiet`,
		Args:              cobra.ExactArgs(1),
		ValidArgsFunction: cli.completeProfileNames,
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := cli.lookupProfile(args[0])
			if err != nil {
				return err
			}
			return cli.runProfile(cmd.Context(), p, quiet)
		},
	}

	cmd.Flags().BoolVarP(&quiet, "quiet", "q", false, "Discard the output of sslocal")

	return cmd
}

// runProfile starts sslocal for p and blocks until it exits.
func (cli *CLI) runProfile(ctx context.Context, p *profile.Profile, quiet bool) error {
	name := p.DisplayName()
	logger := cli.Logger.With("profile", name)

	var stdout, stderr io.Writer
	if !quiet {
		stdout, stderr = cli.stdout, cli.stderr
	}

	// sslocal gets interrupts through ForwardSignals rather than being
	// killed when ctx is cancelled.
	h, err := p.Run(context.WithoutCancel(ctx), stdout, stderr, proxy.WithCommandRunner(cli.runner))
	if err != nil {
		logger.Error("Failed to start sslocal", "error", err)
		if nerr := cli.notifier.NotifyLaunchFailed(name, err); nerr != nil {
			logger.Debug("Failed to send notification", "error", nerr)
		}
		if errors.Is(err, profile.ErrTunUnimplemented) {
			return errors.WithHint(err, "use mode: proxy or mode: config-file for this profile")
		}
		return withLoadHint(errors.Wrapf(err, "cannot run profile %q", name))
	}

	stop := proxy.ForwardSignals(h)
	defer stop()

	started := time.Now()
	spec := h.Spec()
	logger.Info("Started sslocal",
		"pid", h.Pid(),
		"binary", spec.Binary,
		"dir", spec.Dir,
		"args", profile.RedactArgs(spec.Args))
	if nerr := cli.notifier.NotifyLaunched(name, h.Pid()); nerr != nil {
		logger.Debug("Failed to send notification", "error", nerr)
	}

	code, err := h.Wait()
	uptime := time.Since(started)
	if err != nil {
		logger.Error("Lost track of sslocal", "error", err)
		return err
	}
	if nerr := cli.notifier.NotifyExited(name, code, uptime); nerr != nil {
		logger.Debug("Failed to send notification", "error", nerr)
	}

	if code != 0 {
		logger.Warn("sslocal exited abnormally", "code", code, "uptime", utils.FormatUptime(uptime))
		return &ExitError{Code: code}
	}
	logger.Info("sslocal exited", "uptime", utils.FormatUptime(uptime))
	return nil
}
