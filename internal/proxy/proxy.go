// Package proxy starts sslocal processes and hands back a handle to them.
package proxy

import (
	"context"
	"io"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/cockroachdb/errors"
)

// ErrNotStarted is returned by Handle methods that need a live process.
var ErrNotStarted = errors.New("process has not been started")

// Spec describes one process launch.
type Spec struct {
	// Binary is the absolute path of the executable.
	Binary string
	// Dir is the working directory of the child.
	Dir string
	// Args are the arguments passed after the binary name.
	Args []string
}

// Launcher starts processes described by a Spec.
type Launcher struct {
	stdout        io.Writer
	stderr        io.Writer
	commandRunner CommandRunner
}

// Option configures a Launcher.
type Option func(*Launcher)

// WithStdout sets the stdout writer.
func WithStdout(w io.Writer) Option {
	return func(l *Launcher) {
		l.stdout = w
	}
}

// WithStderr sets the stderr writer.
func WithStderr(w io.Writer) Option {
	return func(l *Launcher) {
		l.stderr = w
	}
}

// WithCommandRunner sets a custom command runner (for testing).
func WithCommandRunner(runner CommandRunner) Option {
	return func(l *Launcher) {
		l.commandRunner = runner
	}
}

// NewLauncher creates a new Launcher.
// By default, output is discarded (silent). Use WithStdout/WithStderr
// to stream output when needed.
func NewLauncher(opts ...Option) *Launcher {
	l := &Launcher{
		commandRunner: NewCommandRunner(),
	}

	for _, opt := range opts {
		opt(l)
	}

	return l
}

// Start starts the process and returns immediately.
// Whether the child later exits abnormally is for the caller to decide via
// Handle.Wait; Start only fails when the process cannot be created.
func (l *Launcher) Start(ctx context.Context, spec Spec) (*Handle, error) {
	if spec.Binary == "" {
		return nil, errors.New("no binary to launch")
	}

	cmd := l.commandRunner.CommandContext(ctx, spec.Binary, spec.Args...)
	cmd.SetDir(spec.Dir)

	// A nil writer makes os/exec attach the null device, which is what we
	// want for discarded output.
	cmd.SetStdout(l.stdout)
	cmd.SetStderr(l.stderr)

	if err := cmd.Start(); err != nil {
		return nil, errors.Wrapf(err, "failed to start %s", spec.Binary)
	}

	return &Handle{cmd: cmd, spec: spec}, nil
}

// Handle is a running (or finished) child process.
type Handle struct {
	cmd  Command
	spec Spec

	waitOnce sync.Once
	exitCode int
	waitErr  error
}

// Spec returns the launch description this handle was started from.
func (h *Handle) Spec() Spec {
	return h.spec
}

// Pid returns the child's process ID, or 0 if it is unknown.
func (h *Handle) Pid() int {
	proc := h.cmd.Process()
	if proc == nil {
		return 0
	}
	return proc.Pid()
}

// Signal sends sig to the child.
func (h *Handle) Signal(sig os.Signal) error {
	proc := h.cmd.Process()
	if proc == nil {
		return ErrNotStarted
	}
	return proc.Signal(sig)
}

// exitCoder is implemented by *exec.ExitError.
type exitCoder interface {
	ExitCode() int
	Sys() any
}

// signaledStatus is implemented by syscall.WaitStatus.
type signaledStatus interface {
	Signaled() bool
	Signal() syscall.Signal
}

// Wait blocks until the child exits and returns its exit code.
// A non-zero exit is reported through the code with a nil error; the error
// is only set when waiting itself failed. A child killed by a signal reports
// 128 plus the signal number, like a shell. Wait may be called more than once.
func (h *Handle) Wait() (int, error) {
	h.waitOnce.Do(func() {
		err := h.cmd.Wait()
		if err == nil {
			return
		}
		var ec exitCoder
		if errors.As(err, &ec) {
			h.exitCode = exitCodeOf(ec)
			return
		}
		h.exitCode = 1
		h.waitErr = errors.Wrapf(err, "failed to wait for %s", h.spec.Binary)
	})
	return h.exitCode, h.waitErr
}

func exitCodeOf(ec exitCoder) int {
	if code := ec.ExitCode(); code >= 0 {
		return code
	}
	if ws, ok := ec.Sys().(signaledStatus); ok && ws.Signaled() {
		return 128 + int(ws.Signal())
	}
	return 1
}

// ForwardSignals relays SIGINT and SIGTERM received by this process to the
// child until the returned stop function is called.
func ForwardSignals(h *Handle) (stop func()) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	done := make(chan struct{})
	go func() {
		for {
			select {
			case sig := <-sigChan:
				// Ignore signal errors - process may have already exited
				_ = h.Signal(sig) //nolint:errcheck // Signal errors are non-fatal
			case <-done:
				return
			}
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			signal.Stop(sigChan)
			close(done)
		})
	}
}
