package proxy

import (
	"context"
	"io"
	"os"
	"os/exec"
)

// CommandRunner is an interface for locating and executing binaries.
// This allows mocking in tests without actually executing sslocal.
type CommandRunner interface {
	// LookPath finds the executable in PATH
	LookPath(file string) (string, error)
	// CommandContext creates a command that can be executed
	CommandContext(ctx context.Context, name string, args ...string) Command
}

// Command represents an executable command.
//
// There is deliberately no way to attach stdin: sslocal never reads from it,
// so every launched process gets the null device.
type Command interface {
	// SetDir sets the working directory
	SetDir(dir string)
	// SetStdout sets the stdout writer; nil means the null device
	SetStdout(stdout io.Writer)
	// SetStderr sets the stderr writer; nil means the null device
	SetStderr(stderr io.Writer)
	// Start starts the command
	Start() error
	// Wait waits for the command to complete
	Wait() error
	// Process returns the underlying process, or nil before Start
	Process() Process
}

// Process represents a running process.
type Process interface {
	// Pid returns the OS process ID
	Pid() int
	// Signal sends a signal to the process
	Signal(sig os.Signal) error
}

// realCommandRunner is the real implementation using os/exec.
type realCommandRunner struct{}

// NewCommandRunner creates a new real command runner.
func NewCommandRunner() CommandRunner {
	return &realCommandRunner{}
}

func (r *realCommandRunner) LookPath(file string) (string, error) {
	return exec.LookPath(file)
}

func (r *realCommandRunner) CommandContext(ctx context.Context, name string, args ...string) Command {
	// #nosec G204 - name is resolved by the profile loader, args come from the user's own profile
	return &realCommand{cmd: exec.CommandContext(ctx, name, args...)}
}

// realCommand wraps exec.Cmd to implement the Command interface.
type realCommand struct {
	cmd *exec.Cmd
}

func (c *realCommand) SetDir(dir string) {
	c.cmd.Dir = dir
}

func (c *realCommand) SetStdout(stdout io.Writer) {
	c.cmd.Stdout = stdout
}

func (c *realCommand) SetStderr(stderr io.Writer) {
	c.cmd.Stderr = stderr
}

func (c *realCommand) Start() error {
	return c.cmd.Start()
}

func (c *realCommand) Wait() error {
	return c.cmd.Wait()
}

func (c *realCommand) Process() Process {
	if c.cmd.Process == nil {
		return nil
	}
	return &realProcess{proc: c.cmd.Process}
}

// realProcess wraps os.Process to implement the Process interface.
type realProcess struct {
	proc *os.Process
}

func (p *realProcess) Pid() int {
	return p.proc.Pid
}

func (p *realProcess) Signal(sig os.Signal) error {
	return p.proc.Signal(sig)
}
