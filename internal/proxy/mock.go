package proxy

import (
	"context"
	"fmt"
	"io"
	"os"
	"sync"
	"syscall"
)

// MockRunner is an in-memory CommandRunner for testing.
// Commands never execute; they record how they were configured.
type MockRunner struct {
	mu sync.Mutex

	// LookPathFunc overrides LookPath when set.
	LookPathFunc func(file string) (string, error)
	// StartErr is returned by every command's Start when set.
	StartErr error
	// ExitCode is the exit code every command reports from Wait.
	ExitCode int
	// KillSignal makes every command report death by this signal from Wait.
	KillSignal syscall.Signal
	// Output is written to the command's stdout on Start.
	Output string

	lookups  []string
	commands []*MockCommand
}

// NewMockRunner creates a new mock command runner.
func NewMockRunner() *MockRunner {
	return &MockRunner{}
}

// LookPath implements CommandRunner.
func (m *MockRunner) LookPath(file string) (string, error) {
	m.mu.Lock()
	m.lookups = append(m.lookups, file)
	fn := m.LookPathFunc
	m.mu.Unlock()

	if fn != nil {
		return fn(file)
	}
	// Simulate found in PATH
	return file, nil
}

// CommandContext implements CommandRunner.
func (m *MockRunner) CommandContext(ctx context.Context, name string, args ...string) Command {
	m.mu.Lock()
	defer m.mu.Unlock()
	cmd := &MockCommand{
		Name:     name,
		Args:     args,
		startErr: m.StartErr,
		exitCode: m.ExitCode,
		signal:   m.KillSignal,
		output:   m.Output,
		pid:      4242 + len(m.commands),
	}
	m.commands = append(m.commands, cmd)
	return cmd
}

// Lookups returns every name passed to LookPath, in call order.
func (m *MockRunner) Lookups() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.lookups...)
}

// Commands returns every command created so far.
func (m *MockRunner) Commands() []*MockCommand {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*MockCommand(nil), m.commands...)
}

// MockCommand records the configuration of a command created by MockRunner.
type MockCommand struct {
	mu sync.Mutex

	Name    string
	Args    []string
	Dir     string
	Stdout  io.Writer
	Stderr  io.Writer
	Started bool
	Waited  bool
	Signals []os.Signal

	startErr error
	exitCode int
	signal   syscall.Signal
	output   string
	pid      int
}

// SetDir implements Command.
func (c *MockCommand) SetDir(dir string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Dir = dir
}

// SetStdout implements Command.
func (c *MockCommand) SetStdout(stdout io.Writer) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Stdout = stdout
}

// SetStderr implements Command.
func (c *MockCommand) SetStderr(stderr io.Writer) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Stderr = stderr
}

// Start implements Command.
func (c *MockCommand) Start() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.startErr != nil {
		return c.startErr
	}
	c.Started = true
	if c.output != "" && c.Stdout != nil {
		_, _ = io.WriteString(c.Stdout, c.output)
	}
	return nil
}

// Wait implements Command.
func (c *MockCommand) Wait() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Waited = true
	if c.signal != 0 {
		return &mockExitError{code: -1, signal: c.signal}
	}
	if c.exitCode != 0 {
		return &mockExitError{code: c.exitCode}
	}
	return nil
}

// Process implements Command.
func (c *MockCommand) Process() Process {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.Started {
		return nil
	}
	return &mockProcess{cmd: c}
}

// mockExitError mimics *exec.ExitError.
type mockExitError struct {
	code   int
	signal syscall.Signal
}

func (e *mockExitError) Error() string {
	if e.signal != 0 {
		return "signal: " + e.signal.String()
	}
	return fmt.Sprintf("exit status %d", e.code)
}

func (e *mockExitError) ExitCode() int {
	return e.code
}

func (e *mockExitError) Sys() any {
	return mockWaitStatus{signal: e.signal}
}

// mockWaitStatus mimics syscall.WaitStatus.
type mockWaitStatus struct {
	signal syscall.Signal
}

func (s mockWaitStatus) Signaled() bool {
	return s.signal != 0
}

func (s mockWaitStatus) Signal() syscall.Signal {
	return s.signal
}

// mockProcess is a mock implementation of Process.
type mockProcess struct {
	cmd *MockCommand
}

func (p *mockProcess) Pid() int {
	return p.cmd.pid
}

func (p *mockProcess) Signal(sig os.Signal) error {
	p.cmd.mu.Lock()
	defer p.cmd.mu.Unlock()
	p.cmd.Signals = append(p.cmd.Signals, sig)
	return nil
}
