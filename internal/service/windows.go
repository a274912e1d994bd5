package service

import (
	"strings"
)

// windowsManager manages scheduled tasks on Windows.
type windowsManager struct {
	cfg  Config
	run  Runner
	task string
}

func newWindowsManager(cfg Config, o options) *windowsManager {
	return &windowsManager{
		cfg:  cfg,
		run:  o.run,
		task: Name(cfg.Profile),
	}
}

// taskCommand returns the /tr value for schtasks.
func (m *windowsManager) taskCommand() string {
	words := append([]string{m.cfg.ExecutablePath}, m.cfg.Args()...)
	quoted := make([]string, len(words))
	for i, w := range words {
		quoted[i] = windowsQuote(w)
	}
	return strings.Join(quoted, " ")
}

func (m *windowsManager) schtasks(args ...string) ([]byte, error) {
	return m.run("schtasks.exe", args...)
}

func (m *windowsManager) Install() error {
	out, err := m.schtasks(
		"/create",
		"/tn", m.task,
		"/tr", m.taskCommand(),
		"/sc", "onlogon",
		"/rl", "limited",
		"/f",
	)
	if err != nil {
		return commandError(err, out, "failed to create scheduled task")
	}
	return m.Start()
}

func (m *windowsManager) Uninstall() error {
	//nolint:errcheck // the task may not be running
	_ = m.Stop()

	out, err := m.schtasks("/delete", "/tn", m.task, "/f")
	if err != nil && !strings.Contains(string(out), "does not exist") {
		return commandError(err, out, "failed to delete scheduled task")
	}
	return nil
}

func (m *windowsManager) IsInstalled() (bool, error) {
	_, err := m.schtasks("/query", "/tn", m.task)
	return err == nil, nil
}

func (m *windowsManager) Start() error {
	if out, err := m.schtasks("/change", "/tn", m.task, "/enable"); err != nil {
		return commandError(err, out, "failed to enable task")
	}
	if out, err := m.schtasks("/run", "/tn", m.task); err != nil {
		return commandError(err, out, "failed to start task")
	}
	return nil
}

func (m *windowsManager) Stop() error {
	//nolint:errcheck // the task may not be running
	_, _ = m.schtasks("/end", "/tn", m.task)

	if out, err := m.schtasks("/change", "/tn", m.task, "/disable"); err != nil {
		return commandError(err, out, "failed to disable task")
	}
	return nil
}

func (m *windowsManager) Status() (Status, error) {
	status := Status{Profile: m.cfg.Profile, Name: m.task}

	installed, err := m.IsInstalled()
	if err != nil {
		return status, err
	}
	status.Installed = installed
	if !installed {
		return status, nil
	}

	if out, err := m.schtasks("/query", "/tn", m.task, "/fo", "list"); err == nil {
		for _, line := range strings.Split(string(out), "\n") {
			key, value, ok := strings.Cut(line, ":")
			if ok && strings.TrimSpace(key) == "Status" {
				status.Running = strings.TrimSpace(value) == "Running"
			}
		}
	}
	return status, nil
}

func (m *windowsManager) FilePath() string {
	return "Task Scheduler: " + m.task
}

// windowsQuote quotes one word of a Windows command line so that
// CommandLineToArgvW reads it back unchanged. Backslashes are only special
// in front of a quote, where they are doubled.
func windowsQuote(s string) string {
	if s != "" && !strings.ContainsAny(s, " \t\"") {
		return s
	}

	var b strings.Builder
	b.WriteByte('"')
	slashes := 0
	for _, r := range s {
		switch r {
		case '\\':
			slashes++
			continue
		case '"':
			b.WriteString(strings.Repeat(`\`, 2*slashes+1))
		default:
			b.WriteString(strings.Repeat(`\`, slashes))
		}
		b.WriteRune(r)
		slashes = 0
	}
	b.WriteString(strings.Repeat(`\`, 2*slashes))
	b.WriteByte('"')
	return b.String()
}
