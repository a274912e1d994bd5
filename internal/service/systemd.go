package service

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"text/template"
	"unicode"

	"github.com/adrg/xdg"
	"github.com/cockroachdb/errors"
)

var systemdUnitTemplate = template.Must(template.New("unit").Parse(`[Unit]
Description=sstray shadowsocks profile "{{.Profile}}"
Documentation=https://github.com/xabinapal/sstray
Wants=network-online.target
After=network-online.target

[Service]
Type=simple
ExecStart={{.ExecStart}}
Restart=on-failure
RestartSec=5

# Security hardening
NoNewPrivileges=true
PrivateTmp=true

[Install]
WantedBy=default.target
`))

// systemdManager manages systemd user services on Linux.
type systemdManager struct {
	cfg  Config
	run  Runner
	unit string
	path string
}

func newSystemdManager(cfg Config, o options) *systemdManager {
	dir := o.dir
	if dir == "" {
		dir = filepath.Join(xdg.ConfigHome, "systemd", "user")
	}
	unit := Name(cfg.Profile) + ".service"
	return &systemdManager{
		cfg:  cfg,
		run:  o.run,
		unit: unit,
		path: filepath.Join(dir, unit),
	}
}

// render returns the unit file content.
func (m *systemdManager) render() (string, error) {
	words := append([]string{m.cfg.ExecutablePath}, m.cfg.Args()...)
	quoted := make([]string, len(words))
	for i, w := range words {
		quoted[i] = systemdQuote(w)
	}

	var b strings.Builder
	err := systemdUnitTemplate.Execute(&b, struct {
		Profile   string
		ExecStart string
	}{
		Profile:   systemdDescription(m.cfg.Profile),
		ExecStart: strings.Join(quoted, " "),
	})
	if err != nil {
		return "", errors.Wrap(err, "failed to render unit file")
	}
	return b.String(), nil
}

func (m *systemdManager) systemctl(args ...string) ([]byte, error) {
	return m.run("systemctl", append([]string{"--user"}, args...)...)
}

func (m *systemdManager) Install() error {
	content, err := m.render()
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(m.path), 0o750); err != nil {
		return errors.Wrap(err, "failed to create systemd user directory")
	}
	if err := os.WriteFile(m.path, []byte(content), 0o600); err != nil {
		return errors.Wrap(err, "failed to write unit file")
	}

	if out, err := m.systemctl("daemon-reload"); err != nil {
		return commandError(err, out, "failed to reload systemd")
	}
	if out, err := m.systemctl("enable", "--now", m.unit); err != nil {
		return commandError(err, out, "failed to enable service")
	}
	return nil
}

func (m *systemdManager) Uninstall() error {
	//nolint:errcheck // the unit may not be enabled
	_, _ = m.systemctl("disable", "--now", m.unit)

	if err := os.Remove(m.path); err != nil && !os.IsNotExist(err) {
		return errors.Wrap(err, "failed to remove unit file")
	}

	//nolint:errcheck // best effort after the unit is gone
	_, _ = m.systemctl("daemon-reload")
	return nil
}

func (m *systemdManager) IsInstalled() (bool, error) {
	return fileExists(m.path)
}

func (m *systemdManager) Start() error {
	if out, err := m.systemctl("start", m.unit); err != nil {
		return commandError(err, out, "failed to start service")
	}
	return nil
}

func (m *systemdManager) Stop() error {
	if out, err := m.systemctl("stop", m.unit); err != nil {
		return commandError(err, out, "failed to stop service")
	}
	return nil
}

func (m *systemdManager) Status() (Status, error) {
	status := Status{Profile: m.cfg.Profile, Name: m.unit}

	installed, err := m.IsInstalled()
	if err != nil {
		return status, err
	}
	status.Installed = installed
	if !installed {
		return status, nil
	}

	// is-active exits non-zero for inactive units; the output is what matters
	//nolint:errcheck // output carries the state
	out, _ := m.systemctl("is-active", m.unit)
	state := strings.TrimSpace(string(out))
	status.Running = state == "active"
	if state == "failed" {
		status.Error = "service failed; see journalctl --user -u " + m.unit
	}

	if status.Running {
		if out, err := m.systemctl("show", "-p", "MainPID", m.unit); err == nil {
			var pid int
			if _, err := fmt.Sscanf(strings.TrimSpace(string(out)), "MainPID=%d", &pid); err == nil && pid > 0 {
				status.PID = pid
			}
		}
	}

	return status, nil
}

func (m *systemdManager) FilePath() string {
	return m.path
}

// systemdQuote quotes one ExecStart word. Control characters become C
// escapes inside the quotes, so a word never spans lines.
func systemdQuote(s string) string {
	s = strings.ReplaceAll(s, "%", "%%")
	s = strings.ReplaceAll(s, "$", "$$")
	if s != "" && !strings.ContainsAny(s, " \t\"'\\;") && !hasControl(s) {
		return s
	}

	var b strings.Builder
	b.WriteByte('"')
	for _, r := range s {
		switch {
		case r == '\\' || r == '"':
			b.WriteByte('\\')
			b.WriteRune(r)
		case r == '\n':
			b.WriteString(`\n`)
		case r == '\t':
			b.WriteString(`\t`)
		case r == '\r':
			b.WriteString(`\r`)
		case unicode.IsControl(r):
			fmt.Fprintf(&b, `\x%02x`, r)
		default:
			b.WriteRune(r)
		}
	}
	b.WriteByte('"')
	return b.String()
}

// systemdDescription makes s safe for a single-line unit setting.
func systemdDescription(s string) string {
	s = strings.Map(func(r rune) rune {
		if unicode.IsControl(r) {
			return ' '
		}
		return r
	}, s)
	return strings.ReplaceAll(s, "%", "%%")
}

func fileExists(path string) (bool, error) {
	_, err := os.Stat(path)
	if os.IsNotExist(err) {
		return false, nil
	}
	if err != nil {
		return false, errors.Wrapf(err, "failed to stat %s", path)
	}
	return true, nil
}
