package service

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"text/template"

	"github.com/adrg/xdg"
	"github.com/cockroachdb/errors"
)

// LabelPrefix prefixes launchd agent labels.
const LabelPrefix = "io.sstray."

var launchdPlistTemplate = template.Must(template.New("plist").Funcs(template.FuncMap{
	"xml": xmlEscape,
}).Parse(`<?xml version="1.0" encoding="UTF-8"?>
<!DOCTYPE plist PUBLIC "-//Apple//DTD PLIST 1.0//EN" "http://www.apple.com/DTDs/PropertyList-1.0.dtd">
<plist version="1.0">
<dict>
    <key>Label</key>
    <string>{{xml .Label}}</string>
    <key>ProgramArguments</key>
    <array>
{{- range .Args}}
        <string>{{xml .}}</string>
{{- end}}
    </array>
    <key>RunAtLoad</key>
    <true/>
    <key>KeepAlive</key>
    <dict>
        <key>SuccessfulExit</key>
        <false/>
    </dict>
{{- if .LogPath}}
    <key>StandardOutPath</key>
    <string>{{xml .LogPath}}</string>
    <key>StandardErrorPath</key>
    <string>{{xml .LogPath}}</string>
{{- end}}
    <key>ProcessType</key>
    <string>Background</string>
</dict>
</plist>
`))

var launchdPIDPattern = regexp.MustCompile(`"PID"\s*[=:]\s*(\d+)`)

// launchdManager manages launchd user agents on macOS.
type launchdManager struct {
	cfg   Config
	run   Runner
	label string
	path  string
}

func newLaunchdManager(cfg Config, o options) *launchdManager {
	dir := o.dir
	if dir == "" {
		dir = filepath.Join(xdg.Home, "Library", "LaunchAgents")
	}
	label := LabelPrefix + strings.TrimPrefix(Name(cfg.Profile), NamePrefix+"-")
	return &launchdManager{
		cfg:   cfg,
		run:   o.run,
		label: label,
		path:  filepath.Join(dir, label+".plist"),
	}
}

func (m *launchdManager) render() (string, error) {
	var b strings.Builder
	err := launchdPlistTemplate.Execute(&b, struct {
		Label   string
		Args    []string
		LogPath string
	}{
		Label:   m.label,
		Args:    append([]string{m.cfg.ExecutablePath}, m.cfg.Args()...),
		LogPath: m.cfg.LogPath,
	})
	if err != nil {
		return "", errors.Wrap(err, "failed to render plist")
	}
	return b.String(), nil
}

func (m *launchdManager) domain() string {
	return fmt.Sprintf("gui/%d", os.Getuid())
}

func (m *launchdManager) bootstrap(msg string) error {
	out, err := m.run("launchctl", "bootstrap", m.domain(), m.path)
	if err != nil && !alreadyLoaded(out) {
		return commandError(err, out, msg)
	}
	return nil
}

func (m *launchdManager) bootout() {
	//nolint:errcheck // the agent may not be loaded
	_, _ = m.run("launchctl", "bootout", m.domain(), m.path)
}

func (m *launchdManager) Install() error {
	content, err := m.render()
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(m.path), 0o750); err != nil {
		return errors.Wrap(err, "failed to create LaunchAgents directory")
	}
	if m.cfg.LogPath != "" {
		if err := os.MkdirAll(filepath.Dir(m.cfg.LogPath), 0o700); err != nil {
			return errors.Wrap(err, "failed to create log directory")
		}
	}
	if err := os.WriteFile(m.path, []byte(content), 0o600); err != nil {
		return errors.Wrap(err, "failed to write plist")
	}

	// RunAtLoad starts the agent once bootstrapped
	return m.bootstrap("failed to install agent")
}

func (m *launchdManager) Uninstall() error {
	if installed, err := m.IsInstalled(); err == nil && installed {
		m.bootout()
	}

	if err := os.Remove(m.path); err != nil && !os.IsNotExist(err) {
		return errors.Wrap(err, "failed to remove plist")
	}
	return nil
}

func (m *launchdManager) IsInstalled() (bool, error) {
	return fileExists(m.path)
}

func (m *launchdManager) Start() error {
	return m.bootstrap("failed to start agent")
}

// Stop unloads the agent; KeepAlive would otherwise restart it.
func (m *launchdManager) Stop() error {
	m.bootout()
	return nil
}

func (m *launchdManager) Status() (Status, error) {
	status := Status{Profile: m.cfg.Profile, Name: m.label}

	installed, err := m.IsInstalled()
	if err != nil {
		return status, err
	}
	status.Installed = installed
	if !installed {
		return status, nil
	}

	out, err := m.run("launchctl", "list", m.label)
	if err != nil {
		return status, nil
	}
	if pid := parseLaunchdPID(string(out)); pid > 0 {
		status.Running = true
		status.PID = pid
	}
	return status, nil
}

func (m *launchdManager) FilePath() string {
	return m.path
}

// parseLaunchdPID extracts the PID from `launchctl list <label>` output, which
// is either a plist-like dictionary or a tab-separated PID/Status/Label row.
func parseLaunchdPID(out string) int {
	if matches := launchdPIDPattern.FindStringSubmatch(out); len(matches) > 1 {
		if pid, err := strconv.Atoi(matches[1]); err == nil {
			return pid
		}
	}
	for _, line := range strings.Split(out, "\n") {
		fields := strings.Fields(line)
		if len(fields) == 0 || fields[0] == "-" {
			continue
		}
		if pid, err := strconv.Atoi(fields[0]); err == nil && pid > 0 {
			return pid
		}
	}
	return 0
}

func alreadyLoaded(out []byte) bool {
	s := string(out)
	return strings.Contains(s, "already bootstrapped") || strings.Contains(s, "already loaded")
}

func xmlEscape(s string) string {
	var b bytes.Buffer
	//nolint:errcheck // bytes.Buffer writes do not fail
	_ = xml.EscapeText(&b, []byte(s))
	return b.String()
}
