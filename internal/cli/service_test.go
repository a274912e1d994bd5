package cli

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/cockroachdb/errors"

	"github.com/xabinapal/sstray/internal/service"
)

// fakeService is an in-memory service.Manager.
type fakeService struct {
	cfg       service.Config
	installed bool
	running   bool
	startErr  error
}

func (f *fakeService) Install() error {
	f.installed = true
	f.running = true
	return nil
}

func (f *fakeService) Uninstall() error {
	f.installed = false
	f.running = false
	return nil
}

func (f *fakeService) IsInstalled() (bool, error) { return f.installed, nil }

func (f *fakeService) Start() error {
	if f.startErr != nil {
		return f.startErr
	}
	f.running = true
	return nil
}

func (f *fakeService) Stop() error {
	f.running = false
	return nil
}

func (f *fakeService) Status() (service.Status, error) {
	status := service.Status{
		Profile:   f.cfg.Profile,
		Name:      service.Name(f.cfg.Profile),
		Installed: f.installed,
		Running:   f.running,
	}
	if f.running {
		status.PID = 99
	}
	return status, nil
}

func (f *fakeService) FilePath() string { return "/units/" + service.Name(f.cfg.Profile) }

// useFakeServices makes h build services backed by one shared fakeService.
func (h *harness) useFakeServices() *fakeService {
	fake := &fakeService{}
	h.services = func(cfg service.Config) (service.Manager, error) {
		fake.cfg = cfg
		return fake, nil
	}
	return fake
}

func TestService_Lifecycle(t *testing.T) {
	h := newHarness(t)
	h.addProfile("tokyo", tokyoProfile)
	fake := h.useFakeServices()

	got := h.mustRun("service", "install", "tokyo")
	if !strings.Contains(got, "Service for 'tokyo' installed: /units/sstray-tokyo") {
		t.Errorf("install output = %q", got)
	}
	if !fake.installed {
		t.Fatal("service not installed")
	}
	if fake.cfg.Profile != "tokyo" || fake.cfg.ExecutablePath == "" {
		t.Errorf("service config = %+v", fake.cfg)
	}
	if fake.cfg.ConfigPath != h.configPath {
		t.Errorf("ConfigPath = %q, want %q", fake.cfg.ConfigPath, h.configPath)
	}
	if fake.cfg.ProfilesDir != "" {
		t.Errorf("ProfilesDir = %q, want empty without --profiles-dir", fake.cfg.ProfilesDir)
	}

	got = h.mustRun("service", "status", "tokyo")
	if !strings.Contains(got, "running (pid 99)") {
		t.Errorf("status output = %q", got)
	}

	h.mustRun("service", "stop", "tokyo")
	got = h.mustRun("service", "status", "tokyo")
	if !strings.Contains(got, "stopped") {
		t.Errorf("status after stop = %q", got)
	}

	got = h.mustRun("-o", "json", "service", "status", "tokyo")
	var status service.Status
	if err := json.Unmarshal([]byte(got), &status); err != nil {
		t.Fatalf("json.Unmarshal() error = %v\n%s", err, got)
	}
	if !status.Installed || status.Running || status.Profile != "tokyo" {
		t.Errorf("status = %+v", status)
	}

	got = h.mustRun("service", "uninstall", "tokyo")
	if !strings.Contains(got, "removed") || fake.installed {
		t.Errorf("uninstall output = %q, installed = %v", got, fake.installed)
	}

	got = h.mustRun("service", "uninstall", "tokyo")
	if !strings.Contains(got, "No service installed") {
		t.Errorf("second uninstall output = %q", got)
	}
}

func TestService_InstallPassesProfilesDir(t *testing.T) {
	h := newHarness(t)
	h.addProfile("tokyo", tokyoProfile)
	fake := h.useFakeServices()

	h.mustRun("--profiles-dir", h.root, "service", "install", "tokyo")
	if fake.cfg.ProfilesDir != h.root {
		t.Errorf("ProfilesDir = %q, want %q", fake.cfg.ProfilesDir, h.root)
	}
}

func TestService_InstallRejectsUnlaunchableProfile(t *testing.T) {
	h := newHarness(t)
	h.addProfile("tun", "mode: tun\n")
	fake := h.useFakeServices()

	err := h.run("service", "install", "tun")
	if err == nil || !strings.Contains(err.Error(), "cannot be launched") {
		t.Errorf("install error = %v, want cannot be launched", err)
	}
	if fake.installed {
		t.Error("unlaunchable profile was installed")
	}
}

func TestService_StartRequiresInstall(t *testing.T) {
	h := newHarness(t)
	h.addProfile("tokyo", tokyoProfile)
	h.useFakeServices()

	err := h.run("service", "start", "tokyo")
	if err == nil {
		t.Fatal("start without install expected error")
	}
	hints := errors.GetAllHints(err)
	if len(hints) == 0 || !strings.Contains(hints[0], "sstray service install tokyo") {
		t.Errorf("hints = %q", hints)
	}
}

func TestService_UnsupportedPlatformHint(t *testing.T) {
	h := newHarness(t)
	h.addProfile("tokyo", tokyoProfile)
	h.services = func(service.Config) (service.Manager, error) {
		return nil, service.ErrServiceNotSupported
	}

	err := h.run("service", "status", "tokyo")
	if !errors.Is(err, service.ErrServiceNotSupported) {
		t.Fatalf("status error = %v, want ErrServiceNotSupported", err)
	}
	hints := errors.GetAllHints(err)
	if len(hints) == 0 || !strings.Contains(hints[0], "startup scripts") {
		t.Errorf("hints = %q", hints)
	}
}
