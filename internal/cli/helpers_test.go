package cli

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/adrg/xdg"
	"github.com/cockroachdb/errors"

	"github.com/xabinapal/sstray/internal/keyring"
	"github.com/xabinapal/sstray/internal/profile"
	"github.com/xabinapal/sstray/internal/proxy"
	"github.com/xabinapal/sstray/internal/service"
)

const tokyoProfile = `mode: proxy
local_addr: [127.0.0.1, 1080]
server_addr: [tokyo.example.com, 8388]
password: pw-secret
encrypt_method: aes-256-gcm
`

const amsProfile = `mode: config-file
config_path: ams.json
`

// recordingNotifier records notifications as "event:profile" strings.
type recordingNotifier struct {
	mu     sync.Mutex
	events []string
}

func (n *recordingNotifier) record(format string, args ...any) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, fmt.Sprintf(format, args...))
	return nil
}

func (n *recordingNotifier) NotifyLaunched(name string, pid int) error {
	return n.record("launched:%s", name)
}

func (n *recordingNotifier) NotifyExited(name string, exitCode int, _ time.Duration) error {
	return n.record("exited:%s:%d", name, exitCode)
}

func (n *recordingNotifier) NotifyLaunchFailed(name string, _ error) error {
	return n.record("launch-failed:%s", name)
}

func (n *recordingNotifier) NotifyLoadFailed(root string, _ error) error {
	return n.record("load-failed:%s", filepath.Base(root))
}

func (n *recordingNotifier) Events() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.events...)
}

// harness runs CLI commands against a temporary profile tree with a mock
// sslocal.
type harness struct {
	t          *testing.T
	dir        string
	root       string
	binary     string
	configPath string

	runner   *proxy.MockRunner
	keyring  *memoryKeyring
	notifier *recordingNotifier
	finder   Finder
	services ServiceFactory
	stdin    string

	stdout bytes.Buffer
	stderr bytes.Buffer
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("executable bits are not meaningful on windows")
	}

	dir := t.TempDir()
	isolateEnv(t, dir)

	root := filepath.Join(dir, "profiles")
	mustMkdir(t, root)

	binary := filepath.Join(dir, "bin", "sslocal")
	mustMkdir(t, filepath.Dir(binary))
	mustWrite(t, binary, "#!/bin/sh\nexit 0\n", 0o755)

	h := &harness{
		t:          t,
		dir:        dir,
		root:       root,
		binary:     canonicalPath(t, binary),
		configPath: filepath.Join(dir, "config.yaml"),
		runner:     proxy.NewMockRunner(),
		keyring:    &memoryKeyring{},
		notifier:   &recordingNotifier{},
		finder: func([]profile.Info) (int, error) {
			return 0, errors.New("no finder in this test")
		},
		services: func(service.Config) (service.Manager, error) {
			return nil, errors.New("no service manager in this test")
		},
	}
	h.runner.LookPathFunc = func(file string) (string, error) {
		if file == "sslocal" {
			return binary, nil
		}
		if filepath.IsAbs(file) {
			if _, err := os.Stat(file); err == nil {
				return file, nil
			}
		}
		return "", errors.Newf("%s: executable file not found in $PATH", file)
	}

	h.writeConfig(fmt.Sprintf("profiles_dir: %s\nlog:\n  level: debug\n", root))
	return h
}

// isolateEnv keeps tests away from the user's configuration and state.
func isolateEnv(t *testing.T, dir string) {
	t.Helper()
	t.Cleanup(xdg.Reload)
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(dir, "xdg-config"))
	t.Setenv("XDG_STATE_HOME", filepath.Join(dir, "xdg-state"))
	t.Setenv("SSTRAY_CONFIG_DIR", filepath.Join(dir, "xdg-config", "sstray"))
	for _, key := range []string{
		"SSTRAY_PROFILES_DIR", "SSTRAY_DEFAULT_BINARY", "SSTRAY_LOG_LEVEL",
		"SSTRAY_LOG_FORMAT", "SSTRAY_LOG_FILE", "SSTRAY_NOTIFICATIONS_ENABLED",
		"EDITOR", "VISUAL",
	} {
		t.Setenv(key, "")
		if err := os.Unsetenv(key); err != nil {
			t.Fatalf("Unsetenv(%s) error = %v", key, err)
		}
	}
	xdg.Reload()
}

func (h *harness) writeConfig(content string) {
	h.t.Helper()
	mustWrite(h.t, h.configPath, content, 0o600)
}

// addProfile writes a profile.yaml below the profile root.
func (h *harness) addProfile(rel, doc string) string {
	h.t.Helper()
	dir := filepath.Join(h.root, filepath.FromSlash(rel))
	mustMkdir(h.t, dir)
	mustWrite(h.t, filepath.Join(dir, profile.ConfigFileName), doc, 0o644)
	return canonicalPath(h.t, dir)
}

// run executes sstray with args and returns the command error.
func (h *harness) run(args ...string) error {
	h.t.Helper()
	h.stdout.Reset()
	h.stderr.Reset()

	c := New(
		WithOutput(&h.stdout, &h.stderr),
		WithInput(strings.NewReader(h.stdin)),
		WithCommandRunner(h.runner),
		WithNotifier(h.notifier),
		WithKeyring(h.keyring),
		WithFinder(h.finder),
		WithServiceFactory(h.services),
	)
	c.rootCmd.SetArgs(append([]string{"--config", h.configPath}, args...))
	return c.Execute(context.Background())
}

// mustRun is run for commands expected to succeed.
func (h *harness) mustRun(args ...string) string {
	h.t.Helper()
	if err := h.run(args...); err != nil {
		h.t.Fatalf("sstray %s: error = %v\nstderr:\n%s", strings.Join(args, " "), err, h.stderr.String())
	}
	return h.stdout.String()
}

func mustMkdir(t *testing.T, dir string) {
	t.Helper()
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("MkdirAll(%s) error = %v", dir, err)
	}
}

func mustWrite(t *testing.T, path, content string, perm os.FileMode) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), perm); err != nil {
		t.Fatalf("WriteFile(%s) error = %v", path, err)
	}
}

func canonicalPath(t *testing.T, path string) string {
	t.Helper()
	resolved, err := filepath.EvalSymlinks(path)
	if err != nil {
		t.Fatalf("EvalSymlinks(%s) error = %v", path, err)
	}
	return resolved
}

// memoryKeyring is a keyring.Store kept in a map. With failing set it
// behaves like a machine without a keyring backend.
type memoryKeyring struct {
	mu      sync.Mutex
	secrets map[string]string
	failing bool
}

var _ keyring.Store = (*memoryKeyring)(nil)

func (k *memoryKeyring) setFailing(failing bool) {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.failing = failing
}

func (k *memoryKeyring) stored() int {
	k.mu.Lock()
	defer k.mu.Unlock()
	return len(k.secrets)
}

func (k *memoryKeyring) IsAvailable() error {
	k.mu.Lock()
	defer k.mu.Unlock()
	if k.failing {
		return keyring.ErrKeyringUnavailable
	}
	return nil
}

func (k *memoryKeyring) Set(key, password string) error {
	k.mu.Lock()
	defer k.mu.Unlock()
	switch {
	case k.failing:
		return keyring.ErrKeyringUnavailable
	case key == "":
		return keyring.ErrEmptyKey
	}
	if k.secrets == nil {
		k.secrets = make(map[string]string)
	}
	k.secrets[key] = password
	return nil
}

func (k *memoryKeyring) Get(key string) (string, error) {
	k.mu.Lock()
	defer k.mu.Unlock()
	if k.failing {
		return "", keyring.ErrKeyringUnavailable
	}
	password, ok := k.secrets[key]
	if !ok {
		return "", keyring.ErrPasswordNotFound
	}
	return password, nil
}

func (k *memoryKeyring) Delete(key string) error {
	k.mu.Lock()
	defer k.mu.Unlock()
	if k.failing {
		return keyring.ErrKeyringUnavailable
	}
	delete(k.secrets, key)
	return nil
}
