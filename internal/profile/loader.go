package profile

import (
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"unicode/utf8"

	"github.com/cockroachdb/errors"

	"github.com/xabinapal/sstray/internal/proxy"
)

const (
	// ConfigFileName marks a directory as a profile.
	ConfigFileName = "profile.yaml"
	// IgnoreFileName marks a directory, and everything below it, as ignored.
	IgnoreFileName = ".ss_ignore"
	// DefaultBinaryName is looked up in PATH when a profile sets no bin_path.
	DefaultBinaryName = "sslocal"
)

// BinaryResolver returns the path of the default sslocal executable.
type BinaryResolver func() (string, error)

// NewBinaryResolver returns a resolver that searches for name at most once;
// the result, success or failure, is reused by every later call.
func NewBinaryResolver(runner proxy.CommandRunner, name string) BinaryResolver {
	return sync.OnceValues(func() (string, error) {
		return lookupExecutable(runner, name, "")
	})
}

// DefaultBinary resolves DefaultBinaryName from PATH once per process.
var DefaultBinary = NewBinaryResolver(proxy.NewCommandRunner(), DefaultBinaryName)

// SecretStore supplies passwords for profiles that set password_keyring.
type SecretStore interface {
	Get(key string) (string, error)
}

// Loader builds profile trees from directories.
type Loader struct {
	logger        *slog.Logger
	runner        proxy.CommandRunner
	defaultBinary BinaryResolver
	secrets       SecretStore
}

// LoaderOption configures a Loader.
type LoaderOption func(*Loader)

// WithLogger sets the logger used to report skipped directories.
func WithLogger(logger *slog.Logger) LoaderOption {
	return func(l *Loader) {
		l.logger = logger
	}
}

// WithCommandRunner sets the runner used to resolve bin_path overrides.
func WithCommandRunner(runner proxy.CommandRunner) LoaderOption {
	return func(l *Loader) {
		l.runner = runner
	}
}

// WithDefaultBinary sets the resolver used by profiles without bin_path.
func WithDefaultBinary(resolve BinaryResolver) LoaderOption {
	return func(l *Loader) {
		l.defaultBinary = resolve
	}
}

// WithSecretStore sets the store consulted for password_keyring profiles.
func WithSecretStore(store SecretStore) LoaderOption {
	return func(l *Loader) {
		l.secrets = store
	}
}

// NewLoader creates a Loader.
func NewLoader(opts ...LoaderOption) *Loader {
	l := &Loader{
		logger:        slog.New(slog.NewTextHandler(io.Discard, nil)),
		runner:        proxy.NewCommandRunner(),
		defaultBinary: DefaultBinary,
	}

	for _, opt := range opts {
		opt(l)
	}

	return l
}

// Load is shorthand for NewLoader(opts...).Load(root).
func Load(root string, opts ...LoaderOption) (*Folder, error) {
	return NewLoader(opts...).Load(root)
}

// Load recursively loads every profile under root.
//
// Symlinks below root are not followed. If Load fails, callers should carry
// on as if no profiles exist.
func (l *Loader) Load(root string) (*Folder, error) {
	seen := make(map[string]struct{})
	node, err := l.load(root, seen)
	if err != nil {
		return nil, err
	}
	if node == nil {
		return nil, newLoadError(ErrEmptyGroup, root, errors.Newf("root directory contains %s", IgnoreFileName))
	}
	return node, nil
}

// load returns a nil Folder and nil error when path is ignored.
func (l *Loader) load(path string, seen map[string]struct{}) (*Folder, error) {
	dir, err := canonicalize(path)
	if err != nil {
		return nil, newLoadError(ErrIO, path, err)
	}
	if !utf8.ValidString(dir) {
		return nil, newLoadError(ErrIO, dir, errors.New("path is not valid UTF-8"))
	}

	info, err := os.Stat(dir)
	if err != nil {
		return nil, newLoadError(ErrIO, dir, err)
	}
	if !info.IsDir() {
		return nil, newLoadError(ErrNotDirectory, dir, nil)
	}

	if isFile(filepath.Join(dir, IgnoreFileName)) {
		return nil, nil
	}

	// use directory name as the default display name
	name := filepath.Base(dir)

	configPath := filepath.Join(dir, ConfigFileName)
	if isFile(configPath) {
		p, err := l.loadProfile(dir, name, configPath, seen)
		if err != nil {
			return nil, err
		}
		return &Folder{Profile: p}, nil
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, newLoadError(ErrIO, dir, err)
	}

	// Any file here means a profile that is missing its config file.
	var subdirs []string
	for _, entry := range entries {
		entryPath := filepath.Join(dir, entry.Name())
		switch {
		case entry.Type()&fs.ModeSymlink != 0:
			l.logger.Warn("Skipping symlink; symlinks are not followed", "path", entryPath)
		case entry.IsDir():
			subdirs = append(subdirs, entryPath)
		default:
			return nil, newLoadError(ErrNoConfigFile, dir,
				errors.Newf("found %q but no %s", entry.Name(), ConfigFileName))
		}
	}

	group := &Group{DisplayName: name, Path: dir}
	for _, sub := range subdirs {
		child, err := l.load(sub, seen)
		if err != nil {
			l.logger.Debug("Cannot load a subdirectory", "path", sub, "error", err)
			return nil, err
		}
		if child == nil {
			l.logger.Info("Ignored a directory and its children", "path", sub)
			continue
		}
		group.Children = append(group.Children, child)
	}

	if len(group.Children) == 0 {
		return nil, newLoadError(ErrEmptyGroup, dir, nil)
	}
	return &Folder{Group: group}, nil
}

func (l *Loader) loadProfile(dir, defaultName, configPath string, seen map[string]struct{}) (*Profile, error) {
	// #nosec G304 - configPath is profile.yaml inside the user's profile tree
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, newLoadError(ErrIO, configPath, err)
	}
	cfg, err := ParseConfig(data)
	if err != nil {
		return nil, newLoadError(ErrConfigParse, configPath, err)
	}

	mo := cfg.Metadata

	displayName := defaultName
	if mo.DisplayName != "" {
		displayName = mo.DisplayName
	}
	if _, ok := seen[displayName]; ok {
		return nil, newLoadError(ErrNameConflict, dir,
			errors.Newf("display name %q is already used by another profile", displayName))
	}
	seen[displayName] = struct{}{}

	pwd := dir
	if mo.Pwd != "" {
		pwd, err = canonicalize(joinRelative(dir, mo.Pwd))
		if err != nil {
			return nil, newLoadError(ErrIO, dir, errors.Wrap(err, "cannot resolve pwd"))
		}
	}

	var binPath string
	if mo.BinPath != "" {
		binPath, err = lookupExecutable(l.runner, mo.BinPath, dir)
	} else {
		binPath, err = l.defaultBinary()
	}
	if err != nil {
		return nil, newLoadError(ErrBadBinary, dir, err)
	}

	return &Profile{
		metadata: Metadata{
			DisplayName: displayName,
			Pwd:         pwd,
			BinPath:     binPath,
		},
		config:  *cfg,
		dir:     dir,
		secrets: l.secrets,
	}, nil
}

// readSecret fetches the password stored under key.
func readSecret(store SecretStore, key string) (Secret, error) {
	if store == nil {
		return "", errors.New("no secret store configured")
	}
	secret, err := store.Get(key)
	if err != nil {
		return "", errors.Wrapf(err, "cannot read password for %q", key)
	}
	if secret == "" {
		return "", errors.Newf("stored password for %q is empty", key)
	}
	return Secret(secret), nil
}

// lookupExecutable resolves name the way a shell would. A relative name that
// contains a path separator is taken relative to baseDir when one is given.
func lookupExecutable(runner proxy.CommandRunner, name, baseDir string) (string, error) {
	if baseDir != "" && !filepath.IsAbs(name) && filepath.Base(name) != name {
		name = filepath.Join(baseDir, name)
	}
	found, err := runner.LookPath(name)
	if err != nil {
		return "", errors.Wrapf(err, "cannot find executable %q", name)
	}
	resolved, err := canonicalize(found)
	if err != nil {
		return "", errors.Wrapf(err, "cannot resolve executable %q", found)
	}
	return resolved, nil
}

func canonicalize(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", err
	}
	return filepath.EvalSymlinks(abs)
}

func joinRelative(base, path string) string {
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(base, path)
}

func isFile(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}
