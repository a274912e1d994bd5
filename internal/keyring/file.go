package keyring

import (
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/cockroachdb/errors"

	"github.com/xabinapal/sstray/internal/utils"
)

// FileStore is a file-based keyring implementation for testing.
// Passwords are stored in plain files within a directory; never use it
// outside tests.
type FileStore struct {
	mu  sync.Mutex
	dir string
}

// NewFileStore creates a new file-based keyring store, creating dir if needed.
func NewFileStore(dir string) (*FileStore, error) {
	if dir == "" {
		return nil, errors.New("directory path is required")
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, errors.Wrap(err, "failed to create keyring directory")
	}
	return &FileStore{dir: dir}, nil
}

// IsAvailable implements Store.
func (f *FileStore) IsAvailable() error {
	info, err := os.Stat(f.dir)
	if err != nil {
		return errors.Wrapf(ErrKeyringUnavailable, "directory not accessible: %v", err)
	}
	if !info.IsDir() {
		return errors.Wrap(ErrKeyringUnavailable, "path is not a directory")
	}
	return nil
}

// keyPath returns the file path for a key, which is always inside the store
// directory.
func (f *FileStore) keyPath(key string) (string, error) {
	fullPath := filepath.Join(f.dir, utils.SanitizeKey(key))

	absDir, err := filepath.Abs(f.dir)
	if err != nil {
		return "", errors.Wrap(err, "failed to resolve directory")
	}
	absPath, err := filepath.Abs(fullPath)
	if err != nil {
		return "", errors.Wrap(err, "failed to resolve path")
	}
	if !strings.HasPrefix(absPath, absDir+string(filepath.Separator)) {
		return "", errors.New("invalid key: path traversal detected")
	}

	return fullPath, nil
}

// Set implements Store.
func (f *FileStore) Set(key, password string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if key == "" {
		return ErrEmptyKey
	}

	path, err := f.keyPath(key)
	if err != nil {
		return err
	}

	// Remove first so a planted symlink is replaced, not followed.
	_ = os.Remove(path)

	// #nosec G304 - path is from keyPath(), always inside the store directory
	file, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600)
	if err != nil {
		return errors.Wrap(err, "failed to create password file")
	}
	defer file.Close()

	if _, err := file.WriteString(password); err != nil {
		return errors.Wrap(err, "failed to write password")
	}
	return nil
}

// Get implements Store.
func (f *FileStore) Get(key string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if key == "" {
		return "", ErrEmptyKey
	}

	path, err := f.keyPath(key)
	if err != nil {
		return "", err
	}

	// #nosec G304 - path is from keyPath(), always inside the store directory
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", ErrPasswordNotFound
		}
		return "", errors.Wrap(err, "failed to read password")
	}
	return string(data), nil
}

// Delete implements Store.
func (f *FileStore) Delete(key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if key == "" {
		return ErrEmptyKey
	}

	path, err := f.keyPath(key)
	if err != nil {
		return err
	}

	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return errors.Wrap(err, "failed to delete password")
	}
	return nil
}
