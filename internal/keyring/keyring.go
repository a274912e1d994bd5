// Package keyring stores shadowsocks passwords in the OS keyring.
package keyring

import (
	"os"
	"runtime"

	"github.com/cockroachdb/errors"
	gokeyring "github.com/zalando/go-keyring"

	"github.com/xabinapal/sstray/internal/utils"
)

const (
	// ServicePrefix is the prefix used for keyring service names.
	// Each profile has its own service entry: "sstray - <display_name>".
	ServicePrefix = "sstray"

	// TestKeyringEnvVar is the environment variable that, when set to a
	// directory path, makes DefaultStore use a file-based keyring instead of
	// the OS keyring. It is meant for tests only.
	TestKeyringEnvVar = "SSTRAY_TEST_KEYRING_DIR"
)

// serviceName returns the keyring service name for a profile.
func serviceName(profile string) string {
	return ServicePrefix + " - " + profile
}

var (
	// ErrKeyringUnavailable is returned when no secure keyring is available.
	ErrKeyringUnavailable = errors.New("secure keyring is not available on this system")
	// ErrPasswordNotFound is returned when no password is stored for a profile.
	ErrPasswordNotFound = errors.New("password not found in keyring")
	// ErrKeyringAccessDenied is returned when access to the keyring is denied.
	ErrKeyringAccessDenied = errors.New("access to keyring denied")
	// ErrEmptyKey is returned when a profile name is empty.
	ErrEmptyKey = errors.New("key cannot be empty")
)

// Store is a secure password storage backend keyed by profile display name.
type Store interface {
	// Set stores a password for the given key.
	Set(key, password string) error
	// Get retrieves the password for the given key.
	Get(key string) (string, error)
	// Delete removes the password for the given key.
	Delete(key string) error
	// IsAvailable checks if the keyring is available.
	IsAvailable() error
}

// DefaultStore returns the default keyring store for the current platform.
// If SSTRAY_TEST_KEYRING_DIR is set, a file-based store is used instead.
func DefaultStore() Store {
	if testDir := os.Getenv(TestKeyringEnvVar); testDir != "" {
		fileStore, err := NewFileStore(testDir)
		if err != nil {
			return &osKeyring{}
		}
		return fileStore
	}
	return &osKeyring{}
}

// osKeyring implements Store using the OS keyring.
type osKeyring struct{}

// IsAvailable checks if a secure keyring is available on this system.
func (k *osKeyring) IsAvailable() error {
	_, err := gokeyring.Get(serviceName("__availability_check__"), "test")
	if err == nil || errors.Is(err, gokeyring.ErrNotFound) {
		return nil
	}
	return classifyUnavailable(runtime.GOOS, err)
}

// classifyUnavailable maps a failed availability probe to ErrKeyringUnavailable
// when the message identifies a missing platform backend. Other errors are
// treated as available; the real operation reports them better.
func classifyUnavailable(goos string, err error) error {
	errStr := err.Error()
	switch goos {
	case "linux":
		if utils.ContainsAny(errStr, "secret service", "dbus", "org.freedesktop.secrets") {
			return errors.WithHint(
				errors.Wrap(ErrKeyringUnavailable, "D-Bus secret service not available"),
				"install and start gnome-keyring, kwallet, or another secret service provider")
		}
	case "darwin":
		if utils.ContainsAny(errStr, "keychain", "security") {
			return errors.Wrap(ErrKeyringUnavailable, "macOS Keychain not accessible")
		}
	case "windows":
		if utils.ContainsAny(errStr, "credential", "wincred") {
			return errors.Wrap(ErrKeyringUnavailable, "Windows Credential Manager not accessible")
		}
	}
	return nil
}

// Set stores a password in the keyring.
// The key is the profile display name, used as both service suffix and account.
func (k *osKeyring) Set(key, password string) error {
	if err := k.IsAvailable(); err != nil {
		return err
	}
	if key == "" {
		return ErrEmptyKey
	}
	if password == "" {
		return errors.New("password cannot be empty")
	}

	if err := gokeyring.Set(serviceName(key), key, password); err != nil {
		return wrapKeyringError(err, "failed to store password")
	}
	return nil
}

// Get retrieves a password from the keyring.
func (k *osKeyring) Get(key string) (string, error) {
	if err := k.IsAvailable(); err != nil {
		return "", err
	}
	if key == "" {
		return "", ErrEmptyKey
	}

	password, err := gokeyring.Get(serviceName(key), key)
	if err != nil {
		if errors.Is(err, gokeyring.ErrNotFound) {
			return "", ErrPasswordNotFound
		}
		return "", wrapKeyringError(err, "failed to retrieve password")
	}
	return password, nil
}

// Delete removes a password from the keyring. Deleting a missing entry is
// not an error.
func (k *osKeyring) Delete(key string) error {
	if err := k.IsAvailable(); err != nil {
		return err
	}
	if key == "" {
		return ErrEmptyKey
	}

	if err := gokeyring.Delete(serviceName(key), key); err != nil {
		if errors.Is(err, gokeyring.ErrNotFound) {
			return nil
		}
		return wrapKeyringError(err, "failed to delete password")
	}
	return nil
}

// wrapKeyringError wraps a keyring error with context.
func wrapKeyringError(err error, context string) error {
	if err == nil {
		return nil
	}

	errStr := err.Error()
	switch {
	case utils.ContainsAny(errStr, "denied", "permission", "not allowed", "unauthorized"):
		return errors.Mark(errors.Wrap(err, context), ErrKeyringAccessDenied)
	case utils.ContainsAny(errStr, "not found", "no keyring", "unavailable", "secret service"):
		return errors.Mark(errors.Wrap(err, context), ErrKeyringUnavailable)
	}
	return errors.Wrap(err, context)
}
