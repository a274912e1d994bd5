package profile

import (
	"fmt"

	"github.com/cockroachdb/errors"
)

// Kinds of load failure. A *LoadError matches exactly one of these with
// errors.Is.
var (
	// ErrNotDirectory indicates a path expected to be a directory is not one.
	ErrNotDirectory = errors.New("not a directory")
	// ErrConfigParse indicates a profile.yaml could not be parsed.
	ErrConfigParse = errors.New("cannot parse profile config")
	// ErrBadBinary indicates the executable for a profile could not be resolved.
	ErrBadBinary = errors.New("cannot resolve binary")
	// ErrNameConflict indicates two profiles share a display name.
	ErrNameConflict = errors.New("profile name conflict")
	// ErrNoConfigFile indicates a directory has files but no profile.yaml,
	// so it is neither a profile nor a group.
	ErrNoConfigFile = errors.New("no profile config file")
	// ErrEmptyGroup indicates a directory has neither files nor loadable profiles.
	ErrEmptyGroup = errors.New("empty profile group")
	// ErrIO indicates the filesystem failed underneath the loader.
	ErrIO = errors.New("filesystem error")
	// ErrSecretUnavailable indicates a password_keyring profile has no stored password.
	ErrSecretUnavailable = errors.New("profile secret unavailable")
)

// ErrTunUnimplemented is returned when building launch arguments for tun mode.
var ErrTunUnimplemented = errors.New("tun mode is not implemented")

// LoadError is returned by the loader for every malformed layout.
type LoadError struct {
	// Kind is one of the Err* sentinels above.
	Kind error
	// Path is the file or directory at fault.
	Path string
	// Err is the underlying cause, if any.
	Err error
}

func newLoadError(kind error, path string, err error) *LoadError {
	return &LoadError{Kind: kind, Path: path, Err: err}
}

// Error implements error.
func (e *LoadError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%v: %s", e.Kind, e.Path)
	}
	return fmt.Sprintf("%v: %s: %v", e.Kind, e.Path, e.Err)
}

// Unwrap returns the underlying cause.
func (e *LoadError) Unwrap() error {
	return e.Err
}

// Is reports whether target is this error's kind.
func (e *LoadError) Is(target error) bool {
	return e.Kind == target
}
