// Package profile loads sslocal launch profiles from a directory tree.
//
// A directory containing profile.yaml is a profile; a directory containing
// only subdirectories is a group; a directory containing .ss_ignore is
// skipped along with everything under it. Load walks such a tree and returns
// a Folder, or a *LoadError describing the first problem it found.
package profile

import (
	"context"
	"io"

	"github.com/xabinapal/sstray/internal/proxy"
)

// Metadata is the fully resolved launch metadata of a profile.
type Metadata struct {
	// DisplayName is unique within the loaded tree.
	DisplayName string `json:"display_name"`
	// Pwd is the absolute, canonical working directory.
	Pwd string `json:"pwd"`
	// BinPath is the absolute, canonical path of the sslocal executable.
	BinPath string `json:"bin_path"`
}

// Profile is a complete sslocal launch profile. It is immutable once loaded.
type Profile struct {
	metadata Metadata
	config   Config
	dir      string
	secrets  SecretStore
}

// Metadata returns the resolved metadata.
func (p *Profile) Metadata() Metadata {
	return p.metadata
}

// DisplayName returns the profile's unique name.
func (p *Profile) DisplayName() string {
	return p.metadata.DisplayName
}

// Mode returns the launch mode.
func (p *Profile) Mode() Mode {
	return p.config.Options.Mode()
}

// Options returns the mode-specific options.
func (p *Profile) Options() Options {
	return p.config.Options
}

// Dir returns the directory the profile was loaded from.
func (p *Profile) Dir() string {
	return p.dir
}

// LaunchArgs returns the sslocal arguments for this profile.
//
// A password_keyring password is read from the secret store on every call,
// so loading a tree never touches the keyring. A missing password fails with
// ErrSecretUnavailable.
func (p *Profile) LaunchArgs() ([]string, error) {
	opts, ok := p.config.Options.(*ProxyOptions)
	if !ok || !opts.PasswordKeyring {
		return p.config.Options.LaunchArgs()
	}

	secret, err := readSecret(p.secrets, p.metadata.DisplayName)
	if err != nil {
		return nil, newLoadError(ErrSecretUnavailable, p.dir, err)
	}
	withSecret := *opts
	withSecret.Password = secret
	return withSecret.LaunchArgs()
}

// Run starts sslocal using the settings of this profile.
//
// stdin is always the null device. If stdout or stderr is nil, that output
// is discarded. The returned handle is not checked for abnormal termination;
// that is up to the caller.
func (p *Profile) Run(ctx context.Context, stdout, stderr io.Writer, opts ...proxy.Option) (*proxy.Handle, error) {
	args, err := p.LaunchArgs()
	if err != nil {
		return nil, err
	}

	launchOpts := make([]proxy.Option, 0, len(opts)+2)
	launchOpts = append(launchOpts, opts...)
	if stdout != nil {
		launchOpts = append(launchOpts, proxy.WithStdout(stdout))
	}
	if stderr != nil {
		launchOpts = append(launchOpts, proxy.WithStderr(stderr))
	}

	return proxy.NewLauncher(launchOpts...).Start(ctx, proxy.Spec{
		Binary: p.metadata.BinPath,
		Dir:    p.metadata.Pwd,
		Args:   args,
	})
}
