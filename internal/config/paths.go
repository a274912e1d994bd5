// Package config provides configuration management for sstray.
package config

import (
	"os"
	"path/filepath"

	"github.com/adrg/xdg"
)

const (
	// AppName is the application name used for directories.
	AppName = "sstray"
	// ConfigFileName is the default configuration file name.
	ConfigFileName = "config.yaml"
	// ConfigDirEnv overrides the configuration directory.
	ConfigDirEnv = "SSTRAY_CONFIG_DIR"
)

// Paths holds all the application paths.
type Paths struct {
	ConfigDir   string
	StateDir    string
	ConfigFile  string
	ProfilesDir string
	LogFile     string
}

// GetPaths returns the application paths following the XDG Base Directory
// specification.
func GetPaths() Paths {
	configDir := filepath.Join(xdg.ConfigHome, AppName)
	if dir := os.Getenv(ConfigDirEnv); dir != "" {
		configDir = dir
	}
	stateDir := filepath.Join(xdg.StateHome, AppName)

	return Paths{
		ConfigDir:   configDir,
		StateDir:    stateDir,
		ConfigFile:  filepath.Join(configDir, ConfigFileName),
		ProfilesDir: filepath.Join(configDir, "profiles"),
		LogFile:     filepath.Join(stateDir, AppName+".log"),
	}
}

// EnsureDirs creates the configuration and state directories.
func (p Paths) EnsureDirs() error {
	for _, dir := range []string{p.ConfigDir, p.StateDir} {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return err
		}
	}
	return nil
}

// ExpandHome replaces a leading "~" in path with the user's home directory.
func ExpandHome(path string) string {
	if path != "~" && !hasHomePrefix(path) {
		return path
	}
	return filepath.Join(xdg.Home, path[1:])
}

func hasHomePrefix(path string) bool {
	return len(path) >= 2 && path[0] == '~' && os.IsPathSeparator(path[1])
}
