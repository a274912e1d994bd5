package config

import (
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/xabinapal/sstray/internal/logging"
)

// EnvPrefix prefixes environment variable overrides, e.g. SSTRAY_LOG_LEVEL.
const EnvPrefix = "SSTRAY"

// LogConfig holds logging settings.
type LogConfig struct {
	// Level is the minimum level (debug, info, warn, error).
	Level string `mapstructure:"level" yaml:"level" json:"level"`
	// Format is the console format (text or json).
	Format string `mapstructure:"format" yaml:"format" json:"format"`
	// File, when set, also receives JSON log records.
	File string `mapstructure:"file" yaml:"file,omitempty" json:"file,omitempty"`
	// MaxSize is the log file size in MB before rotation (0 = never).
	MaxSize int `mapstructure:"max_size" yaml:"max_size" json:"max_size"`
}

// NotificationConfig holds settings for desktop notifications.
type NotificationConfig struct {
	// Enabled enables desktop notifications.
	Enabled bool `mapstructure:"enabled" yaml:"enabled" json:"enabled"`
	// OnLaunch notifies when sslocal starts.
	OnLaunch bool `mapstructure:"on_launch" yaml:"on_launch" json:"on_launch"`
	// OnExit notifies when sslocal exits.
	OnExit bool `mapstructure:"on_exit" yaml:"on_exit" json:"on_exit"`
	// OnFailure notifies when profiles fail to load or sslocal fails to start.
	OnFailure bool `mapstructure:"on_failure" yaml:"on_failure" json:"on_failure"`
}

// Config represents the sstray configuration.
type Config struct {
	// ProfilesDir is the root of the profile tree.
	ProfilesDir string `mapstructure:"profiles_dir" yaml:"profiles_dir" json:"profiles_dir"`
	// DefaultBinary is looked up in PATH for profiles without bin_path.
	DefaultBinary string `mapstructure:"default_binary" yaml:"default_binary" json:"default_binary"`
	// Log holds logging settings.
	Log LogConfig `mapstructure:"log" yaml:"log" json:"log"`
	// Notifications holds notification settings.
	Notifications NotificationConfig `mapstructure:"notifications" yaml:"notifications" json:"notifications"`

	// filePath is the path where this config was loaded from.
	filePath string
}

// Default returns a new Config with default values.
func Default() *Config {
	paths := GetPaths()
	return &Config{
		ProfilesDir:   paths.ProfilesDir,
		DefaultBinary: "sslocal",
		Log: LogConfig{
			Level:   "info",
			Format:  "text",
			MaxSize: 10,
		},
		Notifications: NotificationConfig{
			Enabled:   false,
			OnLaunch:  true,
			OnExit:    true,
			OnFailure: true,
		},
		filePath: paths.ConfigFile,
	}
}

func setDefaults(v *viper.Viper, d *Config) {
	v.SetDefault("profiles_dir", d.ProfilesDir)
	v.SetDefault("default_binary", d.DefaultBinary)
	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.format", d.Log.Format)
	v.SetDefault("log.file", d.Log.File)
	v.SetDefault("log.max_size", d.Log.MaxSize)
	v.SetDefault("notifications.enabled", d.Notifications.Enabled)
	v.SetDefault("notifications.on_launch", d.Notifications.OnLaunch)
	v.SetDefault("notifications.on_exit", d.Notifications.OnExit)
	v.SetDefault("notifications.on_failure", d.Notifications.OnFailure)
}

// Load reads the configuration.
// If path is empty, config.yaml is looked up in the config directory and a
// missing file yields the defaults. An explicit path must exist.
// Environment variables (SSTRAY_PROFILES_DIR, SSTRAY_LOG_LEVEL, ...) override
// file values.
func Load(path string) (*Config, error) {
	v := viper.New()
	defaults := Default()
	setDefaults(v, defaults)

	v.SetConfigType("yaml")
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	filePath := defaults.filePath
	if path != "" {
		v.SetConfigFile(path)
		filePath = path
	} else {
		v.SetConfigName(strings.TrimSuffix(ConfigFileName, filepath.Ext(ConfigFileName)))
		v.AddConfigPath(filepath.Dir(defaults.filePath))
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		switch {
		case path == "" && errors.As(err, &notFound):
			// No config file, use defaults
		case errors.Is(err, fs.ErrNotExist):
			return nil, errors.WithHint(
				errors.Wrapf(err, "config file not found at %s", path),
				"run `sstray config init` to create one")
		default:
			return nil, errors.Wrap(err, "failed to read config file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, errors.Wrap(err, "failed to parse config file")
	}
	cfg.filePath = filePath
	cfg.ProfilesDir = ExpandHome(cfg.ProfilesDir)
	cfg.Log.File = ExpandHome(cfg.Log.File)

	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "validating config")
	}
	return &cfg, nil
}

// Validate checks that every setting has a usable value.
func (c *Config) Validate() error {
	if c.ProfilesDir == "" {
		return errors.New("profiles_dir must not be empty")
	}
	if c.DefaultBinary == "" {
		return errors.New("default_binary must not be empty")
	}
	if _, err := logging.ParseLevel(c.Log.Level); err != nil {
		return err
	}
	if _, err := logging.ParseFormat(c.Log.Format); err != nil {
		return err
	}
	if c.Log.MaxSize < 0 {
		return errors.Newf("log.max_size must not be negative, got %d", c.Log.MaxSize)
	}
	return nil
}

// Path returns the file this config was loaded from or will be saved to.
func (c *Config) Path() string {
	return c.filePath
}

// SetPath changes where Save writes.
func (c *Config) SetPath(path string) {
	c.filePath = path
}

// LogMaxBytes returns Log.MaxSize in bytes.
func (c *Config) LogMaxBytes() int64 {
	return int64(c.Log.MaxSize) * 1024 * 1024
}

// Save writes the configuration to its file path.
func (c *Config) Save() error {
	if c.filePath == "" {
		return errors.New("config file path not set")
	}

	if err := os.MkdirAll(filepath.Dir(c.filePath), 0o700); err != nil {
		return errors.Wrap(err, "failed to create config directory")
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return errors.Wrap(err, "failed to marshal config")
	}

	if err := os.WriteFile(c.filePath, data, 0o600); err != nil {
		return errors.Wrap(err, "failed to write config file")
	}

	return nil
}
