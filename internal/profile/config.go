package profile

import (
	"encoding/json"
	"log/slog"
	"strconv"
	"strings"

	"github.com/cockroachdb/errors"
	"gopkg.in/yaml.v3"
)

// Mode selects how sslocal is launched.
type Mode string

const (
	// ModeConfigFile launches sslocal with an arbitrary config file.
	ModeConfigFile Mode = "config-file"
	// ModeProxy launches sslocal in proxy mode.
	ModeProxy Mode = "proxy"
	// ModeTun launches sslocal in tun mode.
	ModeTun Mode = "tun"
)

// MetadataOverride holds optional fields that replace the defaults derived
// from a profile's directory. Empty means "use the default"; an explicitly
// blank display_name is rejected by ParseConfig.
type MetadataOverride struct {
	DisplayName string `yaml:"display_name,omitempty" json:"display_name,omitempty"`
	Pwd         string `yaml:"pwd,omitempty" json:"pwd,omitempty"`
	BinPath     string `yaml:"bin_path,omitempty" json:"bin_path,omitempty"`
}

// Options is the mode-specific part of a profile config.
// The set of implementations is closed: ConfigFileOptions, ProxyOptions
// and TunOptions.
type Options interface {
	// Mode returns the mode this variant is selected by.
	Mode() Mode
	// LaunchArgs renders the sslocal arguments for this variant.
	LaunchArgs() ([]string, error)

	validate() error
}

// Config is one parsed profile.yaml.
type Config struct {
	Metadata MetadataOverride
	Options  Options
}

// ParseConfig parses a profile document. The "mode" field selects the
// variant; metadata and mode-specific fields share the same mapping.
func ParseConfig(data []byte) (*Config, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, errors.Wrap(err, "invalid yaml")
	}
	if doc.Kind == 0 || len(doc.Content) == 0 {
		return nil, errors.New("empty profile document")
	}

	var head struct {
		Mode             Mode `yaml:"mode"`
		MetadataOverride `yaml:",inline"`
	}
	if err := doc.Decode(&head); err != nil {
		return nil, errors.Wrap(err, "invalid profile document")
	}
	if blankScalar(doc.Content[0], "display_name") {
		return nil, errors.New("`display_name` must not be empty")
	}

	var opts Options
	switch head.Mode {
	case ModeConfigFile:
		opts = &ConfigFileOptions{}
	case ModeProxy:
		opts = &ProxyOptions{}
	case ModeTun:
		opts = &TunOptions{}
	case "":
		return nil, errors.New("missing field `mode`")
	default:
		return nil, errors.Newf("unknown mode %q, expected one of %q, %q, %q",
			head.Mode, ModeConfigFile, ModeProxy, ModeTun)
	}

	if err := doc.Decode(opts); err != nil {
		return nil, errors.Wrapf(err, "invalid %s profile", head.Mode)
	}
	if err := opts.validate(); err != nil {
		return nil, errors.Wrapf(err, "invalid %s profile", head.Mode)
	}

	return &Config{Metadata: head.MetadataOverride, Options: opts}, nil
}

// blankScalar reports whether mapping m sets key to an empty, blank or null
// scalar.
func blankScalar(m *yaml.Node, key string) bool {
	if m.Kind != yaml.MappingNode {
		return false
	}
	for i := 0; i+1 < len(m.Content); i += 2 {
		if m.Content[i].Value == key {
			v := m.Content[i+1]
			return v.Kind == yaml.ScalarNode && strings.TrimSpace(v.Value) == ""
		}
	}
	return false
}

// ConfigFileOptions are the fields of a config-file profile.
type ConfigFileOptions struct {
	ConfigPath string   `yaml:"config_path" json:"config_path"`
	ExtraArgs  []string `yaml:"extra_args,omitempty" json:"extra_args,omitempty"`
}

// Mode implements Options.
func (o *ConfigFileOptions) Mode() Mode { return ModeConfigFile }

// LaunchArgs implements Options.
func (o *ConfigFileOptions) LaunchArgs() ([]string, error) {
	args := make([]string, 0, 2+len(o.ExtraArgs))
	args = append(args, "--config", o.ConfigPath)
	args = append(args, o.ExtraArgs...)
	return args, nil
}

func (o *ConfigFileOptions) validate() error {
	if o.ConfigPath == "" {
		return errors.New("missing field `config_path`")
	}
	return nil
}

// ProxyOptions are the fields of a proxy profile.
type ProxyOptions struct {
	LocalAddr     LocalAddr  `yaml:"local_addr" json:"local_addr"`
	ServerAddr    ServerAddr `yaml:"server_addr" json:"server_addr"`
	Password      Secret     `yaml:"password,omitempty" json:"password,omitempty"`
	EncryptMethod string     `yaml:"encrypt_method" json:"encrypt_method"`
	ExtraArgs     []string   `yaml:"extra_args,omitempty" json:"extra_args,omitempty"`

	// PasswordKeyring makes Profile.LaunchArgs fetch the password from the
	// secret store, keyed by the profile's display name.
	PasswordKeyring bool `yaml:"password_keyring,omitempty" json:"password_keyring,omitempty"`
}

// Mode implements Options.
func (o *ProxyOptions) Mode() Mode { return ModeProxy }

// LaunchArgs implements Options.
func (o *ProxyOptions) LaunchArgs() ([]string, error) {
	args := make([]string, 0, 8+len(o.ExtraArgs))
	args = append(args,
		"--local-addr", o.LocalAddr.String(),
		"--server-addr", o.ServerAddr.String(),
		"--password", o.Password.Reveal(),
		"--encrypt-method", o.EncryptMethod,
	)
	args = append(args, o.ExtraArgs...)
	return args, nil
}

func (o *ProxyOptions) validate() error {
	switch {
	case o.LocalAddr.IsZero():
		return errors.New("missing field `local_addr`")
	case o.ServerAddr.IsZero():
		return errors.New("missing field `server_addr`")
	case o.Password == "" && !o.PasswordKeyring:
		return errors.New("missing field `password`")
	case o.Password != "" && o.PasswordKeyring:
		return errors.New("`password` and `password_keyring` are mutually exclusive")
	case o.EncryptMethod == "":
		return errors.New("missing field `encrypt_method`")
	}
	return nil
}

// TunOptions are the fields of a tun profile.
type TunOptions struct {
	ExtraArgs []string `yaml:"extra_args,omitempty" json:"extra_args,omitempty"`
}

// Mode implements Options.
func (o *TunOptions) Mode() Mode { return ModeTun }

// LaunchArgs implements Options. Tun mode is not supported yet and always
// fails.
func (o *TunOptions) LaunchArgs() ([]string, error) {
	return nil, ErrTunUnimplemented
}

func (o *TunOptions) validate() error { return nil }

// redacted replaces a Secret wherever it is printed.
const redacted = "*hidden*"

// Secret is a string that never prints its value.
type Secret string

// Reveal returns the clear value.
func (s Secret) Reveal() string {
	return string(s)
}

// String implements fmt.Stringer.
func (s Secret) String() string {
	return redacted
}

// GoString implements fmt.GoStringer.
func (s Secret) GoString() string {
	return strconv.Quote(redacted)
}

// LogValue implements slog.LogValuer.
func (s Secret) LogValue() slog.Value {
	return slog.StringValue(redacted)
}

// MarshalJSON implements json.Marshaler.
func (s Secret) MarshalJSON() ([]byte, error) {
	return json.Marshal(redacted)
}
