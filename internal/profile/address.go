package profile

import (
	"net"
	"net/netip"
	"strconv"

	"github.com/cockroachdb/errors"
	"gopkg.in/yaml.v3"
)

// LocalAddr is the address sslocal binds to. It must be an IP literal.
type LocalAddr struct {
	IP   netip.Addr
	Port uint16
}

// String renders host:port, bracketing IPv6 hosts.
func (a LocalAddr) String() string {
	return netip.AddrPortFrom(a.IP, a.Port).String()
}

// IsZero reports whether the address was never set.
func (a LocalAddr) IsZero() bool {
	return !a.IP.IsValid()
}

// MarshalText implements encoding.TextMarshaler.
func (a LocalAddr) MarshalText() ([]byte, error) {
	return []byte(a.String()), nil
}

// UnmarshalYAML accepts either [ip, port] or "ip:port".
func (a *LocalAddr) UnmarshalYAML(value *yaml.Node) error {
	host, port, err := decodeHostPort(value)
	if err != nil {
		return err
	}
	ip, err := netip.ParseAddr(host)
	if err != nil {
		return errors.Newf("line %d: local address %q is not an IP address", value.Line, host)
	}
	a.IP = ip
	a.Port = port
	return nil
}

// ServerAddr is the remote shadowsocks server: a hostname or IP literal.
type ServerAddr struct {
	Host string
	Port uint16
}

// String renders host:port. The host is bracketed only when it parses as an
// IPv6 literal; domain names and IPv4 literals are written as-is.
func (a ServerAddr) String() string {
	port := strconv.FormatUint(uint64(a.Port), 10)
	if ip, err := netip.ParseAddr(a.Host); err == nil && ip.Is6() {
		return "[" + a.Host + "]:" + port
	}
	return a.Host + ":" + port
}

// IsZero reports whether the address was never set.
func (a ServerAddr) IsZero() bool {
	return a.Host == ""
}

// MarshalText implements encoding.TextMarshaler.
func (a ServerAddr) MarshalText() ([]byte, error) {
	return []byte(a.String()), nil
}

// UnmarshalYAML accepts either [host, port] or "host:port".
func (a *ServerAddr) UnmarshalYAML(value *yaml.Node) error {
	host, port, err := decodeHostPort(value)
	if err != nil {
		return err
	}
	if host == "" {
		return errors.Newf("line %d: server address has an empty host", value.Line)
	}
	a.Host = host
	a.Port = port
	return nil
}

func decodeHostPort(value *yaml.Node) (string, uint16, error) {
	switch value.Kind {
	case yaml.SequenceNode:
		if len(value.Content) != 2 {
			return "", 0, errors.Newf("line %d: expected [host, port], got %d elements", value.Line, len(value.Content))
		}
		var host string
		if err := value.Content[0].Decode(&host); err != nil {
			return "", 0, errors.Wrap(err, "host")
		}
		var port uint16
		if err := value.Content[1].Decode(&port); err != nil {
			return "", 0, errors.Wrap(err, "port")
		}
		return host, port, nil

	case yaml.ScalarNode:
		host, portStr, err := net.SplitHostPort(value.Value)
		if err != nil {
			return "", 0, errors.Wrapf(err, "line %d", value.Line)
		}
		port, err := strconv.ParseUint(portStr, 10, 16)
		if err != nil {
			return "", 0, errors.Newf("line %d: invalid port %q", value.Line, portStr)
		}
		return host, uint16(port), nil

	default:
		return "", 0, errors.Newf("line %d: expected [host, port] or \"host:port\"", value.Line)
	}
}
