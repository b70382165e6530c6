// internal/transport/endpoint.go
package transport

import (
	"context"
	"fmt"
	"net"
	"net/url"
	"strconv"
	"time"

	"github.com/tamzrod/harp-sniffdetector/internal/harp"
)

// DialTCP connects to a device bridged over TCP (emulator or serial server).
func DialTCP(ctx context.Context, addr string, cat *harp.Catalog, opts ...StreamOption) (*Stream, error) {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, err
	}
	return NewStream(conn, cat, opts...), nil
}

// Open connects to an endpoint URL:
//
//	tcp://host:port
//	serial:///dev/ttyUSB0?baud=1000000&timeout=100ms
func Open(ctx context.Context, endpoint string, cat *harp.Catalog, opts ...StreamOption) (*Stream, error) {
	u, err := ParseEndpoint(endpoint)
	if err != nil {
		return nil, err
	}

	switch u.Scheme {
	case "tcp":
		return DialTCP(ctx, u.Host, cat, opts...)
	case "serial":
		cfg, err := serialConfig(u)
		if err != nil {
			return nil, err
		}
		return OpenSerial(cfg, cat, opts...)
	}
	return nil, fmt.Errorf("transport: unsupported scheme %q", u.Scheme)
}

// ParseEndpoint checks the endpoint syntax without opening anything.
func ParseEndpoint(endpoint string) (*url.URL, error) {
	u, err := url.Parse(endpoint)
	if err != nil {
		return nil, fmt.Errorf("transport: endpoint %q: %w", endpoint, err)
	}
	switch u.Scheme {
	case "tcp":
		if _, _, err := net.SplitHostPort(u.Host); err != nil {
			return nil, fmt.Errorf("transport: endpoint %q: %w", endpoint, err)
		}
	case "serial":
		if u.Path == "" {
			return nil, fmt.Errorf("transport: endpoint %q: missing device path", endpoint)
		}
		if _, err := serialConfig(u); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("transport: endpoint %q: unsupported scheme %q", endpoint, u.Scheme)
	}
	return u, nil
}

func serialConfig(u *url.URL) (SerialConfig, error) {
	cfg := SerialConfig{Device: u.Path}
	q := u.Query()
	if v := q.Get("baud"); v != "" {
		baud, err := strconv.Atoi(v)
		if err != nil || baud <= 0 {
			return cfg, fmt.Errorf("transport: invalid baud %q", v)
		}
		cfg.BaudRate = baud
	}
	if v := q.Get("timeout"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d <= 0 {
			return cfg, fmt.Errorf("transport: invalid timeout %q", v)
		}
		cfg.Timeout = d
	}
	return cfg, nil
}
