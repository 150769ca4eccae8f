package nobo

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"time"
)

// HubOption configures a Hub.
type HubOption func(*hubConfig) error

// hubConfig holds the configuration for a Hub.
type hubConfig struct {
	address           string
	port              int
	discovery         bool
	discoveryTimeout  time.Duration
	connectTimeout    time.Duration
	handshakeTimeout  time.Duration
	heartbeatInterval time.Duration
	strictHandshake   bool
	logger            *slog.Logger
	now               func() time.Time
	discover          func(context.Context) ([]DiscoveryResult, error)
}

// defaultConfig returns the default hub configuration.
func defaultConfig() *hubConfig {
	return &hubConfig{
		port:              DefaultPort,
		discovery:         true,
		discoveryTimeout:  DefaultDiscoveryTimeout,
		connectTimeout:    30 * time.Second,
		handshakeTimeout:  15 * time.Second,
		heartbeatInterval: 14 * time.Second,
		logger:            nil,
		now:               time.Now,
		discover:          Discover,
	}
}

// WithAddress connects to a fixed IP address instead of discovering hubs.
func WithAddress(ip string) HubOption {
	return func(c *hubConfig) error {
		if net.ParseIP(ip) == nil {
			return errors.New("address must be an IP address")
		}
		c.address = ip
		c.discovery = false
		return nil
	}
}

// WithPort sets the TCP port to connect to.
// Default is 27779.
func WithPort(port int) HubOption {
	return func(c *hubConfig) error {
		if port < 1 || port > 65535 {
			return errors.New("port must be between 1 and 65535")
		}
		c.port = port
		return nil
	}
}

// WithDiscoveryTimeout sets how long Connect listens for hub beacons.
// Default is 3 seconds.
func WithDiscoveryTimeout(d time.Duration) HubOption {
	return func(c *hubConfig) error {
		if d <= 0 {
			return errors.New("discovery timeout must be positive")
		}
		c.discoveryTimeout = d
		return nil
	}
}

// WithConnectTimeout sets the timeout for establishing a connection.
// Default is 30 seconds.
func WithConnectTimeout(d time.Duration) HubOption {
	return func(c *hubConfig) error {
		if d <= 0 {
			return errors.New("connect timeout must be positive")
		}
		c.connectTimeout = d
		return nil
	}
}

// WithHandshakeTimeout bounds the wait for each handshake reply.
// Default is 15 seconds.
func WithHandshakeTimeout(d time.Duration) HubOption {
	return func(c *hubConfig) error {
		if d <= 0 {
			return errors.New("handshake timeout must be positive")
		}
		c.handshakeTimeout = d
		return nil
	}
}

// WithHeartbeatInterval sets the period of the HANDSHAKE keep-alive.
// Default is 14 seconds; the hub expects one at least every 30 seconds.
func WithHeartbeatInterval(d time.Duration) HubOption {
	return func(c *hubConfig) error {
		if d <= 0 {
			return errors.New("heartbeat interval must be positive")
		}
		c.heartbeatInterval = d
		return nil
	}
}

// WithStrictHandshake also requires the hub to echo the protocol version.
func WithStrictHandshake(strict bool) HubOption {
	return func(c *hubConfig) error {
		c.strictHandshake = strict
		return nil
	}
}

// WithLogger sets a structured logger for debug and error logging.
// By default, no logging is performed.
func WithLogger(logger *slog.Logger) HubOption {
	return func(c *hubConfig) error {
		c.logger = logger
		return nil
	}
}

// WithClock replaces the clock used for the HELLO timestamp.
func WithClock(now func() time.Time) HubOption {
	return func(c *hubConfig) error {
		if now == nil {
			return errors.New("clock must not be nil")
		}
		c.now = now
		return nil
	}
}
