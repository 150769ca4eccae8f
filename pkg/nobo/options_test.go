package nobo

import (
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := defaultConfig()

	assert.Equal(t, DefaultPort, cfg.port)
	assert.True(t, cfg.discovery)
	assert.Equal(t, 3*time.Second, cfg.discoveryTimeout)
	assert.Equal(t, 30*time.Second, cfg.connectTimeout)
	assert.Equal(t, 15*time.Second, cfg.handshakeTimeout)
	assert.Equal(t, 14*time.Second, cfg.heartbeatInterval)
	assert.False(t, cfg.strictHandshake)
	assert.Nil(t, cfg.logger)
	assert.NotNil(t, cfg.now)
	assert.NotNil(t, cfg.discover)
}

func TestWithAddress_Valid(t *testing.T) {
	cfg := defaultConfig()

	err := WithAddress("192.168.1.20")(cfg)
	require.NoError(t, err)
	assert.Equal(t, "192.168.1.20", cfg.address)
	assert.False(t, cfg.discovery)
}

func TestWithAddress_Invalid(t *testing.T) {
	cfg := defaultConfig()

	err := WithAddress("hub.local")(cfg)
	assert.Error(t, err)
	assert.True(t, cfg.discovery)

	err = WithAddress("")(cfg)
	assert.Error(t, err)
}

func TestWithPort_Valid(t *testing.T) {
	cfg := defaultConfig()

	err := WithPort(9200)(cfg)
	require.NoError(t, err)
	assert.Equal(t, 9200, cfg.port)

	err = WithPort(1)(cfg)
	require.NoError(t, err)
	assert.Equal(t, 1, cfg.port)

	err = WithPort(65535)(cfg)
	require.NoError(t, err)
	assert.Equal(t, 65535, cfg.port)
}

func TestWithPort_Invalid(t *testing.T) {
	cfg := defaultConfig()

	assert.Error(t, WithPort(0)(cfg))
	assert.Error(t, WithPort(-1)(cfg))
	assert.Error(t, WithPort(65536)(cfg))
}

func TestDurationOptions(t *testing.T) {
	cases := map[string]struct {
		opt func(time.Duration) HubOption
		get func(*hubConfig) time.Duration
	}{
		"discovery": {WithDiscoveryTimeout, func(c *hubConfig) time.Duration { return c.discoveryTimeout }},
		"connect":   {WithConnectTimeout, func(c *hubConfig) time.Duration { return c.connectTimeout }},
		"handshake": {WithHandshakeTimeout, func(c *hubConfig) time.Duration { return c.handshakeTimeout }},
		"heartbeat": {WithHeartbeatInterval, func(c *hubConfig) time.Duration { return c.heartbeatInterval }},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			cfg := defaultConfig()

			require.NoError(t, tc.opt(5*time.Second)(cfg))
			assert.Equal(t, 5*time.Second, tc.get(cfg))

			assert.Error(t, tc.opt(0)(cfg))
			assert.Error(t, tc.opt(-time.Second)(cfg))
			assert.Equal(t, 5*time.Second, tc.get(cfg))
		})
	}
}

func TestWithStrictHandshake(t *testing.T) {
	cfg := defaultConfig()

	require.NoError(t, WithStrictHandshake(true)(cfg))
	assert.True(t, cfg.strictHandshake)
}

func TestWithLogger(t *testing.T) {
	cfg := defaultConfig()
	assert.Nil(t, cfg.logger)

	logger := slog.Default()
	err := WithLogger(logger)(cfg)
	require.NoError(t, err)
	assert.Equal(t, logger, cfg.logger)
}

func TestWithClock(t *testing.T) {
	cfg := defaultConfig()
	fixed := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)

	require.NoError(t, WithClock(func() time.Time { return fixed })(cfg))
	assert.Equal(t, fixed, cfg.now())

	assert.Error(t, WithClock(nil)(cfg))
}

func TestNewHub_Options(t *testing.T) {
	_, err := NewHub("", WithAddress("10.0.0.5"))
	assert.Error(t, err, "serial is required without discovery")

	_, err = NewHub("102000022334", WithPort(0))
	assert.Error(t, err)

	h, err := NewHub("102000022334", WithAddress("10.0.0.5"))
	require.NoError(t, err)
	assert.Equal(t, StateDisconnected, h.State())
	assert.NoError(t, h.Err())

	select {
	case <-h.Done():
	default:
		t.Fatal("Done must be closed before the first Connect")
	}
}

func TestMultipleOptions(t *testing.T) {
	cfg := defaultConfig()

	opts := []HubOption{
		WithAddress("10.0.0.5"),
		WithPort(9200),
		WithConnectTimeout(10 * time.Second),
		WithHeartbeatInterval(time.Second),
	}
	for _, opt := range opts {
		require.NoError(t, opt(cfg))
	}

	assert.Equal(t, "10.0.0.5", cfg.address)
	assert.Equal(t, 9200, cfg.port)
	assert.Equal(t, 10*time.Second, cfg.connectTimeout)
	assert.Equal(t, time.Second, cfg.heartbeatInterval)
}
