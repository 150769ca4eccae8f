package main

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
	"github.com/zberg/go-nobo/internal/bridge"
	"github.com/zberg/go-nobo/pkg/nobo"
)

const envPrefix = "NOBO_"

// Config is the CLI configuration. Sources are applied in order: defaults,
// config file, environment (including .env), command-line flags.
type Config struct {
	Serial           string
	Address          string
	Port             int
	DiscoveryTimeout time.Duration
	ConnectTimeout   time.Duration
	Heartbeat        time.Duration
	LogLevel         string
	MQTT             MQTTConfig
	HTTP             HTTPConfig
}

type MQTTConfig struct {
	Broker   string
	ClientID string
	Username string
	Password string
	Prefix   string
	QoS      int
	Retain   bool
}

type HTTPConfig struct {
	Listen string
}

func defaultConfig() Config {
	return Config{
		Port:             nobo.DefaultPort,
		DiscoveryTimeout: nobo.DefaultDiscoveryTimeout,
		ConnectTimeout:   30 * time.Second,
		Heartbeat:        14 * time.Second,
		LogLevel:         "info",
		MQTT: MQTTConfig{
			Prefix: "nobo",
			Retain: true,
		},
	}
}

type fileConfig struct {
	Serial           string `toml:"serial"`
	Address          string `toml:"address"`
	Port             int    `toml:"port"`
	DiscoveryTimeout string `toml:"discovery_timeout"`
	ConnectTimeout   string `toml:"connect_timeout"`
	Heartbeat        string `toml:"heartbeat"`
	LogLevel         string `toml:"log_level"`
	MQTT             struct {
		Broker   string `toml:"broker"`
		ClientID string `toml:"client_id"`
		Username string `toml:"username"`
		Password string `toml:"password"`
		Prefix   string `toml:"prefix"`
		QoS      int    `toml:"qos"`
		Retain   bool   `toml:"retain"`
	} `toml:"mqtt"`
	HTTP struct {
		Listen string `toml:"listen"`
	} `toml:"http"`
}

// loadConfig builds the configuration from the optional config file and the
// environment. An explicit envFile must exist; otherwise a .env in the
// working directory is loaded if present.
func loadConfig(path, envFile string) (Config, error) {
	cfg := defaultConfig()

	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil {
			return Config{}, fmt.Errorf("load env file: %w", err)
		}
	} else {
		_ = godotenv.Load() // ignore missing file
	}

	if path != "" {
		if err := applyFile(&cfg, path); err != nil {
			return Config{}, err
		}
	}
	if err := applyEnv(&cfg, os.LookupEnv); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func applyFile(cfg *Config, path string) error {
	var raw fileConfig
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	if meta.IsDefined("serial") {
		cfg.Serial = strings.TrimSpace(raw.Serial)
	}
	if meta.IsDefined("address") {
		cfg.Address = strings.TrimSpace(raw.Address)
	}
	if meta.IsDefined("port") {
		cfg.Port = raw.Port
	}
	if meta.IsDefined("discovery_timeout") {
		d, err := time.ParseDuration(strings.TrimSpace(raw.DiscoveryTimeout))
		if err != nil {
			return fmt.Errorf("parse discovery_timeout: %w", err)
		}
		cfg.DiscoveryTimeout = d
	}
	if meta.IsDefined("connect_timeout") {
		d, err := time.ParseDuration(strings.TrimSpace(raw.ConnectTimeout))
		if err != nil {
			return fmt.Errorf("parse connect_timeout: %w", err)
		}
		cfg.ConnectTimeout = d
	}
	if meta.IsDefined("heartbeat") {
		d, err := time.ParseDuration(strings.TrimSpace(raw.Heartbeat))
		if err != nil {
			return fmt.Errorf("parse heartbeat: %w", err)
		}
		cfg.Heartbeat = d
	}
	if meta.IsDefined("log_level") {
		cfg.LogLevel = strings.TrimSpace(raw.LogLevel)
	}

	if meta.IsDefined("mqtt", "broker") {
		cfg.MQTT.Broker = strings.TrimSpace(raw.MQTT.Broker)
	}
	if meta.IsDefined("mqtt", "client_id") {
		cfg.MQTT.ClientID = strings.TrimSpace(raw.MQTT.ClientID)
	}
	if meta.IsDefined("mqtt", "username") {
		cfg.MQTT.Username = raw.MQTT.Username
	}
	if meta.IsDefined("mqtt", "password") {
		cfg.MQTT.Password = raw.MQTT.Password
	}
	if meta.IsDefined("mqtt", "prefix") {
		cfg.MQTT.Prefix = strings.Trim(strings.TrimSpace(raw.MQTT.Prefix), "/")
	}
	if meta.IsDefined("mqtt", "qos") {
		cfg.MQTT.QoS = raw.MQTT.QoS
	}
	if meta.IsDefined("mqtt", "retain") {
		cfg.MQTT.Retain = raw.MQTT.Retain
	}

	if meta.IsDefined("http", "listen") {
		cfg.HTTP.Listen = strings.TrimSpace(raw.HTTP.Listen)
	}
	return nil
}

// applyEnv overlays NOBO_* variables.
func applyEnv(cfg *Config, lookup func(string) (string, bool)) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(envPrefix + key); ok && v != "" {
			*dst = strings.TrimSpace(v)
		}
	}
	dur := func(key string, dst *time.Duration) error {
		v, ok := lookup(envPrefix + key)
		if !ok || v == "" {
			return nil
		}
		d, err := time.ParseDuration(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("invalid %s%s: %w", envPrefix, key, err)
		}
		*dst = d
		return nil
	}
	num := func(key string, dst *int) error {
		v, ok := lookup(envPrefix + key)
		if !ok || v == "" {
			return nil
		}
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("invalid %s%s: %s", envPrefix, key, v)
		}
		*dst = n
		return nil
	}

	str("SERIAL", &cfg.Serial)
	str("ADDRESS", &cfg.Address)
	str("LOG_LEVEL", &cfg.LogLevel)
	str("MQTT_BROKER", &cfg.MQTT.Broker)
	str("MQTT_CLIENT_ID", &cfg.MQTT.ClientID)
	str("MQTT_USERNAME", &cfg.MQTT.Username)
	str("MQTT_PASSWORD", &cfg.MQTT.Password)
	str("MQTT_PREFIX", &cfg.MQTT.Prefix)
	str("HTTP_LISTEN", &cfg.HTTP.Listen)

	if err := num("PORT", &cfg.Port); err != nil {
		return err
	}
	if err := num("MQTT_QOS", &cfg.MQTT.QoS); err != nil {
		return err
	}
	if err := dur("DISCOVERY_TIMEOUT", &cfg.DiscoveryTimeout); err != nil {
		return err
	}
	if err := dur("CONNECT_TIMEOUT", &cfg.ConnectTimeout); err != nil {
		return err
	}
	if err := dur("HEARTBEAT", &cfg.Heartbeat); err != nil {
		return err
	}

	if v, ok := lookup(envPrefix + "MQTT_RETAIN"); ok && v != "" {
		b, err := strconv.ParseBool(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("invalid %sMQTT_RETAIN: %s", envPrefix, v)
		}
		cfg.MQTT.Retain = b
	}
	return nil
}

func parseLevel(raw string) (slog.Level, bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "debug":
		return slog.LevelDebug, true
	case "info":
		return slog.LevelInfo, true
	case "warn", "warning":
		return slog.LevelWarn, true
	case "error":
		return slog.LevelError, true
	default:
		return slog.LevelInfo, false
	}
}

func (c Config) logger() *slog.Logger {
	level, ok := parseLevel(c.LogLevel)
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	if !ok {
		logger.Warn("unknown log level, using info", "level", c.LogLevel)
	}
	return logger
}

// hubOptions maps the configuration onto Hub options. Discovery is used
// unless an address is configured.
func (c Config) hubOptions(logger *slog.Logger) []nobo.HubOption {
	opts := []nobo.HubOption{
		nobo.WithPort(c.Port),
		nobo.WithDiscoveryTimeout(c.DiscoveryTimeout),
		nobo.WithConnectTimeout(c.ConnectTimeout),
		nobo.WithHeartbeatInterval(c.Heartbeat),
		nobo.WithLogger(logger),
	}
	if c.Address != "" {
		opts = append(opts, nobo.WithAddress(c.Address))
	}
	return opts
}

func (c Config) mqttConfig() (bridge.MQTTConfig, error) {
	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		return bridge.MQTTConfig{}, fmt.Errorf("mqtt qos %d out of range 0-2", c.MQTT.QoS)
	}
	return bridge.MQTTConfig{
		Broker:   c.MQTT.Broker,
		ClientID: c.MQTT.ClientID,
		Username: c.MQTT.Username,
		Password: c.MQTT.Password,
		QoS:      byte(c.MQTT.QoS),
		Retain:   c.MQTT.Retain,
	}, nil
}
