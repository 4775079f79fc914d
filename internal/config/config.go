// Package config merges configuration from built-in defaults, an optional
// TOML file, environment variable overrides and command-line flags, in that
// order of increasing precedence.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/BurntSushi/toml"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "TAPO_STATUSBAR_"

// Duration wraps time.Duration so that BurntSushi/toml can decode "30s"-style
// strings via the encoding.TextUnmarshaler interface.
type Duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(text []byte) error {
	dur, err := time.ParseDuration(string(text))
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", string(text), err)
	}
	d.Duration = dur
	return nil
}

// HubConfig holds the hub connection and polling settings.
type HubConfig struct {
	Address        string   `toml:"address"`
	Username       string   `toml:"username"`
	Device         string   `toml:"device"`
	PollInterval   Duration `toml:"poll_interval"`
	FetchTimeout   Duration `toml:"fetch_timeout"`
	ConnectTimeout Duration `toml:"connect_timeout"`
	KeyringService string   `toml:"keyring_service"`
}

// EffectiveFetchTimeout is FetchTimeout, or half the poll interval when
// unset, so a stalled fetch cannot delay the next poll.
func (h HubConfig) EffectiveFetchTimeout() time.Duration {
	if h.FetchTimeout.Duration > 0 {
		return h.FetchTimeout.Duration
	}
	return h.PollInterval.Duration / 2
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level string `toml:"level"`
}

// MQTTConfig holds the optional MQTT mirror settings. An empty Broker
// disables the mirror.
type MQTTConfig struct {
	Broker      string `toml:"broker"`
	Username    string `toml:"username"`
	Password    string `toml:"password"`
	ClientID    string `toml:"client_id"`
	TopicPrefix string `toml:"topic_prefix"`
	Retained    bool   `toml:"retained"`
	QOS         byte   `toml:"qos"`
	TLSCACert   string `toml:"tls_ca_cert"`
}

// Enabled reports whether a broker is configured.
func (m MQTTConfig) Enabled() bool { return m.Broker != "" }

// Config is the top-level configuration struct.
type Config struct {
	Hub  HubConfig  `toml:"hub"`
	Log  LogConfig  `toml:"log"`
	MQTT MQTTConfig `toml:"mqtt"`

	// Warnings collects ignored environment values so they can be logged
	// once the logger exists.
	Warnings []string `toml:"-"`
}

// Load reads config from the first existing path in paths, then applies
// environment variable overrides.  Missing files are skipped silently;
// a malformed file returns an error.  Calling Load() with no arguments
// returns pure defaults plus any env overrides.
func Load(paths ...string) (*Config, error) {
	cfg := defaults()

	for _, path := range paths {
		if path == "" {
			continue
		}
		if _, statErr := os.Stat(path); statErr == nil {
			if _, err := toml.DecodeFile(path, cfg); err != nil {
				return nil, fmt.Errorf("parsing config %q: %w", path, err)
			}
			break // first found file wins
		} else if !os.IsNotExist(statErr) {
			return nil, fmt.Errorf("checking config path %q: %w", path, statErr)
		}
	}

	applyEnvOverrides(cfg)
	return cfg, nil
}

func defaults() *Config {
	return &Config{
		Hub: HubConfig{
			PollInterval:   Duration{120 * time.Second},
			ConnectTimeout: Duration{30 * time.Second},
			KeyringService: "home-temperature-statusbar",
		},
		Log: LogConfig{
			Level: "info",
		},
		MQTT: MQTTConfig{
			ClientID:    "tapo-statusbar",
			TopicPrefix: "tapo-statusbar",
			Retained:    true,
			QOS:         1,
		},
	}
}

func (c *Config) warnf(format string, args ...any) {
	c.Warnings = append(c.Warnings, fmt.Sprintf(format, args...))
}

func envString(name string, dst *string) {
	if v := os.Getenv(EnvPrefix + name); v != "" {
		*dst = v
	}
}

func (c *Config) envDuration(name string, dst *Duration) {
	v := os.Getenv(EnvPrefix + name)
	if v == "" {
		return
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		c.warnf("config: ignoring invalid %s%s=%q: %v", EnvPrefix, name, v, err)
		return
	}
	*dst = Duration{d}
}

// applyEnvOverrides copies any set TAPO_STATUSBAR_* environment variables
// into cfg.
func applyEnvOverrides(cfg *Config) {
	envString("HUB_ADDRESS", &cfg.Hub.Address)
	envString("HUB_USERNAME", &cfg.Hub.Username)
	envString("HUB_DEVICE", &cfg.Hub.Device)
	envString("HUB_KEYRING_SERVICE", &cfg.Hub.KeyringService)
	cfg.envDuration("HUB_POLL_INTERVAL", &cfg.Hub.PollInterval)
	cfg.envDuration("HUB_FETCH_TIMEOUT", &cfg.Hub.FetchTimeout)
	cfg.envDuration("HUB_CONNECT_TIMEOUT", &cfg.Hub.ConnectTimeout)

	envString("LOG_LEVEL", &cfg.Log.Level)

	envString("MQTT_BROKER", &cfg.MQTT.Broker)
	envString("MQTT_USERNAME", &cfg.MQTT.Username)
	envString("MQTT_PASSWORD", &cfg.MQTT.Password)
	envString("MQTT_CLIENT_ID", &cfg.MQTT.ClientID)
	envString("MQTT_TOPIC_PREFIX", &cfg.MQTT.TopicPrefix)
	envString("MQTT_TLS_CA_CERT", &cfg.MQTT.TLSCACert)
	if v := os.Getenv(EnvPrefix + "MQTT_RETAINED"); v != "" {
		cfg.MQTT.Retained = v == "true" || v == "1"
	}
	if v := os.Getenv(EnvPrefix + "MQTT_QOS"); v != "" {
		if q, err := strconv.ParseUint(v, 10, 8); err == nil && q <= 2 {
			cfg.MQTT.QOS = byte(q)
		} else {
			cfg.warnf("config: ignoring invalid %sMQTT_QOS=%q", EnvPrefix, v)
		}
	}
}
