package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// ErrInvalid is wrapped by every validation error.
var ErrInvalid = errors.New("invalid configuration")

// Offline settings modes.
const (
	OfflineSettingsModel = "model"
	OfflineSettingsOff   = "off"
)

// Store backends.
const (
	StoreMemory = "memory"
	StoreFile   = "file"
	StoreSQLite = "sqlite"
)

// Transport kinds.
const (
	TransportTCP  = "tcp"
	TransportMQTT = "mqtt"
	TransportSim  = "sim"
)

// Config is the root configuration.
type Config struct {
	Device          DeviceConfig     `yaml:"device"`
	OfflineSettings string           `yaml:"offline_settings"`
	Store           StoreConfig      `yaml:"store"`
	Transport       TransportConfig  `yaml:"transport"`
	MQTT            MQTTConfig       `yaml:"mqtt"`
	Encoder         EncoderConfig    `yaml:"encoder"`
	Connection      ConnectionConfig `yaml:"connection"`
	Logging         LoggingConfig    `yaml:"logging"`
	Telemetry       TelemetryConfig  `yaml:"telemetry"`
}

// DeviceConfig identifies the device.
type DeviceConfig struct {
	UID           string `yaml:"uid"`
	Model         string `yaml:"model"`
	PresetProfile string `yaml:"preset_profile"`
}

// StoreConfig selects the settings store backend.
type StoreConfig struct {
	Backend     string `yaml:"backend"`
	Path        string `yaml:"path"`
	WALMode     bool   `yaml:"wal_mode"`
	BusyTimeout int    `yaml:"busy_timeout"`
}

// TransportConfig selects the device link.
type TransportConfig struct {
	Kind         string        `yaml:"kind"`
	Address      string        `yaml:"address"`
	Tick         time.Duration `yaml:"tick"`
	QueueSize    int           `yaml:"queue_size"`
	MaxFrameSize uint32        `yaml:"max_frame_size"`

	// SimListen makes the simulated device listen on TCP instead of an
	// in-process pipe.
	SimListen string `yaml:"sim_listen"`
}

// MQTTConfig configures the broker transport.
type MQTTConfig struct {
	Broker      MQTTBrokerConfig `yaml:"broker"`
	Auth        MQTTAuthConfig   `yaml:"auth"`
	TopicPrefix string           `yaml:"topic_prefix"`
	QoS         int              `yaml:"qos"`
}

// MQTTBrokerConfig locates the broker.
type MQTTBrokerConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	TLS      bool   `yaml:"tls"`
	ClientID string `yaml:"client_id"`
}

// MQTTAuthConfig holds broker credentials.
type MQTTAuthConfig struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// EncoderConfig tunes the continuous command encoders.
type EncoderConfig struct {
	RepeatBudget int `yaml:"repeat_budget"`
}

// ConnectionConfig tunes reconnection.
type ConnectionConfig struct {
	BackoffInitial time.Duration `yaml:"backoff_initial"`
	BackoffMax     time.Duration `yaml:"backoff_max"`

	// MaxAttempts caps consecutive reconnect attempts; 0 retries forever.
	MaxAttempts int           `yaml:"max_attempts"`
	DialTimeout time.Duration `yaml:"dial_timeout"`
}

// LoggingConfig configures operational and protocol logging.
type LoggingConfig struct {
	Level       string `yaml:"level"`
	Format      string `yaml:"format"`
	Output      string `yaml:"output"`
	ProtocolLog string `yaml:"protocol_log"`
}

// TelemetryConfig configures the InfluxDB sink.
type TelemetryConfig struct {
	Enabled       bool          `yaml:"enabled"`
	URL           string        `yaml:"url"`
	Token         string        `yaml:"token"`
	Org           string        `yaml:"org"`
	Bucket        string        `yaml:"bucket"`
	BatchSize     uint          `yaml:"batch_size"`
	FlushInterval time.Duration `yaml:"flush_interval"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Device: DeviceConfig{
			UID:           "drone-1",
			Model:         "anafi",
			PresetProfile: "default",
		},
		OfflineSettings: OfflineSettingsModel,
		Store: StoreConfig{
			Backend:     StoreFile,
			Path:        "./data/settings.json",
			WALMode:     true,
			BusyTimeout: 5,
		},
		Transport: TransportConfig{
			Kind:         TransportTCP,
			Address:      "192.168.42.1:44444",
			Tick:         25 * time.Millisecond,
			QueueSize:    64,
			MaxFrameSize: 16384,
		},
		MQTT: MQTTConfig{
			Broker: MQTTBrokerConfig{
				Host:     "localhost",
				Port:     1883,
				ClientID: "pod-host",
			},
			TopicPrefix: "pod",
			QoS:         1,
		},
		Encoder: EncoderConfig{
			RepeatBudget: 10,
		},
		Connection: ConnectionConfig{
			BackoffInitial: 500 * time.Millisecond,
			BackoffMax:     15 * time.Second,
			DialTimeout:    30 * time.Second,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
			Output: "stderr",
		},
		Telemetry: TelemetryConfig{
			URL:           "http://localhost:8086",
			Org:           "pod",
			Bucket:        "telemetry",
			BatchSize:     100,
			FlushInterval: time.Second,
		},
	}
}

// Load reads path over the defaults, applies environment overrides and
// validates the result.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}
	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("POD_DEVICE_UID"); v != "" {
		cfg.Device.UID = v
	}
	if v := os.Getenv("POD_TRANSPORT_ADDRESS"); v != "" {
		cfg.Transport.Address = v
	}
	if v := os.Getenv("POD_STORE_PATH"); v != "" {
		cfg.Store.Path = v
	}
	if v := os.Getenv("POD_MQTT_HOST"); v != "" {
		cfg.MQTT.Broker.Host = v
	}
	if v := os.Getenv("POD_MQTT_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.MQTT.Broker.Port = port
		}
	}
	if v := os.Getenv("POD_MQTT_USERNAME"); v != "" {
		cfg.MQTT.Auth.Username = v
	}
	if v := os.Getenv("POD_MQTT_PASSWORD"); v != "" {
		cfg.MQTT.Auth.Password = v
	}
	if v := os.Getenv("POD_INFLUX_TOKEN"); v != "" {
		cfg.Telemetry.Token = v
	}
	if v := os.Getenv("POD_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
}

// Validate checks the configuration for consistency.
func (c *Config) Validate() error {
	var errs []string

	if c.Device.UID == "" {
		errs = append(errs, "device.uid is required")
	}

	switch c.OfflineSettings {
	case OfflineSettingsModel, OfflineSettingsOff:
	default:
		errs = append(errs, fmt.Sprintf("offline_settings must be %q or %q", OfflineSettingsModel, OfflineSettingsOff))
	}

	switch c.Store.Backend {
	case StoreMemory:
	case StoreFile, StoreSQLite:
		if c.Store.Path == "" {
			errs = append(errs, "store.path is required for file and sqlite backends")
		}
	default:
		errs = append(errs, "store.backend must be memory, file or sqlite")
	}

	switch c.Transport.Kind {
	case TransportTCP:
		if c.Transport.Address == "" {
			errs = append(errs, "transport.address is required for tcp")
		}
	case TransportMQTT:
		if c.MQTT.Broker.Host == "" {
			errs = append(errs, "mqtt.broker.host is required for mqtt")
		}
		if c.MQTT.Broker.Port < 1 || c.MQTT.Broker.Port > 65535 {
			errs = append(errs, "mqtt.broker.port must be between 1 and 65535")
		}
	case TransportSim:
	default:
		errs = append(errs, "transport.kind must be tcp, mqtt or sim")
	}
	if c.Transport.Tick < 0 {
		errs = append(errs, "transport.tick must not be negative")
	}

	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		errs = append(errs, "mqtt.qos must be 0, 1, or 2")
	}

	if c.Encoder.RepeatBudget < 1 {
		errs = append(errs, "encoder.repeat_budget must be at least 1")
	}

	if c.Connection.BackoffInitial <= 0 || c.Connection.BackoffMax < c.Connection.BackoffInitial {
		errs = append(errs, "connection backoff must satisfy 0 < backoff_initial <= backoff_max")
	}
	if c.Connection.MaxAttempts < 0 || c.Connection.DialTimeout < 0 {
		errs = append(errs, "connection.max_attempts and connection.dial_timeout must not be negative")
	}

	if c.Telemetry.Enabled && (c.Telemetry.URL == "" || c.Telemetry.Bucket == "") {
		errs = append(errs, "telemetry.url and telemetry.bucket are required when telemetry is enabled")
	}

	if len(errs) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalid, strings.Join(errs, "; "))
	}
	return nil
}

// PersistSettings reports whether settings are kept while offline.
func (c *Config) PersistSettings() bool {
	return c.OfflineSettings == OfflineSettingsModel
}
