package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/eipdev/eipdev-go/pkg/failsafe"
)

// ErrInvalid is wrapped by every validation error.
var ErrInvalid = errors.New("invalid configuration")

// Config is the complete adapter configuration.
type Config struct {
	Identity     IdentityConfig     `yaml:"identity"`
	Scan         ScanConfig         `yaml:"scan"`
	Failsafe     FailsafeConfig     `yaml:"failsafe"`
	NV           NVConfig           `yaml:"nv"`
	EthernetLink EthernetLinkConfig `yaml:"ethernet_link"`
	Log          LogConfig          `yaml:"log"`
	Simulation   SimulationConfig   `yaml:"simulation"`
	API          APIConfig          `yaml:"api"`
	MQTT         MQTTConfig         `yaml:"mqtt"`
	Kafka        KafkaConfig        `yaml:"kafka"`
	Redis        RedisConfig        `yaml:"redis"`
}

// IdentityConfig overrides Identity object attributes. Zero values keep the
// built-in identity.
type IdentityConfig struct {
	VendorID     uint16 `yaml:"vendor_id,omitempty"`
	ProductCode  uint16 `yaml:"product_code,omitempty"`
	SerialNumber uint32 `yaml:"serial_number,omitempty"`
	ProductName  string `yaml:"product_name,omitempty"`
}

// ScanConfig controls the processing loop.
type ScanConfig struct {
	Interval          time.Duration `yaml:"interval"`
	DefaultRPI        time.Duration `yaml:"default_rpi"`
	TimeoutMultiplier int           `yaml:"timeout_multiplier"`
}

// FailsafeConfig selects the output failsafe policy.
type FailsafeConfig struct {
	Policy  string `yaml:"policy"`            // zero, hold, pattern
	Pattern string `yaml:"pattern,omitempty"` // hex, one byte per output byte
}

// NVConfig locates persisted attributes. An empty Dir disables persistence.
type NVConfig struct {
	Dir string `yaml:"dir,omitempty"`
}

// EthernetLinkConfig enables the Ethernet Link counter callbacks.
type EthernetLinkConfig struct {
	Counters   bool     `yaml:"counters"`
	Source     string   `yaml:"source,omitempty"` // static, sysfs
	Interfaces []string `yaml:"interfaces,omitempty"`
	SysfsRoot  string   `yaml:"sysfs_root,omitempty"`
}

// LogConfig controls operational and trace logging.
type LogConfig struct {
	Level     string `yaml:"level"`
	TraceFile string `yaml:"trace_file,omitempty"`
}

// SimulationConfig drives a simulated originator.
type SimulationConfig struct {
	Enabled bool          `yaml:"enabled"`
	Role    string        `yaml:"role,omitempty"` // exclusive_owner, input_only, listen_only
	Period  time.Duration `yaml:"period"`
}

// APIConfig enables the HTTP diagnostics API.
type APIConfig struct {
	Enabled bool   `yaml:"enabled"`
	Listen  string `yaml:"listen"`
}

// MQTTConfig publishes trace events to an MQTT broker.
type MQTTConfig struct {
	Enabled   bool   `yaml:"enabled"`
	Broker    string `yaml:"broker"`
	Port      int    `yaml:"port"`
	ClientID  string `yaml:"client_id"`
	Username  string `yaml:"username,omitempty"`
	Password  string `yaml:"password,omitempty"`
	RootTopic string `yaml:"root_topic"`
	UseTLS    bool   `yaml:"use_tls,omitempty"`
}

// KafkaConfig publishes trace events to a Kafka topic.
type KafkaConfig struct {
	Enabled bool     `yaml:"enabled"`
	Brokers []string `yaml:"brokers"`
	Topic   string   `yaml:"topic"`
}

// RedisConfig mirrors assembly data into Redis keys and publishes events.
type RedisConfig struct {
	Enabled  bool          `yaml:"enabled"`
	Address  string        `yaml:"address"`
	Password string        `yaml:"password,omitempty"`
	Database int           `yaml:"database"`
	Prefix   string        `yaml:"prefix"`
	KeyTTL   time.Duration `yaml:"key_ttl,omitempty"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Scan: ScanConfig{
			Interval:          time.Millisecond,
			DefaultRPI:        10 * time.Millisecond,
			TimeoutMultiplier: 4,
		},
		Failsafe:     FailsafeConfig{Policy: failsafe.PolicyZero.String()},
		EthernetLink: EthernetLinkConfig{Source: "static", SysfsRoot: "/sys/class/net"},
		Log:          LogConfig{Level: "info"},
		Simulation:   SimulationConfig{Role: "exclusive_owner", Period: 100 * time.Millisecond},
		API:          APIConfig{Listen: "127.0.0.1:8080"},
		MQTT:         MQTTConfig{Broker: "localhost", Port: 1883, ClientID: "eip-device", RootTopic: "eip"},
		Kafka:        KafkaConfig{Brokers: []string{"localhost:9092"}, Topic: "eip-events"},
		Redis:        RedisConfig{Address: "localhost:6379", Prefix: "eip"},
	}
}

// Load reads configuration from a YAML file. A missing file yields the
// defaults.
func Load(path string) (*Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, err
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return cfg, nil
}

// Save writes the configuration as YAML, creating the directory if needed.
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if c.Scan.Interval <= 0 {
		return fmt.Errorf("%w: scan interval must be positive", ErrInvalid)
	}
	if c.Scan.DefaultRPI <= 0 {
		return fmt.Errorf("%w: default rpi must be positive", ErrInvalid)
	}
	if c.Scan.TimeoutMultiplier < 1 {
		return fmt.Errorf("%w: timeout multiplier must be at least 1", ErrInvalid)
	}
	if _, err := c.FailsafeConfig(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalid, err)
	}
	if _, err := c.SlogLevel(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalid, err)
	}
	if c.EthernetLink.Counters {
		switch c.EthernetLink.Source {
		case "static":
		case "sysfs":
			if len(c.EthernetLink.Interfaces) == 0 {
				return fmt.Errorf("%w: sysfs counters need at least one interface", ErrInvalid)
			}
		default:
			return fmt.Errorf("%w: unknown counter source %q", ErrInvalid, c.EthernetLink.Source)
		}
	}
	if c.Simulation.Enabled {
		switch c.Simulation.Role {
		case "exclusive_owner", "input_only", "listen_only":
		default:
			return fmt.Errorf("%w: unknown simulation role %q", ErrInvalid, c.Simulation.Role)
		}
		if c.Simulation.Period <= 0 {
			return fmt.Errorf("%w: simulation period must be positive", ErrInvalid)
		}
	}
	if c.API.Enabled && c.API.Listen == "" {
		return fmt.Errorf("%w: api listen address is empty", ErrInvalid)
	}
	if c.MQTT.Enabled && (c.MQTT.Broker == "" || c.MQTT.Port <= 0) {
		return fmt.Errorf("%w: mqtt needs broker and port", ErrInvalid)
	}
	if c.Kafka.Enabled && (len(c.Kafka.Brokers) == 0 || c.Kafka.Topic == "") {
		return fmt.Errorf("%w: kafka needs brokers and topic", ErrInvalid)
	}
	if c.Redis.Enabled && c.Redis.Address == "" {
		return fmt.Errorf("%w: redis address is empty", ErrInvalid)
	}
	return nil
}

// FailsafeConfig parses the failsafe section.
func (c *Config) FailsafeConfig() (failsafe.Config, error) {
	policy, err := failsafe.ParsePolicy(c.Failsafe.Policy)
	if err != nil {
		return failsafe.Config{}, err
	}
	fc := failsafe.Config{Policy: policy}
	if policy == failsafe.PolicyPattern {
		if fc.Pattern, err = failsafe.ParsePattern(c.Failsafe.Pattern); err != nil {
			return failsafe.Config{}, err
		}
	}
	return fc, nil
}

// SlogLevel parses the log level.
func (c *Config) SlogLevel() (slog.Level, error) {
	switch strings.ToLower(c.Log.Level) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return 0, fmt.Errorf("unknown log level %q", c.Log.Level)
	}
}
