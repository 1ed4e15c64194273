package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Environment string `yaml:"environment"`
	Server      struct {
		Port            int           `yaml:"port"`
		ReadTimeout     time.Duration `yaml:"read_timeout"`
		WriteTimeout    time.Duration `yaml:"write_timeout"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	} `yaml:"server"`
	Log struct {
		Level     string `yaml:"level"`
		Format    string `yaml:"format"`
		Output    string `yaml:"output"`
		Collector struct {
			Enabled         bool          `yaml:"enabled"`
			Topic           string        `yaml:"topic"`
			Interval        time.Duration `yaml:"interval"`
			Threshold       int           `yaml:"threshold"`
			IncludeWarnings bool          `yaml:"include_warnings"`
		} `yaml:"collector"`
	} `yaml:"log"`
	Metrics struct {
		Enabled bool   `yaml:"enabled"`
		Path    string `yaml:"path"`
	} `yaml:"metrics"`
	Feed struct {
		URL              string        `yaml:"url"`
		HandshakeTimeout time.Duration `yaml:"handshake_timeout"`
		PingInterval     time.Duration `yaml:"ping_interval"`
		AutoEnable       bool          `yaml:"auto_enable"`
	} `yaml:"feed"`
	Reconnect struct {
		Policy   string        `yaml:"policy"` // fixed | backoff
		Delay    time.Duration `yaml:"delay"`
		MaxDelay time.Duration `yaml:"max_delay"`
	} `yaml:"reconnect"`
	Throttle struct {
		Window time.Duration `yaml:"window"`
	} `yaml:"throttle"`
	History struct {
		Capacity int           `yaml:"capacity"`
		Store    string        `yaml:"store"` // memory | redis
		Key      string        `yaml:"key"`
		TTL      time.Duration `yaml:"ttl"`
	} `yaml:"history"`
	Backend struct {
		Type      string `yaml:"type"` // none | kafka | clickhouse
		QueueSize int    `yaml:"queue_size"`
	} `yaml:"backend"`
	Kafka struct {
		Brokers      []string `yaml:"brokers"`
		Topic        string   `yaml:"topic"`
		RequiredAcks int      `yaml:"required_acks"`
		Compression  string   `yaml:"compression"`
		Producer     struct {
			MaxAttempts  int           `yaml:"max_attempts"`
			Linger       time.Duration `yaml:"linger"`
			BatchSize    int           `yaml:"batch_size"`
			WriteTimeout time.Duration `yaml:"write_timeout"`
			ReadTimeout  time.Duration `yaml:"read_timeout"`
			Async        bool          `yaml:"async"`
		} `yaml:"producer"`
		Consumer struct {
			Enabled     bool          `yaml:"enabled"`
			GroupID     string        `yaml:"group_id"`
			StartOffset string        `yaml:"start_offset"`
			Workers     int           `yaml:"workers"`
			BufferSize  int           `yaml:"buffer_size"`
			RetryMax    int           `yaml:"retry_max"`
			BackoffMin  time.Duration `yaml:"backoff_min"`
			BackoffMax  time.Duration `yaml:"backoff_max"`
			DLQTopic    string        `yaml:"dlq_topic"`
		} `yaml:"consumer"`
	} `yaml:"kafka"`
	ClickHouse struct {
		Enabled      bool          `yaml:"enabled"`
		Host         string        `yaml:"host"`
		Port         int           `yaml:"port"`
		Database     string        `yaml:"database"`
		User         string        `yaml:"user"`
		Password     string        `yaml:"password"`
		Table        string        `yaml:"table"`
		AsyncInsert  bool          `yaml:"async_insert"`
		WaitForAsync bool          `yaml:"wait_for_async_insert"`
		DialTimeout  time.Duration `yaml:"dial_timeout"`
		ReadTimeout  time.Duration `yaml:"read_timeout"`
	} `yaml:"clickhouse"`
	Redis struct {
		Addr     string `yaml:"addr"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
		Prefix   string `yaml:"prefix"`
		PoolSize int    `yaml:"pool_size"`
	} `yaml:"redis"`
}

// Load reads and parses a YAML configuration file.
func Load(path string) (*Config, error) {
	c, err := read(path)
	if err != nil {
		return nil, err
	}
	return c, c.finalize()
}

// LoadWithEnv loads config from YAML and overrides with environment variables.
func LoadWithEnv(path string) (*Config, error) {
	c, err := read(path)
	if err != nil {
		return nil, err
	}
	c.applyEnv(os.Getenv)
	return c, c.finalize()
}

// Parse decodes YAML bytes, fills defaults and validates.
func Parse(b []byte) (*Config, error) {
	var c Config
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	return &c, c.finalize()
}

func read(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	var c Config
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	return &c, nil
}

func (c *Config) finalize() error {
	c.applyDefaults()
	if err := c.Validate(); err != nil {
		return fmt.Errorf("validate config: %w", err)
	}
	return nil
}

func (c *Config) applyEnv(getenv func(string) string) {
	if v := getenv("FEED_URL"); v != "" {
		c.Feed.URL = v
	}
	if v := getenv("BACKEND"); v != "" {
		c.Backend.Type = v
	}
	if v := getenv("KAFKA_BROKERS"); v != "" {
		c.Kafka.Brokers = splitList(v)
	}
	if v := getenv("KAFKA_TOPIC"); v != "" {
		c.Kafka.Topic = v
	}
	if v := getenv("REDIS_ADDR"); v != "" {
		c.Redis.Addr = v
	}
	if v := getenv("LOG_LEVEL"); v != "" {
		c.Log.Level = v
	}
}

func splitList(v string) []string {
	parts := strings.Split(v, ",")
	out := parts[:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func (c *Config) applyDefaults() {
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Server.ReadTimeout == 0 {
		c.Server.ReadTimeout = 10 * time.Second
	}
	if c.Server.WriteTimeout == 0 {
		c.Server.WriteTimeout = 10 * time.Second
	}
	if c.Server.ShutdownTimeout == 0 {
		c.Server.ShutdownTimeout = 15 * time.Second
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "json"
	}
	if c.Log.Output == "" {
		c.Log.Output = "stdout"
	}
	if c.Log.Collector.Topic == "" {
		c.Log.Collector.Topic = "finalert.logs"
	}
	if c.Log.Collector.Interval == 0 {
		c.Log.Collector.Interval = 30 * time.Second
	}
	if c.Log.Collector.Threshold == 0 {
		c.Log.Collector.Threshold = 100
	}
	if c.Metrics.Path == "" {
		c.Metrics.Path = "/metrics"
	}
	if c.Feed.URL == "" {
		c.Feed.URL = "ws://127.0.0.1:8000/ws"
	}
	if c.Feed.HandshakeTimeout == 0 {
		c.Feed.HandshakeTimeout = 10 * time.Second
	}
	if c.Feed.PingInterval == 0 {
		c.Feed.PingInterval = 30 * time.Second
	}
	if c.Reconnect.Policy == "" {
		c.Reconnect.Policy = "fixed"
	}
	if c.Reconnect.Delay == 0 {
		c.Reconnect.Delay = 3 * time.Second
	}
	if c.Reconnect.MaxDelay == 0 {
		c.Reconnect.MaxDelay = 30 * time.Second
	}
	if c.Throttle.Window == 0 {
		c.Throttle.Window = time.Second
	}
	if c.History.Capacity == 0 {
		c.History.Capacity = 50
	}
	if c.History.Store == "" {
		c.History.Store = "memory"
	}
	if c.History.Key == "" {
		c.History.Key = "alerts:history"
	}
	if c.Backend.Type == "" {
		c.Backend.Type = "none"
	}
	if c.Backend.QueueSize == 0 {
		c.Backend.QueueSize = 256
	}
	if c.Kafka.Topic == "" {
		c.Kafka.Topic = "finalert.alerts"
	}
	if c.Kafka.RequiredAcks == 0 {
		c.Kafka.RequiredAcks = -1
	}
	if c.Kafka.Compression == "" {
		c.Kafka.Compression = "gzip"
	}
	if c.Kafka.Consumer.GroupID == "" {
		c.Kafka.Consumer.GroupID = "finalert-archiver"
	}
	if c.Kafka.Consumer.Workers == 0 {
		c.Kafka.Consumer.Workers = 2
	}
	if c.ClickHouse.Port == 0 {
		c.ClickHouse.Port = 9000
	}
	if c.ClickHouse.Database == "" {
		c.ClickHouse.Database = "default"
	}
	if c.ClickHouse.User == "" {
		c.ClickHouse.User = "default"
	}
	if c.ClickHouse.Table == "" {
		c.ClickHouse.Table = "alerts"
	}
	if c.Redis.Addr == "" {
		c.Redis.Addr = "localhost:6379"
	}
	if c.Redis.Prefix == "" {
		c.Redis.Prefix = "finalert"
	}
}

// NeedsKafkaProducer reports whether any component publishes to Kafka.
func (c *Config) NeedsKafkaProducer() bool {
	return c.Backend.Type == "kafka" || c.Log.Collector.Enabled
}

// NeedsClickHouse reports whether alerts are written to ClickHouse by this process.
func (c *Config) NeedsClickHouse() bool {
	return c.Backend.Type == "clickhouse" || c.ArchiveConsumerEnabled()
}

// ArchiveConsumerEnabled reports whether this process consumes the alert topic into ClickHouse.
func (c *Config) ArchiveConsumerEnabled() bool {
	return c.Backend.Type == "kafka" && c.Kafka.Consumer.Enabled && c.ClickHouse.Enabled
}

// Validate checks if the configuration is valid. The feed URL is checked when
// the stream is enabled, not here.
func (c *Config) Validate() error {
	if c.Environment == "" {
		return fmt.Errorf("environment is required")
	}
	switch c.Backend.Type {
	case "none", "kafka", "clickhouse":
	default:
		return fmt.Errorf("backend.type must be 'none', 'kafka' or 'clickhouse', got '%s'", c.Backend.Type)
	}
	switch c.Reconnect.Policy {
	case "fixed", "backoff":
	default:
		return fmt.Errorf("reconnect.policy must be 'fixed' or 'backoff', got '%s'", c.Reconnect.Policy)
	}
	switch c.History.Store {
	case "memory", "redis":
	default:
		return fmt.Errorf("history.store must be 'memory' or 'redis', got '%s'", c.History.Store)
	}
	if c.History.Capacity < 0 {
		return fmt.Errorf("history.capacity must be positive")
	}
	if c.Throttle.Window < 0 || c.Reconnect.Delay < 0 {
		return fmt.Errorf("durations must not be negative")
	}
	if c.NeedsKafkaProducer() && len(c.Kafka.Brokers) == 0 {
		return fmt.Errorf("kafka.brokers is required when backend.type is kafka or the log collector is enabled")
	}
	if c.Backend.Type == "clickhouse" && !c.ClickHouse.Enabled {
		return fmt.Errorf("clickhouse.enabled must be true when backend.type is clickhouse")
	}
	if c.ClickHouse.Enabled && c.ClickHouse.Host == "" {
		return fmt.Errorf("clickhouse.host is required")
	}
	return nil
}
