package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestParseDefaults(t *testing.T) {
	c, err := Parse([]byte("environment: test\n"))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if c.Feed.URL != "ws://127.0.0.1:8000/ws" {
		t.Fatalf("feed url default: %q", c.Feed.URL)
	}
	if c.Reconnect.Policy != "fixed" || c.Reconnect.Delay != 3*time.Second {
		t.Fatalf("reconnect defaults: %+v", c.Reconnect)
	}
	if c.Throttle.Window != time.Second {
		t.Fatalf("throttle window: %v", c.Throttle.Window)
	}
	if c.History.Capacity != 50 || c.History.Store != "memory" {
		t.Fatalf("history defaults: %+v", c.History)
	}
	if c.Backend.Type != "none" {
		t.Fatalf("backend default: %q", c.Backend.Type)
	}
}

func TestParseDurations(t *testing.T) {
	c, err := Parse([]byte("environment: test\nthrottle:\n  window: 250ms\nreconnect:\n  policy: backoff\n  delay: 1s\n  max_delay: 1m\n"))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if c.Throttle.Window != 250*time.Millisecond {
		t.Fatalf("window: %v", c.Throttle.Window)
	}
	if c.Reconnect.MaxDelay != time.Minute {
		t.Fatalf("max delay: %v", c.Reconnect.MaxDelay)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"missing environment", "feed:\n  url: ws://x/ws\n"},
		{"bad backend", "environment: t\nbackend:\n  type: s3\n"},
		{"bad policy", "environment: t\nreconnect:\n  policy: never\n"},
		{"bad store", "environment: t\nhistory:\n  store: disk\n"},
		{"kafka without brokers", "environment: t\nbackend:\n  type: kafka\n"},
		{"clickhouse disabled", "environment: t\nbackend:\n  type: clickhouse\n"},
		{"clickhouse without host", "environment: t\nbackend:\n  type: clickhouse\nclickhouse:\n  enabled: true\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Parse([]byte(tt.yaml)); err == nil {
				t.Fatalf("expected validation error")
			}
		})
	}
}

func TestApplyEnv(t *testing.T) {
	c := &Config{Environment: "t"}
	env := map[string]string{
		"FEED_URL":      "wss://feed.example/ws",
		"KAFKA_BROKERS": "a:9092, b:9092,,",
		"KAFKA_TOPIC":   "alerts.x",
		"REDIS_ADDR":    "redis:6379",
		"LOG_LEVEL":     "debug",
	}
	c.applyEnv(func(k string) string { return env[k] })
	if c.Feed.URL != "wss://feed.example/ws" || c.Kafka.Topic != "alerts.x" || c.Redis.Addr != "redis:6379" || c.Log.Level != "debug" {
		t.Fatalf("env not applied: %+v", c)
	}
	if len(c.Kafka.Brokers) != 2 || c.Kafka.Brokers[1] != "b:9092" {
		t.Fatalf("brokers: %v", c.Kafka.Brokers)
	}
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("environment: test\nfeed:\n  auto_enable: true\n"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	c, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if !c.Feed.AutoEnable {
		t.Fatalf("auto_enable not read")
	}
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatalf("expected error for missing file")
	}
}
