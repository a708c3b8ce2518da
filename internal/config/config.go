package config

import (
	"bytes"
	_ "embed"
	"fmt"
	"time"

	"github.com/spf13/viper"
)

//go:embed defaults.yaml
var defaults []byte

// ---- Root ----

type Config struct {
	StoreID   string          `mapstructure:"store_id"`
	Log       LogConfig       `mapstructure:"log"`
	Endpoint  EndpointConfig  `mapstructure:"endpoint"`
	Sync      SyncConfig      `mapstructure:"sync"`
	Heartbeat HeartbeatConfig `mapstructure:"heartbeat"`
	Buffer    BufferConfig    `mapstructure:"buffer"`
	Source    SourceConfig    `mapstructure:"source"`
	Diag      DiagConfig      `mapstructure:"diag"`
}

// ---- Leaf structs ----

type LogConfig struct {
	Level string `mapstructure:"level"`
}

type EndpointConfig struct {
	URL              string        `mapstructure:"url"`
	HeartbeatPath    string        `mapstructure:"heartbeat_path"`
	Timeout          time.Duration `mapstructure:"timeout"`
	HeartbeatTimeout time.Duration `mapstructure:"heartbeat_timeout"`
}

type SyncConfig struct {
	Interval      time.Duration `mapstructure:"interval"`
	LookbackDays  int           `mapstructure:"lookback_days"`
	ChunkSize     int           `mapstructure:"chunk_size"`
	PendingLimit  int           `mapstructure:"pending_limit"`
	RetryAttempts int           `mapstructure:"retry_attempts"`
	RetryDelay    time.Duration `mapstructure:"retry_delay"`
	RetryJitter   float64       `mapstructure:"retry_jitter"`
	RetryCeiling  int           `mapstructure:"retry_ceiling"`
	Retention     time.Duration `mapstructure:"retention"`
}

type HeartbeatConfig struct {
	Interval time.Duration `mapstructure:"interval"`
}

type BufferConfig struct {
	Path string `mapstructure:"path"`
}

// StrategyConfig describes one way of reaching the POS database.
// Strategies are tried in listed order until one connects.
type StrategyConfig struct {
	Name   string `mapstructure:"name"`
	Driver string `mapstructure:"driver"` // "mysql" | "sqlite3"
	DSN    string `mapstructure:"dsn"`
}

type SourceConfig struct {
	Strategies []StrategyConfig  `mapstructure:"strategies"`
	Queries    map[string]string `mapstructure:"queries"` // collection -> SQL with (start, end) placeholders
}

type DiagConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Addr    string `mapstructure:"addr"`
}

// Load reads embedded defaults, merges user YAML (if provided), and applies env overrides (POSAGENT_*).
func Load(path string) (Config, error) {
	v := viper.New()

	// embedded defaults
	v.SetConfigType("yaml")
	if err := v.ReadConfig(bytes.NewReader(defaults)); err != nil {
		return Config{}, err
	}

	if path != "" {
		v.SetConfigFile(path)
		_ = v.MergeInConfig()
	}

	// env override (POSAGENT_*)
	v.SetEnvPrefix("POSAGENT")
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks the fields every subcommand that talks to the
// endpoint or the source depends on.
func (c Config) Validate() error {
	if c.StoreID == "" {
		return fmt.Errorf("store_id is required")
	}
	if c.Endpoint.URL == "" {
		return fmt.Errorf("endpoint.url is required")
	}
	if c.Sync.ChunkSize <= 0 {
		return fmt.Errorf("sync.chunk_size must be positive")
	}
	if c.Sync.RetryAttempts <= 0 {
		return fmt.Errorf("sync.retry_attempts must be positive")
	}
	return nil
}
