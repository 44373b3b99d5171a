// Package config provides configuration loading for the sentinel service.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the sentinel service
type Config struct {
	Server      ServerConfig      `mapstructure:"server"`
	Logging     LoggingConfig     `mapstructure:"logging"`
	Engine      EngineConfig      `mapstructure:"engine"`
	Scheduler   SchedulerConfig   `mapstructure:"scheduler"`
	Redis       RedisConfig       `mapstructure:"redis"`
	Database    DatabaseConfig    `mapstructure:"database"`
	NATS        NATSConfig        `mapstructure:"nats"`
	Containment ContainmentConfig `mapstructure:"containment"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port         int           `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	IdleTimeout  time.Duration `mapstructure:"idle_timeout"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// EngineConfig holds pattern thresholds and scoring settings
type EngineConfig struct {
	// LookbackWindow bounds event retention; it must cover the longest
	// correlation window and is raised to it automatically if shorter.
	LookbackWindow time.Duration `mapstructure:"lookback_window"`

	// DecayHorizon is the rolling period over which the threat score
	// decays linearly to zero.
	DecayHorizon time.Duration `mapstructure:"decay_horizon"`

	// PatternRulesFile optionally overrides detection thresholds (YAML).
	PatternRulesFile string `mapstructure:"pattern_rules_file"`

	FailedLoginThreshold int           `mapstructure:"failed_login_threshold"`
	FailedLoginWindow    time.Duration `mapstructure:"failed_login_window"`
	SuspiciousThreshold  int           `mapstructure:"suspicious_threshold"`
	SuspiciousWindow     time.Duration `mapstructure:"suspicious_window"`
	RateLimitThreshold   int           `mapstructure:"rate_limit_threshold"`
	RateLimitWindow      time.Duration `mapstructure:"rate_limit_window"`
}

// SchedulerConfig holds the periodic task intervals
type SchedulerConfig struct {
	DrainInterval time.Duration `mapstructure:"drain_interval"`
	DecayInterval time.Duration `mapstructure:"decay_interval"`
}

// RedisConfig holds the durable key-value store settings
type RedisConfig struct {
	URL     string        `mapstructure:"url"`
	Enabled bool          `mapstructure:"enabled"`
	TTL     time.Duration `mapstructure:"ttl"`
}

// DatabaseConfig holds the PostgreSQL audit archive settings
type DatabaseConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	Database string `mapstructure:"database"`
	SSLMode  string `mapstructure:"sslmode"`
}

// ConnString builds a PostgreSQL connection string.
func (d DatabaseConfig) ConnString() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.Database, d.SSLMode,
	)
}

// NATSConfig holds message bus configuration
type NATSConfig struct {
	URL           string        `mapstructure:"url"`
	Enabled       bool          `mapstructure:"enabled"`
	MaxReconnects int           `mapstructure:"max_reconnects"`
	ReconnectWait time.Duration `mapstructure:"reconnect_wait"`
}

// ContainmentConfig bounds automated containment calls
type ContainmentConfig struct {
	Timeout time.Duration `mapstructure:"timeout"`
}

// Load reads configuration from file and environment variables
func Load(configPath string) (*Config, error) {
	v := viper.New()

	// Set defaults
	v.SetDefault("server.port", 8087)
	v.SetDefault("server.read_timeout", "15s")
	v.SetDefault("server.write_timeout", "15s")
	v.SetDefault("server.idle_timeout", "60s")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	v.SetDefault("engine.lookback_window", "60m")
	v.SetDefault("engine.decay_horizon", "24h")
	v.SetDefault("engine.pattern_rules_file", "")
	v.SetDefault("engine.failed_login_threshold", 5)
	v.SetDefault("engine.failed_login_window", "15m")
	v.SetDefault("engine.suspicious_threshold", 3)
	v.SetDefault("engine.suspicious_window", "60m")
	v.SetDefault("engine.rate_limit_threshold", 10)
	v.SetDefault("engine.rate_limit_window", "5m")

	v.SetDefault("scheduler.drain_interval", "1s")
	v.SetDefault("scheduler.decay_interval", "5m")

	v.SetDefault("redis.url", "redis://localhost:6379/0")
	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.ttl", "0")

	v.SetDefault("database.enabled", false)
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "sentinel")
	v.SetDefault("database.password", "")
	v.SetDefault("database.database", "sentinel")
	v.SetDefault("database.sslmode", "disable")

	v.SetDefault("nats.url", "nats://localhost:4222")
	v.SetDefault("nats.enabled", false)
	v.SetDefault("nats.max_reconnects", -1)
	v.SetDefault("nats.reconnect_wait", "2s")

	v.SetDefault("containment.timeout", "10s")

	// Read config file
	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("/etc/sentinel")
	}

	// Environment variables override (SENTINEL_SERVER_PORT, etc.)
	v.SetEnvPrefix("SENTINEL")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// Read config - ignore file not found for defaults
	if err := v.ReadInConfig(); err != nil {
		// Only fail if a specific config path was given
		if configPath != "" {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}
