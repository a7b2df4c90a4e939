package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
	"gopkg.in/ini.v1"
)

// Config holds all configuration
type Config struct {
	MySQL    MySQLConfig
	Redis    RedisConfig
	Log      LogConfig
	Migrate  bool
	HTTPAddr string
	Liveness LivenessConfig
	Events   EventsConfig
}

// MySQLConfig holds MySQL configuration
type MySQLConfig struct {
	DSN string
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Enabled  bool
	Addr     string
	Password string
	DB       int
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level  string
	Format string // text | json
}

// LivenessConfig holds liveness sweeper configuration
type LivenessConfig struct {
	Enabled             bool
	IntervalSec         int
	OfflineThresholdSec int
}

// EventsConfig holds the Socket.IO event feed configuration
type EventsConfig struct {
	Enabled bool
}

// source resolves a single setting. Lookups fall through ENV > INI > default.
type source struct {
	file *ini.File
}

func (s source) str(envKey, section, key, defaultValue string) string {
	if value := os.Getenv(envKey); value != "" {
		return value
	}
	if s.file != nil {
		if value := s.file.Section(section).Key(key).String(); value != "" {
			return value
		}
	}
	return defaultValue
}

func (s source) int(envKey, section, key string, defaultValue int) int {
	if value := os.Getenv(envKey); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	if s.file != nil && s.file.Section(section).HasKey(key) {
		if value, err := s.file.Section(section).Key(key).Int(); err == nil {
			return value
		}
	}
	return defaultValue
}

func (s source) bool(envKey, section, key string, defaultValue bool) bool {
	if value := os.Getenv(envKey); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	if s.file != nil && s.file.Section(section).HasKey(key) {
		if value, err := s.file.Section(section).Key(key).Bool(); err == nil {
			return value
		}
	}
	return defaultValue
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if exists (ignore error if not found)
	_ = godotenv.Load()

	return build(source{})
}

// LoadFromINI loads configuration from INI file with environment variable override
func LoadFromINI(iniPath string) (*Config, error) {
	_ = godotenv.Load()

	cfgFile, err := ini.Load(iniPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load INI file: %w", err)
	}

	return build(source{file: cfgFile})
}

func build(src source) (*Config, error) {
	cfg := &Config{
		MySQL: MySQLConfig{
			DSN: src.str("MYSQL_DSN", "mysql", "dsn", ""),
		},
		Redis: RedisConfig{
			Enabled:  src.bool("REDIS_ENABLED", "redis", "enabled", true),
			Addr:     src.str("REDIS_ADDR", "redis", "addr", "localhost:6379"),
			Password: src.str("REDIS_PASS", "redis", "pass", ""),
			DB:       src.int("REDIS_DB", "redis", "db", 0),
		},
		Log: LogConfig{
			Level:  src.str("LOG_LEVEL", "log", "level", "info"),
			Format: src.str("LOG_FORMAT", "log", "format", "text"),
		},
		Migrate:  src.bool("MIGRATE", "app", "migrate", false),
		HTTPAddr: src.str("HTTP_ADDR", "http", "addr", ":8080"),
		Liveness: LivenessConfig{
			Enabled:             src.bool("LIVENESS_SWEEPER_ENABLED", "liveness", "enabled", true),
			IntervalSec:         src.int("LIVENESS_SWEEP_INTERVAL_SEC", "liveness", "interval_sec", 30),
			OfflineThresholdSec: src.int("OFFLINE_THRESHOLD_SEC", "liveness", "offline_threshold_sec", 120),
		},
		Events: EventsConfig{
			Enabled: src.bool("EVENTS_ENABLED", "events", "enabled", true),
		},
	}

	// Validate required fields
	if cfg.MySQL.DSN == "" {
		return nil, fmt.Errorf("MYSQL_DSN is required")
	}
	if cfg.Liveness.IntervalSec <= 0 {
		return nil, fmt.Errorf("LIVENESS_SWEEP_INTERVAL_SEC must be positive, got %d", cfg.Liveness.IntervalSec)
	}
	if cfg.Liveness.OfflineThresholdSec <= 0 {
		return nil, fmt.Errorf("OFFLINE_THRESHOLD_SEC must be positive, got %d", cfg.Liveness.OfflineThresholdSec)
	}

	return cfg, nil
}
