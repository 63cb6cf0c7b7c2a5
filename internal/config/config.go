package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/spf13/viper"
)

// DefaultPath is where the config file is looked up when none is given.
const DefaultPath = "/etc/cortes/config.yaml"

// Config holds the complete application configuration
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Upstream UpstreamConfig `mapstructure:"upstream"`
	Display  DisplayConfig  `mapstructure:"display"`
	Storage  StorageConfig  `mapstructure:"storage"`
	Refresh  RefreshConfig  `mapstructure:"refresh"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

// ServerConfig defines server ports and addresses
type ServerConfig struct {
	BindAddress     string   `mapstructure:"bind_address"`
	HTTPPort        int      `mapstructure:"http_port"`
	MetricsPort     int      `mapstructure:"metrics_port"`
	RateLimit       int      `mapstructure:"rate_limit"`
	RateLimitWindow string   `mapstructure:"rate_limit_window"`
	AllowedOrigins  []string `mapstructure:"allowed_origins"`
}

// UpstreamConfig defines how the notifications API is reached
type UpstreamConfig struct {
	BaseURL   string `mapstructure:"base_url"`
	Timeout   string `mapstructure:"timeout"`
	UserAgent string `mapstructure:"user_agent"`
	CacheSize int    `mapstructure:"cache_size"`
	CacheTTL  string `mapstructure:"cache_ttl"`
}

// DisplayConfig defines how schedules are presented
type DisplayConfig struct {
	Timezone         string `mapstructure:"timezone"`
	Clock24h         bool   `mapstructure:"clock_24h"`
	DefaultCriterion string `mapstructure:"default_criterion"`
}

// StorageConfig defines storage backend settings
type StorageConfig struct {
	Type  string      `mapstructure:"type"` // "redis" or "memory"
	Redis RedisConfig `mapstructure:"redis"`
}

// RedisConfig defines Redis connection settings
type RedisConfig struct {
	Host         string `mapstructure:"host"`
	Port         int    `mapstructure:"port"`
	Password     string `mapstructure:"password"`
	DB           int    `mapstructure:"db"`
	PoolSize     int    `mapstructure:"pool_size"`
	MinIdleConns int    `mapstructure:"min_idle_conns"`
	DialTimeout  string `mapstructure:"dial_timeout"`
	ReadTimeout  string `mapstructure:"read_timeout"`
	WriteTimeout string `mapstructure:"write_timeout"`
}

// RefreshConfig defines the scheduled re-query of saved identifiers
type RefreshConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Cron    string `mapstructure:"cron"`
}

// LoggingConfig defines logging behavior
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Load loads configuration from file and environment variables. A missing
// config file is not an error.
func Load(configPath string) (*Config, error) {
	v := viper.New()

	// Set defaults
	setDefaults(v)

	// Configure viper
	v.SetConfigFile(configPath)
	v.SetEnvPrefix("CORTES")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Read config file
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// Config file not found, use defaults and environment variables
	}

	// Unmarshal config
	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// Validate config
	if err := validate(&config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

// Exists reports whether a config file is present at path.
func Exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// Defaults returns the configuration built from the defaults alone.
func Defaults() *Config {
	v := viper.New()
	setDefaults(v)

	var cfg Config
	_ = v.Unmarshal(&cfg)
	return &cfg
}

// KnownKeys returns every configuration key, in viper's dotted form.
func KnownKeys() map[string]bool {
	v := viper.New()
	setDefaults(v)

	keys := make(map[string]bool)
	for _, k := range v.AllKeys() {
		keys[k] = true
	}
	return keys
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.bind_address", "0.0.0.0")
	v.SetDefault("server.http_port", 8080)
	v.SetDefault("server.metrics_port", 9090)
	v.SetDefault("server.rate_limit", 60)
	v.SetDefault("server.rate_limit_window", "1m")
	v.SetDefault("server.allowed_origins", []string{})

	// Upstream defaults
	v.SetDefault("upstream.base_url", "https://api.cnelep.gob.ec/servicios-linea/v1/notificaciones/consultar")
	v.SetDefault("upstream.timeout", "15s")
	v.SetDefault("upstream.user_agent", "cortes/1.0")
	v.SetDefault("upstream.cache_size", 256)
	v.SetDefault("upstream.cache_ttl", "5m")

	// Display defaults
	v.SetDefault("display.timezone", "America/Guayaquil")
	v.SetDefault("display.clock_24h", true)
	v.SetDefault("display.default_criterion", "IDENTIFICACION")

	// Storage defaults
	v.SetDefault("storage.type", "memory")
	v.SetDefault("storage.redis.host", "localhost")
	v.SetDefault("storage.redis.port", 6379)
	v.SetDefault("storage.redis.password", "")
	v.SetDefault("storage.redis.db", 0)
	v.SetDefault("storage.redis.pool_size", 10)
	v.SetDefault("storage.redis.min_idle_conns", 2)
	v.SetDefault("storage.redis.dial_timeout", "5s")
	v.SetDefault("storage.redis.read_timeout", "3s")
	v.SetDefault("storage.redis.write_timeout", "3s")

	// Refresh defaults
	v.SetDefault("refresh.enabled", false)
	v.SetDefault("refresh.cron", "*/15 * * * *")

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
}

// validate validates the configuration
func validate(cfg *Config) error {
	if cfg.Server.HTTPPort <= 0 || cfg.Server.HTTPPort > 65535 {
		return fmt.Errorf("invalid HTTP port: %d", cfg.Server.HTTPPort)
	}
	if cfg.Server.MetricsPort < 0 || cfg.Server.MetricsPort > 65535 {
		return fmt.Errorf("invalid metrics port: %d", cfg.Server.MetricsPort)
	}
	if _, err := time.ParseDuration(cfg.Server.RateLimitWindow); err != nil {
		return fmt.Errorf("invalid rate_limit_window: %w", err)
	}

	if cfg.Upstream.BaseURL == "" {
		return fmt.Errorf("upstream base_url is required")
	}
	if _, err := time.ParseDuration(cfg.Upstream.Timeout); err != nil {
		return fmt.Errorf("invalid upstream timeout: %w", err)
	}
	if _, err := time.ParseDuration(cfg.Upstream.CacheTTL); err != nil {
		return fmt.Errorf("invalid upstream cache_ttl: %w", err)
	}

	if _, err := time.LoadLocation(cfg.Display.Timezone); err != nil {
		return fmt.Errorf("invalid display timezone %q: %w", cfg.Display.Timezone, err)
	}

	switch strings.ToUpper(cfg.Display.DefaultCriterion) {
	case "IDENTIFICACION", "CUENTA_CONTRATO", "CUEN":
		cfg.Display.DefaultCriterion = strings.ToUpper(cfg.Display.DefaultCriterion)
	default:
		return fmt.Errorf("invalid default_criterion: %s", cfg.Display.DefaultCriterion)
	}

	if cfg.Storage.Type == "" {
		cfg.Storage.Type = "memory"
	}
	switch cfg.Storage.Type {
	case "memory":
	case "redis":
		if cfg.Storage.Redis.Host == "" {
			return fmt.Errorf("redis host is required")
		}
	default:
		return fmt.Errorf("unknown storage type: %s", cfg.Storage.Type)
	}

	if cfg.Refresh.Enabled {
		if _, err := cron.ParseStandard(cfg.Refresh.Cron); err != nil {
			return fmt.Errorf("invalid refresh cron %q: %w", cfg.Refresh.Cron, err)
		}
	}

	return nil
}

// Location returns the display time zone.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Display.Timezone)
	if err != nil {
		return time.Local
	}
	return loc
}

// Duration parses a duration field, falling back to def when it is invalid.
func Duration(s string, def time.Duration) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil {
		return def
	}
	return d
}
