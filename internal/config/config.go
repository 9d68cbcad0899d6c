package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/goccy/go-yaml"
	"github.com/joho/godotenv"
)

// Config holds application configuration shared by the batch tools and the API server
type Config struct {
	Port string `yaml:"port"`

	DBDriver string `yaml:"db_driver"` // sqlite or pgx
	DBDSN    string `yaml:"db_dsn"`

	// GeometryPath points at the building GeoJSON FeatureCollection
	GeometryPath string `yaml:"geometry_path"`

	EtapCount    int     `yaml:"etap_count"`
	BufferMeters float64 `yaml:"buffer_meters"`

	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"` // text or json

	RedisAddr     string `yaml:"redis_addr"`
	RedisPassword string `yaml:"redis_password"`

	AMQPURL      string `yaml:"amqp_url"`
	AMQPExchange string `yaml:"amqp_exchange"`

	RateLimitRPS   float64 `yaml:"rate_limit_rps"`
	RateLimitBurst int     `yaml:"rate_limit_burst"`
}

// Default returns the configuration used when nothing is overridden
func Default() *Config {
	return &Config{
		Port:           ":8080",
		DBDriver:       "sqlite",
		DBDSN:          "./data/etap.db",
		GeometryPath:   "./data/birlesik_binalar.geojson",
		EtapCount:      6,
		BufferMeters:   20,
		LogLevel:       "info",
		LogFormat:      "text",
		AMQPExchange:   "etap.events",
		RateLimitRPS:   20,
		RateLimitBurst: 40,
	}
}

// Load reads .env files, an optional YAML file named by CONFIG_FILE, and
// finally environment variables. Later sources win.
func Load() (*Config, error) {
	_ = godotenv.Load(".env.local")
	_ = godotenv.Load()

	cfg := Default()

	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv() error {
	setString(&c.Port, "PORT")
	setString(&c.DBDriver, "DB_DRIVER")
	setString(&c.DBDSN, "DB_DSN")
	setString(&c.GeometryPath, "GEOMETRY_PATH")
	setString(&c.LogLevel, "LOG_LEVEL")
	setString(&c.LogFormat, "LOG_FORMAT")
	setString(&c.RedisAddr, "REDIS_ADDR")
	setString(&c.RedisPassword, "REDIS_PASSWORD")
	setString(&c.AMQPURL, "AMQP_URL")
	setString(&c.AMQPExchange, "AMQP_EXCHANGE")

	if v := os.Getenv("ETAP_COUNT"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid ETAP_COUNT %q: %w", v, err)
		}
		c.EtapCount = n
	}
	if v := os.Getenv("BUFFER_METERS"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("invalid BUFFER_METERS %q: %w", v, err)
		}
		c.BufferMeters = f
	}
	if v := os.Getenv("RATE_LIMIT_RPS"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("invalid RATE_LIMIT_RPS %q: %w", v, err)
		}
		c.RateLimitRPS = f
	}
	if v := os.Getenv("RATE_LIMIT_BURST"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid RATE_LIMIT_BURST %q: %w", v, err)
		}
		c.RateLimitBurst = n
	}
	return nil
}

// Validate checks the values the zoning engine depends on
func (c *Config) Validate() error {
	if c.EtapCount < 2 {
		return fmt.Errorf("etap count must be at least 2, got %d", c.EtapCount)
	}
	if c.BufferMeters < 0 {
		return fmt.Errorf("buffer distance must not be negative, got %g", c.BufferMeters)
	}
	switch c.DBDriver {
	case "sqlite", "pgx":
	default:
		return fmt.Errorf("unsupported database driver %q", c.DBDriver)
	}
	if c.DBDSN == "" {
		return fmt.Errorf("database DSN is required")
	}
	return nil
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}
