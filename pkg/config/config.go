package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	BackendSQL    = "sql"
	BackendMemory = "memory"
)

type Config struct {
	Environment string `yaml:"environment"`
	InstanceID  string `yaml:"instance_id"`
	Server      struct {
		Port            int           `yaml:"port"`
		ReadTimeout     time.Duration `yaml:"read_timeout"`
		WriteTimeout    time.Duration `yaml:"write_timeout"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
		RequestTimeout  time.Duration `yaml:"request_timeout"`
		CORSOrigins     []string      `yaml:"cors_origins"`
		RateLimit       struct {
			Enabled bool    `yaml:"enabled"`
			RPS     float64 `yaml:"rps"`
			Burst   int     `yaml:"burst"`
		} `yaml:"rate_limit"`
	} `yaml:"server"`
	Log struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
		Output string `yaml:"output"`
	} `yaml:"log"`
	Metrics struct {
		Enabled bool   `yaml:"enabled"`
		Path    string `yaml:"path"`
	} `yaml:"metrics"`
	Storage struct {
		Backend    string `yaml:"backend"`
		Fixtures   string `yaml:"fixtures"`
		InitSchema bool   `yaml:"init_schema"`
	} `yaml:"storage"`
	ClickHouse struct {
		Host             string        `yaml:"host"`
		Port             int           `yaml:"port"`
		Database         string        `yaml:"database"`
		User             string        `yaml:"user"`
		Password         string        `yaml:"password"`
		Table            string        `yaml:"table"`
		UseHTTP          bool          `yaml:"use_http"`
		MaxOpenConns     int           `yaml:"max_open_conns"`
		MaxIdleConns     int           `yaml:"max_idle_conns"`
		DialTimeout      time.Duration `yaml:"dial_timeout"`
		ReadTimeout      time.Duration `yaml:"read_timeout"`
		MaxExecutionTime time.Duration `yaml:"max_execution_time"`
		MaxResultRows    int           `yaml:"max_result_rows"`
	} `yaml:"clickhouse"`
	Postgres struct {
		DSN             string        `yaml:"dsn"`
		MaxOpenConns    int           `yaml:"max_open_conns"`
		MaxIdleConns    int           `yaml:"max_idle_conns"`
		ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
		ConnMaxIdleTime time.Duration `yaml:"conn_max_idle_time"`
	} `yaml:"postgres"`
	Redis struct {
		Enabled  bool          `yaml:"enabled"`
		Addr     string        `yaml:"addr"`
		Password string        `yaml:"password"`
		DB       int           `yaml:"db"`
		Prefix   string        `yaml:"prefix"`
		PoolSize int           `yaml:"pool_size"`
		MinIdle  int           `yaml:"min_idle_conns"`
		Timeout  time.Duration `yaml:"timeout"`
	} `yaml:"redis"`
	Kafka struct {
		Enabled         bool          `yaml:"enabled"`
		Brokers         []string      `yaml:"brokers"`
		AnomaliesTopic  string        `yaml:"anomalies_topic"`
		ThresholdsTopic string        `yaml:"thresholds_topic"`
		RequiredAcks    int           `yaml:"required_acks"`
		Compression     string        `yaml:"compression"`
		MaxAttempts     int           `yaml:"max_attempts"`
		BatchTimeout    time.Duration `yaml:"batch_timeout"`
		WriteTimeout    time.Duration `yaml:"write_timeout"`
		ReadTimeout     time.Duration `yaml:"read_timeout"`
		Consumer        struct {
			GroupPrefix     string        `yaml:"group_prefix"`
			AutoOffsetReset string        `yaml:"auto_offset_reset"`
			Workers         int           `yaml:"workers"`
			RetryMax        int           `yaml:"retry_max"`
			BackoffMin      time.Duration `yaml:"backoff_min"`
			BackoffMax      time.Duration `yaml:"backoff_max"`
		} `yaml:"consumer"`
	} `yaml:"kafka"`
	Thresholds struct {
		Path string `yaml:"path"`
	} `yaml:"thresholds"`
	Query struct {
		StatsCacheTTL      time.Duration `yaml:"stats_cache_ttl"`
		StreamPollInterval time.Duration `yaml:"stream_poll_interval"`
	} `yaml:"query"`
}

// Load reads and parses a YAML configuration file.
func Load(path string) (*Config, error) {
	c, err := parse(path)
	if err != nil {
		return nil, err
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return c, nil
}

// LoadWithEnv loads .env (if present) and the YAML file, then lets
// environment variables override the file before validating.
func LoadWithEnv(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}
	c, err := parse(path)
	if err != nil {
		return nil, err
	}

	if v := os.Getenv("THRESHOLDS_PATH"); v != "" {
		c.Thresholds.Path = v
	}
	if v := os.Getenv("STORAGE_BACKEND"); v != "" {
		c.Storage.Backend = v
	}
	if v := os.Getenv("POSTGRES_DSN"); v != "" {
		c.Postgres.DSN = v
	}
	if v := os.Getenv("CLICKHOUSE_HOST"); v != "" {
		c.ClickHouse.Host = v
	}
	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		c.Kafka.Brokers = strings.Split(v, ",")
		c.Kafka.Enabled = true
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		c.Redis.Addr = v
		c.Redis.Enabled = true
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		c.Log.Level = v
	}
	if v := os.Getenv("PORT"); v != "" {
		if p, err := strconv.Atoi(v); err == nil {
			c.Server.Port = p
		}
	}

	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return c, nil
}

func parse(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	var c Config
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	c.applyDefaults()
	return &c, nil
}

func (c *Config) applyDefaults() {
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Server.ShutdownTimeout == 0 {
		c.Server.ShutdownTimeout = 10 * time.Second
	}
	if c.Storage.Backend == "" {
		c.Storage.Backend = BackendSQL
	}
	if c.Metrics.Path == "" {
		c.Metrics.Path = "/metrics"
	}
	if c.Kafka.AnomaliesTopic == "" {
		c.Kafka.AnomaliesTopic = "anomalies.detected"
	}
	if c.Kafka.ThresholdsTopic == "" {
		c.Kafka.ThresholdsTopic = "thresholds.reloaded"
	}
	if c.Kafka.Consumer.GroupPrefix == "" {
		c.Kafka.Consumer.GroupPrefix = "marketlens"
	}
	if c.Query.StreamPollInterval == 0 {
		c.Query.StreamPollInterval = 2 * time.Second
	}
	if c.InstanceID == "" {
		if h, err := os.Hostname(); err == nil {
			c.InstanceID = h
		}
	}
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.Environment == "" {
		return fmt.Errorf("environment is required")
	}
	switch c.Storage.Backend {
	case BackendSQL:
		if c.ClickHouse.Host == "" {
			return fmt.Errorf("clickhouse.host is required for the sql backend")
		}
		if c.Postgres.DSN == "" {
			return fmt.Errorf("postgres.dsn is required for the sql backend")
		}
	case BackendMemory:
	default:
		return fmt.Errorf("storage.backend must be '%s' or '%s', got '%s'", BackendSQL, BackendMemory, c.Storage.Backend)
	}
	if c.Thresholds.Path == "" {
		return fmt.Errorf("thresholds.path is required")
	}
	if c.Kafka.Enabled && len(c.Kafka.Brokers) == 0 {
		return fmt.Errorf("kafka.brokers cannot be empty when kafka is enabled")
	}
	if c.Redis.Enabled && c.Redis.Addr == "" {
		return fmt.Errorf("redis.addr is required when redis is enabled")
	}
	return nil
}
