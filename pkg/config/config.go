package config

import (
	"fmt"
	"os"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Environment string `yaml:"environment" default:"development" validate:"required"`
	Server      struct {
		Port            int           `yaml:"port" default:"8080" validate:"gt=0,lt=65536"`
		ReadTimeout     time.Duration `yaml:"read_timeout" default:"10s"`
		WriteTimeout    time.Duration `yaml:"write_timeout" default:"10s"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout" default:"15s"`
	} `yaml:"server"`
	Logger struct {
		Level  string `yaml:"level" default:"info" validate:"oneof=debug info warn error"`
		Format string `yaml:"format" default:"json" validate:"oneof=json console"`
		Output string `yaml:"output" default:"stdout"`
	} `yaml:"logger"`
	Metrics struct {
		Enabled bool   `yaml:"enabled" default:"true"`
		Path    string `yaml:"path" default:"/metrics"`
	} `yaml:"metrics"`
	ClickHouse struct {
		Host             string        `yaml:"host" default:"localhost"`
		Port             int           `yaml:"port" default:"9000"`
		Database         string        `yaml:"database" default:"sales"`
		User             string        `yaml:"user" default:"default"`
		Password         string        `yaml:"password"`
		UseHTTP          bool          `yaml:"use_http"`
		MaxOpenConns     int           `yaml:"max_open_conns" default:"16"`
		MaxIdleConns     int           `yaml:"max_idle_conns" default:"8"`
		DialTimeout      time.Duration `yaml:"dial_timeout" default:"5s"`
		ReadTimeout      time.Duration `yaml:"read_timeout" default:"60s"`
		WriteTimeout     time.Duration `yaml:"write_timeout" default:"30s"`
		MaxExecutionTime time.Duration `yaml:"max_execution_time" default:"120s"`
		SalesTable       string        `yaml:"sales_table" default:"daily_sales"`
	} `yaml:"clickhouse"`
	Postgres struct {
		DSN            string        `yaml:"dsn" validate:"required"`
		MaxConns       int32         `yaml:"max_conns" default:"8"`
		ConnectTimeout time.Duration `yaml:"connect_timeout" default:"5s"`
		ForecastTable  string        `yaml:"forecast_table" default:"sales_salesforecast"`
		UpsertChunk    int           `yaml:"upsert_chunk" default:"2000" validate:"gt=0"`
		UpsertRetries  int           `yaml:"upsert_retries" default:"3"`
	} `yaml:"postgres"`
	Redis struct {
		Addr      string        `yaml:"addr" default:"localhost:6379"`
		Password  string        `yaml:"password"`
		DB        int           `yaml:"db"`
		Prefix    string        `yaml:"prefix" default:"demandcast"`
		StatusTTL time.Duration `yaml:"status_ttl" default:"72h"`
		LockTTL   time.Duration `yaml:"lock_ttl" default:"6h"`
	} `yaml:"redis"`
	Kafka struct {
		Enabled      bool     `yaml:"enabled" default:"true"`
		Brokers      []string `yaml:"brokers"`
		RequiredAcks int      `yaml:"required_acks" default:"1"`
		Compression  string   `yaml:"compression" default:"snappy"`
		Topics       struct {
			RunEvents string `yaml:"run_events" default:"forecast.runs"`
			Triggers  string `yaml:"triggers" default:"forecast.triggers"`
			Logs      string `yaml:"logs" default:"demandcast.logs"`
		} `yaml:"topics"`
		Producer struct {
			MaxAttempts  int           `yaml:"max_attempts" default:"5"`
			Linger       time.Duration `yaml:"linger" default:"50ms"`
			BatchBytes   int           `yaml:"batch_bytes" default:"1048576"`
			BatchSize    int           `yaml:"batch_size" default:"100"`
			WriteTimeout time.Duration `yaml:"write_timeout" default:"10s"`
			ReadTimeout  time.Duration `yaml:"read_timeout" default:"10s"`
			Async        bool          `yaml:"async"`
		} `yaml:"producer"`
		Consumer struct {
			GroupID    string        `yaml:"group_id" default:"demandcast"`
			Workers    int           `yaml:"workers" default:"1"`
			RetryMax   int           `yaml:"retry_max" default:"3"`
			BackoffMin time.Duration `yaml:"backoff_min" default:"100ms"`
			BackoffMax time.Duration `yaml:"backoff_max" default:"5s"`
			DLQTopic   string        `yaml:"dlq_topic"`
		} `yaml:"consumer"`
	} `yaml:"kafka"`
	Queue struct {
		Name       string        `yaml:"name" default:"forecast"`
		Workers    int           `yaml:"workers" default:"1" validate:"gt=0"`
		MaxRetries int           `yaml:"max_retries" default:"2"`
		RetryDelay time.Duration `yaml:"retry_delay" default:"1m"`
		JobTimeout time.Duration `yaml:"job_timeout" default:"6h"`
	} `yaml:"queue"`
	Forecast struct {
		HorizonDays       int           `yaml:"horizon_days" default:"60" validate:"gt=0,lte=365"`
		BatchSize         int           `yaml:"batch_size" default:"20" validate:"gt=0"`
		Workers           int           `yaml:"workers"`
		BatchTimeout      time.Duration `yaml:"batch_timeout" default:"300s"`
		EntityTimeout     time.Duration `yaml:"entity_timeout"`
		MinHistoryDays    int           `yaml:"min_history_days" default:"60" validate:"gt=0"`
		ActiveWindowDays  int           `yaml:"active_window_days" default:"90" validate:"gt=0"`
		MinTransactions   int           `yaml:"min_transactions" default:"10" validate:"gte=0"`
		ClassifyDays      int           `yaml:"classify_days" default:"365" validate:"gt=0"`
		ModelVersion      string        `yaml:"model_version" default:"20251009_V1"`
		EnabledTechniques []string      `yaml:"enabled_techniques"`
	} `yaml:"forecast"`
	Tracking struct {
		Enabled        bool          `yaml:"enabled"`
		URL            string        `yaml:"url" default:"http://localhost:5000"`
		Experiment     string        `yaml:"experiment" default:"sales_forecasting_production"`
		Timeout        time.Duration `yaml:"timeout" default:"10s"`
		RequestsPerSec float64       `yaml:"requests_per_sec" default:"20"`
	} `yaml:"tracking"`
	Tracing struct {
		Enabled      bool    `yaml:"enabled"`
		Endpoint     string  `yaml:"endpoint" default:"localhost:4317"`
		SamplingRate float64 `yaml:"sampling_rate" default:"1.0" validate:"gte=0,lte=1"`
	} `yaml:"tracing"`
}

// Load reads and parses a YAML configuration file.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return Parse(b)
}

// Parse decodes YAML bytes, fills defaults and validates.
func Parse(b []byte) (*Config, error) {
	var c Config
	if err := defaults.Set(&c); err != nil {
		return nil, fmt.Errorf("config defaults: %w", err)
	}
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	c.applyDerived()

	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return &c, nil
}

// LoadWithEnv loads config from YAML and overrides with environment variables.
func LoadWithEnv(path string) (*Config, error) {
	c, err := Load(path)
	if err != nil {
		return nil, err
	}
	c.overrideFromEnv(os.Getenv)
	c.applyDerived()

	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return c, nil
}

func (c *Config) overrideFromEnv(getenv func(string) string) {
	if v := getenv("DEMANDCAST_ENV"); v != "" {
		c.Environment = v
	}
	if v := getenv("CLICKHOUSE_HOST"); v != "" {
		c.ClickHouse.Host = v
	}
	if v := getenv("POSTGRES_DSN"); v != "" {
		c.Postgres.DSN = v
	}
	if v := getenv("REDIS_ADDR"); v != "" {
		c.Redis.Addr = v
	}
	if v := getenv("KAFKA_BROKERS"); v != "" {
		c.Kafka.Brokers = strings.Split(v, ",")
	}
	if v := getenv("MLFLOW_TRACKING_URI"); v != "" {
		c.Tracking.URL = v
		c.Tracking.Enabled = true
	}
	if v := getenv("FORECAST_WORKERS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Forecast.Workers = n
		}
	}
}

// applyDerived fills values that depend on the host rather than a constant default.
func (c *Config) applyDerived() {
	if c.Forecast.Workers <= 0 {
		c.Forecast.Workers = DefaultWorkers(runtime.NumCPU())
	}
}

// DefaultWorkers keeps two cores free for the database clients, within [2,4].
func DefaultWorkers(cpus int) int {
	return min(4, max(2, cpus-2))
}

var validate = validator.New()

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return err
	}
	if c.Kafka.Enabled && len(c.Kafka.Brokers) == 0 {
		return fmt.Errorf("kafka.brokers cannot be empty when kafka is enabled")
	}
	if c.Forecast.BatchTimeout <= 0 {
		return fmt.Errorf("forecast.batch_timeout must be positive")
	}
	for _, t := range c.Forecast.EnabledTechniques {
		switch t {
		case "arima", "holt_winters", "prophet", "xgboost":
		default:
			return fmt.Errorf("forecast.enabled_techniques: unknown technique %q", t)
		}
	}
	return nil
}
