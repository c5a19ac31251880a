package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/creasty/defaults"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"FinCast/pkg/util"
)

// Instrument is one catalog entry.
type Instrument struct {
	Symbol string `yaml:"symbol"`
	Name   string `yaml:"name"`
}

type Config struct {
	Environment string `yaml:"environment" default:"development"`
	Log         struct {
		Level  string `yaml:"level" default:"info"`
		Format string `yaml:"format" default:"console"`
		Output string `yaml:"output" default:"stdout"`
	} `yaml:"log"`
	Server struct {
		Port            int           `yaml:"port" default:"8080"`
		ReadTimeout     time.Duration `yaml:"read_timeout" default:"15s"`
		WriteTimeout    time.Duration `yaml:"write_timeout" default:"60s"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout" default:"15s"`
		CORSOrigins     []string      `yaml:"cors_origins"`
	} `yaml:"server"`
	Metrics struct {
		Enabled bool   `yaml:"enabled" default:"true"`
		Path    string `yaml:"path" default:"/metrics"`
	} `yaml:"metrics"`
	Market struct {
		Timezone     string        `yaml:"timezone" default:"Asia/Jakarta"`
		CloseTime    string        `yaml:"close_time" default:"16:30"`
		LookbackDays int           `yaml:"lookback_days" default:"365"`
		Refresh      time.Duration `yaml:"refresh" default:"1h"`
		Provider     struct {
			BaseURL   string        `yaml:"base_url" default:"https://query1.finance.yahoo.com"`
			Timeout   time.Duration `yaml:"timeout" default:"15s"`
			RateLimit int           `yaml:"rate_limit" default:"5"`
		} `yaml:"provider"`
	} `yaml:"market"`
	Model struct {
		Dir            string  `yaml:"dir" default:"models"`
		Estimators     int     `yaml:"estimators" default:"100"`
		Seed           uint64  `yaml:"seed" default:"42"`
		TestRatio      float64 `yaml:"test_ratio" default:"0.2"`
		EMASpan        int     `yaml:"ema_span" default:"10"`
		AccuracyWindow int     `yaml:"accuracy_window" default:"10"`
		Workers        int     `yaml:"workers" default:"4"`
	} `yaml:"model"`
	Forecast struct {
		CacheTTL       time.Duration `yaml:"cache_ttl" default:"5m"`
		StreamInterval time.Duration `yaml:"stream_interval" default:"30s"`
	} `yaml:"forecast"`
	Instruments []Instrument `yaml:"instruments"`
	Redis       struct {
		Enabled    bool          `yaml:"enabled"`
		Host       string        `yaml:"host" default:"localhost"`
		Port       int           `yaml:"port" default:"6379"`
		Password   string        `yaml:"password"`
		DB         int           `yaml:"db"`
		Prefix     string        `yaml:"prefix" default:"fincast"`
		PoolSize   int           `yaml:"pool_size" default:"10"`
		MemorySize int           `yaml:"memory_size" default:"1000"`
		MemoryTTL  time.Duration `yaml:"memory_ttl" default:"1m"`
	} `yaml:"redis"`
	ClickHouse struct {
		Enabled          bool          `yaml:"enabled"`
		Host             string        `yaml:"host" default:"localhost"`
		Port             int           `yaml:"port" default:"9000"`
		Database         string        `yaml:"database" default:"fincast"`
		User             string        `yaml:"user" default:"default"`
		Password         string        `yaml:"password"`
		UseHTTP          bool          `yaml:"use_http"`
		AsyncInsert      bool          `yaml:"async_insert"`
		WaitForAsync     bool          `yaml:"wait_for_async_insert"`
		DialTimeout      time.Duration `yaml:"dial_timeout" default:"5s"`
		ReadTimeout      time.Duration `yaml:"read_timeout" default:"30s"`
		WriteTimeout     time.Duration `yaml:"write_timeout" default:"30s"`
		MaxExecutionTime time.Duration `yaml:"max_execution_time" default:"60s"`
	} `yaml:"clickhouse"`
	Kafka struct {
		Enabled        bool     `yaml:"enabled"`
		Brokers        []string `yaml:"brokers"`
		ForecastsTopic string   `yaml:"forecasts_topic" default:"fincast.forecasts"`
		ModelsTopic    string   `yaml:"models_topic" default:"fincast.models"`
		TrainTopic     string   `yaml:"train_topic" default:"fincast.train"`
		RequiredAcks   int      `yaml:"required_acks" default:"-1"`
		Compression    string   `yaml:"compression" default:"snappy"`
		Producer       struct {
			MaxAttempts  int           `yaml:"max_attempts" default:"5"`
			BatchSize    int           `yaml:"batch_size" default:"100"`
			BatchTimeout time.Duration `yaml:"batch_timeout" default:"50ms"`
			WriteTimeout time.Duration `yaml:"write_timeout" default:"10s"`
			ReadTimeout  time.Duration `yaml:"read_timeout" default:"10s"`
			Async        bool          `yaml:"async"`
		} `yaml:"producer"`
		Consumer struct {
			GroupID    string        `yaml:"group_id" default:"fincast-trainer"`
			Workers    int           `yaml:"workers" default:"1"`
			RetryMax   int           `yaml:"retry_max" default:"3"`
			BackoffMin time.Duration `yaml:"backoff_min" default:"500ms"`
			BackoffMax time.Duration `yaml:"backoff_max" default:"10s"`
			DLQTopic   string        `yaml:"dlq_topic" default:"fincast.train.dlq"`
		} `yaml:"consumer"`
	} `yaml:"kafka"`
}

// DefaultInstruments is the IDX catalog served when none is configured.
var DefaultInstruments = []Instrument{
	{Symbol: "ADRO.JK", Name: "PT Alamtri Resources Indonesia Tbk (ADRO)"},
	{Symbol: "ASII.JK", Name: "Astra International Tbk (ASII)"},
	{Symbol: "BBCA.JK", Name: "Bank Central Asia Tbk (BBCA)"},
	{Symbol: "BBNI.JK", Name: "Bank Negara Indonesia Persero Tbk (BBNI)"},
	{Symbol: "BBRI.JK", Name: "Bank Rakyat Indonesia Persero Tbk (BBRI)"},
	{Symbol: "BMRI.JK", Name: "Bank Mandiri Persero Tbk (BMRI)"},
	{Symbol: "ICBP.JK", Name: "Indofood CBP Sukses Makmur Tbk (ICBP)"},
	{Symbol: "PTBA.JK", Name: "Bukit Asam Tbk (PTBA)"},
	{Symbol: "TLKM.JK", Name: "Telkom Indonesia Persero Tbk (TLKM)"},
	{Symbol: "TOWR.JK", Name: "Sarana Menara Nusantara Tbk (TOWR)"},
}

// Default returns a configuration populated from the default tags only.
func Default() (*Config, error) {
	var c Config
	if err := defaults.Set(&c); err != nil {
		return nil, fmt.Errorf("set defaults: %w", err)
	}
	c.Instruments = append([]Instrument(nil), DefaultInstruments...)
	return &c, nil
}

// Load reads and parses a YAML configuration file on top of the defaults.
// An empty path yields the defaults.
func Load(path string) (*Config, error) {
	c, err := Default()
	if err != nil {
		return nil, err
	}
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(b, c); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}
	if len(c.Instruments) == 0 {
		c.Instruments = append([]Instrument(nil), DefaultInstruments...)
	}

	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return c, nil
}

// LoadWithEnv loads .env (when present), then config from YAML, and
// overrides with environment variables.
func LoadWithEnv(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}
	c, err := Load(path)
	if err != nil {
		return nil, err
	}
	c.applyEnv()
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return c, nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv("FINCAST_ENV"); v != "" {
		c.Environment = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		c.Log.Level = v
	}
	c.Server.Port = util.ParseIntDefault(os.Getenv("PORT"), c.Server.Port)
	if v := os.Getenv("MODEL_DIR"); v != "" {
		c.Model.Dir = v
	}
	if v := os.Getenv("INSTRUMENTS"); v != "" {
		c.Instruments = parseInstruments(v)
	}
	if v := os.Getenv("REDIS_HOST"); v != "" {
		c.Redis.Enabled = true
		c.Redis.Host = v
	}
	if v := os.Getenv("REDIS_PASSWORD"); v != "" {
		c.Redis.Password = v
	}
	if v := os.Getenv("CLICKHOUSE_HOST"); v != "" {
		c.ClickHouse.Enabled = true
		c.ClickHouse.Host = v
	}
	if v := os.Getenv("CLICKHOUSE_PASSWORD"); v != "" {
		c.ClickHouse.Password = v
	}
	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		c.Kafka.Enabled = true
		c.Kafka.Brokers = strings.Split(v, ",")
	}
}

// parseInstruments reads "SYM=Name,SYM2=Name2"; a bare symbol is its own name.
func parseInstruments(v string) []Instrument {
	var out []Instrument
	for _, part := range strings.Split(v, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		sym, name, ok := strings.Cut(part, "=")
		if !ok {
			name = sym
		}
		out = append(out, Instrument{Symbol: strings.TrimSpace(sym), Name: strings.TrimSpace(name)})
	}
	return out
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.Environment == "" {
		return fmt.Errorf("environment is required")
	}
	if len(c.Instruments) == 0 {
		return fmt.Errorf("instruments cannot be empty")
	}
	for i, in := range c.Instruments {
		if in.Symbol == "" {
			return fmt.Errorf("instruments[%d].symbol is required", i)
		}
	}
	if _, err := time.Parse("15:04", c.Market.CloseTime); err != nil {
		return fmt.Errorf("market.close_time must be HH:MM, got '%s'", c.Market.CloseTime)
	}
	if c.Model.Dir == "" {
		return fmt.Errorf("model.dir is required")
	}
	if c.Model.Estimators < 1 {
		return fmt.Errorf("model.estimators must be positive, got %d", c.Model.Estimators)
	}
	if c.Model.TestRatio < 0 || c.Model.TestRatio >= 1 {
		return fmt.Errorf("model.test_ratio must be in [0,1), got %v", c.Model.TestRatio)
	}
	if c.Model.EMASpan < 1 {
		return fmt.Errorf("model.ema_span must be positive, got %d", c.Model.EMASpan)
	}
	if c.Model.AccuracyWindow < 1 {
		return fmt.Errorf("model.accuracy_window must be positive, got %d", c.Model.AccuracyWindow)
	}
	if c.Kafka.Enabled && len(c.Kafka.Brokers) == 0 {
		return fmt.Errorf("kafka.brokers cannot be empty when kafka is enabled")
	}
	return nil
}

// IsProduction reports whether the service runs in production mode.
func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.Environment, "production")
}
