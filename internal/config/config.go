package config

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cast"
	"go.uber.org/multierr"
	"gopkg.in/yaml.v3"
)

const (
	DefaultRESTEndpoint = "https://pro.edgex.exchange"
	DefaultPublicPath   = "/api/v1/public"
	DefaultPrivatePath  = "/api/v1/private"
	DefaultWSEndpoint   = "wss://quote.edgex.exchange/api/v1/public/ws"
)

type Config struct {
	Exchange ExchangeConfig `yaml:"exchange"`
	Trading  TradingConfig  `yaml:"trading"`
	Trend    TrendConfig    `yaml:"trend"`
	Logging  LoggingConfig  `yaml:"logging"`
	Storage  StorageConfig  `yaml:"storage"`
	Metrics  MetricsConfig  `yaml:"metrics"`
	Server   ServerConfig   `yaml:"server"`
}

type ExchangeConfig struct {
	Name             string             `yaml:"name"`
	RESTEndpoint     string             `yaml:"rest_endpoint"`
	PublicPath       string             `yaml:"public_path"`
	PrivatePath      string             `yaml:"private_path"`
	WSEndpoint       string             `yaml:"ws_endpoint"`
	UseStream        bool               `yaml:"use_stream"`
	APIKey           string             `yaml:"api_key"`
	APISecret        string             `yaml:"api_secret"`
	Simulated        bool               `yaml:"simulated"`
	RequestTimeoutMs int                `yaml:"request_timeout_ms"`
	PaperBalance     float64            `yaml:"paper_balance"`
	PaperPrices      map[string]float64 `yaml:"paper_prices"`
}

func (e ExchangeConfig) PublicURL() string {
	return strings.TrimRight(e.RESTEndpoint, "/") + e.PublicPath
}

func (e ExchangeConfig) PrivateURL() string {
	return strings.TrimRight(e.RESTEndpoint, "/") + e.PrivatePath
}

func (e ExchangeConfig) RequestTimeout() time.Duration {
	return time.Duration(e.RequestTimeoutMs) * time.Millisecond
}

type TradingConfig struct {
	DefaultLeverage      int     `yaml:"default_leverage"`
	MaxPositionSize      float64 `yaml:"max_position_size"`
	EmergencyStopLossPct float64 `yaml:"emergency_stop_loss_pct"`
	MonitorIntervalSec   int     `yaml:"monitor_interval_sec"`
	OrderPacingMs        int     `yaml:"order_pacing_ms"`
	OrderBurst           int     `yaml:"order_burst"`
}

func (t TradingConfig) MonitorInterval() time.Duration {
	return time.Duration(t.MonitorIntervalSec) * time.Second
}

func (t TradingConfig) OrderPacing() time.Duration {
	return time.Duration(t.OrderPacingMs) * time.Millisecond
}

type TrendConfig struct {
	// Provider is "ema" (default) or "random".
	Provider   string `yaml:"provider"`
	Interval   string `yaml:"interval"`
	FastPeriod int    `yaml:"fast_period"`
	SlowPeriod int    `yaml:"slow_period"`
	Candles    int    `yaml:"candles"`
	Seed       int64  `yaml:"seed"`
}

type LoggingConfig struct {
	Level      string `yaml:"level"`
	File       string `yaml:"file"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
}

type StorageConfig struct {
	JournalPath string `yaml:"journal_path"`
}

type MetricsConfig struct {
	StatsdAddress string `yaml:"statsd_address"`
	Prefix        string `yaml:"prefix"`
	FlushMs       int    `yaml:"flush_ms"`
}

// ServerConfig controls the read-only status API. Port 0 disables it.
type ServerConfig struct {
	Port int `yaml:"port"`
}

// Default returns the configuration used for any value the file leaves unset.
func Default() *Config {
	return &Config{
		Exchange: ExchangeConfig{
			Name:             "edgex",
			RESTEndpoint:     DefaultRESTEndpoint,
			PublicPath:       DefaultPublicPath,
			PrivatePath:      DefaultPrivatePath,
			WSEndpoint:       DefaultWSEndpoint,
			RequestTimeoutMs: 10000,
			PaperBalance:     10000,
		},
		Trading: TradingConfig{
			DefaultLeverage:      3,
			MaxPositionSize:      10,
			EmergencyStopLossPct: 5,
			MonitorIntervalSec:   300,
			OrderPacingMs:        100,
			OrderBurst:           1,
		},
		Trend: TrendConfig{
			Provider:   "ema",
			Interval:   "15m",
			FastPeriod: 20,
			SlowPeriod: 50,
			Candles:    100,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
		Storage: StorageConfig{
			JournalPath: "bot.db",
		},
		Metrics: MetricsConfig{
			Prefix:  "edgex_bot",
			FlushMs: 1000,
		},
	}
}

// LoadEnv loads .env style files into the process environment. Missing files
// are ignored.
func LoadEnv(files ...string) error {
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("load %s: %w", f, err)
		}
	}
	return nil
}

// Load reads the YAML file at path over the defaults, applies environment
// overrides and validates the result.
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	cfg := Default()
	decoder := yaml.NewDecoder(f)
	if err := decoder.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}

	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyEnv overrides file values with EDGEX_* environment variables.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	var errs error

	if v, ok := lookup("EDGEX_API_KEY"); ok && v != "" {
		c.Exchange.APIKey = v
	}
	if v, ok := lookup("EDGEX_API_SECRET"); ok && v != "" {
		c.Exchange.APISecret = v
	}
	if v, ok := lookup("EDGEX_LOG_LEVEL"); ok && v != "" {
		c.Logging.Level = v
	}
	if v, ok := lookup("EDGEX_SIMULATED"); ok && v != "" {
		b, err := cast.ToBoolE(v)
		errs = multierr.Append(errs, wrapEnv("EDGEX_SIMULATED", err))
		if err == nil {
			c.Exchange.Simulated = b
		}
	}
	if v, ok := lookup("EDGEX_DEFAULT_LEVERAGE"); ok && v != "" {
		n, err := cast.ToIntE(v)
		errs = multierr.Append(errs, wrapEnv("EDGEX_DEFAULT_LEVERAGE", err))
		if err == nil {
			c.Trading.DefaultLeverage = n
		}
	}
	if v, ok := lookup("EDGEX_MAX_POSITION_SIZE"); ok && v != "" {
		n, err := cast.ToFloat64E(v)
		errs = multierr.Append(errs, wrapEnv("EDGEX_MAX_POSITION_SIZE", err))
		if err == nil {
			c.Trading.MaxPositionSize = n
		}
	}
	if v, ok := lookup("EDGEX_EMERGENCY_STOP_LOSS"); ok && v != "" {
		n, err := cast.ToFloat64E(v)
		errs = multierr.Append(errs, wrapEnv("EDGEX_EMERGENCY_STOP_LOSS", err))
		if err == nil {
			c.Trading.EmergencyStopLossPct = n
		}
	}
	if v, ok := lookup("STATSD_ADDRESS"); ok && v != "" {
		c.Metrics.StatsdAddress = v
	}
	if v, ok := lookup("EDGEX_HTTP_PORT"); ok && v != "" {
		n, err := cast.ToIntE(v)
		errs = multierr.Append(errs, wrapEnv("EDGEX_HTTP_PORT", err))
		if err == nil {
			c.Server.Port = n
		}
	}
	return errs
}

func wrapEnv(name string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("env %s: %w", name, err)
}

// Validate reports every invalid setting at once.
func (c *Config) Validate() error {
	var errs error
	if !c.Exchange.Simulated {
		if c.Exchange.APIKey == "" || c.Exchange.APISecret == "" {
			errs = multierr.Append(errs, errors.New("exchange credentials missing: set EDGEX_API_KEY and EDGEX_API_SECRET"))
		}
		if c.Exchange.RESTEndpoint == "" {
			errs = multierr.Append(errs, errors.New("exchange.rest_endpoint is required"))
		}
	}
	if c.Exchange.RequestTimeoutMs <= 0 {
		errs = multierr.Append(errs, errors.New("exchange.request_timeout_ms must be positive"))
	}
	if c.Trading.DefaultLeverage <= 0 {
		errs = multierr.Append(errs, errors.New("trading.default_leverage must be positive"))
	}
	if c.Trading.MaxPositionSize <= 0 {
		errs = multierr.Append(errs, errors.New("trading.max_position_size must be positive"))
	}
	if c.Trading.EmergencyStopLossPct <= 0 {
		errs = multierr.Append(errs, errors.New("trading.emergency_stop_loss_pct must be positive"))
	}
	if c.Trading.MonitorIntervalSec <= 0 {
		errs = multierr.Append(errs, errors.New("trading.monitor_interval_sec must be positive"))
	}
	if c.Trading.OrderPacingMs <= 0 {
		errs = multierr.Append(errs, errors.New("trading.order_pacing_ms must be positive"))
	}
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		errs = multierr.Append(errs, fmt.Errorf("server.port %d is out of range", c.Server.Port))
	}
	switch c.Trend.Provider {
	case "ema", "random":
	default:
		errs = multierr.Append(errs, fmt.Errorf("trend.provider %q is not one of ema, random", c.Trend.Provider))
	}
	if c.Trend.Provider == "ema" && c.Trend.FastPeriod >= c.Trend.SlowPeriod {
		errs = multierr.Append(errs, errors.New("trend.fast_period must be below trend.slow_period"))
	}
	return errs
}
