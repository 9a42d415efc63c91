package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config represents the complete application configuration
type Config struct {
	Data      DataConfig      `mapstructure:"data"`
	Columns   ColumnsConfig   `mapstructure:"columns"`
	Filter    FilterConfig    `mapstructure:"filter"`
	Stack     StackConfig     `mapstructure:"stack"`
	Drilldown DrilldownConfig `mapstructure:"drilldown"`
	Layout    LayoutConfig    `mapstructure:"layout"`
	Server    ServerConfig    `mapstructure:"server"`
	Storage   StorageConfig   `mapstructure:"storage"`
	Telegram  TelegramConfig  `mapstructure:"telegram"`
	Logging   LoggingConfig   `mapstructure:"logging"`
}

// DataConfig locates the input datasets. Locations are local paths or http(s) URLs.
type DataConfig struct {
	Billionaires string        `mapstructure:"billionaires"`
	MarketDir    string        `mapstructure:"market_dir"`
	Tickers      []string      `mapstructure:"tickers"`
	FetchTimeout time.Duration `mapstructure:"fetch_timeout"`
}

// ColumnsConfig names the CSV columns the normalizer reads.
type ColumnsConfig struct {
	Year     string `mapstructure:"year"`
	Metric   string `mapstructure:"metric"`
	Category string `mapstructure:"category"`
	Name     string `mapstructure:"name"`
}

// FilterConfig is the dataset-specific row predicate applied while normalizing.
// An empty Column disables the field match; MinYear 0 disables the year bound.
type FilterConfig struct {
	Column  string `mapstructure:"column"`
	Value   string `mapstructure:"value"`
	MinYear int    `mapstructure:"min_year"`
}

// StackConfig holds stacked bar chart behavior
type StackConfig struct {
	DefaultMode string `mapstructure:"default_mode"`
}

// DrilldownConfig holds drill-down behavior
type DrilldownConfig struct {
	TopK int `mapstructure:"top_k"`
}

// LayoutConfig describes the output frame bars are laid out in.
type LayoutConfig struct {
	Width        float64 `mapstructure:"width"`
	Height       float64 `mapstructure:"height"`
	MarginTop    float64 `mapstructure:"margin_top"`
	MarginRight  float64 `mapstructure:"margin_right"`
	MarginBottom float64 `mapstructure:"margin_bottom"`
	MarginLeft   float64 `mapstructure:"margin_left"`
	BandPadding  float64 `mapstructure:"band_padding"`
}

// ServerConfig holds HTTP API configuration
type ServerConfig struct {
	Addr            string        `mapstructure:"addr"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	RateLimitRPS    float64       `mapstructure:"rate_limit_rps"`
	RateLimitBurst  int           `mapstructure:"rate_limit_burst"`
}

// StorageConfig holds the dataset cache configuration
type StorageConfig struct {
	DBPath string `mapstructure:"db_path"`
}

// TelegramConfig holds Telegram digest configuration
type TelegramConfig struct {
	BotToken       string        `mapstructure:"bot_token"`
	ChatID         string        `mapstructure:"chat_id"`
	Enabled        bool          `mapstructure:"enabled"`
	MaxRetries     int           `mapstructure:"max_retries"`
	RetryDelayBase time.Duration `mapstructure:"retry_delay_base"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Load reads configuration from file and environment variables
func Load(path string) (*Config, error) {
	v := viper.New()

	// Set config file
	v.SetConfigFile(path)

	// Set defaults
	setDefaults(v)

	// Enable environment variable override, e.g. WEALTHSTACK_DRILLDOWN_TOP_K
	v.SetEnvPrefix("WEALTHSTACK")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Read config file
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	// Unmarshal into Config struct
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}

// setDefaults configures default values for all configuration options
func setDefaults(v *viper.Viper) {
	// Data defaults
	v.SetDefault("data.billionaires", "data/all_billionaires_1997_2024.csv")
	v.SetDefault("data.market_dir", "data")
	v.SetDefault("data.fetch_timeout", "30s")

	// Column defaults match the billionaires dataset
	v.SetDefault("columns.year", "year")
	v.SetDefault("columns.metric", "net_worth")
	v.SetDefault("columns.category", "business_industries")
	v.SetDefault("columns.name", "full_name")

	// Filter defaults
	v.SetDefault("filter.column", "country_of_citizenship")
	v.SetDefault("filter.value", "United States")
	v.SetDefault("filter.min_year", 2006)

	v.SetDefault("stack.default_mode", "normalized")
	v.SetDefault("drilldown.top_k", 7)

	// Layout defaults
	v.SetDefault("layout.width", 1200)
	v.SetDefault("layout.height", 1000)
	v.SetDefault("layout.margin_top", 80)
	v.SetDefault("layout.margin_right", 60)
	v.SetDefault("layout.margin_bottom", 60)
	v.SetDefault("layout.margin_left", 100)
	v.SetDefault("layout.band_padding", 0.1)

	// Server defaults
	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.read_timeout", "15s")
	v.SetDefault("server.write_timeout", "15s")
	v.SetDefault("server.shutdown_timeout", "10s")
	v.SetDefault("server.rate_limit_rps", 20)
	v.SetDefault("server.rate_limit_burst", 40)

	v.SetDefault("storage.db_path", "./data/wealthstack.db")

	// Telegram defaults
	v.SetDefault("telegram.enabled", false)
	v.SetDefault("telegram.max_retries", 3)
	v.SetDefault("telegram.retry_delay_base", "1s")

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
}

// Validate checks that all configuration values are valid
func (c *Config) Validate() error {
	// Validate Data config
	if c.Data.Billionaires == "" {
		return fmt.Errorf("data.billionaires is required")
	}
	if c.Data.FetchTimeout <= 0 {
		return fmt.Errorf("data.fetch_timeout must be positive")
	}

	// Validate Columns config
	if c.Columns.Year == "" || c.Columns.Metric == "" || c.Columns.Category == "" {
		return fmt.Errorf("columns.year, columns.metric and columns.category are required")
	}

	// Validate Filter config
	if c.Filter.Column != "" && c.Filter.Value == "" {
		return fmt.Errorf("filter.value is required when filter.column is set")
	}
	if c.Filter.MinYear < 0 {
		return fmt.Errorf("filter.min_year must not be negative")
	}

	// Validate Stack config
	validModes := map[string]bool{"raw": true, "nominal": true, "normalized": true}
	if !validModes[c.Stack.DefaultMode] {
		return fmt.Errorf("stack.default_mode must be one of: raw, nominal, normalized")
	}

	// Validate Drilldown config
	if c.Drilldown.TopK < 1 {
		return fmt.Errorf("drilldown.top_k must be at least 1")
	}

	// Validate Layout config
	if c.Layout.Width <= c.Layout.MarginLeft+c.Layout.MarginRight {
		return fmt.Errorf("layout.width must exceed the horizontal margins")
	}
	if c.Layout.Height <= c.Layout.MarginTop+c.Layout.MarginBottom {
		return fmt.Errorf("layout.height must exceed the vertical margins")
	}
	if c.Layout.BandPadding < 0 || c.Layout.BandPadding >= 1 {
		return fmt.Errorf("layout.band_padding must be in [0, 1)")
	}

	// Validate Server config
	if c.Server.Addr == "" {
		return fmt.Errorf("server.addr is required")
	}
	if c.Server.RateLimitRPS <= 0 || c.Server.RateLimitBurst < 1 {
		return fmt.Errorf("server.rate_limit_rps and server.rate_limit_burst must be positive")
	}

	// Validate Storage config
	if c.Storage.DBPath == "" {
		return fmt.Errorf("storage.db_path is required")
	}

	// Validate Telegram config
	if c.Telegram.Enabled {
		if c.Telegram.BotToken == "" {
			return fmt.Errorf("telegram.bot_token is required when telegram is enabled")
		}
		if c.Telegram.ChatID == "" {
			return fmt.Errorf("telegram.chat_id is required when telegram is enabled")
		}
	}

	// Validate Logging config
	validLogLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLogLevels[c.Logging.Level] {
		return fmt.Errorf("logging.level must be one of: debug, info, warn, error")
	}
	validFormats := map[string]bool{"json": true, "text": true}
	if !validFormats[c.Logging.Format] {
		return fmt.Errorf("logging.format must be one of: json, text")
	}

	return nil
}
