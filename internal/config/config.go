package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"EconDash/internal/collector"
	"EconDash/internal/model"

	"gopkg.in/yaml.v3"
)

// DefaultHistoryDays is how far back the first fetch of a series reaches.
const DefaultHistoryDays = 100

// Config holds all application configuration.
type Config struct {
	FRED struct {
		BaseURL string `yaml:"base_url"`
		APIKey  string `yaml:"api_key"`
	} `yaml:"fred"`
	Markets struct {
		BaseURL string `yaml:"base_url"`
		APIKey  string `yaml:"api_key"`
	} `yaml:"markets"`
	Store struct {
		Path string `yaml:"path"`
	} `yaml:"store"`
	HistoryDays int                `yaml:"history_days"`
	Series      []model.SeriesSpec `yaml:"series"`
	Server      struct {
		Addr string `yaml:"addr"`
	} `yaml:"server"`
	Schedule struct {
		RefreshCron string `yaml:"refresh_cron"`
		IndicesCron string `yaml:"indices_cron"`
	} `yaml:"schedule"`
	Telegram struct {
		BotToken string `yaml:"bot_token"`
		ChatID   string `yaml:"chat_id"`
	} `yaml:"telegram"`
	Database struct {
		SQLitePath string `yaml:"sqlite_path"`
	} `yaml:"database"`
	Metrics struct {
		Enabled bool `yaml:"enabled"`
	} `yaml:"metrics"`
	Proxy string `yaml:"proxy"`
}

// DefaultSeries are the series shown on the dashboard when the config file
// does not list any.
func DefaultSeries() []model.SeriesSpec {
	return []model.SeriesSpec{
		{Name: "us_gdp", Key: "GDP", Title: "U.S. GDP", Provider: "fred"},
		{Name: "unemployment_rate", Key: "UNRATE", Title: "U.S. Unemployment Rate", Provider: "fred"},
		{Name: "financial_stress", Key: "STLFSI4", Title: "Overall Risk Index", Provider: "fred", Percent: true},
	}
}

// Load reads config from a YAML file, then applies environment variable overrides.
func Load(path string) (*Config, error) {
	cfg := &Config{}

	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if len(data) > 0 {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	// Environment variable overrides
	if v := os.Getenv("FRED_API_KEY"); v != "" {
		cfg.FRED.APIKey = v
	}
	if v := os.Getenv("FRED_BASE_URL"); v != "" {
		cfg.FRED.BaseURL = v
	}
	if v := os.Getenv("TRADING_ECONOMICS_API_KEY"); v != "" {
		cfg.Markets.APIKey = v
	}
	if v := os.Getenv("MARKETS_BASE_URL"); v != "" {
		cfg.Markets.BaseURL = v
	}
	if v := os.Getenv("STORE_PATH"); v != "" {
		cfg.Store.Path = v
	}
	if v := os.Getenv("HISTORY_DAYS"); v != "" {
		days, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("HISTORY_DAYS: %w", err)
		}
		cfg.HistoryDays = days
	}
	if v := os.Getenv("DASHBOARD_ADDR"); v != "" {
		cfg.Server.Addr = v
	}
	if v := os.Getenv("CRON_REFRESH"); v != "" {
		cfg.Schedule.RefreshCron = v
	}
	if v := os.Getenv("CRON_INDICES"); v != "" {
		cfg.Schedule.IndicesCron = v
	}
	if v := os.Getenv("TELEGRAM_BOT_TOKEN"); v != "" {
		cfg.Telegram.BotToken = v
	}
	if v := os.Getenv("TELEGRAM_CHAT_ID"); v != "" {
		cfg.Telegram.ChatID = v
	}
	if v := os.Getenv("SQLITE_PATH"); v != "" {
		cfg.Database.SQLitePath = v
	}
	if v := os.Getenv("METRICS_ENABLED"); v != "" {
		enabled, err := strconv.ParseBool(v)
		if err != nil {
			return nil, fmt.Errorf("METRICS_ENABLED: %w", err)
		}
		cfg.Metrics.Enabled = enabled
	}
	if v := os.Getenv("HTTPS_PROXY"); v != "" {
		cfg.Proxy = v
	}

	// Defaults
	if cfg.FRED.BaseURL == "" {
		cfg.FRED.BaseURL = collector.DefaultFREDBaseURL
	}
	if cfg.Markets.BaseURL == "" {
		cfg.Markets.BaseURL = collector.DefaultMarketsBaseURL
	}
	if cfg.Store.Path == "" {
		cfg.Store.Path = "data/economic_data.json"
	}
	if cfg.HistoryDays == 0 {
		cfg.HistoryDays = DefaultHistoryDays
	}
	if len(cfg.Series) == 0 {
		cfg.Series = DefaultSeries()
	}
	for i := range cfg.Series {
		if cfg.Series[i].Provider == "" {
			cfg.Series[i].Provider = "fred"
		}
		if cfg.Series[i].Title == "" {
			cfg.Series[i].Title = cfg.Series[i].Name
		}
	}
	if cfg.Server.Addr == "" {
		cfg.Server.Addr = ":8501"
	}
	if cfg.Database.SQLitePath == "" {
		cfg.Database.SQLitePath = "data/econdash.db"
	}

	return cfg, nil
}

// Validate checks the structure of the configuration. Missing API keys are
// not errors: the dashboard still renders cached data without them.
func (c *Config) Validate() error {
	if c.HistoryDays <= 0 {
		return fmt.Errorf("history_days must be positive")
	}
	if c.Store.Path == "" {
		return fmt.Errorf("store.path is required")
	}
	seen := make(map[string]bool, len(c.Series))
	for i, s := range c.Series {
		if strings.TrimSpace(s.Name) == "" {
			return fmt.Errorf("series[%d].name is required", i)
		}
		if strings.TrimSpace(s.Key) == "" {
			return fmt.Errorf("series %q: key is required", s.Name)
		}
		if seen[s.Name] {
			return fmt.Errorf("series %q listed twice", s.Name)
		}
		seen[s.Name] = true
		switch s.Provider {
		case "fred", "markets":
		default:
			return fmt.Errorf("series %q: unknown provider %q", s.Name, s.Provider)
		}
	}
	if (c.Telegram.BotToken == "") != (c.Telegram.ChatID == "") {
		return fmt.Errorf("telegram.bot_token and telegram.chat_id must be set together")
	}
	return nil
}

// Warnings lists settings that degrade the dashboard without stopping it.
func (c *Config) Warnings() []string {
	var w []string
	if c.FRED.APIKey == "" {
		w = append(w, "FRED_API_KEY is not set: economic series will only show cached data")
	}
	if c.Markets.APIKey == "" {
		w = append(w, "TRADING_ECONOMICS_API_KEY is not set: stock indices are unavailable")
	}
	return w
}

// TelegramEnabled reports whether notifications can be sent.
func (c *Config) TelegramEnabled() bool {
	return c.Telegram.BotToken != "" && c.Telegram.ChatID != ""
}

// SeriesNames returns the logical names of the configured series, in order.
func (c *Config) SeriesNames() []string {
	names := make([]string, 0, len(c.Series))
	for _, s := range c.Series {
		names = append(names, s.Name)
	}
	return names
}

// FindSeries looks up a configured series by logical name.
func (c *Config) FindSeries(name string) (model.SeriesSpec, bool) {
	for _, s := range c.Series {
		if s.Name == name {
			return s, true
		}
	}
	return model.SeriesSpec{}, false
}
