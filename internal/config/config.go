package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"ForexFeed/internal/model"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all application configuration.
type Config struct {
	Log      LoggingConfig  `yaml:"log"`
	Provider ProviderConfig `yaml:"provider"`
	Sources  []SourceConfig `yaml:"sources"`
	Pairs    []string       `yaml:"pairs"`
	Schedule ScheduleConfig `yaml:"schedule"`
	Telegram TelegramConfig `yaml:"telegram"`
	Database DatabaseConfig `yaml:"database"`
	HTTP     HTTPConfig     `yaml:"http"`
	Proxy    string         `yaml:"proxy"`
}

type LoggingConfig struct {
	Level string `yaml:"level"`
}

type ProviderConfig struct {
	MaxCount         int           `yaml:"max_count"`
	RequestTimeout   time.Duration `yaml:"request_timeout"`
	SynthesisEnabled *bool         `yaml:"synthesis_enabled"`
	DemoMode         bool          `yaml:"demo_mode"`
	CacheTTL         time.Duration `yaml:"cache_ttl"`
	QuotaStateFile   string        `yaml:"quota_state_file"`
}

// SynthesisEnabledValue defaults to true when unset.
func (p ProviderConfig) SynthesisEnabledValue() bool {
	return p.SynthesisEnabled == nil || *p.SynthesisEnabled
}

// FieldMapping holds gjson paths for the generic REST source.
type FieldMapping struct {
	Items      string `yaml:"items"`
	Time       string `yaml:"time"`
	TimeUnit   string `yaml:"time_unit"` // "s", "ms" or a Go time layout
	Open       string `yaml:"open"`
	High       string `yaml:"high"`
	Low        string `yaml:"low"`
	Close      string `yaml:"close"`
	Volume     string `yaml:"volume"`
	PairParam  string `yaml:"pair_param"`
	TFParam    string `yaml:"timeframe_param"`
	CountParam string `yaml:"count_param"`
}

type SourceConfig struct {
	Name     string             `yaml:"name"`
	Enabled  *bool              `yaml:"enabled"`
	Priority int                `yaml:"priority"`
	APIKey   string             `yaml:"api_key"`
	BaseURL  string             `yaml:"base_url"`
	Limits   []model.QuotaLimit `yaml:"limits"`
	Fields   FieldMapping       `yaml:"fields"`
}

// EnabledValue defaults to true when unset.
func (s SourceConfig) EnabledValue() bool {
	return s.Enabled == nil || *s.Enabled
}

type ScheduleConfig struct {
	WarmupCron  string   `yaml:"warmup_cron"`
	SummaryCron string   `yaml:"summary_cron"`
	Watchlist   []string `yaml:"watchlist"` // "EURUSD:15m:200"
}

type TelegramConfig struct {
	BotToken string `yaml:"bot_token"`
	ChatID   string `yaml:"chat_id"`
}

// Enabled reports whether both token and chat id are present.
func (t TelegramConfig) Enabled() bool {
	return t.BotToken != "" && t.ChatID != ""
}

type DatabaseConfig struct {
	SQLitePath string `yaml:"sqlite_path"`
}

type HTTPConfig struct {
	Addr string `yaml:"addr"`
}

// Load reads .env and the YAML file, then applies environment variable overrides and defaults.
// A missing file is not an error: defaults plus environment are enough to run.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

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

	applyEnv(cfg)
	applyDefaults(cfg)
	return cfg, nil
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv("TELEGRAM_BOT_TOKEN"); v != "" {
		cfg.Telegram.BotToken = v
	}
	if v := os.Getenv("TELEGRAM_CHAT_ID"); v != "" {
		cfg.Telegram.ChatID = v
	}
	if v := os.Getenv("HTTPS_PROXY"); v != "" {
		cfg.Proxy = v
	}
	if v := os.Getenv("QUOTA_STATE_FILE"); v != "" {
		cfg.Provider.QuotaStateFile = v
	}
	if v := os.Getenv("SQLITE_PATH"); v != "" {
		cfg.Database.SQLitePath = v
	}
	if v := os.Getenv("HTTP_ADDR"); v != "" {
		cfg.HTTP.Addr = v
	}
	if v := os.Getenv("DEMO_MODE"); v != "" {
		cfg.Provider.DemoMode = strings.EqualFold(v, "true") || v == "1"
	}
	if v := os.Getenv("MAX_COUNT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Provider.MaxCount = n
		}
	}
	if v := os.Getenv("ALPHAVANTAGE_API_KEY"); v != "" {
		sourceByName(cfg, "alphavantage").APIKey = v
	}
	if v := os.Getenv("TWELVEDATA_API_KEY"); v != "" {
		sourceByName(cfg, "twelvedata").APIKey = v
	}
	if v := os.Getenv("REST_SOURCE_BASE_URL"); v != "" {
		sourceByName(cfg, "rest").BaseURL = v
	}
	if v := os.Getenv("REST_SOURCE_API_KEY"); v != "" {
		sourceByName(cfg, "rest").APIKey = v
	}
}

// sourceByName returns the named source entry, appending an empty one if absent.
func sourceByName(cfg *Config, name string) *SourceConfig {
	for i := range cfg.Sources {
		if cfg.Sources[i].Name == name {
			return &cfg.Sources[i]
		}
	}
	cfg.Sources = append(cfg.Sources, SourceConfig{Name: name})
	return &cfg.Sources[len(cfg.Sources)-1]
}

// DefaultSources is the built-in priority order and the free-tier quotas of each source.
func DefaultSources() []SourceConfig {
	return []SourceConfig{
		{Name: "twelvedata", Priority: 1, Limits: []model.QuotaLimit{
			{Ceiling: 8, Window: "@every 1m"},
			{Ceiling: 800, Window: "@daily"},
		}},
		{Name: "alphavantage", Priority: 2, Limits: []model.QuotaLimit{
			{Ceiling: 5, Window: "@every 1m"},
			{Ceiling: 25, Window: "@daily"},
		}},
		{Name: "yahoo", Priority: 3, Limits: []model.QuotaLimit{
			{Ceiling: 60, Window: "@every 1m"},
		}},
		{Name: "stooq", Priority: 4, Limits: []model.QuotaLimit{
			{Ceiling: 30, Window: "@every 1m"},
		}},
		{Name: "rest", Priority: 5},
	}
}

func applyDefaults(cfg *Config) {
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Provider.MaxCount == 0 {
		cfg.Provider.MaxCount = 1000
	}
	if cfg.Provider.RequestTimeout == 0 {
		cfg.Provider.RequestTimeout = 10 * time.Second
	}
	if cfg.Provider.CacheTTL == 0 {
		cfg.Provider.CacheTTL = 5 * time.Minute
	}
	if cfg.Provider.QuotaStateFile == "" {
		cfg.Provider.QuotaStateFile = "data/quota.json"
	}

	// Built-in sources fill in anything the file left out.
	for _, def := range DefaultSources() {
		src := sourceByName(cfg, def.Name)
		if src.Priority == 0 {
			src.Priority = def.Priority
		}
		if src.Limits == nil {
			src.Limits = def.Limits
		}
	}

	if cfg.Schedule.WarmupCron == "" {
		cfg.Schedule.WarmupCron = "0 */5 * * * *"
	}
	if cfg.Schedule.SummaryCron == "" {
		cfg.Schedule.SummaryCron = "0 0 8 * * *"
	}
	if cfg.Database.SQLitePath == "" {
		cfg.Database.SQLitePath = "data/forexfeed.db"
	}
	if cfg.HTTP.Addr == "" {
		cfg.HTTP.Addr = "127.0.0.1:8080"
	}
}

// Validate checks that all fields are within bounds.
func (c *Config) Validate() error {
	if c.Provider.MaxCount <= 0 {
		return errors.New("provider.max_count must be positive")
	}
	if c.Provider.RequestTimeout <= 0 {
		return errors.New("provider.request_timeout must be positive")
	}
	seen := make(map[string]bool, len(c.Sources))
	for _, s := range c.Sources {
		if s.Name == "" {
			return errors.New("sources: name is required")
		}
		if seen[s.Name] {
			return fmt.Errorf("sources: duplicate source %q", s.Name)
		}
		seen[s.Name] = true
		for _, l := range s.Limits {
			if l.Ceiling <= 0 {
				return fmt.Errorf("sources.%s: limit ceiling must be positive", s.Name)
			}
			if strings.TrimSpace(l.Window) == "" {
				return fmt.Errorf("sources.%s: limit window is required", s.Name)
			}
		}
	}
	for _, p := range c.Pairs {
		if _, err := model.ParsePair(p); err != nil {
			return fmt.Errorf("pairs: %w", err)
		}
	}
	for _, w := range c.Schedule.Watchlist {
		if _, err := ParseWatch(w); err != nil {
			return fmt.Errorf("schedule.watchlist: %w", err)
		}
	}
	if (c.Telegram.BotToken == "") != (c.Telegram.ChatID == "") {
		return errors.New("telegram.bot_token and telegram.chat_id must be set together")
	}
	return nil
}

// Watches parses the watchlist. Call after Validate.
func (c *Config) Watches() []Watch {
	out := make([]Watch, 0, len(c.Schedule.Watchlist))
	for _, s := range c.Schedule.Watchlist {
		if w, err := ParseWatch(s); err == nil {
			out = append(out, w)
		}
	}
	return out
}

// Watch is one scheduled warm-up target.
type Watch struct {
	Pair      model.Pair
	Timeframe model.Timeframe
	Count     int
}

// ParseWatch parses "EURUSD:15m:200". The count is optional and defaults to 100.
func ParseWatch(s string) (Watch, error) {
	parts := strings.Split(s, ":")
	if len(parts) < 2 || len(parts) > 3 {
		return Watch{}, fmt.Errorf("malformed watch %q, want PAIR:TIMEFRAME[:COUNT]", s)
	}
	pair, err := model.ParsePair(parts[0])
	if err != nil {
		return Watch{}, err
	}
	tf, err := model.ParseTimeframe(parts[1])
	if err != nil {
		return Watch{}, err
	}
	count := 100
	if len(parts) == 3 {
		n, err := strconv.Atoi(parts[2])
		if err != nil || n <= 0 {
			return Watch{}, fmt.Errorf("malformed count in watch %q", s)
		}
		count = n
	}
	return Watch{Pair: pair, Timeframe: tf, Count: count}, nil
}
