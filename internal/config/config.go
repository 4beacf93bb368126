package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration.
type Config struct {
	Database    DatabaseConfig     `yaml:"database"`
	Schedule    ScheduleConfig     `yaml:"schedule"`
	Sources     SourcesConfig      `yaml:"sources"`
	Summarizer  SummarizerConfig   `yaml:"summarizer"`
	Transport   TransportConfig    `yaml:"transport"`
	Server      ServerConfig       `yaml:"server"`
	Logging     LoggingConfig      `yaml:"logging"`
	Profiles    []ProfileConfig    `yaml:"profiles"`
	Subscribers []SubscriberConfig `yaml:"subscribers"`
}

// DatabaseConfig configures SQLite storage.
type DatabaseConfig struct {
	Path string `yaml:"path"`
}

// ScheduleConfig configures the digest cycle.
type ScheduleConfig struct {
	CycleInterval string `yaml:"cycle_interval"`
	SummaryLimit  int    `yaml:"summary_limit"`
}

// ParseCycleInterval returns the cycle interval as time.Duration.
func (s ScheduleConfig) ParseCycleInterval() time.Duration {
	d, err := time.ParseDuration(s.CycleInterval)
	if err != nil {
		return 6 * time.Hour
	}
	return d
}

// SourcesConfig holds configuration for all paper sources.
type SourcesConfig struct {
	ArXiv      ArXivConfig      `yaml:"arxiv"`
	OpenReview OpenReviewConfig `yaml:"openreview"`
	RSS        RSSConfig        `yaml:"rss"`
}

// ArXivConfig for the arXiv fetcher.
type ArXivConfig struct {
	Enabled    bool     `yaml:"enabled"`
	Categories []string `yaml:"categories"`
	MaxResults int      `yaml:"max_results"`
}

// OpenReviewConfig for the OpenReview fetcher.
type OpenReviewConfig struct {
	Enabled    bool     `yaml:"enabled"`
	Venues     []string `yaml:"venues"`
	MaxResults int      `yaml:"max_results"`
}

// RSSConfig for the venue feed fetcher.
type RSSConfig struct {
	Enabled bool       `yaml:"enabled"`
	Feeds   []FeedItem `yaml:"feeds"`
}

// FeedItem is a single RSS feed entry.
type FeedItem struct {
	Name string `yaml:"name"`
	URL  string `yaml:"url"`
}

// SummarizerConfig configures the briefing backend.
type SummarizerConfig struct {
	Provider   string `yaml:"provider"` // "openai" or "anthropic"
	Model      string `yaml:"model"`
	APIKey     string `yaml:"api_key"`
	BaseURL    string `yaml:"base_url"` // custom endpoint (optional)
	Timeout    string `yaml:"timeout"`
	MaxRetries int    `yaml:"max_retries"`
}

// ParseTimeout returns the backend call timeout as time.Duration.
func (s SummarizerConfig) ParseTimeout() time.Duration {
	d, err := time.ParseDuration(s.Timeout)
	if err != nil {
		return 60 * time.Second
	}
	return d
}

// TransportConfig configures delivery transports.
type TransportConfig struct {
	Telegram TelegramConfig `yaml:"telegram"`
	Webhook  WebhookConfig  `yaml:"webhook"`
}

// TelegramConfig for the Telegram bot transport.
type TelegramConfig struct {
	Enabled  bool   `yaml:"enabled"`
	BotToken string `yaml:"bot_token"`
}

// WebhookConfig for the generic webhook transport.
type WebhookConfig struct {
	Enabled bool   `yaml:"enabled"`
	URL     string `yaml:"url"`
	Secret  string `yaml:"secret"`
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Port int `yaml:"port"`
}

// LoggingConfig configures component logging.
type LoggingConfig struct {
	Level string `yaml:"level"`
}

// ProfileConfig seeds a subscription profile at startup.
type ProfileConfig struct {
	Name       string   `yaml:"name"`
	Categories []string `yaml:"categories"`
	Keywords   []string `yaml:"keywords"`
	Active     *bool    `yaml:"active"`
}

// IsActive returns the active flag, defaulting to true.
func (p ProfileConfig) IsActive() bool {
	return p.Active == nil || *p.Active
}

// SubscriberConfig seeds a subscriber at startup.
type SubscriberConfig struct {
	Identity    string   `yaml:"identity"`
	Profiles    []string `yaml:"profiles"`
	DailyLimit  int      `yaml:"daily_limit"`
	HistoryDays int      `yaml:"history_days"`
	Active      *bool    `yaml:"active"`
}

// IsActive returns the active flag, defaulting to true.
func (s SubscriberConfig) IsActive() bool {
	return s.Active == nil || *s.Active
}

// Default returns a Config with sensible defaults.
func Default() *Config {
	return &Config{
		Database: DatabaseConfig{Path: "./paperdigest.db"},
		Schedule: ScheduleConfig{
			CycleInterval: "6h",
			SummaryLimit:  200,
		},
		Sources: SourcesConfig{
			ArXiv: ArXivConfig{
				Enabled:    true,
				Categories: []string{"cs.AI", "cs.CL", "cs.CV", "cs.LG"},
				MaxResults: 100,
			},
			OpenReview: OpenReviewConfig{
				Enabled: false,
				Venues:  []string{"ICLR", "NeurIPS", "ICML"},
			},
			RSS: RSSConfig{Enabled: false},
		},
		Summarizer: SummarizerConfig{
			Provider:   "openai",
			Timeout:    "60s",
			MaxRetries: 2,
		},
		Server:  ServerConfig{Port: 8080},
		Logging: LoggingConfig{Level: "info"},
		Profiles: []ProfileConfig{
			{
				Name:       "machine_learning",
				Categories: []string{"cs.LG", "cs.AI", "stat.ML"},
				Keywords:   []string{"machine learning", "deep learning", "neural network"},
			},
			{
				Name:       "nlp",
				Categories: []string{"cs.CL"},
				Keywords:   []string{"language model", "LLM", "transformer"},
			},
			{
				Name:       "computer_vision",
				Categories: []string{"cs.CV"},
				Keywords:   []string{"computer vision", "object detection", "segmentation"},
			},
		},
	}
}

// Load reads configuration from a YAML file, applies env var overrides, and
// validates the seed records.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the seed records at load time, not read time.
func (c *Config) Validate() error {
	seen := make(map[string]bool)
	for i, p := range c.Profiles {
		if p.Name == "" {
			return fmt.Errorf("profiles[%d]: missing name", i)
		}
		if seen[p.Name] {
			return fmt.Errorf("profiles[%d]: duplicate name %q", i, p.Name)
		}
		seen[p.Name] = true
	}

	for i := range c.Subscribers {
		sub := &c.Subscribers[i]
		if sub.Identity == "" {
			return fmt.Errorf("subscribers[%d]: missing identity", i)
		}
		if sub.DailyLimit == 0 {
			sub.DailyLimit = 10
		}
		if sub.DailyLimit < 0 {
			return fmt.Errorf("subscribers[%d]: daily_limit must be positive", i)
		}
		if sub.HistoryDays < 0 {
			return fmt.Errorf("subscribers[%d]: history_days must be non-negative", i)
		}
		if sub.HistoryDays == 0 {
			sub.HistoryDays = 7
		}
		for _, name := range sub.Profiles {
			if !seen[name] {
				return fmt.Errorf("subscribers[%d]: unknown profile %q", i, name)
			}
		}
	}
	return nil
}

// applyEnvOverrides overrides config values with environment variables.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("PAPERDIGEST_DB_PATH"); v != "" {
		cfg.Database.Path = v
	}
	if v := os.Getenv("TELEGRAM_BOT_TOKEN"); v != "" {
		cfg.Transport.Telegram.BotToken = v
		cfg.Transport.Telegram.Enabled = true
	}
	if v := os.Getenv("WEBHOOK_URL"); v != "" {
		cfg.Transport.Webhook.URL = v
		cfg.Transport.Webhook.Enabled = true
	}
	if v := os.Getenv("OPENAI_API_KEY"); v != "" {
		cfg.Summarizer.APIKey = v
		cfg.Summarizer.Provider = "openai"
	}
	if v := os.Getenv("ANTHROPIC_API_KEY"); v != "" {
		cfg.Summarizer.APIKey = v
		cfg.Summarizer.Provider = "anthropic"
	}
}
