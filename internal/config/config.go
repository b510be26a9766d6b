package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/elonfeng/presence/pkg/presence"
	"github.com/elonfeng/presence/pkg/source"
)

// Config is the root configuration.
type Config struct {
	Debug     bool            `yaml:"debug"`
	LogLevel  string          `yaml:"log_level"`
	LogJSON   bool            `yaml:"log_json"`
	Cache     CacheConfig     `yaml:"cache"`
	Search    SearchConfig    `yaml:"search"`
	Google    GoogleConfig    `yaml:"google"`
	Sources   SourcesConfig   `yaml:"sources"`
	Sentiment SentimentConfig `yaml:"sentiment"`
	Scoring   ScoringConfig   `yaml:"scoring"`
	Alerts    AlertsConfig    `yaml:"alerts"`
	Server    ServerConfig    `yaml:"server"`
}

// CacheConfig selects the memoization backend for remote lookups.
type CacheConfig struct {
	Backend       string        `yaml:"backend"` // "memory", "sqlite" or "none"
	TTL           time.Duration `yaml:"ttl"`
	SQLitePath    string        `yaml:"sqlite_path"`
	PurgeInterval time.Duration `yaml:"purge_interval"` // serve only
}

// SearchConfig configures the web search backend.
type SearchConfig struct {
	Backend        string   `yaml:"backend"` // "google", "news" or "none"
	MaxResults     int      `yaml:"max_results"`
	NewsFeedURL    string   `yaml:"news_feed_url"`
	ExcludeDomains []string `yaml:"exclude_domains"`
}

// GoogleConfig holds Google API credentials.
type GoogleConfig struct {
	APIKey       string `yaml:"api_key"`
	CSEID        string `yaml:"cse_id"`
	PlacesAPIKey string `yaml:"places_api_key"`
}

// SourcesConfig configures page fetching and the non-search adapters.
type SourcesConfig struct {
	Timeout       time.Duration  `yaml:"timeout"`
	PageTimeout   time.Duration  `yaml:"page_timeout"`
	RespectRobots bool           `yaml:"respect_robots"`
	UserAgent     string         `yaml:"user_agent"`
	Places        bool           `yaml:"places"`
	Scrapers      ScrapersConfig `yaml:"scrapers"`
}

// ScrapersConfig selects review-site scrapers by profile name.
type ScrapersConfig struct {
	Enabled    []string             `yaml:"enabled"`
	MaxReviews int                  `yaml:"max_reviews"`
	Profiles   []source.SiteProfile `yaml:"profiles"`
}

// SentimentConfig selects the sentiment scorer.
type SentimentConfig struct {
	Provider string    `yaml:"provider"` // "lexicon" or "llm"
	LLM      LLMConfig `yaml:"llm"`
}

// LLMConfig configures the optional LLM batch scorer.
type LLMConfig struct {
	Provider string        `yaml:"provider"` // "openai" or "anthropic"
	Model    string        `yaml:"model"`
	APIKey   string        `yaml:"api_key"`
	BaseURL  string        `yaml:"base_url"`
	Timeout  time.Duration `yaml:"timeout"`
}

// ScoringConfig overrides the score weights and recommendation thresholds.
type ScoringConfig struct {
	Weights presence.Weights `yaml:"weights"`
	Rules   presence.Rules   `yaml:"rules"`
}

// AlertsConfig configures report notifications.
type AlertsConfig struct {
	OnAnalyze bool          `yaml:"on_analyze"`
	Slack     SlackConfig   `yaml:"slack"`
	Discord   DiscordConfig `yaml:"discord"`
	Webhook   WebhookConfig `yaml:"webhook"`
}

// SlackConfig for Slack webhook notifications.
type SlackConfig struct {
	Enabled    bool   `yaml:"enabled"`
	WebhookURL string `yaml:"webhook_url"`
}

// DiscordConfig for Discord webhook notifications.
type DiscordConfig struct {
	Enabled    bool   `yaml:"enabled"`
	WebhookURL string `yaml:"webhook_url"`
}

// WebhookConfig for generic signed webhook notifications.
type WebhookConfig struct {
	Enabled bool   `yaml:"enabled"`
	URL     string `yaml:"url"`
	Secret  string `yaml:"secret"`
}

// ServerConfig configures the dashboard server.
type ServerConfig struct {
	Port int `yaml:"port"`
}

// Default returns a Config with sensible defaults.
func Default() *Config {
	return &Config{
		LogLevel: "info",
		Cache: CacheConfig{
			Backend:       "memory",
			TTL:           source.DefaultCacheTTL,
			PurgeInterval: 10 * time.Minute,
		},
		Search: SearchConfig{
			Backend:        "google",
			MaxResults:     20,
			NewsFeedURL:    source.DefaultNewsFeedURL,
			ExcludeDomains: append([]string(nil), source.DefaultExcludedDomains...),
		},
		Sources: SourcesConfig{
			Timeout:     10 * time.Second,
			PageTimeout: 8 * time.Second,
			UserAgent:   source.DefaultUserAgent,
			Places:      true,
			Scrapers: ScrapersConfig{
				MaxReviews: source.DefaultMaxReviews,
				Profiles:   source.DefaultProfiles(),
			},
		},
		Sentiment: SentimentConfig{
			Provider: "lexicon",
			LLM: LLMConfig{
				Provider: "openai",
				Timeout:  30 * time.Second,
			},
		},
		Scoring: ScoringConfig{
			Weights: presence.DefaultWeights(),
			Rules:   presence.DefaultRules(),
		},
		Server: ServerConfig{Port: 8080},
	}
}

// Load reads configuration from a YAML file and applies env var overrides.
// A .env file in the working directory is loaded first when present.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

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
	return cfg, nil
}

// Validate reports every invalid setting at once.
func (c *Config) Validate() error {
	var result *multierror.Error

	switch c.Cache.Backend {
	case "", "memory", "sqlite", "none":
	default:
		result = multierror.Append(result, fmt.Errorf("cache.backend: unknown backend %q", c.Cache.Backend))
	}
	if c.Cache.TTL < 0 || c.Cache.PurgeInterval < 0 {
		result = multierror.Append(result, fmt.Errorf("cache: ttl and purge_interval must not be negative"))
	}

	switch c.Search.Backend {
	case "google", "news", "none":
	default:
		result = multierror.Append(result, fmt.Errorf("search.backend: unknown backend %q", c.Search.Backend))
	}
	if c.Search.MaxResults < 1 || c.Search.MaxResults > 100 {
		result = multierror.Append(result, fmt.Errorf("search.max_results: %d not in [1, 100]", c.Search.MaxResults))
	}
	if c.Search.Backend == "news" && !strings.Contains(c.Search.NewsFeedURL, "%s") {
		result = multierror.Append(result, fmt.Errorf("search.news_feed_url: missing %%s query placeholder"))
	}

	if c.Sources.Timeout <= 0 || c.Sources.PageTimeout <= 0 {
		result = multierror.Append(result, fmt.Errorf("sources: timeouts must be positive"))
	}
	if c.Sources.Scrapers.MaxReviews < 0 {
		result = multierror.Append(result, fmt.Errorf("sources.scrapers.max_reviews: must not be negative"))
	}
	for _, name := range c.Sources.Scrapers.Enabled {
		if _, ok := source.ProfileByName(c.Sources.Scrapers.Profiles, name); !ok {
			result = multierror.Append(result, fmt.Errorf("sources.scrapers.enabled: no profile named %q", name))
		}
	}

	switch c.Sentiment.Provider {
	case "", "lexicon":
	case "llm":
		if c.Sentiment.LLM.APIKey == "" {
			result = multierror.Append(result, fmt.Errorf("sentiment.llm.api_key: required for the llm provider"))
		}
		if p := c.Sentiment.LLM.Provider; p != "openai" && p != "anthropic" {
			result = multierror.Append(result, fmt.Errorf("sentiment.llm.provider: unknown provider %q", p))
		}
	default:
		result = multierror.Append(result, fmt.Errorf("sentiment.provider: unknown provider %q", c.Sentiment.Provider))
	}

	w := c.Scoring.Weights
	if w.Sites < 0 || w.Rating < 0 || w.Sentiment < 0 || w.Recency < 0 || w.Company < 0 {
		result = multierror.Append(result, fmt.Errorf("scoring.weights: must not be negative"))
	}

	if c.Alerts.Slack.Enabled && c.Alerts.Slack.WebhookURL == "" {
		result = multierror.Append(result, fmt.Errorf("alerts.slack.webhook_url: required when enabled"))
	}
	if c.Alerts.Discord.Enabled && c.Alerts.Discord.WebhookURL == "" {
		result = multierror.Append(result, fmt.Errorf("alerts.discord.webhook_url: required when enabled"))
	}
	if c.Alerts.Webhook.Enabled && c.Alerts.Webhook.URL == "" {
		result = multierror.Append(result, fmt.Errorf("alerts.webhook.url: required when enabled"))
	}

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		result = multierror.Append(result, fmt.Errorf("server.port: %d out of range", c.Server.Port))
	}

	return result.ErrorOrNil()
}

// applyEnvOverrides overrides config values with environment variables.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("PRESENCE_DEBUG"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Debug = b
		}
	}
	if v := os.Getenv("PRESENCE_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv("PRESENCE_CACHE_BACKEND"); v != "" {
		cfg.Cache.Backend = v
	}
	if v := os.Getenv("GOOGLE_API_KEY"); v != "" {
		cfg.Google.APIKey = v
	}
	if v := os.Getenv("GOOGLE_CSE_ID"); v != "" {
		cfg.Google.CSEID = v
	}
	if v := os.Getenv("GOOGLE_PLACES_API_KEY"); v != "" {
		cfg.Google.PlacesAPIKey = v
	}
	if cfg.Google.PlacesAPIKey == "" {
		cfg.Google.PlacesAPIKey = cfg.Google.APIKey
	}
	if v := os.Getenv("SLACK_WEBHOOK_URL"); v != "" {
		cfg.Alerts.Slack.WebhookURL = v
		cfg.Alerts.Slack.Enabled = true
	}
	if v := os.Getenv("DISCORD_WEBHOOK_URL"); v != "" {
		cfg.Alerts.Discord.WebhookURL = v
		cfg.Alerts.Discord.Enabled = true
	}
	if v := os.Getenv("OPENAI_API_KEY"); v != "" {
		cfg.Sentiment.LLM.APIKey = v
		cfg.Sentiment.LLM.Provider = "openai"
		cfg.Sentiment.Provider = "llm"
	}
	if v := os.Getenv("ANTHROPIC_API_KEY"); v != "" {
		cfg.Sentiment.LLM.APIKey = v
		cfg.Sentiment.LLM.Provider = "anthropic"
		cfg.Sentiment.Provider = "llm"
	}
}
