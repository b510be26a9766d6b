package main

import (
	"fmt"
	"os"

	"github.com/juju/clock"
	"github.com/sirupsen/logrus"

	"github.com/elonfeng/presence/internal/cache"
	"github.com/elonfeng/presence/internal/config"
	"github.com/elonfeng/presence/internal/logging"
	"github.com/elonfeng/presence/pkg/alert"
	"github.com/elonfeng/presence/pkg/presence"
	"github.com/elonfeng/presence/pkg/sentiment"
	"github.com/elonfeng/presence/pkg/source"
)

// app holds everything a command needs.
type app struct {
	cfg      *config.Config
	logger   *logrus.Entry
	cache    cache.Cache
	pipeline *presence.Pipeline
	alerts   *alert.Manager
}

func loadConfig() (*config.Config, error) {
	path := cfgFile
	if path == "" {
		if _, err := os.Stat("config.yaml"); err == nil {
			path = "config.yaml"
		}
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	if debugFlag {
		cfg.Debug = true
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func newApp() (*app, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	logger := logging.New(cfg.LogLevel, cfg.Debug, cfg.LogJSON)
	return buildApp(cfg, logger, clock.WallClock)
}

func buildApp(cfg *config.Config, logger *logrus.Entry, clk clock.Clock) (*app, error) {
	c, err := cache.New(cfg.Cache.Backend, cfg.Cache.SQLitePath, clk)
	if err != nil {
		return nil, fmt.Errorf("open cache: %w", err)
	}

	pipeline, err := presence.New(presence.Config{
		Adapters:       buildAdapters(cfg, c, logger),
		Sentiment:      buildSentiment(cfg, logger),
		Weights:        cfg.Scoring.Weights,
		Rules:          cfg.Scoring.Rules,
		Clock:          clk,
		AdapterTimeout: cfg.Sources.Timeout,
		MaxResults:     cfg.Search.MaxResults,
		MaxReviews:     cfg.Sources.Scrapers.MaxReviews,
		Logger:         logger,
	})
	if err != nil {
		_ = c.Close()
		return nil, err
	}

	return &app{
		cfg:      cfg,
		logger:   logger,
		cache:    c,
		pipeline: pipeline,
		alerts:   buildAlertManager(cfg),
	}, nil
}

func (a *app) Close() error {
	return a.cache.Close()
}

// buildSearcher returns the configured web search backend wrapped in the
// cache, or nil when search is disabled.
func buildSearcher(cfg *config.Config, c cache.Cache, logger *logrus.Entry) source.Searcher {
	var s source.Searcher
	switch cfg.Search.Backend {
	case "google":
		s = source.NewGoogleCSE(cfg.Google.APIKey, cfg.Google.CSEID, cfg.Sources.Timeout, logger)
	case "news":
		s = source.NewNewsFeed(cfg.Search.NewsFeedURL, cfg.Sources.UserAgent, cfg.Sources.Timeout, logger)
	default:
		return nil
	}
	return source.NewCachedSearcher(cfg.Search.Backend, s, c, cfg.Cache.TTL, logger)
}

func buildAdapters(cfg *config.Config, c cache.Cache, logger *logrus.Entry) []source.Adapter {
	var adapters []source.Adapter

	searcher := buildSearcher(cfg, c, logger)
	if searcher != nil {
		pages := source.NewCachedPageFetcher(source.NewPageFetcher(source.PageConfig{
			Timeout:       cfg.Sources.PageTimeout,
			UserAgent:     cfg.Sources.UserAgent,
			RespectRobots: cfg.Sources.RespectRobots,
		}, logger), c, cfg.Cache.TTL, logger)
		adapters = append(adapters, source.NewSearchAdapter(cfg.Search.Backend, searcher, pages, source.NewFilter(cfg.Search.ExcludeDomains)))
	}

	if cfg.Sources.Places {
		places := source.NewGooglePlaces(cfg.Google.PlacesAPIKey, cfg.Sources.Timeout, logger)
		adapters = append(adapters, source.NewPlacesAdapter(source.NewCachedPlaces(places, c, cfg.Cache.TTL, logger)))
	}

	for _, name := range cfg.Sources.Scrapers.Enabled {
		if searcher == nil {
			logger.WithField("site", name).Warn("review scraper needs a search backend, skipping")
			continue
		}
		profile, ok := source.ProfileByName(cfg.Sources.Scrapers.Profiles, name)
		if !ok {
			continue
		}
		adapters = append(adapters, source.NewSiteScraper(profile, searcher, source.ScraperConfig{
			Timeout:       cfg.Sources.PageTimeout,
			UserAgent:     cfg.Sources.UserAgent,
			RespectRobots: cfg.Sources.RespectRobots,
		}, logger))
	}

	return adapters
}

func buildSentiment(cfg *config.Config, logger *logrus.Entry) sentiment.Scorer {
	lexicon := sentiment.NewLexicon()
	if cfg.Sentiment.Provider != "llm" || cfg.Sentiment.LLM.APIKey == "" {
		return lexicon
	}
	llm := cfg.Sentiment.LLM
	logger.WithFields(logrus.Fields{"provider": llm.Provider, "model": llm.Model}).Debug("using llm sentiment scorer")
	return sentiment.NewLLM(sentiment.LLMConfig{
		Provider: llm.Provider,
		Model:    llm.Model,
		APIKey:   llm.APIKey,
		BaseURL:  llm.BaseURL,
		Timeout:  llm.Timeout,
	}, lexicon, logger)
}

func buildAlertManager(cfg *config.Config) *alert.Manager {
	var notifiers []alert.Notifier

	if cfg.Alerts.Slack.Enabled && cfg.Alerts.Slack.WebhookURL != "" {
		notifiers = append(notifiers, alert.NewSlack(cfg.Alerts.Slack.WebhookURL))
	}
	if cfg.Alerts.Discord.Enabled && cfg.Alerts.Discord.WebhookURL != "" {
		notifiers = append(notifiers, alert.NewDiscord(cfg.Alerts.Discord.WebhookURL))
	}
	if cfg.Alerts.Webhook.Enabled && cfg.Alerts.Webhook.URL != "" {
		notifiers = append(notifiers, alert.NewWebhook(cfg.Alerts.Webhook.URL, cfg.Alerts.Webhook.Secret))
	}

	return alert.NewManager(notifiers)
}
