package source

import (
	"context"
	"fmt"
	"html"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/microcosm-cc/bluemonday"
	"github.com/mmcdole/gofeed"
	"github.com/sirupsen/logrus"

	"github.com/elonfeng/presence/internal/logging"
)

// DefaultNewsFeedURL is a news search feed; %s receives the escaped query.
const DefaultNewsFeedURL = "https://news.google.com/rss/search?q=%s&hl=en-US&gl=US&ceid=US:en"

// NewsFeed searches an RSS/Atom news search endpoint.
type NewsFeed struct {
	client    *http.Client
	parser    *gofeed.Parser
	template  string
	userAgent string
	strip     *bluemonday.Policy
	logger    *logrus.Entry
}

// NewNewsFeed creates a feed searcher. template must contain one %s.
func NewNewsFeed(template, userAgent string, timeout time.Duration, logger *logrus.Entry) *NewsFeed {
	if template == "" {
		template = DefaultNewsFeedURL
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &NewsFeed{
		client:    &http.Client{Timeout: timeout},
		parser:    gofeed.NewParser(),
		template:  template,
		userAgent: userAgent,
		strip:     bluemonday.StrictPolicy(),
		logger:    logging.OrDiscard(logger),
	}
}

func (n *NewsFeed) Search(ctx context.Context, query string, max int) ([]SearchResult, error) {
	feedURL := fmt.Sprintf(n.template, url.QueryEscape(query))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, feedURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create feed request: %w", err)
	}
	if n.userAgent != "" {
		req.Header.Set("User-Agent", n.userAgent)
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch news feed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("news feed status %d", resp.StatusCode)
	}

	parsed, err := n.parser.Parse(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("parse news feed: %w", err)
	}

	var results []SearchResult
	for _, entry := range parsed.Items {
		if max > 0 && len(results) >= max {
			break
		}
		link := entry.Link
		if link == "" && len(entry.Links) > 0 {
			link = entry.Links[0]
		}
		if link == "" {
			continue
		}

		var published *time.Time
		if entry.PublishedParsed != nil {
			t := entry.PublishedParsed.UTC()
			published = &t
		} else if entry.UpdatedParsed != nil {
			t := entry.UpdatedParsed.UTC()
			published = &t
		}

		results = append(results, SearchResult{
			Title:       strings.TrimSpace(entry.Title),
			URL:         link,
			Snippet:     Snippet(html.UnescapeString(n.strip.Sanitize(entry.Description))),
			PublishedAt: published,
		})
	}
	n.logger.WithField("results", len(results)).Debug("news feed searched")
	return results, nil
}
