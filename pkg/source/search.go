package source

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/elonfeng/presence/internal/logging"
)

// SearchResult is one ranked hit from a search backend.
type SearchResult struct {
	Title       string     `json:"title"`
	URL         string     `json:"url"`
	Snippet     string     `json:"snippet"`
	PublishedAt *time.Time `json:"published_at,omitempty"`
}

// Searcher is a keyword search backend. An empty list with a nil error is a
// valid answer, e.g. when credentials are missing.
type Searcher interface {
	Search(ctx context.Context, query string, max int) ([]SearchResult, error)
}

const (
	cseEndpoint = "https://www.googleapis.com/customsearch/v1"
	csePageSize = 10
	cseMaxTotal = 100
)

// GoogleCSE queries the Google Custom Search JSON API.
type GoogleCSE struct {
	client   *http.Client
	apiKey   string
	cx       string
	endpoint string
	logger   *logrus.Entry
}

// NewGoogleCSE creates a Custom Search client.
func NewGoogleCSE(apiKey, cx string, timeout time.Duration, logger *logrus.Entry) *GoogleCSE {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &GoogleCSE{
		client:   &http.Client{Timeout: timeout},
		apiKey:   apiKey,
		cx:       cx,
		endpoint: cseEndpoint,
		logger:   logging.OrDiscard(logger),
	}
}

// WithEndpoint points the client at another base URL.
func (g *GoogleCSE) WithEndpoint(endpoint string) *GoogleCSE {
	g.endpoint = endpoint
	return g
}

type cseResponse struct {
	Items []struct {
		Title   string `json:"title"`
		Link    string `json:"link"`
		Snippet string `json:"snippet"`
	} `json:"items"`
}

// Search pages through results ten at a time until max is reached or a page
// comes back short.
func (g *GoogleCSE) Search(ctx context.Context, query string, max int) ([]SearchResult, error) {
	if g.apiKey == "" || g.cx == "" {
		g.logger.Debug("google custom search disabled: missing api key or cx")
		return nil, nil
	}
	if max <= 0 {
		max = csePageSize
	}
	if max > cseMaxTotal {
		max = cseMaxTotal
	}

	var results []SearchResult
	for start := 1; start <= max; start += csePageSize {
		num := min(csePageSize, max-start+1)
		page, err := g.searchPage(ctx, query, start, num)
		if err != nil {
			return results, err
		}
		results = append(results, page...)
		if len(page) < num {
			break
		}
	}
	return results, nil
}

func (g *GoogleCSE) searchPage(ctx context.Context, query string, start, num int) ([]SearchResult, error) {
	params := url.Values{}
	params.Set("key", g.apiKey)
	params.Set("cx", g.cx)
	params.Set("q", query)
	params.Set("start", strconv.Itoa(start))
	params.Set("num", strconv.Itoa(num))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.endpoint+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("create search request: %w", err)
	}

	resp, err := g.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch search page %d: %w", start, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("custom search status %d", resp.StatusCode)
	}

	var data cseResponse
	if err := json.NewDecoder(resp.Body).Decode(&data); err != nil {
		return nil, fmt.Errorf("decode search page %d: %w", start, err)
	}

	results := make([]SearchResult, 0, len(data.Items))
	for _, it := range data.Items {
		if it.Link == "" {
			continue
		}
		results = append(results, SearchResult{Title: it.Title, URL: it.Link, Snippet: it.Snippet})
	}
	return results, nil
}
