package source

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"html"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/araddon/dateparse"
	readability "github.com/go-shiori/go-readability"
	"github.com/microcosm-cc/bluemonday"
	"github.com/sirupsen/logrus"
	"github.com/temoto/robotstxt"
	"golang.org/x/net/html/charset"

	"github.com/elonfeng/presence/internal/logging"
	"github.com/elonfeng/presence/pkg/rating"
)

// DefaultUserAgent is sent with every outbound page request.
const DefaultUserAgent = "Mozilla/5.0 (compatible; presence/1.0)"

const maxPageBytes = 2 << 20

var (
	errRobotsDisallowed = errors.New("disallowed by robots.txt")
	errNotHTML          = errors.New("not an html document")

	reWhitespace  = regexp.MustCompile(`\s+`)
	reLDPublished = regexp.MustCompile(`"datePublished"\s*:\s*"([^"]+)"`)

	publishedMetaSel = []string{
		`meta[property="article:published_time"]`,
		`meta[itemprop="datePublished"]`,
		`meta[name="date"]`,
		`meta[property="og:updated_time"]`,
	}

	ratingSel = `[class*="rating"], [class*="stars"], [aria-label*="star"]`
)

// PageFetcher turns a URL into a best-effort SourceRecord. It never fails:
// on any error the record carries only the URL and domain.
type PageFetcher interface {
	Fetch(ctx context.Context, rawURL string) SourceRecord
}

// PageConfig configures HTTPPageFetcher.
type PageConfig struct {
	Timeout       time.Duration
	UserAgent     string
	RespectRobots bool
}

// HTTPPageFetcher downloads pages and extracts title, snippet, rating,
// publication date and text.
type HTTPPageFetcher struct {
	client        *http.Client
	userAgent     string
	respectRobots bool
	strip         *bluemonday.Policy
	logger        *logrus.Entry

	mu     sync.Mutex
	robots map[string]*robotstxt.Group
}

// NewPageFetcher creates a page fetcher.
func NewPageFetcher(cfg PageConfig, logger *logrus.Entry) *HTTPPageFetcher {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 8 * time.Second
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = DefaultUserAgent
	}
	strip := bluemonday.StrictPolicy()
	strip.AddSpaceWhenStrippingTag(true)

	return &HTTPPageFetcher{
		client:        &http.Client{Timeout: cfg.Timeout},
		userAgent:     cfg.UserAgent,
		respectRobots: cfg.RespectRobots,
		strip:         strip,
		logger:        logging.OrDiscard(logger),
		robots:        make(map[string]*robotstxt.Group),
	}
}

func (p *HTTPPageFetcher) Fetch(ctx context.Context, rawURL string) SourceRecord {
	body, err := p.get(ctx, rawURL)
	if err != nil {
		p.logger.WithFields(logrus.Fields{"url": rawURL, "err": err}).Debug("page fetch failed")
		return NewRecord(rawURL)
	}
	rec, err := p.parse(rawURL, body)
	if err != nil {
		p.logger.WithFields(logrus.Fields{"url": rawURL, "err": err}).Debug("page parse failed")
		return NewRecord(rawURL)
	}
	return rec
}

func (p *HTTPPageFetcher) get(ctx context.Context, rawURL string) ([]byte, error) {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return nil, fmt.Errorf("parse url %q: invalid", rawURL)
	}
	if p.respectRobots && !p.allowed(ctx, u) {
		return nil, errRobotsDisallowed
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create page request: %w", err)
	}
	req.Header.Set("User-Agent", p.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml")

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch page: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("page status %d", resp.StatusCode)
	}
	ct := resp.Header.Get("Content-Type")
	if ct != "" && !strings.Contains(ct, "html") {
		return nil, errNotHTML
	}

	reader, err := charset.NewReader(io.LimitReader(resp.Body, maxPageBytes), ct)
	if err != nil {
		reader = io.LimitReader(resp.Body, maxPageBytes)
	}
	body, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("read page: %w", err)
	}
	return body, nil
}

// allowed consults robots.txt once per host. Unreachable or broken robots
// files allow everything.
func (p *HTTPPageFetcher) allowed(ctx context.Context, u *url.URL) bool {
	host := u.Scheme + "://" + u.Host

	p.mu.Lock()
	group, seen := p.robots[host]
	p.mu.Unlock()

	if !seen {
		group = p.loadRobots(ctx, host)
		p.mu.Lock()
		p.robots[host] = group
		p.mu.Unlock()
	}
	if group == nil {
		return true
	}
	path := u.EscapedPath()
	if path == "" {
		path = "/"
	}
	return group.Test(path)
}

func (p *HTTPPageFetcher) loadRobots(ctx context.Context, host string) *robotstxt.Group {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, host+"/robots.txt", nil)
	if err != nil {
		return nil
	}
	req.Header.Set("User-Agent", p.userAgent)
	resp, err := p.client.Do(req)
	if err != nil {
		return nil
	}
	defer resp.Body.Close()

	data, err := robotstxt.FromResponse(resp)
	if err != nil {
		p.logger.WithFields(logrus.Fields{"host": host, "err": err}).Debug("robots.txt unreadable")
		return nil
	}
	return data.FindGroup(p.userAgent)
}

func (p *HTTPPageFetcher) parse(rawURL string, body []byte) (SourceRecord, error) {
	rec := NewRecord(rawURL)

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return rec, fmt.Errorf("parse html: %w", err)
	}

	rec.Title = firstNonEmpty(
		metaContent(doc, `meta[property="og:title"]`),
		strings.TrimSpace(doc.Find("title").First().Text()),
	)
	description := firstNonEmpty(
		metaContent(doc, `meta[name="description"]`),
		metaContent(doc, `meta[property="og:description"]`),
	)
	rec.PublishedAt = publishedAt(doc)
	rec.Rating = pageRating(doc, rec.Title+" "+description)

	doc.Find("script, style, noscript").Remove()
	bodyHTML, _ := doc.Find("body").Html()
	pageText := p.plainText(bodyHTML)
	rec.FullText = strings.ToLower(pageText)

	mainText := p.mainText(rawURL, body)
	switch {
	case description != "":
		rec.Snippet = Snippet(description)
	case mainText != "":
		rec.Snippet = Snippet(mainText)
	default:
		rec.Snippet = Snippet(pageText)
	}
	return rec, nil
}

// mainText extracts the article body, or "" when readability finds none.
func (p *HTTPPageFetcher) mainText(rawURL string, body []byte) string {
	parsedURL, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	article, err := readability.FromReader(bytes.NewReader(body), parsedURL)
	if err != nil {
		return ""
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(article.Content))
	if err != nil {
		return ""
	}
	doc.Find("figure, aside, script, style").Remove()
	return strings.TrimSpace(reWhitespace.ReplaceAllString(doc.Text(), " "))
}

func (p *HTTPPageFetcher) plainText(fragment string) string {
	text := html.UnescapeString(p.strip.Sanitize(fragment))
	return strings.TrimSpace(reWhitespace.ReplaceAllString(text, " "))
}

func metaContent(doc *goquery.Document, selector string) string {
	v, _ := doc.Find(selector).First().Attr("content")
	return strings.TrimSpace(v)
}

func publishedAt(doc *goquery.Document) *time.Time {
	candidates := make([]string, 0, len(publishedMetaSel)+2)
	for _, sel := range publishedMetaSel {
		candidates = append(candidates, metaContent(doc, sel))
	}
	if v, ok := doc.Find("time[datetime]").First().Attr("datetime"); ok {
		candidates = append(candidates, v)
	}
	doc.Find(`script[type="application/ld+json"]`).EachWithBreak(func(_ int, s *goquery.Selection) bool {
		if m := reLDPublished.FindStringSubmatch(s.Text()); m != nil {
			candidates = append(candidates, m[1])
			return false
		}
		return true
	})

	for _, c := range candidates {
		if c == "" {
			continue
		}
		if t, err := dateparse.ParseAny(strings.TrimSpace(c)); err == nil && !t.IsZero() {
			t = t.UTC()
			return &t
		}
	}
	return nil
}

// pageRating prefers structured rating markup, then rating widgets, then
// the title and description.
func pageRating(doc *goquery.Document, fallback string) *float64 {
	sel := doc.Find(`[itemprop="ratingValue"]`).First()
	if sel.Length() > 0 {
		raw, ok := sel.Attr("content")
		if !ok {
			raw = sel.Text()
		}
		if v, err := strconv.ParseFloat(strings.TrimSpace(raw), 64); err == nil {
			if v, ok := rating.Normalize(v); ok {
				return floatPtr(v)
			}
		}
	}

	var found *float64
	doc.Find(ratingSel).EachWithBreak(func(_ int, s *goquery.Selection) bool {
		text := s.Text()
		if label, ok := s.Attr("aria-label"); ok {
			text = label + " " + text
		}
		if v, ok := rating.Extract(text); ok {
			found = floatPtr(v)
			return false
		}
		return true
	})
	if found != nil {
		return found
	}

	if v, ok := rating.Extract(fallback); ok {
		return floatPtr(v)
	}
	return nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
