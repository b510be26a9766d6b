package source

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/gocolly/colly"
	"github.com/sirupsen/logrus"

	"github.com/elonfeng/presence/internal/logging"
	"github.com/elonfeng/presence/pkg/rating"
)

// DefaultMaxReviews bounds the reviews taken from one site.
const DefaultMaxReviews = 5

const maxProfilePages = 3

// SiteProfile tells the scraper where a review site keeps its reviews.
type SiteProfile struct {
	Site      string   `yaml:"site"`
	Domain    string   `yaml:"domain"`
	PathHints []string `yaml:"path_hints"`
	// BlockSelectors are tried in order; the first that matches wins.
	BlockSelectors []string `yaml:"block_selectors"`
	TextSelector   string   `yaml:"text_selector"`
	RatingSelector string   `yaml:"rating_selector"`
	RatingAttr     string   `yaml:"rating_attr"`
	AuthorSelector string   `yaml:"author_selector"`
	DateSelector   string   `yaml:"date_selector"`
}

// DefaultProfiles covers the review sites scraped out of the box.
func DefaultProfiles() []SiteProfile {
	return []SiteProfile{
		{
			Site:           "Yelp",
			Domain:         "yelp.com",
			PathHints:      []string{"/biz/"},
			BlockSelectors: []string{`section[aria-label="Recommended Reviews"] ul > li`, `[data-review-id]`, `div.review`},
			TextSelector:   `p[class*="comment"], span[lang], p`,
			RatingSelector: `div[role="img"][aria-label*="star"], [class*="rating"]`,
			RatingAttr:     "aria-label",
			AuthorSelector: `a[href*="/user_details"], .user-name`,
			DateSelector:   `span[class*="date"], time`,
		},
		{
			Site:           "Healthgrades",
			Domain:         "healthgrades.com",
			PathHints:      []string{"/physician/", "/dentist/", "/group-directory/"},
			BlockSelectors: []string{`[data-qa-target="review-card"]`, `.c-comment-list__item`, `div.review`},
			TextSelector:   `[data-qa-target="review-text"], .c-comment__text, p`,
			RatingSelector: `[data-qa-target="review-rating"], .star-rating, [class*="rating"]`,
			RatingAttr:     "aria-label",
			AuthorSelector: `[data-qa-target="review-author"], .c-comment__author`,
			DateSelector:   `[data-qa-target="review-date"], time`,
		},
		{
			Site:           "Glassdoor",
			Domain:         "glassdoor.com",
			PathHints:      []string{"/Reviews/"},
			BlockSelectors: []string{`[data-test="review-details-container"]`, `li.empReview`, `div.review`},
			TextSelector:   `[data-test="review-text-pros"], [data-test="review-text-cons"], p`,
			RatingSelector: `[data-test="review-rating-label"], .ratingNumber, [class*="rating"]`,
			AuthorSelector: `[data-test="review-avatar-label"], .authorInfo`,
			DateSelector:   `.timestamp, time`,
		},
	}
}

// ProfileByName finds a profile by site name, case-insensitively.
func ProfileByName(profiles []SiteProfile, name string) (SiteProfile, bool) {
	for _, p := range profiles {
		if strings.EqualFold(p.Site, name) {
			return p, true
		}
	}
	return SiteProfile{}, false
}

// matches reports whether rawURL belongs to the profile's site and looks
// like a listing page.
func (p SiteProfile) matches(rawURL string) bool {
	domain := Domain(rawURL)
	if domain == "" || (domain != p.Domain && !strings.HasSuffix(domain, "."+p.Domain)) {
		return false
	}
	if len(p.PathHints) == 0 {
		return true
	}
	for _, hint := range p.PathHints {
		if strings.Contains(rawURL, hint) {
			return true
		}
	}
	return false
}

// ScraperConfig configures SiteScraper.
type ScraperConfig struct {
	Timeout       time.Duration
	UserAgent     string
	RespectRobots bool
}

// SiteScraper finds a subject's listing on one review site through the
// searcher and scrapes reviews from it.
type SiteScraper struct {
	profile  SiteProfile
	searcher Searcher
	cfg      ScraperConfig
	logger   *logrus.Entry
}

// NewSiteScraper creates a scraper for one site profile.
func NewSiteScraper(profile SiteProfile, searcher Searcher, cfg ScraperConfig, logger *logrus.Entry) *SiteScraper {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 8 * time.Second
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = DefaultUserAgent
	}
	return &SiteScraper{
		profile:  profile,
		searcher: searcher,
		cfg:      cfg,
		logger:   logging.OrDiscard(logger).WithField("site", profile.Site),
	}
}

func (s *SiteScraper) Name() string { return "scraper:" + strings.ToLower(s.profile.Site) }
func (s *SiteScraper) Kind() Kind   { return KindScraper }

func (s *SiteScraper) Fetch(ctx context.Context, req Request) (Result, error) {
	limit := req.MaxReviews
	if limit <= 0 {
		limit = DefaultMaxReviews
	}

	q := fmt.Sprintf("%s site:%s", req.Query, s.profile.Domain)
	hits, err := s.searcher.Search(ctx, q, 10)
	if err != nil {
		return Result{}, fmt.Errorf("find %s listing: %w", s.profile.Site, err)
	}

	var pages []string
	for _, hit := range hits {
		if s.profile.matches(hit.URL) {
			pages = append(pages, hit.URL)
		}
		if len(pages) == maxProfilePages {
			break
		}
	}
	if len(pages) == 0 {
		s.logger.Debug("no listing found")
		return Result{}, nil
	}

	reviews, err := s.ScrapeReviews(ctx, pages, limit)
	return Result{Reviews: reviews}, err
}

// ScrapeReviews visits pages in order and collects at most limit reviews.
func (s *SiteScraper) ScrapeReviews(ctx context.Context, pages []string, limit int) ([]ReviewRecord, error) {
	var (
		reviews []ReviewRecord
		errs    []error
	)

	c := colly.NewCollector(colly.UserAgent(s.cfg.UserAgent), colly.AllowURLRevisit())
	c.IgnoreRobotsTxt = !s.cfg.RespectRobots

	c.OnRequest(func(r *colly.Request) {
		if ctx.Err() != nil || len(reviews) >= limit {
			r.Abort()
		}
	})

	c.OnHTML("html", func(e *colly.HTMLElement) {
		for _, review := range s.extract(e.DOM, e.Request.URL.String()) {
			if len(reviews) >= limit {
				return
			}
			reviews = append(reviews, review)
		}
	})

	c.OnError(func(r *colly.Response, err error) {
		errs = append(errs, fmt.Errorf("scrape %s: %w", r.Request.URL, err))
	})

	for _, page := range pages {
		if len(reviews) >= limit || ctx.Err() != nil {
			break
		}
		timeout := s.requestTimeout(ctx)
		if timeout <= 0 {
			break
		}
		c.SetRequestTimeout(timeout)
		if err := c.Visit(page); err != nil && !errors.Is(err, colly.ErrAlreadyVisited) {
			errs = append(errs, fmt.Errorf("visit %s: %w", page, err))
		}
	}

	if ctx.Err() != nil {
		errs = append(errs, ctx.Err())
	}
	// A page that yielded reviews makes the other failures irrelevant.
	if len(reviews) > 0 {
		for _, err := range errs {
			s.logger.WithField("err", err).Debug("partial scrape failure")
		}
		return reviews, nil
	}
	return reviews, errors.Join(errs...)
}

// requestTimeout caps the page timeout to what is left before ctx's deadline.
func (s *SiteScraper) requestTimeout(ctx context.Context) time.Duration {
	timeout := s.cfg.Timeout
	if deadline, ok := ctx.Deadline(); ok {
		timeout = min(timeout, time.Until(deadline))
	}
	return timeout
}

// extract reads review blocks from a listing page. Blocks without text are
// skipped.
func (s *SiteScraper) extract(doc *goquery.Selection, pageURL string) []ReviewRecord {
	var blocks *goquery.Selection
	for _, sel := range s.profile.BlockSelectors {
		if found := doc.Find(sel); found.Length() > 0 {
			blocks = found
			break
		}
	}
	if blocks == nil {
		return nil
	}

	var reviews []ReviewRecord
	blocks.Each(func(_ int, block *goquery.Selection) {
		text := firstText(block, s.profile.TextSelector)
		if text == "" {
			return
		}
		review := ReviewRecord{
			Site:        s.profile.Site,
			Text:        text,
			URL:         pageURL,
			Author:      firstText(block, s.profile.AuthorSelector),
			PublishedAt: s.date(block),
		}
		if v, ok := s.rating(block); ok {
			review.Rating = floatPtr(v)
		}
		reviews = append(reviews, review)
	})
	return reviews
}

func (s *SiteScraper) rating(block *goquery.Selection) (float64, bool) {
	if s.profile.RatingSelector == "" {
		return 0, false
	}
	var (
		value float64
		found bool
	)
	block.Find(s.profile.RatingSelector).EachWithBreak(func(_ int, el *goquery.Selection) bool {
		text := el.Text()
		if s.profile.RatingAttr != "" {
			if attr, ok := el.Attr(s.profile.RatingAttr); ok {
				text = attr + " " + text
			}
		}
		value, found = rating.Extract(text)
		return !found
	})
	return value, found
}

func (s *SiteScraper) date(block *goquery.Selection) string {
	if s.profile.DateSelector == "" {
		return ""
	}
	el := block.Find(s.profile.DateSelector).First()
	if v, ok := el.Attr("datetime"); ok && strings.TrimSpace(v) != "" {
		return strings.TrimSpace(v)
	}
	return collapse(el.Text())
}

// firstText returns the text of the first non-empty match of selector.
// An empty selector means the block itself.
func firstText(block *goquery.Selection, selector string) string {
	if selector == "" {
		return collapse(block.Text())
	}
	var text string
	block.Find(selector).EachWithBreak(func(_ int, el *goquery.Selection) bool {
		text = collapse(el.Text())
		return text == ""
	})
	return text
}

func collapse(s string) string {
	return strings.TrimSpace(reWhitespace.ReplaceAllString(s, " "))
}
