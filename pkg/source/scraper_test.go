package source

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"time"

	check "gopkg.in/check.v1"
)

var _ = check.Suite(new(scraperTestSuite))

const reviewsPage = `<html><body>
<div class="review">
  <p>Fast and   friendly service.</p>
  <div class="rating" aria-label="5 star rating"></div>
  <span class="user-name">Ann</span>
  <time datetime="2024-02-01">Feb 1</time>
</div>
<div class="review"><p>   </p></div>
<div class="review"><p>Fixed the leak.</p><div class="rating">4 stars</div></div>
<div class="review"><p>Third review.</p></div>
</body></html>`

type scraperTestSuite struct {
	srv     *httptest.Server
	profile SiteProfile
}

func (s *scraperTestSuite) SetUpTest(c *check.C) {
	mux := http.NewServeMux()
	mux.HandleFunc("/biz/acme-plumbing", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte(reviewsPage))
	})
	mux.HandleFunc("/biz/slow", func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
			return
		case <-time.After(2 * time.Second):
		}
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte(reviewsPage))
	})
	s.srv = httptest.NewServer(mux)
	s.profile = SiteProfile{
		Site:           "Testsite",
		Domain:         "127.0.0.1",
		PathHints:      []string{"/biz/"},
		BlockSelectors: []string{"div.missing", "div.review"},
		TextSelector:   "p",
		RatingSelector: ".rating",
		RatingAttr:     "aria-label",
		AuthorSelector: ".user-name",
		DateSelector:   "time",
	}
}

func (s *scraperTestSuite) TearDownTest(c *check.C) {
	s.srv.Close()
}

func (s *scraperTestSuite) TestScrapesUpToMaxReviews(c *check.C) {
	searcher := &fakeSearcher{hits: []SearchResult{
		{URL: s.srv.URL + "/about"},
		{URL: s.srv.URL + "/biz/acme-plumbing"},
	}}
	scraper := NewSiteScraper(s.profile, searcher, ScraperConfig{Timeout: time.Second}, nil)
	c.Assert(scraper.Name(), check.Equals, "scraper:testsite")
	c.Assert(scraper.Kind(), check.Equals, KindScraper)

	res, err := scraper.Fetch(context.Background(), Request{Query: "Acme Plumbing", MaxReviews: 2})
	c.Assert(err, check.IsNil)
	c.Assert(searcher.queries, check.DeepEquals, []string{"Acme Plumbing site:127.0.0.1"})
	c.Assert(res.Reviews, check.HasLen, 2)

	first := res.Reviews[0]
	c.Assert(first.Site, check.Equals, "Testsite")
	c.Assert(first.Text, check.Equals, "Fast and friendly service.")
	c.Assert(*first.Rating, check.Equals, 5.0)
	c.Assert(first.Author, check.Equals, "Ann")
	c.Assert(first.PublishedAt, check.Equals, "2024-02-01")
	c.Assert(strings.HasSuffix(first.URL, "/biz/acme-plumbing"), check.Equals, true)

	second := res.Reviews[1]
	c.Assert(second.Text, check.Equals, "Fixed the leak.")
	c.Assert(*second.Rating, check.Equals, 4.0)
	c.Assert(second.Author, check.Equals, "")
}

func (s *scraperTestSuite) TestDefaultLimit(c *check.C) {
	scraper := NewSiteScraper(s.profile, nil, ScraperConfig{Timeout: time.Second}, nil)
	reviews, err := scraper.ScrapeReviews(context.Background(), []string{s.srv.URL + "/biz/acme-plumbing"}, DefaultMaxReviews)
	c.Assert(err, check.IsNil)
	c.Assert(reviews, check.HasLen, 3)
	c.Assert(reviews[2].Rating, check.IsNil)
}

func (s *scraperTestSuite) TestNoListingFound(c *check.C) {
	searcher := &fakeSearcher{hits: []SearchResult{{URL: "https://elsewhere.example.com/biz/acme"}}}
	res, err := NewSiteScraper(s.profile, searcher, ScraperConfig{}, nil).
		Fetch(context.Background(), Request{Query: "Acme"})
	c.Assert(err, check.IsNil)
	c.Assert(res.Reviews, check.HasLen, 0)
}

func (s *scraperTestSuite) TestBrokenListingReportsError(c *check.C) {
	scraper := NewSiteScraper(s.profile, nil, ScraperConfig{Timeout: time.Second}, nil)
	reviews, err := scraper.ScrapeReviews(context.Background(), []string{s.srv.URL + "/biz/missing"}, 5)
	c.Assert(err, check.NotNil)
	c.Assert(reviews, check.HasLen, 0)
}

func (s *scraperTestSuite) TestPageTimeoutStopsAtDeadline(c *check.C) {
	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	scraper := NewSiteScraper(s.profile, nil, ScraperConfig{Timeout: 5 * time.Second}, nil)
	slow := s.srv.URL + "/biz/slow"
	start := time.Now()
	reviews, err := scraper.ScrapeReviews(ctx, []string{slow, slow, slow}, 5)

	c.Assert(err, check.NotNil)
	c.Assert(reviews, check.HasLen, 0)
	c.Assert(time.Since(start) < time.Second, check.Equals, true, check.Commentf("took %s", time.Since(start)))
}

func (s *scraperTestSuite) TestDefaultProfiles(c *check.C) {
	profiles := DefaultProfiles()
	for _, name := range []string{"Yelp", "Healthgrades", "Glassdoor"} {
		p, ok := ProfileByName(profiles, strings.ToLower(name))
		c.Assert(ok, check.Equals, true)
		c.Assert(p.Site, check.Equals, name)
		c.Assert(p.BlockSelectors, check.Not(check.HasLen), 0)
	}
	yelp, _ := ProfileByName(profiles, "yelp")
	c.Assert(yelp.matches("https://www.yelp.com/biz/acme-plumbing-chicago"), check.Equals, true)
	c.Assert(yelp.matches("https://www.yelp.com/search?find_desc=acme"), check.Equals, false)
}
