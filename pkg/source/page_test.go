package source

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"time"

	check "gopkg.in/check.v1"
)

var _ = check.Suite(new(pageTestSuite))

const articlePage = `<!DOCTYPE html>
<html><head>
<title>Dr. Jane Smith | Chicago Heart</title>
<meta name="description" content="Dr. Jane Smith is a cardiologist in Chicago. Rated 4.8/5 by patients.">
<meta property="article:published_time" content="2024-01-15T10:00:00Z">
</head>
<body>
<article>
<h1>Dr. Jane Smith</h1>
<p>Dr. Jane Smith practices cardiology at Acme Health in Chicago and has cared for patients for over twenty years.</p>
<p>She completed her residency at Northwestern and specializes in preventive care for adults with heart disease.</p>
</article>
<script>var tracker = "ignored";</script>
</body></html>`

const listingPage = `<html><head><title>Acme Plumbing</title></head>
<body>
<div itemprop="aggregateRating"><span itemprop="ratingValue">4.2</span> from 18 reviews</div>
<time datetime="2023-06-01">June 1</time>
<p>Acme Plumbing &amp; Heating serves the north side.</p>
</body></html>`

const oddRatingPage = `<html><head><title>Acme Roofing</title></head>
<body>
<div itemprop="aggregateRating"><span itemprop="ratingValue" content="%s"></span></div>
<p>Acme Roofing repairs roofs across the city.</p>
</body></html>`

type pageTestSuite struct {
	srv     *httptest.Server
	fetcher *HTTPPageFetcher
}

func (s *pageTestSuite) SetUpTest(c *check.C) {
	mux := http.NewServeMux()
	mux.HandleFunc("/robots.txt", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("User-agent: *\nDisallow: /private\n"))
	})
	mux.HandleFunc("/article", func(w http.ResponseWriter, r *http.Request) {
		c.Check(r.Header.Get("User-Agent"), check.Equals, DefaultUserAgent)
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte(articlePage))
	})
	mux.HandleFunc("/listing", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte(listingPage))
	})
	mux.HandleFunc("/odd", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = fmt.Fprintf(w, oddRatingPage, r.URL.Query().Get("v"))
	})
	mux.HandleFunc("/private/page", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte(listingPage))
	})
	mux.HandleFunc("/data.json", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"title":"x"}`))
	})
	s.srv = httptest.NewServer(mux)
	s.fetcher = NewPageFetcher(PageConfig{Timeout: time.Second, RespectRobots: true}, nil)
}

func (s *pageTestSuite) TearDownTest(c *check.C) {
	s.srv.Close()
}

func (s *pageTestSuite) TestArticleFields(c *check.C) {
	rec := s.fetcher.Fetch(context.Background(), s.srv.URL+"/article")

	c.Assert(rec.Domain, check.Equals, "127.0.0.1")
	c.Assert(rec.Title, check.Equals, "Dr. Jane Smith | Chicago Heart")
	c.Assert(rec.Snippet, check.Equals, "Dr. Jane Smith is a cardiologist in Chicago. Rated 4.8/5 by patients.")
	c.Assert(rec.Rating, check.NotNil)
	c.Assert(*rec.Rating, check.Equals, 4.8)
	c.Assert(rec.PublishedAt, check.NotNil)
	c.Assert(rec.PublishedAt.Equal(time.Date(2024, 1, 15, 10, 0, 0, 0, time.UTC)), check.Equals, true)
	c.Assert(strings.Contains(rec.FullText, "acme health"), check.Equals, true)
	c.Assert(strings.Contains(rec.FullText, "tracker"), check.Equals, false)
	c.Assert(rec.FullText, check.Equals, strings.ToLower(rec.FullText))
}

func (s *pageTestSuite) TestStructuredRatingAndTimeElement(c *check.C) {
	rec := s.fetcher.Fetch(context.Background(), s.srv.URL+"/listing")

	c.Assert(rec.Rating, check.NotNil)
	c.Assert(*rec.Rating, check.Equals, 4.2)
	c.Assert(rec.PublishedAt, check.NotNil)
	c.Assert(rec.PublishedAt.Format("2006-01-02"), check.Equals, "2023-06-01")
	c.Assert(strings.Contains(rec.FullText, "acme plumbing & heating"), check.Equals, true)
	c.Assert(rec.Snippet, check.Not(check.Equals), "")
}

func (s *pageTestSuite) TestNonFiniteRatingMarkupIsIgnored(c *check.C) {
	for _, v := range []string{"NaN", "Inf", "-Infinity"} {
		rec := s.fetcher.Fetch(context.Background(), s.srv.URL+"/odd?v="+v)
		c.Assert(rec.Title, check.Equals, "Acme Roofing", check.Commentf("value %s", v))
		c.Assert(rec.Rating, check.IsNil, check.Commentf("value %s", v))

		_, err := json.Marshal(rec)
		c.Assert(err, check.IsNil)
	}
}

func (s *pageTestSuite) TestRobotsDisallowedYieldsBareRecord(c *check.C) {
	url := s.srv.URL + "/private/page"
	c.Assert(s.fetcher.Fetch(context.Background(), url), check.DeepEquals, NewRecord(url))

	ignoring := NewPageFetcher(PageConfig{Timeout: time.Second}, nil)
	c.Assert(ignoring.Fetch(context.Background(), url).Title, check.Equals, "Acme Plumbing")
}

func (s *pageTestSuite) TestFailuresYieldBareRecord(c *check.C) {
	for _, path := range []string{"/missing", "/data.json"} {
		url := s.srv.URL + path
		c.Assert(s.fetcher.Fetch(context.Background(), url), check.DeepEquals, NewRecord(url))
	}

	closed := httptest.NewServer(http.NotFoundHandler())
	url := closed.URL + "/gone"
	closed.Close()
	c.Assert(s.fetcher.Fetch(context.Background(), url), check.DeepEquals, NewRecord(url))
}
