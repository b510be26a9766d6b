package source

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"time"

	"github.com/juju/clock/testclock"
	check "gopkg.in/check.v1"

	"github.com/elonfeng/presence/internal/cache"
)

var _ = check.Suite(new(cachedTestSuite))

type countingPlaces struct {
	place *PlaceDetails
	calls int
}

func (p *countingPlaces) FetchPlaceDetails(context.Context, string) (*PlaceDetails, error) {
	p.calls++
	return p.place, nil
}

type cachedTestSuite struct {
	clk   *testclock.Clock
	cache cache.Cache
}

func (s *cachedTestSuite) SetUpTest(c *check.C) {
	s.clk = testclock.NewClock(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	s.cache = cache.NewMemory(s.clk)
}

func (s *cachedTestSuite) TestSearcherIsMemoizedPerQuery(c *check.C) {
	next := &fakeSearcher{hits: []SearchResult{{Title: "A", URL: "https://a.example.com/"}}}
	cached := NewCachedSearcher("google", next, s.cache, time.Minute, nil)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		hits, err := cached.Search(ctx, "acme", 10)
		c.Assert(err, check.IsNil)
		c.Assert(hits, check.DeepEquals, next.hits)
	}
	_, _ = cached.Search(ctx, "other", 10)
	c.Assert(next.queries, check.DeepEquals, []string{"acme", "other"})

	s.clk.Advance(time.Minute)
	_, _ = cached.Search(ctx, "acme", 10)
	c.Assert(next.queries, check.HasLen, 3)
}

func (s *cachedTestSuite) TestSearcherKeepsPartialHits(c *check.C) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("start") != "1" {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		var items []map[string]string
		for i := 1; i <= csePageSize; i++ {
			items = append(items, map[string]string{"title": "Result", "link": fmt.Sprintf("https://site%d.example.com/", i)})
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"items": items})
	}))
	defer srv.Close()

	cse := NewGoogleCSE("k", "cx", time.Second, nil).WithEndpoint(srv.URL)
	plain, plainErr := cse.Search(context.Background(), "acme", 20)
	cached, cachedErr := NewCachedSearcher("google", cse, s.cache, time.Minute, nil).Search(context.Background(), "acme", 20)

	c.Assert(plainErr, check.ErrorMatches, "custom search status 500")
	c.Assert(cachedErr, check.ErrorMatches, "custom search status 500")
	c.Assert(plain, check.HasLen, csePageSize)
	c.Assert(cached, check.DeepEquals, plain)

	res, err := NewSearchAdapter("google", NewCachedSearcher("google", cse, s.cache, time.Minute, nil), nil, nil).
		Fetch(context.Background(), Request{Query: "acme", MaxResults: 20})
	c.Assert(err, check.NotNil)
	c.Assert(res.Sources, check.HasLen, csePageSize)
}

func (s *cachedTestSuite) TestBarePagesAreNotCached(c *check.C) {
	next := &fakePages{records: map[string]SourceRecord{
		"https://full.example.com/": {URL: "https://full.example.com/", Domain: "full.example.com", Title: "Full"},
	}}
	cached := NewCachedPageFetcher(next, s.cache, time.Minute, nil)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		c.Assert(cached.Fetch(ctx, "https://full.example.com/").Title, check.Equals, "Full")
		c.Assert(cached.Fetch(ctx, "https://down.example.com/"), check.DeepEquals, NewRecord("https://down.example.com/"))
	}
	c.Assert(next.calls, check.Equals, 3)
}

func (s *cachedTestSuite) TestPlacesMissIsCached(c *check.C) {
	next := &countingPlaces{}
	cached := NewCachedPlaces(next, s.cache, 0, nil)

	for i := 0; i < 2; i++ {
		place, err := cached.FetchPlaceDetails(context.Background(), "acme")
		c.Assert(err, check.IsNil)
		c.Assert(place, check.IsNil)
	}
	c.Assert(next.calls, check.Equals, 1)
}
