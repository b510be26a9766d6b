package presence

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang/mock/gomock"
	"github.com/juju/clock/testclock"
	check "gopkg.in/check.v1"

	"github.com/elonfeng/presence/pkg/query"
	"github.com/elonfeng/presence/pkg/source"
	mock_source "github.com/elonfeng/presence/pkg/source/mocks"
)

var _ = check.Suite(new(pipelineTestSuite))

type pipelineTestSuite struct {
	ctrl   *gomock.Controller
	search *mock_source.MockAdapter
	places *mock_source.MockAdapter
}

func (s *pipelineTestSuite) SetUpTest(c *check.C) {
	s.ctrl = gomock.NewController(c)
	s.search = mock_source.NewMockAdapter(s.ctrl)
	s.search.EXPECT().Name().Return("search:google").AnyTimes()
	s.search.EXPECT().Kind().Return(source.KindSearch).AnyTimes()
	s.places = mock_source.NewMockAdapter(s.ctrl)
	s.places.EXPECT().Name().Return("places").AnyTimes()
	s.places.EXPECT().Kind().Return(source.KindPlaces).AnyTimes()
}

func (s *pipelineTestSuite) TearDownTest(c *check.C) {
	s.ctrl.Finish()
}

func (s *pipelineTestSuite) pipeline(c *check.C, timeout time.Duration, adapters ...source.Adapter) *Pipeline {
	p, err := New(Config{
		Adapters:       adapters,
		Sentiment:      &recordingScorer{value: 0.5},
		Clock:          testclock.NewClock(now),
		AdapterTimeout: timeout,
	})
	c.Assert(err, check.IsNil)
	return p
}

func (s *pipelineTestSuite) TestMergesAdaptersAndScores(c *check.C) {
	in := query.Inputs{Name: "Acme Plumbing", City: "Chicago", Company: "Acme"}

	s.search.EXPECT().Fetch(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, req source.Request) (source.Result, error) {
			c.Check(req.Query, check.Equals, "Acme Plumbing Acme Chicago")
			c.Check(req.MaxResults, check.Equals, defaultMaxResults)
			c.Check(req.MaxReviews, check.Equals, source.DefaultMaxReviews)
			return source.Result{Sources: []source.SourceRecord{
				{URL: "https://acme.example.com/", Snippet: "Acme fixes pipes", FullText: "acme fixes pipes", PublishedAt: daysAgo(10)},
				{URL: "https://acme.example.com/", Snippet: "duplicate"},
				{URL: "https://blog.example.org/post", Snippet: "a post", Rating: ptr(4.0)},
			}}, nil
		})
	s.places.EXPECT().Fetch(gomock.Any(), gomock.Any()).Return(source.Result{
		Sources: []source.SourceRecord{{URL: "https://maps.google.com/?cid=1", Title: "Acme Plumbing", Rating: ptr(5.0)}},
		Reviews: []source.ReviewRecord{
			{Site: "Google", Text: "Great work", Rating: ptr(5.0)},
			{Text: "No site given"},
		},
		ReviewTotal: 37,
	}, nil)

	report := s.pipeline(c, time.Second, s.search, s.places).Analyze(context.Background(), in)

	c.Assert(report.ID, check.Not(check.Equals), "")
	c.Assert(report.GeneratedAt.Equal(now), check.Equals, true)
	c.Assert(report.Query, check.Equals, "Acme Plumbing Acme Chicago")
	c.Assert(report.Sources, check.HasLen, 3)
	c.Assert(report.Sources[0].Domain, check.Equals, "acme.example.com")
	c.Assert(report.Sources[0].Origin, check.Equals, "search:google")
	c.Assert(report.Reviews[1].Site, check.Equals, "places")
	c.Assert(report.ReviewCount, check.Equals, 37)

	c.Assert(report.Stats.NumSites, check.Equals, 3)
	c.Assert(report.Stats.UniqueDomains, check.Equals, 3)
	c.Assert(approx(*report.Stats.AvgRating, 14.0/3), check.Equals, true)
	c.Assert(report.Stats.CompanyPrevalence, check.Equals, 1.0/3)
	c.Assert(report.Score.Breakdown[CategoryRecency], check.Equals, 80.0)
	c.Assert(report.SentimentValues, check.HasLen, 5)
	c.Assert(report.Quotes, check.HasLen, 5)
	c.Assert(report.Diagnostics, check.HasLen, 2)
	c.Assert(report.FailedAdapters(), check.HasLen, 0)
}

func (s *pipelineTestSuite) TestFailingAdapterDoesNotStopPipeline(c *check.C) {
	s.search.EXPECT().Fetch(gomock.Any(), gomock.Any()).Return(source.Result{
		Sources: []source.SourceRecord{{URL: "https://partial.example.com/", Snippet: "partial"}},
	}, errors.New("page 2 failed"))
	s.places.EXPECT().Fetch(gomock.Any(), gomock.Any()).Return(source.Result{}, errors.New("connection refused"))

	report := s.pipeline(c, time.Second, s.search, s.places).Analyze(context.Background(), query.Inputs{Name: "Acme"})

	c.Assert(report.Sources, check.HasLen, 1)
	failed := report.FailedAdapters()
	c.Assert(failed, check.HasLen, 2)
	c.Assert(failed[0].Adapter, check.Equals, "search:google")
	c.Assert(failed[0].Records, check.Equals, 1)
	c.Assert(failed[1].Err, check.Equals, "connection refused")
	c.Assert(report.Score.Grade, check.Equals, "F")
}

func (s *pipelineTestSuite) TestSlowAdapterIsCutOff(c *check.C) {
	s.search.EXPECT().Fetch(gomock.Any(), gomock.Any()).DoAndReturn(
		func(ctx context.Context, _ source.Request) (source.Result, error) {
			<-ctx.Done()
			return source.Result{}, ctx.Err()
		})
	s.places.EXPECT().Fetch(gomock.Any(), gomock.Any()).Return(source.Result{
		Sources: []source.SourceRecord{{URL: "https://maps.google.com/?cid=1", Title: "Acme"}},
	}, nil)

	report := s.pipeline(c, 20*time.Millisecond, s.search, s.places).Analyze(context.Background(), query.Inputs{Name: "Acme"})

	c.Assert(report.Diagnostics[0].Err, check.Equals, context.DeadlineExceeded.Error())
	c.Assert(report.Sources, check.HasLen, 1)
}

func (s *pipelineTestSuite) TestSlowPagesKeepEverySearchHit(c *check.C) {
	var hits []source.SearchResult
	for i := 1; i <= 20; i++ {
		hits = append(hits, source.SearchResult{Title: fmt.Sprintf("Hit %d", i), URL: fmt.Sprintf("https://site%d.example.com/", i)})
	}
	searcher := mock_source.NewMockSearcher(s.ctrl)
	searcher.EXPECT().Search(gomock.Any(), gomock.Any(), gomock.Any()).Return(hits, nil).AnyTimes()

	analyze := func(latency time.Duration) *Report {
		pages := mock_source.NewMockPageFetcher(s.ctrl)
		pages.EXPECT().Fetch(gomock.Any(), gomock.Any()).DoAndReturn(
			func(ctx context.Context, rawURL string) source.SourceRecord {
				select {
				case <-ctx.Done():
					return source.NewRecord(rawURL)
				case <-time.After(latency):
					rec := source.NewRecord(rawURL)
					rec.Snippet = "page text"
					return rec
				}
			}).AnyTimes()
		adapter := source.NewSearchAdapter("google", searcher, pages, nil)
		return s.pipeline(c, 150*time.Millisecond, adapter).Analyze(context.Background(), query.Inputs{Name: "Acme"})
	}

	fast := analyze(0)
	slow := analyze(100 * time.Millisecond)

	c.Assert(fast.Stats.NumSites, check.Equals, len(hits))
	c.Assert(slow.Stats.NumSites, check.Equals, len(hits))
	c.Assert(slow.Score.Breakdown[CategorySites], check.Equals, fast.Score.Breakdown[CategorySites])
	c.Assert(slow.Diagnostics[0].OK(), check.Equals, true)
	c.Assert(slow.Sources[19].Title, check.Equals, "Hit 20")
}

func (s *pipelineTestSuite) TestEmptyQuerySkipsAdapters(c *check.C) {
	report := s.pipeline(c, time.Second, s.search, s.places).Analyze(context.Background(), query.Inputs{})

	c.Assert(report.Diagnostics, check.HasLen, 0)
	c.Assert(report.Score.Breakdown[CategorySentiment], check.Equals, 50.0)
	c.Assert(report.Score.Grade, check.Equals, "F")
	c.Assert(messages(report.Tips, TipPresence)[0], check.Matches, "No online mentions were found.*")
}

func (s *pipelineTestSuite) TestNoAdaptersIsValid(c *check.C) {
	report := s.pipeline(c, 0).Analyze(context.Background(), query.Inputs{Name: "Acme"})
	c.Assert(report.Sources, check.HasLen, 0)
	c.Assert(approx(report.Score.Score, 7.5), check.Equals, true)
}

func (s *pipelineTestSuite) TestConfigValidation(c *check.C) {
	_, err := New(Config{
		Adapters:       []source.Adapter{nil},
		AdapterTimeout: -time.Second,
		MaxResults:     -1,
		Weights:        Weights{Sites: -1},
	})
	c.Assert(err, check.ErrorMatches, "(?ms).*adapter 0 is nil.*")
	c.Assert(err, check.ErrorMatches, "(?ms).*invalid adapter timeout.*")
	c.Assert(err, check.ErrorMatches, "(?ms).*result limits must not be negative.*")
	c.Assert(err, check.ErrorMatches, "(?ms).*score weights must not be negative.*")
}

func (s *pipelineTestSuite) TestReportHelpers(c *check.C) {
	r := &Report{
		Query: "Acme",
		Score: ScoreResult{Score: 72.3, Grade: "C"},
		Stats: Stats{NumSites: 4},
		Quotes: []Quote{
			{Text: "meh", Sentiment: 0},
			{Text: "love", Sentiment: 0.9},
			{Text: "hate", Sentiment: -0.8},
		},
		ReviewCount: 6,
	}
	c.Assert(r.Summary(), check.Equals, "Acme: grade C (72.3/100) from 4 sites and 6 reviews")
	c.Assert(r.TopQuotes(1, true)[0].Text, check.Equals, "love")
	c.Assert(r.TopQuotes(2, false)[1].Text, check.Equals, "meh")
}
