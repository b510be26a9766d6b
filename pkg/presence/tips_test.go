package presence

import (
	"strings"

	"github.com/juju/clock/testclock"
	check "gopkg.in/check.v1"

	"github.com/elonfeng/presence/pkg/query"
)

var _ = check.Suite(new(tipsTestSuite))

type tipsTestSuite struct {
	rec *Recommender
	in  query.Inputs
}

func (s *tipsTestSuite) SetUpTest(c *check.C) {
	s.rec = NewRecommender(DefaultRules(), testclock.NewClock(now))
	s.in = query.Inputs{Name: "Jane Smith", City: "Chicago", Profession: "dentist"}
}

// healthy returns stats that trigger no rating, volume or presence warnings.
func healthy() Stats {
	return Stats{NumSites: 20, AvgRating: ptr(4.0), MostRecentDate: daysAgo(3), CompanyPrevalence: 1}
}

func categories(tips []Tip) []TipCategory {
	var out []TipCategory
	for _, t := range tips {
		out = append(out, t.Category)
	}
	return out
}

func messages(tips []Tip, cat TipCategory) []string {
	var out []string
	for _, t := range tips {
		if t.Category == cat {
			out = append(out, t.Message)
		}
	}
	return out
}

func (s *tipsTestSuite) TestDuplicateMessagesKeepFirst(c *check.C) {
	set := newTipSet()
	c.Assert(set.Add(TipPresence, "Claim your profiles."), check.Equals, true)
	c.Assert(set.Add(TipCompany, "Claim your profiles."), check.Equals, false)
	c.Assert(set.Add(TipVolume, "Few reviews found (%d).", 2), check.Equals, true)
	c.Assert(set.tips, check.DeepEquals, []Tip{
		{Category: TipPresence, Message: "Claim your profiles."},
		{Category: TipVolume, Message: "Few reviews found (2)."},
	})
}

func (s *tipsTestSuite) TestSearchContext(c *check.C) {
	tips := s.rec.Tips(healthy(), nil, 10, nil, query.Inputs{Name: "Jane Smith"})
	c.Assert(messages(tips, TipSearchContext), check.HasLen, 2)

	tips = s.rec.Tips(healthy(), nil, 10, nil, query.Inputs{Name: "Jane Smith", Company: "Acme"})
	c.Assert(messages(tips, TipSearchContext), check.DeepEquals, []string{
		"Add a city to narrow results to your local market.",
	})

	tips = s.rec.Tips(healthy(), nil, 10, nil, s.in)
	c.Assert(messages(tips, TipSearchContext), check.HasLen, 0)
}

func (s *tipsTestSuite) TestReputationBands(c *check.C) {
	cases := []struct {
		rating *float64
		prefix string
	}{
		{ptr(4.5), "Excellent average rating (4.5)"},
		{ptr(4.49), "Mixed ratings (4.5)"},
		{ptr(3.0), "Mixed ratings (3.0)"},
		{ptr(2.9), "Low average rating (2.9)"},
		{nil, "No ratings detected"},
	}
	for _, tc := range cases {
		stats := healthy()
		stats.AvgRating = tc.rating
		got := messages(s.rec.Tips(stats, nil, 10, nil, s.in), TipReputation)
		c.Assert(got, check.HasLen, 1)
		c.Assert(strings.HasPrefix(got[0], tc.prefix), check.Equals, true, check.Commentf("got %q", got[0]))
	}
}

func (s *tipsTestSuite) TestVolume(c *check.C) {
	c.Assert(messages(s.rec.Tips(healthy(), nil, 4, nil, s.in), TipVolume)[0], check.Matches, `Few reviews found \(4\).*`)
	c.Assert(messages(s.rec.Tips(healthy(), nil, 5, nil, s.in), TipVolume), check.HasLen, 0)
	c.Assert(messages(s.rec.Tips(healthy(), nil, 50, nil, s.in), TipVolume), check.HasLen, 0)
	c.Assert(messages(s.rec.Tips(healthy(), nil, 51, nil, s.in), TipVolume)[0], check.Matches, `Healthy review volume \(51\).*`)
}

func (s *tipsTestSuite) TestSentimentRatio(c *check.C) {
	positive := []float64{0.9, 0.5, 0.3, 0.8}
	c.Assert(messages(s.rec.Tips(healthy(), nil, 10, positive, s.in), TipSentiment), check.DeepEquals, []string{
		"Most mentions are positive. Feature these quotes in your marketing.",
	})

	mixed := []float64{0.9, 0.5, 0.1, 0.0}
	c.Assert(messages(s.rec.Tips(healthy(), nil, 10, mixed, s.in), TipSentiment), check.HasLen, 0)

	negative := []float64{0.2, -0.5, 0.9}
	got := messages(s.rec.Tips(healthy(), nil, 10, negative, s.in), TipSentiment)
	c.Assert(got, check.HasLen, 1)
	c.Assert(strings.HasPrefix(got[0], "Sentiment skews negative"), check.Equals, true)

	c.Assert(messages(s.rec.Tips(healthy(), nil, 10, nil, s.in), TipSentiment), check.HasLen, 0)
}

func (s *tipsTestSuite) TestPresence(c *check.C) {
	stats := healthy()
	stats.NumSites = 7
	got := messages(s.rec.Tips(stats, nil, 10, nil, s.in), TipPresence)
	c.Assert(got, check.HasLen, 1)
	c.Assert(got[0], check.Matches, `Limited online presence \(7 sites\).*`)

	stats.NumSites = 8
	c.Assert(messages(s.rec.Tips(stats, nil, 10, nil, s.in), TipPresence), check.HasLen, 0)
}

func (s *tipsTestSuite) TestNothingFound(c *check.C) {
	tips := s.rec.Tips(Stats{}, nil, 0, nil, s.in)
	got := messages(tips, TipPresence)
	c.Assert(got, check.HasLen, 2)
	c.Assert(strings.HasPrefix(got[0], "No online mentions were found"), check.Equals, true)
	c.Assert(categories(tips), check.DeepEquals, []TipCategory{
		TipReputation, TipVolume, TipPresence, TipPresence,
	})
}

func (s *tipsTestSuite) TestRecency(c *check.C) {
	cases := []struct {
		days int
		want int
	}{{30, 0}, {90, 0}, {91, 1}, {365, 1}, {366, 1}}
	for _, tc := range cases {
		stats := healthy()
		stats.MostRecentDate = daysAgo(tc.days)
		c.Assert(messages(s.rec.Tips(stats, nil, 10, nil, s.in), TipRecency), check.HasLen, tc.want, check.Commentf("%d days", tc.days))
	}

	stats := healthy()
	stats.MostRecentDate = daysAgo(400)
	c.Assert(messages(s.rec.Tips(stats, nil, 10, nil, s.in), TipRecency)[0], check.Matches, "Newest content is over a year old.*")
	stats.MostRecentDate = daysAgo(200)
	c.Assert(messages(s.rec.Tips(stats, nil, 10, nil, s.in), TipRecency)[0], check.Matches, "Content is a few months old.*")

	stats.MostRecentDate = ptr(now.AddDate(1, 0, 0))
	c.Assert(messages(s.rec.Tips(stats, nil, 10, nil, s.in), TipRecency), check.HasLen, 0)
}

func (s *tipsTestSuite) TestCompanyLinkage(c *check.C) {
	in := s.in
	in.Company = "Acme Health"
	stats := healthy()
	stats.CompanyPrevalence = 0.05
	c.Assert(messages(s.rec.Tips(stats, nil, 10, nil, in), TipCompany), check.DeepEquals, []string{
		"Few sources mention Acme Health. Link your profiles and bios to the company name.",
	})

	stats.CompanyPrevalence = 0.1
	c.Assert(messages(s.rec.Tips(stats, nil, 10, nil, in), TipCompany), check.HasLen, 0)

	stats.CompanyPrevalence = 0
	c.Assert(messages(s.rec.Tips(stats, nil, 10, nil, s.in), TipCompany), check.HasLen, 0)
}

func (s *tipsTestSuite) TestMessagesAreUnique(c *check.C) {
	tips := s.rec.Tips(Stats{}, nil, 0, []float64{-1, -1}, query.Inputs{Company: "Acme"})
	seen := make(map[string]bool)
	for _, t := range tips {
		c.Assert(seen[t.Message], check.Equals, false, check.Commentf("duplicate %q", t.Message))
		seen[t.Message] = true
	}
}

func (s *tipsTestSuite) TestGroupTips(c *check.C) {
	groups := GroupTips([]Tip{
		{Category: TipPresence, Message: "p1"},
		{Category: TipSearchContext, Message: "s1"},
		{Category: TipPresence, Message: "p2"},
	})
	c.Assert(groups, check.DeepEquals, []TipGroup{
		{Category: TipSearchContext, Messages: []string{"s1"}},
		{Category: TipPresence, Messages: []string{"p1", "p2"}},
	})
}
