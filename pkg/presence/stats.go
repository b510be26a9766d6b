package presence

import (
	"context"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/araddon/dateparse"

	"github.com/elonfeng/presence/pkg/rating"
	"github.com/elonfeng/presence/pkg/sentiment"
	"github.com/elonfeng/presence/pkg/source"
)

// ReviewTextLimit bounds the review prefix sent to the sentiment scorer.
const ReviewTextLimit = 512

// Stats aggregates one query's sources and reviews.
type Stats struct {
	NumSites          int        `json:"num_sites"`
	UniqueDomains     int        `json:"unique_domains"`
	AvgRating         *float64   `json:"avg_rating"`
	AvgSentiment      float64    `json:"avg_sentiment"`
	MostRecentDate    *time.Time `json:"most_recent_date"`
	CompanyPrevalence float64    `json:"company_prevalence"`
}

// Quote is one scored text, shown on the dashboard.
type Quote struct {
	Site      string  `json:"site"`
	URL       string  `json:"url"`
	Text      string  `json:"text"`
	Sentiment float64 `json:"sentiment"`
}

// Aggregator merges records from every adapter into Stats.
type Aggregator struct {
	sentiment sentiment.Scorer
}

// NewAggregator creates an aggregator. A nil scorer selects the lexicon.
func NewAggregator(scorer sentiment.Scorer) *Aggregator {
	if scorer == nil {
		scorer = sentiment.NewLexicon()
	}
	return &Aggregator{sentiment: scorer}
}

// Aggregate computes Stats and returns the per-item sentiment values in
// the order of Representatives.
func (a *Aggregator) Aggregate(ctx context.Context, sources []source.SourceRecord, reviews []source.ReviewRecord, company string) (Stats, []float64) {
	stats := Stats{NumSites: len(sources)}

	domains := make(map[string]struct{})
	for _, s := range sources {
		if s.Domain != "" {
			domains[s.Domain] = struct{}{}
		}
	}
	stats.UniqueDomains = len(domains)

	stats.AvgRating = averageRating(sources, reviews)
	stats.MostRecentDate = mostRecent(sources, reviews)
	stats.CompanyPrevalence = prevalence(sources, company)

	var values []float64
	if quotes := Representatives(sources, reviews); len(quotes) > 0 {
		texts := make([]string, len(quotes))
		for i, q := range quotes {
			texts[i] = q.Text
		}
		values = a.sentiment.Score(ctx, texts)
		for i := range values {
			values[i] = sentiment.Clamp(values[i])
		}
		stats.AvgSentiment = sentiment.Clamp(mean(values))
	}
	return stats, values
}

// Representatives lists the text scored for each item: the snippet (or
// title) of every source, then the bounded text of every review. Items
// without text are left out.
func Representatives(sources []source.SourceRecord, reviews []source.ReviewRecord) []Quote {
	var quotes []Quote
	for _, s := range sources {
		text := strings.TrimSpace(s.Snippet)
		if text == "" {
			text = strings.TrimSpace(s.Title)
		}
		if text == "" {
			continue
		}
		quotes = append(quotes, Quote{Site: s.Domain, URL: s.URL, Text: text})
	}
	for _, r := range reviews {
		text := truncateBytes(strings.TrimSpace(r.Text), ReviewTextLimit)
		if text == "" {
			continue
		}
		quotes = append(quotes, Quote{Site: r.Site, URL: r.URL, Text: text})
	}
	return quotes
}

// WithSentiment pairs representatives with their sentiment values.
func WithSentiment(quotes []Quote, values []float64) []Quote {
	out := make([]Quote, 0, len(quotes))
	for i, q := range quotes {
		if i < len(values) {
			q.Sentiment = values[i]
		}
		out = append(out, q)
	}
	return out
}

func averageRating(sources []source.SourceRecord, reviews []source.ReviewRecord) *float64 {
	var pool []float64
	add := func(v *float64) {
		if v == nil {
			return
		}
		if r, ok := rating.Normalize(*v); ok {
			pool = append(pool, r)
		}
	}
	for _, s := range sources {
		add(s.Rating)
	}
	for _, r := range reviews {
		add(r.Rating)
	}
	if len(pool) == 0 {
		return nil
	}
	avg := mean(pool)
	return &avg
}

// mostRecent returns the newest date found. Review dates that do not parse,
// relative expressions included, are skipped.
func mostRecent(sources []source.SourceRecord, reviews []source.ReviewRecord) *time.Time {
	var latest *time.Time
	consider := func(t time.Time) {
		if latest == nil || t.After(*latest) {
			latest = &t
		}
	}
	for _, s := range sources {
		if s.PublishedAt != nil {
			consider(*s.PublishedAt)
		}
	}
	for _, r := range reviews {
		if t, ok := ParseDate(r.PublishedAt); ok {
			consider(t)
		}
	}
	return latest
}

// minDateYear rejects parses that lost the year, e.g. "Jan 2".
const minDateYear = 1990

// ParseDate parses an absolute date in any common layout.
func ParseDate(raw string) (time.Time, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, false
	}
	t, err := dateparse.ParseAny(raw)
	if err != nil || t.Year() < minDateYear {
		return time.Time{}, false
	}
	return t.UTC(), true
}

func prevalence(sources []source.SourceRecord, company string) float64 {
	company = strings.ToLower(strings.TrimSpace(company))
	if company == "" || len(sources) == 0 {
		return 0
	}
	hits := 0
	for _, s := range sources {
		if strings.Contains(strings.ToLower(s.FullText), company) {
			hits++
		}
	}
	return float64(hits) / float64(len(sources))
}

func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

// truncateBytes cuts s to at most n bytes without splitting a rune.
func truncateBytes(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}
