package presence

import (
	"fmt"
	"sort"
	"time"

	"github.com/elonfeng/presence/pkg/query"
	"github.com/elonfeng/presence/pkg/source"
)

// Report is the transient result of one analysis.
type Report struct {
	ID              string                `json:"id"`
	GeneratedAt     time.Time             `json:"generated_at"`
	Inputs          query.Inputs          `json:"inputs"`
	Query           string                `json:"query"`
	Stats           Stats                 `json:"stats"`
	Score           ScoreResult           `json:"score"`
	Tips            []Tip                 `json:"tips"`
	Sources         []source.SourceRecord `json:"sources"`
	Reviews         []source.ReviewRecord `json:"reviews"`
	ReviewCount     int                   `json:"review_count"`
	Quotes          []Quote               `json:"quotes"`
	SentimentValues []float64             `json:"sentiment_values"`
	Diagnostics     []source.Diagnostic   `json:"diagnostics"`
}

// Summary is a one-line description of the outcome.
func (r *Report) Summary() string {
	return fmt.Sprintf("%s: grade %s (%.1f/100) from %d sites and %d reviews",
		r.Query, r.Score.Grade, r.Score.Score, r.Stats.NumSites, r.ReviewCount)
}

// TipGroups returns the tips grouped by category.
func (r *Report) TipGroups() []TipGroup {
	return GroupTips(r.Tips)
}

// TopQuotes returns up to n quotes, most positive first when positive is
// true, most negative first otherwise.
func (r *Report) TopQuotes(n int, positive bool) []Quote {
	quotes := append([]Quote(nil), r.Quotes...)
	sort.SliceStable(quotes, func(i, j int) bool {
		if positive {
			return quotes[i].Sentiment > quotes[j].Sentiment
		}
		return quotes[i].Sentiment < quotes[j].Sentiment
	})
	if n >= 0 && len(quotes) > n {
		quotes = quotes[:n]
	}
	return quotes
}

// FailedAdapters lists the diagnostics that carry an error.
func (r *Report) FailedAdapters() []source.Diagnostic {
	var failed []source.Diagnostic
	for _, d := range r.Diagnostics {
		if !d.OK() {
			failed = append(failed, d)
		}
	}
	return failed
}
