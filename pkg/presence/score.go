package presence

import (
	"math"
	"time"

	"github.com/juju/clock"
)

// Category names one sub-score of the composite.
type Category string

const (
	CategorySites     Category = "sites"
	CategoryRating    Category = "rating"
	CategorySentiment Category = "sentiment"
	CategoryRecency   Category = "recency"
	CategoryCompany   Category = "company"
)

// Categories lists the breakdown keys in display order.
var Categories = []Category{CategorySites, CategoryRating, CategorySentiment, CategoryRecency, CategoryCompany}

// SitesSaturation is the site count that earns a full sites sub-score.
const SitesSaturation = 50

// Recency sub-score when a date exists but yields no usable age.
const unusableDateScore = 20

// Weights of each sub-score in the composite.
type Weights struct {
	Sites     float64 `yaml:"sites" json:"sites"`
	Rating    float64 `yaml:"rating" json:"rating"`
	Sentiment float64 `yaml:"sentiment" json:"sentiment"`
	Recency   float64 `yaml:"recency" json:"recency"`
	Company   float64 `yaml:"company" json:"company"`
}

// DefaultWeights favours breadth of presence and average rating.
func DefaultWeights() Weights {
	return Weights{Sites: 0.35, Rating: 0.30, Sentiment: 0.15, Recency: 0.10, Company: 0.10}
}

// Sum returns the total weight.
func (w Weights) Sum() float64 {
	return w.Sites + w.Rating + w.Sentiment + w.Recency + w.Company
}

func (w Weights) of(c Category) float64 {
	switch c {
	case CategorySites:
		return w.Sites
	case CategoryRating:
		return w.Rating
	case CategorySentiment:
		return w.Sentiment
	case CategoryRecency:
		return w.Recency
	case CategoryCompany:
		return w.Company
	}
	return 0
}

// ScoreResult is the composite score with its grade and breakdown.
type ScoreResult struct {
	Score     float64              `json:"score"`
	Grade     string               `json:"grade"`
	Breakdown map[Category]float64 `json:"breakdown"`
}

// Scorer turns Stats into a ScoreResult.
type Scorer struct {
	weights Weights
	clock   clock.Clock
}

// NewScorer creates a scorer. All-zero weights select DefaultWeights and a
// nil clock selects the wall clock.
func NewScorer(w Weights, clk clock.Clock) *Scorer {
	if w.Sum() == 0 {
		w = DefaultWeights()
	}
	if clk == nil {
		clk = clock.WallClock
	}
	return &Scorer{weights: w, clock: clk}
}

// Weights returns the weights in use.
func (s *Scorer) Weights() Weights { return s.weights }

// Score computes every sub-score and their weighted sum, clamped to [0, 100].
func (s *Scorer) Score(stats Stats) ScoreResult {
	var avgRating float64
	if stats.AvgRating != nil {
		avgRating = *stats.AvgRating
	}

	breakdown := map[Category]float64{
		CategorySites:     clamp(float64(min(stats.NumSites, SitesSaturation))/SitesSaturation*100, 0, 100),
		CategoryRating:    clamp(avgRating/5*100, 0, 100),
		CategorySentiment: clamp((stats.AvgSentiment+1)/2*100, 0, 100),
		CategoryRecency:   s.RecencyScore(stats.MostRecentDate),
		CategoryCompany:   clamp(stats.CompanyPrevalence*100, 0, 100),
	}

	var total float64
	for _, c := range Categories {
		total += s.weights.of(c) * breakdown[c]
	}
	score := clamp(total, 0, 100)
	return ScoreResult{Score: score, Grade: Grade(score), Breakdown: breakdown}
}

// RecencyScore steps down with the age of the newest date.
func (s *Scorer) RecencyScore(date *time.Time) float64 {
	if date == nil {
		return 0
	}
	days, ok := DaysSince(*date, s.clock.Now())
	if !ok {
		return unusableDateScore
	}
	switch {
	case days <= 7:
		return 100
	case days <= 30:
		return 80
	case days <= 90:
		return 50
	case days <= 365:
		return 30
	default:
		return 10
	}
}

// DaysSince returns the whole days between t and now. A zero t, or one more
// than a day in the future, has no usable age.
func DaysSince(t, now time.Time) (int, bool) {
	if t.IsZero() {
		return 0, false
	}
	age := now.Sub(t)
	if age < -24*time.Hour {
		return 0, false
	}
	if age < 0 {
		return 0, true
	}
	return int(math.Floor(age.Hours() / 24)), true
}

// Grade maps a score to a letter. Boundaries are inclusive from below.
func Grade(score float64) string {
	switch {
	case score >= 90:
		return "A"
	case score >= 80:
		return "B"
	case score >= 70:
		return "C"
	case score >= 60:
		return "D"
	default:
		return "F"
	}
}

func clamp(v, lo, hi float64) float64 {
	if math.IsNaN(v) {
		return lo
	}
	return math.Max(lo, math.Min(hi, v))
}
