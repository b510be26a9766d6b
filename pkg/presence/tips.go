package presence

import (
	"fmt"
	"strings"

	"github.com/juju/clock"

	"github.com/elonfeng/presence/pkg/query"
)

// TipCategory groups recommendations on the dashboard.
type TipCategory string

const (
	TipSearchContext TipCategory = "Search Context"
	TipReputation    TipCategory = "Reputation"
	TipVolume        TipCategory = "Volume"
	TipSentiment     TipCategory = "Sentiment"
	TipPresence      TipCategory = "Presence"
	TipRecency       TipCategory = "Recency"
	TipCompany       TipCategory = "Company"
)

// TipCategories lists the categories in display order.
var TipCategories = []TipCategory{
	TipSearchContext, TipReputation, TipVolume, TipSentiment, TipPresence, TipRecency, TipCompany,
}

// Tip is one recommendation.
type Tip struct {
	Category TipCategory `json:"category"`
	Message  string      `json:"message"`
}

// Rules holds the thresholds the recommender applies.
type Rules struct {
	LowPresenceSites  int     `yaml:"low_presence_sites" json:"low_presence_sites"`
	LowVolumeReviews  int     `yaml:"low_volume_reviews" json:"low_volume_reviews"`
	HealthyVolume     int     `yaml:"healthy_volume_reviews" json:"healthy_volume_reviews"`
	ExcellentRating   float64 `yaml:"excellent_rating" json:"excellent_rating"`
	MixedRating       float64 `yaml:"mixed_rating" json:"mixed_rating"`
	PositiveThreshold float64 `yaml:"positive_threshold" json:"positive_threshold"`
	PositiveRatio     float64 `yaml:"positive_ratio" json:"positive_ratio"`
	NegativeRatio     float64 `yaml:"negative_ratio" json:"negative_ratio"`
	StaleDays         int     `yaml:"stale_days" json:"stale_days"`
	ModerateDays      int     `yaml:"moderate_days" json:"moderate_days"`
	LowCompanyLinkage float64 `yaml:"low_company_linkage" json:"low_company_linkage"`
}

// DefaultRules returns the canonical thresholds.
func DefaultRules() Rules {
	return Rules{
		LowPresenceSites:  8,
		LowVolumeReviews:  5,
		HealthyVolume:     50,
		ExcellentRating:   4.5,
		MixedRating:       3.0,
		PositiveThreshold: 0.2,
		PositiveRatio:     0.75,
		NegativeRatio:     0.4,
		StaleDays:         365,
		ModerateDays:      90,
		LowCompanyLinkage: 0.1,
	}
}

// tipSet keeps tips in insertion order and drops repeated messages.
type tipSet struct {
	tips []Tip
	seen map[string]bool
}

func newTipSet() *tipSet {
	return &tipSet{seen: make(map[string]bool)}
}

// Add appends a tip unless its message is already present.
func (t *tipSet) Add(category TipCategory, format string, args ...any) bool {
	msg := format
	if len(args) > 0 {
		msg = fmt.Sprintf(format, args...)
	}
	if t.seen[msg] {
		return false
	}
	t.seen[msg] = true
	t.tips = append(t.tips, Tip{Category: category, Message: msg})
	return true
}

// Recommender derives tips from stats and the score breakdown.
type Recommender struct {
	rules Rules
	clock clock.Clock
}

// NewRecommender creates a recommender. Zero rules select DefaultRules and
// a nil clock selects the wall clock.
func NewRecommender(rules Rules, clk clock.Clock) *Recommender {
	if rules == (Rules{}) {
		rules = DefaultRules()
	}
	if clk == nil {
		clk = clock.WallClock
	}
	return &Recommender{rules: rules, clock: clk}
}

// Tips evaluates every rule independently. Missing data skips a rule.
func (r *Recommender) Tips(stats Stats, breakdown map[Category]float64, reviewCount int, sentimentValues []float64, in query.Inputs) []Tip {
	set := newTipSet()
	rules := r.rules

	if strings.TrimSpace(in.City) == "" {
		set.Add(TipSearchContext, "Add a city to narrow results to your local market.")
	}
	if strings.TrimSpace(in.Profession) == "" && strings.TrimSpace(in.Company) == "" {
		set.Add(TipSearchContext, "Add a profession or company name to disambiguate common names.")
	}

	switch avg := stats.AvgRating; {
	case avg == nil:
		set.Add(TipReputation, "No ratings detected. Claim your listings on review sites and ask customers for reviews.")
	case *avg >= rules.ExcellentRating:
		set.Add(TipReputation, "Excellent average rating (%.1f). Showcase top reviews on your website and profiles.", *avg)
	case *avg >= rules.MixedRating:
		set.Add(TipReputation, "Mixed ratings (%.1f). Respond to critical reviews and invite satisfied customers to leave feedback.", *avg)
	default:
		set.Add(TipReputation, "Low average rating (%.1f). Address recurring complaints and respond publicly to negative reviews.", *avg)
	}

	if reviewCount < rules.LowVolumeReviews {
		set.Add(TipVolume, "Few reviews found (%d). Ask recent customers to review you on Google and industry sites.", reviewCount)
	} else if reviewCount > rules.HealthyVolume {
		set.Add(TipVolume, "Healthy review volume (%d). Keep the momentum with a steady review request routine.", reviewCount)
	}

	if len(sentimentValues) > 0 {
		positive := 0
		for _, v := range sentimentValues {
			if v > rules.PositiveThreshold {
				positive++
			}
		}
		ratio := float64(positive) / float64(max(1, len(sentimentValues)))
		if ratio > rules.PositiveRatio {
			set.Add(TipSentiment, "Most mentions are positive. Feature these quotes in your marketing.")
		} else if ratio < rules.NegativeRatio {
			set.Add(TipSentiment, "Sentiment skews negative. Identify common themes in critical mentions and address them.")
		}
	}

	if stats.NumSites == 0 && reviewCount == 0 {
		set.Add(TipPresence, "No online mentions were found. Check the spelling or add details such as city or profession.")
	}
	if stats.NumSites < rules.LowPresenceSites {
		set.Add(TipPresence, "Limited online presence (%d sites). Create or claim profiles on directories and social networks.", stats.NumSites)
	}

	if stats.MostRecentDate != nil {
		if days, ok := DaysSince(*stats.MostRecentDate, r.clock.Now()); ok {
			if days > rules.StaleDays {
				set.Add(TipRecency, "Newest content is over a year old. Publish fresh updates, posts or articles.")
			} else if days > rules.ModerateDays {
				set.Add(TipRecency, "Content is a few months old. Post updates regularly to stay visible.")
			}
		}
	}

	if company := strings.TrimSpace(in.Company); company != "" && stats.CompanyPrevalence < rules.LowCompanyLinkage {
		set.Add(TipCompany, "Few sources mention %s. Link your profiles and bios to the company name.", company)
	}

	return set.tips
}

// GroupTips splits tips by category in display order, skipping empty groups.
func GroupTips(tips []Tip) []TipGroup {
	var groups []TipGroup
	for _, c := range TipCategories {
		var msgs []string
		for _, t := range tips {
			if t.Category == c {
				msgs = append(msgs, t.Message)
			}
		}
		if len(msgs) > 0 {
			groups = append(groups, TipGroup{Category: c, Messages: msgs})
		}
	}
	return groups
}

// TipGroup is the tips of one category.
type TipGroup struct {
	Category TipCategory
	Messages []string
}
