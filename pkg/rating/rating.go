package rating

import (
	"math"
	"regexp"
	"strconv"
	"strings"
)

// Max is the upper bound of every extracted rating.
const Max = 5.0

var (
	slashExpr = regexp.MustCompile(`(\d+(?:\.\d+)?)(?:\s*/\s*5(?:\.0)?|\s5)(?:[^\d.]|$)`)
	outOfExpr = regexp.MustCompile(`(?i)(\d+(?:\.\d+)?)\s*out\s+of\s+5\b`)
	starsExpr = regexp.MustCompile(`(?i)(\d+(?:\.\d+)?)\s*-?\s*stars?\b`)
)

// numericPatterns are tried in order; the first match wins.
var numericPatterns = []*regexp.Regexp{slashExpr, outOfExpr, starsExpr}

// Half-star glyphs count as empty.
const (
	fullStar  = '★'
	emptyStar = '☆'
)

var halfStars = map[rune]bool{'⯪': true, '⯨': true, '½': true, '⯫': true}

// Extract pulls a 0-5 rating out of free text. The bool is false when
// nothing rating-like was found.
func Extract(text string) (float64, bool) {
	if strings.TrimSpace(text) == "" {
		return 0, false
	}

	for _, expr := range numericPatterns {
		m := expr.FindStringSubmatch(text)
		if m == nil {
			continue
		}
		v, err := strconv.ParseFloat(m[1], 64)
		if err != nil {
			continue
		}
		if v, ok := Normalize(v); ok {
			return v, true
		}
	}

	if v, ok := fromGlyphs(text); ok {
		return v, true
	}
	return 0, false
}

// Normalize clamps v to [0, Max]. NaN and infinities are rejected.
func Normalize(v float64) (float64, bool) {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return Clamp(v), true
}

// Clamp bounds v to [0, Max]. NaN becomes 0.
func Clamp(v float64) float64 {
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	if v > Max {
		return Max
	}
	return v
}

// fromGlyphs reads the first run of star glyphs, e.g. "★★★★☆" is 4.
func fromGlyphs(text string) (float64, bool) {
	var (
		inRun bool
		full  int
	)
	for _, r := range text {
		switch {
		case r == fullStar:
			inRun = true
			full++
		case r == emptyStar || halfStars[r]:
			inRun = true
		default:
			if inRun {
				return Clamp(float64(full)), true
			}
		}
	}
	if inRun {
		return Clamp(float64(full)), true
	}
	return 0, false
}
