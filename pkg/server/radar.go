package server

import (
	"fmt"
	"html/template"
	"math"
	"strings"
	"time"

	"github.com/elonfeng/presence/pkg/presence"
)

const (
	radarSize   = 320.0
	radarRadius = 110.0
	labelRadius = 135.0
)

var radarRings = []float64{25, 50, 75, 100}

// radar is the precomputed geometry of the breakdown chart.
type radar struct {
	Size    float64
	Center  float64
	Rings   []string
	Axes    []radarAxis
	Polygon string
}

type radarAxis struct {
	Label          string
	Value          float64
	X, Y           float64
	LabelX, LabelY float64
}

// newRadar lays out one axis per score category, starting at the top and
// going clockwise. Values are clamped to [0, 100].
func newRadar(breakdown map[presence.Category]float64) radar {
	center := radarSize / 2
	n := len(presence.Categories)
	r := radar{Size: radarSize, Center: center}

	point := func(i int, radius float64) (float64, float64) {
		angle := -math.Pi/2 + 2*math.Pi*float64(i)/float64(n)
		return round(center + radius*math.Cos(angle)), round(center + radius*math.Sin(angle))
	}

	for _, ring := range radarRings {
		pts := make([]string, n)
		for i := range presence.Categories {
			x, y := point(i, radarRadius*ring/100)
			pts[i] = fmt.Sprintf("%g,%g", x, y)
		}
		r.Rings = append(r.Rings, strings.Join(pts, " "))
	}

	poly := make([]string, n)
	for i, cat := range presence.Categories {
		v := math.Max(0, math.Min(100, breakdown[cat]))
		x, y := point(i, radarRadius)
		lx, ly := point(i, labelRadius)
		r.Axes = append(r.Axes, radarAxis{Label: string(cat), Value: v, X: x, Y: y, LabelX: lx, LabelY: ly})

		px, py := point(i, radarRadius*v/100)
		poly[i] = fmt.Sprintf("%g,%g", px, py)
	}
	r.Polygon = strings.Join(poly, " ")
	return r
}

func round(v float64) float64 {
	return math.Round(v*10) / 10
}

var templateFuncs = template.FuncMap{
	"score": func(v float64) string { return fmt.Sprintf("%.1f", v) },
	"rating": func(v *float64) string {
		if v == nil {
			return "n/a"
		}
		return fmt.Sprintf("%.1f", *v)
	},
	"date": func(t *time.Time) string {
		if t == nil {
			return "n/a"
		}
		return t.Format("2006-01-02")
	},
	"percent":   func(v float64) string { return fmt.Sprintf("%.0f%%", v*100) },
	"sentiment": func(v float64) string { return fmt.Sprintf("%+.2f", v) },
	"gradeClass": func(grade string) string {
		return "grade-" + strings.ToLower(grade)
	},
}
