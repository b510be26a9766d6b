package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/elonfeng/presence/pkg/presence"
	"github.com/elonfeng/presence/pkg/source"
)

// Header is the first CSV row.
var Header = []string{"kind", "site", "domain", "url", "title", "rating", "published", "author", "text"}

// WriteCSV writes one row per source record followed by one row per review.
func WriteCSV(w io.Writer, r *presence.Report) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Header); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}

	for _, s := range r.Sources {
		if err := cw.Write(sourceRow(s)); err != nil {
			return fmt.Errorf("write source row: %w", err)
		}
	}
	for _, rv := range r.Reviews {
		if err := cw.Write(reviewRow(rv)); err != nil {
			return fmt.Errorf("write review row: %w", err)
		}
	}

	cw.Flush()
	return cw.Error()
}

func sourceRow(s source.SourceRecord) []string {
	published := ""
	if s.PublishedAt != nil {
		published = s.PublishedAt.UTC().Format(time.RFC3339)
	}
	return []string{"source", s.Origin, s.Domain, s.URL, s.Title, formatRating(s.Rating), published, "", s.Snippet}
}

func reviewRow(r source.ReviewRecord) []string {
	return []string{"review", r.Site, source.Domain(r.URL), r.URL, "", formatRating(r.Rating), r.PublishedAt, r.Author, r.Text}
}

func formatRating(v *float64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatFloat(*v, 'f', -1, 64)
}
