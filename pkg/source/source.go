package source

import (
	"context"
	"net/url"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/elonfeng/presence/pkg/query"
)

// Kind identifies which adapter variant produced a result.
type Kind string

const (
	KindSearch  Kind = "search"
	KindPlaces  Kind = "places"
	KindScraper Kind = "scraper"
)

// SnippetLen bounds snippets derived from page text.
const SnippetLen = 300

// SourceRecord is one web page found for a query.
type SourceRecord struct {
	URL         string     `json:"url"`
	Domain      string     `json:"domain"`
	Title       string     `json:"title,omitempty"`
	Snippet     string     `json:"snippet,omitempty"`
	Rating      *float64   `json:"rating,omitempty"`
	PublishedAt *time.Time `json:"published_at,omitempty"`
	FullText    string     `json:"full_text,omitempty"` // lowercase, only used for containment checks
	Origin      string     `json:"origin,omitempty"`
}

// NewRecord returns a record carrying only the URL and its domain.
func NewRecord(rawURL string) SourceRecord {
	return SourceRecord{URL: rawURL, Domain: Domain(rawURL)}
}

// ReviewRecord is one review taken from a named review site.
type ReviewRecord struct {
	Site        string   `json:"site"`
	Text        string   `json:"text"`
	Rating      *float64 `json:"rating,omitempty"`
	URL         string   `json:"url,omitempty"`
	Author      string   `json:"author,omitempty"`
	PublishedAt string   `json:"published_at,omitempty"` // raw; may be relative ("2 months ago")
}

// Request is what every adapter receives for one analysis.
type Request struct {
	Query      string
	Inputs     query.Inputs
	MaxResults int
	MaxReviews int
}

// Result holds whatever an adapter managed to collect.
type Result struct {
	Sources []SourceRecord
	Reviews []ReviewRecord
	// ReviewTotal is the review count reported by the backend, 0 when unknown.
	ReviewTotal int
}

//go:generate mockgen -package mock_source -destination mocks/mocks.go github.com/elonfeng/presence/pkg/source Adapter,Searcher,PageFetcher,PlacesBackend

// Adapter is the interface every data source implements. Fetch may return
// partial results together with an error.
type Adapter interface {
	Name() string
	Kind() Kind
	Fetch(ctx context.Context, req Request) (Result, error)
}

// Diagnostic describes how one adapter call went.
type Diagnostic struct {
	Adapter  string        `json:"adapter"`
	Kind     Kind          `json:"kind"`
	Records  int           `json:"records"`
	Reviews  int           `json:"reviews"`
	Duration time.Duration `json:"duration"`
	Err      string        `json:"error,omitempty"`
}

// OK reports whether the call finished without error.
func (d Diagnostic) OK() bool { return d.Err == "" }

// Domain returns the host of rawURL without a leading "www.".
func Domain(rawURL string) string {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil || u.Host == "" {
		return ""
	}
	return strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")
}

// Snippet collapses whitespace and cuts text to SnippetLen runes plus "...".
func Snippet(text string) string {
	text = strings.Join(strings.Fields(text), " ")
	if utf8.RuneCountInString(text) <= SnippetLen {
		return text
	}
	r := []rune(text)
	return strings.TrimSpace(string(r[:SnippetLen])) + "..."
}

func floatPtr(v float64) *float64 { return &v }
