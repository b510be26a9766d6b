package source

import (
	"context"
	"fmt"
	"strings"
)

// SearchAdapter runs a keyword search and turns every hit into a page record.
type SearchAdapter struct {
	name     string
	searcher Searcher
	pages    PageFetcher
	filter   *Filter
}

// NewSearchAdapter wires a searcher to a page fetcher. backend names the
// searcher, e.g. "google" or "news". pages may be nil to keep search data only.
func NewSearchAdapter(backend string, searcher Searcher, pages PageFetcher, filter *Filter) *SearchAdapter {
	return &SearchAdapter{
		name:     "search:" + backend,
		searcher: searcher,
		pages:    pages,
		filter:   filter,
	}
}

func (a *SearchAdapter) Name() string { return a.name }
func (a *SearchAdapter) Kind() Kind   { return KindSearch }

func (a *SearchAdapter) Fetch(ctx context.Context, req Request) (Result, error) {
	hits, err := a.searcher.Search(ctx, req.Query, req.MaxResults)
	if err != nil && len(hits) == 0 {
		return Result{}, fmt.Errorf("search %q: %w", req.Query, err)
	}

	var res Result
	for _, hit := range hits {
		if !a.filter.Allows(hit.URL) {
			continue
		}
		res.Sources = append(res.Sources, a.record(ctx, hit))
	}
	if err != nil {
		return res, fmt.Errorf("search %q: %w", req.Query, err)
	}
	return res, nil
}

// record fetches the hit's page and lets search data fill the gaps. Once
// ctx is done pages are no longer fetched and the record holds search data
// only.
func (a *SearchAdapter) record(ctx context.Context, hit SearchResult) SourceRecord {
	rec := NewRecord(hit.URL)
	if a.pages != nil && ctx.Err() == nil {
		rec = a.pages.Fetch(ctx, hit.URL)
	}
	if rec.Title == "" {
		rec.Title = hit.Title
	}
	if rec.Snippet == "" {
		rec.Snippet = Snippet(hit.Snippet)
	}
	if rec.FullText == "" {
		rec.FullText = strings.ToLower(strings.TrimSpace(hit.Title + " " + hit.Snippet))
	}
	if rec.PublishedAt == nil && hit.PublishedAt != nil {
		t := *hit.PublishedAt
		rec.PublishedAt = &t
	}
	rec.Origin = a.name
	return rec
}
