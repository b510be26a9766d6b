package source

import (
	"context"
	"errors"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/elonfeng/presence/internal/cache"
	"github.com/elonfeng/presence/internal/logging"
)

// DefaultCacheTTL is how long external answers are reused.
const DefaultCacheTTL = time.Hour

var errEmptyPage = errors.New("empty page record")

// CachedSearcher memoizes a Searcher by query and result count.
type CachedSearcher struct {
	next   Searcher
	name   string
	cache  cache.Cache
	ttl    time.Duration
	logger *logrus.Entry
}

// NewCachedSearcher wraps next. name distinguishes backends sharing a cache.
func NewCachedSearcher(name string, next Searcher, c cache.Cache, ttl time.Duration, logger *logrus.Entry) *CachedSearcher {
	return &CachedSearcher{next: next, name: name, cache: c, ttl: ttlOrDefault(ttl), logger: logging.OrDiscard(logger)}
}

func (s *CachedSearcher) Search(ctx context.Context, query string, max int) ([]SearchResult, error) {
	key := cache.Key("search", s.name, query, max)
	return cache.Fetch(ctx, s.cache, key, s.ttl, s.logger, func(ctx context.Context) ([]SearchResult, error) {
		s.logger.WithField("query", query).Debug("search cache miss")
		return s.next.Search(ctx, query, max)
	})
}

// CachedPageFetcher memoizes page records by URL. Records that carry
// nothing beyond the URL are treated as failures and not cached.
type CachedPageFetcher struct {
	next   PageFetcher
	cache  cache.Cache
	ttl    time.Duration
	logger *logrus.Entry
}

// NewCachedPageFetcher wraps next.
func NewCachedPageFetcher(next PageFetcher, c cache.Cache, ttl time.Duration, logger *logrus.Entry) *CachedPageFetcher {
	return &CachedPageFetcher{next: next, cache: c, ttl: ttlOrDefault(ttl), logger: logging.OrDiscard(logger)}
}

func (p *CachedPageFetcher) Fetch(ctx context.Context, rawURL string) SourceRecord {
	rec, _ := cache.Fetch(ctx, p.cache, cache.Key("page", rawURL), p.ttl, p.logger, func(ctx context.Context) (SourceRecord, error) {
		rec := p.next.Fetch(ctx, rawURL)
		if rec == NewRecord(rawURL) {
			return rec, errEmptyPage
		}
		return rec, nil
	})
	return rec
}

// CachedPlaces memoizes a PlacesBackend by query.
type CachedPlaces struct {
	next   PlacesBackend
	cache  cache.Cache
	ttl    time.Duration
	logger *logrus.Entry
}

// NewCachedPlaces wraps next.
func NewCachedPlaces(next PlacesBackend, c cache.Cache, ttl time.Duration, logger *logrus.Entry) *CachedPlaces {
	return &CachedPlaces{next: next, cache: c, ttl: ttlOrDefault(ttl), logger: logging.OrDiscard(logger)}
}

func (p *CachedPlaces) FetchPlaceDetails(ctx context.Context, query string) (*PlaceDetails, error) {
	return cache.Fetch(ctx, p.cache, cache.Key("places", query), p.ttl, p.logger, func(ctx context.Context) (*PlaceDetails, error) {
		return p.next.FetchPlaceDetails(ctx, query)
	})
}

func ttlOrDefault(ttl time.Duration) time.Duration {
	if ttl <= 0 {
		return DefaultCacheTTL
	}
	return ttl
}
