package source

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/elonfeng/presence/internal/logging"
	"github.com/elonfeng/presence/pkg/rating"
)

const (
	placesEndpoint = "https://maps.googleapis.com/maps/api/place"
	placesFields   = "name,rating,user_ratings_total,url,reviews"
	googleSite     = "Google"
)

// PlaceDetails is what a places backend knows about the best match.
type PlaceDetails struct {
	Name        string         `json:"name"`
	Rating      *float64       `json:"rating,omitempty"`
	ReviewCount int            `json:"review_count"`
	MapsURL     string         `json:"maps_url"`
	Reviews     []ReviewRecord `json:"reviews"`
}

// PlacesBackend looks up a place by free text. A nil result with a nil
// error means the place is unknown.
type PlacesBackend interface {
	FetchPlaceDetails(ctx context.Context, query string) (*PlaceDetails, error)
}

// GooglePlaces talks to the Google Places text search and details APIs.
type GooglePlaces struct {
	client   *http.Client
	apiKey   string
	endpoint string
	logger   *logrus.Entry
}

// NewGooglePlaces creates a Places client.
func NewGooglePlaces(apiKey string, timeout time.Duration, logger *logrus.Entry) *GooglePlaces {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &GooglePlaces{
		client:   &http.Client{Timeout: timeout},
		apiKey:   apiKey,
		endpoint: placesEndpoint,
		logger:   logging.OrDiscard(logger),
	}
}

// WithEndpoint points the client at another base URL.
func (g *GooglePlaces) WithEndpoint(endpoint string) *GooglePlaces {
	g.endpoint = endpoint
	return g
}

type placesSearchResponse struct {
	Status       string `json:"status"`
	ErrorMessage string `json:"error_message"`
	Results      []struct {
		PlaceID string `json:"place_id"`
	} `json:"results"`
}

type placesDetailsResponse struct {
	Status       string `json:"status"`
	ErrorMessage string `json:"error_message"`
	Result       struct {
		Name             string   `json:"name"`
		Rating           *float64 `json:"rating"`
		UserRatingsTotal int      `json:"user_ratings_total"`
		URL              string   `json:"url"`
		Reviews          []struct {
			AuthorName              string   `json:"author_name"`
			Rating                  *float64 `json:"rating"`
			Text                    string   `json:"text"`
			Time                    int64    `json:"time"`
			RelativeTimeDescription string   `json:"relative_time_description"`
		} `json:"reviews"`
	} `json:"result"`
}

func (g *GooglePlaces) FetchPlaceDetails(ctx context.Context, query string) (*PlaceDetails, error) {
	if g.apiKey == "" {
		g.logger.Debug("google places disabled: missing api key")
		return nil, nil
	}

	var search placesSearchResponse
	params := url.Values{"query": {query}, "key": {g.apiKey}}
	if err := g.get(ctx, "/textsearch/json", params, &search); err != nil {
		return nil, fmt.Errorf("search places: %w", err)
	}
	if err := placesStatus(search.Status, search.ErrorMessage); err != nil {
		return nil, fmt.Errorf("search places: %w", err)
	}
	if len(search.Results) == 0 || search.Results[0].PlaceID == "" {
		return nil, nil
	}

	var details placesDetailsResponse
	params = url.Values{
		"place_id": {search.Results[0].PlaceID},
		"fields":   {placesFields},
		"key":      {g.apiKey},
	}
	if err := g.get(ctx, "/details/json", params, &details); err != nil {
		return nil, fmt.Errorf("fetch place details: %w", err)
	}
	if err := placesStatus(details.Status, details.ErrorMessage); err != nil {
		return nil, fmt.Errorf("fetch place details: %w", err)
	}

	r := details.Result
	place := &PlaceDetails{
		Name:        r.Name,
		ReviewCount: r.UserRatingsTotal,
		MapsURL:     r.URL,
	}
	if r.Rating != nil {
		place.Rating = floatPtr(rating.Clamp(*r.Rating))
	}
	for _, rv := range r.Reviews {
		review := ReviewRecord{
			Site:        googleSite,
			Text:        rv.Text,
			URL:         r.URL,
			Author:      rv.AuthorName,
			PublishedAt: rv.RelativeTimeDescription,
		}
		if rv.Rating != nil {
			review.Rating = floatPtr(rating.Clamp(*rv.Rating))
		}
		if rv.Time > 0 {
			review.PublishedAt = time.Unix(rv.Time, 0).UTC().Format(time.RFC3339)
		}
		place.Reviews = append(place.Reviews, review)
	}
	return place, nil
}

func (g *GooglePlaces) get(ctx context.Context, path string, params url.Values, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.endpoint+path+"?"+params.Encode(), nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	resp, err := g.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("status %d", resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func placesStatus(status, message string) error {
	switch status {
	case "OK", "ZERO_RESULTS", "":
		return nil
	}
	if message != "" {
		return fmt.Errorf("status %s: %s", status, message)
	}
	return fmt.Errorf("status %s", status)
}

// PlacesAdapter exposes a places backend as an Adapter.
type PlacesAdapter struct {
	backend PlacesBackend
}

// NewPlacesAdapter creates the places adapter.
func NewPlacesAdapter(backend PlacesBackend) *PlacesAdapter {
	return &PlacesAdapter{backend: backend}
}

func (a *PlacesAdapter) Name() string { return "places" }
func (a *PlacesAdapter) Kind() Kind   { return KindPlaces }

func (a *PlacesAdapter) Fetch(ctx context.Context, req Request) (Result, error) {
	place, err := a.backend.FetchPlaceDetails(ctx, req.Query)
	if err != nil {
		return Result{}, err
	}
	if place == nil {
		return Result{}, nil
	}

	var res Result
	if place.MapsURL != "" {
		rec := NewRecord(place.MapsURL)
		rec.Title = place.Name
		rec.Rating = place.Rating
		rec.Origin = a.Name()
		rec.FullText = strings.ToLower(place.Name)
		res.Sources = append(res.Sources, rec)
	}

	reviews := place.Reviews
	if req.MaxReviews > 0 && len(reviews) > req.MaxReviews {
		reviews = reviews[:req.MaxReviews]
	}
	res.Reviews = append(res.Reviews, reviews...)
	res.ReviewTotal = place.ReviewCount
	return res, nil
}
