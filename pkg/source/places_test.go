package source

import (
	"context"
	"net/http"
	"net/http/httptest"
	"time"

	check "gopkg.in/check.v1"
)

var _ = check.Suite(new(placesTestSuite))

const placesDetailsFixture = `{
  "status": "OK",
  "result": {
    "name": "Acme Plumbing",
    "rating": 4.6,
    "user_ratings_total": 120,
    "url": "https://maps.google.com/?cid=42",
    "reviews": [
      {"author_name": "Ann", "rating": 5, "text": "Fixed our boiler fast.", "time": 1700000000, "relative_time_description": "a year ago"},
      {"author_name": "Bob", "rating": 3, "text": "Okay.", "relative_time_description": "2 months ago"}
    ]
  }
}`

type placesTestSuite struct{}

func placesServer(c *check.C, searchBody string) *httptest.Server {
	mux := http.NewServeMux()
	mux.HandleFunc("/textsearch/json", func(w http.ResponseWriter, r *http.Request) {
		c.Check(r.URL.Query().Get("query"), check.Equals, "Acme Plumbing Chicago")
		c.Check(r.URL.Query().Get("key"), check.Equals, "k")
		_, _ = w.Write([]byte(searchBody))
	})
	mux.HandleFunc("/details/json", func(w http.ResponseWriter, r *http.Request) {
		c.Check(r.URL.Query().Get("place_id"), check.Equals, "abc")
		c.Check(r.URL.Query().Get("fields"), check.Equals, placesFields)
		_, _ = w.Write([]byte(placesDetailsFixture))
	})
	return httptest.NewServer(mux)
}

func (s *placesTestSuite) TestFetchPlaceDetails(c *check.C) {
	srv := placesServer(c, `{"status":"OK","results":[{"place_id":"abc"}]}`)
	defer srv.Close()

	place, err := NewGooglePlaces("k", time.Second, nil).WithEndpoint(srv.URL).
		FetchPlaceDetails(context.Background(), "Acme Plumbing Chicago")
	c.Assert(err, check.IsNil)
	c.Assert(place, check.NotNil)
	c.Assert(place.Name, check.Equals, "Acme Plumbing")
	c.Assert(*place.Rating, check.Equals, 4.6)
	c.Assert(place.ReviewCount, check.Equals, 120)
	c.Assert(place.Reviews, check.HasLen, 2)
	c.Assert(place.Reviews[0].Site, check.Equals, "Google")
	c.Assert(place.Reviews[0].PublishedAt, check.Equals, "2023-11-14T22:13:20Z")
	c.Assert(place.Reviews[1].PublishedAt, check.Equals, "2 months ago")
	c.Assert(*place.Reviews[1].Rating, check.Equals, 3.0)
}

func (s *placesTestSuite) TestAdapterShapesResult(c *check.C) {
	srv := placesServer(c, `{"status":"OK","results":[{"place_id":"abc"}]}`)
	defer srv.Close()

	adapter := NewPlacesAdapter(NewGooglePlaces("k", time.Second, nil).WithEndpoint(srv.URL))
	c.Assert(adapter.Kind(), check.Equals, KindPlaces)

	res, err := adapter.Fetch(context.Background(), Request{Query: "Acme Plumbing Chicago", MaxReviews: 1})
	c.Assert(err, check.IsNil)
	c.Assert(res.Sources, check.HasLen, 1)
	c.Assert(res.Sources[0].URL, check.Equals, "https://maps.google.com/?cid=42")
	c.Assert(res.Sources[0].Domain, check.Equals, "maps.google.com")
	c.Assert(*res.Sources[0].Rating, check.Equals, 4.6)
	c.Assert(res.Reviews, check.HasLen, 1)
	c.Assert(res.ReviewTotal, check.Equals, 120)
}

func (s *placesTestSuite) TestUnknownPlace(c *check.C) {
	srv := placesServer(c, `{"status":"ZERO_RESULTS","results":[]}`)
	defer srv.Close()

	res, err := NewPlacesAdapter(NewGooglePlaces("k", time.Second, nil).WithEndpoint(srv.URL)).
		Fetch(context.Background(), Request{Query: "Acme Plumbing Chicago"})
	c.Assert(err, check.IsNil)
	c.Assert(res.Sources, check.HasLen, 0)
	c.Assert(res.Reviews, check.HasLen, 0)
}

func (s *placesTestSuite) TestDeniedRequest(c *check.C) {
	srv := placesServer(c, `{"status":"REQUEST_DENIED","error_message":"bad key"}`)
	defer srv.Close()

	_, err := NewGooglePlaces("k", time.Second, nil).WithEndpoint(srv.URL).
		FetchPlaceDetails(context.Background(), "Acme Plumbing Chicago")
	c.Assert(err, check.ErrorMatches, "search places: status REQUEST_DENIED: bad key")
}

func (s *placesTestSuite) TestMissingKeyIsDisabled(c *check.C) {
	place, err := NewGooglePlaces("", time.Second, nil).FetchPlaceDetails(context.Background(), "x")
	c.Assert(err, check.IsNil)
	c.Assert(place, check.IsNil)
}
