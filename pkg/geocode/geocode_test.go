package geocode

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"net/http"
	"testing"
)

type fakeHTTPClient struct {
	responses []*http.Response
	calls     int
}

func (f *fakeHTTPClient) Do(_ *http.Request) (*http.Response, error) {
	i := f.calls
	f.calls++
	if i >= len(f.responses) {
		i = len(f.responses) - 1
	}
	return f.responses[i], nil
}

func jsonResponse(status int, body string) *http.Response {
	return &http.Response{
		StatusCode: status,
		Body:       io.NopCloser(bytes.NewReader([]byte(body))),
		Header:     make(http.Header),
	}
}

func TestResolve(t *testing.T) {
	fake := &fakeHTTPClient{responses: []*http.Response{
		jsonResponse(200, `{
			"status": "OK",
			"results": [{
				"geometry": {
					"location": {"lat": 16.4023, "lng": 120.596},
					"location_type": "ROOFTOP"
				},
				"types": ["establishment"]
			}]
		}`),
	}}
	c := NewClient("key", fake, slog.Default())

	loc, err := c.Resolve(context.Background(), "Burnham Park, Baguio")
	if err != nil {
		t.Fatalf("Resolve = %v", err)
	}
	if loc.Latitude != 16.4023 || loc.Longitude != 120.596 {
		t.Errorf("Resolve = %v, want 16.4023, 120.596", loc)
	}
}

func TestResolveRejectsCountryOnlyResult(t *testing.T) {
	fake := &fakeHTTPClient{responses: []*http.Response{
		jsonResponse(200, `{
			"status": "OK",
			"results": [{
				"geometry": {
					"location": {"lat": 12.8797, "lng": 121.774},
					"location_type": "APPROXIMATE"
				},
				"types": ["country", "political"]
			}]
		}`),
	}}
	c := NewClient("key", fake, slog.Default())

	if _, err := c.Resolve(context.Background(), "Philippines"); err == nil {
		t.Error("Resolve accepted a country-level centroid")
	}
}

func TestResolveAcceptsApproximateCity(t *testing.T) {
	// A city centroid is approximate but still useful for clustering.
	fake := &fakeHTTPClient{responses: []*http.Response{
		jsonResponse(200, `{
			"status": "OK",
			"results": [{
				"geometry": {
					"location": {"lat": 16.4023, "lng": 120.596},
					"location_type": "APPROXIMATE"
				},
				"types": ["locality", "political"]
			}]
		}`),
	}}
	c := NewClient("key", fake, slog.Default())

	if _, err := c.Resolve(context.Background(), "Baguio"); err != nil {
		t.Errorf("Resolve rejected a city-level result: %v", err)
	}
}

func TestResolveNoResults(t *testing.T) {
	fake := &fakeHTTPClient{responses: []*http.Response{
		jsonResponse(200, `{"status": "ZERO_RESULTS", "results": []}`),
	}}
	c := NewClient("key", fake, slog.Default())

	if _, err := c.Resolve(context.Background(), "xyzzy nowhere"); err == nil {
		t.Error("Resolve succeeded with zero results")
	}
}

func TestResolveRequiresAPIKey(t *testing.T) {
	c := NewClient("", nil, slog.Default())
	if _, err := c.Resolve(context.Background(), "anywhere"); err == nil {
		t.Error("Resolve without an API key succeeded")
	}
}

func TestResolveClientErrorNotRetried(t *testing.T) {
	fake := &fakeHTTPClient{responses: []*http.Response{
		jsonResponse(403, `forbidden`),
	}}
	c := NewClient("key", fake, slog.Default())

	if _, err := c.Resolve(context.Background(), "anywhere"); err == nil {
		t.Fatal("Resolve on HTTP 403 succeeded")
	}
	if fake.calls != 1 {
		t.Errorf("made %d requests, want 1 (client errors are unrecoverable)", fake.calls)
	}
}
