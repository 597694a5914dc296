// Package geocode resolves activity and place names to coordinates through
// the Google Geocoding API.
package geocode

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/codeGROOVE-dev/retry"
)

// Location is a resolved coordinate pair.
type Location struct {
	Latitude  float64
	Longitude float64
}

// Resolver turns a place name into coordinates; absence is an error.
type Resolver interface {
	Resolve(ctx context.Context, name string) (*Location, error)
}

// HTTPClient interface for making HTTP requests.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// Client calls the Google Geocoding API.
type Client struct {
	apiKey     string
	httpClient HTTPClient
	logger     *slog.Logger
}

// NewClient creates a geocoding client. httpClient may be a caching
// decorator; nil falls back to http.DefaultClient.
func NewClient(apiKey string, httpClient HTTPClient, logger *slog.Logger) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{apiKey: apiKey, httpClient: httpClient, logger: logger}
}

// Resolve converts a place name to coordinates. Country-level approximate
// results are rejected: a nationwide centroid is useless for proximity
// clustering.
func (c *Client) Resolve(ctx context.Context, name string) (*Location, error) {
	if c.apiKey == "" {
		return nil, errors.New("geocoding API key not configured")
	}

	apiURL := fmt.Sprintf("https://maps.googleapis.com/maps/api/geocode/json?address=%s&key=%s",
		url.QueryEscape(name), c.apiKey)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, apiURL, http.NoBody)
	if err != nil {
		return nil, err
	}

	var body []byte
	err = retry.Do(
		func() error {
			resp, err := c.httpClient.Do(req)
			if err != nil {
				return err
			}
			defer func() {
				if closeErr := resp.Body.Close(); closeErr != nil {
					c.logger.Debug("failed to close response body", "error", closeErr)
				}
			}()
			if resp.StatusCode >= 400 && resp.StatusCode < 500 && resp.StatusCode != http.StatusTooManyRequests {
				return retry.Unrecoverable(fmt.Errorf("geocoding API HTTP %d", resp.StatusCode))
			}
			if resp.StatusCode != http.StatusOK {
				return fmt.Errorf("geocoding API HTTP %d", resp.StatusCode)
			}
			body, err = io.ReadAll(resp.Body)
			return err
		},
		retry.Context(ctx),
		retry.Attempts(3),
		retry.Delay(100*time.Millisecond),
		retry.DelayType(retry.CombineDelay(retry.BackOffDelay, retry.RandomDelay)),
		retry.MaxJitter(50*time.Millisecond),
		retry.OnRetry(func(n uint, err error) {
			c.logger.Debug("retrying geocode", "attempt", n+1, "name", name, "error", err)
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("geocoding %q: %w", name, err)
	}

	var result struct {
		Results []struct {
			Geometry struct {
				Location struct {
					Lat float64 `json:"lat"`
					Lng float64 `json:"lng"`
				} `json:"location"`
				LocationType string `json:"location_type"`
			} `json:"geometry"`
			Types []string `json:"types"`
		} `json:"results"`
		Status string `json:"status"`
	}
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("parsing geocoding response for %q: %w", name, err)
	}
	if result.Status != "OK" || len(result.Results) == 0 {
		return nil, fmt.Errorf("geocoding failed for %q: %s", name, result.Status)
	}

	first := result.Results[0]
	if strings.EqualFold(first.Geometry.LocationType, "approximate") {
		var hasCountry, hasPrecise bool
		for _, t := range first.Types {
			switch t {
			case "country":
				hasCountry = true
			case "locality", "administrative_area_level_1", "administrative_area_level_2":
				hasPrecise = true
			}
		}
		if hasCountry && !hasPrecise {
			return nil, fmt.Errorf("geocoding result for %q too imprecise", name)
		}
	}

	return &Location{
		Latitude:  first.Geometry.Location.Lat,
		Longitude: first.Geometry.Location.Lng,
	}, nil
}
