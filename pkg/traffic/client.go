package traffic

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/codeGROOVE-dev/retry"
)

// HTTPClient interface for making HTTP requests.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// Client fetches flow-segment congestion data from the TomTom Traffic API.
type Client struct {
	apiKey     string
	httpClient HTTPClient
	logger     *slog.Logger
	now        func() time.Time
}

// NewClient creates a traffic API client. httpClient may be a caching
// decorator; nil falls back to http.DefaultClient.
func NewClient(apiKey string, httpClient HTTPClient, logger *slog.Logger) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		apiKey:     apiKey,
		httpClient: httpClient,
		logger:     logger,
		now:        time.Now,
	}
}

// FlowReading fetches current flow data near the coordinates and derives a
// congestion reading from the current-to-free-flow speed ratio.
func (c *Client) FlowReading(ctx context.Context, lat, lon float64) (*Reading, error) {
	if c.apiKey == "" {
		return nil, errors.New("traffic API key not configured")
	}

	apiURL := fmt.Sprintf(
		"https://api.tomtom.com/traffic/services/4/flowSegmentData/absolute/10/json?point=%f,%f&key=%s",
		lat, lon, c.apiKey)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, apiURL, http.NoBody)
	if err != nil {
		return nil, err
	}

	body, err := c.doWithRetry(ctx, req)
	if err != nil {
		return nil, err
	}

	var result struct {
		FlowSegmentData struct {
			CurrentSpeed  float64 `json:"currentSpeed"`
			FreeFlowSpeed float64 `json:"freeFlowSpeed"`
			Confidence    float64 `json:"confidence"`
			RoadClosure   bool    `json:"roadClosure"`
		} `json:"flowSegmentData"`
	}
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("parsing flow segment response: %w", err)
	}

	flow := result.FlowSegmentData
	if flow.FreeFlowSpeed <= 0 {
		return nil, fmt.Errorf("flow segment response missing speeds for %.4f,%.4f", lat, lon)
	}

	score := 1 - flow.CurrentSpeed/flow.FreeFlowSpeed
	if score < 0 {
		score = 0
	}
	if score > 1 || flow.RoadClosure {
		score = 1
	}

	rec, recScore := RecommendationForScore(score)
	now := c.now()
	reading := &Reading{
		Level:               LevelForScore(score),
		CongestionScore:     score,
		Recommendation:      rec,
		RecommendationScore: recScore,
		CrowdLevel:          crowdForScore(score, now.Hour()),
		Timestamp:           now,
	}

	c.logger.Debug("traffic reading", "lat", lat, "lon", lon,
		"congestion", score, "level", reading.Level, "recommendation", rec)
	return reading, nil
}

// doWithRetry performs the request with exponential backoff and jitter.
// Client errors other than rate limiting are not retried.
func (c *Client) doWithRetry(ctx context.Context, req *http.Request) ([]byte, error) {
	var body []byte

	err := retry.Do(
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
				return retry.Unrecoverable(fmt.Errorf("traffic API HTTP %d", resp.StatusCode))
			}
			if resp.StatusCode != http.StatusOK {
				return fmt.Errorf("traffic API HTTP %d", resp.StatusCode)
			}

			body, err = io.ReadAll(resp.Body)
			if err != nil {
				return err
			}
			return nil
		},
		retry.Context(ctx),
		retry.Attempts(3),
		retry.Delay(100*time.Millisecond),
		retry.DelayType(retry.CombineDelay(retry.BackOffDelay, retry.RandomDelay)),
		retry.MaxJitter(50*time.Millisecond),
		retry.OnRetry(func(n uint, err error) {
			c.logger.Debug("retrying traffic lookup", "attempt", n+1, "error", err)
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("traffic lookup failed: %w", err)
	}
	return body, nil
}
