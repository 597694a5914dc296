package traffic

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"net/http"
	"testing"
	"time"
)

func TestLevelForScore(t *testing.T) {
	tests := []struct {
		score float64
		want  Level
	}{
		{0.0, LevelVeryLow},
		{0.14, LevelVeryLow},
		{0.15, LevelLow},
		{0.29, LevelLow},
		{0.30, LevelModerate},
		{0.54, LevelModerate},
		{0.55, LevelHigh},
		{0.74, LevelHigh},
		{0.75, LevelSevere},
		{1.0, LevelSevere},
	}

	for _, tt := range tests {
		if got := LevelForScore(tt.score); got != tt.want {
			t.Errorf("LevelForScore(%v) = %v, want %v", tt.score, got, tt.want)
		}
	}
}

func TestRecommendationForScore(t *testing.T) {
	tests := []struct {
		score float64
		want  Recommendation
	}{
		{0.1, VisitNow},
		{0.29, VisitNow},
		{0.30, VisitSoon},
		{0.49, VisitSoon},
		{0.50, PlanLater},
		{0.74, PlanLater},
		{0.75, AvoidNow},
		{0.95, AvoidNow},
	}

	for _, tt := range tests {
		rec, score := RecommendationForScore(tt.score)
		if rec != tt.want {
			t.Errorf("RecommendationForScore(%v) = %v, want %v", tt.score, rec, tt.want)
		}
		if want := 1 - tt.score; score != want {
			t.Errorf("RecommendationForScore(%v) score = %v, want %v", tt.score, score, want)
		}
	}
}

func TestCrowdForScoreBusyHours(t *testing.T) {
	// The same congestion reads one crowd step higher at lunch and early
	// evening.
	if got := crowdForScore(0.2, 9); got != CrowdLow {
		t.Errorf("crowdForScore(0.2, 9am) = %v, want low", got)
	}
	if got := crowdForScore(0.2, 12); got != CrowdModerate {
		t.Errorf("crowdForScore(0.2, noon) = %v, want moderate", got)
	}
	if got := crowdForScore(0.6, 18); got != CrowdVeryHigh {
		t.Errorf("crowdForScore(0.6, 6pm) = %v, want very_high", got)
	}
	if got := crowdForScore(0.9, 3); got != CrowdVeryHigh {
		t.Errorf("crowdForScore(0.9, 3am) = %v, want very_high", got)
	}
}

func TestConservativeDefaultSurvivesFiltering(t *testing.T) {
	r := ConservativeDefault()

	if r.Level != LevelModerate {
		t.Errorf("Level = %v, want moderate", r.Level)
	}
	if r.Recommendation != VisitSoon {
		t.Errorf("Recommendation = %v, want visit_soon", r.Recommendation)
	}
	if r.CrowdLevel != CrowdModerate {
		t.Errorf("CrowdLevel = %v, want moderate", r.CrowdLevel)
	}
	if r.Timestamp.IsZero() {
		t.Error("Timestamp not set")
	}
}

// fakeHTTPClient returns canned responses in order.
type fakeHTTPClient struct {
	responses []*http.Response
	errs      []error
	calls     int
}

func (f *fakeHTTPClient) Do(_ *http.Request) (*http.Response, error) {
	i := f.calls
	f.calls++
	if i >= len(f.responses) {
		i = len(f.responses) - 1
	}
	if f.errs != nil && f.errs[i] != nil {
		return nil, f.errs[i]
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

func TestFlowReading(t *testing.T) {
	fake := &fakeHTTPClient{responses: []*http.Response{
		jsonResponse(200, `{"flowSegmentData":{"currentSpeed":30,"freeFlowSpeed":60,"confidence":0.95}}`),
	}}
	c := NewClient("test-key", fake, slog.Default())
	c.now = func() time.Time { return time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC) }

	reading, err := c.FlowReading(context.Background(), 16.41, 120.59)
	if err != nil {
		t.Fatalf("FlowReading = %v", err)
	}

	// Half of free-flow speed means 50% congestion.
	if reading.CongestionScore != 0.5 {
		t.Errorf("CongestionScore = %v, want 0.5", reading.CongestionScore)
	}
	if reading.Level != LevelModerate {
		t.Errorf("Level = %v, want moderate", reading.Level)
	}
	if reading.Recommendation != PlanLater {
		t.Errorf("Recommendation = %v, want plan_later", reading.Recommendation)
	}
}

func TestFlowReadingRoadClosure(t *testing.T) {
	fake := &fakeHTTPClient{responses: []*http.Response{
		jsonResponse(200, `{"flowSegmentData":{"currentSpeed":55,"freeFlowSpeed":60,"roadClosure":true}}`),
	}}
	c := NewClient("test-key", fake, slog.Default())

	reading, err := c.FlowReading(context.Background(), 16.41, 120.59)
	if err != nil {
		t.Fatalf("FlowReading = %v", err)
	}
	if reading.CongestionScore != 1 {
		t.Errorf("CongestionScore = %v, want 1 for a closed road", reading.CongestionScore)
	}
	if reading.Level != LevelSevere {
		t.Errorf("Level = %v, want severe", reading.Level)
	}
}

func TestFlowReadingRequiresAPIKey(t *testing.T) {
	c := NewClient("", nil, slog.Default())
	if _, err := c.FlowReading(context.Background(), 16.41, 120.59); err == nil {
		t.Error("FlowReading without an API key succeeded")
	}
}

func TestFlowReadingClientErrorNotRetried(t *testing.T) {
	fake := &fakeHTTPClient{responses: []*http.Response{
		jsonResponse(403, `forbidden`),
		jsonResponse(200, `{"flowSegmentData":{"currentSpeed":30,"freeFlowSpeed":60}}`),
	}}
	c := NewClient("test-key", fake, slog.Default())

	if _, err := c.FlowReading(context.Background(), 16.41, 120.59); err == nil {
		t.Fatal("FlowReading on HTTP 403 succeeded")
	}
	if fake.calls != 1 {
		t.Errorf("made %d requests, want 1 (client errors are unrecoverable)", fake.calls)
	}
}

func TestFlowReadingRetriesServerError(t *testing.T) {
	fake := &fakeHTTPClient{responses: []*http.Response{
		jsonResponse(500, `oops`),
		jsonResponse(200, `{"flowSegmentData":{"currentSpeed":48,"freeFlowSpeed":60}}`),
	}}
	c := NewClient("test-key", fake, slog.Default())

	reading, err := c.FlowReading(context.Background(), 16.41, 120.59)
	if err != nil {
		t.Fatalf("FlowReading = %v", err)
	}
	if fake.calls != 2 {
		t.Errorf("made %d requests, want 2 (server error retried)", fake.calls)
	}
	if reading.Level != LevelLow {
		t.Errorf("Level = %v, want low at 20%% congestion", reading.Level)
	}
}

func TestFlowReadingMissingSpeeds(t *testing.T) {
	fake := &fakeHTTPClient{responses: []*http.Response{
		jsonResponse(200, `{"flowSegmentData":{}}`),
	}}
	c := NewClient("test-key", fake, slog.Default())

	if _, err := c.FlowReading(context.Background(), 16.41, 120.59); err == nil {
		t.Error("FlowReading accepted a response without speeds")
	}
}
