package genplan

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand/v2"
	"strings"
	"time"

	"google.golang.org/genai"
)

// Logger is the minimal logging surface the client needs.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// Client calls the Gemini API for structured plan generation.
type Client struct {
	logger     Logger
	apiKey     string
	model      string
	gcpProject string
}

// NewClient creates a plan-generation client.
func NewClient(apiKey, model, gcpProject string, logger Logger) *Client {
	return &Client{
		apiKey:     apiKey,
		model:      model,
		gcpProject: gcpProject,
		logger:     logger,
	}
}

// Generate produces a structured plan limited to the allowed titles. The
// caller controls the wall-clock budget through ctx; deadline expiry comes
// back as a CategoryTimeout error, upstream API failures as
// CategoryUpstream, and output that violates the structure contract as
// CategoryMalformed. No partially valid plan is ever returned.
func (c *Client) Generate(ctx context.Context, prompt string, allowed []string) (*Plan, error) {
	if len(allowed) == 0 {
		return nil, malformedError("allow-list is empty", nil)
	}

	client, err := c.createClient(ctx)
	if err != nil {
		return nil, upstreamError("creating genai client", err)
	}

	modelName, contents, genConfig := c.configureRequest(prompt)

	resp, err := c.generateWithRetry(ctx, client, modelName, contents, genConfig)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, timeoutError("generation exceeded its time budget", err)
		}
		return nil, upstreamError("gemini API call failed", err)
	}

	return c.decodePlan(resp)
}

func (c *Client) createClient(ctx context.Context) (*genai.Client, error) {
	var config *genai.ClientConfig
	if c.apiKey != "" {
		config = &genai.ClientConfig{
			Backend: genai.BackendGeminiAPI,
			APIKey:  c.apiKey,
		}
	} else {
		config = &genai.ClientConfig{
			Backend:  genai.BackendVertexAI,
			Project:  c.gcpProject,
			Location: "us-central1",
		}
		c.logger.Info("using Vertex AI with application default credentials", "project", c.gcpProject)
	}
	return genai.NewClient(ctx, config)
}

func (c *Client) configureRequest(prompt string) (string, []*genai.Content, *genai.GenerateContentConfig) {
	modelName := c.model
	if modelName == "" {
		modelName = "gemini-2.5-flash-lite"
	}
	modelName = strings.TrimPrefix(modelName, "models/")

	contents := []*genai.Content{
		{
			Role:  "user",
			Parts: []*genai.Part{{Text: prompt}},
		},
	}

	maxTokens := int32(4000)
	temperature := float32(0.4)

	genConfig := &genai.GenerateContentConfig{
		Temperature:      &temperature,
		MaxOutputTokens:  maxTokens,
		ResponseMIMEType: "application/json",
		ResponseSchema:   planSchema(),
	}
	return modelName, contents, genConfig
}

// planSchema constrains the response to the Plan structure.
func planSchema() *genai.Schema {
	return &genai.Schema{
		Type: genai.TypeObject,
		Properties: map[string]*genai.Schema{
			"sections": {
				Type: genai.TypeArray,
				Items: &genai.Schema{
					Type: genai.TypeObject,
					Properties: map[string]*genai.Schema{
						"period": {
							Type:        genai.TypeString,
							Description: "Time period label, e.g. 'Day 1 Morning'",
						},
						"items": {
							Type: genai.TypeArray,
							Items: &genai.Schema{
								Type: genai.TypeObject,
								Properties: map[string]*genai.Schema{
									"title": {
										Type:        genai.TypeString,
										Description: "Activity title, exactly as given in the allowed list",
									},
									"time": {
										Type:        genai.TypeString,
										Description: "Suggested start time, e.g. '09:00'",
									},
									"description": {
										Type:        genai.TypeString,
										Description: "One or two sentences on what to do there",
									},
									"tags": {
										Type:  genai.TypeArray,
										Items: &genai.Schema{Type: genai.TypeString},
									},
								},
								PropertyOrdering: []string{"title", "time", "description", "tags"},
								Required:         []string{"title", "time", "description"},
							},
						},
					},
					PropertyOrdering: []string{"period", "items"},
					Required:         []string{"period", "items"},
				},
			},
		},
		Required: []string{"sections"},
	}
}

func (c *Client) generateWithRetry(ctx context.Context, client *genai.Client, modelName string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	maxRetries := 2
	baseDelay := 200 * time.Millisecond
	jitter := 100 * time.Millisecond

	for attempt := 0; ; attempt++ {
		resp, err := client.Models.GenerateContent(ctx, modelName, contents, config)
		if err == nil {
			return resp, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if attempt == maxRetries || !isTransient(err) {
			return nil, err
		}

		delay := baseDelay*time.Duration(1<<uint(attempt)) + time.Duration(rand.Int64N(int64(jitter)))
		c.logger.Debug("retrying plan generation", "attempt", attempt+1, "delay_ms", delay.Milliseconds(), "error", err)
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(delay):
		}
	}
}

func isTransient(err error) bool {
	errStr := strings.ToLower(err.Error())
	for _, indicator := range []string{
		"rate limit", "quota", "timeout", "deadline", "unavailable",
		"internal server error", "502", "503", "504",
	} {
		if strings.Contains(errStr, indicator) {
			return true
		}
	}
	return false
}

// decodePlan extracts and validates the structured plan from the response.
func (c *Client) decodePlan(resp *genai.GenerateContentResponse) (*Plan, error) {
	if resp == nil || len(resp.Candidates) == 0 {
		return nil, malformedError("empty response from generator", nil)
	}
	candidate := resp.Candidates[0]
	if candidate.Content == nil || len(candidate.Content.Parts) == 0 {
		return nil, malformedError("no content in generator response", nil)
	}
	text := candidate.Content.Parts[0].Text
	if text == "" {
		return nil, malformedError("empty text in generator response", nil)
	}

	plan, err := DecodePlanJSON(text)
	if err != nil {
		return nil, err
	}
	c.logger.Debug("plan generated", "sections", len(plan.Sections), "items", plan.ItemCount())
	return plan, nil
}

// DecodePlanJSON parses plan JSON, tolerating surrounding prose or code
// fences, and validates the structure contract.
func DecodePlanJSON(text string) (*Plan, error) {
	jsonText := text
	if !json.Valid([]byte(jsonText)) {
		extracted, err := extractJSON(text)
		if err != nil {
			return nil, malformedError("generator output is not JSON", err)
		}
		jsonText = extracted
	}

	var plan Plan
	if err := json.Unmarshal([]byte(jsonText), &plan); err != nil {
		return nil, malformedError("parsing generator JSON", err)
	}
	if err := plan.validate(); err != nil {
		return nil, err
	}
	return &plan, nil
}

// extractJSON pulls a JSON object out of a response that wraps it in code
// fences or explanatory text.
func extractJSON(text string) (string, error) {
	if start := strings.Index(text, "```json"); start != -1 {
		start += len("```json")
		if end := strings.Index(text[start:], "```"); end != -1 {
			candidate := strings.TrimSpace(text[start : start+end])
			if json.Valid([]byte(candidate)) {
				return candidate, nil
			}
		}
	}
	if start := strings.Index(text, "{"); start != -1 {
		if end := strings.LastIndex(text, "}"); end > start {
			candidate := strings.TrimSpace(text[start : end+1])
			if json.Valid([]byte(candidate)) {
				return candidate, nil
			}
		}
	}
	return "", fmt.Errorf("no valid JSON object found")
}
