package retrieval

import (
	"context"
	"fmt"
	"log/slog"
	"math"

	"google.golang.org/genai"
)

// GenaiIndex is a SemanticIndex backed by the Gemini embedding API.
type GenaiIndex struct {
	client *genai.Client
	model  string
	logger *slog.Logger
}

// NewGenaiIndex creates an embedding-backed semantic index. model defaults
// to gemini-embedding-001.
func NewGenaiIndex(ctx context.Context, apiKey, model string, logger *slog.Logger) (*GenaiIndex, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if model == "" {
		model = "gemini-embedding-001"
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		Backend: genai.BackendGeminiAPI,
		APIKey:  apiKey,
	})
	if err != nil {
		return nil, fmt.Errorf("creating genai client: %w", err)
	}
	return &GenaiIndex{client: client, model: model, logger: logger}, nil
}

// Similarities embeds the query and every document in one batch call and
// returns the cosine similarity of each document to the query, shifted
// into [0,1].
func (g *GenaiIndex) Similarities(ctx context.Context, query string, docs []string) ([]float64, error) {
	contents := make([]*genai.Content, 0, len(docs)+1)
	for _, text := range append([]string{query}, docs...) {
		contents = append(contents, &genai.Content{
			Parts: []*genai.Part{{Text: text}},
		})
	}

	resp, err := g.client.Models.EmbedContent(ctx, g.model, contents, nil)
	if err != nil {
		return nil, fmt.Errorf("embedding batch: %w", err)
	}
	if resp == nil || len(resp.Embeddings) != len(docs)+1 {
		return nil, fmt.Errorf("embedding batch returned %d vectors, want %d", len(resp.Embeddings), len(docs)+1)
	}

	queryVec := resp.Embeddings[0].Values
	sims := make([]float64, len(docs))
	for i := range docs {
		// Cosine lands in [-1,1]; shift so downstream weighting stays in
		// the same unit interval as every other sub-score.
		sims[i] = (cosine(queryVec, resp.Embeddings[i+1].Values) + 1) / 2
	}
	return sims, nil
}

func cosine(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
