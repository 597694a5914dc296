// Package retrieval ranks catalog candidates against a query and a
// situational context using a weighted multi-signal score.
package retrieval

import "context"

// Weights are the composite-score coefficients. They should sum to 1.0;
// Normalize rescales them if they do not.
type Weights struct {
	Semantic   float64
	Fuzzy      float64
	Contextual float64
	Temporal   float64
	Diversity  float64
}

// DefaultWeights returns the production weighting.
func DefaultWeights() Weights {
	return Weights{
		Semantic:   0.30,
		Fuzzy:      0.25,
		Contextual: 0.20,
		Temporal:   0.15,
		Diversity:  0.10,
	}
}

// Normalize rescales the weights to sum to 1.0.
func (w Weights) Normalize() Weights {
	sum := w.Semantic + w.Fuzzy + w.Contextual + w.Temporal + w.Diversity
	if sum <= 0 {
		return DefaultWeights()
	}
	return Weights{
		Semantic:   w.Semantic / sum,
		Fuzzy:      w.Fuzzy / sum,
		Contextual: w.Contextual / sum,
		Temporal:   w.Temporal / sum,
		Diversity:  w.Diversity / sum,
	}
}

// withoutSemantic redistributes the semantic weight across fuzzy and
// contextual matching, for when the semantic index is unavailable.
func (w Weights) withoutSemantic() Weights {
	shifted := w
	shifted.Fuzzy += w.Semantic * 0.6
	shifted.Contextual += w.Semantic * 0.4
	shifted.Semantic = 0
	return shifted
}

// Config tunes the searcher.
type Config struct {
	Weights       Weights
	MinSimilarity float64 // candidates scoring below this are dropped, default 0.25
	MaxResults    int     // default 20
}

func (c *Config) applyDefaults() {
	zero := Weights{}
	if c.Weights == zero {
		c.Weights = DefaultWeights()
	}
	c.Weights = c.Weights.Normalize()
	if c.MinSimilarity <= 0 {
		c.MinSimilarity = 0.25
	}
	if c.MaxResults <= 0 {
		c.MaxResults = 20
	}
}

// Context is the situational context a request carries into scoring.
type Context struct {
	Interests    []string
	Weather      string
	TimeOfDay    string // one of the catalog window buckets
	Budget       string
	GroupSize    int
	DurationDays int
}

// SemanticIndex scores query-to-document similarity in [0,1]. An index may
// fail; the searcher degrades to fuzzy and keyword scoring when it does.
type SemanticIndex interface {
	Similarities(ctx context.Context, query string, docs []string) ([]float64, error)
}
