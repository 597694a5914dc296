// Package planner orchestrates the adaptive plan-generation pipeline:
// retrieval, enrichment, filtering, deterministic ordering, generation,
// and reconciliation, under an overall latency budget.
package planner

import (
	"context"
	"fmt"
	"time"

	"github.com/codeGROOVE-dev/tripgen/pkg/catalog"
	"github.com/codeGROOVE-dev/tripgen/pkg/enrich"
	"github.com/codeGROOVE-dev/tripgen/pkg/genplan"
	"github.com/codeGROOVE-dev/tripgen/pkg/retrieval"
	"github.com/codeGROOVE-dev/tripgen/pkg/tiercache"
	"github.com/codeGROOVE-dev/tripgen/pkg/traffic"
)

// Request is one plan-generation request. Identical requests (after field
// normalization) hash to the same shuffle seed and coalesce into a single
// pipeline execution.
type Request struct {
	Query        string   `json:"query"`
	Interests    []string `json:"interests,omitempty"`
	Weather      string   `json:"weather,omitempty"`
	TimeOfDay    string   `json:"time_of_day,omitempty"`
	Budget       string   `json:"budget,omitempty"`
	GroupSize    int      `json:"group_size,omitempty"`
	DurationDays int      `json:"duration_days,omitempty"`
}

// Item is one scheduled activity in the final plan, carrying the traffic
// metadata reconciled from enrichment.
type Item struct {
	Title          string                 `json:"title"`
	Time           string                 `json:"time"`
	Description    string                 `json:"description"`
	Tags           []string               `json:"tags,omitempty"`
	TrafficLevel   traffic.Level          `json:"traffic_level"`
	TrafficScore   float64                `json:"traffic_score"`
	Recommendation traffic.Recommendation `json:"recommendation"`
	CrowdLevel     traffic.CrowdLevel     `json:"crowd_level"`
	Lat            float64                `json:"lat,omitempty"`
	Lon            float64                `json:"lon,omitempty"`
	HasCoordinates bool                   `json:"has_coordinates,omitempty"`
	RelevanceScore float64                `json:"relevance_score"`
}

// Section is one time-period slice of the plan.
type Section struct {
	Period string `json:"period"`
	Items  []Item `json:"items"`
}

// Plan is the merged, user-facing result.
type Plan struct {
	Sections []Section `json:"sections"`
}

// ItemCount returns the total item count across sections.
func (p *Plan) ItemCount() int {
	n := 0
	for i := range p.Sections {
		n += len(p.Sections[i].Items)
	}
	return n
}

// Metrics aggregates per-phase timings and efficiency numbers for the
// health and monitoring surface.
type Metrics struct {
	SearchTime      time.Duration  `json:"search_time"`
	TrafficTime     time.Duration  `json:"traffic_time"`
	GenerationTime  time.Duration  `json:"generation_time"`
	PostProcessTime time.Duration  `json:"post_process_time"`
	TotalTime       time.Duration  `json:"total_time"`
	CacheHitRate    float64        `json:"cache_hit_rate"`
	APICallsAvoided int            `json:"api_calls_avoided"`
	Items           int            `json:"items"`
	ItemsPerSecond  float64        `json:"items_per_second"`
	Efficiency      float64        `json:"efficiency"`
	Enrichment      enrich.Metrics `json:"enrichment"`
}

// perItemBaseline is the fixed per-item cost that Efficiency is reported
// against: an Efficiency of 1.0 means one item every 200ms.
const perItemBaseline = 200 * time.Millisecond

// Error is a fatal pipeline failure, classified so the caller can decide
// whether to retry. No partial plan accompanies it.
type Error struct {
	Err      error
	Category genplan.Category
	Elapsed  time.Duration
}

func (e *Error) Error() string {
	return fmt.Sprintf("pipeline failed after %s (%s): %v", e.Elapsed.Round(time.Millisecond), e.Category, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Generator is the opaque content-generation step. It must return a
// validated plan or a classified error; the pipeline never repairs its
// output.
type Generator interface {
	Generate(ctx context.Context, prompt string, allowed []string) (*genplan.Plan, error)
}

// Option configures a Planner.
type Option func(*OptionHolder)

// OptionHolder holds configuration options.
type OptionHolder struct {
	trafficProvider   traffic.Provider
	generator         Generator
	semanticIndex     retrieval.SemanticIndex
	cache             *tiercache.Cache
	catalogEntries    []catalog.Candidate
	retrievalConfig   retrieval.Config
	maxConcurrency    int
	clusterRadiusKm   float64
	clusterTimeout    time.Duration
	generationTimeout time.Duration
	slotsPerDay       int
	perSlotCap        int
	capacityBuffer    int
}

// WithTrafficProvider sets the traffic data source.
func WithTrafficProvider(p traffic.Provider) Option {
	return func(o *OptionHolder) { o.trafficProvider = p }
}

// WithGenerator sets the content-generation step.
func WithGenerator(g Generator) Option {
	return func(o *OptionHolder) { o.generator = g }
}

// WithSemanticIndex sets the retrieval semantic index.
func WithSemanticIndex(idx retrieval.SemanticIndex) Option {
	return func(o *OptionHolder) { o.semanticIndex = idx }
}

// WithCache sets the request-level multi-tier cache.
func WithCache(c *tiercache.Cache) Option {
	return func(o *OptionHolder) { o.cache = c }
}

// WithCatalog sets the candidate catalog.
func WithCatalog(cands []catalog.Candidate) Option {
	return func(o *OptionHolder) { o.catalogEntries = cands }
}

// WithRetrievalConfig overrides retrieval weights and thresholds.
func WithRetrievalConfig(cfg retrieval.Config) Option {
	return func(o *OptionHolder) { o.retrievalConfig = cfg }
}

// WithMaxConcurrency bounds parallel external traffic lookups.
func WithMaxConcurrency(n int) Option {
	return func(o *OptionHolder) { o.maxConcurrency = n }
}

// WithClusterRadiusKm sets the proximity-clustering threshold.
func WithClusterRadiusKm(km float64) Option {
	return func(o *OptionHolder) { o.clusterRadiusKm = km }
}

// WithClusterTimeout sets the per-cluster traffic lookup budget.
func WithClusterTimeout(d time.Duration) Option {
	return func(o *OptionHolder) { o.clusterTimeout = d }
}

// WithGenerationTimeout sets the hard wall-clock budget for the external
// generation call.
func WithGenerationTimeout(d time.Duration) Option {
	return func(o *OptionHolder) { o.generationTimeout = d }
}

// WithCapacity tunes the allow-list capacity budget.
func WithCapacity(slotsPerDay, perSlotCap, buffer int) Option {
	return func(o *OptionHolder) {
		o.slotsPerDay = slotsPerDay
		o.perSlotCap = perSlotCap
		o.capacityBuffer = buffer
	}
}
