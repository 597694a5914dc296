package planner

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/codeGROOVE-dev/tripgen/pkg/catalog"
	"github.com/codeGROOVE-dev/tripgen/pkg/enrich"
	"github.com/codeGROOVE-dev/tripgen/pkg/genplan"
	"github.com/codeGROOVE-dev/tripgen/pkg/limiter"
	"github.com/codeGROOVE-dev/tripgen/pkg/retrieval"
	"github.com/codeGROOVE-dev/tripgen/pkg/tiercache"
)

// Input validation failures; rejected before the pipeline starts.
var (
	ErrEmptyQuery   = errors.New("request query is empty")
	ErrEmptyCatalog = errors.New("candidate catalog is empty")
)

// Planner runs the generation pipeline. Construct isolated instances per
// test; nothing is package-global.
type Planner struct {
	logger    *slog.Logger
	searcher  *retrieval.Searcher
	enricher  *enrich.Processor
	generator Generator
	cache     *tiercache.Cache
	entries   []catalog.Candidate

	genTimeout  time.Duration
	slotsPerDay int
	perSlotCap  int
	capBuffer   int

	mu       sync.Mutex
	inflight map[uint32]*inflightCall
}

type inflightCall struct {
	done    chan struct{}
	plan    *Plan
	metrics Metrics
	err     error
}

// New creates a Planner. A traffic provider and generator are usually
// required for production use; tests inject fakes through options.
func New(logger *slog.Logger, opts ...Option) *Planner {
	if logger == nil {
		logger = slog.Default()
	}
	holder := &OptionHolder{}
	for _, opt := range opts {
		opt(holder)
	}

	if holder.cache == nil {
		holder.cache = tiercache.New(tiercache.Config{}, logger)
	}
	if holder.maxConcurrency <= 0 {
		holder.maxConcurrency = 5
	}
	if holder.generationTimeout <= 0 {
		holder.generationTimeout = 30 * time.Second
	}
	if holder.slotsPerDay <= 0 {
		holder.slotsPerDay = 3
	}
	if holder.perSlotCap <= 0 {
		holder.perSlotCap = 2
	}
	if holder.capacityBuffer <= 0 {
		holder.capacityBuffer = 2
	}
	if len(holder.catalogEntries) == 0 {
		holder.catalogEntries = catalog.Default()
	}

	return &Planner{
		logger:   logger,
		searcher: retrieval.NewSearcher(holder.retrievalConfig, holder.semanticIndex, logger),
		enricher: enrich.NewProcessor(enrich.Config{
			Provider:        holder.trafficProvider,
			Cache:           holder.cache,
			Limiter:         limiter.New(holder.maxConcurrency),
			Logger:          logger,
			ClusterRadiusKm: holder.clusterRadiusKm,
			ClusterTimeout:  holder.clusterTimeout,
		}),
		generator:   holder.generator,
		cache:       holder.cache,
		entries:     holder.catalogEntries,
		genTimeout:  holder.generationTimeout,
		slotsPerDay: holder.slotsPerDay,
		perSlotCap:  holder.perSlotCap,
		capBuffer:   holder.capacityBuffer,
	}
}

// CacheStats exposes the request-level cache counters for health checks.
func (p *Planner) CacheStats() tiercache.Stats {
	return p.cache.Stats()
}

// Generate runs the pipeline for one request. Concurrent calls with
// identical normalized requests coalesce into a single execution and share
// its outcome. On fatal failure the returned error is a classified
// *planner.Error and the plan is nil; no partial plan is ever returned.
func (p *Planner) Generate(ctx context.Context, req Request) (*Plan, Metrics, error) {
	if strings.TrimSpace(req.Query) == "" {
		return nil, Metrics{}, ErrEmptyQuery
	}
	if len(p.entries) == 0 {
		return nil, Metrics{}, ErrEmptyCatalog
	}
	if req.DurationDays < 1 {
		req.DurationDays = 1
	}

	seed := req.ShuffleSeed()

	p.mu.Lock()
	if call, ok := p.inflight[seed]; ok {
		p.mu.Unlock()
		p.logger.Debug("coalescing duplicate request", "seed", seed)
		select {
		case <-call.done:
			return call.plan, call.metrics, call.err
		case <-ctx.Done():
			return nil, Metrics{}, ctx.Err()
		}
	}
	if p.inflight == nil {
		p.inflight = make(map[uint32]*inflightCall)
	}
	call := &inflightCall{done: make(chan struct{})}
	p.inflight[seed] = call
	p.mu.Unlock()

	plan, metrics, err := p.run(ctx, req, seed)

	call.plan, call.metrics, call.err = plan, metrics, err
	close(call.done)
	p.mu.Lock()
	delete(p.inflight, seed)
	p.mu.Unlock()

	return plan, metrics, err
}

func (p *Planner) run(ctx context.Context, req Request, seed uint32) (*Plan, Metrics, error) {
	start := time.Now()
	var metrics Metrics

	fail := func(category genplan.Category, err error) (*Plan, Metrics, error) {
		metrics.TotalTime = time.Since(start)
		return nil, metrics, &Error{Category: category, Elapsed: metrics.TotalTime, Err: err}
	}

	// Retrieve.
	searchStart := time.Now()
	results := p.searcher.Search(ctx, req.Query, retrieval.Context{
		Interests:    req.Interests,
		Weather:      req.Weather,
		TimeOfDay:    req.TimeOfDay,
		Budget:       req.Budget,
		GroupSize:    req.GroupSize,
		DurationDays: req.DurationDays,
	}, p.entries)
	metrics.SearchTime = time.Since(searchStart)
	if len(results) == 0 {
		return fail(genplan.CategoryUnknown, errors.New("no candidates matched the query"))
	}

	// Enrich and safety-filter. Failures inside enrichment degrade locally;
	// this phase cannot fail the request.
	trafficStart := time.Now()
	enriched, enrichMetrics := p.enricher.Enrich(ctx, results)
	metrics.TrafficTime = time.Since(trafficStart)
	metrics.Enrichment = enrichMetrics
	metrics.APICallsAvoided = enrichMetrics.CallsAvoidedByCache + enrichMetrics.CallsAvoidedByClustering
	if len(enriched) == 0 {
		return fail(genplan.CategoryUnknown, errors.New("no candidates survived the safety filter"))
	}

	// Dedup, cap, and order deterministically.
	allowed := dedupeByNormalizedTitle(enriched)
	capacity := p.slotsPerDay*p.perSlotCap*req.DurationDays + p.capBuffer
	if len(allowed) > capacity {
		allowed = allowed[:capacity]
	}
	deterministicShuffle(allowed, seed)

	titles := make([]string, len(allowed))
	for i := range allowed {
		titles[i] = allowed[i].Title
	}

	// Generate under a hard wall-clock budget.
	if p.generator == nil {
		return fail(genplan.CategoryUpstream, errors.New("no generator configured"))
	}
	prompt := genplan.BuildPrompt(genplan.PromptInput{
		Query:        req.Query,
		Interests:    req.Interests,
		Weather:      req.Weather,
		TimeOfDay:    req.TimeOfDay,
		Budget:       req.Budget,
		GroupSize:    req.GroupSize,
		DurationDays: req.DurationDays,
	}, titles)

	genStart := time.Now()
	genCtx, cancel := context.WithTimeout(ctx, p.genTimeout)
	raw, err := p.generator.Generate(genCtx, prompt, titles)
	cancel()
	metrics.GenerationTime = time.Since(genStart)
	if err != nil {
		return fail(genplan.Classify(err), err)
	}

	// Reconcile generator output with the enrichment records.
	postStart := time.Now()
	plan := reconcile(raw, allowed, p.logger)
	metrics.PostProcessTime = time.Since(postStart)
	if plan.ItemCount() == 0 {
		return fail(genplan.CategoryMalformed,
			errors.New("generator output contained no allow-listed activities"))
	}

	metrics.TotalTime = time.Since(start)
	metrics.Items = plan.ItemCount()
	metrics.CacheHitRate = p.cache.Stats().HitRate
	if metrics.TotalTime > 0 {
		metrics.ItemsPerSecond = float64(metrics.Items) / metrics.TotalTime.Seconds()
		metrics.Efficiency = metrics.ItemsPerSecond * perItemBaseline.Seconds()
	}

	p.logger.Info("plan generated",
		"items", metrics.Items,
		"search", metrics.SearchTime,
		"traffic", metrics.TrafficTime,
		"generation", metrics.GenerationTime,
		"post", metrics.PostProcessTime,
		"total", metrics.TotalTime)
	return plan, metrics, nil
}

// reconcile joins generator items back to enrichment records by normalized
// title: exact match first, then substring containment in both directions
// to tolerate minor rewording. Items that match nothing are dropped; the
// generator was restricted to the allow-list, so an unmatched title is a
// contract violation on its side.
func reconcile(raw *genplan.Plan, allowed []catalog.Candidate, logger *slog.Logger) *Plan {
	byTitle := make(map[string]*catalog.Candidate, len(allowed))
	for i := range allowed {
		byTitle[catalog.NormalizeTitle(allowed[i].Title)] = &allowed[i]
	}

	plan := &Plan{}
	for _, rawSection := range raw.Sections {
		section := Section{Period: rawSection.Period}
		for _, rawItem := range rawSection.Items {
			cand := matchCandidate(byTitle, rawItem.Title)
			if cand == nil {
				logger.Warn("dropping generator item outside allow-list", "title", rawItem.Title)
				continue
			}
			item := Item{
				Title:          cand.Title,
				Time:           rawItem.Time,
				Description:    rawItem.Description,
				Tags:           mergeTags(rawItem.Tags, cand.TrafficTags),
				RelevanceScore: cand.RelevanceScore,
			}
			if cand.Traffic != nil {
				item.TrafficLevel = cand.Traffic.Level
				item.TrafficScore = cand.Traffic.CongestionScore
				item.Recommendation = cand.Traffic.Recommendation
				item.CrowdLevel = cand.Traffic.CrowdLevel
			}
			if cand.HasCoordinates {
				item.Lat, item.Lon = cand.Lat, cand.Lon
				item.HasCoordinates = true
			}
			section.Items = append(section.Items, item)
		}
		if len(section.Items) > 0 {
			plan.Sections = append(plan.Sections, section)
		}
	}
	return plan
}

func matchCandidate(byTitle map[string]*catalog.Candidate, title string) *catalog.Candidate {
	key := catalog.NormalizeTitle(title)
	if key == "" {
		return nil
	}
	if cand, ok := byTitle[key]; ok {
		return cand
	}
	for candKey, cand := range byTitle {
		if strings.Contains(candKey, key) || strings.Contains(key, candKey) {
			return cand
		}
	}
	return nil
}

func mergeTags(generated, trafficTags []string) []string {
	merged := make([]string, 0, len(generated)+len(trafficTags))
	seen := make(map[string]bool)
	for _, tag := range append(generated, trafficTags...) {
		key := strings.ToLower(tag)
		if tag == "" || seen[key] {
			continue
		}
		seen[key] = true
		merged = append(merged, tag)
	}
	return merged
}
