// Package enrich attaches real-time traffic readings to candidates under a
// hard concurrency and time budget, then applies the safety filter.
package enrich

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/codeGROOVE-dev/tripgen/pkg/catalog"
	"github.com/codeGROOVE-dev/tripgen/pkg/geo"
	"github.com/codeGROOVE-dev/tripgen/pkg/limiter"
	"github.com/codeGROOVE-dev/tripgen/pkg/tiercache"
	"github.com/codeGROOVE-dev/tripgen/pkg/traffic"
)

// Metrics summarizes one enrichment pass for observability.
type Metrics struct {
	CandidatesIn             int           `json:"candidates_in"`
	CandidatesOut            int           `json:"candidates_out"`
	CallsAvoidedByCache      int           `json:"calls_avoided_by_cache"`
	CallsAvoidedByClustering int           `json:"calls_avoided_by_clustering"`
	ExternalCalls            int           `json:"external_calls"`
	DegradedClusters         int           `json:"degraded_clusters"`
	Elapsed                  time.Duration `json:"elapsed"`
}

// Config wires the processor's collaborators.
type Config struct {
	Provider        traffic.Provider
	Cache           *tiercache.Cache
	Limiter         *limiter.Limiter
	Logger          *slog.Logger
	ClusterRadiusKm float64       // default 0.5
	ClusterTimeout  time.Duration // per-cluster lookup budget, default 3s
}

// Processor runs the enrichment state machine: split on cache, cluster the
// misses, fan out one bounded lookup per cluster, merge, then filter.
type Processor struct {
	provider traffic.Provider
	cache    *tiercache.Cache
	limiter  *limiter.Limiter
	logger   *slog.Logger
	radiusKm float64
	timeout  time.Duration
}

// NewProcessor creates an enrichment processor.
func NewProcessor(cfg Config) *Processor {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.ClusterRadiusKm <= 0 {
		cfg.ClusterRadiusKm = 0.5
	}
	if cfg.ClusterTimeout <= 0 {
		cfg.ClusterTimeout = 3 * time.Second
	}
	if cfg.Limiter == nil {
		cfg.Limiter = limiter.New(5)
	}
	return &Processor{
		provider: cfg.Provider,
		cache:    cfg.Cache,
		limiter:  cfg.Limiter,
		logger:   cfg.Logger,
		radiusKm: cfg.ClusterRadiusKm,
		timeout:  cfg.ClusterTimeout,
	}
}

// cacheKey rounds coordinates to ~4 decimal degrees so nearby candidates
// collapse onto the same cache slot.
func cacheKey(lat, lon float64) string {
	return fmt.Sprintf("traffic:%.4f,%.4f", lat, lon)
}

// Enrich attaches traffic readings to a copy of cands and applies the
// strict safety filter. A failing or slow traffic source degrades
// individual clusters to conservative defaults; it never fails the pass.
func (p *Processor) Enrich(ctx context.Context, cands []catalog.Candidate) ([]catalog.Candidate, Metrics) {
	start := time.Now()
	metrics := Metrics{CandidatesIn: len(cands)}

	out := make([]catalog.Candidate, len(cands))
	copy(out, cands)

	// Split: serve candidates with a fresh cached reading immediately.
	var uncached []int
	for i := range out {
		c := &out[i]
		if !c.HasCoordinates {
			uncached = append(uncached, i)
			continue
		}
		if p.cache != nil {
			if v, ok := p.cache.Get(cacheKey(c.Lat, c.Lon)); ok {
				if reading, ok := v.(*traffic.Reading); ok {
					c.Traffic = reading
					metrics.CallsAvoidedByCache++
					continue
				}
			}
		}
		uncached = append(uncached, i)
	}

	// Cluster the misses so N candidates need at most K lookups.
	subset := make([]catalog.Candidate, len(uncached))
	for si, idx := range uncached {
		subset[si] = out[idx]
	}
	clusters := geo.ClusterByProximity(subset, p.radiusKm)

	lookups := 0
	locatable := 0
	for _, cl := range clusters {
		if cl.HasCoordinates {
			lookups++
		}
	}
	for _, c := range subset {
		if c.HasCoordinates {
			locatable++
		}
	}
	metrics.CallsAvoidedByClustering = locatable - lookups

	// One bounded lookup per locatable cluster; a failed cluster degrades
	// alone and never aborts its siblings. An absent provider is the
	// limiting case of a failing one: every cluster takes the conservative
	// default instead of being dropped wholesale.
	type outcome struct {
		reading  *traffic.Reading
		degraded bool
		called   bool
	}
	outcomes := make([]outcome, len(clusters))
	var wg sync.WaitGroup
	for ci := range clusters {
		if !clusters[ci].HasCoordinates {
			continue
		}
		if p.provider == nil {
			outcomes[ci] = outcome{reading: traffic.ConservativeDefault(), degraded: true}
			continue
		}
		wg.Add(1)
		go func(ci int, cl geo.Cluster) {
			defer wg.Done()
			reading, degraded := p.lookupCluster(ctx, cl)
			outcomes[ci] = outcome{reading: reading, degraded: degraded, called: true}
		}(ci, clusters[ci])
	}
	wg.Wait()

	// Merge: every member of a cluster gets the same reading, a deliberate
	// consistency choice for tight geographic areas.
	for ci, cl := range clusters {
		o := outcomes[ci]
		if o.reading == nil {
			continue
		}
		if o.called {
			metrics.ExternalCalls++
		}
		if o.degraded {
			metrics.DegradedClusters++
		}
		for _, member := range cl.Members {
			out[uncached[member]].Traffic = o.reading
		}
	}

	filtered := StrictFilter(out)
	metrics.CandidatesOut = len(filtered)
	metrics.Elapsed = time.Since(start)

	p.logger.Debug("enrichment complete",
		"in", metrics.CandidatesIn, "out", metrics.CandidatesOut,
		"cache_hits", metrics.CallsAvoidedByCache,
		"clustering_savings", metrics.CallsAvoidedByClustering,
		"external_calls", metrics.ExternalCalls,
		"degraded", metrics.DegradedClusters,
		"elapsed", metrics.Elapsed)
	return filtered, metrics
}

// lookupCluster performs one limiter-gated provider call with the
// per-cluster timeout. Timeout or error substitutes the conservative
// default; successful readings are written back to the cache with the
// volatile TTL.
func (p *Processor) lookupCluster(ctx context.Context, cl geo.Cluster) (reading *traffic.Reading, degraded bool) {
	err := p.limiter.Do(ctx, func() error {
		callCtx, cancel := context.WithTimeout(ctx, p.timeout)
		defer cancel()
		r, err := p.provider.FlowReading(callCtx, cl.Lat, cl.Lon)
		if err != nil {
			return err
		}
		reading = r
		return nil
	})
	if err != nil {
		p.logger.Warn("traffic lookup degraded to conservative default",
			"lat", cl.Lat, "lon", cl.Lon, "error", err)
		return traffic.ConservativeDefault(), true
	}
	if p.cache != nil {
		p.cache.Set(cacheKey(cl.Lat, cl.Lon), reading, tiercache.Volatile())
	}
	return reading, false
}
