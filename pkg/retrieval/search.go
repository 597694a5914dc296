package retrieval

import (
	"context"
	"log/slog"
	"sort"
	"strings"

	"github.com/codeGROOVE-dev/tripgen/pkg/catalog"
)

// Searcher ranks candidates with the composite score. Construct isolated
// instances per test or server; there is no shared state.
type Searcher struct {
	cfg    Config
	index  SemanticIndex
	logger *slog.Logger
}

// NewSearcher creates a searcher. index may be nil, in which case semantic
// scoring is skipped and its weight redistributed.
func NewSearcher(cfg Config, index SemanticIndex, logger *slog.Logger) *Searcher {
	cfg.applyDefaults()
	if logger == nil {
		logger = slog.Default()
	}
	return &Searcher{cfg: cfg, index: index, logger: logger}
}

// Search ranks the catalog against the query and context, drops candidates
// below the similarity threshold, and truncates to MaxResults. The result
// is sorted descending by composite score with catalog order as the stable
// tie-break.
//
// Semantic index failure is a degraded-data condition, not an error: the
// searcher falls back to fuzzy and keyword scoring and carries on.
func (s *Searcher) Search(ctx context.Context, query string, reqCtx Context, cands []catalog.Candidate) []catalog.Candidate {
	if len(cands) == 0 {
		return nil
	}

	weights := s.cfg.Weights
	semantic := s.semanticScores(ctx, query, cands)
	if semantic == nil {
		weights = weights.withoutSemantic()
	}

	type scored struct {
		idx  int
		base float64 // composite minus the diversity term
		sem  float64
	}
	prelim := make([]scored, 0, len(cands))
	for i := range cands {
		c := &cands[i]
		sem := 0.0
		if semantic != nil {
			sem = semantic[i]
		}
		base := weights.Semantic*sem +
			weights.Fuzzy*fuzzySimilarity(query, c.Title+" "+c.Description) +
			weights.Contextual*contextualFit(c, reqCtx) +
			weights.Temporal*temporalFit(c, reqCtx)
		prelim = append(prelim, scored{idx: i, base: base, sem: sem})
	}

	// Rank by base score first; diversity is then applied incrementally in
	// that order, so each candidate is penalized only against the
	// higher-ranked results already accepted.
	sort.SliceStable(prelim, func(a, b int) bool { return prelim[a].base > prelim[b].base })

	var accepted []catalog.Candidate
	for _, p := range prelim {
		if len(accepted) >= s.cfg.MaxResults {
			break
		}
		c := cands[p.idx]
		composite := p.base + weights.Diversity*diversityScore(&c, accepted)
		if composite < s.cfg.MinSimilarity {
			continue
		}
		c.RelevanceScore = composite
		accepted = append(accepted, c)
	}

	sort.SliceStable(accepted, func(a, b int) bool {
		return accepted[a].RelevanceScore > accepted[b].RelevanceScore
	})

	s.logger.Debug("retrieval complete", "query", query,
		"catalog", len(cands), "results", len(accepted), "semantic", semantic != nil)
	return accepted
}

// semanticScores queries the index, returning nil on any failure so the
// caller can degrade locally.
func (s *Searcher) semanticScores(ctx context.Context, query string, cands []catalog.Candidate) []float64 {
	if s.index == nil {
		return nil
	}
	docs := make([]string, len(cands))
	for i := range cands {
		docs[i] = cands[i].Title + ". " + cands[i].Description
	}
	sims, err := s.index.Similarities(ctx, query, docs)
	if err != nil || len(sims) != len(cands) {
		s.logger.Warn("semantic index unavailable, using fuzzy/keyword scoring only", "error", err)
		return nil
	}
	return sims
}

// diversityScore rewards candidates that do not overlap the already
// accepted results. 1 is fully novel; heavy tag and time-slot overlap with
// any accepted candidate approaches 0.
func diversityScore(c *catalog.Candidate, accepted []catalog.Candidate) float64 {
	if len(accepted) == 0 {
		return 1
	}
	worst := 0.0
	window := catalog.ParseTimeWindow(c.TimeWindow)
	for i := range accepted {
		overlap := 0.7 * tagJaccard(c.Tags, accepted[i].Tags)
		if window == catalog.ParseTimeWindow(accepted[i].TimeWindow) {
			overlap += 0.3
		}
		if overlap > worst {
			worst = overlap
		}
	}
	return 1 - worst
}

func tagJaccard(a, b []string) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	set := make(map[string]bool, len(a))
	for _, t := range a {
		set[strings.ToLower(t)] = true
	}
	intersection := 0
	union := len(set)
	for _, t := range b {
		if set[strings.ToLower(t)] {
			intersection++
		} else {
			union++
		}
	}
	if union == 0 {
		return 0
	}
	return float64(intersection) / float64(union)
}
