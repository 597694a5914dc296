package retrieval

import (
	"strings"

	"github.com/codeGROOVE-dev/tripgen/pkg/catalog"
)

// Tag preferences per weather condition. Matching a preferred tag raises
// the contextual score; matching a penalized one lowers it.
var weatherPreferences = map[string]struct{ preferred, penalized []string }{
	"rain":         {preferred: []string{"indoor", "museum", "cafe", "art", "shopping"}, penalized: []string{"outdoor", "hike", "viewpoint"}},
	"drizzle":      {preferred: []string{"indoor", "museum", "cafe"}, penalized: []string{"hike", "viewpoint"}},
	"thunderstorm": {preferred: []string{"indoor", "museum", "cafe"}, penalized: []string{"outdoor", "hike", "viewpoint", "park"}},
	"clear":        {preferred: []string{"outdoor", "park", "viewpoint", "hike", "garden"}},
	"sunny":        {preferred: []string{"outdoor", "park", "viewpoint", "hike", "garden"}},
	"clouds":       {preferred: []string{"outdoor", "park"}},
	"fog":          {preferred: []string{"indoor", "museum", "cafe"}, penalized: []string{"viewpoint"}},
}

// budgetTags maps budget tiers to tags that suit them.
var budgetTags = map[string][]string{
	"low":    {"budget", "park", "market"},
	"medium": {},
	"high":   {"food", "shopping"},
}

// contextualFit scores keyword-driven agreement between the candidate and
// the request's interests, weather, and time of day. Returns [0,1].
func contextualFit(c *catalog.Candidate, reqCtx Context) float64 {
	score := 0.0
	haystack := strings.ToLower(c.Description)

	// Interest overlap carries half the signal.
	if len(reqCtx.Interests) > 0 {
		matched := 0
		for _, interest := range reqCtx.Interests {
			needle := strings.ToLower(interest)
			if c.HasTag(needle) || strings.Contains(haystack, needle) {
				matched++
			}
		}
		score += 0.5 * float64(matched) / float64(len(reqCtx.Interests))
	} else {
		score += 0.25
	}

	// Weather suitability.
	weatherScore := 0.15 // neutral when weather is unknown
	if prefs, ok := weatherPreferences[strings.ToLower(reqCtx.Weather)]; ok {
		weatherScore = 0.15
		for _, tag := range prefs.preferred {
			if c.HasTag(tag) {
				weatherScore = 0.3
				break
			}
		}
		for _, tag := range prefs.penalized {
			if c.HasTag(tag) {
				weatherScore = 0.0
				break
			}
		}
	}
	score += weatherScore

	// Time-of-day window agreement.
	window := catalog.ParseTimeWindow(c.TimeWindow)
	switch {
	case window == reqCtx.TimeOfDay:
		score += 0.2
	case window == catalog.WindowAnytime:
		score += 0.1
	}

	// Budget alignment is a small nudge, not a gate.
	for _, tag := range budgetTags[strings.ToLower(reqCtx.Budget)] {
		if c.HasTag(tag) {
			score += 0.05
			break
		}
	}

	if score > 1 {
		return 1
	}
	return score
}
