package enrich

import (
	"github.com/codeGROOVE-dev/tripgen/pkg/catalog"
	"github.com/codeGROOVE-dev/tripgen/pkg/traffic"
)

// StrictFilter applies the safety policy after enrichment: drop candidates
// with high, severe, unknown, or missing traffic, heavy crowds, or an
// avoid-now recommendation. Survivors get a descriptive traffic tag.
//
// An unknown or missing reading is treated as unsafe, not neutral; that
// conservative bias is a policy choice, not a bug. The filter is
// idempotent: re-applying it to its own output changes nothing.
func StrictFilter(cands []catalog.Candidate) []catalog.Candidate {
	var kept []catalog.Candidate
	for i := range cands {
		c := cands[i]
		r := c.Traffic
		if r == nil {
			continue
		}
		switch r.Level {
		case traffic.LevelHigh, traffic.LevelSevere, traffic.LevelUnknown:
			continue
		case traffic.LevelVeryLow, traffic.LevelLow, traffic.LevelModerate:
		default:
			continue
		}
		if r.CrowdLevel == traffic.CrowdHigh || r.CrowdLevel == traffic.CrowdVeryHigh {
			continue
		}
		if r.Recommendation == traffic.AvoidNow {
			continue
		}

		tag := "low-traffic"
		if r.Level == traffic.LevelModerate {
			tag = "moderate-traffic"
		}
		c.TrafficTags = appendUnique(c.TrafficTags, tag)
		kept = append(kept, c)
	}
	return kept
}

func appendUnique(tags []string, tag string) []string {
	for _, t := range tags {
		if t == tag {
			return tags
		}
	}
	return append(tags, tag)
}
