package retrieval

import (
	"math"
	"strconv"
	"strings"

	"github.com/codeGROOVE-dev/tripgen/pkg/catalog"
)

// Window buckets mapped to a representative hour range for peak-hour
// comparisons.
var windowHours = map[string][2]int{
	catalog.WindowMorning:   {6, 12},
	catalog.WindowAfternoon: {12, 18},
	catalog.WindowEvening:   {18, 23},
}

// temporalFit scores how well the candidate's advertised schedule matches
// the requested time of day. Candidates currently inside their stated peak
// hours are penalized; window agreement is rewarded. Longer trips dampen
// both effects since multi-day plans can shift an activity to another day.
// Returns [0,1].
func temporalFit(c *catalog.Candidate, reqCtx Context) float64 {
	days := reqCtx.DurationDays
	if days < 1 {
		days = 1
	}
	flexibility := 1 / math.Sqrt(float64(days))

	score := 0.5

	window := catalog.ParseTimeWindow(c.TimeWindow)
	switch {
	case window == reqCtx.TimeOfDay:
		score += 0.4 * flexibility
	case window == catalog.WindowAnytime:
		score += 0.2 * flexibility
	default:
		score -= 0.2 * flexibility
	}

	if peakOverlapsWindow(c.PeakHours, reqCtx.TimeOfDay) {
		score -= 0.4 * flexibility
	}

	if score < 0 {
		return 0
	}
	if score > 1 {
		return 1
	}
	return score
}

// peakOverlapsWindow reports whether a "HH:MM-HH:MM" peak-hours range
// overlaps the requested window bucket. Unparseable input never overlaps.
func peakOverlapsWindow(peakHours, window string) bool {
	start, end, ok := parseHourRange(peakHours)
	if !ok {
		return false
	}
	bounds, ok := windowHours[window]
	if !ok {
		return false
	}
	return start < bounds[1] && end > bounds[0]
}

func parseHourRange(raw string) (start, end int, ok bool) {
	parts := strings.SplitN(strings.TrimSpace(raw), "-", 2)
	if len(parts) != 2 {
		return 0, 0, false
	}
	start, ok = parseHour(parts[0])
	if !ok {
		return 0, 0, false
	}
	end, ok = parseHour(parts[1])
	if !ok || end <= start {
		return 0, 0, false
	}
	return start, end, true
}

func parseHour(raw string) (int, bool) {
	hhmm := strings.SplitN(strings.TrimSpace(raw), ":", 2)
	h, err := strconv.Atoi(hhmm[0])
	if err != nil || h < 0 || h > 23 {
		return 0, false
	}
	return h, true
}
