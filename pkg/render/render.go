// Package render provides terminal visualization of generated plans.
package render

import (
	"fmt"
	"strings"
	"time"

	"github.com/fatih/color"

	"github.com/codeGROOVE-dev/tripgen/pkg/planner"
	"github.com/codeGROOVE-dev/tripgen/pkg/traffic"
)

// trafficColorFunc returns a color function for a congestion level.
func trafficColorFunc(level traffic.Level) *color.Color {
	switch level {
	case traffic.LevelVeryLow, traffic.LevelLow:
		return color.New(color.FgGreen)
	case traffic.LevelModerate:
		return color.New(color.FgYellow)
	case traffic.LevelHigh, traffic.LevelSevere:
		return color.New(color.FgRed)
	default:
		return color.New(color.FgHiBlack)
	}
}

func recommendationGlyph(rec traffic.Recommendation) string {
	switch rec {
	case traffic.VisitNow:
		return "✓ visit now"
	case traffic.VisitSoon:
		return "~ visit soon"
	case traffic.PlanLater:
		return "◷ plan later"
	case traffic.AvoidNow:
		return "✗ avoid now"
	default:
		return ""
	}
}

func periodHeading(period string) string {
	switch strings.ToLower(period) {
	case "morning":
		return "🌅 Morning"
	case "afternoon":
		return "☀️ Afternoon"
	case "evening":
		return "🌆 Evening"
	default:
		return "📍 " + period
	}
}

// Plan renders a generated plan for the terminal.
func Plan(plan *planner.Plan) string {
	var output strings.Builder

	output.WriteString("🗺️  Your Plan\n")
	output.WriteString(strings.Repeat("─", 50) + "\n")

	for i, section := range plan.Sections {
		if i > 0 {
			output.WriteString("\n")
		}
		bold := color.New(color.Bold)
		output.WriteString(bold.Sprint(periodHeading(section.Period)) + "\n")

		for _, item := range section.Items {
			output.WriteString(fmt.Sprintf("  %-11s %s\n", item.Time, item.Title))
			if item.Description != "" {
				grey := color.New(color.FgHiBlack)
				output.WriteString("              " + grey.Sprint(item.Description) + "\n")
			}
			output.WriteString("              " + trafficBadge(item) + "\n")
		}
	}

	return output.String()
}

func trafficBadge(item planner.Item) string {
	if item.TrafficLevel == "" {
		grey := color.New(color.FgHiBlack)
		return grey.Sprint("traffic: unknown")
	}
	c := trafficColorFunc(item.TrafficLevel)
	badge := c.Sprintf("traffic: %s (%.0f%%)", item.TrafficLevel, item.TrafficScore*100)
	if glyph := recommendationGlyph(item.Recommendation); glyph != "" {
		badge += "  " + glyph
	}
	if item.CrowdLevel != "" {
		badge += fmt.Sprintf("  crowds: %s", item.CrowdLevel)
	}
	return badge
}

// Metrics renders the pipeline timing and efficiency summary.
func Metrics(m planner.Metrics) string {
	var output strings.Builder

	output.WriteString("\n⏱️  Pipeline\n")
	output.WriteString(strings.Repeat("─", 50) + "\n")
	output.WriteString(phaseLine("search", m.SearchTime, m.TotalTime))
	output.WriteString(phaseLine("traffic", m.TrafficTime, m.TotalTime))
	output.WriteString(phaseLine("generation", m.GenerationTime, m.TotalTime))
	output.WriteString(phaseLine("post-process", m.PostProcessTime, m.TotalTime))
	output.WriteString(fmt.Sprintf("  %-14s %s\n", "total", m.TotalTime.Round(time.Millisecond)))

	output.WriteString(fmt.Sprintf("  %-14s %.0f%%\n", "cache hits", m.CacheHitRate*100))
	output.WriteString(fmt.Sprintf("  %-14s %d\n", "calls avoided", m.APICallsAvoided))
	if m.Enrichment.DegradedClusters > 0 {
		yellow := color.New(color.FgYellow)
		output.WriteString("  " + yellow.Sprintf("%-14s %d", "degraded", m.Enrichment.DegradedClusters) + "\n")
	}

	return output.String()
}

// phaseLine renders one phase with a proportional bar, 20 cells wide.
func phaseLine(name string, elapsed, total time.Duration) string {
	const barWidth = 20
	filled := 0
	if total > 0 {
		filled = int(float64(barWidth) * elapsed.Seconds() / total.Seconds())
	}
	if filled > barWidth {
		filled = barWidth
	}
	bar := strings.Repeat("█", filled) + strings.Repeat("░", barWidth-filled)
	return fmt.Sprintf("  %-14s %s %s\n", name, bar, elapsed.Round(time.Millisecond))
}
