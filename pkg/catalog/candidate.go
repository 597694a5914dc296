// Package catalog defines the recommendable activity model and catalog loading.
package catalog

import (
	"strings"
	"unicode"

	"github.com/codeGROOVE-dev/tripgen/pkg/traffic"
)

// TimeWindow buckets for activity scheduling.
const (
	WindowMorning   = "morning"
	WindowAfternoon = "afternoon"
	WindowEvening   = "evening"
	WindowAnytime   = "anytime"
)

// Candidate represents one recommendable activity. Title is the join key
// across every pipeline phase; compare titles through NormalizeTitle because
// upstream data sources vary in casing and punctuation.
type Candidate struct {
	Title          string   `yaml:"title" json:"title"`
	Description    string   `yaml:"description" json:"description"`
	TimeWindow     string   `yaml:"time_window" json:"time_window,omitempty"`
	PeakHours      string   `yaml:"peak_hours" json:"peak_hours,omitempty"`
	Tags           []string `yaml:"tags" json:"tags,omitempty"`
	Lat            float64  `yaml:"lat" json:"lat,omitempty"`
	Lon            float64  `yaml:"lon" json:"lon,omitempty"`
	HasCoordinates bool     `yaml:"has_coordinates" json:"has_coordinates,omitempty"`

	// Filled in by retrieval and enrichment; zero until those phases run.
	RelevanceScore float64          `yaml:"-" json:"relevance_score,omitempty"`
	Traffic        *traffic.Reading `yaml:"-" json:"traffic,omitempty"`
	TrafficTags    []string         `yaml:"-" json:"traffic_tags,omitempty"`
}

// HasTag reports whether the candidate carries the tag (case-insensitive).
func (c *Candidate) HasTag(tag string) bool {
	for _, t := range c.Tags {
		if strings.EqualFold(t, tag) {
			return true
		}
	}
	return false
}

// diacriticFold maps Latin-1 accented runes to their base letter. Catalog
// data is Latin-script place names, so a small table beats pulling in a
// full Unicode normalization dependency.
var diacriticFold = map[rune]rune{
	'á': 'a', 'à': 'a', 'â': 'a', 'ä': 'a', 'ã': 'a', 'å': 'a',
	'é': 'e', 'è': 'e', 'ê': 'e', 'ë': 'e',
	'í': 'i', 'ì': 'i', 'î': 'i', 'ï': 'i',
	'ó': 'o', 'ò': 'o', 'ô': 'o', 'ö': 'o', 'õ': 'o',
	'ú': 'u', 'ù': 'u', 'û': 'u', 'ü': 'u',
	'ñ': 'n', 'ç': 'c', 'ý': 'y',
}

// NormalizeTitle lowercases a title, folds diacritics, and strips everything
// that is not a letter or digit. The result is the canonical join key used
// for deduplication and for reconciling generator output with enrichment
// records.
func NormalizeTitle(title string) string {
	var b strings.Builder
	b.Grow(len(title))
	for _, r := range strings.ToLower(title) {
		if folded, ok := diacriticFold[r]; ok {
			r = folded
		}
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// ParseTimeWindow maps free-text scheduling hints to one of the window
// buckets. Unrecognized text falls back to anytime.
func ParseTimeWindow(raw string) string {
	s := strings.ToLower(raw)
	switch {
	case strings.Contains(s, "morning"), strings.Contains(s, "sunrise"), strings.Contains(s, "breakfast"), strings.Contains(s, "am only"):
		return WindowMorning
	case strings.Contains(s, "afternoon"), strings.Contains(s, "midday"), strings.Contains(s, "lunch"):
		return WindowAfternoon
	case strings.Contains(s, "evening"), strings.Contains(s, "sunset"), strings.Contains(s, "night"), strings.Contains(s, "dinner"):
		return WindowEvening
	default:
		return WindowAnytime
	}
}
