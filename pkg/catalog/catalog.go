package catalog

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Load reads a YAML activity catalog from path. Entries with coordinates
// must set both lat and lon; HasCoordinates is derived so catalog authors
// never have to write it by hand.
func Load(path string) ([]Candidate, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading catalog: %w", err)
	}
	var file struct {
		Activities []Candidate `yaml:"activities"`
	}
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parsing catalog: %w", err)
	}
	if len(file.Activities) == 0 {
		return nil, fmt.Errorf("catalog %s contains no activities", path)
	}
	for i := range file.Activities {
		c := &file.Activities[i]
		if c.Title == "" {
			return nil, fmt.Errorf("catalog %s: activity %d has no title", path, i)
		}
		if c.Lat != 0 || c.Lon != 0 {
			c.HasCoordinates = true
		}
		c.TimeWindow = ParseTimeWindow(c.TimeWindow)
	}
	return file.Activities, nil
}

// Default returns a built-in catalog for offline use and demos.
func Default() []Candidate {
	cands := []Candidate{
		{Title: "Burnham Park", Description: "Lakeside city park with boat rides and bike rentals", TimeWindow: "anytime", Tags: []string{"outdoor", "park", "family", "budget"}, Lat: 16.4095, Lon: 120.5950},
		{Title: "Mines View Observation Deck", Description: "Panoramic ridge viewpoint over the old mining valley", TimeWindow: "morning", PeakHours: "09:00-12:00", Tags: []string{"outdoor", "viewpoint", "photography"}, Lat: 16.4224, Lon: 120.6287},
		{Title: "Night Market on Harrison Road", Description: "Open-air bargain market with street food stalls", TimeWindow: "evening", PeakHours: "21:00-23:00", Tags: []string{"market", "food", "budget", "shopping"}, Lat: 16.4110, Lon: 120.5970},
		{Title: "Botanical Garden", Description: "Quiet themed gardens with native sculpture trails", TimeWindow: "morning", Tags: []string{"outdoor", "garden", "quiet", "photography"}, Lat: 16.4145, Lon: 120.6055},
		{Title: "Cathedral of Our Lady of Atonement", Description: "Rose-hued twin-spired cathedral above the market district", TimeWindow: "anytime", Tags: []string{"landmark", "architecture", "history"}, Lat: 16.4135, Lon: 120.5985},
		{Title: "Tam-awan Village", Description: "Reconstructed hillside artists' village with huts and galleries", TimeWindow: "afternoon", Tags: []string{"culture", "art", "history", "indoor"}, Lat: 16.4320, Lon: 120.5810},
		{Title: "The Mansion", Description: "Historic official residence with formal gates and lawns", TimeWindow: "afternoon", Tags: []string{"landmark", "history", "photography"}, Lat: 16.4160, Lon: 120.6230},
		{Title: "Wright Park", Description: "Pine-lined reflecting pool with pony rides nearby", TimeWindow: "anytime", Tags: []string{"outdoor", "park", "family"}, Lat: 16.4150, Lon: 120.6215},
		{Title: "Museo Kordilyera", Description: "University ethnographic museum of highland cultures", TimeWindow: "afternoon", Tags: []string{"museum", "indoor", "culture", "history"}, Lat: 16.4005, Lon: 120.5935},
		{Title: "Camp John Hay", Description: "Forested former rest station with trails and cafes", TimeWindow: "anytime", Tags: []string{"outdoor", "forest", "food", "family"}, Lat: 16.4010, Lon: 120.6150},
		{Title: "Session Road Cafes", Description: "Downtown strip of third-wave coffee shops and bakeries", TimeWindow: "anytime", PeakHours: "11:00-14:00", Tags: []string{"food", "cafe", "indoor", "budget"}, Lat: 16.4120, Lon: 120.5990},
		{Title: "Mirador Heritage and Eco Park", Description: "Bamboo trail and peace memorial on a quiet hilltop", TimeWindow: "morning", Tags: []string{"outdoor", "viewpoint", "quiet", "hike"}, Lat: 16.4080, Lon: 120.5830},
	}
	for i := range cands {
		cands[i].HasCoordinates = true
	}
	return cands
}
