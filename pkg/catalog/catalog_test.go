package catalog

import (
	"os"
	"path/filepath"
	"testing"
)

func TestNormalizeTitle(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{name: "lowercase passthrough", input: "burnham park", want: "burnhampark"},
		{name: "mixed case", input: "Burnham Park", want: "burnhampark"},
		{name: "punctuation stripped", input: "Tam-awan Village!", want: "tamawanvillage"},
		{name: "diacritics folded", input: "Café São José", want: "cafesaojose"},
		{name: "digits preserved", input: "Route 66 Diner", want: "route66diner"},
		{name: "whitespace only", input: "   ", want: ""},
		{name: "empty", input: "", want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := NormalizeTitle(tt.input); got != tt.want {
				t.Errorf("NormalizeTitle(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestNormalizeTitleJoinsVariants(t *testing.T) {
	// Variants of the same place must collapse to one key.
	variants := []string{
		"Mines View Observation Deck",
		"mines view observation deck",
		"Mines-View Observation Deck",
		"MINES VIEW OBSERVATION DECK!",
	}
	want := NormalizeTitle(variants[0])
	for _, v := range variants[1:] {
		if got := NormalizeTitle(v); got != want {
			t.Errorf("NormalizeTitle(%q) = %q, want %q", v, got, want)
		}
	}
}

func TestParseTimeWindow(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"morning", WindowMorning},
		{"Best at sunrise", WindowMorning},
		{"breakfast spot", WindowMorning},
		{"afternoon", WindowAfternoon},
		{"midday strolls", WindowAfternoon},
		{"good for lunch", WindowAfternoon},
		{"evening", WindowEvening},
		{"sunset views", WindowEvening},
		{"night market", WindowEvening},
		{"dinner only", WindowEvening},
		{"anytime", WindowAnytime},
		{"whenever", WindowAnytime},
		{"", WindowAnytime},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := ParseTimeWindow(tt.input); got != tt.want {
				t.Errorf("ParseTimeWindow(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestHasTag(t *testing.T) {
	c := Candidate{Tags: []string{"Outdoor", "food"}}

	if !c.HasTag("outdoor") {
		t.Error("HasTag is not case-insensitive")
	}
	if !c.HasTag("FOOD") {
		t.Error("HasTag(FOOD) = false, want true")
	}
	if c.HasTag("museum") {
		t.Error("HasTag(museum) = true, want false")
	}
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "catalog.yaml")
	data := `activities:
  - title: Ridge Viewpoint
    description: Overlook above the valley
    time_window: best at sunrise
    tags: [outdoor, viewpoint]
    lat: 16.42
    lon: 120.62
  - title: City Museum
    description: Local history exhibits
    time_window: afternoon
    tags: [indoor, museum]
`
	if err := os.WriteFile(path, []byte(data), 0o600); err != nil {
		t.Fatal(err)
	}

	cands, err := Load(path)
	if err != nil {
		t.Fatalf("Load = %v", err)
	}
	if len(cands) != 2 {
		t.Fatalf("got %d activities, want 2", len(cands))
	}

	if cands[0].TimeWindow != WindowMorning {
		t.Errorf("TimeWindow = %q, want %q (parsed from free text)", cands[0].TimeWindow, WindowMorning)
	}
	if !cands[0].HasCoordinates {
		t.Error("HasCoordinates not derived from lat/lon")
	}
	if cands[1].HasCoordinates {
		t.Error("HasCoordinates = true for an entry without coordinates")
	}
}

func TestLoadRejectsUntitledActivity(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "catalog.yaml")
	data := `activities:
  - description: no title here
`
	if err := os.WriteFile(path, []byte(data), 0o600); err != nil {
		t.Fatal(err)
	}

	if _, err := Load(path); err == nil {
		t.Error("Load accepted an activity without a title")
	}
}

func TestLoadRejectsEmptyCatalog(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "catalog.yaml")
	if err := os.WriteFile(path, []byte("activities: []\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	if _, err := Load(path); err == nil {
		t.Error("Load accepted an empty catalog")
	}
}

func TestDefaultCatalog(t *testing.T) {
	cands := Default()
	if len(cands) == 0 {
		t.Fatal("Default returned no activities")
	}

	seen := make(map[string]bool)
	for _, c := range cands {
		if c.Title == "" {
			t.Error("built-in activity with empty title")
		}
		if !c.HasCoordinates {
			t.Errorf("%s: built-in activity without coordinates", c.Title)
		}
		key := NormalizeTitle(c.Title)
		if seen[key] {
			t.Errorf("duplicate normalized title %q", key)
		}
		seen[key] = true
	}
}
