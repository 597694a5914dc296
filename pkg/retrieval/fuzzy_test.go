package retrieval

import "testing"

func TestFuzzySimilarityExactMatch(t *testing.T) {
	if got := fuzzySimilarity("burnham park", "Burnham Park lakeside"); got < 0.99 {
		t.Errorf("fuzzySimilarity(exact tokens) = %v, want ~1", got)
	}
}

func TestFuzzySimilarityToleratesMisspelling(t *testing.T) {
	clean := fuzzySimilarity("burnham", "Burnham Park")
	typo := fuzzySimilarity("burnhem", "Burnham Park")
	unrelated := fuzzySimilarity("cathedral", "Burnham Park")

	if typo <= unrelated {
		t.Errorf("misspelling scored %v, unrelated scored %v; want misspelling higher", typo, unrelated)
	}
	if typo > clean {
		t.Errorf("misspelling scored %v above the exact match %v", typo, clean)
	}
	// The consonant skeleton absorbs the vowel swap, so the typo should
	// stay close to the exact score.
	if typo < 0.7 {
		t.Errorf("vowel-level typo scored %v, want >= 0.7", typo)
	}
}

func TestFuzzySimilarityEmptyInputs(t *testing.T) {
	if got := fuzzySimilarity("", "anything"); got != 0 {
		t.Errorf("empty query = %v, want 0", got)
	}
	if got := fuzzySimilarity("anything", ""); got != 0 {
		t.Errorf("empty text = %v, want 0", got)
	}
}

func TestEditSimilarity(t *testing.T) {
	tests := []struct {
		a, b string
		want float64
	}{
		{"park", "park", 1},
		{"park", "", 0},
		{"", "", 1}, // equal strings short-circuit before the length check
		{"park", "dark", 0.75},
	}
	for _, tt := range tests {
		if got := editSimilarity(tt.a, tt.b); got != tt.want {
			t.Errorf("editSimilarity(%q, %q) = %v, want %v", tt.a, tt.b, got, tt.want)
		}
	}
}

func TestSkeleton(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"burnham", "brnhm"},
		{"burnhem", "brnhm"}, // vowel swap collapses to the same skeleton
		{"park", "prk"},
		{"aaa", "a"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := skeleton(tt.input); got != tt.want {
			t.Errorf("skeleton(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}

func TestTokenizeDropsShortAndNonAlnum(t *testing.T) {
	got := tokenize("A walk in the Park, at 6pm!")
	want := []string{"walk", "in", "the", "park", "at", "6pm"}
	if len(got) != len(want) {
		t.Fatalf("tokenize = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("token %d = %q, want %q", i, got[i], want[i])
		}
	}
}
