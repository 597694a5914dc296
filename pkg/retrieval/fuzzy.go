package retrieval

import (
	"strings"

	"github.com/agnivade/levenshtein"
)

// fuzzySimilarity combines normalized edit distance with a phonetic-style
// consonant-skeleton match, averaged over the best-matching target token
// for each query token. Returns a value in [0,1].
func fuzzySimilarity(query, text string) float64 {
	queryTokens := tokenize(query)
	textTokens := tokenize(text)
	if len(queryTokens) == 0 || len(textTokens) == 0 {
		return 0
	}

	total := 0.0
	for _, q := range queryTokens {
		best := 0.0
		for _, t := range textTokens {
			sim := 0.6*editSimilarity(q, t) + 0.4*editSimilarity(skeleton(q), skeleton(t))
			if sim > best {
				best = sim
			}
		}
		total += best
	}
	return total / float64(len(queryTokens))
}

func tokenize(s string) []string {
	fields := strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !('a' <= r && r <= 'z') && !('0' <= r && r <= '9')
	})
	var tokens []string
	for _, f := range fields {
		if len(f) > 1 {
			tokens = append(tokens, f)
		}
	}
	return tokens
}

// editSimilarity is 1 minus the edit distance normalized by the longer
// string.
func editSimilarity(a, b string) float64 {
	if a == b {
		return 1
	}
	longest := len(a)
	if len(b) > longest {
		longest = len(b)
	}
	if longest == 0 {
		return 0
	}
	dist := levenshtein.ComputeDistance(a, b)
	sim := 1 - float64(dist)/float64(longest)
	if sim < 0 {
		return 0
	}
	return sim
}

// skeleton reduces a word to its consonant skeleton: leading letter kept,
// vowels dropped, runs collapsed. A cheap stand-in for phonetic encoding
// that tolerates vowel-level misspellings.
func skeleton(word string) string {
	if word == "" {
		return ""
	}
	var b strings.Builder
	var last byte
	for i := 0; i < len(word); i++ {
		ch := word[i]
		if i > 0 && strings.ContainsRune("aeiou", rune(ch)) {
			continue
		}
		if ch == last {
			continue
		}
		b.WriteByte(ch)
		last = ch
	}
	return b.String()
}
