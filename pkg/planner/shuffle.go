package planner

import (
	"fmt"
	"hash/fnv"
	"io"
	"sort"
	"strings"

	"github.com/codeGROOVE-dev/tripgen/pkg/catalog"
)

// ShuffleSeed hashes the normalized request fields with FNV-1a. Identical
// requests produce identical seeds, so plan ordering is reproducible;
// changing any field almost certainly changes the seed. The hash also
// serves as the coalescing key for duplicate concurrent requests.
func (r *Request) ShuffleSeed() uint32 {
	h := fnv.New32a()

	writeField := func(s string) {
		io.WriteString(h, strings.ToLower(strings.TrimSpace(s))) //nolint:errcheck // hash writes cannot fail
		h.Write([]byte{0})                                       //nolint:errcheck // hash writes cannot fail
	}

	writeField(r.Query)
	interests := make([]string, len(r.Interests))
	copy(interests, r.Interests)
	sort.Strings(interests)
	for _, interest := range interests {
		writeField(interest)
	}
	writeField(r.Weather)
	writeField(r.TimeOfDay)
	writeField(r.Budget)
	writeField(fmt.Sprintf("%d/%d", r.GroupSize, r.DurationDays))

	return h.Sum32()
}

// splitmix32 is a fast 32-bit mix PRNG. Not cryptographic; it only has to
// be reproducible and well distributed.
func splitmix32(state *uint32) uint32 {
	*state += 0x9e3779b9
	z := *state
	z ^= z >> 16
	z *= 0x21f0aaad
	z ^= z >> 15
	z *= 0x735a2d97
	z ^= z >> 15
	return z
}

// deterministicShuffle is a Fisher-Yates shuffle driven by splitmix32, so
// identical seeds yield identical orderings.
func deterministicShuffle(cands []catalog.Candidate, seed uint32) {
	state := seed
	for i := len(cands) - 1; i > 0; i-- {
		j := int(splitmix32(&state) % uint32(i+1))
		cands[i], cands[j] = cands[j], cands[i]
	}
}

// dedupeByNormalizedTitle keeps the first occurrence of each normalized
// title and drops the rest.
func dedupeByNormalizedTitle(cands []catalog.Candidate) []catalog.Candidate {
	seen := make(map[string]bool, len(cands))
	var out []catalog.Candidate
	for i := range cands {
		key := catalog.NormalizeTitle(cands[i].Title)
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, cands[i])
	}
	return out
}
