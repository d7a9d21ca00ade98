package compress

import (
	"sort"
	"strings"
)

// signatureLength is the fixed maximum size of a semantic signature.
const signatureLength = 24

// Signature derives a coarse fingerprint from text: the distinct letters
// and digits of the normalized input, ordered by descending frequency
// (ties broken by rune order), truncated to a fixed length. It is not a
// hash and not an embedding; its only use is the cheap overlap
// comparison in Similarity.
func Signature(text string) string {
	freq := make(map[rune]int)
	for _, r := range strings.ToLower(text) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			freq[r]++
		}
	}
	if len(freq) == 0 {
		return ""
	}

	runes := make([]rune, 0, len(freq))
	for r := range freq {
		runes = append(runes, r)
	}
	sort.Slice(runes, func(i, j int) bool {
		if freq[runes[i]] != freq[runes[j]] {
			return freq[runes[i]] > freq[runes[j]]
		}
		return runes[i] < runes[j]
	})

	if len(runes) > signatureLength {
		runes = runes[:signatureLength]
	}
	return string(runes)
}

// Similarity returns the character-overlap ratio between two signatures:
// |intersection| / |smaller set|, in [0, 1]. Empty signatures score 0.
func Similarity(a, b string) float64 {
	if a == "" || b == "" {
		return 0
	}

	setA := make(map[rune]struct{}, len(a))
	for _, r := range a {
		setA[r] = struct{}{}
	}
	setB := make(map[rune]struct{}, len(b))
	for _, r := range b {
		setB[r] = struct{}{}
	}

	smaller := len(setA)
	if len(setB) < smaller {
		smaller = len(setB)
	}
	if smaller == 0 {
		return 0
	}

	overlap := 0
	for r := range setA {
		if _, ok := setB[r]; ok {
			overlap++
		}
	}
	return float64(overlap) / float64(smaller)
}
