package compress

import (
	"sort"
	"strings"
	"unicode"
)

// stopwords are common English tokens excluded from keyword and tag
// extraction. The list is intentionally small; missing a stopword costs
// a slightly noisier tag, not a correctness failure.
var stopwords = map[string]struct{}{
	"a": {}, "about": {}, "after": {}, "all": {}, "also": {}, "an": {},
	"and": {}, "any": {}, "are": {}, "as": {}, "at": {}, "be": {},
	"because": {}, "been": {}, "but": {}, "by": {}, "can": {}, "could": {},
	"did": {}, "do": {}, "does": {}, "for": {}, "from": {}, "get": {},
	"had": {}, "has": {}, "have": {}, "he": {}, "her": {}, "him": {},
	"his": {}, "how": {}, "i": {}, "if": {}, "in": {}, "into": {},
	"is": {}, "it": {}, "its": {}, "just": {}, "like": {}, "me": {},
	"more": {}, "my": {}, "no": {}, "not": {}, "of": {}, "on": {},
	"one": {}, "or": {}, "our": {}, "out": {}, "she": {}, "so": {},
	"some": {}, "than": {}, "that": {}, "the": {}, "their": {}, "them": {},
	"then": {}, "there": {}, "these": {}, "they": {}, "this": {}, "to": {},
	"up": {}, "us": {}, "was": {}, "we": {}, "were": {}, "what": {},
	"when": {}, "which": {}, "who": {}, "will": {}, "with": {}, "would": {},
	"you": {}, "your": {},
}

// ExtractKeywords returns up to max non-stopword tokens from text,
// ordered by descending frequency (ties broken alphabetically) and
// deduplicated. Tokens shorter than three runes are ignored.
func ExtractKeywords(text string, max int) []string {
	if max <= 0 {
		return nil
	}

	freq := make(map[string]int)
	for _, tok := range tokenize(text) {
		if len([]rune(tok)) < 3 {
			continue
		}
		if _, stop := stopwords[tok]; stop {
			continue
		}
		freq[tok]++
	}

	if len(freq) == 0 {
		return nil
	}

	words := make([]string, 0, len(freq))
	for w := range freq {
		words = append(words, w)
	}
	sort.Slice(words, func(i, j int) bool {
		if freq[words[i]] != freq[words[j]] {
			return freq[words[i]] > freq[words[j]]
		}
		return words[i] < words[j]
	})

	if len(words) > max {
		words = words[:max]
	}
	return words
}

// tokenize lowercases text and splits it on any non-letter, non-digit rune.
func tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}
