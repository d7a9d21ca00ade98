// Package compress collapses raw text into a compact representation with
// a coarse semantic signature, and classifies text into memory
// categories. Compression is lossy summarization, not an encoding: it is
// idempotent in classification but never reversible.
package compress

import (
	"strings"
)

// Per-category length budgets for the compressed representation, in
// characters. Core items are kept nearly whole; deeper tiers are
// squeezed harder. Conversation compression is cosmetic only — the
// store retains the original verbatim regardless.
var categoryBudget = map[Category]int{
	Core:         2000,
	Working:      1200,
	Reference:    800,
	Historical:   400,
	Conversation: 600,
}

// Result describes one compression pass.
type Result struct {
	CompressedText    string
	OriginalLength    int
	SemanticSignature string
	CompressionRatio  float64
	TokensSaved       int
}

// Compress produces the compact representation of text for the given
// category. It never fails: any input that cannot be usefully reduced is
// returned unchanged with CompressionRatio 1.0.
func Compress(text string, category Category) Result {
	original := text
	res := Result{
		OriginalLength:    len(original),
		SemanticSignature: Signature(original),
	}

	budget, ok := categoryBudget[category]
	if !ok || len(original) == 0 {
		res.CompressedText = original
		res.CompressionRatio = 1.0
		return res
	}

	compact := collapseWhitespace(original)
	if len(compact) > budget {
		compact = truncateMiddle(compact, budget)
	}

	// Fall back to the untouched input if the heuristics produced
	// nothing useful.
	if compact == "" {
		compact = original
	}

	res.CompressedText = compact
	res.CompressionRatio = float64(len(compact)) / float64(len(original))
	if saved := len(original) - len(compact); saved > 0 {
		res.TokensSaved = saved / 4
	}
	return res
}

// collapseWhitespace folds runs of blank lines and trailing spaces. The
// line structure of the input is otherwise preserved.
func collapseWhitespace(text string) string {
	lines := strings.Split(text, "\n")
	out := make([]string, 0, len(lines))
	blank := false
	for _, line := range lines {
		trimmed := strings.TrimRight(line, " \t")
		if strings.TrimSpace(trimmed) == "" {
			if blank {
				continue
			}
			blank = true
			out = append(out, "")
			continue
		}
		blank = false
		out = append(out, trimmed)
	}
	return strings.TrimSpace(strings.Join(out, "\n"))
}

// truncateMiddle keeps the head and tail of text within budget,
// joined by an ellipsis marker. The head is favored 2:1 over the tail
// since openings carry most of the summary weight in conversational
// text.
func truncateMiddle(text string, budget int) string {
	const marker = " [...] "
	runes := []rune(text)
	if len(runes) <= budget {
		return text
	}
	if budget <= len(marker) {
		return string(runes[:budget])
	}

	avail := budget - len(marker)
	head := avail * 2 / 3
	tail := avail - head
	return string(runes[:head]) + marker + string(runes[len(runes)-tail:])
}
