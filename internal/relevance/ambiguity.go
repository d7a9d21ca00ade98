package relevance

import (
	"fmt"
	"regexp"
	"strings"
)

// Match is one candidate flagged by ambiguity detection.
type Match struct {
	ItemID   string
	Category string
	Score    float64
	Summary  string
}

// Detector decides whether a prompt plus its ranked candidates is
// ambiguous enough to warrant a clarification question instead of a
// direct answer. It is a narrow pattern heuristic, not an intent
// classifier; implementations should err hard toward returning nothing.
type Detector interface {
	Detect(prompt string, ranked []ScoredItem) []Match
}

// minAmbiguousCandidates is the conservative trigger: fewer than this
// many strong candidates never interrupts the conversation.
const minAmbiguousCandidates = 3

// ambiguityScoreFloor is the per-candidate strength a match must exceed.
const ambiguityScoreFloor = 0.85

// artifactPattern recognizes bare references to a previously produced
// artifact ("your poem", "that story", "show me the song"), capturing
// the artifact noun.
var artifactPattern = regexp.MustCompile(
	`(?i)\b(?:your|my|that|the)\s+(poem|story|song|letter|essay|explanation|joke|list|summary)s?\b`,
)

// PatternDetector is the default Detector: a fixed set of regular
// expressions over the prompt, with candidate matching by artifact noun
// in item content.
type PatternDetector struct{}

// NewPatternDetector returns the stock conservative detector.
func NewPatternDetector() *PatternDetector {
	return &PatternDetector{}
}

var _ Detector = (*PatternDetector)(nil)

// Detect returns the matching candidates when the prompt names an
// artifact and at least three ranked items independently score above the
// floor for that artifact; otherwise it returns nil. Matches come back
// strongest-first, truncated to three.
func (d *PatternDetector) Detect(prompt string, ranked []ScoredItem) []Match {
	groups := artifactPattern.FindStringSubmatch(prompt)
	if groups == nil {
		return nil
	}
	noun := strings.ToLower(groups[1])
	nounRe, err := regexp.Compile(`(?i)\b` + regexp.QuoteMeta(noun) + `s?\b`)
	if err != nil {
		return nil
	}

	var matches []Match
	for _, cand := range ranked {
		mentions := len(nounRe.FindAllString(cand.Item.OriginalContent, 2))
		if mentions == 0 {
			continue
		}
		// Strength combines how often the item talks about the noun
		// with its ranking score, so a glancing single mention in a
		// weakly ranked item falls under the floor.
		strength := 0.6 + 0.1*float64(mentions) + 0.2*cand.Score
		if strength <= ambiguityScoreFloor {
			continue
		}
		matches = append(matches, Match{
			ItemID:   cand.Item.ID,
			Category: string(cand.Item.Category),
			Score:    strength,
			Summary:  summarize(cand.Item.OriginalContent),
		})
	}

	if len(matches) < minAmbiguousCandidates {
		return nil
	}
	if len(matches) > 3 {
		matches = matches[:3]
	}
	return matches
}

// Clarification renders the question shown to the user when detection
// triggers.
func Clarification(matches []Match) string {
	var b strings.Builder
	fmt.Fprintf(&b, "I found %d possible matches in our conversation. Which one did you mean?\n", len(matches))
	for i, m := range matches {
		fmt.Fprintf(&b, "%d) %s\n", i+1, m.Summary)
	}
	return strings.TrimRight(b.String(), "\n")
}

// summarize produces a one-line preview of item content.
func summarize(content string) string {
	line := content
	if idx := strings.IndexByte(line, '\n'); idx >= 0 {
		line = line[:idx]
	}
	line = strings.TrimSpace(line)
	const max = 80
	runes := []rune(line)
	if len(runes) > max {
		line = string(runes[:max]) + "..."
	}
	return line
}
