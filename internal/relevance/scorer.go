// Package relevance ranks stored memory items against an incoming
// prompt and assembles the winners into a bounded context block. Scoring
// is a best-effort heuristic, not a learned ranker.
package relevance

import (
	"sort"
	"time"

	"github.com/engramd/engram/internal/compress"
	"github.com/engramd/engram/internal/memory"
	"github.com/engramd/engram/internal/session"
)

// Weights are the per-factor multipliers of the relevance score.
type Weights struct {
	Signature float64
	Tags      float64
	Recency   float64
	Session   float64
	Category  float64
}

// DefaultWeights is the shipped factor weighting. The weights sum to
// 1.0, but the recent-conversation boost is added on top of the weighted
// sum and clamped afterwards, so the effective per-factor shares are
// only approximate. That clamp-after-sum behavior is deliberate and
// load-bearing: very recent conversation turns should dominate.
var DefaultWeights = Weights{
	Signature: 0.30,
	Tags:      0.25,
	Recency:   0.20,
	Session:   0.15,
	Category:  0.10,
}

// recentConversationBoost is added (pre-clamp) to conversation items
// created within the last hour.
const recentConversationBoost = 0.30

// minScore is the inclusion cutoff: items scoring at or below it are
// discarded outright.
const minScore = 0.3

// categoryPreference is the fixed tier preference used by the category
// factor.
var categoryPreference = map[compress.Category]float64{
	compress.Core:         1.0,
	compress.Conversation: 0.9,
	compress.Working:      0.8,
	compress.Reference:    0.6,
	compress.Historical:   0.6,
}

// Query is a prompt pre-processed for scoring: its signature and tag set
// are derived once and reused across every candidate.
type Query struct {
	Text      string
	Signature string
	Tags      []string
}

// NewQuery derives the scoring inputs from a raw prompt.
func NewQuery(prompt string) Query {
	return Query{
		Text:      prompt,
		Signature: compress.Signature(prompt),
		Tags:      compress.ExtractKeywords(prompt, 8),
	}
}

// ScoredItem pairs a candidate with its final clamped score.
type ScoredItem struct {
	Item  memory.Item
	Score float64
}

// Scorer computes relevance scores. The zero value is not usable; build
// one with NewScorer.
type Scorer struct {
	weights Weights
	now     func() time.Time
}

// NewScorer creates a scorer with the given weights. A zero Weights
// value falls back to DefaultWeights.
func NewScorer(weights Weights) *Scorer {
	if weights == (Weights{}) {
		weights = DefaultWeights
	}
	return &Scorer{weights: weights, now: time.Now}
}

// Score computes the relevance of item to the query, clamped to [0, 1].
func (s *Scorer) Score(q Query, item memory.Item, snap session.Snapshot) float64 {
	w := s.weights
	now := s.now()
	age := now.Sub(item.Metadata.Timestamp)

	score := w.Signature*compress.Similarity(q.Signature, item.SemanticSignature) +
		w.Tags*tagOverlap(q.Tags, item.Metadata.Tags) +
		w.Recency*recencyFactor(age) +
		w.Session*sessionFactor(item, snap) +
		w.Category*categoryPreference[item.Category]

	if item.Category == compress.Conversation && age >= 0 && age < time.Hour {
		score += recentConversationBoost
	}

	return clamp01(score)
}

// Rank scores all candidates, drops those at or below the cutoff, and
// returns the survivors sorted by descending score (ties broken by
// newer timestamp, then id, so ordering is deterministic). The result
// is truncated to maxItems when maxItems > 0.
func (s *Scorer) Rank(q Query, items []memory.Item, snap session.Snapshot, maxItems int) []ScoredItem {
	ranked := make([]ScoredItem, 0, len(items))
	for _, item := range items {
		if score := s.Score(q, item, snap); score > minScore {
			ranked = append(ranked, ScoredItem{Item: item, Score: score})
		}
	}

	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].Score != ranked[j].Score {
			return ranked[i].Score > ranked[j].Score
		}
		ti, tj := ranked[i].Item.Metadata.Timestamp, ranked[j].Item.Metadata.Timestamp
		if !ti.Equal(tj) {
			return ti.After(tj)
		}
		return ranked[i].Item.ID < ranked[j].Item.ID
	})

	if maxItems > 0 && len(ranked) > maxItems {
		ranked = ranked[:maxItems]
	}
	return ranked
}

// recencyFactor is a staircase over item age: full credit inside a day,
// decaying to a floor beyond thirty days.
func recencyFactor(age time.Duration) float64 {
	switch {
	case age < 0:
		return 1.0
	case age < 24*time.Hour:
		return 1.0
	case age < 3*24*time.Hour:
		return 0.8
	case age < 7*24*time.Hour:
		return 0.6
	case age < 30*24*time.Hour:
		return 0.4
	default:
		return 0.2
	}
}

// sessionFactor rewards items tied to the live session: +0.6 for a
// session id match, +0.4 for presence in the rolling window, plus the
// keyword overlap between the session's accumulated keywords and the
// item's keywords. Capped at 1.0.
func sessionFactor(item memory.Item, snap session.Snapshot) float64 {
	f := 0.0
	if item.Metadata.SessionID != "" && item.Metadata.SessionID == snap.SessionID {
		f += 0.6
	}
	if snap.HasRecentTurn(item.ID) {
		f += 0.4
	}

	itemKws := item.Metadata.SessionKeywords
	if len(itemKws) == 0 {
		itemKws = item.Metadata.Tags
	}
	f += tagOverlap(snap.ContextKeywords, itemKws)

	if f > 1.0 {
		f = 1.0
	}
	return f
}

// tagOverlap is a Jaccard-style overlap: shared tags over the query tag
// count. Returns 0 when either side is empty.
func tagOverlap(queryTags, itemTags []string) float64 {
	if len(queryTags) == 0 || len(itemTags) == 0 {
		return 0
	}
	set := make(map[string]struct{}, len(itemTags))
	for _, tag := range itemTags {
		set[tag] = struct{}{}
	}
	shared := 0
	for _, tag := range queryTags {
		if _, ok := set[tag]; ok {
			shared++
		}
	}
	return float64(shared) / float64(len(queryTags))
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
