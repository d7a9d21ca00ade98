package relevance_test

import (
	"fmt"
	"testing"
	"time"

	"github.com/engramd/engram/internal/compress"
	"github.com/engramd/engram/internal/memory"
	"github.com/engramd/engram/internal/relevance"
	"github.com/engramd/engram/internal/session"
)

func conversationItem(id, content, sessionID string, age time.Duration) memory.Item {
	res := compress.Compress(content, compress.Conversation)
	return memory.Item{
		ID:                id,
		Category:          compress.Conversation,
		OriginalContent:   content,
		CompressedContent: res.CompressedText,
		SemanticSignature: res.SemanticSignature,
		Metadata: memory.ItemMetadata{
			Timestamp:       time.Now().Add(-age),
			SessionID:       sessionID,
			Tags:            compress.ExtractKeywords(content, 8),
			SessionKeywords: compress.ExtractKeywords(content, 5),
		},
	}
}

func tierItem(id, content string, cat compress.Category, age time.Duration) memory.Item {
	res := compress.Compress(content, cat)
	return memory.Item{
		ID:                id,
		Category:          cat,
		OriginalContent:   content,
		CompressedContent: res.CompressedText,
		SemanticSignature: res.SemanticSignature,
		Metadata: memory.ItemMetadata{
			Timestamp: time.Now().Add(-age),
			Tags:      compress.ExtractKeywords(content, 8),
		},
	}
}

func TestScore_Bounded(t *testing.T) {
	t.Parallel()

	scorer := relevance.NewScorer(relevance.DefaultWeights)
	tracker := session.NewTracker("S1")

	// Stack every bonus: same session, in the rolling window, fresh
	// conversation item whose content equals the prompt.
	prompt := "the mountain poem about high peaks and snow"
	item := conversationItem("hot", "User: "+prompt+"\n\nAssistant: "+prompt, "S1", time.Minute)
	tracker.RecordTurn("hot", prompt, prompt)
	snap := tracker.Snapshot()

	q := relevance.NewQuery(prompt)
	hot := scorer.Score(q, item, snap)
	if hot < 0 || hot > 1 {
		t.Fatalf("score %v outside [0,1]", hot)
	}
	if hot < 0.8 {
		t.Errorf("fully boosted item scored %v, expected near the clamp", hot)
	}

	// Ancient, unrelated, foreign-session item.
	cold := scorer.Score(q, tierItem("cold", "zzz qqq xxx", compress.Historical, 90*24*time.Hour), snap)
	if cold < 0 || cold > 1 {
		t.Fatalf("score %v outside [0,1]", cold)
	}
	if cold >= hot {
		t.Errorf("cold item (%v) should score below hot item (%v)", cold, hot)
	}
}

func TestScore_RecencyStaircase(t *testing.T) {
	t.Parallel()

	scorer := relevance.NewScorer(relevance.DefaultWeights)
	snap := session.NewTracker("S1").Snapshot()
	q := relevance.NewQuery("shared subject matter for every item")

	content := "shared subject matter for every item"
	fresh := scorer.Score(q, tierItem("a", content, compress.Working, time.Hour), snap)
	week := scorer.Score(q, tierItem("b", content, compress.Working, 5*24*time.Hour), snap)
	stale := scorer.Score(q, tierItem("c", content, compress.Working, 60*24*time.Hour), snap)

	if !(fresh > week && week > stale) {
		t.Errorf("recency ordering violated: fresh=%v week=%v stale=%v", fresh, week, stale)
	}
}

func TestScore_RecentConversationBoost(t *testing.T) {
	t.Parallel()

	scorer := relevance.NewScorer(relevance.DefaultWeights)
	snap := session.NewTracker("other").Snapshot()

	content := "User: hello\n\nAssistant: hello again"
	q := relevance.NewQuery("completely different themes entirely")

	recent := scorer.Score(q, conversationItem("r", content, "x", 10*time.Minute), snap)
	older := scorer.Score(q, conversationItem("o", content, "x", 3*time.Hour), snap)

	if recent <= older {
		t.Errorf("recent conversation (%v) should outscore an older one (%v) via the flat boost", recent, older)
	}
	if diff := recent - older; diff < 0.25 {
		t.Errorf("boost delta %v too small, want ~0.30", diff)
	}
}

func TestScore_SessionMatchOutranksForeignSession(t *testing.T) {
	t.Parallel()

	scorer := relevance.NewScorer(relevance.DefaultWeights)
	snap := session.NewTracker("S1").Snapshot()
	q := relevance.NewQuery("topic")

	content := "User: topic\n\nAssistant: topic detail"
	same := scorer.Score(q, conversationItem("a", content, "S1", 2*time.Hour), snap)
	foreign := scorer.Score(q, conversationItem("b", content, "S2", 2*time.Hour), snap)

	if same <= foreign {
		t.Errorf("same-session item (%v) should outscore foreign-session item (%v)", same, foreign)
	}
}

func TestRank_FiltersAndTruncates(t *testing.T) {
	t.Parallel()

	scorer := relevance.NewScorer(relevance.DefaultWeights)
	snap := session.NewTracker("S1").Snapshot()
	q := relevance.NewQuery("deployment pipeline configuration")

	var items []memory.Item
	for i := 0; i < 6; i++ {
		items = append(items, tierItem(
			fmt.Sprintf("rel%d", i),
			"deployment pipeline configuration notes",
			compress.Working, time.Hour))
	}
	// Far below the cutoff: ancient, unrelated, weak tier.
	items = append(items, tierItem("noise", "zq", compress.Historical, 200*24*time.Hour))

	ranked := scorer.Rank(q, items, snap, 4)
	if len(ranked) != 4 {
		t.Fatalf("got %d ranked items, want 4", len(ranked))
	}
	for _, r := range ranked {
		if r.Item.ID == "noise" {
			t.Error("below-cutoff item survived ranking")
		}
		if r.Score <= 0.3 {
			t.Errorf("item %s scored %v, cutoff is 0.3", r.Item.ID, r.Score)
		}
	}
	for i := 1; i < len(ranked); i++ {
		if ranked[i].Score > ranked[i-1].Score {
			t.Error("ranked items not in descending score order")
		}
	}
}
