// Package session tracks process-lifetime conversation state: the
// current session id, a rolling window of recent turns, and the
// accumulated keyword set used for soft relevance scoring. State is
// explicit and never persisted; a restart rebuilds nothing.
package session

import (
	"sync"
	"time"

	"github.com/engramd/engram/internal/compress"
)

// maxRecentTurns bounds the rolling window; the oldest turn is evicted
// first.
const maxRecentTurns = 10

// turnKeywords is how many keywords one turn contributes.
const turnKeywords = 5

// RecentTurn is one remembered exchange in the rolling window.
type RecentTurn struct {
	ID                string
	UserMessage       string
	AssistantResponse string
	Timestamp         time.Time
	Keywords          []string
}

// Snapshot is a point-in-time copy of tracker state, safe to read after
// the tracker has moved on.
type Snapshot struct {
	SessionID         string
	ConversationCount int
	RecentTurns       []RecentTurn
	ContextKeywords   []string
}

// Tracker holds ambient session state for one running watcher. Safe for
// concurrent use.
type Tracker struct {
	mu                sync.Mutex
	sessionID         string
	conversationCount int
	recent            []RecentTurn
	keywords          map[string]struct{}
	keywordOrder      []string
}

// NewTracker creates a tracker for the given session id. An empty id
// defaults to "default".
func NewTracker(sessionID string) *Tracker {
	if sessionID == "" {
		sessionID = "default"
	}
	return &Tracker{
		sessionID: sessionID,
		keywords:  make(map[string]struct{}),
	}
}

// SessionID returns the tracker's session identifier.
func (t *Tracker) SessionID() string {
	return t.sessionID
}

// RecordTurn registers a completed exchange: it increments the
// conversation counter, extracts up to five keywords from the combined
// turn text, merges them into the accumulated set, and appends the turn
// to the rolling window. The extracted keywords are returned for the
// caller's own bookkeeping (the store attaches them to the persisted
// conversation item).
func (t *Tracker) RecordTurn(turnID, userMessage, assistantResponse string) []string {
	kws := compress.ExtractKeywords(userMessage+" "+assistantResponse, turnKeywords)

	t.mu.Lock()
	defer t.mu.Unlock()

	t.conversationCount++
	for _, kw := range kws {
		if _, seen := t.keywords[kw]; !seen {
			t.keywords[kw] = struct{}{}
			t.keywordOrder = append(t.keywordOrder, kw)
		}
	}

	t.recent = append(t.recent, RecentTurn{
		ID:                turnID,
		UserMessage:       userMessage,
		AssistantResponse: assistantResponse,
		Timestamp:         time.Now(),
		Keywords:          kws,
	})
	if len(t.recent) > maxRecentTurns {
		t.recent = t.recent[len(t.recent)-maxRecentTurns:]
	}

	return kws
}

// IsCurrentSession reports whether candidate names this tracker's
// session.
func (t *Tracker) IsCurrentSession(candidate string) bool {
	return candidate != "" && candidate == t.sessionID
}

// ConversationCount returns the number of turns recorded so far.
func (t *Tracker) ConversationCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.conversationCount
}

// Snapshot copies the current state for relevance scoring.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.Lock()
	defer t.mu.Unlock()

	snap := Snapshot{
		SessionID:         t.sessionID,
		ConversationCount: t.conversationCount,
		RecentTurns:       make([]RecentTurn, len(t.recent)),
		ContextKeywords:   make([]string, len(t.keywordOrder)),
	}
	copy(snap.RecentTurns, t.recent)
	copy(snap.ContextKeywords, t.keywordOrder)
	return snap
}

// HasRecentTurn reports whether the given item id is inside the rolling
// window.
func (s Snapshot) HasRecentTurn(id string) bool {
	for _, turn := range s.RecentTurns {
		if turn.ID == id {
			return true
		}
	}
	return false
}
