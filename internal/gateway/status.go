package gateway

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/engramd/engram/internal/memory"
)

// StatusResponse is the JSON response for GET /status.
type StatusResponse struct {
	UptimeSeconds     float64        `json:"uptimeSeconds"`
	SessionID         string         `json:"sessionId,omitempty"`
	ConversationCount int            `json:"conversationCount"`
	ContextKeywords   []string       `json:"contextKeywords,omitempty"`
	Memory            memory.Stats   `json:"memory"`
	QueueDepths       map[string]int `json:"queueDepths,omitempty"`
}

// handleStatus returns an http.HandlerFunc for GET /status.
func (g *Gateway) handleStatus() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		resp := StatusResponse{
			UptimeSeconds: time.Since(g.startedAt).Truncate(time.Second).Seconds(),
		}

		if g.deps.Tracker != nil {
			snap := g.deps.Tracker.Snapshot()
			resp.SessionID = snap.SessionID
			resp.ConversationCount = snap.ConversationCount
			resp.ContextKeywords = snap.ContextKeywords
		}
		if g.deps.Store != nil {
			resp.Memory = g.deps.Store.GetStats()
		}
		if g.deps.Queue != nil {
			resp.QueueDepths = g.deps.Queue.Depths()
		}

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(resp)
	}
}
