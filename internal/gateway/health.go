package gateway

import (
	"encoding/json"
	"net/http"
	"os"
)

// HealthResponse is the JSON response for GET /health.
type HealthResponse struct {
	Status   string   `json:"status"` // "ok" or "degraded"
	Problems []string `json:"problems,omitempty"`
}

// handleHealth returns an http.HandlerFunc for GET /health.
// Returns 200 when the queue directory is present and a tool binary is
// configured, 503 otherwise.
func (g *Gateway) handleHealth() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		resp := HealthResponse{Status: "ok"}

		if g.deps.QueueDir != "" {
			if info, err := os.Stat(g.deps.QueueDir); err != nil || !info.IsDir() {
				resp.Problems = append(resp.Problems, "queue directory missing: "+g.deps.QueueDir)
			}
		}
		if g.deps.RunnerBinary == "" {
			resp.Problems = append(resp.Problems, "no tool binary configured")
		}

		w.Header().Set("Content-Type", "application/json")
		if len(resp.Problems) > 0 {
			resp.Status = "degraded"
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		_ = json.NewEncoder(w).Encode(resp)
	}
}
