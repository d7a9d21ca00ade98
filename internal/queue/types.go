// Package queue drives requests through the file-based lifecycle:
// input → processing → output or failed. Directory rename is the only
// concurrency primitive, so multiple watcher processes can share one
// queue safely; everything else in a request is strictly sequential.
package queue

import (
	"time"

	"github.com/engramd/engram/internal/relevance"
)

// Request is the inbound file contract. Field names are part of the
// external interface and must not change.
type Request struct {
	SessionID string         `json:"sessionId"`
	Prompt    string         `json:"prompt"`
	Options   RequestOptions `json:"options"`
}

// RequestOptions carries optional per-request knobs.
type RequestOptions struct {
	WorkingDirectory string         `json:"workingDirectory,omitempty"`
	UserContext      map[string]any `json:"userContext,omitempty"`
	Model            string         `json:"model,omitempty"`
}

// Response is the outbound file contract, written under the same
// filename as the request so the consumer can correlate the two.
type Response struct {
	RequestID       string         `json:"requestId"`
	SessionID       string         `json:"sessionId"`
	Timestamp       time.Time      `json:"timestamp"`
	Success         bool           `json:"success"`
	Content         string         `json:"content"`
	Error           *string        `json:"error"`
	ExecutionTimeMs int64          `json:"executionTimeMs"`
	MemoryContext   *MemoryContext `json:"memoryContext"`
}

// MemoryContext is the machine-readable record of what memory went into
// the enriched prompt.
type MemoryContext struct {
	Summary      string                      `json:"summary"`
	Optimization relevance.OptimizationStats `json:"optimization"`
	Artifacts    []relevance.Artifact        `json:"artifacts"`
}

// Event is published after each response write (success or failure) for
// observers such as the gateway's websocket feed.
type Event struct {
	RequestID string        `json:"requestId"`
	SessionID string        `json:"sessionId"`
	Success   bool          `json:"success"`
	Error     string        `json:"error,omitempty"`
	Duration  time.Duration `json:"durationNs"`
	Timestamp time.Time     `json:"timestamp"`
}
