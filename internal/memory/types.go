// Package memory persists knowledge items into four hierarchy tiers plus
// a separate conversation log, file-per-item, with a metadata index for
// cheap scans.
package memory

import (
	"fmt"
	"hash/fnv"
	"time"

	"github.com/engramd/engram/internal/compress"
)

// ItemMetadata carries per-item bookkeeping. The session fields are only
// populated for conversation items.
type ItemMetadata struct {
	Timestamp       time.Time `json:"timestamp"`
	Source          string    `json:"source"`
	Tags            []string  `json:"tags,omitempty"`
	SessionID       string    `json:"sessionId,omitempty"`
	SessionPosition int       `json:"sessionPosition,omitempty"`
	SessionKeywords []string  `json:"sessionKeywords,omitempty"`
}

// Item is a stored unit of knowledge. Once written, OriginalContent and
// CompressedContent never change for a given ID; updates create a new
// item. Conversation items always retain their verbatim original —
// compression is display-only for them.
type Item struct {
	ID                string            `json:"id"`
	Category          compress.Category `json:"category"`
	OriginalContent   string            `json:"originalContent"`
	CompressedContent string            `json:"compressedContent"`
	SemanticSignature string            `json:"semanticSignature"`
	Metadata          ItemMetadata      `json:"metadata"`
}

// Turn is one user/assistant exchange handed to StoreConversation.
type Turn struct {
	UserMessage       string
	AssistantResponse string
	SessionID         string
	SessionPosition   int
	Keywords          []string
}

// StoreResult reports a completed hierarchy store operation.
type StoreResult struct {
	ItemID           string
	Category         compress.Category
	CompressionRatio float64
	TokensSaved      int
}

// ConversationResult reports a completed conversation store operation.
type ConversationResult struct {
	ID          string
	TokensSaved int
}

// Stats is an aggregate view over everything on disk.
type Stats struct {
	TotalItems      int                       `json:"totalItems"`
	TotalSize       int64                     `json:"totalSize"`
	ItemsByCategory map[compress.Category]int `json:"itemsByCategory"`
}

// indexEntry is one row of the metadata index (memory/metadata.json).
type indexEntry struct {
	Category  compress.Category `json:"category"`
	Type      string            `json:"type"`
	Timestamp time.Time         `json:"timestamp"`
	Size      int               `json:"size"`
	Signature string            `json:"signature"`
}

// newItemID builds an id from creation time and a content hash. The hash
// keeps ids distinct for items stored within the same millisecond.
func newItemID(now time.Time, content string) string {
	h := fnv.New32a()
	_, _ = h.Write([]byte(content))
	return fmt.Sprintf("%d-%08x", now.UnixMilli(), h.Sum32())
}
