package memory

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/engramd/engram/internal/compress"
)

// Sentinel errors for store operations.
var (
	ErrInvalidCategory = errors.New("memory: category is not a hierarchy tier")
	ErrEmptyContent    = errors.New("memory: content is empty")
)

// maxItemTags caps the tag set extracted for a stored item.
const maxItemTags = 8

// Store is the tiered file-per-item memory store. A single Store owns
// its directory tree; concurrent writers from multiple processes are
// not supported (the queue claim mechanism guarantees one owner).
type Store struct {
	mu        sync.Mutex
	memoryDir string
	convDir   string
	indexPath string
	index     map[string]indexEntry
	logger    *slog.Logger
}

// NewStore creates a store rooted at baseDir, with items under
// baseDir/memory/<tier>/ and conversations under baseDir/conversations/.
// Directories are created lazily on first write; the metadata index is
// loaded eagerly if present.
func NewStore(baseDir string, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Store{
		memoryDir: filepath.Join(baseDir, "memory"),
		convDir:   filepath.Join(baseDir, "conversations"),
		indexPath: filepath.Join(baseDir, "memory", "metadata.json"),
		index:     make(map[string]indexEntry),
		logger:    logger,
	}
	s.loadIndex()
	return s
}

// Store compresses content and persists it into the given hierarchy
// tier. Conversation content must go through StoreConversation instead.
func (s *Store) Store(ctx context.Context, category compress.Category, content string) (StoreResult, error) {
	if !category.IsHierarchy() {
		return StoreResult{}, fmt.Errorf("%w: %q", ErrInvalidCategory, category)
	}
	if strings.TrimSpace(content) == "" {
		return StoreResult{}, ErrEmptyContent
	}
	if err := ctx.Err(); err != nil {
		return StoreResult{}, err
	}

	now := time.Now()
	res := compress.Compress(content, category)

	item := Item{
		ID:                newItemID(now, content),
		Category:          category,
		OriginalContent:   content,
		CompressedContent: res.CompressedText,
		SemanticSignature: res.SemanticSignature,
		Metadata: ItemMetadata{
			Timestamp: now,
			Source:    "store",
			Tags:      compress.ExtractKeywords(content, maxItemTags),
		},
	}

	dir := filepath.Join(s.memoryDir, string(category))
	if err := s.writeItem(dir, item); err != nil {
		return StoreResult{}, err
	}

	s.updateIndex(item.ID, indexEntry{
		Category:  category,
		Type:      "memory",
		Timestamp: now,
		Size:      len(content),
		Signature: res.SemanticSignature,
	})

	return StoreResult{
		ItemID:           item.ID,
		Category:         category,
		CompressionRatio: res.CompressionRatio,
		TokensSaved:      res.TokensSaved,
	}, nil
}

// StoreConversation persists one exchange into the conversation
// namespace. The verbatim user message and assistant response are always
// retained in OriginalContent; the compressed form exists only for
// display and context rendering.
func (s *Store) StoreConversation(ctx context.Context, turn Turn) (ConversationResult, error) {
	if strings.TrimSpace(turn.UserMessage) == "" && strings.TrimSpace(turn.AssistantResponse) == "" {
		return ConversationResult{}, ErrEmptyContent
	}
	if err := ctx.Err(); err != nil {
		return ConversationResult{}, err
	}

	now := time.Now()
	original := "User: " + turn.UserMessage + "\n\nAssistant: " + turn.AssistantResponse
	res := compress.Compress(original, compress.Conversation)

	keywords := turn.Keywords
	if len(keywords) == 0 {
		keywords = compress.ExtractKeywords(original, 5)
	}

	item := Item{
		ID:                newItemID(now, original),
		Category:          compress.Conversation,
		OriginalContent:   original,
		CompressedContent: res.CompressedText,
		SemanticSignature: res.SemanticSignature,
		Metadata: ItemMetadata{
			Timestamp:       now,
			Source:          "conversation",
			Tags:            compress.ExtractKeywords(original, maxItemTags),
			SessionID:       turn.SessionID,
			SessionPosition: turn.SessionPosition,
			SessionKeywords: keywords,
		},
	}

	if err := s.writeItem(s.convDir, item); err != nil {
		return ConversationResult{}, err
	}

	s.updateIndex(item.ID, indexEntry{
		Category:  compress.Conversation,
		Type:      "conversation",
		Timestamp: now,
		Size:      len(original),
		Signature: res.SemanticSignature,
	})

	return ConversationResult{ID: item.ID, TokensSaved: res.TokensSaved}, nil
}

// LoadCategoryItems reads every item in one hierarchy tier. Unreadable
// or corrupt files are skipped with a warning; the batch never aborts.
func (s *Store) LoadCategoryItems(ctx context.Context, category compress.Category) ([]Item, error) {
	if !category.IsHierarchy() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidCategory, category)
	}
	return s.loadDir(ctx, filepath.Join(s.memoryDir, string(category)))
}

// LoadConversationItems reads every item in the conversation namespace,
// with the same skip-and-log tolerance as LoadCategoryItems.
func (s *Store) LoadConversationItems(ctx context.Context) ([]Item, error) {
	return s.loadDir(ctx, s.convDir)
}

// GetStats aggregates item counts and sizes from the metadata index.
func (s *Store) GetStats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()

	stats := Stats{ItemsByCategory: make(map[compress.Category]int)}
	for _, entry := range s.index {
		stats.TotalItems++
		stats.TotalSize += int64(entry.Size)
		stats.ItemsByCategory[entry.Category]++
	}
	return stats
}

func (s *Store) loadDir(ctx context.Context, dir string) ([]Item, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("memory: reading %s: %w", dir, err)
	}

	var items []Item
	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return items, err
		}
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") || entry.Name() == "metadata.json" {
			continue
		}

		path := filepath.Join(dir, entry.Name())
		raw, err := os.ReadFile(path)
		if err != nil {
			s.logger.Warn("memory: skipping unreadable item", "path", path, "error", err)
			continue
		}

		var item Item
		if err := json.Unmarshal(raw, &item); err != nil {
			s.logger.Warn("memory: skipping corrupt item", "path", path, "error", err)
			continue
		}
		items = append(items, item)
	}
	return items, nil
}

// writeItem persists one item via temp-file + rename so a crash never
// leaves a half-written item visible to readers.
func (s *Store) writeItem(dir string, item Item) error {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("memory: create %s: %w", dir, err)
	}

	raw, err := json.MarshalIndent(item, "", "  ")
	if err != nil {
		return fmt.Errorf("memory: marshal item %s: %w", item.ID, err)
	}

	final := filepath.Join(dir, item.ID+".json")
	tmp := final + ".tmp"
	if err := os.WriteFile(tmp, raw, 0o600); err != nil {
		return fmt.Errorf("memory: write %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, final); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("memory: rename %s: %w", final, err)
	}
	return nil
}

func (s *Store) loadIndex() {
	raw, err := os.ReadFile(s.indexPath)
	if err != nil {
		if !os.IsNotExist(err) {
			s.logger.Warn("memory: metadata index unreadable, starting empty", "error", err)
		}
		return
	}
	if err := json.Unmarshal(raw, &s.index); err != nil {
		s.logger.Warn("memory: metadata index corrupt, starting empty", "error", err)
		s.index = make(map[string]indexEntry)
	}
}

// updateIndex records an entry and rewrites the index file. Index
// persistence is best-effort: a failed write is logged, not returned,
// since the item itself is already durably stored.
func (s *Store) updateIndex(id string, entry indexEntry) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.index[id] = entry

	raw, err := json.MarshalIndent(s.index, "", "  ")
	if err != nil {
		s.logger.Warn("memory: marshal metadata index", "error", err)
		return
	}
	if err := os.MkdirAll(filepath.Dir(s.indexPath), 0o700); err != nil {
		s.logger.Warn("memory: create index directory", "error", err)
		return
	}
	tmp := s.indexPath + ".tmp"
	if err := os.WriteFile(tmp, raw, 0o600); err != nil {
		s.logger.Warn("memory: write metadata index", "error", err)
		return
	}
	if err := os.Rename(tmp, s.indexPath); err != nil {
		_ = os.Remove(tmp)
		s.logger.Warn("memory: rename metadata index", "error", err)
	}
}
