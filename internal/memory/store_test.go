package memory_test

import (
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/engramd/engram/internal/compress"
	"github.com/engramd/engram/internal/memory"
)

func newTestStore(t *testing.T) (*memory.Store, string) {
	t.Helper()
	dir := t.TempDir()
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
	return memory.NewStore(dir, logger), dir
}

func TestStore_HierarchyTier(t *testing.T) {
	t.Parallel()

	store, dir := newTestStore(t)
	ctx := context.Background()

	res, err := store.Store(ctx, compress.Working, "drafting release notes for the watcher")
	if err != nil {
		t.Fatalf("Store: %v", err)
	}
	if res.ItemID == "" {
		t.Fatal("expected a non-empty item id")
	}
	if res.Category != compress.Working {
		t.Errorf("category = %v, want working", res.Category)
	}

	// Item file lands in the tier directory.
	path := filepath.Join(dir, "memory", "working", res.ItemID+".json")
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("item file missing: %v", err)
	}

	// Metadata index records the item.
	raw, err := os.ReadFile(filepath.Join(dir, "memory", "metadata.json"))
	if err != nil {
		t.Fatalf("metadata index missing: %v", err)
	}
	if !strings.Contains(string(raw), res.ItemID) {
		t.Error("metadata index does not reference the stored item")
	}

	items, err := store.LoadCategoryItems(ctx, compress.Working)
	if err != nil {
		t.Fatalf("LoadCategoryItems: %v", err)
	}
	if len(items) != 1 {
		t.Fatalf("got %d items, want 1", len(items))
	}
	if items[0].OriginalContent != "drafting release notes for the watcher" {
		t.Errorf("original content mutated: %q", items[0].OriginalContent)
	}
}

func TestStore_RejectsNonHierarchyCategory(t *testing.T) {
	t.Parallel()

	store, _ := newTestStore(t)
	if _, err := store.Store(context.Background(), compress.Conversation, "text"); err == nil {
		t.Error("expected error storing conversation via Store")
	}
	if _, err := store.Store(context.Background(), compress.Category("bogus"), "text"); err == nil {
		t.Error("expected error for unknown category")
	}
	if _, err := store.Store(context.Background(), compress.Core, "   "); err == nil {
		t.Error("expected error for blank content")
	}
}

func TestStoreConversation_PreservesOriginal(t *testing.T) {
	t.Parallel()

	store, _ := newTestStore(t)
	ctx := context.Background()

	user := "write me a poem about the ocean with exactly four stanzas"
	assistant := strings.Repeat("waves upon the endless shore, salt and thunder evermore. ", 40)

	res, err := store.StoreConversation(ctx, memory.Turn{
		UserMessage:       user,
		AssistantResponse: assistant,
		SessionID:         "S1",
		SessionPosition:   1,
	})
	if err != nil {
		t.Fatalf("StoreConversation: %v", err)
	}

	items, err := store.LoadConversationItems(ctx)
	if err != nil {
		t.Fatalf("LoadConversationItems: %v", err)
	}
	if len(items) != 1 {
		t.Fatalf("got %d conversation items, want 1", len(items))
	}

	got := items[0]
	if got.ID != res.ID {
		t.Errorf("id mismatch: %q vs %q", got.ID, res.ID)
	}
	// The single most important invariant: the verbatim exchange
	// survives storage even when the display form is compressed.
	if !strings.Contains(got.OriginalContent, user) {
		t.Error("original content lost the user message")
	}
	if !strings.Contains(got.OriginalContent, assistant) {
		t.Error("original content lost the assistant response")
	}
	if got.Metadata.SessionID != "S1" {
		t.Errorf("sessionId = %q, want S1", got.Metadata.SessionID)
	}
	if len(got.Metadata.SessionKeywords) == 0 {
		t.Error("expected extracted session keywords")
	}
}

func TestLoadCategoryItems_SkipsCorruptFiles(t *testing.T) {
	t.Parallel()

	store, dir := newTestStore(t)
	ctx := context.Background()

	if _, err := store.Store(ctx, compress.Core, "the one valid core item"); err != nil {
		t.Fatalf("Store: %v", err)
	}

	// Drop a corrupt file next to the valid one.
	corrupt := filepath.Join(dir, "memory", "core", "garbage.json")
	if err := os.WriteFile(corrupt, []byte("{not json"), 0o600); err != nil {
		t.Fatalf("writing corrupt file: %v", err)
	}

	items, err := store.LoadCategoryItems(ctx, compress.Core)
	if err != nil {
		t.Fatalf("LoadCategoryItems should tolerate corrupt files: %v", err)
	}
	if len(items) != 1 {
		t.Fatalf("got %d items, want 1 (corrupt skipped)", len(items))
	}
}

func TestLoadCategoryItems_MissingDirIsEmpty(t *testing.T) {
	t.Parallel()

	store, _ := newTestStore(t)
	items, err := store.LoadCategoryItems(context.Background(), compress.Historical)
	if err != nil {
		t.Fatalf("missing tier dir should not error: %v", err)
	}
	if len(items) != 0 {
		t.Errorf("got %d items, want 0", len(items))
	}
}

func TestGetStats(t *testing.T) {
	t.Parallel()

	store, _ := newTestStore(t)
	ctx := context.Background()

	if _, err := store.Store(ctx, compress.Core, "core fact one"); err != nil {
		t.Fatal(err)
	}
	if _, err := store.Store(ctx, compress.Working, "working note one bit longer"); err != nil {
		t.Fatal(err)
	}
	if _, err := store.StoreConversation(ctx, memory.Turn{
		UserMessage:       "hello",
		AssistantResponse: "hi there",
		SessionID:         "S1",
	}); err != nil {
		t.Fatal(err)
	}

	stats := store.GetStats()
	if stats.TotalItems != 3 {
		t.Errorf("TotalItems = %d, want 3", stats.TotalItems)
	}
	if stats.TotalSize <= 0 {
		t.Errorf("TotalSize = %d, want > 0", stats.TotalSize)
	}
	if stats.ItemsByCategory[compress.Core] != 1 ||
		stats.ItemsByCategory[compress.Working] != 1 ||
		stats.ItemsByCategory[compress.Conversation] != 1 {
		t.Errorf("ItemsByCategory = %v", stats.ItemsByCategory)
	}
}

func TestStore_IndexSurvivesReopen(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))

	first := memory.NewStore(dir, logger)
	if _, err := first.Store(context.Background(), compress.Reference, "a durable reference snippet"); err != nil {
		t.Fatal(err)
	}

	second := memory.NewStore(dir, logger)
	stats := second.GetStats()
	if stats.TotalItems != 1 {
		t.Errorf("reopened store sees %d items, want 1", stats.TotalItems)
	}
}

func TestItem_JSONFieldNames(t *testing.T) {
	t.Parallel()

	raw, err := json.Marshal(memory.Item{ID: "x", Category: compress.Core})
	if err != nil {
		t.Fatal(err)
	}
	for _, field := range []string{`"id"`, `"category"`, `"originalContent"`, `"compressedContent"`, `"semanticSignature"`, `"metadata"`} {
		if !strings.Contains(string(raw), field) {
			t.Errorf("serialized item missing field %s", field)
		}
	}
}
