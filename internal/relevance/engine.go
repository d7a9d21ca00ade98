package relevance

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/engramd/engram/internal/compress"
	"github.com/engramd/engram/internal/memory"
	"github.com/engramd/engram/internal/session"
)

// defaultMaxItems bounds how many items survive ranking when the caller
// does not say otherwise.
const defaultMaxItems = 8

// itemDelimiter separates concatenated item contents in the rendered
// context block.
const itemDelimiter = "\n\n---\n\n"

// defaultCategories are scanned when AssembleOptions.Categories is
// empty. Conversations are only scanned on explicit request.
var defaultCategories = []compress.Category{
	compress.Core, compress.Working, compress.Reference,
}

// AssembleOptions tunes one assembly pass.
type AssembleOptions struct {
	// Categories selects which hierarchy tiers to scan. Empty means
	// core, working, and reference.
	Categories []compress.Category

	// IncludeConversations adds the conversation namespace to the scan.
	IncludeConversations bool

	// MaxItems bounds the selection; zero means the default.
	MaxItems int
}

// Artifact is the machine-readable reference to one included item.
type Artifact struct {
	ID       string  `json:"id"`
	Category string  `json:"category"`
	Score    float64 `json:"score"`
	Summary  string  `json:"summary"`
}

// OptimizationStats describes how much of the store made it into the
// context and what compression bought.
type OptimizationStats struct {
	CandidatesScanned int     `json:"candidatesScanned"`
	ItemsIncluded     int     `json:"itemsIncluded"`
	InclusionRatio    float64 `json:"inclusionRatio"`
	TokensSaved       int     `json:"tokensSaved"`
}

// Context is the assembled result handed to the queue processor.
type Context struct {
	Summary                 string
	ContextText             string
	Artifacts               []Artifact
	OptimizationStats       OptimizationStats
	MultipleMatches         []Match
	RequiresClarification   bool
	ClarificationSuggestion string
}

// Engine orchestrates scoring across the store and session state and
// renders the ranked survivors into a context block. Each call is
// stateless given the store and session snapshot.
type Engine struct {
	store    *memory.Store
	scorer   *Scorer
	detector Detector
	logger   *slog.Logger
}

// NewEngine builds an engine. A nil detector disables ambiguity
// detection; a nil scorer gets default weights.
func NewEngine(store *memory.Store, scorer *Scorer, detector Detector, logger *slog.Logger) *Engine {
	if scorer == nil {
		scorer = NewScorer(DefaultWeights)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{store: store, scorer: scorer, detector: detector, logger: logger}
}

// Assemble ranks the store against the prompt and renders the context
// block. Retrieval failure is never an error: an unreadable store
// degrades to an empty context so the primary request always proceeds.
func (e *Engine) Assemble(ctx context.Context, prompt string, snap session.Snapshot, opts AssembleOptions) Context {
	candidates := e.collect(ctx, opts)
	if len(candidates) == 0 {
		return Context{Summary: "No relevant context found"}
	}

	maxItems := opts.MaxItems
	if maxItems <= 0 {
		maxItems = defaultMaxItems
	}

	q := NewQuery(prompt)
	ranked := e.scorer.Rank(q, candidates, snap, maxItems)
	if len(ranked) == 0 {
		return Context{
			Summary:           "No relevant context found",
			OptimizationStats: OptimizationStats{CandidatesScanned: len(candidates)},
		}
	}

	result := Context{
		Artifacts: make([]Artifact, 0, len(ranked)),
		OptimizationStats: OptimizationStats{
			CandidatesScanned: len(candidates),
			ItemsIncluded:     len(ranked),
			InclusionRatio:    float64(len(ranked)) / float64(len(candidates)),
		},
	}

	parts := make([]string, 0, len(ranked))
	for _, r := range ranked {
		parts = append(parts, r.Item.CompressedContent)
		result.Artifacts = append(result.Artifacts, Artifact{
			ID:       r.Item.ID,
			Category: string(r.Item.Category),
			Score:    r.Score,
			Summary:  summarize(r.Item.OriginalContent),
		})
		saved := len(r.Item.OriginalContent) - len(r.Item.CompressedContent)
		if saved > 0 {
			result.OptimizationStats.TokensSaved += saved / 4
		}
	}
	result.ContextText = strings.Join(parts, itemDelimiter)
	result.Summary = summaryLine(len(ranked), len(candidates))

	if e.detector != nil {
		if matches := e.detector.Detect(prompt, ranked); len(matches) > 0 {
			result.MultipleMatches = matches
			result.RequiresClarification = true
			result.ClarificationSuggestion = Clarification(matches)
		}
	}

	return result
}

// collect loads candidates from the requested tiers, tolerating partial
// store failures: a tier that cannot be read is logged and skipped.
func (e *Engine) collect(ctx context.Context, opts AssembleOptions) []memory.Item {
	categories := opts.Categories
	if len(categories) == 0 {
		categories = defaultCategories
	}

	var candidates []memory.Item
	for _, cat := range categories {
		items, err := e.store.LoadCategoryItems(ctx, cat)
		if err != nil {
			e.logger.Warn("relevance: tier unreadable, skipping", "category", cat, "error", err)
			continue
		}
		candidates = append(candidates, items...)
	}

	if opts.IncludeConversations {
		items, err := e.store.LoadConversationItems(ctx)
		if err != nil {
			e.logger.Warn("relevance: conversations unreadable, skipping", "error", err)
		} else {
			candidates = append(candidates, items...)
		}
	}
	return candidates
}

func summaryLine(included, scanned int) string {
	return fmt.Sprintf("Included %d of %d candidate memory items", included, scanned)
}
