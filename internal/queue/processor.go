package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/fsnotify/fsnotify"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/engramd/engram/internal/memory"
	"github.com/engramd/engram/internal/relevance"
	"github.com/engramd/engram/internal/runner"
	"github.com/engramd/engram/internal/session"
)

// ErrNoRunner indicates the processor was built without a tool runner.
var ErrNoRunner = errors.New("queue: no runner configured")

// contextTruncatedMarker is appended when the context block exceeds its
// size guard; truncation is always visible, never silent.
const contextTruncatedMarker = "\n[Context truncated]"

// Config tunes the processor. Zero values fall back to defaults.
type Config struct {
	// BaseDir is the queue root; input/, processing/, output/ and
	// failed/ live beneath it.
	BaseDir string

	// PollInterval is the input scan cadence. Default 1s.
	PollInterval time.Duration

	// ToolTimeout bounds one external tool invocation. It is kept
	// shorter than any caller-side wait so the caller never times out
	// on an unresponsive child. Default 25s.
	ToolTimeout time.Duration

	// MaxContextChars bounds the assembled context block. Default 50000.
	MaxContextChars int

	// MaxPromptChars bounds the total enriched prompt; past it the
	// original prompt is sent unmodified. Default 80000.
	MaxPromptChars int

	// MaxContextItems bounds how many memory items are injected.
	MaxContextItems int

	// StaleThreshold is the age past which a processing/ file is
	// considered orphaned by a crashed worker and requeued. Default 10m.
	StaleThreshold time.Duration
}

func (c Config) withDefaults() Config {
	if c.PollInterval <= 0 {
		c.PollInterval = time.Second
	}
	if c.ToolTimeout <= 0 {
		c.ToolTimeout = 25 * time.Second
	}
	if c.MaxContextChars <= 0 {
		c.MaxContextChars = 50000
	}
	if c.MaxPromptChars <= 0 {
		c.MaxPromptChars = 80000
	}
	if c.StaleThreshold <= 0 {
		c.StaleThreshold = 10 * time.Minute
	}
	return c
}

// Archiver mirrors completed turns into a secondary index. Failures are
// logged, never propagated: the file store remains the source of truth.
type Archiver interface {
	IndexTurn(ctx context.Context, itemID, sessionID, userMessage, assistantResponse string, at time.Time) error
}

// Deps are the processor's collaborators. Engine, Store, Tracker and
// Runner are required; the rest are optional.
type Deps struct {
	Engine   *relevance.Engine
	Store    *memory.Store
	Tracker  *session.Tracker
	Runner   runner.Runner
	Bus      *EventBus
	Metrics  *Metrics
	Archiver Archiver
	Logger   *slog.Logger
}

// Processor owns one queue directory tree. Requests are handled one at
// a time; the external tool never sees more than one concurrent
// invocation per processor.
type Processor struct {
	config   Config
	input    string
	work     string
	output   string
	failed   string
	engine   *relevance.Engine
	store    *memory.Store
	tracker  *session.Tracker
	runner   runner.Runner
	bus      *EventBus
	metrics  *Metrics
	archiver Archiver
	logger   *slog.Logger
	tracer   trace.Tracer
}

// NewProcessor validates dependencies and creates the queue directory
// tree. Directory creation failure is the one startup-fatal error class.
func NewProcessor(cfg Config, deps Deps) (*Processor, error) {
	if deps.Runner == nil {
		return nil, ErrNoRunner
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}

	cfg = cfg.withDefaults()
	p := &Processor{
		config:   cfg,
		input:    filepath.Join(cfg.BaseDir, "input"),
		work:     filepath.Join(cfg.BaseDir, "processing"),
		output:   filepath.Join(cfg.BaseDir, "output"),
		failed:   filepath.Join(cfg.BaseDir, "failed"),
		engine:   deps.Engine,
		store:    deps.Store,
		tracker:  deps.Tracker,
		runner:   deps.Runner,
		bus:      deps.Bus,
		metrics:  deps.Metrics,
		archiver: deps.Archiver,
		logger:   deps.Logger,
		tracer:   otel.Tracer("github.com/engramd/engram/internal/queue"),
	}

	for _, dir := range []string{p.input, p.work, p.output, p.failed} {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return nil, fmt.Errorf("queue: create %s: %w", dir, err)
		}
	}
	return p, nil
}

// Run executes the poll loop until ctx is canceled. A startup recovery
// sweep requeues files orphaned in processing/ by a previous crash. An
// fsnotify watch on input/ wakes the loop early; polling remains the
// correctness mechanism, so a failed watch only costs latency.
func (p *Processor) Run(ctx context.Context) error {
	if n := p.RecoverStale(ctx); n > 0 {
		p.logger.Info("queue: requeued stale processing files", "count", n)
	}

	var wake <-chan fsnotify.Event
	watcher, err := fsnotify.NewWatcher()
	if err == nil {
		if werr := watcher.Add(p.input); werr == nil {
			wake = watcher.Events
		} else {
			p.logger.Warn("queue: input watch unavailable, poll only", "error", werr)
		}
		defer func() { _ = watcher.Close() }()
	} else {
		p.logger.Warn("queue: fsnotify unavailable, poll only", "error", err)
	}

	ticker := time.NewTicker(p.config.PollInterval)
	defer ticker.Stop()

	for {
		p.Scan(ctx)

		select {
		case <-ctx.Done():
			p.logger.Info("queue: shutting down after current iteration")
			return ctx.Err()
		case <-ticker.C:
		case <-wake:
			// Drain bursts so one file creation wakes us once.
			for {
				select {
				case <-wake:
					continue
				default:
				}
				break
			}
		}
	}
}

// Scan processes every request currently present in input/, in
// filesystem listing order. Callers must not rely on FIFO ordering.
func (p *Processor) Scan(ctx context.Context) {
	entries, err := os.ReadDir(p.input)
	if err != nil {
		p.logger.Warn("queue: listing input", "error", err)
		return
	}

	for _, entry := range entries {
		if ctx.Err() != nil {
			return
		}
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		p.process(ctx, entry.Name())
	}

	p.recordDepths()
}

// process drives one request file through claim → parse → enrich → run
// → respond. Any panic beyond the claim moves the file to failed/.
func (p *Processor) process(ctx context.Context, name string) {
	// Atomic claim: rename either succeeds exclusively or another
	// worker already took the file.
	claimed := filepath.Join(p.work, name)
	if err := os.Rename(filepath.Join(p.input, name), claimed); err != nil {
		return
	}

	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("queue: panic while processing", "file", name, "panic", r)
			p.moveToFailed(name)
			p.count(OutcomeError)
		}
	}()

	ctx, span := p.tracer.Start(ctx, "queue.process",
		trace.WithAttributes(attribute.String("queue.file", name)))
	defer span.End()

	raw, err := os.ReadFile(claimed)
	if err != nil {
		p.logger.Error("queue: reading claimed request", "file", name, "error", err)
		p.moveToFailed(name)
		p.count(OutcomeMalformed)
		return
	}

	var req Request
	if err := json.Unmarshal(raw, &req); err != nil || strings.TrimSpace(req.Prompt) == "" {
		// No requestId to respond to; dead-letter for manual inspection.
		p.logger.Error("queue: malformed request", "file", name, "error", err)
		p.moveToFailed(name)
		p.count(OutcomeMalformed)
		return
	}

	requestID := strings.TrimSuffix(name, ".json")
	span.SetAttributes(attribute.String("queue.session_id", req.SessionID))

	asm := p.assemble(ctx, req.Prompt)

	if asm.RequiresClarification {
		// Ambiguity resolved by asking, not by guessing: the
		// clarification question goes back as the answer and the tool
		// is never invoked.
		p.respond(ctx, name, p.buildResponse(requestID, req.SessionID, runner.Result{
			Success: true,
			Output:  asm.ClarificationSuggestion,
		}, asm, 0))
		p.count(OutcomeSuccess)
		return
	}

	prompt := p.enrich(req.Prompt, asm)

	runCtx, cancel := context.WithTimeout(ctx, p.config.ToolTimeout)
	_, runSpan := p.tracer.Start(runCtx, "queue.tool_run")
	started := time.Now()
	result := p.runner.Run(runCtx, runner.Request{
		Prompt:           prompt,
		WorkingDirectory: req.Options.WorkingDirectory,
		Model:            req.Options.Model,
	})
	elapsed := time.Since(started)
	runSpan.SetAttributes(attribute.Bool("tool.success", result.Success))
	runSpan.End()
	cancel()

	resp := p.buildResponse(requestID, req.SessionID, result, asm, elapsed)
	if !p.respond(ctx, name, resp) {
		return
	}

	if p.metrics != nil {
		p.metrics.Duration.Observe(elapsed.Seconds())
	}
	span.SetAttributes(attribute.Bool("queue.success", result.Success))

	if !result.Success {
		p.count(OutcomeToolFailure)
		return
	}
	p.count(OutcomeSuccess)

	// Post-processing is best-effort: the response is already durable,
	// so persistence failures only cost future context quality.
	p.persistTurn(ctx, req, result.Output)
}

// assemble builds the memory context. A nil engine (memory disabled)
// yields an empty context.
func (p *Processor) assemble(ctx context.Context, prompt string) relevance.Context {
	if p.engine == nil {
		return relevance.Context{Summary: "No relevant context found"}
	}

	ctx, span := p.tracer.Start(ctx, "queue.assemble_context")
	defer span.End()

	var snap session.Snapshot
	if p.tracker != nil {
		snap = p.tracker.Snapshot()
	}
	return p.engine.Assemble(ctx, prompt, snap, relevance.AssembleOptions{
		IncludeConversations: true,
		MaxItems:             p.config.MaxContextItems,
	})
}

// enrich merges the context block into the prompt under two guards: the
// context itself is truncated (visibly) past MaxContextChars, and if the
// merged prompt still exceeds MaxPromptChars the original prompt is sent
// unmodified.
func (p *Processor) enrich(prompt string, asm relevance.Context) string {
	if asm.ContextText == "" {
		return prompt
	}

	contextText := asm.ContextText
	if len(contextText) > p.config.MaxContextChars {
		// Back the cut up to a rune boundary so the tool never sees
		// invalid UTF-8.
		cut := p.config.MaxContextChars
		for cut > 0 && !utf8.RuneStart(contextText[cut]) {
			cut--
		}
		contextText = contextText[:cut] + contextTruncatedMarker
	}

	enriched := "Relevant context from memory:\n\n" + contextText +
		"\n\n---\n\nUser request:\n" + prompt
	if len(enriched) > p.config.MaxPromptChars {
		p.logger.Warn("queue: enriched prompt over budget, sending original",
			"enriched", len(enriched), "budget", p.config.MaxPromptChars)
		return prompt
	}
	return enriched
}

func (p *Processor) buildResponse(requestID, sessionID string, result runner.Result, asm relevance.Context, elapsed time.Duration) Response {
	resp := Response{
		RequestID:       requestID,
		SessionID:       sessionID,
		Timestamp:       time.Now().UTC(),
		Success:         result.Success,
		Content:         result.Output,
		ExecutionTimeMs: elapsed.Milliseconds(),
	}
	if result.Error != "" {
		msg := result.Error
		resp.Error = &msg
	}
	if asm.Summary != "" {
		resp.MemoryContext = &MemoryContext{
			Summary:      asm.Summary,
			Optimization: asm.OptimizationStats,
			Artifacts:    asm.Artifacts,
		}
	}
	return resp
}

// respond writes the response under the request's filename and removes
// the processing copy. The request file is only deleted once the
// response is durably in place.
func (p *Processor) respond(ctx context.Context, name string, resp Response) bool {
	raw, err := json.MarshalIndent(resp, "", "  ")
	if err != nil {
		p.logger.Error("queue: marshal response", "file", name, "error", err)
		p.moveToFailed(name)
		p.count(OutcomeError)
		return false
	}

	final := filepath.Join(p.output, name)
	tmp := final + ".tmp"
	if err := os.WriteFile(tmp, raw, 0o600); err != nil {
		p.logger.Error("queue: write response", "file", name, "error", err)
		p.moveToFailed(name)
		p.count(OutcomeError)
		return false
	}
	if err := os.Rename(tmp, final); err != nil {
		_ = os.Remove(tmp)
		p.logger.Error("queue: publish response", "file", name, "error", err)
		p.moveToFailed(name)
		p.count(OutcomeError)
		return false
	}

	if err := os.Remove(filepath.Join(p.work, name)); err != nil {
		p.logger.Warn("queue: removing processing copy", "file", name, "error", err)
	}

	if p.bus != nil {
		errMsg := ""
		if resp.Error != nil {
			errMsg = *resp.Error
		}
		p.bus.Publish(Event{
			RequestID: resp.RequestID,
			SessionID: resp.SessionID,
			Success:   resp.Success,
			Error:     errMsg,
			Duration:  time.Duration(resp.ExecutionTimeMs) * time.Millisecond,
			Timestamp: resp.Timestamp,
		})
	}
	return true
}

// persistTurn saves the exchange to the memory store, the session
// tracker, and the archive. Every failure here is log-only.
func (p *Processor) persistTurn(ctx context.Context, req Request, output string) {
	if p.store == nil {
		return
	}

	position := 0
	if p.tracker != nil {
		position = p.tracker.ConversationCount() + 1
	}

	turnID := ""
	saved, err := p.store.StoreConversation(ctx, memory.Turn{
		UserMessage:       req.Prompt,
		AssistantResponse: output,
		SessionID:         req.SessionID,
		SessionPosition:   position,
	})
	if err != nil {
		p.logger.Warn("queue: persisting conversation", "error", err)
	} else {
		turnID = saved.ID
	}

	if p.tracker != nil {
		p.tracker.RecordTurn(turnID, req.Prompt, output)
	}

	if p.archiver != nil && turnID != "" {
		if err := p.archiver.IndexTurn(ctx, turnID, req.SessionID, req.Prompt, output, time.Now().UTC()); err != nil {
			p.logger.Warn("queue: archiving conversation", "error", err)
		}
	}
}

func (p *Processor) moveToFailed(name string) {
	src := filepath.Join(p.work, name)
	if _, err := os.Stat(src); err != nil {
		return
	}
	if err := os.Rename(src, filepath.Join(p.failed, name)); err != nil {
		p.logger.Error("queue: dead-lettering request", "file", name, "error", err)
	}
}

func (p *Processor) count(outcome string) {
	if p.metrics != nil {
		p.metrics.Processed.WithLabelValues(outcome).Inc()
	}
}

func (p *Processor) recordDepths() {
	if p.metrics == nil {
		return
	}
	for dir, path := range map[string]string{
		"input":      p.input,
		"processing": p.work,
		"output":     p.output,
		"failed":     p.failed,
	} {
		p.metrics.Depth.WithLabelValues(dir).Set(float64(countRequestFiles(path)))
	}
}

// countRequestFiles counts the *.json entries in one queue directory,
// ignoring directories and in-flight *.tmp writes so the depth gauge
// and /status never disagree mid-write.
func countRequestFiles(path string) int {
	entries, err := os.ReadDir(path)
	if err != nil {
		return 0
	}
	n := 0
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".json") {
			n++
		}
	}
	return n
}

// Depths reports the current file count per queue directory, for the
// gateway status endpoint.
func (p *Processor) Depths() map[string]int {
	depths := make(map[string]int, 4)
	for dir, path := range map[string]string{
		"input":      p.input,
		"processing": p.work,
		"output":     p.output,
		"failed":     p.failed,
	} {
		depths[dir] = countRequestFiles(path)
	}
	return depths
}

// BaseDir returns the queue root.
func (p *Processor) BaseDir() string { return p.config.BaseDir }
