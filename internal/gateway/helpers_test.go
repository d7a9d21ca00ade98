package gateway

import (
	"log/slog"
	"testing"

	"github.com/engramd/engram/internal/compress"
	"github.com/engramd/engram/internal/config"
	"github.com/engramd/engram/internal/memory"
	"github.com/engramd/engram/internal/session"
)

// fakeStats is a canned StatsProvider.
type fakeStats struct {
	stats memory.Stats
}

func (f *fakeStats) GetStats() memory.Stats { return f.stats }

// fakeTracker is a canned SessionReporter.
type fakeTracker struct {
	snap session.Snapshot
}

func (f *fakeTracker) Snapshot() session.Snapshot { return f.snap }

// fakeDepths is a canned DepthReporter.
type fakeDepths struct {
	depths map[string]int
}

func (f *fakeDepths) Depths() map[string]int { return f.depths }

func testStats() memory.Stats {
	return memory.Stats{
		TotalItems: 4,
		TotalSize:  2048,
		ItemsByCategory: map[compress.Category]int{
			compress.Core:         1,
			compress.Conversation: 3,
		},
	}
}

// newTestGateway builds a gateway without starting its listener, for
// exercising handlers directly or through the router.
func newTestGateway(t *testing.T, cfg config.GatewayConfig, deps Deps) *Gateway {
	t.Helper()
	if cfg.Addr == "" {
		cfg.Addr = "127.0.0.1:0"
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	g, err := New(cfg, deps)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return g
}
