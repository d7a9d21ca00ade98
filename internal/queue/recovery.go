package queue

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// RecoverStale requeues processing/ files older than the stale
// threshold back into input/. A file younger than the threshold may
// belong to a live worker and is left alone. Returns the number of
// files requeued.
//
// This runs at startup and periodically from the maintenance scheduler,
// so a crash mid-request delays the request instead of losing it.
func (p *Processor) RecoverStale(ctx context.Context) int {
	entries, err := os.ReadDir(p.work)
	if err != nil {
		if !os.IsNotExist(err) {
			p.logger.Warn("queue: listing processing dir", "error", err)
		}
		return 0
	}

	cutoff := time.Now().Add(-p.config.StaleThreshold)
	requeued := 0

	for _, entry := range entries {
		if ctx.Err() != nil {
			return requeued
		}
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}

		info, err := entry.Info()
		if err != nil {
			continue
		}
		if info.ModTime().After(cutoff) {
			continue
		}

		src := filepath.Join(p.work, entry.Name())
		dst := filepath.Join(p.input, entry.Name())
		if err := os.Rename(src, dst); err != nil {
			p.logger.Warn("queue: requeueing stale file", "file", entry.Name(), "error", err)
			continue
		}
		p.logger.Info("queue: requeued stale request", "file", entry.Name(), "age", time.Since(info.ModTime()).Round(time.Second))
		requeued++
	}
	return requeued
}
