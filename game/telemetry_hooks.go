package game

import (
	"log/slog"
)

// flushTelemetry checks if the stats window should be flushed and publishes it.
func (g *Game) flushTelemetry() {
	if !g.collector.ShouldFlush(g.frame) {
		return
	}

	stats := g.collector.Flush(g.frame, g.store.Read(), g.QuadtreeStats())
	perfStats := g.perfCollector.Stats()

	// Call stats callback if provided
	if g.statsCallback != nil {
		g.statsCallback(stats)
	}

	// Log stats if enabled (console output)
	if g.logStats {
		stats.LogStats()
		perfStats.LogStats()
	}

	g.metrics.ObserveWindow(stats)

	// Write to CSV if output manager is enabled
	if g.outputManager != nil {
		if err := g.outputManager.WriteTelemetry(stats); err != nil {
			slog.Error("failed to write telemetry", "error", err)
		}
		if err := g.outputManager.WritePerf(perfStats, g.runID, stats.WindowEndFrame); err != nil {
			slog.Error("failed to write perf", "error", err)
		}
	}
}
