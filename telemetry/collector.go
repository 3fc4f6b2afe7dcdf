package telemetry

import "github.com/pthm-cable/flock/systems"

// Collector groups frames into fixed-size windows and produces FlockStats.
type Collector struct {
	runID        string
	windowFrames int64

	windowStartFrame int64
	failedFrames     int
}

// NewCollector creates a new stats collector.
// windowFrames is the number of frames per stats window.
func NewCollector(runID string, windowFrames int) *Collector {
	return &Collector{
		runID:        runID,
		windowFrames: int64(max(windowFrames, 1)),
	}
}

// RecordFailedFrame counts a frame whose simulation stage failed.
func (c *Collector) RecordFailedFrame() {
	c.failedFrames++
}

// ShouldFlush returns true if enough frames have passed to flush the window.
func (c *Collector) ShouldFlush(frame int64) bool {
	return frame-c.windowStartFrame >= c.windowFrames
}

// Flush samples the flock, stamps the window and resets counters for the next window.
func (c *Collector) Flush(frame int64, view systems.ParticleView, qt systems.QuadtreeStats) FlockStats {
	stats := ComputeFlockStats(view, qt)
	stats.RunID = c.runID
	stats.WindowStartFrame = c.windowStartFrame
	stats.WindowEndFrame = frame
	stats.FailedFrames = c.failedFrames

	c.windowStartFrame = frame
	c.failedFrames = 0

	return stats
}
