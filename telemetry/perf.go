package telemetry

import (
	"log/slog"
	"time"
)

// Phase names for one frame.
const (
	PhaseSnapshot     = "snapshot"
	PhaseSpatialIndex = "spatial_index"
	PhaseSimulate     = "simulate"
	PhaseRender       = "render"
	PhaseTelemetry    = "telemetry"
)

// Phases lists the frame phases in execution order.
var Phases = []string{PhaseSnapshot, PhaseSpatialIndex, PhaseSimulate, PhaseRender, PhaseTelemetry}

// PerfSample holds timing data for a single frame.
type PerfSample struct {
	FrameDuration time.Duration
	Phases        map[string]time.Duration
}

// PerfCollector tracks per-phase frame timings over a rolling window.
// It is driven from the frame loop goroutine only.
type PerfCollector struct {
	windowSize    int
	samples       []PerfSample
	writeIndex    int
	sampleCount   int
	currentPhases map[string]time.Duration
	frameStart    time.Time
	phaseStart    time.Time
	lastPhase     string

	// Wall clock between presented frames (graphics mode)
	lastPresent     time.Time
	presentInterval time.Duration

	now func() time.Time
}

// NewPerfCollector creates a new performance collector.
// windowSize is the number of frames to average over (60 = one second at 60fps).
func NewPerfCollector(windowSize int) *PerfCollector {
	if windowSize < 1 {
		windowSize = 60
	}
	return &PerfCollector{
		windowSize:    windowSize,
		samples:       make([]PerfSample, windowSize),
		currentPhases: make(map[string]time.Duration),
		now:           time.Now,
	}
}

// StartFrame begins timing a new frame.
func (p *PerfCollector) StartFrame() {
	p.frameStart = p.now()
	p.currentPhases = make(map[string]time.Duration, len(Phases))
	p.lastPhase = ""
}

// StartPhase ends the running phase, if any, and begins timing phase.
func (p *PerfCollector) StartPhase(phase string) {
	now := p.now()
	if p.lastPhase != "" {
		p.currentPhases[p.lastPhase] += now.Sub(p.phaseStart)
	}
	p.phaseStart = now
	p.lastPhase = phase
}

// EndFrame finishes timing the current frame and records the sample.
// It returns the sample so callers can forward it to other sinks.
func (p *PerfCollector) EndFrame() PerfSample {
	now := p.now()
	if p.lastPhase != "" {
		p.currentPhases[p.lastPhase] += now.Sub(p.phaseStart)
		p.lastPhase = ""
	}

	sample := PerfSample{
		FrameDuration: now.Sub(p.frameStart),
		Phases:        p.currentPhases,
	}

	p.samples[p.writeIndex] = sample
	p.writeIndex = (p.writeIndex + 1) % p.windowSize
	if p.sampleCount < p.windowSize {
		p.sampleCount++
	}
	return sample
}

// RecordPresent records the time a frame reached the screen.
func (p *PerfCollector) RecordPresent() {
	now := p.now()
	if !p.lastPresent.IsZero() {
		p.presentInterval = now.Sub(p.lastPresent)
	}
	p.lastPresent = now
}

// PerfStats holds aggregated performance statistics.
type PerfStats struct {
	AvgFrameDuration time.Duration
	MinFrameDuration time.Duration
	MaxFrameDuration time.Duration

	// Average duration and share of frame time per phase
	PhaseAvg map[string]time.Duration
	PhasePct map[string]float64

	FramesPerSecond float64

	// Presentation rate (graphics mode)
	PresentInterval time.Duration
	FPS             float64
}

// Stats computes aggregated statistics over the current window.
func (p *PerfCollector) Stats() PerfStats {
	var fps float64
	if p.presentInterval > 0 {
		fps = float64(time.Second) / float64(p.presentInterval)
	}

	if p.sampleCount == 0 {
		return PerfStats{
			PhaseAvg:        make(map[string]time.Duration),
			PhasePct:        make(map[string]float64),
			PresentInterval: p.presentInterval,
			FPS:             fps,
		}
	}

	var total, minFrame, maxFrame time.Duration
	phaseSum := make(map[string]time.Duration)

	for i := range p.sampleCount {
		s := p.samples[i]
		total += s.FrameDuration

		if i == 0 || s.FrameDuration < minFrame {
			minFrame = s.FrameDuration
		}
		if s.FrameDuration > maxFrame {
			maxFrame = s.FrameDuration
		}

		for phase, dur := range s.Phases {
			phaseSum[phase] += dur
		}
	}

	avg := total / time.Duration(p.sampleCount)

	phaseAvg := make(map[string]time.Duration, len(phaseSum))
	phasePct := make(map[string]float64, len(phaseSum))
	for phase, sum := range phaseSum {
		phaseAvg[phase] = sum / time.Duration(p.sampleCount)
		if avg > 0 {
			phasePct[phase] = float64(phaseAvg[phase]) / float64(avg) * 100
		}
	}

	var perSec float64
	if avg > 0 {
		perSec = float64(time.Second) / float64(avg)
	}

	return PerfStats{
		AvgFrameDuration: avg,
		MinFrameDuration: minFrame,
		MaxFrameDuration: maxFrame,
		PhaseAvg:         phaseAvg,
		PhasePct:         phasePct,
		FramesPerSecond:  perSec,
		PresentInterval:  p.presentInterval,
		FPS:              fps,
	}
}

// LogStats logs performance statistics.
func (s PerfStats) LogStats() {
	attrs := []any{
		"avg_frame_us", s.AvgFrameDuration.Microseconds(),
		"min_frame_us", s.MinFrameDuration.Microseconds(),
		"max_frame_us", s.MaxFrameDuration.Microseconds(),
		"frames_per_sec", int(s.FramesPerSecond),
	}

	if s.FPS > 0 {
		attrs = append(attrs, "fps", int(s.FPS))
	}

	for _, phase := range Phases {
		if pct, ok := s.PhasePct[phase]; ok && pct > 0.1 {
			attrs = append(attrs, phase+"_pct", float64(int(pct*10))/10)
		}
	}

	slog.Info("perf", attrs...)
}

// LogValue implements slog.LogValuer for structured logging.
func (s PerfStats) LogValue() slog.Value {
	attrs := []slog.Attr{
		slog.Int64("avg_frame_us", s.AvgFrameDuration.Microseconds()),
		slog.Int64("min_frame_us", s.MinFrameDuration.Microseconds()),
		slog.Int64("max_frame_us", s.MaxFrameDuration.Microseconds()),
		slog.Float64("frames_per_sec", s.FramesPerSecond),
	}

	if s.FPS > 0 {
		attrs = append(attrs, slog.Float64("fps", s.FPS))
	}

	for _, phase := range Phases {
		if pct, ok := s.PhasePct[phase]; ok {
			attrs = append(attrs, slog.Float64(phase+"_pct", pct))
		}
	}

	return slog.GroupValue(attrs...)
}

// PerfStatsCSV is a flat struct for CSV export of performance stats.
type PerfStatsCSV struct {
	RunID           string  `csv:"run_id"`
	WindowEnd       int64   `csv:"window_end"`
	AvgFrameUS      int64   `csv:"avg_frame_us"`
	MinFrameUS      int64   `csv:"min_frame_us"`
	MaxFrameUS      int64   `csv:"max_frame_us"`
	FramesPerSec    float64 `csv:"frames_per_sec"`
	FPS             float64 `csv:"fps"`
	SnapshotPct     float64 `csv:"snapshot_pct"`
	SpatialIndexPct float64 `csv:"spatial_index_pct"`
	SimulatePct     float64 `csv:"simulate_pct"`
	RenderPct       float64 `csv:"render_pct"`
	TelemetryPct    float64 `csv:"telemetry_pct"`
}

// ToCSV converts PerfStats to a flat CSV-friendly struct.
func (s PerfStats) ToCSV(runID string, windowEnd int64) PerfStatsCSV {
	return PerfStatsCSV{
		RunID:           runID,
		WindowEnd:       windowEnd,
		AvgFrameUS:      s.AvgFrameDuration.Microseconds(),
		MinFrameUS:      s.MinFrameDuration.Microseconds(),
		MaxFrameUS:      s.MaxFrameDuration.Microseconds(),
		FramesPerSec:    s.FramesPerSecond,
		FPS:             s.FPS,
		SnapshotPct:     s.PhasePct[PhaseSnapshot],
		SpatialIndexPct: s.PhasePct[PhaseSpatialIndex],
		SimulatePct:     s.PhasePct[PhaseSimulate],
		RenderPct:       s.PhasePct[PhaseRender],
		TelemetryPct:    s.PhasePct[PhaseTelemetry],
	}
}
