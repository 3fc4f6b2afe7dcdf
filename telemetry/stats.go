package telemetry

import (
	"log/slog"
	"math"
	"slices"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/spatial/r2"
	"gonum.org/v1/gonum/stat"

	"github.com/pthm-cable/flock/systems"
)

// FlockStats holds flock-level statistics for one window.
type FlockStats struct {
	RunID            string `csv:"run_id"`
	WindowStartFrame int64  `csv:"-"`
	WindowEndFrame   int64  `csv:"window_end"`
	Particles        int    `csv:"particles"`
	FailedFrames     int    `csv:"failed_frames"`

	// Speed distribution (sampled at window end)
	SpeedMean float64 `csv:"speed_mean"`
	SpeedStd  float64 `csv:"speed_std"`
	SpeedP10  float64 `csv:"speed_p10"`
	SpeedP50  float64 `csv:"speed_p50"`
	SpeedP90  float64 `csv:"speed_p90"`
	SpeedMax  float64 `csv:"speed_max"`

	// Order parameter: 1 when every boid heads the same way, near 0 when disordered
	Polarization float64 `csv:"polarization"`

	CentroidX float64 `csv:"centroid_x"`
	CentroidY float64 `csv:"centroid_y"`
	Spread    float64 `csv:"spread"` // Mean distance from the centroid

	// Spatial index shape
	QuadtreeNodes        int `csv:"qt_nodes"`
	QuadtreeLeaves       int `csv:"qt_leaves"`
	QuadtreeMaxDepth     int `csv:"qt_max_depth"`
	QuadtreeMaxLeafCount int `csv:"qt_max_leaf"`
}

// Percentile returns the p-th quantile of a sorted slice, 0 if empty.
func Percentile(sorted []float64, p float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	return stat.Quantile(min(max(p, 0), 1), stat.LinInterp, sorted, nil)
}

// ComputeSpeedStats calculates the distribution of speeds.
func ComputeSpeedStats(speeds []float64) (mean, std, p10, p50, p90, peak float64) {
	if len(speeds) == 0 {
		return 0, 0, 0, 0, 0, 0
	}

	mean, std = stat.PopMeanStdDev(speeds, nil)

	sorted := slices.Clone(speeds)
	slices.Sort(sorted)

	p10 = Percentile(sorted, 0.10)
	p50 = Percentile(sorted, 0.50)
	p90 = Percentile(sorted, 0.90)
	peak = floats.Max(sorted)

	return mean, std, p10, p50, p90, peak
}

// ComputeFlockStats samples the current particle state.
// Window bounds and run identity are filled in by the Collector.
func ComputeFlockStats(view systems.ParticleView, qt systems.QuadtreeStats) FlockStats {
	n := view.Len()
	s := FlockStats{
		Particles:            n,
		QuadtreeNodes:        qt.Nodes,
		QuadtreeLeaves:       qt.Leaves,
		QuadtreeMaxDepth:     qt.MaxDepth,
		QuadtreeMaxLeafCount: qt.MaxLeafCount,
	}
	if n == 0 {
		return s
	}

	speeds := make([]float64, 0, n)
	var heading, sum r2.Vec
	for _, p := range view.All() {
		v := r2.Vec{X: float64(p.Velocity.X), Y: float64(p.Velocity.Y)}
		speed := r2.Norm(v)
		speeds = append(speeds, speed)
		if speed > 0 {
			heading = r2.Add(heading, r2.Unit(v))
		}
		sum = r2.Add(sum, r2.Vec{X: float64(p.Position.X), Y: float64(p.Position.Y)})
	}

	centroid := r2.Scale(1/float64(n), sum)
	var spread float64
	for _, p := range view.All() {
		pos := r2.Vec{X: float64(p.Position.X), Y: float64(p.Position.Y)}
		spread += r2.Norm(r2.Sub(pos, centroid))
	}

	s.SpeedMean, s.SpeedStd, s.SpeedP10, s.SpeedP50, s.SpeedP90, s.SpeedMax = ComputeSpeedStats(speeds)
	s.Polarization = r2.Norm(heading) / float64(n)
	s.CentroidX, s.CentroidY = centroid.X, centroid.Y
	s.Spread = spread / float64(n)

	return s
}

// LogValue implements slog.LogValuer for structured logging.
func (s FlockStats) LogValue() slog.Value {
	return slog.GroupValue(
		slog.Int64("window_start", s.WindowStartFrame),
		slog.Int64("window_end", s.WindowEndFrame),
		slog.Int("particles", s.Particles),
		slog.Int("failed_frames", s.FailedFrames),
		slog.Float64("speed_mean", s.SpeedMean),
		slog.Float64("speed_std", s.SpeedStd),
		slog.Float64("speed_p10", s.SpeedP10),
		slog.Float64("speed_p50", s.SpeedP50),
		slog.Float64("speed_p90", s.SpeedP90),
		slog.Float64("speed_max", s.SpeedMax),
		slog.Float64("polarization", s.Polarization),
		slog.Float64("centroid_x", s.CentroidX),
		slog.Float64("centroid_y", s.CentroidY),
		slog.Float64("spread", s.Spread),
		slog.Int("qt_nodes", s.QuadtreeNodes),
		slog.Int("qt_leaves", s.QuadtreeLeaves),
		slog.Int("qt_max_depth", s.QuadtreeMaxDepth),
	)
}

// LogStats logs the window stats using slog.
func (s FlockStats) LogStats() {
	slog.Info("stats",
		"run_id", s.RunID,
		"window_end", s.WindowEndFrame,
		"particles", s.Particles,
		"speed_mean", roundTo(s.SpeedMean, 6),
		"speed_p90", roundTo(s.SpeedP90, 6),
		"polarization", roundTo(s.Polarization, 4),
		"spread", roundTo(s.Spread, 4),
		"qt_nodes", s.QuadtreeNodes,
		"qt_max_depth", s.QuadtreeMaxDepth,
	)
}

func roundTo(v float64, places int) float64 {
	scale := math.Pow(10, float64(places))
	return math.Round(v*scale) / scale
}
