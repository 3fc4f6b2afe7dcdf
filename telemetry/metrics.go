package telemetry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics exposes live simulation counters to Prometheus.
// Collectors live on a private registry so several simulations (or tests) can coexist in one process.
type Metrics struct {
	registry *prometheus.Registry

	Frames        prometheus.Counter
	FailedFrames  prometheus.Counter
	FrameSeconds  prometheus.Histogram
	PhaseSeconds  *prometheus.HistogramVec
	Particles     prometheus.Gauge
	QuadtreeNodes prometheus.Gauge
	QuadLeaves    prometheus.Gauge
	QuadDepth     prometheus.Gauge
	Polarization  prometheus.Gauge
}

// frameBuckets spans 0.1ms to ~3s.
var frameBuckets = prometheus.ExponentialBuckets(0.0001, 2, 15)

// NewMetrics registers the simulation collectors plus Go runtime collectors.
func NewMetrics(runID string) *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	labels := prometheus.Labels{"run_id": runID}
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		Frames: factory.NewCounter(prometheus.CounterOpts{
			Name:        "flock_frames_total",
			Help:        "Frames simulated",
			ConstLabels: labels,
		}),
		FailedFrames: factory.NewCounter(prometheus.CounterOpts{
			Name:        "flock_failed_frames_total",
			Help:        "Frames whose simulation stage failed",
			ConstLabels: labels,
		}),
		FrameSeconds: factory.NewHistogram(prometheus.HistogramOpts{
			Name:        "flock_frame_seconds",
			Help:        "Wall time of one full frame",
			Buckets:     frameBuckets,
			ConstLabels: labels,
		}),
		PhaseSeconds: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:        "flock_phase_seconds",
			Help:        "Wall time per frame phase",
			Buckets:     frameBuckets,
			ConstLabels: labels,
		}, []string{"phase"}),
		Particles: factory.NewGauge(prometheus.GaugeOpts{
			Name:        "flock_particles",
			Help:        "Particles in the store",
			ConstLabels: labels,
		}),
		QuadtreeNodes: factory.NewGauge(prometheus.GaugeOpts{
			Name:        "flock_quadtree_nodes",
			Help:        "Nodes in the last quadtree build",
			ConstLabels: labels,
		}),
		QuadLeaves: factory.NewGauge(prometheus.GaugeOpts{
			Name:        "flock_quadtree_leaves",
			Help:        "Leaves in the last quadtree build",
			ConstLabels: labels,
		}),
		QuadDepth: factory.NewGauge(prometheus.GaugeOpts{
			Name:        "flock_quadtree_depth",
			Help:        "Deepest leaf in the last quadtree build",
			ConstLabels: labels,
		}),
		Polarization: factory.NewGauge(prometheus.GaugeOpts{
			Name:        "flock_polarization",
			Help:        "Heading alignment of the flock at the last stats window, 0 to 1",
			ConstLabels: labels,
		}),
	}
}

// ObserveFrame records one completed frame.
func (m *Metrics) ObserveFrame(sample PerfSample, failed bool) {
	if m == nil {
		return
	}
	m.Frames.Inc()
	if failed {
		m.FailedFrames.Inc()
	}
	m.FrameSeconds.Observe(sample.FrameDuration.Seconds())
	for phase, d := range sample.Phases {
		m.PhaseSeconds.WithLabelValues(phase).Observe(d.Seconds())
	}
}

// ObserveWindow publishes the gauges from a flushed stats window.
func (m *Metrics) ObserveWindow(s FlockStats) {
	if m == nil {
		return
	}
	m.Particles.Set(float64(s.Particles))
	m.QuadtreeNodes.Set(float64(s.QuadtreeNodes))
	m.QuadLeaves.Set(float64(s.QuadtreeLeaves))
	m.QuadDepth.Set(float64(s.QuadtreeMaxDepth))
	m.Polarization.Set(s.Polarization)
}

// Handler returns the /metrics HTTP handler for this registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// ServeMetrics serves /metrics on addr until ctx is cancelled.
func (m *Metrics) ServeMetrics(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("metrics server listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("metrics server: %w", err)
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("metrics server shutdown: %w", err)
		}
		if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("metrics server: %w", err)
		}
		return nil
	}
}
