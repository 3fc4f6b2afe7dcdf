// Package game drives the frame loop: snapshot, spatial index, parallel simulation, render.
package game

import (
	"errors"
	"fmt"
	"log/slog"
	"math/rand"

	"github.com/google/uuid"

	"github.com/pthm-cable/flock/components"
	"github.com/pthm-cable/flock/config"
	"github.com/pthm-cable/flock/renderer"
	"github.com/pthm-cable/flock/systems"
	"github.com/pthm-cable/flock/telemetry"
)

// ErrFrameFailed is wrapped by every error that aborts a frame's simulation stage.
var ErrFrameFailed = errors.New("frame failed")

// Options configures a new Game.
type Options struct {
	Config    *config.Config // nil = config.Cfg()
	Seed      int64
	RunID     string // empty = random UUID
	LogStats  bool
	OutputDir string // empty = no CSV output

	// Kernel replaces the boid kernel when set
	Kernel systems.Kernel

	// Particles replaces random initialization when non-empty
	Particles []components.Particle

	Metrics       *telemetry.Metrics
	StatsCallback func(telemetry.FlockStats)
}

// Game holds the complete simulation state.
type Game struct {
	cfg   *config.Config
	rng   *rand.Rand
	runID string

	store    *systems.ParticleStore
	snapshot []components.Particle

	// Neighbor search: the quadtree, or brute force when the index is disabled
	finder   systems.NeighborFinder
	quadtree *systems.Quadtree

	kernel   systems.Kernel
	parallel *workerPool

	// State
	frame  int64
	paused bool
	quit   bool

	// Telemetry
	perfCollector *telemetry.PerfCollector
	collector     *telemetry.Collector
	outputManager *telemetry.OutputManager
	metrics       *telemetry.Metrics
	statsCallback func(telemetry.FlockStats)
	logStats      bool
}

// NewGameWithOptions allocates the particle store, spatial index and worker pool.
func NewGameWithOptions(opts Options) (*Game, error) {
	cfg := opts.Config
	if cfg == nil {
		cfg = config.Cfg()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	cfg.ComputeDerived()

	runID := opts.RunID
	if runID == "" {
		runID = uuid.NewString()
	}

	g := &Game{
		cfg:           cfg,
		rng:           rand.New(rand.NewSource(opts.Seed)),
		runID:         runID,
		kernel:        opts.Kernel,
		parallel:      newWorkerPool(cfg.Parallel.Workers, cfg.Parallel.BatchSize, cfg.Parallel.Threshold),
		perfCollector: telemetry.NewPerfCollector(cfg.Telemetry.PerfCollectorWindow),
		collector:     telemetry.NewCollector(runID, cfg.Telemetry.StatsWindow),
		metrics:       opts.Metrics,
		statsCallback: opts.StatsCallback,
		logStats:      opts.LogStats,
	}
	if g.kernel == nil {
		g.kernel = systems.NewBoidKernel(systems.FlockingParamsFrom(cfg))
	}

	var err error
	if len(opts.Particles) > 0 {
		g.store, err = systems.NewParticleStoreFrom(opts.Particles)
	} else {
		sim := cfg.Simulation
		g.store, err = systems.NewParticleStore(sim.ParticleCount, sim.InitialPositionRange, sim.InitialVelocityRange, g.rng)
	}
	if err != nil {
		return nil, fmt.Errorf("allocating particles: %w", err)
	}
	g.snapshot = make([]components.Particle, g.store.Len())

	if cfg.Spatial.Enabled {
		g.quadtree, err = systems.NewQuadtree(systems.QuadtreeConfigFrom(cfg))
		if err != nil {
			return nil, fmt.Errorf("allocating spatial index: %w", err)
		}
		g.finder = g.quadtree
	} else {
		g.finder = systems.NewBruteForce()
	}

	g.outputManager, err = telemetry.NewOutputManager(opts.OutputDir)
	if err != nil {
		return nil, err
	}
	if err := g.outputManager.WriteConfig(cfg); err != nil {
		g.outputManager.Close()
		return nil, fmt.Errorf("writing config snapshot: %w", err)
	}

	slog.Info("simulation initialized",
		"run_id", runID,
		"seed", opts.Seed,
		"particles", g.store.Len(),
		"workers", g.parallel.numWorkers,
		"batch_size", g.parallel.batchSize,
		"spatial_index", cfg.Spatial.Enabled,
		"boundary", cfg.Simulation.Boundary,
	)

	return g, nil
}

// Step advances the simulation by one frame.
// The store is snapshotted, the spatial index rebuilt over the snapshot, and every
// particle updated in parallel. Step returns only after all batches have joined.
//
// A failed step wraps ErrFrameFailed and leaves the store undefined: batches that
// succeeded have already written their particles. The frame counter does not advance.
// Callers must stop using the Game after a failure.
func (g *Game) Step() error {
	g.perfCollector.StartPhase(telemetry.PhaseSnapshot)
	g.snapshot = g.store.Read().CopyTo(g.snapshot)

	g.perfCollector.StartPhase(telemetry.PhaseSpatialIndex)
	g.finder.Build(g.snapshot)

	g.perfCollector.StartPhase(telemetry.PhaseSimulate)
	if err := g.parallel.run(g, len(g.snapshot)); err != nil {
		return fmt.Errorf("%w: frame %d: %w", ErrFrameFailed, g.frame+1, err)
	}

	g.frame++
	return nil
}

// RunFrame polls input, steps unless paused, renders and flushes telemetry.
// A nil renderer runs headless.
func (g *Game) RunFrame(r renderer.Renderer) error {
	var in renderer.Input
	if src, ok := r.(renderer.InputSource); ok {
		in = src.PollInput()
	}
	if in.Quit {
		g.quit = true
		return nil
	}
	if in.TogglePause {
		g.SetPaused(!g.paused)
	}

	stepping := !g.paused || in.Step
	if stepping {
		g.perfCollector.StartFrame()
		if err := g.Step(); err != nil {
			g.collector.RecordFailedFrame()
			g.metrics.ObserveFrame(g.perfCollector.EndFrame(), true)
			return err
		}
	}

	if r != nil {
		if stepping {
			g.perfCollector.StartPhase(telemetry.PhaseRender)
		}
		if err := r.Draw(g.store.Read(), g.overlay()); err != nil {
			return fmt.Errorf("rendering frame %d: %w", g.frame, err)
		}
		g.perfCollector.RecordPresent()
	}

	if stepping {
		g.perfCollector.StartPhase(telemetry.PhaseTelemetry)
		g.flushTelemetry()
		g.metrics.ObserveFrame(g.perfCollector.EndFrame(), false)
	}
	return nil
}

func (g *Game) overlay() renderer.Overlay {
	return renderer.Overlay{
		Title:     g.cfg.Screen.Title,
		RunID:     g.runID,
		Frame:     g.frame,
		Particles: g.store.Len(),
		Paused:    g.paused,
		Perf:      g.perfCollector.Stats(),
	}
}

// Frame returns the number of completed frames.
func (g *Game) Frame() int64 {
	return g.frame
}

// Particles returns a read-only view of the store.
func (g *Game) Particles() systems.ParticleView {
	return g.store.Read()
}

// QuadtreeStats describes the last spatial index build; zero when the index is disabled.
func (g *Game) QuadtreeStats() systems.QuadtreeStats {
	if g.quadtree == nil {
		return systems.QuadtreeStats{}
	}
	return g.quadtree.Stats()
}

// RunID returns the identifier tagging this run's logs and output.
func (g *Game) RunID() string {
	return g.runID
}

// Paused reports whether stepping is suspended.
func (g *Game) Paused() bool {
	return g.paused
}

// SetPaused suspends or resumes stepping.
func (g *Game) SetPaused(paused bool) {
	if g.paused != paused {
		slog.Info("pause toggled", "paused", paused, "frame", g.frame)
	}
	g.paused = paused
}

// QuitRequested reports whether the user asked to exit.
func (g *Game) QuitRequested() bool {
	return g.quit
}

// Unload stops the worker pool and closes output files.
func (g *Game) Unload() {
	g.stopParallelWorkers()
	if err := g.outputManager.Close(); err != nil {
		slog.Error("failed to close output", "error", err)
	}
}
