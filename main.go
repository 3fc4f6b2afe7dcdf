package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/pthm-cable/flock/config"
	"github.com/pthm-cable/flock/game"
	"github.com/pthm-cable/flock/renderer"
	"github.com/pthm-cable/flock/renderer/window"
	"github.com/pthm-cable/flock/telemetry"
)

// cliOptions holds parsed command-line flags.
type cliOptions struct {
	configPath  string
	headless    bool
	terminal    bool
	seed        int64
	maxFrames   int64
	logStats    bool
	outputDir   string
	metricsAddr string
}

func main() {
	var opts cliOptions
	flag.StringVar(&opts.configPath, "config", "", "Path to config.yaml (empty = use defaults)")
	flag.BoolVar(&opts.headless, "headless", false, "Run without graphics")
	flag.BoolVar(&opts.terminal, "terminal", false, "Render to the terminal instead of a window")
	flag.Int64Var(&opts.seed, "seed", 0, "RNG seed (0 = time-based)")
	flag.Int64Var(&opts.maxFrames, "max-frames", 0, "Stop after N frames (0 = unlimited)")
	flag.BoolVar(&opts.logStats, "log-stats", false, "Output stats via slog")
	flag.StringVar(&opts.outputDir, "output-dir", "", "Output directory for CSV logs and config snapshot")
	flag.StringVar(&opts.metricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address (overrides config)")
	flag.Parse()

	// Set up slog (JSON to stdout for structured logging)
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, nil)))

	if err := run(opts); err != nil {
		slog.Error("simulation failed", "error", err)
		os.Exit(1)
	}
}

func run(opts cliOptions) error {
	if opts.headless && opts.terminal {
		return errors.New("-headless and -terminal are mutually exclusive")
	}

	// Initialize config before anything else
	if err := config.Init(opts.configPath); err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	cfg := config.Cfg()

	rngSeed := opts.seed
	if rngSeed == 0 {
		rngSeed = time.Now().UnixNano()
	}
	runID := uuid.NewString()

	// The terminal renderer owns stdout
	if opts.terminal {
		closeLog, err := redirectLogs(opts.outputDir)
		if err != nil {
			return err
		}
		defer closeLog()
	}

	metricsAddr := cfg.Telemetry.MetricsAddr
	if opts.metricsAddr != "" {
		metricsAddr = opts.metricsAddr
	}
	var metrics *telemetry.Metrics
	if metricsAddr != "" {
		metrics = telemetry.NewMetrics(runID)
	}

	g, err := game.NewGameWithOptions(game.Options{
		Config:    cfg,
		Seed:      rngSeed,
		RunID:     runID,
		LogStats:  opts.logStats,
		OutputDir: opts.outputDir,
		Metrics:   metrics,
	})
	if err != nil {
		return err
	}
	defer g.Unload()

	var r renderer.Renderer
	switch {
	case opts.headless:
	case opts.terminal:
		term, err := renderer.NewTerminal(nil, cfg.Render.ParticleColor)
		if err != nil {
			return err
		}
		r = term
	default:
		r = window.New(cfg)
	}
	if r != nil {
		defer r.Close()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	grp, ctx := errgroup.WithContext(ctx)

	if metrics != nil {
		grp.Go(func() error {
			return metrics.ServeMetrics(ctx, metricsAddr)
		})
	}

	slog.Info("starting simulation",
		"run_id", runID,
		"seed", rngSeed,
		"headless", opts.headless,
		"terminal", opts.terminal,
		"max_frames", opts.maxFrames,
	)

	// Raylib requires the frame loop on the main goroutine
	loopErr := runLoop(ctx, g, r, opts.maxFrames)
	stop()

	return errors.Join(loopErr, grp.Wait())
}

// runLoop drives frames until quit, cancellation, the frame limit or a failed frame.
func runLoop(ctx context.Context, g *game.Game, r renderer.Renderer, maxFrames int64) error {
	for !g.QuitRequested() {
		if err := ctx.Err(); err != nil {
			slog.Info("stopping", "reason", context.Cause(ctx), "frame", g.Frame())
			return nil
		}
		if err := g.RunFrame(r); err != nil {
			return err
		}
		if maxFrames > 0 && g.Frame() >= maxFrames {
			slog.Info("max frames reached", "frame", g.Frame())
			return nil
		}
	}
	slog.Info("quit requested", "frame", g.Frame())
	return nil
}

// redirectLogs sends slog output to a file in dir, or discards it when dir is empty.
func redirectLogs(dir string) (func(), error) {
	if dir == "" {
		slog.SetDefault(slog.New(slog.NewJSONHandler(io.Discard, nil)))
		return func() {}, nil
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating output directory: %w", err)
	}
	f, err := os.Create(filepath.Join(dir, "flock.log"))
	if err != nil {
		return nil, fmt.Errorf("creating log file: %w", err)
	}
	slog.SetDefault(slog.New(slog.NewJSONHandler(f, nil)))
	return func() { f.Close() }, nil
}
