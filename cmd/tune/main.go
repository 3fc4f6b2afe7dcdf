// Package main tunes flocking weights with CMA-ES so headless runs settle
// into a flock with a chosen polarization.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"time"

	"github.com/gocarina/gocsv"
	"gonum.org/v1/gonum/optimize"

	"github.com/pthm-cable/flock/config"
)

// failedFitness is reported to the optimizer when a run errors out.
const failedFitness = 1e9

// evalRow is one line of evals.csv.
type evalRow struct {
	Eval               int     `csv:"eval"`
	Fitness            float64 `csv:"fitness"`
	Polarization       float64 `csv:"polarization"`
	Crowding           float64 `csv:"crowding"`
	SeparationWeight   float64 `csv:"separation_weight"`
	AlignmentWeight    float64 `csv:"alignment_weight"`
	CohesionWeight     float64 `csv:"cohesion_weight"`
	PerceptionRadius   float64 `csv:"perception_radius"`
	SeparationDistance float64 `csv:"separation_distance"`
}

// formatDuration formats a duration as HH:MM:SS or MM:SS for shorter durations.
func formatDuration(d time.Duration) string {
	d = d.Round(time.Second)
	h := d / time.Hour
	d -= h * time.Hour
	m := d / time.Minute
	d -= m * time.Minute
	s := d / time.Second

	if h > 0 {
		return fmt.Sprintf("%dh%02dm%02ds", h, m, s)
	}
	return fmt.Sprintf("%dm%02ds", m, s)
}

func main() {
	// CLI flags
	configPath := flag.String("config", "", "Base config YAML file (empty = use defaults)")
	frames := flag.Int64("frames", 600, "Frames per run")
	particles := flag.Int("particles", 2000, "Particles per run (0 = use config)")
	seeds := flag.Int("seeds", 3, "Number of seeds per evaluation")
	maxEvals := flag.Int("max-evals", 100, "Maximum number of evaluations")
	population := flag.Int("population", 0, "CMA-ES population size (0 = auto)")
	targetPol := flag.Float64("target-polarization", 0.8, "Desired flock polarization, 0 to 1")
	crowding := flag.Float64("crowding-weight", 1.0, "Penalty weight for overfull quadtree leaves")
	outputDir := flag.String("output", "", "Output directory for results")
	flag.Parse()

	// Progress goes to stdout; only problems are logged
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn})))

	if *outputDir == "" {
		fatal("--output is required")
	}
	if err := os.MkdirAll(*outputDir, 0755); err != nil {
		fatal("failed to create output directory", "error", err)
	}

	baseCfg, err := config.Load(*configPath)
	if err != nil {
		fatal("failed to load config", "error", err)
	}
	if *particles > 0 {
		baseCfg.Simulation.ParticleCount = *particles
	}
	baseCfg.Telemetry.StatsWindow = max(int(*frames/10), 1)

	params := NewParamVector()
	evalSeeds := make([]int64, *seeds)
	for i := range evalSeeds {
		evalSeeds[i] = int64(i*1000 + 42)
	}
	evaluator := NewFitnessEvaluator(params, *frames, evalSeeds, baseCfg, Target{
		Polarization:   *targetPol,
		CrowdingWeight: *crowding,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	logFile, err := os.Create(filepath.Join(*outputDir, "evals.csv"))
	if err != nil {
		fatal("failed to create log file", "error", err)
	}
	defer logFile.Close()

	evalCount := 0
	bestFitness := failedFitness
	var bestParams []float64
	startTime := time.Now()

	problem := optimize.Problem{
		Func: func(x []float64) float64 {
			raw := params.Clamp(params.Denormalize(x))
			score, err := evaluator.Evaluate(ctx, raw)
			evalCount++
			if err != nil {
				slog.Warn("evaluation failed", "eval", evalCount, "error", err)
				score = Score{Fitness: failedFitness}
			}

			if score.Fitness < bestFitness {
				bestFitness = score.Fitness
				bestParams = raw
			}

			row := []evalRow{{
				Eval:               evalCount,
				Fitness:            score.Fitness,
				Polarization:       score.Polarization,
				Crowding:           score.Crowding,
				SeparationWeight:   raw[paramSeparationWeight],
				AlignmentWeight:    raw[paramAlignmentWeight],
				CohesionWeight:     raw[paramCohesionWeight],
				PerceptionRadius:   raw[paramPerceptionRadius],
				SeparationDistance: raw[paramSeparationDistance],
			}}
			write := gocsv.MarshalWithoutHeaders
			if evalCount == 1 {
				write = gocsv.Marshal
			}
			if err := write(row, logFile); err != nil {
				slog.Error("failed to write eval log", "error", err)
			}

			elapsed := time.Since(startTime)
			remaining := time.Duration(max(*maxEvals-evalCount, 0)) * (elapsed / time.Duration(evalCount))
			fmt.Printf("Eval %d/%d: fitness=%.4f polarization=%.3f crowding=%.4f (best=%.4f) | elapsed: %s, ETA: %s\n",
				evalCount, *maxEvals, score.Fitness, score.Polarization, score.Crowding, bestFitness,
				formatDuration(elapsed), formatDuration(remaining))

			return score.Fitness
		},
	}

	settings := &optimize.Settings{
		FuncEvaluations: *maxEvals,
		Concurrent:      0, // Seeds already run in parallel
	}
	method := &optimize.CmaEsChol{
		InitStepSize: 0.3,
		Population:   *population,
	}

	fmt.Printf("Starting CMA-ES with %d parameters, max_evals=%d, seeds=%d, frames=%d, particles=%d\n",
		params.Dim(), *maxEvals, *seeds, *frames, baseCfg.Simulation.ParticleCount)

	result, err := optimize.Minimize(problem, params.Normalize(params.FromConfig(baseCfg)), settings, method)
	if err != nil {
		slog.Warn("optimization ended", "error", err)
	}
	if bestParams == nil && result != nil {
		bestParams = params.Clamp(params.Denormalize(result.X))
	}
	if bestParams == nil {
		fatal("no evaluation completed")
	}

	fmt.Printf("\nOptimization complete after %d evaluations in %s\n", evalCount, formatDuration(time.Since(startTime)))
	fmt.Printf("Best fitness: %.4f\n", bestFitness)
	fmt.Println("\nBest parameters:")
	for i, spec := range params.Specs {
		fmt.Printf("  %s: %.6g\n", spec.Path, bestParams[i])
	}

	// Save best config, keeping the user's particle count rather than the tuning one
	bestCfg, err := config.Load(*configPath)
	if err != nil {
		fatal("failed to reload config", "error", err)
	}
	params.ApplyToConfig(bestCfg, bestParams)

	configOutPath := filepath.Join(*outputDir, "best_config.yaml")
	if err := bestCfg.WriteYAML(configOutPath); err != nil {
		fatal("failed to write best config", "error", err)
	}
	fmt.Printf("\nBest config saved to: %s\n", configOutPath)
}

func fatal(msg string, args ...any) {
	slog.Error(msg, args...)
	os.Exit(1)
}
