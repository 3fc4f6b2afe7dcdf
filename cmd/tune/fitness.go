package main

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/pthm-cable/flock/config"
	"github.com/pthm-cable/flock/game"
	"github.com/pthm-cable/flock/telemetry"
)

// Target describes the flock the tuner steers toward.
type Target struct {
	Polarization   float64 // Desired heading alignment, 0 to 1
	CrowdingWeight float64 // Penalty per overfull leaf particle, as a share of the flock
}

// Score is the outcome of one evaluation (lower fitness = better).
type Score struct {
	Fitness      float64
	Polarization float64
	Crowding     float64
}

// FitnessEvaluator runs headless simulations and scores the resulting flocks.
type FitnessEvaluator struct {
	params     *ParamVector
	frames     int64
	seeds      []int64
	baseConfig *config.Config
	target     Target

	mu        sync.Mutex
	lastScore Score
}

// NewFitnessEvaluator creates a new evaluator.
func NewFitnessEvaluator(params *ParamVector, frames int64, seeds []int64, baseCfg *config.Config, target Target) *FitnessEvaluator {
	return &FitnessEvaluator{
		params:     params,
		frames:     frames,
		seeds:      seeds,
		baseConfig: baseCfg,
		target:     target,
	}
}

// LastScore returns the score from the most recent evaluation.
func (fe *FitnessEvaluator) LastScore() Score {
	fe.mu.Lock()
	defer fe.mu.Unlock()
	return fe.lastScore
}

// Evaluate runs every seed with the given raw parameters and averages their scores.
func (fe *FitnessEvaluator) Evaluate(ctx context.Context, x []float64) (Score, error) {
	scores := make([]Score, len(fe.seeds))

	grp, ctx := errgroup.WithContext(ctx)
	for i, seed := range fe.seeds {
		grp.Go(func() error {
			// Each run gets its own copy: the game refreshes derived values in place
			cfg := fe.copyConfig()
			fe.params.ApplyToConfig(cfg, x)

			windows, err := fe.runSimulation(ctx, cfg, seed)
			if err != nil {
				return fmt.Errorf("seed %d: %w", seed, err)
			}
			scores[i], err = scoreWindows(windows, cfg.Spatial.LeafCapacity, fe.target)
			if err != nil {
				return fmt.Errorf("seed %d: %w", seed, err)
			}
			return nil
		})
	}
	if err := grp.Wait(); err != nil {
		return Score{}, err
	}

	var avg Score
	for _, s := range scores {
		avg.Fitness += s.Fitness
		avg.Polarization += s.Polarization
		avg.Crowding += s.Crowding
	}
	n := float64(len(scores))
	avg.Fitness /= n
	avg.Polarization /= n
	avg.Crowding /= n

	fe.mu.Lock()
	fe.lastScore = avg
	fe.mu.Unlock()

	return avg, nil
}

// copyConfig creates a copy of the base config.
func (fe *FitnessEvaluator) copyConfig() *config.Config {
	cfg := *fe.baseConfig
	return &cfg
}

// runSimulation runs one headless game and returns its stats windows.
func (fe *FitnessEvaluator) runSimulation(ctx context.Context, cfg *config.Config, seed int64) ([]telemetry.FlockStats, error) {
	var windows []telemetry.FlockStats
	g, err := game.NewGameWithOptions(game.Options{
		Config:        cfg,
		Seed:          seed,
		RunID:         fmt.Sprintf("tune-%d", seed),
		StatsCallback: func(s telemetry.FlockStats) { windows = append(windows, s) },
	})
	if err != nil {
		return nil, err
	}
	defer g.Unload()

	for g.Frame() < fe.frames {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if err := g.RunFrame(nil); err != nil {
			return nil, err
		}
	}
	return windows, nil
}

// scoreWindows scores the settled half of a run's windows.
func scoreWindows(windows []telemetry.FlockStats, leafCapacity int, target Target) (Score, error) {
	if len(windows) == 0 {
		return Score{}, errors.New("run produced no stats windows")
	}

	settled := windows[len(windows)/2:]
	var s Score
	for _, w := range settled {
		s.Polarization += w.Polarization
		if w.Particles > 0 {
			overflow := max(w.QuadtreeMaxLeafCount-leafCapacity, 0)
			s.Crowding += float64(overflow) / float64(w.Particles)
		}
	}
	n := float64(len(settled))
	s.Polarization /= n
	s.Crowding /= n

	d := s.Polarization - target.Polarization
	s.Fitness = d*d + target.CrowdingWeight*s.Crowding
	return s, nil
}
