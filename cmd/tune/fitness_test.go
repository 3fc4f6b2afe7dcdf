package main

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/pthm-cable/flock/config"
	"github.com/pthm-cable/flock/telemetry"
)

func TestScoreWindows(t *testing.T) {
	target := Target{Polarization: 0.8, CrowdingWeight: 2}

	tests := []struct {
		name    string
		windows []telemetry.FlockStats
		want    Score
	}{
		{
			name: "on target",
			windows: []telemetry.FlockStats{
				{Particles: 100, Polarization: 0.8},
			},
			want: Score{Fitness: 0, Polarization: 0.8},
		},
		{
			name: "early windows ignored",
			windows: []telemetry.FlockStats{
				{Particles: 100, Polarization: 0.0},
				{Particles: 100, Polarization: 0.6},
			},
			want: Score{Fitness: 0.04, Polarization: 0.6},
		},
		{
			name: "overfull leaves penalized",
			windows: []telemetry.FlockStats{
				{Particles: 100, Polarization: 0.8, QuadtreeMaxLeafCount: 26},
			},
			want: Score{Fitness: 0.2, Polarization: 0.8, Crowding: 0.1},
		},
		{
			name: "full leaves are fine",
			windows: []telemetry.FlockStats{
				{Particles: 100, Polarization: 0.8, QuadtreeMaxLeafCount: 16},
			},
			want: Score{Fitness: 0, Polarization: 0.8},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := scoreWindows(tt.windows, 16, target)
			if err != nil {
				t.Fatal(err)
			}
			if math.Abs(got.Fitness-tt.want.Fitness) > 1e-9 ||
				math.Abs(got.Polarization-tt.want.Polarization) > 1e-9 ||
				math.Abs(got.Crowding-tt.want.Crowding) > 1e-9 {
				t.Errorf("scoreWindows() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestScoreWindowsEmpty(t *testing.T) {
	if _, err := scoreWindows(nil, 16, Target{}); err == nil {
		t.Error("expected error for a run with no windows")
	}
}

func TestEvaluate(t *testing.T) {
	cfg := config.Default()
	cfg.Simulation.ParticleCount = 200
	cfg.Telemetry.StatsWindow = 5

	pv := NewParamVector()
	fe := NewFitnessEvaluator(pv, 20, []int64{1, 2}, cfg, Target{Polarization: 0.8, CrowdingWeight: 1})

	score, err := fe.Evaluate(context.Background(), pv.DefaultVector())
	if err != nil {
		t.Fatal(err)
	}
	if math.IsNaN(score.Fitness) || math.IsInf(score.Fitness, 0) || score.Fitness < 0 {
		t.Errorf("fitness = %v, want finite and non-negative", score.Fitness)
	}
	if score.Polarization < 0 || score.Polarization > 1 {
		t.Errorf("polarization = %v, want within [0, 1]", score.Polarization)
	}
	if fe.LastScore() != score {
		t.Errorf("LastScore() = %+v, want %+v", fe.LastScore(), score)
	}
	// The base config must be left alone
	if cfg.Simulation.ParticleCount != 200 {
		t.Errorf("base config modified: particle count %d", cfg.Simulation.ParticleCount)
	}
}

func TestEvaluateCancelled(t *testing.T) {
	cfg := config.Default()
	cfg.Simulation.ParticleCount = 50

	pv := NewParamVector()
	fe := NewFitnessEvaluator(pv, 1000, []int64{1}, cfg, Target{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := fe.Evaluate(ctx, pv.DefaultVector()); err == nil {
		t.Error("expected error from a cancelled evaluation")
	}
}

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		secs int
		want string
	}{
		{0, "0m00s"},
		{75, "1m15s"},
		{3725, "1h02m05s"},
	}
	for _, tt := range tests {
		if got := formatDuration(time.Duration(tt.secs) * time.Second); got != tt.want {
			t.Errorf("formatDuration(%ds) = %q, want %q", tt.secs, got, tt.want)
		}
	}
}
