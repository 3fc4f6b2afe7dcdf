package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load(\"\") failed: %v", err)
	}

	if cfg.Simulation.ParticleCount != 100000 {
		t.Errorf("particle_count = %d, want 100000", cfg.Simulation.ParticleCount)
	}
	if cfg.Simulation.InitialPositionRange != (Range{-1, 1}) {
		t.Errorf("initial_position_range = %v, want [-1 1]", cfg.Simulation.InitialPositionRange)
	}
	if cfg.Simulation.InitialVelocityRange != (Range{-0.01, 0.01}) {
		t.Errorf("initial_velocity_range = %v, want [-0.01 0.01]", cfg.Simulation.InitialVelocityRange)
	}
	if !cfg.Derived.Wrap {
		t.Error("expected wrap boundary by default")
	}
	if cfg.Derived.MaxSpeed32 != float32(cfg.Flocking.MaxSpeed) {
		t.Errorf("derived max speed %v != %v", cfg.Derived.MaxSpeed32, cfg.Flocking.MaxSpeed)
	}
}

func TestLoadOverridesOnlyPresentKeys(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "override.yaml")
	data := "simulation:\n  particle_count: 42\n  boundary: clamp\n"
	if err := os.WriteFile(path, []byte(data), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Simulation.ParticleCount != 42 {
		t.Errorf("particle_count = %d, want 42", cfg.Simulation.ParticleCount)
	}
	if cfg.Derived.Wrap {
		t.Error("expected clamp boundary from override")
	}
	// Untouched keys keep their defaults
	if cfg.Spatial.LeafCapacity != 16 {
		t.Errorf("leaf_capacity = %d, want default 16", cfg.Spatial.LeafCapacity)
	}
}

func TestValidateRejectsMalformed(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *Config)
		field  string
	}{
		{"zero particles", func(c *Config) { c.Simulation.ParticleCount = 0 }, "particle_count"},
		{"position range outside domain", func(c *Config) { c.Simulation.InitialPositionRange = Range{-2, 1} }, "initial_position_range"},
		{"reversed velocity range", func(c *Config) { c.Simulation.InitialVelocityRange = Range{0.1, -0.1} }, "initial_velocity_range"},
		{"unknown boundary", func(c *Config) { c.Simulation.Boundary = "bounce" }, "boundary"},
		{"zero perception radius", func(c *Config) { c.Flocking.PerceptionRadius = 0 }, "perception_radius"},
		{"negative separation distance", func(c *Config) { c.Flocking.SeparationDistance = -1 }, "separation_distance"},
		{"zero max speed", func(c *Config) { c.Flocking.MaxSpeed = 0 }, "max_speed"},
		{"negative weight", func(c *Config) { c.Flocking.Weights.Cohesion = -0.5 }, "weights"},
		{"zero leaf capacity", func(c *Config) { c.Spatial.LeafCapacity = 0 }, "leaf_capacity"},
		{"negative leaf capacity", func(c *Config) { c.Spatial.LeafCapacity = -3 }, "leaf_capacity"},
		{"zero max depth", func(c *Config) { c.Spatial.MaxDepth = 0 }, "max_depth"},
		{"max depth too deep", func(c *Config) { c.Spatial.MaxDepth = MaxQuadtreeDepth + 1 }, "max_depth"},
		{"zero batch size", func(c *Config) { c.Parallel.BatchSize = 0 }, "batch_size"},
		{"unknown shape", func(c *Config) { c.Render.Shape = "sprites" }, "render.shape"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)

			err := cfg.Validate()
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !errors.Is(err, ErrInvalidConfig) {
				t.Errorf("error %v does not wrap ErrInvalidConfig", err)
			}
			if !strings.Contains(err.Error(), tt.field) {
				t.Errorf("error %q does not mention %q", err, tt.field)
			}
		})
	}
}

func TestValidateReportsAllProblems(t *testing.T) {
	cfg := Default()
	cfg.Simulation.ParticleCount = -1
	cfg.Spatial.LeafCapacity = 0

	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected validation error")
	}
	msg := err.Error()
	if !strings.Contains(msg, "particle_count") || !strings.Contains(msg, "leaf_capacity") {
		t.Errorf("expected both problems reported, got %q", msg)
	}
}

func TestLoadRejectsInvalidFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bad.yaml")
	if err := os.WriteFile(path, []byte("spatial:\n  leaf_capacity: 0\n"), 0644); err != nil {
		t.Fatal(err)
	}

	if _, err := Load(path); !errors.Is(err, ErrInvalidConfig) {
		t.Errorf("Load returned %v, want ErrInvalidConfig", err)
	}
}

func TestWriteYAMLRoundtrip(t *testing.T) {
	cfg := Default()
	cfg.Simulation.ParticleCount = 777

	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := cfg.WriteYAML(path); err != nil {
		t.Fatalf("WriteYAML failed: %v", err)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if loaded.Simulation.ParticleCount != 777 {
		t.Errorf("particle_count = %d, want 777", loaded.Simulation.ParticleCount)
	}
}
