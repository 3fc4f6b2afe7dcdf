// Package config provides configuration loading and access for the simulation.
package config

import (
	_ "embed"
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

//go:embed defaults.yaml
var defaultsYAML []byte

// ErrInvalidConfig is wrapped by every validation failure.
var ErrInvalidConfig = errors.New("invalid config")

// Boundary policies applied to positions after integration.
const (
	BoundaryWrap  = "wrap"
	BoundaryClamp = "clamp"
)

// Render shapes.
const (
	ShapePoints    = "points"
	ShapeTriangles = "triangles"
)

// MaxQuadtreeDepth bounds spatial.max_depth so query traversal can use a fixed-size stack.
const MaxQuadtreeDepth = 32

// Config holds all simulation configuration parameters.
// It is immutable once the first frame has run.
type Config struct {
	Screen     ScreenConfig     `yaml:"screen"`
	Simulation SimulationConfig `yaml:"simulation"`
	Flocking   FlockingConfig   `yaml:"flocking"`
	Spatial    SpatialConfig    `yaml:"spatial"`
	Parallel   ParallelConfig   `yaml:"parallel"`
	Render     RenderConfig     `yaml:"render"`
	Telemetry  TelemetryConfig  `yaml:"telemetry"`

	// Derived values computed after loading
	Derived DerivedConfig `yaml:"-"`
}

// ScreenConfig holds display settings.
type ScreenConfig struct {
	Width     int    `yaml:"width"`
	Height    int    `yaml:"height"`
	TargetFPS int    `yaml:"target_fps"`
	Title     string `yaml:"title"`
}

// Range is a closed [lo, hi] interval used for uniform sampling.
type Range [2]float64

// Lo returns the lower bound.
func (r Range) Lo() float64 { return r[0] }

// Hi returns the upper bound.
func (r Range) Hi() float64 { return r[1] }

// SimulationConfig holds particle store parameters.
type SimulationConfig struct {
	ParticleCount        int    `yaml:"particle_count"`
	InitialPositionRange Range  `yaml:"initial_position_range"` // Per-axis bounds, must lie within [-1, 1]
	InitialVelocityRange Range  `yaml:"initial_velocity_range"` // Per-axis bounds
	Boundary             string `yaml:"boundary"`               // wrap | clamp
}

// FlockingConfig holds the boid rule parameters.
type FlockingConfig struct {
	PerceptionRadius   float64         `yaml:"perception_radius"`
	SeparationDistance float64         `yaml:"separation_distance"`
	MaxSpeed           float64         `yaml:"max_speed"` // Simulation units per frame
	Weights            FlockingWeights `yaml:"weights"`
}

// FlockingWeights scales each steering influence independently.
type FlockingWeights struct {
	Separation float64 `yaml:"separation"`
	Alignment  float64 `yaml:"alignment"`
	Cohesion   float64 `yaml:"cohesion"`
}

// SpatialConfig holds quadtree parameters.
type SpatialConfig struct {
	Enabled      bool `yaml:"enabled"` // false = brute-force neighbor search
	LeafCapacity int  `yaml:"leaf_capacity"`
	MaxDepth     int  `yaml:"max_depth"`
}

// ParallelConfig holds worker pool parameters.
type ParallelConfig struct {
	Workers   int `yaml:"workers"`    // 0 = GOMAXPROCS
	BatchSize int `yaml:"batch_size"` // Particles per dispatched batch
	Threshold int `yaml:"threshold"`  // Below this count the update runs on the caller
}

// RenderConfig holds render stage styling.
type RenderConfig struct {
	Shape         string   `yaml:"shape"`          // points | triangles
	TriangleSize  float64  `yaml:"triangle_size"`  // Pixels
	ClearColor    [4]uint8 `yaml:"clear_color"`    // RGBA
	ParticleColor [4]uint8 `yaml:"particle_color"` // RGBA
}

// TelemetryConfig holds telemetry parameters.
type TelemetryConfig struct {
	StatsWindow         int    `yaml:"stats_window"` // Frames per stats window
	PerfCollectorWindow int    `yaml:"perf_collector_window"`
	MetricsAddr         string `yaml:"metrics_addr"` // Empty = no /metrics endpoint
}

// DerivedConfig holds computed values derived from the loaded config.
type DerivedConfig struct {
	PerceptionRadius32   float32
	SeparationDistance32 float32
	MaxSpeed32           float32
	WeightSeparation32   float32
	WeightAlignment32    float32
	WeightCohesion32     float32
	ScreenW32            float32
	ScreenH32            float32
	Wrap                 bool
}

// global holds the loaded configuration.
var global *Config

// Init loads configuration from the given path, or uses embedded defaults if path is empty.
// Must be called before Cfg().
func Init(path string) error {
	cfg, err := Load(path)
	if err != nil {
		return err
	}
	global = cfg
	return nil
}

// Cfg returns the global configuration. Panics if Init was not called.
func Cfg() *Config {
	if global == nil {
		panic("config: Cfg() called before Init()")
	}
	return global
}

// Default returns the embedded defaults, validated and with derived values filled in.
func Default() *Config {
	cfg, err := Load("")
	if err != nil {
		panic(fmt.Sprintf("config: embedded defaults are invalid: %v", err))
	}
	return cfg
}

// Load loads configuration from a YAML file, merging with embedded defaults.
// If path is empty, only embedded defaults are used.
// The result is validated; an invalid configuration is never returned.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if err := yaml.Unmarshal(defaultsYAML, cfg); err != nil {
		return nil, fmt.Errorf("parsing embedded defaults: %w", err)
	}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		// Unmarshal into same struct - only overwrites fields present in file
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	cfg.ComputeDerived()

	return cfg, nil
}

// Validate reports every invalid parameter. The returned error wraps ErrInvalidConfig.
func (c *Config) Validate() error {
	var errs []error
	bad := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf("%w: "+format, append([]any{ErrInvalidConfig}, args...)...))
	}

	sim := c.Simulation
	if sim.ParticleCount <= 0 {
		bad("simulation.particle_count must be positive, got %d", sim.ParticleCount)
	}
	if pr := sim.InitialPositionRange; pr.Lo() > pr.Hi() || pr.Lo() < -1 || pr.Hi() > 1 {
		bad("simulation.initial_position_range must be an ordered range within [-1, 1], got %v", pr)
	}
	if vr := sim.InitialVelocityRange; vr.Lo() > vr.Hi() {
		bad("simulation.initial_velocity_range must be ordered, got %v", vr)
	}
	if sim.Boundary != BoundaryWrap && sim.Boundary != BoundaryClamp {
		bad("simulation.boundary must be %q or %q, got %q", BoundaryWrap, BoundaryClamp, sim.Boundary)
	}

	fl := c.Flocking
	if fl.PerceptionRadius <= 0 {
		bad("flocking.perception_radius must be positive, got %g", fl.PerceptionRadius)
	}
	if fl.SeparationDistance < 0 {
		bad("flocking.separation_distance must not be negative, got %g", fl.SeparationDistance)
	}
	if fl.MaxSpeed <= 0 {
		bad("flocking.max_speed must be positive, got %g", fl.MaxSpeed)
	}
	if w := fl.Weights; w.Separation < 0 || w.Alignment < 0 || w.Cohesion < 0 {
		bad("flocking.weights must not be negative, got %+v", w)
	}

	sp := c.Spatial
	if sp.LeafCapacity <= 0 {
		bad("spatial.leaf_capacity must be positive, got %d", sp.LeafCapacity)
	}
	if sp.MaxDepth < 1 || sp.MaxDepth > MaxQuadtreeDepth {
		bad("spatial.max_depth must be in [1, %d], got %d", MaxQuadtreeDepth, sp.MaxDepth)
	}

	par := c.Parallel
	if par.Workers < 0 {
		bad("parallel.workers must not be negative, got %d", par.Workers)
	}
	if par.BatchSize <= 0 {
		bad("parallel.batch_size must be positive, got %d", par.BatchSize)
	}
	if par.Threshold < 0 {
		bad("parallel.threshold must not be negative, got %d", par.Threshold)
	}

	if c.Render.Shape != ShapePoints && c.Render.Shape != ShapeTriangles {
		bad("render.shape must be %q or %q, got %q", ShapePoints, ShapeTriangles, c.Render.Shape)
	}
	if c.Screen.Width <= 0 || c.Screen.Height <= 0 {
		bad("screen size must be positive, got %dx%d", c.Screen.Width, c.Screen.Height)
	}
	if c.Telemetry.StatsWindow <= 0 {
		bad("telemetry.stats_window must be positive, got %d", c.Telemetry.StatsWindow)
	}

	return errors.Join(errs...)
}

// ComputeDerived calculates values derived from loaded config.
// Load calls it; tests that edit a Config in place call it again.
func (c *Config) ComputeDerived() {
	c.Derived.PerceptionRadius32 = float32(c.Flocking.PerceptionRadius)
	c.Derived.SeparationDistance32 = float32(c.Flocking.SeparationDistance)
	c.Derived.MaxSpeed32 = float32(c.Flocking.MaxSpeed)
	c.Derived.WeightSeparation32 = float32(c.Flocking.Weights.Separation)
	c.Derived.WeightAlignment32 = float32(c.Flocking.Weights.Alignment)
	c.Derived.WeightCohesion32 = float32(c.Flocking.Weights.Cohesion)
	c.Derived.ScreenW32 = float32(c.Screen.Width)
	c.Derived.ScreenH32 = float32(c.Screen.Height)
	c.Derived.Wrap = c.Simulation.Boundary == BoundaryWrap
}

// WriteYAML writes the configuration to a YAML file.
func (c *Config) WriteYAML(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}
	return nil
}
