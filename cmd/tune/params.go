package main

import (
	"github.com/pthm-cable/flock/config"
)

// ParamSpec defines a single tunable parameter.
type ParamSpec struct {
	Name    string  // Human-readable name
	Path    string  // Config path for logging
	Min     float64 // Lower bound
	Max     float64 // Upper bound
	Default float64 // Default value
}

// ParamVector holds the set of tunable flocking parameters.
type ParamVector struct {
	Specs []ParamSpec
}

// Parameter order. ApplyToConfig and the CSV row rely on it.
const (
	paramSeparationWeight = iota
	paramAlignmentWeight
	paramCohesionWeight
	paramPerceptionRadius
	paramSeparationDistance
	numParams
)

// NewParamVector creates the standard set of tunable parameters.
func NewParamVector() *ParamVector {
	return &ParamVector{
		Specs: []ParamSpec{
			paramSeparationWeight:   {Name: "separation_weight", Path: "flocking.weights.separation", Min: 0, Max: 0.00005, Default: 0.000005},
			paramAlignmentWeight:    {Name: "alignment_weight", Path: "flocking.weights.alignment", Min: 0, Max: 0.2, Default: 0.05},
			paramCohesionWeight:     {Name: "cohesion_weight", Path: "flocking.weights.cohesion", Min: 0, Max: 0.05, Default: 0.005},
			paramPerceptionRadius:   {Name: "perception_radius", Path: "flocking.perception_radius", Min: 0.01, Max: 0.15, Default: 0.05},
			paramSeparationDistance: {Name: "separation_distance", Path: "flocking.separation_distance", Min: 0.001, Max: 0.05, Default: 0.015},
		},
	}
}

// Dim returns the number of parameters.
func (pv *ParamVector) Dim() int {
	return len(pv.Specs)
}

// DefaultVector returns the default parameter values as a slice.
func (pv *ParamVector) DefaultVector() []float64 {
	v := make([]float64, len(pv.Specs))
	for i, spec := range pv.Specs {
		v[i] = spec.Default
	}
	return v
}

// FromConfig reads the current parameter values out of cfg.
func (pv *ParamVector) FromConfig(cfg *config.Config) []float64 {
	v := make([]float64, numParams)
	v[paramSeparationWeight] = cfg.Flocking.Weights.Separation
	v[paramAlignmentWeight] = cfg.Flocking.Weights.Alignment
	v[paramCohesionWeight] = cfg.Flocking.Weights.Cohesion
	v[paramPerceptionRadius] = cfg.Flocking.PerceptionRadius
	v[paramSeparationDistance] = cfg.Flocking.SeparationDistance
	return pv.Clamp(v)
}

// Normalize converts raw parameter values to [0,1] range.
func (pv *ParamVector) Normalize(raw []float64) []float64 {
	normalized := make([]float64, len(pv.Specs))
	for i, spec := range pv.Specs {
		normalized[i] = (raw[i] - spec.Min) / (spec.Max - spec.Min)
	}
	return normalized
}

// Denormalize converts [0,1] values back to raw parameter values.
func (pv *ParamVector) Denormalize(normalized []float64) []float64 {
	raw := make([]float64, len(pv.Specs))
	for i, spec := range pv.Specs {
		raw[i] = spec.Min + normalized[i]*(spec.Max-spec.Min)
	}
	return raw
}

// Clamp ensures all values are within bounds.
func (pv *ParamVector) Clamp(v []float64) []float64 {
	clamped := make([]float64, len(pv.Specs))
	for i, spec := range pv.Specs {
		clamped[i] = min(max(v[i], spec.Min), spec.Max)
	}
	return clamped
}

// ApplyToConfig writes clamped parameter values into cfg and refreshes derived values.
func (pv *ParamVector) ApplyToConfig(cfg *config.Config, values []float64) {
	clamped := pv.Clamp(values)

	cfg.Flocking.Weights.Separation = clamped[paramSeparationWeight]
	cfg.Flocking.Weights.Alignment = clamped[paramAlignmentWeight]
	cfg.Flocking.Weights.Cohesion = clamped[paramCohesionWeight]
	cfg.Flocking.PerceptionRadius = clamped[paramPerceptionRadius]
	cfg.Flocking.SeparationDistance = clamped[paramSeparationDistance]

	cfg.ComputeDerived()
}
