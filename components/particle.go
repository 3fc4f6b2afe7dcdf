// Package components defines the per-particle state layout.
package components

import "math"

// Position is a point in normalized simulation space [-1, 1]².
type Position struct {
	X, Y float32
}

// Velocity is a displacement per frame.
type Velocity struct {
	X, Y float32
}

// Speed returns the velocity magnitude.
func (v Velocity) Speed() float32 {
	return float32(math.Hypot(float64(v.X), float64(v.Y)))
}

// Particle is one boid. Layout matches the render vertex stream:
// position then velocity, four float32 values.
type Particle struct {
	Position Position
	Velocity Velocity
}
