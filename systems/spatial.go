// Package systems provides the particle store, spatial index and flocking kernel.
package systems

import (
	"github.com/pthm-cable/flock/components"
)

// Neighbor holds a nearby particle with precomputed spatial data.
// This avoids recomputing delta and distance in the kernel.
type Neighbor struct {
	Index  int32
	DX, DY float32 // Delta from query origin to the neighbor
	DistSq float32 // Squared distance (avoid sqrt in hot path)
}

// NeighborFinder answers radius queries over the positions it was last built from.
// Implementations must be safe for concurrent queries once built.
type NeighborFinder interface {
	// Build indexes the given particles. The slice must not change until the next Build.
	Build(particles []components.Particle)

	// QueryInto appends every particle within radius of (x, y) to dst and returns it.
	// The particle at index exclude is skipped; pass -1 to keep all.
	QueryInto(dst []Neighbor, x, y, radius float32, exclude int) []Neighbor
}

// BruteForce is the linear-scan NeighborFinder used when the spatial index is disabled.
type BruteForce struct {
	particles []components.Particle
}

// NewBruteForce creates an empty brute-force finder.
func NewBruteForce() *BruteForce {
	return &BruteForce{}
}

// Build records the particle slice.
func (b *BruteForce) Build(particles []components.Particle) {
	b.particles = particles
}

// QueryInto scans every particle. Reuse dst across calls to avoid allocations.
func (b *BruteForce) QueryInto(dst []Neighbor, x, y, radius float32, exclude int) []Neighbor {
	radiusSq := radius * radius
	for i := range b.particles {
		if i == exclude {
			continue
		}
		pos := b.particles[i].Position
		dx := pos.X - x
		dy := pos.Y - y
		distSq := dx*dx + dy*dy
		if distSq <= radiusSq {
			dst = append(dst, Neighbor{Index: int32(i), DX: dx, DY: dy, DistSq: distSq})
		}
	}
	return dst
}

// circleIntersectsBox reports whether the circle touches the closed box [lo, hi].
func circleIntersectsBox(x, y, radiusSq float32, lo, hi components.Position) bool {
	dx := x - clampFloat(x, lo.X, hi.X)
	dy := y - clampFloat(y, lo.Y, hi.Y)
	return dx*dx+dy*dy <= radiusSq
}
