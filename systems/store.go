package systems

import (
	"fmt"
	"iter"
	"math/rand"

	"github.com/pthm-cable/flock/components"
)

// ParticleStore owns the fixed-length particle array.
// The frame driver hands out whole-store views; there is no partial borrowing
// and no resize, insert or delete after construction.
type ParticleStore struct {
	particles []components.Particle
}

// NewParticleStore allocates count particles with each position component sampled
// uniformly from posRange and each velocity component from velRange.
func NewParticleStore(count int, posRange, velRange [2]float64, rng *rand.Rand) (*ParticleStore, error) {
	if count <= 0 {
		return nil, fmt.Errorf("particle store: count must be positive, got %d", count)
	}

	sample := func(r [2]float64) float32 {
		return float32(r[0] + rng.Float64()*(r[1]-r[0]))
	}

	particles := make([]components.Particle, count)
	for i := range particles {
		p := &particles[i]
		p.Position.X = sample(posRange)
		p.Position.Y = sample(posRange)
		p.Velocity.X = sample(velRange)
		p.Velocity.Y = sample(velRange)
	}

	return &ParticleStore{particles: particles}, nil
}

// NewParticleStoreFrom builds a store holding a copy of the given particles.
func NewParticleStoreFrom(particles []components.Particle) (*ParticleStore, error) {
	if len(particles) == 0 {
		return nil, fmt.Errorf("particle store: at least one particle required")
	}
	owned := make([]components.Particle, len(particles))
	copy(owned, particles)
	return &ParticleStore{particles: owned}, nil
}

// Len returns the fixed particle count.
func (s *ParticleStore) Len() int {
	return len(s.particles)
}

// Read returns an immutable view of the whole store.
func (s *ParticleStore) Read() ParticleView {
	return ParticleView{particles: s.particles}
}

// ReadWrite returns the whole store for in-place mutation.
// Only the simulation stage holds this, and never while a render is in progress.
func (s *ParticleStore) ReadWrite() []components.Particle {
	return s.particles
}

// ParticleView is a read-only window over the store.
type ParticleView struct {
	particles []components.Particle
}

// Len returns the number of particles.
func (v ParticleView) Len() int {
	return len(v.particles)
}

// At returns a copy of particle i.
func (v ParticleView) At(i int) components.Particle {
	return v.particles[i]
}

// All yields every particle with its index.
func (v ParticleView) All() iter.Seq2[int, components.Particle] {
	return func(yield func(int, components.Particle) bool) {
		for i, p := range v.particles {
			if !yield(i, p) {
				return
			}
		}
	}
}

// CopyTo copies the view into dst and returns it resized to Len.
func (v ParticleView) CopyTo(dst []components.Particle) []components.Particle {
	if cap(dst) < len(v.particles) {
		dst = make([]components.Particle, len(v.particles))
	}
	dst = dst[:len(v.particles)]
	copy(dst, v.particles)
	return dst
}
