package systems

import (
	"github.com/pthm-cable/flock/components"
	"github.com/pthm-cable/flock/config"
)

// Kernel computes one particle's next state from the previous frame.
//
// Step must read only self, neighbors and prev (the frame's snapshot), never the
// store being written, so that updates are order-independent and can run in parallel.
type Kernel interface {
	// PerceptionRadius is the neighbor query radius the driver uses for this kernel.
	PerceptionRadius() float32

	// Step returns the updated particle.
	Step(self components.Particle, neighbors []Neighbor, prev []components.Particle) components.Particle
}

// FlockingParams holds the boid rule parameters in hot-path form.
type FlockingParams struct {
	PerceptionRadius   float32
	SeparationDistance float32
	MaxSpeed           float32
	SeparationWeight   float32
	AlignmentWeight    float32
	CohesionWeight     float32
	Wrap               bool // false = clamp
}

// FlockingParamsFrom extracts kernel parameters from the loaded config.
func FlockingParamsFrom(cfg *config.Config) FlockingParams {
	d := &cfg.Derived
	return FlockingParams{
		PerceptionRadius:   d.PerceptionRadius32,
		SeparationDistance: d.SeparationDistance32,
		MaxSpeed:           d.MaxSpeed32,
		SeparationWeight:   d.WeightSeparation32,
		AlignmentWeight:    d.WeightAlignment32,
		CohesionWeight:     d.WeightCohesion32,
		Wrap:               d.Wrap,
	}
}

// BoidKernel implements separation, alignment and cohesion with a speed clamp.
type BoidKernel struct {
	params       FlockingParams
	separationSq float32
}

// NewBoidKernel creates the default flocking kernel.
func NewBoidKernel(p FlockingParams) *BoidKernel {
	return &BoidKernel{
		params:       p,
		separationSq: p.SeparationDistance * p.SeparationDistance,
	}
}

// PerceptionRadius implements Kernel.
func (k *BoidKernel) PerceptionRadius() float32 {
	return k.params.PerceptionRadius
}

// Step implements Kernel.
func (k *BoidKernel) Step(self components.Particle, neighbors []Neighbor, prev []components.Particle) components.Particle {
	p := &k.params
	pos := self.Position
	vel := self.Velocity

	var sepX, sepY float32
	var sumVelX, sumVelY float32
	var sumPosX, sumPosY float32

	for i := range neighbors {
		n := &neighbors[i]
		other := &prev[n.Index]

		sumVelX += other.Velocity.X
		sumVelY += other.Velocity.Y
		sumPosX += other.Position.X
		sumPosY += other.Position.Y

		// Separation: unit vector away from the neighbor scaled by 1/d, i.e. -delta/d².
		// Coincident neighbors have no direction and are skipped.
		if n.DistSq > 0 && n.DistSq < k.separationSq {
			sepX -= n.DX / n.DistSq
			sepY -= n.DY / n.DistSq
		}
	}

	accX := sepX * p.SeparationWeight
	accY := sepY * p.SeparationWeight

	if count := len(neighbors); count > 0 {
		inv := 1 / float32(count)

		// Alignment: steer toward the average heading
		accX += (sumVelX*inv - vel.X) * p.AlignmentWeight
		accY += (sumVelY*inv - vel.Y) * p.AlignmentWeight

		// Cohesion: steer toward the centroid
		accX += (sumPosX*inv - pos.X) * p.CohesionWeight
		accY += (sumPosY*inv - pos.Y) * p.CohesionWeight
	}

	newVelX := vel.X + accX
	newVelY := vel.Y + accY

	newVelX, newVelY = clampSpeed(newVelX, newVelY, p.MaxSpeed)

	// Unit time step per frame
	newPosX := pos.X + newVelX
	newPosY := pos.Y + newVelY

	if p.Wrap {
		newPosX = WrapCoord(newPosX)
		newPosY = WrapCoord(newPosY)
	} else {
		newPosX = ClampCoord(newPosX)
		newPosY = ClampCoord(newPosY)
	}

	return components.Particle{
		Position: components.Position{X: newPosX, Y: newPosY},
		Velocity: components.Velocity{X: newVelX, Y: newVelY},
	}
}
