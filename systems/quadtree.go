package systems

import (
	"errors"
	"fmt"
	"iter"

	"github.com/pthm-cable/flock/components"
	"github.com/pthm-cable/flock/config"
)

// ErrInvalidQuadtree is wrapped by quadtree configuration errors.
var ErrInvalidQuadtree = errors.New("invalid quadtree config")

// MaxDepthLimit is the deepest subdivision a quadtree may be configured for.
const MaxDepthLimit = config.MaxQuadtreeDepth

// maxStack bounds the traversal stack: three pending siblings per level plus one full fan-out.
const maxStack = 3*MaxDepthLimit + 4

// NodeIndex addresses a node in the quadtree arena.
type NodeIndex int32

// NoChild marks an absent child slot.
const NoChild NodeIndex = -1

// Child slots. South/west are the lower halves of each axis.
const (
	QuadSW = iota
	QuadSE
	QuadNW
	QuadNE
)

var noChildren = [4]NodeIndex{NoChild, NoChild, NoChild, NoChild}

// QuadNode is one axis-aligned region of the index.
// Its particles occupy indices[ParticleStart : ParticleStart+ParticleCount].
type QuadNode struct {
	MinBound, MaxBound components.Position
	Children           [4]NodeIndex
	ParticleStart      uint32
	ParticleCount      uint32
	Depth              uint8
}

// IsLeaf reports whether the node has no children.
func (n *QuadNode) IsLeaf() bool {
	return n.Children == noChildren
}

// QuadtreeConfig holds construction parameters.
type QuadtreeConfig struct {
	Min, Max     components.Position // Domain covered by the root
	LeafCapacity int                 // Split nodes holding more than this
	MaxDepth     int                 // Never split below this depth
}

// QuadtreeConfigFrom builds the quadtree parameters for the [-1, 1]² domain.
func QuadtreeConfigFrom(cfg *config.Config) QuadtreeConfig {
	return QuadtreeConfig{
		Min:          components.Position{X: -1, Y: -1},
		Max:          components.Position{X: 1, Y: 1},
		LeafCapacity: cfg.Spatial.LeafCapacity,
		MaxDepth:     cfg.Spatial.MaxDepth,
	}
}

// Quadtree is a point quadtree rebuilt from scratch every frame.
// Nodes live in an arena slice and reference children by index, so a rebuild
// reuses the previous frame's storage.
type Quadtree struct {
	min, max     components.Position
	leafCapacity int
	maxDepth     int

	nodes     []QuadNode
	indices   []uint32
	particles []components.Particle
}

// NewQuadtree validates the configuration and returns an empty tree.
func NewQuadtree(cfg QuadtreeConfig) (*Quadtree, error) {
	if cfg.LeafCapacity <= 0 {
		return nil, fmt.Errorf("%w: leaf capacity must be positive, got %d", ErrInvalidQuadtree, cfg.LeafCapacity)
	}
	if cfg.MaxDepth < 1 || cfg.MaxDepth > MaxDepthLimit {
		return nil, fmt.Errorf("%w: max depth must be in [1, %d], got %d", ErrInvalidQuadtree, MaxDepthLimit, cfg.MaxDepth)
	}
	if !(cfg.Max.X > cfg.Min.X) || !(cfg.Max.Y > cfg.Min.Y) {
		return nil, fmt.Errorf("%w: domain size must be positive, got %v..%v", ErrInvalidQuadtree, cfg.Min, cfg.Max)
	}

	return &Quadtree{
		min:          cfg.Min,
		max:          cfg.Max,
		leafCapacity: cfg.LeafCapacity,
		maxDepth:     cfg.MaxDepth,
		nodes:        make([]QuadNode, 0, 64),
	}, nil
}

// Build indexes the current positions. Queries see these positions until the next Build.
func (q *Quadtree) Build(particles []components.Particle) {
	q.particles = particles

	n := len(particles)
	if cap(q.indices) < n {
		q.indices = make([]uint32, n)
	}
	q.indices = q.indices[:n]
	for i := range q.indices {
		q.indices[i] = uint32(i)
	}

	q.nodes = q.nodes[:0]
	minB, maxB := q.rootBounds()
	q.nodes = append(q.nodes, QuadNode{
		MinBound:      minB,
		MaxBound:      maxB,
		Children:      noChildren,
		ParticleCount: uint32(n),
	})
	q.subdivide(0)
}

// rootBounds returns the domain, grown to cover any position outside it.
// Positions are kept inside the domain by the boundary policy, so this only
// matters for externally seeded stores.
func (q *Quadtree) rootBounds() (minB, maxB components.Position) {
	minB, maxB = q.min, q.max
	for i := range q.particles {
		p := q.particles[i].Position
		minB.X = min(minB.X, p.X)
		minB.Y = min(minB.Y, p.Y)
		maxB.X = max(maxB.X, p.X)
		maxB.Y = max(maxB.Y, p.Y)
	}
	return minB, maxB
}

// subdivide splits node ni at its geometric center and recurses into the non-empty quadrants.
func (q *Quadtree) subdivide(ni NodeIndex) {
	node := q.nodes[ni]
	if int(node.ParticleCount) <= q.leafCapacity || int(node.Depth) >= q.maxDepth {
		return
	}

	mid := components.Position{
		X: (node.MinBound.X + node.MaxBound.X) / 2,
		Y: (node.MinBound.Y + node.MaxBound.Y) / 2,
	}

	start := node.ParticleStart
	run := q.indices[start : start+node.ParticleCount]

	// Split by y first, then each half by x. Points on a split line go to the upper side.
	south := q.partitionY(run, mid.Y)
	sw := q.partitionX(run[:south], mid.X)
	nw := q.partitionX(run[south:], mid.X)

	counts := [4]uint32{
		QuadSW: uint32(sw),
		QuadSE: uint32(south - sw),
		QuadNW: uint32(nw),
		QuadNE: uint32(len(run) - south - nw),
	}
	starts := [4]uint32{
		QuadSW: start,
		QuadSE: start + uint32(sw),
		QuadNW: start + uint32(south),
		QuadNE: start + uint32(south+nw),
	}
	mins := [4]components.Position{
		QuadSW: node.MinBound,
		QuadSE: {X: mid.X, Y: node.MinBound.Y},
		QuadNW: {X: node.MinBound.X, Y: mid.Y},
		QuadNE: mid,
	}
	maxs := [4]components.Position{
		QuadSW: mid,
		QuadSE: {X: node.MaxBound.X, Y: mid.Y},
		QuadNW: {X: mid.X, Y: node.MaxBound.Y},
		QuadNE: node.MaxBound,
	}

	for k := range 4 {
		if counts[k] == 0 {
			continue
		}
		child := NodeIndex(len(q.nodes))
		q.nodes = append(q.nodes, QuadNode{
			MinBound:      mins[k],
			MaxBound:      maxs[k],
			Children:      noChildren,
			ParticleStart: starts[k],
			ParticleCount: counts[k],
			Depth:         node.Depth + 1,
		})
		q.nodes[ni].Children[k] = child
	}

	for _, child := range q.nodes[ni].Children {
		if child != NoChild {
			q.subdivide(child)
		}
	}
}

// partitionX moves indices with X below split to the front and returns their count.
func (q *Quadtree) partitionX(run []uint32, split float32) int {
	i, j := 0, len(run)
	for i < j {
		if q.particles[run[i]].Position.X < split {
			i++
			continue
		}
		j--
		run[i], run[j] = run[j], run[i]
	}
	return i
}

// partitionY moves indices with Y below split to the front and returns their count.
func (q *Quadtree) partitionY(run []uint32, split float32) int {
	i, j := 0, len(run)
	for i < j {
		if q.particles[run[i]].Position.Y < split {
			i++
			continue
		}
		j--
		run[i], run[j] = run[j], run[i]
	}
	return i
}

// QueryInto appends every particle within radius of (x, y) to dst.
// Children whose rectangle misses the query circle are pruned, so the result is
// exactly the brute-force set, in index-array order.
func (q *Quadtree) QueryInto(dst []Neighbor, x, y, radius float32, exclude int) []Neighbor {
	for idx := range q.walk(x, y, radius) {
		if int(idx) == exclude {
			continue
		}
		pos := q.particles[idx].Position
		dx := pos.X - x
		dy := pos.Y - y
		distSq := dx*dx + dy*dy
		if distSq <= radius*radius {
			dst = append(dst, Neighbor{Index: int32(idx), DX: dx, DY: dy, DistSq: distSq})
		}
	}
	return dst
}

// NeighborsWithin yields the index of every particle within radius of (x, y).
// The sequence is lazy and finite; order follows the index array, not distance.
func (q *Quadtree) NeighborsWithin(x, y, radius float32) iter.Seq[int] {
	return func(yield func(int) bool) {
		radiusSq := radius * radius
		for idx := range q.walk(x, y, radius) {
			pos := q.particles[idx].Position
			dx := pos.X - x
			dy := pos.Y - y
			if dx*dx+dy*dy <= radiusSq && !yield(int(idx)) {
				return
			}
		}
	}
}

// walk yields the indices held by every leaf whose rectangle intersects the circle.
func (q *Quadtree) walk(x, y, radius float32) iter.Seq[uint32] {
	return func(yield func(uint32) bool) {
		if len(q.nodes) == 0 {
			return
		}
		radiusSq := radius * radius

		var stack [maxStack]NodeIndex
		stack[0] = 0
		sp := 1

		for sp > 0 {
			sp--
			node := &q.nodes[stack[sp]]
			if !circleIntersectsBox(x, y, radiusSq, node.MinBound, node.MaxBound) {
				continue
			}

			if node.IsLeaf() {
				for _, idx := range q.indices[node.ParticleStart : node.ParticleStart+node.ParticleCount] {
					if !yield(idx) {
						return
					}
				}
				continue
			}

			// Push in reverse so SW is visited first
			for k := 3; k >= 0; k-- {
				if child := node.Children[k]; child != NoChild {
					stack[sp] = child
					sp++
				}
			}
		}
	}
}

// Nodes returns the node arena of the last build. Index 0 is the root.
func (q *Quadtree) Nodes() []QuadNode {
	return q.nodes
}

// Indices returns the particle index array the nodes' ranges refer to.
func (q *Quadtree) Indices() []uint32 {
	return q.indices
}

// QuadtreeStats summarizes the shape of the last build.
type QuadtreeStats struct {
	Nodes        int
	Leaves       int
	MaxDepth     int
	MaxLeafCount int
}

// Stats walks the arena of the last build.
func (q *Quadtree) Stats() QuadtreeStats {
	s := QuadtreeStats{Nodes: len(q.nodes)}
	for i := range q.nodes {
		n := &q.nodes[i]
		if !n.IsLeaf() {
			continue
		}
		s.Leaves++
		s.MaxDepth = max(s.MaxDepth, int(n.Depth))
		s.MaxLeafCount = max(s.MaxLeafCount, int(n.ParticleCount))
	}
	return s
}
