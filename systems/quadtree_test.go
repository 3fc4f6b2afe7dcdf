package systems

import (
	"errors"
	"math/rand"
	"slices"
	"testing"

	"github.com/pthm-cable/flock/components"
)

func newTestQuadtree(t testing.TB, leafCapacity, maxDepth int) *Quadtree {
	t.Helper()
	q, err := NewQuadtree(QuadtreeConfig{
		Min:          components.Position{X: -1, Y: -1},
		Max:          components.Position{X: 1, Y: 1},
		LeafCapacity: leafCapacity,
		MaxDepth:     maxDepth,
	})
	if err != nil {
		t.Fatalf("NewQuadtree: %v", err)
	}
	return q
}

func randomParticles(n int, seed int64) []components.Particle {
	rng := rand.New(rand.NewSource(seed))
	out := make([]components.Particle, n)
	for i := range out {
		out[i].Position = components.Position{
			X: float32(rng.Float64()*2 - 1),
			Y: float32(rng.Float64()*2 - 1),
		}
	}
	return out
}

func TestNewQuadtreeValidation(t *testing.T) {
	unit := QuadtreeConfig{
		Min:          components.Position{X: -1, Y: -1},
		Max:          components.Position{X: 1, Y: 1},
		LeafCapacity: 16,
		MaxDepth:     12,
	}

	tests := []struct {
		name    string
		mutate  func(*QuadtreeConfig)
		wantErr bool
	}{
		{"valid", func(*QuadtreeConfig) {}, false},
		{"zero leaf capacity", func(c *QuadtreeConfig) { c.LeafCapacity = 0 }, true},
		{"negative leaf capacity", func(c *QuadtreeConfig) { c.LeafCapacity = -3 }, true},
		{"zero depth", func(c *QuadtreeConfig) { c.MaxDepth = 0 }, true},
		{"depth at limit", func(c *QuadtreeConfig) { c.MaxDepth = MaxDepthLimit }, false},
		{"depth over limit", func(c *QuadtreeConfig) { c.MaxDepth = MaxDepthLimit + 1 }, true},
		{"zero width", func(c *QuadtreeConfig) { c.Max.X = c.Min.X }, true},
		{"inverted height", func(c *QuadtreeConfig) { c.Max.Y = -2 }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := unit
			tt.mutate(&cfg)
			_, err := NewQuadtree(cfg)
			if (err != nil) != tt.wantErr {
				t.Fatalf("NewQuadtree() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrInvalidQuadtree) {
				t.Errorf("error %v does not wrap ErrInvalidQuadtree", err)
			}
		})
	}
}

// checkStructure verifies containment, leaf coverage and disjoint ranges.
func checkStructure(t *testing.T, q *Quadtree, particles []components.Particle) {
	t.Helper()
	nodes := q.Nodes()
	if len(nodes) == 0 {
		t.Fatal("no root node")
	}

	seen := make([]int, len(particles))
	for ni := range nodes {
		n := &nodes[ni]
		if n.IsLeaf() {
			for _, idx := range q.Indices()[n.ParticleStart : n.ParticleStart+n.ParticleCount] {
				seen[idx]++
				p := particles[idx].Position
				if p.X < n.MinBound.X || p.X > n.MaxBound.X || p.Y < n.MinBound.Y || p.Y > n.MaxBound.Y {
					t.Errorf("particle %d at %v outside leaf %d bounds %v..%v", idx, p, ni, n.MinBound, n.MaxBound)
				}
			}
			continue
		}

		// Children partition the parent's range in slot order
		next := n.ParticleStart
		var total uint32
		for _, c := range n.Children {
			if c == NoChild {
				continue
			}
			child := &nodes[c]
			if child.ParticleStart != next {
				t.Errorf("node %d: child %d starts at %d, want %d", ni, c, child.ParticleStart, next)
			}
			if child.ParticleCount == 0 {
				t.Errorf("node %d: empty child %d", ni, c)
			}
			if child.MinBound.X < n.MinBound.X || child.MinBound.Y < n.MinBound.Y ||
				child.MaxBound.X > n.MaxBound.X || child.MaxBound.Y > n.MaxBound.Y {
				t.Errorf("node %d: child %d rectangle escapes parent", ni, c)
			}
			if child.Depth != n.Depth+1 {
				t.Errorf("node %d: child depth %d, want %d", ni, child.Depth, n.Depth+1)
			}
			next += child.ParticleCount
			total += child.ParticleCount
		}
		if total != n.ParticleCount {
			t.Errorf("node %d: children hold %d particles, want %d", ni, total, n.ParticleCount)
		}
	}

	for i, c := range seen {
		if c != 1 {
			t.Errorf("particle %d appears in %d leaves, want 1", i, c)
		}
	}
}

func TestQuadtreeCompleteness(t *testing.T) {
	tests := []struct {
		name         string
		n            int
		leafCapacity int
		maxDepth     int
	}{
		{"single particle", 1, 4, 8},
		{"below capacity", 10, 16, 8},
		{"moderate", 2000, 8, 10},
		{"depth capped", 500, 1, 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			particles := randomParticles(tt.n, int64(tt.n))
			q := newTestQuadtree(t, tt.leafCapacity, tt.maxDepth)
			q.Build(particles)
			checkStructure(t, q, particles)

			stats := q.Stats()
			if stats.MaxDepth > tt.maxDepth {
				t.Errorf("max depth %d exceeds limit %d", stats.MaxDepth, tt.maxDepth)
			}
			if stats.MaxDepth < tt.maxDepth && stats.MaxLeafCount > tt.leafCapacity {
				t.Errorf("leaf holds %d particles above capacity %d without reaching max depth", stats.MaxLeafCount, tt.leafCapacity)
			}
		})
	}
}

func TestQuadtreeDuplicatePositions(t *testing.T) {
	// Identical points can never be separated; the depth limit must stop the split.
	particles := make([]components.Particle, 50)
	for i := range particles {
		particles[i].Position = components.Position{X: 0.25, Y: -0.5}
	}
	q := newTestQuadtree(t, 2, 6)
	q.Build(particles)
	checkStructure(t, q, particles)

	if s := q.Stats(); s.MaxDepth != 6 || s.MaxLeafCount != 50 {
		t.Errorf("stats = %+v, want depth 6 holding all 50", s)
	}
}

func TestQuadtreeBoundaryTies(t *testing.T) {
	// Points on the split lines go to the north/east side.
	particles := []components.Particle{
		{Position: components.Position{X: 0, Y: 0}},
		{Position: components.Position{X: -0.5, Y: 0}},
		{Position: components.Position{X: 0, Y: -0.5}},
	}
	q := newTestQuadtree(t, 1, 1)
	q.Build(particles)
	checkStructure(t, q, particles)

	root := q.Nodes()[0]
	want := map[int]uint32{QuadNE: 1, QuadNW: 1, QuadSE: 1}
	for slot, c := range root.Children {
		got := uint32(0)
		if c != NoChild {
			got = q.Nodes()[c].ParticleCount
		}
		if got != want[slot] {
			t.Errorf("slot %d holds %d particles, want %d", slot, got, want[slot])
		}
	}
}

func TestQuadtreeStrayPositions(t *testing.T) {
	particles := randomParticles(200, 7)
	particles[3].Position = components.Position{X: 1.5, Y: -2}
	particles[9].Position = components.Position{X: 1, Y: 1}

	q := newTestQuadtree(t, 4, 10)
	q.Build(particles)
	checkStructure(t, q, particles)

	var got []int
	for idx := range q.NeighborsWithin(1.5, -2, 0.01) {
		got = append(got, idx)
	}
	if !slices.Equal(got, []int{3}) {
		t.Errorf("query at stray particle = %v, want [3]", got)
	}
}

func TestQuadtreeRebuildReusesArena(t *testing.T) {
	q := newTestQuadtree(t, 4, 10)
	q.Build(randomParticles(1000, 1))
	before := cap(q.nodes)

	particles := randomParticles(1000, 2)
	q.Build(particles)
	checkStructure(t, q, particles)
	if cap(q.nodes) < before {
		t.Errorf("arena capacity shrank from %d to %d", before, cap(q.nodes))
	}
}

func neighborIndices(ns []Neighbor) []int {
	out := make([]int, len(ns))
	for i, n := range ns {
		out[i] = int(n.Index)
	}
	slices.Sort(out)
	return out
}

// assertMatchesBruteForce compares quadtree and linear-scan results at sampled query points.
func assertMatchesBruteForce(t *testing.T, q *Quadtree, particles []components.Particle, queries int, radii []float32, seed int64) {
	t.Helper()
	brute := NewBruteForce()
	brute.Build(particles)

	rng := rand.New(rand.NewSource(seed))
	var gotBuf, wantBuf []Neighbor
	for i := range queries {
		var x, y float32
		exclude := -1
		if i%2 == 0 {
			// Centered on a particle, excluding itself
			exclude = rng.Intn(len(particles))
			x, y = particles[exclude].Position.X, particles[exclude].Position.Y
		} else {
			x = float32(rng.Float64()*2.4 - 1.2)
			y = float32(rng.Float64()*2.4 - 1.2)
		}
		radius := radii[i%len(radii)]

		gotBuf = q.QueryInto(gotBuf[:0], x, y, radius, exclude)
		wantBuf = brute.QueryInto(wantBuf[:0], x, y, radius, exclude)

		got, want := neighborIndices(gotBuf), neighborIndices(wantBuf)
		if !slices.Equal(got, want) {
			t.Fatalf("query (%v, %v) r=%v: quadtree returned %d neighbors, brute force %d", x, y, radius, len(got), len(want))
		}

		var lazy []int
		for idx := range q.NeighborsWithin(x, y, radius) {
			if idx != exclude {
				lazy = append(lazy, idx)
			}
		}
		slices.Sort(lazy)
		if !slices.Equal(lazy, want) {
			t.Fatalf("NeighborsWithin (%v, %v) r=%v disagrees with brute force", x, y, radius)
		}
	}
}

func TestQuadtreeQuerySoundness(t *testing.T) {
	particles := randomParticles(3000, 42)
	q := newTestQuadtree(t, 8, 12)
	q.Build(particles)
	assertMatchesBruteForce(t, q, particles, 400, []float32{0, 0.01, 0.05, 0.3, 3}, 99)
}

func TestQuadtreeQueryNeighborData(t *testing.T) {
	particles := []components.Particle{
		{Position: components.Position{X: 0, Y: 0}},
		{Position: components.Position{X: 0.3, Y: 0.4}},
		{Position: components.Position{X: 0.9, Y: 0.9}},
	}
	q := newTestQuadtree(t, 1, 4)
	q.Build(particles)

	got := q.QueryInto(nil, 0, 0, 0.6, 0)
	if len(got) != 1 {
		t.Fatalf("got %d neighbors, want 1", len(got))
	}
	n := got[0]
	if n.Index != 1 || n.DX != 0.3 || n.DY != 0.4 {
		t.Errorf("neighbor = %+v, want index 1 delta (0.3, 0.4)", n)
	}
	if diff := n.DistSq - 0.25; diff > 1e-6 || diff < -1e-6 {
		t.Errorf("DistSq = %v, want 0.25", n.DistSq)
	}
}

func TestNeighborsWithinStopsEarly(t *testing.T) {
	particles := randomParticles(500, 3)
	q := newTestQuadtree(t, 4, 10)
	q.Build(particles)

	count := 0
	for range q.NeighborsWithin(0, 0, 5) {
		count++
		if count == 10 {
			break
		}
	}
	if count != 10 {
		t.Errorf("iterated %d, want 10", count)
	}
}

func TestQuadtreeStress(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping 100k particle stress test in short mode")
	}
	particles := randomParticles(100000, 2024)
	q := newTestQuadtree(t, 16, MaxDepthLimit)
	q.Build(particles)
	checkStructure(t, q, particles)

	if s := q.Stats(); s.MaxLeafCount > 16 {
		t.Errorf("leaf holds %d particles, want <= 16", s.MaxLeafCount)
	}
	assertMatchesBruteForce(t, q, particles, 200, []float32{0.005, 0.02, 0.05}, 11)
}

func BenchmarkQuadtreeBuild(b *testing.B) {
	particles := randomParticles(100000, 1)
	q := newTestQuadtree(b, 16, 12)
	b.ResetTimer()
	for b.Loop() {
		q.Build(particles)
	}
}

func BenchmarkQuadtreeQuery(b *testing.B) {
	particles := randomParticles(100000, 1)
	q := newTestQuadtree(b, 16, 12)
	q.Build(particles)
	var buf []Neighbor
	b.ResetTimer()
	i := 0
	for b.Loop() {
		p := particles[i%len(particles)].Position
		buf = q.QueryInto(buf[:0], p.X, p.Y, 0.05, i%len(particles))
		i++
	}
}
