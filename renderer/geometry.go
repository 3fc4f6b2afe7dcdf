package renderer

import "math"

// Point is a screen-space vertex in pixels.
type Point struct {
	X, Y float32
}

// TriangleVertices returns an arrow-head triangle centered on (x, y) pointing along heading.
// The tip sits 1.5 radii ahead; the back corners sit one radius away at ±144°.
// Vertices are ordered tip, back-left, back-right.
func TriangleVertices(x, y, heading, radius float32) [3]Point {
	const backAngle = math.Pi * 0.8
	tip := Point{X: x + fastCos(heading)*radius*1.5, Y: y + fastSin(heading)*radius*1.5}
	left := Point{X: x + fastCos(heading+backAngle)*radius, Y: y + fastSin(heading+backAngle)*radius}
	right := Point{X: x + fastCos(heading-backAngle)*radius, Y: y + fastSin(heading-backAngle)*radius}
	return [3]Point{tip, left, right}
}

// ScreenHeading converts a y-up simulation heading to a y-down screen heading.
func ScreenHeading(vx, vy float32) float32 {
	if vx == 0 && vy == 0 {
		return 0
	}
	return float32(math.Atan2(float64(-vy), float64(vx)))
}

// fastSin approximates sin(x) using a polynomial. Accurate to ~0.001 for all x.
func fastSin(x float32) float32 {
	x = normalizeAngle(x)
	const pi = math.Pi
	const pi2 = pi * pi
	y := 4 * x * (pi - absf(x)) / pi2
	// Correction: improves accuracy
	return 0.225*(y*absf(y)-y) + y
}

// fastCos approximates cos(x) using fastSin.
func fastCos(x float32) float32 {
	return fastSin(x + math.Pi/2)
}

// normalizeAngle wraps an angle to [-π, π].
func normalizeAngle(a float32) float32 {
	const twoPi = 2 * math.Pi
	for a > math.Pi {
		a -= twoPi
	}
	for a < -math.Pi {
		a += twoPi
	}
	return a
}

func absf(x float32) float32 {
	if x < 0 {
		return -x
	}
	return x
}
