package systems

import "math"

// Domain bounds of normalized simulation space.
const (
	DomainMin float32 = -1
	DomainMax float32 = 1
)

// clampFloat clamps a float32 value between minVal and maxVal.
func clampFloat(v, minVal, maxVal float32) float32 {
	if v < minVal {
		return minVal
	}
	if v > maxVal {
		return maxVal
	}
	return v
}

// WrapCoord maps a coordinate onto the torus [-1, 1).
func WrapCoord(v float32) float32 {
	if v >= DomainMin && v < DomainMax {
		return v
	}
	const span = float64(DomainMax - DomainMin)
	w := math.Mod(float64(v-DomainMin), span)
	if w < 0 {
		w += span
	}
	out := float32(w) + DomainMin
	// float32 rounding can land exactly on the open upper edge
	if out >= DomainMax {
		out = DomainMin
	}
	return out
}

// ClampCoord pins a coordinate to [-1, 1].
func ClampCoord(v float32) float32 {
	return clampFloat(v, DomainMin, DomainMax)
}

// clampSpeed rescales (vx, vy) to maxSpeed when it is faster, keeping its direction.
// The magnitude is taken in float64 so huge float32 components do not overflow;
// infinite components keep only their sign.
func clampSpeed(vx, vy, maxSpeed float32) (float32, float32) {
	x, y := float64(vx), float64(vy)
	if math.IsInf(x, 0) || math.IsInf(y, 0) {
		x, y = infSign(x), infSign(y)
	}
	speed := math.Hypot(x, y)
	if speed <= float64(maxSpeed) {
		return float32(x), float32(y)
	}
	scale := float64(maxSpeed) / speed
	return float32(x * scale), float32(y * scale)
}

// infSign returns ±1 for an infinite v and 0 otherwise.
func infSign(v float64) float64 {
	switch {
	case math.IsInf(v, 1):
		return 1
	case math.IsInf(v, -1):
		return -1
	}
	return 0
}
