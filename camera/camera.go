// Package camera maps normalized simulation space onto the window.
package camera

import "math"

// Domain half-extent: simulation space is [-1, 1] on both axes.
const domainSize = 2

// Camera controls the viewport into simulation space.
// At zoom 1 the whole domain is stretched over the viewport with y pointing up,
// the same mapping as clip-space coordinates.
type Camera struct {
	// Center of the view in simulation coordinates
	X, Y float32

	// Zoom level (1.0 = whole domain, 2.0 = half the domain per axis)
	Zoom float32

	// Viewport dimensions (screen size)
	ViewportW, ViewportH float32

	// Wrap treats the domain as a torus, matching the wrap boundary policy.
	Wrap bool

	MinZoom, MaxZoom float32
}

// New creates a camera showing the whole domain.
func New(viewportW, viewportH float32, wrap bool) *Camera {
	return &Camera{
		Zoom:      1.0,
		ViewportW: viewportW,
		ViewportH: viewportH,
		Wrap:      wrap,
		MinZoom:   1.0,
		MaxZoom:   64.0,
	}
}

// scale returns pixels per simulation unit on each axis.
func (c *Camera) scale() (sx, sy float32) {
	return c.ViewportW / domainSize * c.Zoom, c.ViewportH / domainSize * c.Zoom
}

// WorldToScreen converts simulation coordinates to screen pixels.
func (c *Camera) WorldToScreen(wx, wy float32) (sx, sy float32) {
	dx, dy := c.delta(wx, wy)
	kx, ky := c.scale()
	sx = c.ViewportW/2 + dx*kx
	sy = c.ViewportH/2 - dy*ky
	return sx, sy
}

// ScreenToWorld converts screen pixels to simulation coordinates.
func (c *Camera) ScreenToWorld(sx, sy float32) (wx, wy float32) {
	kx, ky := c.scale()
	wx = c.X + (sx-c.ViewportW/2)/kx
	wy = c.Y - (sy-c.ViewportH/2)/ky
	if c.Wrap {
		wx, wy = wrap(wx), wrap(wy)
	}
	return wx, wy
}

// IsVisible returns true if a point at (wx, wy) lands within margin pixels of the viewport.
func (c *Camera) IsVisible(wx, wy, margin float32) bool {
	sx, sy := c.WorldToScreen(wx, wy)
	return sx >= -margin && sx <= c.ViewportW+margin && sy >= -margin && sy <= c.ViewportH+margin
}

// delta returns the offset from the camera center, shortest way round when wrapping.
func (c *Camera) delta(wx, wy float32) (dx, dy float32) {
	dx, dy = wx-c.X, wy-c.Y
	if c.Wrap {
		dx = toroidalDelta(dx)
		dy = toroidalDelta(dy)
	}
	return dx, dy
}

// Resize updates viewport dimensions.
func (c *Camera) Resize(viewportW, viewportH float32) {
	c.ViewportW = viewportW
	c.ViewportH = viewportH
}

// Pan moves the camera by the given delta in screen pixels.
// Screen y grows downward, so a positive dy moves the view down.
func (c *Camera) Pan(dx, dy float32) {
	kx, ky := c.scale()
	c.X += dx / kx
	c.Y -= dy / ky
	c.constrain()
}

// SetZoom sets the zoom level, clamped to min/max.
func (c *Camera) SetZoom(zoom float32) {
	c.Zoom = clamp(zoom, c.MinZoom, c.MaxZoom)
	c.constrain()
}

// ZoomBy multiplies the current zoom by the given factor.
func (c *Camera) ZoomBy(factor float32) {
	c.SetZoom(c.Zoom * factor)
}

// Reset returns the camera to the whole-domain view.
func (c *Camera) Reset() {
	c.X, c.Y = 0, 0
	c.Zoom = 1.0
}

// VisibleWorldBounds returns the simulation-space rectangle on screen.
// When wrapping, min may exceed the domain edge; callers wrap as needed.
func (c *Camera) VisibleWorldBounds() (minX, minY, maxX, maxY float32) {
	halfW := 1 / c.Zoom
	halfH := 1 / c.Zoom
	return c.X - halfW, c.Y - halfH, c.X + halfW, c.Y + halfH
}

// constrain keeps the center on the torus, or keeps the view inside the domain when clamping.
func (c *Camera) constrain() {
	if c.Wrap {
		c.X, c.Y = wrap(c.X), wrap(c.Y)
		return
	}
	half := 1 / c.Zoom
	c.X = clamp(c.X, -1+half, 1-half)
	c.Y = clamp(c.Y, -1+half, 1-half)
}

// toroidalDelta folds d into [-1, 1].
func toroidalDelta(d float32) float32 {
	if d > domainSize/2 {
		d -= domainSize
	} else if d < -domainSize/2 {
		d += domainSize
	}
	return d
}

// wrap maps v onto [-1, 1).
func wrap(v float32) float32 {
	r := float32(math.Mod(float64(v+1), domainSize))
	if r < 0 {
		r += domainSize
	}
	return r - 1
}

// clamp restricts a value to a range.
func clamp(x, lo, hi float32) float32 {
	if x < lo {
		return lo
	}
	if x > hi {
		return hi
	}
	return x
}
