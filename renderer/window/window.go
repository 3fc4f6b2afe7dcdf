// Package window renders the flock into a raylib window.
package window

import (
	rl "github.com/gen2brain/raylib-go/raylib"

	"github.com/pthm-cable/flock/camera"
	"github.com/pthm-cable/flock/config"
	"github.com/pthm-cable/flock/renderer"
	"github.com/pthm-cable/flock/systems"
	"github.com/pthm-cable/flock/ui"
)

// Window is the graphical Renderer. It owns the raylib window for its lifetime.
type Window struct {
	camera    *camera.Camera
	hud       *ui.HUD
	perfPanel *ui.PerfPanel

	shape        string
	triangleSize float32
	clearColor   rl.Color
	color        rl.Color

	screenWidth, screenHeight float32
	showPerf                  bool

	// HUD clicks land during Draw and are reported on the next poll
	pending renderer.Input
}

// New opens the window described by cfg.
func New(cfg *config.Config) *Window {
	rl.SetConfigFlags(rl.FlagWindowResizable)
	rl.InitWindow(int32(cfg.Screen.Width), int32(cfg.Screen.Height), cfg.Screen.Title)
	rl.SetTargetFPS(int32(cfg.Screen.TargetFPS))

	w := cfg.Derived.ScreenW32
	h := cfg.Derived.ScreenH32
	return &Window{
		camera:       camera.New(w, h, cfg.Derived.Wrap),
		hud:          ui.NewHUD(),
		perfPanel:    ui.NewPerfPanel(int32(w)-250, 50, 240),
		shape:        cfg.Render.Shape,
		triangleSize: float32(cfg.Render.TriangleSize),
		clearColor:   toColor(cfg.Render.ClearColor),
		color:        toColor(cfg.Render.ParticleColor),
		screenWidth:  w,
		screenHeight: h,
		showPerf:     true,
	}
}

// Draw renders the particles, HUD and perf panel.
func (w *Window) Draw(view systems.ParticleView, overlay renderer.Overlay) error {
	rl.BeginDrawing()
	rl.ClearBackground(w.clearColor)

	switch w.shape {
	case config.ShapeTriangles:
		w.drawTriangles(view)
	default:
		w.drawPoints(view)
	}

	actions := w.hud.Draw(ui.HUDData{
		Title:        overlay.Title,
		RunID:        overlay.RunID,
		Frame:        overlay.Frame,
		Particles:    overlay.Particles,
		FPS:          rl.GetFPS(),
		Zoom:         w.camera.Zoom,
		Paused:       overlay.Paused,
		ScreenWidth:  int32(w.screenWidth),
		ScreenHeight: int32(w.screenHeight),
	})
	if w.showPerf {
		w.perfPanel.Draw(overlay.Perf)
	}
	w.hud.DrawControls(int32(w.screenHeight), "Space: pause | N: step | Wheel/+/-: zoom | Drag/arrows: pan | Home: reset | F3: perf")

	rl.EndDrawing()

	if !actions.Any() {
		return nil
	}
	if actions.ResetView {
		w.camera.Reset()
	}
	w.pending = w.pending.Merge(renderer.Input{TogglePause: actions.TogglePause, Step: actions.Step})
	return nil
}

func (w *Window) drawPoints(view systems.ParticleView) {
	for _, p := range view.All() {
		if !w.camera.IsVisible(p.Position.X, p.Position.Y, 1) {
			continue
		}
		sx, sy := w.camera.WorldToScreen(p.Position.X, p.Position.Y)
		rl.DrawPixelV(rl.Vector2{X: sx, Y: sy}, w.color)
	}
}

func (w *Window) drawTriangles(view systems.ParticleView) {
	margin := w.triangleSize * 1.5
	for _, p := range view.All() {
		if !w.camera.IsVisible(p.Position.X, p.Position.Y, margin) {
			continue
		}
		sx, sy := w.camera.WorldToScreen(p.Position.X, p.Position.Y)
		heading := renderer.ScreenHeading(p.Velocity.X, p.Velocity.Y)
		tri := renderer.TriangleVertices(sx, sy, heading, w.triangleSize)

		v1 := rl.Vector2{X: tri[0].X, Y: tri[0].Y}
		v2 := rl.Vector2{X: tri[1].X, Y: tri[1].Y}
		v3 := rl.Vector2{X: tri[2].X, Y: tri[2].Y}

		// DrawTriangle requires counter-clockwise winding (v1, v3, v2)
		rl.DrawTriangle(v1, v3, v2, w.color)
	}
}

// PollInput handles window, camera and keyboard input.
func (w *Window) PollInput() renderer.Input {
	w.handleResize()
	w.handleCameraInput()

	in := w.pending
	w.pending = renderer.Input{}

	if rl.WindowShouldClose() {
		in.Quit = true
	}
	if rl.IsKeyPressed(rl.KeySpace) {
		in = in.Merge(renderer.Input{TogglePause: true})
	}
	if rl.IsKeyPressed(rl.KeyN) {
		in.Step = true
	}
	if rl.IsKeyPressed(rl.KeyF3) {
		w.showPerf = !w.showPerf
	}
	if rl.IsKeyPressed(rl.KeyF11) {
		rl.ToggleFullscreen()
	}
	return in
}

// handleResize checks for window resize and propagates new dimensions.
func (w *Window) handleResize() {
	if !rl.IsWindowResized() {
		return
	}
	sw := float32(rl.GetScreenWidth())
	sh := float32(rl.GetScreenHeight())
	if sw == w.screenWidth && sh == w.screenHeight {
		return
	}
	w.screenWidth = sw
	w.screenHeight = sh
	w.camera.Resize(sw, sh)
	w.perfPanel.SetPosition(int32(sw)-250, 50)
}

// handleCameraInput processes camera pan/zoom controls.
func (w *Window) handleCameraInput() {
	// Pan speed in pixels per frame
	const panSpeed = 8.0

	if rl.IsKeyDown(rl.KeyRight) {
		w.camera.Pan(panSpeed, 0)
	}
	if rl.IsKeyDown(rl.KeyLeft) {
		w.camera.Pan(-panSpeed, 0)
	}
	if rl.IsKeyDown(rl.KeyDown) {
		w.camera.Pan(0, panSpeed)
	}
	if rl.IsKeyDown(rl.KeyUp) {
		w.camera.Pan(0, -panSpeed)
	}

	// Dragging moves the world with the cursor
	if rl.IsMouseButtonDown(rl.MouseButtonRight) {
		d := rl.GetMouseDelta()
		w.camera.Pan(-d.X, -d.Y)
	}

	if wheel := rl.GetMouseWheelMove(); wheel != 0 {
		w.camera.ZoomBy(1 + wheel*0.1)
	}
	if rl.IsKeyPressed(rl.KeyEqual) || rl.IsKeyPressed(rl.KeyKpAdd) {
		w.camera.ZoomBy(1.25)
	}
	if rl.IsKeyPressed(rl.KeyMinus) || rl.IsKeyPressed(rl.KeyKpSubtract) {
		w.camera.ZoomBy(0.8)
	}
	if rl.IsKeyPressed(rl.KeyHome) {
		w.camera.Reset()
	}
}

// Close closes the window.
func (w *Window) Close() error {
	rl.CloseWindow()
	return nil
}

func toColor(c [4]uint8) rl.Color {
	return rl.Color{R: c[0], G: c[1], B: c[2], A: c[3]}
}
