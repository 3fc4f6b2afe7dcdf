package ui

import (
	"fmt"
	"time"

	gui "github.com/gen2brain/raylib-go/raygui"
	rl "github.com/gen2brain/raylib-go/raylib"

	"github.com/pthm-cable/flock/telemetry"
)

// HUDData holds all the data needed to render the main HUD.
type HUDData struct {
	Title        string
	RunID        string
	Frame        int64
	Particles    int
	FPS          int32
	Zoom         float32
	Paused       bool
	ScreenWidth  int32
	ScreenHeight int32
}

// HUD renders the main heads-up display and its control buttons.
type HUD struct {
	renderer *Renderer
}

// NewHUD creates a new HUD renderer.
func NewHUD() *HUD {
	return &HUD{
		renderer: NewRenderer(),
	}
}

// Draw renders the HUD and returns the controls the user clicked.
func (h *HUD) Draw(data HUDData) Actions {
	theme := h.renderer.Theme

	rl.DrawText(data.Title, 10, 10, 20, rl.White)
	rl.DrawText(
		fmt.Sprintf("Frame: %d | Particles: %d | FPS: %d | Zoom: %.1fx", data.Frame, data.Particles, data.FPS, data.Zoom),
		10, 35, 16, rl.LightGray,
	)
	rl.DrawText(fmt.Sprintf("Run: %s", data.RunID), 10, 55, 12, rl.Gray)

	if data.Paused {
		rl.DrawText("PAUSED", 10, 72, 16, theme.StatusColor)
	}

	var actions Actions
	bx := float32(data.ScreenWidth) - 3*(theme.ButtonWidth+6) - 4
	by := float32(10)

	pauseLabel := "Pause"
	if data.Paused {
		pauseLabel = "Resume"
	}
	actions.TogglePause = gui.Button(rl.Rectangle{X: bx, Y: by, Width: theme.ButtonWidth, Height: theme.ButtonHeight}, pauseLabel)
	bx += theme.ButtonWidth + 6

	// Stepping only applies while paused
	step := gui.Button(rl.Rectangle{X: bx, Y: by, Width: theme.ButtonWidth, Height: theme.ButtonHeight}, "Step")
	actions.Step = step && data.Paused
	bx += theme.ButtonWidth + 6

	actions.ResetView = gui.Button(rl.Rectangle{X: bx, Y: by, Width: theme.ButtonWidth, Height: theme.ButtonHeight}, "Reset")

	return actions
}

// DrawControls renders the control legend at the bottom of the screen.
func (h *HUD) DrawControls(screenHeight int32, controls string) {
	rl.DrawText(controls, 10, screenHeight-25, 14, rl.Gray)
}

// PerfPanel renders the per-phase frame timing panel.
type PerfPanel struct {
	renderer *Renderer
	x, y     int32
	width    int32
}

// NewPerfPanel creates a new performance panel.
func NewPerfPanel(x, y, width int32) *PerfPanel {
	return &PerfPanel{
		renderer: NewRenderer(),
		x:        x,
		y:        y,
		width:    width,
	}
}

// SetPosition updates the panel position.
func (p *PerfPanel) SetPosition(x, y int32) {
	p.x = x
	p.y = y
}

// Draw renders the performance panel.
func (p *PerfPanel) Draw(stats telemetry.PerfStats) {
	r := p.renderer
	pad := r.Theme.Padding
	height := pad*2 + r.Theme.LineHeight*int32(4+len(telemetry.Phases)) + 2

	r.DrawPanel(p.x, p.y, p.width, height)

	x := p.x + pad
	y := r.DrawSectionHeader(x, p.y+pad, "Frame Timing")
	y = r.DrawLabelValue(x, y, "Frame avg", stats.AvgFrameDuration.Round(time.Microsecond).String())
	y = r.DrawLabelValue(x, y, "Frame max", stats.MaxFrameDuration.Round(time.Microsecond).String())
	y = r.DrawLabelValue(x, y, "Sim rate", fmt.Sprintf("%.0f frames/s", stats.FramesPerSecond))

	for _, phase := range telemetry.Phases {
		y = r.DrawPercentBar(x, y, phase, stats.PhasePct[phase], p.width-2*pad)
	}
}
