// Package renderer defines the render stage contract and its terminal implementation.
package renderer

import (
	"fmt"
	"strings"

	"github.com/pthm-cable/flock/systems"
	"github.com/pthm-cable/flock/telemetry"
)

// Renderer draws one frame from a read-only view of the particle store.
// Draw is only called after the simulation stage has fully joined.
type Renderer interface {
	Draw(view systems.ParticleView, overlay Overlay) error
	Close() error
}

// InputSource is implemented by renderers that own an interactive surface.
type InputSource interface {
	// PollInput returns the controls requested since the previous poll.
	PollInput() Input
}

// Overlay carries the frame metadata drawn alongside the particles.
type Overlay struct {
	Title     string
	RunID     string
	Frame     int64
	Particles int
	Paused    bool
	Perf      telemetry.PerfStats
}

// Input is the set of controls requested by the user.
type Input struct {
	TogglePause bool
	Step        bool
	Quit        bool
}

// Merge combines two polls. Two pause toggles cancel out.
func (in Input) Merge(other Input) Input {
	return Input{
		TogglePause: in.TogglePause != other.TogglePause,
		Step:        in.Step || other.Step,
		Quit:        in.Quit || other.Quit,
	}
}

// StatusLine formats the overlay as a single line of text.
func StatusLine(o Overlay) string {
	var b strings.Builder
	fmt.Fprintf(&b, "frame %d | particles %d | sim %.0f f/s", o.Frame, o.Particles, o.Perf.FramesPerSecond)
	if o.Perf.FPS > 0 {
		fmt.Fprintf(&b, " | %.0f fps", o.Perf.FPS)
	}
	if o.Paused {
		b.WriteString(" | PAUSED")
	}
	if o.RunID != "" {
		fmt.Fprintf(&b, " | run %s", o.RunID)
	}
	return b.String()
}
