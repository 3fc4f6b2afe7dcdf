package renderer

import (
	"strings"
	"testing"
	"time"

	"github.com/gdamore/tcell/v2"

	"github.com/pthm-cable/flock/components"
	"github.com/pthm-cable/flock/systems"
)

func newTestTerminal(t *testing.T, w, h int) (*Terminal, tcell.SimulationScreen) {
	t.Helper()
	screen := tcell.NewSimulationScreen("UTF-8")
	term, err := NewTerminal(screen, [4]uint8{255, 255, 255, 255})
	if err != nil {
		t.Fatalf("NewTerminal: %v", err)
	}
	screen.SetSize(w, h)
	t.Cleanup(func() { term.Close() })
	return term, screen
}

func viewOf(t *testing.T, positions ...components.Position) systems.ParticleView {
	t.Helper()
	particles := make([]components.Particle, len(positions))
	for i, p := range positions {
		particles[i].Position = p
	}
	store, err := systems.NewParticleStoreFrom(particles)
	if err != nil {
		t.Fatal(err)
	}
	return store.Read()
}

func rowText(screen tcell.Screen, y, width int) string {
	var b strings.Builder
	for x := range width {
		r, _, _, _ := screen.GetContent(x, y)
		b.WriteRune(r)
	}
	return b.String()
}

// TestTerminalDraw checks corner placement, y-up orientation and the status row.
func TestTerminalDraw(t *testing.T) {
	term, screen := newTestTerminal(t, 20, 6)

	view := viewOf(t,
		components.Position{X: -1, Y: 1},         // top-left
		components.Position{X: -1, Y: 1},         // same cell, densest
		components.Position{X: 0.999, Y: -0.999}, // bottom-right of the grid
		components.Position{X: 1, Y: -1},         // edge clamps into the same cell
	)
	overlay := Overlay{Frame: 42, Particles: view.Len(), Paused: true}
	if err := term.Draw(view, overlay); err != nil {
		t.Fatalf("Draw: %v", err)
	}

	if r, _, _, _ := screen.GetContent(0, 0); r != '@' {
		t.Errorf("top-left cell = %q, want '@'", r)
	}
	if r, _, _, _ := screen.GetContent(19, 4); r != '@' {
		t.Errorf("bottom-right grid cell = %q, want '@'", r)
	}
	if r, _, _, _ := screen.GetContent(10, 2); r != ' ' {
		t.Errorf("empty cell = %q, want blank", r)
	}

	status := rowText(screen, 5, 20)
	if !strings.HasPrefix(status, "frame 42 | particles") {
		t.Errorf("status row = %q", status)
	}
}

// TestTerminalDrawTinyScreen must not panic when there is no room for the grid.
func TestTerminalDrawTinyScreen(t *testing.T) {
	term, _ := newTestTerminal(t, 10, 1)
	if err := term.Draw(viewOf(t, components.Position{}), Overlay{}); err != nil {
		t.Errorf("Draw: %v", err)
	}
}

// TestTerminalInput checks the key bindings.
func TestTerminalInput(t *testing.T) {
	tests := []struct {
		name string
		key  tcell.Key
		r    rune
		want Input
	}{
		{"space pauses", tcell.KeyRune, ' ', Input{TogglePause: true}},
		{"n steps", tcell.KeyRune, 'n', Input{Step: true}},
		{"q quits", tcell.KeyRune, 'q', Input{Quit: true}},
		{"escape quits", tcell.KeyEscape, 0, Input{Quit: true}},
		{"ctrl-c quits", tcell.KeyCtrlC, 0, Input{Quit: true}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			term, screen := newTestTerminal(t, 20, 6)
			screen.InjectKey(tt.key, tt.r, tcell.ModNone)

			// Events arrive through the channel goroutine
			deadline := time.Now().Add(2 * time.Second)
			var got Input
			for got == (Input{}) && time.Now().Before(deadline) {
				got = term.PollInput()
				time.Sleep(time.Millisecond)
			}
			if got != tt.want {
				t.Errorf("PollInput() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestTerminalCloseIsIdempotent(t *testing.T) {
	term, _ := newTestTerminal(t, 20, 6)
	if err := term.Close(); err != nil {
		t.Fatal(err)
	}
	if err := term.Close(); err != nil {
		t.Errorf("second Close: %v", err)
	}
}

func TestDensityGlyph(t *testing.T) {
	tests := []struct {
		count, maxCount int
		want            rune
	}{
		{0, 10, ' '},
		{1, 100, '.'},
		{10, 10, '@'},
		{5, 10, '+'},
		{3, 0, ' '},
	}

	for _, tt := range tests {
		if got := densityGlyph(tt.count, tt.maxCount); got != tt.want {
			t.Errorf("densityGlyph(%d, %d) = %q, want %q", tt.count, tt.maxCount, got, tt.want)
		}
	}
}

func TestBinParticlesConservesCount(t *testing.T) {
	view := viewOf(t,
		components.Position{X: 0, Y: 0},
		components.Position{X: 0.5, Y: -0.5},
		components.Position{X: -0.99, Y: 0.2},
		components.Position{X: 1, Y: 1},
	)

	counts, maxCount := binParticles(view, 7, 3, nil)
	total := 0
	for _, c := range counts {
		total += c
	}
	if total != view.Len() {
		t.Errorf("binned %d particles, want %d", total, view.Len())
	}
	if maxCount != 1 {
		t.Errorf("maxCount = %d, want 1", maxCount)
	}
}

func TestStatusLine(t *testing.T) {
	got := StatusLine(Overlay{RunID: "abc", Frame: 7, Particles: 3, Paused: true})
	for _, want := range []string{"frame 7", "particles 3", "PAUSED", "run abc"} {
		if !strings.Contains(got, want) {
			t.Errorf("StatusLine() = %q, missing %q", got, want)
		}
	}
}

func TestInputMerge(t *testing.T) {
	a := Input{TogglePause: true, Step: true}
	b := Input{TogglePause: true, Quit: true}
	got := a.Merge(b)
	want := Input{Step: true, Quit: true}
	if got != want {
		t.Errorf("Merge = %+v, want %+v", got, want)
	}
}
