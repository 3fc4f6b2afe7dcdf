package renderer

import (
	"fmt"
	"sync"

	"github.com/gdamore/tcell/v2"

	"github.com/pthm-cable/flock/systems"
)

// densityRamp maps cell occupancy to glyphs, sparse to dense.
var densityRamp = []rune(" .:-=+*#%@")

// Terminal renders the flock as a character-cell density map.
// The bottom row holds a status line.
type Terminal struct {
	screen tcell.Screen
	style  tcell.Style
	status tcell.Style

	events    chan tcell.Event
	quit      chan struct{}
	closeOnce sync.Once

	counts []int
}

// NewTerminal takes over the given screen, or the controlling terminal when screen is nil.
func NewTerminal(screen tcell.Screen, particleColor [4]uint8) (*Terminal, error) {
	if screen == nil {
		s, err := tcell.NewScreen()
		if err != nil {
			return nil, fmt.Errorf("creating terminal screen: %w", err)
		}
		screen = s
	}
	if err := screen.Init(); err != nil {
		return nil, fmt.Errorf("initializing terminal screen: %w", err)
	}
	screen.HideCursor()
	screen.Clear()

	color := tcell.NewRGBColor(int32(particleColor[0]), int32(particleColor[1]), int32(particleColor[2]))
	t := &Terminal{
		screen: screen,
		style:  tcell.StyleDefault.Foreground(color),
		status: tcell.StyleDefault.Foreground(tcell.ColorBlack).Background(tcell.ColorSilver),
		events: make(chan tcell.Event, 100),
		quit:   make(chan struct{}),
	}
	go screen.ChannelEvents(t.events, t.quit)

	return t, nil
}

// Draw bins the particles into cells and prints the density map.
func (t *Terminal) Draw(view systems.ParticleView, overlay Overlay) error {
	cols, height := t.screen.Size()
	rows := height - 1
	if cols <= 0 || rows <= 0 {
		return nil
	}

	var maxCount int
	t.counts, maxCount = binParticles(view, cols, rows, t.counts)

	t.screen.Clear()
	for y := range rows {
		for x := range cols {
			if c := t.counts[y*cols+x]; c > 0 {
				t.screen.SetContent(x, y, densityGlyph(c, maxCount), nil, t.style)
			}
		}
	}

	line := []rune(StatusLine(overlay) + " | q quit, space pause, n step")
	for x := range cols {
		r := ' '
		if x < len(line) {
			r = line[x]
		}
		t.screen.SetContent(x, rows, r, nil, t.status)
	}

	t.screen.Show()
	return nil
}

// PollInput drains pending terminal events without blocking.
func (t *Terminal) PollInput() Input {
	var in Input
	for {
		select {
		case ev, ok := <-t.events:
			if !ok {
				in.Quit = true
				return in
			}
			in = in.Merge(t.handleEvent(ev))
		default:
			return in
		}
	}
}

func (t *Terminal) handleEvent(ev tcell.Event) Input {
	switch ev := ev.(type) {
	case *tcell.EventKey:
		switch ev.Key() {
		case tcell.KeyEscape, tcell.KeyCtrlC:
			return Input{Quit: true}
		case tcell.KeyRune:
			switch ev.Rune() {
			case 'q', 'Q':
				return Input{Quit: true}
			case ' ', 'p':
				return Input{TogglePause: true}
			case 'n', '.':
				return Input{Step: true}
			}
		}
	case *tcell.EventResize:
		t.screen.Sync()
	}
	return Input{}
}

// Close restores the terminal.
func (t *Terminal) Close() error {
	t.closeOnce.Do(func() {
		close(t.quit)
		t.screen.Fini()
	})
	return nil
}

// binParticles counts particles per cell on a cols×rows grid covering [-1, 1]² with y up.
// It reuses counts when large enough and returns the largest cell count.
func binParticles(view systems.ParticleView, cols, rows int, counts []int) ([]int, int) {
	n := cols * rows
	if cap(counts) < n {
		counts = make([]int, n)
	}
	counts = counts[:n]
	clear(counts)

	var maxCount int
	for _, p := range view.All() {
		cx := min(max(int((p.Position.X+1)/2*float32(cols)), 0), cols-1)
		cy := min(max(int((1-p.Position.Y)/2*float32(rows)), 0), rows-1)
		i := cy*cols + cx
		counts[i]++
		maxCount = max(maxCount, counts[i])
	}
	return counts, maxCount
}

// densityGlyph picks a ramp glyph; any occupied cell gets at least the faintest mark.
func densityGlyph(count, maxCount int) rune {
	if count <= 0 || maxCount <= 0 {
		return densityRamp[0]
	}
	top := len(densityRamp) - 1
	return densityRamp[min((count*top+maxCount-1)/maxCount, top)]
}
