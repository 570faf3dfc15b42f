// Package games holds the two remote-controlled pastimes of the panel: a
// snake and a falling-block stacker. Both draw onto a display.Display and are
// driven by Tick from the controller goroutine.
package games

import (
	"sidcontrol/internal/display"
)

const (
	width  = display.Bars
	height = display.Rows

	// startupMs is the pause between Start and the first move.
	startupMs  = 1000
	gameOverMs = 1500
	blinkMs    = 250
)

// field is a playfield with y = 0 at the top of the panel.
type field [height][width]bool

func (f *field) set(x, y int) {
	if x < 0 || x >= width || y < 0 || y >= height {
		return
	}
	f[y][x] = true
}

func (f *field) draw(d display.Display) {
	d.Clear()
	for y := range f {
		for x, on := range f[y] {
			if on {
				d.DrawDot(x, display.MaxRow-y)
			}
		}
	}
	d.Show()
}

// drawPause shows a P while a game is paused.
func drawPause(d display.Display) {
	d.Clear()
	d.DrawLetter('P', 1, 6)
	d.Show()
}

// blink shows the field on and off while the game-over period runs. last
// holds the blink phase drawn most recently.
func blink(d display.Display, f *field, since int64, last *int64) {
	phase := since / blinkMs
	if phase == *last {
		return
	}
	*last = phase
	if phase%2 == 0 {
		f.draw(d)
		return
	}
	d.Clear()
	d.Show()
}
