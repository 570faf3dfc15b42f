// Package display models the 10-bar, 20-row light panel.
//
// The control core never talks to hardware directly. It draws into a Display;
// Frame is the in-memory implementation that the daemon, the simulator and the
// tests share. Every visible change produces a Snapshot that callers can fan out
// (websocket feed, terminal renderer).
package display

const (
	// Bars is the number of vertical bars.
	Bars = 10
	// Rows is the number of lamps per bar. Row 0 is the bottom row.
	Rows = 20
	// MaxRow is the index of the top row.
	MaxRow = Rows - 1
	// MaxBrightness is the highest brightness level.
	MaxBrightness = 15
)

// Display is the drawing surface used by the animation and travel code.
//
// Drawing calls only change the back buffer; Show makes it visible.
// Brightness, power and the indicator take effect immediately.
type Display interface {
	Clear()
	// DrawBar lights rows bottom..top (inclusive) of bar, clearing the rest.
	DrawBar(bar, bottom, top int)
	// DrawBarWithHeight lights the lowest height rows of bar.
	DrawBarWithHeight(bar, height int)
	ClearBar(bar int)
	// DrawDot lights a single lamp without touching the rest of the bar.
	DrawDot(bar, row int)
	// DrawLetter lights the glyph for ch with its top-left corner at bar x,
	// row y counted from the top.
	DrawLetter(ch byte, x, y int)
	// DrawLetterMask darkens the glyph for ch, using the same placement as
	// DrawLetter.
	DrawLetterMask(ch byte, x, y int)
	Show()

	On()
	Off()
	IsOn() bool

	// SetBrightness sets and applies the configured level (clamped to
	// 0..MaxBrightness) and returns it.
	SetBrightness(level int) int
	// RestoreBrightness re-applies the configured level after transient changes.
	RestoreBrightness()
	// SetBrightnessDirect applies a level without changing the configured one.
	SetBrightnessDirect(level int)
	// Brightness returns the configured level.
	Brightness() int

	// SetIndicator drives the feedback lamp next to the panel.
	SetIndicator(on bool)
}

// Snapshot is an immutable copy of what the panel shows.
type Snapshot struct {
	Seq uint64 `json:"seq"`
	// Bars holds one bitmask per bar; bit r is row r from the bottom.
	Bars       [Bars]uint32 `json:"bars"`
	Brightness int          `json:"brightness"`
	On         bool         `json:"on"`
	Indicator  bool         `json:"indicator"`
}

// Lit reports whether the lamp at bar, row is on.
func (s Snapshot) Lit(bar, row int) bool {
	if bar < 0 || bar >= Bars || row < 0 || row >= Rows {
		return false
	}
	return s.Bars[bar]&(1<<uint(row)) != 0
}

// Height returns the number of rows up to and including the highest lit lamp
// of bar, or 0 when the bar is dark.
func (s Snapshot) Height(bar int) int {
	if bar < 0 || bar >= Bars {
		return 0
	}
	for r := MaxRow; r >= 0; r-- {
		if s.Bars[bar]&(1<<uint(r)) != 0 {
			return r + 1
		}
	}
	return 0
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
