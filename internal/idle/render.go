package idle

import "sidcontrol/internal/display"

// Flags modify Render.
type Flags uint16

const (
	// FlagRepeat redraws the cached heights without recomputing them.
	FlagRepeat Flags = 1 << iota
	// FlagTravel selects the tunnel modifier row and disables smoothing.
	FlagTravel
	// FlagLetterMask keeps bars tall enough for the masked text overlay.
	FlagLetterMask
	// FlagSkipShow leaves the frame unpublished so the caller can draw on top.
	FlagSkipShow
)

// MaxBaseline is the highest baseline (and bar height) value.
const MaxBaseline = display.MaxRow

// travelRow is the modifier row used while in the tunnel.
const travelRow = 20

// maxStep is the largest per-frame height change before smoothing kicks in.
const maxStep = 5

// barModifiers scales the baseline per bar, in percent. Rows 0..19 follow the
// baseline (low rows green, 13..18 yellow, 19 red); row 20 is the tunnel shape.
var barModifiers = [21][display.Bars]int{
	{130, 90, 10, 80, 10, 110, 100, 15, 120, 90},
	{130, 90, 10, 80, 10, 110, 100, 15, 100, 90},
	{130, 90, 20, 80, 15, 110, 100, 15, 120, 100},
	{110, 100, 70, 80, 30, 50, 100, 15, 100, 110},
	{110, 110, 40, 90, 30, 50, 100, 15, 80, 100},
	{110, 110, 30, 120, 30, 50, 110, 15, 50, 100},
	{100, 100, 20, 120, 10, 50, 110, 20, 40, 110},
	{110, 120, 15, 110, 20, 40, 110, 18, 40, 100},
	{100, 100, 15, 110, 20, 50, 100, 15, 50, 90},
	{90, 110, 0, 100, 20, 50, 100, 15, 60, 100},
	{90, 100, 10, 100, 10, 60, 90, 15, 40, 100},
	{90, 100, 10, 100, 10, 90, 90, 15, 110, 100},
	{90, 90, 20, 90, 15, 100, 100, 50, 100, 90},
	{90, 90, 20, 90, 15, 100, 100, 50, 100, 90},
	{90, 80, 10, 80, 15, 90, 80, 50, 100, 80},
	{90, 80, 10, 80, 15, 90, 80, 50, 100, 80},
	{90, 80, 10, 80, 15, 90, 80, 50, 100, 80},
	{90, 70, 20, 70, 15, 70, 70, 40, 100, 70},
	{90, 70, 20, 70, 15, 70, 70, 40, 90, 70},
	{90, 60, 25, 60, 15, 80, 60, 40, 90, 60},
	{90, 90, 70, 100, 90, 110, 90, 60, 95, 80},
}

// barHeight scales baseline by the modifier for bar plus jitter (already
// centered by the caller) and clamps to [0, MaxBaseline].
func barHeight(baseline, row, bar, jitter int) int {
	h := baseline * (barModifiers[row][bar] + jitter) / 100
	return clampBaseline(h)
}

func clampBaseline(v int) int {
	if v < 0 {
		return 0
	}
	if v > MaxBaseline {
		return MaxBaseline
	}
	return v
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

// Render draws one frame of bars around the current baseline.
//
// variation is the jitter window in percent; outside the tunnel it is
// centered on zero. Heights are cached for FlagRepeat and for smoothing.
func (g *Generator) Render(variation int, flags Flags) {
	if variation <= 0 {
		variation = 1
	}
	travel := flags&FlagTravel != 0

	base := clampBaseline(g.baseline)
	row := base
	center := variation / 2
	if travel {
		row = travelRow
		center = 0
	}

	for i := 0; i < display.Bars; i++ {
		if flags&FlagRepeat != 0 {
			g.disp.DrawBar(i, 0, g.heights[i])
			continue
		}
		h := barHeight(base, row, i, g.rnd.IntN(variation)-center)
		if flags&FlagLetterMask != 0 && h < 9 {
			h = 9 + g.rnd.IntN(4)
		}
		if !travel && abs(h-g.heights[i]) > maxStep {
			h = (g.heights[i] + h) / 2
		}
		g.disp.DrawBar(i, 0, h)
		g.heights[i] = h
	}

	if flags&FlagSkipShow == 0 {
		g.disp.Show()
	}
}

// Heights returns the cached per-bar heights of the last rendered frame.
func (g *Generator) Heights() [display.Bars]int { return g.heights }

// ResetHeights sets every cached height to h.
func (g *Generator) ResetHeights(h int) {
	h = clampBaseline(h)
	for i := range g.heights {
		g.heights[i] = h
	}
}
