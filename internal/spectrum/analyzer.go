// Package spectrum renders frequency-band levels as bars with optional
// falling peak dots. It is the analyzer mode of the panel and is also
// driven by the travel engine, which scales its amplification.
package spectrum

import (
	"sidcontrol/internal/display"
)

const (
	// FrameMs is the time between two analyzer frames (one sample block).
	FrameMs = 32

	peakHoldMs = 500
	peakFallMs = 100

	neutralAmp = 100
	// smoothJump is the largest downward step drawn without averaging.
	smoothJump = 10
)

// Source supplies band energies for one frame.
type Source interface {
	// Bands fills b with non-negative energies, lowest band first, and
	// reports whether a new block was available.
	Bands(b *[display.Bars]float64) bool
}

// Analyzer turns band energies into bars. It is not safe for concurrent use.
type Analyzer struct {
	disp display.Display
	src  Source

	active bool
	peaks  bool
	amp    int

	lastFrame int64
	primed    bool

	bands   [display.Bars]float64
	heights [display.Bars]int
	peak    [display.Bars]int
	peakAt  [display.Bars]int64
	holdMs  [display.Bars]int64
	moving  [display.Bars]bool
}

// New returns an inactive analyzer at neutral amplification.
func New(d display.Display, src Source) *Analyzer {
	return &Analyzer{disp: d, src: src, amp: neutralAmp}
}

// Active reports whether the analyzer is drawing.
func (a *Analyzer) Active() bool { return a.active }

// Activate starts drawing on the next Tick.
func (a *Analyzer) Activate() {
	a.active = true
	a.primed = false
}

// Deactivate stops drawing. The display is left as is.
func (a *Analyzer) Deactivate() { a.active = false }

// Peaks reports whether peak dots are drawn.
func (a *Analyzer) Peaks() bool { return a.peaks }

// SetPeaks enables or disables peak dots.
func (a *Analyzer) SetPeaks(on bool) { a.peaks = on }

// AmplificationFactor returns the scale applied to bar heights, in percent.
func (a *Analyzer) AmplificationFactor() int { return a.amp }

// SetAmplificationFactor sets the scale in percent and returns the previous
// one. Negative values leave it unchanged.
func (a *Analyzer) SetAmplificationFactor(pct int) int {
	old := a.amp
	if pct >= 0 {
		a.amp = pct
	}
	return old
}

// Heights returns the bar heights of the last frame.
func (a *Analyzer) Heights() [display.Bars]int { return a.heights }

// Tick draws a frame when one is due.
func (a *Analyzer) Tick(now int64) {
	if !a.active {
		return
	}
	if a.primed && now-a.lastFrame < FrameMs {
		return
	}
	a.primed = true
	a.lastFrame = now

	if !a.src.Bands(&a.bands) {
		return
	}

	top := 1.0
	for _, v := range a.bands {
		if v > top {
			top = v
		}
	}

	for i, v := range a.bands {
		if v < 0 {
			v = 0
		}
		h := int(v / top * display.MaxRow)
		if a.amp != neutralAmp {
			if h == 0 {
				h = 1
			}
			h = h * a.amp / 100
		}
		if h > display.Rows {
			h = display.Rows
		}
		if h == 0 {
			h = 1
		}

		old := a.heights[i]
		if h < old {
			if old-h > smoothJump {
				h = (old + h) / 2
			} else {
				h = old - 1
			}
		}

		if h-1 > a.peak[i] {
			a.peak[i] = min(display.MaxRow, h-1)
			a.peakAt[i] = now
			a.holdMs[i] = peakHoldMs
			a.moving[i] = true
		}
		a.heights[i] = h
	}

	for i, h := range a.heights {
		a.disp.DrawBarWithHeight(i, h)
		if a.peaks && a.peak[i] > h-1 {
			a.disp.DrawDot(i, a.peak[i])
		}
	}
	a.disp.Show()

	for i := range a.peak {
		if !a.moving[i] || now-a.peakAt[i] <= a.holdMs[i] {
			continue
		}
		if a.peak[i] > 0 {
			a.peak[i]--
			a.peakAt[i] = now
			a.holdMs[i] = peakFallMs
		} else {
			a.moving[i] = false
		}
	}
}
