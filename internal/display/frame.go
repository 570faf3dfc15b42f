package display

// Frame is an in-memory Display.
//
// Frame is not safe for concurrent use; it belongs to the goroutine that runs
// the controller. Observers receive copies through the OnUpdate callback.
type Frame struct {
	back  [Bars]uint32
	front [Bars]uint32

	on         bool
	brightness int
	applied    int
	indicator  bool

	seq      uint64
	onUpdate func(Snapshot)
}

// NewFrame returns a powered-on Frame at full brightness.
// onUpdate may be nil.
func NewFrame(onUpdate func(Snapshot)) *Frame {
	return &Frame{
		on:         true,
		brightness: MaxBrightness,
		applied:    MaxBrightness,
		onUpdate:   onUpdate,
	}
}

// SetOnUpdate replaces the update callback.
func (f *Frame) SetOnUpdate(fn func(Snapshot)) { f.onUpdate = fn }

// Snapshot returns what is currently visible.
func (f *Frame) Snapshot() Snapshot {
	return Snapshot{
		Seq:        f.seq,
		Bars:       f.front,
		Brightness: f.applied,
		On:         f.on,
		Indicator:  f.indicator,
	}
}

func (f *Frame) publish() {
	f.seq++
	if f.onUpdate != nil {
		f.onUpdate(f.Snapshot())
	}
}

func (f *Frame) Clear() {
	f.back = [Bars]uint32{}
}

func (f *Frame) DrawBar(bar, bottom, top int) {
	if bar < 0 || bar >= Bars {
		return
	}
	bottom = clamp(bottom, 0, MaxRow)
	top = clamp(top, 0, MaxRow)
	var m uint32
	for r := bottom; r <= top; r++ {
		m |= 1 << uint(r)
	}
	f.back[bar] = m
}

func (f *Frame) DrawBarWithHeight(bar, height int) {
	if bar < 0 || bar >= Bars {
		return
	}
	height = clamp(height, 0, Rows)
	f.back[bar] = (1 << uint(height)) - 1
}

func (f *Frame) ClearBar(bar int) {
	if bar < 0 || bar >= Bars {
		return
	}
	f.back[bar] = 0
}

func (f *Frame) DrawDot(bar, row int) {
	if bar < 0 || bar >= Bars || row < 0 || row > MaxRow {
		return
	}
	f.back[bar] |= 1 << uint(row)
}

func (f *Frame) DrawLetter(ch byte, x, y int) {
	f.blit(ch, x, y, true)
}

func (f *Frame) DrawLetterMask(ch byte, x, y int) {
	f.blit(ch, x, y, false)
}

// blit maps glyph row gy onto panel row MaxRow-(y+gy); pixels outside the
// panel are clipped.
func (f *Frame) blit(ch byte, x, y int, set bool) {
	g, ok := Glyph(ch)
	if !ok {
		return
	}
	for gy := 0; gy < GlyphSize; gy++ {
		row := MaxRow - (y + gy)
		if row < 0 || row > MaxRow {
			continue
		}
		for gx := 0; gx < GlyphSize; gx++ {
			if g[gy]&(1<<uint(gx)) == 0 {
				continue
			}
			bar := x + gx
			if bar < 0 || bar >= Bars {
				continue
			}
			if set {
				f.back[bar] |= 1 << uint(row)
			} else {
				f.back[bar] &^= 1 << uint(row)
			}
		}
	}
}

func (f *Frame) Show() {
	f.front = f.back
	f.publish()
}

func (f *Frame) On() {
	if f.on {
		return
	}
	f.on = true
	f.publish()
}

func (f *Frame) Off() {
	if !f.on {
		return
	}
	f.on = false
	f.publish()
}

func (f *Frame) IsOn() bool { return f.on }

func (f *Frame) SetBrightness(level int) int {
	f.brightness = clamp(level, 0, MaxBrightness)
	f.applied = f.brightness
	f.publish()
	return f.brightness
}

func (f *Frame) RestoreBrightness() {
	if f.applied == f.brightness {
		return
	}
	f.applied = f.brightness
	f.publish()
}

func (f *Frame) SetBrightnessDirect(level int) {
	f.applied = clamp(level, 0, MaxBrightness)
	f.publish()
}

func (f *Frame) Brightness() int { return f.brightness }

// AppliedBrightness returns the level currently driving the lamps.
func (f *Frame) AppliedBrightness() int { return f.applied }

func (f *Frame) SetIndicator(on bool) {
	if f.indicator == on {
		return
	}
	f.indicator = on
	f.publish()
}

var _ Display = (*Frame)(nil)
