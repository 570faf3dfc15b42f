package trigger

// ButtonConfig holds button timing in milliseconds. HoldMs 0 disables the
// hold gesture; a press then fires as soon as the line has been active for
// PressMs instead of on release.
type ButtonConfig struct {
	DebounceMs int64
	PressMs    int64
	HoldMs     int64
}

// PhysicalButton is the timing for the push button on the prop.
var PhysicalButton = ButtonConfig{DebounceMs: 50, PressMs: 200, HoldMs: 5000}

// WiredLine is the timing when the input is the companion's trigger line.
var WiredLine = ButtonConfig{DebounceMs: 5, PressMs: 50}

type gesture int

const (
	gestureNone gesture = iota
	gesturePress
	gestureHold
)

// button turns raw line levels into press and hold gestures.
type button struct {
	cfg ButtonConfig

	raw      bool
	rawSince int64

	stable bool
	since  int64
	fired  bool
}

func newButton(cfg ButtonConfig) *button {
	return &button{cfg: cfg}
}

// active reports the debounced level.
func (b *button) active() bool { return b.stable }

// level records a raw level change.
func (b *button) level(on bool, now int64) {
	if on == b.raw {
		return
	}
	b.raw = on
	b.rawSince = now
}

// poll settles the debounced level and reports a gesture, if any.
func (b *button) poll(now int64) gesture {
	if b.raw != b.stable && now-b.rawSince >= b.cfg.DebounceMs {
		b.stable = b.raw
		if b.stable {
			b.since = now
			b.fired = false
		} else {
			held := now - b.since
			if b.cfg.HoldMs > 0 && !b.fired && held >= b.cfg.PressMs {
				return gesturePress
			}
			return gestureNone
		}
	}

	if !b.stable || b.fired {
		return gestureNone
	}
	held := now - b.since
	switch {
	case b.cfg.HoldMs > 0 && held >= b.cfg.HoldMs:
		b.fired = true
		return gestureHold
	case b.cfg.HoldMs == 0 && held >= b.cfg.PressMs:
		b.fired = true
		return gesturePress
	}
	return gestureNone
}
