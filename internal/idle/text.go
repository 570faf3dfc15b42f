package idle

import "sidcontrol/internal/display"

// overlayText scrolls through the bars in idle mode 4.
const overlayText = "  BACK TO THE FUTURE "

const (
	textStartRow = 11
	textGoneRow  = -8
	textHoldMs   = 1000
	textDotMs    = 400
	textScrollMs = 50
)

type textState int

const (
	textStart textState = iota
	textHold
	textScroll
)

// textOverlay masks one character at a time out of the bars: each character
// is held, then scrolled upwards until it leaves the panel. Spaces are skipped
// after their hold.
type textOverlay struct {
	state textState
	idx   int
	y     int
	since int64
	delay int64
}

func (t *textOverlay) step(d display.Display, now int64) {
	switch t.state {
	case textStart:
		if t.idx >= len(overlayText) {
			t.idx = 0
		}
		t.since = now
		t.delay = textHoldMs
		if overlayText[t.idx] == '.' {
			t.delay = textDotMs
		}
		t.y = textStartRow
		t.state = textHold

	case textHold, textScroll:
		ch := overlayText[t.idx]
		d.DrawLetterMask(ch, 1, t.y)
		if now-t.since <= t.delay {
			return
		}
		t.since = now
		if t.state == textHold {
			t.state = textScroll
			t.delay = textScrollMs
			return
		}
		t.y--
		if ch == ' ' || t.y < textGoneRow {
			t.state = textStart
			t.idx++
		}
	}
}
