package controller

import (
	"sidcontrol/internal/display"
	"sidcontrol/internal/idle"
)

// A sequence is a scripted animation played one step per due tick, so the
// loop keeps polling inputs and the network while it runs.
type sequence struct {
	name  string
	steps []seqStep
	i     int
	next  int64
	// done runs once after the last step's wait has passed.
	done func(now int64)
}

type seqStep struct {
	run    func()
	waitMs int64
}

// tick runs every step that is due and reports whether the sequence is still
// playing.
func (s *sequence) tick(now int64) bool {
	for s.i < len(s.steps) && now >= s.next {
		st := s.steps[s.i]
		s.i++
		if st.run != nil {
			st.run()
		}
		s.next = now + st.waitMs
	}
	if s.i < len(s.steps) || now < s.next {
		return true
	}
	if s.done != nil {
		s.done(now)
		s.done = nil
	}
	return false
}

func (s *sequence) add(waitMs int64, run func()) {
	s.steps = append(s.steps, seqStep{run: run, waitMs: waitMs})
}

// then appends the steps of o and returns s.
func (s *sequence) then(o *sequence) *sequence {
	s.steps = append(s.steps, o.steps...)
	s.name += "+" + o.name
	return s
}

// Letters are centered on the panel.
const (
	letterX    = 2
	letterY    = 6
	fadeStepMs = 10
	fadeSettle = 50
)

// Word speeds, indexes into wordDelays.
const (
	speedTitle = 2
	speedDone  = 2
	speedGo    = 4
	speedAlarm = 4
	speedIP    = 5
)

var wordDelays = [...]int64{100, 200, 300, 400, 500, 1000}

// addFadeOut dims the panel to dark, one level per step.
func addFadeOut(s *sequence, d display.Display) {
	for a := d.Brightness(); a >= 0; a-- {
		s.add(fadeStepMs, func() { d.SetBrightnessDirect(a) })
	}
}

// addChar shows a single character at full brightness.
func addChar(s *sequence, d display.Display, ch byte, waitMs int64) {
	s.add(waitMs, func() {
		d.Clear()
		d.DrawLetter(ch, letterX, letterY)
		d.Show()
		d.RestoreBrightness()
	})
}

// addClear blanks the panel and restores the brightness.
func addClear(s *sequence, d display.Display, waitMs int64) {
	s.add(waitMs, func() {
		d.Clear()
		d.Show()
		d.RestoreBrightness()
	})
}

// wordSequence spells text letter by letter, each letter fading out.
// speed picks the hold time per letter, 0 (fastest) to 5.
func wordSequence(d display.Display, gen *idle.Generator, text string, speed int) *sequence {
	speed = max(0, min(speed, len(wordDelays)-1))
	s := &sequence{name: "word:" + text}
	addClear(s, d, 0)
	for i := 0; i < len(text); i++ {
		addChar(s, d, text[i], wordDelays[speed])
		addFadeOut(s, d)
		s.steps[len(s.steps)-1].waitMs += fadeSettle
	}
	addClear(s, d, 0)
	s.add(0, gen.ResetText)
	return s
}

// charSequence fades out whatever is shown and then shows ch until the
// next sequence replaces it.
func charSequence(d display.Display, ch byte) *sequence {
	s := &sequence{name: "char:" + string(ch)}
	addFadeOut(s, d)
	addClear(s, d, fadeSettle)
	addChar(s, d, ch, 0)
	return s
}

// startupQ is the bar height pattern the startup shrink starts from.
var startupQ = [display.Bars]int{27, 26, 20, 27, 20, 25, 28, 20, 25, 28}

// startupSequence draws a growing center line, fills the panel from the
// middle and lets it sink like the idle pattern.
func startupSequence(d display.Display, gen *idle.Generator) *sequence {
	const mid = 10
	bri := d.Brightness()
	s := &sequence{name: "startup"}

	s.add(0, func() {
		d.Clear()
		d.Show()
		d.SetBrightnessDirect(0)
	})
	for i := 0; i < 5; i++ {
		s.add(int64(20-i*2), func() {
			d.DrawDot(4-i, mid)
			d.DrawDot(5+i, mid)
			d.Show()
			if lvl := (i + 1) * 2; bri >= lvl {
				d.SetBrightnessDirect(lvl)
			}
		})
	}
	s.add(50, func() {
		if bri >= 12 {
			d.SetBrightnessDirect(12)
		}
	})
	s.add(0, d.RestoreBrightness)
	for i := 0; i < mid; i++ {
		s.add(int64(30-i*2), func() {
			for bar := 0; bar < display.Bars; bar++ {
				d.DrawBar(bar, mid-i, mid+i)
			}
			d.Show()
		})
	}

	w := startupQ
	s.add(0, func() { gen.ResetHeights(0) })
	for i := 0; i < 28/2; i++ {
		s.add(10, func() {
			for bar := range w {
				d.DrawBarWithHeight(bar, w[bar])
				if w[bar] >= 2 {
					w[bar] -= 2
				}
			}
			d.Show()
		})
	}
	s.add(0, func() {
		gen.SetBaseline(0)
		gen.Kick()
	})
	return s
}
