// Package idle produces the resting animation of the panel: a baseline that
// wanders according to the selected idle pattern (or follows the peer's
// speed), rendered as ten jittered bars.
package idle

import (
	"sidcontrol/internal/display"
	"sidcontrol/internal/rng"
)

// Mode selects the idle pattern.
const (
	ModeDefault = 0
	ModePeaks   = 1
	ModeFast    = 2
	ModeFastPk  = 3
	ModeText    = 4

	NumModes = 5
)

const (
	speedUpdateMs    = 500
	textBarRefreshMs = 80
	maxSpeedJump     = 3
	defaultVariation = 20
	wideVariation    = 40
)

// Generator owns the idle baseline and the per-bar height cache.
//
// It is driven from the controller goroutine and is not safe for concurrent use.
type Generator struct {
	disp display.Display
	rnd  rng.Source

	baseline int
	heights  [display.Bars]int
	mode     int

	lastChange int64
	delay      int64
	// Mode 4 redraws bars every textBarRefreshMs but moves the baseline on
	// its own, slower schedule.
	lastBaseline  int64
	baselineDelay int64

	usePeerSpeed bool
	speed        int
	usingSpeed   bool

	text textOverlay
}

// New returns a generator at baseline 0 in the default mode.
func New(d display.Display, r rng.Source) *Generator {
	return &Generator{
		disp:          d,
		rnd:           r,
		speed:         -1,
		baselineDelay: int64(rng.Jitter(r, 800, 200)),
	}
}

// Baseline returns the current baseline.
func (g *Generator) Baseline() int { return g.baseline }

// SetBaseline forces the baseline, clamped to [0, MaxBaseline].
func (g *Generator) SetBaseline(b int) { g.baseline = clampBaseline(b) }

// Mode returns the idle pattern.
func (g *Generator) Mode() int { return g.mode }

// SetMode selects an idle pattern. Out-of-range values select the default.
func (g *Generator) SetMode(m int) {
	if m < 0 || m >= NumModes {
		m = ModeDefault
	}
	g.mode = m
}

// SetUsePeerSpeed enables following the peer's speed while it is known.
func (g *Generator) SetUsePeerSpeed(on bool) { g.usePeerSpeed = on }

// SetPeerSpeed stores the latest peer speed; -1 means unknown.
func (g *Generator) SetPeerSpeed(speed int) { g.speed = speed }

// FollowingSpeed reports whether the next step is driven by peer speed.
func (g *Generator) FollowingSpeed() bool { return g.usePeerSpeed && g.speed >= 0 }

// Kick makes the next Step run regardless of pacing.
func (g *Generator) Kick() { g.lastChange = -1 << 40 }

// ResetText rewinds the masked text overlay to its first character.
func (g *Generator) ResetText() { g.text = textOverlay{} }

// Step advances the idle animation when its pacing interval has passed.
//
// With freeze set the baseline stays where it is and only the bars jitter;
// the travel engine uses this while it waits for its first acceleration step.
func (g *Generator) Step(now int64, freeze bool) {
	old := g.baseline
	variation := defaultVariation
	var flags Flags

	// Re-rolled on every call; only mode 4 consults it.
	refresh := int64(rng.Jitter(g.rnd, 800, 200))

	if g.FollowingSpeed() {
		if now-g.lastChange < speedUpdateMs {
			return
		}
		g.usingSpeed = true
		g.lastChange = now

		if !freeze {
			b := g.speed*20/88 - 1
			if b > MaxBaseline {
				b = MaxBaseline
			}
			if abs(old-b) > maxSpeedJump {
				b = (b + old) / 2
			}
			g.baseline = b
		}
	} else {
		if now-g.lastChange < g.delay {
			return
		}
		g.lastChange = now

		switch g.mode {
		case ModePeaks, ModeFastPk:
			g.delay = g.pace(g.mode == ModeFastPk)
			if !freeze {
				switch {
				case g.baseline > 16, g.baseline > 12:
					g.baseline -= g.rnd.IntN(3) + 1
				case g.baseline < 3:
					g.baseline += g.rnd.IntN(3) + 2
				default:
					g.baseline += g.rnd.IntN(5) - 1
				}
				variation = wideVariation
			}

		case ModeText:
			g.delay = textBarRefreshMs
			flags |= FlagLetterMask | FlagSkipShow
			if now-g.lastBaseline < g.baselineDelay {
				flags |= FlagRepeat
			} else {
				if !freeze {
					switch {
					case g.baseline > 18:
						g.baseline -= g.rnd.IntN(3) + 1
					case g.baseline < 3:
						g.baseline += g.rnd.IntN(3) + 2
					default:
						g.baseline += g.rnd.IntN(5) - 1
					}
					variation = wideVariation
				}
				g.lastBaseline = now
				g.baselineDelay = refresh
			}

		default:
			g.delay = g.pace(g.mode == ModeFast)
			if !freeze {
				switch {
				case g.baseline > 14:
					g.baseline -= g.rnd.IntN(3) + 1
				case g.baseline > 8:
					g.baseline -= g.rnd.IntN(5) + 1
				case g.baseline < 3:
					g.baseline += g.rnd.IntN(3) + 2
				default:
					g.baseline += g.rnd.IntN(4) - 1
				}
			}
		}

		// Leaving speed-follow mode: avoid a jump on the first random step.
		if !freeze && g.usingSpeed {
			if abs(old-g.baseline) > maxSpeedJump {
				g.baseline = (g.baseline + old) / 2
			}
			g.usingSpeed = false
		}
	}

	g.baseline = clampBaseline(g.baseline)

	g.Render(variation, flags)

	if flags&FlagLetterMask != 0 {
		g.text.step(g.disp, now)
	}
	if flags&FlagSkipShow != 0 {
		g.disp.Show()
	}
}

func (g *Generator) pace(fast bool) int64 {
	if fast {
		return int64(rng.Jitter(g.rnd, 300, 200))
	}
	return int64(rng.Jitter(g.rnd, 800, 200))
}
