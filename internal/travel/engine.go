// Package travel runs the time-travel sequence: a session accelerates the
// bars (or the spectrum amplification) towards full scale, flickers through
// the tunnel and calms down again on reentry.
package travel

import (
	"log/slog"

	"github.com/google/uuid"

	"sidcontrol/internal/display"
	"sidcontrol/internal/idle"
	"sidcontrol/internal/rng"
)

// ============================================================================
// Types
// ============================================================================

// Phase is the engine state. Exactly one phase is active at a time.
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseAccelerating
	PhaseTunnel
	PhaseReentry
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseAccelerating:
		return "accelerating"
	case PhaseTunnel:
		return "tunnel"
	case PhaseReentry:
		return "reentry"
	default:
		return "unknown"
	}
}

// SyncMode says whether the session follows a peer's timing.
type SyncMode int

const (
	Standalone SyncMode = iota
	NetworkSynced
)

func (m SyncMode) String() string {
	if m == NetworkSynced {
		return "network"
	}
	return "standalone"
}

// Origin names the input that started a session.
type Origin int

const (
	OriginButton Origin = iota
	OriginIR
	// OriginNetwork is a BTTFN notification from the peer.
	OriginNetwork
	// OriginWire is the companion's trigger line wired to the button input.
	OriginWire
	OriginBus
	OriginIPC
)

func (o Origin) String() string {
	switch o {
	case OriginButton:
		return "button"
	case OriginIR:
		return "ir"
	case OriginNetwork:
		return "bttfn"
	case OriginWire:
		return "wire"
	case OriginBus:
		return "bus"
	case OriginIPC:
		return "ipc"
	default:
		return "unknown"
	}
}

// Analyzer is the spectrum analyzer as seen by the engine.
type Analyzer interface {
	Active() bool
	Activate()
	Deactivate()
	AmplificationFactor() int
	// SetAmplificationFactor sets the factor in percent and returns the
	// previous one.
	SetAmplificationFactor(pct int) int
	Tick(now int64)
}

// Session is one time-travel run, created when a trigger is accepted and
// dropped when the engine returns to idle.
type Session struct {
	ID     string
	Origin Origin
	Sync   SyncMode
	LeadMs int
	Start  int64

	// StepCounter counts down during acceleration and back up during
	// reentry in amplification mode.
	StepCounter  int
	StepInterval int64
	// AmpMode is set when the analyzer was showing at trigger time; the
	// session then scales its amplification instead of drawing bars.
	AmpMode bool

	phaseStart int64
	lastStep   int64
	delay      int64
	duration   int64
	rendered   int

	saStopped bool
	letters   bool

	clearBar  int
	clearInc  int
	sweeps    int
	flicker   bool
	glyph     int
	glyphNext bool
}

// PhaseChange is reported on every transition.
type PhaseChange struct {
	SessionID string
	From      Phase
	To        Phase
	At        int64
	Origin    Origin
	Sync      SyncMode
	Aborted   bool
}

// Config wires the engine to its collaborators.
type Config struct {
	Display display.Display
	Idle    *idle.Generator
	// Analyzer may be nil when no spectrum analyzer is present.
	Analyzer Analyzer
	Rand     rng.Source
	Logger   *slog.Logger
	// LineActive reports the level of the wired trigger line; a wired
	// session stays in the tunnel while it is true.
	LineActive func() bool
	// OnPhase, if set, is called for every transition.
	OnPhase func(PhaseChange)
}

const (
	// DefaultLeadMs is the acceleration time of a standalone session and the
	// lead assumed for a wired trigger.
	DefaultLeadMs = 5000
	// settleMs is the part of the lead used for acceleration steps.
	settleMs         = 2500
	tunnelMs         = 5000
	tunnelFirstMs    = 1000
	tunnelFirstSpan  = 200
	tunnelFlickerMs  = 100
	tunnelFlickerSpn = 100
	tunnelLettersMs  = 130
	reentryFirstMs   = 50
	reentryStepMs    = 400
	reentryStepSpan  = 100
	tunnelVariation  = 80
	neutralAmp       = 100
)

// Engine owns the phase machine. It is driven from the controller goroutine
// and is not safe for concurrent use.
type Engine struct {
	disp       display.Display
	gen        *idle.Generator
	sa         Analyzer
	rnd        rng.Source
	logger     *slog.Logger
	lineActive func() bool
	onPhase    func(PhaseChange)

	phase   Phase
	s       *Session
	reentry bool
	abort   bool
	// unsynced is set when the peer went away mid-session; the tunnel then
	// ends on its standalone timer.
	unsynced bool
}

// New returns an engine in PhaseIdle.
func New(cfg Config) *Engine {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	line := cfg.LineActive
	if line == nil {
		line = func() bool { return false }
	}
	return &Engine{
		disp:       cfg.Display,
		gen:        cfg.Idle,
		sa:         cfg.Analyzer,
		rnd:        cfg.Rand,
		logger:     logger,
		lineActive: line,
		onPhase:    cfg.OnPhase,
	}
}

// Phase returns the current phase.
func (e *Engine) Phase() Phase { return e.phase }

// Active reports whether a session is running.
func (e *Engine) Active() bool { return e.phase != PhaseIdle }

// Session returns a copy of the running session, or false when idle.
func (e *Engine) Session() (Session, bool) {
	if e.s == nil {
		return Session{}, false
	}
	return *e.s, true
}

func (e *Engine) analyzerActive() bool {
	return e.sa != nil && e.sa.Active()
}

// ============================================================================
// Triggers
// ============================================================================

// Start begins a session unless one is already running. leadMs is only used
// for NetworkSynced sessions; negative values count as zero.
func (e *Engine) Start(now int64, origin Origin, sync SyncMode, leadMs int) bool {
	if e.phase != PhaseIdle {
		return false
	}

	s := &Session{
		ID:         uuid.NewString(),
		Origin:     origin,
		Sync:       sync,
		LeadMs:     leadMs,
		Start:      now,
		phaseStart: now,
		lastStep:   now,
	}

	switch {
	case e.analyzerActive():
		s.AmpMode = true
		s.StepCounter = ampSteps
	default:
		s.StepCounter = stepsFor(e.gen.Baseline())
		s.letters = !e.gen.FollowingSpeed() && e.gen.Mode() == idle.ModeText
	}

	if sync == NetworkSynced {
		if leadMs < 0 {
			leadMs = 0
		}
		s.LeadMs = leadMs
		s.duration = int64(leadMs)
		if s.StepCounter > 0 && s.duration > settleMs {
			s.delay = s.duration - settleMs
		}
	} else {
		s.LeadMs = DefaultLeadMs
		s.duration = DefaultLeadMs
		s.delay = settleMs
	}
	if s.StepCounter > 0 {
		s.StepInterval = (s.duration - s.delay) / int64(s.StepCounter+1)
	}

	e.s = s
	e.reentry = false
	e.abort = false
	e.unsynced = false

	e.logger.Info("time travel started",
		"session", s.ID,
		"origin", origin.String(),
		"sync", sync.String(),
		"lead_ms", s.LeadMs,
		"steps", s.StepCounter,
		"amp_mode", s.AmpMode,
	)
	e.transition(now, PhaseAccelerating, false)
	return true
}

// Reentry ends the tunnel of a peer-driven session. It is ignored in any
// other state.
func (e *Engine) Reentry() bool {
	if e.phase != PhaseTunnel || e.s.Origin != OriginNetwork {
		return false
	}
	e.reentry = true
	return true
}

// Abort cancels a peer-driven session on the next Tick.
func (e *Engine) Abort() bool {
	if e.phase == PhaseIdle || e.s.Origin != OriginNetwork {
		return false
	}
	e.abort = true
	return true
}

// LinkLost detaches a peer-driven session from the peer. A reentry
// notification can no longer be relied on, so the tunnel ends after its
// standalone duration.
func (e *Engine) LinkLost() bool {
	if e.phase == PhaseIdle || e.s.Origin != OriginNetwork || e.unsynced {
		return false
	}
	e.unsynced = true
	e.logger.Info("time travel lost its peer", "session", e.s.ID, "phase", e.phase.String())
	return true
}

// Cancel ends any session at once, without drawing.
func (e *Engine) Cancel(now int64) {
	if e.phase == PhaseIdle {
		return
	}
	e.finish(now, true)
}

// ============================================================================
// Tick
// ============================================================================

// Tick advances the running session. It does nothing while idle.
func (e *Engine) Tick(now int64) {
	if e.phase == PhaseIdle {
		return
	}
	if e.abort {
		e.logger.Info("time travel aborted", "session", e.s.ID, "phase", e.phase.String())
		e.finish(now, true)
		return
	}

	switch e.phase {
	case PhaseAccelerating:
		e.accelerate(now)
	case PhaseTunnel:
		e.tunnel(now)
	case PhaseReentry:
		e.reenter(now)
	}
}

func (e *Engine) accelerate(now int64) {
	s := e.s

	if now-s.phaseStart >= s.duration {
		e.enterTunnel(now)
		return
	}

	if s.delay > 0 {
		if now-s.lastStep < s.delay {
			if s.AmpMode {
				e.sa.Tick(now)
			} else {
				e.gen.Step(now, true)
			}
			return
		}
		s.delay = 0
		s.lastStep = now
	} else if s.StepInterval > 0 && now-s.lastStep >= s.StepInterval {
		if s.StepCounter > 0 {
			s.StepCounter--
			if s.AmpMode {
				e.sa.SetAmplificationFactor(ampFactors[ampSteps-1-s.StepCounter])
			} else {
				e.drawSequence(sequenceLen - 1 - s.StepCounter)
			}
			s.rendered++
		}
		s.lastStep = now
	}

	if s.AmpMode {
		e.sa.Tick(now)
	}
}

func (e *Engine) drawSequence(row int) {
	for i, h := range accelSequence[row] {
		e.disp.DrawBarWithHeight(i, h)
	}
	e.disp.Show()
}

func (e *Engine) enterTunnel(now int64) {
	s := e.s

	if s.rendered == 0 {
		e.drawSequence(sequenceLen - 1)
	}
	if s.AmpMode && e.analyzerActive() {
		e.sa.Deactivate()
		s.saStopped = true
	}

	e.gen.SetBaseline(idle.MaxBaseline)
	s.clearBar = 0
	s.clearInc = 1
	s.sweeps = 0
	s.flicker = false
	s.glyph = 0
	s.glyphNext = false

	s.lastStep = now
	s.StepInterval = int64(rng.Jitter(e.rnd, tunnelFirstMs, tunnelFirstSpan))
	e.transition(now, PhaseTunnel, false)
}

func (e *Engine) tunnelDone(now int64) bool {
	s := e.s
	switch {
	case s.Origin == OriginNetwork:
		return e.reentry || (e.unsynced && now-s.phaseStart >= tunnelMs)
	case s.Origin == OriginWire:
		return !e.lineActive()
	default:
		return now-s.phaseStart >= tunnelMs
	}
}

func (e *Engine) tunnel(now int64) {
	s := e.s

	if e.tunnelDone(now) {
		e.disp.RestoreBrightness()
		s.StepInterval = reentryFirstMs
		s.lastStep = now
		e.transition(now, PhaseReentry, false)
		return
	}

	if s.StepInterval <= 0 || now-s.lastStep < s.StepInterval {
		return
	}
	if s.glyphNext {
		s.glyph++
		if s.glyph >= len(tunnelGlyphs) {
			s.glyph = 0
		}
	}
	e.drawTunnel()
	s.lastStep = now
	if s.letters {
		s.glyphNext = true
		s.StepInterval = tunnelLettersMs
	} else {
		s.StepInterval = int64(rng.Jitter(e.rnd, tunnelFlickerMs, tunnelFlickerSpn))
	}
}

// drawTunnel renders one tunnel frame: full-height jittered bars, then
// either a sweeping dark bar or a masked glyph, with random brightness once
// the sweep has been round once.
func (e *Engine) drawTunnel() {
	s := e.s
	e.gen.Render(tunnelVariation, idle.FlagTravel|idle.FlagSkipShow)

	if !s.letters {
		e.disp.ClearBar(s.clearBar)
		s.clearBar += s.clearInc
		if s.clearBar >= display.Bars {
			s.clearBar = display.Bars - 1
			s.clearInc = -1
		}
		if s.clearBar < 0 && s.clearInc < 0 {
			s.clearBar = 0
			s.clearInc = 1
			s.sweeps++
			s.flicker = true
		}
	}
	if s.flicker || s.letters {
		e.disp.SetBrightnessDirect(e.rnd.IntN(13) + 3)
	}
	if s.letters {
		e.disp.DrawLetterMask(tunnelGlyphs[s.glyph], 1, 11)
	}
	e.disp.Show()
}

func (e *Engine) reenter(now int64) {
	s := e.s

	if s.saStopped {
		e.sa.Activate()
		s.saStopped = false
	}
	if !e.analyzerActive() || e.sa.AmplificationFactor() <= neutralAmp {
		e.finish(now, false)
		return
	}

	if now-s.lastStep >= s.StepInterval {
		s.StepCounter++
		if s.StepCounter < ampSteps {
			e.sa.SetAmplificationFactor(ampFactors[ampSteps-1-s.StepCounter])
		} else {
			e.sa.SetAmplificationFactor(neutralAmp)
		}
		s.lastStep = now
		s.StepInterval = int64(rng.Jitter(e.rnd, reentryStepMs, reentryStepSpan))
	}
	e.sa.Tick(now)
}

// finish returns to idle. An aborted session also undoes whatever the
// session changed on the display and the analyzer.
func (e *Engine) finish(now int64, aborted bool) {
	s := e.s
	if aborted {
		e.disp.RestoreBrightness()
		if s.saStopped {
			e.sa.Activate()
			s.saStopped = false
		}
	}
	if e.sa != nil {
		e.sa.SetAmplificationFactor(neutralAmp)
	}
	e.gen.ResetText()
	e.transition(now, PhaseIdle, aborted)
	e.s = nil
	e.reentry = false
	e.abort = false
	e.unsynced = false
}

func (e *Engine) transition(now int64, to Phase, aborted bool) {
	from := e.phase
	e.phase = to
	s := e.s
	e.logger.Info("travel phase", "session", s.ID, "from", from.String(), "phase", to.String())
	if to != PhaseIdle {
		s.phaseStart = now
	}
	if e.onPhase != nil {
		e.onPhase(PhaseChange{
			SessionID: s.ID,
			From:      from,
			To:        to,
			At:        now,
			Origin:    s.Origin,
			Sync:      s.Sync,
			Aborted:   aborted,
		})
	}
}
