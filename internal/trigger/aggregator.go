// Package trigger collapses the button, the IR remote and network
// notifications into decisions for the controller: start a session, change
// a mode, adjust a setting. Inputs are queued and evaluated once per tick.
package trigger

import (
	"log/slog"
	"strconv"

	"sidcontrol/internal/bttfn"
	"sidcontrol/internal/travel"
)

const (
	feedbackMs       = 300
	inputExpireMs    = 30 * 1000
	maxInputDigits   = 6
	learnTimeoutMs   = 10 * 1000
	learnBlinkMs     = 200
	restartCode      = "64738"
	deleteLearnedKey = "654321"
)

// Drop reasons reported in TriggerDropped.
const (
	ReasonBusy     = "busy"
	ReasonLearning = "learning"
	ReasonWired    = "wired"
	ReasonPowerOff = "power_off"
)

// Status is the controller state the aggregator needs for arbitration.
type Status struct {
	SessionActive bool
	ScreenSaver   bool
	Spectrum      bool
	Game          bool
	PowerOff      bool
}

// Config configures an Aggregator.
type Config struct {
	// Wired means the button input is the companion's trigger line: presses
	// start synced sessions and IR learning is unavailable.
	Wired bool
	// Button overrides the timing picked from Wired.
	Button *ButtonConfig
	Keys   *KeyTable
	Logger *slog.Logger
}

// Aggregator owns input arbitration. It is driven from the controller
// goroutine and is not safe for concurrent use; other goroutines hand their
// events to the controller, which calls Push.
type Aggregator struct {
	wired  bool
	keys   *KeyTable
	btn    *button
	logger *slog.Logger

	queue []Event
	out   []Action

	// Set once a StartTravel has been emitted in the current tick.
	starting bool
	status   Status

	locked bool

	input      []byte
	recording  bool
	lastKey    int64
	feedback   bool
	feedbackAt int64

	learning   bool
	learnIdx   int
	learnAt    int64
	blinkAt    int64
	blink      bool
	learnSaved [NumKeys]uint32
}

// New returns an aggregator with an empty queue.
func New(cfg Config) *Aggregator {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	keys := cfg.Keys
	if keys == nil {
		keys = NewKeyTable()
	}
	bc := PhysicalButton
	if cfg.Wired {
		bc = WiredLine
	}
	if cfg.Button != nil {
		bc = *cfg.Button
	}
	return &Aggregator{
		wired:  cfg.Wired,
		keys:   keys,
		btn:    newButton(bc),
		logger: logger,
	}
}

// Push queues an event for the next Tick.
func (a *Aggregator) Push(ev Event) {
	a.queue = append(a.queue, ev)
}

// Pending returns the number of queued events.
func (a *Aggregator) Pending() int { return len(a.queue) }

// Keys returns the key table.
func (a *Aggregator) Keys() *KeyTable { return a.keys }

// Learning reports whether IR learning is in progress.
func (a *Aggregator) Learning() bool { return a.learning }

// Locked reports whether the IR remote is locked.
func (a *Aggregator) Locked() bool { return a.locked }

// SetLocked sets the IR lock, for example from persisted settings.
func (a *Aggregator) SetLocked(on bool) { a.locked = on }

// LineActive reports the debounced level of the button input.
func (a *Aggregator) LineActive() bool { return a.btn.active() }

// StopLearning abandons learning and restores the previous learned codes.
// It reports whether learning was active.
func (a *Aggregator) StopLearning() bool {
	if !a.learning {
		return false
	}
	a.endLearning(true)
	return true
}

// Reset drops queued input and transient state, as after a power cycle.
func (a *Aggregator) Reset() {
	a.queue = a.queue[:0]
	a.clearInput()
	a.feedback = false
	a.btn = newButton(a.btn.cfg)
}

func (a *Aggregator) emit(act Action) {
	a.out = append(a.out, act)
}

// ============================================================================
// Tick
// ============================================================================

// Tick evaluates timers and drains the queue. The returned actions are in
// the order they were decided; the slice is reused by the next call.
func (a *Aggregator) Tick(now int64, st Status) []Action {
	a.out = a.out[:0]
	a.status = st
	a.starting = false

	if now-a.lastKey >= inputExpireMs {
		a.clearInput()
	}

	if a.feedback && now-a.feedbackAt > feedbackMs {
		a.feedback = false
		a.emit(Indicator{On: false})
	}

	if a.learning {
		if now-a.blinkAt > learnBlinkMs {
			a.blink = !a.blink
			a.blinkAt = now
			a.emit(Indicator{On: !a.blink})
		}
		if now-a.learnAt > learnTimeoutMs {
			a.logger.Info("IR learning timed out", "key", Key(a.learnIdx).String())
			a.endLearning(true)
			a.emit(LearningEnded{Reason: "timeout"})
		}
	}

	queue := a.queue
	a.queue = nil
	for _, ev := range queue {
		a.handle(now, ev)
	}

	if !st.PowerOff {
		switch a.btn.poll(now) {
		case gesturePress:
			a.pressed(now)
		case gestureHold:
			a.held(now)
		}
	}

	return a.out
}

func (a *Aggregator) handle(now int64, ev Event) {
	switch e := ev.(type) {
	case ButtonLevel:
		a.btn.level(e.Active, now)

	case ButtonPressed:
		if a.status.PowerOff {
			return
		}
		a.pressed(now)

	case ButtonHeld:
		if a.status.PowerOff {
			return
		}
		a.held(now)

	case IRCode:
		if a.status.PowerOff {
			return
		}
		if a.learning {
			a.learn(now, e.Code)
			return
		}
		k, ok := a.keys.Lookup(e.Code)
		if !ok {
			a.logger.Debug("unknown IR code", "code", strconv.FormatUint(uint64(e.Code), 16))
			return
		}
		a.key(now, k)

	case IRKey:
		if a.status.PowerOff || a.learning {
			return
		}
		if e.Key < 0 || int(e.Key) >= NumKeys {
			return
		}
		a.key(now, e.Key)

	case TimeTravel:
		a.trigger(e.Origin, travel.Standalone, travel.DefaultLeadMs)

	case Notification:
		a.notification(e)

	default:
		a.logger.Warn("unhandled trigger event", "type", ev)
	}
}

// ============================================================================
// Arbitration
// ============================================================================

func (a *Aggregator) trigger(origin travel.Origin, sync travel.SyncMode, leadMs int) {
	reason := ""
	switch {
	case a.status.PowerOff:
		reason = ReasonPowerOff
	case a.status.SessionActive, a.starting:
		reason = ReasonBusy
	case a.learning:
		reason = ReasonLearning
	}
	if reason != "" {
		a.logger.Debug("trigger dropped", "origin", origin.String(), "reason", reason)
		a.emit(TriggerDropped{Origin: origin, Reason: reason})
		return
	}
	a.starting = true
	a.emit(StartTravel{Origin: origin, Sync: sync, LeadMs: leadMs})
}

func (a *Aggregator) pressed(now int64) {
	if a.wired {
		a.emit(EndScreenSaver{})
		a.trigger(travel.OriginWire, travel.NetworkSynced, travel.DefaultLeadMs)
		return
	}
	switch {
	case a.status.ScreenSaver:
		a.emit(EndScreenSaver{})
	case a.learning:
		a.logger.Info("IR learning aborted")
		a.endLearning(true)
		a.emit(LearningEnded{Reason: "aborted"})
	default:
		a.trigger(travel.OriginButton, travel.Standalone, travel.DefaultLeadMs)
	}
}

func (a *Aggregator) held(now int64) {
	if a.wired {
		return
	}
	a.emit(EndScreenSaver{})
	if a.status.SessionActive || a.starting || a.learning {
		return
	}
	a.learning = true
	a.learnIdx = 0
	a.learnAt = now
	a.blinkAt = now
	a.blink = false
	a.learnSaved = a.keys.Learned()
	a.logger.Info("IR learning started")
	a.emit(StartLearning{})
}

func (a *Aggregator) notification(n Notification) {
	switch n.Command {
	case bttfn.CmdPrepare:
		a.emit(Prepare{})
	case bttfn.CmdTimeTravel:
		if a.wired {
			a.emit(TriggerDropped{Origin: travel.OriginNetwork, Reason: ReasonWired})
			return
		}
		a.trigger(travel.OriginNetwork, travel.NetworkSynced, n.LeadMs)
	case bttfn.CmdReentry:
		if !a.wired {
			a.emit(Reentry{})
		}
	case bttfn.CmdAbort:
		if !a.wired {
			a.emit(Abort{})
		}
	case bttfn.CmdAlarm:
		a.emit(Alarm{})
	}
}

// ============================================================================
// IR learning
// ============================================================================

func (a *Aggregator) learn(now int64, code uint32) {
	a.keys.setCode(Key(a.learnIdx), colLearned, code)
	a.learnIdx++
	if a.learnIdx == NumKeys {
		a.learning = false
		a.emit(Indicator{On: false})
		a.logger.Info("IR learning complete")
		a.emit(LearningFinished{Codes: a.keys.Learned()})
		return
	}
	a.learnAt = now
	a.emit(LearningNext{Key: Key(a.learnIdx)})
}

func (a *Aggregator) endLearning(restore bool) {
	a.learning = false
	if restore {
		a.keys.SetLearned(a.learnSaved)
	}
	a.emit(Indicator{On: false})
}

// ============================================================================
// Remote keys
// ============================================================================

func (a *Aggregator) clearInput() {
	a.input = a.input[:0]
	a.recording = false
}

func (a *Aggregator) key(now int64, k Key) {
	st := a.status

	if st.ScreenSaver && (!a.locked || k == KeyHash) {
		a.emit(EndScreenSaver{})
		return
	}

	if !a.locked {
		a.emit(RefreshActivity{})
		a.feedback = true
		a.feedbackAt = now
		a.emit(Indicator{On: true})
	}
	a.lastKey = now

	if a.recording && k.IsDigit() {
		if len(a.input) < maxInputDigits {
			a.input = append(a.input, byte('0'+k))
		}
		return
	}

	switch k {
	case Key0:
		if a.locked {
			return
		}
		if st.Game {
			a.emit(GameKey{Key: k})
			return
		}
		a.trigger(travel.OriginIR, travel.Standalone, travel.DefaultLeadMs)

	case Key1:
		if !a.locked && st.Game {
			a.emit(GameQuit{})
		}

	case Key3, Key9, KeyLeft, KeyRight:
		if !a.locked && st.Game {
			a.emit(GameKey{Key: k})
		}

	case KeyUp, KeyDown:
		if a.locked {
			return
		}
		switch {
		case st.Game:
			a.emit(GameKey{Key: k})
		case st.Spectrum:
		case k == KeyUp:
			a.emit(AdjustBrightness{Delta: 1})
		default:
			a.emit(AdjustBrightness{Delta: -1})
		}

	case KeyStar:
		a.clearInput()
		a.recording = true

	case KeyHash:
		a.clearInput()

	case KeyOK:
		a.execute(now)
		a.clearInput()
	}
}

// execute runs the recorded code-entry command.
func (a *Aggregator) execute(now int64) {
	in := string(a.input)
	locked := a.locked
	session := a.status.SessionActive
	bad := false

	switch len(in) {
	case 1:
		if locked {
			break
		}
		if d := int(in[0] - '0'); d <= 4 {
			a.emit(SetIdleMode{Mode: d})
		} else {
			bad = true
		}

	case 2:
		if session {
			break
		}
		n, _ := strconv.Atoi(in)
		switch n {
		case 71:
			a.locked = !a.locked
			a.emit(SetIRLock{Locked: a.locked})
			if !a.locked {
				a.feedback = true
				a.feedbackAt = now
				a.emit(Indicator{On: true})
			}
		case 70:
		default:
			if locked {
				break
			}
			switch n {
			case 0:
				a.emit(SwitchMode{Mode: ModeIdle})
			case 1:
				a.emit(SwitchMode{Mode: ModeSpectrum})
			case 2:
				a.emit(SwitchMode{Mode: ModeGameA})
			case 3:
				a.emit(SwitchMode{Mode: ModeGameB})
			case 50:
				a.emit(TogglePeaks{})
			case 90:
				a.emit(ShowIP{})
			default:
				bad = true
			}
		}

	case 3:
		bad = !locked && !session

	case 5:
		if locked {
			break
		}
		if in == restartCode {
			a.emit(Restart{})
			return
		}
		bad = true

	case 6:
		if locked || session {
			break
		}
		if in == deleteLearnedKey {
			a.keys.ClearLearned()
			a.emit(ClearLearnedKeys{})
		} else {
			bad = true
		}

	default:
		bad = !locked
	}

	if bad && !session {
		a.emit(BadInput{Input: in})
	}
}
