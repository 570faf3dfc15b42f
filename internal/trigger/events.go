package trigger

import (
	"fmt"

	"sidcontrol/internal/bttfn"
	"sidcontrol/internal/travel"
)

// ============================================================================
// Events (inputs)
// ============================================================================

// Event is an input queued for the next tick.
type Event interface {
	eventMarker()
}

// ButtonLevel is a raw level change of the button input.
type ButtonLevel struct {
	Active bool `json:"active"`
}

func (ButtonLevel) eventMarker() {}

// ButtonPressed is an already-decoded short press.
type ButtonPressed struct{}

func (ButtonPressed) eventMarker() {}

// ButtonHeld is an already-decoded long hold.
type ButtonHeld struct{}

func (ButtonHeld) eventMarker() {}

// IRCode is a raw code from the IR receiver.
type IRCode struct {
	Code uint32 `json:"code"`
}

func (IRCode) eventMarker() {}

// IRKey is a key that has already been resolved.
type IRKey struct {
	Key Key `json:"key"`
}

func (IRKey) eventMarker() {}

// TimeTravel requests a standalone session from a local source.
type TimeTravel struct {
	Origin travel.Origin `json:"origin"`
}

func (TimeTravel) eventMarker() {}

// Notification is a command received from the network peer.
type Notification struct {
	Command bttfn.Command `json:"command"`
	LeadMs  int           `json:"lead_ms,omitempty"`
}

func (Notification) eventMarker() {}

// ============================================================================
// Actions (outputs)
// ============================================================================

// Action is a decision for the controller to carry out.
type Action interface {
	actionMarker()
	String() string
}

// StartTravel starts a session.
type StartTravel struct {
	Origin travel.Origin
	Sync   travel.SyncMode
	LeadMs int
}

func (StartTravel) actionMarker() {}
func (a StartTravel) String() string {
	return fmt.Sprintf("StartTravel(origin=%s, sync=%s, lead_ms=%d)", a.Origin, a.Sync, a.LeadMs)
}

// TriggerDropped reports a trigger that was not accepted.
type TriggerDropped struct {
	Origin travel.Origin
	Reason string
}

func (TriggerDropped) actionMarker() {}
func (a TriggerDropped) String() string {
	return fmt.Sprintf("TriggerDropped(origin=%s, reason=%s)", a.Origin, a.Reason)
}

// EndScreenSaver wakes the display.
type EndScreenSaver struct{}

func (EndScreenSaver) actionMarker()  {}
func (EndScreenSaver) String() string { return "EndScreenSaver()" }

// RefreshActivity restarts the screen saver timer.
type RefreshActivity struct{}

func (RefreshActivity) actionMarker()  {}
func (RefreshActivity) String() string { return "RefreshActivity()" }

// Indicator switches the feedback lamp.
type Indicator struct {
	On bool
}

func (Indicator) actionMarker()    {}
func (a Indicator) String() string { return fmt.Sprintf("Indicator(on=%t)", a.On) }

// StartLearning begins IR learning; the first key to learn is Key0.
type StartLearning struct{}

func (StartLearning) actionMarker()  {}
func (StartLearning) String() string { return "StartLearning()" }

// LearningNext asks for the next key.
type LearningNext struct {
	Key Key
}

func (LearningNext) actionMarker()    {}
func (a LearningNext) String() string { return fmt.Sprintf("LearningNext(key=%s)", a.Key) }

// LearningFinished carries the complete set of learned codes.
type LearningFinished struct {
	Codes [NumKeys]uint32
}

func (LearningFinished) actionMarker()  {}
func (LearningFinished) String() string { return "LearningFinished()" }

// LearningEnded reports learning stopped without completing; the previous
// learned codes are back in place.
type LearningEnded struct {
	Reason string
}

func (LearningEnded) actionMarker()    {}
func (a LearningEnded) String() string { return fmt.Sprintf("LearningEnded(reason=%s)", a.Reason) }

// SetIdleMode selects an idle pattern.
type SetIdleMode struct {
	Mode int
}

func (SetIdleMode) actionMarker()    {}
func (a SetIdleMode) String() string { return fmt.Sprintf("SetIdleMode(mode=%d)", a.Mode) }

// ModeRequest names an exclusive display mode.
type ModeRequest int

const (
	ModeIdle ModeRequest = iota
	ModeSpectrum
	ModeGameA
	ModeGameB
)

func (m ModeRequest) String() string {
	switch m {
	case ModeIdle:
		return "idle"
	case ModeSpectrum:
		return "spectrum"
	case ModeGameA:
		return "game_a"
	case ModeGameB:
		return "game_b"
	default:
		return "unknown"
	}
}

// SwitchMode changes the exclusive display mode.
type SwitchMode struct {
	Mode ModeRequest
}

func (SwitchMode) actionMarker()    {}
func (a SwitchMode) String() string { return fmt.Sprintf("SwitchMode(mode=%s)", a.Mode) }

// AdjustBrightness changes the configured brightness by Delta.
type AdjustBrightness struct {
	Delta int
}

func (AdjustBrightness) actionMarker()    {}
func (a AdjustBrightness) String() string { return fmt.Sprintf("AdjustBrightness(delta=%d)", a.Delta) }

// GameKey forwards a key to the running game.
type GameKey struct {
	Key Key
}

func (GameKey) actionMarker()    {}
func (a GameKey) String() string { return fmt.Sprintf("GameKey(key=%s)", a.Key) }

// GameQuit stops the running game.
type GameQuit struct{}

func (GameQuit) actionMarker()  {}
func (GameQuit) String() string { return "GameQuit()" }

// TogglePeaks toggles the analyzer's peak dots.
type TogglePeaks struct{}

func (TogglePeaks) actionMarker()  {}
func (TogglePeaks) String() string { return "TogglePeaks()" }

// SetIRLock reports the new IR lock state.
type SetIRLock struct {
	Locked bool
}

func (SetIRLock) actionMarker()    {}
func (a SetIRLock) String() string { return fmt.Sprintf("SetIRLock(locked=%t)", a.Locked) }

// ShowIP shows the host address on the panel.
type ShowIP struct{}

func (ShowIP) actionMarker()  {}
func (ShowIP) String() string { return "ShowIP()" }

// ClearLearnedKeys reports that the learned codes were deleted.
type ClearLearnedKeys struct{}

func (ClearLearnedKeys) actionMarker()  {}
func (ClearLearnedKeys) String() string { return "ClearLearnedKeys()" }

// Restart asks the process to restart.
type Restart struct{}

func (Restart) actionMarker()  {}
func (Restart) String() string { return "Restart()" }

// BadInput reports an unknown code-entry command.
type BadInput struct {
	Input string
}

func (BadInput) actionMarker()    {}
func (a BadInput) String() string { return fmt.Sprintf("BadInput(input=%q)", a.Input) }

// Prepare is the peer's early warning of a session.
type Prepare struct{}

func (Prepare) actionMarker()  {}
func (Prepare) String() string { return "Prepare()" }

// Alarm is the peer's alarm signal.
type Alarm struct{}

func (Alarm) actionMarker()  {}
func (Alarm) String() string { return "Alarm()" }

// Reentry ends the tunnel of a peer-driven session.
type Reentry struct{}

func (Reentry) actionMarker()  {}
func (Reentry) String() string { return "Reentry()" }

// Abort cancels a peer-driven session.
type Abort struct{}

func (Abort) actionMarker()  {}
func (Abort) String() string { return "Abort()" }
