package controller

import (
	"errors"
	"testing"

	"sidcontrol/internal/bttfn"
	"sidcontrol/internal/display"
	"sidcontrol/internal/rng"
	"sidcontrol/internal/settings"
	"sidcontrol/internal/spectrum"
	"sidcontrol/internal/travel"
	"sidcontrol/internal/trigger"
)

// ============================================================================
// Fakes
// ============================================================================

type fakeLink struct {
	state bttfn.LinkState
	notes []bttfn.Notification
}

func (l *fakeLink) Link() bttfn.LinkState { return l.state }

func (l *fakeLink) Poll(now int64) []bttfn.Notification {
	n := l.notes
	l.notes = nil
	return n
}

func (l *fakeLink) update(fn func(*bttfn.LinkState)) {
	fn(&l.state)
	l.state.Updates++
}

func (l *fakeLink) notify(cmd bttfn.Command, leadMs int) {
	l.notes = append(l.notes, bttfn.Notification{Command: cmd, LeadMs: leadMs})
}

type fakeStore struct {
	saves []settings.State
	err   error
}

func (s *fakeStore) Save(st settings.State) error {
	s.saves = append(s.saves, st)
	return s.err
}

type fakeGame struct {
	active  bool
	started int
	stopped int
	inputs  []trigger.Key
	ticks   int
}

func (g *fakeGame) Title() string       { return "GAME" }
func (g *fakeGame) Active() bool        { return g.active }
func (g *fakeGame) Start(int64)         { g.active = true; g.started++ }
func (g *fakeGame) Stop()               { g.active = false; g.stopped++ }
func (g *fakeGame) Input(k trigger.Key) { g.inputs = append(g.inputs, k) }
func (g *fakeGame) Tick(int64)          { g.ticks++ }

// ============================================================================
// Harness
// ============================================================================

type harness struct {
	t       *testing.T
	frame   *display.Frame
	c       *Controller
	link    *fakeLink
	store   *fakeStore
	game    *fakeGame
	now     int64
	phases  []travel.PhaseChange
	dropped []string
	restart bool
}

func newHarness(t *testing.T, opts Options, configure func(*Config)) *harness {
	t.Helper()
	h := &harness{
		t:     t,
		frame: display.NewFrame(nil),
		link:  &fakeLink{state: bttfn.LinkState{Speed: -1}},
		store: &fakeStore{},
		game:  &fakeGame{},
	}
	cfg := Config{
		Display:  h.frame,
		Rand:     rng.New(7),
		GameA:    h.game,
		Link:     h.link,
		Store:    h.store,
		Settings: settings.Default(),
		Options:  opts,
		Hooks: Hooks{
			OnPhase: func(pc travel.PhaseChange) { h.phases = append(h.phases, pc) },
			OnDropped: func(_ travel.Origin, reason string) {
				h.dropped = append(h.dropped, reason)
			},
			OnRestart: func() { h.restart = true },
			IPAddress: func() string { return "10.0.0.7" },
		},
	}
	if configure != nil {
		configure(&cfg)
	}
	h.c = New(cfg)
	h.c.Tick(0)
	return h
}

// advance ticks the controller every 5ms for ms milliseconds.
func (h *harness) advance(ms int64) {
	end := h.now + ms
	for h.now < end {
		h.now += 5
		h.c.Tick(h.now)
	}
}

func (h *harness) keys(ks ...trigger.Key) {
	for _, k := range ks {
		h.c.Push(trigger.IRKey{Key: k})
		h.advance(10)
	}
}

func (h *harness) booted() *harness {
	h.advance(1000)
	if h.c.seq != nil {
		h.t.Fatalf("startup sequence still running at %d", h.now)
	}
	return h
}

// ============================================================================
// Boot
// ============================================================================

func TestBoot_PlaysStartupThenIdles(t *testing.T) {
	h := newHarness(t, Options{}, nil)
	if h.c.seq == nil || h.c.seq.name != "startup" {
		t.Fatalf("no startup sequence at boot")
	}
	h.booted()
	seq := h.frame.Snapshot().Seq
	h.advance(2000)
	if h.frame.Snapshot().Seq == seq {
		t.Fatalf("idle animation did not draw")
	}
	if !h.frame.IsOn() || !h.c.Status().PowerOn {
		t.Fatalf("unit not powered after boot")
	}
}

func TestBoot_WaitsForPeerPowerOn(t *testing.T) {
	h := newHarness(t, Options{FollowFakePower: true, WaitForFakePowerOn: true}, nil)
	h.advance(1000)
	if h.frame.IsOn() || h.c.Status().PowerOn {
		t.Fatalf("unit lit before peer power on")
	}
	h.link.update(func(ls *bttfn.LinkState) { ls.FakePowerOff = false })
	h.advance(10)
	if !h.frame.IsOn() || h.c.seq == nil || h.c.seq.name != "startup" {
		t.Fatalf("peer power on did not start the unit")
	}
}

// ============================================================================
// Time travel
// ============================================================================

func TestButtonPress_RunsStandaloneSession(t *testing.T) {
	h := newHarness(t, Options{}, nil).booted()
	h.c.Push(trigger.ButtonPressed{})
	h.advance(5)

	s, ok := h.c.Engine().Session()
	if !ok || s.Origin != travel.OriginButton || s.Sync != travel.Standalone {
		t.Fatalf("session = %+v, %t", s, ok)
	}
	if st := h.c.Status(); st.Phase != "accelerating" || st.Session == nil {
		t.Fatalf("status = %+v", st)
	}

	h.advance(12000)
	if h.c.Engine().Active() {
		t.Fatalf("session still running in %s", h.c.Engine().Phase())
	}
	last := h.phases[len(h.phases)-1]
	if last.To != travel.PhaseIdle || last.Aborted {
		t.Fatalf("last transition %+v", last)
	}
}

func TestSecondTrigger_DroppedWhileBusy(t *testing.T) {
	h := newHarness(t, Options{}, nil).booted()
	h.c.Push(trigger.ButtonPressed{})
	h.advance(5)
	h.c.Push(trigger.TimeTravel{Origin: travel.OriginIPC})
	h.advance(5)
	if len(h.dropped) != 1 || h.dropped[0] != trigger.ReasonBusy {
		t.Fatalf("dropped = %v", h.dropped)
	}
}

func TestPeerNotification_StartsSyncedSessionAndAborts(t *testing.T) {
	h := newHarness(t, Options{}, nil).booted()
	h.link.notify(bttfn.CmdTimeTravel, 3000)
	h.advance(10)

	s, ok := h.c.Engine().Session()
	if !ok || s.Origin != travel.OriginNetwork || s.Sync != travel.NetworkSynced || s.LeadMs != 3000 {
		t.Fatalf("session = %+v, %t", s, ok)
	}

	h.link.notify(bttfn.CmdAbort, 0)
	h.advance(15)
	if h.c.Engine().Active() {
		t.Fatalf("abort ignored")
	}
	if last := h.phases[len(h.phases)-1]; !last.Aborted {
		t.Fatalf("last transition not marked aborted: %+v", last)
	}
}

func TestPeerLinkLost_NetworkTunnelStillEnds(t *testing.T) {
	h := newHarness(t, Options{}, nil).booted()
	h.link.update(func(ls *bttfn.LinkState) { ls.LastInbound = h.now })
	h.link.notify(bttfn.CmdTimeTravel, 3000)
	h.advance(10)
	h.advance(3100)
	if p := h.c.Engine().Phase(); p != travel.PhaseTunnel {
		t.Fatalf("phase = %s, want tunnel", p)
	}

	// The peer goes silent before sending reentry.
	h.link.update(func(ls *bttfn.LinkState) {
		ls.LastInbound = 0
		ls.Speed = -1
	})
	h.advance(4000)
	if p := h.c.Engine().Phase(); p != travel.PhaseTunnel {
		t.Fatalf("tunnel ended early: %s", p)
	}
	h.advance(1000)
	if h.c.Engine().Active() {
		t.Fatalf("session stuck in %s after link loss", h.c.Engine().Phase())
	}

	h.c.Push(trigger.ButtonPressed{})
	h.advance(5)
	if s, ok := h.c.Engine().Session(); !ok || s.Origin != travel.OriginButton {
		t.Fatalf("next trigger did not start a session: %+v, %t", s, ok)
	}
	if len(h.dropped) != 0 {
		t.Fatalf("dropped = %v", h.dropped)
	}
}

func TestTravel_StopsGame(t *testing.T) {
	h := newHarness(t, Options{}, nil).booted()
	h.keys(trigger.KeyStar, trigger.Key0, trigger.Key2, trigger.KeyOK)
	if h.c.Mode() != ModeGameA {
		t.Fatalf("mode = %s", h.c.Mode())
	}
	h.c.Push(trigger.ButtonPressed{})
	h.advance(5)
	if h.c.Mode() != ModeIdle || h.game.stopped != 1 || !h.c.Engine().Active() {
		t.Fatalf("mode %s, stopped %d, active %t", h.c.Mode(), h.game.stopped, h.c.Engine().Active())
	}
}

func TestSpectrumMode_TravelUsesAmplification(t *testing.T) {
	h := newHarness(t, Options{}, func(cfg *Config) {
		cfg.Analyzer = spectrum.New(cfg.Display, spectrum.NewNoiseSource(rng.New(3)))
	}).booted()
	h.keys(trigger.KeyStar, trigger.Key0, trigger.Key1, trigger.KeyOK)
	if h.c.Mode() != ModeSpectrum {
		t.Fatalf("mode = %s", h.c.Mode())
	}
	h.c.Push(trigger.ButtonPressed{})
	h.advance(5)
	s, ok := h.c.Engine().Session()
	if !ok || !s.AmpMode {
		t.Fatalf("session = %+v, %t", s, ok)
	}
}

// ============================================================================
// Remote
// ============================================================================

func TestCodeEntry_IdlePatternSavedAfterDelay(t *testing.T) {
	h := newHarness(t, Options{}, nil).booted()
	h.keys(trigger.KeyStar, trigger.Key2, trigger.KeyOK)
	if h.c.Idle().Mode() != 2 {
		t.Fatalf("idle pattern %d", h.c.Idle().Mode())
	}
	h.advance(9000)
	if len(h.store.saves) != 0 {
		t.Fatalf("saved before the delay")
	}
	h.advance(1100)
	if len(h.store.saves) != 1 || h.store.saves[0].IdleMode != 2 {
		t.Fatalf("saves = %+v", h.store.saves)
	}
}

func TestSave_WaitsForSessionEnd(t *testing.T) {
	h := newHarness(t, Options{}, nil).booted()
	h.keys(trigger.KeyDown)
	// A peer session stays in the tunnel until the peer ends it.
	h.link.notify(bttfn.CmdTimeTravel, 5000)
	h.advance(11000)
	if h.c.Engine().Phase() != travel.PhaseTunnel {
		t.Fatalf("phase %s", h.c.Engine().Phase())
	}
	if len(h.store.saves) != 0 {
		t.Fatalf("saved during a session")
	}
	h.link.notify(bttfn.CmdReentry, 0)
	h.advance(100)
	if h.c.Engine().Active() {
		t.Fatalf("reentry ignored")
	}
	if len(h.store.saves) != 1 || h.store.saves[0].Brightness != 14 {
		t.Fatalf("saves = %+v", h.store.saves)
	}
}

func TestSave_ErrorIsNotFatal(t *testing.T) {
	h := newHarness(t, Options{}, nil).booted()
	h.store.err = errors.New("disk full")
	h.keys(trigger.KeyUp)
	h.keys(trigger.KeyDown)
	h.advance(10100)
	if len(h.store.saves) != 1 {
		t.Fatalf("saves = %d", len(h.store.saves))
	}
	if h.c.dirty {
		t.Fatalf("failed save retried in a loop")
	}
}

func TestFlush_WritesPendingChanges(t *testing.T) {
	h := newHarness(t, Options{}, nil).booted()
	h.c.Flush()
	if len(h.store.saves) != 0 {
		t.Fatalf("flush saved without changes")
	}
	h.keys(trigger.KeyDown)
	h.c.Flush()
	if len(h.store.saves) != 1 || h.store.saves[0].Brightness != 14 {
		t.Fatalf("saves = %+v", h.store.saves)
	}
	h.advance(11000)
	if len(h.store.saves) != 1 {
		t.Fatalf("debounced save repeated after flush")
	}
}

func TestBrightnessKeys(t *testing.T) {
	h := newHarness(t, Options{}, nil).booted()
	h.keys(trigger.KeyDown, trigger.KeyDown)
	if b := h.frame.Brightness(); b != display.MaxBrightness-2 {
		t.Fatalf("brightness %d", b)
	}
	if h.c.Settings().Brightness != display.MaxBrightness-2 {
		t.Fatalf("settings brightness %d", h.c.Settings().Brightness)
	}
}

func TestGame_KeysAndQuit(t *testing.T) {
	h := newHarness(t, Options{}, nil).booted()
	h.keys(trigger.KeyStar, trigger.Key0, trigger.Key2, trigger.KeyOK)
	if h.game.started != 1 || h.c.seq == nil {
		t.Fatalf("game not started with a title")
	}
	h.advance(3000)
	if h.game.ticks == 0 {
		t.Fatalf("game not ticked after its title")
	}
	h.keys(trigger.Key3, trigger.KeyLeft)
	if len(h.game.inputs) != 2 || h.game.inputs[0] != trigger.Key3 {
		t.Fatalf("inputs = %v", h.game.inputs)
	}
	h.keys(trigger.Key1)
	if h.c.Mode() != ModeIdle || h.game.stopped != 1 {
		t.Fatalf("quit: mode %s, stopped %d", h.c.Mode(), h.game.stopped)
	}
}

func TestShowIP_PlaysAddress(t *testing.T) {
	h := newHarness(t, Options{}, nil).booted()
	h.keys(trigger.KeyStar, trigger.Key9, trigger.Key0, trigger.KeyOK)
	if h.c.seq == nil || h.c.seq.name != "word:10.0.0.7" {
		t.Fatalf("sequence %+v", h.c.seq)
	}
}

func TestRestartCode(t *testing.T) {
	h := newHarness(t, Options{}, nil).booted()
	h.keys(trigger.KeyStar, trigger.Key6, trigger.Key4, trigger.Key7, trigger.Key3, trigger.Key8, trigger.KeyOK)
	if !h.restart {
		t.Fatalf("restart hook not called")
	}
}

func TestLearning_SavesCodesImmediately(t *testing.T) {
	h := newHarness(t, Options{}, nil).booted()
	h.c.Push(trigger.ButtonHeld{})
	h.advance(5)
	if !h.c.Status().Learning {
		t.Fatalf("learning not started")
	}
	h.advance(3000)
	for i := 0; i < trigger.NumKeys; i++ {
		h.c.Push(trigger.IRCode{Code: uint32(0x100 + i)})
		h.advance(20)
	}
	if h.c.Status().Learning {
		t.Fatalf("learning still active")
	}
	if len(h.store.saves) != 1 {
		t.Fatalf("saves = %d", len(h.store.saves))
	}
	got := h.store.saves[0].LearnedKeys
	if got[0] != 0x100 || got[trigger.NumKeys-1] != 0x110 {
		t.Fatalf("learned = %x", got)
	}
	if h.c.seq == nil || h.c.seq.name != "done+word:DONE" {
		t.Fatalf("sequence %+v", h.c.seq)
	}
}

// ============================================================================
// Screen saver and peer following
// ============================================================================

func TestScreenSaver_FirstKeyOnlyWakes(t *testing.T) {
	h := newHarness(t, Options{ScreenSaverMin: 1}, nil).booted()
	h.advance(60 * 1000)
	if h.frame.IsOn() {
		t.Fatalf("screen saver did not start")
	}
	h.keys(trigger.Key0)
	if !h.frame.IsOn() {
		t.Fatalf("key did not wake the panel")
	}
	if h.c.Engine().Active() {
		t.Fatalf("waking key also started a session")
	}
}

func TestNightMode_ShortensScreenSaver(t *testing.T) {
	h := newHarness(t, Options{FollowNightMode: true}, nil).booted()
	h.link.update(func(ls *bttfn.LinkState) { ls.NightMode = true })
	h.advance(10 * 1000)
	if h.frame.IsOn() {
		t.Fatalf("night mode screen saver did not start")
	}
	h.link.update(func(ls *bttfn.LinkState) { ls.NightMode = false })
	h.advance(10)
	if !h.frame.IsOn() {
		t.Fatalf("leaving night mode did not wake the panel")
	}
	h.advance(20 * 1000)
	if !h.frame.IsOn() {
		t.Fatalf("screen saver ran with a zero delay")
	}
}

func TestFakePower_DarkensAndRestoresSpectrum(t *testing.T) {
	h := newHarness(t, Options{FollowFakePower: true}, func(cfg *Config) {
		cfg.Analyzer = spectrum.New(cfg.Display, spectrum.Silence{})
	}).booted()
	h.keys(trigger.KeyStar, trigger.Key0, trigger.Key1, trigger.KeyOK)

	h.link.update(func(ls *bttfn.LinkState) { ls.FakePowerOff = true })
	h.advance(10)
	if h.frame.IsOn() || h.c.Status().PowerOn || h.c.Mode() != ModeIdle {
		t.Fatalf("fake power off ignored")
	}

	h.link.notify(bttfn.CmdTimeTravel, 5000)
	h.advance(10)
	if h.c.Engine().Active() {
		t.Fatalf("session started while powered off")
	}
	if len(h.dropped) != 1 || h.dropped[0] != trigger.ReasonPowerOff {
		t.Fatalf("dropped = %v", h.dropped)
	}

	h.link.update(func(ls *bttfn.LinkState) { ls.FakePowerOff = false })
	h.advance(10)
	if !h.frame.IsOn() || h.c.Mode() != ModeSpectrum {
		t.Fatalf("power on: lit %t, mode %s", h.frame.IsOn(), h.c.Mode())
	}
}

func TestFakePower_CancelsSession(t *testing.T) {
	h := newHarness(t, Options{FollowFakePower: true}, nil).booted()
	h.c.Push(trigger.ButtonPressed{})
	h.advance(5)
	h.link.update(func(ls *bttfn.LinkState) { ls.FakePowerOff = true })
	h.advance(5)
	if h.c.Engine().Active() {
		t.Fatalf("session survived power off")
	}
}

func TestPeerAlarm_PlaysWordWhenIdle(t *testing.T) {
	h := newHarness(t, Options{}, nil).booted()
	h.link.notify(bttfn.CmdAlarm, 0)
	h.advance(15)
	if h.c.seq == nil || h.c.seq.name != "word:ALARM" {
		t.Fatalf("sequence %+v", h.c.seq)
	}
}

func TestPeerPrepare_WakesAndStopsGame(t *testing.T) {
	h := newHarness(t, Options{ScreenSaverMin: 1}, nil).booted()
	h.advance(60 * 1000)
	if h.frame.IsOn() {
		t.Fatalf("screen saver did not start")
	}
	h.link.notify(bttfn.CmdPrepare, 0)
	h.advance(15)
	if !h.frame.IsOn() || h.c.Status().ScreenSaver {
		t.Fatalf("prepare did not wake the panel")
	}

	h.keys(trigger.KeyStar, trigger.Key0, trigger.Key2, trigger.KeyOK)
	if h.c.Mode() != ModeGameA {
		t.Fatalf("mode = %s", h.c.Mode())
	}
	h.link.notify(bttfn.CmdPrepare, 0)
	h.advance(15)
	if h.c.Mode() != ModeIdle || h.game.stopped != 1 || h.c.Engine().Active() {
		t.Fatalf("prepare: mode %s, stopped %d, active %t", h.c.Mode(), h.game.stopped, h.c.Engine().Active())
	}
}

func TestPeerSpeed_ReachesIdle(t *testing.T) {
	h := newHarness(t, Options{UsePeerSpeed: true}, nil).booted()
	h.link.update(func(ls *bttfn.LinkState) { ls.Speed = 88 })
	h.advance(5)
	if !h.c.Idle().FollowingSpeed() {
		t.Fatalf("idle not following peer speed")
	}
	h.link.update(func(ls *bttfn.LinkState) { ls.Speed = -1 })
	h.advance(5)
	if h.c.Idle().FollowingSpeed() {
		t.Fatalf("idle still following after link loss")
	}
}

func TestSequence_StepsAndDone(t *testing.T) {
	var log []int
	done := false
	s := &sequence{done: func(int64) { done = true }}
	s.add(10, func() { log = append(log, 1) })
	s.add(0, func() { log = append(log, 2) })
	s.add(5, func() { log = append(log, 3) })

	if !s.tick(0) || len(log) != 1 {
		t.Fatalf("first tick: %v", log)
	}
	if !s.tick(10) || len(log) != 3 {
		t.Fatalf("zero waits should chain: %v", log)
	}
	if !s.tick(14) || done {
		t.Fatalf("finished before the last wait")
	}
	if s.tick(15) || !done {
		t.Fatalf("not finished after the last wait")
	}
}
