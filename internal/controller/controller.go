// Package controller is the main loop of the prop. It owns the display and
// decides, tick by tick, whether the panel shows the idle animation, the
// spectrum analyzer, a game, a word sequence or a time travel.
package controller

import (
	"log/slog"

	"sidcontrol/internal/bttfn"
	"sidcontrol/internal/display"
	"sidcontrol/internal/idle"
	"sidcontrol/internal/rng"
	"sidcontrol/internal/settings"
	"sidcontrol/internal/travel"
	"sidcontrol/internal/trigger"
)

// Mode is the exclusive activity shown while no time travel runs.
type Mode int

const (
	ModeIdle Mode = iota
	ModeSpectrum
	ModeGameA
	ModeGameB
)

func (m Mode) String() string {
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

// Game is a remote-controlled pastime that takes over the panel.
type Game interface {
	// Title is shown as a word sequence before the game starts.
	Title() string
	Active() bool
	Start(now int64)
	Stop()
	Input(k trigger.Key)
	Tick(now int64)
}

// Analyzer is the spectrum analyzer as the controller sees it.
type Analyzer interface {
	travel.Analyzer
	Peaks() bool
	SetPeaks(on bool)
}

// Store persists settings.
type Store interface {
	Save(settings.State) error
}

// Link is the network peer client.
type Link interface {
	Link() bttfn.LinkState
	Poll(now int64) []bttfn.Notification
}

// Options are the behavior switches of the prop.
type Options struct {
	// Wired means the button input is the companion's trigger line.
	Wired bool
	// ScreenSaverMin darkens the panel after that many idle minutes; 0
	// disables the screen saver.
	ScreenSaverMin int
	// UsePeerSpeed makes the idle animation follow the peer's speed.
	UsePeerSpeed bool
	// FollowNightMode shortens the screen saver delay while the peer is in
	// night mode.
	FollowNightMode bool
	// FollowFakePower darkens the unit while the peer is fake-powered off.
	FollowFakePower bool
	// WaitForFakePowerOn keeps the unit dark at boot until the peer reports
	// power on. Only meaningful with FollowFakePower and a Link.
	WaitForFakePowerOn bool
}

// Hooks let the daemon observe the controller. All are optional and are
// called on the controller goroutine.
type Hooks struct {
	OnPhase   func(travel.PhaseChange)
	OnDropped func(origin travel.Origin, reason string)
	// OnRestart is called when the restart code is entered on the remote.
	OnRestart func()
	// IPAddress returns the address shown by the *90 command.
	IPAddress func() string
}

// Config wires a Controller.
type Config struct {
	Display display.Display
	Rand    rng.Source
	// Analyzer may be nil; spectrum mode is then unavailable.
	Analyzer Analyzer
	GameA    Game
	GameB    Game
	Keys     *trigger.KeyTable
	// Link may be nil for a unit without a network peer.
	Link Link
	// Store may be nil; settings are then kept in memory only.
	Store    Store
	Settings settings.State
	Options  Options
	Hooks    Hooks
	Logger   *slog.Logger
}

const (
	saveDelayMs      = 10 * 1000
	nightModeSaverMs = 10 * 1000
)

// Controller runs the prop. It is driven by Tick from a single goroutine;
// Push must be called from that goroutine too.
type Controller struct {
	disp   display.Display
	rnd    rng.Source
	gen    *idle.Generator
	eng    *travel.Engine
	agg    *trigger.Aggregator
	sa     Analyzer
	games  [2]Game
	link   Link
	store  Store
	opts   Options
	hooks  Hooks
	logger *slog.Logger

	booted  bool
	powerOn bool
	mode    Mode

	// Screen saver.
	saver       bool
	lastAct     int64
	saverDelay  int64
	saverConfig int64

	// Peer state, copied when the link reports news.
	linkUpdates  uint64
	linkInbound  int64
	nightMode    bool
	fakePowerOff bool
	// Spectrum mode was active when the peer powered us off.
	spectrumAtOff bool

	seq   *sequence
	alarm bool

	state   settings.State
	dirty   bool
	dirtyAt int64
}

// New returns a controller. Nothing is drawn until the first Tick.
func New(cfg Config) *Controller {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	keys := cfg.Keys
	if keys == nil {
		keys = trigger.NewKeyTable()
	}

	st := cfg.Settings
	st.Normalize()
	keys.SetLearned(st.LearnedKeys)

	c := &Controller{
		disp:   cfg.Display,
		rnd:    cfg.Rand,
		sa:     cfg.Analyzer,
		games:  [2]Game{cfg.GameA, cfg.GameB},
		link:   cfg.Link,
		store:  cfg.Store,
		opts:   cfg.Options,
		hooks:  cfg.Hooks,
		logger: logger,
		state:  st,
	}

	c.gen = idle.New(c.disp, c.rnd)
	c.gen.SetMode(st.IdleMode)
	c.gen.SetUsePeerSpeed(cfg.Options.UsePeerSpeed)

	c.agg = trigger.New(trigger.Config{
		Wired:  cfg.Options.Wired,
		Keys:   keys,
		Logger: logger,
	})
	c.agg.SetLocked(st.IRLocked)

	// The engine treats a nil interface as "no analyzer".
	var ta travel.Analyzer
	if c.sa != nil {
		ta = c.sa
		c.sa.SetPeaks(st.Peaks)
	}
	c.eng = travel.New(travel.Config{
		Display:    c.disp,
		Idle:       c.gen,
		Analyzer:   ta,
		Rand:       c.rnd,
		Logger:     logger,
		LineActive: c.agg.LineActive,
		OnPhase:    c.onPhase,
	})

	c.saverConfig = int64(cfg.Options.ScreenSaverMin) * 60 * 1000
	c.saverDelay = c.saverConfig

	c.disp.SetBrightness(st.Brightness)
	return c
}

// Push queues an input event for the next Tick.
func (c *Controller) Push(ev trigger.Event) { c.agg.Push(ev) }

// Engine returns the time travel engine.
func (c *Controller) Engine() *travel.Engine { return c.eng }

// Idle returns the idle animation generator.
func (c *Controller) Idle() *idle.Generator { return c.gen }

// Aggregator returns the input aggregator.
func (c *Controller) Aggregator() *trigger.Aggregator { return c.agg }

// Mode returns the current activity.
func (c *Controller) Mode() Mode { return c.mode }

// Settings returns the current persisted state, including unsaved changes.
func (c *Controller) Settings() settings.State { return c.state }

func (c *Controller) onPhase(pc travel.PhaseChange) {
	if c.hooks.OnPhase != nil {
		c.hooks.OnPhase(pc)
	}
}

// ============================================================================
// Status
// ============================================================================

// SessionStatus describes a running time travel.
type SessionStatus struct {
	ID     string `json:"id"`
	Origin string `json:"origin"`
	Sync   string `json:"sync"`
	LeadMs int    `json:"lead_ms"`
	Start  int64  `json:"start"`
}

// Status is a point-in-time view of the controller for status endpoints.
type Status struct {
	Mode        string           `json:"mode"`
	Phase       string           `json:"phase"`
	Session     *SessionStatus   `json:"session,omitempty"`
	PowerOn     bool             `json:"power_on"`
	ScreenSaver bool             `json:"screen_saver"`
	NightMode   bool             `json:"night_mode"`
	Learning    bool             `json:"learning"`
	IRLocked    bool             `json:"ir_locked"`
	Brightness  int              `json:"brightness"`
	IdlePattern int              `json:"idle_pattern"`
	Baseline    int              `json:"baseline"`
	Link        *bttfn.LinkState `json:"link,omitempty"`
}

// Status returns the current status.
func (c *Controller) Status() Status {
	st := Status{
		Mode:        c.mode.String(),
		Phase:       c.eng.Phase().String(),
		PowerOn:     c.powerOn,
		ScreenSaver: c.saver,
		NightMode:   c.nightMode,
		Learning:    c.agg.Learning(),
		IRLocked:    c.agg.Locked(),
		Brightness:  c.disp.Brightness(),
		IdlePattern: c.gen.Mode(),
		Baseline:    c.gen.Baseline(),
	}
	if s, ok := c.eng.Session(); ok {
		st.Session = &SessionStatus{
			ID:     s.ID,
			Origin: s.Origin.String(),
			Sync:   s.Sync.String(),
			LeadMs: s.LeadMs,
			Start:  s.Start,
		}
	}
	if c.link != nil {
		ls := c.link.Link()
		st.Link = &ls
	}
	return st
}
