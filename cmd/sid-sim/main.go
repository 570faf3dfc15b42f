// sid-sim runs the prop controller in the terminal. The keyboard stands in
// for the time travel button, the IR remote and the network peer.
package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/pflag"

	"sidcontrol/internal/bttfn"
	"sidcontrol/internal/clock"
	"sidcontrol/internal/controller"
	"sidcontrol/internal/display"
	"sidcontrol/internal/games"
	"sidcontrol/internal/rng"
	"sidcontrol/internal/settings"
	"sidcontrol/internal/spectrum"
	"sidcontrol/internal/termview"
	"sidcontrol/internal/travel"
	"sidcontrol/internal/trigger"
)

const (
	tickInterval = 10 * time.Millisecond
	// leadMs is the lead time of a simulated peer time travel.
	leadMs    = 5000
	maxEvents = 6
)

func main() {
	var (
		seed    = pflag.Uint64("seed", 0, "Animation random seed (0 = random)")
		saver   = pflag.Int("screen-saver", 0, "Screen saver delay in minutes (0 disables)")
		wired   = pflag.Bool("wired", false, "Treat the button as the companion's trigger line")
		logFile = pflag.String("log-file", "", "Write controller logs to this file")
	)
	pflag.Parse()

	logOut := io.Discard
	if *logFile != "" {
		f, err := os.OpenFile(*logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			os.Exit(1)
		}
		defer f.Close()
		logOut = f
	}
	logger := slog.New(slog.NewTextHandler(logOut, &slog.HandlerOptions{Level: slog.LevelDebug}))

	m := newModel(clock.NewReal(), rng.New(*seed), controller.Options{
		Wired:          *wired,
		ScreenSaverMin: *saver,
	}, lipgloss.DefaultRenderer(), logger)

	program := tea.NewProgram(m, tea.WithAltScreen())
	if _, err := program.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// ============================================================================
// Model
// ============================================================================

type tickMsg struct{}

func scheduleTick() tea.Cmd {
	return tea.Tick(tickInterval, func(time.Time) tea.Msg {
		return tickMsg{}
	})
}

// model owns the controller; bubbletea calls Update from a single goroutine.
type model struct {
	ctrl  *controller.Controller
	frame *display.Frame
	clk   clock.Clock
	view  *termview.View

	// events holds the most recent phase changes and drops, newest last.
	events []string
}

func newModel(clk clock.Clock, rnd rng.Source, opts controller.Options, r *lipgloss.Renderer, logger *slog.Logger) *model {
	m := &model{clk: clk, view: termview.New(r, termview.DefaultPalette)}
	m.frame = display.NewFrame(nil)
	m.ctrl = controller.New(controller.Config{
		Display:  m.frame,
		Rand:     rnd,
		Analyzer: spectrum.New(m.frame, spectrum.NewNoiseSource(rnd)),
		GameA:    games.NewSnake(m.frame, rnd),
		GameB:    games.NewStacker(m.frame, rnd),
		Settings: settings.Default(),
		Options:  opts,
		Hooks: controller.Hooks{
			OnPhase: func(pc travel.PhaseChange) {
				s := fmt.Sprintf("%s -> %s (%s)", pc.From, pc.To, pc.Origin)
				if pc.Aborted {
					s += " aborted"
				}
				m.note(s)
			},
			OnDropped: func(origin travel.Origin, reason string) {
				m.note(fmt.Sprintf("dropped %s trigger: %s", origin, reason))
			},
			OnRestart: func() { m.note("restart requested") },
			IPAddress: func() string { return "127.0.0.1" },
		},
		Logger: logger,
	})
	return m
}

func (m *model) note(s string) {
	m.events = append(m.events, s)
	if len(m.events) > maxEvents {
		m.events = m.events[len(m.events)-maxEvents:]
	}
}

func (m *model) Init() tea.Cmd {
	return scheduleTick()
}

func (m *model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tickMsg:
		m.ctrl.Tick(m.clk.Millis())
		return m, scheduleTick()

	case tea.KeyMsg:
		key := msg.String()
		if key == "ctrl+c" || key == "q" {
			return m, tea.Quit
		}
		for _, ev := range eventsForKey(key) {
			m.ctrl.Push(ev)
		}
	}
	return m, nil
}

func (m *model) View() string {
	st := m.ctrl.Status()

	var b strings.Builder
	b.WriteString(m.view.Render(m.frame.Snapshot()))
	b.WriteString("\n\n")
	fmt.Fprintf(&b, "mode=%s phase=%s idle=%d saver=%v learning=%v\n",
		st.Mode, st.Phase, st.IdlePattern, st.ScreenSaver, st.Learning)
	for _, e := range m.events {
		b.WriteString(e)
		b.WriteByte('\n')
	}
	b.WriteString("\n")
	b.WriteString(helpText)
	return b.String()
}

const helpText = `space/b: button  h: hold  t: time travel  0-9 * # arrows enter: remote
p: peer prepare  n: peer time travel  r: reentry  a: abort  l: alarm  q: quit`

// ============================================================================
// Keyboard mapping
// ============================================================================

// eventsForKey maps a bubbletea key name to controller input.
func eventsForKey(key string) []trigger.Event {
	switch key {
	case " ", "space", "b":
		return []trigger.Event{trigger.ButtonPressed{}}
	case "h":
		return []trigger.Event{trigger.ButtonHeld{}}
	case "t":
		return []trigger.Event{trigger.TimeTravel{Origin: travel.OriginIPC}}
	case "p":
		return []trigger.Event{trigger.Notification{Command: bttfn.CmdPrepare}}
	case "n":
		return []trigger.Event{trigger.Notification{Command: bttfn.CmdTimeTravel, LeadMs: leadMs}}
	case "r":
		return []trigger.Event{trigger.Notification{Command: bttfn.CmdReentry}}
	case "a":
		return []trigger.Event{trigger.Notification{Command: bttfn.CmdAbort}}
	case "l":
		return []trigger.Event{trigger.Notification{Command: bttfn.CmdAlarm}}
	case "enter":
		return []trigger.Event{trigger.IRKey{Key: trigger.KeyOK}}
	}
	if k, err := trigger.ParseKey(key); err == nil {
		return []trigger.Event{trigger.IRKey{Key: k}}
	}
	return nil
}
