package main

import (
	"context"
	"log/slog"
	"net"
	"sync/atomic"
	"time"

	"sidcontrol/internal/clock"
	"sidcontrol/internal/controller"
	"sidcontrol/internal/display"
	"sidcontrol/internal/metrics"
	"sidcontrol/internal/travel"
	"sidcontrol/internal/trigger"
)

// ============================================================================
// Central Daemon Loop
// ============================================================================
//
// One goroutine owns the controller. Input goroutines (evdev, IPC, bus) only
// send trigger.Events; the loop pushes them into the controller and ticks it
// on a fixed cadence. Everything the controller reports goes out through the
// publisher, which other goroutines read without touching the controller.
//
// ============================================================================

// runDaemon drives ctrl until ctx is canceled, then writes unsaved settings.
func runDaemon(
	ctx context.Context,
	ctrl *controller.Controller,
	clk clock.Clock,
	events <-chan trigger.Event,
	tick time.Duration,
	pub *publisher,
	logger *slog.Logger,
) {
	ticker := time.NewTicker(tick)
	defer ticker.Stop()

	logger.Debug("daemon loop starting", "tick", tick)

	for {
		select {
		case <-ctx.Done():
			ctrl.Flush()
			logger.Info("daemon stopping (context canceled)")
			return

		case ev := <-events:
			ctrl.Push(ev)

		case <-ticker.C:
			ctrl.Tick(clk.Millis())
			pub.setStatus(ctrl.Status())
		}
	}
}

// ============================================================================
// Publisher
// ============================================================================

// publisher fans controller output out to the websocket feed, the message
// bus and the metrics. Its callbacks run on the daemon goroutine and never
// block; its getters are safe from any goroutine.
type publisher struct {
	status atomic.Pointer[controller.Status]
	frame  atomic.Pointer[display.Snapshot]

	// out feeds the websocket broadcaster; nil without an HTTP server.
	out chan<- broadcast
	// bus is set once connected; nil without a bus.
	bus     atomic.Pointer[Bus]
	metrics *metrics.Metrics
	logger  *slog.Logger

	dropped atomic.Uint64
}

func newPublisher(out chan<- broadcast, m *metrics.Metrics, logger *slog.Logger) *publisher {
	return &publisher{out: out, metrics: m, logger: logger}
}

func (p *publisher) setStatus(st controller.Status) { p.status.Store(&st) }

// frameUpdated is the display's update callback.
func (p *publisher) frameUpdated(s display.Snapshot) {
	p.frame.Store(&s)
	p.send(frameBroadcast{Snap: s, At: time.Now().UTC()})
}

// phaseChanged is the controller's phase hook.
func (p *publisher) phaseChanged(pc travel.PhaseChange) {
	p.logger.Info("phase change",
		"session", pc.SessionID,
		"from", pc.From.String(),
		"to", pc.To.String(),
		"origin", pc.Origin.String(),
		"aborted", pc.Aborted)
	if p.metrics != nil {
		p.metrics.PhaseChanged(pc)
	}
	if b := p.bus.Load(); b != nil {
		b.PublishPhase(pc)
	}
	p.send(phaseBroadcast{Change: pc, At: time.Now().UTC()})
}

// triggerDropped is the controller's dropped-trigger hook.
func (p *publisher) triggerDropped(origin travel.Origin, reason string) {
	p.logger.Debug("trigger dropped", "origin", origin.String(), "reason", reason)
	if p.metrics != nil {
		p.metrics.TriggerDropped(origin, reason)
	}
}

func (p *publisher) send(b broadcast) {
	if p.out == nil {
		return
	}
	select {
	case p.out <- b:
	default:
		if n := p.dropped.Add(1); n == 1 || n%1000 == 0 {
			p.logger.Warn("broadcast queue full, dropping updates", "dropped", n)
		}
	}
}

// Status returns the last published controller status.
func (p *publisher) Status() any {
	if st := p.status.Load(); st != nil {
		return st
	}
	return struct{}{}
}

// initial is the websocket status_init payload.
func (p *publisher) initial() wsStatusInit {
	return wsStatusInit{Status: p.status.Load(), Frame: p.frame.Load()}
}

// ============================================================================
// Helpers
// ============================================================================

// localIPv4 returns the first non-loopback IPv4 address, or "".
func localIPv4() string {
	addrs, err := net.InterfaceAddrs()
	if err != nil {
		return ""
	}
	for _, a := range addrs {
		ipn, ok := a.(*net.IPNet)
		if !ok || ipn.IP.IsLoopback() {
			continue
		}
		if ip4 := ipn.IP.To4(); ip4 != nil {
			return ip4.String()
		}
	}
	return ""
}
