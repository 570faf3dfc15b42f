package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"

	"sidcontrol/internal/ipc"
	"sidcontrol/internal/travel"
	"sidcontrol/internal/trigger"
)

// ============================================================================
// Message bus
// ============================================================================
// The command subject accepts the plain word TIMETRAVEL or an IPC request
// envelope. Phase changes are published on the event subject as JSON.
// ============================================================================

// Bus is the NATS connection of the daemon.
type Bus struct {
	nc           *nats.Conn
	sub          *nats.Subscription
	eventSubject string
	events       chan<- trigger.Event
	logger       *slog.Logger
}

// ConnectBus connects to cfg.URL and subscribes to the command subject.
// Decoded commands are queued on events without blocking.
func ConnectBus(cfg BusConfig, events chan<- trigger.Event, logger *slog.Logger) (*Bus, error) {
	b := &Bus{
		eventSubject: cfg.EventSubject,
		events:       events,
		logger:       logger,
	}

	nc, err := nats.Connect(cfg.URL,
		nats.Name("sidd"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.RetryOnFailedConnect(true),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.Warn("bus disconnected", "error", err)
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.Info("bus reconnected", "url", nc.ConnectedUrl())
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect to NATS %s: %w", cfg.URL, err)
	}
	b.nc = nc

	sub, err := nc.Subscribe(cfg.CommandSubject, b.handleCommand)
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("subscribe %s: %w", cfg.CommandSubject, err)
	}
	b.sub = sub

	logger.Info("bus connected", "url", cfg.URL, "commands", cfg.CommandSubject, "events", cfg.EventSubject)
	return b, nil
}

var errBusStatus = errors.New("status requests are not served on the bus")

// parseBusCommand decodes one command message.
func parseBusCommand(data []byte) (trigger.Event, error) {
	data = bytes.TrimSpace(data)
	if bytes.EqualFold(data, []byte("TIMETRAVEL")) {
		return trigger.TimeTravel{Origin: travel.OriginBus}, nil
	}
	if len(data) == 0 || data[0] != '{' {
		return nil, fmt.Errorf("unknown command %q", data)
	}
	typ, ev, err := ipc.Decode(data, travel.OriginBus)
	if err != nil {
		return nil, err
	}
	if typ == ipc.TypeStatus {
		return nil, errBusStatus
	}
	return ev, nil
}

func (b *Bus) handleCommand(msg *nats.Msg) {
	ev, err := parseBusCommand(msg.Data)
	if err != nil {
		b.logger.Debug("bus command rejected", "subject", msg.Subject, "error", err)
		b.respond(msg, err)
		return
	}

	select {
	case b.events <- ev:
		b.respond(msg, nil)
	default:
		b.logger.Warn("bus command dropped, event queue full")
		b.respond(msg, errors.New("event queue full"))
	}
}

// respond answers request-style messages; plain publishes get no reply.
func (b *Bus) respond(msg *nats.Msg, err error) {
	if msg.Reply == "" {
		return
	}
	resp := ipc.Response{Status: "ok"}
	if err != nil {
		resp = ipc.Response{Status: "error", Error: err.Error()}
	}
	data, _ := json.Marshal(resp)
	if rerr := msg.Respond(data); rerr != nil {
		b.logger.Debug("bus reply failed", "error", rerr)
	}
}

// PublishPhase publishes a phase change. It does not wait for the server.
func (b *Bus) PublishPhase(pc travel.PhaseChange) {
	data, err := json.Marshal(newPhaseData(pc))
	if err != nil {
		b.logger.Warn("bus phase marshal failed", "error", err)
		return
	}
	if err := b.nc.Publish(b.eventSubject, data); err != nil {
		b.logger.Warn("bus publish failed", "subject", b.eventSubject, "error", err)
	}
}

// Close unsubscribes and drains the connection.
func (b *Bus) Close() {
	if b.sub != nil {
		_ = b.sub.Unsubscribe()
	}
	if err := b.nc.Drain(); err != nil {
		b.logger.Debug("bus drain failed", "error", err)
	}
}
