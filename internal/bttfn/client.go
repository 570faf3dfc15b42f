package bttfn

import (
	"errors"
	"log/slog"
)

// Transport moves raw datagrams to and from the single configured peer.
type Transport interface {
	// Send transmits one datagram to the peer.
	Send(b []byte) error
	// Receive returns the next queued inbound datagram without blocking.
	Receive() ([]byte, bool)
	// Up reports whether the local network is usable.
	Up() bool
}

// Observer is told about protocol-level events. Implementations must not block.
type Observer interface {
	RequestSent()
	ResponseAccepted()
	RequestTimedOut(failures int)
	PacketDropped(reason string)
	LinkLost()
	NotificationReceived(cmd Command)
}

// Config tunes the polling state machine. Zero fields take defaults.
type Config struct {
	Hostname string

	// PollIntervalMs is the normal request cadence.
	PollIntervalMs int64
	// ResponseTimeoutMs is how long a request may stay in flight.
	ResponseTimeoutMs int64
	// MaxFailures caps the consecutive failure counter; below the cap a
	// timeout triggers an immediate retry.
	MaxFailures int
	// LinkTimeoutMs is the silence after which peer-derived values reset.
	LinkTimeoutMs int64
}

const (
	DefaultPollIntervalMs    = 1000
	DefaultResponseTimeoutMs = 700
	DefaultMaxFailures       = 10
	DefaultLinkTimeoutMs     = 30000

	// upRecheckMs paces interface checks between polls while the network
	// is down.
	upRecheckMs = 100
)

func (c Config) withDefaults() Config {
	if c.PollIntervalMs <= 0 {
		c.PollIntervalMs = DefaultPollIntervalMs
	}
	if c.ResponseTimeoutMs <= 0 {
		c.ResponseTimeoutMs = DefaultResponseTimeoutMs
	}
	if c.MaxFailures <= 0 {
		c.MaxFailures = DefaultMaxFailures
	}
	if c.LinkTimeoutMs <= 0 {
		c.LinkTimeoutMs = DefaultLinkTimeoutMs
	}
	return c
}

// LinkState is the client's view of the peer.
type LinkState struct {
	// LastInbound is the time of the last accepted response, 0 if none.
	LastInbound int64 `json:"last_inbound"`
	// RequestID is the id of the most recent request.
	RequestID uint32 `json:"request_id"`
	// InFlight is set while a response to RequestID is awaited.
	InFlight    bool  `json:"in_flight"`
	RequestSent int64 `json:"request_sent"`

	ConsecutiveFailures int `json:"consecutive_failures"`

	// Speed is the peer speed, -1 when unknown.
	Speed        int  `json:"speed"`
	NightMode    bool `json:"night_mode"`
	FakePowerOff bool `json:"fake_power_off"`

	// Updates counts changes to Speed, NightMode and FakePowerOff sources
	// (accepted responses and link loss). Consumers compare it to detect news.
	Updates uint64 `json:"updates"`
}

// Client polls the peer for status and collects its notifications.
//
// Client is driven entirely by Poll and is not safe for concurrent use.
type Client struct {
	cfg    Config
	tr     Transport
	obs    Observer
	logger *slog.Logger

	state LinkState

	lastPoll    int64
	pollNow     bool
	networkUp   bool
	lastUpCheck int64
	havePolled  bool
}

// NewClient returns a client that has not yet sent anything. obs may be nil.
func NewClient(cfg Config, tr Transport, obs Observer, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		cfg:     cfg.withDefaults(),
		tr:      tr,
		obs:     obs,
		logger:  logger,
		state:   LinkState{Speed: -1},
		pollNow: true,
	}
}

// Link returns a copy of the current link state.
func (c *Client) Link() LinkState { return c.state }

// Poll drains inbound datagrams, handles timeouts and link loss, and sends the
// next request when one is due. It returns the notifications received since the
// previous call, in arrival order.
func (c *Client) Poll(now int64) []Notification {
	var out []Notification

	for {
		b, ok := c.tr.Receive()
		if !ok {
			break
		}
		if n, ok := c.handle(now, b); ok {
			out = append(out, n)
		}
	}

	if c.state.InFlight && now-c.state.RequestSent > c.cfg.ResponseTimeoutMs {
		c.timeout()
	}

	if c.state.LastInbound != 0 && now-c.state.LastInbound > c.cfg.LinkTimeoutMs {
		c.linkLost()
	}

	if !c.state.InFlight {
		switch {
		case c.pollNow || now-c.lastPoll > c.cfg.PollIntervalMs:
			c.request(now, c.checkUp(now))
		case !c.networkUp && now-c.lastUpCheck >= upRecheckMs:
			// A down network is watched for its up edge between polls.
			if c.checkUp(now) {
				c.request(now, true)
			}
		}
	}

	return out
}

func (c *Client) handle(now int64, b []byte) (Notification, bool) {
	msg, err := Parse(b)
	if err != nil {
		c.drop(err)
		return Notification{}, false
	}

	switch m := msg.(type) {
	case Notification:
		c.logger.Debug("bttfn notification", "command", m.Command.String(), "lead_ms", m.LeadMs)
		if c.obs != nil {
			c.obs.NotificationReceived(m.Command)
		}
		return m, true

	case Response:
		if m.ID != c.state.RequestID {
			c.drop(ErrIDMismatch)
			return Notification{}, false
		}
		c.accept(now, m.Status)
	}
	return Notification{}, false
}

func (c *Client) accept(now int64, st PeerStatus) {
	c.state.ConsecutiveFailures = 0
	c.state.InFlight = false
	if st.HasSpeed {
		c.state.Speed = int(st.Speed)
	}
	if st.HasStatus {
		c.state.NightMode = st.NightMode
		c.state.FakePowerOff = st.FakePowerOff
	} else {
		c.state.NightMode = false
		c.state.FakePowerOff = false
	}
	c.state.LastInbound = now
	c.state.Updates++
	if c.obs != nil {
		c.obs.ResponseAccepted()
	}
}

func (c *Client) drop(err error) {
	reason := "invalid"
	switch {
	case errors.Is(err, ErrPacketLength):
		reason = "length"
	case errors.Is(err, ErrBadMagic):
		reason = "magic"
	case errors.Is(err, ErrBadChecksum):
		reason = "checksum"
	case errors.Is(err, ErrUnexpectedVersion):
		reason = "version"
	case errors.Is(err, ErrIDMismatch):
		reason = "id_mismatch"
	}
	c.logger.Debug("bttfn packet dropped", "reason", reason, "error", err)
	if c.obs != nil {
		c.obs.PacketDropped(reason)
	}
}

func (c *Client) timeout() {
	c.state.InFlight = false
	if c.state.ConsecutiveFailures < c.cfg.MaxFailures {
		c.state.ConsecutiveFailures++
		if c.state.ConsecutiveFailures < c.cfg.MaxFailures {
			c.pollNow = true
		}
	}
	c.logger.Debug("bttfn request timed out", "failures", c.state.ConsecutiveFailures)
	if c.obs != nil {
		c.obs.RequestTimedOut(c.state.ConsecutiveFailures)
	}
}

func (c *Client) linkLost() {
	c.logger.Info("bttfn link lost", "silent_ms", c.cfg.LinkTimeoutMs)
	c.state.Speed = -1
	c.state.NightMode = false
	c.state.FakePowerOff = false
	c.state.LastInbound = 0
	c.state.Updates++
	if c.obs != nil {
		c.obs.LinkLost()
	}
}

func (c *Client) checkUp(now int64) bool {
	c.lastUpCheck = now
	return c.tr.Up()
}

// request records the poll attempt even when the network is down so the
// cadence does not degenerate into a busy loop.
func (c *Client) request(now int64, up bool) {
	c.lastPoll = now
	c.pollNow = false
	c.networkUp = up
	if !up {
		return
	}

	id := uint32(now)
	if c.havePolled && id == c.state.RequestID {
		id++
	}
	p := NewRequest(id, c.cfg.Hostname, ReqSpeed|ReqStatus)
	if err := c.tr.Send(p[:]); err != nil {
		c.logger.Warn("bttfn send failed", "error", err)
		return
	}
	c.havePolled = true
	c.state.RequestID = id
	c.state.RequestSent = now
	c.state.InFlight = true
	if c.obs != nil {
		c.obs.RequestSent()
	}
}
