package main

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"sidcontrol/internal/controller"
	"sidcontrol/internal/display"
	"sidcontrol/internal/travel"
)

// ============================================================================
// Display WebSocket: hub + per-client pumps + broadcaster
// ============================================================================
//
// Clients receive JSON text frames with an envelope {type, ts, data}:
//   - "status_init" on connect: controller status plus the current frame
//   - "frame": a display snapshot, at most one per wsFrameCoalesceWindow
//   - "phase": a time travel phase change, sent immediately
//
// Slow clients are disconnected when their send buffer fills.
// ============================================================================

// wsStatusInit is the JSON `data` payload for "status_init".
type wsStatusInit struct {
	Status *controller.Status `json:"status,omitempty"`
	Frame  *display.Snapshot  `json:"frame,omitempty"`
}

// wsPhaseData is the JSON `data` payload for "phase".
type wsPhaseData struct {
	Session string `json:"session"`
	From    string `json:"from"`
	To      string `json:"to"`
	Origin  string `json:"origin"`
	Sync    string `json:"sync"`
	Aborted bool   `json:"aborted,omitempty"`
	// AtMs is the controller clock at the change.
	AtMs int64 `json:"at_ms"`
}

func newPhaseData(pc travel.PhaseChange) wsPhaseData {
	return wsPhaseData{
		Session: pc.SessionID,
		From:    pc.From.String(),
		To:      pc.To.String(),
		Origin:  pc.Origin.String(),
		Sync:    pc.Sync.String(),
		Aborted: pc.Aborted,
		AtMs:    pc.At,
	}
}

// broadcast is an update emitted by the tick loop for websocket clients.
type broadcast interface {
	broadcastMarker()
}

type frameBroadcast struct {
	Snap display.Snapshot
	At   time.Time
}

type phaseBroadcast struct {
	Change travel.PhaseChange
	At     time.Time
}

func (frameBroadcast) broadcastMarker() {}
func (phaseBroadcast) broadcastMarker() {}

// wsOutboundEvent is a pre-typed, externally-consumable event.
type wsOutboundEvent struct {
	Type string
	Data any
	At   time.Time
}

// envelope is the wire format envelope for WS messages.
type envelope struct {
	Type string     `json:"type"`
	Ts   *time.Time `json:"ts,omitempty"`
	Data any        `json:"data,omitempty"`
}

// ============================================================================
// Hub
// ============================================================================

type Hub struct {
	logger *slog.Logger

	// Buffered broadcast channel for already-serialized JSON frames.
	broadcast  chan []byte
	register   chan *Client
	unregister chan *Client

	mu      sync.Mutex
	clients map[*Client]struct{}

	sendBuf int
}

type HubConfig struct {
	// SendBuf is the per-client outbound queue size.
	SendBuf int
	// BroadcastBuf is the hub inbound broadcast queue size.
	BroadcastBuf int
}

// NewHub constructs a hub. Call Run(ctx) to start it.
func NewHub(logger *slog.Logger, cfg HubConfig) *Hub {
	sendBuf := cfg.SendBuf
	if sendBuf <= 0 {
		sendBuf = 32
	}
	bcastBuf := cfg.BroadcastBuf
	if bcastBuf <= 0 {
		bcastBuf = 128
	}

	return &Hub{
		logger:     logger,
		broadcast:  make(chan []byte, bcastBuf),
		register:   make(chan *Client, 64),
		unregister: make(chan *Client, 64),
		clients:    make(map[*Client]struct{}),
		sendBuf:    sendBuf,
	}
}

// Run processes hub events until ctx is canceled.
// It disconnects all clients on shutdown.
func (h *Hub) Run(ctx context.Context) {
	h.logger.Info("ws hub starting")

	for {
		select {
		case <-ctx.Done():
			h.logger.Info("ws hub stopping (context canceled)")
			h.closeAllClients()
			return

		case c := <-h.register:
			h.mu.Lock()
			h.clients[c] = struct{}{}
			n := len(h.clients)
			h.mu.Unlock()
			h.logger.Info("ws client registered", "remote_addr", c.remoteAddr, "clients", n)

		case c := <-h.unregister:
			h.removeClient(c, "unregister")

		case msg := <-h.broadcast:
			// Collect slow clients first, then remove them after we unlock.
			var slow []*Client

			h.mu.Lock()
			for c := range h.clients {
				select {
				case c.send <- msg:
				default:
					slow = append(slow, c)
				}
			}
			h.mu.Unlock()

			for _, c := range slow {
				h.removeClient(c, "slow_client")
			}
		}
	}
}

// Clients returns the number of connected clients.
func (h *Hub) Clients() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

func (h *Hub) closeAllClients() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		if c.conn != nil {
			_ = c.conn.Close()
		}
		safeCloseChan(c.send)
		delete(h.clients, c)
	}
}

func (h *Hub) removeClient(c *Client, reason string) {
	h.mu.Lock()
	_, ok := h.clients[c]
	if ok {
		delete(h.clients, c)
	}
	n := len(h.clients)
	h.mu.Unlock()

	if ok {
		if c.conn != nil {
			_ = c.conn.Close()
		}
		// Closing send makes writePump exit.
		safeCloseChan(c.send)

		h.logger.Info("ws client disconnected", "remote_addr", c.remoteAddr, "reason", reason, "clients", n)
	}
}

func safeCloseChan(ch chan []byte) {
	defer func() {
		_ = recover() // close of closed channel
	}()
	close(ch)
}

// BroadcastBytes enqueues a pre-serialized JSON WS frame for broadcast.
// It never blocks; if the hub queue is full it drops the message.
func (h *Hub) BroadcastBytes(msg []byte) {
	select {
	case h.broadcast <- msg:
	default:
		h.logger.Warn("ws hub broadcast queue full, dropping message", "bytes", len(msg))
	}
}

// ============================================================================
// Client
// ============================================================================

type Client struct {
	hub *Hub

	conn *websocket.Conn
	send chan []byte

	remoteAddr string
	logger     *slog.Logger
}

// NewClient creates a client with a buffered send channel.
func NewClient(hub *Hub, conn *websocket.Conn, remoteAddr string, logger *slog.Logger) *Client {
	sendBuf := 32
	if hub != nil && hub.sendBuf > 0 {
		sendBuf = hub.sendBuf
	}
	return &Client{
		hub:        hub,
		conn:       conn,
		send:       make(chan []byte, sendBuf),
		remoteAddr: remoteAddr,
		logger:     logger,
	}
}

const (
	writeWait  = 5 * time.Second
	pongWait   = 30 * time.Second
	pingPeriod = 20 * time.Second
)

// wsFrameCoalesceWindow is the time window during which display frames are
// coalesced (latest wins) before broadcasting to clients.
const wsFrameCoalesceWindow = 50 * time.Millisecond

// closeStatus extracts a websocket close code and text when possible.
func closeStatus(err error) (code int, text string, ok bool) {
	var ce *websocket.CloseError
	if errors.As(err, &ce) {
		return ce.Code, ce.Text, true
	}
	return 0, "", false
}

func (c *Client) logExit(pump, what string, err error) {
	if errors.Is(err, websocket.ErrCloseSent) {
		return
	}
	if code, text, ok := closeStatus(err); ok {
		c.logger.Info("ws "+pump+" exiting (close)", "remote_addr", c.remoteAddr, "code", code, "reason", text)
		return
	}
	c.logger.Info("ws "+pump+" exiting ("+what+")", "remote_addr", c.remoteAddr, "error", err)
}

// writePump writes messages from the send queue to the websocket.
// It exits on write error or when send is closed.
func (c *Client) writePump(ctx context.Context) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return

		case msg, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// The hub is disconnecting us.
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				c.logExit("writePump", "write error", err)
				return
			}

		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.logExit("writePump", "ping error", err)
				return
			}
		}
	}
}

// readPump discards incoming messages to detect disconnects and handle
// control frames, then unregisters the client.
func (c *Client) readPump(ctx context.Context) {
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		if ctx.Err() != nil {
			return
		}
		if _, _, err := c.conn.ReadMessage(); err != nil {
			c.logExit("readPump", "read error", err)
			if c.hub != nil {
				c.hub.unregister <- c
			}
			return
		}
	}
}

// ============================================================================
// HTTP Handler
// ============================================================================

type Server struct {
	logger *slog.Logger
	hub    *Hub

	// initial returns the payload of the "status_init" message.
	initial func() wsStatusInit
}

// NewServer constructs the WS server components. Call Register on a mux,
// start Hub().Run(ctx) and RunBroadcaster.
func NewServer(logger *slog.Logger, initial func() wsStatusInit, cfg HubConfig) *Server {
	return &Server{
		logger:  logger,
		hub:     NewHub(logger, cfg),
		initial: initial,
	}
}

func (s *Server) Hub() *Hub { return s.hub }

// Register registers the WS handler on the provided mux.
func (s *Server) Register(mux *http.ServeMux, path string) {
	if mux == nil {
		return
	}
	mux.HandleFunc(path, s.handleWS)
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// handleWS upgrades and registers a client, then sends status_init.
func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("ws upgrade failed", "error", err)
		return
	}

	client := NewClient(s.hub, conn, r.RemoteAddr, s.logger)

	// Enqueue the init message before registering so it is the first frame
	// the client sees.
	if s.initial != nil {
		now := time.Now().UTC()
		msg, err := json.Marshal(envelope{Type: "status_init", Ts: &now, Data: s.initial()})
		if err != nil {
			s.logger.Warn("ws status_init marshal failed", "error", err)
		} else {
			client.send <- msg
		}
	}

	s.hub.register <- client

	// The pumps outlive the request; net/http cancels r.Context() when the
	// handler returns.
	go client.writePump(context.Background())
	go client.readPump(context.Background())
}

// ============================================================================
// Broadcaster
// ============================================================================

// RunBroadcaster reads tick loop broadcasts, marshals them and fans them out
// to all hub clients. Frames are rate limited: the latest pending frame is
// flushed at most once every wsFrameCoalesceWindow, even if frames keep
// arriving. Intended to run as a single goroutine.
func RunBroadcaster(ctx context.Context, hub *Hub, src <-chan broadcast, logger *slog.Logger) {
	if hub == nil || src == nil {
		return
	}

	var pendingFrame *wsOutboundEvent
	var frameTimer *time.Timer
	var frameTimerCh <-chan time.Time

	emit := func(ev wsOutboundEvent) {
		ts := ev.At
		if ts.IsZero() {
			ts = time.Now().UTC()
		}
		msg, err := json.Marshal(envelope{Type: ev.Type, Ts: &ts, Data: ev.Data})
		if err != nil {
			logger.Warn("ws broadcaster marshal failed", "error", err, "type", ev.Type)
			return
		}
		hub.BroadcastBytes(msg)
	}

	flushPendingFrame := func() {
		if pendingFrame == nil {
			return
		}
		emit(*pendingFrame)
		pendingFrame = nil
	}

	stopFrameTimer := func() {
		if frameTimer == nil {
			frameTimerCh = nil
			return
		}
		if !frameTimer.Stop() {
			select {
			case <-frameTimer.C:
			default:
			}
		}
		frameTimer = nil
		frameTimerCh = nil
	}

	startFrameTimerIfNeeded := func() {
		if frameTimer != nil {
			return
		}
		frameTimer = time.NewTimer(wsFrameCoalesceWindow)
		frameTimerCh = frameTimer.C
	}

	for {
		select {
		case <-ctx.Done():
			flushPendingFrame()
			stopFrameTimer()
			return

		case <-frameTimerCh:
			flushPendingFrame()
			// The timer fired, so it is drained; drop it and let the next
			// frame start a new window.
			frameTimer = nil
			frameTimerCh = nil

		case b, ok := <-src:
			if !ok {
				flushPendingFrame()
				stopFrameTimer()
				logger.Info("ws broadcaster stopping (source ended)")
				return
			}

			ev, ok := convertBroadcast(b)
			if !ok {
				continue
			}

			if ev.Type == "frame" {
				copyEv := ev
				pendingFrame = &copyEv
				startFrameTimerIfNeeded()
				continue
			}

			// Anything else goes out immediately, after the frame it follows.
			flushPendingFrame()
			stopFrameTimer()
			emit(ev)
		}
	}
}

func convertBroadcast(b broadcast) (wsOutboundEvent, bool) {
	switch ev := b.(type) {
	case frameBroadcast:
		return wsOutboundEvent{Type: "frame", Data: ev.Snap, At: ev.At}, true
	case phaseBroadcast:
		return wsOutboundEvent{Type: "phase", Data: newPhaseData(ev.Change), At: ev.At}, true
	default:
		return wsOutboundEvent{}, false
	}
}
