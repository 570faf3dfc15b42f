// sid-watch follows the sidd websocket feed and draws the panel in the
// terminal.
package main

import (
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/gorilla/websocket"
	"github.com/spf13/pflag"
	"golang.org/x/term"

	"sidcontrol/internal/display"
	"sidcontrol/internal/termview"
)

const (
	pongWait   = 60 * time.Second
	pingPeriod = 30 * time.Second

	clearScreen = "\x1b[H\x1b[2J"
	// Panel plus status line plus the last phase line.
	panelLines = display.Rows + 2
)

func main() {
	var (
		wsURL = pflag.String("ws", "ws://127.0.0.1:3011/ws", "sidd websocket URL")
		plain = pflag.Bool("plain", false, "Print one line per update instead of drawing the panel")
	)
	pflag.Parse()

	u, err := url.Parse(*wsURL)
	if err != nil {
		log.Fatalf("invalid websocket URL: %v", err)
	}

	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)

	fd := int(os.Stdout.Fd())
	draw := !*plain && term.IsTerminal(fd)
	if draw {
		if _, h, err := term.GetSize(fd); err == nil && h < panelLines {
			log.Printf("terminal has %d lines, panel needs %d; using plain output", h, panelLines)
			draw = false
		}
	}

	d := websocket.Dialer{
		HandshakeTimeout: 5 * time.Second,
	}

	log.Printf("connecting to %s...", u.String())
	conn, _, err := d.Dial(u.String(), nil)
	if err != nil {
		log.Fatalf("failed to connect: %v", err)
	}
	defer conn.Close()

	var writeMu sync.Mutex

	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})
	// The server pings too; answering resets our deadline as well.
	conn.SetPingHandler(func(data string) error {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		writeMu.Lock()
		defer writeMu.Unlock()
		return conn.WriteControl(websocket.PongMessage, []byte(data), time.Now().Add(time.Second))
	})

	pingTicker := time.NewTicker(pingPeriod)
	defer pingTicker.Stop()
	go func() {
		for range pingTicker.C {
			writeMu.Lock()
			err := conn.WriteMessage(websocket.PingMessage, nil)
			writeMu.Unlock()
			if err != nil {
				return
			}
		}
	}()

	v := newViewer(os.Stdout, draw, lipgloss.NewRenderer(os.Stdout))

	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			messageType, message, err := conn.ReadMessage()
			if err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
					log.Printf("websocket error: %v", err)
				}
				return
			}
			if messageType != websocket.TextMessage {
				continue
			}
			if err := v.handle(message); err != nil {
				log.Printf("bad message: %v", err)
			}
		}
	}()

	select {
	case <-sigc:
		writeMu.Lock()
		err := conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		writeMu.Unlock()
		if err != nil {
			log.Printf("error closing connection: %v", err)
		}
	case <-done:
		log.Printf("connection closed")
	}
}

// ============================================================================
// Viewer
// ============================================================================

type envelope struct {
	Type string          `json:"type"`
	Ts   *time.Time      `json:"ts,omitempty"`
	Data json.RawMessage `json:"data,omitempty"`
}

type statusInit struct {
	Status json.RawMessage   `json:"status,omitempty"`
	Frame  *display.Snapshot `json:"frame,omitempty"`
}

type phaseData struct {
	Session string `json:"session"`
	From    string `json:"from"`
	To      string `json:"to"`
	Origin  string `json:"origin"`
	Sync    string `json:"sync"`
	Aborted bool   `json:"aborted,omitempty"`
	AtMs    int64  `json:"at_ms"`
}

func (p phaseData) String() string {
	s := fmt.Sprintf("%s -> %s (origin=%s sync=%s session=%s)", p.From, p.To, p.Origin, p.Sync, shortID(p.Session))
	if p.Aborted {
		s += " aborted"
	}
	return s
}

// viewer turns feed messages into terminal output.
type viewer struct {
	out   io.Writer
	draw  bool
	view  *termview.View
	last  display.Snapshot
	phase string
}

func newViewer(out io.Writer, draw bool, r *lipgloss.Renderer) *viewer {
	return &viewer{out: out, draw: draw, view: termview.New(r, termview.DefaultPalette)}
}

func (v *viewer) handle(msg []byte) error {
	var env envelope
	if err := json.Unmarshal(msg, &env); err != nil {
		return fmt.Errorf("unmarshal envelope: %w", err)
	}

	switch env.Type {
	case "status_init":
		var si statusInit
		if err := json.Unmarshal(env.Data, &si); err != nil {
			return fmt.Errorf("unmarshal status_init: %w", err)
		}
		if !v.draw && len(si.Status) > 0 {
			fmt.Fprintf(v.out, "[STATUS] %s\n", si.Status)
		}
		if si.Frame != nil {
			v.frame(*si.Frame)
		}

	case "frame":
		var s display.Snapshot
		if err := json.Unmarshal(env.Data, &s); err != nil {
			return fmt.Errorf("unmarshal frame: %w", err)
		}
		v.frame(s)

	case "phase":
		var p phaseData
		if err := json.Unmarshal(env.Data, &p); err != nil {
			return fmt.Errorf("unmarshal phase: %w", err)
		}
		v.phase = p.String()
		if v.draw {
			v.redraw()
		} else {
			fmt.Fprintf(v.out, "[PHASE] %s\n", v.phase)
		}

	default:
		if !v.draw {
			fmt.Fprintf(v.out, "[%s] %s\n", strings.ToUpper(env.Type), env.Data)
		}
	}
	return nil
}

func (v *viewer) frame(s display.Snapshot) {
	v.last = s
	if v.draw {
		v.redraw()
		return
	}
	fmt.Fprintf(v.out, "[FRAME] %s heights=%v\n", termview.StatusLine(s), heights(s))
}

func (v *viewer) redraw() {
	var b strings.Builder
	b.WriteString(clearScreen)
	b.WriteString(v.view.Render(v.last))
	b.WriteByte('\n')
	if v.phase != "" {
		b.WriteString(v.phase)
	}
	b.WriteByte('\n')
	io.WriteString(v.out, b.String())
}

func heights(s display.Snapshot) [display.Bars]int {
	var h [display.Bars]int
	for i := range h {
		h[i] = s.Height(i)
	}
	return h
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
