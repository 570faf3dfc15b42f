package bttfn

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"strconv"
	"sync"
)

// UDPTransport is the production Transport. A reader goroutine copies inbound
// datagrams into a buffered queue; Receive drains it without blocking.
type UDPTransport struct {
	conn   *net.UDPConn
	logger *slog.Logger

	mu   sync.Mutex
	peer *net.UDPAddr

	inbox chan []byte

	// up reports local network availability; defaults to InterfaceUp.
	up func() bool
}

// inboxSize bounds the queue between the reader goroutine and Poll. The peer
// sends at most a handful of datagrams per poll interval.
const inboxSize = 32

// ListenUDP binds localPort on all interfaces and targets peer ("host" or
// "host:port"). The reader goroutine stops when ctx is canceled.
func ListenUDP(ctx context.Context, localPort int, peer string, logger *slog.Logger) (*UDPTransport, error) {
	if logger == nil {
		logger = slog.Default()
	}
	conn, err := net.ListenUDP("udp4", &net.UDPAddr{Port: localPort})
	if err != nil {
		return nil, fmt.Errorf("listen udp :%d: %w", localPort, err)
	}
	t := &UDPTransport{
		conn:   conn,
		logger: logger,
		inbox:  make(chan []byte, inboxSize),
		up:     InterfaceUp,
	}
	if err := t.SetPeer(peer); err != nil {
		_ = conn.Close()
		return nil, err
	}

	go func() {
		<-ctx.Done()
		_ = conn.Close()
	}()
	go t.readLoop()

	return t, nil
}

// ResolvePeer resolves "host" or "host:port", filling in DefaultPort.
func ResolvePeer(peer string) (*net.UDPAddr, error) {
	if peer == "" {
		return nil, errors.New("peer address is empty")
	}
	if _, _, err := net.SplitHostPort(peer); err != nil {
		peer = net.JoinHostPort(peer, strconv.Itoa(DefaultPort))
	}
	addr, err := net.ResolveUDPAddr("udp4", peer)
	if err != nil {
		return nil, fmt.Errorf("resolve peer %q: %w", peer, err)
	}
	return addr, nil
}

// SetPeer changes the destination of future requests.
func (t *UDPTransport) SetPeer(peer string) error {
	addr, err := ResolvePeer(peer)
	if err != nil {
		return err
	}
	t.mu.Lock()
	t.peer = addr
	t.mu.Unlock()
	t.logger.Info("bttfn peer set", "peer", addr.String())
	return nil
}

// Send implements Transport.
func (t *UDPTransport) Send(b []byte) error {
	t.mu.Lock()
	peer := t.peer
	t.mu.Unlock()
	if peer == nil {
		return errors.New("no peer configured")
	}
	_, err := t.conn.WriteToUDP(b, peer)
	return err
}

// Receive implements Transport.
func (t *UDPTransport) Receive() ([]byte, bool) {
	select {
	case b := <-t.inbox:
		return b, true
	default:
		return nil, false
	}
}

// Up implements Transport.
func (t *UDPTransport) Up() bool {
	return t.up()
}

// Close stops the reader goroutine.
func (t *UDPTransport) Close() error {
	return t.conn.Close()
}

func (t *UDPTransport) readLoop() {
	buf := make([]byte, 512)
	for {
		n, _, err := t.conn.ReadFromUDP(buf)
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				t.logger.Debug("bttfn reader stopped")
				return
			}
			t.logger.Warn("bttfn read failed", "error", err)
			continue
		}

		msg := make([]byte, n)
		copy(msg, buf[:n])
		select {
		case t.inbox <- msg:
		default:
			t.logger.Warn("bttfn inbox full, dropping datagram", "bytes", n)
		}
	}
}

// InterfaceUp reports whether any non-loopback interface is up and has an
// address.
func InterfaceUp() bool {
	ifaces, err := net.Interfaces()
	if err != nil {
		return false
	}
	for _, ifc := range ifaces {
		if ifc.Flags&net.FlagUp == 0 || ifc.Flags&net.FlagLoopback != 0 {
			continue
		}
		addrs, err := ifc.Addrs()
		if err == nil && len(addrs) > 0 {
			return true
		}
	}
	return false
}

// SendNotification sends one notification datagram to peer from an ephemeral
// port. Tools use it to stand in for a TCD.
func SendNotification(peer string, cmd Command, leadMs uint16) error {
	addr, err := ResolvePeer(peer)
	if err != nil {
		return err
	}
	conn, err := net.DialUDP("udp4", nil, addr)
	if err != nil {
		return fmt.Errorf("dial %s: %w", addr, err)
	}
	defer conn.Close()

	p := NewNotification(cmd, leadMs)
	if _, err := conn.Write(p[:]); err != nil {
		return fmt.Errorf("send %s: %w", cmd, err)
	}
	return nil
}
