package ipc

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"strings"

	"sidcontrol/internal/travel"
	"sidcontrol/internal/trigger"
)

// StatusFunc returns the value sent in reply to a status request.
type StatusFunc func() any

// Serve listens on socketPath until ctx is canceled. Decoded events are
// queued on events without blocking; a full queue is reported to the client.
func Serve(ctx context.Context, socketPath string, events chan<- trigger.Event, status StatusFunc, logger *slog.Logger) error {
	if err := os.RemoveAll(socketPath); err != nil {
		return fmt.Errorf("remove existing socket: %w", err)
	}

	listener, err := net.Listen("unix", socketPath)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", socketPath, err)
	}
	defer listener.Close()
	defer os.Remove(socketPath)

	if err := os.Chmod(socketPath, 0o666); err != nil {
		return fmt.Errorf("chmod socket: %w", err)
	}

	logger.Info("IPC listening", "socket", socketPath)

	go func() {
		<-ctx.Done()
		_ = listener.Close()
	}()

	for {
		conn, err := listener.Accept()
		if err != nil {
			if ctx.Err() != nil {
				logger.Debug("IPC listener closed (shutdown)")
				return nil
			}
			if errors.Is(err, net.ErrClosed) {
				logger.Debug("IPC listener closed")
				return nil
			}
			logger.Error("IPC accept error", "error", err)
			continue
		}

		go handleConn(conn, events, status, logger)
	}
}

// handleConn answers requests on one connection until the client hangs up.
func handleConn(conn net.Conn, events chan<- trigger.Event, status StatusFunc, logger *slog.Logger) {
	defer conn.Close()

	logger.Debug("IPC connection", "remote_addr", conn.RemoteAddr())

	scanner := bufio.NewScanner(conn)
	encoder := json.NewEncoder(conn)

	reply := func(r Response) {
		if err := encoder.Encode(r); err != nil {
			logger.Error("IPC failed to send response", "error", err)
		}
	}

	for scanner.Scan() {
		line := scanner.Bytes()
		logger.Debug("IPC received", "line", string(line))

		typ, ev, err := Decode(line, travel.OriginIPC)
		if err != nil {
			reply(Response{Status: "error", Error: fmt.Sprintf("parse request: %v", err)})
			continue
		}

		if typ == TypeStatus {
			var v any
			if status != nil {
				v = status()
			}
			data, err := json.Marshal(v)
			if err != nil {
				reply(Response{Status: "error", Error: fmt.Sprintf("marshal status: %v", err)})
				continue
			}
			reply(Response{Status: "ok", Data: data})
			continue
		}

		select {
		case events <- ev:
			reply(Response{Status: "ok"})
		default:
			reply(Response{Status: "error", Error: "event queue full"})
		}
	}

	logger.Debug("IPC connection closed")
}

// ============================================================================
// Client
// ============================================================================

// Send delivers one event to the daemon listening on socketPath.
func Send(socketPath string, ev trigger.Event) error {
	line, err := Encode(ev)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	_, err = roundTrip(socketPath, line)
	return err
}

// Status asks the daemon for its status and returns the raw JSON.
func Status(socketPath string) (json.RawMessage, error) {
	line, _ := json.Marshal(Envelope{Type: TypeStatus})
	resp, err := roundTrip(socketPath, line)
	if err != nil {
		return nil, err
	}
	return resp.Data, nil
}

func roundTrip(socketPath string, line []byte) (Response, error) {
	conn, err := net.Dial("unix", socketPath)
	if err != nil {
		return Response{}, fmt.Errorf("connect to %s: %w", socketPath, err)
	}
	defer conn.Close()
	return exchange(conn, line)
}

func exchange(conn net.Conn, line []byte) (Response, error) {
	if _, err := fmt.Fprintf(conn, "%s\n", strings.TrimSpace(string(line))); err != nil {
		return Response{}, fmt.Errorf("send request: %w", err)
	}

	var resp Response
	if err := json.NewDecoder(conn).Decode(&resp); err != nil {
		return Response{}, fmt.Errorf("decode response: %w", err)
	}
	if resp.Status != "ok" {
		return resp, fmt.Errorf("ipc error: %s", resp.Error)
	}
	return resp, nil
}
