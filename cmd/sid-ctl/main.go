// sid-ctl sends input events to a running sidd over its IPC socket.
package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"sidcontrol/internal/bttfn"
	"sidcontrol/internal/ipc"
	"sidcontrol/internal/trigger"
)

const defaultSocket = "/tmp/sidd.sock"

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	var socketPath string

	cmd := &cobra.Command{
		Use:   "sid-ctl",
		Short: "Control the sidd daemon via IPC",
		Long: `Send button, remote and time travel input to a running sidd.

Examples:
  sid-ctl tt                      # start a time travel
  sid-ctl press                   # short button press
  sid-ctl key up                  # remote key
  sid-ctl ir 0x97483bfb           # raw IR code
  sid-ctl notify tt --lead 5000   # peer notification with lead time
  sid-ctl notify tt --udp tcd     # same, as a BTTFN datagram to host tcd
  sid-ctl status                  # print the daemon status`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().StringVar(&socketPath, "socket", defaultSocket, "Unix domain socket path")

	send := func(ev trigger.Event) error {
		if err := ipc.Send(socketPath, ev); err != nil {
			return err
		}
		fmt.Println("ok")
		return nil
	}

	cmd.AddCommand(
		eventCmd("press", "Short button press", trigger.ButtonPressed{}, send),
		eventCmd("hold", "Long button press", trigger.ButtonHeld{}, send),
		eventCmd("tt", "Start a time travel", trigger.TimeTravel{}, send),
		buttonCmd(send),
		keyCmd(send),
		irCmd(send),
		notifyCmd(send),
		statusCmd(&socketPath),
	)
	return cmd
}

func eventCmd(use, short string, ev trigger.Event, send func(trigger.Event) error) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return send(ev)
		},
	}
}

func buttonCmd(send func(trigger.Event) error) *cobra.Command {
	return &cobra.Command{
		Use:       "button on|off",
		Short:     "Set the raw button line level",
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{"on", "off"},
		RunE: func(cmd *cobra.Command, args []string) error {
			active, err := parseLevel(args[0])
			if err != nil {
				return err
			}
			return send(trigger.ButtonLevel{Active: active})
		},
	}
}

func keyCmd(send func(trigger.Event) error) *cobra.Command {
	return &cobra.Command{
		Use:   "key KEY",
		Short: "Press a remote key (0-9, *, #, up, down, left, right, ok)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			k, err := trigger.ParseKey(args[0])
			if err != nil {
				return err
			}
			return send(trigger.IRKey{Key: k})
		},
	}
}

func irCmd(send func(trigger.Event) error) *cobra.Command {
	return &cobra.Command{
		Use:   "ir CODE",
		Short: "Inject a raw IR code (decimal or 0x hex)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			code, err := parseIRCode(args[0])
			if err != nil {
				return err
			}
			return send(trigger.IRCode{Code: code})
		},
	}
}

func notifyCmd(send func(trigger.Event) error) *cobra.Command {
	var (
		leadMs int
		udp    string
	)
	cmd := &cobra.Command{
		Use:   "notify COMMAND",
		Short: "Inject a peer notification (prepare, tt, reentry, abort, alarm)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := bttfn.ParseCommand(args[0])
			if err != nil {
				return err
			}
			if leadMs < 0 || leadMs > 0xffff {
				return fmt.Errorf("lead must be between 0 and %d ms", 0xffff)
			}
			if udp != "" {
				if err := bttfn.SendNotification(udp, c, uint16(leadMs)); err != nil {
					return err
				}
				fmt.Println("sent")
				return nil
			}
			return send(trigger.Notification{Command: c, LeadMs: leadMs})
		},
	}
	cmd.Flags().IntVar(&leadMs, "lead", 0, "Lead time in ms for tt (0 = default)")
	cmd.Flags().StringVar(&udp, "udp", "", "Send as a BTTFN datagram to this host[:port] instead of IPC")
	return cmd
}

func statusCmd(socketPath *string) *cobra.Command {
	var compact bool
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Print the daemon status as JSON",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := ipc.Status(*socketPath)
			if err != nil {
				return err
			}
			out, err := formatStatus(data, compact)
			if err != nil {
				return err
			}
			fmt.Println(out)
			return nil
		},
	}
	cmd.Flags().BoolVar(&compact, "compact", false, "Print on a single line")
	return cmd
}

// ============================================================================
// Argument parsing
// ============================================================================

func parseLevel(s string) (bool, error) {
	switch strings.ToLower(s) {
	case "on", "1", "true", "down":
		return true, nil
	case "off", "0", "false", "up":
		return false, nil
	}
	return false, fmt.Errorf("invalid level %q (want on or off)", s)
}

func parseIRCode(s string) (uint32, error) {
	n, err := strconv.ParseUint(strings.TrimSpace(s), 0, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid IR code %q", s)
	}
	return uint32(n), nil
}

func formatStatus(data json.RawMessage, compact bool) (string, error) {
	var buf bytes.Buffer
	var err error
	if compact {
		err = json.Compact(&buf, data)
	} else {
		err = json.Indent(&buf, data, "", "  ")
	}
	if err != nil {
		return "", fmt.Errorf("format status: %w", err)
	}
	return buf.String(), nil
}
