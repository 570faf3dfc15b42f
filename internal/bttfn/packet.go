// Package bttfn implements the client side of the BTTFN UDP protocol spoken by
// the time circuits display (TCD) and its companion props.
//
// Every datagram is exactly PacketSize bytes:
//
//	0..3   magic "BTTF"
//	4      protocol version; |0x40 marks a notification, |0x80 a response
//	5      request: bitmask of requested data; notification: command id
//	6..9   request id (uint32 LE); notification TT: lead time ms (uint16 LE)
//	10..22 sender hostname, NUL terminated
//	23     device type of the sender
//	18..19 response: speed (int16 LE) when ReqSpeed is set
//	26     response: status bits when ReqStatus is set
//	47     checksum over bytes 4..46
package bttfn

import (
	"encoding/binary"
	"errors"
	"fmt"
)

const (
	PacketSize = 48

	// DefaultPort is used for both the local socket and the peer.
	DefaultPort = 1338

	Version = 1

	flagNotification = 0x40
	flagResponse     = 0x80

	offVersion  = 4
	offCommand  = 5
	offID       = 6
	offHostname = 10
	offType     = 23
	offSpeed    = 18
	offStatus   = 26
	offChecksum = 47

	// MaxHostname is the number of hostname bytes carried in a request.
	MaxHostname = 12

	checksumMask = 0x55
)

// Request bits (byte 5 of a request, echoed in responses).
const (
	ReqSpeed  byte = 0x02
	ReqStatus byte = 0x10
)

// Status bits (byte 26 of a response).
const (
	StatusNightMode    byte = 0x01
	StatusFakePowerOff byte = 0x02
)

// DeviceType tags the sender of a request.
type DeviceType byte

const (
	DeviceAny  DeviceType = 0
	DeviceFlux DeviceType = 1
	DeviceSID  DeviceType = 2
	DevicePCG  DeviceType = 3
)

// Command identifies a notification pushed by the peer.
type Command byte

const (
	CmdPrepare    Command = 1
	CmdTimeTravel Command = 2
	CmdReentry    Command = 3
	CmdAbort      Command = 4
	CmdAlarm      Command = 5
)

func (c Command) String() string {
	switch c {
	case CmdPrepare:
		return "prepare"
	case CmdTimeTravel:
		return "time_travel"
	case CmdReentry:
		return "reentry"
	case CmdAbort:
		return "abort"
	case CmdAlarm:
		return "alarm"
	default:
		return fmt.Sprintf("command(%d)", byte(c))
	}
}

// ParseCommand maps a command name (as printed by String) to a Command.
func ParseCommand(s string) (Command, error) {
	switch s {
	case "prepare":
		return CmdPrepare, nil
	case "time_travel", "tt":
		return CmdTimeTravel, nil
	case "reentry":
		return CmdReentry, nil
	case "abort":
		return CmdAbort, nil
	case "alarm":
		return CmdAlarm, nil
	default:
		return 0, fmt.Errorf("unknown command %q", s)
	}
}

var magic = [4]byte{'B', 'T', 'T', 'F'}

var (
	ErrPacketLength      = errors.New("bttfn: wrong packet length")
	ErrBadMagic          = errors.New("bttfn: bad magic")
	ErrBadChecksum       = errors.New("bttfn: bad checksum")
	ErrUnexpectedVersion = errors.New("bttfn: unexpected version")
	ErrIDMismatch        = errors.New("bttfn: response id mismatch")
)

// Packet is one raw datagram.
type Packet [PacketSize]byte

// Checksum computes the 8-bit wrapping sum of (b XOR 0x55) over bytes 4..46.
func Checksum(p *Packet) byte {
	var sum byte
	for i := offVersion; i < offChecksum; i++ {
		sum += p[i] ^ checksumMask
	}
	return sum
}

// Seal stores the checksum in the last byte.
func (p *Packet) Seal() {
	p[offChecksum] = Checksum(p)
}

func newPacket(version byte) Packet {
	var p Packet
	copy(p[:4], magic[:])
	p[offVersion] = version
	return p
}

// NewRequest builds a sealed status request carrying id and the sender hostname
// (truncated to MaxHostname bytes).
func NewRequest(id uint32, hostname string, want byte) Packet {
	p := newPacket(Version)
	p[offCommand] = want
	binary.LittleEndian.PutUint32(p[offID:], id)
	n := copy(p[offHostname:offHostname+MaxHostname], hostname)
	p[offHostname+n] = 0
	p[offType] = byte(DeviceSID)
	p.Seal()
	return p
}

// NewNotification builds a sealed peer notification. leadMs is only carried by
// CmdTimeTravel.
func NewNotification(cmd Command, leadMs uint16) Packet {
	p := newPacket(Version | flagNotification)
	p[offCommand] = byte(cmd)
	if cmd == CmdTimeTravel {
		binary.LittleEndian.PutUint16(p[offID:], leadMs)
	}
	p.Seal()
	return p
}

// PeerStatus is the data a response may carry.
type PeerStatus struct {
	HasSpeed     bool
	Speed        int16
	HasStatus    bool
	NightMode    bool
	FakePowerOff bool
}

// NewResponse builds a sealed response echoing id. The peer side and tests use
// it; the client only parses responses.
func NewResponse(id uint32, st PeerStatus) Packet {
	p := newPacket(Version | flagResponse)
	binary.LittleEndian.PutUint32(p[offID:], id)
	if st.HasSpeed {
		p[offCommand] |= ReqSpeed
		binary.LittleEndian.PutUint16(p[offSpeed:], uint16(st.Speed))
	}
	if st.HasStatus {
		p[offCommand] |= ReqStatus
		if st.NightMode {
			p[offStatus] |= StatusNightMode
		}
		if st.FakePowerOff {
			p[offStatus] |= StatusFakePowerOff
		}
	}
	p.Seal()
	return p
}

// Notification is a decoded peer push.
type Notification struct {
	Command Command
	// LeadMs is the peer-announced lead time for CmdTimeTravel.
	LeadMs int
}

// Response is a decoded answer to a request.
type Response struct {
	ID     uint32
	Status PeerStatus
}

// Message is either a Notification or a Response.
type Message interface {
	messageMarker()
}

func (Notification) messageMarker() {}
func (Response) messageMarker()     {}

// Parse validates and decodes a datagram. Requests from other clients are
// reported as ErrUnexpectedVersion.
func Parse(b []byte) (Message, error) {
	if len(b) != PacketSize {
		return nil, ErrPacketLength
	}
	var p Packet
	copy(p[:], b)

	if [4]byte(p[:4]) != magic {
		return nil, ErrBadMagic
	}
	if Checksum(&p) != p[offChecksum] {
		return nil, ErrBadChecksum
	}

	switch p[offVersion] {
	case Version | flagNotification:
		n := Notification{Command: Command(p[offCommand])}
		if n.Command == CmdTimeTravel {
			n.LeadMs = int(binary.LittleEndian.Uint16(p[offID:]))
		}
		return n, nil

	case Version | flagResponse:
		r := Response{ID: binary.LittleEndian.Uint32(p[offID:])}
		bits := p[offCommand]
		if bits&ReqSpeed != 0 {
			r.Status.HasSpeed = true
			r.Status.Speed = int16(binary.LittleEndian.Uint16(p[offSpeed:]))
		}
		if bits&ReqStatus != 0 {
			r.Status.HasStatus = true
			r.Status.NightMode = p[offStatus]&StatusNightMode != 0
			r.Status.FakePowerOff = p[offStatus]&StatusFakePowerOff != 0
		}
		return r, nil

	default:
		return nil, fmt.Errorf("%w: 0x%02x", ErrUnexpectedVersion, p[offVersion])
	}
}
