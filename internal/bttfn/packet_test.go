package bttfn

import (
	"errors"
	"testing"
)

func TestChecksum_SealedPacketsParse(t *testing.T) {
	packets := map[string]Packet{
		"request":      NewRequest(0xdeadbeef, "sid", ReqSpeed|ReqStatus),
		"notification": NewNotification(CmdTimeTravel, 4200),
		"response":     NewResponse(7, PeerStatus{HasSpeed: true, Speed: 88}),
	}
	for name, p := range packets {
		if got := Checksum(&p); got != p[offChecksum] {
			t.Errorf("%s: checksum 0x%02x, stored 0x%02x", name, got, p[offChecksum])
		}
	}

	n := packets["notification"]
	if _, err := Parse(n[:]); err != nil {
		t.Fatalf("Parse(notification): %v", err)
	}
	r := packets["response"]
	if _, err := Parse(r[:]); err != nil {
		t.Fatalf("Parse(response): %v", err)
	}
}

func TestChecksum_KnownValue(t *testing.T) {
	var p Packet
	// 43 zero bytes each contribute 0x55: 43*0x55 = 0xe47, truncated to 0x47.
	if got := Checksum(&p); got != 0x47 {
		t.Fatalf("Checksum(zero) = 0x%02x, want 0x47", got)
	}
}

func TestParse_SingleByteCorruptionRejected(t *testing.T) {
	p := NewNotification(CmdTimeTravel, 5000)
	for i := offVersion; i < offChecksum; i++ {
		for _, flip := range []byte{0x01, 0x80, 0xff} {
			bad := p
			bad[i] ^= flip
			_, err := Parse(bad[:])
			if !errors.Is(err, ErrBadChecksum) {
				t.Fatalf("byte %d ^ 0x%02x: err = %v, want ErrBadChecksum", i, flip, err)
			}
		}
	}
}

func TestParse_RejectsWrongLengthAndBadMagic(t *testing.T) {
	p := NewNotification(CmdAbort, 0)

	if _, err := Parse(p[:PacketSize-1]); !errors.Is(err, ErrPacketLength) {
		t.Fatalf("short packet err = %v", err)
	}
	// A valid packet followed by trailing garbage is not a packet.
	long := append(p[:], 0x00)
	if _, err := Parse(long); !errors.Is(err, ErrPacketLength) {
		t.Fatalf("%d-byte datagram err = %v, want ErrPacketLength", len(long), err)
	}

	bad := p
	bad[0] = 'X'
	if _, err := Parse(bad[:]); !errors.Is(err, ErrBadMagic) {
		t.Fatalf("bad magic err = %v", err)
	}
}

func TestParse_RequestIsNotAcceptedAsInbound(t *testing.T) {
	p := NewRequest(1, "other", ReqSpeed)
	if _, err := Parse(p[:]); !errors.Is(err, ErrUnexpectedVersion) {
		t.Fatalf("request err = %v, want ErrUnexpectedVersion", err)
	}
}

func TestNewRequest_Layout(t *testing.T) {
	p := NewRequest(0x01020304, "averyverylonghostname", ReqSpeed|ReqStatus)

	if string(p[:4]) != "BTTF" {
		t.Fatalf("magic = %q", p[:4])
	}
	if p[offVersion] != Version {
		t.Fatalf("version = %d", p[offVersion])
	}
	if p[offCommand] != 0x12 {
		t.Fatalf("request bits = 0x%02x, want 0x12", p[offCommand])
	}
	if p[6] != 0x04 || p[9] != 0x01 {
		t.Fatalf("id not little endian: % x", p[6:10])
	}
	if got := string(p[offHostname : offHostname+MaxHostname]); got != "averyverylon" {
		t.Fatalf("hostname = %q", got)
	}
	if p[offHostname+MaxHostname] != 0 {
		t.Fatalf("hostname not terminated")
	}
	if DeviceType(p[offType]) != DeviceSID {
		t.Fatalf("device type = %d", p[offType])
	}
}

func TestParse_NotificationLead(t *testing.T) {
	p := NewNotification(CmdTimeTravel, 3210)
	msg, err := Parse(p[:])
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	n, ok := msg.(Notification)
	if !ok {
		t.Fatalf("got %T, want Notification", msg)
	}
	if n.Command != CmdTimeTravel || n.LeadMs != 3210 {
		t.Fatalf("notification = %+v", n)
	}
}

func TestParse_ResponseFields(t *testing.T) {
	p := NewResponse(99, PeerStatus{
		HasSpeed:     true,
		Speed:        -1,
		HasStatus:    true,
		NightMode:    true,
		FakePowerOff: false,
	})
	msg, err := Parse(p[:])
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	r := msg.(Response)
	if r.ID != 99 || r.Status.Speed != -1 || !r.Status.NightMode || r.Status.FakePowerOff {
		t.Fatalf("response = %+v", r)
	}
}

func TestParseCommand_RoundTripsNames(t *testing.T) {
	for _, c := range []Command{CmdPrepare, CmdTimeTravel, CmdReentry, CmdAbort, CmdAlarm} {
		got, err := ParseCommand(c.String())
		if err != nil || got != c {
			t.Fatalf("ParseCommand(%q) = %v, %v", c.String(), got, err)
		}
	}
	if _, err := ParseCommand("warp"); err == nil {
		t.Fatalf("expected error for unknown command")
	}
}
