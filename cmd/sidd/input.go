package main

import (
	"bytes"
	"encoding/binary"
	"io"
	"os"

	"sidcontrol/internal/trigger"
)

// inputEvent represents a Linux input event structure
// struct input_event { struct timeval time; __u16 type; __u16 code; __s32 value; };
type inputEvent struct {
	Sec   int64
	Usec  int64
	Type  uint16
	Code  uint16
	Value int32
}

// readInputEvents reads input events from a single device and sends them to
// a channel. It blocks on read and returns on the first error.
func readInputEvents(f *os.File, events chan<- inputEvent, readErr chan<- error) {
	evSize := binary.Size(inputEvent{})
	buf := make([]byte, evSize)
	reader := bytes.NewReader(buf)

	for {
		if _, err := io.ReadFull(f, buf); err != nil {
			readErr <- err
			return
		}

		reader.Reset(buf)
		var ev inputEvent
		if err := binary.Read(reader, binary.LittleEndian, &ev); err != nil {
			continue
		}

		events <- ev
	}
}

// ============================================================================
// Translation
// ============================================================================

// inputMap turns raw evdev events into controller input events.
type inputMap struct {
	buttonCode uint16
	// scancodes selects raw MSC_SCAN codes over keymap KEY_* events.
	scancodes bool
}

func newInputMap(cfg InputConfig, ir IRConfig) inputMap {
	return inputMap{buttonCode: uint16(cfg.ButtonCode), scancodes: ir.Scancodes}
}

// remoteKeys maps keymap codes to remote keys.
var remoteKeys = map[uint16]trigger.Key{
	KEY_0:             trigger.Key0,
	KEY_UP:            trigger.KeyUp,
	KEY_DOWN:          trigger.KeyDown,
	KEY_LEFT:          trigger.KeyLeft,
	KEY_RIGHT:         trigger.KeyRight,
	KEY_OK:            trigger.KeyOK,
	KEY_NUMERIC_STAR:  trigger.KeyStar,
	KEY_NUMERIC_POUND: trigger.KeyHash,
}

func (m inputMap) translate(ev inputEvent) (trigger.Event, bool) {
	switch ev.Type {
	case EV_MSC:
		if m.scancodes && ev.Code == MSC_SCAN {
			return trigger.IRCode{Code: uint32(ev.Value)}, true
		}

	case EV_KEY:
		if ev.Code == m.buttonCode {
			switch ev.Value {
			case evValuePress:
				return trigger.ButtonLevel{Active: true}, true
			case evValueRelease:
				return trigger.ButtonLevel{Active: false}, true
			}
			return nil, false
		}
		if m.scancodes || ev.Value != evValuePress {
			return nil, false
		}
		if k, ok := keyForCode(ev.Code); ok {
			return trigger.IRKey{Key: k}, true
		}
	}
	return nil, false
}

func keyForCode(code uint16) (trigger.Key, bool) {
	switch {
	case code >= KEY_1 && code <= KEY_9:
		return trigger.Key1 + trigger.Key(code-KEY_1), true
	case code >= KEY_NUMERIC_0 && code <= KEY_NUMERIC_9:
		return trigger.Key0 + trigger.Key(code-KEY_NUMERIC_0), true
	}
	k, ok := remoteKeys[code]
	return k, ok
}
