// Package ipc is the line-delimited JSON protocol spoken on the daemon's unix
// socket.
//
// A client writes one request per line:
//
//	{"type": "press"}
//	{"type": "ir", "data": {"code": "0x97483bfb"}}
//	{"type": "key", "data": {"key": "ok"}}
//	{"type": "notify", "data": {"command": "tt", "lead_ms": 5000}}
//	{"type": "status"}
//
// and reads one response line: {"status": "ok"} or
// {"status": "error", "error": "msg"}. Status requests carry the daemon
// status in "data".
package ipc

import (
	"encoding/json"
	"fmt"

	"sidcontrol/internal/bttfn"
	"sidcontrol/internal/travel"
	"sidcontrol/internal/trigger"
)

// Request types.
const (
	TypeButton     = "button"
	TypePress      = "press"
	TypeHold       = "hold"
	TypeIR         = "ir"
	TypeKey        = "key"
	TypeTimeTravel = "time_travel"
	TypeNotify     = "notify"
	TypeStatus     = "status"
)

// Envelope wraps a request with a type discriminator.
type Envelope struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

// Response is sent back for every request line.
type Response struct {
	Status string          `json:"status"`
	Error  string          `json:"error,omitempty"`
	Data   json.RawMessage `json:"data,omitempty"`
}

type buttonData struct {
	Active bool `json:"active"`
}

type irData struct {
	Code json.RawMessage `json:"code"`
}

type keyData struct {
	Key string `json:"key"`
}

type notifyData struct {
	Command string `json:"command"`
	LeadMs  int    `json:"lead_ms,omitempty"`
}

// Decode parses one request. Time travel requests are attributed to origin.
// A status request yields a nil event and typ TypeStatus.
func Decode(line []byte, origin travel.Origin) (typ string, ev trigger.Event, err error) {
	var env Envelope
	if err := json.Unmarshal(line, &env); err != nil {
		return "", nil, fmt.Errorf("unmarshal envelope: %w", err)
	}

	switch env.Type {
	case TypeStatus:
		return env.Type, nil, nil

	case TypePress:
		return env.Type, trigger.ButtonPressed{}, nil

	case TypeHold:
		return env.Type, trigger.ButtonHeld{}, nil

	case TypeTimeTravel:
		return env.Type, trigger.TimeTravel{Origin: origin}, nil

	case TypeButton:
		var d buttonData
		if err := unmarshalData(env, &d); err != nil {
			return "", nil, err
		}
		return env.Type, trigger.ButtonLevel{Active: d.Active}, nil

	case TypeIR:
		var d irData
		if err := unmarshalData(env, &d); err != nil {
			return "", nil, err
		}
		code, err := trigger.ParseCode(d.Code)
		if err != nil {
			return "", nil, fmt.Errorf("ir: %w", err)
		}
		return env.Type, trigger.IRCode{Code: code}, nil

	case TypeKey:
		var d keyData
		if err := unmarshalData(env, &d); err != nil {
			return "", nil, err
		}
		k, err := trigger.ParseKey(d.Key)
		if err != nil {
			return "", nil, err
		}
		return env.Type, trigger.IRKey{Key: k}, nil

	case TypeNotify:
		var d notifyData
		if err := unmarshalData(env, &d); err != nil {
			return "", nil, err
		}
		cmd, err := bttfn.ParseCommand(d.Command)
		if err != nil {
			return "", nil, err
		}
		return env.Type, trigger.Notification{Command: cmd, LeadMs: d.LeadMs}, nil

	default:
		return "", nil, fmt.Errorf("unknown request type: %q", env.Type)
	}
}

func unmarshalData(env Envelope, v any) error {
	if len(env.Data) == 0 {
		return fmt.Errorf("%s: missing data", env.Type)
	}
	if err := json.Unmarshal(env.Data, v); err != nil {
		return fmt.Errorf("unmarshal %s: %w", env.Type, err)
	}
	return nil
}

// Encode serializes an input event as a request line (without newline).
func Encode(ev trigger.Event) ([]byte, error) {
	env := Envelope{}

	var data any
	switch e := ev.(type) {
	case trigger.ButtonPressed:
		env.Type = TypePress
	case trigger.ButtonHeld:
		env.Type = TypeHold
	case trigger.TimeTravel:
		env.Type = TypeTimeTravel
	case trigger.ButtonLevel:
		env.Type = TypeButton
		data = buttonData{Active: e.Active}
	case trigger.IRCode:
		env.Type = TypeIR
		data = irData{Code: json.RawMessage(fmt.Sprintf(`"0x%08x"`, e.Code))}
	case trigger.IRKey:
		env.Type = TypeKey
		data = keyData{Key: e.Key.String()}
	case trigger.Notification:
		env.Type = TypeNotify
		data = notifyData{Command: e.Command.String(), LeadMs: e.LeadMs}
	default:
		return nil, fmt.Errorf("unsupported event type: %T", ev)
	}

	if data != nil {
		b, err := json.Marshal(data)
		if err != nil {
			return nil, fmt.Errorf("marshal %s: %w", env.Type, err)
		}
		env.Data = b
	}
	return json.Marshal(env)
}
