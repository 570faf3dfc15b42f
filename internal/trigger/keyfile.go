package trigger

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"

	"github.com/tidwall/jsonc"
)

// ParseKeyFile reads user IR codes from a JSON object mapping key names
// (see KeyNames) to codes. Comments and trailing commas are allowed. Codes
// may be numbers or strings in any base strconv understands ("0x97483bfb").
// Keys not named in the file keep a zero code; unknown names are ignored.
func ParseKeyFile(data []byte) ([NumKeys]uint32, error) {
	var out [NumKeys]uint32

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(jsonc.ToJSON(data), &raw); err != nil {
		return out, fmt.Errorf("parsing key file: %w", err)
	}

	for k, name := range KeyNames {
		v, ok := raw[name]
		if !ok {
			continue
		}
		code, err := ParseCode(v)
		if err != nil {
			return out, fmt.Errorf("%s: %w", name, err)
		}
		out[k] = code
	}
	return out, nil
}

// ParseCode reads an IR code given as a JSON number or as a string in any
// base strconv understands.
func ParseCode(v json.RawMessage) (uint32, error) {
	var s string
	if err := json.Unmarshal(v, &s); err == nil {
		n, err := strconv.ParseUint(s, 0, 32)
		if err != nil {
			return 0, fmt.Errorf("invalid code %q", s)
		}
		return uint32(n), nil
	}
	var n uint32
	if err := json.Unmarshal(v, &n); err != nil {
		return 0, fmt.Errorf("invalid code %s", v)
	}
	return n, nil
}

// LoadKeyFile reads and parses a user key file.
func LoadKeyFile(path string) ([NumKeys]uint32, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return [NumKeys]uint32{}, fmt.Errorf("reading %s: %w", path, err)
	}
	codes, err := ParseKeyFile(data)
	if err != nil {
		return codes, fmt.Errorf("%s: %w", path, err)
	}
	return codes, nil
}
