package trigger

import (
	"fmt"
	"strings"
)

// Key is a logical remote-control key.
type Key int

const (
	Key0 Key = iota
	Key1
	Key2
	Key3
	Key4
	Key5
	Key6
	Key7
	Key8
	Key9
	KeyStar
	KeyHash
	KeyUp
	KeyDown
	KeyLeft
	KeyRight
	KeyOK

	NumKeys = 17
)

// KeyNames are the names used in the user key file, indexed by Key.
var KeyNames = [NumKeys]string{
	"key0", "key1", "key2", "key3", "key4",
	"key5", "key6", "key7", "key8", "key9",
	"keySTAR", "keyHASH",
	"keyUP", "keyDOWN", "keyLEFT", "keyRIGHT",
	"keyOK",
}

// keyLabels are the characters shown while learning each key.
const keyLabels = "0123456789*#^$<>~"

// Label returns the character displayed for k while learning.
func (k Key) Label() byte {
	if k < 0 || int(k) >= NumKeys {
		return ' '
	}
	return keyLabels[k]
}

func (k Key) String() string {
	if k < 0 || int(k) >= NumKeys {
		return "key?"
	}
	return KeyNames[k]
}

// keyAliases are the short names accepted by ParseKey.
var keyAliases = map[string]Key{
	"*": KeyStar, "star": KeyStar,
	"#": KeyHash, "hash": KeyHash,
	"up": KeyUp, "down": KeyDown, "left": KeyLeft, "right": KeyRight,
	"ok": KeyOK,
}

// ParseKey accepts a key file name ("keyOK"), a digit or a short alias
// ("ok", "#", "up"). Case is ignored.
func ParseKey(s string) (Key, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	if len(name) == 1 && name[0] >= '0' && name[0] <= '9' {
		return Key(name[0] - '0'), nil
	}
	if k, ok := keyAliases[name]; ok {
		return k, nil
	}
	for k, n := range KeyNames {
		if strings.EqualFold(n, name) {
			return Key(k), nil
		}
	}
	return 0, fmt.Errorf("unknown key %q", s)
}

// IsDigit reports whether k is one of Key0..Key9.
func (k Key) IsDigit() bool { return k >= Key0 && k <= Key9 }

// DefaultCodes are the codes of the remote shipped with the prop.
var DefaultCodes = [NumKeys]uint32{
	0x97483bfb, // 0
	0xe318261b, // 1
	0x00511dbb, // 2
	0xee886d7f, // 3
	0x52a3d41f, // 4
	0xd7e84b1b, // 5
	0x20fe4dbb, // 6
	0xf076c13b, // 7
	0xa3c8eddb, // 8
	0xe5cfbd7f, // 9
	0xc101e57b, // *
	0xf0c41643, // #
	0x3d9ae3f7, // up
	0x1bc0157b, // down
	0x8c22657b, // left
	0x0449e79f, // right
	0x488f3cbb, // OK
}

const (
	colUser = iota
	colLearned
	colDefault
	numColumns
)

// KeyTable resolves raw IR codes to keys. Each key has up to three codes:
// one from the user key file, one learned, and the built-in default.
// A zero code never matches.
type KeyTable struct {
	codes       [NumKeys][numColumns]uint32
	useDefaults bool
}

// NewKeyTable returns a table holding only the default codes.
func NewKeyTable() *KeyTable {
	t := &KeyTable{useDefaults: true}
	for k, c := range DefaultCodes {
		t.codes[k][colDefault] = c
	}
	return t
}

// SetDefaultsEnabled controls whether the built-in codes are consulted.
func (t *KeyTable) SetDefaultsEnabled(on bool) { t.useDefaults = on }

// SetUser installs codes from a user key file.
func (t *KeyTable) SetUser(codes [NumKeys]uint32) { t.setColumn(colUser, codes) }

// SetLearned installs learned codes.
func (t *KeyTable) SetLearned(codes [NumKeys]uint32) { t.setColumn(colLearned, codes) }

// Learned returns the learned codes.
func (t *KeyTable) Learned() [NumKeys]uint32 {
	var out [NumKeys]uint32
	for k := range out {
		out[k] = t.codes[k][colLearned]
	}
	return out
}

// ClearLearned forgets every learned code.
func (t *KeyTable) ClearLearned() { t.setColumn(colLearned, [NumKeys]uint32{}) }

func (t *KeyTable) setColumn(col int, codes [NumKeys]uint32) {
	for k, c := range codes {
		t.codes[k][col] = c
	}
}

func (t *KeyTable) setCode(k Key, col int, code uint32) {
	t.codes[k][col] = code
}

// Lookup returns the key for code. Keys are checked in order, and for each
// key the user, learned and default codes in that order.
func (t *KeyTable) Lookup(code uint32) (Key, bool) {
	if code == 0 {
		return 0, false
	}
	cols := numColumns
	if !t.useDefaults {
		cols = colDefault
	}
	for k := 0; k < NumKeys; k++ {
		for c := 0; c < cols; c++ {
			if t.codes[k][c] == code {
				return Key(k), true
			}
		}
	}
	return 0, false
}
