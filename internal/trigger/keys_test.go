package trigger

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestKeyTable_LookupOrder(t *testing.T) {
	kt := NewKeyTable()
	if k, ok := kt.Lookup(DefaultCodes[KeyOK]); !ok || k != KeyOK {
		t.Fatalf("default OK resolves to %v %v", k, ok)
	}

	// A learned code that collides with a later key's default wins for the
	// earlier key.
	var learned [NumKeys]uint32
	learned[Key2] = DefaultCodes[Key5]
	kt.SetLearned(learned)
	if k, _ := kt.Lookup(DefaultCodes[Key5]); k != Key2 {
		t.Fatalf("lookup = %v, want key2", k)
	}

	kt.SetDefaultsEnabled(false)
	if _, ok := kt.Lookup(DefaultCodes[Key0]); ok {
		t.Fatalf("default code resolved with defaults disabled")
	}
	if _, ok := kt.Lookup(0); ok {
		t.Fatalf("zero code resolved")
	}
}

func TestKey_Labels(t *testing.T) {
	if KeyStar.Label() != '*' || KeyOK.Label() != '~' || Key(99).Label() != ' ' {
		t.Fatalf("labels %c %c", KeyStar.Label(), KeyOK.Label())
	}
	if KeyHash.String() != "keyHASH" {
		t.Fatalf("name %s", KeyHash)
	}
}

func TestParseKey(t *testing.T) {
	cases := map[string]Key{
		"7":       Key7,
		"keyOK":   KeyOK,
		"keyhash": KeyHash,
		"#":       KeyHash,
		"Up":      KeyUp,
		" ok ":    KeyOK,
	}
	for in, want := range cases {
		got, err := ParseKey(in)
		if err != nil || got != want {
			t.Fatalf("ParseKey(%q) = %v, %v; want %v", in, got, err, want)
		}
	}
	if _, err := ParseKey("key42"); err == nil {
		t.Fatalf("unknown key accepted")
	}
}

func TestParseKeyFile(t *testing.T) {
	data := []byte(`{
		// my remote
		"key0": "0x00ff6897",
		"keyOK": 3735928559, /* decimal is fine too */
		"keySTAR": "0XABCDEF01",
		"unknown": "0x1",
	}`)
	codes, err := ParseKeyFile(data)
	if err != nil {
		t.Fatalf("ParseKeyFile: %v", err)
	}
	if codes[Key0] != 0x00ff6897 || codes[KeyOK] != 0xdeadbeef || codes[KeyStar] != 0xabcdef01 {
		t.Fatalf("codes %x", codes)
	}
	if codes[Key1] != 0 {
		t.Fatalf("missing key got code %x", codes[Key1])
	}
}

func TestParseKeyFile_Errors(t *testing.T) {
	for _, in := range []string{`[1,2]`, `{"key1": "zz"}`, `{"key2": -4}`, `{"key3": "0x1ffffffff"}`} {
		if _, err := ParseKeyFile([]byte(in)); err == nil {
			t.Errorf("ParseKeyFile(%s) succeeded", in)
		}
	}
}

func TestLoadKeyFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ir_keys.jsonc")
	if err := os.WriteFile(path, []byte(`{"key9": "0x10"}`), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	codes, err := LoadKeyFile(path)
	if err != nil || codes[Key9] != 0x10 {
		t.Fatalf("codes %x err %v", codes, err)
	}

	_, err = LoadKeyFile(filepath.Join(t.TempDir(), "missing.jsonc"))
	if err == nil || !strings.Contains(err.Error(), "missing.jsonc") {
		t.Fatalf("err = %v", err)
	}
}
