package settings

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
)

func TestLoad_MissingFileGivesDefaults(t *testing.T) {
	st := Open(filepath.Join(t.TempDir(), "nope", "settings.cbor"))
	s, err := st.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if s != Default() {
		t.Fatalf("state = %+v, want defaults", s)
	}
}

func TestSave_CreatesDirectoryAndLoadsBack(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state", "settings.cbor")
	st := Open(path)

	want := Default()
	want.Brightness = 7
	want.IdleMode = 4
	want.IRLocked = true
	want.Peaks = true
	want.LearnedKeys[0] = 0x97483bfb
	want.LearnedKeys[16] = 0x1

	if err := st.Save(want); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if _, err := os.Stat(path + ".tmp"); !os.IsNotExist(err) {
		t.Fatalf("temporary file left behind: %v", err)
	}
	got, err := Open(path).Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got != want {
		t.Fatalf("loaded %+v, want %+v", got, want)
	}
}

func TestEncode_Deterministic(t *testing.T) {
	s := Default()
	s.IdleMode = 2
	a, err := Encode(s)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	b, _ := Encode(s)
	if !bytes.Equal(a, b) {
		t.Fatalf("encodings differ")
	}
}

func TestDecode_NormalizesOutOfRange(t *testing.T) {
	data, err := encMode.Marshal(map[string]any{"brightness": 99, "idle_mode": 7})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	s, err := Decode(data)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if s.Brightness != maxBrightness || s.IdleMode != 0 {
		t.Fatalf("state = %+v", s)
	}
}

func TestDecode_PartialDocumentKeepsDefaults(t *testing.T) {
	data, _ := encMode.Marshal(map[string]any{"ir_locked": true})
	s, err := Decode(data)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if !s.IRLocked || s.Brightness != maxBrightness {
		t.Fatalf("state = %+v", s)
	}
}

func TestLoad_CorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.cbor")
	if err := os.WriteFile(path, []byte{0xff, 0x00, 0x13}, 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	s, err := Open(path).Load()
	if err == nil {
		t.Fatalf("corrupt file loaded without error")
	}
	if s != Default() {
		t.Fatalf("corrupt file state = %+v", s)
	}
}
