// Package settings persists the user-adjustable state of the prop: the
// brightness, the idle pattern, the IR lock, learned remote codes and the
// analyzer peak setting.
//
// The state is stored as one CBOR document using Core Deterministic
// Encoding, written atomically (temporary file, fsync, rename).
package settings

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/fxamacker/cbor/v2"
)

// NumKeys is the number of remote keys that can be learned.
const NumKeys = 17

const (
	maxBrightness = 15
	numIdleModes  = 5
	formatVersion = 1
)

// State is the persisted state.
type State struct {
	Version     int             `cbor:"version"`
	Brightness  int             `cbor:"brightness"`
	IdleMode    int             `cbor:"idle_mode"`
	IRLocked    bool            `cbor:"ir_locked"`
	Peaks       bool            `cbor:"peaks"`
	LearnedKeys [NumKeys]uint32 `cbor:"learned_keys"`
}

// Default returns the factory state.
func Default() State {
	return State{Version: formatVersion, Brightness: maxBrightness}
}

// Normalize clamps out-of-range values: brightness to 0..15 and unknown
// idle modes to the default pattern.
func (s *State) Normalize() {
	s.Version = formatVersion
	if s.Brightness < 0 {
		s.Brightness = 0
	}
	if s.Brightness > maxBrightness {
		s.Brightness = maxBrightness
	}
	if s.IdleMode < 0 || s.IdleMode >= numIdleModes {
		s.IdleMode = 0
	}
}

var (
	encMode cbor.EncMode
	decMode cbor.DecMode
)

func init() {
	var err error
	encMode, err = cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic("settings: CBOR encoder initialization failed: " + err.Error())
	}
	decMode, err = cbor.DecOptions{}.DecMode()
	if err != nil {
		panic("settings: CBOR decoder initialization failed: " + err.Error())
	}
}

// Encode returns the CBOR encoding of s.
func Encode(s State) ([]byte, error) {
	return encMode.Marshal(s)
}

// Decode parses a CBOR document. Fields missing from data keep their
// default values; the result is normalized.
func Decode(data []byte) (State, error) {
	s := Default()
	if err := decMode.Unmarshal(data, &s); err != nil {
		return Default(), fmt.Errorf("decoding settings: %w", err)
	}
	s.Normalize()
	return s, nil
}

// Store reads and writes the state file. Save may be called from any
// goroutine.
type Store struct {
	path string
	mu   sync.Mutex
}

// Open returns a store for path. The file does not need to exist.
func Open(path string) *Store {
	return &Store{path: path}
}

// Path returns the file path.
func (st *Store) Path() string { return st.path }

// Load reads the state. A missing file yields Default and no error.
func (st *Store) Load() (State, error) {
	st.mu.Lock()
	defer st.mu.Unlock()

	data, err := os.ReadFile(st.path)
	if errors.Is(err, fs.ErrNotExist) {
		return Default(), nil
	}
	if err != nil {
		return Default(), fmt.Errorf("reading settings %s: %w", st.path, err)
	}
	s, err := Decode(data)
	if err != nil {
		return Default(), fmt.Errorf("%s: %w", st.path, err)
	}
	return s, nil
}

// Save writes s atomically, creating the parent directory if needed.
func (st *Store) Save(s State) error {
	s.Normalize()
	data, err := Encode(s)
	if err != nil {
		return fmt.Errorf("encoding settings: %w", err)
	}

	st.mu.Lock()
	defer st.mu.Unlock()

	dir := filepath.Dir(st.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating settings directory: %w", err)
	}

	tmp := st.path + ".tmp"
	f, err := os.OpenFile(tmp, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return fmt.Errorf("creating temporary settings file: %w", err)
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("writing temporary settings file: %w", err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("syncing temporary settings file: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("closing temporary settings file: %w", err)
	}
	if err := os.Rename(tmp, st.path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("renaming settings file into place: %w", err)
	}
	return nil
}
