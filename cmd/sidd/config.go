package main

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"sidcontrol/internal/bttfn"
	"sidcontrol/internal/controller"
)

// Config is the top-level YAML configuration for the sidd daemon.
//
// Defaults and validation live here so the rest of the daemon can assume a
// well-formed config. Flags exist for small overrides only.
type Config struct {
	Device   DeviceConfig   `yaml:"device"`
	BTTFN    BTTFNConfig    `yaml:"bttfn"`
	Input    InputConfig    `yaml:"input"`
	IR       IRConfig       `yaml:"ir"`
	Behavior BehaviorConfig `yaml:"behavior"`
	Settings SettingsConfig `yaml:"settings"`
	IPC      IPCConfig      `yaml:"ipc"`
	HTTP     HTTPConfig     `yaml:"http"`
	Bus      BusConfig      `yaml:"bus"`
	Loop     LoopConfig     `yaml:"loop"`
	Logging  LoggingConfig  `yaml:"logging"`
}

type DeviceConfig struct {
	// Hostname is announced to the peer in every request.
	Hostname string `yaml:"hostname"`
}

type BTTFNConfig struct {
	// Peer is the time circuits host ("host" or "host:port"). Empty disables
	// the network link.
	Peer      string `yaml:"peer"`
	LocalPort int    `yaml:"local_port"`
	PollMS    int    `yaml:"poll_ms"`
	TimeoutMS int    `yaml:"timeout_ms"`
}

type InputConfig struct {
	// Devices are evdev nodes carrying the button and the IR receiver.
	Devices []string `yaml:"devices"`
	// ButtonCode is the EV_KEY code of the time travel button.
	ButtonCode int `yaml:"button_code"`
	// Wired means the button input is the companion's trigger line.
	Wired bool `yaml:"wired"`
}

type IRConfig struct {
	UserKeysFile       string `yaml:"user_keys_file"`
	DisableDefaultKeys bool   `yaml:"disable_default_keys"`
	// Scancodes feeds raw MSC_SCAN codes through the key table. When false
	// the kernel keymap's KEY_* events are used instead.
	Scancodes bool `yaml:"scancodes"`
}

type BehaviorConfig struct {
	ScreenSaverMin     int  `yaml:"screen_saver_min"`
	UsePeerSpeed       bool `yaml:"use_peer_speed"`
	FollowNightMode    bool `yaml:"follow_night_mode"`
	FollowFakePower    bool `yaml:"follow_fake_power"`
	WaitForFakePowerOn bool `yaml:"wait_for_fake_power_on"`
}

type SettingsConfig struct {
	Path string `yaml:"path"`
}

type IPCConfig struct {
	SocketPath string `yaml:"socket_path"`
}

type HTTPConfig struct {
	// Port serves /ws, /status and /metrics. 0 disables the server.
	Port int `yaml:"port"`
}

type BusConfig struct {
	// URL of the NATS server. Empty disables the bus.
	URL            string `yaml:"url"`
	CommandSubject string `yaml:"command_subject"`
	EventSubject   string `yaml:"event_subject"`
}

type LoopConfig struct {
	TickMS int `yaml:"tick_ms"`
	// Seed makes the animations reproducible; 0 picks a random seed.
	Seed uint64 `yaml:"seed"`
}

type LoggingConfig struct {
	Level string `yaml:"level"`
}

// DefaultConfig returns a fully-populated Config with defaults.
func DefaultConfig() Config {
	return Config{
		Device: DeviceConfig{
			Hostname: "sid",
		},
		BTTFN: BTTFNConfig{
			LocalPort: bttfn.DefaultPort,
			PollMS:    bttfn.DefaultPollIntervalMs,
			TimeoutMS: bttfn.DefaultResponseTimeoutMs,
		},
		Input: InputConfig{
			Devices:    []string{"/dev/input/event0"},
			ButtonCode: BTN_0,
		},
		IR: IRConfig{
			Scancodes: true,
		},
		Settings: SettingsConfig{
			Path: "~/.local/state/sid/settings.cbor",
		},
		IPC: IPCConfig{
			SocketPath: "/tmp/sidd.sock",
		},
		HTTP: HTTPConfig{
			Port: 3011,
		},
		Bus: BusConfig{
			CommandSubject: "sid.cmd",
			EventSubject:   "sid.events",
		},
		Loop: LoopConfig{
			TickMS: defaultTickMS,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// LoadConfigFile reads and parses a YAML config file on top of the defaults.
// Unknown fields are rejected to catch typos.
func LoadConfigFile(path string) (Config, error) {
	if path == "" {
		return Config{}, errors.New("config path is empty")
	}
	b, err := os.ReadFile(ExpandPath(path))
	if err != nil {
		return Config{}, fmt.Errorf("read config file: %w", err)
	}

	cfg := DefaultConfig()

	dec := yaml.NewDecoder(bytes.NewReader(b))
	dec.KnownFields(true)

	if err := dec.Decode(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config yaml: %w", err)
	}

	// Only whitespace and comments may follow the document. Any second
	// document decodes into a node, whatever its keys.
	var extra yaml.Node
	if err := dec.Decode(&extra); !errors.Is(err, io.EOF) {
		return Config{}, errors.New("decode config yaml: unexpected trailing document")
	}

	return cfg, nil
}

// FlagOverrides carries flag values that replace config file values. A nil
// pointer means the flag was not given.
type FlagOverrides struct {
	Peer          *string
	InputDevices  *[]string
	Wired         *bool
	IPCSocketPath *string
	HTTPPort      *int
	BusURL        *string
	SettingsPath  *string
	Seed          *uint64
	LogLevel      *string
}

// Apply merges the overrides into cfg.
func (o FlagOverrides) Apply(cfg *Config) {
	if cfg == nil {
		return
	}
	if o.Peer != nil {
		cfg.BTTFN.Peer = *o.Peer
	}
	if o.InputDevices != nil {
		cfg.Input.Devices = append([]string(nil), (*o.InputDevices)...)
	}
	if o.Wired != nil {
		cfg.Input.Wired = *o.Wired
	}
	if o.IPCSocketPath != nil {
		cfg.IPC.SocketPath = *o.IPCSocketPath
	}
	if o.HTTPPort != nil {
		cfg.HTTP.Port = *o.HTTPPort
	}
	if o.BusURL != nil {
		cfg.Bus.URL = *o.BusURL
	}
	if o.SettingsPath != nil {
		cfg.Settings.Path = *o.SettingsPath
	}
	if o.Seed != nil {
		cfg.Loop.Seed = *o.Seed
	}
	if o.LogLevel != nil {
		cfg.Logging.Level = *o.LogLevel
	}
}

// Validate checks config invariants and returns a user-friendly error.
// Call it after defaults, file and overrides are applied.
func (c *Config) Validate() error {
	if c.Device.Hostname == "" {
		return errors.New("device.hostname must not be empty")
	}
	if len(c.Device.Hostname) > bttfn.MaxHostname {
		return fmt.Errorf("device.hostname must be at most %d characters", bttfn.MaxHostname)
	}

	if strings.ContainsAny(c.BTTFN.Peer, " /") {
		return fmt.Errorf("bttfn.peer %q is not a host or host:port", c.BTTFN.Peer)
	}
	if c.BTTFN.LocalPort < 0 || c.BTTFN.LocalPort > 65535 {
		return errors.New("bttfn.local_port must be between 0 and 65535")
	}
	if c.BTTFN.PollMS <= 0 {
		return errors.New("bttfn.poll_ms must be > 0")
	}
	if c.BTTFN.TimeoutMS <= 0 || c.BTTFN.TimeoutMS >= c.BTTFN.PollMS {
		return errors.New("bttfn.timeout_ms must be > 0 and < bttfn.poll_ms")
	}

	for i, dev := range c.Input.Devices {
		if dev == "" {
			return fmt.Errorf("input.devices[%d] is empty", i)
		}
	}
	if c.Input.ButtonCode <= 0 || c.Input.ButtonCode > KEY_MAX {
		return fmt.Errorf("input.button_code must be between 1 and %d", KEY_MAX)
	}

	if c.Behavior.ScreenSaverMin < 0 || c.Behavior.ScreenSaverMin > 99 {
		return errors.New("behavior.screen_saver_min must be between 0 and 99")
	}
	if c.Behavior.WaitForFakePowerOn && !c.Behavior.FollowFakePower {
		return errors.New("behavior.wait_for_fake_power_on requires behavior.follow_fake_power")
	}

	if c.IPC.SocketPath == "" {
		return errors.New("ipc.socket_path must not be empty")
	}
	if c.HTTP.Port < 0 || c.HTTP.Port > 65535 {
		return errors.New("http.port must be between 0 and 65535")
	}
	if c.Bus.URL != "" && (c.Bus.CommandSubject == "" || c.Bus.EventSubject == "") {
		return errors.New("bus.command_subject and bus.event_subject must not be empty")
	}

	if c.Loop.TickMS <= 0 || c.Loop.TickMS > 50 {
		return errors.New("loop.tick_ms must be between 1 and 50")
	}

	if _, err := parseLogLevel(c.Logging.Level); err != nil {
		return fmt.Errorf("logging.level: %w", err)
	}

	return nil
}

// ToBTTFNConfig converts the file config into the client's config.
func (c *Config) ToBTTFNConfig() bttfn.Config {
	return bttfn.Config{
		Hostname:          c.Device.Hostname,
		PollIntervalMs:    int64(c.BTTFN.PollMS),
		ResponseTimeoutMs: int64(c.BTTFN.TimeoutMS),
	}
}

// ToOptions converts the behavior section into controller options.
func (c *Config) ToOptions() controller.Options {
	return controller.Options{
		Wired:              c.Input.Wired,
		ScreenSaverMin:     c.Behavior.ScreenSaverMin,
		UsePeerSpeed:       c.Behavior.UsePeerSpeed,
		FollowNightMode:    c.Behavior.FollowNightMode,
		FollowFakePower:    c.Behavior.FollowFakePower,
		WaitForFakePowerOn: c.Behavior.WaitForFakePowerOn,
	}
}

// ExpandPath expands a leading "~" in a path using $HOME.
func ExpandPath(p string) string {
	if p == "" {
		return p
	}
	if p[0] != '~' {
		return p
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return p
	}
	if p == "~" {
		return home
	}
	if len(p) >= 2 && (p[1] == '/' || p[1] == '\\') {
		return filepath.Join(home, p[2:])
	}
	return p
}
