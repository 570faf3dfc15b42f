package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/spf13/pflag"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sys/unix"

	"sidcontrol/internal/bttfn"
	"sidcontrol/internal/clock"
	"sidcontrol/internal/controller"
	"sidcontrol/internal/display"
	"sidcontrol/internal/games"
	"sidcontrol/internal/ipc"
	"sidcontrol/internal/metrics"
	"sidcontrol/internal/rng"
	"sidcontrol/internal/settings"
	"sidcontrol/internal/spectrum"
	"sidcontrol/internal/trigger"
)

const version = "1.0.0"

func printVersion() {
	fmt.Printf("sidd v%s\n", version)
	fmt.Println("Spectrum indicator display daemon with BTTFN time travel sync")
}

func main() {
	fs := pflag.NewFlagSet("sidd", pflag.ContinueOnError)
	fs.SortFlags = false

	var (
		configPath   = fs.StringP("config", "c", "", "YAML config file (reloaded on change)")
		peer         = fs.String("peer", "", "BTTFN peer (time circuits) host or host:port")
		inputDevices = fs.StringSlice("input-device", nil, "Linux input event device (repeatable)")
		wired        = fs.Bool("wired", false, "Button input is the companion's trigger line")
		ipcSocket    = fs.String("ipc-socket", "", "Unix domain socket path for IPC")
		httpPort     = fs.Int("http-port", 0, "HTTP port for /ws, /status and /metrics (0 disables)")
		busURL       = fs.String("bus-url", "", "NATS server URL")
		settingsPath = fs.String("settings", "", "Settings file path")
		seed         = fs.Uint64("seed", 0, "Animation random seed (0 = random)")
		logLevel     = fs.String("log-level", "", "Log level: error, warn, info, debug")
		showVersion  = fs.Bool("version", false, "Print version and exit")
	)
	fs.Usage = func() {
		printVersion()
		fmt.Println()
		fmt.Println("USAGE:")
		fmt.Println("  sidd [OPTIONS]")
		fmt.Println()
		fmt.Println("OPTIONS:")
		fmt.Print(fs.FlagUsages())
		fmt.Println()
		fmt.Println("NOTES:")
		fmt.Println("  - Flags override values from the config file.")
		fmt.Println("  - Requires read access to input devices (run as root or add user to 'input' group)")
	}

	if err := fs.Parse(os.Args[1:]); err != nil {
		if err == pflag.ErrHelp {
			return
		}
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(2)
	}
	if *showVersion {
		printVersion()
		return
	}

	var o FlagOverrides
	if fs.Changed("peer") {
		o.Peer = peer
	}
	if fs.Changed("input-device") {
		o.InputDevices = inputDevices
	}
	if fs.Changed("wired") {
		o.Wired = wired
	}
	if fs.Changed("ipc-socket") {
		o.IPCSocketPath = ipcSocket
	}
	if fs.Changed("http-port") {
		o.HTTPPort = httpPort
	}
	if fs.Changed("bus-url") {
		o.BusURL = busURL
	}
	if fs.Changed("settings") {
		o.SettingsPath = settingsPath
	}
	if fs.Changed("seed") {
		o.Seed = seed
	}
	if fs.Changed("log-level") {
		o.LogLevel = logLevel
	}

	cfg := DefaultConfig()
	if *configPath != "" {
		var err error
		cfg, err = LoadConfigFile(*configPath)
		if err != nil {
			fmt.Fprintln(os.Stderr, "error:", err)
			os.Exit(1)
		}
	}
	o.Apply(&cfg)
	if err := cfg.Validate(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}

	level, _ := parseLogLevel(cfg.Logging.Level)
	levelVar := new(slog.LevelVar)
	levelVar.Set(level)
	logger := setupLogger(levelVar)

	restart, err := run(cfg, *configPath, o, levelVar, logger)
	if err != nil {
		logger.Error("sidd stopped", "error", err)
		os.Exit(1)
	}
	if restart {
		execSelf(logger)
	}
}

// execSelf replaces the process with a fresh copy of itself.
func execSelf(logger *slog.Logger) {
	exe, err := os.Executable()
	if err != nil {
		logger.Error("restart failed", "error", err)
		os.Exit(1)
	}
	logger.Info("restarting", "exe", exe)
	if err := unix.Exec(exe, os.Args, os.Environ()); err != nil {
		logger.Error("restart failed", "error", err)
		os.Exit(1)
	}
}

// run wires every component and blocks until shutdown. It reports whether a
// restart was requested from the remote.
func run(cfg Config, configPath string, overrides FlagOverrides, levelVar *slog.LevelVar, logger *slog.Logger) (bool, error) {
	logger.Debug("starting sidd", "version", version)

	sigCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithCancel(sigCtx)
	defer cancel()

	var restart atomic.Bool

	g, ctx := errgroup.WithContext(ctx)

	// ------------------------------------------------------------------------
	// Core
	// ------------------------------------------------------------------------

	m := metrics.New()
	clk := clock.NewReal()
	rnd := rng.New(cfg.Loop.Seed)

	store := settings.Open(ExpandPath(cfg.Settings.Path))
	state, err := store.Load()
	if err != nil {
		logger.Warn("loading settings failed, using defaults", "error", err)
	}

	keys := trigger.NewKeyTable()
	keys.SetDefaultsEnabled(!cfg.IR.DisableDefaultKeys)
	if cfg.IR.UserKeysFile != "" {
		codes, err := trigger.LoadKeyFile(ExpandPath(cfg.IR.UserKeysFile))
		if err != nil {
			return false, fmt.Errorf("ir.user_keys_file: %w", err)
		}
		keys.SetUser(codes)
	}

	var out chan broadcast
	if cfg.HTTP.Port > 0 {
		out = make(chan broadcast, broadcastQueueSize)
	}
	pub := newPublisher(out, m, logger)

	frame := display.NewFrame(pub.frameUpdated)

	var transport *bttfn.UDPTransport
	var link controller.Link
	if cfg.BTTFN.Peer != "" {
		transport, err = bttfn.ListenUDP(ctx, cfg.BTTFN.LocalPort, cfg.BTTFN.Peer, logger)
		if err != nil {
			return false, err
		}
		link = bttfn.NewClient(cfg.ToBTTFNConfig(), transport, m, logger)
	}

	ctrl := controller.New(controller.Config{
		Display:  frame,
		Rand:     rnd,
		Analyzer: spectrum.New(frame, spectrum.NewNoiseSource(rnd)),
		GameA:    games.NewSnake(frame, rnd),
		GameB:    games.NewStacker(frame, rnd),
		Keys:     keys,
		Link:     link,
		Store:    store,
		Settings: state,
		Options:  cfg.ToOptions(),
		Hooks: controller.Hooks{
			OnPhase:   pub.phaseChanged,
			OnDropped: pub.triggerDropped,
			OnRestart: func() {
				restart.Store(true)
				cancel()
			},
			IPAddress: localIPv4,
		},
		Logger: logger,
	})

	events := make(chan trigger.Event, eventQueueSize)

	g.Go(func() error {
		runDaemon(ctx, ctrl, clk, events, time.Duration(cfg.Loop.TickMS)*time.Millisecond, pub, logger)
		return nil
	})

	// ------------------------------------------------------------------------
	// Inputs
	// ------------------------------------------------------------------------

	if len(cfg.Input.Devices) > 0 {
		files := make([]*os.File, 0, len(cfg.Input.Devices))
		for _, dev := range cfg.Input.Devices {
			f, err := os.Open(dev)
			if err != nil {
				for _, f := range files {
					f.Close()
				}
				return false, fmt.Errorf("open input device %s (run as root or add user to 'input' group): %w", dev, err)
			}
			files = append(files, f)
		}
		defer func() {
			for _, f := range files {
				f.Close()
			}
		}()

		raw := make(chan inputEvent, eventQueueSize)
		readErr := make(chan error, len(files))
		go readInputDevices(files, raw, readErr)

		im := newInputMap(cfg.Input, cfg.IR)
		g.Go(func() error {
			for {
				select {
				case <-ctx.Done():
					return nil
				case err := <-readErr:
					return fmt.Errorf("input reader stopped: %w", err)
				case ev := <-raw:
					tev, ok := im.translate(ev)
					if !ok {
						continue
					}
					select {
					case events <- tev:
					case <-ctx.Done():
						return nil
					}
				}
			}
		})
	}

	g.Go(func() error {
		return ipc.Serve(ctx, cfg.IPC.SocketPath, events, pub.Status, logger)
	})

	if cfg.Bus.URL != "" {
		bus, err := ConnectBus(cfg.Bus, events, logger)
		if err != nil {
			return false, err
		}
		pub.bus.Store(bus)
		g.Go(func() error {
			<-ctx.Done()
			pub.bus.Store(nil)
			bus.Close()
			return nil
		})
	}

	// ------------------------------------------------------------------------
	// HTTP: websocket feed, status, metrics
	// ------------------------------------------------------------------------

	if cfg.HTTP.Port > 0 {
		ws := NewServer(logger, pub.initial, HubConfig{})
		g.Go(func() error {
			ws.Hub().Run(ctx)
			return nil
		})
		g.Go(func() error {
			RunBroadcaster(ctx, ws.Hub(), out, logger)
			return nil
		})
		mux := newMux(ws, pub.Status, m.Handler())
		g.Go(func() error {
			return runHTTPServer(ctx, cfg.HTTP.Port, mux, logger)
		})
	}

	// ------------------------------------------------------------------------
	// Config reload
	// ------------------------------------------------------------------------

	if configPath != "" {
		current := cfg
		g.Go(func() error {
			return watchConfig(ctx, configPath, overrides, func(next Config) {
				if lvl, err := parseLogLevel(next.Logging.Level); err == nil && next.Logging.Level != current.Logging.Level {
					levelVar.Set(lvl)
					logger.Info("log level changed", "level", lvl.String())
				}
				if next.BTTFN.Peer != current.BTTFN.Peer {
					switch {
					case transport == nil || next.BTTFN.Peer == "":
						logger.Warn("enabling or disabling the peer needs a restart", "peer", next.BTTFN.Peer)
					default:
						if err := transport.SetPeer(next.BTTFN.Peer); err != nil {
							logger.Warn("peer change failed", "peer", next.BTTFN.Peer, "error", err)
						} else {
							logger.Info("peer changed", "peer", next.BTTFN.Peer)
						}
					}
				}
				current = next
			}, logger)
		})
	}

	listenInfo := []any{"devices", cfg.Input.Devices, "ipc", cfg.IPC.SocketPath, "tick_ms", cfg.Loop.TickMS}
	if cfg.BTTFN.Peer != "" {
		listenInfo = append(listenInfo, "peer", cfg.BTTFN.Peer)
	}
	if cfg.HTTP.Port > 0 {
		listenInfo = append(listenInfo, "http_port", cfg.HTTP.Port)
	}
	logger.Info("listening", listenInfo...)

	err = g.Wait()
	if transport != nil {
		_ = transport.Close()
	}
	if err != nil {
		return false, err
	}
	logger.Info("shut down")
	return restart.Load(), nil
}
