package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/chase3718/nofft/envelope"
	"github.com/chase3718/nofft/internal/device"
	"github.com/chase3718/nofft/internal/serialout"
	"github.com/chase3718/nofft/internal/smfplay"
)

// -------------------- Logger --------------------

// logger is the package-wide structured logger. Safe to use before initLogger
// is called; defaults to slog.Default().
var logger = slog.Default()

// initLogger configures the shared slog logger and calls slog.SetDefault so
// the stdlib log package also routes through the same handler.
func initLogger(debug bool) {
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}
	h := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level:     level,
		AddSource: debug, // include file:line in debug mode
	})
	logger = slog.New(h)
	slog.SetDefault(logger)
}

// -------------------- Pitch helpers --------------------

var noteNames = [12]string{"C", "C#", "D", "D#", "E", "F", "F#", "G", "G#", "A", "A#", "B"}

func pitchName(pitch uint8) string {
	return fmt.Sprintf("%s%d", noteNames[pitch%12], int(pitch/12)-1)
}

// -------------------- Tunables --------------------

const (
	WATCH_MS    = 1000
	STATUS_MS   = 5000
	DEFAULT_FPS = 60
)

type options struct {
	debug         bool
	configPath    string
	fps           int
	ignoreNoteOff bool
	smfPath       string
	smfLoop       bool
	serialDev     string
	baud          int
	serialChannel int
	serialRate    int
}

func parseFlags() options {
	var o options
	flag.BoolVar(&o.debug, "debug", false, "enable debug logging (adds source location)")
	flag.StringVar(&o.configPath, "config", "", "YAML envelope config file")
	flag.IntVar(&o.fps, "fps", DEFAULT_FPS, "envelope update rate in frames per second")
	flag.BoolVar(&o.ignoreNoteOff, "ignore-note-off", false, "let every note decay on its own (overrides config)")
	flag.StringVar(&o.smfPath, "smf", "", "replay a Standard MIDI File instead of listening to devices")
	flag.BoolVar(&o.smfLoop, "loop", false, "loop SMF playback")
	flag.StringVar(&o.serialDev, "serial", "", "serial port device for envelope frames (disabled if empty)")
	flag.IntVar(&o.baud, "baud", 500000, "serial baud rate")
	flag.IntVar(&o.serialChannel, "serial-channel", envelope.AnyChannel, "channel streamed over serial (1-17)")
	flag.IntVar(&o.serialRate, "serial-rate", 30, "serial frames per second")
	flag.Parse()
	return o
}

func loadConfig(o options) (envelope.Config, error) {
	cfg := envelope.DefaultConfig()
	if o.configPath != "" {
		var err error
		if cfg, err = envelope.LoadConfig(o.configPath); err != nil {
			return cfg, err
		}
	}
	if o.ignoreNoteOff {
		cfg.IgnoreNoteOff = true
	}
	return cfg, nil
}

// logHooks logs every event seen on the any-channel.
func logHooks(id int) envelope.Hooks {
	if id != envelope.AnyChannel {
		return nil
	}
	return envelope.HookFuncs{
		OnNoteOn: func(note uint8, vel float64) {
			logger.Debug("NOTE ON", "pitch", pitchName(note), "midi_pitch", note, "velocity", vel)
		},
		OnNoteOff: func(note uint8) {
			logger.Debug("NOTE OFF", "pitch", pitchName(note), "midi_pitch", note)
		},
		OnController: func(num uint8, value float64) {
			logger.Debug("CONTROLLER", "num", num, "value", value)
		},
	}
}

// -------------------- Main --------------------

func main() {
	o := parseFlags()
	initLogger(o.debug)

	cfg, err := loadConfig(o)
	if err != nil {
		logger.Error("config load failed", "err", err)
		os.Exit(1)
	}
	if o.fps <= 0 || o.serialRate <= 0 {
		logger.Error("fps and serial-rate must be positive", "fps", o.fps, "serial_rate", o.serialRate)
		os.Exit(1)
	}

	logger.Info("nofft starting",
		"config", o.configPath,
		"fps", o.fps,
		"ignore_note_off", cfg.IgnoreNoteOff,
		"attack", fmt.Sprintf("%v..%v", cfg.Attack.Min, cfg.Attack.Max),
		"decay", fmt.Sprintf("%v..%v", cfg.Decay.Min, cfg.Decay.Max),
		"serial", o.serialDev,
		"smf", o.smfPath,
	)

	sys, err := envelope.New(cfg, envelope.WithLogger(logger), envelope.WithHooks(logHooks))
	if err != nil {
		logger.Error("envelope init failed", "err", err)
		os.Exit(1)
	}
	defer sys.Close()

	// watcher stays nil when replaying a file
	var watcher *device.Watcher
	if o.smfPath != "" {
		events, err := smfplay.Load(o.smfPath)
		if err != nil {
			logger.Error("smf load failed", "file", o.smfPath, "err", err)
			os.Exit(1)
		}
		if err := sys.Init(smfplay.NewPlayer(events, o.smfLoop, logger)); err != nil {
			logger.Error("smf playback failed", "err", err)
			os.Exit(1)
		}
	} else {
		watcher = device.NewWatcher(
			device.WithLogger(logger),
			device.WithRescanInterval(WATCH_MS*time.Millisecond),
			device.OnDisconnect(func(name string) {
				logger.Warn("midi: disconnect, releasing sounding notes", "device", name)
				sys.ReleaseAll()
			}),
		)
		if err := sys.Init(watcher); err != nil {
			logger.Error("The MIDI system failed to start", "err", err)
			os.Exit(1)
		}
	}

	var port *serialout.Port
	if o.serialDev != "" {
		if port, err = serialout.Open(o.serialDev, o.baud, logger); err != nil {
			logger.Error("serial init failed", "err", err)
			os.Exit(1)
		}
		defer port.Close()
	}

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)

	frame := time.NewTicker(time.Second / time.Duration(o.fps))
	defer frame.Stop()
	serialTick := time.NewTicker(time.Second / time.Duration(o.serialRate))
	defer serialTick.Stop()
	watch := time.NewTicker(WATCH_MS * time.Millisecond)
	defer watch.Stop()
	status := time.NewTicker(STATUS_MS * time.Millisecond)
	defer status.Stop()

	logger.Info("running, waiting for MIDI input")

	for {
		select {
		case <-sig:
			logger.Info("shutting down")
			return
		case <-frame.C:
			sys.Update()
		case <-serialTick.C:
			if port == nil {
				continue
			}
			snap, ok := sys.Snapshot(o.serialChannel)
			if !ok {
				continue
			}
			if err := port.SendSnapshot(snap, cfg.Envelope); err != nil {
				logger.Error("serial: write error", "err", err)
			}
		case <-watch.C:
			if watcher != nil {
				watcher.Tick()
			}
		case <-status.C:
			anyc, _ := sys.Snapshot(envelope.AnyChannel)
			logger.Debug("status",
				"running", sys.Running(),
				"last_note", pitchName(anyc.LastNote),
				"any_envelope", anyc.AnyEnvelope,
			)
		}
	}
}
