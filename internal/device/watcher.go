// Package device binds rtmidi input ports to an envelope.System.
package device

import (
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/drivers"
	"gitlab.com/gomidi/midi/v2/drivers/rtmididrv"

	"github.com/chase3718/nofft/envelope"
)

// DefaultExcludePatterns are virtual/system ports that are never connected.
var DefaultExcludePatterns = []string{"Midi Through", "Through Port", "Dummy"}

const DefaultRescanInterval = time.Second

// Driver is the part of a gomidi driver the watcher needs.
type Driver interface {
	Ins() ([]drivers.In, error)
	Close() error
}

// Watcher listens on every available MIDI input. It handles hot-plug (new
// ports appear) and hot-unplug (ports disappear) on each Tick.
//
// onDisconnect is called (from a goroutine) when a connected port is lost;
// callers use it to release sounding notes.
type Watcher struct {
	mu       sync.Mutex
	newDrv   func() (Driver, error)
	drv      Driver
	handle   func(msg []byte)
	ports    map[string]*port
	exclude  []string
	interval time.Duration
	lastScan time.Time
	logger   *slog.Logger

	onDisconnect func(name string)
}

type port struct {
	in   drivers.In
	stop func()
}

// Option configures a Watcher.
type Option func(*Watcher)

// WithExclude replaces the default exclude patterns.
func WithExclude(patterns ...string) Option {
	return func(w *Watcher) { w.exclude = patterns }
}

// WithRescanInterval sets how often Tick enumerates ports.
func WithRescanInterval(d time.Duration) Option {
	return func(w *Watcher) { w.interval = d }
}

// WithLogger sets the logger; the default is slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(w *Watcher) { w.logger = l }
}

// OnDisconnect registers the callback for lost ports.
func OnDisconnect(fn func(name string)) Option {
	return func(w *Watcher) { w.onDisconnect = fn }
}

// WithDriver replaces the rtmidi driver constructor.
func WithDriver(newDrv func() (Driver, error)) Option {
	return func(w *Watcher) { w.newDrv = newDrv }
}

// NewWatcher returns a watcher backed by rtmidi. Nothing is opened until
// Open is called.
func NewWatcher(opts ...Option) *Watcher {
	w := &Watcher{
		newDrv: func() (Driver, error) {
			drv, err := rtmididrv.New()
			if err != nil {
				return nil, err
			}
			return drv, nil
		},
		ports:    map[string]*port{},
		exclude:  DefaultExcludePatterns,
		interval: DefaultRescanInterval,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Open initialises the driver and connects every input present right now.
// A driver that cannot be created reports envelope.ErrUnsupported. Ports
// that fail to open are logged and retried on a later Tick.
func (w *Watcher) Open(handle func(msg []byte)) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.drv != nil {
		return errors.New("midi: watcher already open")
	}
	drv, err := w.newDrv()
	if err != nil {
		return fmt.Errorf("midi: driver: %w: %w", envelope.ErrUnsupported, err)
	}
	w.drv = drv
	w.handle = handle

	names, err := w.listInputs()
	if err != nil {
		w.drv.Close()
		w.drv = nil
		return fmt.Errorf("midi: list inputs: %w", err)
	}
	w.lastScan = time.Now()
	w.sync(names)
	if len(w.ports) == 0 {
		w.logger.Info("midi: no inputs connected, waiting for a device")
	}
	return nil
}

// Close shuts down every connection and the driver.
func (w *Watcher) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	for name := range w.ports {
		w.closePort(name)
	}
	if w.drv == nil {
		return nil
	}
	err := w.drv.Close()
	w.drv = nil
	return err
}

// Tick should be called on a regular interval from the main loop. It
// rescans at most once per rescan interval.
func (w *Watcher) Tick() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.drv == nil {
		return
	}

	now := time.Now()
	if !w.lastScan.IsZero() && now.Sub(w.lastScan) < w.interval {
		return
	}
	w.lastScan = now

	names, err := w.listInputs()
	if err != nil {
		w.logger.Error("midi: list inputs failed", "err", err)
		return
	}
	w.sync(names)
}

// Connected returns the names of the open ports, sorted.
func (w *Watcher) Connected() []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	names := make([]string, 0, len(w.ports))
	for n := range w.ports {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// -------------------- internal --------------------

// sync drops ports that vanished and opens ports that appeared.
func (w *Watcher) sync(names []string) {
	present := make(map[string]bool, len(names))
	for _, n := range names {
		present[n] = true
	}
	for name := range w.ports {
		if present[name] {
			continue
		}
		w.logger.Warn("midi: device disappeared", "device", name)
		w.closePort(name)
		w.disconnected(name)
	}
	for _, name := range names {
		if _, ok := w.ports[name]; ok {
			continue
		}
		if err := w.openByName(name); err != nil {
			w.logger.Error("midi: connect failed", "device", name, "err", err)
		}
	}
}

func (w *Watcher) disconnected(name string) {
	if w.onDisconnect != nil {
		go w.onDisconnect(name)
	}
}

func (w *Watcher) listInputs() ([]string, error) {
	ins, err := w.drv.Ins()
	if err != nil {
		return nil, err
	}
	var names []string
	for _, in := range ins {
		name := in.String()
		if excluded(name, w.exclude) {
			w.logger.Debug("midi: input excluded", "device", name)
			continue
		}
		names = append(names, name)
	}
	w.logger.Debug("midi: inputs found", "count", len(names), "devices", strings.Join(names, ", "))
	return names, nil
}

func (w *Watcher) closePort(name string) {
	p := w.ports[name]
	if p == nil {
		return
	}
	if p.stop != nil {
		p.stop()
	}
	_ = p.in.Close()
	delete(w.ports, name)
}

func (w *Watcher) openByName(name string) error {
	ins, err := w.drv.Ins()
	if err != nil {
		return err
	}
	var found drivers.In
	for _, in := range ins {
		if in.String() == name {
			found = in
			break
		}
	}
	if found == nil {
		return fmt.Errorf("input %q not found", name)
	}
	if err := found.Open(); err != nil {
		return fmt.Errorf("open %q: %w", name, err)
	}

	handle := w.handle
	stop, err := midi.ListenTo(found, func(msg midi.Message, _ int32) {
		handle(msg)
	}, midi.HandleError(func(listenErr error) {
		w.logger.Warn("midi: listener error", "device", name, "err", listenErr)
		// Must not close the port from within the listener goroutine, so
		// we dispatch to a new goroutine and re-acquire the mutex.
		go func() {
			w.mu.Lock()
			defer w.mu.Unlock()
			if _, ok := w.ports[name]; ok {
				w.closePort(name)
				w.lastScan = time.Time{} // trigger immediate rescan
				w.disconnected(name)
			}
		}()
	}))
	if err != nil {
		_ = found.Close()
		return fmt.Errorf("listen %q: %w", name, err)
	}

	w.ports[name] = &port{in: found, stop: stop}
	w.logger.Info("midi: connected", "device", name)
	return nil
}

func excluded(name string, patterns []string) bool {
	for _, pat := range patterns {
		if containsCI(name, pat) {
			return true
		}
	}
	return false
}

func containsCI(s, sub string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(sub))
}
