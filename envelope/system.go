// Package envelope turns a MIDI note/controller stream into per-note
// envelope values that a host reads once per frame.
//
// A System owns 16 channels plus the any-channel (id 17), a shared tween
// scheduler and a dispatcher. MIDI arrives through HandleMessage, the host
// advances every running curve by calling Update once per frame, and reads
// the results through Snapshot or View.
package envelope

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/chase3718/nofft/tween"
)

// ErrUnsupported is wrapped by inputs that cannot run on this host at all.
// Init logs it and leaves the System idle instead of failing.
var ErrUnsupported = errors.New("midi input not supported")

// Input delivers raw MIDI messages until closed.
type Input interface {
	Open(handle func(msg []byte)) error
	Close() error
}

// Snapshot is a copy of one channel's observable state.
type Snapshot struct {
	Channel     int
	Attack      float64
	Decay       float64
	Mod         float64
	LastNote    uint8
	AnyEnvelope float64
	Envelope    [NoteCount]float64
}

// System is the top-level engine. Its methods are safe for concurrent use.
type System struct {
	mu     sync.Mutex
	cfg    Config
	sched  *tween.Scheduler
	reg    *Registry
	disp   *Dispatcher
	logger *slog.Logger

	hooksFor func(id int) Hooks

	clock func() time.Time
	epoch time.Time

	inputs []Input
}

// Option configures a System.
type Option func(*System)

// WithLogger sets the logger; the default is slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(s *System) { s.logger = l }
}

// WithClock replaces time.Now as the source for Update.
func WithClock(now func() time.Time) Option {
	return func(s *System) { s.clock = now }
}

// WithHooks installs hooks; hooksFor is asked once per channel id.
func WithHooks(hooksFor func(id int) Hooks) Option {
	return func(s *System) { s.hooksFor = hooksFor }
}

// New validates cfg and builds all channels.
func New(cfg Config, opts ...Option) (*System, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	s := &System{
		cfg:    cfg,
		sched:  tween.NewScheduler(),
		logger: slog.Default(),
		clock:  time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.reg = NewRegistry(&s.cfg, s.sched, s.hooksFor)
	s.disp = NewDispatcher(s.reg, s.logger)
	s.epoch = s.clock()
	return s, nil
}

// Config returns the configuration the System was built with.
func (s *System) Config() Config { return s.cfg }

// Init opens in and routes its messages into the System. An input that
// wraps ErrUnsupported is logged and ignored; any other failure is
// returned as is and not retried.
func (s *System) Init(in Input) error {
	if err := in.Open(s.HandleMessage); err != nil {
		if errors.Is(err, ErrUnsupported) {
			s.logger.Warn("midi: input unavailable, staying idle", "err", err)
			return nil
		}
		return fmt.Errorf("midi: init: %w", err)
	}
	s.mu.Lock()
	s.inputs = append(s.inputs, in)
	s.mu.Unlock()
	return nil
}

// Close closes every input opened by Init.
func (s *System) Close() error {
	s.mu.Lock()
	inputs := s.inputs
	s.inputs = nil
	s.mu.Unlock()

	var errs []error
	for _, in := range inputs {
		if err := in.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// HandleMessage dispatches one raw MIDI message.
func (s *System) HandleMessage(msg []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.disp.Dispatch(msg)
}

// Update advances every running curve to the current clock time.
func (s *System) Update() {
	s.UpdateAt(s.clock().Sub(s.epoch))
}

// UpdateAt advances every running curve to now, measured from the
// System's creation.
func (s *System) UpdateAt(now time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sched.Advance(now)
}

// ReleaseAll starts a release on every sounding note of every channel.
func (s *System) ReleaseAll() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := s.reg.ReleaseAll()
	if n > 0 {
		s.logger.Info("midi: released sounding notes", "count", n)
	}
	return n
}

// Snapshot copies the state of channel id (1..AnyChannel).
func (s *System) Snapshot(id int) (Snapshot, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := s.reg.Channel(id)
	if c == nil {
		return Snapshot{}, false
	}
	return Snapshot{
		Channel:     c.ID(),
		Attack:      c.Attack(),
		Decay:       c.Decay(),
		Mod:         c.Mod(),
		LastNote:    c.LastNote(),
		AnyEnvelope: c.AnyEnvelope(),
		Envelope:    c.Envelopes(),
	}, true
}

// View runs fn with the registry locked. fn must not retain the registry
// or call other System methods.
func (s *System) View(fn func(*Registry)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(s.reg)
}

// Running is the number of curves currently scheduled.
func (s *System) Running() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sched.Len()
}
