// Package tween advances scalar interpolations in lockstep, once per host
// frame. A Scheduler owns every handle; nothing here runs on its own
// goroutine, so callers serialize Start/Stop against Advance themselves.
package tween

import (
	"time"

	"github.com/tanema/gween"
)

// Target receives every interpolated value of a handle.
type Target interface {
	Update(value float64)
}

// Spec describes one interpolation. Start times are taken from the
// scheduler clock, which only moves on Advance, so a handle started between
// frames counts from the previous frame.
type Spec struct {
	From, To float64
	Duration time.Duration
	// Delay is added to the start time; for a chained handle it counts from
	// the completion of its predecessor.
	Delay  time.Duration
	Easing Easing
	Target Target
}

type discard struct{}

func (discard) Update(float64) {}

// Handle is a single scheduled interpolation.
type Handle struct {
	sched    *Scheduler
	spec     Spec
	tw       *gween.Tween
	startAt  time.Duration
	started  bool
	stopped  bool
	finished bool
	chain    []*Handle
}

// Scheduler advances handles in the order they were started.
type Scheduler struct {
	now       time.Duration
	handles   []*Handle
	pending   []*Handle
	advancing bool
}

// NewScheduler returns an empty scheduler whose clock is at zero.
func NewScheduler() *Scheduler {
	return &Scheduler{handles: make([]*Handle, 0, 64)}
}

// Now is the time of the most recent Advance.
func (s *Scheduler) Now() time.Duration { return s.now }

// Len is the number of started handles that have neither finished nor
// been stopped.
func (s *Scheduler) Len() int {
	n := 0
	for _, h := range s.handles {
		if !h.stopped {
			n++
		}
	}
	for _, h := range s.pending {
		if !h.stopped {
			n++
		}
	}
	return n
}

// New creates a handle without starting it.
func (s *Scheduler) New(spec Spec) *Handle {
	if spec.Easing == nil {
		spec.Easing = EasingOrLinear(DefaultAttackEasing)
	}
	if spec.Target == nil {
		spec.Target = discard{}
	}
	h := &Handle{sched: s, spec: spec}
	if spec.Duration > 0 {
		h.tw = gween.New(float32(spec.From), float32(spec.To), float32(spec.Duration.Seconds()), spec.Easing)
	}
	return h
}

// Start creates a handle and starts it at the scheduler's current time.
func (s *Scheduler) Start(spec Spec) *Handle {
	h := s.New(spec)
	h.Start()
	return h
}

// Advance moves the clock to now and updates every handle whose start time
// has been reached. Chained successors of handles that complete here are
// started at their predecessor's completion time and first update on the
// next call. It returns the number of handles updated.
func (s *Scheduler) Advance(now time.Duration) int {
	if now > s.now {
		s.now = now
	}
	s.advancing = true
	updated := 0
	live := s.handles[:0]
	for _, h := range s.handles {
		if h.stopped {
			continue
		}
		if s.now < h.startAt {
			live = append(live, h)
			continue
		}
		updated++
		if !h.step(s.now) {
			live = append(live, h)
			continue
		}
		h.finished = true
		end := h.startAt + h.spec.Duration
		for _, next := range h.chain {
			if next.started || next.stopped {
				continue
			}
			next.schedule(end)
		}
	}
	for i := len(live); i < len(s.handles); i++ {
		s.handles[i] = nil
	}
	s.handles = live
	s.advancing = false

	s.handles = append(s.handles, s.pending...)
	for i := range s.pending {
		s.pending[i] = nil
	}
	s.pending = s.pending[:0]
	return updated
}

// Start schedules the handle at the scheduler's current time plus its delay.
// Starting a handle twice, or after Stop, does nothing.
func (h *Handle) Start() *Handle {
	if h.started || h.stopped {
		return h
	}
	h.schedule(h.sched.now)
	return h
}

func (h *Handle) schedule(at time.Duration) {
	h.started = true
	h.startAt = at + h.spec.Delay
	s := h.sched
	if s.advancing {
		s.pending = append(s.pending, h)
		return
	}
	s.handles = append(s.handles, h)
}

// Stop halts further updates of the handle and of everything chained to
// it. It is safe to call more than once.
func (h *Handle) Stop() {
	if h.stopped {
		return
	}
	h.stopped = true
	for _, next := range h.chain {
		next.Stop()
	}
}

// Chain makes next start when h completes and returns next.
func (h *Handle) Chain(next *Handle) *Handle {
	h.chain = append(h.chain, next)
	if h.stopped {
		next.Stop()
	}
	return next
}

// Running reports whether the handle is started and still able to write,
// including a start time that lies in the future.
func (h *Handle) Running() bool {
	return h.started && !h.stopped && !h.finished
}

// Stopped reports whether Stop was called.
func (h *Handle) Stopped() bool { return h.stopped }

// Finished reports whether the handle reached its final value.
func (h *Handle) Finished() bool { return h.finished }

// Live reports whether the handle or any of its chain can still write.
func (h *Handle) Live() bool {
	if h.stopped {
		return false
	}
	if !h.finished {
		return h.started
	}
	for _, next := range h.chain {
		if next.Live() {
			return true
		}
	}
	return false
}

func (h *Handle) step(now time.Duration) bool {
	if h.tw == nil {
		h.spec.Target.Update(h.spec.To)
		return true
	}
	elapsed := now - h.startAt
	v, done := h.tw.Set(float32(elapsed.Seconds()))
	if done {
		v = float32(h.spec.To)
	}
	h.spec.Target.Update(float64(v))
	return done
}
