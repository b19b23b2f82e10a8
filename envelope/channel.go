package envelope

import (
	"github.com/chase3718/nofft/tween"
)

// NoteCount is the number of addressable notes per channel.
const NoteCount = 128

// Channel is the envelope controller of one MIDI channel. It is not safe
// for concurrent use; the System serializes access.
type Channel struct {
	id    int
	cfg   *Config
	sched *tween.Scheduler
	hooks Hooks

	attack float64
	decay  float64
	mod    float64

	envelope    [NoteCount]float64
	lastNote    uint8
	anyEnvelope float64

	// active holds the handle currently allowed to write each note; for a
	// self-decaying note it is the attack stage with the decay chained on.
	active [NoteCount]*tween.Handle
}

// NewChannel builds a channel with every envelope at 0. A nil hooks value
// means no hooks.
func NewChannel(id int, cfg *Config, sched *tween.Scheduler, hooks Hooks) *Channel {
	if hooks == nil {
		hooks = NopHooks
	}
	return &Channel{
		id:     id,
		cfg:    cfg,
		sched:  sched,
		hooks:  hooks,
		attack: DefaultAttackKnob,
		decay:  DefaultDecayKnob,
	}
}

// noteTarget writes one envelope cell. Only curves started by a note-on
// also drive the channel scalar, and only while their note is the last one
// triggered.
type noteTarget struct {
	ch     *Channel
	note   uint8
	mirror bool
}

func (t noteTarget) Update(v float64) {
	t.ch.envelope[t.note] = v
	if t.mirror && t.ch.lastNote == t.note {
		t.ch.anyEnvelope = v
	}
}

func (c *Channel) ID() int { return c.id }

func (c *Channel) Attack() float64 { return c.attack }

func (c *Channel) Decay() float64 { return c.decay }

func (c *Channel) Mod() float64 { return c.mod }

// LastNote is the most recently triggered note.
func (c *Channel) LastNote() uint8 { return c.lastNote }

// AnyEnvelope mirrors the envelope of LastNote while its note-on curve runs.
func (c *Channel) AnyEnvelope() float64 { return c.anyEnvelope }

// Envelope returns the current value of a note; out-of-range notes read 0.
func (c *Channel) Envelope(note uint8) float64 {
	if note >= NoteCount {
		return 0
	}
	return c.envelope[note]
}

// Envelopes returns a copy of every note's value.
func (c *Channel) Envelopes() [NoteCount]float64 { return c.envelope }

// Active reports whether a curve is still scheduled to write note.
func (c *Channel) Active(note uint8) bool {
	if note >= NoteCount {
		return false
	}
	h := c.active[note]
	return h != nil && h.Live()
}

// ActiveNotes counts notes with a live curve.
func (c *Channel) ActiveNotes() int {
	n := 0
	for i := range c.active {
		if h := c.active[i]; h != nil && h.Live() {
			n++
		}
	}
	return n
}

func (c *Channel) cancel(note uint8) {
	if h := c.active[note]; h != nil {
		h.Stop()
		c.active[note] = nil
	}
}

// NoteOn starts the attack of note with a velocity in (0,1].
func (c *Channel) NoteOn(note uint8, velocity float64) {
	if note >= NoteCount {
		return
	}
	velocity = clamp01(velocity)
	c.lastNote = note
	c.cancel(note)

	peak := c.cfg.Peak(velocity)
	target := noteTarget{ch: c, note: note, mirror: true}
	attack := c.sched.Start(tween.Spec{
		From:     c.cfg.Envelope.Min,
		To:       peak,
		Duration: c.cfg.Attack.Duration(c.attack),
		Easing:   tween.EasingOrLinear(c.cfg.Attack.Easing),
		Target:   target,
	})
	if c.cfg.IgnoreNoteOff {
		attack.Chain(c.sched.New(tween.Spec{
			From:     peak,
			To:       c.cfg.Envelope.Min,
			Duration: c.cfg.Decay.Duration(c.decay),
			Delay:    GuardDelay,
			Easing:   tween.EasingOrLinear(c.cfg.Decay.Easing),
			Target:   target,
		}))
	}
	c.active[note] = attack

	c.hooks.NoteOn(note, velocity)
}

// NoteOff releases note from wherever its envelope currently is. With
// IgnoreNoteOff set, only the hook runs.
func (c *Channel) NoteOff(note uint8) {
	if note >= NoteCount {
		return
	}
	if !c.cfg.IgnoreNoteOff {
		c.cancel(note)
		c.active[note] = c.sched.Start(tween.Spec{
			From:     c.envelope[note],
			To:       c.cfg.Envelope.Min,
			Duration: c.cfg.Decay.Duration(c.decay),
			Easing:   tween.EasingOrLinear(c.cfg.Decay.Easing),
			Target:   noteTarget{ch: c, note: note},
		})
	}

	c.hooks.NoteOff(note)
}

// Controller updates the attack, decay or mod knob when num matches one of
// the configured controllers. The hook always runs.
func (c *Channel) Controller(num uint8, value float64) {
	value = clamp01(value)
	switch num {
	case c.cfg.AttackController:
		c.attack = value
	case c.cfg.DecayController:
		c.decay = value
	case c.cfg.ModController:
		c.mod = value
	}

	c.hooks.Controller(num, value)
}

// sounding lists notes that are above the envelope floor or still have a
// curve scheduled.
func (c *Channel) sounding() []uint8 {
	var notes []uint8
	for n := 0; n < NoteCount; n++ {
		if c.envelope[n] > c.cfg.Envelope.Min || c.Active(uint8(n)) {
			notes = append(notes, uint8(n))
		}
	}
	return notes
}

// ReleaseAll sends a note-off for every sounding note.
func (c *Channel) ReleaseAll() int {
	notes := c.sounding()
	for _, n := range notes {
		c.NoteOff(n)
	}
	return len(notes)
}

func clamp01(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	}
	return v
}
