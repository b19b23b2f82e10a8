package envelope

import (
	"math"
	"testing"
	"time"

	"github.com/chase3718/nofft/tween"
)

const ms = time.Millisecond

func near(a, b float64) bool { return math.Abs(a-b) < 1e-4 }

func newTestChannel(cfg Config, hooks Hooks) (*Channel, *tween.Scheduler) {
	sched := tween.NewScheduler()
	return NewChannel(1, &cfg, sched, hooks), sched
}

func linearConfig() Config {
	cfg := DefaultConfig()
	cfg.Attack.Easing = "Linear"
	cfg.Decay.Easing = "Linear"
	return cfg
}

func TestNewChannelDefaults(t *testing.T) {
	ch, _ := newTestChannel(DefaultConfig(), nil)
	for n := 0; n < NoteCount; n++ {
		if v := ch.Envelope(uint8(n)); v != 0 {
			t.Fatalf("expected note %d to start at 0, got %f", n, v)
		}
	}
	if ch.Attack() != 0 || ch.Decay() != 0.5 || ch.Mod() != 0 {
		t.Errorf("expected knobs 0/0.5/0, got %f/%f/%f", ch.Attack(), ch.Decay(), ch.Mod())
	}
	if ch.ActiveNotes() != 0 {
		t.Errorf("expected no active notes, got %d", ch.ActiveNotes())
	}
}

func TestNoteOnAttack(t *testing.T) {
	ch, sched := newTestChannel(linearConfig(), nil)
	ch.NoteOn(60, 0.8)

	if ch.LastNote() != 60 {
		t.Errorf("expected last note 60, got %d", ch.LastNote())
	}
	// attack knob 0: minimum attack of 10ms, peak 0.8^2
	sched.Advance(5 * ms)
	if v := ch.Envelope(60); !near(v, 0.32) {
		t.Errorf("expected 0.32 halfway through the attack, got %f", v)
	}
	if v := ch.AnyEnvelope(); !near(v, 0.32) {
		t.Errorf("expected channel scalar to follow the last note, got %f", v)
	}
	sched.Advance(10 * ms)
	if v := ch.Envelope(60); !near(v, 0.64) {
		t.Errorf("expected peak 0.64, got %f", v)
	}

	// without ignoreNoteOff the note holds its peak
	sched.Advance(time.Second)
	if v := ch.Envelope(60); !near(v, 0.64) {
		t.Errorf("expected note to hold at 0.64, got %f", v)
	}
}

func TestRetriggerLeavesSingleWriter(t *testing.T) {
	ch, sched := newTestChannel(linearConfig(), nil)
	ch.NoteOn(60, 0.8)
	sched.Advance(5 * ms)
	ch.NoteOn(60, 0.5)

	if n := sched.Len(); n != 1 {
		t.Fatalf("expected exactly one live interpolation, got %d", n)
	}
	if n := ch.ActiveNotes(); n != 1 {
		t.Errorf("expected one active note, got %d", n)
	}

	// second attack: 0 -> 0.25 over 10ms starting at 5ms
	sched.Advance(7 * ms)
	if v := ch.Envelope(60); !near(v, 0.05) {
		t.Errorf("expected 0.05 from the second attack, got %f", v)
	}
	sched.Advance(50 * ms)
	if v := ch.Envelope(60); !near(v, 0.25) {
		t.Errorf("expected second peak 0.25, got %f", v)
	}
}

func TestEarlyReleaseStartsFromPartialValue(t *testing.T) {
	ch, sched := newTestChannel(linearConfig(), nil)
	ch.Controller(DefaultAttackController, 1) // 5000ms attack
	ch.NoteOn(64, 1)
	sched.Advance(1000 * ms)
	if v := ch.Envelope(64); !near(v, 0.2) {
		t.Fatalf("expected 0.2 after a fifth of the attack, got %f", v)
	}

	ch.NoteOff(64)
	if n := sched.Len(); n != 1 {
		t.Fatalf("expected the release to replace the attack, got %d handles", n)
	}
	sched.Advance(1000 * ms)
	if v := ch.Envelope(64); !near(v, 0.2) {
		t.Errorf("expected release to start at 0.2, got %f", v)
	}
	// decay knob 0.5: 8000ms * 0.5^5 = 250ms
	sched.Advance(1125 * ms)
	if v := ch.Envelope(64); !near(v, 0.1) {
		t.Errorf("expected 0.1 halfway through the release, got %f", v)
	}
	sched.Advance(1250 * ms)
	if v := ch.Envelope(64); v != 0 {
		t.Errorf("expected release to end at 0, got %f", v)
	}
	if ch.Active(64) {
		t.Errorf("expected note to be idle after release")
	}
}

func TestNoteOffDoesNotDriveChannelScalar(t *testing.T) {
	ch, sched := newTestChannel(linearConfig(), nil)
	ch.NoteOn(60, 1)
	sched.Advance(10 * ms)
	if v := ch.AnyEnvelope(); !near(v, 1) {
		t.Fatalf("expected scalar at peak, got %f", v)
	}
	ch.NoteOff(60)
	sched.Advance(100 * ms)
	if v := ch.Envelope(60); v >= 1 {
		t.Errorf("expected note to be releasing, got %f", v)
	}
	if v := ch.AnyEnvelope(); !near(v, 1) {
		t.Errorf("expected release to leave the scalar alone, got %f", v)
	}
}

func TestSupersededNoteStopsDrivingScalar(t *testing.T) {
	ch, sched := newTestChannel(linearConfig(), nil)
	ch.Controller(DefaultAttackController, 1)
	ch.NoteOn(60, 1)
	sched.Advance(100 * ms)
	ch.NoteOn(62, 0.5)
	sched.Advance(200 * ms)

	if ch.LastNote() != 62 {
		t.Fatalf("expected last note 62, got %d", ch.LastNote())
	}
	if ch.AnyEnvelope() != ch.Envelope(62) {
		t.Errorf("expected scalar %f to follow note 62 (%f)", ch.AnyEnvelope(), ch.Envelope(62))
	}
	if ch.Envelope(60) <= ch.Envelope(62) {
		t.Errorf("expected note 60 to keep its own curve")
	}
}

func TestIgnoreNoteOffSelfDecays(t *testing.T) {
	cfg := linearConfig()
	cfg.IgnoreNoteOff = true
	var offs []uint8
	ch, sched := newTestChannel(cfg, HookFuncs{OnNoteOff: func(n uint8) { offs = append(offs, n) }})

	ch.NoteOn(64, 1)
	attack := cfg.Attack.Duration(ch.Attack())
	decay := cfg.Decay.Duration(ch.Decay())

	sched.Advance(attack)
	if v := ch.Envelope(64); !near(v, 1) {
		t.Errorf("expected peak 1 after the attack, got %f", v)
	}
	ch.NoteOff(64)
	if len(offs) != 1 || offs[0] != 64 {
		t.Errorf("expected note-off hook for 64, got %v", offs)
	}
	if !ch.Active(64) {
		t.Errorf("expected note-off to leave the chained decay in place")
	}

	sched.Advance(attack + GuardDelay + decay/2)
	if v := ch.Envelope(64); !near(v, 0.5) {
		t.Errorf("expected 0.5 halfway through the decay, got %f", v)
	}
	if v := ch.AnyEnvelope(); !near(v, 0.5) {
		t.Errorf("expected chained decay to drive the scalar, got %f", v)
	}
	sched.Advance(attack + GuardDelay + decay)
	if v := ch.Envelope(64); v != cfg.Envelope.Min {
		t.Errorf("expected decay to end at %f, got %f", cfg.Envelope.Min, v)
	}
	if sched.Len() != 0 || ch.Active(64) {
		t.Errorf("expected no live interpolations after the cycle")
	}
}

func TestIgnoreNoteOffRetriggerStopsChainedDecay(t *testing.T) {
	cfg := linearConfig()
	cfg.IgnoreNoteOff = true
	ch, sched := newTestChannel(cfg, nil)

	ch.NoteOn(64, 1)
	sched.Advance(10 * ms)
	sched.Advance(100 * ms) // decay running
	ch.NoteOn(64, 0.5)
	if n := sched.Len(); n != 1 {
		t.Fatalf("expected only the new attack to be live, got %d", n)
	}
	sched.Advance(110 * ms)
	if v := ch.Envelope(64); !near(v, 0.25) {
		t.Errorf("expected new peak 0.25, got %f", v)
	}
}

func TestEnvelopeStaysInRange(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Envelope = Range{Min: 0.1, Max: 0.9}
	ch, sched := newTestChannel(cfg, nil)
	for i, vel := range []float64{0.4, 0.5, 1} {
		note := uint8(40 + i)
		ch.NoteOn(note, vel)
	}
	now := time.Duration(0)
	for step := 0; step < 400; step++ {
		now += 5 * ms
		if step == 20 {
			for i := 0; i < 3; i++ {
				ch.NoteOff(uint8(40 + i))
			}
		}
		sched.Advance(now)
		for i := 0; i < 3; i++ {
			v := ch.Envelope(uint8(40 + i))
			if v < cfg.Envelope.Min-1e-6 || v > cfg.Envelope.Max+1e-6 {
				t.Fatalf("note %d out of range at %v: %f", 40+i, now, v)
			}
		}
	}
	for i := 0; i < 3; i++ {
		if v := ch.Envelope(uint8(40 + i)); !near(v, cfg.Envelope.Min) {
			t.Errorf("expected note %d back at the floor, got %f", 40+i, v)
		}
	}
}

func TestControllerKnobs(t *testing.T) {
	var calls [][2]float64
	ch, _ := newTestChannel(DefaultConfig(), HookFuncs{OnController: func(num uint8, v float64) {
		calls = append(calls, [2]float64{float64(num), v})
	}})

	ch.Controller(DefaultAttackController, 100.0/127)
	if math.Abs(ch.Attack()-0.787) > 1e-3 {
		t.Errorf("expected attack ~0.787, got %f", ch.Attack())
	}
	ch.Controller(DefaultDecayController, 0.25)
	ch.Controller(DefaultModController, 0.75)
	if ch.Decay() != 0.25 || ch.Mod() != 0.75 {
		t.Errorf("expected decay 0.25 and mod 0.75, got %f and %f", ch.Decay(), ch.Mod())
	}

	attack, decay, mod := ch.Attack(), ch.Decay(), ch.Mod()
	ch.Controller(10, 0.5)
	if ch.Attack() != attack || ch.Decay() != decay || ch.Mod() != mod {
		t.Errorf("unmapped controller changed a knob")
	}
	if len(calls) != 4 {
		t.Fatalf("expected 4 hook calls, got %d", len(calls))
	}
	if last := calls[3]; last[0] != 10 || last[1] != 0.5 {
		t.Errorf("expected hook with raw values (10, 0.5), got %v", last)
	}
}

func TestKnobChangeAppliesToNextNote(t *testing.T) {
	ch, sched := newTestChannel(linearConfig(), nil)
	ch.NoteOn(60, 1)
	ch.Controller(DefaultAttackController, 1)
	sched.Advance(10 * ms)
	if v := ch.Envelope(60); !near(v, 1) {
		t.Errorf("expected running attack to keep its 10ms length, got %f", v)
	}
}

func TestHooksRunAfterStateChange(t *testing.T) {
	var ch *Channel
	var sawLast uint8
	var sawVel float64
	cfg := DefaultConfig()
	ch = NewChannel(1, &cfg, tween.NewScheduler(), HookFuncs{
		OnNoteOn: func(n uint8, v float64) {
			sawLast = ch.LastNote()
			sawVel = v
		},
	})
	ch.NoteOn(72, 0.5)
	if sawLast != 72 || sawVel != 0.5 {
		t.Errorf("expected hook to see note 72 at 0.5, got %d at %f", sawLast, sawVel)
	}
}

func TestOutOfRangeInput(t *testing.T) {
	ch, sched := newTestChannel(linearConfig(), nil)
	ch.NoteOn(200, 1)
	ch.NoteOff(200)
	if sched.Len() != 0 {
		t.Errorf("expected out-of-range notes to be ignored")
	}
	ch.NoteOn(10, 3)
	sched.Advance(10 * ms)
	if v := ch.Envelope(10); !near(v, 1) {
		t.Errorf("expected velocity to clamp to 1, got %f", v)
	}
	ch.Controller(DefaultModController, -2)
	if ch.Mod() != 0 {
		t.Errorf("expected mod to clamp to 0, got %f", ch.Mod())
	}
}

func TestReleaseAll(t *testing.T) {
	ch, sched := newTestChannel(linearConfig(), nil)
	ch.NoteOn(60, 1)
	ch.NoteOn(67, 1)
	sched.Advance(10 * ms)
	if n := ch.ReleaseAll(); n != 2 {
		t.Fatalf("expected 2 releases, got %d", n)
	}
	sched.Advance(time.Second)
	if ch.Envelope(60) != 0 || ch.Envelope(67) != 0 {
		t.Errorf("expected both notes released")
	}
	if n := ch.ReleaseAll(); n != 0 {
		t.Errorf("expected nothing left to release, got %d", n)
	}
}
