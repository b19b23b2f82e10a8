package envelope

import (
	"github.com/chase3718/nofft/tween"
)

// Channel ids. Real channels are 1..NumChannels; AnyChannel mirrors all of
// them.
const (
	NumChannels = 16
	AnyChannel  = NumChannels + 1
)

// Registry holds the 16 real channels and the any-channel. Every event is
// applied to its addressed channel and then to the any-channel.
type Registry struct {
	channels [AnyChannel]*Channel
}

// NewRegistry builds all channels once. hooksFor may be nil; it is asked
// for each id from 1 to AnyChannel.
func NewRegistry(cfg *Config, sched *tween.Scheduler, hooksFor func(id int) Hooks) *Registry {
	r := &Registry{}
	for id := 1; id <= AnyChannel; id++ {
		var h Hooks
		if hooksFor != nil {
			h = hooksFor(id)
		}
		r.channels[id-1] = NewChannel(id, cfg, sched, h)
	}
	return r
}

// Channel returns the channel with the given id, or nil when id is not in
// 1..AnyChannel.
func (r *Registry) Channel(id int) *Channel {
	if id < 1 || id > AnyChannel {
		return nil
	}
	return r.channels[id-1]
}

// Any is the any-channel.
func (r *Registry) Any() *Channel { return r.channels[AnyChannel-1] }

// Each calls fn for every channel in id order, the any-channel last.
func (r *Registry) Each(fn func(*Channel)) {
	for _, c := range r.channels {
		fn(c)
	}
}

// route returns the addressed real channel, or nil for ids outside 1..16.
func (r *Registry) route(id int) *Channel {
	if id < 1 || id > NumChannels {
		return nil
	}
	return r.channels[id-1]
}

func (r *Registry) NoteOn(ch int, note uint8, velocity float64) {
	c := r.route(ch)
	if c == nil {
		return
	}
	c.NoteOn(note, velocity)
	r.Any().NoteOn(note, velocity)
}

func (r *Registry) NoteOff(ch int, note uint8) {
	c := r.route(ch)
	if c == nil {
		return
	}
	c.NoteOff(note)
	r.Any().NoteOff(note)
}

func (r *Registry) Controller(ch int, num uint8, value float64) {
	c := r.route(ch)
	if c == nil {
		return
	}
	c.Controller(num, value)
	r.Any().Controller(num, value)
}

// ReleaseAll releases every sounding note on the real channels and the
// any-channel and returns how many note-offs were issued.
func (r *Registry) ReleaseAll() int {
	n := 0
	r.Each(func(c *Channel) { n += c.ReleaseAll() })
	return n
}
