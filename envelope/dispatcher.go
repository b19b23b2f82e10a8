package envelope

import (
	"fmt"
	"log/slog"
)

// Status nibbles understood by the dispatcher.
const (
	statusNoteOn     = 0x90
	statusController = 0xB0

	maskStatus  = 0xF0
	maskChannel = 0x0F
	maskData    = 0x7F
)

// Kind is the decoded event type.
type Kind uint8

const (
	KindNoteOn Kind = iota + 1
	KindNoteOff
	KindController
)

func (k Kind) String() string {
	switch k {
	case KindNoteOn:
		return "note-on"
	case KindNoteOff:
		return "note-off"
	case KindController:
		return "controller"
	}
	return fmt.Sprintf("Kind(%d)", uint8(k))
}

// Event is a decoded channel message. Channel is 1-based.
type Event struct {
	Kind    Kind
	Channel int
	Data1   uint8
	Data2   uint8
}

// Value is Data2 scaled to [0,1].
func (e Event) Value() float64 { return float64(e.Data2) / 127 }

// Decode turns a raw [status, data1, data2] message into an Event. Only
// note and controller messages decode; everything else reports false.
// Any status up to 0x9F is a note event: velocity above 0 starts the note,
// velocity 0 releases it.
func Decode(msg []byte) (Event, bool) {
	if len(msg) < 3 {
		return Event{}, false
	}
	ev := Event{
		Channel: int(msg[0]&maskChannel) + 1,
		Data1:   msg[1] & maskData,
		Data2:   msg[2] & maskData,
	}
	switch {
	case msg[0] <= statusNoteOn|maskChannel:
		if ev.Data2 > 0 {
			ev.Kind = KindNoteOn
		} else {
			ev.Kind = KindNoteOff
		}
	case msg[0]&maskStatus == statusController:
		ev.Kind = KindController
	default:
		return Event{}, false
	}
	return ev, true
}

// Dispatcher decodes raw messages and routes them into a Registry.
type Dispatcher struct {
	reg    *Registry
	logger *slog.Logger
}

func NewDispatcher(reg *Registry, logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{reg: reg, logger: logger}
}

// Dispatch applies msg to its channel and the any-channel. Messages that
// do not decode are dropped and reported as not handled.
func (d *Dispatcher) Dispatch(msg []byte) bool {
	ev, ok := Decode(msg)
	if !ok {
		d.logger.Debug("midi: unhandled message", "msg", fmt.Sprintf("% X", msg))
		return false
	}
	d.Apply(ev)
	return true
}

// Apply routes an already decoded event.
func (d *Dispatcher) Apply(ev Event) {
	switch ev.Kind {
	case KindNoteOn:
		d.logger.Debug("midi: note on", "channel", ev.Channel, "note", ev.Data1, "vel", ev.Data2)
		d.reg.NoteOn(ev.Channel, ev.Data1, ev.Value())
	case KindNoteOff:
		d.logger.Debug("midi: note off", "channel", ev.Channel, "note", ev.Data1)
		d.reg.NoteOff(ev.Channel, ev.Data1)
	case KindController:
		d.logger.Debug("midi: controller", "channel", ev.Channel, "num", ev.Data1, "value", ev.Data2)
		d.reg.Controller(ev.Channel, ev.Data1, ev.Value())
	}
}
