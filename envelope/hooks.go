package envelope

// Hooks is notified after a channel has applied an event to its own state.
// Hooks run synchronously on the goroutine that delivered the event and
// must not call back into the System.
type Hooks interface {
	NoteOn(note uint8, velocity float64)
	NoteOff(note uint8)
	Controller(num uint8, value float64)
}

// HookFuncs adapts plain functions to Hooks. Nil fields are skipped.
type HookFuncs struct {
	OnNoteOn     func(note uint8, velocity float64)
	OnNoteOff    func(note uint8)
	OnController func(num uint8, value float64)
}

func (h HookFuncs) NoteOn(note uint8, velocity float64) {
	if h.OnNoteOn != nil {
		h.OnNoteOn(note, velocity)
	}
}

func (h HookFuncs) NoteOff(note uint8) {
	if h.OnNoteOff != nil {
		h.OnNoteOff(note)
	}
}

func (h HookFuncs) Controller(num uint8, value float64) {
	if h.OnController != nil {
		h.OnController(num, value)
	}
}

// NopHooks ignores every event.
var NopHooks Hooks = HookFuncs{}
