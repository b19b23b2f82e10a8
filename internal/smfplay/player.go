// Package smfplay replays a Standard MIDI File as a live input.
package smfplay

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sort"
	"sync"
	"time"

	"gitlab.com/gomidi/midi/v2/smf"
)

// Event is a channel message at an offset from the start of the file.
type Event struct {
	At  time.Duration
	Msg []byte
}

// Read collects every channel message of every track, ordered by time.
// Meta and sysex events are dropped.
func Read(r io.Reader) ([]Event, error) {
	var events []Event
	rd := smf.ReadTracksFrom(r)
	rd.Do(func(ev smf.TrackEvent) {
		msg := []byte(ev.Message)
		if len(msg) == 0 || msg[0] < 0x80 || msg[0] >= 0xF0 {
			return
		}
		events = append(events, Event{
			At:  time.Duration(ev.AbsMicroSeconds) * time.Microsecond,
			Msg: append([]byte(nil), msg...),
		})
	})
	if err := rd.Error(); err != nil {
		return nil, fmt.Errorf("smf: %w", err)
	}
	sort.SliceStable(events, func(i, j int) bool { return events[i].At < events[j].At })
	return events, nil
}

// Load reads the file at path.
func Load(path string) ([]Event, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("smf: %w", err)
	}
	defer f.Close()
	return Read(f)
}

// LoopGap is the pause between two passes of a looping player.
const LoopGap = time.Second / 60

// Player feeds events to a handler in real time.
type Player struct {
	events []Event
	loop   bool
	logger *slog.Logger

	mu   sync.Mutex
	stop chan struct{}
	done chan struct{}
}

// NewPlayer returns a player for events. With loop set it starts over
// after the last event.
func NewPlayer(events []Event, loop bool, logger *slog.Logger) *Player {
	if logger == nil {
		logger = slog.Default()
	}
	return &Player{events: events, loop: loop, logger: logger}
}

// Open starts playback on its own goroutine.
func (p *Player) Open(handle func(msg []byte)) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.stop != nil {
		return errors.New("smf: player already open")
	}
	if len(p.events) == 0 {
		return errors.New("smf: no channel events")
	}
	p.stop = make(chan struct{})
	p.done = make(chan struct{})
	go p.run(handle, p.stop, p.done)
	p.logger.Info("smf: playback started", "events", len(p.events), "length", p.events[len(p.events)-1].At)
	return nil
}

// Done is closed when playback ends or the player is closed.
func (p *Player) Done() <-chan struct{} {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.done
}

// Close stops playback and waits for the goroutine to exit.
func (p *Player) Close() error {
	p.mu.Lock()
	stop, done := p.stop, p.done
	p.mu.Unlock()
	if stop == nil {
		return nil
	}
	select {
	case <-stop:
	default:
		close(stop)
	}
	<-done
	return nil
}

func (p *Player) run(handle func([]byte), stop, done chan struct{}) {
	defer close(done)
	timer := time.NewTimer(0)
	defer timer.Stop()
	<-timer.C

	for {
		start := time.Now()
		for _, ev := range p.events {
			if wait := ev.At - time.Since(start); wait > 0 {
				timer.Reset(wait)
				select {
				case <-stop:
					return
				case <-timer.C:
				}
			} else {
				select {
				case <-stop:
					return
				default:
				}
			}
			handle(ev.Msg)
		}
		if !p.loop {
			p.logger.Info("smf: playback finished")
			return
		}
		timer.Reset(LoopGap)
		select {
		case <-stop:
			return
		case <-timer.C:
		}
	}
}
