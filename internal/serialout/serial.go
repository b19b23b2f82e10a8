package serialout

import (
	"fmt"
	"io"
	"log/slog"

	"go.bug.st/serial"

	"github.com/chase3718/nofft/envelope"
)

// Port wraps a serial port with a frame-send helper.
type Port struct {
	w      io.WriteCloser
	name   string
	seq    byte
	logger *slog.Logger
}

// Open opens the named serial device at the given baud rate.
func Open(name string, baud int, logger *slog.Logger) (*Port, error) {
	mode := &serial.Mode{BaudRate: baud}
	p, err := serial.Open(name, mode)
	if err != nil {
		return nil, fmt.Errorf("serial: open %s: %w", name, err)
	}
	logger.Info("serial: port opened", "device", name, "baud", baud)
	return NewPort(p, name, logger), nil
}

// NewPort sends frames to an already open writer.
func NewPort(w io.WriteCloser, name string, logger *slog.Logger) *Port {
	if logger == nil {
		logger = slog.Default()
	}
	return &Port{w: w, name: name, logger: logger}
}

// SendFrame encodes and writes a Frame.
func (p *Port) SendFrame(f Frame) error {
	data := f.Encode()
	n, err := p.w.Write(data)
	if err != nil {
		return fmt.Errorf("serial: write: %w", err)
	}
	p.logger.Debug("serial: frame sent", "bytes", n, "seq", f.Seq, "channel", f.Channel)
	return nil
}

// SendSnapshot frames snap with the next sequence number and sends it.
func (p *Port) SendSnapshot(snap envelope.Snapshot, r envelope.Range) error {
	f := BuildFrame(snap, r, p.seq)
	p.seq++
	return p.SendFrame(f)
}

// Close closes the underlying serial port.
func (p *Port) Close() error {
	p.logger.Info("serial: closing port", "device", p.name)
	return p.w.Close()
}
