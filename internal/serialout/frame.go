// Package serialout streams channel envelopes to a microcontroller over a
// serial line, one full-state frame at a time.
package serialout

import (
	"math"

	"github.com/chase3718/nofft/envelope"
)

const (
	CmdEnvelopeFrame = 0x20
	SOF0             = 0xAA
	SOF1             = 0x55

	// channel, seq, 128 note levels, any level
	payloadLen = 2 + envelope.NoteCount + 1
)

// Frame is a full-state snapshot of one channel, every envelope scaled to
// 0..255 against the configured envelope range.
type Frame struct {
	Channel byte
	Seq     byte
	Level   [envelope.NoteCount]byte
	Any     byte
}

// BuildFrame quantizes a snapshot.
func BuildFrame(snap envelope.Snapshot, r envelope.Range, seq byte) Frame {
	f := Frame{Channel: byte(snap.Channel), Seq: seq}
	for i, v := range snap.Envelope {
		f.Level[i] = quantize(v, r)
	}
	f.Any = quantize(snap.AnyEnvelope, r)
	return f
}

func quantize(v float64, r envelope.Range) byte {
	span := r.Max - r.Min
	if span <= 0 {
		return 0
	}
	x := (v - r.Min) / span
	switch {
	case x <= 0:
		return 0
	case x >= 1:
		return 255
	}
	return byte(math.Round(x * 255))
}

// Encode builds the on-wire representation:
//
//	[SOF0][SOF1][LEN][CMD][channel][seq][level0..level127][any][CKS]
//
// LEN counts CMD plus payload; CKS is the XOR of LEN, CMD and payload.
func (f *Frame) Encode() []byte {
	out := make([]byte, 0, 4+payloadLen+1)
	out = append(out, SOF0, SOF1, byte(payloadLen+1), CmdEnvelopeFrame)
	out = append(out, f.Channel, f.Seq)
	out = append(out, f.Level[:]...)
	out = append(out, f.Any)

	var cks byte
	for _, b := range out[2:] {
		cks ^= b
	}
	return append(out, cks)
}
