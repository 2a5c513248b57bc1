// Package event defines MIDI and control events delivered to processing
// units once per block.
//
// Event is a flat value type so it can travel through a ring and be staged
// in a preallocated slice without boxing.
package event

import (
	"fmt"
	"math"
)

// Kind identifies the type of event.
type Kind uint8

const (
	NoteOff Kind = iota
	NoteOn
	PolyPressure
	ControlChange
	ProgramChange
	ChannelPressure
	PitchBend
	// Control is an engine-level event not tied to MIDI.
	Control
)

func (k Kind) String() string {
	switch k {
	case NoteOff:
		return "NoteOff"
	case NoteOn:
		return "NoteOn"
	case PolyPressure:
		return "PolyPressure"
	case ControlChange:
		return "CC"
	case ProgramChange:
		return "ProgramChange"
	case ChannelPressure:
		return "ChannelPressure"
	case PitchBend:
		return "PitchBend"
	case Control:
		return "Control"
	default:
		return fmt.Sprintf("Kind(%d)", k)
	}
}

// Well-known controller numbers.
const (
	CCModWheel    uint8 = 1
	CCVolume      uint8 = 7
	CCPan         uint8 = 10
	CCSustain     uint8 = 64
	CCAllSoundOff uint8 = 120
	CCAllNotesOff uint8 = 123
)

// Event is a single timestamped event. Offset is a sample offset inside
// the block it is delivered in.
type Event struct {
	Kind    Kind
	Channel uint8
	// Data1 is a note or controller number.
	Data1 uint8
	// Data2 is a velocity, pressure or controller value.
	Data2 uint8
	// Value carries wide values: pitch bend in [-8192, 8191] or a control
	// payload.
	Value  int32
	Offset int32
}

// NoteOnEvent returns a note-on event.
func NoteOnEvent(channel, note, velocity uint8, offset int32) Event {
	return Event{Kind: NoteOn, Channel: channel, Data1: note, Data2: velocity, Offset: offset}
}

// NoteOffEvent returns a note-off event.
func NoteOffEvent(channel, note, velocity uint8, offset int32) Event {
	return Event{Kind: NoteOff, Channel: channel, Data1: note, Data2: velocity, Offset: offset}
}

// ControlChangeEvent returns a controller change event.
func ControlChangeEvent(channel, controller, value uint8, offset int32) Event {
	return Event{Kind: ControlChange, Channel: channel, Data1: controller, Data2: value, Offset: offset}
}

// PitchBendEvent returns a pitch bend event, value is in [-8192, 8191].
func PitchBendEvent(channel uint8, value int16, offset int32) Event {
	return Event{Kind: PitchBend, Channel: channel, Value: int32(value), Offset: offset}
}

// Note returns note number and velocity of note events.
func (e Event) Note() (note, velocity uint8) {
	return e.Data1, e.Data2
}

// IsNoteOn reports if the event starts a note. Note-on with zero velocity
// is treated as note-off.
func (e Event) IsNoteOn() bool {
	return e.Kind == NoteOn && e.Data2 > 0
}

// IsNoteOff reports if the event stops a note.
func (e Event) IsNoteOff() bool {
	return e.Kind == NoteOff || (e.Kind == NoteOn && e.Data2 == 0)
}

// NormalizedBend returns pitch bend in [-1, 1).
func (e Event) NormalizedBend() float64 {
	return float64(e.Value) / 8192.0
}

// Frequency returns equal-tempered frequency of a MIDI note, A4 = 440 Hz.
func Frequency(note uint8) float64 {
	return 440 * math.Pow(2, (float64(note)-69)/12)
}

func (e Event) String() string {
	switch e.Kind {
	case NoteOn, NoteOff, PolyPressure:
		return fmt.Sprintf("%v{ch:%d, note:%d, vel:%d, offset:%d}", e.Kind, e.Channel, e.Data1, e.Data2, e.Offset)
	case ControlChange:
		return fmt.Sprintf("%v{ch:%d, ctrl:%d, val:%d, offset:%d}", e.Kind, e.Channel, e.Data1, e.Data2, e.Offset)
	default:
		return fmt.Sprintf("%v{ch:%d, val:%d, offset:%d}", e.Kind, e.Channel, e.Value, e.Offset)
	}
}
