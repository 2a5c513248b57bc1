package event_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"pipelined.dev/engine/event"
)

func TestNotes(t *testing.T) {
	tests := []struct {
		e   event.Event
		on  bool
		off bool
	}{
		{e: event.NoteOnEvent(0, 60, 100, 0), on: true},
		{e: event.NoteOnEvent(0, 60, 0, 0), off: true},
		{e: event.NoteOffEvent(0, 60, 64, 0), off: true},
		{e: event.ControlChangeEvent(0, event.CCSustain, 127, 0)},
	}
	for _, test := range tests {
		assert.Equal(t, test.on, test.e.IsNoteOn(), test.e.String())
		assert.Equal(t, test.off, test.e.IsNoteOff(), test.e.String())
	}
}

func TestFrequency(t *testing.T) {
	assert.InDelta(t, 440.0, event.Frequency(69), 1e-9)
	assert.InDelta(t, 880.0, event.Frequency(81), 1e-9)
	assert.InDelta(t, 261.6256, event.Frequency(60), 1e-4)
	assert.InDelta(t, -1.0, event.PitchBendEvent(0, -8192, 0).NormalizedBend(), 1e-9)
}
