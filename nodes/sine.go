// Package nodes provides built-in processing units: generators, filters,
// dynamics and meters. Units allocate in Prepare only.
package nodes

import (
	"math"

	"pipelined.dev/engine/event"
	"pipelined.dev/engine/unit"
)

// Sine parameters.
const (
	SineFrequency uint32 = iota
	SineAmplitude
)

// Sine is a sine oscillator. It writes the same signal into every
// channel of its output.
type Sine struct {
	// FollowNotes makes note-on events retune the oscillator at their
	// offset.
	FollowNotes bool

	frequency  float64
	amplitude  float64
	sampleRate float64
	phase      float64
	delta      float64
}

// NewSine returns a full-scale oscillator.
func NewSine(frequency float64) *Sine {
	return &Sine{
		frequency: math.Max(frequency, 0),
		amplitude: 1,
	}
}

// WithAmplitude sets amplitude of the oscillator.
func (s *Sine) WithAmplitude(amplitude float64) *Sine {
	s.amplitude = amplitude
	return s
}

// Prepare implements unit.Unit.
func (s *Sine) Prepare(cfg unit.Config) error {
	s.sampleRate = float64(cfg.SampleRate)
	s.retune(s.frequency)
	return nil
}

// Process implements unit.Unit.
func (s *Sine) Process(ctx *unit.Context) {
	pos := 0
	if s.FollowNotes {
		for _, e := range ctx.Events {
			if !e.IsNoteOn() {
				continue
			}
			off := clampOffset(e.Offset, pos, ctx.Frames)
			s.render(ctx, pos, off)
			note, _ := e.Note()
			s.retune(event.Frequency(note))
			pos = off
		}
	}
	s.render(ctx, pos, ctx.Frames)
}

func (s *Sine) render(ctx *unit.Context, start, end int) {
	out := ctx.Outputs[0]
	for i := start; i < end; i++ {
		v := float32(math.Sin(s.phase) * s.amplitude)
		for ch := 0; ch < out.NumChannels(); ch++ {
			out.Set(ch, i, v)
		}
		s.phase += s.delta
		if s.phase >= 2*math.Pi {
			s.phase -= 2 * math.Pi
		}
	}
}

func (s *Sine) retune(frequency float64) {
	s.frequency = math.Max(frequency, 0)
	if s.sampleRate > 0 {
		s.delta = 2 * math.Pi * s.frequency / s.sampleRate
	}
}

// Reset implements unit.Unit.
func (s *Sine) Reset() {
	s.phase = 0
}

// ParallelSafe implements unit.Unit.
func (s *Sine) ParallelSafe() bool {
	return true
}

// SetParam implements unit.Parameterized.
func (s *Sine) SetParam(id uint32, value float64, _ int32) {
	switch id {
	case SineFrequency:
		s.retune(value)
	case SineAmplitude:
		s.amplitude = value
	}
}

// Frequency returns current frequency.
func (s *Sine) Frequency() float64 {
	return s.frequency
}

// clampOffset limits event offset to the part of the block that is not
// rendered yet.
func clampOffset(offset int32, pos, frames int) int {
	off := int(offset)
	switch {
	case off < pos:
		return pos
	case off > frames:
		return frames
	}
	return off
}
