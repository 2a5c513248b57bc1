package nodes

import (
	"fmt"
	"math"

	"pipelined.dev/engine/unit"
)

// FilterType is a response of a biquad filter.
type FilterType int

// Filter types.
const (
	Lowpass FilterType = iota
	Highpass
	Bandpass
)

func (t FilterType) String() string {
	switch t {
	case Lowpass:
		return "lowpass"
	case Highpass:
		return "highpass"
	case Bandpass:
		return "bandpass"
	}
	return fmt.Sprintf("FilterType(%d)", int(t))
}

// Biquad parameters.
const (
	BiquadFrequency uint32 = iota
	BiquadQ
)

// Biquad is a second order filter with per-channel state.
type Biquad struct {
	kind       FilterType
	frequency  float64
	q          float64
	sampleRate float64

	b0, b1, b2, a1, a2 float64
	state              []biquadState
}

type biquadState struct {
	x1, x2, y1, y2 float64
}

// NewBiquad returns a filter with cutoff frequency and resonance q.
func NewBiquad(kind FilterType, frequency, q float64) *Biquad {
	return &Biquad{
		kind:      kind,
		frequency: frequency,
		q:         q,
	}
}

// Prepare implements unit.Unit.
func (f *Biquad) Prepare(cfg unit.Config) error {
	if f.kind < Lowpass || f.kind > Bandpass {
		return unit.Errorf(f, "unknown filter type %v", f.kind)
	}
	if f.q <= 0 {
		return unit.Errorf(f, "invalid q: %v", f.q)
	}
	nyquist := float64(cfg.SampleRate) / 2
	if f.frequency <= 0 || f.frequency >= nyquist {
		return unit.Errorf(f, "cutoff %v Hz is outside of (0, %v)", f.frequency, nyquist)
	}
	f.sampleRate = float64(cfg.SampleRate)
	f.state = make([]biquadState, cfg.Channels)
	f.update()
	return nil
}

// update computes normalized coefficients.
func (f *Biquad) update() {
	w := 2 * math.Pi * f.frequency / f.sampleRate
	cosw := math.Cos(w)
	alpha := math.Sin(w) / (2 * f.q)

	var b0, b1, b2 float64
	switch f.kind {
	case Lowpass:
		b0 = (1 - cosw) / 2
		b1 = 1 - cosw
		b2 = (1 - cosw) / 2
	case Highpass:
		b0 = (1 + cosw) / 2
		b1 = -(1 + cosw)
		b2 = (1 + cosw) / 2
	case Bandpass:
		b0 = alpha
		b1 = 0
		b2 = -alpha
	}
	a0 := 1 + alpha
	f.b0, f.b1, f.b2 = b0/a0, b1/a0, b2/a0
	f.a1, f.a2 = -2*cosw/a0, (1-alpha)/a0
}

// Process implements unit.Unit.
func (f *Biquad) Process(ctx *unit.Context) {
	in, out := ctx.Inputs[0], ctx.Outputs[0]
	channels := min(in.NumChannels(), out.NumChannels(), len(f.state))
	for ch := 0; ch < channels; ch++ {
		s := &f.state[ch]
		for i := 0; i < ctx.Frames; i++ {
			x := float64(in.At(ch, i))
			y := f.b0*x + f.b1*s.x1 + f.b2*s.x2 - f.a1*s.y1 - f.a2*s.y2
			s.x2, s.x1 = s.x1, x
			s.y2, s.y1 = s.y1, y
			out.Set(ch, i, float32(y))
		}
	}
}

// Reset implements unit.Unit.
func (f *Biquad) Reset() {
	for i := range f.state {
		f.state[i] = biquadState{}
	}
}

// ParallelSafe implements unit.Unit.
func (f *Biquad) ParallelSafe() bool {
	return true
}

// SetParam implements unit.Parameterized. Values that make the filter
// unstable are ignored.
func (f *Biquad) SetParam(id uint32, value float64, _ int32) {
	switch id {
	case BiquadFrequency:
		if value <= 0 || value >= f.sampleRate/2 {
			return
		}
		f.frequency = value
	case BiquadQ:
		if value <= 0 {
			return
		}
		f.q = value
	default:
		return
	}
	f.update()
}
