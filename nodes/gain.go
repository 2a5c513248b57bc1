package nodes

import (
	"math"

	"pipelined.dev/engine/unit"
)

// GainLevel is a linear gain parameter.
const GainLevel uint32 = 0

// Gain multiplies its input by a linear gain.
type Gain struct {
	gain float32
}

// NewGain returns a gain stage.
func NewGain(gain float64) *Gain {
	return &Gain{gain: float32(gain)}
}

// Decibels converts decibels into linear gain.
func Decibels(db float64) float64 {
	return math.Pow(10, db/20)
}

// Prepare implements unit.Unit.
func (g *Gain) Prepare(unit.Config) error {
	return nil
}

// Process implements unit.Unit.
func (g *Gain) Process(ctx *unit.Context) {
	in, out := ctx.Inputs[0], ctx.Outputs[0]
	channels := min(in.NumChannels(), out.NumChannels())
	for ch := 0; ch < channels; ch++ {
		for i := 0; i < ctx.Frames; i++ {
			out.Set(ch, i, in.At(ch, i)*g.gain)
		}
	}
	for ch := channels; ch < out.NumChannels(); ch++ {
		for i := 0; i < ctx.Frames; i++ {
			out.Set(ch, i, 0)
		}
	}
}

// Reset implements unit.Unit.
func (g *Gain) Reset() {}

// ParallelSafe implements unit.Unit.
func (g *Gain) ParallelSafe() bool {
	return true
}

// SetParam implements unit.Parameterized.
func (g *Gain) SetParam(id uint32, value float64, _ int32) {
	if id == GainLevel {
		g.gain = float32(value)
	}
}

// Level returns current linear gain.
func (g *Gain) Level() float64 {
	return float64(g.gain)
}
