package nodes

import (
	"pipelined.dev/engine/unit"
)

// Input passes device input through. It's used as the input node of a
// graph so other nodes can consume the capture signal. Missing channels
// repeat the last input channel.
type Input struct{}

// Prepare implements unit.Unit.
func (Input) Prepare(unit.Config) error {
	return nil
}

// Process implements unit.Unit.
func (Input) Process(ctx *unit.Context) {
	in, out := ctx.Inputs[0], ctx.Outputs[0]
	if in.NumChannels() == 0 {
		out.Clear()
		return
	}
	out.CopyFrom(in)
	last := in.NumChannels() - 1
	for ch := in.NumChannels(); ch < out.NumChannels(); ch++ {
		for i := 0; i < ctx.Frames; i++ {
			out.Set(ch, i, in.At(last, i))
		}
	}
}

// Reset implements unit.Unit.
func (Input) Reset() {}

// ParallelSafe implements unit.Unit.
func (Input) ParallelSafe() bool {
	return true
}
