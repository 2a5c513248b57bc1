package nodes

import (
	"math"
	"sync/atomic"

	"pipelined.dev/engine/unit"
)

// Meter measures peak and RMS levels of its input per block. Levels are
// published through atomics and can be read from any thread. If the
// output is connected, input is passed through.
type Meter struct {
	peak   []atomic.Uint32
	rms    []atomic.Uint32
	blocks atomic.Uint64
}

// NewMeter returns a meter.
func NewMeter() *Meter {
	return &Meter{}
}

// Prepare implements unit.Unit.
func (m *Meter) Prepare(cfg unit.Config) error {
	m.peak = make([]atomic.Uint32, cfg.Channels)
	m.rms = make([]atomic.Uint32, cfg.Channels)
	return nil
}

// Process implements unit.Unit.
func (m *Meter) Process(ctx *unit.Context) {
	in := ctx.Inputs[0]
	if len(ctx.Outputs) > 0 {
		ctx.Outputs[0].CopyFrom(in)
	}
	channels := min(in.NumChannels(), len(m.peak))
	for ch := 0; ch < channels; ch++ {
		var peak, sum float64
		for i := 0; i < ctx.Frames; i++ {
			v := float64(in.At(ch, i))
			peak = math.Max(peak, math.Abs(v))
			sum += v * v
		}
		var rms float64
		if ctx.Frames > 0 {
			rms = math.Sqrt(sum / float64(ctx.Frames))
		}
		m.peak[ch].Store(math.Float32bits(float32(peak)))
		m.rms[ch].Store(math.Float32bits(float32(rms)))
	}
	m.blocks.Add(1)
}

// Peak returns peak level of the channel in the last block.
func (m *Meter) Peak(ch int) float32 {
	if ch < 0 || ch >= len(m.peak) {
		return 0
	}
	return math.Float32frombits(m.peak[ch].Load())
}

// RMS returns RMS level of the channel in the last block.
func (m *Meter) RMS(ch int) float32 {
	if ch < 0 || ch >= len(m.rms) {
		return 0
	}
	return math.Float32frombits(m.rms[ch].Load())
}

// Blocks returns number of measured blocks.
func (m *Meter) Blocks() uint64 {
	return m.blocks.Load()
}

// Reset implements unit.Unit.
func (m *Meter) Reset() {
	for i := range m.peak {
		m.peak[i].Store(0)
		m.rms[i].Store(0)
	}
}

// ParallelSafe implements unit.Unit. Meter publishes levels to other
// threads, so it always runs on the device thread.
func (m *Meter) ParallelSafe() bool {
	return false
}
