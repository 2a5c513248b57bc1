package mock

import (
	"sync/atomic"

	"pipelined.dev/engine/host"
)

// Plugin mocks a hosted plugin. It multiplies input by Gain, or writes
// Gain into every sample if there is no input.
type Plugin struct {
	Gain float32
	// Status is returned from every Process call.
	Status host.Status
	// Reject makes activation fail.
	Reject  bool
	Latency int

	Activated   atomic.Int32
	Deactivated atomic.Int32
	Resets      atomic.Int32

	// SampleRate and MaxBlockSize are the last activation arguments.
	SampleRate   float64
	MaxBlockSize int

	counter
}

// Activate implements host.Plugin.
func (p *Plugin) Activate(sampleRate float64, maxBlockSize int) bool {
	if p.Reject {
		return false
	}
	p.SampleRate = sampleRate
	p.MaxBlockSize = maxBlockSize
	p.Activated.Add(1)
	return true
}

// Process implements host.Plugin.
func (p *Plugin) Process(data *host.ProcessData) host.Status {
	for _, c := range data.Params {
		if c.ID == ParamGain {
			p.Gain = float32(c.Value)
		}
		p.record(c.ID, c.Value, c.Offset)
	}
	for ch, out := range data.Output {
		for i := range out[:data.Frames] {
			if ch < len(data.Input) {
				out[i] = data.Input[ch][i] * p.Gain
			} else {
				out[i] = p.Gain
			}
		}
	}
	p.advance(data.Frames, len(data.Events))
	return p.Status
}

// Deactivate implements host.Plugin.
func (p *Plugin) Deactivate() {
	p.Deactivated.Add(1)
}

// Reset implements host.Resetter.
func (p *Plugin) Reset() {
	p.Resets.Add(1)
	p.reset()
}

// LatencySamples implements host.Latency.
func (p *Plugin) LatencySamples() int {
	return p.Latency
}

// Name implements host.Namer.
func (p *Plugin) Name() string {
	return "mock"
}
