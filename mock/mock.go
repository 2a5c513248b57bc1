// Package mock provides mocks for processing units, hosted plugins and
// device drivers and allows to execute integration tests.
package mock

import (
	"sync/atomic"

	"pipelined.dev/engine/event"
	"pipelined.dev/engine/unit"
)

// Parameters accepted by mock units.
const (
	ParamValue uint32 = iota
	ParamGain
)

// Source mocks a generator unit. Sample i of a block is Value + Step*n,
// where n is a running frame counter, so every block is different.
type Source struct {
	counter
	Hooks
	Value    float32
	Step     float32
	Parallel bool

	frame int64
}

// ParallelSafe implements unit.Unit.
func (m *Source) ParallelSafe() bool {
	return m.Parallel
}

// Prepare implements unit.Unit.
func (m *Source) Prepare(cfg unit.Config) error {
	return m.prepare(cfg)
}

// Process implements unit.Unit.
func (m *Source) Process(ctx *unit.Context) {
	out := ctx.Outputs[0]
	for i := 0; i < ctx.Frames; i++ {
		v := m.Value + m.Step*float32(m.frame+int64(i))
		for ch := 0; ch < out.NumChannels(); ch++ {
			out.Set(ch, i, v)
		}
	}
	m.frame += int64(ctx.Frames)
	m.advance(ctx.Frames, len(ctx.Events))
}

// Reset implements unit.Unit.
func (m *Source) Reset() {
	m.frame = 0
	m.reset()
	m.Resetted.Store(true)
}

// SetParam implements unit.Parameterized.
func (m *Source) SetParam(id uint32, value float64, offset int32) {
	if id == ParamValue {
		m.Value = float32(value)
	}
	m.record(id, value, offset)
}

// Processor mocks a unit with one input and one output. It writes
// input*Gain + Bias.
type Processor struct {
	counter
	Hooks
	Gain     float32
	Bias     float32
	Parallel bool
	Latency  int
}

// ParallelSafe implements unit.Unit.
func (m *Processor) ParallelSafe() bool {
	return m.Parallel
}

// Prepare implements unit.Unit.
func (m *Processor) Prepare(cfg unit.Config) error {
	return m.prepare(cfg)
}

// Process implements unit.Unit.
func (m *Processor) Process(ctx *unit.Context) {
	in, out := ctx.Inputs[0], ctx.Outputs[0]
	channels := min(in.NumChannels(), out.NumChannels())
	for ch := 0; ch < channels; ch++ {
		for i := 0; i < ctx.Frames; i++ {
			out.Set(ch, i, in.At(ch, i)*m.Gain+m.Bias)
		}
	}
	m.advance(ctx.Frames, len(ctx.Events))
}

// Reset implements unit.Unit.
func (m *Processor) Reset() {
	m.reset()
	m.Resetted.Store(true)
}

// SetParam implements unit.Parameterized.
func (m *Processor) SetParam(id uint32, value float64, offset int32) {
	if id == ParamGain {
		m.Gain = float32(value)
	}
	m.record(id, value, offset)
}

// LatencySamples implements unit.Latency.
func (m *Processor) LatencySamples() int {
	return m.Latency
}

// Sink mocks a terminal unit. It copies its input to its output and keeps
// a copy of the last block. It is never parallel-safe.
type Sink struct {
	counter
	Hooks
	last [][]float32
}

// ParallelSafe implements unit.Unit.
func (m *Sink) ParallelSafe() bool {
	return false
}

// Prepare implements unit.Unit.
func (m *Sink) Prepare(cfg unit.Config) error {
	if err := m.prepare(cfg); err != nil {
		return err
	}
	m.last = make([][]float32, cfg.Channels)
	for i := range m.last {
		m.last[i] = make([]float32, cfg.MaxBlockSize)
	}
	return nil
}

// Process implements unit.Unit.
func (m *Sink) Process(ctx *unit.Context) {
	in, out := ctx.Inputs[0], ctx.Outputs[0]
	for ch := 0; ch < out.NumChannels(); ch++ {
		for i := 0; i < ctx.Frames; i++ {
			var v float32
			if ch < in.NumChannels() {
				v = in.At(ch, i)
			}
			out.Set(ch, i, v)
			if ch < len(m.last) {
				m.last[ch][i] = v
			}
		}
	}
	m.advance(ctx.Frames, len(ctx.Events))
}

// Reset implements unit.Unit.
func (m *Sink) Reset() {
	m.reset()
	m.Resetted.Store(true)
}

// Last returns a copy of the last processed block.
func (m *Sink) Last(frames int) [][]float32 {
	result := make([][]float32, len(m.last))
	for i := range m.last {
		result[i] = append([]float32(nil), m.last[i][:frames]...)
	}
	return result
}

// Release implements unit.Releaser.
func (m *Hooks) Release() error {
	m.Released.Store(true)
	return m.ErrorOnRelease
}

// Hooks allows to mock unit hooks.
type Hooks struct {
	Prepared atomic.Int32
	Resetted atomic.Bool
	Released atomic.Bool

	ErrorOnPrepare error
	ErrorOnRelease error
	// Config is the last configuration passed to Prepare.
	Config unit.Config
}

func (m *Hooks) prepare(cfg unit.Config) error {
	m.Prepared.Add(1)
	m.Config = cfg
	return m.ErrorOnPrepare
}

// ParamLimit is the number of parameter changes recorded by a unit.
const ParamLimit = 4096

// Param is a recorded parameter change.
type Param struct {
	ID     uint32
	Value  float64
	Offset int32
	// Block is the index of the block in which the change was applied.
	Block int64
}

// counter counts blocks, samples and events. Counters are atomic so they
// can be read while the engine is streaming.
type counter struct {
	blocks  atomic.Int64
	samples atomic.Int64
	events  atomic.Int64
	// maxEvents is the largest event slice seen in a block.
	maxEvents atomic.Int64

	params [ParamLimit]Param
	nparam atomic.Int64
}

// advance counter's metrics.
func (c *counter) advance(frames, events int) {
	c.blocks.Add(1)
	c.samples.Add(int64(frames))
	c.events.Add(int64(events))
	if int64(events) > c.maxEvents.Load() {
		c.maxEvents.Store(int64(events))
	}
}

func (c *counter) record(id uint32, value float64, offset int32) {
	n := c.nparam.Load()
	if n >= ParamLimit {
		return
	}
	c.params[n] = Param{ID: id, Value: value, Offset: offset, Block: c.blocks.Load()}
	c.nparam.Store(n + 1)
}

// Count returns number of processed blocks and samples.
func (c *counter) Count() (blocks, samples int64) {
	return c.blocks.Load(), c.samples.Load()
}

// Events returns total number of events seen and the largest number of
// events seen in a single block.
func (c *counter) Events() (total, max int64) {
	return c.events.Load(), c.maxEvents.Load()
}

// Params returns recorded parameter changes.
func (c *counter) Params() []Param {
	return append([]Param(nil), c.params[:c.nparam.Load()]...)
}

// reset resets counter's metrics.
func (c *counter) reset() {
	c.blocks.Store(0)
	c.samples.Store(0)
	c.events.Store(0)
	c.maxEvents.Store(0)
	c.nparam.Store(0)
}

// Events returns n distinct note-on events.
func Events(n int) []event.Event {
	events := make([]event.Event, n)
	for i := range events {
		events[i] = event.NoteOnEvent(0, uint8(i%128), 100, int32(i))
	}
	return events
}
